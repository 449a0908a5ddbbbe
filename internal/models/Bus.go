// internal/models/bus.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Bus is a shuttle vehicle. Its live position stays null until the owning
// driver sends the first location update.
type Bus struct {
	gorm.Model
	BusNumber   string     `json:"bus_number" gorm:"uniqueIndex;not null"`
	CurrentLat  *float64   `json:"current_lat"`
	CurrentLng  *float64   `json:"current_lng"`
	DriverID    *uint      `json:"driver_id" gorm:"index"` // owning driver user
	Driver      *User      `gorm:"foreignKey:DriverID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"driver,omitempty"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastUpdated *time.Time `json:"last_updated"`

	Routes []Route `gorm:"foreignKey:BusID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"routes,omitempty"`
}

// Position returns the live position. A zero coordinate counts as missing,
// matching how location updates are validated.
func (b *Bus) Position() (lat, lng float64, ok bool) {
	if b == nil || b.CurrentLat == nil || b.CurrentLng == nil {
		return 0, 0, false
	}
	if *b.CurrentLat == 0 || *b.CurrentLng == 0 {
		return 0, 0, false
	}
	return *b.CurrentLat, *b.CurrentLng, true
}

// OwnedBy reports whether the given user id is the bus's driver.
func (b *Bus) OwnedBy(userID uint) bool {
	return b != nil && b.DriverID != nil && *b.DriverID == userID
}
