package models

import (
	"gorm.io/gorm"
)

// Route represents a service path driven by a bus.
// A bus can have multiple routes; each route has many ordered stops.
type Route struct {
	gorm.Model

	BusID     uint   `json:"bus_id" gorm:"index"`
	RouteName string `json:"route_name" gorm:"not null"`
	StartTime string `json:"start_time" gorm:"size:10;not null"`
	EndTime   string `json:"end_time" gorm:"size:10;not null"`

	// LINESTRING through the stops in order, WKB encoded.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	Stops []Stop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"stops,omitempty"`
}
