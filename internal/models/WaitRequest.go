package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxWaitMessageLength bounds the free-text message a student can attach.
const MaxWaitMessageLength = 200

type WaitStatus string

const (
	WaitPending      WaitStatus = "pending"
	WaitAcknowledged WaitStatus = "acknowledged"
	WaitDeclined     WaitStatus = "declined"
)

// WaitRequest asks a bus to hold at a stop. Rows are never deleted; a driver
// response flips exactly one of the two flags.
type WaitRequest struct {
	gorm.Model
	BusID        uint      `json:"bus_id" gorm:"index:idx_wait_bus_user;not null"`
	UserID       uint      `json:"user_id" gorm:"index:idx_wait_bus_user;not null"`
	StopID       uint      `json:"stop_id" gorm:"not null"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`
	Acknowledged bool      `json:"acknowledged" gorm:"not null;default:false"`
	Declined     bool      `json:"declined" gorm:"not null;default:false"`
	Message      string    `json:"message" gorm:"size:200"`

	Bus  Bus  `gorm:"foreignKey:BusID" json:"-"`
	User User `gorm:"foreignKey:UserID" json:"-"`
	Stop Stop `gorm:"foreignKey:StopID" json:"-"`
}

func (w *WaitRequest) Status() WaitStatus {
	switch {
	case w.Acknowledged:
		return WaitAcknowledged
	case w.Declined:
		return WaitDeclined
	}
	return WaitPending
}

func (w *WaitRequest) Pending() bool { return w.Status() == WaitPending }
