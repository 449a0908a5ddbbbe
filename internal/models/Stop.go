package models

import (
	"gorm.io/gorm"
)

// Stop is a pickup point along a route. StopOrder is a sort key only and is
// not unique within a route.
type Stop struct {
	gorm.Model

	RouteID       uint    `json:"route_id" gorm:"index"`
	Name          string  `json:"name" gorm:"not null"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	StopOrder     int     `json:"stop_order" gorm:"not null"`
	EstimatedTime string  `json:"estimated_time" gorm:"size:10"`
}
