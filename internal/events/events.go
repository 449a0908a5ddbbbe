// Package events fans bus location and wait-request lifecycle events out to
// the configured sinks. Publishing always happens after the originating
// write has committed, and sink failures never fail that write.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
)

type BusLocation struct {
	BusID     uint      `json:"bus_id"`
	BusNumber string    `json:"bus_number"`
	DriverID  *uint     `json:"driver_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"last_updated"`
}

type WaitRequest struct {
	RequestID uint              `json:"request_id"`
	BusID     uint              `json:"bus_id"`
	DriverID  *uint             `json:"driver_id,omitempty"`
	UserID    uint              `json:"user_id"`
	Username  string            `json:"username"`
	StopID    uint              `json:"stop_id"`
	StopName  string            `json:"stop_name"`
	Message   string            `json:"message"`
	Status    models.WaitStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

type Publisher interface {
	PublishBusLocation(ctx context.Context, ev BusLocation) error
	PublishWaitRequest(ctx context.Context, ev WaitRequest) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishBusLocation(context.Context, BusLocation) error { return nil }
func (Nop) PublishWaitRequest(context.Context, WaitRequest) error { return nil }

type sink struct {
	name string
	pub  Publisher
}

// Multi publishes to every registered sink in order and joins their errors.
type Multi struct {
	sinks   []sink
	metrics *metrics.Collector
}

func NewMulti(m *metrics.Collector) *Multi {
	return &Multi{metrics: m}
}

// Add registers a named sink. Nil publishers are ignored.
func (m *Multi) Add(name string, p Publisher) *Multi {
	if p != nil {
		m.sinks = append(m.sinks, sink{name: name, pub: p})
	}
	return m
}

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) PublishBusLocation(ctx context.Context, ev BusLocation) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.pub.PublishBusLocation(ctx, ev)
		m.metrics.PublishResult(s.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) PublishWaitRequest(ctx context.Context, ev WaitRequest) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.pub.PublishWaitRequest(ctx, ev)
		m.metrics.PublishResult(s.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// LogFailure is the standard way callers report a publish error.
func LogFailure(err error, fields logrus.Fields) {
	if err == nil {
		return
	}
	logrus.WithError(err).WithFields(fields).Warn("Event publish failed; continuing.")
}
