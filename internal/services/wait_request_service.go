package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/events"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/notify"
	"shuttle_tracker/internal/store"
)

// Driver responses to a wait request.
const (
	ResponseAcknowledge = "acknowledge"
	ResponseDecline     = "decline"
)

type CreateWaitRequestInput struct {
	BusID   uint
	StopID  uint
	Message string
}

// PendingRequest is how a driver sees an open wait request.
type PendingRequest struct {
	ID        uint        `json:"id"`
	User      pendingUser `json:"user"`
	Stop      pendingStop `json:"stop"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

type pendingUser struct {
	Username string `json:"username"`
}

type pendingStop struct {
	Name string `json:"name"`
}

type WaitRequestService struct {
	store     store.Store
	notifier  notify.Notifier
	publisher events.Publisher
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewWaitRequestService(s store.Store, n notify.Notifier, pub events.Publisher, m *metrics.Collector) *WaitRequestService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &WaitRequestService{store: s, notifier: n, publisher: pub, metrics: m, now: func() time.Time { return time.Now().UTC() }}
}

// Create records a pending wait request and tells the bus's driver about it.
// A user can hold at most one pending request per bus.
func (s *WaitRequestService) Create(ctx context.Context, actor Actor, in CreateWaitRequestInput) (*models.WaitRequest, error) {
	if !actor.Role.CanRequestWait() {
		return nil, unauthorized("access denied")
	}
	if in.BusID == 0 || in.StopID == 0 {
		return nil, validationf("Bus ID and Stop ID are required")
	}
	if utf8.RuneCountInString(in.Message) > models.MaxWaitMessageLength {
		return nil, validationf("message must be at most %d characters", models.MaxWaitMessageLength)
	}

	var (
		req  *models.WaitRequest
		bus  *models.Bus
		stop *models.Stop
		user *models.User
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		if bus, err = tx.GetBus(ctx, in.BusID); err != nil {
			return missingAs(err, "bus or stop")
		}
		if stop, err = tx.GetStop(ctx, in.StopID); err != nil {
			return missingAs(err, "bus or stop")
		}
		if _, _, ok := bus.Position(); !ok {
			return validationf("Bus location not available")
		}
		if user, err = tx.GetUser(ctx, actor.UserID); err != nil {
			return missingAs(err, "user")
		}

		_, err = tx.FindPendingWaitRequest(ctx, bus.ID, actor.UserID)
		switch {
		case err == nil:
			return conflict("You already have a pending request for this bus")
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		req = &models.WaitRequest{
			BusID:     bus.ID,
			UserID:    actor.UserID,
			StopID:    stop.ID,
			Message:   in.Message,
			Timestamp: s.now(),
		}
		if err := tx.CreateWaitRequest(ctx, req); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return conflict("You already have a pending request for this bus")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.WaitRequests.WithLabelValues(string(models.WaitPending)).Inc()
	}
	logrus.WithFields(logrus.Fields{
		"request_id": req.ID,
		"bus_id":     bus.ID,
		"user_id":    actor.UserID,
		"stop_id":    stop.ID,
	}).Info("Wait request created.")

	if bus.Driver.HasPhone() {
		s.notifier.Notify(bus.Driver.Phone, fmt.Sprintf("Wait request from %s at %s. Message: %s", user.Username, stop.Name, in.Message))
	}
	s.publish(ctx, req, bus.DriverID, user.Username, stop.Name)
	return req, nil
}

// ListPendingForDriver returns the open requests for the caller's bus,
// newest first. A driver without a bus gets an empty list.
func (s *WaitRequestService) ListPendingForDriver(ctx context.Context, actor Actor) ([]PendingRequest, error) {
	if !actor.Role.CanDrive() {
		return nil, unauthorized("access denied")
	}
	bus, err := s.store.FindBusByDriver(ctx, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return []PendingRequest{}, nil
	}
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListPendingWaitRequests(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	out := make([]PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, PendingRequest{
			ID:        r.ID,
			User:      pendingUser{Username: r.User.Username},
			Stop:      pendingStop{Name: r.Stop.Name},
			Message:   r.Message,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

// Respond acknowledges or declines a pending request on the caller's bus and
// tells the requester. A request can only be resolved once.
func (s *WaitRequestService) Respond(ctx context.Context, actor Actor, requestID uint, response string) (*models.WaitRequest, error) {
	if !actor.Role.CanDrive() {
		return nil, unauthorized("access denied")
	}
	if requestID == 0 || response == "" {
		return nil, validationf("Request ID and response are required")
	}

	var req *models.WaitRequest
	var status models.WaitStatus
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		if req, err = tx.GetWaitRequest(ctx, requestID); err != nil {
			return missingAs(err, "request")
		}
		// Ownership is checked before the response value so a non-owner
		// always gets an authorization failure.
		if !req.Bus.OwnedBy(actor.UserID) {
			return unauthorized("access denied")
		}
		switch response {
		case ResponseAcknowledge:
			status = models.WaitAcknowledged
		case ResponseDecline:
			status = models.WaitDeclined
		default:
			return validationf("Invalid response")
		}
		ok, err := tx.ResolveWaitRequest(ctx, req.ID, status)
		if err != nil {
			return missingAs(err, "request")
		}
		if !ok {
			return conflict("wait request already resolved")
		}
		req.Acknowledged = status == models.WaitAcknowledged
		req.Declined = status == models.WaitDeclined
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.WaitRequests.WithLabelValues(string(status)).Inc()
	}
	logrus.WithFields(logrus.Fields{
		"request_id": req.ID,
		"bus_id":     req.BusID,
		"status":     status,
	}).Info("Wait request resolved.")

	if req.User.HasPhone() {
		s.notifier.Notify(req.User.Phone, fmt.Sprintf("Your wait request has been %s by the driver.", status))
	}
	s.publish(ctx, req, req.Bus.DriverID, req.User.Username, "")
	return req, nil
}

func (s *WaitRequestService) publish(ctx context.Context, req *models.WaitRequest, driverID *uint, username, stopName string) {
	err := s.publisher.PublishWaitRequest(ctx, events.WaitRequest{
		RequestID: req.ID,
		BusID:     req.BusID,
		DriverID:  driverID,
		UserID:    req.UserID,
		Username:  username,
		StopID:    req.StopID,
		StopName:  stopName,
		Message:   req.Message,
		Status:    req.Status(),
		Timestamp: req.Timestamp,
	})
	events.LogFailure(err, logrus.Fields{"request_id": req.ID, "event": "bus.wait_request"})
}

// missingAs turns store.ErrNotFound into a NotFound service error.
func missingAs(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(what)
	}
	return err
}
