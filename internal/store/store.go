// Package store persists users, buses, routes, stops and wait requests.
package store

import (
	"context"
	"errors"
	"time"

	"shuttle_tracker/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the persistence contract the services rely on. Implementations
// only need per-entity CRUD plus simple equality and ordering filters.
type Store interface {
	// WithTx runs fn inside a single unit of work. Returning an error rolls
	// back every write made through the Store handed to fn.
	WithTx(ctx context.Context, fn func(Store) error) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateBus(ctx context.Context, b *models.Bus) error
	// GetBus loads the bus with its Driver.
	GetBus(ctx context.Context, id uint) (*models.Bus, error)
	// FindBusByDriver returns the first bus owned by the driver.
	FindBusByDriver(ctx context.Context, driverID uint) (*models.Bus, error)
	ListBuses(ctx context.Context) ([]models.Bus, error)
	// ListActiveBuses loads active buses with their Driver.
	ListActiveBuses(ctx context.Context) ([]models.Bus, error)
	// UpdateBusPosition overwrites the live position and last-updated time only.
	UpdateBusPosition(ctx context.Context, busID uint, lat, lng float64, at time.Time) error
	AssignDriver(ctx context.Context, busID uint, driverID *uint) error

	// CreateRoute inserts the route together with its Stops.
	CreateRoute(ctx context.Context, r *models.Route) error
	ListRoutes(ctx context.Context) ([]models.Route, error)
	ListRoutesByBus(ctx context.Context, busID uint) ([]models.Route, error)
	GetStop(ctx context.Context, id uint) (*models.Stop, error)
	// ListStopsByRoute orders by stop_order ascending; ties keep insertion order.
	ListStopsByRoute(ctx context.Context, routeID uint) ([]models.Stop, error)

	CreateWaitRequest(ctx context.Context, w *models.WaitRequest) error
	// GetWaitRequest loads the request with its Bus and User.
	GetWaitRequest(ctx context.Context, id uint) (*models.WaitRequest, error)
	FindPendingWaitRequest(ctx context.Context, busID, userID uint) (*models.WaitRequest, error)
	// ListPendingWaitRequests loads User and Stop, newest first.
	ListPendingWaitRequests(ctx context.Context, busID uint) ([]models.WaitRequest, error)
	// ResolveWaitRequest sets the flag matching status if the request is still
	// pending. It reports false when the request was already resolved.
	ResolveWaitRequest(ctx context.Context, id uint, status models.WaitStatus) (bool, error)
}
