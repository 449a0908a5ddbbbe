package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/events"
	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/livecache"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// DefaultNearbyRadius is used when a nearby-bus query gives no radius.
const DefaultNearbyRadius = 2000.0

// NearbyIndex answers radius queries over live bus positions.
type NearbyIndex interface {
	Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]livecache.Hit, error)
}

// BusLocation is one entry of the live map.
type BusLocation struct {
	ID          uint       `json:"id"`
	BusNumber   string     `json:"bus_number"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Driver      string     `json:"driver"`
	LastUpdated *time.Time `json:"last_updated"`
}

// NearbyBus is a BusLocation with its distance from the query point.
type NearbyBus struct {
	BusLocation
	DistanceM float64 `json:"distance_m"`
}

type LocationService struct {
	store     store.Store
	publisher events.Publisher
	index     NearbyIndex
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewLocationService(s store.Store, pub events.Publisher, m *metrics.Collector) *LocationService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &LocationService{store: s, publisher: pub, metrics: m, now: func() time.Time { return time.Now().UTC() }}
}

// WithNearbyIndex makes NearbyBuses consult index before falling back to a
// store scan.
func (s *LocationService) WithNearbyIndex(index NearbyIndex) *LocationService {
	s.index = index
	return s
}

// UpdateLocation overwrites the live position of the bus owned by the
// calling driver. Last write wins.
func (s *LocationService) UpdateLocation(ctx context.Context, actor Actor, lat, lng *float64) (*models.Bus, error) {
	if !actor.Role.CanDrive() {
		return nil, unauthorized("only drivers can update bus location")
	}
	// A coordinate of exactly 0 is treated as missing, so buses on the
	// equator or prime meridian cannot report a position.
	if lat == nil || lng == nil || *lat == 0 || *lng == 0 {
		return nil, validationf("location data required")
	}
	if !inRange(*lat, *lng) {
		return nil, validationf("location out of range")
	}

	at := s.now()
	var bus *models.Bus
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		b, err := tx.FindBusByDriver(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound("bus")
			}
			return err
		}
		if err := tx.UpdateBusPosition(ctx, b.ID, *lat, *lng, at); err != nil {
			return err
		}
		b.CurrentLat, b.CurrentLng, b.LastUpdated = lat, lng, &at
		bus = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LocationUpdates.Inc()
	}
	logrus.WithFields(logrus.Fields{
		"bus_id":    bus.ID,
		"driver_id": actor.UserID,
		"lat":       *lat,
		"lng":       *lng,
	}).Debug("Bus location updated.")

	err = s.publisher.PublishBusLocation(ctx, events.BusLocation{
		BusID:     bus.ID,
		BusNumber: bus.BusNumber,
		DriverID:  bus.DriverID,
		Lat:       *lat,
		Lng:       *lng,
		UpdatedAt: at,
	})
	events.LogFailure(err, logrus.Fields{"bus_id": bus.ID, "event": "bus.location"})
	return bus, nil
}

// ListActiveBusLocations returns every active bus that has a position.
func (s *LocationService) ListActiveBusLocations(ctx context.Context) ([]BusLocation, error) {
	buses, err := s.store.ListActiveBuses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BusLocation, 0, len(buses))
	for i := range buses {
		if loc, ok := toBusLocation(&buses[i]); ok {
			out = append(out, loc)
		}
	}
	return out, nil
}

func toBusLocation(b *models.Bus) (BusLocation, bool) {
	lat, lng, ok := b.Position()
	if !ok {
		return BusLocation{}, false
	}
	driver := "Unknown"
	if b.Driver != nil {
		driver = b.Driver.Username
	}
	return BusLocation{
		ID:          b.ID,
		BusNumber:   b.BusNumber,
		Lat:         lat,
		Lng:         lng,
		Driver:      driver,
		LastUpdated: b.LastUpdated,
	}, true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// inRange rejects NaN and infinities along with out-of-range degrees.
func inRange(lat, lng float64) bool {
	return finite(lat) && finite(lng) && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// NearbyBuses lists active buses within radiusM of the point, closest first.
func (s *LocationService) NearbyBuses(ctx context.Context, lat, lng, radiusM float64) ([]NearbyBus, error) {
	if !inRange(lat, lng) {
		return nil, validationf("location out of range")
	}
	if radiusM < 0 || !finite(radiusM) {
		return nil, validationf("radius must be a positive number of meters")
	}
	if radiusM == 0 {
		radiusM = DefaultNearbyRadius
	}

	buses, err := s.ListActiveBusLocations(ctx)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		out, err := s.nearbyFromIndex(ctx, buses, lat, lng, radiusM)
		if err == nil {
			return out, nil
		}
		logrus.WithError(err).Warn("Nearby index unavailable, scanning store.")
	}

	out := make([]NearbyBus, 0)
	for _, b := range buses {
		d := geo.Distance(lat, lng, b.Lat, b.Lng)
		if d <= radiusM {
			out = append(out, NearbyBus{BusLocation: b, DistanceM: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out, nil
}

func (s *LocationService) nearbyFromIndex(ctx context.Context, buses []BusLocation, lat, lng, radiusM float64) ([]NearbyBus, error) {
	byID := make(map[uint]BusLocation, len(buses))
	for _, b := range buses {
		byID[b.ID] = b
	}
	hits, err := s.index.Nearby(ctx, lat, lng, radiusM, len(buses)+1)
	if err != nil {
		return nil, fmt.Errorf("nearby index: %w", err)
	}
	out := make([]NearbyBus, 0, len(hits))
	for _, h := range hits {
		// The index may hold buses that were deactivated since.
		b, ok := byID[h.BusID]
		if !ok {
			continue
		}
		out = append(out, NearbyBus{BusLocation: b, DistanceM: h.DistanceM})
	}
	return out, nil
}

// DriverBus returns the bus owned by the calling driver.
func (s *LocationService) DriverBus(ctx context.Context, actor Actor) (*models.Bus, error) {
	if !actor.Role.CanDrive() {
		return nil, unauthorized("access denied")
	}
	bus, err := s.store.FindBusByDriver(ctx, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("bus")
	}
	return bus, err
}
