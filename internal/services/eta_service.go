package services

import (
	"context"
	"time"

	"github.com/bluele/gcache"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// RouteStop is a stop on one of a bus's routes with its live ETA.
type RouteStop struct {
	ID            uint    `json:"id"`
	RouteID       uint    `json:"route_id"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	StopOrder     int     `json:"stop_order"`
	EstimatedTime string  `json:"estimated_time"`
	ETA           *int    `json:"eta"`
}

// ETAService answers read-only arrival questions. Stop lists change rarely
// so they are cached per bus; positions are always read fresh.
type ETAService struct {
	store    store.Store
	speedMps float64
	stops    gcache.Cache
}

func NewETAService(s store.Store, speedMps float64, cacheSize int, cacheTTL time.Duration) *ETAService {
	svc := &ETAService{store: s, speedMps: speedMps}
	if cacheSize > 0 {
		b := gcache.New(cacheSize).LRU()
		if cacheTTL > 0 {
			b = b.Expiration(cacheTTL)
		}
		svc.stops = b.Build()
	}
	return svc
}

// GetETA returns whole minutes from the bus to the stop, or nil when the bus
// has not reported a position.
func (s *ETAService) GetETA(ctx context.Context, busID, stopID uint) (*int, error) {
	bus, err := s.store.GetBus(ctx, busID)
	if err != nil {
		return nil, missingAs(err, "bus or stop")
	}
	stop, err := s.store.GetStop(ctx, stopID)
	if err != nil {
		return nil, missingAs(err, "bus or stop")
	}
	lat, lng, ok := bus.Position()
	if !ok {
		return nil, nil
	}
	return geo.ETAMinutes(lat, lng, stop.Lat, stop.Lng, s.speedMps), nil
}

// GetRouteStops lists every stop of every route the bus drives, each route's
// stops in stop_order.
func (s *ETAService) GetRouteStops(ctx context.Context, busID uint) ([]RouteStop, error) {
	bus, err := s.store.GetBus(ctx, busID)
	if err != nil {
		return nil, missingAs(err, "bus")
	}
	stops, err := s.routeStops(ctx, busID)
	if err != nil {
		return nil, err
	}

	lat, lng, hasPos := bus.Position()
	out := make([]RouteStop, 0, len(stops))
	for _, st := range stops {
		rs := RouteStop{
			ID:            st.ID,
			RouteID:       st.RouteID,
			Name:          st.Name,
			Lat:           st.Lat,
			Lng:           st.Lng,
			StopOrder:     st.StopOrder,
			EstimatedTime: st.EstimatedTime,
		}
		if hasPos {
			rs.ETA = geo.ETAMinutes(lat, lng, st.Lat, st.Lng, s.speedMps)
		}
		out = append(out, rs)
	}
	return out, nil
}

func (s *ETAService) routeStops(ctx context.Context, busID uint) ([]models.Stop, error) {
	if s.stops != nil {
		if v, err := s.stops.Get(busID); err == nil {
			return v.([]models.Stop), nil
		}
	}

	routes, err := s.store.ListRoutesByBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	var stops []models.Stop
	for _, r := range routes {
		rs, err := s.store.ListStopsByRoute(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		stops = append(stops, rs...)
	}

	if s.stops != nil {
		if err := s.stops.Set(busID, stops); err != nil {
			logrus.WithError(err).WithField("bus_id", busID).Debug("Failed to cache route stops.")
		}
	}
	return stops, nil
}

// InvalidateRoutes drops cached stops for a bus after its routes change.
func (s *ETAService) InvalidateRoutes(busID uint) {
	if s.stops != nil {
		s.stops.Remove(busID)
	}
}
