package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

type StopInput struct {
	Name          string
	Lat           float64
	Lng           float64
	StopOrder     int
	EstimatedTime string
}

type CreateRouteInput struct {
	BusID     uint
	RouteName string
	StartTime string
	EndTime   string
	Stops     []StopInput
}

// RouteView is a route with its path rendered as GeoJSON.
type RouteView struct {
	models.Route
	Path json.RawMessage `json:"path,omitempty"`
}

// AdminService backs the administrator screens.
type AdminService struct {
	store store.Store
	eta   *ETAService
}

func NewAdminService(s store.Store, eta *ETAService) *AdminService {
	return &AdminService{store: s, eta: eta}
}

func requireAdmin(actor Actor) error {
	if !actor.Role.CanAdminister() {
		return unauthorized("access denied")
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, actor Actor) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

func (s *AdminService) ListBuses(ctx context.Context, actor Actor) ([]models.Bus, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListBuses(ctx)
}

func (s *AdminService) ListRoutes(ctx context.Context, actor Actor) ([]RouteView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	routes, err := s.store.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		v := RouteView{Route: r}
		if path, err := geo.WKBToGeoJSON(r.Geometry); err != nil {
			logrus.WithError(err).WithField("route_id", r.ID).Warn("Stored route geometry is unreadable.")
		} else if path != "" {
			v.Path = json.RawMessage(path)
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateBus adds an active bus, optionally already assigned to a driver.
func (s *AdminService) CreateBus(ctx context.Context, actor Actor, busNumber string, driverID *uint) (*models.Bus, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	busNumber = strings.TrimSpace(busNumber)
	if busNumber == "" {
		return nil, validationf("bus number is required")
	}

	bus := &models.Bus{BusNumber: busNumber, DriverID: driverID, IsActive: true}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := checkDriver(ctx, tx, driverID); err != nil {
			return err
		}
		if err := tx.CreateBus(ctx, bus); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return conflict("bus number already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"bus_id": bus.ID, "bus_number": bus.BusNumber}).Info("Bus created.")
	return bus, nil
}

// AssignDriver sets or clears (nil driverID) the bus's driver.
func (s *AdminService) AssignDriver(ctx context.Context, actor Actor, busID uint, driverID *uint) (*models.Bus, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var bus *models.Bus
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := checkDriver(ctx, tx, driverID); err != nil {
			return err
		}
		if err := tx.AssignDriver(ctx, busID, driverID); err != nil {
			return missingAs(err, "bus")
		}
		var err error
		bus, err = tx.GetBus(ctx, busID)
		return missingAs(err, "bus")
	})
	if err != nil {
		return nil, err
	}
	return bus, nil
}

func checkDriver(ctx context.Context, tx store.Store, driverID *uint) error {
	if driverID == nil {
		return nil
	}
	u, err := tx.GetUser(ctx, *driverID)
	if err != nil {
		return missingAs(err, "driver")
	}
	if !u.Role.CanDrive() {
		return validationf("user %d is not a driver", u.ID)
	}
	return nil
}

// CreateRoute stores a route with its stops and a path through them in
// stop_order.
func (s *AdminService) CreateRoute(ctx context.Context, actor Actor, in CreateRouteInput) (*RouteView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if in.BusID == 0 || strings.TrimSpace(in.RouteName) == "" || in.StartTime == "" || in.EndTime == "" {
		return nil, validationf("bus_id, route_name, start_time and end_time are required")
	}

	stops := make([]models.Stop, 0, len(in.Stops))
	for _, st := range in.Stops {
		if strings.TrimSpace(st.Name) == "" {
			return nil, validationf("every stop needs a name")
		}
		stops = append(stops, models.Stop{
			Name:          st.Name,
			Lat:           st.Lat,
			Lng:           st.Lng,
			StopOrder:     st.StopOrder,
			EstimatedTime: st.EstimatedTime,
		})
	}

	ordered := make([]models.Stop, len(stops))
	copy(ordered, stops)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StopOrder < ordered[j].StopOrder })
	points := make([]geo.Point, 0, len(ordered))
	for _, st := range ordered {
		points = append(points, geo.Point{Lat: st.Lat, Lng: st.Lng})
	}
	line, err := geo.RouteLine(points)
	if err != nil {
		return nil, validationf("invalid stop coordinates: %v", err)
	}

	route := &models.Route{
		BusID:     in.BusID,
		RouteName: strings.TrimSpace(in.RouteName),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Geometry:  line,
		Stops:     stops,
	}
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetBus(ctx, in.BusID); err != nil {
			return missingAs(err, "bus")
		}
		return tx.CreateRoute(ctx, route)
	})
	if err != nil {
		return nil, err
	}
	if s.eta != nil {
		s.eta.InvalidateRoutes(in.BusID)
	}

	v := &RouteView{Route: *route}
	if path, err := geo.WKBToGeoJSON(line); err == nil && path != "" {
		v.Path = json.RawMessage(path)
	}
	logrus.WithFields(logrus.Fields{"route_id": route.ID, "bus_id": in.BusID, "stops": len(stops)}).Info("Route created.")
	return v, nil
}
