package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/models"
)

// PasswordHasher turns a plaintext password into the stored hash.
type PasswordHasher func(plain string) (string, error)

type seedUser struct {
	username, email, password, phone string
	role                             models.Role
}

var sampleUsers = []seedUser{
	{"admin", "admin@college.edu", "admin123", "", models.RoleAdmin},
	{"driver1", "driver1@college.edu", "driver123", "+1234567890", models.RoleDriver},
	{"student1", "student1@college.edu", "student123", "+1234567891", models.RoleStudent},
}

func sampleStops() []models.Stop {
	return []models.Stop{
		{Name: "Vadavalli", Lat: 40.7589, Lng: -73.9851, StopOrder: 1, EstimatedTime: "08:00"},
		{Name: "PN pudur", Lat: 40.7614, Lng: -73.9776, StopOrder: 2, EstimatedTime: "08:10"},
		{Name: "Edarpalayam", Lat: 40.7505, Lng: -73.9934, StopOrder: 3, EstimatedTime: "08:20"},
		{Name: "Goundapalayam", Lat: 40.7282, Lng: -74.0776, StopOrder: 4, EstimatedTime: "08:30"},
		{Name: "Thudiyalore", Lat: 40.7282, Lng: -74.0776, StopOrder: 4, EstimatedTime: "08:40"},
		{Name: "Kgisl Campus", Lat: 40.7282, Lng: -74.0776, StopOrder: 4, EstimatedTime: "08:50"},
	}
}

// Seed loads the demo users, bus, route and stops into an empty store. It
// reports false without writing anything when users already exist.
func Seed(ctx context.Context, s Store, hash PasswordHasher) (bool, error) {
	count, err := s.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	err = s.WithTx(ctx, func(tx Store) error {
		var driverID uint
		for _, su := range sampleUsers {
			hashed, err := hash(su.password)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", su.username, err)
			}
			u := &models.User{Username: su.username, Email: su.email, Password: hashed, Phone: su.phone, Role: su.role}
			if err := tx.CreateUser(ctx, u); err != nil {
				return fmt.Errorf("create user %s: %w", su.username, err)
			}
			if su.role == models.RoleDriver {
				driverID = u.ID
			}
		}

		lat, lng := 40.7589, -73.9851
		bus := &models.Bus{BusNumber: "BUS001", DriverID: &driverID, CurrentLat: &lat, CurrentLng: &lng, IsActive: true}
		if err := tx.CreateBus(ctx, bus); err != nil {
			return fmt.Errorf("create bus: %w", err)
		}

		stops := sampleStops()
		points := make([]geo.Point, 0, len(stops))
		for _, st := range stops {
			points = append(points, geo.Point{Lat: st.Lat, Lng: st.Lng})
		}
		line, err := geo.RouteLine(points)
		if err != nil {
			return fmt.Errorf("build route geometry: %w", err)
		}
		route := &models.Route{
			BusID:     bus.ID,
			RouteName: "Vadavalli to KGISL Campus",
			StartTime: "08:00",
			EndTime:   "18:00",
			Geometry:  line,
			Stops:     stops,
		}
		if err := tx.CreateRoute(ctx, route); err != nil {
			return fmt.Errorf("create route: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	logrus.Info("Sample data seeded.")
	return true, nil
}
