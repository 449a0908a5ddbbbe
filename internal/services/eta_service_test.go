package services

import (
	"context"
	"testing"
	"time"

	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/models"
)

func TestGetETA(t *testing.T) {
	fx := newFixture(t)
	svc := NewETAService(fx.store, geo.DefaultSpeedMps, 0, 0)
	ctx := context.Background()

	eta, err := svc.GetETA(ctx, fx.bus.ID, fx.stopB.ID)
	if err != nil {
		t.Fatal(err)
	}
	if eta == nil || *eta != 1 {
		t.Errorf("eta = %v, want 1", eta)
	}

	eta, err = svc.GetETA(ctx, fx.bus.ID, fx.stopA.ID)
	if err != nil || eta == nil || *eta != 0 {
		t.Errorf("eta at the stop = %v, %v; want 0", eta, err)
	}

	_, err = svc.GetETA(ctx, 999, fx.stopA.ID)
	wantKind(t, err, KindNotFound)
	_, err = svc.GetETA(ctx, fx.bus.ID, 999)
	wantKind(t, err, KindNotFound)

	parked := models.Bus{BusNumber: "PARKED", IsActive: true}
	_ = fx.store.CreateBus(ctx, &parked)
	eta, err = svc.GetETA(ctx, parked.ID, fx.stopA.ID)
	if err != nil || eta != nil {
		t.Errorf("no position = %v, %v; want nil, nil", eta, err)
	}
}

func TestGetETAWithZeroSpeed(t *testing.T) {
	fx := newFixture(t)
	eta, err := NewETAService(fx.store, 0, 0, 0).GetETA(context.Background(), fx.bus.ID, fx.stopB.ID)
	if err != nil || eta != nil {
		t.Errorf("eta = %v, %v; want nil", eta, err)
	}
}

func TestGetRouteStops(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	second := models.Route{BusID: fx.bus.ID, RouteName: "Evening", StartTime: "17:00", EndTime: "19:00", Stops: []models.Stop{
		{Name: "Z", Lat: 40.7282, Lng: -74.0776, StopOrder: 4},
		{Name: "Y", Lat: 40.7282, Lng: -74.0776, StopOrder: 4},
		{Name: "X", Lat: 40.7505, Lng: -73.9934, StopOrder: 3},
	}}
	_ = fx.store.CreateRoute(ctx, &second)

	svc := NewETAService(fx.store, geo.DefaultSpeedMps, 16, time.Minute)
	stops, err := svc.GetRouteStops(ctx, fx.bus.ID)
	if err != nil {
		t.Fatal(err)
	}
	var names string
	for _, st := range stops {
		names += st.Name + ","
		if st.ETA == nil {
			t.Errorf("stop %s has no eta", st.Name)
		}
	}
	if names != "Vadavalli,PN pudur,X,Z,Y," {
		t.Errorf("order = %s", names)
	}

	_, err = svc.GetRouteStops(ctx, 999)
	wantKind(t, err, KindNotFound)
}

func TestGetRouteStopsWithoutPosition(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	parked := models.Bus{BusNumber: "PARKED", IsActive: true}
	_ = fx.store.CreateBus(ctx, &parked)
	r := models.Route{BusID: parked.ID, RouteName: "r", StartTime: "a", EndTime: "b", Stops: []models.Stop{{Name: "s", StopOrder: 1}}}
	_ = fx.store.CreateRoute(ctx, &r)

	stops, err := NewETAService(fx.store, geo.DefaultSpeedMps, 0, 0).GetRouteStops(ctx, parked.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stops) != 1 || stops[0].ETA != nil {
		t.Errorf("stops = %+v", stops)
	}
}

func TestRouteStopCacheInvalidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	svc := NewETAService(fx.store, geo.DefaultSpeedMps, 16, time.Hour)

	before, _ := svc.GetRouteStops(ctx, fx.bus.ID)
	extra := models.Route{BusID: fx.bus.ID, RouteName: "extra", StartTime: "a", EndTime: "b", Stops: []models.Stop{{Name: "new", StopOrder: 1}}}
	_ = fx.store.CreateRoute(ctx, &extra)

	cached, _ := svc.GetRouteStops(ctx, fx.bus.ID)
	if len(cached) != len(before) {
		t.Errorf("cache should serve the old stop list, got %d stops", len(cached))
	}
	svc.InvalidateRoutes(fx.bus.ID)
	fresh, _ := svc.GetRouteStops(ctx, fx.bus.ID)
	if len(fresh) != len(before)+1 {
		t.Errorf("after invalidation got %d stops, want %d", len(fresh), len(before)+1)
	}
}
