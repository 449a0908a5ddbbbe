package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"shuttle_tracker/internal/models"
)

func newWaitService(fx *fixture) (*WaitRequestService, *fakeNotifier, *fakePublisher) {
	n := &fakeNotifier{}
	p := &fakePublisher{}
	return NewWaitRequestService(fx.store, n, p, nil), n, p
}

func TestCreateWaitRequestNotifiesDriver(t *testing.T) {
	fx := newFixture(t)
	svc, n, p := newWaitService(fx)

	req, err := svc.Create(context.Background(), actorOf(fx.student), CreateWaitRequestInput{
		BusID: fx.bus.ID, StopID: fx.stopB.ID, Message: "2 min away",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !req.Pending() {
		t.Errorf("new request status = %s", req.Status())
	}

	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("notifications = %+v", msgs)
	}
	want := "Wait request from student1 at PN pudur. Message: 2 min away"
	if msgs[0].to != "+1234567890" || msgs[0].body != want {
		t.Errorf("notification = %+v", msgs[0])
	}
	if len(p.waits) != 1 || p.waits[0].Status != models.WaitPending || p.waits[0].StopName != "PN pudur" {
		t.Errorf("published = %+v", p.waits)
	}
}

func TestCreateWaitRequestDuplicatePending(t *testing.T) {
	fx := newFixture(t)
	svc, _, _ := newWaitService(fx)
	ctx := context.Background()
	in := CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID}

	if _, err := svc.Create(ctx, actorOf(fx.student), in); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx, actorOf(fx.student), in)
	wantKind(t, err, KindConflict)

	// Another user is not blocked by the first user's request.
	if _, err := svc.Create(ctx, actorOf(fx.admin), in); err != nil {
		t.Fatalf("second user: %v", err)
	}
}

func TestCreateWaitRequestAfterResolution(t *testing.T) {
	fx := newFixture(t)
	svc, _, _ := newWaitService(fx)
	ctx := context.Background()
	in := CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID}

	first, err := svc.Create(ctx, actorOf(fx.student), in)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Respond(ctx, actorOf(fx.driver), first.ID, ResponseDecline); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, actorOf(fx.student), in); err != nil {
		t.Fatalf("new request after decline: %v", err)
	}
}

func TestCreateWaitRequestRejections(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	parked := models.Bus{BusNumber: "PARKED", IsActive: true}
	_ = fx.store.CreateBus(ctx, &parked)
	svc, n, _ := newWaitService(fx)

	cases := []struct {
		name string
		in   CreateWaitRequestInput
		kind Kind
	}{
		{"missing bus", CreateWaitRequestInput{StopID: fx.stopA.ID}, KindValidation},
		{"missing stop", CreateWaitRequestInput{BusID: fx.bus.ID}, KindValidation},
		{"long message", CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID, Message: strings.Repeat("x", 201)}, KindValidation},
		{"unknown bus", CreateWaitRequestInput{BusID: 999, StopID: fx.stopA.ID}, KindNotFound},
		{"unknown stop", CreateWaitRequestInput{BusID: fx.bus.ID, StopID: 999}, KindNotFound},
		{"no position", CreateWaitRequestInput{BusID: parked.ID, StopID: fx.stopA.ID}, KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, actorOf(fx.student), tc.in)
			wantKind(t, err, tc.kind)
		})
	}
	if len(n.messages()) != 0 {
		t.Errorf("rejected requests must not notify: %+v", n.messages())
	}

	exact := CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID, Message: strings.Repeat("é", 200)}
	if _, err := svc.Create(ctx, actorOf(fx.student), exact); err != nil {
		t.Errorf("200 character message rejected: %v", err)
	}
}

func TestCreateWaitRequestDriverWithoutPhone(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	bus := models.Bus{BusNumber: "BUS009", DriverID: &fx.idleDriver.ID, IsActive: true, CurrentLat: f64(40.7), CurrentLng: f64(-73.9)}
	_ = fx.store.CreateBus(ctx, &bus)
	svc, n, _ := newWaitService(fx)

	if _, err := svc.Create(ctx, actorOf(fx.student), CreateWaitRequestInput{BusID: bus.ID, StopID: fx.stopA.ID}); err != nil {
		t.Fatal(err)
	}
	if len(n.messages()) != 0 {
		t.Errorf("driver without phone must not be notified: %+v", n.messages())
	}
}

func TestListPendingForDriver(t *testing.T) {
	fx := newFixture(t)
	svc, _, _ := newWaitService(fx)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tick := base
	svc.now = func() time.Time { tick = tick.Add(time.Minute); return tick }

	if _, err := svc.Create(ctx, actorOf(fx.student), CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID, Message: "first"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, actorOf(fx.admin), CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopB.ID, Message: "second"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ListPendingForDriver(ctx, actorOf(fx.driver))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d pending", len(got))
	}
	if got[0].Message != "second" || got[0].User.Username != "admin" || got[0].Stop.Name != "PN pudur" {
		t.Errorf("newest = %+v", got[0])
	}

	empty, err := svc.ListPendingForDriver(ctx, actorOf(fx.idleDriver))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("driver without bus = %v, %v; want empty list", empty, err)
	}

	_, err = svc.ListPendingForDriver(ctx, actorOf(fx.student))
	wantKind(t, err, KindAuthorization)
}

func TestRespondWaitRequest(t *testing.T) {
	for _, tc := range []struct {
		response string
		ack, dec bool
		word     string
	}{
		{ResponseAcknowledge, true, false, "acknowledged"},
		{ResponseDecline, false, true, "declined"},
	} {
		t.Run(tc.response, func(t *testing.T) {
			fx := newFixture(t)
			svc, n, p := newWaitService(fx)
			ctx := context.Background()

			req, err := svc.Create(ctx, actorOf(fx.student), CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := svc.Respond(ctx, actorOf(fx.driver), req.ID, tc.response); err != nil {
				t.Fatal(err)
			}

			stored, _ := fx.store.GetWaitRequest(ctx, req.ID)
			if stored.Acknowledged != tc.ack || stored.Declined != tc.dec {
				t.Errorf("flags = ack %v dec %v", stored.Acknowledged, stored.Declined)
			}
			msgs := n.messages()
			last := msgs[len(msgs)-1]
			want := "Your wait request has been " + tc.word + " by the driver."
			if last.to != "+1234567891" || last.body != want {
				t.Errorf("notification = %+v", last)
			}
			if len(p.waits) != 2 || string(p.waits[1].Status) != tc.word {
				t.Errorf("published = %+v", p.waits)
			}

			_, err = svc.Respond(ctx, actorOf(fx.driver), req.ID, ResponseDecline)
			wantKind(t, err, KindConflict)
			stored, _ = fx.store.GetWaitRequest(ctx, req.ID)
			if stored.Acknowledged && stored.Declined {
				t.Error("both flags set after second response")
			}
		})
	}
}

func TestRespondWaitRequestRejections(t *testing.T) {
	fx := newFixture(t)
	svc, _, _ := newWaitService(fx)
	ctx := context.Background()
	req, err := svc.Create(ctx, actorOf(fx.student), CreateWaitRequestInput{BusID: fx.bus.ID, StopID: fx.stopA.ID})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		actor    Actor
		id       uint
		response string
		kind     Kind
	}{
		{"student", actorOf(fx.student), req.ID, ResponseAcknowledge, KindAuthorization},
		{"other driver valid", actorOf(fx.idleDriver), req.ID, ResponseAcknowledge, KindAuthorization},
		{"other driver invalid", actorOf(fx.idleDriver), req.ID, "maybe", KindAuthorization},
		{"missing id", actorOf(fx.driver), 0, ResponseAcknowledge, KindValidation},
		{"missing response", actorOf(fx.driver), req.ID, "", KindValidation},
		{"unknown request", actorOf(fx.driver), 999, ResponseAcknowledge, KindNotFound},
		{"bad response", actorOf(fx.driver), req.ID, "maybe", KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Respond(ctx, tc.actor, tc.id, tc.response)
			wantKind(t, err, tc.kind)
		})
	}

	stored, _ := fx.store.GetWaitRequest(ctx, req.ID)
	if !stored.Pending() {
		t.Errorf("rejected responses changed status to %s", stored.Status())
	}
}
