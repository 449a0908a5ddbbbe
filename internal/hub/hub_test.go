package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"shuttle_tracker/internal/events"
)

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case b := <-c.Messages():
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatal(err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Envelope{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Messages():
		t.Fatalf("unexpected frame %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocationRouting(t *testing.T) {
	h := New(nil)
	defer h.Close()

	all := NewClient(nil, 1, 0, false)
	bus2 := NewClient(nil, 2, 2, false)
	h.Register(all)
	h.Register(bus2)

	if err := h.PublishBusLocation(context.Background(), events.BusLocation{BusID: 1}); err != nil {
		t.Fatal(err)
	}
	if env := receive(t, all); env.Type != "bus_location" {
		t.Errorf("type = %q", env.Type)
	}
	expectNothing(t, bus2)

	_ = h.PublishBusLocation(context.Background(), events.BusLocation{BusID: 2})
	receive(t, all)
	receive(t, bus2)
}

func TestWaitRequestsOnlyReachOwningDriver(t *testing.T) {
	h := New(nil)
	defer h.Close()

	watcher := NewClient(nil, 1, 0, false)
	driver := NewClient(nil, 2, 0, true)
	otherDriver := NewClient(nil, 3, 0, true)
	h.Register(watcher)
	h.Register(driver)
	h.Register(otherDriver)

	driverID := uint(2)
	_ = h.PublishWaitRequest(context.Background(), events.WaitRequest{BusID: 5, DriverID: &driverID, Username: "student1"})

	if env := receive(t, driver); env.Type != "wait_request" {
		t.Errorf("type = %q", env.Type)
	}
	expectNothing(t, watcher)
	expectNothing(t, otherDriver)

	_ = h.PublishWaitRequest(context.Background(), events.WaitRequest{BusID: 5, Username: "student1"})
	expectNothing(t, driver)
}

func TestWaitRequestsFollowReassignedBus(t *testing.T) {
	h := New(nil)
	defer h.Close()

	oldDriver := NewClient(nil, 2, 0, true)
	newDriver := NewClient(nil, 3, 0, true)
	h.Register(oldDriver)
	h.Register(newDriver)

	// Bus 5 now belongs to user 3; both sockets were opened before the change.
	newOwner := uint(3)
	_ = h.PublishWaitRequest(context.Background(), events.WaitRequest{BusID: 5, DriverID: &newOwner})

	receive(t, newDriver)
	expectNothing(t, oldDriver)
}

func TestUnregisterClosesSend(t *testing.T) {
	h := New(nil)
	c := NewClient(nil, 1, 0, false)
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)

	if _, ok := <-c.Messages(); ok {
		t.Error("send channel should be closed")
	}
	h.Close()
	if err := h.PublishBusLocation(context.Background(), events.BusLocation{BusID: 1}); err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
