package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"shuttle_tracker/internal/metrics"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, to, body string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+": "+body)
	return "id", f.err
}

func TestDispatcherDelivers(t *testing.T) {
	m := metrics.NewCollector()
	s := &fakeSender{}
	d := NewDispatcher(s, time.Second, m)

	d.Notify("+1", "hello")
	d.Notify("", "skipped")
	d.Wait()

	if len(s.sent) != 1 || s.sent[0] != "+1: hello" {
		t.Errorf("sent = %v", s.sent)
	}
	if v := testutil.ToFloat64(m.NotificationsSent); v != 1 {
		t.Errorf("sent metric = %v", v)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	m := metrics.NewCollector()
	d := NewDispatcher(&fakeSender{err: errors.New("provider down")}, time.Second, m)
	d.Notify("+1", "hello")
	d.Wait()
	if v := testutil.ToFloat64(m.NotificationsFailed); v != 1 {
		t.Errorf("failed metric = %v", v)
	}
}

func TestDispatcherTimesOut(t *testing.T) {
	m := metrics.NewCollector()
	d := NewDispatcher(&fakeSender{block: make(chan struct{})}, 20*time.Millisecond, m)

	start := time.Now()
	d.Notify("+1", "slow")
	if time.Since(start) > 10*time.Millisecond {
		t.Error("Notify should return without waiting for delivery")
	}
	d.Wait()
	if v := testutil.ToFloat64(m.NotificationsFailed); v != 1 {
		t.Errorf("failed metric = %v", v)
	}
}

type fakeTwilio struct {
	params *twilioApi.CreateMessageParams
}

func (f *fakeTwilio) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSenderBuildsMessage(t *testing.T) {
	api := &fakeTwilio{}
	s := NewTwilioSenderWithAPI(api, "+1999")

	id, err := s.Send(context.Background(), "+1555", "Bus is waiting")
	if err != nil {
		t.Fatal(err)
	}
	if id != "SM123" {
		t.Errorf("id = %q", id)
	}
	if *api.params.To != "+1555" || *api.params.From != "+1999" || *api.params.Body != "Bus is waiting" {
		t.Errorf("params = to %q from %q body %q", *api.params.To, *api.params.From, *api.params.Body)
	}
}

func TestLogSenderReturnsID(t *testing.T) {
	id, err := LogSender{}.Send(context.Background(), "+1", "x")
	if err != nil || len(id) != 36 {
		t.Errorf("Send() = %q, %v", id, err)
	}
}
