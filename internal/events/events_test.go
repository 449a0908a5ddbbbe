package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
)

type recordingPublisher struct {
	locations []BusLocation
	waits     []WaitRequest
	err       error
}

func (r *recordingPublisher) PublishBusLocation(_ context.Context, ev BusLocation) error {
	r.locations = append(r.locations, ev)
	return r.err
}

func (r *recordingPublisher) PublishWaitRequest(_ context.Context, ev WaitRequest) error {
	r.waits = append(r.waits, ev)
	return r.err
}

func TestMultiPublishesToEverySink(t *testing.T) {
	m := metrics.NewCollector()
	good := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("down")}
	multi := NewMulti(m).Add("hub", good).Add("kafka", bad).Add("none", nil)

	if multi.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", multi.Len())
	}
	err := multi.PublishBusLocation(context.Background(), BusLocation{BusID: 1})
	if err == nil {
		t.Fatal("expected joined error from failing sink")
	}
	if len(good.locations) != 1 || len(bad.locations) != 1 {
		t.Errorf("sinks saw %d and %d events", len(good.locations), len(bad.locations))
	}
	if v := testutil.ToFloat64(m.EventPublishErrors.WithLabelValues("kafka")); v != 1 {
		t.Errorf("kafka errors = %v", v)
	}
	if v := testutil.ToFloat64(m.EventsPublished.WithLabelValues("hub")); v != 1 {
		t.Errorf("hub published = %v", v)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByBus(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w, nil)

	ev := WaitRequest{RequestID: 9, BusID: 42, Status: models.WaitPending, Timestamp: time.Unix(0, 0).UTC()}
	if err := p.PublishWaitRequest(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("got %d messages", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "42" {
		t.Errorf("key = %q, want 42", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "bus.wait_request" {
		t.Errorf("headers = %+v", msg.Headers)
	}
	var decoded WaitRequest
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RequestID != 9 || decoded.Status != models.WaitPending {
		t.Errorf("decoded = %+v", decoded)
	}
	if err := p.PublishBusLocation(context.Background(), BusLocation{BusID: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close = %v, want ErrClosed", err)
	}
}

// stuckWriter blocks every write until its context expires, like a broker
// that accepts connections but never answers.
type stuckWriter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStuckWriter() *stuckWriter {
	return &stuckWriter{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *stuckWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.release:
		return errors.New("released")
	}
}

func (s *stuckWriter) Close() error { return nil }

func TestKafkaPublisherDoesNotBlockOnStuckBroker(t *testing.T) {
	m := metrics.NewCollector()
	w := newStuckWriter()
	p := newKafkaPublisher(w, m, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := p.PublishBusLocation(context.Background(), BusLocation{BusID: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("publishing took %v with a stuck broker", elapsed)
	}

	<-w.started
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(m.EventPublishErrors.WithLabelValues("kafka_write")); v != 5 {
		t.Errorf("kafka write errors = %v, want 5", v)
	}
}

func TestKafkaPublisherReportsFullQueue(t *testing.T) {
	w := newStuckWriter()
	p := newKafkaPublisher(w, nil, time.Hour)
	defer func() {
		close(w.release)
		_ = p.Close()
	}()

	var err error
	for i := 0; i < kafkaQueueSize+2 && err == nil; i++ {
		err = p.PublishBusLocation(context.Background(), BusLocation{BusID: 1})
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

type fakeConn struct {
	subjects []string
}

func (f *fakeConn) Publish(subject string, _ []byte) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func TestNATSPublisherSubjects(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisherWithConn(conn, "campus shuttle")

	_ = p.PublishBusLocation(context.Background(), BusLocation{BusID: 3})
	_ = p.PublishWaitRequest(context.Background(), WaitRequest{BusID: 3})

	want := []string{"campus_shuttle.bus.3.location", "campus_shuttle.bus.3.wait_request"}
	if len(conn.subjects) != len(want) {
		t.Fatalf("subjects = %v", conn.subjects)
	}
	for i := range want {
		if conn.subjects[i] != want[i] {
			t.Errorf("subject[%d] = %q, want %q", i, conn.subjects[i], want[i])
		}
	}
}
