package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/metrics"
)

const (
	kafkaQueueSize    = 256
	kafkaWriteTimeout = 2 * time.Second
)

var (
	// ErrQueueFull is returned when the Kafka backlog cannot take another event.
	ErrQueueFull = errors.New("kafka publish queue full")
	ErrClosed    = errors.New("publisher closed")
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic, keyed by bus id so a bus's
// events stay ordered within a partition. The event type travels in a header.
// Publish calls only enqueue; a single goroutine does the broker writes, so
// a slow or unreachable broker never holds up the caller.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	metrics *metrics.Collector

	mu     sync.Mutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, m *metrics.Collector) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(w, m)
}

func NewKafkaPublisherWithWriter(w MessageWriter, m *metrics.Collector) *KafkaPublisher {
	return newKafkaPublisher(w, m, kafkaWriteTimeout)
}

func newKafkaPublisher(w MessageWriter, m *metrics.Collector, timeout time.Duration) *KafkaPublisher {
	k := &KafkaPublisher{
		writer:  w,
		timeout: timeout,
		metrics: m,
		queue:   make(chan kafka.Message, kafkaQueueSize),
		done:    make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *KafkaPublisher) PublishBusLocation(_ context.Context, ev BusLocation) error {
	return k.enqueue("bus.location", ev.BusID, ev)
}

func (k *KafkaPublisher) PublishWaitRequest(_ context.Context, ev WaitRequest) error {
	return k.enqueue("bus.wait_request", ev.BusID, ev)
}

func (k *KafkaPublisher) enqueue(kind string, busID uint, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(strconv.FormatUint(uint64(busID), 10)),
		Value:   b,
		Headers: []kafka.Header{{Key: "event", Value: []byte(kind)}},
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	select {
	case k.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (k *KafkaPublisher) run() {
	defer close(k.done)
	for msg := range k.queue {
		ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
		err := k.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			// Enqueue already counted the event as published; the broker
			// failure is counted separately here.
			k.metrics.PublishResult("kafka_write", err)
			logrus.WithError(err).WithField("key", string(msg.Key)).Warn("Kafka write failed; event dropped.")
		}
	}
}

// Close stops accepting events, flushes the backlog and closes the writer.
func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.queue)
	k.mu.Unlock()
	<-k.done
	return k.writer.Close()
}
