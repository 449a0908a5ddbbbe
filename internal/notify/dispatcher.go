package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/metrics"
)

// Notifier accepts a notification and returns immediately.
type Notifier interface {
	Notify(to, body string)
}

// Dispatcher sends each notification on its own goroutine with its own
// timeout. Failures are logged and dropped.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	metrics *metrics.Collector
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, timeout time.Duration, m *metrics.Collector) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, metrics: m}
}

func (d *Dispatcher) Notify(to, body string) {
	if to == "" {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("Notification sender panicked.")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		id, err := d.sender.Send(ctx, to, body)
		if err != nil {
			if d.metrics != nil {
				d.metrics.NotificationsFailed.Inc()
			}
			logrus.WithError(err).WithField("to", to).Warn("Failed to send notification.")
			return
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.Inc()
		}
		logrus.WithFields(logrus.Fields{"to": to, "message_id": id}).Debug("Notification sent.")
	}()
}

// Wait blocks until every in-flight notification has finished. Used on
// shutdown and in tests.
func (d *Dispatcher) Wait() { d.wg.Wait() }
