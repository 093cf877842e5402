package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/travel-booking/internal/logger"
	"github.com/iliyamo/travel-booking/internal/metrics"
	"github.com/iliyamo/travel-booking/internal/queue"
)

// Notifier delivers customer notifications.  queue.Publisher implements it.
type Notifier interface {
	SendEvent(ctx context.Context, ev queue.Event) error
}

// Dispatcher sends notifications after the owning transaction has
// committed.  Delivery runs in the background and its failure never
// affects the operation that triggered it.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher returns a Dispatcher.  A nil notifier disables delivery.
func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: n, timeout: timeout}
}

// Dispatch queues ev for delivery.  It is safe on a nil Dispatcher.
func (d *Dispatcher) Dispatch(ev queue.Event) {
	if d == nil || d.notifier == nil {
		return
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("notify %s: panic: %v", ev.Kind, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		err := d.notifier.SendEvent(ctx, ev)
		metrics.RecordNotification(ev.Kind, err)
		if err != nil {
			logger.Errorf("notify %s booking=%d application=%d: %v", ev.Kind, ev.BookingID, ev.ApplicationID, err)
		}
	}()
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
