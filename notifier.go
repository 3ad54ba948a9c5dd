package tenauth

import (
	"context"
	"sync"

	"github.com/tenantkit/tenauth/internal/logging"
)

// notifyDispatcher delivers notifications off the request path. Delivery
// failures are logged and counted, never returned to callers.
type notifyDispatcher struct {
	notifier Notifier
	logger   logging.Logger
	metrics  *Metrics

	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newNotifyDispatcher(notifier Notifier, buffer int, logger logging.Logger, metrics *Metrics) *notifyDispatcher {
	if notifier == nil {
		return nil
	}
	if buffer <= 0 {
		buffer = 1
	}

	d := &notifyDispatcher{
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		ch:       make(chan Notification, buffer),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(n Notification) {
	if err := d.notifier.Send(context.Background(), n); err != nil {
		d.logger.Warn(context.Background(), "notification delivery failed",
			"kind", string(n.Kind), "recipient", n.Recipient, "error", err)
	}
}

// send queues a notification. A full queue drops it and bumps the counter.
func (d *notifyDispatcher) send(n Notification) {
	if d == nil {
		return
	}
	select {
	case d.ch <- n:
	case <-d.done:
	default:
		d.metrics.Inc(MetricNotifyDropped)
		d.logger.Warn(context.Background(), "notification queue full, dropping",
			"kind", string(n.Kind), "recipient", n.Recipient)
	}
}

func (d *notifyDispatcher) close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
