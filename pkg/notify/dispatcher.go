package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/sitemgmt/pkg/async"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// DefaultTimeout bounds one delivery attempt
const DefaultTimeout = 5 * time.Second

// DeactivationMessage is the text sent when an admin is deactivated
func DeactivationMessage(email string) string {
	return fmt.Sprintf("Admin %s has been deleted", email)
}

// Dispatcher sends deactivation notices in the background. It implements
// directory.Notifier: each notice is attempted once, and failures are
// logged and counted but never reported to the caller.
type Dispatcher struct {
	publisher Publisher
	timeout   time.Duration
	metrics   *observability.Metrics
	wg        sync.WaitGroup
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithTimeout overrides DefaultTimeout
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMetrics counts deliveries
func WithMetrics(metrics *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates a Dispatcher delivering through publisher
func NewDispatcher(publisher Publisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AdminDeactivated queues the notice for email and returns immediately.
// The delivery keeps ctx's values but not its cancellation.
func (d *Dispatcher) AdminDeactivated(ctx context.Context, email string) {
	message := DeactivationMessage(email)
	name := d.publisher.Name()

	d.wg.Add(1)
	async.SafeGoDetached(ctx, d.timeout, "notify admin deactivation", func(ctx context.Context) error {
		defer d.wg.Done()

		if err := d.publisher.Publish(ctx, message); err != nil {
			d.metrics.RecordNotification(name, "failed")
			return fmt.Errorf("publish via %s: %w", name, err)
		}

		d.metrics.RecordNotification(name, "sent")
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"publisher": name,
			"email":     email,
		}).Info("Deactivation notice sent")
		return nil
	})
}

// Wait blocks until queued notices finish or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
