package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// SafeGo executes fn in a goroutine with:
// - a timeout derived from parentCtx
// - panic recovery
// - error logging through the logger carried by parentCtx
//
// The returned channel is closed once fn has returned or panicked. Callers
// that fire and forget may ignore it.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "notify deactivation", func(ctx context.Context) error {
//	    return publisher.Publish(ctx, msg)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	logger := observability.FromContext(parentCtx).WithField("task", taskName)

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", fmt.Sprint(r)).
					WithField("stack", string(debug.Stack())).
					Error("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("Background task failed")
		}
	}()

	return done
}

// SafeGoDetached is SafeGo for work that must outlive the request that
// started it. The task keeps the values of parentCtx (logger, request id,
// trace) but ignores its cancellation; only the timeout bounds it.
func SafeGoDetached(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	return SafeGo(context.WithoutCancel(parentCtx), timeout, taskName, fn)
}
