// Package async provides panic-safe background execution for fire-and-forget
// work such as deactivation notifications.
//
//	async.SafeGoDetached(r.Context(), 5*time.Second, "notify", func(ctx context.Context) error {
//		return publisher.Publish(ctx, msg)
//	})
//
// Tasks never propagate errors or panics to the caller; both are logged with
// the request-scoped logger found in the parent context.
package async
