// Package notify delivers administrator deactivation notices.
//
// A Publisher sends one plain-text message over some channel: SESPublisher
// e-mails a fixed recipient list, RedisPublisher publishes on a pub/sub
// channel and LogPublisher only logs. Dispatcher adapts a Publisher to the
// directory's Notifier hook so that notices are sent after the deactivation
// has been committed, off the request path, with a single attempt:
//
//	dispatcher := notify.NewDispatcher(publisher, notify.WithTimeout(5*time.Second))
//	dir := directory.New(store, directory.WithNotifier(dispatcher))
//	...
//	_ = dispatcher.Wait(shutdownCtx)
package notify
