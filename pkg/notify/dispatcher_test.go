package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []string
	err      error
	block    bool
	deadline bool
}

func (p *fakePublisher) Name() string { return "fake" }

func (p *fakePublisher) Publish(ctx context.Context, message string) error {
	if p.block {
		<-ctx.Done()
		p.mu.Lock()
		_, p.deadline = ctx.Deadline()
		p.mu.Unlock()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return p.err
}

func (p *fakePublisher) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

func quietContext() context.Context {
	return observability.WithLogger(context.Background(), observability.NewNopLogger())
}

func waitDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDeactivationMessage(t *testing.T) {
	assert.Equal(t, "Admin bob@example.com has been deleted", DeactivationMessage("bob@example.com"))
}

func TestDispatcher_Sends(t *testing.T) {
	pub := &fakePublisher{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(pub, WithMetrics(metrics))

	d.AdminDeactivated(quietContext(), "bob@example.com")
	waitDispatcher(t, d)

	assert.Equal(t, []string{"Admin bob@example.com has been deleted"}, pub.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("fake", "sent")))
}

func TestDispatcher_FailureIsCountedNotReturned(t *testing.T) {
	pub := &fakePublisher{err: errors.New("throttled")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(pub, WithMetrics(metrics))

	d.AdminDeactivated(quietContext(), "bob@example.com")
	waitDispatcher(t, d)

	assert.Len(t, pub.sent(), 1, "exactly one attempt")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("fake", "failed")))
}

func TestDispatcher_SurvivesRequestCancellation(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub)

	ctx, cancel := context.WithCancel(quietContext())
	cancel()
	d.AdminDeactivated(ctx, "bob@example.com")
	waitDispatcher(t, d)

	assert.Len(t, pub.sent(), 1)
}

func TestDispatcher_Timeout(t *testing.T) {
	pub := &fakePublisher{block: true}
	d := NewDispatcher(pub, WithTimeout(20*time.Millisecond))

	d.AdminDeactivated(quietContext(), "bob@example.com")
	waitDispatcher(t, d)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.True(t, pub.deadline)
}

func TestDispatcher_WaitHonoursContext(t *testing.T) {
	pub := &fakePublisher{block: true}
	d := NewDispatcher(pub, WithTimeout(time.Second))
	d.AdminDeactivated(quietContext(), "bob@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	waitDispatcher(t, d)
}

func TestDispatcher_FailingPublisherDoesNotChangeDeactivate(t *testing.T) {
	pub := &fakePublisher{err: errors.New("ses down")}
	d := NewDispatcher(pub)
	dir := directory.New(directory.NewMemoryStore(), directory.WithNotifier(d))
	ctx := quietContext()

	_, _, err := dir.CreateOrReactivate(ctx, "bob@example.com")
	require.NoError(t, err)

	result, err := dir.Deactivate(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, directory.Deactivated, result)

	waitDispatcher(t, d)
	assert.Equal(t, []string{"Admin bob@example.com has been deleted"}, pub.sent())

	_, err = dir.Lookup(ctx, "bob@example.com")
	assert.ErrorIs(t, err, directory.ErrInactive)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(observability.NewNopLogger())
	assert.Equal(t, "log", p.Name())
	assert.NoError(t, p.Publish(context.Background(), "hello"))
}
