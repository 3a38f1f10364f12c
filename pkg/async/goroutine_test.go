package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// syncBuffer guards a bytes.Buffer shared with background goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func loggerCtx(out *syncBuffer) context.Context {
	return observability.WithLogger(context.Background(), observability.NewLogger(observability.DebugLevel, out))
}

func TestSafeGo_Success(t *testing.T) {
	var executed atomic.Bool

	waitDone(t, SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	assert.True(t, executed.Load())
}

func TestSafeGo_ErrorIsLogged(t *testing.T) {
	out := &syncBuffer{}

	waitDone(t, SafeGo(loggerCtx(out), time.Second, "failing task", func(ctx context.Context) error {
		return errors.New("boom")
	}))

	logged := out.String()
	assert.Contains(t, logged, "Background task failed")
	assert.Contains(t, logged, "failing task")
	assert.Contains(t, logged, "boom")
}

func TestSafeGo_PanicIsRecovered(t *testing.T) {
	out := &syncBuffer{}

	waitDone(t, SafeGo(loggerCtx(out), time.Second, "panicking task", func(ctx context.Context) error {
		panic("kaboom")
	}))

	assert.True(t, strings.Contains(out.String(), "kaboom"))
}

func TestSafeGo_Timeout(t *testing.T) {
	var sawDeadline atomic.Bool

	waitDone(t, SafeGo(context.Background(), 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}))

	assert.True(t, sawDeadline.Load())
}

func TestSafeGoDetached_IgnoresParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	var ctxErr atomic.Value
	waitDone(t, SafeGoDetached(parent, time.Second, "detached", func(ctx context.Context) error {
		ctxErr.Store(fmtErr(ctx.Err()))
		return nil
	}))

	require.Equal(t, "<nil>", ctxErr.Load())
}

func fmtErr(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
