package corepipe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeSourceDriver emits a fixed number of messages then closes its
// channel, simulating a finite log source for test purposes.
type fakeSourceDriver struct {
	count  int
	closed chan struct{}
}

func (f *fakeSourceDriver) Name() string { return "fake" }

func (f *fakeSourceDriver) Open(ctx context.Context) (<-chan *Message, error) {
	out := make(chan *Message)
	go func() {
		defer close(out)
		for i := 0; i < f.count; i++ {
			select {
			case out <- NewEmptyMessage():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeSourceDriver) Close() error {
	if f.closed != nil {
		close(f.closed)
	}
	return nil
}

func TestThreadedSource_DeliversAllMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newSinkPipe()
	driver := &fakeSourceDriver{count: 5, closed: make(chan struct{})}
	ts := NewThreadedSource("test", driver, 5, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ts.Start(ctx))

	require.Eventually(t, func() bool {
		return len(sink.received) == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, ts.Stop())
}

func TestThreadedSource_StopIsIdempotentSafe(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newSinkPipe()
	driver := &fakeSourceDriver{count: 0, closed: make(chan struct{})}
	ts := NewThreadedSource("test", driver, 1, sink, nil)

	ctx := context.Background()
	require.NoError(t, ts.Start(ctx))
	require.NoError(t, ts.Stop())
}
