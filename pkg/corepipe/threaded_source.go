package corepipe

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ThreadedSource is the substrate that bridges a SourceDriver's own
// blocking I/O loop (running on its own goroutine) with the cooperative
// pipe graph: it owns the WakeupCondition window, binds an AckRecord to
// every message so downstream Ack() calls eventually replenish the
// driver's send window, and forwards each message into the source's
// Multiplexer.
//
// This mirrors the driver-thread / main-loop split threaded log sources
// use: the driver thread never touches Pipe state directly, it only ever
// posts completed messages across the handoff channel.
type ThreadedSource struct {
	name   string
	driver SourceDriver
	gate   *WakeupCondition
	next   Pipe
	logger *logrus.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewThreadedSource constructs a ThreadedSource with a send window of
// windowSize credits (§6 log_iw_size).
func NewThreadedSource(name string, driver SourceDriver, windowSize int, next Pipe, logger *logrus.Logger) *ThreadedSource {
	return &ThreadedSource{
		name:   name,
		driver: driver,
		gate:   NewWakeupCondition(windowSize),
		next:   next,
		logger: logger,
	}
}

// Start launches the driver's I/O loop and the forwarding goroutine that
// drains it into the pipe graph. It returns once the driver's channel is
// open; the forwarding loop runs until ctx is cancelled or the driver's
// channel closes.
func (t *ThreadedSource) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	ch, err := t.driver.Open(runCtx)
	if err != nil {
		cancel()
		return err
	}

	t.wg.Add(1)
	go t.loop(runCtx, ch)
	return nil
}

func (t *ThreadedSource) loop(ctx context.Context, ch <-chan *Message) {
	defer t.wg.Done()
	for {
		if !t.gate.Suspend() {
			return
		}
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.dispatch(msg)
		case <-ctx.Done():
			return
		}
	}
}

// dispatch binds the ack record and queues msg onto the source's fan-out
// pipe. A nil next drops the message immediately (no downstream wired).
func (t *ThreadedSource) dispatch(msg *Message) {
	rec := NewAckRecord(t.gate)
	msg.BindAckRecord(rec)
	SourceWindowCredits.WithLabelValues(t.name).Set(float64(t.gate.Credits()))

	if t.next == nil {
		msg.Unref()
		return
	}
	po := PathOptions{AckNeeded: true}
	if err := t.next.Queue(msg, po); err != nil && t.logger != nil {
		t.logger.WithFields(logrus.Fields{"source": t.name, "error": err}).Error("source queue failed")
	}
}

// Stop cancels the driver's loop and waits for the forwarding goroutine to
// exit, then closes the driver.
func (t *ThreadedSource) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.gate.RequestExit()
	t.wg.Wait()
	return t.driver.Close()
}
