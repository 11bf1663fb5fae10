package corepipe

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// pending couples a queued message with the PathOptions its Ack() call
// needs (specifically AckNeeded, since a destination past a
// HARD_FLOW_CONTROL barrier might be asked to skip acking until flush).
type pending struct {
	msg *Message
	po  PathOptions
}

// ThreadedDestination is the batching/retry wrapper around a
// DestinationDriver: it accumulates messages up to batchBytes or until
// flushTimeout elapses, calls Flush, and interprets the FlushResult to
// decide whether to ack-and-advance, retry after timeReopen, back off
// (FlushThrottled), or route to the dead-letter sink (FlushPermanent).
type ThreadedDestination struct {
	name         string
	driver       DestinationDriver
	batchBytes   int
	flushTimeout time.Duration
	timeReopen   time.Duration
	deadLetter   func(msg *Message, reason error)

	queue  chan pending
	logger *logrus.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewThreadedDestination constructs a ThreadedDestination with the given
// batch and retry knobs (§6 flush_lines / flush_timeout / time_reopen,
// reinterpreted here in bytes and durations).
func NewThreadedDestination(name string, driver DestinationDriver, queueSize, batchBytes int, flushTimeout, timeReopen time.Duration, deadLetter func(*Message, error), logger *logrus.Logger) *ThreadedDestination {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &ThreadedDestination{
		name:         name,
		driver:       driver,
		batchBytes:   batchBytes,
		flushTimeout: flushTimeout,
		timeReopen:   timeReopen,
		deadLetter:   deadLetter,
		queue:        make(chan pending, queueSize),
		logger:       logger,
	}
}

// Start launches the batching goroutine.
func (t *ThreadedDestination) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.wg.Add(1)
	go t.loop(runCtx)
}

// Enqueue hands a message to the destination's batching loop. It never
// blocks the caller longer than the queue's capacity allows; callers
// should size QueueSize to the upstream window.
func (t *ThreadedDestination) Enqueue(msg *Message, po PathOptions) {
	t.queue <- pending{msg: msg, po: po}
}

func (t *ThreadedDestination) loop(ctx context.Context) {
	defer t.wg.Done()

	timer := time.NewTimer(t.flushTimeout)
	defer timer.Stop()

	var batch []pending
	var batchSize int

	flush := func() {
		if len(batch) == 0 {
			return
		}
		t.sendBatch(ctx, batch)
		batch = nil
		batchSize = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case p, ok := <-t.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, p)
			batchSize += len(p.msg.id)
			if batchSize >= t.batchBytes {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(t.flushTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(t.flushTimeout)
		}
	}
}

// sendBatch pushes every pending message through the driver, flushes, and
// resolves each message's ack according to the FlushResult. A retryable or
// throttled result re-enqueues the whole batch after a backoff instead of
// acking, so the source's window stays closed on that data until the
// destination recovers.
func (t *ThreadedDestination) sendBatch(ctx context.Context, batch []pending) {
	for _, p := range batch {
		if err := t.driver.Send(ctx, p.msg, FlushBuffered); err != nil {
			t.resolve(p, FlushRetryable, err)
		}
	}

	result := t.driver.Flush(ctx)
	for _, p := range batch {
		t.resolve(p, result, nil)
	}

	switch result {
	case FlushRetryable:
		t.backoffThenRetry(ctx, batch, t.timeReopen)
	case FlushThrottled:
		t.backoffThenRetry(ctx, batch, t.timeReopen/4+time.Millisecond)
	}
}

func (t *ThreadedDestination) resolve(p pending, result FlushResult, sendErr error) {
	switch result {
	case FlushOK:
		p.msg.Ack(&p.po)
	case FlushPermanent:
		if t.deadLetter != nil {
			reason := sendErr
			if reason == nil {
				reason = &FlushError{Destination: t.name}
			}
			t.deadLetter(p.msg.Ref(), reason)
		}
		p.msg.Ack(&p.po)
	default:
		// FlushRetryable / FlushThrottled: deliberately not acked here.
		// sendBatch schedules a retry that will call resolve again.
	}
}

func (t *ThreadedDestination) backoffThenRetry(ctx context.Context, batch []pending, delay time.Duration) {
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		for _, p := range batch {
			p.msg.Unref()
		}
		return
	}
	t.sendBatch(ctx, batch)
}

// Stop closes the queue and waits for the batching loop to drain.
func (t *ThreadedDestination) Stop() error {
	close(t.queue)
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	return t.driver.Close()
}

// DestinationPipe is the Pipe adapter that hands messages from the graph
// to a ThreadedDestination. It is always a terminal node (Next is never
// set): Queue enqueues and returns immediately, the ack happens later on
// the batching goroutine.
type DestinationPipe struct {
	BasePipe
	dest *ThreadedDestination
}

// NewDestinationPipe constructs a terminal Pipe over dest.
func NewDestinationPipe(name string, dest *ThreadedDestination, logger *logrus.Logger) *DestinationPipe {
	return &DestinationPipe{BasePipe: NewBasePipe(name, logger), dest: dest}
}

func (d *DestinationPipe) Init() error {
	d.SetFlags(d.Flags().Set(FlagInitialized))
	return nil
}

func (d *DestinationPipe) Deinit() error {
	d.SetFlags(d.Flags().Clear(FlagInitialized))
	return nil
}

func (d *DestinationPipe) Ref() Pipe {
	d.BasePipe.Ref()
	return d
}

func (d *DestinationPipe) Clone() Pipe {
	return &DestinationPipe{BasePipe: NewBasePipe(d.Name(), d.logger), dest: d.dest}
}

func (d *DestinationPipe) Queue(msg *Message, po PathOptions) error {
	d.dest.Enqueue(msg, po)
	return nil
}
