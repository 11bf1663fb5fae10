package corepipe

import "sync"

// WakeupCondition is the mutex+condvar+bool pairing a ThreadedSource uses to
// suspend its blocking run loop when its window is exhausted, and that the
// main loop signals when a credit is returned. The free-to-send check and
// the wait must happen under the same lock as the corresponding wakeup, or a
// release between the check and the wait is lost forever; every method here
// takes and releases that single lock internally to preserve that ordering.
type WakeupCondition struct {
	mu            sync.Mutex
	cond          *sync.Cond
	credits       int
	maxCredits    int
	awoken        bool
	exitRequested bool
}

// NewWakeupCondition creates a window of the given size, fully credited.
func NewWakeupCondition(windowSize int) *WakeupCondition {
	if windowSize <= 0 {
		windowSize = 1
	}
	w := &WakeupCondition{credits: windowSize, maxCredits: windowSize}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *WakeupCondition) freeToSendLocked() bool { return w.credits > 0 }

// Suspend blocks the caller until a credit is available, a wakeup is
// delivered, or exit is requested. It returns false only on exit.
func (w *WakeupCondition) Suspend() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.freeToSendLocked() && !w.awoken && !w.exitRequested {
		w.cond.Wait()
	}
	w.awoken = false
	if w.exitRequested && !w.freeToSendLocked() {
		return false
	}
	w.credits--
	return true
}

// Wakeup restores one credit (capped at the window size) and signals any
// waiter. Called from the main loop when a message is fully acked.
func (w *WakeupCondition) Wakeup() {
	w.mu.Lock()
	if w.credits < w.maxCredits {
		w.credits++
	}
	w.awoken = true
	w.cond.Signal()
	w.mu.Unlock()
}

// RequestExit is cooperative: it wakes any waiter so Suspend returns and the
// source's Run() loop can observe the exit and return.
func (w *WakeupCondition) RequestExit() {
	w.mu.Lock()
	w.exitRequested = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Credits reports the current credit count; always in [0, windowSize].
func (w *WakeupCondition) Credits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.credits
}

// AckRecord is the per-source accounting object referenced from a Message's
// ack chain. Its ack record never changes after the message is created, so
// a clone sharing the same AckRecord keeps source-side window accounting
// correct even after fan-out.
type AckRecord struct {
	gate      *WakeupCondition
	onRelease func()
}

// NewAckRecord binds an AckRecord to the gate it restores a credit to.
func NewAckRecord(gate *WakeupCondition) *AckRecord {
	return &AckRecord{gate: gate}
}

// SetOnRelease installs an additional callback invoked every time this
// record's message is fully acked, after the window credit is restored.
func (a *AckRecord) SetOnRelease(fn func()) { a.onRelease = fn }

// release restores exactly one window credit and runs the release hook.
func (a *AckRecord) release() {
	if a == nil {
		return
	}
	if a.gate != nil {
		a.gate.Wakeup()
	}
	if a.onRelease != nil {
		a.onRelease()
	}
}
