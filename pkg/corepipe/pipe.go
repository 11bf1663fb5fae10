package corepipe

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Pipe is the uniform node interface of the runtime graph: every source's
// downstream hop, filter, parser, rewriter, destination, and multiplexer
// implements it. Queue takes ownership of one reference to msg: an
// implementation must either forward it (passing the ref on to the next
// Queue call), clone-and-forward, drop it (Unref), or fork it across
// multiple downstream Pipes (Multiplexer).
type Pipe interface {
	Queue(msg *Message, po PathOptions) error
	Init() error
	Deinit() error
	Notify(sender Pipe, code NotifyCode, userData interface{})

	Flags() Flags
	SetFlags(f Flags)
	Next() Pipe
	SetNext(p Pipe)

	Ref() Pipe
	Unref()

	// Name identifies the pipe for logging, stats registration, and error
	// reporting (e.g. "filter:drop-debug", "destination:loki").
	Name() string

	// Clone returns a deep, independent copy suitable for a second
	// reference to a ProcessRule's template chain. The clone starts
	// un-initialized.
	Clone() Pipe
}

// BasePipe implements the bookkeeping every concrete Pipe needs: flags,
// the borrowed pipe_next pointer, refcounting, and default Queue/Notify
// behavior (plain forwarding). Concrete pipes embed it and override Queue.
type BasePipe struct {
	mu       sync.Mutex
	flags    Flags
	next     Pipe
	refcount int32 // atomic
	name     string
	logger   *logrus.Logger
}

// NewBasePipe constructs a BasePipe with refcount 1.
func NewBasePipe(name string, logger *logrus.Logger) BasePipe {
	return BasePipe{name: name, refcount: 1, logger: logger}
}

func (b *BasePipe) Name() string { return b.name }

func (b *BasePipe) Flags() Flags {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

func (b *BasePipe) SetFlags(f Flags) {
	b.mu.Lock()
	b.flags = f
	b.mu.Unlock()
}

func (b *BasePipe) Next() Pipe {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

func (b *BasePipe) SetNext(p Pipe) {
	b.mu.Lock()
	b.next = p
	b.mu.Unlock()
}

// Ref increments the refcount; ref-counting is the ordinary Go object
// lifetime plus this explicit counter only because the Center tracks
// pipe_next/next_hops as borrowed references distinct from its own
// ownership list (see Center.initializedPipes).
func (b *BasePipe) Ref() *BasePipe {
	atomic.AddInt32(&b.refcount, 1)
	return b
}

func (b *BasePipe) Unref() {
	atomic.AddInt32(&b.refcount, -1)
}

func (b *BasePipe) Refcount() int32 { return atomic.LoadInt32(&b.refcount) }

// Forward sends msg on to pipe_next if one is set, otherwise drops it
// (releasing the reference). This is the default Queue behavior for any
// Pipe kind that doesn't override it.
func (b *BasePipe) Forward(msg *Message, po PathOptions, next Pipe) error {
	if next == nil {
		msg.Unref()
		return nil
	}
	return next.Queue(msg, po)
}

// Notify forwards upstream signals downstream by default; concrete pipes
// that care about a particular code override this.
func (b *BasePipe) Notify(sender Pipe, code NotifyCode, userData interface{}) {
	next := b.Next()
	if next != nil {
		next.Notify(sender, code, userData)
	}
}
