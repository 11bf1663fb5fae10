package corepipe

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Tag is a bit in a Message's tag bitmask (e.g. "this is a MARK message",
// "this message matched a filter"). Callers mint their own tag bits;
// corepipe reserves TagMark for the internal mark source.
type Tag uint64

const TagMark Tag = 1 << 0

// Message is a log event flowing through the pipe graph. It is conceptually
// immutable: at any instant a Message is either referenced by exactly one
// holder (safe to mutate in place) or shared and must be cloned with
// CloneCOW before mutation. values, tags, and the rest of the fields below
// are therefore guarded by mu only to protect the transition window around
// CloneCOW and concurrent Get/Set from different Pipe goroutines (e.g. a
// fan-out Multiplexer handing the same ref to two destination workers that
// only read).
type Message struct {
	id string

	mu     sync.RWMutex
	values map[string]Value
	tags   uint64

	Facility int
	Severity int

	SendTime time.Time
	RecvTime time.Time
	MsgTime  time.Time

	SrcAddr net.Addr
	DstAddr net.Addr

	refcount int32 // atomic
	ack      *AckRecord
	// ackCount is a pointer shared by every clone derived from the same
	// originally-posted message (CloneCOW copies the pointer, not the
	// value). add_ack is always called on a message before it is forked,
	// so the increment lands on the one shared counter; each resulting
	// clone later acks independently, and whichever one drives the shared
	// counter to zero is the one that releases the window credit. This is
	// what lets fan-out clone without double-counting.
	ackCount *int32
}

// NewEmptyMessage returns a fresh Message with refcount 1 and no ack chain.
func NewEmptyMessage() *Message {
	now := time.Now()
	var ackCount int32
	return &Message{
		id:       uuid.NewString(),
		values:   make(map[string]Value),
		refcount: 1,
		ackCount: &ackCount,
		RecvTime: now,
		MsgTime:  now,
	}
}

// NewMarkMessage returns a synthetic liveness message tagged TagMark.
func NewMarkMessage() *Message {
	m := NewEmptyMessage()
	m.tags |= uint64(TagMark)
	m.Set("MESSAGE", StringValue("-- MARK --"))
	return m
}

// NewFromSourceInput builds a Message from raw source bytes plus metadata
// values, as a SourceDriver does when it receives input from its transport.
func NewFromSourceInput(raw []byte, metadata map[string]Value) *Message {
	m := NewEmptyMessage()
	m.Set("MESSAGE", BytesValue(raw))
	for k, v := range metadata {
		m.Set(k, v)
	}
	m.SendTime = time.Now()
	return m
}

// ID returns the message's stable identifier, useful for log correlation
// and as a dedup/cache key; it does not change across CloneCOW.
func (m *Message) ID() string { return m.id }

// HasTag reports whether t is set.
func (m *Message) HasTag(t Tag) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tags&uint64(t) != 0
}

// SetTag sets t. Callers must own an exclusive reference (see CloneCOW).
func (m *Message) SetTag(t Tag) {
	m.mu.Lock()
	m.tags |= uint64(t)
	m.mu.Unlock()
}

// Get retrieves a named value.
func (m *Message) Get(name string) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok
}

// Set assigns a named value. Callers must own an exclusive reference
// (refcount == 1, typically obtained via CloneCOW) before calling Set;
// corepipe does not itself re-check the refcount here so that batched
// construction of a freshly-created Message doesn't pay for it.
func (m *Message) Set(name string, v Value) {
	m.mu.Lock()
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	m.values[name] = v
	m.mu.Unlock()
}

// Delete removes a named value.
func (m *Message) Delete(name string) {
	m.mu.Lock()
	delete(m.values, name)
	m.mu.Unlock()
}

// Ref increments the refcount and returns m for chaining.
func (m *Message) Ref() *Message {
	atomic.AddInt32(&m.refcount, 1)
	return m
}

// Unref decrements the refcount. The Message carries no finalizer beyond
// that: once the count reaches zero there are no more holders and the
// garbage collector reclaims it, so there is nothing further to release
// here except, per the ack-balance invariant, whatever acks are still
// outstanding must already have been driven to zero by the caller.
func (m *Message) Unref() {
	atomic.AddInt32(&m.refcount, -1)
}

// Refcount reports the current reference count.
func (m *Message) Refcount() int32 { return atomic.LoadInt32(&m.refcount) }

// CloneCOW returns m unchanged if the caller holds the only reference,
// otherwise returns an independent deep clone sharing the same ack record
// (so source-side window accounting stays correct) with refcount 1. The
// original's reference is released in the shared case since the caller is
// trading their ref on the original for a ref on the clone.
func (m *Message) CloneCOW(po *PathOptions) *Message {
	if atomic.LoadInt32(&m.refcount) == 1 {
		return m
	}

	m.mu.RLock()
	clone := &Message{
		id:       m.id,
		values:   make(map[string]Value, len(m.values)),
		tags:     m.tags,
		Facility: m.Facility,
		Severity: m.Severity,
		SendTime: m.SendTime,
		RecvTime: m.RecvTime,
		MsgTime:  m.MsgTime,
		SrcAddr:  m.SrcAddr,
		DstAddr:  m.DstAddr,
		refcount: 1,
		ack:      m.ack,
		ackCount: m.ackCount,
	}
	for k, v := range m.values {
		clone.values[k] = v.clone()
	}
	m.mu.RUnlock()

	m.Unref()
	return clone
}

// AddAck registers one outstanding ack obligation against the message's ack
// chain (a no-op if the message has none — e.g. internally generated
// messages with nothing upstream to credit). Callers add the obligation
// before forking a message so every resulting clone shares the same count.
func (m *Message) AddAck(po *PathOptions) {
	if m.ack == nil {
		return
	}
	atomic.AddInt32(m.ackCount, 1)
}

// Ack releases one outstanding ack obligation; when the shared count
// reaches zero the source's window-release callback fires, returning one
// credit.
func (m *Message) Ack(po *PathOptions) {
	if m.ack == nil {
		return
	}
	if atomic.AddInt32(m.ackCount, -1) == 0 {
		m.ack.release()
	}
}

// BindAckRecord attaches the ack record a source created for this message.
// Must be called exactly once, before the message enters the graph; the
// record never changes afterward.
func (m *Message) BindAckRecord(rec *AckRecord) { m.ack = rec }

// AckRecord returns the message's bound ack record, or nil.
func (m *Message) AckRecord() *AckRecord { return m.ack }
