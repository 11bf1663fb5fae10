package corepipe

import "github.com/sirupsen/logrus"

// Multiplexer is the fan-out Pipe: it routes one incoming message to N
// downstream branches (next_hops) with FINAL/FALLBACK/CLONE semantics, then
// forwards once to pipe_next (so multiplexers can themselves be chained).
type Multiplexer struct {
	BasePipe
	nextHops       []Pipe
	fallbackExists bool
}

// NewMultiplexer constructs an empty, un-initialized Multiplexer.
func NewMultiplexer(name string, logger *logrus.Logger) *Multiplexer {
	return &Multiplexer{BasePipe: NewBasePipe(name, logger)}
}

// AddNextHop appends a borrowed reference to a downstream Pipe. The Center
// guarantees the pointee outlives the Multiplexer.
func (m *Multiplexer) AddNextHop(p Pipe) {
	m.mu.Lock()
	m.nextHops = append(m.nextHops, p)
	m.mu.Unlock()
}

// NextHops returns the current hop list (a copy, safe to range over).
func (m *Multiplexer) NextHops() []Pipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pipe, len(m.nextHops))
	copy(out, m.nextHops)
	return out
}

// Init scans next_hops and computes fallback_exists; init can only fail if
// a hop fails its own Init (a Multiplexer never fails at runtime).
func (m *Multiplexer) Init() error {
	hops := m.NextHops()
	fallback := false
	for _, hop := range hops {
		if hop.Flags().Has(FlagBranchFallback) {
			fallback = true
		}
	}
	m.mu.Lock()
	m.fallbackExists = fallback
	m.mu.Unlock()
	m.SetFlags(m.Flags().Set(FlagInitialized))
	return nil
}

func (m *Multiplexer) Deinit() error {
	m.SetFlags(m.Flags().Clear(FlagInitialized))
	return nil
}

func (m *Multiplexer) Ref() Pipe {
	m.BasePipe.Ref()
	return m
}

func (m *Multiplexer) Clone() Pipe {
	clone := &Multiplexer{BasePipe: NewBasePipe(m.Name(), m.logger)}
	clone.nextHops = append(clone.nextHops, m.NextHops()...)
	clone.fallbackExists = m.fallbackExists
	return clone
}

// pass identifies which sweep over next_hops is in progress.
type pass int

const (
	passNormal pass = iota
	passFallback
)

// Queue implements the two-pass fan-out algorithm from the design: a
// normal pass over non-fallback hops, then (only if nothing matched and a
// fallback hop exists) a fallback pass. FINAL stops the current pass early.
// CLONE is elided on the very last delivery, since nothing downstream of it
// needs an independent copy.
func (m *Multiplexer) Queue(msg *Message, caller PathOptions) error {
	hops := m.NextHops()
	m.mu.Lock()
	fallbackExists := m.fallbackExists
	m.mu.Unlock()

	delivered := false

	passes := []pass{passNormal}
	if fallbackExists {
		passes = append(passes, passFallback)
	}

passLoop:
	for _, p := range passes {
		if p == passFallback && delivered {
			break
		}
		if p == passFallback {
			MuxFallbackTotal.WithLabelValues(m.Name()).Inc()
		}
		for i, hop := range hops {
			isFallback := hop.Flags().Has(FlagBranchFallback)
			if p == passNormal && isFallback {
				continue
			}
			if p == passFallback && !isFallback {
				continue
			}

			local := PathOptions{AckNeeded: caller.AckNeeded}
			if m.Flags().Has(FlagMuxFlowCtrlBarrier) {
				local.FlowControl = hop.Flags().Has(FlagHardFlowControl)
			} else {
				local.FlowControl = caller.FlowControl
			}
			matched := true
			local.Matched = &matched

			msg.AddAck(&local)

			last := m.Next() == nil && isLastHopInPass(hops, i, p) && (p == passFallback || !fallbackExists || delivered) &&
				!m.Flags().Has(FlagMuxIndepPaths)

			// Ref before handing off: CloneCOW only clones when it sees a
			// shared refcount, and on this path msg may otherwise be the
			// sole reference the multiplexer holds (the last hop is the
			// common case where that's true and a clone would wrongly
			// become a no-op).
			var err error
			if !last && hop.Flags().Has(FlagClone) {
				err = hop.Queue(msg.Ref().CloneCOW(&local), local)
			} else {
				err = hop.Queue(msg.Ref(), local)
			}
			if err != nil {
				return err
			}

			if matched {
				delivered = true
				if hop.Flags().Has(FlagBranchFinal) {
					break passLoop
				}
			}
		}
	}

	return m.Forward(msg, caller, m.Next())
}

// isLastHopInPass reports whether index i is the last hop eligible for
// pass p, used only to decide whether CLONE can be elided on this delivery.
func isLastHopInPass(hops []Pipe, i int, p pass) bool {
	for j := i + 1; j < len(hops); j++ {
		isFallback := hops[j].Flags().Has(FlagBranchFallback)
		if p == passNormal && !isFallback {
			return false
		}
		if p == passFallback && isFallback {
			return false
		}
	}
	return true
}
