package corepipe

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Center is the compiled, running pipeline: the PipelineCompiler's output.
// It owns every Pipe it created (initializedPipes) regardless of how many
// borrowed references (next_hops, pipe_next) point at them, and is
// responsible for Init-ing them in dependency order, running them, and
// Deinit-ing them cleanly on shutdown or reload.
type Center struct {
	logger *logrus.Logger

	mu               sync.RWMutex
	cfg              *Configuration
	initializedPipes []Pipe
	sources          map[string]*ThreadedSource
	destinations     map[string]*ThreadedDestination

	cancel context.CancelFunc
}

// NewCenter constructs an empty, uncompiled Center.
func NewCenter(logger *logrus.Logger) *Center {
	return &Center{
		logger:       logger,
		sources:      make(map[string]*ThreadedSource),
		destinations: make(map[string]*ThreadedDestination),
	}
}

// Compile builds the runtime pipe graph from cfg: one Multiplexer per
// source, one chain per connection wired into the multiplexers its
// Connection references (or every multiplexer, for CATCHALL), and one
// DestinationPipe/ThreadedDestination per destination. It does not start
// any driver; call Start for that.
func (c *Center) Compile(cfg *Configuration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pipes []Pipe
	destPipes := make(map[string]*DestinationPipe, len(cfg.Destinations))

	for name, dg := range cfg.Destinations {
		dg.threaded = NewThreadedDestination(name, dg.Driver, dg.QueueSize, dg.BatchBytes, dg.FlushTimeout, dg.TimeReopen, nil, c.logger)
		dp := NewDestinationPipe("destination:"+name, dg.threaded, c.logger)
		dg.pipe = dp
		destPipes[name] = dp
		pipes = append(pipes, dp)
	}

	muxes := make(map[string]*Multiplexer, len(cfg.Sources))
	for name, sg := range cfg.Sources {
		mux := sg.PipeNext()
		// A source's fanout reaches every top-level connection that
		// references it (or, for CATCHALL, every connection at all): these
		// are independent statements, not FINAL/FALLBACK siblings of one
		// statement, so the last-hop CLONE elision would wrongly let one
		// connection's mutation bleed into another's. There's also no
		// meaningful caller PathOptions above a source: the first Queue
		// into this mux always comes from ThreadedSource with a zero
		// PathOptions, so each branch's own HARD_FLOW_CONTROL flag (set
		// below, per-connection) has to decide local.flow_control rather
		// than inheriting the caller's.
		mux.SetFlags(mux.Flags().Set(FlagMuxIndepPaths | FlagMuxFlowCtrlBarrier))
		muxes[name] = mux
		pipes = append(pipes, mux)
	}

	var catchallHeads []Pipe
	for _, conn := range cfg.Connections {
		head, built, _, err := c.compileChain(cfg, conn, destPipes, true)
		if err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		pipes = append(pipes, built...)
		if head == nil {
			continue
		}

		if conn.Flags&ConnFinal != 0 {
			head.SetFlags(head.Flags().Set(FlagBranchFinal))
		}
		if conn.Flags&ConnFallback != 0 {
			head.SetFlags(head.Flags().Set(FlagBranchFallback))
		}

		if conn.Flags&ConnCatchAll != 0 {
			catchallHeads = append(catchallHeads, head)
			continue
		}

		attached := false
		for _, item := range conn.Items {
			if item.Kind != EndpointSource {
				continue
			}
			mux, ok := muxes[item.Name]
			if !ok {
				return &ConfigError{Connection: conn.Name, Detail: fmt.Sprintf("unknown source %q", item.Name)}
			}
			mux.AddNextHop(head)
			attached = true
		}
		if !attached {
			return &ConfigError{Connection: conn.Name, Detail: "connection references no source"}
		}
	}

	for _, head := range catchallHeads {
		for _, mux := range muxes {
			mux.AddNextHop(head)
		}
	}

	for name, sg := range cfg.Sources {
		sg.threaded = NewThreadedSource("source:"+name, sg.Driver, sg.WindowSize, muxes[name], c.logger)
		c.sources[name] = sg.threaded
	}
	for name, dg := range cfg.Destinations {
		c.destinations[name] = dg.threaded
	}

	if err := initAll(pipes); err != nil {
		return err
	}

	c.cfg = cfg
	c.initializedPipes = pipes
	return nil
}

// compileChain links one connection's items into a single Pipe chain and
// returns its head, the pipes it newly built (for Center ownership/Init),
// and whether the path carries HARD_FLOW_CONTROL. Filter/parser/rewrite
// references resolve against cfg.Rules (consuming the template on first
// reference, cloning on every subsequent one, per ProcessRule.Reference);
// destination references resolve against the already-built
// DestinationPipes, each wrapped in a fresh per-site Multiplexer so that
// FINAL/FALLBACK/CLONE flags set on one connection's path never bleed into
// another connection sharing the same destination; nested inline
// sub-connections recurse. Source items only drive the multiplexer
// attachment in Compile and are rejected here unless topLevel and outside
// a CATCHALL connection (§4.4, §7).
func (c *Center) compileChain(cfg *Configuration, conn *Connection, destPipes map[string]*DestinationPipe, topLevel bool) (Pipe, []Pipe, bool, error) {
	var chain []Pipe
	flowControl := conn.Flags&ConnFlowControl != 0

	for i, item := range conn.Items {
		switch item.Kind {
		case EndpointSource:
			if !topLevel {
				return nil, nil, false, &ConfigError{Connection: conn.Name, Detail: "source endpoint only permitted in a top-level connection"}
			}
			if conn.Flags&ConnCatchAll != 0 {
				return nil, nil, false, &ConfigError{Connection: conn.Name, Detail: "source endpoint not permitted in a CATCHALL connection"}
			}
			continue

		case EndpointFilter, EndpointParser, EndpointRewrite:
			kind := stepKindFor(item.Kind)
			rule, ok := cfg.LookupRule(kind, item.Name)
			if !ok {
				return nil, nil, false, &ConfigError{Connection: conn.Name, Detail: fmt.Sprintf("unknown %s %q", kind, item.Name)}
			}
			ref := rule.Reference()
			if len(ref) == 0 {
				continue
			}
			forceClone(ref[0], kind)
			chain = append(chain, ref...)

		case EndpointDestination:
			dp, ok := destPipes[item.Name]
			if !ok {
				return nil, nil, false, &ConfigError{Connection: conn.Name, Detail: fmt.Sprintf("unknown destination %q", item.Name)}
			}
			// A fresh Multiplexer per destination-ref occurrence, not the
			// shared DestinationPipe directly: this gives every destination
			// site its own forwarding node, so FLAG_BRANCH_FINAL/FALLBACK/
			// CLONE set on this connection's head can never be observed by
			// another connection terminating at the same named destination.
			connName := conn.Name
			tag := NewFuncPipe(fmt.Sprintf("route-tag:%s:%d", item.Name, i), StepRewrite, func(msg *Message) (*Message, bool, error) {
				msg.Set("route_connection", StringValue(connName))
				return msg, true, nil
			}, c.logger)
			tag.SetFlags(tag.Flags().Set(FlagClone))
			site := NewMultiplexer(fmt.Sprintf("destination-site:%s:%s:%d", item.Name, conn.Name, i), c.logger)
			site.AddNextHop(dp)
			chain = append(chain, tag, site)

		case EndpointInline:
			if item.Inline == nil {
				return nil, nil, false, &ConfigError{Connection: conn.Name, Detail: "inline item with no sub-connection"}
			}
			head, built, childFlowControl, err := c.compileChain(cfg, item.Inline, destPipes, false)
			if err != nil {
				return nil, nil, false, err
			}
			if head != nil {
				chain = append(chain, built...)
			}
			flowControl = flowControl || childFlowControl

		default:
			return nil, nil, false, &ConfigError{Connection: conn.Name, Detail: "unsupported endpoint kind"}
		}
	}

	if len(chain) == 0 {
		return nil, nil, flowControl, nil
	}
	for i := 0; i < len(chain)-1; i++ {
		chain[i].SetNext(chain[i+1])
	}
	if flowControl {
		chain[0].SetFlags(chain[0].Flags().Set(FlagHardFlowControl))
	}
	return chain[0], chain, flowControl, nil
}

// forceClone decides CLONE assignment per the stricter resolution of the
// ambiguity in the reference grammar: parser and rewrite steps always
// clone on write (their output commonly diverges from the input across
// the rule's multiple reference sites), filter steps clone only when the
// chain head is already shared by a prior reference (FlagInlined unset
// means this is at least the second Reference() call).
func forceClone(head Pipe, kind StepKind) {
	switch kind {
	case StepParser, StepRewrite:
		head.SetFlags(head.Flags().Set(FlagClone))
	case StepFilter:
		if !head.Flags().Has(FlagInlined) {
			head.SetFlags(head.Flags().Set(FlagClone))
		}
	}
}

func stepKindFor(k EndpointKind) StepKind {
	switch k {
	case EndpointParser:
		return StepParser
	case EndpointRewrite:
		return StepRewrite
	default:
		return StepFilter
	}
}

func initAll(pipes []Pipe) error {
	for _, p := range pipes {
		if err := p.Init(); err != nil {
			return &InitError{Pipe: p.Name(), Err: err}
		}
	}
	return nil
}

// Start launches every source's ThreadedSource and destination's
// ThreadedDestination driver loop.
func (c *Center) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for name, dest := range c.destinations {
		dest.Start(runCtx)
		_ = name
	}
	for name, src := range c.sources {
		if err := src.Start(runCtx); err != nil {
			return fmt.Errorf("source %q: %w", name, err)
		}
	}
	return nil
}

// Reinit recompiles the graph from a new Configuration, leaving the old
// one running until the new one initializes successfully (§9: a failed
// reload keeps the prior configuration active). Callers typically pair
// this with pkg/hotreload's debounced file-watch trigger.
func (c *Center) Reinit(cfg *Configuration) error {
	next := NewCenter(c.logger)
	if err := next.Compile(cfg); err != nil {
		return err
	}

	c.mu.Lock()
	old := c.initializedPipes
	oldSources := c.sources
	oldDestinations := c.destinations
	c.cfg = next.cfg
	c.initializedPipes = next.initializedPipes
	c.sources = next.sources
	c.destinations = next.destinations
	c.mu.Unlock()

	for _, src := range oldSources {
		_ = src.Stop()
	}
	for _, dst := range oldDestinations {
		_ = dst.Stop()
	}
	deinitAll(old)
	return nil
}

// Deinit stops every source and destination and tears down every pipe
// this Center owns. It is safe to call once, on shutdown.
func (c *Center) Deinit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	for _, src := range c.sources {
		_ = src.Stop()
	}
	for _, dst := range c.destinations {
		_ = dst.Stop()
	}
	deinitAll(c.initializedPipes)
	c.initializedPipes = nil
	return nil
}

func deinitAll(pipes []Pipe) {
	for i := len(pipes) - 1; i >= 0; i-- {
		_ = pipes[i].Deinit()
	}
}

// InitializedPipes returns the Center's owned pipe list, used by the
// /debug/pipes admin endpoint to report the live graph.
func (c *Center) InitializedPipes() []Pipe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Pipe, len(c.initializedPipes))
	copy(out, c.initializedPipes)
	return out
}
