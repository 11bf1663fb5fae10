package corepipe

import (
	"sync"
	"time"
)

// ConnFlags is the lexical flag set a connection (log statement) carries.
// Both spellings accepted by the legacy grammar (flow-control/flow_control)
// map to the same bit; the Center only ever sees the parsed bit.
type ConnFlags uint32

const (
	ConnCatchAll ConnFlags = 1 << iota
	ConnFallback
	ConnFinal
	ConnFlowControl
)

// EndpointKind discriminates a PipeItem's variant.
type EndpointKind int

const (
	EndpointSource EndpointKind = iota
	EndpointFilter
	EndpointParser
	EndpointRewrite
	EndpointDestination
	EndpointInline
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointSource:
		return "source"
	case EndpointFilter:
		return "filter"
	case EndpointParser:
		return "parser"
	case EndpointRewrite:
		return "rewrite"
	case EndpointDestination:
		return "destination"
	case EndpointInline:
		return "inline"
	default:
		return "endpoint"
	}
}

// PipeItem is one compile-time position in a Connection: a reference to a
// named source/filter/parser/destination/rewrite rule, or an embedded
// sub-connection.
type PipeItem struct {
	Kind EndpointKind
	Name string
	// Inline holds the sub-connection for EndpointInline items.
	Inline *Connection
}

// Connection is a declarative log statement: an ordered chain of endpoints
// plus a flag set. Connections are owned by the Configuration and freed
// only when it is.
type Connection struct {
	Name  string
	Flags ConnFlags
	Items []PipeItem
}

// ProcessRule is a named, reusable pipe chain backing a filter/parser/
// rewrite reference. The rule owns the template instances: the first
// reference inlines them directly (consuming them, via FlagInlined on the
// chain head); every subsequent reference deep-clones the chain instead.
type ProcessRule struct {
	Name string
	Kind StepKind
	// Head is the template chain, first pipe first.
	Head []Pipe

	mu       sync.Mutex
	consumed bool
}

// Reference returns the chain to wire into a connection: the original
// template pipes on the first call, or independent clones on every
// subsequent call.
func (r *ProcessRule) Reference() []Pipe {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.consumed {
		r.consumed = true
		if len(r.Head) > 0 {
			r.Head[0].SetFlags(r.Head[0].Flags().Set(FlagInlined))
		}
		return r.Head
	}

	cloned := make([]Pipe, len(r.Head))
	for i, p := range r.Head {
		cloned[i] = p.Clone()
	}
	for i := 0; i < len(cloned)-1; i++ {
		cloned[i].SetNext(cloned[i+1])
	}
	return cloned
}

// SourceGroup is a named, compiled source: the driver plus the lazily
// created Multiplexer that fans its messages out to every connection that
// references it (or, for CATCHALL connections, every connection at all).
type SourceGroup struct {
	Name       string
	Driver     SourceDriver
	WindowSize int

	threaded *ThreadedSource
	pipeNext *Multiplexer
}

// PipeNext lazily creates and returns this source's downstream Multiplexer.
func (s *SourceGroup) PipeNext() *Multiplexer {
	if s.pipeNext == nil {
		s.pipeNext = NewMultiplexer("source-fanout:"+s.Name, nil)
	}
	return s.pipeNext
}

// DestinationGroup is a named, compiled destination: the driver plus its
// ThreadedDestination batching/retry wrapper.
type DestinationGroup struct {
	Name          string
	Driver        DestinationDriver
	BatchBytes    int
	FlushTimeout  time.Duration
	TimeReopen    time.Duration
	QueueSize     int

	threaded *ThreadedDestination
	pipe     *DestinationPipe
}

// Configuration is the declarative, owning container the Center compiles:
// named sources/destinations/rules plus the ordered connection list and
// the global knobs the core consumes directly (§6).
type Configuration struct {
	Sources      map[string]*SourceGroup
	Destinations map[string]*DestinationGroup
	Rules        map[string]*ProcessRule // keyed by "<kind>:<name>"

	Connections []*Connection

	MarkFreq      time.Duration
	FlushLines    int
	FlushTimeout  time.Duration
	TimeReopen    time.Duration
	LogFIFOSize   int
	LogFetchLimit int
	LogIWSize     int
	LogMsgSize    int
}

// NewConfiguration returns an empty Configuration with initialized maps.
func NewConfiguration() *Configuration {
	return &Configuration{
		Sources:      make(map[string]*SourceGroup),
		Destinations: make(map[string]*DestinationGroup),
		Rules:        make(map[string]*ProcessRule),
	}
}

func ruleKey(kind StepKind, name string) string { return kind.String() + ":" + name }

// AddRule registers a named filter/parser/rewrite rule.
func (c *Configuration) AddRule(r *ProcessRule) { c.Rules[ruleKey(r.Kind, r.Name)] = r }

// LookupRule finds a rule by kind and name.
func (c *Configuration) LookupRule(kind StepKind, name string) (*ProcessRule, bool) {
	r, ok := c.Rules[ruleKey(kind, name)]
	return r, ok
}
