package corepipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSourceDriver struct{ name string }

func (d *nopSourceDriver) Name() string { return d.name }
func (d *nopSourceDriver) Open(ctx context.Context) (<-chan *Message, error) {
	out := make(chan *Message)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}
func (d *nopSourceDriver) Close() error { return nil }

type nopDestinationDriver struct{ name string }

func (d *nopDestinationDriver) Name() string { return d.name }
func (d *nopDestinationDriver) Send(ctx context.Context, msg *Message, mode FlushMode) error {
	return nil
}
func (d *nopDestinationDriver) Flush(ctx context.Context) FlushResult { return FlushOK }
func (d *nopDestinationDriver) Close() error                          { return nil }

func newTestConfiguration() *Configuration {
	cfg := NewConfiguration()
	cfg.Sources["src"] = &SourceGroup{Name: "src", Driver: &nopSourceDriver{name: "src"}, WindowSize: 4}
	cfg.Destinations["dst"] = &DestinationGroup{Name: "dst", Driver: &nopDestinationDriver{name: "dst"}, QueueSize: 4}
	return cfg
}

// Comment 1: each destination-ref endpoint must get its own Multiplexer so
// FINAL/FALLBACK/CLONE flags set on one connection's head never bleed into
// another connection sharing the same named destination.
func TestCompileChain_DestinationSitesAreIndependentMultiplexers(t *testing.T) {
	cfg := newTestConfiguration()
	c := NewCenter(nil)

	dp := NewDestinationPipe("destination:dst", NewThreadedDestination("dst", cfg.Destinations["dst"].Driver, 4, 0, 0, 0, nil, nil), nil)
	destPipes := map[string]*DestinationPipe{"dst": dp}

	connA := &Connection{Name: "a", Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointDestination, Name: "dst"},
	}}
	connB := &Connection{Name: "b", Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointDestination, Name: "dst"},
	}}

	headA, builtA, _, err := c.compileChain(cfg, connA, destPipes, true)
	require.NoError(t, err)
	headB, builtB, _, err := c.compileChain(cfg, connB, destPipes, true)
	require.NoError(t, err)

	// Each destination-ref occurrence compiles to its own route-tag FuncPipe
	// feeding its own site Multiplexer: two pipes per occurrence.
	require.Len(t, builtA, 2)
	require.Len(t, builtB, 2)
	assert.NotSame(t, headA, headB, "each destination-ref occurrence must get its own site Multiplexer")

	headA.SetFlags(headA.Flags().Set(FlagBranchFinal))
	assert.True(t, headA.Flags().Has(FlagBranchFinal))
	assert.False(t, headB.Flags().Has(FlagBranchFinal), "FINAL on one connection's site must not bleed into another's")

	siteA, ok := builtA[1].(*Multiplexer)
	require.True(t, ok)
	siteB, ok := builtB[1].(*Multiplexer)
	require.True(t, ok)
	assert.NotSame(t, siteA, siteB)
	assert.Equal(t, []Pipe{dp}, siteA.NextHops())
	assert.Equal(t, []Pipe{dp}, siteB.NextHops())
}

// Comment 2: a connection's own FLOW_CONTROL flag, or that of any inline
// child, must surface as HARD_FLOW_CONTROL on the compiled head.
func TestCompileChain_FlowControlPropagatesToHead(t *testing.T) {
	cfg := newTestConfiguration()
	c := NewCenter(nil)
	dp := NewDestinationPipe("destination:dst", NewThreadedDestination("dst", cfg.Destinations["dst"].Driver, 4, 0, 0, 0, nil, nil), nil)
	destPipes := map[string]*DestinationPipe{"dst": dp}

	direct := &Connection{Name: "direct", Flags: ConnFlowControl, Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointDestination, Name: "dst"},
	}}
	head, _, flowControl, err := c.compileChain(cfg, direct, destPipes, true)
	require.NoError(t, err)
	assert.True(t, flowControl)
	assert.True(t, head.Flags().Has(FlagHardFlowControl))

	childOnly := &Connection{Name: "parent", Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointInline, Inline: &Connection{
			Name:  "child",
			Flags: ConnFlowControl,
			Items: []PipeItem{{Kind: EndpointDestination, Name: "dst"}},
		}},
	}}
	head2, _, flowControl2, err := c.compileChain(cfg, childOnly, destPipes, true)
	require.NoError(t, err)
	assert.True(t, flowControl2, "a child connection's FLOW_CONTROL must propagate up to the parent path")
	assert.True(t, head2.Flags().Has(FlagHardFlowControl))

	plain := &Connection{Name: "plain", Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointDestination, Name: "dst"},
	}}
	head3, _, flowControl3, err := c.compileChain(cfg, plain, destPipes, true)
	require.NoError(t, err)
	assert.False(t, flowControl3)
	assert.False(t, head3.Flags().Has(FlagHardFlowControl))
}

// Comment 3: a source endpoint is only legal at top level and never inside
// a CATCHALL connection; both violations must abort compilation.
func TestCompileChain_SourceEndpointValidation(t *testing.T) {
	cfg := newTestConfiguration()
	c := NewCenter(nil)
	dp := NewDestinationPipe("destination:dst", NewThreadedDestination("dst", cfg.Destinations["dst"].Driver, 4, 0, 0, 0, nil, nil), nil)
	destPipes := map[string]*DestinationPipe{"dst": dp}

	nested := &Connection{Name: "outer", Items: []PipeItem{
		{Kind: EndpointInline, Inline: &Connection{
			Name:  "inner",
			Items: []PipeItem{{Kind: EndpointSource, Name: "src"}},
		}},
	}}
	_, _, _, err := c.compileChain(cfg, nested, destPipes, true)
	require.Error(t, err)
	assert.IsType(t, &ConfigError{}, err)

	catchall := &Connection{Name: "catchall", Flags: ConnCatchAll, Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointDestination, Name: "dst"},
	}}
	_, _, _, err = c.compileChain(cfg, catchall, destPipes, true)
	require.Error(t, err)
	assert.IsType(t, &ConfigError{}, err)
}

// Comment 5: the source fanout Multiplexer must carry FlagMuxIndepPaths and
// FlagMuxFlowCtrlBarrier once Compile runs, so that its independent
// top-level branches never benefit from the last-hop CLONE elision and so
// that per-branch HARD_FLOW_CONTROL (not an absent caller value) decides
// local.flow_control.
func TestCompile_SourceFanoutCarriesMuxFlags(t *testing.T) {
	cfg := newTestConfiguration()
	cfg.Connections = []*Connection{
		{Name: "a", Items: []PipeItem{
			{Kind: EndpointSource, Name: "src"},
			{Kind: EndpointDestination, Name: "dst"},
		}},
	}

	c := NewCenter(nil)
	require.NoError(t, c.Compile(cfg))

	mux := cfg.Sources["src"].PipeNext()
	assert.True(t, mux.Flags().Has(FlagMuxIndepPaths))
	assert.True(t, mux.Flags().Has(FlagMuxFlowCtrlBarrier))
}

// End-to-end: a CATCHALL connection attaches to every source's fanout, and
// a message queued through one source's mux reaches the catchall's
// destination, exercising FlagMuxFlowCtrlBarrier's effect on local ack
// bookkeeping through a full compiled graph.
func TestCompile_CatchAllReachesDestination(t *testing.T) {
	cfg := newTestConfiguration()
	cfg.Connections = []*Connection{
		{Name: "sink-all", Flags: ConnCatchAll, Items: []PipeItem{
			{Kind: EndpointDestination, Name: "dst"},
		}},
	}

	c := NewCenter(nil)
	require.NoError(t, c.Compile(cfg))

	mux := cfg.Sources["src"].PipeNext()
	require.Len(t, mux.NextHops(), 1)

	msg := NewEmptyMessage()
	require.NoError(t, mux.Queue(msg, PathOptions{}))
}

// The route-tag FuncPipe ahead of each destination site must stamp the
// owning connection's name onto the message before it reaches the
// destination, regardless of how many sites share the same destination.
func TestCompileChain_RouteTagReflectsOwningConnection(t *testing.T) {
	cfg := newTestConfiguration()
	c := NewCenter(nil)
	dp := NewDestinationPipe("destination:dst", NewThreadedDestination("dst", cfg.Destinations["dst"].Driver, 4, 0, 0, 0, nil, nil), nil)
	destPipes := map[string]*DestinationPipe{"dst": dp}

	conn := &Connection{Name: "tagged", Items: []PipeItem{
		{Kind: EndpointSource, Name: "src"},
		{Kind: EndpointDestination, Name: "dst"},
	}}
	head, _, _, err := c.compileChain(cfg, conn, destPipes, true)
	require.NoError(t, err)

	tag, ok := head.(*FuncPipe)
	require.True(t, ok)
	out, matched, err := tag.Fn(NewEmptyMessage())
	require.NoError(t, err)
	assert.True(t, matched)
	v, ok := out.Get("route_connection")
	require.True(t, ok)
	assert.Equal(t, "tagged", v.AsString())
}
