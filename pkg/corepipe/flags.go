package corepipe

// Flags is the 32-bit flags word carried by every Pipe. All bits are set at
// compile time by the Center; the only runtime state a Pipe tracks on top of
// its flags is its refcount and init status.
type Flags uint32

const (
	// FlagInitialized is set once Init() has completed successfully.
	FlagInitialized Flags = 1 << iota
	// FlagInlined marks a ProcessRule's template chain as consumed by its
	// first reference; later references must clone instead of reusing it.
	FlagInlined
	// FlagBranchFinal: no sibling branch is considered after this one
	// matches, within the enclosing Multiplexer's current pass.
	FlagBranchFinal
	// FlagBranchFallback: this hop is only considered when no non-fallback
	// sibling matched.
	FlagBranchFallback
	// FlagHardFlowControl marks a path as flow-controlled; it propagates
	// upward from any child connection to the path's head.
	FlagHardFlowControl
	// FlagClone marks a path as mutating the message, requiring
	// clone-on-write before traversal.
	FlagClone
	// FlagMuxIndepPaths marks a Multiplexer whose branches should be
	// treated as independent (no shared CLONE elision across hops).
	FlagMuxIndepPaths
	// FlagMuxFlowCtrlBarrier: a Multiplexer hop's own HARD_FLOW_CONTROL
	// flag, not the caller's, determines local.flow_control for that hop.
	FlagMuxFlowCtrlBarrier
)

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Set returns f with mask's bits set.
func (f Flags) Set(mask Flags) Flags { return f | mask }

// Clear returns f with mask's bits cleared.
func (f Flags) Clear(mask Flags) Flags { return f &^ mask }
