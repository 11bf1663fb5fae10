package corepipe

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// StepKind distinguishes the three ProcessRule flavors the Center treats
// differently when deciding whether a referenced chain forces CLONE.
type StepKind int

const (
	StepFilter StepKind = iota
	StepParser
	StepRewrite
)

func (k StepKind) String() string {
	switch k {
	case StepFilter:
		return "filter"
	case StepParser:
		return "parser"
	case StepRewrite:
		return "rewrite"
	default:
		return "step"
	}
}

// StepFunc is the per-message transformation a FuncPipe runs. It receives
// an exclusively-owned message (the FuncPipe has already cloned if its
// CLONE flag is set) and returns the (possibly same) message to forward,
// whether the message matched (meaningful for filters; parsers/rewriters
// normally always return true), and an error that aborts the path.
// Returning a nil message drops it.
type StepFunc func(msg *Message) (out *Message, matched bool, err error)

// FuncPipe is a single filter/parser/rewrite step: a StepKind, a StepFunc,
// and the BasePipe plumbing. It is the one concrete Pipe kind used for all
// three ProcessRule step types; what differs is StepFunc and the CLONE
// flag the Center assigns when compiling the owning ProcessRule.
type FuncPipe struct {
	BasePipe
	Kind StepKind
	Fn   StepFunc
}

// NewFuncPipe constructs an un-initialized FuncPipe.
func NewFuncPipe(name string, kind StepKind, fn StepFunc, logger *logrus.Logger) *FuncPipe {
	return &FuncPipe{BasePipe: NewBasePipe(name, logger), Kind: kind, Fn: fn}
}

func (p *FuncPipe) Init() error {
	p.SetFlags(p.Flags().Set(FlagInitialized))
	return nil
}

func (p *FuncPipe) Deinit() error {
	p.SetFlags(p.Flags().Clear(FlagInitialized))
	return nil
}

func (p *FuncPipe) Ref() Pipe {
	p.BasePipe.Ref()
	return p
}

func (p *FuncPipe) Clone() Pipe {
	return &FuncPipe{
		BasePipe: NewBasePipe(p.Name(), p.logger),
		Kind:     p.Kind,
		Fn:       p.Fn,
	}
}

// Queue clones on write if CLONE is set, runs the step function, records
// the match result in PathOptions, and forwards (or drops, if the step
// returned nil) to pipe_next.
func (p *FuncPipe) Queue(msg *Message, po PathOptions) error {
	if p.Flags().Has(FlagClone) {
		msg = msg.CloneCOW(&po)
	}

	out, matched, err := p.Fn(msg)
	if po.Matched != nil {
		*po.Matched = matched
	}
	if err != nil {
		msg.Unref()
		PipeQueueTotal.WithLabelValues(p.Name(), "error").Inc()
		return fmt.Errorf("%s %q: %w", p.Kind, p.Name(), err)
	}
	if out == nil {
		msg.Unref()
		PipeQueueTotal.WithLabelValues(p.Name(), "dropped").Inc()
		return nil
	}
	PipeQueueTotal.WithLabelValues(p.Name(), "ok").Inc()
	return p.Forward(out, po, p.Next())
}
