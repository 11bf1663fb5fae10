package corepipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sinkPipe is a minimal terminal Pipe that records every message it
// receives, used across this package's tests as the end of a chain.
type sinkPipe struct {
	BasePipe
	received []*Message
}

func newSinkPipe() *sinkPipe { return &sinkPipe{BasePipe: NewBasePipe("sink", nil)} }

func (s *sinkPipe) Init() error   { return nil }
func (s *sinkPipe) Deinit() error { return nil }
func (s *sinkPipe) Ref() Pipe     { s.BasePipe.Ref(); return s }
func (s *sinkPipe) Clone() Pipe   { return newSinkPipe() }
func (s *sinkPipe) Queue(msg *Message, po PathOptions) error {
	s.received = append(s.received, msg)
	return nil
}

func TestFuncPipe_FilterMatch(t *testing.T) {
	sink := newSinkPipe()
	fp := NewFuncPipe("drop-debug", StepFilter, func(m *Message) (*Message, bool, error) {
		v, _ := m.Get("level")
		return m, v.AsString() != "debug", nil
	}, nil)
	require.NoError(t, fp.Init())
	fp.SetNext(sink)

	m := NewEmptyMessage()
	m.Set("level", StringValue("info"))
	matched := false
	po := PathOptions{Matched: &matched}

	require.NoError(t, fp.Queue(m, po))
	assert.True(t, matched)
	assert.Len(t, sink.received, 1)
}

func TestFuncPipe_FilterNoMatchStillForwards(t *testing.T) {
	sink := newSinkPipe()
	fp := NewFuncPipe("drop-debug", StepFilter, func(m *Message) (*Message, bool, error) {
		v, _ := m.Get("level")
		return m, v.AsString() != "debug", nil
	}, nil)
	require.NoError(t, fp.Init())
	fp.SetNext(sink)

	m := NewEmptyMessage()
	m.Set("level", StringValue("debug"))
	matched := true
	po := PathOptions{Matched: &matched}

	require.NoError(t, fp.Queue(m, po))
	assert.False(t, matched, "a non-matching filter must clear po.Matched")
	assert.Len(t, sink.received, 1, "FuncPipe itself does not drop on no-match; that's the caller's job")
}

func TestFuncPipe_DropsNilResult(t *testing.T) {
	sink := newSinkPipe()
	fp := NewFuncPipe("drop-all", StepFilter, func(m *Message) (*Message, bool, error) {
		return nil, false, nil
	}, nil)
	require.NoError(t, fp.Init())
	fp.SetNext(sink)

	require.NoError(t, fp.Queue(NewEmptyMessage(), PathOptions{}))
	assert.Empty(t, sink.received)
}

func TestFuncPipe_ErrorIsWrapped(t *testing.T) {
	fp := NewFuncPipe("bad-parser", StepParser, func(m *Message) (*Message, bool, error) {
		return nil, false, errors.New("malformed")
	}, nil)
	require.NoError(t, fp.Init())

	err := fp.Queue(NewEmptyMessage(), PathOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-parser")
	assert.Contains(t, err.Error(), "malformed")
}

func TestFuncPipe_ClonesOnWriteWhenFlagged(t *testing.T) {
	var seenSameRef bool
	fp := NewFuncPipe("tag", StepRewrite, func(m *Message) (*Message, bool, error) {
		return m, true, nil
	}, nil)
	require.NoError(t, fp.Init())
	fp.SetFlags(fp.Flags().Set(FlagClone))

	original := NewEmptyMessage()
	original.Ref() // force shared refcount so CloneCOW actually copies

	sink := newSinkPipe()
	fp.SetNext(sink)
	require.NoError(t, fp.Queue(original, PathOptions{}))

	require.Len(t, sink.received, 1)
	seenSameRef = sink.received[0] == original
	assert.False(t, seenSameRef, "CLONE must hand the next hop an independent message")
}
