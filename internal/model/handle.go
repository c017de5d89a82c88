package model

import (
	"github.com/dreamware/jubatus/internal/codec"
	"github.com/dreamware/jubatus/internal/jerrors"
	"github.com/dreamware/jubatus/internal/mixable"
	"github.com/dreamware/jubatus/internal/version"
)

// Handle erases a model adapter's diff type so an HTTP server can drive
// MIX endpoints (/mix/argument, /mix/pull, /mix/push, or a linear
// model's get_diff/put_diff) without knowing whether the underlying
// family is Linear- or Push-mixable, or what concrete type its diff is.
// Every adapter in this package is wrapped in a Handle via
// NewLinearHandle/NewPushHandle before being registered with a node's
// instance table.
//
// A Linear-backed handle answers GetDiff/PutDiff and reports an
// ArgumentUnmatch error from the Pull/Push/GetArgument side, and vice
// versa for a Push-backed handle — callers branch on Kind() first.
type Handle interface {
	Adapter

	// Kind reports which mixable contract this handle wraps: "linear" or
	// "push".
	Kind() string

	// Underlying returns the wrapped adapter itself, so callers that need
	// family-specific behavior (train/predict request routing) can type-
	// switch on its concrete type instead of just the Adapter interface.
	Underlying() Adapter

	// GetDiff and PutDiff serve internal/mixable.Linear-backed handles.
	GetDiff() ([]byte, error)
	PutDiff(diff []byte) (accepted bool, err error)

	// GetArgument, Pull and Push serve internal/mixable.Push-backed
	// handles.
	GetArgument() ([]byte, error)
	Pull(arg []byte) (diff []byte, err error)
	Push(diff []byte) error
}

const (
	kindLinear = "linear"
	kindPush   = "push"
)

func wrongContract(op, have, want string) error {
	return jerrors.New(jerrors.ArgumentUnmatch, op, "handle is %s-mixable, not %s-mixable", have, want)
}

// NewLinearHandle wraps a Linear-mixable adapter (WeightModel, or any
// future linear-classifier family) as a byte-erased Handle. D is the
// adapter's concrete diff type, known here at the call site and closed
// over by the returned closures — it never needs to appear in Handle's
// own signature.
func NewLinearHandle[D any](adapter Adapter, m mixable.Linear[D]) Handle {
	return &linearHandle{
		Adapter: adapter,
		getDiff: func() ([]byte, error) {
			d, err := m.GetDiff()
			if err != nil {
				return nil, err
			}
			return codec.Marshal(d)
		},
		putDiff: func(b []byte) (bool, error) {
			var d D
			if err := codec.Unmarshal(b, &d); err != nil {
				return false, err
			}
			return m.PutDiff(d)
		},
	}
}

// NewPushHandle wraps a Push-mixable adapter (Recommender, Anomaly) as a
// byte-erased Handle.
func NewPushHandle[D any](adapter Adapter, m mixable.Push[D]) Handle {
	return &pushHandle{
		Adapter: adapter,
		getArgument: func() ([]byte, error) {
			arg, err := m.GetArgument()
			if err != nil {
				return nil, err
			}
			return codec.Marshal(arg.Snapshot())
		},
		pull: func(argBytes []byte) ([]byte, error) {
			var snap map[version.Owner]version.Version
			if err := codec.Unmarshal(argBytes, &snap); err != nil {
				return nil, err
			}
			d, err := m.Pull(version.FromMap(snap))
			if err != nil {
				return nil, err
			}
			return codec.Marshal(d)
		},
		push: func(b []byte) error {
			var d D
			if err := codec.Unmarshal(b, &d); err != nil {
				return err
			}
			return m.Push(d)
		},
	}
}

type linearHandle struct {
	Adapter
	getDiff func() ([]byte, error)
	putDiff func([]byte) (bool, error)
}

func (h *linearHandle) Kind() string                   { return kindLinear }
func (h *linearHandle) Underlying() Adapter             { return h.Adapter }
func (h *linearHandle) GetDiff() ([]byte, error)        { return h.getDiff() }
func (h *linearHandle) PutDiff(b []byte) (bool, error)  { return h.putDiff(b) }
func (h *linearHandle) GetArgument() ([]byte, error) {
	return nil, wrongContract("model.linearHandle.GetArgument", kindLinear, kindPush)
}
func (h *linearHandle) Pull([]byte) ([]byte, error) {
	return nil, wrongContract("model.linearHandle.Pull", kindLinear, kindPush)
}
func (h *linearHandle) Push([]byte) error {
	return wrongContract("model.linearHandle.Push", kindLinear, kindPush)
}

type pushHandle struct {
	Adapter
	getArgument func() ([]byte, error)
	pull        func([]byte) ([]byte, error)
	push        func([]byte) error
}

func (h *pushHandle) Kind() string                   { return kindPush }
func (h *pushHandle) Underlying() Adapter             { return h.Adapter }
func (h *pushHandle) GetArgument() ([]byte, error)   { return h.getArgument() }
func (h *pushHandle) Pull(b []byte) ([]byte, error)  { return h.pull(b) }
func (h *pushHandle) Push(b []byte) error             { return h.push(b) }
func (h *pushHandle) GetDiff() ([]byte, error) {
	return nil, wrongContract("model.pushHandle.GetDiff", kindPush, kindLinear)
}
func (h *pushHandle) PutDiff([]byte) (bool, error) {
	return false, wrongContract("model.pushHandle.PutDiff", kindPush, kindLinear)
}
