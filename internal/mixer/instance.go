package mixer

import (
	"sync"
	"sync/atomic"

	"github.com/dreamware/jubatus/internal/mixable"
)

// InstanceState tracks whether a model instance is taking part in MIX
// rounds.
type InstanceState string

const (
	// InstanceActive participates in MIX rounds normally.
	InstanceActive InstanceState = "active"
	// InstanceDraining still answers GetDiff/PutDiff but is being taken
	// out of rotation (e.g. ahead of a planned restart) and should be
	// skipped by new MIX rounds once drained.
	InstanceDraining InstanceState = "draining"
	// InstanceDeleted is no longer part of the mixer; Add should not be
	// called again for it.
	InstanceDeleted InstanceState = "deleted"
)

// InstanceStats counts MIX operations performed against an instance: the
// three Linear-mixable operations.
type InstanceStats struct {
	GetDiffs uint64
	Mixes    uint64
	PutDiffs uint64
}

// Instance wraps a named model shard's Linear-mixable model with identity
// and lifecycle metadata, so a coordinator can address, drain, and report
// on it without reaching into the model itself. It satisfies
// mixable.Linear[D] itself, so it can be registered directly with a
// Mixer[D] via Add.
//
// Routing is handled by the mixer's own GetHash (internal/hashutil-backed)
// since routing here picks an instance, not a key within one.
type Instance[D any] struct {
	ID      string
	Primary bool
	Model   mixable.Linear[D]

	mu    sync.RWMutex
	state InstanceState
	stats InstanceStats
}

// NewInstance wraps model as a named, routable mixer instance in the
// active state.
func NewInstance[D any](id string, primary bool, model mixable.Linear[D]) *Instance[D] {
	return &Instance[D]{ID: id, Primary: primary, Model: model, state: InstanceActive}
}

// GetDiff delegates to the wrapped model, counting the call.
func (s *Instance[D]) GetDiff() (D, error) {
	atomic.AddUint64(&s.stats.GetDiffs, 1)
	return s.Model.GetDiff()
}

// Mix delegates to the wrapped model, counting the call.
func (s *Instance[D]) Mix(a D, b *D) error {
	atomic.AddUint64(&s.stats.Mixes, 1)
	return s.Model.Mix(a, b)
}

// PutDiff delegates to the wrapped model, counting the call.
func (s *Instance[D]) PutDiff(d D) (bool, error) {
	atomic.AddUint64(&s.stats.PutDiffs, 1)
	return s.Model.PutDiff(d)
}

// State returns the instance's current lifecycle state.
func (s *Instance[D]) State() InstanceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState transitions the instance's lifecycle state. Neither the mixer
// nor the coordinator's MixRoundDriver consults State; it is recorded for
// callers that read it.
func (s *Instance[D]) SetState(state InstanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Stats returns a snapshot of the instance's operation counters.
func (s *Instance[D]) Stats() InstanceStats {
	return InstanceStats{
		GetDiffs: atomic.LoadUint64(&s.stats.GetDiffs),
		Mixes:    atomic.LoadUint64(&s.stats.Mixes),
		PutDiffs: atomic.LoadUint64(&s.stats.PutDiffs),
	}
}
