// Package mixer implements the portable mixer: an in-process
// analogue of the distributed MIX protocol that fans a round across N
// local model shards, useful both for single-process deployments and for
// exercising the MIX contract in tests without a network.
//
// Grounded closely on
// original_source/jubatus/core/common/portable_mixer.hpp, including its
// two constructors (default-seeded and explicitly-seeded).
package mixer

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/dreamware/jubatus/internal/hashutil"
	"github.com/dreamware/jubatus/internal/jerrors"
	"github.com/dreamware/jubatus/internal/mixable"
)

// Mixer composes N local shards implementing the Linear mixable contract
// over diff type D into one logical model.
type Mixer[D any] struct {
	mu       sync.RWMutex
	storages []mixable.Linear[D]
	rnd      *rand.Rand
	log      *zap.Logger
}

// New returns a mixer seeded from a fixed, reproducible source —
// equivalent to the original's default constructor.
func New[D any]() *Mixer[D] {
	return &Mixer[D]{rnd: rand.New(rand.NewSource(0)), log: zap.NewNop()}
}

// NewSeeded returns a mixer whose get_random draws are reproducible from
// seed — the original's `explicit portable_mixer(uint32_t seed)`
// constructor.
func NewSeeded[D any](seed uint64) *Mixer[D] {
	return &Mixer[D]{rnd: rand.New(rand.NewSource(seed)), log: zap.NewNop()}
}

// SetLogger installs a logger used to report per-shard MIX failures that
// must be logged and skipped, not fatal to the round.
func (m *Mixer[D]) SetLogger(log *zap.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

// Add registers a shard with the mixer. Shards are never removed once
// added, matching the original (clear() is the only way to empty the
// set).
func (m *Mixer[D]) Add(storage mixable.Linear[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storages = append(m.storages, storage)
}

// Clear empties the shard set.
func (m *Mixer[D]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storages = nil
}

// Len returns the number of registered shards.
func (m *Mixer[D]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.storages)
}

// GetRandom returns a uniformly selected shard, for writes without a
// routing key.
func (m *Mixer[D]) GetRandom() (mixable.Linear[D], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.storages) == 0 {
		return nil, jerrors.New(jerrors.NoWorker, "mixer.GetRandom", "no shards registered")
	}
	return m.storages[m.rnd.Intn(len(m.storages))], nil
}

// GetHash returns the shard that deterministically owns id, so repeated
// reads and writes for the same id always hit the same shard.
func (m *Mixer[D]) GetHash(id string) (mixable.Linear[D], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.storages) == 0 {
		return nil, jerrors.New(jerrors.NoWorker, "mixer.GetHash", "no shards registered")
	}
	idx := hashutil.Mod(id, len(m.storages))
	return m.storages[idx], nil
}

// Mix runs one in-process MIX round: pulls a diff from shard 0, folds
// every other shard's diff into it via the linear-mixable operator, then
// broadcasts the merged diff to every shard via PutDiff.
//
// After Mix returns, every shard has received the same diff object, so
// their installed states agree up to the linear-mixable equivalence
// class.
func (m *Mixer[D]) Mix() error {
	m.mu.RLock()
	storages := make([]mixable.Linear[D], len(m.storages))
	copy(storages, m.storages)
	m.mu.RUnlock()

	if len(storages) == 0 {
		return nil
	}

	mixed, err := storages[0].GetDiff()
	if err != nil {
		return jerrors.Wrap(jerrors.Storage, "mixer.Mix", err, "get_diff on shard 0 failed")
	}

	for i := 1; i < len(storages); i++ {
		diff, err := storages[i].GetDiff()
		if err != nil {
			// Errors in MIX for a single peer are logged and that peer is
			// skipped, not fatal to the round.
			m.log.Warn("mix: get_diff failed, skipping shard", zap.Int("shard", i), zap.Error(err))
			continue
		}
		if err := storages[0].Mix(diff, &mixed); err != nil {
			m.log.Warn("mix: merging shard diff failed, skipping shard", zap.Int("shard", i), zap.Error(err))
			continue
		}
	}

	for i, s := range storages {
		if _, err := s.PutDiff(mixed); err != nil {
			m.log.Warn("mix: put_diff failed on shard", zap.Int("shard", i), zap.Error(err))
			continue
		}
	}
	return nil
}
