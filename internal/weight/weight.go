// Package weight implements a linear-mixable weight manager: an
// accumulator of (document_count, term -> document_frequency) used by
// fv_converter's IDF-style feature weighting.
//
// Grounded closely on
// original_source/jubatus/core/fv_converter/mixable_weight_manager_test.cpp,
// whose fixtures are reproduced as this package's table tests.
package weight

import (
	"sync"

	"github.com/dreamware/jubatus/internal/version"
)

// KeywordWeights is a pure additive CRDT: a document count and a
// term->document-frequency map, merged by summing.
type KeywordWeights struct {
	DocumentFrequency map[string]uint64
	DocumentCount     uint64
}

// NewKeywordWeights returns an empty accumulator.
func NewKeywordWeights() KeywordWeights {
	return KeywordWeights{DocumentFrequency: make(map[string]uint64)}
}

// Clone returns a deep copy.
func (k KeywordWeights) Clone() KeywordWeights {
	out := KeywordWeights{
		DocumentCount:     k.DocumentCount,
		DocumentFrequency: make(map[string]uint64, len(k.DocumentFrequency)),
	}
	for term, df := range k.DocumentFrequency {
		out.DocumentFrequency[term] = df
	}
	return out
}

// UpdateDocumentFrequency increments the document count by one and, for
// every distinct term present in fv, increments that term's document
// frequency by one — mirroring keyword_weights::update_document_frequency
// in the original, which counts a term once per document regardless of
// its weight within that document.
func (k *KeywordWeights) UpdateDocumentFrequency(terms []string) {
	k.DocumentCount++
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		k.DocumentFrequency[term]++
	}
}

// DocumentFrequencyOf returns the document frequency for term, 0 if
// unseen.
func (k KeywordWeights) DocumentFrequencyOf(term string) uint64 {
	return k.DocumentFrequency[term]
}

// MergeSum merges other into k by summing document counts and, per term,
// document frequencies — the sibling-merge branch of versioned_weight_diff.
func (k *KeywordWeights) MergeSum(other KeywordWeights) {
	k.DocumentCount += other.DocumentCount
	for term, df := range other.DocumentFrequency {
		k.DocumentFrequency[term] += df
	}
}

// VersionedDiff pairs a version with a KeywordWeights snapshot. Version
// order is used for last-writer-wins when merging two non-sibling diffs.
type VersionedDiff struct {
	Weights KeywordWeights
	Version version.Version
}

// Merge folds other into d: equal versions sum pointwise; unequal
// versions keep the higher-versioned side untouched and discard the
// lower.
func (d *VersionedDiff) Merge(other VersionedDiff) {
	switch {
	case d.Version == other.Version:
		d.Weights.MergeSum(other.Weights)
	case other.Version > d.Version:
		d.Version = other.Version
		d.Weights = other.Weights.Clone()
	default:
		// d already has the strictly greater version; keep d as-is.
	}
}

// Manager is the mutable accumulator side of the weight manager: trainers
// call UpdateWeight as documents arrive, and MIX periodically calls
// GetDiff/PutDiff to reconcile with peers.
type Manager struct {
	mu          sync.Mutex
	accumulated KeywordWeights
	installed   KeywordWeights
	ver         version.Version
}

// NewManager returns a fresh, empty weight manager.
func NewManager() *Manager {
	return &Manager{
		accumulated: NewKeywordWeights(),
		installed:   NewKeywordWeights(),
	}
}

// UpdateWeight records one document's distinct terms into the locally
// accumulated diff.
func (m *Manager) UpdateWeight(terms []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accumulated.UpdateDocumentFrequency(terms)
}

// GetWeight returns the document frequency of each requested term against
// the installed (post-MIX) weights, mirroring weight_manager::get_weight.
func (m *Manager) GetWeight(terms []string) map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(terms))
	for _, t := range terms {
		out[t] = m.installed.DocumentFrequencyOf(t)
	}
	return out
}

// GetDiff returns a snapshot of the locally accumulated diff stamped with
// the current version, satisfying the Linear mixable contract
// (internal/mixable.Linear[VersionedDiff]).
//
// Unlike PutDiff, GetDiff does not reset the accumulator: get_diff may be
// called repeatedly by multiple MIX rounds before a put_diff finally
// resets it — get_diff() returns version=0 until the first put_diff
// installs it; the next get_diff() then returns version=1 with an empty
// document-frequency map.
func (m *Manager) GetDiff() (VersionedDiff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return VersionedDiff{Version: m.ver, Weights: m.accumulated.Clone()}, nil
}

// Mix combines two peer diffs (internal/mixable.Linear[VersionedDiff]).
func (m *Manager) Mix(a VersionedDiff, b *VersionedDiff) error {
	b.Merge(a)
	return nil
}

// PutDiff installs d as the new weights and bumps the version, resetting
// the local accumulator atomically with the install.
func (m *Manager) PutDiff(d VersionedDiff) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.installed = d.Weights.Clone()
	if d.Version > m.ver {
		m.ver = d.Version
	}
	m.ver++
	m.accumulated = NewKeywordWeights()
	return true, nil
}

// Installed returns a copy of the currently installed (post-MIX) weights,
// used by a model adapter's pack().
func (m *Manager) Installed() KeywordWeights {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed.Clone()
}

// Restore replaces the installed weights and version counter, used by a
// model adapter's unpack(). The local accumulator is left untouched.
func (m *Manager) Restore(installed KeywordWeights, ver version.Version) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installed = installed.Clone()
	m.ver = ver
}

// Version returns the manager's current version counter.
func (m *Manager) Version() version.Version {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ver
}

// Clear resets both the installed weights and the local accumulator to
// the identity element of Mix.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accumulated = NewKeywordWeights()
	m.installed = NewKeywordWeights()
	m.ver = 0
}
