// Package table implements the versioned column table backing every
// push-mixable model: an ordered, row-stamped collection that knows
// how to compute and apply diffs against a peer's version clock.
//
// Grounded on original_source/jubatus/core/framework/mixable_versioned_table.hpp;
// concurrency shape (RWMutex, copy-out reads) follows the same
// discipline a plain key-value store would use.
package table

import (
	"sort"
	"sync"

	"github.com/dreamware/jubatus/internal/jerrors"
	"github.com/dreamware/jubatus/internal/version"
)

// Columns is a schema-agnostic tuple of typed column values for one row.
// A table's schema is fixed by convention of the caller (int, float,
// string, binary); this package stores values opaquely.
type Columns map[string]any

// Clone returns a deep-enough copy of c (values are not further copied:
// this follows a "return a copy of the container, not the contents"
// convention for simple value types).
func (c Columns) Clone() Columns {
	out := make(Columns, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Row is a single stamped record: an id, its (owner, version) stamp, and
// its column values. Deleted rows are represented as tombstones —
// Columns is nil and Tombstone is true — so deletions propagate through
// MIX like any other write.
type Row struct {
	Stamp     version.Stamp
	Columns   Columns
	ID        string
	Tombstone bool
}

// Unlearner is notified when a row is evicted from the table, carrying
// forward the original's unlearner hook (mixable_versioned_table.hpp's
// set_unlearner).
type Unlearner interface {
	OnEvict(id string)
}

// Table is the versioned column table. The zero value is not usable; call
// New.
type Table struct {
	rows      map[string]*Row
	mu        sync.RWMutex
	owner     version.Owner
	nextVer   version.Version
	unlearner Unlearner
}

// New creates an empty table whose writes will be stamped under owner.
func New(owner version.Owner) *Table {
	return &Table{
		rows:  make(map[string]*Row),
		owner: owner,
	}
}

// SetUnlearner installs an eviction-notification hook.
func (t *Table) SetUnlearner(u Unlearner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unlearner = u
}

// nextStamp returns the next (owner, version) stamp for a locally
// originated write. Caller must hold t.mu.
func (t *Table) nextStamp() version.Stamp {
	t.nextVer++
	return version.Stamp{Owner: t.owner, Version: t.nextVer}
}

// Add inserts or replaces the row at id with a locally-assigned stamp,
// silently rejecting the write if the table already holds a row whose
// stamp is newer.
//
// Returns the stamp actually installed, and whether the write was
// accepted.
func (t *Table) Add(id string, cols Columns) (version.Stamp, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp := t.nextStamp()
	if existing, ok := t.rows[id]; ok && !stamp.GreaterOrEqual(existing.Stamp) {
		// Reached when the existing row was written by a peer whose owner
		// sorts after the local owner: under the (owner, version) order
		// that stamp outranks any local stamp.
		t.nextVer--
		return existing.Stamp, false
	}

	t.rows[id] = &Row{ID: id, Stamp: stamp, Columns: cols.Clone()}
	return stamp, true
}

// AddStamped installs a row under an explicit, pre-assigned stamp — the
// path used when applying a diff received from a peer: the new stamp
// must be >= the old stamp under (owner lexicographic, version),
// otherwise the write is rejected.
func (t *Table) AddStamped(id string, stamp version.Stamp, cols Columns) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addStampedLocked(id, stamp, cols, false)
}

func (t *Table) addStampedLocked(id string, stamp version.Stamp, cols Columns, tombstone bool) bool {
	if existing, ok := t.rows[id]; ok {
		if stamp == existing.Stamp {
			return true // idempotent no-op: ties on the same stamp are a no-op
		}
		if !stamp.GreaterOrEqual(existing.Stamp) {
			return false
		}
	}
	var c Columns
	if !tombstone {
		c = cols.Clone()
	}
	t.rows[id] = &Row{ID: id, Stamp: stamp, Columns: c, Tombstone: tombstone}
	return true
}

// Remove tombstones id under the local owner's next version, so the
// deletion itself propagates through MIX.
func (t *Table) Remove(id string) version.Stamp {
	t.mu.Lock()
	defer t.mu.Unlock()
	stamp := t.nextStamp()
	t.rows[id] = &Row{ID: id, Stamp: stamp, Tombstone: true}
	if t.unlearner != nil {
		t.unlearner.OnEvict(id)
	}
	return stamp
}

// GetRow returns a copy of the row at id. ok is false if id is unknown or
// tombstoned.
func (t *Table) GetRow(id string) (version.Stamp, Columns, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	if !ok || row.Tombstone {
		return version.Stamp{}, nil, false
	}
	return row.Stamp, row.Columns.Clone(), true
}

// Scan returns a point-in-time snapshot of every live (non-tombstoned)
// row, sorted by id for deterministic iteration in tests.
func (t *Table) Scan() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		if row.Tombstone {
			continue
		}
		out = append(out, Row{ID: row.ID, Stamp: row.Stamp, Columns: row.Columns.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clock returns a clock recording the highest installed version per
// owner, usable as the GetArgument half of the Push mixable contract
// for column-table-backed models (anomaly / nearest-neighbor).
func (t *Table) Clock() *version.Clock {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := version.NewClock()
	for _, row := range t.rows {
		c.Observe(row.Stamp.Owner, row.Stamp.Version)
	}
	return c
}

// Clear empties the table, used by a model adapter's clear().
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[string]*Row)
	t.nextVer = 0
}

// Len returns the number of live rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, row := range t.rows {
		if !row.Tombstone {
			n++
		}
	}
	return n
}

// GetDiff returns every row (including tombstones, so deletions
// propagate) whose stamp version exceeds clock[stamp.Owner], ordered by
// (owner, version) for a deterministic diff.
func (t *Table) GetDiff(clock *version.Clock) []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var diff []Row
	for _, row := range t.rows {
		seen := version.Version(0)
		if clock != nil {
			seen = clock.Get(row.Stamp.Owner)
		}
		if row.Stamp.Version > seen {
			diff = append(diff, Row{
				ID:        row.ID,
				Stamp:     row.Stamp,
				Columns:   row.Columns.Clone(),
				Tombstone: row.Tombstone,
			})
		}
	}
	sort.Slice(diff, func(i, j int) bool {
		if diff[i].Stamp.Owner != diff[j].Stamp.Owner {
			return diff[i].Stamp.Owner < diff[j].Stamp.Owner
		}
		return diff[i].Stamp.Version < diff[j].Stamp.Version
	})
	return diff
}

// PutDiff applies each row in rows under the push-mixable replace rule
// and returns the set of owners whose maximum installed version
// advanced. Malformed rows (empty owner with nonzero version) are
// dropped and reported via jerrors.ArgumentUnmatch without aborting the
// rest of the batch — errors in a single row are returned in errs and
// that row skipped, applied here at row granularity. A row whose exact
// stamp is already installed is a no-op and advances nothing.
func (t *Table) PutDiff(rows []Row) (advanced map[version.Owner]version.Version, errs []error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	advanced = make(map[version.Owner]version.Version)
	for _, row := range rows {
		if row.Stamp.Owner == "" && row.Stamp.Version != 0 {
			errs = append(errs, jerrors.New(jerrors.ArgumentUnmatch, "table.PutDiff",
				"row %q has zero owner with nonzero version", row.ID))
			continue
		}
		if existing, ok := t.rows[row.ID]; ok && existing.Stamp == row.Stamp {
			continue
		}
		if t.addStampedLocked(row.ID, row.Stamp, row.Columns, row.Tombstone) {
			if row.Stamp.Version > advanced[row.Stamp.Owner] {
				advanced[row.Stamp.Owner] = row.Stamp.Version
			}
		}
	}
	return advanced, errs
}
