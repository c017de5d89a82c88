// Package mixable defines the two mixing contracts every model in
// Jubatus-Go must satisfy. Rather than the source's
// abstract-base-class hierarchy, each contract is an explicit Go
// interface parameterized over its own diff type, and a model value
// declares which one it implements by simply having the right methods —
// a tagged union in spirit.
package mixable

import "github.com/dreamware/jubatus/internal/version"

// Linear is the symmetric-merge contract for state that is
// pointwise additive or idempotent: weight tables, keyword-frequency
// accumulators, and similar CRDT-shaped models.
//
// Implementations must make Mix commutative and associative, and
// PutDiff must atomically install the merged diff and reset the local
// accumulator.
type Linear[D any] interface {
	// GetDiff returns the diff accumulated locally since the last
	// PutDiff.
	GetDiff() (D, error)

	// Mix combines peer diff a into b in place. Must be commutative and
	// associative; if D carries a version, the higher-version side wins
	// with ties broken by additive merge.
	Mix(a D, b *D) error

	// PutDiff installs the merged diff d, resetting the local
	// accumulator on success. accepted reports whether d was installed;
	// an implementation may refuse a d whose version is not newer than
	// the installed one (weight.Manager accepts every diff).
	PutDiff(d D) (accepted bool, err error)
}

// Push is the asymmetric pull-push contract for state whose
// authoritative copy is distributed across peers and each peer only
// caches part of it: the column-table-backed models and the LSH index.
type Push[D any] interface {
	// GetArgument returns what the caller already knows, to be sent to a
	// peer as the argument of a Pull.
	GetArgument() (*version.Clock, error)

	// Pull serializes rows whose stamp version exceeds what arg reports
	// for that owner.
	Pull(arg *version.Clock) (D, error)

	// Push installs rows from d, accepting each row iff its stamp is
	// strictly newer than the currently installed stamp for the same
	// (owner, id), then advances the local version clock.
	Push(d D) error
}

// Clearable is implemented by every model adapter regardless of which
// mixable contract it satisfies: type(), clear(), pack()/unpack(),
// get_mixable().
type Clearable interface {
	Clear()
}
