// Package model implements the adapter layer: the thin bindings that
// expose each learning-model family through exactly one of the two
// mixable contracts (internal/mixable), plus a uniform type()/clear()/
// pack()/unpack()/get_mixable() surface regardless of which contract a
// given family uses.
//
// Grounded on original_source/.../recommender/euclid_lsh.cpp's adapter
// shape (it implements type()/clear()/pack()/unpack()/get_mix_argument()
// directly alongside its storage, which this package generalizes into a
// separate, reusable adapter per family instead of duplicating MIX
// plumbing in every model).
package model

// Type names a model family, reported by an adapter's Type() method for
// logging and admin/diagnostic endpoints.
type Type string

const (
	// TypeLinearClassifier covers passive_aggressive, perceptron, CW,
	// AROW and NHERD — all linear mixable over a weight-table diff.
	TypeLinearClassifier Type = "linear_classifier"
	// TypeRecommender covers euclid_lsh / minhash — push mixable over
	// LSH index storage plus an auxiliary raw-vector store.
	TypeRecommender Type = "recommender"
	// TypeAnomaly covers anomaly / nearest-neighbor — push mixable over
	// a column table.
	TypeAnomaly Type = "anomaly"
	// TypeWeightManager is fv_converter's own linear-mixable weight
	// accumulator (also the building block TypeLinearClassifier uses).
	TypeWeightManager Type = "weight_manager"
)

// Adapter is the uniform surface every model family exposes regardless
// of which mixable contract backs it: type(), clear(), pack()/unpack(),
// and get_mixable().
//
// get_mixable() itself is intentionally not part of this interface: its
// return type differs per family (mixable.Linear[D] vs
// mixable.Push[D]), so each adapter exposes it with its own concrete
// signature (e.g. Recommender.GetMixable() mixable.Push[[]lsh.PackedRow])
// instead of forcing a lossy common type.
type Adapter interface {
	Type() Type
	Clear()
	Pack() ([]byte, error)
	Unpack([]byte) error
}
