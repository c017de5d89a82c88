package model

import (
	"github.com/dreamware/jubatus/internal/codec"
	"github.com/dreamware/jubatus/internal/config"
	"github.com/dreamware/jubatus/internal/jerrors"
	"github.com/dreamware/jubatus/internal/lsh"
	"github.com/dreamware/jubatus/internal/mixable"
	"github.com/dreamware/jubatus/internal/storage"
	"github.com/dreamware/jubatus/internal/version"
)

// Recommender adapts internal/lsh.Index (the hash side) and
// internal/storage.Store (the raw-vector side) into one push-mixable
// model: a euclid_lsh/minhash recommender mixes over its LSH index
// storage, plus an auxiliary row store for raw vectors.
type Recommender struct {
	index *lsh.Index
	raw   storage.Store
}

// NewRecommender constructs a Recommender whose hash side is validated
// against cfg (jerrors.InvalidParameter on a bad option) and whose raw
// side is an empty in-memory store.
func NewRecommender(owner version.Owner, cfg config.LSH) (*Recommender, error) {
	idx, err := lsh.New(owner, cfg)
	if err != nil {
		return nil, err
	}
	return &Recommender{index: idx, raw: storage.NewMemoryStore()}, nil
}

func (r *Recommender) Type() Type { return TypeRecommender }

func (r *Recommender) Clear() {
	r.index.Clear()
	r.raw.Clear()
}

// GetMixable returns the underlying Push-mixable model.
func (r *Recommender) GetMixable() mixable.Push[[]lsh.PackedRow] {
	return r.index
}

// Train indexes sfv's hash under id and retains sfv itself in the raw
// side store for later exact re-scoring.
func (r *Recommender) Train(id string, sfv lsh.SparseVector) version.Stamp {
	stamp := r.index.SetRow(id, sfv)
	_ = r.raw.Put(id, storage.Vector(sfv))
	return stamp
}

// SimilarRow returns the nearest ids to sfv by approximate distance.
func (r *Recommender) SimilarRow(sfv lsh.SparseVector, retNum int) []lsh.Candidate {
	return r.index.SimilarRow(sfv, retNum)
}

// NeighborRow returns the same candidates in the same order as
// SimilarRow, with each distance negated into a similarity score.
func (r *Recommender) NeighborRow(sfv lsh.SparseVector, retNum int) []lsh.Candidate {
	return r.index.NeighborRow(sfv, retNum)
}

// RawVector returns id's exact feature vector from the side store.
func (r *Recommender) RawVector(id string) (storage.Vector, error) {
	return r.raw.Get(id)
}

// rawEnvelope is the wire shape of the raw-vector side's pack() half.
type rawEnvelope struct {
	_msgpack struct{} `msgpack:",as_array"`
	IDs      []string
	Vectors  []map[string]float64
}

// Pack emits the 2-element pack() sequence for LSH models:
// [raw_row_store, hash_index].
func (r *Recommender) Pack() ([]byte, error) {
	ids := r.raw.List()
	env := rawEnvelope{IDs: ids, Vectors: make([]map[string]float64, len(ids))}
	for i, id := range ids {
		v, err := r.raw.Get(id)
		if err != nil {
			return nil, err
		}
		env.Vectors[i] = v
	}
	rawBytes, err := codec.Marshal(&env)
	if err != nil {
		return nil, err
	}
	hashBytes, err := r.index.Pack()
	if err != nil {
		return nil, err
	}
	return codec.MarshalEnvelope(rawBytes, hashBytes)
}

// Unpack restores both halves of a pack()'d recommender, rejecting
// anything that isn't the 2-element shape.
func (r *Recommender) Unpack(b []byte) error {
	rawBytes, hashBytes, err := codec.UnmarshalEnvelope(b)
	if err != nil {
		return err
	}

	var env rawEnvelope
	if err := codec.Unmarshal(rawBytes, &env); err != nil {
		return err
	}
	if len(env.IDs) != len(env.Vectors) {
		return jerrors.New(jerrors.Serialization, "model.Recommender.Unpack",
			"raw store id/vector count mismatch: %d ids, %d vectors", len(env.IDs), len(env.Vectors))
	}

	r.raw.Clear()
	for i, id := range env.IDs {
		if err := r.raw.Put(id, env.Vectors[i]); err != nil {
			return err
		}
	}
	return r.index.Unpack(hashBytes)
}
