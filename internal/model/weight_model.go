package model

import (
	"github.com/dreamware/jubatus/internal/codec"
	"github.com/dreamware/jubatus/internal/mixable"
	"github.com/dreamware/jubatus/internal/version"
	"github.com/dreamware/jubatus/internal/weight"
)

// WeightModel adapts internal/weight.Manager to the Adapter surface. It
// is both fv_converter's own weight manager (TypeWeightManager) and the
// building block every linear-classifier family
// (passive_aggressive/perceptron/CW/AROW/NHERD) mixes through
// (TypeLinearClassifier), distinguished only by the Type passed to New.
type WeightModel struct {
	typ     Type
	manager *weight.Manager
}

// New wraps an existing weight manager as a named model adapter.
func New(typ Type, manager *weight.Manager) *WeightModel {
	return &WeightModel{typ: typ, manager: manager}
}

func (w *WeightModel) Type() Type { return w.typ }

func (w *WeightModel) Clear() { w.manager.Clear() }

// GetMixable returns the underlying Linear-mixable model for
// registration with a portable mixer or a MIX-round driver.
func (w *WeightModel) GetMixable() mixable.Linear[weight.VersionedDiff] {
	return w.manager
}

// UpdateWeight and GetWeight pass straight through for training/serving
// call sites that don't need the adapter wrapper.
func (w *WeightModel) UpdateWeight(terms []string) { w.manager.UpdateWeight(terms) }
func (w *WeightModel) GetWeight(terms []string) map[string]uint64 {
	return w.manager.GetWeight(terms)
}

// packedWeights is the wire shape for pack()/unpack(): the installed
// weights and the version they were installed at. Unlike the LSH
// envelope, this is a single blob — the 2-element pack() shape is
// specific to LSH models.
type packedWeights struct {
	DocumentFrequency map[string]uint64
	DocumentCount     uint64
	Version           uint64
}

func (w *WeightModel) Pack() ([]byte, error) {
	installed := w.manager.Installed()
	return codec.Marshal(&packedWeights{
		DocumentFrequency: installed.DocumentFrequency,
		DocumentCount:     installed.DocumentCount,
		Version:           uint64(w.manager.Version()),
	})
}

func (w *WeightModel) Unpack(b []byte) error {
	var pw packedWeights
	if err := codec.Unmarshal(b, &pw); err != nil {
		return err
	}
	kw := weight.NewKeywordWeights()
	kw.DocumentCount = pw.DocumentCount
	for term, df := range pw.DocumentFrequency {
		kw.DocumentFrequency[term] = df
	}
	w.manager.Restore(kw, version.Version(pw.Version))
	return nil
}
