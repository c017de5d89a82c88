package main

import (
	"fmt"

	"github.com/dreamware/jubatus/internal/mixer"
	"github.com/dreamware/jubatus/internal/model"
	"github.com/dreamware/jubatus/internal/table"
	"github.com/dreamware/jubatus/internal/version"
	"github.com/dreamware/jubatus/internal/weight"
)

// buildHandle constructs the model.Handle for one configured instance,
// dispatching on its declared type. Linear-mixable families are wrapped
// in a mixer.Instance for per-instance operation counters before being
// exposed as a Handle; push-mixable families expose their adapter
// directly since internal/mixer.Instance is Linear-specific.
func buildHandle(owner version.Owner, spec InstanceConfig) (model.Handle, error) {
	switch model.Type(spec.Type) {
	case model.TypeWeightManager, model.TypeLinearClassifier:
		wm := weight.NewManager()
		adapter := model.New(model.Type(spec.Type), wm)
		inst := mixer.NewInstance(spec.Name, spec.Primary, wm)
		return model.NewLinearHandle(adapter, inst), nil

	case model.TypeRecommender:
		rec, err := model.NewRecommender(owner, spec.LSH)
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", spec.Name, err)
		}
		return model.NewPushHandle(rec, rec.GetMixable()), nil

	case model.TypeAnomaly:
		a := model.NewAnomaly(table.New(owner))
		return model.NewPushHandle(a, a), nil

	default:
		return nil, fmt.Errorf("instance %q: unknown model type %q", spec.Name, spec.Type)
	}
}

// buildHandles constructs every configured instance, stopping at the
// first error so a node never starts half-configured.
func buildHandles(owner version.Owner, specs []InstanceConfig) (map[string]model.Handle, error) {
	handles := make(map[string]model.Handle, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("instance config missing name")
		}
		if _, exists := handles[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate instance name %q", spec.Name)
		}
		h, err := buildHandle(owner, spec)
		if err != nil {
			return nil, err
		}
		handles[spec.Name] = h
	}
	return handles, nil
}
