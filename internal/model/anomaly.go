package model

import (
	"github.com/dreamware/jubatus/internal/codec"
	"github.com/dreamware/jubatus/internal/mixable"
	"github.com/dreamware/jubatus/internal/table"
	"github.com/dreamware/jubatus/internal/version"
)

// Anomaly adapts internal/table.Table into a push-mixable model for the
// anomaly/nearest-neighbor family.
type Anomaly struct {
	t *table.Table
}

// NewAnomaly wraps t as an anomaly model adapter.
func NewAnomaly(t *table.Table) *Anomaly {
	return &Anomaly{t: t}
}

func (a *Anomaly) Type() Type { return TypeAnomaly }

func (a *Anomaly) Clear() { a.t.Clear() }

// GetArgument, Pull and Push satisfy mixable.Push[[]table.Row] directly
// against the underlying table.
func (a *Anomaly) GetArgument() (*version.Clock, error) {
	return a.t.Clock(), nil
}

func (a *Anomaly) Pull(arg *version.Clock) ([]table.Row, error) {
	return a.t.GetDiff(arg), nil
}

func (a *Anomaly) Push(rows []table.Row) error {
	_, errs := a.t.PutDiff(rows)
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// GetMixable returns the adapter itself as the Push-mixable model.
func (a *Anomaly) GetMixable() mixable.Push[[]table.Row] {
	return a
}

// Add, Remove and GetRow pass through for training/serving call sites.
func (a *Anomaly) Add(id string, cols table.Columns) (version.Stamp, bool) {
	return a.t.Add(id, cols)
}
func (a *Anomaly) Remove(id string) version.Stamp { return a.t.Remove(id) }
func (a *Anomaly) GetRow(id string) (version.Stamp, table.Columns, bool) {
	return a.t.GetRow(id)
}

// Pack emits the table itself: for column-table models, a single-element
// payload rather than LSH's 2-element envelope.
func (a *Anomaly) Pack() ([]byte, error) {
	return codec.Marshal(a.t.Scan())
}

func (a *Anomaly) Unpack(b []byte) error {
	var rows []table.Row
	if err := codec.Unmarshal(b, &rows); err != nil {
		return err
	}
	a.t.Clear()
	for _, row := range rows {
		a.t.AddStamped(row.ID, row.Stamp, row.Columns)
	}
	return nil
}
