package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/jubatus/internal/config"
	"github.com/dreamware/jubatus/internal/lsh"
	"github.com/dreamware/jubatus/internal/table"
	"github.com/dreamware/jubatus/internal/weight"
)

func TestWeightModelPackUnpackRoundTrip(t *testing.T) {
	m := weight.NewManager()
	m.UpdateWeight([]string{"a", "b"})
	diff, err := m.GetDiff()
	require.NoError(t, err)
	_, err = m.PutDiff(diff)
	require.NoError(t, err)

	wm := New(TypeWeightManager, m)
	assert.Equal(t, TypeWeightManager, wm.Type())

	packed, err := wm.Pack()
	require.NoError(t, err)

	restored := weight.NewManager()
	out := New(TypeWeightManager, restored)
	require.NoError(t, out.Unpack(packed))

	got := restored.GetWeight([]string{"a", "b"})
	assert.EqualValues(t, 1, got["a"])
	assert.EqualValues(t, 1, got["b"])
}

func TestRecommenderTrainAndSimilar(t *testing.T) {
	r, err := NewRecommender("n1", config.LSH{HashNum: 8, TableNum: 2, BinWidth: 50, ProbeNum: 4, Seed: 1091})
	require.NoError(t, err)
	assert.Equal(t, TypeRecommender, r.Type())

	r.Train("doc1", lsh.SparseVector{"a": 1, "b": 2})
	r.Train("doc2", lsh.SparseVector{"x": 9})

	res := r.SimilarRow(lsh.SparseVector{"a": 1, "b": 2}, 1)
	require.Len(t, res, 1)
	assert.Equal(t, "doc1", res[0].ID)

	raw, err := r.RawVector("doc1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, raw["a"])
}

func TestRecommenderPackUnpackRoundTrip(t *testing.T) {
	cfg := config.LSH{HashNum: 4, TableNum: 2, BinWidth: 10, ProbeNum: 0, Seed: 1091}
	r, err := NewRecommender("n1", cfg)
	require.NoError(t, err)
	r.Train("doc1", lsh.SparseVector{"a": 1})

	packed, err := r.Pack()
	require.NoError(t, err)

	out, err := NewRecommender("n1", cfg)
	require.NoError(t, err)
	require.NoError(t, out.Unpack(packed))

	raw, err := out.RawVector("doc1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, raw["a"])
}

func TestAnomalyPushMixable(t *testing.T) {
	a := NewAnomaly(table.New("peerA"))
	a.Add("row1", table.Columns{"score": 0.5})

	arg, err := a.GetArgument()
	require.NoError(t, err)
	rows, err := a.Pull(arg)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	b := NewAnomaly(table.New("peerB"))
	require.NoError(t, b.Push(rows))
	_, cols, ok := b.GetRow("row1")
	require.True(t, ok)
	assert.EqualValues(t, 0.5, cols["score"])
}

func TestAnomalyPackUnpackRoundTrip(t *testing.T) {
	a := NewAnomaly(table.New("peerA"))
	a.Add("row1", table.Columns{"score": 0.5})

	packed, err := a.Pack()
	require.NoError(t, err)

	b := NewAnomaly(table.New("peerA"))
	require.NoError(t, b.Unpack(packed))
	_, cols, ok := b.GetRow("row1")
	require.True(t, ok)
	assert.EqualValues(t, 0.5, cols["score"])
}
