package weight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildFixtures reproduces mixable_weight_manager_test.cpp's SetUp exactly:
// kw1 from [{a},{b},{b}] (doc_count=3, df={a:1,b:2});
// kw2 from [{b}x4,{c}x8] (doc_count=12, df={b:4,c:8}).
func buildFixtures() (kw1, kw2 KeywordWeights) {
	kw1 = NewKeywordWeights()
	kw1.UpdateDocumentFrequency([]string{"a"})
	kw1.UpdateDocumentFrequency([]string{"b"})
	kw1.UpdateDocumentFrequency([]string{"b"})

	kw2 = NewKeywordWeights()
	for i := 0; i < 4; i++ {
		kw2.UpdateDocumentFrequency([]string{"b"})
	}
	for i := 0; i < 8; i++ {
		kw2.UpdateDocumentFrequency([]string{"c"})
	}
	return kw1, kw2
}

func TestFixtures(t *testing.T) {
	kw1, kw2 := buildFixtures()
	assert.EqualValues(t, 3, kw1.DocumentCount)
	assert.EqualValues(t, 1, kw1.DocumentFrequencyOf("a"))
	assert.EqualValues(t, 2, kw1.DocumentFrequencyOf("b"))

	assert.EqualValues(t, 12, kw2.DocumentCount)
	assert.EqualValues(t, 4, kw2.DocumentFrequencyOf("b"))
	assert.EqualValues(t, 8, kw2.DocumentFrequencyOf("c"))
}

// Sibling merge: both versions incremented once, so they're equal and
// the merge sums.
func TestMergeSumsSiblingVersions(t *testing.T) {
	kw1, kw2 := buildFixtures()
	vw1 := VersionedDiff{Weights: kw1}
	vw2 := VersionedDiff{Weights: kw2}

	vw1.Version = vw1.Version.Next()
	vw2.Version = vw2.Version.Next()
	vw1.Merge(vw2)

	assert.EqualValues(t, 15, vw1.Weights.DocumentCount)
	assert.EqualValues(t, 1, vw1.Weights.DocumentFrequencyOf("a"))
	assert.EqualValues(t, 6, vw1.Weights.DocumentFrequencyOf("b"))
	assert.EqualValues(t, 8, vw1.Weights.DocumentFrequencyOf("c"))
}

// Version win: only one side's version advances, so it wins and the
// other side's contribution is discarded.
func TestMergeDiscardsLowerVersionLeftAdvances(t *testing.T) {
	kw1, kw2 := buildFixtures()
	vw1 := VersionedDiff{Weights: kw1}
	vw2 := VersionedDiff{Weights: kw2}

	vw1.Version = vw1.Version.Next()
	vw1.Merge(vw2)

	assert.EqualValues(t, 3, vw1.Weights.DocumentCount)
	assert.EqualValues(t, 1, vw1.Weights.DocumentFrequencyOf("a"))
	assert.EqualValues(t, 2, vw1.Weights.DocumentFrequencyOf("b"))
	assert.EqualValues(t, 0, vw1.Weights.DocumentFrequencyOf("c"))
}

// Same as above with the other side advancing instead.
func TestMergeDiscardsLowerVersionRightAdvances(t *testing.T) {
	kw1, kw2 := buildFixtures()
	vw1 := VersionedDiff{Weights: kw1}
	vw2 := VersionedDiff{Weights: kw2}

	vw2.Version = vw2.Version.Next()
	vw1.Merge(vw2)

	assert.EqualValues(t, 12, vw1.Weights.DocumentCount)
	assert.EqualValues(t, 0, vw1.Weights.DocumentFrequencyOf("a"))
	assert.EqualValues(t, 4, vw1.Weights.DocumentFrequencyOf("b"))
	assert.EqualValues(t, 8, vw1.Weights.DocumentFrequencyOf("c"))
}

// Manager.PutDiff bumps the version and resets the accumulator.
func TestManagerPutDiffBumpsVersionAndResets(t *testing.T) {
	m := NewManager()
	m.UpdateWeight([]string{"a", "b"})

	got, err := m.GetDiff()
	assert.NoError(t, err)
	assert.EqualValues(t, 0, got.Version)
	assert.EqualValues(t, 1, got.Weights.DocumentFrequencyOf("a"))
	assert.EqualValues(t, 1, got.Weights.DocumentFrequencyOf("b"))

	accepted, err := m.PutDiff(got)
	assert.NoError(t, err)
	assert.True(t, accepted)

	got2, err := m.GetDiff()
	assert.NoError(t, err)
	assert.EqualValues(t, 1, got2.Version)
	assert.EqualValues(t, 0, got2.Weights.DocumentFrequencyOf("a"))
	assert.EqualValues(t, 0, got2.Weights.DocumentFrequencyOf("b"))

	weights := m.GetWeight([]string{"a", "b"})
	assert.EqualValues(t, 1, weights["a"])
	assert.EqualValues(t, 1, weights["b"])
}

func TestClearIsMixIdentity(t *testing.T) {
	m := NewManager()
	m.UpdateWeight([]string{"a"})
	m.Clear()

	got, err := m.GetDiff()
	assert.NoError(t, err)
	assert.EqualValues(t, 0, got.Version)
	assert.EqualValues(t, 0, got.Weights.DocumentCount)
}
