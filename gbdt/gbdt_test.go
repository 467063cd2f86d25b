// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gbdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// twoTreeModel builds the canonical golden model used throughout the
// determinism harness: tree 1 splits on feature 0 at 50e6 with leaves
// 8500e6/5000e6; tree 2 splits on feature 1 at 100e6 with leaves
// -500e6/500e6; bias 0.
func twoTreeModel(t *testing.T) *Model {
	t.Helper()
	const scale = 1_000_000
	m := &Model{
		Version: 1,
		Scale:   scale,
		Bias:    0,
		Arity:   2,
		Trees: []Tree{
			{Nodes: []Node{
				{Kind: Internal, FeatureIndex: 0, Threshold: 50 * scale, Left: 1, Right: 2},
				{Kind: Leaf, Value: 8500 * scale},
				{Kind: Leaf, Value: 5000 * scale},
			}},
			{Nodes: []Node{
				{Kind: Internal, FeatureIndex: 1, Threshold: 100 * scale, Left: 1, Right: 2},
				{Kind: Leaf, Value: -500 * scale},
				{Kind: Leaf, Value: 500 * scale},
			}},
		},
	}
	return m
}

func TestScoreGoldenVector(t *testing.T) {
	m := twoTreeModel(t)
	score, err := m.Score([]int64{99_000_000, 10_000_000})
	require.NoError(t, err)
	require.Equal(t, int64(9_000_000_000), score)
}

func TestScoreTieGoesLeft(t *testing.T) {
	m := twoTreeModel(t)
	// feature[0] == threshold exactly: tie must descend left (8500e6 leaf).
	// feature[1]=0 < 100e6 threshold: descends right (500e6 leaf).
	score, err := m.Score([]int64{50_000_000, 0})
	require.NoError(t, err)
	require.Equal(t, int64(8500_000_000+500_000_000), score)
}

func TestScoreFeatureVectorTooShort(t *testing.T) {
	m := twoTreeModel(t)
	_, err := m.Score([]int64{1})
	require.ErrorIs(t, err, ErrFeatureVectorLength)
}

func TestLoadRejectsEmptyModel(t *testing.T) {
	_, err := Load([]byte(`{"version":1,"scale":1000000,"bias":0,"trees":[]}`))
	require.ErrorIs(t, err, ErrEmptyModel)
}

func TestLoadRejectsDanglingRef(t *testing.T) {
	data := []byte(`{"version":1,"scale":1000000,"bias":0,"trees":[{"nodes":[
		{"feature_index":0,"threshold":1,"left":5,"right":2},
		{"value":1}
	]}]}`)
	_, err := Load(data)
	require.ErrorIs(t, err, ErrDanglingRef)
}

func TestLoadRejectsCycle(t *testing.T) {
	data := []byte(`{"version":1,"scale":1000000,"bias":0,"trees":[{"nodes":[
		{"feature_index":0,"threshold":1,"left":0,"right":0}
	]}]}`)
	_, err := Load(data)
	require.ErrorIs(t, err, ErrCycle)
}

func TestCanonicalJSONKeySetsAreExactAndExclusive(t *testing.T) {
	m := &Model{
		Version: 1,
		Scale:   1_000_000,
		Bias:    0,
		Arity:   1,
		Trees: []Tree{
			{Nodes: []Node{
				{Kind: Internal, FeatureIndex: 0, Threshold: 50, Left: 1, Right: 2},
				{Kind: Leaf, Value: 1},
				{Kind: Leaf, Value: 2},
			}},
		},
	}
	want := `{"version":1,"scale":1000000,"bias":0,"trees":[{"nodes":[` +
		`{"feature_index":0,"threshold":50,"left":1,"right":2},` +
		`{"value":1},` +
		`{"value":2}` +
		`]}]}`
	require.Equal(t, want, string(m.CanonicalJSON()))
}

func TestLoadRoundTrip(t *testing.T) {
	m := twoTreeModel(t)
	data := m.CanonicalJSON()
	loaded, err := Load(data)
	require.NoError(t, err)
	score, err := loaded.Score([]int64{99_000_000, 10_000_000})
	require.NoError(t, err)
	require.Equal(t, int64(9_000_000_000), score)
}

func TestHashDeterministic(t *testing.T) {
	m1 := twoTreeModel(t)
	m2 := twoTreeModel(t)
	require.Equal(t, m1.Hash(), m2.Hash())
}
