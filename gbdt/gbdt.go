// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gbdt implements the deterministic, integer-only gradient-boosted
// decision tree evaluator used to score validator candidates, fee
// adjustments, and network health. Every quantity a tree touches is a
// fixed-point micro-unit integer (see package fixedpoint); there is no
// floating point on the evaluation path, so two honest nodes loading the
// same model bytes always compute the same score.
package gbdt

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// NodeKind tags a Node as an internal split or a leaf value.
type NodeKind uint8

const (
	// Internal is a split node: if the feature at FeatureIndex is >=
	// Threshold, descend Left, otherwise Right. Ties go left.
	Internal NodeKind = iota
	// Leaf is a terminal node whose Value contributes to the tree's sum.
	Leaf
)

// Node is a single decision-tree node. Go has no sum types, so Node is a
// tagged struct: Leaf nodes ignore FeatureIndex/Threshold/Left/Right,
// Internal nodes ignore Value.
type Node struct {
	Kind         NodeKind
	FeatureIndex uint16
	Threshold    int64
	Left         uint32
	Right        uint32
	Value        int64
}

// Tree is an ordered slice of Nodes; node 0 is always the root.
type Tree struct {
	Nodes []Node
}

// Model is an ensemble of Trees plus a bias term and the scale the caller's
// feature vectors are expressed in (must match fixedpoint.Scale for any
// model consumed by the round engine).
type Model struct {
	Version uint16
	Scale   int64
	Bias    int64
	Trees   []Tree
	// Arity is the maximum feature index + 1 observed across all trees,
	// recorded at Load time so callers can validate feature vector length
	// without re-walking every tree.
	Arity int
}

var (
	// ErrEmptyModel is returned when a model has no trees.
	ErrEmptyModel = errors.New("gbdt: model has no trees")
	// ErrScale is returned when a model's scale is not 1_000_000.
	ErrScale = errors.New("gbdt: model scale must be 1000000")
	// ErrEmptyTree is returned when a tree has no nodes.
	ErrEmptyTree = errors.New("gbdt: tree has no nodes")
	// ErrDanglingRef is returned when a split node points at a node index
	// that doesn't exist.
	ErrDanglingRef = errors.New("gbdt: node references out-of-range child")
	// ErrCycle is returned when a tree's child references form a cycle.
	ErrCycle = errors.New("gbdt: tree contains a cycle")
	// ErrFeatureVectorLength is returned by Score when the feature vector
	// is shorter than the model's Arity.
	ErrFeatureVectorLength = errors.New("gbdt: feature vector shorter than model arity")
)

// rawModel is the on-disk / wire representation. Field order here doesn't
// matter (it's JSON); CanonicalJSON below defines the order that matters
// for hashing.
type rawModel struct {
	Version uint16      `json:"version"`
	Scale   int64       `json:"scale"`
	Bias    int64       `json:"bias"`
	Trees   []rawTree `json:"trees"`
}

// rawTree is one tree on the wire: {"nodes":[...]}.
type rawTree struct {
	Nodes []rawNode `json:"nodes"`
}

// rawNode mirrors the canonical wire shape: internal and leaf nodes have
// mutually exclusive key sets and no discriminator tag. Kind is
// recovered on Load by which fields are present (FeatureIndex is
// unmarshaled as a pointer so "feature_index: 0" on an internal node is
// distinguishable from its absence on a leaf node).
type rawNode struct {
	FeatureIndex *uint16 `json:"feature_index,omitempty"`
	Threshold    int64   `json:"threshold,omitempty"`
	Left         uint32  `json:"left,omitempty"`
	Right        uint32  `json:"right,omitempty"`
	Value        int64   `json:"value,omitempty"`
}

// Load parses model bytes (as produced by CanonicalJSON, or any JSON with
// the same shape) and validates the structural invariants: scale of
// 1_000_000, non-empty ensemble, non-empty trees, no dangling child
// references, no cycles.
func Load(data []byte) (*Model, error) {
	var raw rawModel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("gbdt: parse model: %w", err)
	}
	if raw.Scale != 1_000_000 {
		return nil, ErrScale
	}
	if len(raw.Trees) == 0 {
		return nil, ErrEmptyModel
	}
	m := &Model{Version: raw.Version, Scale: raw.Scale, Bias: raw.Bias}
	for ti, rt := range raw.Trees {
		rawNodes := rt.Nodes
		if len(rawNodes) == 0 {
			return nil, fmt.Errorf("gbdt: tree %d: %w", ti, ErrEmptyTree)
		}
		nodes := make([]Node, len(rawNodes))
		for ni, rn := range rawNodes {
			// No discriminator tag on the wire: a node carrying
			// "feature_index" is internal, otherwise it's a leaf.
			if rn.FeatureIndex == nil {
				nodes[ni] = Node{Kind: Leaf, Value: rn.Value}
				continue
			}
			kind := Internal
			nodes[ni] = Node{
				Kind:         kind,
				FeatureIndex: *rn.FeatureIndex,
				Threshold:    rn.Threshold,
				Left:         rn.Left,
				Right:        rn.Right,
			}
			if int(*rn.FeatureIndex)+1 > m.Arity {
				m.Arity = int(*rn.FeatureIndex) + 1
			}
			if int(rn.Left) >= len(rawNodes) || int(rn.Right) >= len(rawNodes) {
				return nil, fmt.Errorf("gbdt: tree %d node %d: %w", ti, ni, ErrDanglingRef)
			}
		}
		if err := detectCycle(nodes); err != nil {
			return nil, fmt.Errorf("gbdt: tree %d: %w", ti, err)
		}
		m.Trees = append(m.Trees, Tree{Nodes: nodes})
	}
	return m, nil
}

// detectCycle walks from node 0 via DFS with a recursion-stack set; a
// revisit of a node still on the stack is a cycle.
func detectCycle(nodes []Node) error {
	const (
		white = iota
		gray
		black
	)
	color := make([]uint8, len(nodes))
	var visit func(i uint32) error
	visit = func(i uint32) error {
		switch color[i] {
		case gray:
			return ErrCycle
		case black:
			return nil
		}
		color[i] = gray
		n := nodes[i]
		if n.Kind == Internal {
			if err := visit(n.Left); err != nil {
				return err
			}
			if err := visit(n.Right); err != nil {
				return err
			}
		}
		color[i] = black
		return nil
	}
	return visit(0)
}

// Score evaluates every tree against features (indexed by FeatureIndex)
// and returns bias + sum of each tree's leaf value. It never errors once
// the model has been validated by Load, except when the caller's feature
// vector is shorter than the model's recorded Arity.
func (m *Model) Score(features []int64) (int64, error) {
	if len(features) < m.Arity {
		return 0, ErrFeatureVectorLength
	}
	total := m.Bias
	for _, tree := range m.Trees {
		total += scoreTree(tree.Nodes, features)
	}
	return total, nil
}

func scoreTree(nodes []Node, features []int64) int64 {
	i := uint32(0)
	for {
		n := nodes[i]
		if n.Kind == Leaf {
			return n.Value
		}
		// Ties go left: descend Left when feature >= threshold.
		if features[n.FeatureIndex] >= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// CanonicalJSON renders the model using a fixed key order, and no
// discriminator tag, so that Hash is stable across implementations and
// languages: top-level {"version","scale","bias","trees"}; trees
// {"nodes"}; internal node {"feature_index","threshold","left","right"};
// leaf node {"value"}. Internal and leaf nodes carry mutually exclusive
// key sets.
func (m *Model) CanonicalJSON() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"version":`)
	fmt.Fprintf(&buf, "%d", m.Version)
	buf.WriteString(`,"scale":`)
	fmt.Fprintf(&buf, "%d", m.Scale)
	buf.WriteString(`,"bias":`)
	fmt.Fprintf(&buf, "%d", m.Bias)
	buf.WriteString(`,"trees":[`)
	for ti, tree := range m.Trees {
		if ti > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"nodes":[`)
		for ni, n := range tree.Nodes {
			if ni > 0 {
				buf.WriteByte(',')
			}
			if n.Kind == Leaf {
				fmt.Fprintf(&buf, `{"value":%d}`, n.Value)
				continue
			}
			fmt.Fprintf(&buf, `{"feature_index":%d,"threshold":%d,"left":%d,"right":%d}`,
				n.FeatureIndex, n.Threshold, n.Left, n.Right)
		}
		buf.WriteString(`]}`)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// Hash returns the BLAKE3 digest of CanonicalJSON, uniquely identifying
// this model's structure and weights.
func (m *Model) Hash() [32]byte {
	return blake3.Sum256(m.CanonicalJSON())
}

// sortFeatureIndices returns, in ascending order, the feature indices a
// model's internal nodes split on. No code in this module calls it.
func (m *Model) sortFeatureIndices() []uint16 {
	seen := map[uint16]struct{}{}
	for _, tree := range m.Trees {
		for _, n := range tree.Nodes {
			if n.Kind == Internal {
				seen[n.FeatureIndex] = struct{}{}
			}
		}
	}
	out := make([]uint16, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScoreLEBytes encodes a score as 8 little-endian bytes, the form the
// determinism harness hashes alongside each golden vector's id.
func ScoreLEBytes(score int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(score))
	return b
}
