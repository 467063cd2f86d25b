// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package harness runs the deterministic GBDT model over a fixed set of
// 50 golden feature vectors and folds each vector's id and score into a
// single digest, so two builds of this engine (or a Go build versus a
// build in another language) can be checked for bit-for-bit agreement
// without comparing full reports.
package harness

import (
	"github.com/zeebo/blake3"

	"github.com/ippan-network/consensus/gbdt"
)

// Vector is one golden input: an id, a human description, and the
// feature values to score.
type Vector struct {
	ID          string
	Description string
	Features    []int64
}

// Result is one vector's scored outcome.
type Result struct {
	Vector Vector
	Score  int64
}

// Report is the full harness run: every result plus the final digest.
type Report struct {
	Results []Result
	Digest  [32]byte
}

const scale = 1_000_000

// GoldenVectors returns the canonical 50-vector set: high-performance
// (001-010), medium-performance (011-020), low-performance (021-030),
// edge cases (031-040), and boundary conditions (041-050).
func GoldenVectors() []Vector {
	return []Vector{
		{"vec_001", "Excellent validator (99% uptime, 10ms latency)", []int64{99 * scale, 10 * scale}},
		{"vec_002", "Excellent validator (98% uptime, 15ms latency)", []int64{98 * scale, 15 * scale}},
		{"vec_003", "Excellent validator (97% uptime, 20ms latency)", []int64{97 * scale, 20 * scale}},
		{"vec_004", "Excellent validator (99.5% uptime, 5ms latency)", []int64{9_950_000, 5 * scale}},
		{"vec_005", "Excellent validator (96% uptime, 25ms latency)", []int64{96 * scale, 25 * scale}},
		{"vec_006", "High validator (95% uptime, 30ms latency)", []int64{95 * scale, 30 * scale}},
		{"vec_007", "High validator (94% uptime, 35ms latency)", []int64{94 * scale, 35 * scale}},
		{"vec_008", "High validator (93% uptime, 40ms latency)", []int64{93 * scale, 40 * scale}},
		{"vec_009", "High validator (92% uptime, 45ms latency)", []int64{92 * scale, 45 * scale}},
		{"vec_010", "High validator (91% uptime, 50ms latency)", []int64{91 * scale, 50 * scale}},

		{"vec_011", "Medium validator (90% uptime, 60ms latency)", []int64{90 * scale, 60 * scale}},
		{"vec_012", "Medium validator (85% uptime, 80ms latency)", []int64{85 * scale, 80 * scale}},
		{"vec_013", "Medium validator (80% uptime, 100ms latency)", []int64{80 * scale, 100 * scale}},
		{"vec_014", "Medium validator (75% uptime, 120ms latency)", []int64{75 * scale, 120 * scale}},
		{"vec_015", "Medium validator (70% uptime, 150ms latency)", []int64{70 * scale, 150 * scale}},
		{"vec_016", "Medium validator (88% uptime, 70ms latency)", []int64{88 * scale, 70 * scale}},
		{"vec_017", "Medium validator (82% uptime, 90ms latency)", []int64{82 * scale, 90 * scale}},
		{"vec_018", "Medium validator (78% uptime, 110ms latency)", []int64{78 * scale, 110 * scale}},
		{"vec_019", "Medium validator (72% uptime, 130ms latency)", []int64{72 * scale, 130 * scale}},
		{"vec_020", "Medium validator (68% uptime, 140ms latency)", []int64{68 * scale, 140 * scale}},

		{"vec_021", "Low validator (65% uptime, 180ms latency)", []int64{65 * scale, 180 * scale}},
		{"vec_022", "Low validator (60% uptime, 200ms latency)", []int64{60 * scale, 200 * scale}},
		{"vec_023", "Low validator (55% uptime, 250ms latency)", []int64{55 * scale, 250 * scale}},
		{"vec_024", "Low validator (50% uptime, 300ms latency)", []int64{50 * scale, 300 * scale}},
		{"vec_025", "Low validator (45% uptime, 350ms latency)", []int64{45 * scale, 350 * scale}},
		{"vec_026", "Low validator (62% uptime, 190ms latency)", []int64{62 * scale, 190 * scale}},
		{"vec_027", "Low validator (58% uptime, 220ms latency)", []int64{58 * scale, 220 * scale}},
		{"vec_028", "Low validator (52% uptime, 280ms latency)", []int64{52 * scale, 280 * scale}},
		{"vec_029", "Low validator (48% uptime, 320ms latency)", []int64{48 * scale, 320 * scale}},
		{"vec_030", "Low validator (42% uptime, 380ms latency)", []int64{42 * scale, 380 * scale}},

		{"vec_031", "Edge: 100% uptime, 1ms latency (perfect)", []int64{100 * scale, 1 * scale}},
		{"vec_032", "Edge: 0% uptime, 1000ms latency (worst)", []int64{0, 1000 * scale}},
		{"vec_033", "Edge: 100% uptime, 500ms latency", []int64{100 * scale, 500 * scale}},
		{"vec_034", "Edge: 1% uptime, 1ms latency", []int64{1 * scale, 1 * scale}},
		{"vec_035", "Edge: 50% uptime, 50ms latency (median)", []int64{50 * scale, 50 * scale}},
		{"vec_036", "Edge: 99.99% uptime, 0ms latency", []int64{9_999_000, 0}},
		{"vec_037", "Edge: Zero features", []int64{0, 0}},
		{"vec_038", "Edge: Max SCALE values", []int64{100 * scale, 1000 * scale}},
		{"vec_039", "Edge: Negative (invalid) uptime handled gracefully", []int64{-10 * scale, 50 * scale}},
		{"vec_040", "Edge: Very large latency", []int64{90 * scale, 10000 * scale}},

		{"vec_041", "Boundary: Just above 95% uptime threshold", []int64{9_500_001, 30 * scale}},
		{"vec_042", "Boundary: Just below 95% uptime threshold", []int64{9_499_999, 30 * scale}},
		{"vec_043", "Boundary: Exactly 90% uptime", []int64{90 * scale, 50 * scale}},
		{"vec_044", "Boundary: Exactly 80% uptime", []int64{80 * scale, 100 * scale}},
		{"vec_045", "Boundary: Exactly 70% uptime", []int64{70 * scale, 150 * scale}},
		{"vec_046", "Boundary: Just above 50ms latency threshold", []int64{95 * scale, 50*scale + 1}},
		{"vec_047", "Boundary: Just below 50ms latency threshold", []int64{95 * scale, 50*scale - 1}},
		{"vec_048", "Boundary: Exactly 100ms latency", []int64{85 * scale, 100 * scale}},
		{"vec_049", "Boundary: Exactly 200ms latency", []int64{75 * scale, 200 * scale}},
		{"vec_050", "Boundary: Exactly 500ms latency", []int64{60 * scale, 500 * scale}},
	}
}

// Run scores every vector against model and feeds each vector's id
// (UTF-8) and then its score (8 bytes, little-endian), in order, into one
// BLAKE3 hasher; Digest is that hasher's final output.
func Run(model *gbdt.Model, vectors []Vector) (Report, error) {
	h := blake3.New()
	results := make([]Result, 0, len(vectors))
	for _, v := range vectors {
		score, err := model.Score(v.Features)
		if err != nil {
			return Report{}, err
		}
		h.Write([]byte(v.ID))
		h.Write(gbdt.ScoreLEBytes(score))
		results = append(results, Result{Vector: v, Score: score})
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return Report{Results: results, Digest: digest}, nil
}
