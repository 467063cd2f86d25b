// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command determinism-harness loads a GBDT model, scores it against the
// 50 golden feature vectors, and prints a report plus the final digest —
// the one artifact that must match bit-for-bit across independent builds
// and architectures.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ippan-network/consensus/gbdt"
	"github.com/ippan-network/consensus/harness"
)

func main() {
	modelPath := flag.String("model", "", "path to a model JSON file (defaults to the built-in two-tree golden model)")
	format := flag.String("format", "text", "output format: text or json")
	flag.Parse()

	model, err := loadModel(*modelPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "determinism-harness:", err)
		os.Exit(1)
	}

	report, err := harness.Run(model, harness.GoldenVectors())
	if err != nil {
		fmt.Fprintln(os.Stderr, "determinism-harness:", err)
		os.Exit(1)
	}

	modelHash := model.Hash()

	switch *format {
	case "json":
		printJSON(modelHash, report)
	default:
		printText(modelHash, report)
	}
}

func loadModel(path string) (*gbdt.Model, error) {
	if path == "" {
		return defaultModel(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return gbdt.Load(data)
}

// defaultModel is the canonical two-tree model used by the determinism
// harness's self-test path.
func defaultModel() *gbdt.Model {
	const scale = 1_000_000
	return &gbdt.Model{
		Version: 1,
		Scale:   scale,
		Bias:    0,
		Arity:   2,
		Trees: []gbdt.Tree{
			{Nodes: []gbdt.Node{
				{Kind: gbdt.Internal, FeatureIndex: 0, Threshold: 50 * scale, Left: 1, Right: 2},
				{Kind: gbdt.Leaf, Value: 8500 * scale},
				{Kind: gbdt.Leaf, Value: 5000 * scale},
			}},
			{Nodes: []gbdt.Node{
				{Kind: gbdt.Internal, FeatureIndex: 1, Threshold: 100 * scale, Left: 1, Right: 2},
				{Kind: gbdt.Leaf, Value: -500 * scale},
				{Kind: gbdt.Leaf, Value: 500 * scale},
			}},
		},
	}
}

func printText(modelHash [32]byte, report harness.Report) {
	fmt.Println("=== Determinism Harness ===")
	fmt.Println("Model Hash:", hex.EncodeToString(modelHash[:]))
	fmt.Println("Vector Count:", len(report.Results))
	fmt.Println()
	fmt.Println("Results:")
	for _, r := range report.Results {
		fmt.Printf("  %s -> %d\n", r.Vector.ID, r.Score)
	}
	fmt.Println()
	fmt.Println("=== Final Digest ===")
	fmt.Println(hex.EncodeToString(report.Digest[:]))
}

type jsonResult struct {
	VectorID string `json:"vector_id"`
	Score    int64  `json:"score"`
}

type jsonReport struct {
	ModelHash   string       `json:"model_hash"`
	VectorCount int          `json:"vector_count"`
	Results     []jsonResult `json:"results"`
	FinalDigest string       `json:"final_digest"`
}

func printJSON(modelHash [32]byte, report harness.Report) {
	out := jsonReport{
		ModelHash:   hex.EncodeToString(modelHash[:]),
		VectorCount: len(report.Results),
		FinalDigest: hex.EncodeToString(report.Digest[:]),
	}
	for _, r := range report.Results {
		out.Results = append(out.Results, jsonResult{VectorID: r.Vector.ID, Score: r.Score})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
