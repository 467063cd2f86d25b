// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vrng implements verifiable, replayable proposer/verifier
// selection: entropy is chained from the round's HashTimer anchor, the
// node's running state hash, and the previous round's entropy; an
// Ed25519-signed VRF output derived from that entropy seeds a
// deterministic stream generator used for weighted selection. Any
// observer holding the resulting SelectionProof can recompute the same
// selection independently.
package vrng

import (
	"crypto/ed25519"
	"errors"
	"sort"

	"github.com/zeebo/blake3"
	"gonum.org/v1/gonum/mathext/prng"

	"github.com/ippan-network/consensus/hashtimer"
)

// NodeID identifies a candidate/selector node.
type NodeID [32]byte

// EntropyState is this node's running chain of selection entropy.
type EntropyState struct {
	HashTimer       hashtimer.HashTimer
	NodeStateHash   [32]byte
	PreviousEntropy [32]byte
	CurrentEntropy  [32]byte
	Counter         uint64
}

// VRFProof is the Ed25519-signed, content-addressed VRF output.
type VRFProof struct {
	Output        [32]byte
	Signature     [64]byte
	VerifyingKey  [32]byte
}

// SelectionRecord names one selected candidate and the weight it was
// drawn against.
type SelectionRecord struct {
	NodeID NodeID
	Weight uint64
}

// SelectionProof is the complete, replayable record of a selection round:
// every field a third party needs to recompute — and check — the same
// outcome, without trusting the proposing node's live state.
type SelectionProof struct {
	Round           uint64
	RoundAnchor     hashtimer.HashTimer
	NodeStateHash   [32]byte
	PreviousEntropy [32]byte
	VRF             VRFProof
	SelectionEntropy [32]byte
	Proposer        SelectionRecord
	Verifiers       []SelectionRecord
}

var (
	// ErrNoCandidates is returned when Select is called with no candidates.
	ErrNoCandidates = errors.New("vrng: no candidates supplied")
	// ErrZeroTotalWeight is returned when every candidate has zero weight.
	ErrZeroTotalWeight = errors.New("vrng: total candidate weight is zero")
)

// RNG drives selection for a single node's perspective: it owns that
// node's identity and signing key, and its running EntropyState.
type RNG struct {
	nodeID  [32]byte
	signer  ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	entropy EntropyState
}

// New returns an RNG for nodeID, signing VRF outputs with signer.
func New(nodeID [32]byte, signer ed25519.PrivateKey) *RNG {
	pub := signer.Public().(ed25519.PublicKey)
	return &RNG{nodeID: nodeID, signer: signer, pubKey: pub}
}

// updateEntropyState folds in the round anchor and this node's current
// state hash, producing a fresh EntropyState.
func (r *RNG) updateEntropyState(anchor hashtimer.HashTimer, nodeStateHash [32]byte) {
	prev := r.entropy.CurrentEntropy
	r.entropy = EntropyState{
		HashTimer:       anchor,
		NodeStateHash:   nodeStateHash,
		PreviousEntropy: prev,
		Counter:         r.entropy.Counter + 1,
	}
}

func (r *RNG) generateVRFOutput(vrfInput []byte) VRFProof {
	sig := ed25519.Sign(r.signer, vrfInput)
	h := blake3.New()
	h.Write(sig)
	h.Write(vrfInput)
	var output [32]byte
	copy(output[:], h.Sum(nil))
	var proof VRFProof
	proof.Output = output
	copy(proof.Signature[:], sig)
	copy(proof.VerifyingKey[:], r.pubKey)
	return proof
}

func createSelectionEntropy(vrfOutput [32]byte, anchor hashtimer.HashTimer, nodeStateHash [32]byte) [32]byte {
	h := blake3.New()
	h.Write(vrfOutput[:])
	enc := hashtimer.Encode(anchor)
	h.Write(enc[:])
	h.Write(nodeStateHash[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Select performs the full five-step selection: update entropy, derive
// the VRF output, derive selection entropy, seed a deterministic stream
// generator from it, and weighted-draw a proposer plus verifierCount
// distinct verifiers from the remaining pool. candidates must be supplied
// sorted by NodeID ascending so every node draws from the same candidate
// ordering; VerifySelectionProof sorts its candidates that way before
// recomputing.
func (r *RNG) Select(round uint64, anchor hashtimer.HashTimer, nodeStateHash [32]byte, candidates []NodeID, weights map[NodeID]uint64, verifierCount int) (SelectionProof, error) {
	if len(candidates) == 0 {
		return SelectionProof{}, ErrNoCandidates
	}

	r.updateEntropyState(anchor, nodeStateHash)

	encAnchor := hashtimer.Encode(anchor)
	vrfInput := append(append([]byte{}, encAnchor[:]...), nodeStateHash[:]...)
	vrfInput = append(vrfInput, r.entropy.PreviousEntropy[:]...)
	vrf := r.generateVRFOutput(vrfInput)
	selEntropy := createSelectionEntropy(vrf.Output, anchor, nodeStateHash)
	r.entropy.CurrentEntropy = selEntropy

	proposer, remaining, err := weightedSelectProposer(candidates, weights, selEntropy)
	if err != nil {
		return SelectionProof{}, err
	}

	verifiers, err := weightedSelectVerifiers(remaining, weights, selEntropy, verifierCount)
	if err != nil {
		return SelectionProof{}, err
	}

	return SelectionProof{
		Round:            round,
		RoundAnchor:      anchor,
		NodeStateHash:    nodeStateHash,
		PreviousEntropy:  r.entropy.PreviousEntropy,
		VRF:              vrf,
		SelectionEntropy: selEntropy,
		Proposer:         SelectionRecord{NodeID: proposer, Weight: weights[proposer]},
		Verifiers:        verifiers,
	}, nil
}

// seededSource wraps gonum's MT19937 behind a minimal seedable
// deterministic stream.
func seededSource(seed [32]byte) *prng.MT19937 {
	s := int64(seed[0]) | int64(seed[1])<<8 | int64(seed[2])<<16 | int64(seed[3])<<24 |
		int64(seed[4])<<32 | int64(seed[5])<<40 | int64(seed[6])<<48 | int64(seed[7])<<56
	src := prng.NewMT19937()
	src.Seed(uint64(s))
	return src
}

// weightedSelectProposer draws r in [0,totalWeight) from the seeded
// stream and returns the first candidate (in the given order) whose
// cumulative weight is >= r, plus the remaining candidate pool.
// Zero-weight candidates are excluded from the eligible pool before the
// draw: with a discrete draw in [0,total), a zero-weight candidate at the
// front of the order would otherwise satisfy cumulative(0) >= draw(0) and
// be selected despite holding no stake.
func weightedSelectProposer(candidates []NodeID, weights map[NodeID]uint64, seed [32]byte) (NodeID, []NodeID, error) {
	eligible := make([]NodeID, 0, len(candidates))
	total := uint64(0)
	for _, c := range candidates {
		if weights[c] == 0 {
			continue
		}
		eligible = append(eligible, c)
		total += weights[c]
	}
	if total == 0 {
		return NodeID{}, nil, ErrZeroTotalWeight
	}
	src := seededSource(seed)
	draw := src.Uint64() % total

	cumulative := uint64(0)
	for _, c := range eligible {
		cumulative += weights[c]
		if cumulative >= draw {
			remaining := make([]NodeID, 0, len(candidates)-1)
			for _, orig := range candidates {
				if orig != c {
					remaining = append(remaining, orig)
				}
			}
			return c, remaining, nil
		}
	}
	// Unreachable given total>0, but keep a deterministic fallback.
	last := eligible[len(eligible)-1]
	remaining := make([]NodeID, 0, len(candidates)-1)
	for _, orig := range candidates {
		if orig != last {
			remaining = append(remaining, orig)
		}
	}
	return last, remaining, nil
}

// weightedSelectVerifiers repeats the same weighted draw over the
// shrinking remaining pool until verifierCount verifiers are chosen or
// the pool is exhausted.
func weightedSelectVerifiers(pool []NodeID, weights map[NodeID]uint64, seed [32]byte, verifierCount int) ([]SelectionRecord, error) {
	out := make([]SelectionRecord, 0, verifierCount)
	remaining := append([]NodeID{}, pool...)
	round := uint64(0)
	for len(out) < verifierCount && len(remaining) > 0 {
		eligibleIdx := make([]int, 0, len(remaining))
		total := uint64(0)
		for i, c := range remaining {
			if weights[c] == 0 {
				continue
			}
			eligibleIdx = append(eligibleIdx, i)
			total += weights[c]
		}
		if total == 0 {
			break
		}
		// Derive a fresh seed per draw so repeated draws aren't identical.
		drawSeed := blake3.Sum256(append(append([]byte{}, seed[:]...), leBytes(round)...))
		src := seededSource(drawSeed)
		draw := src.Uint64() % total

		cumulative := uint64(0)
		chosenIdx := eligibleIdx[len(eligibleIdx)-1]
		for _, i := range eligibleIdx {
			cumulative += weights[remaining[i]]
			if cumulative >= draw {
				chosenIdx = i
				break
			}
		}
		chosen := remaining[chosenIdx]
		out = append(out, SelectionRecord{NodeID: chosen, Weight: weights[chosen]})
		remaining = append(remaining[:chosenIdx], remaining[chosenIdx+1:]...)
		round++
	}
	return out, nil
}

func leBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// VerifySelectionProof recomputes the VRF output, selection entropy, and
// selection outcome purely from proof's own recorded fields (never from
// this node's live state) and reports whether they match.
func VerifySelectionProof(proof SelectionProof, candidates []NodeID, weights map[NodeID]uint64, verifierCount int) (bool, error) {
	if !ed25519.Verify(proof.VRF.VerifyingKey[:], vrfInputFor(proof), proof.VRF.Signature[:]) {
		return false, nil
	}

	h := blake3.New()
	h.Write(proof.VRF.Signature[:])
	h.Write(vrfInputFor(proof))
	var recomputedVRFOutput [32]byte
	copy(recomputedVRFOutput[:], h.Sum(nil))
	if recomputedVRFOutput != proof.VRF.Output {
		return false, nil
	}

	selEntropy := createSelectionEntropy(proof.VRF.Output, proof.RoundAnchor, proof.NodeStateHash)
	if selEntropy != proof.SelectionEntropy {
		return false, nil
	}

	sorted := append([]NodeID{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool { return lessNodeID(sorted[i], sorted[j]) })

	proposer, remaining, err := weightedSelectProposer(sorted, weights, selEntropy)
	if err != nil {
		return false, err
	}
	if proposer != proof.Proposer.NodeID {
		return false, nil
	}

	verifiers, err := weightedSelectVerifiers(remaining, weights, selEntropy, verifierCount)
	if err != nil {
		return false, err
	}
	if len(verifiers) != len(proof.Verifiers) {
		return false, nil
	}
	for i := range verifiers {
		if verifiers[i] != proof.Verifiers[i] {
			return false, nil
		}
	}
	return true, nil
}

func vrfInputFor(proof SelectionProof) []byte {
	enc := hashtimer.Encode(proof.RoundAnchor)
	in := append(append([]byte{}, enc[:]...), proof.NodeStateHash[:]...)
	return append(in, proof.PreviousEntropy[:]...)
}

func lessNodeID(a, b NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
