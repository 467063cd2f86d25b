// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package round implements the RoundEngine: the forward-only state
// machine that anchors a round's time, scores validator candidates with
// a GBDT model, selects a proposer (AI-only, RNG-only, or hybrid),
// inserts proposals into the block-DAG, detects equivocation, finalizes
// a commit order, distributes rewards, and reports a network health
// signal. One round runs at a time per Engine; a RunRound call made while
// another is in flight fails with ErrAlreadyRunning.
package round

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ippan-network/consensus/dag"
	"github.com/ippan-network/consensus/fixedpoint"
	"github.com/ippan-network/consensus/gbdt"
	"github.com/ippan-network/consensus/hashtimer"
	"github.com/ippan-network/consensus/log"
	"github.com/ippan-network/consensus/metrics"
	"github.com/ippan-network/consensus/reputation"
	"github.com/ippan-network/consensus/vrng"
)

// SelectionPolicy chooses how a round's proposer is selected.
type SelectionPolicy uint8

const (
	// AIOnly selects the highest-scoring eligible candidate.
	AIOnly SelectionPolicy = iota
	// RNGOnly selects via pure weighted-random VRF draw.
	RNGOnly
	// Hybrid uses the AI score when it clears HybridThreshold, falling
	// back to the RNG draw otherwise.
	Hybrid
)

// Config holds the genesis-pinned parameters a round needs to run.
type Config struct {
	SelectionPolicy      SelectionPolicy
	MinReputationScore   int32            // candidates below this are ineligible
	HybridThreshold      fixedpoint.Fixed // fraction of max observed AI score, e.g. 0.8
	MaxFeeAdjustment     fixedpoint.Fixed
	DoubleSignSlashBPS   uint64
	InvalidBlockSlashBPS uint64
	VerifierCount        int
	MaxParents           int
	ReadyQueueBound      int
}

// DefaultConfig mirrors L1AIConfig::default() from the reference
// implementation this engine is grounded on.
func DefaultConfig() Config {
	hybridThreshold, _ := fixedpoint.FromDecimalString("0.8")
	maxFeeAdj, _ := fixedpoint.FromDecimalString("2.0")
	return Config{
		SelectionPolicy:      Hybrid,
		MinReputationScore:   5000,
		HybridThreshold:      hybridThreshold,
		MaxFeeAdjustment:     maxFeeAdj,
		DoubleSignSlashBPS:   10000, // full stake on proven double-sign
		InvalidBlockSlashBPS: 500,
		VerifierCount:        4,
		MaxParents:           16,
		ReadyQueueBound:      4096,
	}
}

// NetworkState is the point-in-time view of network conditions fed into
// the fee-optimization and health models.
type NetworkState struct {
	CongestionLevel  fixedpoint.Fixed // 0..1
	AvgBlockTimeMs   uint64
	ActiveValidators uint64
	TotalStake       uint64
	CurrentRound     uint64
	RecentTxVolume   uint64
}

// Candidate is one validator's view going into proposer scoring.
type Candidate struct {
	ID                 reputation.ID
	Stake              uint64
	Reputation         int32
	UptimePercentage   fixedpoint.Fixed
	RecentPerformance  fixedpoint.Fixed // 0..1, caller-supplied rolling score
	NetworkContribution fixedpoint.Fixed // 0..1, caller-supplied
}

// Proposal is a block proposed this round, awaiting DAG insertion.
type Proposal struct {
	Block        *dag.Block
	Proposer     reputation.ID
	Equivocating bool // set by the engine if a second proposal from the same proposer/round is seen
}

// State names a step in the round state machine.
type State uint8

const (
	Anchored State = iota
	Scoring
	Proposing
	Inserting
	Detecting
	Finalizing
	Rewarding
	Closed
)

func (s State) String() string {
	switch s {
	case Anchored:
		return "Anchored"
	case Scoring:
		return "Scoring"
	case Proposing:
		return "Proposing"
	case Inserting:
		return "Inserting"
	case Detecting:
		return "Detecting"
	case Finalizing:
		return "Finalizing"
	case Rewarding:
		return "Rewarding"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ScoredCandidate pairs a Candidate with its AI score.
type ScoredCandidate struct {
	Candidate Candidate
	Score     int64
}

// HealthReport summarizes network health per the network-health model.
type HealthReport struct {
	ScorePPM        int64 // health score, scaled 1e6 (float only materializes at export boundary)
	Critical        bool
	Warning         bool
	Recommendations []string
}

// RoundRecord is the full, auditable output of one RunRound call.
type RoundRecord struct {
	Round            uint64
	Anchor           hashtimer.HashTimer
	Scored           []ScoredCandidate
	Selection        vrng.SelectionProof
	UsedFallback     bool
	FeeAdjustmentPPM int64 // fee adjustment factor, scaled 1e6
	FinalizedBlocks  []dag.BlockID
	SlashedEquivocators []reputation.ID
	Rewards          map[reputation.ID]uint64
	Health           HealthReport
	FinalState       State
}

var (
	ErrNoEligibleCandidates = errors.New("round: no validator candidates meet the minimum reputation score")
	ErrAlreadyRunning       = errors.New("round: a round is already in flight")
)

// Ledger is the minimal external collaborator the engine calls to hand
// off a block's reward once Rewarding completes; storage/accounting
// semantics live entirely outside this module.
type Ledger interface {
	DistributeBlockReward(ctx context.Context, round uint64, recipient reputation.ID, amount uint64) error
}

// Engine ties the GBDT scorer, validator set, block-DAG, and verifiable
// RNG together into the round pipeline.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	validatorModel *gbdt.Model
	feeModel       *gbdt.Model // optional
	healthModel    *gbdt.Model // optional

	validators *reputation.Set
	dagInst    *dag.ParallelDAG
	rng        *vrng.RNG
	metrics    *metrics.Metrics
	logger     log.Logger
	ledger     Ledger

	selfID [32]byte
}

// New builds an Engine. feeModel/healthModel may be nil, in which case
// FeeAdjustmentPPM/Health fall back to the non-AI default path (no
// adjustment, and a rule-based health report respectively).
func New(cfg Config, validatorModel, feeModel, healthModel *gbdt.Model, validators *reputation.Set, dagInst *dag.ParallelDAG, rng *vrng.RNG, m *metrics.Metrics, logger log.Logger, ledger Ledger, selfID [32]byte) *Engine {
	return &Engine{
		cfg:            cfg,
		validatorModel: validatorModel,
		feeModel:       feeModel,
		healthModel:    healthModel,
		validators:     validators,
		dagInst:        dagInst,
		rng:            rng,
		metrics:        m,
		logger:         logger,
		ledger:         ledger,
		selfID:         selfID,
	}
}

// RunRound drives one full round through Anchored -> Closed. It returns
// the full RoundRecord for audit even on partial failure (FinalState
// reports how far the round actually got).
func (e *Engine) RunRound(ctx context.Context, round uint64, network NetworkState, candidates []Candidate, proposals []Proposal) (RoundRecord, error) {
	if !e.mu.TryLock() {
		return RoundRecord{}, ErrAlreadyRunning
	}
	defer e.mu.Unlock()

	rec := RoundRecord{Round: round, Rewards: map[reputation.ID]uint64{}}

	// Step 1: anchor.
	rec.Anchor = hashtimer.ForRound(round)
	rec.FinalState = Anchored

	// Step 2+3: feature build & AI scoring.
	scored, err := e.scoreCandidates(candidates, network)
	if err != nil {
		return rec, err
	}
	rec.Scored = scored
	rec.FinalState = Scoring

	// Step 4+5: entropy binding / proposer selection policy, with
	// highest-stake fallback.
	selection, usedFallback, err := e.selectProposer(round, rec.Anchor, candidates, scored)
	if err != nil {
		return rec, err
	}
	rec.Selection = selection
	rec.UsedFallback = usedFallback
	if usedFallback && e.metrics != nil {
		e.metrics.RoundSelectionFallbacks.Inc()
	}
	rec.FinalState = Proposing

	// Step 6: fee optimization.
	rec.FeeAdjustmentPPM = e.optimizeFee(network)
	if e.metrics != nil {
		e.metrics.RoundFeeAdjustmentPPM.Set(rec.FeeAdjustmentPPM)
	}

	// Step 7: DAG insertion window.
	for i := range proposals {
		if _, err := e.dagInst.Insert(proposals[i].Block); err != nil {
			e.logger.Warn("proposal rejected by dag", "round", round, "err", err.Error())
		}
	}
	rec.FinalState = Inserting

	// Step 8: equivocation detection & slashing.
	slashed := e.detectEquivocation(proposals)
	rec.SlashedEquivocators = slashed
	if e.metrics != nil {
		e.metrics.RoundEquivocationsSlashed.Add(uint64(len(slashed)))
	}
	rec.FinalState = Detecting

	// Step 9: finalization (topological sort by round/creator/block id).
	ready := e.dagInst.DrainReady(0)
	rec.FinalizedBlocks = e.dagInst.FinalizeOrder(ready)
	for _, id := range rec.FinalizedBlocks {
		e.dagInst.MarkCommitted(id)
	}
	if e.metrics != nil {
		e.metrics.DagCommitted.Add(uint64(len(rec.FinalizedBlocks)))
	}
	rec.FinalState = Finalizing

	// Step 10: rewards.
	e.distributeRewards(ctx, round, rec.FinalizedBlocks, proposals, rec.Rewards)
	rec.FinalState = Rewarding

	// Step 11: health signal.
	rec.Health = e.monitorHealth(network, scored)
	if e.metrics != nil {
		e.metrics.RoundHealthScorePPM.Set(rec.Health.ScorePPM)
		e.metrics.RoundsClosed.Inc()
	}
	rec.FinalState = Closed

	return rec, nil
}

// extractFeatures builds the feature vector in the exact order the
// validator-selection model expects: reputation score, stake share (x
// 10000), uptime (x 100), recent performance (x 10000), network
// contribution (x 10000), congestion level (x 10000), active validator
// count.
func extractFeatures(c Candidate, network NetworkState) ([]int64, error) {
	var stakeShare fixedpoint.Fixed
	if network.TotalStake > 0 {
		var err error
		stakeShare, err = fixedpoint.FromRatio(int64(c.Stake), int64(network.TotalStake))
		if err != nil {
			return nil, err
		}
	}
	tenThousand := fixedpoint.Fixed(10_000 * fixedpoint.Scale)
	hundred := fixedpoint.Fixed(100 * fixedpoint.Scale)

	scaledStakeShare, err := stakeShare.MulFixed(tenThousand)
	if err != nil {
		return nil, err
	}
	scaledUptime, err := c.UptimePercentage.MulFixed(hundred)
	if err != nil {
		return nil, err
	}
	scaledPerf, err := c.RecentPerformance.MulFixed(tenThousand)
	if err != nil {
		return nil, err
	}
	scaledContribution, err := c.NetworkContribution.MulFixed(tenThousand)
	if err != nil {
		return nil, err
	}
	scaledCongestion, err := network.CongestionLevel.MulFixed(tenThousand)
	if err != nil {
		return nil, err
	}

	return []int64{
		int64(c.Reputation) * fixedpoint.Scale,
		int64(scaledStakeShare),
		int64(scaledUptime),
		int64(scaledPerf),
		int64(scaledContribution),
		int64(scaledCongestion),
		int64(network.ActiveValidators) * fixedpoint.Scale,
	}, nil
}

func (e *Engine) scoreCandidates(candidates []Candidate, network NetworkState) ([]ScoredCandidate, error) {
	out := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Reputation < e.cfg.MinReputationScore {
			continue
		}
		features, err := extractFeatures(c, network)
		if err != nil {
			return nil, err
		}
		var score int64
		if e.validatorModel != nil {
			score, err = e.validatorModel.Score(features)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, ScoredCandidate{Candidate: c, Score: score})
	}
	if len(out) == 0 {
		return nil, ErrNoEligibleCandidates
	}
	// Deterministic ordering: score descending, id ascending tie-break.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return lessID(out[i].Candidate.ID, out[j].Candidate.ID)
	})
	return out, nil
}

// congestionBps converts a 0..1 Fixed congestion level into basis points
// (0..10000) for feature vectors that want a coarser integer scale.
func congestionBps(c fixedpoint.Fixed) int64 {
	return int64(c) * 10000 / fixedpoint.Scale
}

func lessID(a, b reputation.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// selectProposer applies the configured SelectionPolicy, falling back to
// the highest-stake-then-lowest-id candidate when the RNG draw fails (no
// eligible candidate, or zero total stake).
func (e *Engine) selectProposer(round uint64, anchor hashtimer.HashTimer, candidates []Candidate, scored []ScoredCandidate) (vrng.SelectionProof, bool, error) {
	useAI := e.cfg.SelectionPolicy == AIOnly
	if e.cfg.SelectionPolicy == Hybrid && len(scored) > 0 {
		maxScore := scored[0].Score
		threshold, err := fixedpoint.Fixed(maxScore).MulFixed(e.cfg.HybridThreshold)
		if err == nil && int64(scored[0].Score) >= int64(threshold) {
			useAI = true
		}
	}

	if useAI && len(scored) > 0 {
		top := scored[0].Candidate
		return vrng.SelectionProof{
			Round:    round,
			Proposer: vrng.SelectionRecord{NodeID: vrng.NodeID(top.ID), Weight: top.Stake},
		}, false, nil
	}

	ids := make([]vrng.NodeID, 0, len(candidates))
	weights := make(map[vrng.NodeID]uint64, len(candidates))
	for _, c := range candidates {
		if c.Reputation < e.cfg.MinReputationScore {
			continue
		}
		nid := vrng.NodeID(c.ID)
		ids = append(ids, nid)
		weights[nid] = c.Stake
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(reputation.ID(ids[i]), reputation.ID(ids[j])) })

	var nodeStateHash [32]byte
	proof, err := e.rng.Select(round, anchor, nodeStateHash, ids, weights, e.cfg.VerifierCount)
	if err == nil {
		return proof, false, nil
	}

	// Fallback: highest stake, lowest id on ties.
	fallback, ok := fallbackSelect(candidates, e.cfg.MinReputationScore)
	if !ok {
		return vrng.SelectionProof{}, true, ErrNoEligibleCandidates
	}
	return vrng.SelectionProof{
		Round:    round,
		Proposer: vrng.SelectionRecord{NodeID: vrng.NodeID(fallback.ID), Weight: fallback.Stake},
	}, true, nil
}

func fallbackSelect(candidates []Candidate, minReputation int32) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		if c.Reputation < minReputation {
			continue
		}
		if !found || c.Stake > best.Stake || (c.Stake == best.Stake && lessID(c.ID, best.ID)) {
			best = c
			found = true
		}
	}
	return best, found
}

// optimizeFee computes the fee adjustment factor, scaled 1e6:
// adjustment = clamp((score/10000)*1.5 + 0.5, 0.5, MaxFeeAdjustment).
// When no fee model is configured, 1.0 (no adjustment) is reported.
func (e *Engine) optimizeFee(network NetworkState) int64 {
	if e.feeModel == nil {
		return fixedpoint.Scale
	}
	features := []int64{
		congestionBps(network.CongestionLevel) * fixedpoint.Scale,
		int64(network.AvgBlockTimeMs) * fixedpoint.Scale,
		int64(network.ActiveValidators) * fixedpoint.Scale,
		int64(network.RecentTxVolume) * fixedpoint.Scale,
	}
	score, err := e.feeModel.Score(features)
	if err != nil {
		return fixedpoint.Scale
	}
	half, _ := fixedpoint.FromDecimalString("0.5")
	oneAndHalf, _ := fixedpoint.FromDecimalString("1.5")
	scoreFrac, _ := fixedpoint.Fixed(score).DivFixed(fixedpoint.Fixed(10_000 * fixedpoint.Scale))
	weighted, _ := scoreFrac.MulFixed(oneAndHalf)
	adj, _ := weighted.Add(half)
	clamped := adj.Clamp(half, e.cfg.MaxFeeAdjustment)
	return int64(clamped)
}

// detectEquivocation flags any proposer that appears more than once in
// this round's proposal set and slashes it.
func (e *Engine) detectEquivocation(proposals []Proposal) []reputation.ID {
	seen := map[reputation.ID]int{}
	for _, p := range proposals {
		seen[p.Proposer]++
	}
	for i := range proposals {
		if seen[proposals[i].Proposer] > 1 {
			proposals[i].Equivocating = true
		}
	}
	var slashed []reputation.ID
	for id, count := range seen {
		if count > 1 {
			if e.validators != nil {
				if _, err := e.validators.PenalizeEquivocation(id, e.cfg.DoubleSignSlashBPS); err != nil {
					e.logger.Error("slash failed", "validator", fmt.Sprintf("%x", id[:4]), "err", err.Error())
				}
			}
			slashed = append(slashed, id)
		}
	}
	sort.Slice(slashed, func(i, j int) bool { return lessID(slashed[i], slashed[j]) })
	return slashed
}

func (e *Engine) distributeRewards(ctx context.Context, round uint64, finalized []dag.BlockID, proposals []Proposal, rewards map[reputation.ID]uint64) {
	proposerByBlock := make(map[dag.BlockID]reputation.ID, len(proposals))
	for _, p := range proposals {
		proposerByBlock[p.Block.ID()] = p.Proposer
	}
	amount := BlockReward(round)
	for _, id := range finalized {
		proposer, ok := proposerByBlock[id]
		if !ok {
			continue
		}
		rewards[proposer] += amount
		if e.validators != nil {
			_ = e.validators.RewardProposal(proposer)
		}
		if e.ledger != nil {
			if err := e.ledger.DistributeBlockReward(ctx, round, proposer, amount); err != nil {
				e.logger.Error("ledger reward distribution failed", "round", round, "err", err.Error())
			}
		}
	}
}

// BlockReward is the pure emission schedule: a halving curve starting at
// 50 whole units per block and halving every 2,100,000 rounds, mirroring
// the economics crate's existence as an external collaborator boundary —
// this function is the one piece of that schedule the engine itself must
// own, since Rewarding calls it directly every round.
func BlockReward(round uint64) uint64 {
	const (
		initial        = 50 * uint64(fixedpoint.Scale)
		halvingInterval = 2_100_000
	)
	halvings := round / halvingInterval
	if halvings >= 64 {
		return 0
	}
	return initial >> halvings
}

// monitorHealth reports network health. With a configured health model,
// ScorePPM is the model's output divided by 10,000 (so a model score of
// 10000.0 maps to 1e6), clamped to [0, 1e6]; without one, ScorePPM is
// 1e6 minus the congestion level, clamped to [0, 1e6], matching the
// reference implementation's non-AI fallback path.
func (e *Engine) monitorHealth(network NetworkState, scored []ScoredCandidate) HealthReport {
	var scorePPM int64
	if e.healthModel != nil {
		features := []int64{
			congestionBps(network.CongestionLevel) * fixedpoint.Scale,
			int64(network.AvgBlockTimeMs) * fixedpoint.Scale,
			int64(network.ActiveValidators) * fixedpoint.Scale,
			int64(len(scored)) * fixedpoint.Scale,
		}
		if s, err := e.healthModel.Score(features); err == nil {
			scorePPM = fixedpoint.ClampI64(s/10_000, 0, 1_000_000)
		}
	} else {
		base := int64(1_000_000) - int64(network.CongestionLevel)
		scorePPM = fixedpoint.ClampI64(base, 0, 1_000_000)
	}

	report := HealthReport{ScorePPM: scorePPM}
	if scorePPM < 300_000 {
		report.Critical = true
		report.Recommendations = append(report.Recommendations, "health critical: investigate validator liveness")
	} else if scorePPM < 600_000 {
		report.Warning = true
		report.Recommendations = append(report.Recommendations, "health degraded: monitor congestion")
	}
	if int64(network.CongestionLevel) > 800_000 {
		report.Recommendations = append(report.Recommendations, "congestion above 80%: consider raising fees")
	}
	if network.AvgBlockTimeMs > 300 {
		report.Recommendations = append(report.Recommendations, "average block time above 300ms")
	}
	if network.ActiveValidators < 10 {
		report.Recommendations = append(report.Recommendations, "active validator count below 10")
	}
	return report
}
