// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reputation tracks validator stake, reputation score, and
// telemetry for the single flat network this consensus engine serves:
// no subnet dimension, no BLS key material, just the stake/reputation/
// telemetry record the round engine actually consumes.
package reputation

import (
	"errors"
	"sync"

	"github.com/ippan-network/consensus/fixedpoint"
)

// ID identifies a validator: its 32-byte node id.
type ID [32]byte

// Validator is a single network participant's full consensus-relevant
// record.
type Validator struct {
	ID               ID
	Stake            uint64
	Reputation       int32 // clamped to [0, 10000]
	UptimePercentage fixedpoint.Fixed
	BlocksProposed   uint64
	BlocksVerified   uint64
	AgeRounds        uint64
	AvgLatencyUs     uint64
	SlashCount       uint32
}

const (
	// MinReputation and MaxReputation bound Validator.Reputation.
	MinReputation int32 = 0
	MaxReputation int32 = 10000
)

// Reward/penalty deltas applied by the four mutators below.
const (
	DeltaRewardProposal          int32 = 10
	DeltaRewardVerification      int32 = 2
	DeltaPenalizeInvalidProposal int32 = -250
	DeltaPenalizeEquivocation    int32 = -5000
)

var (
	// ErrUnknownValidator is returned by any per-validator mutator for an
	// id not present in the Set.
	ErrUnknownValidator = errors.New("reputation: unknown validator")
	// ErrAlreadyRegistered is returned by Register for a duplicate id.
	ErrAlreadyRegistered = errors.New("reputation: validator already registered")
)

// Set owns the network's validator map. All mutation happens through its
// methods so reputation/stake bookkeeping stays consistent.
type Set struct {
	mu         sync.RWMutex
	validators map[ID]*Validator
	totalStake uint64
}

// NewSet returns an empty validator set.
func NewSet() *Set {
	return &Set{validators: make(map[ID]*Validator)}
}

// Register adds a new validator with the given starting stake. Starting
// reputation is the midpoint, 5000, matching genesis defaults elsewhere
// in this module.
func (s *Set) Register(id ID, stake uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.validators[id]; exists {
		return ErrAlreadyRegistered
	}
	s.validators[id] = &Validator{ID: id, Stake: stake, Reputation: 5000}
	s.totalStake += stake
	return nil
}

// Get returns a copy of a validator's current record.
func (s *Set) Get(id ID) (Validator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validators[id]
	if !ok {
		return Validator{}, false
	}
	return *v, true
}

// List returns a copy of every validator's current record. Order is not
// guaranteed; callers that need determinism should sort by ID.
func (s *Set) List() []Validator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Validator, 0, len(s.validators))
	for _, v := range s.validators {
		out = append(out, *v)
	}
	return out
}

// TotalStake returns the sum of all registered validators' stake.
func (s *Set) TotalStake() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalStake
}

func (s *Set) adjustReputation(id ID, delta int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.validators[id]
	if !ok {
		return ErrUnknownValidator
	}
	v.Reputation = clampReputation(v.Reputation + delta)
	return nil
}

func clampReputation(v int32) int32 {
	if v < MinReputation {
		return MinReputation
	}
	if v > MaxReputation {
		return MaxReputation
	}
	return v
}

// RewardProposal credits id for successfully proposing a block.
func (s *Set) RewardProposal(id ID) error {
	s.mu.Lock()
	v, ok := s.validators[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownValidator
	}
	v.BlocksProposed++
	v.Reputation = clampReputation(v.Reputation + DeltaRewardProposal)
	s.mu.Unlock()
	return nil
}

// RewardVerification credits id for verifying a block.
func (s *Set) RewardVerification(id ID) error {
	s.mu.Lock()
	v, ok := s.validators[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownValidator
	}
	v.BlocksVerified++
	v.Reputation = clampReputation(v.Reputation + DeltaRewardVerification)
	s.mu.Unlock()
	return nil
}

// PenalizeInvalidProposal debits id for proposing an invalid block.
func (s *Set) PenalizeInvalidProposal(id ID) error {
	return s.adjustReputation(id, DeltaPenalizeInvalidProposal)
}

// PenalizeEquivocation debits id heavily and slashes a share of its stake
// for double-signing. slashBPS is basis points (1/10000) of current stake.
func (s *Set) PenalizeEquivocation(id ID, slashBPS uint64) (slashed uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.validators[id]
	if !ok {
		return 0, ErrUnknownValidator
	}
	v.Reputation = clampReputation(v.Reputation + DeltaPenalizeEquivocation)
	v.SlashCount++
	slashed = v.Stake * slashBPS / 10000
	v.Stake -= slashed
	s.totalStake -= slashed
	return slashed, nil
}

// UpdateUptime folds a fresh uptime observation into the validator's
// running uptime percentage via an integer exponentially-weighted
// average (weight 1/8 on the new sample), advancing AgeRounds by one.
func (s *Set) UpdateUptime(id ID, observed fixedpoint.Fixed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.validators[id]
	if !ok {
		return ErrUnknownValidator
	}
	const weightShift = 3 // 1/8
	delta := int64(observed-v.UptimePercentage) >> weightShift
	v.UptimePercentage += fixedpoint.Fixed(delta)
	v.AgeRounds++
	return nil
}

// UpdateLatency folds a fresh latency observation (microseconds) into the
// validator's running average via the same 1/8-weighted scheme as
// UpdateUptime.
func (s *Set) UpdateLatency(id ID, observedUs uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.validators[id]
	if !ok {
		return ErrUnknownValidator
	}
	const weightShift = 3
	diff := int64(observedUs) - int64(v.AvgLatencyUs)
	v.AvgLatencyUs = uint64(int64(v.AvgLatencyUs) + (diff >> weightShift))
	return nil
}
