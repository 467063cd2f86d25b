// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reputation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	s := NewSet()
	var id ID
	id[0] = 1
	require.NoError(t, s.Register(id, 1000))

	v, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, uint64(1000), v.Stake)
	require.Equal(t, int32(5000), v.Reputation)

	require.ErrorIs(t, s.Register(id, 1), ErrAlreadyRegistered)
}

func TestRewardProposalIncrementsCountAndReputation(t *testing.T) {
	s := NewSet()
	var id ID
	id[0] = 2
	require.NoError(t, s.Register(id, 100))

	require.NoError(t, s.RewardProposal(id))
	v, _ := s.Get(id)
	require.Equal(t, uint64(1), v.BlocksProposed)
	require.Equal(t, int32(5010), v.Reputation)
}

func TestPenalizeEquivocationSlashesStakeAndReputation(t *testing.T) {
	s := NewSet()
	var id ID
	id[0] = 3
	require.NoError(t, s.Register(id, 10_000))

	slashed, err := s.PenalizeEquivocation(id, 1000) // 10%
	require.NoError(t, err)
	require.Equal(t, uint64(1000), slashed)

	v, _ := s.Get(id)
	require.Equal(t, uint64(9000), v.Stake)
	require.Equal(t, int32(0), v.Reputation) // clamped at floor
	require.Equal(t, uint32(1), v.SlashCount)
	require.Equal(t, uint64(9000), s.TotalStake())
}

func TestReputationClampsAtCeiling(t *testing.T) {
	s := NewSet()
	var id ID
	id[0] = 4
	require.NoError(t, s.Register(id, 1))
	for i := 0; i < 1000; i++ {
		require.NoError(t, s.RewardProposal(id))
	}
	v, _ := s.Get(id)
	require.Equal(t, MaxReputation, v.Reputation)
}

func TestUnknownValidatorErrors(t *testing.T) {
	s := NewSet()
	var id ID
	require.ErrorIs(t, s.RewardProposal(id), ErrUnknownValidator)
	require.ErrorIs(t, s.PenalizeInvalidProposal(id), ErrUnknownValidator)
	_, err := s.PenalizeEquivocation(id, 1)
	require.ErrorIs(t, err, ErrUnknownValidator)
}
