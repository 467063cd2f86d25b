// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mkBlock(round uint64, creator byte, parents ...BlockID) *Block {
	return &Block{
		ParentIDs: parents,
		Round:     round,
		Creator:   [32]byte{creator},
	}
}

func TestInsertRootIsImmediatelyReady(t *testing.T) {
	d := New(DefaultConfig())
	b := mkBlock(1, 1)
	out, err := d.Insert(b)
	require.NoError(t, err)
	require.True(t, out.WasReady)
	require.Empty(t, out.MissingParents)
}

func TestInsertWithMissingParentIsNotReady(t *testing.T) {
	d := New(DefaultConfig())
	var fakeParent BlockID
	fakeParent[0] = 0xAA
	b := mkBlock(2, 1, fakeParent)
	out, err := d.Insert(b)
	require.NoError(t, err)
	require.False(t, out.WasReady)
	require.Equal(t, []BlockID{fakeParent}, out.MissingParents)
}

func TestCommitPromotesWaitingChild(t *testing.T) {
	d := New(DefaultConfig())
	root := mkBlock(1, 1)
	rootOut, err := d.Insert(root)
	require.NoError(t, err)
	require.True(t, rootOut.WasReady)
	d.DrainReady(0)

	child := mkBlock(2, 1, rootOut.BlockID)
	childOut, err := d.Insert(child)
	require.NoError(t, err)
	require.False(t, childOut.WasReady)

	d.MarkCommitted(rootOut.BlockID)
	ready := d.DrainReady(0)
	require.Equal(t, []BlockID{childOut.BlockID}, ready)
}

func TestInsertDuplicateRejected(t *testing.T) {
	d := New(DefaultConfig())
	b := mkBlock(1, 1)
	_, err := d.Insert(b)
	require.NoError(t, err)
	_, err = d.Insert(b)
	require.ErrorIs(t, err, ErrDuplicateVertex)
}

func TestInsertSelfParentRejected(t *testing.T) {
	d := New(DefaultConfig())
	b := &Block{Round: 1}
	id := b.ID()
	b.ParentIDs = []BlockID{id}
	_, err := d.Insert(b)
	require.ErrorIs(t, err, ErrSelfParent)
}

func TestInsertDuplicateParentRejected(t *testing.T) {
	d := New(DefaultConfig())
	var p BlockID
	p[0] = 1
	b := mkBlock(1, 1, p, p)
	_, err := d.Insert(b)
	require.ErrorIs(t, err, ErrDuplicateParent)
}

func TestInsertTooManyParentsRejected(t *testing.T) {
	cfg := Config{MaxParents: 1, ReadyQueueBound: 10}
	d := New(cfg)
	var p1, p2 BlockID
	p1[0], p2[0] = 1, 2
	b := mkBlock(1, 1, p1, p2)
	_, err := d.Insert(b)
	require.ErrorIs(t, err, ErrTooManyParents)
}

func TestReadyQueueDropsOldestOnOverflow(t *testing.T) {
	cfg := Config{MaxParents: 16, ReadyQueueBound: 2}
	d := New(cfg)
	var ids []BlockID
	for i := byte(0); i < 3; i++ {
		b := mkBlock(1, i)
		out, err := d.Insert(b)
		require.NoError(t, err)
		ids = append(ids, out.BlockID)
	}
	ready := d.DrainReady(0)
	require.Len(t, ready, 2)
	snap := d.Snapshot()
	require.Equal(t, uint64(1), snap.QueueOverflow)
}

func TestFinalizeOrderSortsByRoundCreatorID(t *testing.T) {
	d := New(DefaultConfig())
	b1 := mkBlock(2, 5)
	b2 := mkBlock(1, 9)
	b3 := mkBlock(1, 1)

	out1, _ := d.Insert(b1)
	out2, _ := d.Insert(b2)
	out3, _ := d.Insert(b3)

	order := d.FinalizeOrder([]BlockID{out1.BlockID, out2.BlockID, out3.BlockID})
	require.Equal(t, []BlockID{out3.BlockID, out2.BlockID, out1.BlockID}, order)
}

func TestMerkleRootEmpty(t *testing.T) {
	require.Equal(t, [32]byte{}, MerkleRoot(nil))
}

func TestMerkleRootDeterministic(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	r1 := MerkleRoot(leaves)
	r2 := MerkleRoot(leaves)
	require.Equal(t, r1, r2)
}
