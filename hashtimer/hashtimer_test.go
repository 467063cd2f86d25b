// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashtimer

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t int64 }

func (f fakeClock) NowMicros() int64 { return f.t }

func TestNowRoundVerifies(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var nodeID [32]byte
	nodeID[0] = 7

	ht := NowRound(fakeClock{t: 1234}, "block", []byte("payload"), []byte("extra"), nodeID, priv)
	require.True(t, Verify(ht, pub))
}

func TestVerifyRejectsTamperedTimestamp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var nodeID [32]byte

	ht := NowRound(fakeClock{t: 1}, "block", []byte("p"), nil, nodeID, priv)
	ht.TUs++
	require.False(t, Verify(ht, pub))
}

func TestForRoundDeterministic(t *testing.T) {
	a := ForRound(42)
	b := ForRound(42)
	require.Equal(t, a, b)

	c := ForRound(43)
	require.NotEqual(t, a.PayloadDigest, c.PayloadDigest)
}

func TestForRoundNeverVerifies(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	require.False(t, Verify(ForRound(1), pub))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	var nodeID [32]byte
	nodeID[1] = 9
	ht := NowRound(fakeClock{t: 99}, "block", []byte("p"), nil, nodeID, priv)

	enc := Encode(ht)
	require.Len(t, enc, EncodedLen)
	dec := Decode(enc)
	require.Equal(t, ht, dec)
}
