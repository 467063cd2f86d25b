// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashtimer implements the signed, round-anchored time proof used
// to order blocks and anchor rounds without trusting any single node's
// wall clock. A HashTimer binds a monotonic microsecond timestamp to a
// payload digest and a node identity, signed with Ed25519, so any
// observer can verify when (and by whom) a block was proposed.
package hashtimer

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// EncodedLen is the canonical wire size of a HashTimer: 8 (t_us) + 32
// (node id) + 32 (payload digest) + 64 (signature) bytes.
const EncodedLen = 8 + 32 + 32 + 64

// HashTimer is a signed proof that node NodeID observed PayloadDigest at
// monotonic microsecond TUs.
type HashTimer struct {
	TUs           int64
	NodeID        [32]byte
	PayloadDigest [32]byte
	Signature     [64]byte
}

// Clock supplies monotonic IPPAN microseconds, independent of wall-clock
// time, so tests can inject a deterministic sequence.
type Clock interface {
	NowMicros() int64
}

// digest computes BLAKE3(tag || payload || extra || nodeID).
func digest(tag string, payload, extra []byte, nodeID [32]byte) [32]byte {
	h := blake3.New()
	h.Write([]byte(tag))
	h.Write(payload)
	h.Write(extra)
	h.Write(nodeID[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NowRound builds a signed HashTimer for the current moment, per the
// supplied Clock, over tag/payload/extra/nodeID, signed by signer.
func NowRound(clk Clock, tag string, payload, extra []byte, nodeID [32]byte, signer ed25519.PrivateKey) HashTimer {
	tUs := clk.NowMicros()
	d := digest(tag, payload, extra, nodeID)
	ht := HashTimer{TUs: tUs, NodeID: nodeID, PayloadDigest: d}
	msg := signingMessage(tUs, nodeID, d)
	sig := ed25519.Sign(signer, msg)
	copy(ht.Signature[:], sig)
	return ht
}

// ForRound derives the deterministic, signature-free round anchor: every
// honest node computes the identical HashTimer from the round index alone,
// so it needs no signature to be useful as a shared entropy input.
func ForRound(round uint64) HashTimer {
	var roundBytes [8]byte
	binary.LittleEndian.PutUint64(roundBytes[:], round)
	d := blake3.Sum256(append([]byte("round-anchor"), roundBytes[:]...))
	return HashTimer{TUs: int64(round), PayloadDigest: d}
}

func signingMessage(tUs int64, nodeID, payloadDigest [32]byte) []byte {
	msg := make([]byte, 8+32+32)
	binary.LittleEndian.PutUint64(msg[0:8], uint64(tUs))
	copy(msg[8:40], nodeID[:])
	copy(msg[40:72], payloadDigest[:])
	return msg
}

// Verify checks ht's signature against pub. A zero signature (as produced
// by ForRound) never verifies; callers must use ForRound's anchor only in
// contexts that don't require a signature.
func Verify(ht HashTimer, pub ed25519.PublicKey) bool {
	if ht.Signature == ([64]byte{}) {
		return false
	}
	msg := signingMessage(ht.TUs, ht.NodeID, ht.PayloadDigest)
	return ed25519.Verify(pub, msg, ht.Signature[:])
}

// Encode renders ht in its canonical 136-byte wire layout:
// t_us (8, LE) || node_id (32) || payload_digest (32) || signature (64).
func Encode(ht HashTimer) [EncodedLen]byte {
	var out [EncodedLen]byte
	binary.LittleEndian.PutUint64(out[0:8], uint64(ht.TUs))
	copy(out[8:40], ht.NodeID[:])
	copy(out[40:72], ht.PayloadDigest[:])
	copy(out[72:136], ht.Signature[:])
	return out
}

// Decode parses the canonical 136-byte layout produced by Encode.
func Decode(b [EncodedLen]byte) HashTimer {
	var ht HashTimer
	ht.TUs = int64(binary.LittleEndian.Uint64(b[0:8]))
	copy(ht.NodeID[:], b[8:40])
	copy(ht.PayloadDigest[:], b[40:72])
	copy(ht.Signature[:], b[72:136])
	return ht
}

// SystemClock reads wall-clock microseconds; used by production nodes,
// not by determinism tests.
type SystemClock struct {
	nowFunc func() int64
}

// NewSystemClock returns a Clock backed by nowFunc (normally a wrapper
// returning time.Now().UnixMicro()).
func NewSystemClock(nowFunc func() int64) SystemClock {
	return SystemClock{nowFunc: nowFunc}
}

func (c SystemClock) NowMicros() int64 {
	return c.nowFunc()
}
