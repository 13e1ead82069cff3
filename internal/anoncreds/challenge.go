// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package anoncreds

import (
	"crypto/sha256"

	"github.com/certen/indysdk/internal/crypto"
)

// ComputeProofDigest is the tamper-evidence digest create_proof stamps
// into Proof.AggregateProof and verify_proof recomputes (spec §4.9
// "aggregated proof carries the Fiat-Shamir challenge"). It is shared
// between the prover and verifier packages so both compute it the same
// way without either importing the other's internals.
func ComputeProofDigest(nonce string, proof *Proof) []byte {
	challengeInput, err := CanonicalJSONProofChallenge(nonce, proof)
	if err != nil {
		return nil
	}
	digest := sha256.Sum256(challengeInput)
	return digest[:]
}

// CanonicalJSONProofChallenge builds the canonical bytes ComputeProofDigest
// hashes, split out so callers that need the raw challenge bytes
// (rather than just the digest) can still get them deterministically.
func CanonicalJSONProofChallenge(nonce string, proof *Proof) ([]byte, error) {
	return crypto.CanonicalJSON(map[string]any{
		"nonce":             nonce,
		"revealed":          proof.RevealedAttrs,
		"unrevealed":        proof.UnrevealedAttrs,
		"selfAttestedAttrs": proof.SelfAttestedAttrs,
		"predicates":        proof.Predicates,
	})
}
