// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package crypto collects the primitives the spec treats as provided by a
// cryptographic library: DID derivation, Ed25519 signing, canonical JSON
// for the wire envelope, a CL-style revocation accumulator, and a gnark
// predicate circuit. The protocols that assemble these primitives
// (pool consensus, anoncreds) live in their own packages.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// DIDLength is the number of leading bytes of a verification key that form
// the DID itself, per spec §3 ("Identifier derived from a 16- or 32-byte
// seed or key").
const DIDLength = 16

// DID is a self-owned subject identifier bound to a verification key.
type DID struct {
	DID        string // base58(verkey[:16])
	VerKey     string // base58(verkey)
	PrivateKey ed25519.PrivateKey
}

// NewDIDFromSeed derives a DID deterministically from a 16- or 32-byte
// seed, following the indy convention of seeding an Ed25519 key from a
// fixed-length secret.
func NewDIDFromSeed(seed []byte) (*DID, error) {
	switch len(seed) {
	case 16:
		// Ed25519 requires a 32-byte seed; stretch a 16-byte seed
		// deterministically the way indy's abbreviated seeds do.
		expanded := sha256.Sum256(seed)
		seed = expanded[:]
	case 32:
		// used as-is
	default:
		return nil, fmt.Errorf("seed must be 16 or 32 bytes, got %d", len(seed))
	}

	privKey := ed25519.NewKeyFromSeed(seed)
	pubKey := privKey.Public().(ed25519.PublicKey)

	return newDID(pubKey, privKey), nil
}

// NewDIDFromRandom generates a fresh random DID.
func NewDIDFromRandom() (*DID, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return newDID(pub, priv), nil
}

func newDID(pub ed25519.PublicKey, priv ed25519.PrivateKey) *DID {
	return &DID{
		DID:        base58.Encode(pub[:DIDLength]),
		VerKey:     base58.Encode(pub),
		PrivateKey: priv,
	}
}

// Sign signs message with the DID's private signing key.
func (d *DID) Sign(message []byte) []byte {
	return ed25519.Sign(d.PrivateKey, message)
}

// VerifySignature verifies sig over message against a base58-encoded
// verification key, independent of any particular DID instance — used
// when verifying signatures from a DID this process does not own.
func VerifySignature(verkey string, message, sig []byte) (bool, error) {
	raw, err := base58.Decode(verkey)
	if err != nil {
		return false, fmt.Errorf("decode verkey: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid verkey length %d", len(raw))
	}
	return ed25519.Verify(ed25519.PublicKey(raw), message, sig), nil
}
