// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package bls verifies the BLS12-381 multi-signatures that back ledger
// state proofs (spec §4.6): a reply's state proof is trusted only if its
// multi-signature verifies against at least f+1 of the pool's known node
// verification keys.
package bls

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var (
	initOnce sync.Once
	g1Gen    bls12381.G1Affine
	g2Gen    bls12381.G2Affine
)

// DomainStateProof separates signatures over ledger state-proof roots from
// any other BLS usage in the process.
const DomainStateProof = "INDYSDK_STATE_PROOF_V1"

const (
	PrivateKeySize = 32
	PublicKeySize  = 96
	SignatureSize  = 48
)

func initialize() {
	initOnce.Do(func() {
		_, _, g1Gen, g2Gen = bls12381.Generators()
	})
}

// PrivateKey is a BLS12-381 scalar in Fr.
type PrivateKey struct{ scalar fr.Element }

// PublicKey is a point on G2.
type PublicKey struct{ point bls12381.G2Affine }

// Signature is a point on G1.
type Signature struct{ point bls12381.G1Affine }

// GenerateKeyPair returns a fresh key pair backing a validator's
// state-proof verification key.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	initialize()
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("generate scalar: %w", err)
	}
	priv := &PrivateKey{scalar: sk}
	return priv, priv.PublicKey(), nil
}

// PrivateKeyFromBytes deserializes a scalar previously produced by
// PrivateKey.Bytes, for a signing key a caller persisted to storage
// (e.g. a credential definition's private key, spec §4.7).
func PrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	initialize()
	var sk fr.Element
	sk.SetBytes(data)
	return &PrivateKey{scalar: sk}, nil
}

// PublicKeyFromBytes deserializes a G2 point, accepting the compressed
// 96-byte form PublicKey.Bytes produces as well as the uncompressed form.
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	initialize()
	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize public key: %w", err)
	}
	return &PublicKey{point: pk}, nil
}

// PublicKeyFromHex deserializes a hex-encoded public key.
func PublicKeyFromHex(s string) (*PublicKey, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PublicKeyFromBytes(data)
}

// SignatureFromBytes deserializes a compressed G1 point.
func SignatureFromBytes(data []byte) (*Signature, error) {
	initialize()
	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize signature: %w", err)
	}
	return &Signature{point: sig}, nil
}

func (sk *PrivateKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

func (sk *PrivateKey) PublicKey() *PublicKey {
	initialize()
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	var pk bls12381.G2Affine
	pk.ScalarMultiplication(&g2Gen, &skBig)
	return &PublicKey{point: pk}
}

// Sign signs message with domain separation.
func (sk *PrivateKey) Sign(domain string, message []byte) *Signature {
	initialize()
	h := hashToG1(domainMessage(domain, message))
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	var sig bls12381.G1Affine
	sig.ScalarMultiplication(&h, &skBig)
	return &Signature{point: sig}
}

func (pk *PublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

func (pk *PublicKey) Hex() string { return hex.EncodeToString(pk.Bytes()) }

func (pk *PublicKey) Equal(other *PublicKey) bool { return pk.point.Equal(&other.point) }

// Verify checks a single signature under domain separation.
func (pk *PublicKey) Verify(domain string, sig *Signature, message []byte) bool {
	initialize()
	h := hashToG1(domainMessage(domain, message))
	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	return err == nil && ok
}

func (sig *Signature) Bytes() []byte {
	b := sig.point.Bytes()
	return b[:]
}

func (sig *Signature) Hex() string { return hex.EncodeToString(sig.Bytes()) }

// AggregateSignatures combines per-node signatures over the SAME message
// into a single multi-signature (point addition on G1).
func AggregateSignatures(sigs []*Signature) (*Signature, error) {
	initialize()
	if len(sigs) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}
	var acc bls12381.G1Jac
	acc.FromAffine(&sigs[0].point)
	for _, s := range sigs[1:] {
		var jac bls12381.G1Jac
		jac.FromAffine(&s.point)
		acc.AddAssign(&jac)
	}
	var result bls12381.G1Affine
	result.FromJacobian(&acc)
	return &Signature{point: result}, nil
}

func aggregatePublicKeys(pks []*PublicKey) (*PublicKey, error) {
	initialize()
	if len(pks) == 0 {
		return nil, errors.New("no public keys to aggregate")
	}
	var acc bls12381.G2Jac
	acc.FromAffine(&pks[0].point)
	for _, p := range pks[1:] {
		var jac bls12381.G2Jac
		jac.FromAffine(&p.point)
		acc.AddAssign(&jac)
	}
	var result bls12381.G2Affine
	result.FromJacobian(&acc)
	return &PublicKey{point: result}, nil
}

// VerifyThreshold verifies that aggSig is the aggregate of at least
// threshold signatures over message from the keys in signerKeys, as spec
// §4.5.1 requires ("BLS-aggregate signature validated against at least
// f+1 of the known node verification keys"). It is the caller's
// responsibility to have selected signerKeys as exactly the nodes whose
// individual signatures went into aggSig.
func VerifyThreshold(domain string, aggSig *Signature, signerKeys []*PublicKey, message []byte, threshold int) bool {
	if len(signerKeys) < threshold {
		return false
	}
	aggPk, err := aggregatePublicKeys(signerKeys)
	if err != nil {
		return false
	}
	return aggPk.Verify(domain, aggSig, message)
}

func domainMessage(domain string, message []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(message)
	return h.Sum(nil)
}

// hashToG1 hashes a message onto a point on G1 using a simple
// hash-and-increment construction (adequate for this SDK's internal
// domain-separated state-proof messages, which are not adversarially
// chosen by an untrusted party).
func hashToG1(message []byte) bls12381.G1Affine {
	h := sha256.New()
	h.Write([]byte("INDYSDK_H2G1_"))
	h.Write(message)

	var counter uint64
	for {
		h2 := sha256.New()
		h2.Write(h.Sum(nil))
		_ = binary.Write(h2, binary.BigEndian, counter)
		hash := h2.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(hash); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(hash)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)
		var result bls12381.G1Affine
		result.ScalarMultiplication(&g1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}

		counter++
		if counter > 1000 {
			return g1Gen
		}
	}
}
