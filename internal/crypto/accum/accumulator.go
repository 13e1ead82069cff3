// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package accum implements the pairing-based cryptographic accumulator
// backing a CL-Accumulator revocation registry (spec §3 Revocation
// Registry State, §4.7/§4.8): the accumulator value is
// Acc = g1^(prod_{i in S} (i + gamma)) for the currently-valid index set
// S, and a per-credential witness Wy = g1^(prod_{i in S, i != y} (i +
// gamma)) lets a holder prove membership of its own index y via the
// pairing check e(Wy, g2^(y+gamma)) == e(Acc, g2), in which y is a
// public input the verifier is given.
//
// This is the Nguyen (2005) accumulator construction generalized in
// Camenisch-Lysyanskaya's anonymous-credential revocation scheme, which
// is the cryptographic content behind the "CL-Accumulator" name in the
// specification. Tails hold precomputed powers g1^(gamma^k) so that a
// party who knows only the tails (never gamma) can compute and update
// witnesses for any member set of at most maxCredNum indices, one fewer
// than the tails table's length.
package accum

import (
	"errors"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// SecretKey is the accumulator trapdoor (gamma), held only by the issuer.
type SecretKey struct{ gamma fr.Element }

// PublicKey is g2^gamma, published alongside the registry definition so
// holders and verifiers can check witnesses without the trapdoor.
type PublicKey struct {
	G2Gamma bls12381.G2Affine
}

// Tails are precomputed powers of gamma in G1: Tails[k] = g1^(gamma^k).
// The issuer generates them once at registry-creation time and streams
// them to the tails writer (spec §4.7); readers only ever read this
// table, never gamma itself.
type Tails struct {
	Values []bls12381.G1Affine // Values[k] = g1^(gamma^k), k = 0..maxCredNum
}

// Bytes serializes the trapdoor for wallet storage (spec §4.7: the
// issuer persists the registry's secret key alongside its bookkeeping
// record).
func (sk *SecretKey) Bytes() []byte {
	b := sk.gamma.Bytes()
	return b[:]
}

// SecretKeyFromBytes deserializes a trapdoor previously produced by
// SecretKey.Bytes.
func SecretKeyFromBytes(data []byte) *SecretKey {
	var gamma fr.Element
	gamma.SetBytes(data)
	return &SecretKey{gamma: gamma}
}

// Bytes serializes the public key for publication in a revocation
// registry definition.
func (pk *PublicKey) Bytes() []byte {
	b := pk.G2Gamma.Bytes()
	return b[:]
}

// PublicKeyFromBytes deserializes a public key previously produced by
// PublicKey.Bytes.
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	var g2 bls12381.G2Affine
	if _, err := g2.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize accumulator public key: %w", err)
	}
	return &PublicKey{G2Gamma: g2}, nil
}

// Bytes serializes the accumulator value.
func (a *Accumulator) Bytes() []byte {
	b := a.Value.Bytes()
	return b[:]
}

// AccumulatorFromBytes deserializes an accumulator value previously
// produced by Accumulator.Bytes.
func AccumulatorFromBytes(data []byte) (*Accumulator, error) {
	var v bls12381.G1Affine
	if _, err := v.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize accumulator value: %w", err)
	}
	return &Accumulator{Value: v}, nil
}

// Bytes serializes a witness value.
func (w *Witness) Bytes() []byte {
	b := w.Value.Bytes()
	return b[:]
}

// WitnessFromBytes deserializes a witness previously produced by
// Witness.Bytes.
func WitnessFromBytes(data []byte) (*Witness, error) {
	var v bls12381.G1Affine
	if _, err := v.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize witness value: %w", err)
	}
	return &Witness{Value: v}, nil
}

// GenerateKeys creates a fresh accumulator trapdoor and its public
// counterpart.
func GenerateKeys() (*SecretKey, *PublicKey, error) {
	var gamma fr.Element
	if _, err := gamma.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("sample gamma: %w", err)
	}
	_, _, _, g2Gen := bls12381.Generators()
	var g2Gamma bls12381.G2Affine
	g2Gamma.ScalarMultiplication(&g2Gen, gamma.BigInt(new(big.Int)))
	return &SecretKey{gamma: gamma}, &PublicKey{G2Gamma: g2Gamma}, nil
}

// GenerateTails builds the tails table up to maxCredNum entries
// (indices 0..maxCredNum inclusive), using the trapdoor. This is the one
// operation in this package that requires the secret key; every other
// accumulator/witness computation only reads Tails.
func (sk *SecretKey) GenerateTails(maxCredNum uint32) *Tails {
	_, _, g1Gen, _ := bls12381.Generators()
	vals := make([]bls12381.G1Affine, maxCredNum+1)
	vals[0] = g1Gen

	var gammaPow fr.Element
	gammaPow.SetOne()
	for k := uint32(1); k <= maxCredNum; k++ {
		gammaPow.Mul(&gammaPow, &sk.gamma)
		vals[k].ScalarMultiplication(&g1Gen, gammaPow.BigInt(new(big.Int)))
	}
	return &Tails{Values: vals}
}

// Accumulator is the registry's current accumulated value over the set
// of currently-valid (per spec §3: issued-for-ON_DEMAND or
// not-yet-revoked-for-BY_DEFAULT) credential indices.
type Accumulator struct {
	Value bls12381.G1Affine
}

// Witness lets a single credential holder prove its index is a member of
// the accumulated set; the verifier checks it against that index.
type Witness struct {
	Value bls12381.G1Affine
}

// Compute evaluates the accumulator (and, when wantWitness is true, the
// witness for memberIndex) over member set S using only the tails
// table — the operation a holder or a tails-only issuer process runs on
// every issue/revoke (spec §4.7 "compute ... a witness over the current
// accumulator plus issued/revoked index sets").
func Compute(tails *Tails, members []uint32, memberIndex uint32, wantWitness bool) (*Accumulator, *Witness, error) {
	coeffs, err := elementarySymmetric(members)
	if err != nil {
		return nil, nil, err
	}
	accVal, err := evalInTails(tails, coeffs)
	if err != nil {
		return nil, nil, err
	}
	acc := &Accumulator{Value: accVal}

	if !wantWitness {
		return acc, nil, nil
	}

	others := make([]uint32, 0, len(members))
	found := false
	for _, m := range members {
		if m == memberIndex && !found {
			found = true
			continue
		}
		others = append(others, m)
	}
	if !found {
		return nil, nil, fmt.Errorf("member index %d not present in accumulated set", memberIndex)
	}

	wCoeffs, err := elementarySymmetric(others)
	if err != nil {
		return nil, nil, err
	}
	wVal, err := evalInTails(tails, wCoeffs)
	if err != nil {
		return nil, nil, err
	}
	return acc, &Witness{Value: wVal}, nil
}

// Verify checks that w is a valid non-revocation witness for credIndex
// against acc under pk, via e(w, g2^(credIndex+gamma)) == e(acc, g2).
func Verify(pk *PublicKey, acc *Accumulator, w *Witness, credIndex uint32) bool {
	_, _, _, g2Gen := bls12381.Generators()

	var idxFr fr.Element
	idxFr.SetUint64(uint64(credIndex))
	var idxG2 bls12381.G2Affine
	idxG2.ScalarMultiplication(&g2Gen, idxFr.BigInt(new(big.Int)))

	var exponent bls12381.G2Jac
	exponent.FromAffine(&idxG2)
	var gammaJac bls12381.G2Jac
	gammaJac.FromAffine(&pk.G2Gamma)
	exponent.AddAssign(&gammaJac)
	var rhs bls12381.G2Affine
	rhs.FromJacobian(&exponent)

	var negG2 bls12381.G2Affine
	negG2.Neg(&g2Gen)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{w.Value, acc.Value},
		[]bls12381.G2Affine{rhs, negG2},
	)
	return err == nil && ok
}

// elementarySymmetric returns the coefficients of prod_{m in members}
// (Z + m) as Fr elements, lowest degree first: coeffs[0] is the constant
// term, coeffs[len(members)] is 1 (the leading term).
func elementarySymmetric(members []uint32) ([]fr.Element, error) {
	coeffs := make([]fr.Element, 1, len(members)+1)
	coeffs[0].SetOne()

	for _, m := range members {
		var mFr fr.Element
		mFr.SetUint64(uint64(m))

		next := make([]fr.Element, len(coeffs)+1)
		for i, c := range coeffs {
			// next[i+1] += c  (multiply by Z)
			next[i+1].Add(&next[i+1], &c)
			// next[i] += c * m
			var term fr.Element
			term.Mul(&c, &mFr)
			next[i].Add(&next[i], &term)
		}
		coeffs = next
	}
	return coeffs, nil
}

// evalInTails computes sum_k coeffs[k] * tails.Values[k] as a G1 point,
// i.e. g1^(P(gamma)) for P given by coeffs, without ever learning gamma.
func evalInTails(tails *Tails, coeffs []fr.Element) (bls12381.G1Affine, error) {
	if len(coeffs) > len(tails.Values) {
		return bls12381.G1Affine{}, errors.New("accumulator: member set exceeds tails table size")
	}

	var acc bls12381.G1Jac
	acc.FromAffine(&bls12381.G1Affine{}) // identity

	first := true
	for k, c := range coeffs {
		if c.IsZero() {
			continue
		}
		var term bls12381.G1Affine
		term.ScalarMultiplication(&tails.Values[k], c.BigInt(new(big.Int)))
		var termJac bls12381.G1Jac
		termJac.FromAffine(&term)
		if first {
			acc = termJac
			first = false
		} else {
			acc.AddAssign(&termJac)
		}
	}

	var result bls12381.G1Affine
	result.FromJacobian(&acc)
	return result, nil
}
