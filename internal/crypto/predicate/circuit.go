// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package predicate proves a GE (greater-or-equal) predicate over a
// committed credential attribute without revealing the attribute value
// (spec §4.9 "predicate sub-proof ... proves attr >= value"), using a
// gnark Groth16 circuit over BN254.
package predicate

import (
	"github.com/consensys/gnark/frontend"
)

// GECircuit proves that a committed attribute value is greater than or
// equal to a public threshold.
//
//	AttrCommitment == AttrValue + Blinding*7   (public, binds the hidden value)
//	Threshold <= AttrValue                      (the predicate itself)
type GECircuit struct {
	// Public inputs
	Threshold      frontend.Variable `gnark:",public"`
	AttrCommitment frontend.Variable `gnark:",public"`

	// Private inputs
	AttrValue frontend.Variable
	Blinding  frontend.Variable
}

// Define implements the circuit constraints.
func (c *GECircuit) Define(api frontend.API) error {
	computedCommitment := api.Add(c.AttrValue, api.Mul(c.Blinding, 7))
	api.AssertIsEqual(c.AttrCommitment, computedCommitment)

	api.AssertIsLessOrEqual(c.Threshold, c.AttrValue)

	return nil
}

// ComputeCommitment computes the same linear commitment the circuit
// checks, for use when constructing a witness.
func ComputeCommitment(attrValue, blinding int64) int64 {
	return attrValue + blinding*7
}
