// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package predicate

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Prover compiles the GE circuit once and reuses the resulting proving
// and verification keys for every predicate sub-proof a prover or
// verifier handles afterward (spec §4.9: predicate sub-proofs are
// produced and checked many times per proof request against the same
// circuit shape).
type Prover struct {
	mu sync.RWMutex

	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	initialized bool
}

// NewProver creates an uninitialized predicate prover.
func NewProver() *Prover {
	return &Prover{}
}

// The compiled circuit and Groth16 keys are produced once per process and
// shared by every Prover, so a proof made by one verifies under another.
var (
	setupOnce sync.Once
	setupCS   constraint.ConstraintSystem
	setupPK   groth16.ProvingKey
	setupVK   groth16.VerifyingKey
	setupErr  error
)

// Initialize compiles the GE circuit to R1CS and runs the one-time
// Groth16 trusted setup (once per process; later calls on any Prover
// reuse the same circuit and keys).
func (p *Prover) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	setupOnce.Do(func() {
		var circuit GECircuit
		cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
		if err != nil {
			setupErr = fmt.Errorf("compile GE circuit: %w", err)
			return
		}
		pk, vk, err := groth16.Setup(cs)
		if err != nil {
			setupErr = fmt.Errorf("groth16 setup: %w", err)
			return
		}
		setupCS, setupPK, setupVK = cs, pk, vk
	})
	if setupErr != nil {
		return setupErr
	}
	p.cs, p.pk, p.vk = setupCS, setupPK, setupVK
	p.initialized = true
	return nil
}

// Proof is a serialized Groth16 proof for a single GE predicate
// sub-proof, plus the public inputs needed to check it.
type Proof struct {
	Bytes          []byte
	Threshold      int64
	AttrCommitment int64
}

// Prove produces a proof that attrValue >= threshold without revealing
// attrValue, bound to attrCommitment = attrValue + blinding*7.
func (p *Prover) Prove(attrValue, blinding, threshold int64) (*Proof, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, errors.New("predicate prover not initialized")
	}
	if attrValue < threshold {
		return nil, fmt.Errorf("attribute value %d does not satisfy threshold %d", attrValue, threshold)
	}

	commitment := ComputeCommitment(attrValue, blinding)
	assignment := &GECircuit{
		Threshold:      big.NewInt(threshold),
		AttrCommitment: big.NewInt(commitment),
		AttrValue:      big.NewInt(attrValue),
		Blinding:       big.NewInt(blinding),
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}

	proof, err := groth16.Prove(p.cs, p.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	return &Proof{Bytes: buf.Bytes(), Threshold: threshold, AttrCommitment: commitment}, nil
}

// Verify checks a GE predicate proof against its public inputs.
func (p *Prover) Verify(proof *Proof) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return false, errors.New("predicate prover not initialized")
	}

	assignment := &GECircuit{
		Threshold:      big.NewInt(proof.Threshold),
		AttrCommitment: big.NewInt(proof.AttrCommitment),
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("create public witness: %w", err)
	}

	gProof := groth16.NewProof(ecc.BN254)
	if _, err := gProof.ReadFrom(bytes.NewReader(proof.Bytes)); err != nil {
		return false, fmt.Errorf("deserialize proof: %w", err)
	}

	if err := groth16.Verify(gProof, p.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}
