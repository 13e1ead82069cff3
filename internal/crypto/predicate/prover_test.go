// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package predicate

import "testing"

func TestGEProofVerifies(t *testing.T) {
	p := NewProver()
	if err := p.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	proof, err := p.Prove(25, 42, 18) // age 25 >= 18
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	ok, err := p.Verify(proof)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected GE proof to verify")
	}
}

func TestGEProofRejectsFailingPredicate(t *testing.T) {
	p := NewProver()
	if err := p.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := p.Prove(10, 1, 18); err == nil {
		t.Fatal("expected prove to refuse an attribute below the threshold")
	}
}

func TestGEProofRejectsTamperedThreshold(t *testing.T) {
	p := NewProver()
	if err := p.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	proof, err := p.Prove(25, 42, 18)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	proof.Threshold = 100 // tamper with the claimed threshold after the fact
	ok, err := p.Verify(proof)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail for a tampered threshold")
	}
}
