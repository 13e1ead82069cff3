// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package accum

import "testing"

func TestAccumulatorWitnessVerifies(t *testing.T) {
	sk, pk, err := GenerateKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	tails := sk.GenerateTails(16)

	members := []uint32{3, 7, 9, 12}
	acc, w, err := Compute(tails, members, 7, true)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if !Verify(pk, acc, w, 7) {
		t.Fatal("expected witness for member 7 to verify")
	}
}

func TestAccumulatorWitnessRejectsNonMember(t *testing.T) {
	sk, pk, err := GenerateKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	tails := sk.GenerateTails(16)

	members := []uint32{3, 7, 9, 12}
	acc, w, err := Compute(tails, members, 7, true)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if Verify(pk, acc, w, 5) {
		t.Fatal("expected witness not to verify for an index that was never accumulated")
	}
}

func TestAccumulatorRevocationChangesValue(t *testing.T) {
	sk, _, err := GenerateKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	tails := sk.GenerateTails(16)

	before, _, err := Compute(tails, []uint32{1, 2, 3}, 0, false)
	if err != nil {
		t.Fatalf("compute before: %v", err)
	}
	after, _, err := Compute(tails, []uint32{1, 3}, 0, false) // 2 revoked
	if err != nil {
		t.Fatalf("compute after: %v", err)
	}

	if before.Value.Equal(&after.Value) {
		t.Fatal("expected accumulator value to change after revocation")
	}
}

func TestComputeRejectsMissingMember(t *testing.T) {
	sk, _, err := GenerateKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	tails := sk.GenerateTails(8)

	if _, _, err := Compute(tails, []uint32{1, 2}, 99, true); err == nil {
		t.Fatal("expected error requesting a witness for an index absent from the member set")
	}
}
