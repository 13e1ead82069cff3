// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package anoncreds

import "testing"

func TestEncodeAttrValue_IntegerRoundTrips(t *testing.T) {
	if got := EncodeAttrValue("28"); got != "28" {
		t.Fatalf("expected integer-valued raw to encode to itself, got %q", got)
	}
	if got := EncodeAttrValue("-5"); got != "-5" {
		t.Fatalf("expected negative integer raw to encode to itself, got %q", got)
	}
}

func TestEncodeAttrValue_NonIntegerIsDeterministicDigest(t *testing.T) {
	a := EncodeAttrValue("Alice")
	b := EncodeAttrValue("Alice")
	if a != b {
		t.Fatalf("expected encoding to be deterministic, got %q and %q", a, b)
	}
	if a == EncodeAttrValue("Bob") {
		t.Fatal("expected distinct raw values to encode differently")
	}
	if a == "Alice" {
		t.Fatal("expected a non-integer raw value to not encode to itself")
	}
}

func TestComputeProofDigest_ChangesWithRevealedAttrs(t *testing.T) {
	base := &Proof{
		Nonce:             "nonce1",
		RevealedAttrs:     map[string]RevealedAttrProof{"a": {Raw: "Alice", Encoded: EncodeAttrValue("Alice")}},
		UnrevealedAttrs:   map[string]UnrevealedAttrProof{},
		SelfAttestedAttrs: map[string]string{},
		Predicates:        map[string]PredicateProof{},
	}
	d1 := ComputeProofDigest(base.Nonce, base)

	changed := *base
	changed.RevealedAttrs = map[string]RevealedAttrProof{"a": {Raw: "Bob", Encoded: EncodeAttrValue("Bob")}}
	d2 := ComputeProofDigest(changed.Nonce, &changed)

	if string(d1) == string(d2) {
		t.Fatal("expected digest to change when a revealed attribute changes")
	}

	d1Again := ComputeProofDigest(base.Nonce, base)
	if string(d1) != string(d1Again) {
		t.Fatal("expected digest computation to be deterministic for the same proof")
	}
}
