package bls

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	msg := []byte("ledger-state-root")
	sig := sk.Sign(DomainStateProof, msg)
	if !pk.Verify(DomainStateProof, sig, msg) {
		t.Fatal("expected signature to verify")
	}
	if pk.Verify(DomainStateProof, sig, []byte("tampered")) {
		t.Fatal("expected verification to fail for different message")
	}
}

func TestVerifyThreshold(t *testing.T) {
	const n = 4
	msg := []byte("root@seq=10")
	var sigs []*Signature
	var keys []*PublicKey
	for i := 0; i < n; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate key pair %d: %v", i, err)
		}
		sigs = append(sigs, sk.Sign(DomainStateProof, msg))
		keys = append(keys, pk)
	}

	f := (n - 1) / 3 // 1
	threshold := f + 1

	agg, err := AggregateSignatures(sigs[:threshold])
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !VerifyThreshold(DomainStateProof, agg, keys[:threshold], msg, threshold) {
		t.Fatal("expected threshold aggregate to verify")
	}

	// Fewer keys than signatures aggregated must not verify.
	if VerifyThreshold(DomainStateProof, agg, keys[:threshold-1], msg, threshold) {
		t.Fatal("expected verification to fail with insufficient keys")
	}
}
