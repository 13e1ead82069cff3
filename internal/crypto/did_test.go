package crypto

import "testing"

func TestNewDIDFromSeedDeterministic(t *testing.T) {
	seed := []byte("000000000000000000000000Trustee1") // 32 bytes, spec §8 scenario 1
	if len(seed) != 32 {
		t.Fatalf("test seed must be 32 bytes, got %d", len(seed))
	}

	d1, err := NewDIDFromSeed(seed)
	if err != nil {
		t.Fatalf("derive DID: %v", err)
	}
	d2, err := NewDIDFromSeed(seed)
	if err != nil {
		t.Fatalf("derive DID again: %v", err)
	}
	if d1.DID != d2.DID || d1.VerKey != d2.VerKey {
		t.Fatal("expected deterministic derivation from the same seed")
	}

	other, err := NewDIDFromSeed([]byte("00000000000000000000000000000002"[:32]))
	if err != nil {
		t.Fatalf("derive other DID: %v", err)
	}
	if other.DID == d1.DID {
		t.Fatal("expected distinct seeds to produce distinct DIDs")
	}
}

func TestDIDSignVerify(t *testing.T) {
	d, err := NewDIDFromRandom()
	if err != nil {
		t.Fatalf("random DID: %v", err)
	}
	msg := []byte(`{"reqId":1}`)
	sig := d.Sign(msg)

	ok, err := VerifySignature(d.VerKey, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}

	ok, err = VerifySignature(d.VerKey, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail for tampered message")
	}
}

func TestNewDIDFrom16ByteSeed(t *testing.T) {
	seed := make([]byte, 16)
	d, err := NewDIDFromSeed(seed)
	if err != nil {
		t.Fatalf("derive from 16-byte seed: %v", err)
	}
	if d.DID == "" || d.VerKey == "" {
		t.Fatal("expected non-empty DID and verkey")
	}
}
