// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package merkle

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

func fillLog(t *testing.T, n int) *Log {
	t.Helper()
	l := NewLog()
	for i := 0; i < n; i++ {
		l.Append([]byte(fmt.Sprintf("entry-%d", i)))
	}
	return l
}

func TestRootHashChangesOnAppend(t *testing.T) {
	l := NewLog()
	r0 := l.RootHash()
	l.Append([]byte("tx1"))
	r1 := l.RootHash()
	if bytes.Equal(r0, r1) {
		t.Fatal("expected root hash to change after append")
	}
	l.Append([]byte("tx2"))
	r2 := l.RootHash()
	if bytes.Equal(r1, r2) {
		t.Fatal("expected root hash to change after second append")
	}
}

func TestInclusionProofVerifies(t *testing.T) {
	l := fillLog(t, 7)
	for i := 0; i < l.Count(); i++ {
		proof, err := l.InclusionProof(i, l.Count())
		if err != nil {
			t.Fatalf("inclusion proof for %d: %v", i, err)
		}
		entry, err := l.Entry(i)
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if !VerifyInclusion(entry, i, l.Count(), proof.Path, l.RootHash()) {
			t.Fatalf("expected inclusion proof to verify for leaf %d", i)
		}
	}
}

func TestInclusionProofRejectsWrongEntry(t *testing.T) {
	l := fillLog(t, 5)
	proof, err := l.InclusionProof(2, l.Count())
	if err != nil {
		t.Fatalf("inclusion proof: %v", err)
	}
	if VerifyInclusion([]byte("not-the-real-entry"), 2, l.Count(), proof.Path, l.RootHash()) {
		t.Fatal("expected inclusion proof to reject a substituted entry")
	}
}

func TestConsistencyProofVerifies(t *testing.T) {
	sizes := []int{1, 2, 3, 4, 5, 8, 13}
	for _, oldSize := range sizes {
		for _, newSize := range sizes {
			if newSize < oldSize {
				continue
			}
			l := fillLog(t, newSize)
			oldRoot, err := l.RootHashAt(oldSize)
			if err != nil {
				t.Fatalf("root at %d: %v", oldSize, err)
			}
			newRoot, err := l.RootHashAt(newSize)
			if err != nil {
				t.Fatalf("root at %d: %v", newSize, err)
			}
			proof, err := l.ConsistencyProof(oldSize, newSize)
			if err != nil {
				t.Fatalf("consistency proof(%d,%d): %v", oldSize, newSize, err)
			}
			if err := VerifyConsistency(oldSize, newSize, proof, oldRoot, newRoot); err != nil {
				t.Fatalf("verify consistency(%d,%d): %v", oldSize, newSize, err)
			}
		}
	}
}

func TestConsistencyProofRejectsTamperedRoot(t *testing.T) {
	l := fillLog(t, 10)
	oldRoot, _ := l.RootHashAt(4)
	newRoot, _ := l.RootHashAt(10)
	proof, err := l.ConsistencyProof(4, 10)
	if err != nil {
		t.Fatalf("consistency proof: %v", err)
	}

	tamperedNewRoot := append([]byte(nil), newRoot...)
	tamperedNewRoot[0] ^= 0xFF
	if err := VerifyConsistency(4, 10, proof, oldRoot, tamperedNewRoot); err == nil {
		t.Fatal("expected verification to fail for a tampered new root")
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	l := fillLog(t, 6)
	path := filepath.Join(t.TempDir(), "log.msgpack")
	if err := l.Dump(path); err != nil {
		t.Fatalf("dump: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Count() != l.Count() {
		t.Fatalf("expected %d entries, got %d", l.Count(), loaded.Count())
	}
	if !bytes.Equal(loaded.RootHash(), l.RootHash()) {
		t.Fatal("expected root hash to survive dump/load round trip")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.msgpack")); err == nil {
		t.Fatal("expected error loading a nonexistent log file")
	}
}
