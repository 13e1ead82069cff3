// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package merkle implements the append-only transaction log backing each
// ledger pool's local view of consensus (spec §3 "Merkle Log State",
// §4.5/§4.6 catchup): entries are appended in order, the log exposes an
// RFC-6962-style Merkle tree hash over its entries, and two points in
// the log's history can be related by a consistency proof without
// either side holding the full entry set.
//
// On-disk persistence uses msgpack.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrOutOfRange is returned for a leaf or size argument outside
	// the log's current bounds.
	ErrOutOfRange = errors.New("merkle: index out of range")

	// ErrInvalidConsistencyProof is returned when a consistency proof
	// fails to relate the two supplied roots.
	ErrInvalidConsistencyProof = errors.New("merkle: invalid consistency proof")
)

// Log is an append-only Merkle tree log, safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries [][]byte // raw entry payloads, in append order
	leaves  [][]byte // leafHash(entries[i]), cached as entries are appended
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// diskFormat is the msgpack-encoded representation written by Dump and
// read by Load.
type diskFormat struct {
	Entries [][]byte `msgpack:"entries"`
}

// Append adds data as the next entry and returns its zero-based index.
func (l *Log) Append(data []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := make([]byte, len(data))
	copy(entry, data)
	l.entries = append(l.entries, entry)
	l.leaves = append(l.leaves, leafHash(entry))
	return len(l.entries) - 1
}

// Count returns the number of entries currently in the log.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entry returns the raw payload at index, or ErrOutOfRange.
func (l *Log) Entry(index int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, ErrOutOfRange
	}
	out := make([]byte, len(l.entries[index]))
	copy(out, l.entries[index])
	return out, nil
}

// RootHash returns the Merkle tree hash over the log's entire current
// entry set.
func (l *Log) RootHash() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return treeHash(l.leaves)
}

// RootHashAt returns the Merkle tree hash over the first size entries.
func (l *Log) RootHashAt(size int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if size < 0 || size > len(l.leaves) {
		return nil, ErrOutOfRange
	}
	return treeHash(l.leaves[:size]), nil
}

// leafHash is the RFC-6962 leaf hash: SHA256(0x00 || data).
func leafHash(data []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// nodeHash is the RFC-6962 internal node hash: SHA256(0x01 || left || right).
func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// emptyHash is the tree hash of zero leaves: SHA256().
func emptyHash() []byte {
	h := sha256.Sum256(nil)
	return h[:]
}

// treeHash computes MTH(leaves) per RFC 6962 §2.1: the hash of a single
// leaf is that leaf's own hash, and the hash of n>1 leaves splits at the
// largest power of two strictly less than n.
func treeHash(leaves [][]byte) []byte {
	n := len(leaves)
	if n == 0 {
		return emptyHash()
	}
	if n == 1 {
		return leaves[0]
	}
	k := largestPowerOfTwoLessThan(n)
	left := treeHash(leaves[:k])
	right := treeHash(leaves[k:])
	return nodeHash(left, right)
}

// largestPowerOfTwoLessThan returns the largest power of two strictly
// less than n, for n >= 2.
func largestPowerOfTwoLessThan(n int) int {
	k := 1
	for k*2 < n {
		k *= 2
	}
	return k
}

// ConsistencyProof returns PROOF(oldSize, D[newSize]): a list of node
// hashes that lets a party holding both roots confirm that the tree at
// newSize is an append-only extension of the tree at oldSize, without
// seeing any entry itself (spec §4.5 CatchupConsensus / CatchupSingle).
func (l *Log) ConsistencyProof(oldSize, newSize int) ([][]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if oldSize < 0 || newSize < oldSize || newSize > len(l.leaves) {
		return nil, ErrOutOfRange
	}
	if oldSize == 0 || oldSize == newSize {
		return nil, nil
	}
	return subProof(oldSize, l.leaves[:newSize], true), nil
}

// subProof implements RFC 6962's SUBPROOF(m, D[n], b) recursively: b
// tracks whether the old root (MTH(D[0:m])) still coincides with a
// clean subtree boundary at this level of the recursion.
func subProof(m int, leaves [][]byte, b bool) [][]byte {
	n := len(leaves)
	if m == n {
		if b {
			return nil
		}
		return [][]byte{treeHash(leaves)}
	}

	k := largestPowerOfTwoLessThan(n)
	if m <= k {
		proof := subProof(m, leaves[:k], b)
		return append(proof, treeHash(leaves[k:]))
	}
	proof := subProof(m-k, leaves[k:], false)
	return append(proof, treeHash(leaves[:k]))
}

// VerifyConsistency checks a consistency proof between (oldRoot,
// oldSize) and (newRoot, newSize) without access to any log entry,
// following the verification algorithm from RFC 6962 §2.1.2.
func VerifyConsistency(oldSize, newSize int, proof [][]byte, oldRoot, newRoot []byte) error {
	if oldSize < 0 || newSize < oldSize {
		return ErrOutOfRange
	}
	if oldSize == 0 {
		return nil
	}
	if oldSize == newSize {
		if len(proof) != 0 {
			return fmt.Errorf("%w: expected empty proof for equal sizes", ErrInvalidConsistencyProof)
		}
		if !bytes.Equal(oldRoot, newRoot) {
			return fmt.Errorf("%w: roots differ for equal sizes", ErrInvalidConsistencyProof)
		}
		return nil
	}
	if len(proof) == 0 {
		return fmt.Errorf("%w: empty proof for unequal sizes", ErrInvalidConsistencyProof)
	}

	fn := uint64(oldSize - 1)
	sn := uint64(newSize - 1)
	for fn&1 == 1 {
		fn >>= 1
		sn >>= 1
	}

	var fr, sr []byte
	rest := proof
	if fn > 0 {
		fr = rest[0]
		sr = rest[0]
		rest = rest[1:]
	} else {
		fr = oldRoot
		sr = oldRoot
	}

	for _, c := range rest {
		if sn == 0 {
			return fmt.Errorf("%w: proof longer than expected", ErrInvalidConsistencyProof)
		}
		if fn&1 == 1 || fn == sn {
			fr = nodeHash(c, fr)
			sr = nodeHash(c, sr)
			for fn&1 == 0 && fn != 0 {
				fn >>= 1
				sn >>= 1
			}
		} else {
			sr = nodeHash(sr, c)
		}
		fn >>= 1
		sn >>= 1
	}
	if sn != 0 {
		return fmt.Errorf("%w: proof shorter than expected", ErrInvalidConsistencyProof)
	}
	if !bytes.Equal(fr, oldRoot) {
		return fmt.Errorf("%w: reconstructed old root mismatch", ErrInvalidConsistencyProof)
	}
	if !bytes.Equal(sr, newRoot) {
		return fmt.Errorf("%w: reconstructed new root mismatch", ErrInvalidConsistencyProof)
	}
	return nil
}

// Dump writes the log's entries to path in msgpack form.
func (l *Log) Dump(path string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := msgpack.Marshal(&diskFormat{Entries: l.entries})
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write log file %s: %w", path, err)
	}
	return nil
}

// Load reads a log previously written by Dump.
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file %s: %w", path, err)
	}

	var disk diskFormat
	if err := msgpack.Unmarshal(data, &disk); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}

	l := &Log{
		entries: disk.Entries,
		leaves:  make([][]byte, len(disk.Entries)),
	}
	for i, e := range disk.Entries {
		l.leaves[i] = leafHash(e)
	}
	return l, nil
}
