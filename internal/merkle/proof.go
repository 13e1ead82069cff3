// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package merkle

import "bytes"

// InclusionProof is the audit path from a single entry to the log's
// root hash at a given tree size.
type InclusionProof struct {
	LeafIndex int
	TreeSize  int
	Path      [][]byte
}

// InclusionProof returns the audit path for the entry at leafIndex
// against the tree formed by the first treeSize entries.
func (l *Log) InclusionProof(leafIndex, treeSize int) (*InclusionProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if treeSize < 0 || treeSize > len(l.leaves) {
		return nil, ErrOutOfRange
	}
	if leafIndex < 0 || leafIndex >= treeSize {
		return nil, ErrOutOfRange
	}

	path := auditPath(leafIndex, l.leaves[:treeSize])
	return &InclusionProof{LeafIndex: leafIndex, TreeSize: treeSize, Path: path}, nil
}

// auditPath implements RFC 6962's PATH(m, D[n]) recursively.
func auditPath(m int, leaves [][]byte) [][]byte {
	n := len(leaves)
	if n <= 1 {
		return nil
	}
	k := largestPowerOfTwoLessThan(n)
	if m < k {
		path := auditPath(m, leaves[:k])
		return append(path, treeHash(leaves[k:]))
	}
	path := auditPath(m-k, leaves[k:])
	return append(path, treeHash(leaves[:k]))
}

// VerifyInclusion checks that entryData is present at leafIndex in a
// tree of size treeSize with root rootHash, given its audit path.
//
// The path is ordered leaf-to-root (matching auditPath's construction),
// so verification first walks the same root-to-leaf descent used to
// build the path to recover each level's left/right direction, then
// folds the path back up from the leaf.
func VerifyInclusion(entryData []byte, leafIndex, treeSize int, path [][]byte, rootHash []byte) bool {
	if leafIndex < 0 || treeSize <= 0 || leafIndex >= treeSize {
		return false
	}
	if treeSize == 1 {
		return len(path) == 0 && bytes.Equal(leafHash(entryData), rootHash)
	}

	var isLeft []bool // root-to-leaf order
	size, index := treeSize, leafIndex
	for size > 1 {
		k := largestPowerOfTwoLessThan(size)
		if index < k {
			isLeft = append(isLeft, true)
			size = k
		} else {
			isLeft = append(isLeft, false)
			index -= k
			size -= k
		}
	}
	if len(isLeft) != len(path) {
		return false
	}

	hash := leafHash(entryData)
	for i := len(isLeft) - 1; i >= 0; i-- {
		sibling := path[len(isLeft)-1-i]
		if isLeft[i] {
			hash = nodeHash(hash, sibling)
		} else {
			hash = nodeHash(sibling, hash)
		}
	}

	return bytes.Equal(hash, rootHash)
}
