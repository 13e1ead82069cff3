// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"sync"

	"github.com/certen/indysdk/internal/crypto/bls"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/merkle"
)

// StateProofNode is one verifiable fact a node's state proof vouches
// for: that KeySuffix maps to Value in the ledger's state tree at the
// root the MultiSignature covers.
type StateProofNode struct {
	KeySuffix string
	Value     []byte
	LeafIndex int
	TreeSize  int
	AuditPath [][]byte
}

// MultiSignature is the BLS-aggregated signature a set of validators
// produced over a ledger root.
type MultiSignature struct {
	Signature   []byte
	Signers     []string
	LedgerRoot  []byte
	TxnRootHash []byte
}

// Parser turns a reply's "result" object into the state proof nodes
// and multi-signature it carries. Registered per operation-type string
// (spec §4.6 "a registry maps transaction-type strings to parser
// callbacks").
type Parser func(result map[string]any) ([]StateProofNode, *MultiSignature, error)

var (
	parserMu sync.RWMutex
	parsers  = map[string]Parser{}
)

// RegisterStateProofParser makes txnType eligible for the Single state
// machine's state-proof acceptance path. Registrations are process-wide
// and cannot be removed (spec §5 "init-only lifecycle").
func RegisterStateProofParser(txnType string, p Parser) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parsers[txnType] = p
}

// lookupStateProofParser reports whether txnType has a registered
// parser; submit_request uses this to classify reads as Single vs.
// Consensus (spec §4.6).
func lookupStateProofParser(txnType string) (Parser, bool) {
	parserMu.RLock()
	defer parserMu.RUnlock()
	p, ok := parsers[txnType]
	return p, ok
}

// verifyStateProof checks every node's inclusion against its declared
// root and then verifies the aggregate BLS signature over that root
// against at least f+1 of the known node verification keys.
func verifyStateProof(nodes []StateProofNode, ms *MultiSignature, verKeys map[string]*bls.PublicKey, f int) error {
	if ms == nil || len(nodes) == 0 {
		return ierr.New(ierr.CodeInvalidStructure, "state proof is missing nodes or a multi-signature")
	}

	for _, n := range nodes {
		if !merkle.VerifyInclusion(n.Value, n.LeafIndex, n.TreeSize, n.AuditPath, ms.TxnRootHash) {
			return ierr.Newf(ierr.CodeInvalidSignature, "state proof node %q does not include into the signed root", n.KeySuffix)
		}
	}

	signerKeys := make([]*bls.PublicKey, 0, len(ms.Signers))
	for _, alias := range ms.Signers {
		pk, ok := verKeys[alias]
		if !ok {
			return ierr.Newf(ierr.CodeInvalidSignature, "state proof signed by unknown node %q", alias)
		}
		signerKeys = append(signerKeys, pk)
	}

	sig, err := bls.SignatureFromBytes(ms.Signature)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidSignature, err, "parse state proof multi-signature")
	}

	if !bls.VerifyThreshold(bls.DomainStateProof, sig, signerKeys, ms.TxnRootHash, f+1) {
		return ierr.New(ierr.CodeInvalidSignature, "state proof multi-signature does not reach threshold f+1")
	}
	return nil
}
