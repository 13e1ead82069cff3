// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

// Operation type codes from spec §6. Reads use Single when a
// state-proof parser is registered for the code, else Consensus;
// writes always use Full.
const (
	OpNode     = "0"
	OpNym      = "1"
	OpAttrib   = "100"
	OpSchema   = "101"
	OpClaimDef = "102"

	OpGetNym      = "105"
	OpGetAttrib   = "104"
	OpGetSchema   = "107"
	OpGetClaimDef = "108"
)

var readOpTypes = map[string]bool{
	OpGetNym:      true,
	OpGetAttrib:   true,
	OpGetSchema:   true,
	OpGetClaimDef: true,
}

type requestKind int

const (
	kindFull requestKind = iota
	kindSingle
	kindConsensus
)

// classify implements spec §4.6's read/write and state-proof routing
// rule: writes (and any unrecognized type) use Full; reads use Single
// when a state-proof parser is registered for the type, else
// Consensus.
func classify(opType string) requestKind {
	if !readOpTypes[opType] {
		return kindFull
	}
	if _, ok := lookupStateProofParser(opType); ok {
		return kindSingle
	}
	return kindConsensus
}
