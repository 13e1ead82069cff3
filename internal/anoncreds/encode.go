// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package anoncreds

import (
	"crypto/sha256"
	"math/big"
	"strconv"
)

// EncodeAttrValue computes the canonical integer encoding of a raw
// credential attribute value (spec §4.6 invariant "encoded ==
// canonical_encode(raw)"): an integer-valued raw string encodes to
// itself, and every other value encodes to the decimal digits of its
// SHA-256 digest, matching the convention indy credential values use so
// strings still index consistently for equality/GE predicate checks.
func EncodeAttrValue(raw string) string {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	digest := sha256.Sum256([]byte(raw))
	return new(big.Int).SetBytes(digest[:]).String()
}
