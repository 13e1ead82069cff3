// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
)

// CanonicalJSON renders v the way the wire envelope requires for signing
// (spec §6): object keys sorted lexicographically, no insignificant
// whitespace, UTF-8, numbers in their shortest decimal form. Validators
// re-canonicalize before verifying signatures, so any divergence here
// (float coercion of large integers, inconsistent key order) breaks every
// signature check downstream.
func CanonicalJSON(v any) ([]byte, error) {
	// Round-trip through json.Unmarshal with UseNumber so integers near
	// 2^53 survive as decimal strings instead of being coerced to float64.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalJSONExcluding is CanonicalJSON but with a field dropped first —
// used to canonicalize a signed envelope minus its own "signature" field
// (spec §6: "Signature covers the object minus the signature field").
func CanonicalJSONExcluding(v map[string]any, excludeKey string) ([]byte, error) {
	clone := make(map[string]any, len(v))
	for k, val := range v {
		if k == excludeKey {
			continue
		}
		clone[k] = val
	}
	return CanonicalJSON(clone)
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return writeCanonicalNumber(buf, val)
	case string:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported canonical JSON value type %T", v)
	}
	return nil
}

// writeCanonicalNumber writes json.Number in its shortest decimal form,
// preserving integers exactly (including values beyond float64's 2^53
// safe-integer range) and trimming insignificant trailing zeros from
// floating point values.
func writeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if i, ok := new(big.Int).SetString(s, 10); ok {
		buf.WriteString(i.String())
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("non-finite number %q", s)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("format number %q: %w", s, err)
	}
	buf.Write(b)
	return nil
}
