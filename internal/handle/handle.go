// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package handle provides the single process-wide integer handle
// sequence shared by wallet and pool handles (spec §6: "Integer
// handles are process-wide, monotonically increasing, allocated by a
// single sequence generator. Handle zero is reserved as 'invalid'.").
package handle

import "sync/atomic"

// Handle is a process-wide wallet or pool handle. The zero value is
// invalid and is never allocated by Next.
type Handle uint32

// Invalid is the reserved zero handle.
const Invalid Handle = 0

var seq atomic.Uint32

// Next allocates the next handle in the process-wide sequence.
func Next() Handle {
	return Handle(seq.Add(1))
}
