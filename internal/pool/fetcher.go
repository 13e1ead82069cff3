// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"context"
	"encoding/json"

	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
)

// LedgerFetcher adapts a pool handle to ledgercache.Fetcher, letting
// the cache (C3) fetch cred-defs and schemas through the pool (C7)
// without either package importing the other directly.
type LedgerFetcher struct {
	h handle.Handle
}

// NewLedgerFetcher binds a ledger fetcher to an already-open pool
// handle.
func NewLedgerFetcher(h handle.Handle) *LedgerFetcher {
	return &LedgerFetcher{h: h}
}

// FetchSchema issues a GET_SCHEMA read and returns the raw result.
func (lf *LedgerFetcher) FetchSchema(ctx context.Context, submitterDID, id string) ([]byte, error) {
	return lf.fetch(ctx, OpGetSchema, submitterDID, id)
}

// FetchCredDef issues a GET_CLAIM_DEF read and returns the raw result.
func (lf *LedgerFetcher) FetchCredDef(ctx context.Context, submitterDID, id string) ([]byte, error) {
	return lf.fetch(ctx, OpGetClaimDef, submitterDID, id)
}

func (lf *LedgerFetcher) fetch(ctx context.Context, opType, submitterDID, id string) ([]byte, error) {
	env := map[string]any{
		"operation": map[string]any{
			"type": opType,
			"ref":  id,
			"dest": submitterDID,
		},
		"identifier":      submitterDID,
		"protocolVersion": 2,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal ledger fetch request")
	}
	return SubmitRequest(ctx, lf.h, raw)
}
