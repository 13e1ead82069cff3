// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package plugins collects the module's init-only, registration-only
// extension points (spec §5 "process-wide tables with init-only
// lifecycle"). Two of the three registries this module carries live
// next to the capability they extend, where the types they hand back
// already belong: internal/wallet/storage.Register for storage
// backends, and internal/pool.RegisterStateProofParser for per-txn-type
// state proof parsers. This package holds the third: a payment-method
// registry with no capability interface of its own to sit next to,
// since nothing in the core module ever calls the callbacks it holds.
package plugins

import (
	"fmt"
	"sync"
)

// PaymentMethod is the set of callbacks a payment plugin registers,
// mirroring indy_register_payment_method's five callback slots
// (libindy/src/api/payments.rs): address creation, request-fee
// attachment, response parsing for fees, UTXO-style source listing, and
// transfer-request construction. The core module never invokes these
// itself — registration exists so an external payment-method
// implementation can be discovered by name, exactly as spec §1 scopes
// "payment method plugins" as an external collaborator with a minimal
// interface contract.
type PaymentMethod struct {
	// CreatePaymentAddress mints a new address string for this method,
	// given a wallet handle and method-specific config JSON.
	CreatePaymentAddress func(walletHandle uint32, config string) (address string, err error)
	// AddRequestFees attaches a fees payload to a pool request, given
	// the payment's inputs and outputs.
	AddRequestFees func(walletHandle uint32, req []byte, inputs, outputs []string) (reqWithFees []byte, mediaMeta string, err error)
	// ParseResponseWithFees extracts the receipt set a ledger reply's
	// fees section carries.
	ParseResponseWithFees func(resp []byte) (receipts string, err error)
	// BuildGetPaymentSourcesRequest builds a request enumerating an
	// address's spendable sources ("UTXOs" in the original terminology).
	BuildGetPaymentSourcesRequest func(walletHandle uint32, submitterDID, paymentAddress string) (req []byte, mediaMeta string, err error)
	// BuildPaymentRequest builds a transfer request moving value
	// between this method's payment addresses.
	BuildPaymentRequest func(walletHandle uint32, submitterDID string, inputs, outputs []string) (req []byte, mediaMeta string, err error)
}

var (
	mu       sync.RWMutex
	payments = map[string]PaymentMethod{}
)

// RegisterPaymentMethod adds a named payment method to the process-wide
// table. Like storage.Register, registration cannot be undone (spec
// §5): re-registering an already taken name is rejected rather than
// replacing the prior entry. (pool.RegisterStateProofParser differs:
// it replaces an existing entry for the same name.)
func RegisterPaymentMethod(name string, method PaymentMethod) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := payments[name]; exists {
		return fmt.Errorf("plugins: payment method %q already registered", name)
	}
	payments[name] = method
	return nil
}

// PaymentMethodRegistry looks up a registered payment method by name,
// for a client-side facade to dispatch a payment operation to the
// plugin that registered it.
func PaymentMethodRegistry(name string) (PaymentMethod, bool) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := payments[name]
	return m, ok
}

// RegisteredPaymentMethods lists every registered method name, for
// diagnostics and tests.
func RegisteredPaymentMethods() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(payments))
	for name := range payments {
		names = append(names, name)
	}
	return names
}
