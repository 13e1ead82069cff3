// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package plugins_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/indysdk/internal/plugins"
)

func TestRegisterPaymentMethod_RejectsDuplicateName(t *testing.T) {
	name := "sov_test_method"
	method := plugins.PaymentMethod{
		CreatePaymentAddress: func(walletHandle uint32, config string) (string, error) {
			return "pay:sov_test_method:address", nil
		},
	}

	require.NoError(t, plugins.RegisterPaymentMethod(name, method))
	err := plugins.RegisterPaymentMethod(name, method)
	require.Error(t, err, "re-registering an already-taken payment method name must fail")

	got, ok := plugins.PaymentMethodRegistry(name)
	require.True(t, ok)
	require.NotNil(t, got.CreatePaymentAddress)

	addr, err := got.CreatePaymentAddress(1, "{}")
	require.NoError(t, err)
	require.Equal(t, "pay:sov_test_method:address", addr)

	require.Contains(t, plugins.RegisteredPaymentMethods(), name)
}

func TestPaymentMethodRegistry_UnknownNameNotFound(t *testing.T) {
	_, ok := plugins.PaymentMethodRegistry("no_such_method_registered")
	require.False(t, ok)
}
