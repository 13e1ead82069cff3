// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package client_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/indysdk/internal/wallet"
	"github.com/certen/indysdk/pkg/client"
)

func TestOpenWallet_CreatesOnFirstOpenAndReopens(t *testing.T) {
	cfg := wallet.Config{
		Name:        "facade-wallet",
		StorageType: "kv",
		BaseDir:     t.TempDir(),
		Key:         []byte("facade-test-key"),
	}

	w, err := client.OpenWallet(cfg)
	require.NoError(t, err)
	require.NotZero(t, w.Handle())

	require.NoError(t, w.Add("pref", "rec1", []byte("hello"), nil))
	rec, err := w.Get("pref", "rec1", wallet.DefaultGetOptions())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), rec.Value)

	require.NoError(t, w.Close())
}

func TestIssuerFacade_CreateSchema(t *testing.T) {
	cfg := wallet.Config{
		Name:        "facade-issuer-wallet",
		StorageType: "kv",
		BaseDir:     t.TempDir(),
		Key:         []byte("facade-issuer-key"),
	}
	w, err := client.OpenWallet(cfg)
	require.NoError(t, err)
	defer w.Close()

	issuer := client.NewIssuer(w)
	schema, err := issuer.CreateSchema("Th7MpTaRZVRYnPiabds81Y", "degree", "1.0", []string{"name"})
	require.NoError(t, err)
	require.Equal(t, "Th7MpTaRZVRYnPiabds81Y:2:degree:1.0", schema.ID)

	credDef, err := issuer.CreateAndStoreCredentialDefinition("Th7MpTaRZVRYnPiabds81Y", schema, "tag1", client.CredDefConfig{})
	require.NoError(t, err)
	require.Equal(t, schema.ID, credDef.SchemaID)
}

func TestProverFacade_CreateMasterSecret(t *testing.T) {
	cfg := wallet.Config{
		Name:        "facade-prover-wallet",
		StorageType: "kv",
		BaseDir:     t.TempDir(),
		Key:         []byte("facade-prover-key"),
	}
	w, err := client.OpenWallet(cfg)
	require.NoError(t, err)
	defer w.Close()

	prover := client.NewProver(w)
	require.NoError(t, prover.CreateMasterSecret("main"))
	require.Error(t, prover.CreateMasterSecret("main"), "duplicate master secret names must be rejected")
}
