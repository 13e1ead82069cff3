// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package issuer_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/indysdk/internal/anoncreds"
	"github.com/certen/indysdk/internal/anoncreds/issuer"
	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/wallet"
)

const testIssuerDID = "Th7MpTaRZVRYnPiabds81Y"

func openTestWallet(t *testing.T, baseDir, name string) handle.Handle {
	t.Helper()
	cfg := wallet.Config{
		Name:        name,
		StorageType: "kv",
		BaseDir:     baseDir,
		Key:         []byte(name + "-test-key"),
	}
	require.NoError(t, wallet.Create(cfg))
	h, err := wallet.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { wallet.Close(h) })
	return h
}

// setupRevocableCredential builds a single revocable credential and
// returns the registry/credential identifiers a revoke/recover cycle
// needs.
func setupRevocableCredential(t *testing.T) (h handle.Handle, revRegID string, credRevID uint32) {
	t.Helper()
	baseDir := t.TempDir()
	h = openTestWallet(t, baseDir, "issuer")

	schema, err := issuer.CreateSchema(testIssuerDID, "degree", "1.0", []string{"name"})
	require.NoError(t, err)

	credDef, err := issuer.CreateAndStoreCredentialDefinition(h, testIssuerDID, schema, "tag1", anoncreds.CredDefConfig{SupportRevocation: true})
	require.NoError(t, err)

	revRegDef, _, err := issuer.CreateAndStoreRevocationRegistry(h, credDef, "tag1", 10, anoncreds.IssuanceOnDemand, filepath.Join(baseDir, "tails"))
	require.NoError(t, err)

	offer, err := issuer.CreateCredentialOffer(h, credDef.ID)
	require.NoError(t, err)

	// A request with no real blinding is enough here: this test only
	// exercises the registry's revoke/recover bookkeeping, not
	// credential verification.
	request := &anoncreds.CredentialRequest{CredDefID: credDef.ID}
	values := map[string]anoncreds.AttrValue{"name": {Raw: "Alice", Encoded: anoncreds.EncodeAttrValue("Alice")}}
	cred, _, err := issuer.CreateCredential(h, offer, request, values, revRegDef.ID)
	require.NoError(t, err)

	return h, revRegDef.ID, cred.CredRevID
}

func TestRecoverCredential_RestoresRevokedIndex(t *testing.T) {
	h, revRegID, credRevID := setupRevocableCredential(t)

	_, err := issuer.Revoke(h, revRegID, credRevID)
	require.NoError(t, err)

	// Revoking an already-revoked index must fail until it is recovered.
	_, err = issuer.Revoke(h, revRegID, credRevID)
	require.Error(t, err)

	delta, err := issuer.RecoverCredential(h, revRegID, credRevID)
	require.NoError(t, err)
	require.Contains(t, delta.Issued, credRevID)

	// With the index restored to the valid-member set, revoking it
	// again must succeed, proving recovery actually reinstated it.
	_, err = issuer.Revoke(h, revRegID, credRevID)
	require.NoError(t, err)
}

func TestRecoverCredential_RejectsNonRevokedIndex(t *testing.T) {
	h, revRegID, credRevID := setupRevocableCredential(t)

	_, err := issuer.RecoverCredential(h, revRegID, credRevID)
	require.Error(t, err, "recovering a credential that was never revoked must fail")
	require.Equal(t, ierr.CodeInvalidUserRevocId, ierr.CodeOf(err))
}
