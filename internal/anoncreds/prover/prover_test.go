// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package prover_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/indysdk/internal/anoncreds"
	"github.com/certen/indysdk/internal/anoncreds/issuer"
	"github.com/certen/indysdk/internal/anoncreds/prover"
	"github.com/certen/indysdk/internal/anoncreds/verifier"
	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/wallet"
)

const issuerDID = "Th7MpTaRZVRYnPiabds81Y"
const testProverDID = "VsKV7grR1BUE29mG2Fm2kX"

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

// fixture bundles every object an issuer/prover/verifier flow produces,
// so each test can pick the pieces it needs.
type fixture struct {
	schema      *anoncreds.Schema
	credDef     *anoncreds.CredentialDefinition
	revRegDef   *anoncreds.RevocationRegistryDefinition
	revRegEntry *anoncreds.RevocationRegistryEntry
	issuerH     handle.Handle
	proverH     handle.Handle
	referent    string
	credRevID   uint32
}

// issueCredential runs the full issuer/prover flow through a stored
// credential (spec §4.7-4.8).
func issueCredential(t *testing.T, revocable bool) fixture {
	t.Helper()
	baseDir := t.TempDir()

	issuerH := openTestWallet(t, baseDir, "issuer")
	proverH := openTestWallet(t, baseDir, "prover")

	schema, err := issuer.CreateSchema(issuerDID, "degree", "1.0", []string{"name", "age"})
	require.NoError(t, err)

	credDef, err := issuer.CreateAndStoreCredentialDefinition(issuerH, issuerDID, schema, "tag1", anoncreds.CredDefConfig{SupportRevocation: revocable})
	require.NoError(t, err)

	var revRegDef *anoncreds.RevocationRegistryDefinition
	var revRegEntry *anoncreds.RevocationRegistryEntry
	if revocable {
		revRegDef, revRegEntry, err = issuer.CreateAndStoreRevocationRegistry(issuerH, credDef, "tag1", 10, anoncreds.IssuanceOnDemand, filepath.Join(baseDir, "tails"))
		require.NoError(t, err)
	}

	offer, err := issuer.CreateCredentialOffer(issuerH, credDef.ID)
	require.NoError(t, err)

	require.NoError(t, prover.CreateMasterSecret(proverH, "main"))
	req, metadata, err := prover.CreateCredentialRequest(proverH, testProverDID, offer, credDef, "main")
	require.NoError(t, err)

	values := map[string]anoncreds.AttrValue{
		"name": {Raw: "Alice", Encoded: anoncreds.EncodeAttrValue("Alice")},
		"age":  {Raw: "28", Encoded: anoncreds.EncodeAttrValue("28")},
	}
	revRegID := ""
	if revocable {
		revRegID = revRegDef.ID
	}
	cred, delta, err := issuer.CreateCredential(issuerH, offer, req, values, revRegID)
	require.NoError(t, err)
	if revocable {
		require.NotNil(t, delta)
		revRegEntry = &anoncreds.RevocationRegistryEntry{RevRegDefID: revRegID, AccumValue: delta.Accum}
	}

	referent, err := prover.StoreCredential(proverH, cred, metadata, credDef, revRegDef)
	require.NoError(t, err)

	return fixture{
		schema:      schema,
		credDef:     credDef,
		revRegDef:   revRegDef,
		revRegEntry: revRegEntry,
		issuerH:     issuerH,
		proverH:     proverH,
		referent:    referent,
		credRevID:   cred.CredRevID,
	}
}

func TestIssueProveVerify_NonRevocable(t *testing.T) {
	f := issueCredential(t, false)

	req := &anoncreds.ProofRequest{
		Nonce: "123456",
		RequestedAttributes: map[string]anoncreds.AttrInfo{
			"attr1_referent": {Name: "name"},
		},
		RequestedPredicates: map[string]anoncreds.PredicateInfo{
			"predicate1_referent": {Name: "age", PType: anoncreds.PredicateGE, PValue: 18},
		},
	}
	requested := &anoncreds.RequestedCredentials{
		RequestedAttributes: map[string]anoncreds.RequestedAttribute{
			"attr1_referent": {CredRevealedReferent: "cred1", Reveal: true},
		},
		RequestedPredicates: map[string]string{
			"predicate1_referent": "cred1",
		},
		SelfAttestedAttrs: map[string]string{},
		Provided:          map[string]string{"cred1": f.referent},
	}

	schemas := map[string]*anoncreds.Schema{f.schema.ID: f.schema}
	credDefs := map[string]*anoncreds.CredentialDefinition{f.credDef.ID: f.credDef}

	proof, err := prover.CreateProof(f.proverH, req, requested, schemas, "main", credDefs, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "Alice", proof.RevealedAttrs["attr1_referent"].Raw)

	ok, err := verifier.VerifyProof(req, proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.True(t, ok, "a correctly built proof over an untouched credential must verify")
}

func TestRevokedCredential_ProofFailsAgainstCurrentAccumulator(t *testing.T) {
	f := issueCredential(t, true)

	req := &anoncreds.ProofRequest{
		Nonce: "999",
		RequestedAttributes: map[string]anoncreds.AttrInfo{
			"attr1_referent": {Name: "name"},
		},
	}
	requested := &anoncreds.RequestedCredentials{
		RequestedAttributes: map[string]anoncreds.RequestedAttribute{
			"attr1_referent": {CredRevealedReferent: "cred1", Reveal: true},
		},
		RequestedPredicates: map[string]string{},
		SelfAttestedAttrs:   map[string]string{},
		Provided:            map[string]string{"cred1": f.referent},
	}

	schemas := map[string]*anoncreds.Schema{f.schema.ID: f.schema}
	credDefs := map[string]*anoncreds.CredentialDefinition{f.credDef.ID: f.credDef}
	revRegDefs := map[string]*anoncreds.RevocationRegistryDefinition{f.revRegDef.ID: f.revRegDef}
	statesBefore := map[string]*anoncreds.RevocationRegistryEntry{f.revRegDef.ID: f.revRegEntry}

	proof, err := prover.CreateProof(f.proverH, req, requested, schemas, "main", credDefs, revRegDefs, statesBefore)
	require.NoError(t, err)

	okBefore, err := verifier.VerifyProof(req, proof, schemas, credDefs, revRegDefs, statesBefore)
	require.NoError(t, err)
	require.True(t, okBefore, "proof built against the accumulator state it witnesses must verify")

	delta, err := issuer.Revoke(f.issuerH, f.revRegDef.ID, f.credRevID)
	require.NoError(t, err)
	newEntry := &anoncreds.RevocationRegistryEntry{RevRegDefID: f.revRegDef.ID, AccumValue: delta.Accum}

	okAfter, err := verifier.VerifyProof(req, proof, schemas, credDefs, revRegDefs,
		map[string]*anoncreds.RevocationRegistryEntry{f.revRegDef.ID: newEntry})
	require.NoError(t, err)
	require.False(t, okAfter, "a proof witnessing a now-revoked credential must fail against the post-revocation accumulator")
}

// TestCreateProof_RevokedCredentialFailsBuildTime asserts spec §8's
// "revocation before proof" scenario: once a credential has been
// revoked, create_proof itself must refuse to build a non-revocation
// sub-proof over it rather than only failing later at verify_proof.
func TestCreateProof_RevokedCredentialFailsBuildTime(t *testing.T) {
	f := issueCredential(t, true)

	req := &anoncreds.ProofRequest{
		Nonce: "777",
		RequestedAttributes: map[string]anoncreds.AttrInfo{
			"attr1_referent": {Name: "name"},
		},
	}
	requested := &anoncreds.RequestedCredentials{
		RequestedAttributes: map[string]anoncreds.RequestedAttribute{
			"attr1_referent": {CredRevealedReferent: "cred1", Reveal: true},
		},
		RequestedPredicates: map[string]string{},
		SelfAttestedAttrs:   map[string]string{},
		Provided:            map[string]string{"cred1": f.referent},
	}

	schemas := map[string]*anoncreds.Schema{f.schema.ID: f.schema}
	credDefs := map[string]*anoncreds.CredentialDefinition{f.credDef.ID: f.credDef}
	revRegDefs := map[string]*anoncreds.RevocationRegistryDefinition{f.revRegDef.ID: f.revRegDef}

	delta, err := issuer.Revoke(f.issuerH, f.revRegDef.ID, f.credRevID)
	require.NoError(t, err)
	currentState := map[string]*anoncreds.RevocationRegistryEntry{
		f.revRegDef.ID: {RevRegDefID: f.revRegDef.ID, AccumValue: delta.Accum},
	}

	_, err = prover.CreateProof(f.proverH, req, requested, schemas, "main", credDefs, revRegDefs, currentState)
	require.Error(t, err)
	require.Equal(t, ierr.CodeCredRevoked, ierr.CodeOf(err))
}

// TestTamperedAggregateProofFailsVerification asserts that a proof whose
// AggregateProof digest no longer matches its disclosed statements is
// rejected (spec §4.9).
func TestTamperedAggregateProofFailsVerification(t *testing.T) {
	f := issueCredential(t, false)

	req := &anoncreds.ProofRequest{
		Nonce: "42",
		RequestedAttributes: map[string]anoncreds.AttrInfo{
			"attr1_referent": {Name: "name"},
		},
	}
	requested := &anoncreds.RequestedCredentials{
		RequestedAttributes: map[string]anoncreds.RequestedAttribute{
			"attr1_referent": {CredRevealedReferent: "cred1", Reveal: true},
		},
		RequestedPredicates: map[string]string{},
		SelfAttestedAttrs:   map[string]string{},
		Provided:            map[string]string{"cred1": f.referent},
	}

	schemas := map[string]*anoncreds.Schema{f.schema.ID: f.schema}
	credDefs := map[string]*anoncreds.CredentialDefinition{f.credDef.ID: f.credDef}

	proof, err := prover.CreateProof(f.proverH, req, requested, schemas, "main", credDefs, nil, nil)
	require.NoError(t, err)

	proof.AggregateProof[0] ^= 0xFF

	ok, err := verifier.VerifyProof(req, proof, schemas, credDefs, nil, nil)
	require.NoError(t, err)
	require.False(t, ok, "a tampered aggregate proof digest must fail verification")
}

func TestGetCredentialsForProofRequest_FiltersByRestriction(t *testing.T) {
	f := issueCredential(t, false)

	req := &anoncreds.ProofRequest{
		Nonce: "1",
		RequestedAttributes: map[string]anoncreds.AttrInfo{
			"attr1_referent": {
				Name:         "name",
				Restrictions: []anoncreds.AttributeFilter{{CredDefID: f.credDef.ID}},
			},
			"missing_referent": {
				Name:         "name",
				Restrictions: []anoncreds.AttributeFilter{{CredDefID: "some:other:cred:def"}},
			},
		},
	}

	result, err := prover.GetCredentialsForProofRequest(f.proverH, req)
	require.NoError(t, err)
	require.Len(t, result.Attrs["attr1_referent"], 1)
	require.Equal(t, f.referent, result.Attrs["attr1_referent"][0].Referent)
	require.Empty(t, result.Attrs["missing_referent"])
	require.Equal(t, f.schema.ID, result.Attrs["attr1_referent"][0].SchemaID)
}
