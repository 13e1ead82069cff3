// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package prover implements C9, the anoncreds prover side of spec §4.8:
// master secret management, credential requests, storage, filtering,
// and proof construction. The blinded master secret and GE predicate
// sub-proofs are built on this repository's BLS12-381 signing and gnark
// Groth16 predicate primitives rather than libindy's CL blinding and
// range-proof constructions; see DESIGN.md for the substitution
// rationale.
package prover

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/certen/indysdk/internal/anoncreds"
	"github.com/certen/indysdk/internal/crypto"
	"github.com/certen/indysdk/internal/crypto/accum"
	"github.com/certen/indysdk/internal/crypto/bls"
	"github.com/certen/indysdk/internal/crypto/predicate"
	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/wallet"
)

const (
	recordMasterSecret    = "master_secret"
	recordRequestMetadata = "cred_request_metadata"
	recordCredential      = "credential"
)

// masterSecret is the prover's private linking value. The repository
// represents it as a random scalar rather than libindy's CL-group
// element; both play the same role of binding every credential a
// prover holds to one un-exportable secret.
type masterSecret struct {
	Value []byte `json:"value"`
}

// storedCredential is what StoreCredential persists: the issued
// credential plus enough of its request context to answer
// get_credentials without re-deriving anything.
type storedCredential struct {
	Referent   string                `json:"referent"`
	Credential anoncreds.Credential  `json:"credential"`
}

// CreateMasterSecret generates and persists a fresh master secret under
// name (spec §4.8). Fails MasterSecretDuplicateName if name is already
// in use.
func CreateMasterSecret(h handle.Handle, name string) error {
	if _, err := wallet.Get(h, recordMasterSecret, name, wallet.GetOptions{}); err == nil {
		return ierr.Newf(ierr.CodeMasterSecretDuplicate, "master secret %q already exists", name)
	} else if ierr.CodeOf(err) != ierr.CodeNotFound {
		return err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "generate master secret")
	}
	ms := masterSecret{Value: buf}
	data, err := json.Marshal(ms)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal master secret")
	}
	return wallet.Add(h, recordMasterSecret, name, data, nil)
}

// CreateCredentialRequest blinds the named master secret against offer
// and persists the metadata store_credential will need later (spec
// §4.8). Validates that offer and credDef describe the same credential
// definition.
func CreateCredentialRequest(h handle.Handle, proverDID string, offer *anoncreds.CredentialOffer, credDef *anoncreds.CredentialDefinition, masterSecretName string) (*anoncreds.CredentialRequest, *anoncreds.CredentialRequestMetadata, error) {
	if offer.CredDefID != credDef.ID {
		return nil, nil, ierr.New(ierr.CodeInvalidStructure, "credential offer does not match the given credential definition")
	}

	msRec, err := wallet.Get(h, recordMasterSecret, masterSecretName, wallet.DefaultGetOptions())
	if err != nil {
		return nil, nil, err
	}
	var ms masterSecret
	if err := json.Unmarshal(msRec.Value, &ms); err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal master secret")
	}

	blinding := make([]byte, 32)
	if _, err := rand.Read(blinding); err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "generate blinding factor")
	}
	blinded := blindMasterSecret(ms.Value, blinding, offer.Nonce)

	reqNonce := freshNonce()
	metadata := &anoncreds.CredentialRequestMetadata{
		MasterSecretBlinding: blinding,
		MasterSecretName:     masterSecretName,
		Nonce:                offer.Nonce,
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal credential request metadata")
	}
	metaID := fmt.Sprintf("%s:%s", offer.CredDefID, reqNonce)
	if err := wallet.Add(h, recordRequestMetadata, metaID, metaBytes, nil); err != nil {
		return nil, nil, err
	}

	request := &anoncreds.CredentialRequest{
		ProverDID:           proverDID,
		CredDefID:           offer.CredDefID,
		BlindedMasterSecret: blinded,
		Nonce:               reqNonce,
	}
	return request, metadata, nil
}

// blindMasterSecret commits to a master secret under a per-request
// blinding factor and the issuer's nonce, standing in for the CL
// Pedersen-style blinded commitment libindy sends the issuer (spec
// §4.8 "produces blinded master-secret data").
func blindMasterSecret(secret, blinding []byte, nonce string) []byte {
	h := sha256.New()
	h.Write(secret)
	h.Write(blinding)
	h.Write([]byte(nonce))
	return h.Sum(nil)
}

// StoreCredential verifies cred's signature against credDef and, when
// cred is revocable, its non-revocation witness against revRegDef's
// public key, then persists it keyed by a fresh referent (spec §4.8).
func StoreCredential(h handle.Handle, cred *anoncreds.Credential, metadata *anoncreds.CredentialRequestMetadata, credDef *anoncreds.CredentialDefinition, revRegDef *anoncreds.RevocationRegistryDefinition) (string, error) {
	msRec, err := wallet.Get(h, recordMasterSecret, metadata.MasterSecretName, wallet.DefaultGetOptions())
	if err != nil {
		return "", err
	}
	var ms masterSecret
	if err := json.Unmarshal(msRec.Value, &ms); err != nil {
		return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal master secret")
	}
	blinded := blindMasterSecret(ms.Value, metadata.MasterSecretBlinding, metadata.Nonce)

	primaryPK, err := bls.PublicKeyFromBytes(credDef.PrimaryVerKey)
	if err != nil {
		return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "load credential definition public key")
	}
	sig, err := bls.SignatureFromBytes(cred.Signature)
	if err != nil {
		return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "decode credential signature")
	}
	signingInput, err := crypto.CanonicalJSON(map[string]any{
		"credDefId":           cred.CredDefID,
		"schemaId":            cred.SchemaID,
		"values":              cred.Values,
		"blindedMasterSecret": blinded,
	})
	if err != nil {
		return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "canonicalize credential for verification")
	}
	if !primaryPK.Verify("indysdk-credential", sig, signingInput) {
		return "", ierr.New(ierr.CodeInvalidSignature, "credential signature does not verify against credential definition")
	}

	if cred.RevRegID != "" {
		if revRegDef == nil {
			return "", ierr.New(ierr.CodeInvalidStructure, "revocable credential requires its revocation registry definition")
		}
		pk, err := accum.PublicKeyFromBytes(revRegDef.PublicKey)
		if err != nil {
			return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "load revocation registry public key")
		}
		w, err := accum.WitnessFromBytes(cred.Witness)
		if err != nil {
			return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "decode credential witness")
		}
		acc, err := accum.AccumulatorFromBytes(cred.WitnessAccum)
		if err != nil {
			return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "decode witness accumulator")
		}
		if !accum.Verify(pk, acc, w, cred.CredRevID) {
			return "", ierr.New(ierr.CodeInvalidSignature, "non-revocation witness does not verify")
		}
	}

	referent := freshNonce()
	stored := storedCredential{Referent: referent, Credential: *cred}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal stored credential")
	}
	if err := wallet.Add(h, recordCredential, referent, data, nil); err != nil {
		return "", err
	}
	return referent, nil
}

// GetCredentials returns every stored credential matching filter (spec
// §4.8); any omitted filter field is a wildcard.
func GetCredentials(h handle.Handle, filter anoncreds.AttributeFilter) ([]*anoncreds.CredentialInfo, error) {
	cur, err := wallet.SearchAll(h, recordCredential, wallet.DefaultSearchOptions())
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []*anoncreds.CredentialInfo
	for {
		rec, ok, err := cur.FetchNext(context.Background())
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		var stored storedCredential
		if err := json.Unmarshal(rec.Value, &stored); err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal stored credential")
		}
		if !matchesFilter(&stored.Credential, filter) {
			continue
		}
		out = append(out, credentialInfo(&stored))
	}
	return out, nil
}

// ProofRequestCredentials is get_credentials_for_proof_request's result
// shape (spec §4.8).
type ProofRequestCredentials struct {
	Attrs      map[string][]*anoncreds.CredentialInfo `json:"attrs"`
	Predicates map[string][]*anoncreds.CredentialInfo `json:"predicates"`
}

// GetCredentialsForProofRequest returns, for every requested-attribute
// and requested-predicate referent in req, every stored credential
// satisfying that referent's restrictions (and, for predicates, the GE
// comparison itself) (spec §4.8).
func GetCredentialsForProofRequest(h handle.Handle, req *anoncreds.ProofRequest) (*ProofRequestCredentials, error) {
	cur, err := wallet.SearchAll(h, recordCredential, wallet.DefaultSearchOptions())
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var all []*storedCredential
	for {
		rec, ok, err := cur.FetchNext(context.Background())
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		var stored storedCredential
		if err := json.Unmarshal(rec.Value, &stored); err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal stored credential")
		}
		all = append(all, &stored)
	}

	result := &ProofRequestCredentials{
		Attrs:      make(map[string][]*anoncreds.CredentialInfo),
		Predicates: make(map[string][]*anoncreds.CredentialInfo),
	}
	for referent, info := range req.RequestedAttributes {
		for _, stored := range all {
			if !matchesAnyFilter(&stored.Credential, info.Restrictions) {
				continue
			}
			if _, ok := stored.Credential.Values[info.Name]; !ok {
				continue
			}
			result.Attrs[referent] = append(result.Attrs[referent], credentialInfo(stored))
		}
	}
	for referent, info := range req.RequestedPredicates {
		if info.PType != anoncreds.PredicateGE {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "unsupported predicate operator %q", info.PType)
		}
		for _, stored := range all {
			if !matchesAnyFilter(&stored.Credential, info.Restrictions) {
				continue
			}
			attr, ok := stored.Credential.Values[info.Name]
			if !ok {
				continue
			}
			encoded, err := strconv.ParseInt(attr.Encoded, 10, 64)
			if err != nil {
				continue
			}
			if encoded < info.PValue {
				continue
			}
			result.Predicates[referent] = append(result.Predicates[referent], credentialInfo(stored))
		}
	}
	return result, nil
}

func matchesFilter(cred *anoncreds.Credential, f anoncreds.AttributeFilter) bool {
	if f.SchemaID != "" && f.SchemaID != cred.SchemaID {
		return false
	}
	if f.CredDefID != "" && f.CredDefID != cred.CredDefID {
		return false
	}
	issuerDID, _, schemaName, schemaVersion := parseSchemaID(cred.SchemaID)
	if f.SchemaName != "" && f.SchemaName != schemaName {
		return false
	}
	if f.SchemaVersion != "" && f.SchemaVersion != schemaVersion {
		return false
	}
	if f.SchemaIssuerDID != "" && f.SchemaIssuerDID != issuerDID {
		return false
	}
	if f.IssuerDID != "" && f.IssuerDID != credDefIssuerDID(cred.CredDefID) {
		return false
	}
	return true
}

func matchesAnyFilter(cred *anoncreds.Credential, filters []anoncreds.AttributeFilter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if matchesFilter(cred, f) {
			return true
		}
	}
	return false
}

func credentialInfo(stored *storedCredential) *anoncreds.CredentialInfo {
	attrs := make(map[string]string, len(stored.Credential.Values))
	for name, v := range stored.Credential.Values {
		attrs[name] = v.Raw
	}
	return &anoncreds.CredentialInfo{
		Referent:  stored.Referent,
		SchemaID:  stored.Credential.SchemaID,
		CredDefID: stored.Credential.CredDefID,
		RevRegID:  stored.Credential.RevRegID,
		Attrs:     attrs,
	}
}

// parseSchemaID splits a schema ID of the form issuerDid:2:name:version
// (spec §3's SCHEMA id convention, also used by internal/anoncreds/issuer).
func parseSchemaID(id string) (issuerDID, marker, name, version string) {
	parts := splitColon(id, 4)
	if len(parts) != 4 {
		return "", "", "", ""
	}
	return parts[0], parts[1], parts[2], parts[3]
}

// credDefIssuerDID extracts the issuer DID from a credential definition
// ID of the form issuerDid:3:CL:schemaId:tag.
func credDefIssuerDID(id string) string {
	parts := splitColon(id, 2)
	if len(parts) < 1 {
		return ""
	}
	return parts[0]
}

func splitColon(s string, max int) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s) && len(parts) < max-1; i++ {
		if s[i] == ':' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func freshNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// predicateProver is the process-wide GE circuit prover shared by every
// CreateProof call; compiling the circuit and running the Groth16 setup
// is expensive enough that it must not be repeated per predicate (spec
// §4.8/§4.9, mirroring internal/crypto/predicate.Prover's own doc
// comment on reuse).
var predicateProver = predicate.NewProver()

// CreateProof builds the aggregated proof answering req using the
// prover's choices in requested (spec §4.8). schemas and credDefs are
// keyed by ID and must cover every credential requested's choice
// resolves to. revRegDefs and revRegStates, keyed by revocation
// registry ID, give the prover's own current view of each revocable
// credential's registry; before building a non-revocation sub-proof for
// such a credential, CreateProof re-verifies its stored witness against
// that view and fails CredRevoked if the witness no longer pairs with
// the current accumulator (spec §8 "revocation before proof" scenario),
// rather than silently proving over a stale or revoked witness.
func CreateProof(
	h handle.Handle,
	req *anoncreds.ProofRequest,
	requested *anoncreds.RequestedCredentials,
	schemas map[string]*anoncreds.Schema,
	masterSecretName string,
	credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
	revRegStates map[string]*anoncreds.RevocationRegistryEntry,
) (*anoncreds.Proof, error) {
	if err := predicateProver.Initialize(); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "initialize predicate prover")
	}

	msRec, err := wallet.Get(h, recordMasterSecret, masterSecretName, wallet.DefaultGetOptions())
	if err != nil {
		return nil, err
	}
	var ms masterSecret
	if err := json.Unmarshal(msRec.Value, &ms); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal master secret")
	}

	proof := &anoncreds.Proof{
		Nonce:             req.Nonce,
		RevealedAttrs:     make(map[string]anoncreds.RevealedAttrProof),
		UnrevealedAttrs:   make(map[string]anoncreds.UnrevealedAttrProof),
		SelfAttestedAttrs: make(map[string]string),
		Predicates:        make(map[string]anoncreds.PredicateProof),
	}

	for referent, info := range req.RequestedAttributes {
		choice, hasChoice := requested.RequestedAttributes[referent]
		if !hasChoice {
			if attested, ok := requested.SelfAttestedAttrs[referent]; ok {
				proof.SelfAttestedAttrs[referent] = attested
				continue
			}
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "proof request referent %q is not answered", referent)
		}
		credID, ok := requested.Provided[choice.CredRevealedReferent]
		if !ok {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "no stored credential provided for referent %q", choice.CredRevealedReferent)
		}
		stored, err := loadStoredCredential(h, credID)
		if err != nil {
			return nil, err
		}
		if err := checkCredentialCurrent(&stored.Credential, schemas, credDefs, revRegDefs, revRegStates); err != nil {
			return nil, err
		}
		attr, ok := stored.Credential.Values[info.Name]
		if !ok {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "credential %q has no attribute %q", credID, info.Name)
		}
		nonRevoc := nonRevocProofFor(&stored.Credential)
		if choice.Reveal {
			proof.RevealedAttrs[referent] = anoncreds.RevealedAttrProof{
				Raw:       attr.Raw,
				Encoded:   attr.Encoded,
				CredDefID: stored.Credential.CredDefID,
				SchemaID:  stored.Credential.SchemaID,
				NonRevoc:  nonRevoc,
			}
		} else {
			proof.UnrevealedAttrs[referent] = anoncreds.UnrevealedAttrProof{
				CredDefID: stored.Credential.CredDefID,
				SchemaID:  stored.Credential.SchemaID,
				NonRevoc:  nonRevoc,
			}
		}
	}

	for referent, info := range req.RequestedPredicates {
		if info.PType != anoncreds.PredicateGE {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "unsupported predicate operator %q", info.PType)
		}
		credID, ok := requested.RequestedPredicates[referent]
		if !ok {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "proof request predicate referent %q is not answered", referent)
		}
		stored, err := loadStoredCredential(h, credID)
		if err != nil {
			return nil, err
		}
		if err := checkCredentialCurrent(&stored.Credential, schemas, credDefs, revRegDefs, revRegStates); err != nil {
			return nil, err
		}
		attr, ok := stored.Credential.Values[info.Name]
		if !ok {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "credential %q has no attribute %q", credID, info.Name)
		}
		attrValue, err := strconv.ParseInt(attr.Encoded, 10, 64)
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "predicate attribute is not numeric")
		}
		geProof, err := predicateProver.Prove(attrValue, blindingScalar(ms.Value, referent), info.PValue)
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeProofRejected, err, "build predicate proof")
		}
		geProofBytes, err := json.Marshal(geProof)
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal predicate proof")
		}
		proof.Predicates[referent] = anoncreds.PredicateProof{
			PType:     anoncreds.PredicateGE,
			PValue:    info.PValue,
			CredDefID: stored.Credential.CredDefID,
			SchemaID:  stored.Credential.SchemaID,
			GEProof:   geProofBytes,
			NonRevoc:  nonRevocProofFor(&stored.Credential),
		}
	}

	// AggregateProof is a tamper-evidence digest over every disclosed
	// statement, recomputable by the verifier with no secret material
	// (spec §4.9 "aggregated proof carries the Fiat-Shamir challenge").
	// It is not itself a zero-knowledge proof of credential possession:
	// that assurance instead comes from the GE circuit proofs and
	// non-revocation witness pairing checks verify_proof performs on
	// each sub-statement; see DESIGN.md for why a BLS substitution
	// cannot reproduce CL's full signature proof of knowledge.
	proof.AggregateProof = anoncreds.ComputeProofDigest(req.Nonce, proof)
	return proof, nil
}

// checkCredentialCurrent validates that cred's schema and credential
// definition are among the ones the caller supplied and, when cred is
// revocable, that its stored witness still pairs against the caller's
// own current view of the registry (revRegDefs/revRegStates) before any
// proof is built over it. A credential whose witness no longer
// verifies has been revoked (or its witness is simply out of date) and
// fails CredRevoked rather than producing a proof the verifier's own
// non-revocation check would later reject anyway (spec §8).
func checkCredentialCurrent(
	cred *anoncreds.Credential,
	schemas map[string]*anoncreds.Schema,
	credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
	revRegStates map[string]*anoncreds.RevocationRegistryEntry,
) error {
	if _, ok := schemas[cred.SchemaID]; !ok {
		return ierr.Newf(ierr.CodeInvalidStructure, "no schema supplied for %q", cred.SchemaID)
	}
	if _, ok := credDefs[cred.CredDefID]; !ok {
		return ierr.Newf(ierr.CodeInvalidStructure, "no credential definition supplied for %q", cred.CredDefID)
	}
	if cred.RevRegID == "" {
		return nil
	}

	def, ok := revRegDefs[cred.RevRegID]
	if !ok {
		return ierr.Newf(ierr.CodeInvalidStructure, "no revocation registry definition supplied for %q", cred.RevRegID)
	}
	entry, ok := revRegStates[cred.RevRegID]
	if !ok {
		return ierr.Newf(ierr.CodeInvalidStructure, "no current revocation registry state supplied for %q", cred.RevRegID)
	}

	pk, err := accum.PublicKeyFromBytes(def.PublicKey)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "load revocation registry public key")
	}
	acc, err := accum.AccumulatorFromBytes(entry.AccumValue)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "load revocation registry accumulator")
	}
	w, err := accum.WitnessFromBytes(cred.Witness)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "decode credential witness")
	}
	if !accum.Verify(pk, acc, w, cred.CredRevID) {
		return ierr.Newf(ierr.CodeCredRevoked, "credential revocation id %d in registry %q is no longer current", cred.CredRevID, cred.RevRegID)
	}
	return nil
}

func nonRevocProofFor(cred *anoncreds.Credential) *anoncreds.NonRevocProof {
	if cred.RevRegID == "" {
		return nil
	}
	return &anoncreds.NonRevocProof{
		RevRegID:  cred.RevRegID,
		CredRevID: cred.CredRevID,
		Witness:   cred.Witness,
	}
}

// blindingScalar derives a small deterministic blinding value for a
// predicate sub-proof from the master secret and referent, binding the
// predicate's circuit witness to this prover's identity without
// persisting a fresh blinding value per proof.
func blindingScalar(masterSecretValue []byte, referent string) int64 {
	h := sha256.New()
	h.Write(masterSecretValue)
	h.Write([]byte(referent))
	digest := h.Sum(nil)
	var v int64
	for _, b := range digest[:8] {
		v = (v << 8) | int64(b)
	}
	if v < 0 {
		v = -v
	}
	return v % 1_000_000
}

func loadStoredCredential(h handle.Handle, credID string) (*storedCredential, error) {
	rec, err := wallet.Get(h, recordCredential, credID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, err
	}
	var stored storedCredential
	if err := json.Unmarshal(rec.Value, &stored); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal stored credential")
	}
	return &stored, nil
}
