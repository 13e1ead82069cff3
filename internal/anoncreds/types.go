// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package anoncreds holds the wire types shared by the issuer (C8),
// prover (C9), and verifier (C10) components: schemas, credential
// definitions, revocation registries, and proof requests/proofs (spec
// §4.7-4.9). The cryptographic work itself lives in the issuer/prover/
// verifier subpackages; this package is the common vocabulary between
// them so none of the three needs to import another's internals.
package anoncreds

// Schema names the attributes a credential of this type carries. Its ID
// is issuer_did:2:name:version, mirroring the ledger SCHEMA transaction
// it is written as (spec §3).
type Schema struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	IssuerDID  string   `json:"issuerDid"`
	AttrNames  []string `json:"attrNames"`
}

// IssuanceType controls how a revocation registry's valid-member set is
// tracked (spec §4.7 "ON_DEMAND" vs "BY_DEFAULT").
type IssuanceType string

const (
	IssuanceOnDemand  IssuanceType = "ISSUANCE_ON_DEMAND"
	IssuanceByDefault IssuanceType = "ISSUANCE_BY_DEFAULT"
)

// CredDefConfig controls credential definition creation (spec §4.7).
type CredDefConfig struct {
	SupportRevocation bool `json:"supportRevocation"`
}

// CredentialDefinition is the public half of an issuer's signing key for
// one schema, published on the ledger as a CLAIM_DEF transaction (spec
// §3). PrimaryVerKey is a BLS public key standing in for the CL primary
// public key: the repository signs credential commitments with BLS12-381
// rather than implementing full Camenisch-Lysyanskaya RSA signatures,
// reusing the same aggregate-signature primitive C7 already depends on
// (see DESIGN.md).
type CredentialDefinition struct {
	ID            string        `json:"id"`
	SchemaID      string        `json:"schemaId"`
	IssuerDID     string        `json:"issuerDid"`
	Tag           string        `json:"tag"`
	Type          string        `json:"type"` // always "CL"
	Config        CredDefConfig `json:"config"`
	PrimaryVerKey []byte        `json:"primaryVerKey"`
	RevocVerKey   []byte        `json:"revocVerKey,omitempty"` // bls.PublicKey bytes, present iff SupportRevocation
}

// KeyCorrectnessProof lets a prover check that a credential definition's
// public key was generated honestly. The repository's BLS-based primary
// key makes this a direct re-assertion of the public key bytes signed
// with the credential definition's own primary private key, rather than the Pedersen-commitment proof
// libindy's CL implementation uses; see DESIGN.md for the substitution
// rationale.
type KeyCorrectnessProof struct {
	PrimaryVerKey []byte `json:"primaryVerKey"`
	IssuerDIDSig  []byte `json:"issuerDidSig"`
}

// RevocationRegistryDefinition is published alongside a credential
// definition that supports revocation (spec §4.7).
type RevocationRegistryDefinition struct {
	ID          string       `json:"id"`
	CredDefID   string       `json:"credDefId"`
	Tag         string       `json:"tag"`
	Type        string       `json:"type"` // always "CL_ACCUM"
	MaxCredNum  uint32       `json:"maxCredNum"`
	Issuance    IssuanceType `json:"issuanceType"`
	PublicKey   []byte       `json:"publicKey"` // accum.PublicKey bytes
	TailsHash   string       `json:"tailsHash"`
	TailsLocation string     `json:"tailsLocation"`
}

// RevocationRegistryEntry is the registry's current accumulator value,
// published as the ledger's REVOC_REG_ENTRY transaction body.
type RevocationRegistryEntry struct {
	RevRegDefID string `json:"revRegDefId"`
	AccumValue  []byte `json:"accumValue"`
}

// RevocationRegistryDelta describes how a registry's valid-member set
// changed between two accumulator values (spec §4.7
// "merge_revocation_registry_deltas").
type RevocationRegistryDelta struct {
	RevRegDefID string   `json:"revRegDefId"`
	PrevAccum   []byte   `json:"prevAccum,omitempty"`
	Accum       []byte   `json:"accum"`
	Issued      []uint32 `json:"issued,omitempty"`
	Revoked     []uint32 `json:"revoked,omitempty"`
}

// CredentialOffer is what create_credential_offer returns (spec §4.7).
type CredentialOffer struct {
	SchemaID            string               `json:"schemaId"`
	CredDefID           string               `json:"credDefId"`
	KeyCorrectnessProof KeyCorrectnessProof  `json:"keyCorrectnessProof"`
	Nonce               string               `json:"nonce"`
}

// CredentialRequest is what create_credential_request returns to send to
// the issuer (spec §4.8).
type CredentialRequest struct {
	ProverDID           string `json:"proverDid"`
	CredDefID           string `json:"credDefId"`
	BlindedMasterSecret []byte `json:"blindedMasterSecret"`
	Nonce               string `json:"nonce"`
}

// CredentialRequestMetadata is persisted by the prover between
// create_credential_request and store_credential (spec §4.8).
type CredentialRequestMetadata struct {
	MasterSecretBlinding []byte `json:"masterSecretBlinding"`
	MasterSecretName     string `json:"masterSecretName"`
	Nonce                string `json:"nonce"`
}

// AttrValue is one credential attribute's raw and CL-encoded form. Raw
// is the human-readable value; Encoded is its canonical numeric encoding
// (spec §4.9 "every revealed attribute's encoded matches the canonical
// encoding of raw").
type AttrValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// Credential is the signed object the issuer hands the prover (spec
// §4.7/§4.8).
type Credential struct {
	SchemaID    string               `json:"schemaId"`
	CredDefID   string               `json:"credDefId"`
	RevRegID    string               `json:"revRegId,omitempty"`
	Values      map[string]AttrValue `json:"values"`
	Signature   []byte               `json:"signature"`
	CredRevID   uint32               `json:"credRevId,omitempty"`
	Witness     []byte               `json:"witness,omitempty"`
	WitnessAccum []byte              `json:"witnessAccum,omitempty"`
}

// CredentialInfo summarizes a stored credential for get_credentials /
// get_credentials_for_proof_request (spec §4.8).
type CredentialInfo struct {
	Referent        string            `json:"referent"`
	SchemaID        string            `json:"schemaId"`
	CredDefID       string            `json:"credDefId"`
	RevRegID        string            `json:"revRegId,omitempty"`
	Attrs           map[string]string `json:"attrs"`
}

// AttributeFilter constrains a requested attribute or predicate to
// credentials from particular schemas/issuers (spec §4.8, the
// restrictions list attached to a proof request referent).
type AttributeFilter struct {
	SchemaID        string `json:"schemaId,omitempty"`
	SchemaIssuerDID string `json:"schemaIssuerDid,omitempty"`
	SchemaName      string `json:"schemaName,omitempty"`
	SchemaVersion   string `json:"schemaVersion,omitempty"`
	IssuerDID       string `json:"issuerDid,omitempty"`
	CredDefID       string `json:"credDefId,omitempty"`
}

// AttrInfo is one requested-attribute referent in a proof request.
type AttrInfo struct {
	Name         string            `json:"name"`
	Restrictions []AttributeFilter `json:"restrictions,omitempty"`
}

// PredicateOp is a predicate operator; GE is the only one in scope
// (spec §4.8 "GE is the only predicate operator in scope").
type PredicateOp string

const PredicateGE PredicateOp = "GE"

// PredicateInfo is one requested-predicate referent in a proof request.
type PredicateInfo struct {
	Name         string            `json:"name"`
	PType        PredicateOp       `json:"pType"`
	PValue       int64             `json:"pValue"`
	Restrictions []AttributeFilter `json:"restrictions,omitempty"`
}

// ProofRequest is constructed by a verifier and answered by a prover
// (spec §4.9, construction itself is out of scope / external).
type ProofRequest struct {
	Nonce                string                    `json:"nonce"`
	RequestedAttributes  map[string]AttrInfo       `json:"requestedAttributes"`
	RequestedPredicates  map[string]PredicateInfo  `json:"requestedPredicates"`
}

// RequestedAttribute is the prover's choice for one attr referent: which
// stored credential answers it, and whether to reveal the raw value.
type RequestedAttribute struct {
	CredRevealedReferent string `json:"credRevealedReferent"` // key into RequestedCredentials.Provided
	Reveal               bool   `json:"reveal"`
}

// RequestedCredentials is the prover's full answer shape for
// create_proof (spec §4.8): per-referent choices plus self-attested
// values that need no credential.
type RequestedCredentials struct {
	RequestedAttributes  map[string]RequestedAttribute `json:"requestedAttributes"`
	RequestedPredicates  map[string]string             `json:"requestedPredicates"` // referent -> cred_referent
	SelfAttestedAttrs    map[string]string              `json:"selfAttestedAttrs"`
	Provided             map[string]string              `json:"provided"` // cred_referent -> stored credential id
}

// NonRevocProof carries the non-revocation witness backing a referent
// drawn from a revocable credential, so verify_proof can re-check
// membership against whatever accumulator value it was given rather
// than whatever the prover saw when it built the proof (spec §4.9
// scenario "prover builds proof against rev_reg delta at t1 ... verifier
// supplies the newer delta at t2 ... verify_proof == false").
type NonRevocProof struct {
	RevRegID  string `json:"revRegId"`
	CredRevID uint32 `json:"credRevId"`
	Witness   []byte `json:"witness"`
}

// RevealedAttrProof is one revealed attribute in the final proof.
type RevealedAttrProof struct {
	Raw       string         `json:"raw"`
	Encoded   string         `json:"encoded"`
	CredDefID string         `json:"credDefId"`
	SchemaID  string         `json:"schemaId"`
	NonRevoc  *NonRevocProof `json:"nonRevoc,omitempty"`
}

// UnrevealedAttrProof is one hidden-but-signed attribute: only its
// provenance, never its value, is disclosed.
type UnrevealedAttrProof struct {
	CredDefID string         `json:"credDefId"`
	SchemaID  string         `json:"schemaId"`
	NonRevoc  *NonRevocProof `json:"nonRevoc,omitempty"`
}

// PredicateProof is one GE predicate sub-proof (spec §4.8/§4.9).
type PredicateProof struct {
	PType     PredicateOp    `json:"pType"`
	PValue    int64          `json:"pValue"`
	CredDefID string         `json:"credDefId"`
	SchemaID  string         `json:"schemaId"`
	GEProof   []byte         `json:"geProof"`
	NonRevoc  *NonRevocProof `json:"nonRevoc,omitempty"`
}

// Proof is create_proof's output and verify_proof's input (spec
// §4.8/§4.9).
type Proof struct {
	Nonce             string                         `json:"nonce"`
	RevealedAttrs     map[string]RevealedAttrProof   `json:"revealedAttrs"`
	UnrevealedAttrs   map[string]UnrevealedAttrProof `json:"unrevealedAttrs"`
	SelfAttestedAttrs map[string]string              `json:"selfAttestedAttrs"`
	Predicates        map[string]PredicateProof      `json:"predicates"`
	AggregateProof    []byte                         `json:"aggregateProof"` // SHA-256 digest from ComputeProofDigest
}
