// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package client is the module's public Go SDK surface: a thin facade
// over the wallet (C2), ledger cache (C3), pool (C6/C7), and anoncreds
// (C8/C9/C10) internals, wired together the way cmd/indy-cli and any
// embedding application use them. Nothing here adds behavior beyond
// composing the internal packages' own exported operations.
package client

import (
	"context"

	"github.com/certen/indysdk/internal/anoncreds"
	"github.com/certen/indysdk/internal/anoncreds/issuer"
	"github.com/certen/indysdk/internal/anoncreds/prover"
	"github.com/certen/indysdk/internal/anoncreds/verifier"
	"github.com/certen/indysdk/internal/crypto"
	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/ledgercache"
	"github.com/certen/indysdk/internal/pool"
	"github.com/certen/indysdk/internal/wallet"
)

// Wallet wraps an open wallet handle for the facade's wallet and
// anoncreds operations. The DID-signing adapter the pool needs
// (internal/pool.Signer) lives on Pool, not here.
type Wallet struct {
	handle handle.Handle
}

// OpenWallet creates the wallet directory if absent and opens it,
// mirroring indy_create_wallet + indy_open_wallet's usual pairing at
// the SDK surface (spec §4.1).
func OpenWallet(cfg wallet.Config) (*Wallet, error) {
	if err := wallet.Create(cfg); err != nil && ierr.CodeOf(err) != ierr.CodeAlreadyExists {
		return nil, err
	}
	h, err := wallet.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Wallet{handle: h}, nil
}

// Handle returns the wallet's process-wide integer handle, for callers
// that need to pass it to a lower-level internal package directly.
func (w *Wallet) Handle() handle.Handle { return w.handle }

// Close releases the wallet handle.
func (w *Wallet) Close() error { return wallet.Close(w.handle) }

// Add stores a new tagged record (spec §4.1 add_wallet_record).
func (w *Wallet) Add(typ, id string, value []byte, tags map[string][]byte) error {
	return wallet.Add(w.handle, typ, id, value, tags)
}

// Get retrieves a record by type and id (spec §4.1 get_wallet_record).
func (w *Wallet) Get(typ, id string, opts wallet.GetOptions) (*wallet.Record, error) {
	return wallet.Get(w.handle, typ, id, opts)
}

// didSigner adapts a set of locally-held DIDs to pool.Signer, so the
// pool can sign requests without knowing how (or whether) keys are
// persisted.
type didSigner struct {
	dids map[string]*crypto.DID
}

func (s *didSigner) Sign(_ context.Context, did string, message []byte) ([]byte, error) {
	d, ok := s.dids[did]
	if !ok {
		return nil, ierr.Newf(ierr.CodeNotFound, "no local key for DID %q", did)
	}
	return d.Sign(message), nil
}

// Pool wraps an open pool handle, a ledger cache layered over it, and
// the set of DIDs this process can sign requests for.
type Pool struct {
	handle handle.Handle
	cache  *ledgercache.Cache
	signer *didSigner
}

// OpenPool loads genesis, connects to every validator, and catches up
// the local ledger before returning (spec §4.6 "open"). w binds the
// pool's ledger cache to a wallet handle so cached entries persist as
// ordinary wallet records.
func OpenPool(ctx context.Context, cfg pool.Config, w *Wallet) (*Pool, error) {
	h, err := pool.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fetcher := pool.NewLedgerFetcher(h)
	cache := ledgercache.New(w.handle, fetcher, cfg.Registry)
	return &Pool{handle: h, cache: cache, signer: &didSigner{dids: map[string]*crypto.DID{}}}, nil
}

// Handle returns the pool's process-wide integer handle.
func (p *Pool) Handle() handle.Handle { return p.handle }

// Close releases the pool handle, its Networker connections, and its
// state-machine bookkeeping.
func (p *Pool) Close() error { return pool.Close(p.handle) }

// RegisterSigner makes did's key available for SignAndSubmit, so a
// caller who has already derived or loaded a crypto.DID can submit
// ledger writes on its behalf without re-deriving it per call.
func (p *Pool) RegisterSigner(did *crypto.DID) {
	p.signer.dids[did.DID] = did
}

// SubmitRequest sends an already-built, unsigned read request and
// returns its reply (spec §4.6 submit_request).
func (p *Pool) SubmitRequest(ctx context.Context, raw []byte) ([]byte, error) {
	msg, err := pool.SubmitRequest(ctx, p.handle, raw)
	return []byte(msg), err
}

// SignAndSubmit signs operation on behalf of did using a previously
// registered signer and submits it (spec §4.6 sign_and_submit_request).
func (p *Pool) SignAndSubmit(ctx context.Context, did string, operation map[string]any) ([]byte, error) {
	msg, err := pool.SignAndSubmit(ctx, p.handle, p.signer, did, operation)
	return []byte(msg), err
}

// GetSchema resolves a schema through the ledger cache (spec §4.2).
func (p *Pool) GetSchema(ctx context.Context, submitterDID, id string, opts ledgercache.Options) ([]byte, error) {
	return p.cache.GetSchema(ctx, submitterDID, id, opts)
}

// GetCredDef resolves a credential definition through the ledger cache
// (spec §4.2).
func (p *Pool) GetCredDef(ctx context.Context, submitterDID, id string, opts ledgercache.Options) ([]byte, error) {
	return p.cache.GetCredDef(ctx, submitterDID, id, opts)
}

// Purge evicts cached schema/cred-def entries (spec §4.2 purge_cache).
func (p *Pool) Purge(ctx context.Context, opts ledgercache.PurgeOptions) error {
	return p.cache.Purge(ctx, opts)
}

// Issuer, Prover, and VerifyProof re-export the anoncreds subpackages'
// free functions under the facade, and the aliases below re-export
// their types, so a caller only needs this one import for the whole
// credential lifecycle. Issuer and Prover are bound to a Wallet at
// construction and pass its handle to every call; VerifyProof takes
// no wallet.
type (
	Schema                       = anoncreds.Schema
	CredDefConfig                = anoncreds.CredDefConfig
	CredentialDefinition         = anoncreds.CredentialDefinition
	CredentialOffer              = anoncreds.CredentialOffer
	CredentialRequest            = anoncreds.CredentialRequest
	CredentialRequestMetadata    = anoncreds.CredentialRequestMetadata
	Credential                   = anoncreds.Credential
	CredentialInfo               = anoncreds.CredentialInfo
	AttrValue                    = anoncreds.AttrValue
	AttributeFilter              = anoncreds.AttributeFilter
	RevocationRegistryDefinition = anoncreds.RevocationRegistryDefinition
	RevocationRegistryEntry      = anoncreds.RevocationRegistryEntry
	RevocationRegistryDelta      = anoncreds.RevocationRegistryDelta
	ProofRequest                 = anoncreds.ProofRequest
	RequestedCredentials         = anoncreds.RequestedCredentials
	Proof                        = anoncreds.Proof
	IssuanceType                 = anoncreds.IssuanceType
)

const (
	IssuanceOnDemand  = anoncreds.IssuanceOnDemand
	IssuanceByDefault = anoncreds.IssuanceByDefault
)

// Issuer groups the issuer-side anoncreds operations (C8) under a
// wallet handle.
type Issuer struct{ w *Wallet }

// NewIssuer binds issuer operations to an open wallet.
func NewIssuer(w *Wallet) *Issuer { return &Issuer{w: w} }

func (i *Issuer) CreateSchema(issuerDID, name, version string, attrNames []string) (*anoncreds.Schema, error) {
	return issuer.CreateSchema(issuerDID, name, version, attrNames)
}

func (i *Issuer) CreateAndStoreCredentialDefinition(issuerDID string, schema *anoncreds.Schema, tag string, cfg anoncreds.CredDefConfig) (*anoncreds.CredentialDefinition, error) {
	return issuer.CreateAndStoreCredentialDefinition(i.w.handle, issuerDID, schema, tag, cfg)
}

func (i *Issuer) CreateAndStoreRevocationRegistry(credDef *anoncreds.CredentialDefinition, tag string, maxCredNum uint32, issuanceType anoncreds.IssuanceType, tailsBaseDir string) (*anoncreds.RevocationRegistryDefinition, *anoncreds.RevocationRegistryEntry, error) {
	return issuer.CreateAndStoreRevocationRegistry(i.w.handle, credDef, tag, maxCredNum, issuanceType, tailsBaseDir)
}

func (i *Issuer) CreateCredentialOffer(credDefID string) (*anoncreds.CredentialOffer, error) {
	return issuer.CreateCredentialOffer(i.w.handle, credDefID)
}

func (i *Issuer) CreateCredential(offer *anoncreds.CredentialOffer, request *anoncreds.CredentialRequest, values map[string]anoncreds.AttrValue, revRegID string) (*anoncreds.Credential, *anoncreds.RevocationRegistryDelta, error) {
	return issuer.CreateCredential(i.w.handle, offer, request, values, revRegID)
}

func (i *Issuer) Revoke(revRegID string, credRevID uint32) (*anoncreds.RevocationRegistryDelta, error) {
	return issuer.Revoke(i.w.handle, revRegID, credRevID)
}

func (i *Issuer) RecoverCredential(revRegID string, credRevID uint32) (*anoncreds.RevocationRegistryDelta, error) {
	return issuer.RecoverCredential(i.w.handle, revRegID, credRevID)
}

func (i *Issuer) MergeRevocationRegistryDeltas(a, b *anoncreds.RevocationRegistryDelta) (*anoncreds.RevocationRegistryDelta, error) {
	return issuer.MergeRevocationRegistryDeltas(a, b)
}

// Prover groups the prover-side anoncreds operations (C9) under a
// wallet handle.
type Prover struct{ w *Wallet }

// NewProver binds prover operations to an open wallet.
func NewProver(w *Wallet) *Prover { return &Prover{w: w} }

func (p *Prover) CreateMasterSecret(name string) error {
	return prover.CreateMasterSecret(p.w.handle, name)
}

func (p *Prover) CreateCredentialRequest(proverDID string, offer *anoncreds.CredentialOffer, credDef *anoncreds.CredentialDefinition, masterSecretName string) (*anoncreds.CredentialRequest, *anoncreds.CredentialRequestMetadata, error) {
	return prover.CreateCredentialRequest(p.w.handle, proverDID, offer, credDef, masterSecretName)
}

func (p *Prover) StoreCredential(cred *anoncreds.Credential, metadata *anoncreds.CredentialRequestMetadata, credDef *anoncreds.CredentialDefinition, revRegDef *anoncreds.RevocationRegistryDefinition) (string, error) {
	return prover.StoreCredential(p.w.handle, cred, metadata, credDef, revRegDef)
}

func (p *Prover) GetCredentials(filter anoncreds.AttributeFilter) ([]*anoncreds.CredentialInfo, error) {
	return prover.GetCredentials(p.w.handle, filter)
}

func (p *Prover) GetCredentialsForProofRequest(req *anoncreds.ProofRequest) (*prover.ProofRequestCredentials, error) {
	return prover.GetCredentialsForProofRequest(p.w.handle, req)
}

func (p *Prover) CreateProof(
	req *anoncreds.ProofRequest,
	requested *anoncreds.RequestedCredentials,
	schemas map[string]*anoncreds.Schema,
	masterSecretName string,
	credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
	revRegStates map[string]*anoncreds.RevocationRegistryEntry,
) (*anoncreds.Proof, error) {
	return prover.CreateProof(p.w.handle, req, requested, schemas, masterSecretName, credDefs, revRegDefs, revRegStates)
}

// VerifyProof checks proof against req (spec §4.9, C10). It needs no
// wallet handle: a verifier only ever sees public ledger objects.
func VerifyProof(
	req *anoncreds.ProofRequest,
	proof *anoncreds.Proof,
	schemas map[string]*anoncreds.Schema,
	credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
	revRegs map[string]*anoncreds.RevocationRegistryEntry,
) (bool, error) {
	return verifier.VerifyProof(req, proof, schemas, credDefs, revRegDefs, revRegs)
}
