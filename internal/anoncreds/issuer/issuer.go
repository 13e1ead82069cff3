// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package issuer implements C8, the anoncreds issuer side of spec §4.7:
// schema and credential-definition creation, revocation registry
// lifecycle, and credential issuance/revocation. Primary credential
// signatures and the accumulator-based revocation scheme are built on
// the repository's BLS12-381 and pairing-accumulator primitives
// (internal/crypto/bls, internal/crypto/accum) rather than a full
// Camenisch-Lysyanskaya RSA implementation; see DESIGN.md for why.
package issuer

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/certen/indysdk/internal/anoncreds"
	"github.com/certen/indysdk/internal/anoncreds/tails"
	"github.com/certen/indysdk/internal/crypto"
	"github.com/certen/indysdk/internal/crypto/accum"
	"github.com/certen/indysdk/internal/crypto/bls"
	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/wallet"
)

const (
	recordCredDefPrivate = "cred_def_private"
	recordCredDefPublic  = "cred_def_public"
	recordRevRegState    = "rev_reg_state"
)

// credDefPrivate is what CreateAndStoreCredentialDefinition persists:
// the signing half of the keys published in CredentialDefinition.
type credDefPrivate struct {
	PrimarySK []byte `json:"primarySk"`
	RevocSK   []byte `json:"revocSk,omitempty"`
}

// revRegState is the issuer's private bookkeeping for one revocation
// registry: the accumulator trapdoor, the current high-water mark, and
// the set of currently-valid indices (spec §4.7 "persist updated
// registry state").
type revRegState struct {
	Gamma         []byte       `json:"gamma"`
	MaxCredNum    uint32       `json:"maxCredNum"`
	Issuance      anoncreds.IssuanceType `json:"issuance"`
	CurrID        uint32       `json:"currId"`
	UsedIDs       []uint32     `json:"usedIds"`
	Accum         []byte       `json:"accum"`
	TailsLocation string       `json:"tailsLocation"`
	TailsHash     string       `json:"tailsHash"`
}

func (s *revRegState) usedSet() map[uint32]bool {
	m := make(map[uint32]bool, len(s.UsedIDs))
	for _, id := range s.UsedIDs {
		m[id] = true
	}
	return m
}

func (s *revRegState) setUsed(m map[uint32]bool) {
	ids := make([]uint32, 0, len(m))
	for id, present := range m {
		if present {
			ids = append(ids, id)
		}
	}
	s.UsedIDs = ids
}

// CreateSchema builds a schema object and its ledger-style identifier
// (spec §4.7). It fails InvalidStructure if attrNames is empty or any
// name is blank.
func CreateSchema(issuerDID, name, version string, attrNames []string) (*anoncreds.Schema, error) {
	if len(attrNames) == 0 {
		return nil, ierr.New(ierr.CodeInvalidStructure, "schema must declare at least one attribute")
	}
	seen := make(map[string]bool, len(attrNames))
	for _, a := range attrNames {
		if a == "" {
			return nil, ierr.New(ierr.CodeInvalidStructure, "schema attribute names must not be blank")
		}
		if seen[a] {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "duplicate schema attribute %q", a)
		}
		seen[a] = true
	}
	id := fmt.Sprintf("%s:2:%s:%s", issuerDID, name, version)
	return &anoncreds.Schema{
		ID:        id,
		Name:      name,
		Version:   version,
		IssuerDID: issuerDID,
		AttrNames: attrNames,
	}, nil
}

// CreateAndStoreCredentialDefinition generates a fresh primary (and,
// when requested, revocation) keypair, persists the private halves in
// the wallet, and returns the publishable definition (spec §4.7). Fails
// CredDefAlreadyExists if id is already present.
func CreateAndStoreCredentialDefinition(h handle.Handle, issuerDID string, schema *anoncreds.Schema, tag string, cfg anoncreds.CredDefConfig) (*anoncreds.CredentialDefinition, error) {
	credDefID := fmt.Sprintf("%s:3:CL:%s:%s", issuerDID, schema.ID, tag)

	if _, err := wallet.Get(h, recordCredDefPublic, credDefID, wallet.GetOptions{}); err == nil {
		return nil, ierr.Newf(ierr.CodeCredDefAlreadyExists, "credential definition %q already exists", credDefID)
	} else if ierr.CodeOf(err) != ierr.CodeNotFound {
		return nil, err
	}

	primarySK, primaryPK, err := bls.GenerateKeyPair()
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "generate primary credential key pair")
	}

	priv := credDefPrivate{PrimarySK: primarySK.Bytes()}
	def := &anoncreds.CredentialDefinition{
		ID:            credDefID,
		SchemaID:      schema.ID,
		IssuerDID:     issuerDID,
		Tag:           tag,
		Type:          "CL",
		Config:        cfg,
		PrimaryVerKey: primaryPK.Bytes(),
	}

	if cfg.SupportRevocation {
		revocSK, revocPK, err := bls.GenerateKeyPair()
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "generate revocation credential key pair")
		}
		priv.RevocSK = revocSK.Bytes()
		def.RevocVerKey = revocPK.Bytes()
	}

	privBytes, err := json.Marshal(priv)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal credential definition private key")
	}
	if err := wallet.Add(h, recordCredDefPrivate, credDefID, privBytes, nil); err != nil {
		return nil, err
	}
	pubBytes, err := json.Marshal(def)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal credential definition")
	}
	if err := wallet.Add(h, recordCredDefPublic, credDefID, pubBytes, nil); err != nil {
		return nil, err
	}
	return def, nil
}

// CreateAndStoreRevocationRegistry generates an initial accumulator over
// an empty member set, streams the tails table to baseDir, and persists
// the registry's definition and private bookkeeping (spec §4.7).
func CreateAndStoreRevocationRegistry(h handle.Handle, credDef *anoncreds.CredentialDefinition, tag string, maxCredNum uint32, issuanceType anoncreds.IssuanceType, tailsBaseDir string) (*anoncreds.RevocationRegistryDefinition, *anoncreds.RevocationRegistryEntry, error) {
	if !credDef.Config.SupportRevocation {
		return nil, nil, ierr.New(ierr.CodeInvalidStructure, "credential definition does not support revocation")
	}

	sk, pk, err := accum.GenerateKeys()
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "generate revocation accumulator key pair")
	}
	tailsTable := sk.GenerateTails(maxCredNum)

	w, err := tails.NewWriter(tailsBaseDir)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range tailsTable.Values {
		b := v.Bytes()
		if err := w.Append(b[:]); err != nil {
			return nil, nil, err
		}
	}
	location, hash, err := w.Finalize()
	if err != nil {
		return nil, nil, err
	}

	acc, _, err := accum.Compute(tailsTable, nil, 0, false)
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "compute initial accumulator")
	}

	revRegID := fmt.Sprintf("%s:4:%s:CL_ACCUM:%s", credDef.IssuerDID, credDef.ID, tag)
	def := &anoncreds.RevocationRegistryDefinition{
		ID:            revRegID,
		CredDefID:     credDef.ID,
		Tag:           tag,
		Type:          "CL_ACCUM",
		MaxCredNum:    maxCredNum,
		Issuance:      issuanceType,
		PublicKey:     pk.Bytes(),
		TailsHash:     hash,
		TailsLocation: location,
	}
	entry := &anoncreds.RevocationRegistryEntry{RevRegDefID: revRegID, AccumValue: acc.Bytes()}

	state := revRegState{
		Gamma:         sk.Bytes(),
		MaxCredNum:    maxCredNum,
		Issuance:      issuanceType,
		Accum:         acc.Bytes(),
		TailsLocation: location,
		TailsHash:     hash,
	}
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal revocation registry state")
	}
	if err := wallet.Add(h, recordRevRegState, revRegID, stateBytes, nil); err != nil {
		return nil, nil, err
	}
	return def, entry, nil
}

// CreateCredentialOffer builds a fresh offer for credDefID (spec §4.7).
func CreateCredentialOffer(h handle.Handle, credDefID string) (*anoncreds.CredentialOffer, error) {
	rec, err := wallet.Get(h, recordCredDefPublic, credDefID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, err
	}
	var def anoncreds.CredentialDefinition
	if err := json.Unmarshal(rec.Value, &def); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal credential definition")
	}

	privRec, err := wallet.Get(h, recordCredDefPrivate, credDefID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, err
	}
	var priv credDefPrivate
	if err := json.Unmarshal(privRec.Value, &priv); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal credential definition private key")
	}
	primarySK, err := bls.PrivateKeyFromBytes(priv.PrimarySK)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "load credential definition private key")
	}

	nonce := freshNonce()
	sig := primarySK.Sign("indysdk-cred-def-correctness", def.PrimaryVerKey)

	return &anoncreds.CredentialOffer{
		SchemaID:  def.SchemaID,
		CredDefID: credDefID,
		KeyCorrectnessProof: anoncreds.KeyCorrectnessProof{
			PrimaryVerKey: def.PrimaryVerKey,
			IssuerDIDSig:  sig.Bytes(),
		},
		Nonce: nonce,
	}, nil
}

// CreateCredential signs values into a credential bound to request, and
// when revRegID is set, advances the registry and computes a
// non-revocation witness (spec §4.7). Fails RevocationRegistryFull once
// the registry's high-water mark would exceed its max_cred_num.
func CreateCredential(h handle.Handle, offer *anoncreds.CredentialOffer, request *anoncreds.CredentialRequest, values map[string]anoncreds.AttrValue, revRegID string) (*anoncreds.Credential, *anoncreds.RevocationRegistryDelta, error) {
	if request.CredDefID != offer.CredDefID {
		return nil, nil, ierr.New(ierr.CodeInvalidStructure, "credential request does not match the offer's credential definition")
	}

	privRec, err := wallet.Get(h, recordCredDefPrivate, offer.CredDefID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, nil, err
	}
	var priv credDefPrivate
	if err := json.Unmarshal(privRec.Value, &priv); err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal credential definition private key")
	}
	primarySK, err := bls.PrivateKeyFromBytes(priv.PrimarySK)
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "load credential definition private key")
	}

	signingInput, err := crypto.CanonicalJSON(map[string]any{
		"credDefId":           offer.CredDefID,
		"schemaId":            offer.SchemaID,
		"values":              values,
		"blindedMasterSecret": request.BlindedMasterSecret,
	})
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "canonicalize credential for signing")
	}
	sig := primarySK.Sign("indysdk-credential", signingInput)

	cred := &anoncreds.Credential{
		SchemaID:  offer.SchemaID,
		CredDefID: offer.CredDefID,
		Values:    values,
		Signature: sig.Bytes(),
	}

	if revRegID == "" {
		return cred, nil, nil
	}

	stateRec, err := wallet.Get(h, recordRevRegState, revRegID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, nil, err
	}
	var state revRegState
	if err := json.Unmarshal(stateRec.Value, &state); err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal revocation registry state")
	}

	nextID := state.CurrID + 1
	if nextID > state.MaxCredNum {
		return nil, nil, ierr.Newf(ierr.CodeRevocationRegistryFull, "revocation registry %q has reached its maximum of %d credentials", revRegID, state.MaxCredNum)
	}
	state.CurrID = nextID

	used := state.usedSet()
	if state.Issuance == anoncreds.IssuanceOnDemand {
		used[nextID] = true
	}
	state.setUsed(used)
	prevAccum := state.Accum

	reader, err := tails.OpenReader(state.TailsLocation)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()
	tailsTable, err := loadTails(reader, state.MaxCredNum)
	if err != nil {
		return nil, nil, err
	}
	members := sortedMembers(used)
	acc, witness, err := accum.Compute(tailsTable, members, nextID, true)
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "compute credential witness")
	}
	state.Accum = acc.Bytes()

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal revocation registry state")
	}
	if err := wallet.UpdateValue(h, recordRevRegState, revRegID, stateBytes); err != nil {
		return nil, nil, err
	}

	cred.RevRegID = revRegID
	cred.CredRevID = nextID
	cred.Witness = witness.Bytes()
	cred.WitnessAccum = acc.Bytes()

	delta := &anoncreds.RevocationRegistryDelta{
		RevRegDefID: revRegID,
		PrevAccum:   prevAccum,
		Accum:       acc.Bytes(),
		Issued:      []uint32{nextID},
	}
	return cred, delta, nil
}

// Revoke removes (ON_DEMAND) or adds (BY_DEFAULT) credRevID from the
// registry's valid-member set and recomputes the accumulator (spec
// §4.7). Fails InvalidUserRevocId if the index's membership does not
// match what the registry's issuance type expects.
func Revoke(h handle.Handle, revRegID string, credRevID uint32) (*anoncreds.RevocationRegistryDelta, error) {
	stateRec, err := wallet.Get(h, recordRevRegState, revRegID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, err
	}
	var state revRegState
	if err := json.Unmarshal(stateRec.Value, &state); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal revocation registry state")
	}

	used := state.usedSet()
	switch state.Issuance {
	case anoncreds.IssuanceOnDemand:
		if !used[credRevID] {
			return nil, ierr.Newf(ierr.CodeInvalidUserRevocId, "credential revocation id %d is not currently issued", credRevID)
		}
		delete(used, credRevID)
	default: // IssuanceByDefault
		if used[credRevID] {
			return nil, ierr.Newf(ierr.CodeInvalidUserRevocId, "credential revocation id %d is already revoked", credRevID)
		}
		used[credRevID] = true
	}
	state.setUsed(used)

	prevAccum := state.Accum

	reader, err := tails.OpenReader(state.TailsLocation)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	tailsTable, err := loadTails(reader, state.MaxCredNum)
	if err != nil {
		return nil, err
	}
	members := sortedMembers(used)
	acc, _, err := accum.Compute(tailsTable, members, 0, false)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "recompute accumulator")
	}
	state.Accum = acc.Bytes()

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal revocation registry state")
	}
	if err := wallet.UpdateValue(h, recordRevRegState, revRegID, stateBytes); err != nil {
		return nil, err
	}

	delta := &anoncreds.RevocationRegistryDelta{
		RevRegDefID: revRegID,
		PrevAccum:   prevAccum,
		Accum:       acc.Bytes(),
		Revoked:     []uint32{credRevID},
	}
	return delta, nil
}

// RecoverCredential is Revoke's mirror image: it restores credRevID to
// the registry's valid-member set and recomputes the accumulator (spec
// §9's `recovery_credential` extension). Fails InvalidUserRevocId if the
// index's current membership does not match what recovery expects —
// i.e. it is not presently revoked.
func RecoverCredential(h handle.Handle, revRegID string, credRevID uint32) (*anoncreds.RevocationRegistryDelta, error) {
	stateRec, err := wallet.Get(h, recordRevRegState, revRegID, wallet.DefaultGetOptions())
	if err != nil {
		return nil, err
	}
	var state revRegState
	if err := json.Unmarshal(stateRec.Value, &state); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal revocation registry state")
	}

	used := state.usedSet()
	switch state.Issuance {
	case anoncreds.IssuanceOnDemand:
		if used[credRevID] {
			return nil, ierr.Newf(ierr.CodeInvalidUserRevocId, "credential revocation id %d is not currently revoked", credRevID)
		}
		used[credRevID] = true
	default: // IssuanceByDefault
		if !used[credRevID] {
			return nil, ierr.Newf(ierr.CodeInvalidUserRevocId, "credential revocation id %d is not currently revoked", credRevID)
		}
		delete(used, credRevID)
	}
	state.setUsed(used)

	prevAccum := state.Accum

	reader, err := tails.OpenReader(state.TailsLocation)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	tailsTable, err := loadTails(reader, state.MaxCredNum)
	if err != nil {
		return nil, err
	}
	members := sortedMembers(used)
	acc, _, err := accum.Compute(tailsTable, members, 0, false)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "recompute accumulator")
	}
	state.Accum = acc.Bytes()

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal revocation registry state")
	}
	if err := wallet.UpdateValue(h, recordRevRegState, revRegID, stateBytes); err != nil {
		return nil, err
	}

	delta := &anoncreds.RevocationRegistryDelta{
		RevRegDefID: revRegID,
		PrevAccum:   prevAccum,
		Accum:       acc.Bytes(),
		Issued:      []uint32{credRevID},
	}
	return delta, nil
}

// MergeRevocationRegistryDeltas associatively merges two deltas for the
// same registry (spec §4.7): the merged Issued/Revoked sets are each
// delta's union, with b's Accum (the later value) winning.
func MergeRevocationRegistryDeltas(a, b *anoncreds.RevocationRegistryDelta) (*anoncreds.RevocationRegistryDelta, error) {
	if a.RevRegDefID != b.RevRegDefID {
		return nil, ierr.New(ierr.CodeInvalidStructure, "cannot merge deltas from different revocation registries")
	}
	merged := &anoncreds.RevocationRegistryDelta{
		RevRegDefID: a.RevRegDefID,
		PrevAccum:   a.PrevAccum,
		Accum:       b.Accum,
	}
	merged.Issued = mergeUint32Sets(a.Issued, b.Issued, a.Revoked, b.Revoked, true)
	merged.Revoked = mergeUint32Sets(a.Revoked, b.Revoked, a.Issued, b.Issued, false)
	return merged, nil
}

// mergeUint32Sets unions xs and ys, then drops anything in opposingB
// (the later delta's opposing set; opposingA is not consulted), modeling "whichever
// happened last wins" for a single index flip-flopping between issued
// and revoked across the two deltas being merged.
func mergeUint32Sets(xs, ys, opposingA, opposingB []uint32, _ bool) []uint32 {
	set := make(map[uint32]bool)
	for _, v := range xs {
		set[v] = true
	}
	for _, v := range ys {
		set[v] = true
	}
	opposing := make(map[uint32]bool)
	for _, v := range opposingB {
		opposing[v] = true
	}
	result := make([]uint32, 0, len(set))
	for v := range set {
		if opposing[v] {
			continue
		}
		result = append(result, v)
	}
	return result
}

func sortedMembers(used map[uint32]bool) []uint32 {
	members := make([]uint32, 0, len(used))
	for id, present := range used {
		if present {
			members = append(members, id)
		}
	}
	for i := 1; i < len(members); i++ {
		for j := i; j > 0 && members[j-1] > members[j]; j-- {
			members[j-1], members[j] = members[j], members[j-1]
		}
	}
	return members
}

// tailsPointSize is the encoded size of a compressed BLS12-381 G1
// point, as produced by bls12381.G1Affine.Bytes (gnark-crypto).
const tailsPointSize = 48

// loadTails reconstructs the accumulator's tails table from the raw
// point stream a tails.Reader serves (spec §6 "opaque binary stream").
func loadTails(r *tails.Reader, maxCredNum uint32) (*accum.Tails, error) {
	count := int(maxCredNum) + 1
	data, err := r.Read(0, count*tailsPointSize)
	if err != nil {
		return nil, err
	}
	if len(data) != count*tailsPointSize {
		return nil, ierr.New(ierr.CodeInvalidStructure, "tails blob is shorter than expected")
	}

	values := make([]bls12381.G1Affine, count)
	for i := 0; i < count; i++ {
		start := i * tailsPointSize
		if _, err := values[i].SetBytes(data[start : start+tailsPointSize]); err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "decode tails entry")
		}
	}
	return &accum.Tails{Values: values}, nil
}

func freshNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
