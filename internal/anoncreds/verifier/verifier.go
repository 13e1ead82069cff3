// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package verifier implements C10, the anoncreds verifier side of spec
// §4.9: structural pre-checks over a proof against its proof request,
// followed by the cryptographic checks the repository's BLS/accumulator/
// Groth16 substitutions make possible (see internal/anoncreds/issuer and
// internal/anoncreds/prover doc comments, and DESIGN.md, for why this is
// not a full Camenisch-Lysyanskaya verification).
package verifier

import (
	"bytes"
	"encoding/json"

	"github.com/certen/indysdk/internal/anoncreds"
	"github.com/certen/indysdk/internal/crypto/accum"
	"github.com/certen/indysdk/internal/crypto/predicate"
	"github.com/certen/indysdk/internal/ierr"
)

// predicateVerifier is the process-wide GE circuit verifier, sharing
// internal/anoncreds/prover's reasoning for compiling the circuit once.
var predicateVerifier = predicate.NewProver()

// VerifyProof checks proof against req (spec §4.9). Structural mismatches
// (an unanswered referent, a mis-encoded revealed attribute, a dangling
// schema/cred-def/rev-reg reference, a predicate constant that does not
// match the request) fail with InvalidStructure before any cryptographic
// work runs. Cryptographic verification failures return (false, nil).
func VerifyProof(
	req *anoncreds.ProofRequest,
	proof *anoncreds.Proof,
	schemas map[string]*anoncreds.Schema,
	credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
	revRegs map[string]*anoncreds.RevocationRegistryEntry,
) (bool, error) {
	if err := checkStructure(req, proof, schemas, credDefs, revRegDefs); err != nil {
		return false, err
	}

	if err := predicateVerifier.Initialize(); err != nil {
		return false, ierr.Wrap(ierr.CodeInvalidStructure, err, "initialize predicate verifier")
	}

	if !bytes.Equal(proof.AggregateProof, anoncreds.ComputeProofDigest(req.Nonce, proof)) {
		return false, nil
	}

	for _, attr := range proof.RevealedAttrs {
		if ok, err := checkNonRevocation(attr.NonRevoc, revRegDefs, revRegs); err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}
	}
	for _, attr := range proof.UnrevealedAttrs {
		if ok, err := checkNonRevocation(attr.NonRevoc, revRegDefs, revRegs); err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}
	}
	for _, pred := range proof.Predicates {
		ok, err := checkNonRevocation(pred.NonRevoc, revRegDefs, revRegs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		var geProof predicate.Proof
		if err := unmarshalGEProof(pred.GEProof, &geProof); err != nil {
			return false, err
		}
		verified, err := predicateVerifier.Verify(&geProof)
		if err != nil {
			return false, nil
		}
		if !verified {
			return false, nil
		}
	}

	return true, nil
}

// checkStructure runs every pre-check spec §4.9 requires before any
// cryptographic work: every referent answered, every revealed value's
// encoding canonical, every identifier resolvable, every predicate
// constant matching the request.
func checkStructure(
	req *anoncreds.ProofRequest,
	proof *anoncreds.Proof,
	schemas map[string]*anoncreds.Schema,
	credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
) error {
	for referent := range req.RequestedAttributes {
		if _, ok := proof.RevealedAttrs[referent]; ok {
			continue
		}
		if _, ok := proof.UnrevealedAttrs[referent]; ok {
			continue
		}
		if _, ok := proof.SelfAttestedAttrs[referent]; ok {
			continue
		}
		return ierr.Newf(ierr.CodeInvalidStructure, "proof request referent %q is not answered in the proof", referent)
	}
	for referent, info := range req.RequestedPredicates {
		pred, ok := proof.Predicates[referent]
		if !ok {
			return ierr.Newf(ierr.CodeInvalidStructure, "proof request predicate referent %q is not answered in the proof", referent)
		}
		if pred.PType != info.PType || pred.PValue != info.PValue {
			return ierr.Newf(ierr.CodeInvalidStructure, "proof's predicate %q does not match the request's constants", referent)
		}
	}

	for referent, attr := range proof.RevealedAttrs {
		if anoncreds.EncodeAttrValue(attr.Raw) != attr.Encoded {
			return ierr.Newf(ierr.CodeInvalidStructure, "revealed attribute %q's encoded value does not match its raw value", referent)
		}
		if err := checkIdentifiers(attr.SchemaID, attr.CredDefID, attr.NonRevoc, schemas, credDefs, revRegDefs); err != nil {
			return err
		}
	}
	for _, attr := range proof.UnrevealedAttrs {
		if err := checkIdentifiers(attr.SchemaID, attr.CredDefID, attr.NonRevoc, schemas, credDefs, revRegDefs); err != nil {
			return err
		}
	}
	for _, pred := range proof.Predicates {
		if err := checkIdentifiers(pred.SchemaID, pred.CredDefID, pred.NonRevoc, schemas, credDefs, revRegDefs); err != nil {
			return err
		}
	}
	return nil
}

func checkIdentifiers(schemaID, credDefID string, nonRevoc *anoncreds.NonRevocProof, schemas map[string]*anoncreds.Schema, credDefs map[string]*anoncreds.CredentialDefinition, revRegDefs map[string]*anoncreds.RevocationRegistryDefinition) error {
	if _, ok := schemas[schemaID]; !ok {
		return ierr.Newf(ierr.CodeInvalidStructure, "proof references unknown schema %q", schemaID)
	}
	if _, ok := credDefs[credDefID]; !ok {
		return ierr.Newf(ierr.CodeInvalidStructure, "proof references unknown credential definition %q", credDefID)
	}
	if nonRevoc != nil {
		if _, ok := revRegDefs[nonRevoc.RevRegID]; !ok {
			return ierr.Newf(ierr.CodeInvalidStructure, "proof references unknown revocation registry %q", nonRevoc.RevRegID)
		}
	}
	return nil
}

// checkNonRevocation verifies a credential's non-revocation witness
// against the caller's own view of the registry's current accumulator
// (revRegs), not whatever accumulator the prover held when it built the
// witness. A witness computed against a stale accumulator fails this
// pairing check even though it was valid at proof-construction time
// (spec §4.9 scenario: verifier supplies a newer delta than the prover
// used, verify_proof == false).
func checkNonRevocation(nonRevoc *anoncreds.NonRevocProof, revRegDefs map[string]*anoncreds.RevocationRegistryDefinition, revRegs map[string]*anoncreds.RevocationRegistryEntry) (bool, error) {
	if nonRevoc == nil {
		return true, nil
	}
	def, ok := revRegDefs[nonRevoc.RevRegID]
	if !ok {
		return false, ierr.Newf(ierr.CodeInvalidStructure, "proof references unknown revocation registry %q", nonRevoc.RevRegID)
	}
	entry, ok := revRegs[nonRevoc.RevRegID]
	if !ok {
		return false, ierr.Newf(ierr.CodeInvalidStructure, "no current revocation registry state supplied for %q", nonRevoc.RevRegID)
	}

	pk, err := accum.PublicKeyFromBytes(def.PublicKey)
	if err != nil {
		return false, ierr.Wrap(ierr.CodeInvalidStructure, err, "load revocation registry public key")
	}
	acc, err := accum.AccumulatorFromBytes(entry.AccumValue)
	if err != nil {
		return false, ierr.Wrap(ierr.CodeInvalidStructure, err, "load revocation registry accumulator")
	}
	w, err := accum.WitnessFromBytes(nonRevoc.Witness)
	if err != nil {
		return false, ierr.Wrap(ierr.CodeInvalidStructure, err, "load non-revocation witness")
	}

	if !accum.Verify(pk, acc, w, nonRevoc.CredRevID) {
		return false, nil
	}
	return true, nil
}

func unmarshalGEProof(data []byte, out *predicate.Proof) error {
	if err := json.Unmarshal(data, out); err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "unmarshal predicate proof")
	}
	return nil
}
