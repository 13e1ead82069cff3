// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package ierr provides the SDK's structured error type. Every error kind
// named in the specification (structural, wallet, pool, anoncreds, crypto)
// maps to a stable Code so callers can switch on failure class without
// parsing strings.
package ierr

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies an error kind at the contract level.
type Code string

const (
	// Structural
	CodeInvalidStructure Code = "InvalidStructure"
	CodeInvalidParameter Code = "InvalidParameter"
	CodeInvalidState     Code = "InvalidState"

	// Wallet
	CodeNotFound       Code = "NotFound"
	CodeAlreadyExists  Code = "AlreadyExists"
	CodeAlreadyOpened  Code = "AlreadyOpened"
	CodeInvalidHandle  Code = "InvalidHandle"
	CodeUnknownType    Code = "UnknownType"
	CodeAccessFailed   Code = "AccessFailed"
	CodeEncryptionErr  Code = "EncryptionError"
	CodeQueryError     Code = "QueryError"
	CodeStorageError   Code = "StorageError"
	CodeItemNotFound   Code = "ItemNotFound"

	// Pool
	CodePoolNotCreated             Code = "PoolNotCreated"
	CodeInvalidPoolHandle          Code = "InvalidPoolHandle"
	CodePoolTerminated             Code = "PoolTerminated"
	CodePoolTimeout                Code = "PoolTimeout"
	CodeIncompatibleProtoVersion   Code = "IncompatibleProtocolVersion"
	CodeLedgerNotFound             Code = "LedgerNotFound"

	// Anoncreds
	CodeCredDefAlreadyExists     Code = "CredDefAlreadyExists"
	CodeMasterSecretDuplicate    Code = "MasterSecretDuplicateName"
	CodeInvalidUserRevocId       Code = "InvalidUserRevocId"
	CodeRevocationRegistryFull   Code = "RevocationRegistryFull"
	CodeCredRevoked              Code = "CredRevoked"
	CodeProofRejected            Code = "ProofRejected"

	// Crypto
	CodeInvalidSignature Code = "InvalidSignature"
	CodeUnknownCrypto    Code = "UnknownCrypto"
)

// Error is the SDK's structured error, carrying a stable Code, a
// human-readable message, an optional wrapped cause, and free-form context
// for logging.
type Error struct {
	Code      Code
	Message   string
	Context   map[string]any
	Timestamp time.Time
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Timestamp: time.Now(), Context: map[string]any{}}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error that wraps cause.
func Wrap(code Code, cause error, message string) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithContext attaches a context key/value and returns the same Error for
// chaining.
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
