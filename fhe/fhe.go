// Package fhe defines the homomorphic encryption boundary of the cipherword
// engine. Game code only ever sees opaque ciphertext handles and combines
// them through the Engine interface; plaintext leaves this layer exclusively
// via the asynchronous decryption oracle. MemoryEngine provides an in-process
// reference implementation with the same observable semantics.
package fhe

import (
	"errors"

	"github.com/cipherword/cipherword/core/types"
)

var (
	// ErrInvalidProof is returned when an input ciphertext's binding proof
	// does not match the raw bytes and submitter.
	ErrInvalidProof = errors.New("fhe: invalid input proof")

	// ErrInvalidCiphertext is returned when a handle does not reference a
	// value known to the engine.
	ErrInvalidCiphertext = errors.New("fhe: unknown ciphertext handle")

	// ErrAccessDenied is returned when a principal without decryption rights
	// asks the engine to open a handle.
	ErrAccessDenied = errors.New("fhe: principal has no access to handle")
)

// InputCiphertext is an externally encrypted value entering the engine. Raw
// carries the serialized value and Proof binds it to the submitting
// principal (keccak256(raw || submitter)).
type InputCiphertext struct {
	Raw   []byte
	Proof []byte
}

// Engine is the homomorphic primitive consumed by the ledger and the round
// engine. All operations work on handles and never branch on plaintext.
type Engine interface {
	// EncryptInput verifies the input proof and imports the value, returning
	// a fresh handle. Fails with ErrInvalidProof on a malformed input.
	EncryptInput(in InputCiphertext, submitter types.Address) (types.Ciphertext, error)

	// TrivialEncrypt imports a public plaintext constant (zero pools, fixed
	// entry fees) as a ciphertext handle.
	TrivialEncrypt(value uint64) types.Ciphertext

	// Add returns a handle to a+b.
	Add(a, b types.Ciphertext) (types.Ciphertext, error)

	// Sub returns a handle to a-b (wrapping, as ciphertext arithmetic is).
	Sub(a, b types.Ciphertext) (types.Ciphertext, error)

	// Ge returns a boolean handle to a >= b.
	Ge(a, b types.Ciphertext) (types.Ciphertext, error)

	// Eq returns a boolean handle to a == b.
	Eq(a, b types.Ciphertext) (types.Ciphertext, error)

	// And returns a boolean handle to a && b of two boolean handles.
	And(a, b types.Ciphertext) (types.Ciphertext, error)

	// Select returns a handle to (cond ? ifTrue : ifFalse) without revealing
	// cond.
	Select(cond, ifTrue, ifFalse types.Ciphertext) (types.Ciphertext, error)

	// GrantAccess gives principal decryption rights over handle. Rights are
	// checked by the decryption oracle before opening a value.
	GrantAccess(handle types.Ciphertext, principal types.Address) error

	// HasAccess reports whether principal holds decryption rights on handle.
	HasAccess(handle types.Ciphertext, principal types.Address) bool
}

// Opener is the extra capability the decryption oracle holds: turning a
// handle back into plaintext, subject to access control. Kept out of Engine
// so game code cannot acquire it by accident.
type Opener interface {
	Open(handle types.Ciphertext, principal types.Address) (uint64, error)
}
