// Package oracle implements the asynchronous decryption boundary: issuing
// decryption requests against the homomorphic engine, correlating callbacks
// to their originating pending records with at-most-once semantics, and
// authenticating every callback before it can touch game state.
package oracle

import (
	"encoding/binary"
	"errors"

	"github.com/cipherword/cipherword/core/types"
)

var (
	// ErrDuplicateRequest is returned when a request id is tracked twice.
	ErrDuplicateRequest = errors.New("oracle: request id already tracked")

	// ErrUnauthenticatedCallback is returned when a callback's attestation
	// does not verify against the registered oracle address. This is the one
	// callback condition that is rejected hard.
	ErrUnauthenticatedCallback = errors.New("oracle: callback attestation failed")

	// ErrUnknownRequest is returned by the in-process oracle when asked to
	// deliver a request it never issued.
	ErrUnknownRequest = errors.New("oracle: unknown request id")
)

// Result is a delivered decryption: one plaintext value per requested handle
// plus the oracle's attestation signature over (id, values).
type Result struct {
	ID     types.RequestID
	Values []uint64
	Sig    []byte
}

// Bool interprets the first value of a single-boolean result.
func (r Result) Bool() bool {
	return len(r.Values) > 0 && r.Values[0] != 0
}

// EncodeValues serializes plaintext values for attestation digests: 8
// big-endian bytes per value, in request order.
func EncodeValues(values []uint64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(out[8*i:], v)
	}
	return out
}

// CallbackSink receives authenticated results from the oracle transport.
type CallbackSink func(Result)

// Decryptor issues asynchronous decryption requests. The returned id is the
// correlation key for the single callback that will eventually arrive; the
// call itself never blocks on decryption.
type Decryptor interface {
	RequestDecryption(handles []types.Ciphertext, deadline uint64) (types.RequestID, error)
}
