// Package crypto provides the hashing and signature primitives used by the
// cipherword engine: Keccak-256 for handle derivation and input proofs, and
// secp256k1 attestations for authenticating decryption-oracle callbacks.
package crypto

import (
	"github.com/cipherword/cipherword/core/types"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}

// InputProof computes the binding proof an input ciphertext must carry:
// keccak256(raw || submitter). The homomorphic engine rejects inputs whose
// proof does not match.
func InputProof(raw []byte, submitter types.Address) []byte {
	return Keccak256(raw, submitter.Bytes())
}
