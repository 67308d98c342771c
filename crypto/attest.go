package crypto

import (
	"crypto/ecdsa"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cipherword/cipherword/core/types"
)

// Oracle callbacks are the one trust boundary where a forged message could
// fabricate game outcomes, so every result carries a recoverable secp256k1
// signature over the request id and the plaintext results.

var (
	ErrInvalidAttestation = errors.New("crypto: attestation verification failed")
	ErrNilKey             = errors.New("crypto: nil signing key")
)

// AttestationDigest computes the message an oracle signs for a decryption
// result: keccak256(requestID || results), where each boolean result is one
// byte and each numeric result is 8 big-endian bytes.
func AttestationDigest(id types.RequestID, results []byte) types.Hash {
	return Keccak256Hash(id.Bytes(), results)
}

// SignAttestation signs a result digest with the oracle's key, producing a
// 65-byte [R || S || V] signature.
func SignAttestation(key *ecdsa.PrivateKey, id types.RequestID, results []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	digest := AttestationDigest(id, results)
	return ethcrypto.Sign(digest.Bytes(), key)
}

// RecoverAttestor recovers the signer address from an attestation signature.
func RecoverAttestor(id types.RequestID, results, sig []byte) (types.Address, error) {
	digest := AttestationDigest(id, results)
	pub, err := ethcrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return types.Address{}, ErrInvalidAttestation
	}
	addr := ethcrypto.PubkeyToAddress(*pub)
	return types.BytesToAddress(addr.Bytes()), nil
}

// VerifyAttestation checks that sig over (id, results) was produced by
// expected. A hard failure here must reject the whole callback.
func VerifyAttestation(expected types.Address, id types.RequestID, results, sig []byte) error {
	signer, err := RecoverAttestor(id, results, sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return ErrInvalidAttestation
	}
	return nil
}

// GenerateOracleKey creates a fresh secp256k1 key pair and returns the key
// with its derived address. Used when provisioning an in-process oracle.
func GenerateOracleKey() (*ecdsa.PrivateKey, types.Address, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, types.Address{}, err
	}
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	return key, types.BytesToAddress(addr.Bytes()), nil
}
