package fhe

import (
	"encoding/binary"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/crypto"
)

// EncodeInput serializes a plaintext value with its binding proof for
// submitter. Production deployments receive inputs already encrypted by the
// client SDK; this helper serves the in-process engine and the relayer.
func EncodeInput(value uint64, submitter types.Address) InputCiphertext {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return InputCiphertext{
		Raw:   raw,
		Proof: crypto.InputProof(raw, submitter),
	}
}

// EncodeSymbol serializes a single word symbol (e.g. an uppercase letter)
// with its binding proof for submitter.
func EncodeSymbol(symbol byte, submitter types.Address) InputCiphertext {
	raw := []byte{symbol}
	return InputCiphertext{
		Raw:   raw,
		Proof: crypto.InputProof(raw, submitter),
	}
}

// EncodeWord encodes each symbol of word for submitter, preserving order.
func EncodeWord(word string, submitter types.Address) []InputCiphertext {
	in := make([]InputCiphertext, len(word))
	for i := 0; i < len(word); i++ {
		in[i] = EncodeSymbol(word[i], submitter)
	}
	return in
}
