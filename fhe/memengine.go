package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/crypto"
)

// MemoryEngine is the reference Engine. Values are held sealed at rest with
// ChaCha20-Poly1305 under an engine-local key and addressed by handles
// derived from the sealed bytes. Arithmetic unseals inside the engine only;
// callers never observe plaintext.
type MemoryEngine struct {
	mu     sync.RWMutex
	key    []byte
	values map[types.Ciphertext][]byte // handle -> nonce || sealed value
	acl    map[types.Ciphertext]map[types.Address]struct{}
	seq    uint64
}

// NewMemoryEngine creates an engine with a fresh random sealing key.
func NewMemoryEngine() *MemoryEngine {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		panic("fhe: cannot read entropy: " + err.Error())
	}
	return &MemoryEngine{
		key:    key,
		values: make(map[types.Ciphertext][]byte),
		acl:    make(map[types.Ciphertext]map[types.Address]struct{}),
	}
}

// seal stores a plaintext value and returns its new handle. Caller must hold
// the write lock.
func (e *MemoryEngine) seal(v *uint256.Int) types.Ciphertext {
	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		panic("fhe: sealing cipher: " + err.Error())
	}
	e.seq++
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], e.seq)

	plain := v.Bytes32()
	box := aead.Seal(nil, nonce, plain[:], nil)

	blob := append(nonce, box...)
	handle := types.Ciphertext(crypto.Keccak256Hash(blob))
	e.values[handle] = blob
	return handle
}

// unseal opens a stored value. Caller must hold at least the read lock.
func (e *MemoryEngine) unseal(handle types.Ciphertext) (*uint256.Int, error) {
	blob, ok := e.values[handle]
	if !ok {
		return nil, ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	nonce := blob[:chacha20poly1305.NonceSize]
	plain, err := aead.Open(nil, nonce, blob[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return new(uint256.Int).SetBytes(plain), nil
}

// EncryptInput verifies the binding proof and imports the raw value.
func (e *MemoryEngine) EncryptInput(in InputCiphertext, submitter types.Address) (types.Ciphertext, error) {
	if len(in.Raw) == 0 || len(in.Raw) > 32 {
		return types.Ciphertext{}, ErrInvalidProof
	}
	expected := crypto.InputProof(in.Raw, submitter)
	if len(in.Proof) != len(expected) {
		return types.Ciphertext{}, ErrInvalidProof
	}
	for i := range expected {
		if in.Proof[i] != expected[i] {
			return types.Ciphertext{}, ErrInvalidProof
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seal(new(uint256.Int).SetBytes(in.Raw)), nil
}

// TrivialEncrypt imports a public constant.
func (e *MemoryEngine) TrivialEncrypt(value uint64) types.Ciphertext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seal(uint256.NewInt(value))
}

func (e *MemoryEngine) binop(a, b types.Ciphertext, f func(x, y *uint256.Int) *uint256.Int) (types.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	x, err := e.unseal(a)
	if err != nil {
		return types.Ciphertext{}, err
	}
	y, err := e.unseal(b)
	if err != nil {
		return types.Ciphertext{}, err
	}
	return e.seal(f(x, y)), nil
}

// Add returns a handle to a+b.
func (e *MemoryEngine) Add(a, b types.Ciphertext) (types.Ciphertext, error) {
	return e.binop(a, b, func(x, y *uint256.Int) *uint256.Int {
		return new(uint256.Int).Add(x, y)
	})
}

// Sub returns a handle to a-b, wrapping modulo 2^256.
func (e *MemoryEngine) Sub(a, b types.Ciphertext) (types.Ciphertext, error) {
	return e.binop(a, b, func(x, y *uint256.Int) *uint256.Int {
		return new(uint256.Int).Sub(x, y)
	})
}

// Ge returns a boolean handle to a >= b.
func (e *MemoryEngine) Ge(a, b types.Ciphertext) (types.Ciphertext, error) {
	return e.binop(a, b, func(x, y *uint256.Int) *uint256.Int {
		if x.Cmp(y) >= 0 {
			return uint256.NewInt(1)
		}
		return uint256.NewInt(0)
	})
}

// Eq returns a boolean handle to a == b.
func (e *MemoryEngine) Eq(a, b types.Ciphertext) (types.Ciphertext, error) {
	return e.binop(a, b, func(x, y *uint256.Int) *uint256.Int {
		if x.Eq(y) {
			return uint256.NewInt(1)
		}
		return uint256.NewInt(0)
	})
}

// And returns a boolean handle to a && b.
func (e *MemoryEngine) And(a, b types.Ciphertext) (types.Ciphertext, error) {
	return e.binop(a, b, func(x, y *uint256.Int) *uint256.Int {
		if !x.IsZero() && !y.IsZero() {
			return uint256.NewInt(1)
		}
		return uint256.NewInt(0)
	})
}

// Select returns a handle to (cond ? ifTrue : ifFalse).
func (e *MemoryEngine) Select(cond, ifTrue, ifFalse types.Ciphertext) (types.Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.unseal(cond)
	if err != nil {
		return types.Ciphertext{}, err
	}
	t, err := e.unseal(ifTrue)
	if err != nil {
		return types.Ciphertext{}, err
	}
	f, err := e.unseal(ifFalse)
	if err != nil {
		return types.Ciphertext{}, err
	}
	if !c.IsZero() {
		return e.seal(t), nil
	}
	return e.seal(f), nil
}

// GrantAccess gives principal decryption rights over handle.
func (e *MemoryEngine) GrantAccess(handle types.Ciphertext, principal types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.values[handle]; !ok {
		return ErrInvalidCiphertext
	}
	grants, ok := e.acl[handle]
	if !ok {
		grants = make(map[types.Address]struct{})
		e.acl[handle] = grants
	}
	grants[principal] = struct{}{}
	return nil
}

// HasAccess reports whether principal holds decryption rights on handle.
func (e *MemoryEngine) HasAccess(handle types.Ciphertext, principal types.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.acl[handle]
	if !ok {
		return false
	}
	_, ok = grants[principal]
	return ok
}

// Open decrypts a handle for a principal with access rights. Only the
// decryption oracle calls this; truncation to uint64 matches the value range
// the game operates on.
func (e *MemoryEngine) Open(handle types.Ciphertext, principal types.Address) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if grants, ok := e.acl[handle]; !ok {
		return 0, ErrAccessDenied
	} else if _, ok := grants[principal]; !ok {
		return 0, ErrAccessDenied
	}
	v, err := e.unseal(handle)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}
