package fhe

import (
	"errors"
	"testing"

	"github.com/cipherword/cipherword/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestEncryptInputProofBinding(t *testing.T) {
	e := NewMemoryEngine()
	alice := addr(1)
	bob := addr(2)

	in := EncodeInput(42, alice)
	if _, err := e.EncryptInput(in, alice); err != nil {
		t.Fatalf("EncryptInput with valid proof: %v", err)
	}

	// The same input submitted by a different principal must fail: the proof
	// binds the raw bytes to the submitter.
	if _, err := e.EncryptInput(in, bob); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("want ErrInvalidProof for foreign submitter, got %v", err)
	}

	// Tampered raw bytes must fail too.
	bad := in
	bad.Raw = append([]byte{}, in.Raw...)
	bad.Raw[0] ^= 0xff
	if _, err := e.EncryptInput(bad, alice); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("want ErrInvalidProof for tampered raw, got %v", err)
	}
}

func TestArithmetic(t *testing.T) {
	e := NewMemoryEngine()
	oracle := addr(9)

	open := func(h types.Ciphertext) uint64 {
		if err := e.GrantAccess(h, oracle); err != nil {
			t.Fatalf("GrantAccess: %v", err)
		}
		v, err := e.Open(h, oracle)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return v
	}

	a := e.TrivialEncrypt(30)
	b := e.TrivialEncrypt(12)

	sum, err := e.Add(a, b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := open(sum); got != 42 {
		t.Fatalf("Add: want 42, got %d", got)
	}

	diff, err := e.Sub(a, b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got := open(diff); got != 18 {
		t.Fatalf("Sub: want 18, got %d", got)
	}

	ge, err := e.Ge(a, b)
	if err != nil {
		t.Fatalf("Ge: %v", err)
	}
	if got := open(ge); got != 1 {
		t.Fatalf("Ge(30,12): want 1, got %d", got)
	}
	lt, err := e.Ge(b, a)
	if err != nil {
		t.Fatalf("Ge: %v", err)
	}
	if got := open(lt); got != 0 {
		t.Fatalf("Ge(12,30): want 0, got %d", got)
	}

	eq, err := e.Eq(a, a)
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	if got := open(eq); got != 1 {
		t.Fatalf("Eq(a,a): want 1, got %d", got)
	}

	and, err := e.And(ge, lt)
	if err != nil {
		t.Fatalf("And: %v", err)
	}
	if got := open(and); got != 0 {
		t.Fatalf("And(1,0): want 0, got %d", got)
	}
}

func TestSelect(t *testing.T) {
	e := NewMemoryEngine()
	oracle := addr(9)

	truthy := e.TrivialEncrypt(1)
	falsy := e.TrivialEncrypt(0)
	fee := e.TrivialEncrypt(10)
	zero := e.TrivialEncrypt(0)

	open := func(h types.Ciphertext) uint64 {
		e.GrantAccess(h, oracle)
		v, err := e.Open(h, oracle)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return v
	}

	picked, err := e.Select(truthy, fee, zero)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := open(picked); got != 10 {
		t.Fatalf("Select(true): want 10, got %d", got)
	}

	picked, err = e.Select(falsy, fee, zero)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := open(picked); got != 0 {
		t.Fatalf("Select(false): want 0, got %d", got)
	}
}

func TestSelectProducesFreshHandle(t *testing.T) {
	e := NewMemoryEngine()

	cond := e.TrivialEncrypt(1)
	fee := e.TrivialEncrypt(10)
	zero := e.TrivialEncrypt(0)

	picked, err := e.Select(cond, fee, zero)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// The result handle must not alias either branch: observers cannot tell
	// which branch was taken from the handle alone.
	if picked == fee || picked == zero {
		t.Fatalf("Select result aliases a branch handle")
	}
}

func TestAccessControl(t *testing.T) {
	e := NewMemoryEngine()
	alice := addr(1)
	eve := addr(6)

	h := e.TrivialEncrypt(7)

	if _, err := e.Open(h, eve); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied without grant, got %v", err)
	}
	if e.HasAccess(h, alice) {
		t.Fatal("HasAccess before grant: want false")
	}

	if err := e.GrantAccess(h, alice); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}
	if !e.HasAccess(h, alice) {
		t.Fatal("HasAccess after grant: want true")
	}
	v, err := e.Open(h, alice)
	if err != nil {
		t.Fatalf("Open after grant: %v", err)
	}
	if v != 7 {
		t.Fatalf("Open: want 7, got %d", v)
	}

	// Grants are per-handle, not transitive to derived handles.
	sum, err := e.Add(h, h)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := e.Open(sum, alice); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied on derived handle, got %v", err)
	}
}

func TestUnknownHandle(t *testing.T) {
	e := NewMemoryEngine()
	var bogus types.Ciphertext
	bogus[0] = 0xde

	if _, err := e.Add(bogus, e.TrivialEncrypt(1)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("want ErrInvalidCiphertext, got %v", err)
	}
	if err := e.GrantAccess(bogus, addr(1)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("GrantAccess on unknown handle: want ErrInvalidCiphertext, got %v", err)
	}
}

func TestEncodeWord(t *testing.T) {
	alice := addr(1)
	e := NewMemoryEngine()
	oracle := addr(9)

	in := EncodeWord("CAT", alice)
	if len(in) != 3 {
		t.Fatalf("want 3 symbols, got %d", len(in))
	}
	for i, want := range []uint64{'C', 'A', 'T'} {
		h, err := e.EncryptInput(in[i], alice)
		if err != nil {
			t.Fatalf("EncryptInput symbol %d: %v", i, err)
		}
		e.GrantAccess(h, oracle)
		got, err := e.Open(h, oracle)
		if err != nil {
			t.Fatalf("Open symbol %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("symbol %d: want %d, got %d", i, want, got)
		}
	}
}
