package oracle

import (
	"crypto/ecdsa"
	"encoding/binary"
	"sync"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/crypto"
	"github.com/cipherword/cipherword/fhe"
)

// MemoryOracle is an in-process decryption oracle. Requests are queued, not
// answered inline, so the continuation always runs as a separate invocation;
// tests drive delivery explicitly and may reorder or replay it. Every
// delivered result carries a secp256k1 attestation from the oracle key.
type MemoryOracle struct {
	mu        sync.Mutex
	opener    fhe.Opener
	key       *ecdsa.PrivateKey
	addr      types.Address
	sink      CallbackSink
	seq       uint64
	queue     map[types.RequestID][]types.Ciphertext
	order     []types.RequestID
	deadlines map[types.RequestID]uint64
}

// NewMemoryOracle creates an oracle with a fresh attestation key, opening
// ciphertexts through opener.
func NewMemoryOracle(opener fhe.Opener) (*MemoryOracle, error) {
	key, addr, err := crypto.GenerateOracleKey()
	if err != nil {
		return nil, err
	}
	return &MemoryOracle{
		opener:    opener,
		key:       key,
		addr:      addr,
		queue:     make(map[types.RequestID][]types.Ciphertext),
		deadlines: make(map[types.RequestID]uint64),
	}, nil
}

// Address returns the oracle's attestation address. Handles submitted for
// decryption must have been granted to this principal.
func (o *MemoryOracle) Address() types.Address { return o.addr }

// SetSink installs the callback target for delivered results.
func (o *MemoryOracle) SetSink(sink CallbackSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sink = sink
}

// RequestDecryption queues the handles for later delivery and returns the
// request id. It never invokes the sink inline.
func (o *MemoryOracle) RequestDecryption(handles []types.Ciphertext, deadline uint64) (types.RequestID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seq++
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], o.seq)
	parts := [][]byte{seqBytes[:]}
	for _, h := range handles {
		parts = append(parts, h.Bytes())
	}
	id := types.RequestID(crypto.Keccak256Hash(parts...))

	queued := make([]types.Ciphertext, len(handles))
	copy(queued, handles)
	o.queue[id] = queued
	o.order = append(o.order, id)
	o.deadlines[id] = deadline
	return id, nil
}

// Pending returns the number of undelivered requests.
func (o *MemoryOracle) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Deliver opens the handles of one queued request, signs the result and
// hands it to the sink. Delivery order is up to the caller; out-of-order and
// selective delivery are how tests model oracle latency.
func (o *MemoryOracle) Deliver(id types.RequestID) error {
	o.mu.Lock()
	handles, ok := o.queue[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownRequest
	}
	delete(o.queue, id)
	delete(o.deadlines, id)
	for i, queued := range o.order {
		if queued == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	sink := o.sink
	o.mu.Unlock()

	res, err := o.resolve(id, handles)
	if err != nil {
		return err
	}
	if sink != nil {
		sink(res)
	}
	return nil
}

// DeliverAll delivers every queued request in issue order.
func (o *MemoryOracle) DeliverAll() error {
	for {
		o.mu.Lock()
		if len(o.order) == 0 {
			o.mu.Unlock()
			return nil
		}
		next := o.order[0]
		o.mu.Unlock()

		if err := o.Deliver(next); err != nil {
			return err
		}
	}
}

// Replay re-delivers a previously resolved result verbatim. Used in tests to
// exercise the at-most-once callback law; the engine must absorb it.
func (o *MemoryOracle) Replay(res Result) {
	o.mu.Lock()
	sink := o.sink
	o.mu.Unlock()
	if sink != nil {
		sink(res)
	}
}

// resolve opens each handle as the oracle principal and attests the values.
func (o *MemoryOracle) resolve(id types.RequestID, handles []types.Ciphertext) (Result, error) {
	values := make([]uint64, len(handles))
	for i, h := range handles {
		v, err := o.opener.Open(h, o.addr)
		if err != nil {
			return Result{}, err
		}
		values[i] = v
	}
	sig, err := crypto.SignAttestation(o.key, id, EncodeValues(values))
	if err != nil {
		return Result{}, err
	}
	return Result{ID: id, Values: values, Sig: sig}, nil
}
