package oracle

import (
	"sync"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/crypto"
	"github.com/cipherword/cipherword/log"
)

// PendingKind distinguishes what a tracked request will resolve into.
type PendingKind uint8

const (
	KindGuess PendingKind = iota + 1
	KindReveal
)

// pendingEntry is the reified continuation of one in-flight request.
type pendingEntry struct {
	kind   PendingKind
	guess  *types.PendingGuessRequest
	reveal *types.PendingBalanceReveal
}

// Dispatcher correlates inbound oracle callbacks to their pending records.
// Each record is consumed at most once; callbacks for unknown or already
// consumed ids are absorbed by the caller as no-ops. Authentication failures
// are the only hard rejections on this path.
type Dispatcher struct {
	mu         sync.Mutex
	oracleAddr types.Address
	pending    map[types.RequestID]*pendingEntry
	logger     *log.Logger
}

// NewDispatcher creates a dispatcher trusting callbacks signed by oracleAddr.
func NewDispatcher(oracleAddr types.Address) *Dispatcher {
	return &Dispatcher{
		oracleAddr: oracleAddr,
		pending:    make(map[types.RequestID]*pendingEntry),
		logger:     log.Default().Module("oracle"),
	}
}

// OracleAddress returns the trusted callback signer.
func (d *Dispatcher) OracleAddress() types.Address { return d.oracleAddr }

// TrackGuess registers a pending guess-validation request.
func (d *Dispatcher) TrackGuess(req *types.PendingGuessRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.pending[req.ID]; exists {
		return ErrDuplicateRequest
	}
	d.pending[req.ID] = &pendingEntry{kind: KindGuess, guess: req}
	return nil
}

// TrackReveal registers a pending balance-reveal request.
func (d *Dispatcher) TrackReveal(req *types.PendingBalanceReveal) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.pending[req.ID]; exists {
		return ErrDuplicateRequest
	}
	d.pending[req.ID] = &pendingEntry{kind: KindReveal, reveal: req}
	return nil
}

// Authenticate verifies the attestation on a result against the registered
// oracle address. Must be called before the result is applied; a failure
// here rejects the whole callback.
func (d *Dispatcher) Authenticate(res Result) error {
	err := crypto.VerifyAttestation(d.oracleAddr, res.ID, EncodeValues(res.Values), res.Sig)
	if err != nil {
		d.logger.Error("rejecting forged oracle callback", "request", res.ID, "err", err)
		return ErrUnauthenticatedCallback
	}
	return nil
}

// ConsumeGuess removes and returns the pending guess for id. The second
// return is false for unknown, already consumed, or non-guess ids; callers
// treat that as a defensive no-op.
func (d *Dispatcher) ConsumeGuess(id types.RequestID) (*types.PendingGuessRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[id]
	if !ok || entry.kind != KindGuess {
		d.logger.Warn("stale or unknown guess callback", "request", id)
		return nil, false
	}
	delete(d.pending, id)
	return entry.guess, true
}

// ConsumeReveal removes and returns the pending balance reveal for id.
func (d *Dispatcher) ConsumeReveal(id types.RequestID) (*types.PendingBalanceReveal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[id]
	if !ok || entry.kind != KindReveal {
		d.logger.Warn("stale or unknown reveal callback", "request", id)
		return nil, false
	}
	delete(d.pending, id)
	return entry.reveal, true
}

// Kind reports what a tracked id would resolve into, without consuming it.
func (d *Dispatcher) Kind(id types.RequestID) (PendingKind, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[id]
	if !ok {
		return 0, false
	}
	return entry.kind, true
}

// PendingCount returns the number of live pending records.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
