// Package ledger maintains per-principal encrypted balances. Every mutation
// is a homomorphic add, sub or select; no plaintext branch ever depends on a
// balance. The only way a balance becomes visible is a reveal request routed
// through the decryption oracle back to the owning principal.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/fhe"
	"github.com/cipherword/cipherword/log"
	"github.com/cipherword/cipherword/metrics"
	"github.com/cipherword/cipherword/oracle"
)

var (
	// ErrNoAccount is returned when an operation requires an account that
	// was never created by a deposit.
	ErrNoAccount = errors.New("ledger: principal has no account")

	// ErrNotSelf is returned when a principal asks to reveal a balance that
	// is not their own.
	ErrNotSelf = errors.New("ledger: can only reveal own balance")
)

// Account holds one principal's encrypted balance. Accounts are created on
// first deposit and never deleted.
type Account struct {
	Balance types.Ciphertext
	Exists  bool
}

// Emitter receives observable ledger events. Satisfied by node.EventBus.
type Emitter interface {
	Emit(t types.EventType, data any)
}

// Ledger is the encrypted balance book.
type Ledger struct {
	mu       sync.Mutex
	engine   fhe.Engine
	dec      oracle.Decryptor
	disp     *oracle.Dispatcher
	self     types.Address
	accounts map[types.Address]*Account
	emitter  Emitter
	now      func() uint64
	deadline uint64 // seconds granted to the oracle per reveal request
	logger   *log.Logger
}

// NewLedger creates a ledger operating through engine and issuing reveal
// requests via dec, correlated by disp. self is the ledger's own principal,
// granted decryption rights on every balance it keeps operating on.
func NewLedger(engine fhe.Engine, dec oracle.Decryptor, disp *oracle.Dispatcher, self types.Address, deadline uint64) *Ledger {
	return &Ledger{
		engine:   engine,
		dec:      dec,
		disp:     disp,
		self:     self,
		accounts: make(map[types.Address]*Account),
		now:      func() uint64 { return uint64(time.Now().Unix()) },
		deadline: deadline,
		logger:   log.Default().Module("ledger"),
	}
}

// SetEmitter installs the event sink.
func (l *Ledger) SetEmitter(e Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitter = e
}

// SetClock overrides the time source. Tests drive this.
func (l *Ledger) SetClock(now func() uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) emit(t types.EventType, data any) {
	if l.emitter != nil {
		l.emitter.Emit(t, data)
	}
}

// grantOperating gives the ledger and the owning principal decryption rights
// over a fresh balance handle. Caller must hold the lock.
func (l *Ledger) grantOperating(handle types.Ciphertext, principal types.Address) {
	l.engine.GrantAccess(handle, l.self)
	l.engine.GrantAccess(handle, principal)
}

// Deposit imports an encrypted amount into the principal's balance, creating
// the account on first use. Guaranteed to succeed for any valid ciphertext;
// a malformed input fails at the fhe layer with ErrInvalidProof.
func (l *Ledger) Deposit(principal types.Address, in fhe.InputCiphertext) error {
	amount, err := l.engine.EncryptInput(in, principal)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[principal]
	if !ok {
		acct = &Account{Balance: amount, Exists: true}
		l.accounts[principal] = acct
	} else {
		sum, err := l.engine.Add(acct.Balance, amount)
		if err != nil {
			return err
		}
		acct.Balance = sum
	}
	l.grantOperating(acct.Balance, principal)

	metrics.Deposits.Inc()
	l.emit(types.EventBalanceDeposited, types.BalanceDepositedEvent{
		Principal: principal,
		Timestamp: l.now(),
	})
	return nil
}

// DeductEntryFee subtracts fee from the principal's balance when it is
// sufficient and leaves it untouched otherwise, via a single homomorphic
// select. Insufficiency is deliberately unobservable to the caller: the
// returned handle is the encrypted amount actually deducted (fee or zero),
// suitable for prize-pool accumulation, and the call never rejects on
// insufficient funds.
func (l *Ledger) DeductEntryFee(principal types.Address, fee types.Ciphertext) (types.Ciphertext, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[principal]
	if !ok {
		return types.Ciphertext{}, ErrNoAccount
	}

	sufficient, err := l.engine.Ge(acct.Balance, fee)
	if err != nil {
		return types.Ciphertext{}, err
	}
	debited, err := l.engine.Sub(acct.Balance, fee)
	if err != nil {
		return types.Ciphertext{}, err
	}
	next, err := l.engine.Select(sufficient, debited, acct.Balance)
	if err != nil {
		return types.Ciphertext{}, err
	}
	acct.Balance = next
	l.grantOperating(acct.Balance, principal)

	zero := l.engine.TrivialEncrypt(0)
	deducted, err := l.engine.Select(sufficient, fee, zero)
	if err != nil {
		return types.Ciphertext{}, err
	}
	return deducted, nil
}

// Credit unconditionally adds amount to the principal's balance. Used for
// prizes and refunds.
func (l *Ledger) Credit(principal types.Address, amount types.Ciphertext) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[principal]
	if !ok {
		return ErrNoAccount
	}
	sum, err := l.engine.Add(acct.Balance, amount)
	if err != nil {
		return err
	}
	acct.Balance = sum
	l.grantOperating(acct.Balance, principal)
	return nil
}

// Exists reports whether the principal has ever deposited.
func (l *Ledger) Exists(principal types.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[principal]
	return ok && acct.Exists
}

// BalanceHandle returns the principal's current balance handle.
func (l *Ledger) BalanceHandle(principal types.Address) (types.Ciphertext, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[principal]
	if !ok {
		return types.Ciphertext{}, false
	}
	return acct.Balance, true
}

// RequestReveal issues an asynchronous decryption of caller's own balance.
// The plaintext arrives later through the dispatcher as a balance-revealed
// event; the call returns as soon as the request is registered.
func (l *Ledger) RequestReveal(caller types.Address) (types.RequestID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[caller]
	if !ok {
		return types.RequestID{}, ErrNoAccount
	}

	if err := l.engine.GrantAccess(acct.Balance, l.disp.OracleAddress()); err != nil {
		return types.RequestID{}, err
	}
	id, err := l.dec.RequestDecryption([]types.Ciphertext{acct.Balance}, l.now()+l.deadline)
	if err != nil {
		return types.RequestID{}, err
	}
	if err := l.disp.TrackReveal(&types.PendingBalanceReveal{ID: id, Principal: caller}); err != nil {
		return types.RequestID{}, err
	}
	metrics.DecryptionsPending.Inc()
	return id, nil
}

// ApplyReveal publishes a plaintext balance delivered by the oracle. The
// pending record has already been consumed by the dispatcher; this step only
// emits the observable result to the original principal.
func (l *Ledger) ApplyReveal(rec *types.PendingBalanceReveal, value uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	metrics.DecryptionsPending.Dec()
	l.logger.Info("balance revealed", "principal", rec.Principal, "request", rec.ID)
	l.emit(types.EventBalanceRevealed, types.BalanceRevealedEvent{
		Principal: rec.Principal,
		RequestID: rec.ID,
		Value:     value,
		Timestamp: l.now(),
	})
}
