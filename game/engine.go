// Package game implements the confidential word-game engine: room registry,
// round lifecycle, the guess -> homomorphic compare -> decryption request ->
// callback -> resolution pipeline, and tournament progression with prize
// distribution. All branching on secret data happens through the oracle
// dispatcher; the engine itself never observes a plaintext balance or word.
package game

import (
	"errors"
	"sync"
	"time"

	"github.com/cipherword/cipherword/access"
	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/fhe"
	"github.com/cipherword/cipherword/ledger"
	"github.com/cipherword/cipherword/log"
	"github.com/cipherword/cipherword/oracle"
)

var (
	ErrRoomNotFound      = errors.New("game: room not found")
	ErrRoundNotFound     = errors.New("game: round not found")
	ErrRoomFull          = errors.New("game: room is full")
	ErrRoomInactive      = errors.New("game: room is not active")
	ErrAlreadyMember     = errors.New("game: already a member")
	ErrNotMember         = errors.New("game: not a room member")
	ErrPlayerInactive    = errors.New("game: player has been eliminated")
	ErrNoAccount         = errors.New("game: principal has no ledger account")
	ErrInvalidName       = errors.New("game: display name must be 1-20 characters")
	ErrWordLength        = errors.New("game: word length must be 3-5 symbols")
	ErrGuessLength       = errors.New("game: guess length does not match word")
	ErrTooFewPlayers     = errors.New("game: at least 2 members required")
	ErrRoundActive       = errors.New("game: room already has a live round")
	ErrRoundComplete     = errors.New("game: round already complete")
	ErrRoundExpired      = errors.New("game: round submission window closed")
	ErrAttemptsExhausted = errors.New("game: no attempts remaining")
)

// Params are the tunable constants of the game. Zero values are never valid;
// use DefaultParams as the base.
type Params struct {
	RoomCapacity    int    // hard cap on members per room
	MinPlayers      int    // members required before a round can start
	MinWordLength   int    // shortest secret word
	MaxWordLength   int    // longest secret word
	MaxAttempts     uint8  // guesses per player per round
	RoundDuration   uint64 // seconds from round start to end
	QualifiedCap    int    // hard cap on qualified-set appends
	PruneTarget     int    // qualified players kept when over-subscribed
	EntryFee        uint64 // units deducted per member at round start
	RequestDeadline uint64 // seconds granted to the oracle per request
	XPBase          uint64 // XP for a correct guess
	XPSpeedBonus    uint64 // extra XP for a fast correct guess
	XPSpeedWindow   uint64 // seconds from round start counting as fast
	XPFirstTry      uint64 // extra XP when the correct guess was attempt #1
	XPWinnerBonus   uint64 // extra XP for winning the game
	NameMaxLen      int    // display name upper bound
}

// DefaultParams returns the reference parameters.
func DefaultParams() Params {
	return Params{
		RoomCapacity:    5,
		MinPlayers:      2,
		MinWordLength:   3,
		MaxWordLength:   5,
		MaxAttempts:     2,
		RoundDuration:   60,
		QualifiedCap:    10,
		PruneTarget:     4,
		EntryFee:        10,
		RequestDeadline: 100,
		XPBase:          100,
		XPSpeedBonus:    50,
		XPSpeedWindow:   20,
		XPFirstTry:      25,
		XPWinnerBonus:   200,
		NameMaxLen:      20,
	}
}

// Emitter receives observable game events. Satisfied by node.EventBus.
type Emitter interface {
	Emit(t types.EventType, data any)
}

// Engine is the confidential game state machine. Every operation is atomic
// with respect to all others; the only asynchrony is the oracle round-trip,
// whose continuation re-enters through HandleDecryptionResult as a separate,
// independently validated invocation.
type Engine struct {
	mu    sync.Mutex
	guard access.Guard

	params  Params
	fhe     fhe.Engine
	ledger  *ledger.Ledger
	dec     oracle.Decryptor
	disp    *oracle.Dispatcher
	acl     *access.Controller
	self    types.Address // engine principal, holds rights on prize pools
	emitter Emitter
	now     func() uint64
	logger  *log.Logger

	rooms    map[uint64]*types.Room
	rounds   map[uint64]*types.GameRound
	roomSeq  uint64
	roundSeq uint64
}

// NewEngine wires the engine against its collaborators. self is the engine's
// own principal, granted decryption rights on prize pools it operates on.
func NewEngine(params Params, fheEngine fhe.Engine, led *ledger.Ledger, dec oracle.Decryptor, disp *oracle.Dispatcher, acl *access.Controller, self types.Address) *Engine {
	return &Engine{
		params: params,
		fhe:    fheEngine,
		ledger: led,
		dec:    dec,
		disp:   disp,
		acl:    acl,
		self:   self,
		now:    func() uint64 { return uint64(time.Now().Unix()) },
		logger: log.Default().Module("game"),
		rooms:  make(map[uint64]*types.Room),
		rounds: make(map[uint64]*types.GameRound),
	}
}

// SetEmitter installs the event sink.
func (e *Engine) SetEmitter(em Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitter = em
}

// SetClock overrides the time source. Tests drive this.
func (e *Engine) SetClock(now func() uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Params returns the engine's parameters.
func (e *Engine) Params() Params { return e.params }

// Access returns the principal controller.
func (e *Engine) Access() *access.Controller { return e.acl }

// Ledger returns the encrypted balance ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

func (e *Engine) emit(t types.EventType, data any) {
	if e.emitter != nil {
		e.emitter.Emit(t, data)
	}
}

// ProposeRelayer starts the two-step relayer rotation. Owner-only.
func (e *Engine) ProposeRelayer(caller, candidate types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := e.acl.ProposeRelayer(caller, candidate, now); err != nil {
		return err
	}
	e.emit(types.EventRelayerProposed, types.RelayerProposedEvent{Candidate: candidate, Timestamp: now})
	return nil
}

// AcceptRelayer finalizes a pending rotation after the mandatory delay.
// Callable only by the proposed candidate.
func (e *Engine) AcceptRelayer(caller types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := e.acl.AcceptRelayer(caller, now); err != nil {
		return err
	}
	e.emit(types.EventRelayerAccepted, types.RelayerAcceptedEvent{Relayer: caller, Timestamp: now})
	return nil
}

// CancelRelayerTransfer aborts a pending rotation. Owner-only.
func (e *Engine) CancelRelayerTransfer(caller types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	canceled, err := e.acl.CancelRelayerTransfer(caller)
	if err != nil {
		return err
	}
	e.emit(types.EventRelayerCanceled, types.RelayerCanceledEvent{Candidate: canceled, Timestamp: e.now()})
	return nil
}

// SetRelayer swaps the relayer immediately.
//
// Deprecated: emergency override; prefer the two-step rotation.
func (e *Engine) SetRelayer(caller, relayer types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acl.SetRelayer(caller, relayer)
}

// TransferOwnership hands the owner role to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acl.TransferOwnership(caller, newOwner)
}
