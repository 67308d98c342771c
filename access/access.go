// Package access implements the principal model of the engine: an owner with
// full administrative control, a relayer trusted to start and force-complete
// rounds, a two-step time-delayed relayer rotation, and a reentrancy guard
// for value-moving entry points.
package access

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cipherword/cipherword/core/types"
)

var (
	ErrNotOwner      = errors.New("access: caller is not the owner")
	ErrNotRelayer    = errors.New("access: caller is not the relayer")
	ErrNotCandidate  = errors.New("access: caller is not the proposed relayer")
	ErrNoProposal    = errors.New("access: no pending relayer proposal")
	ErrDelayNotMet   = errors.New("access: rotation delay has not elapsed")
	ErrZeroAddress   = errors.New("access: zero address")
	ErrReentrantCall = errors.New("access: reentrant call")
)

// Controller tracks the owner and relayer roles. Relayer rotation is
// two-step with a mandatory delay so a rushed or mistaken change cannot take
// effect instantly; SetRelayer remains as a deliberate owner-only emergency
// override next to it.
type Controller struct {
	mu         sync.Mutex
	owner      types.Address
	relayer    types.Address
	candidate  types.Address
	proposedAt uint64
	delay      uint64 // seconds between proposal and acceptance
}

// NewController creates a controller with the initial owner and relayer.
func NewController(owner, relayer types.Address, delay uint64) *Controller {
	return &Controller{owner: owner, relayer: relayer, delay: delay}
}

// Owner returns the current owner.
func (c *Controller) Owner() types.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Relayer returns the current relayer.
func (c *Controller) Relayer() types.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relayer
}

// Pending returns the proposed relayer and proposal time, if any.
func (c *Controller) Pending() (types.Address, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.candidate.IsZero() {
		return types.Address{}, 0, false
	}
	return c.candidate, c.proposedAt, true
}

// RequireOwner rejects callers other than the owner.
func (c *Controller) RequireOwner(caller types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	return nil
}

// RequireOperator rejects callers that are neither the relayer nor the
// owner. The owner fallback exists so a stuck relayer cannot freeze games.
func (c *Controller) RequireOperator(caller types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.relayer && caller != c.owner {
		return ErrNotRelayer
	}
	return nil
}

// TransferOwnership hands the owner role to newOwner (single-step).
func (c *Controller) TransferOwnership(caller, newOwner types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	if newOwner.IsZero() {
		return ErrZeroAddress
	}
	c.owner = newOwner
	return nil
}

// ProposeRelayer records a rotation candidate. Owner-only; overwrites any
// earlier pending proposal and restarts the delay.
func (c *Controller) ProposeRelayer(caller, candidate types.Address, now uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	if candidate.IsZero() {
		return ErrZeroAddress
	}
	c.candidate = candidate
	c.proposedAt = now
	return nil
}

// AcceptRelayer finalizes a pending rotation. Only the proposed candidate
// may call it, and only once the mandatory delay has elapsed.
func (c *Controller) AcceptRelayer(caller types.Address, now uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.candidate.IsZero() {
		return ErrNoProposal
	}
	if caller != c.candidate {
		return ErrNotCandidate
	}
	if now < c.proposedAt+c.delay {
		return ErrDelayNotMet
	}
	c.relayer = c.candidate
	c.candidate = types.Address{}
	c.proposedAt = 0
	return nil
}

// CancelRelayerTransfer aborts a pending proposal. Owner-only.
func (c *Controller) CancelRelayerTransfer(caller types.Address) (types.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return types.Address{}, ErrNotOwner
	}
	if c.candidate.IsZero() {
		return types.Address{}, ErrNoProposal
	}
	canceled := c.candidate
	c.candidate = types.Address{}
	c.proposedAt = 0
	return canceled, nil
}

// SetRelayer swaps the relayer immediately, bypassing the two-step path.
//
// Deprecated: emergency override only; use ProposeRelayer/AcceptRelayer.
func (c *Controller) SetRelayer(caller, relayer types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return ErrNotOwner
	}
	if relayer.IsZero() {
		return ErrZeroAddress
	}
	c.relayer = relayer
	return nil
}

// Guard fences a logical call against re-entering itself mid-mutation. It is
// a non-blocking latch, not a mutex: a nested entry fails instead of waiting.
type Guard struct {
	entered atomic.Bool
}

// Enter claims the guard, failing with ErrReentrantCall if already held.
func (g *Guard) Enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard.
func (g *Guard) Exit() {
	g.entered.Store(false)
}
