package access

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

const delay = 86400 // seconds

func TestRequireRoles(t *testing.T) {
	owner := addr(1)
	relayer := addr(2)
	stranger := addr(3)
	c := NewController(owner, relayer, delay)

	if err := c.RequireOwner(owner); err != nil {
		t.Fatalf("RequireOwner(owner): %v", err)
	}
	if err := c.RequireOwner(relayer); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("RequireOwner(relayer): want ErrNotOwner, got %v", err)
	}

	if err := c.RequireOperator(relayer); err != nil {
		t.Fatalf("RequireOperator(relayer): %v", err)
	}
	// Owner fallback keeps games from freezing if the relayer stalls.
	if err := c.RequireOperator(owner); err != nil {
		t.Fatalf("RequireOperator(owner): %v", err)
	}
	if err := c.RequireOperator(stranger); !errors.Is(err, ErrNotRelayer) {
		t.Fatalf("RequireOperator(stranger): want ErrNotRelayer, got %v", err)
	}
}

func TestTwoStepRotation(t *testing.T) {
	owner := addr(1)
	relayer := addr(2)
	candidate := addr(4)
	c := NewController(owner, relayer, delay)

	// --- only the owner may propose ---
	if err := c.ProposeRelayer(relayer, candidate, 1000); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("propose by relayer: want ErrNotOwner, got %v", err)
	}
	if err := c.ProposeRelayer(owner, candidate, 1000); err != nil {
		t.Fatalf("ProposeRelayer: %v", err)
	}

	pending, at, ok := c.Pending()
	if !ok || pending != candidate || at != 1000 {
		t.Fatalf("Pending: want (%s, 1000, true), got (%s, %d, %v)", candidate, pending, at, ok)
	}

	// --- only the candidate may accept ---
	if err := c.AcceptRelayer(relayer, 1000+delay); !errors.Is(err, ErrNotCandidate) {
		t.Fatalf("accept by relayer: want ErrNotCandidate, got %v", err)
	}

	// --- acceptance before the delay elapses fails ---
	if err := c.AcceptRelayer(candidate, 1000+delay-1); !errors.Is(err, ErrDelayNotMet) {
		t.Fatalf("early accept: want ErrDelayNotMet, got %v", err)
	}
	if got := c.Relayer(); got != relayer {
		t.Fatalf("relayer changed early: want %s, got %s", relayer, got)
	}

	// --- at the boundary it succeeds ---
	if err := c.AcceptRelayer(candidate, 1000+delay); err != nil {
		t.Fatalf("AcceptRelayer at boundary: %v", err)
	}
	if got := c.Relayer(); got != candidate {
		t.Fatalf("relayer after accept: want %s, got %s", candidate, got)
	}
	if _, _, ok := c.Pending(); ok {
		t.Fatal("proposal must be cleared after acceptance")
	}
}

func TestProposalOverwriteRestartsDelay(t *testing.T) {
	owner := addr(1)
	c := NewController(owner, addr(2), delay)

	if err := c.ProposeRelayer(owner, addr(4), 1000); err != nil {
		t.Fatalf("ProposeRelayer: %v", err)
	}
	if err := c.ProposeRelayer(owner, addr(5), 2000); err != nil {
		t.Fatalf("second ProposeRelayer: %v", err)
	}

	// The first candidate lost their slot entirely.
	if err := c.AcceptRelayer(addr(4), 2000+delay); !errors.Is(err, ErrNotCandidate) {
		t.Fatalf("stale candidate accept: want ErrNotCandidate, got %v", err)
	}
	// The new candidate's delay counts from the new proposal.
	if err := c.AcceptRelayer(addr(5), 1000+delay); !errors.Is(err, ErrDelayNotMet) {
		t.Fatalf("accept against old clock: want ErrDelayNotMet, got %v", err)
	}
	if err := c.AcceptRelayer(addr(5), 2000+delay); err != nil {
		t.Fatalf("AcceptRelayer: %v", err)
	}
}

func TestCancelRotation(t *testing.T) {
	owner := addr(1)
	c := NewController(owner, addr(2), delay)

	if _, err := c.CancelRelayerTransfer(owner); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("cancel without proposal: want ErrNoProposal, got %v", err)
	}

	c.ProposeRelayer(owner, addr(4), 1000)
	canceled, err := c.CancelRelayerTransfer(owner)
	if err != nil {
		t.Fatalf("CancelRelayerTransfer: %v", err)
	}
	if canceled != addr(4) {
		t.Fatalf("canceled candidate: want %s, got %s", addr(4), canceled)
	}
	if err := c.AcceptRelayer(addr(4), 1000+delay); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("accept after cancel: want ErrNoProposal, got %v", err)
	}
}

func TestZeroAddressRejected(t *testing.T) {
	owner := addr(1)
	c := NewController(owner, addr(2), delay)

	if err := c.ProposeRelayer(owner, types.Address{}, 0); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("propose zero: want ErrZeroAddress, got %v", err)
	}
	if err := c.SetRelayer(owner, types.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("set zero: want ErrZeroAddress, got %v", err)
	}
	if err := c.TransferOwnership(owner, types.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("transfer to zero: want ErrZeroAddress, got %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	owner := addr(1)
	next := addr(6)
	c := NewController(owner, addr(2), delay)

	if err := c.TransferOwnership(addr(3), next); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("transfer by stranger: want ErrNotOwner, got %v", err)
	}
	if err := c.TransferOwnership(owner, next); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if got := c.Owner(); got != next {
		t.Fatalf("owner: want %s, got %s", next, got)
	}
	// Old owner lost their privileges at once.
	if err := c.RequireOwner(owner); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("old owner: want ErrNotOwner, got %v", err)
	}
}

func TestGuard(t *testing.T) {
	var g Guard
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("nested Enter: want ErrReentrantCall, got %v", err)
	}
	g.Exit()
	if err := g.Enter(); err != nil {
		t.Fatalf("Enter after Exit: %v", err)
	}
}
