package types

// Ciphertext is an opaque handle referencing an encrypted value. Handles are
// produced and consumed exclusively by the homomorphic engine; no plaintext
// can be derived from one without a decryption oracle round-trip.
type Ciphertext Hash

// Bytes returns the byte representation of the handle.
func (c Ciphertext) Bytes() []byte { return c[:] }

// Hex returns the hex string representation of the handle.
func (c Ciphertext) Hex() string { return Hash(c).Hex() }

// IsZero returns whether the handle is unset.
func (c Ciphertext) IsZero() bool {
	return c == Ciphertext{}
}

// String implements fmt.Stringer.
func (c Ciphertext) String() string { return c.Hex() }

// MarshalJSON encodes the handle as a 0x-prefixed hex string.
func (c Ciphertext) MarshalJSON() ([]byte, error) { return Hash(c).MarshalJSON() }

// UnmarshalJSON decodes a 0x-prefixed hex string into the handle.
func (c *Ciphertext) UnmarshalJSON(data []byte) error { return (*Hash)(c).UnmarshalJSON(data) }

// RequestID identifies an asynchronous decryption request. Exactly one
// callback is expected per id.
type RequestID Hash

// Bytes returns the byte representation of the request id.
func (r RequestID) Bytes() []byte { return r[:] }

// Hex returns the hex string representation of the request id.
func (r RequestID) Hex() string { return Hash(r).Hex() }

// IsZero returns whether the request id is unset.
func (r RequestID) IsZero() bool {
	return r == RequestID{}
}

// String implements fmt.Stringer.
func (r RequestID) String() string { return r.Hex() }

// MarshalJSON encodes the request id as a 0x-prefixed hex string.
func (r RequestID) MarshalJSON() ([]byte, error) { return Hash(r).MarshalJSON() }

// UnmarshalJSON decodes a 0x-prefixed hex string into the request id.
func (r *RequestID) UnmarshalJSON(data []byte) error { return (*Hash)(r).UnmarshalJSON(data) }

// Player is the room-scoped record of a member. Score, RoundsWon and XP
// persist for the lifetime of the room; HasGuessed, LastCorrect and
// AttemptsUsed are given a fresh window each time a new round starts.
type Player struct {
	Wallet       Address
	Name         string
	Score        uint64
	RoundsWon    uint64
	XP           uint64
	Active       bool
	HasGuessed   bool
	LastCorrect  bool
	LastGuessAt  uint64
	AttemptsUsed uint8
}

// Room groups players around a shared encrypted prize pool. Membership is
// append-only up to capacity; the index map gives O(1) lookup while Members
// preserves join order.
type Room struct {
	ID           uint64
	Creator      Address
	Members      []Address
	Index        map[Address]int
	Players      []*Player
	Active       bool
	CreatedAt    uint64
	CurrentRound uint64 // 0 = no round started yet
	PrizePool    Ciphertext
}

// NewRoom creates an active room seeded with its creator as first member.
func NewRoom(id uint64, creator Address, name string, now uint64) *Room {
	r := &Room{
		ID:        id,
		Creator:   creator,
		Index:     make(map[Address]int),
		Active:    true,
		CreatedAt: now,
	}
	r.AddMember(creator, name, now)
	return r
}

// AddMember appends a new member. The caller is responsible for capacity and
// uniqueness checks.
func (r *Room) AddMember(wallet Address, name string, now uint64) *Player {
	p := &Player{
		Wallet: wallet,
		Name:   name,
		Active: true,
	}
	r.Index[wallet] = len(r.Members)
	r.Members = append(r.Members, wallet)
	r.Players = append(r.Players, p)
	return p
}

// Member returns the player record for wallet, if present.
func (r *Room) Member(wallet Address) (*Player, bool) {
	i, ok := r.Index[wallet]
	if !ok {
		return nil, false
	}
	return r.Players[i], true
}

// IsMember reports whether wallet has joined the room.
func (r *Room) IsMember(wallet Address) bool {
	_, ok := r.Index[wallet]
	return ok
}

// MemberCount returns the number of joined members.
func (r *Room) MemberCount() int { return len(r.Members) }

// GameRound is one guessing round against a secret word held as an ordered
// sequence of encrypted symbols. Rounds are never deleted; completion is
// irreversible.
type GameRound struct {
	ID               uint64
	RoomID           uint64
	Word             []Ciphertext
	WordLength       int
	StartedAt        uint64
	EndsAt           uint64
	Qualified        []Address // qualification order, hard-capped
	Complete         bool
	PrizeDistributed bool
}

// IsQualified reports whether wallet is in the qualified set.
func (g *GameRound) IsQualified(wallet Address) bool {
	for _, q := range g.Qualified {
		if q == wallet {
			return true
		}
	}
	return false
}

// QualifiedCount returns the size of the qualified set.
func (g *GameRound) QualifiedCount() int { return len(g.Qualified) }

// Unqualify removes wallet from the qualified set, preserving order.
func (g *GameRound) Unqualify(wallet Address) {
	for i, q := range g.Qualified {
		if q == wallet {
			g.Qualified = append(g.Qualified[:i], g.Qualified[i+1:]...)
			return
		}
	}
}

// Expired reports whether the round's submission window has passed.
func (g *GameRound) Expired(now uint64) bool {
	return now > g.EndsAt
}

// PendingGuessRequest correlates an oracle request id to the guess that
// produced it. Consumed exactly once when the callback fires.
type PendingGuessRequest struct {
	ID          RequestID
	RoundID     uint64
	Player      Address
	SubmittedAt uint64
	Attempt     uint8
}

// PendingBalanceReveal correlates an oracle request id to the principal that
// asked for their balance in plaintext.
type PendingBalanceReveal struct {
	ID        RequestID
	Principal Address
}
