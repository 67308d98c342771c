package game

import (
	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/metrics"
)

// validName bounds display names to 1..NameMaxLen characters.
func (e *Engine) validName(name string) bool {
	return len(name) >= 1 && len(name) <= e.params.NameMaxLen
}

// CreateRoom allocates a new active room with caller as first member. The
// caller must have deposited at least once.
func (e *Engine) CreateRoom(caller types.Address, name string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ledger.Exists(caller) {
		return 0, ErrNoAccount
	}
	if !e.validName(name) {
		return 0, ErrInvalidName
	}

	now := e.now()
	e.roomSeq++
	room := types.NewRoom(e.roomSeq, caller, name, now)
	room.PrizePool = e.fhe.TrivialEncrypt(0)
	e.fhe.GrantAccess(room.PrizePool, e.self)
	e.rooms[room.ID] = room

	metrics.RoomsCreated.Inc()
	e.logger.Info("room created", "room", room.ID, "creator", caller)
	e.emit(types.EventRoomCreated, types.RoomCreatedEvent{
		RoomID:    room.ID,
		Creator:   caller,
		Name:      name,
		Timestamp: now,
	})
	return room.ID, nil
}

// JoinRoom appends caller to a room's membership. Membership is append-only
// and strictly capacity-bounded.
func (e *Engine) JoinRoom(caller types.Address, roomID uint64, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !room.Active {
		return ErrRoomInactive
	}
	if room.MemberCount() >= e.params.RoomCapacity {
		return ErrRoomFull
	}
	if room.IsMember(caller) {
		return ErrAlreadyMember
	}
	if !e.ledger.Exists(caller) {
		return ErrNoAccount
	}
	if !e.validName(name) {
		return ErrInvalidName
	}

	now := e.now()
	room.AddMember(caller, name, now)
	e.emit(types.EventPlayerJoined, types.PlayerJoinedEvent{
		RoomID:    roomID,
		Wallet:    caller,
		Name:      name,
		Timestamp: now,
	})
	return nil
}

// PauseRoom permanently deactivates a room. Owner-only escape hatch; no
// round in the room can start afterwards.
func (e *Engine) PauseRoom(caller types.Address, roomID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.acl.RequireOwner(caller); err != nil {
		return err
	}
	room, ok := e.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Active = false
	e.logger.Warn("room paused by owner", "room", roomID)
	return nil
}

// RoomView is a race-free snapshot of a room for the read API.
type RoomView struct {
	ID           uint64          `json:"id"`
	Creator      types.Address   `json:"creator"`
	Members      []types.Address `json:"members"`
	Active       bool            `json:"active"`
	CreatedAt    uint64          `json:"createdAt"`
	CurrentRound uint64          `json:"currentRound"`
}

// PlayerView is a race-free snapshot of a player for the read API.
type PlayerView struct {
	Wallet       types.Address `json:"wallet"`
	Name         string        `json:"name"`
	Score        uint64        `json:"score"`
	RoundsWon    uint64        `json:"roundsWon"`
	XP           uint64        `json:"xp"`
	Active       bool          `json:"active"`
	HasGuessed   bool          `json:"hasGuessed"`
	LastCorrect  bool          `json:"lastCorrect"`
	AttemptsUsed uint8         `json:"attemptsUsed"`
}

// RoundView is a race-free snapshot of a round for the read API. The secret
// word never appears here, not even as handles.
type RoundView struct {
	ID               uint64          `json:"id"`
	RoomID           uint64          `json:"roomId"`
	WordLength       int             `json:"wordLength"`
	StartedAt        uint64          `json:"startedAt"`
	EndsAt           uint64          `json:"endsAt"`
	Qualified        []types.Address `json:"qualified"`
	Complete         bool            `json:"complete"`
	PrizeDistributed bool            `json:"prizeDistributed"`
}

// RoomInfo returns a snapshot of a room.
func (e *Engine) RoomInfo(roomID uint64) (RoomView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.rooms[roomID]
	if !ok {
		return RoomView{}, ErrRoomNotFound
	}
	members := make([]types.Address, len(room.Members))
	copy(members, room.Members)
	return RoomView{
		ID:           room.ID,
		Creator:      room.Creator,
		Members:      members,
		Active:       room.Active,
		CreatedAt:    room.CreatedAt,
		CurrentRound: room.CurrentRound,
	}, nil
}

// PlayerInfo returns a snapshot of a room member.
func (e *Engine) PlayerInfo(roomID uint64, wallet types.Address) (PlayerView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.rooms[roomID]
	if !ok {
		return PlayerView{}, ErrRoomNotFound
	}
	p, ok := room.Member(wallet)
	if !ok {
		return PlayerView{}, ErrNotMember
	}
	return PlayerView{
		Wallet:       p.Wallet,
		Name:         p.Name,
		Score:        p.Score,
		RoundsWon:    p.RoundsWon,
		XP:           p.XP,
		Active:       p.Active,
		HasGuessed:   p.HasGuessed,
		LastCorrect:  p.LastCorrect,
		AttemptsUsed: p.AttemptsUsed,
	}, nil
}

// RoundInfo returns a snapshot of a round.
func (e *Engine) RoundInfo(roundID uint64) (RoundView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, ok := e.rounds[roundID]
	if !ok {
		return RoundView{}, ErrRoundNotFound
	}
	qualified := make([]types.Address, len(round.Qualified))
	copy(qualified, round.Qualified)
	return RoundView{
		ID:               round.ID,
		RoomID:           round.RoomID,
		WordLength:       round.WordLength,
		StartedAt:        round.StartedAt,
		EndsAt:           round.EndsAt,
		Qualified:        qualified,
		Complete:         round.Complete,
		PrizeDistributed: round.PrizeDistributed,
	}, nil
}

// QualifiedPlayers returns the qualified set of a round in qualification
// order.
func (e *Engine) QualifiedPlayers(roundID uint64) ([]types.Address, error) {
	v, err := e.RoundInfo(roundID)
	if err != nil {
		return nil, err
	}
	return v.Qualified, nil
}

// XPOf returns a member's experience points in a room.
func (e *Engine) XPOf(roomID uint64, wallet types.Address) (uint64, error) {
	v, err := e.PlayerInfo(roomID, wallet)
	if err != nil {
		return 0, err
	}
	return v.XP, nil
}
