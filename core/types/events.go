package types

// EventType identifies the kind of game event published on the bus and
// persisted in the history journal.
type EventType string

// Every observable state transition of the engine emits exactly one event.
// Payloads carry enough identifiers for an external indexer to reconstruct
// full game history without re-querying state.
const (
	EventRoomCreated      EventType = "room.created"
	EventPlayerJoined     EventType = "room.playerJoined"
	EventGameStarted      EventType = "round.started"
	EventGuessSubmitted   EventType = "round.guessSubmitted"
	EventGuessResolved    EventType = "round.guessResolved"
	EventRoundCompleted   EventType = "round.completed"
	EventGameEnded        EventType = "game.ended"
	EventPrizeDistributed EventType = "game.prizeDistributed"
	EventBalanceDeposited EventType = "ledger.deposited"
	EventBalanceRevealed  EventType = "ledger.revealed"
	EventXPAwarded        EventType = "player.xpAwarded"
	EventRelayerProposed  EventType = "access.relayerProposed"
	EventRelayerAccepted  EventType = "access.relayerAccepted"
	EventRelayerCanceled  EventType = "access.relayerCanceled"
)

// RoomCreatedEvent is emitted when a room is allocated.
type RoomCreatedEvent struct {
	RoomID    uint64  `json:"roomId"`
	Creator   Address `json:"creator"`
	Name      string  `json:"name"`
	Timestamp uint64  `json:"timestamp"`
}

// PlayerJoinedEvent is emitted when a member joins a room.
type PlayerJoinedEvent struct {
	RoomID    uint64  `json:"roomId"`
	Wallet    Address `json:"wallet"`
	Name      string  `json:"name"`
	Timestamp uint64  `json:"timestamp"`
}

// GameStartedEvent is emitted when the relayer starts a round.
type GameStartedEvent struct {
	RoomID     uint64 `json:"roomId"`
	RoundID    uint64 `json:"roundId"`
	WordLength int    `json:"wordLength"`
	StartedAt  uint64 `json:"startedAt"`
	EndsAt     uint64 `json:"endsAt"`
}

// GuessSubmittedEvent is emitted when a guess enters the decryption pipeline.
type GuessSubmittedEvent struct {
	RoomID    uint64    `json:"roomId"`
	RoundID   uint64    `json:"roundId"`
	Player    Address   `json:"player"`
	Attempt   uint8     `json:"attempt"`
	RequestID RequestID `json:"requestId"`
	Timestamp uint64    `json:"timestamp"`
}

// GuessResolvedEvent is emitted for every guess callback, correct or not.
type GuessResolvedEvent struct {
	RoomID    uint64  `json:"roomId"`
	RoundID   uint64  `json:"roundId"`
	Player    Address `json:"player"`
	Correct   bool    `json:"correct"`
	Timestamp uint64  `json:"timestamp"`
}

// RoundCompletedEvent is emitted once per round, on the transition to the
// complete state.
type RoundCompletedEvent struct {
	RoomID         uint64 `json:"roomId"`
	RoundID        uint64 `json:"roundId"`
	QualifiedCount int    `json:"qualifiedCount"`
	Timestamp      uint64 `json:"timestamp"`
}

// GameEndedEvent is emitted when a room is deactivated by round resolution.
// Winner is nil when the round ended with a refund.
type GameEndedEvent struct {
	RoomID    uint64   `json:"roomId"`
	RoundID   uint64   `json:"roundId"`
	Winner    *Address `json:"winner,omitempty"`
	Timestamp uint64   `json:"timestamp"`
}

// PrizeDistributedEvent is emitted when the encrypted prize pool is credited
// to the winning player.
type PrizeDistributedEvent struct {
	RoomID    uint64  `json:"roomId"`
	RoundID   uint64  `json:"roundId"`
	Winner    Address `json:"winner"`
	Timestamp uint64  `json:"timestamp"`
}

// BalanceDepositedEvent is emitted on every ledger deposit. The amount stays
// encrypted; only the fact of the deposit is observable.
type BalanceDepositedEvent struct {
	Principal Address `json:"principal"`
	Timestamp uint64  `json:"timestamp"`
}

// BalanceRevealedEvent carries the plaintext balance delivered by the oracle
// back to the principal that requested it.
type BalanceRevealedEvent struct {
	Principal Address   `json:"principal"`
	RequestID RequestID `json:"requestId"`
	Value     uint64    `json:"value"`
	Timestamp uint64    `json:"timestamp"`
}

// XPAwardedEvent is emitted when experience points are credited.
type XPAwardedEvent struct {
	RoomID    uint64  `json:"roomId"`
	Player    Address `json:"player"`
	Amount    uint64  `json:"amount"`
	Reason    string  `json:"reason"`
	Timestamp uint64  `json:"timestamp"`
}

// RelayerProposedEvent is emitted when the owner proposes a relayer rotation.
type RelayerProposedEvent struct {
	Candidate Address `json:"candidate"`
	Timestamp uint64  `json:"timestamp"`
}

// RelayerAcceptedEvent is emitted when a proposed relayer takes over.
type RelayerAcceptedEvent struct {
	Relayer   Address `json:"relayer"`
	Timestamp uint64  `json:"timestamp"`
}

// RelayerCanceledEvent is emitted when the owner aborts a pending rotation.
type RelayerCanceledEvent struct {
	Candidate Address `json:"candidate"`
	Timestamp uint64  `json:"timestamp"`
}
