package game

import (
	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/fhe"
	"github.com/cipherword/cipherword/metrics"
	"github.com/cipherword/cipherword/oracle"
)

// StartGame begins a round against a room. Only the relayer (or the owner as
// fallback) may call it, since the caller is trusted to have encrypted the
// correct secret word. Entry fees are deducted from every member through the
// silent-select path and the encrypted deductions accumulate into the prize
// pool.
func (e *Engine) StartGame(caller types.Address, roomID uint64, word []fhe.InputCiphertext, wordLength int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard.Enter(); err != nil {
		return 0, err
	}
	defer e.guard.Exit()

	if err := e.acl.RequireOperator(caller); err != nil {
		return 0, err
	}
	room, ok := e.rooms[roomID]
	if !ok {
		return 0, ErrRoomNotFound
	}
	if !room.Active {
		return 0, ErrRoomInactive
	}
	if room.MemberCount() < e.params.MinPlayers {
		return 0, ErrTooFewPlayers
	}
	if wordLength < e.params.MinWordLength || wordLength > e.params.MaxWordLength {
		return 0, ErrWordLength
	}
	if len(word) != wordLength {
		return 0, ErrWordLength
	}
	if room.CurrentRound != 0 {
		if prev, ok := e.rounds[room.CurrentRound]; ok && !prev.Complete {
			return 0, ErrRoundActive
		}
	}

	// Import the encrypted word before any state mutation so a malformed
	// symbol rejects the whole call.
	symbols := make([]types.Ciphertext, wordLength)
	for i, in := range word {
		handle, err := e.fhe.EncryptInput(in, caller)
		if err != nil {
			return 0, err
		}
		symbols[i] = handle
	}

	// Collect entry fees. A member with insufficient encrypted balance is
	// silently skipped by the select inside the ledger; the pool only grows
	// by what was actually deducted.
	fee := e.fhe.TrivialEncrypt(e.params.EntryFee)
	pool := room.PrizePool
	for _, member := range room.Members {
		deducted, err := e.ledger.DeductEntryFee(member, fee)
		if err != nil {
			return 0, err
		}
		pool, err = e.fhe.Add(pool, deducted)
		if err != nil {
			return 0, err
		}
	}
	room.PrizePool = pool
	e.fhe.GrantAccess(room.PrizePool, e.self)

	// Fresh submission window: per-round player fields reset, lifetime
	// counters persist.
	for _, p := range room.Players {
		p.HasGuessed = false
		p.LastCorrect = false
		p.AttemptsUsed = 0
	}

	now := e.now()
	e.roundSeq++
	round := &types.GameRound{
		ID:         e.roundSeq,
		RoomID:     roomID,
		Word:       symbols,
		WordLength: wordLength,
		StartedAt:  now,
		EndsAt:     now + e.params.RoundDuration,
	}
	e.rounds[round.ID] = round
	room.CurrentRound = round.ID

	metrics.RoundsStarted.Inc()
	e.logger.Info("round started", "room", roomID, "round", round.ID, "length", wordLength)
	e.emit(types.EventGameStarted, types.GameStartedEvent{
		RoomID:     roomID,
		RoundID:    round.ID,
		WordLength: wordLength,
		StartedAt:  round.StartedAt,
		EndsAt:     round.EndsAt,
	})
	return round.ID, nil
}

// SubmitGuess accepts an encrypted guess, compares it symbol-by-symbol
// against the secret word homomorphically, and issues a decryption request
// for the single derived all-positions-match boolean. The result arrives
// later via HandleDecryptionResult; the returned request id correlates the
// two.
func (e *Engine) SubmitGuess(caller types.Address, roundID uint64, symbols []fhe.InputCiphertext) (types.RequestID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard.Enter(); err != nil {
		return types.RequestID{}, err
	}
	defer e.guard.Exit()

	round, ok := e.rounds[roundID]
	if !ok {
		return types.RequestID{}, ErrRoundNotFound
	}
	room := e.rooms[round.RoomID]
	player, ok := room.Member(caller)
	if !ok {
		return types.RequestID{}, ErrNotMember
	}
	if !player.Active {
		return types.RequestID{}, ErrPlayerInactive
	}
	if round.Complete {
		return types.RequestID{}, ErrRoundComplete
	}
	now := e.now()
	if now > round.EndsAt {
		return types.RequestID{}, ErrRoundExpired
	}
	if player.AttemptsUsed >= e.params.MaxAttempts {
		return types.RequestID{}, ErrAttemptsExhausted
	}
	if len(symbols) != round.WordLength {
		return types.RequestID{}, ErrGuessLength
	}

	// Per-symbol equality, folded into one encrypted boolean. Costs more
	// operations than a whole-word compare but keeps the word and guess as
	// individual symbols, which later partial-reveal features need.
	var match types.Ciphertext
	for i, in := range symbols {
		guess, err := e.fhe.EncryptInput(in, caller)
		if err != nil {
			return types.RequestID{}, err
		}
		eq, err := e.fhe.Eq(guess, round.Word[i])
		if err != nil {
			return types.RequestID{}, err
		}
		if i == 0 {
			match = eq
			continue
		}
		match, err = e.fhe.And(match, eq)
		if err != nil {
			return types.RequestID{}, err
		}
	}

	if err := e.fhe.GrantAccess(match, e.disp.OracleAddress()); err != nil {
		return types.RequestID{}, err
	}
	id, err := e.dec.RequestDecryption([]types.Ciphertext{match}, now+e.params.RequestDeadline)
	if err != nil {
		return types.RequestID{}, err
	}

	attempt := player.AttemptsUsed + 1
	pending := &types.PendingGuessRequest{
		ID:          id,
		RoundID:     roundID,
		Player:      caller,
		SubmittedAt: now,
		Attempt:     attempt,
	}
	if err := e.disp.TrackGuess(pending); err != nil {
		return types.RequestID{}, err
	}
	player.AttemptsUsed = attempt
	player.HasGuessed = true
	player.LastGuessAt = now

	metrics.GuessesSubmitted.Inc()
	metrics.DecryptionsPending.Inc()
	e.emit(types.EventGuessSubmitted, types.GuessSubmittedEvent{
		RoomID:    round.RoomID,
		RoundID:   roundID,
		Player:    caller,
		Attempt:   attempt,
		RequestID: id,
		Timestamp: now,
	})
	return id, nil
}

// HandleDecryptionResult is the single callback entry point for the oracle.
// The attestation is verified first; a forged callback is rejected hard.
// Unknown or already-consumed request ids are absorbed as no-ops so the
// oracle's own invocation never fails on stale state.
func (e *Engine) HandleDecryptionResult(res oracle.Result) error {
	if err := e.disp.Authenticate(res); err != nil {
		metrics.CallbacksRejected.Inc()
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	kind, ok := e.disp.Kind(res.ID)
	if !ok {
		metrics.CallbacksStale.Inc()
		e.logger.Warn("dropping callback for unknown request", "request", res.ID)
		return nil
	}

	switch kind {
	case oracle.KindReveal:
		if rec, ok := e.disp.ConsumeReveal(res.ID); ok && len(res.Values) > 0 {
			e.ledger.ApplyReveal(rec, res.Values[0])
		}
	case oracle.KindGuess:
		if rec, ok := e.disp.ConsumeGuess(res.ID); ok {
			metrics.DecryptionsPending.Dec()
			e.applyGuess(rec, res.Bool())
		}
	}
	return nil
}

// ForceCompleteRound re-invokes completion evaluation for a round whose end
// time has passed but whose callbacks never arrived. Relayer/owner-only.
func (e *Engine) ForceCompleteRound(caller types.Address, roundID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := e.acl.RequireOperator(caller); err != nil {
		return err
	}
	round, ok := e.rounds[roundID]
	if !ok {
		return ErrRoundNotFound
	}
	e.evaluateCompletion(round)
	return nil
}
