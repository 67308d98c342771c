package game

import (
	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/metrics"
)

// applyGuess applies a decrypted guess result. The pending record has been
// consumed, so a replayed callback never reaches here. State is re-validated
// at apply time: the round or room may have been completed or deactivated
// since the request was issued. Caller holds the engine lock.
func (e *Engine) applyGuess(rec *types.PendingGuessRequest, correct bool) {
	round, ok := e.rounds[rec.RoundID]
	if !ok {
		metrics.CallbacksStale.Inc()
		return
	}
	room, ok := e.rooms[round.RoomID]
	if !ok {
		metrics.CallbacksStale.Inc()
		return
	}
	if round.Complete || !room.Active {
		metrics.CallbacksStale.Inc()
		e.logger.Warn("dropping callback for settled round", "round", rec.RoundID, "request", rec.ID)
		return
	}
	player, ok := room.Member(rec.Player)
	if !ok {
		metrics.CallbacksStale.Inc()
		return
	}

	now := e.now()
	// Idempotence: a player already marked correct cannot qualify twice or
	// double-increment score, whichever order their callbacks land in.
	if correct && !player.LastCorrect {
		player.LastCorrect = true
		player.Score++
		player.RoundsWon++
		if len(round.Qualified) < e.params.QualifiedCap {
			round.Qualified = append(round.Qualified, rec.Player)
		}

		xp := e.params.XPBase
		reason := "correct guess"
		if rec.SubmittedAt-round.StartedAt < e.params.XPSpeedWindow {
			xp += e.params.XPSpeedBonus
			reason = "fast correct guess"
		}
		if rec.Attempt == 1 {
			xp += e.params.XPFirstTry
		}
		e.awardXP(room, player, xp, reason)
	}

	metrics.CallbacksApplied.Inc()
	e.emit(types.EventGuessResolved, types.GuessResolvedEvent{
		RoomID:    round.RoomID,
		RoundID:   round.ID,
		Player:    rec.Player,
		Correct:   correct,
		Timestamp: now,
	})

	e.evaluateCompletion(round)
}

// allResolved reports whether every active member has either exhausted their
// attempts or is marked correct.
func (e *Engine) allResolved(room *types.Room) bool {
	for _, p := range room.Players {
		if !p.Active {
			continue
		}
		if p.AttemptsUsed < e.params.MaxAttempts && !p.LastCorrect {
			return false
		}
	}
	return true
}

// evaluateCompletion decides whether the round is over and, on the single
// transition to complete, settles it: refund on zero qualifiers, full prize
// to a lone winner, nothing for 2-4 (the relayer starts the next stage), and
// a prune down to the bounded top-N when over-subscribed. Re-entry after
// completion is a no-op. Caller holds the engine lock.
func (e *Engine) evaluateCompletion(round *types.GameRound) {
	if round.Complete {
		return
	}
	room, ok := e.rooms[round.RoomID]
	if !ok {
		return
	}
	now := e.now()
	if !round.Expired(now) && !e.allResolved(room) {
		return
	}

	round.Complete = true
	metrics.RoundsCompleted.Inc()

	if round.QualifiedCount() > e.params.PruneTarget {
		e.prune(room, round)
	}

	e.emit(types.EventRoundCompleted, types.RoundCompletedEvent{
		RoomID:         round.RoomID,
		RoundID:        round.ID,
		QualifiedCount: round.QualifiedCount(),
		Timestamp:      now,
	})

	switch round.QualifiedCount() {
	case 0:
		e.refundAll(room, round, now)
	case 1:
		e.awardWinner(room, round, now)
	default:
		// 2..PruneTarget qualified: the round stands and the tournament
		// continues. Advancing to the next word-length stage is the
		// relayer's job via a fresh StartGame call.
		e.logger.Info("round complete, tournament continues",
			"round", round.ID, "qualified", round.QualifiedCount())
	}
}

// prune bounds the qualified set to PruneTarget players, keeping
// qualification insertion order (not guess speed) and eliminating the
// excess.
func (e *Engine) prune(room *types.Room, round *types.GameRound) {
	excess := round.Qualified[e.params.PruneTarget:]
	round.Qualified = round.Qualified[:e.params.PruneTarget]
	for _, wallet := range excess {
		if p, ok := room.Member(wallet); ok {
			p.Active = false
			p.LastCorrect = false
		}
	}
	e.logger.Info("qualified set pruned", "round", round.ID, "kept", e.params.PruneTarget, "dropped", len(excess))
}

// refundAll returns the fixed entry fee to every member and ends the game
// with no winner.
func (e *Engine) refundAll(room *types.Room, round *types.GameRound, now uint64) {
	fee := e.fhe.TrivialEncrypt(e.params.EntryFee)
	for _, member := range room.Members {
		if err := e.ledger.Credit(member, fee); err != nil {
			e.logger.Error("refund failed", "member", member, "err", err)
			continue
		}
		metrics.RefundsIssued.Inc()
	}
	room.Active = false
	e.logger.Info("round refunded", "round", round.ID, "members", room.MemberCount())
	e.emit(types.EventGameEnded, types.GameEndedEvent{
		RoomID:    round.RoomID,
		RoundID:   round.ID,
		Timestamp: now,
	})
}

// awardWinner credits the entire encrypted prize pool to the lone qualified
// player and ends the game.
func (e *Engine) awardWinner(room *types.Room, round *types.GameRound, now uint64) {
	winner := round.Qualified[0]
	if err := e.ledger.Credit(winner, room.PrizePool); err != nil {
		e.logger.Error("prize credit failed", "winner", winner, "err", err)
		return
	}
	round.PrizeDistributed = true
	room.PrizePool = e.fhe.TrivialEncrypt(0)
	room.Active = false

	if p, ok := room.Member(winner); ok {
		e.awardXP(room, p, e.params.XPWinnerBonus, "game winner")
	}

	metrics.PrizesDistributed.Inc()
	e.logger.Info("prize distributed", "round", round.ID, "winner", winner)
	e.emit(types.EventPrizeDistributed, types.PrizeDistributedEvent{
		RoomID:    round.RoomID,
		RoundID:   round.ID,
		Winner:    winner,
		Timestamp: now,
	})
	e.emit(types.EventGameEnded, types.GameEndedEvent{
		RoomID:    round.RoomID,
		RoundID:   round.ID,
		Winner:    &winner,
		Timestamp: now,
	})
}

// awardXP credits experience points and emits the award. Caller holds the
// engine lock.
func (e *Engine) awardXP(room *types.Room, p *types.Player, amount uint64, reason string) {
	p.XP += amount
	e.emit(types.EventXPAwarded, types.XPAwardedEvent{
		RoomID:    room.ID,
		Player:    p.Wallet,
		Amount:    amount,
		Reason:    reason,
		Timestamp: e.now(),
	})
}
