package main

import (
	"github.com/rs/zerolog/log"
)

// StartGame moves a lobby into play. Host only, needs at least two seats.
// A finished room stays finished; players create a new room to go again.
func (m *Manager) StartGame(code, requesterID string) error {
	room, ok := m.room(code)
	if !ok {
		return errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.touch()

	if requesterID != room.HostID {
		log.Warn().
			Str("room_code", code).
			Str("player_id", requesterID).
			Str("host_id", room.HostID).
			Msg("Non-host attempted to start game")
		return errNotHost
	}
	if room.Game.Ended {
		return errGameOver
	}
	if room.Game.Started {
		return errAlreadyStarted
	}
	if len(room.Players) < 2 {
		return errNotEnoughPlayers
	}

	g := room.Game
	g.Started = true
	g.CurrentTurn = 0
	g.Round = 1
	g.RollsLeft = 3
	g.Dice = []int{1, 1, 1, 1, 1}
	room.turnSeq++

	first := room.Players[0]

	log.Info().
		Str("room_code", code).
		Str("current_player", first.ID).
		Int("player_count", len(room.Players)).
		Msg("Game started")

	m.emit(room, "game:started", map[string]interface{}{
		"currentTurn":   g.CurrentTurn,
		"currentPlayer": first.ID,
	})
	m.emit(room, "room:update", room.updatePayload())
	m.emit(room, "room:log", map[string]interface{}{"event": "game:started", "by": requesterID})

	if first.IsBot {
		m.scheduleBotTurn(room.Code, first.ID, room.turnSeq, m.botTurnDelay)
	}
	return nil
}

// Roll rerolls every die not marked kept and burns one roll. The turn does
// not change. Dice come from crypto/rand so sequences are unpredictable.
func (m *Manager) Roll(code, requesterID string, keep []bool) ([]int, int, error) {
	room, ok := m.room(code)
	if !ok {
		return nil, 0, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.touch()

	g := room.Game
	if !g.Started {
		return nil, 0, errNotStarted
	}
	current := room.currentPlayer()
	if requesterID != current.ID {
		log.Debug().
			Str("room_code", code).
			Str("player_id", requesterID).
			Str("expected_player", current.ID).
			Msg("Roll attempted out of turn")
		return nil, 0, errNotYourTurn
	}
	if g.RollsLeft <= 0 {
		return nil, 0, errNoRollsLeft
	}

	for i := 0; i < 5; i++ {
		if i >= len(keep) || !keep[i] {
			g.Dice[i] = rollDie()
		}
	}
	g.RollsLeft--

	log.Debug().
		Str("room_code", code).
		Str("player_id", requesterID).
		Ints("dice", g.Dice).
		Int("rolls_left", g.RollsLeft).
		Msg("Dice rolled")

	m.emit(room, "game:rolled", map[string]interface{}{
		"dice":      g.Dice,
		"rollsLeft": g.RollsLeft,
		"playerId":  current.ID,
	})
	m.emit(room, "room:log", map[string]interface{}{
		"event": "game:rolled",
		"by":    requesterID,
		"dice":  g.Dice,
	})
	return g.Dice, g.RollsLeft, nil
}

// ScoreCategory records the current hand into one of the caller's unused
// categories, then hands the turn on.
func (m *Manager) ScoreCategory(code, requesterID string, category Category) (int, error) {
	room, ok := m.room(code)
	if !ok {
		return 0, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.touch()

	g := room.Game
	if !g.Started {
		return 0, errNotStarted
	}
	current := room.currentPlayer()
	if requesterID != current.ID {
		log.Debug().
			Str("room_code", code).
			Str("player_id", requesterID).
			Str("expected_player", current.ID).
			Msg("Score attempted out of turn")
		return 0, errNotYourTurn
	}
	if !validCategory(category) {
		return 0, errUnknownCategory
	}
	if _, used := current.Scorecard[category]; used {
		return 0, errCategoryUsed
	}

	value := m.applyScore(room, current, category)
	m.emit(room, "room:update", room.updatePayload())
	return value, nil
}

// applyScore is the single scoring entry point shared by humans and bots:
// write the value, recompute the total, advance the turn and evaluate the
// end condition. Callers hold room.mu and have already validated the move.
func (m *Manager) applyScore(room *Room, player *Player, category Category) int {
	g := room.Game
	value := scoreCategory(g.Dice, category)
	player.Scorecard[category] = value
	player.Score = totalScore(player.Scorecard)

	log.Info().
		Str("room_code", room.Code).
		Str("player_id", player.ID).
		Str("category", string(category)).
		Int("score", value).
		Int("total_score", player.Score).
		Msg("Score recorded")

	m.emit(room, "game:scored", map[string]interface{}{
		"playerId":   player.ID,
		"playerName": player.Name,
		"category":   category,
		"score":      value,
	})

	m.advanceTurn(room)
	m.finishOrNext(room)
	return value
}

// advanceTurn rotates to the next seat, bumps the round when the rotation
// wraps, and resets dice and roll budget. Callers hold room.mu.
func (m *Manager) advanceTurn(room *Room) {
	g := room.Game
	g.CurrentTurn = (g.CurrentTurn + 1) % len(room.Players)
	if g.CurrentTurn == 0 {
		g.Round++
	}
	g.Dice = []int{1, 1, 1, 1, 1}
	g.RollsLeft = 3
	room.turnSeq++
}

// gameOver reports whether the end condition holds: every scorecard is full,
// or the round counter ran past the last round.
func (room *Room) gameOver() bool {
	if room.Game.Round > room.Game.MaxRounds {
		return true
	}
	for _, p := range room.Players {
		if len(p.Scorecard) < len(Categories) {
			return false
		}
	}
	return true
}

// winner is the highest scorer; ties go to the earliest seat in join order.
func (room *Room) winner() *Player {
	best := room.Players[0]
	for _, p := range room.Players[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best
}

// finishOrNext runs after every turn advance: either close the game out and
// publish final standings, or announce the next turn and wake the next bot.
// Callers hold room.mu.
func (m *Manager) finishOrNext(room *Room) {
	g := room.Game
	if room.gameOver() {
		g.Started = false
		g.Ended = true

		winner := room.winner()
		finalScores := make([]map[string]interface{}, 0, len(room.Players))
		for _, p := range room.Players {
			finalScores = append(finalScores, map[string]interface{}{
				"id":    p.ID,
				"name":  p.Name,
				"score": p.Score,
			})
		}

		log.Info().
			Str("room_code", room.Code).
			Str("winner_id", winner.ID).
			Str("winner_name", winner.Name).
			Int("final_score", winner.Score).
			Msg("Game ended")

		m.emit(room, "game:ended", map[string]interface{}{
			"winner":      winner,
			"finalScores": finalScores,
		})
		m.emit(room, "room:log", map[string]interface{}{
			"event":  "game:ended",
			"winner": winner.Name,
			"score":  winner.Score,
		})
		return
	}

	next := room.currentPlayer()
	m.emit(room, "game:nextTurn", map[string]interface{}{
		"currentTurn":   g.CurrentTurn,
		"currentPlayer": next.ID,
		"round":         g.Round,
	})

	if next.IsBot {
		m.scheduleBotTurn(room.Code, next.ID, room.turnSeq, m.botTurnDelay)
	}
}
