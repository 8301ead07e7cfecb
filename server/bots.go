package main

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Bot turns run as delayed tasks so spectators can follow along. There is no
// cancellation: a task captures the room code, the bot's ID and the turn
// sequence at scheduling time, and revalidates all three when it fires. A
// task for a deleted room or a turn that already moved on is a no-op.

func (m *Manager) scheduleBotTurn(code, botID string, seq uint64, delay time.Duration) {
	time.AfterFunc(delay, func() {
		m.botTurn(code, botID, seq)
	})
}

// botTurn performs the roll phase of an automated turn, then schedules the
// category pick after the pacing delay.
func (m *Manager) botTurn(code, botID string, seq uint64) {
	room, bot, ok := m.claimBotTurn(code, botID, seq)
	if !ok {
		return
	}
	defer room.mu.Unlock()

	m.runBotRolls(room, bot)

	m.schedulePick(room.Code, botID, seq, m.botPickDelay)
}

func (m *Manager) schedulePick(code, botID string, seq uint64, delay time.Duration) {
	time.AfterFunc(delay, func() {
		m.botPick(code, botID, seq)
	})
}

// botPick scores the bot's hand into its best open category.
func (m *Manager) botPick(code, botID string, seq uint64) {
	room, bot, ok := m.claimBotTurn(code, botID, seq)
	if !ok {
		return
	}
	defer room.mu.Unlock()

	category := bestCategory(bot, room.Game.Dice)
	m.applyScore(room, bot, category)
	m.emit(room, "room:update", room.updatePayload())
}

// claimBotTurn re-fetches the room and verifies the scheduled task is still
// valid. On success the room is returned locked; the caller must unlock.
func (m *Manager) claimBotTurn(code, botID string, seq uint64) (*Room, *Player, bool) {
	room, ok := m.room(code)
	if !ok {
		log.Debug().Str("room_code", code).Msg("Dropping bot task for deleted room")
		return nil, nil, false
	}

	room.mu.Lock()
	g := room.Game
	bot := room.playerByID(botID)
	if !g.Started || g.Ended || room.turnSeq != seq ||
		bot == nil || !bot.IsBot || room.currentPlayer() != bot {
		room.mu.Unlock()
		log.Debug().
			Str("room_code", code).
			Str("bot_id", botID).
			Uint64("seq", seq).
			Msg("Dropping stale bot task")
		return nil, nil, false
	}
	room.touch()
	return room, bot, true
}

// runBotRolls executes the per-level roll script. Level 1 takes a single
// blind roll; level 2 rerolls singletons once; level 3 re-evaluates its keep
// mask and rerolls a third time. Every intermediate hand is broadcast with
// the remaining roll count so clients can animate it. Callers hold room.mu.
func (m *Manager) runBotRolls(room *Room, bot *Player) {
	g := room.Game

	if bot.Level <= 1 {
		for i := 0; i < 5; i++ {
			g.Dice[i] = rollDie()
		}
		g.RollsLeft = 0
		m.emitBotRoll(room, bot)
		return
	}

	for i := 0; i < 5; i++ {
		g.Dice[i] = rollDie()
	}
	g.RollsLeft = 2
	m.emitBotRoll(room, bot)

	keep := keepMask(g.Dice)
	for i := 0; i < 5; i++ {
		if !keep[i] {
			g.Dice[i] = rollDie()
		}
	}
	g.RollsLeft = 1
	m.emitBotRoll(room, bot)

	if bot.Level >= 3 {
		// Widen the mask with whatever paired up on the second roll.
		for i, k := range keepMask(g.Dice) {
			if k {
				keep[i] = true
			}
		}
		for i := 0; i < 5; i++ {
			if !keep[i] {
				g.Dice[i] = rollDie()
			}
		}
	}

	g.RollsLeft = 0
	m.emitBotRoll(room, bot)
}

func (m *Manager) emitBotRoll(room *Room, bot *Player) {
	log.Debug().
		Str("room_code", room.Code).
		Str("bot_id", bot.ID).
		Ints("dice", room.Game.Dice).
		Int("rolls_left", room.Game.RollsLeft).
		Msg("Bot rolled")

	m.emit(room, "game:rolled", map[string]interface{}{
		"dice":      room.Game.Dice,
		"rollsLeft": room.Game.RollsLeft,
		"playerId":  bot.ID,
	})
}

// keepMask marks every die whose face shows up more than once in the hand.
func keepMask(dice []int) [5]bool {
	counts := faceCounts(dice)
	var keep [5]bool
	for i, d := range dice {
		if counts[d] > 1 {
			keep[i] = true
		}
	}
	return keep
}

// bestCategory picks the highest-paying open category for the hand. Ties go
// to the earliest category in the fixed enumeration order, which keeps bot
// behavior deterministic for a given hand.
func bestCategory(player *Player, dice []int) Category {
	best := Categories[0]
	bestScore := -1
	for _, cat := range Categories {
		if _, used := player.Scorecard[cat]; used {
			continue
		}
		if s := scoreCategory(dice, cat); s > bestScore {
			bestScore = s
			best = cat
		}
	}
	return best
}
