package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxPlayers = 6

// Player is one seat in a room. ID is the transport session identity and is
// rebound when the same name rejoins; game logic must key players by ID,
// never by list position.
type Player struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Score        int              `json:"score"`
	Scorecard    map[Category]int `json:"scorecard"`
	IsBot        bool             `json:"isBot,omitempty"`
	Level        int              `json:"level,omitempty"`
	Disconnected bool             `json:"disconnected,omitempty"`
}

// GameState is the per-room turn machine state. An absent scorecard entry
// means unscored; a zero entry is a real zero score.
type GameState struct {
	Dice        []int `json:"dice"`
	RollsLeft   int   `json:"rollsLeft"`
	CurrentTurn int   `json:"currentTurn"`
	Started     bool  `json:"gameStarted"`
	Round       int   `json:"round"`
	MaxRounds   int   `json:"maxRounds"`

	// Ended is terminal: a finished room can never be restarted.
	Ended bool `json:"-"`
}

// Room is one isolated game session. All mutations happen under mu, which is
// the per-room critical section: no two handlers for the same room ever
// interleave their read-modify-write sequences.
type Room struct {
	Code    string
	HostID  string
	Players []*Player
	Game    *GameState

	mu sync.Mutex

	// turnSeq increments on every turn change. Delayed bot tasks capture it
	// at scheduling time and no-op when it no longer matches.
	turnSeq      uint64
	lastActivity time.Time
}

func newGameState() *GameState {
	return &GameState{
		Dice:        []int{1, 1, 1, 1, 1},
		RollsLeft:   3,
		CurrentTurn: 0,
		Started:     false,
		Round:       1,
		MaxRounds:   len(Categories),
	}
}

// currentPlayer returns the player whose turn it is. Callers hold r.mu.
func (r *Room) currentPlayer() *Player {
	return r.Players[r.Game.CurrentTurn%len(r.Players)]
}

func (r *Room) playerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByName(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) touch() {
	r.lastActivity = time.Now()
}

// updatePayload is the room:update snapshot broadcast after every mutation.
// Callers hold r.mu so the live structs are safe to marshal.
func (r *Room) updatePayload() map[string]interface{} {
	return map[string]interface{}{
		"players":   r.Players,
		"gameState": r.Game,
		"hostId":    r.HostID,
	}
}

// Broadcaster delivers a fire-and-forget event to every subscriber of a room.
type Broadcaster interface {
	Broadcast(roomCode, event string, payload map[string]interface{})
}

// Manager owns the room table and all game transitions.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	notify Broadcaster

	botTurnDelay time.Duration
	botPickDelay time.Duration
}

// NewManager creates an empty registry. Bot delays pace automated turns so
// observers can follow intermediate states; tests pass zero.
func NewManager(notify Broadcaster, botTurnDelay, botPickDelay time.Duration) *Manager {
	return &Manager{
		rooms:        make(map[string]*Room),
		notify:       notify,
		botTurnDelay: botTurnDelay,
		botPickDelay: botPickDelay,
	}
}

func (m *Manager) emit(room *Room, event string, payload map[string]interface{}) {
	m.notify.Broadcast(room.Code, event, payload)
}

// makeRoomCode renders 3 random bytes as 6 uppercase hex characters.
func makeRoomCode() string {
	b := make([]byte, 3)
	rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

func rollDie() int {
	n, _ := rand.Int(rand.Reader, big.NewInt(6))
	return int(n.Int64()) + 1
}

func (m *Manager) room(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[code]
	return room, ok
}

// CreateRoom allocates a fresh room with the caller as host.
func (m *Manager) CreateRoom(sessionID, hostName string) *Room {
	if hostName == "" {
		hostName = "Host"
	}

	host := &Player{
		ID:        sessionID,
		Name:      hostName,
		Scorecard: make(map[Category]int),
	}

	m.mu.Lock()
	var code string
	for {
		code = makeRoomCode()
		if _, exists := m.rooms[code]; !exists {
			break
		}
	}
	room := &Room{
		Code:         code,
		HostID:       sessionID,
		Players:      []*Player{host},
		Game:         newGameState(),
		lastActivity: time.Now(),
	}
	m.rooms[code] = room
	m.mu.Unlock()

	log.Info().
		Str("room_code", code).
		Str("player_id", sessionID).
		Str("player_name", hostName).
		Msg("Created room")

	return room
}

// JoinRoom adds a new player, or rebinds an existing one when the name
// matches (reconnection). The capacity check runs before the reconnection
// check, so a full room rejects rejoins too.
func (m *Manager) JoinRoom(code, sessionID, name string) (*Player, bool, error) {
	if name == "" {
		name = "Anon"
	}

	room, ok := m.room(code)
	if !ok {
		return nil, false, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.touch()

	if len(room.Players) >= maxPlayers {
		log.Debug().
			Str("room_code", code).
			Str("player_name", name).
			Int("player_count", len(room.Players)).
			Msg("Join attempt to full room")
		return nil, false, errRoomFull
	}

	if existing := room.playerByName(name); existing != nil {
		// Reconnection: the name is the recovery key. Rebind identity to the
		// new session, keep score/scorecard, and follow the host flag.
		wasHost := existing.ID == room.HostID
		existing.ID = sessionID
		existing.Disconnected = false
		if wasHost {
			room.HostID = sessionID
		}

		log.Info().
			Str("room_code", code).
			Str("player_id", sessionID).
			Str("player_name", name).
			Bool("was_host", wasHost).
			Msg("Player reconnected")

		m.emit(room, "room:update", room.updatePayload())
		m.emit(room, "room:log", map[string]interface{}{
			"event":  "player:reconnected",
			"player": map[string]interface{}{"id": existing.ID, "name": existing.Name},
		})
		return existing, true, nil
	}

	if room.Game.Started {
		return nil, false, errAlreadyStarted
	}

	player := &Player{
		ID:        sessionID,
		Name:      name,
		Scorecard: make(map[Category]int),
	}
	room.Players = append(room.Players, player)

	log.Info().
		Str("room_code", code).
		Str("player_id", sessionID).
		Str("player_name", name).
		Int("player_count", len(room.Players)).
		Msg("Player joined room")

	m.emit(room, "room:update", room.updatePayload())
	m.emit(room, "room:log", map[string]interface{}{
		"event":  "player:joined",
		"player": map[string]interface{}{"id": player.ID, "name": player.Name},
	})
	m.emit(room, "player:joined", map[string]interface{}{
		"player": map[string]interface{}{"id": player.ID, "name": player.Name},
	})
	return player, false, nil
}

var botNames = []string{"Bot-Cacho", "RobotDice", "AI-Player", "DiceBot", "AutoDice"}

// AddBot appends an automated player. Host only; level is clamped to 1..3.
func (m *Manager) AddBot(code, requesterID string, level int) (*Player, error) {
	room, ok := m.room(code)
	if !ok {
		return nil, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.touch()

	if requesterID != room.HostID {
		log.Warn().
			Str("room_code", code).
			Str("player_id", requesterID).
			Msg("Non-host attempted to add bot")
		return nil, errNotHost
	}
	if room.Game.Started {
		return nil, errAlreadyStarted
	}

	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}

	name, _ := rand.Int(rand.Reader, big.NewInt(int64(len(botNames))))
	bot := &Player{
		ID:        "bot-" + uuid.NewString(),
		Name:      fmt.Sprintf("%s (Nivel %d)", botNames[name.Int64()], level),
		Scorecard: make(map[Category]int),
		IsBot:     true,
		Level:     level,
	}
	room.Players = append(room.Players, bot)

	log.Info().
		Str("room_code", code).
		Str("bot_id", bot.ID).
		Str("bot_name", bot.Name).
		Int("level", level).
		Msg("Bot added to room")

	m.emit(room, "room:update", room.updatePayload())
	m.emit(room, "room:log", map[string]interface{}{
		"event":  "bot:joined",
		"player": map[string]interface{}{"id": bot.ID, "name": bot.Name},
	})
	m.emit(room, "player:joined", map[string]interface{}{
		"player": map[string]interface{}{"id": bot.ID, "name": bot.Name},
	})
	return bot, nil
}

// DisconnectSession handles a dropped connection. Mid-game the player stays
// in rotation flagged disconnected (their turn is skipped if active);
// pre-game they are removed outright and the host role moves on.
func (m *Manager) DisconnectSession(sessionID string) {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	for _, room := range rooms {
		room.mu.Lock()
		player := room.playerByID(sessionID)
		if player == nil {
			room.mu.Unlock()
			continue
		}
		room.touch()

		if room.Game.Started && !room.Game.Ended {
			player.Disconnected = true
			m.emit(room, "room:update", room.updatePayload())
			m.emit(room, "room:log", map[string]interface{}{
				"event": "player:disconnected",
				"id":    player.ID,
				"name":  player.Name,
			})

			log.Info().
				Str("room_code", room.Code).
				Str("player_id", player.ID).
				Str("player_name", player.Name).
				Msg("Player disconnected mid-game")

			// Don't leave the room stuck waiting on a gone player.
			if room.currentPlayer() == player {
				m.emit(room, "room:log", map[string]interface{}{
					"event":  "game:skipTurn",
					"reason": "player_disconnected",
					"player": player.Name,
				})
				m.advanceTurn(room)
				m.finishOrNext(room)
				m.emit(room, "room:update", room.updatePayload())
			}
			room.mu.Unlock()
			continue
		}

		m.removePlayerLocked(room, player)
		empty := len(room.Players) == 0
		room.mu.Unlock()

		if empty {
			m.deleteRoom(room.Code)
		}
	}
}

// removePlayerLocked deletes a player from the lobby and reassigns the host
// role if needed. Callers hold room.mu.
func (m *Manager) removePlayerLocked(room *Room, player *Player) {
	for i, p := range room.Players {
		if p == player {
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			break
		}
	}

	log.Info().
		Str("room_code", room.Code).
		Str("player_id", player.ID).
		Str("player_name", player.Name).
		Int("remaining_players", len(room.Players)).
		Msg("Player left room")

	m.emit(room, "room:update", room.updatePayload())
	m.emit(room, "room:log", map[string]interface{}{
		"event": "player:left",
		"id":    player.ID,
		"name":  player.Name,
	})

	if player.ID == room.HostID && len(room.Players) > 0 {
		room.HostID = room.Players[0].ID
		m.emit(room, "room:hostChanged", map[string]interface{}{
			"newHostId":   room.HostID,
			"newHostName": room.Players[0].Name,
		})
	}
}

func (m *Manager) deleteRoom(code string) {
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()
	log.Info().Str("room_code", code).Msg("Deleted empty room")
}

// CleanupIdleRooms drops rooms with no activity past ttl. Runs forever;
// start it on its own goroutine.
func (m *Manager) CleanupIdleRooms(ttl time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		m.sweepIdleRooms(ttl)
	}
}

func (m *Manager) sweepIdleRooms(ttl time.Duration) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, room := range m.rooms {
		room.mu.Lock()
		idle := now.Sub(room.lastActivity) > ttl
		room.mu.Unlock()
		if idle {
			delete(m.rooms, code)
			log.Info().Str("room_code", code).Msg("Cleaned up expired room")
		}
	}
}
