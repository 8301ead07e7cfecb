package main

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roomCodeRe = regexp.MustCompile(`^[0-9A-F]{6}$`)

func TestCreateRoom(t *testing.T) {
	m, _ := newTestManager()

	room := m.CreateRoom("sess-1", "Luis")

	assert.Regexp(t, roomCodeRe, room.Code)
	assert.Equal(t, "sess-1", room.HostID)
	require.Len(t, room.Players, 1)
	assert.Equal(t, "Luis", room.Players[0].Name)
	assert.Empty(t, room.Players[0].Scorecard)

	g := room.Game
	assert.Equal(t, []int{1, 1, 1, 1, 1}, g.Dice)
	assert.Equal(t, 3, g.RollsLeft)
	assert.Equal(t, 0, g.CurrentTurn)
	assert.False(t, g.Started)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, 11, g.MaxRounds)

	got, ok := m.room(room.Code)
	require.True(t, ok)
	assert.Same(t, room, got)
}

func TestCreateRoomDefaultHostName(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "")
	assert.Equal(t, "Host", room.Players[0].Name)
}

func TestJoinRoom(t *testing.T) {
	m, b := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")

	player, reconnected, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)
	assert.False(t, reconnected)
	assert.Equal(t, "sess-2", player.ID)
	assert.Len(t, room.Players, 2)

	require.NotEmpty(t, b.ofType("player:joined"))
	require.NotEmpty(t, b.ofType("room:update"))
}

func TestJoinRoomNotFound(t *testing.T) {
	m, _ := newTestManager()
	_, _, err := m.JoinRoom("ZZZZZZ", "sess-1", "Ana")
	assert.ErrorIs(t, err, errRoomNotFound)
}

func TestJoinRoomCapacity(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")

	for i := 2; i <= maxPlayers; i++ {
		_, _, err := m.JoinRoom(room.Code, fmt.Sprintf("sess-%d", i), fmt.Sprintf("Player%d", i))
		require.NoError(t, err)
	}

	_, _, err := m.JoinRoom(room.Code, "sess-7", "Player7")
	assert.ErrorIs(t, err, errRoomFull)

	// The capacity check runs before the reconnection check, so even a known
	// name is turned away from a full room.
	_, _, err = m.JoinRoom(room.Code, "sess-8", "Player2")
	assert.ErrorIs(t, err, errRoomFull)
}

func TestJoinRoomAfterStart(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)
	require.NoError(t, m.StartGame(room.Code, "sess-1"))

	_, _, err = m.JoinRoom(room.Code, "sess-3", "Pedro")
	assert.ErrorIs(t, err, errAlreadyStarted)
}

func TestJoinRoomReconnection(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)
	require.NoError(t, m.StartGame(room.Code, "sess-1"))

	ana := room.playerByName("Ana")
	ana.Scorecard[CatOnes] = 3
	ana.Score = 3
	ana.Disconnected = true

	player, reconnected, err := m.JoinRoom(room.Code, "sess-9", "Ana")
	require.NoError(t, err)
	assert.True(t, reconnected)
	assert.Same(t, ana, player)
	assert.Equal(t, "sess-9", ana.ID)
	assert.False(t, ana.Disconnected)
	assert.Equal(t, 3, ana.Score)
	assert.Equal(t, 3, ana.Scorecard[CatOnes])
	assert.Len(t, room.Players, 2)
}

func TestJoinRoomReconnectionReassignsHost(t *testing.T) {
	m, b := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)

	b.reset()
	_, reconnected, err := m.JoinRoom(room.Code, "sess-5", "Luis")
	require.NoError(t, err)
	assert.True(t, reconnected)
	assert.Equal(t, "sess-5", room.HostID)
}

func TestAddBot(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")

	bot, err := m.AddBot(room.Code, "sess-1", 2)
	require.NoError(t, err)
	assert.True(t, bot.IsBot)
	assert.Equal(t, 2, bot.Level)
	assert.Contains(t, bot.ID, "bot-")
	assert.Len(t, room.Players, 2)
}

func TestAddBotClampsLevel(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")

	low, err := m.AddBot(room.Code, "sess-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, low.Level)

	high, err := m.AddBot(room.Code, "sess-1", 9)
	require.NoError(t, err)
	assert.Equal(t, 3, high.Level)
}

func TestAddBotOnlyHost(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)

	_, err = m.AddBot(room.Code, "sess-2", 1)
	assert.ErrorIs(t, err, errNotHost)
}

func TestAddBotAfterStart(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)
	require.NoError(t, m.StartGame(room.Code, "sess-1"))

	_, err = m.AddBot(room.Code, "sess-1", 1)
	assert.ErrorIs(t, err, errAlreadyStarted)
}

func TestDisconnectBeforeStartRemovesPlayer(t *testing.T) {
	m, b := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)

	b.reset()
	m.DisconnectSession("sess-2")

	assert.Len(t, room.Players, 1)
	assert.Nil(t, room.playerByName("Ana"))
	assert.NotEmpty(t, b.ofType("room:update"))
}

func TestDisconnectBeforeStartReassignsHost(t *testing.T) {
	m, b := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)

	b.reset()
	m.DisconnectSession("sess-1")

	assert.Equal(t, "sess-2", room.HostID)
	changed := b.ofType("room:hostChanged")
	require.Len(t, changed, 1)
	assert.Equal(t, "sess-2", changed[0].payload["newHostId"])
	assert.Equal(t, "Ana", changed[0].payload["newHostName"])
}

func TestDisconnectLastPlayerDeletesRoom(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")

	m.DisconnectSession("sess-1")

	_, ok := m.room(room.Code)
	assert.False(t, ok)
}

func TestDisconnectMidGameKeepsPlayerInRotation(t *testing.T) {
	m, _ := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)
	require.NoError(t, m.StartGame(room.Code, "sess-1"))

	// Not Ana's turn, so the rotation is untouched.
	m.DisconnectSession("sess-2")

	assert.Len(t, room.Players, 2)
	assert.True(t, room.playerByName("Ana").Disconnected)
	assert.Equal(t, 0, room.Game.CurrentTurn)
}

func TestDisconnectCurrentPlayerAdvancesTurn(t *testing.T) {
	m, b := newTestManager()
	room := m.CreateRoom("sess-1", "Luis")
	_, _, err := m.JoinRoom(room.Code, "sess-2", "Ana")
	require.NoError(t, err)
	require.NoError(t, m.StartGame(room.Code, "sess-1"))

	_, _, err = m.Roll(room.Code, "sess-1", nil)
	require.NoError(t, err)

	b.reset()
	m.DisconnectSession("sess-1")

	g := room.Game
	assert.Equal(t, 1, g.CurrentTurn)
	assert.Equal(t, []int{1, 1, 1, 1, 1}, g.Dice)
	assert.Equal(t, 3, g.RollsLeft)
	assert.True(t, room.playerByName("Luis").Disconnected)

	next := b.ofType("game:nextTurn")
	require.Len(t, next, 1)
	assert.Equal(t, "sess-2", next[0].payload["currentPlayer"])
}

func TestSweepIdleRooms(t *testing.T) {
	m, _ := newTestManager()
	stale := m.CreateRoom("sess-1", "Luis")
	fresh := m.CreateRoom("sess-2", "Ana")

	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	m.sweepIdleRooms(30 * time.Minute)

	_, ok := m.room(stale.Code)
	assert.False(t, ok)
	_, ok = m.room(fresh.Code)
	assert.True(t, ok)
}
