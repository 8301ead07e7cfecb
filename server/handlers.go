package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Gateway owns the websocket side: one connection per participant, each
// bound to at most one room's broadcast group. It resolves inbound actions
// to a session identity and delegates every state change to the Manager.
type Gateway struct {
	manager  *Manager
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn

	// room is the broadcast group this connection subscribes to, guarded by
	// the gateway mutex. writeMu serializes frames on the shared conn.
	room    string
	writeMu sync.Mutex
}

// envelope is the inbound frame. Seq > 0 requests an acknowledgment; seq 0
// means fire-and-forget, and failures are silently dropped.
type envelope struct {
	Seq  int             `json:"seq,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewGateway() *Gateway {
	return &Gateway{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for game clients
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Broadcast sends an event to every connection subscribed to the room.
func (gw *Gateway) Broadcast(roomCode, event string, payload map[string]interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return
	}

	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for _, c := range gw.clients {
		if c.room != roomCode {
			continue
		}
		c.writeMu.Lock()
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", c.id).
				Str("event", event).
				Msg("Failed to broadcast to client")
		}
		c.writeMu.Unlock()
	}
}

func (gw *Gateway) send(c *client, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", c.id).
			Msg("Failed to send to client")
	}
}

// ack answers a request. Extra fields ride alongside ok, mirroring the
// callback-style acknowledgments the frontend expects.
func (gw *Gateway) ack(c *client, seq int, extra map[string]interface{}) {
	if seq == 0 {
		return
	}
	msg := map[string]interface{}{"type": "ack", "seq": seq, "ok": true}
	for k, v := range extra {
		msg[k] = v
	}
	gw.send(c, msg)
}

func (gw *Gateway) nack(c *client, seq int, err error) {
	if seq == 0 {
		log.Debug().
			Str("session_id", c.id).
			Err(err).
			Msg("Dropping failure for fire-and-forget action")
		return
	}
	gw.send(c, map[string]interface{}{
		"type":  "ack",
		"seq":   seq,
		"ok":    false,
		"error": err.Error(),
	})
}

// ServeWS handles GET /ws: upgrades the connection, assigns the ephemeral
// session identity and pumps events until the socket drops.
func (gw *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
	}

	gw.mu.Lock()
	gw.clients[c.id] = c
	gw.mu.Unlock()

	log.Info().Str("session_id", c.id).Msg("Socket connected")

	gw.send(c, map[string]interface{}{
		"type": "connected",
		"data": map[string]interface{}{"id": c.id},
	})

	gw.readLoop(c)
}

func (gw *Gateway) readLoop(c *client) {
	defer func() {
		c.conn.Close()
		gw.mu.Lock()
		delete(gw.clients, c.id)
		gw.mu.Unlock()

		log.Info().Str("session_id", c.id).Msg("Socket disconnected")
		gw.manager.DisconnectSession(c.id)
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("session_id", c.id).
					Msg("WebSocket unexpected close error")
			} else {
				log.Debug().
					Err(err).
					Str("session_id", c.id).
					Msg("WebSocket connection closed")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", c.id).
				Str("message", string(message)).
				Msg("Invalid message from client")
			continue
		}

		log.Trace().
			Str("session_id", c.id).
			Str("event_type", env.Type).
			Msg("Processing action")
		gw.dispatch(c, env)
	}
}

func (gw *Gateway) dispatch(c *client, env envelope) {
	switch env.Type {
	case "room:create":
		gw.handleCreate(c, env)
	case "room:join":
		gw.handleJoin(c, env)
	case "game:addBot":
		gw.handleAddBot(c, env)
	case "player:leave":
		gw.handleLeave(c, env)
	case "game:start":
		gw.handleStart(c, env)
	case "game:roll":
		gw.handleRoll(c, env)
	case "game:score":
		gw.handleScore(c, env)
	default:
		log.Debug().
			Str("session_id", c.id).
			Str("event_type", env.Type).
			Msg("Ignoring unknown action")
	}
}

// subscribe binds the connection to a room's broadcast group.
func (gw *Gateway) subscribe(c *client, roomCode string) {
	gw.mu.Lock()
	c.room = roomCode
	gw.mu.Unlock()
}

func (gw *Gateway) handleCreate(c *client, env envelope) {
	var req struct {
		HostName string `json:"hostName"`
	}
	json.Unmarshal(env.Data, &req)

	room := gw.manager.CreateRoom(c.id, req.HostName)
	gw.subscribe(c, room.Code)

	// The creator is subscribed now, so the initial snapshot reaches them.
	room.mu.Lock()
	gw.manager.emit(room, "room:update", room.updatePayload())
	gw.manager.emit(room, "room:log", map[string]interface{}{
		"event": "room:created",
		"code":  room.Code,
	})
	room.mu.Unlock()

	gw.ack(c, env.Seq, map[string]interface{}{"roomCode": room.Code})
}

func (gw *Gateway) handleJoin(c *client, env envelope) {
	var req struct {
		Code       string `json:"code"`
		PlayerName string `json:"playerName"`
	}
	json.Unmarshal(env.Data, &req)

	// Subscribe first so the join's own room:update reaches the caller.
	gw.subscribe(c, req.Code)
	_, reconnected, err := gw.manager.JoinRoom(req.Code, c.id, req.PlayerName)
	if err != nil {
		gw.subscribe(c, "")
		gw.nack(c, env.Seq, err)
		return
	}

	roomInfo := map[string]interface{}{"code": req.Code}
	if reconnected {
		roomInfo["reconnected"] = true
	}
	gw.ack(c, env.Seq, map[string]interface{}{"room": roomInfo})
}

func (gw *Gateway) handleAddBot(c *client, env envelope) {
	var req struct {
		RoomCode string `json:"roomCode"`
		Level    int    `json:"level"`
	}
	json.Unmarshal(env.Data, &req)
	if req.Level == 0 {
		req.Level = 1
	}

	if _, err := gw.manager.AddBot(req.RoomCode, c.id, req.Level); err != nil {
		gw.nack(c, env.Seq, err)
		return
	}
	gw.ack(c, env.Seq, nil)
}

// handleLeave is broadcast-only: the authoritative removal happens when the
// socket actually closes. Clients use this to announce an intentional exit.
func (gw *Gateway) handleLeave(c *client, env envelope) {
	var req struct {
		RoomCode   string `json:"roomCode"`
		PlayerName string `json:"playerName"`
	}
	json.Unmarshal(env.Data, &req)

	if _, ok := gw.manager.room(req.RoomCode); !ok {
		return
	}

	gw.Broadcast(req.RoomCode, "player:left", map[string]interface{}{
		"player": map[string]interface{}{"name": req.PlayerName},
	})
	gw.Broadcast(req.RoomCode, "room:log", map[string]interface{}{
		"event":  "player:left",
		"player": map[string]interface{}{"name": req.PlayerName},
	})
	gw.ack(c, env.Seq, nil)
}

func (gw *Gateway) handleStart(c *client, env envelope) {
	var req struct {
		RoomCode string `json:"roomCode"`
	}
	json.Unmarshal(env.Data, &req)

	if err := gw.manager.StartGame(req.RoomCode, c.id); err != nil {
		gw.nack(c, env.Seq, err)
		return
	}
	gw.ack(c, env.Seq, nil)
}

func (gw *Gateway) handleRoll(c *client, env envelope) {
	var req struct {
		RoomCode string `json:"roomCode"`
		Keep     []bool `json:"keep"`
	}
	json.Unmarshal(env.Data, &req)

	if _, _, err := gw.manager.Roll(req.RoomCode, c.id, req.Keep); err != nil {
		gw.nack(c, env.Seq, err)
		return
	}
	gw.ack(c, env.Seq, nil)
}

func (gw *Gateway) handleScore(c *client, env envelope) {
	var req struct {
		RoomCode string   `json:"roomCode"`
		Category Category `json:"category"`
	}
	json.Unmarshal(env.Data, &req)

	value, err := gw.manager.ScoreCategory(req.RoomCode, c.id, req.Category)
	if err != nil {
		gw.nack(c, env.Seq, err)
		return
	}
	gw.ack(c, env.Seq, map[string]interface{}{"score": value})
}
