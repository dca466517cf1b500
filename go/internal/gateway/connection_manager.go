package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/game/events"
)

// ErrBroadcastQueueFull is returned by Publish when the manager is not
// keeping up with the event rate.
var ErrBroadcastQueueFull = errors.New("broadcast queue full")

// Role tells what a connection joined a room as.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// MessageHandler processes what clients send. The manager calls it from the
// connection's read loop, so messages of one connection arrive in order.
type MessageHandler interface {
	HandleMessage(ctx context.Context, c *Connection, data []byte)
	HandleClose(ctx context.Context, c *Connection)
}

// ConnectionManager keeps WebSocket connections grouped into rooms by game
// code and fans room broadcasts out to them.
type ConnectionManager struct {
	rooms map[string]map[*Connection]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan events.Envelope
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID       string
	GameCode string
	Role     Role
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time

	mu       sync.Mutex
	playerID string
	lastPing time.Time
	closed   bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	QueueSize       int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		QueueSize:       1024,
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, handler MessageHandler) *ConnectionManager {
	return &ConnectionManager{
		rooms: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		handler:     handler,
		broadcastCh: make(chan events.Envelope, config.QueueSize),
	}
}

// SetHandler replaces the message handler. It must be called before the
// first connection is upgraded.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start processes room broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case env := <-cm.broadcastCh:
			cm.handleBroadcast(env)
		}
	}
}

// Publish queues a room broadcast. It makes ConnectionManager an events.Sink;
// unicast types are ignored here and sent with SendTo instead.
func (cm *ConnectionManager) Publish(_ context.Context, env events.Envelope) error {
	if !env.Type.Broadcast() {
		return nil
	}
	select {
	case cm.broadcastCh <- env:
		return nil
	default:
		log.Warn().Str("game_code", env.GameCode).Str("event_type", string(env.Type)).Msg("broadcast channel full, dropping message")
		return fmt.Errorf("%w: %s for game %s", ErrBroadcastQueueFull, env.Type, env.GameCode)
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and joins it to
// the room of code.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, code string, role Role) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:          uuid.NewString(),
		GameCode:    code,
		Role:        role,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: now,
		lastPing:    now,
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("game_code", code).
		Str("role", string(role)).
		Msg("WebSocket connection established")

	return connection, nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.rooms[conn.GameCode] == nil {
		cm.rooms[conn.GameCode] = make(map[*Connection]bool)
	}
	cm.rooms[conn.GameCode][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_code", conn.GameCode).
		Int("total_connections", len(cm.rooms[conn.GameCode])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager and reports
// whether it was still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.rooms[conn.GameCode]
	if !exists || !connections[conn] {
		return false
	}
	delete(connections, conn)
	conn.closeSend()

	if len(connections) == 0 {
		delete(cm.rooms, conn.GameCode)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID()).
		Str("game_code", conn.GameCode).
		Msg("connection unregistered")
	return true
}

// SendTo writes one event to a single connection.
func (cm *ConnectionManager) SendTo(c *Connection, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if !c.enqueue(data) {
		return fmt.Errorf("connection %s is not accepting messages", c.ID)
	}
	return nil
}

// handleBroadcast sends env to every connection in its room
func (cm *ConnectionManager) handleBroadcast(env events.Envelope) {
	cm.mu.RLock()
	connections := cm.rooms[env.GameCode]
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("game_code", conn.GameCode).
				Msg("connection send buffer full, closing connection")
			if cm.unregisterConnection(conn) {
				conn.Conn.Close()
			}
		}
	}

	log.Debug().
		Str("event_type", string(env.Type)).
		Str("game_code", env.GameCode).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// CloseRoom disconnects every connection of a game. Used when a game is swept.
func (cm *ConnectionManager) CloseRoom(code string) {
	cm.mu.RLock()
	var targets []*Connection
	for conn := range cm.rooms[code] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if cm.unregisterConnection(conn) {
			conn.Conn.Close()
		}
	}
}

// CloseAll disconnects every connection.
func (cm *ConnectionManager) CloseAll() {
	for _, code := range cm.roomCodes() {
		cm.CloseRoom(code)
	}
}

func (cm *ConnectionManager) roomCodes() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	codes := make([]string, 0, len(cm.rooms))
	for code := range cm.rooms {
		codes = append(codes, code)
	}
	return codes
}

// ConnectionStats summarizes the open connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveGames      int            `json:"active_games"`
	GameConnections  map[string]int `json:"game_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveGames:     len(cm.rooms),
		GameConnections: make(map[string]int, len(cm.rooms)),
	}
	for code, connections := range cm.rooms {
		stats.TotalConnections += len(connections)
		stats.GameConnections[code] = len(connections)
	}
	return stats
}

// PlayerID returns the player bound to this connection, if any.
func (c *Connection) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// SetPlayerID binds the connection to a player after join or rejoin.
func (c *Connection) SetPlayerID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = id
}

// LastPing returns when the client last answered a ping
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// enqueue hands data to the write pump without blocking.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	ctx := context.Background()
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if c.Manager.handler != nil {
			c.Manager.handler.HandleClose(ctx, c)
		}
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(ctx, c, message)
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
