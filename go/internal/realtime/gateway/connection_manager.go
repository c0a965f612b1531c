package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/pairtalk/go/internal/realtime/matchmaking"
	"github.com/mcdev12/pairtalk/go/internal/realtime/protocol"
	"github.com/rs/zerolog/log"
)

// Engine is the matchmaking core as seen by the transport
type Engine interface {
	Connect(identity string, conn matchmaking.Conn) uint64
	Disconnect(identity string, seq uint64)
	Handle(ctx context.Context, identity string, seq uint64, raw []byte)
	Stats() matchmaking.Stats
}

// IdentityResolver maps a connection token to a stable identity
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// ConnectionManager manages WebSocket connections for matchmaking clients
type ConnectionManager struct {
	engine   Engine
	resolver IdentityResolver

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	connections map[*Connection]bool
	mu          sync.RWMutex
}

// Connection represents a WebSocket connection to a client. It satisfies
// matchmaking.Conn; Send and Close never block.
type Connection struct {
	ID     string
	UserID string
	Seq    uint64
	Conn   *websocket.Conn

	// Connection metadata
	ConnectedAt time.Time

	send    chan []byte
	closing chan struct{}
	once    sync.Once

	closeCode   int
	closeReason string

	ctx     context.Context
	cancel  context.CancelFunc
	manager *ConnectionManager
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
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8192, // 500 runes of chat plus the envelope
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, engine Engine, resolver IdentityResolver) *ConnectionManager {
	return &ConnectionManager{
		engine:   engine,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		connections: make(map[*Connection]bool),
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket, resolves the
// caller's identity and hands the connection to the engine. Token failures
// are reported with a close frame after the upgrade so browsers can see the
// code.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	token := tokenFromRequest(r)

	var userID string
	var resolveErr error
	if token != "" {
		userID, resolveErr = cm.resolver.Resolve(r.Context(), token)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	switch {
	case token == "":
		cm.reject(conn, protocol.CloseMissingToken, "Missing token")
		return nil
	case resolveErr != nil:
		log.Info().Err(resolveErr).Str("remote_addr", r.RemoteAddr).Msg("rejecting connection with invalid token")
		cm.reject(conn, protocol.CloseInvalidToken, "Invalid token")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, cm.config.SendBufferSize),
		closing:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		manager:     cm,
	}

	cm.registerConnection(connection)
	go connection.writePump()

	connection.Seq = cm.engine.Connect(userID, connection)
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Uint64("seq", connection.Seq).
		Msg("WebSocket connection established")

	return nil
}

func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (cm *ConnectionManager) reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(cm.config.WriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		log.Debug().Err(err).Int("code", code).Msg("failed to write close frame")
	}
	conn.Close()
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager and tells the
// engine it is gone
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	delete(cm.connections, conn)
	cm.mu.Unlock()

	if !exists {
		return
	}

	cm.engine.Disconnect(conn.UserID, conn.Seq)

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Uint64("seq", conn.Seq).
		Msg("connection unregistered")
}

// CloseAll closes every open connection, used on shutdown
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "Server shutting down")
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	total := len(cm.connections)
	users := make(map[string]struct{}, total)
	for conn := range cm.connections {
		users[conn.UserID] = struct{}{}
	}
	cm.mu.RUnlock()

	engine := cm.engine.Stats()
	return map[string]interface{}{
		"total_connections": total,
		"unique_users":      len(users),
		"waiting":           engine.Waiting,
		"active_matches":    engine.ActiveMatches,
		"decision_windows":  engine.DecisionWindows,
		"cooldowns":         engine.Cooldowns,
	}
}

// Send queues msg for the client. A client that cannot keep up is closed.
func (c *Connection) Send(msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to encode message")
		return
	}

	select {
	case c.send <- data:
	case <-c.closing:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("connection send buffer full, closing connection")
		c.Close(websocket.ClosePolicyViolation, "Send buffer full")
	}
}

// Close flushes queued messages, then sends a close frame with code
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closing)
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-c.closing:
			c.flush()
			deadline := time.Now().Add(c.manager.config.WriteTimeout)
			frame := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			if err := c.Conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write close frame")
			}
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
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

func (c *Connection) write(message []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, message)
}

// flush writes whatever is still queued
func (c *Connection) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.cancel()
		c.Close(websocket.CloseNormalClosure, "")
		c.manager.unregisterConnection(c)
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.manager.engine.Handle(c.ctx, c.UserID, c.Seq, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
