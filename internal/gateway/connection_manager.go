package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
)

// ConnectionManager manages WebSocket connections for room events. It is the
// fan-out half of the broadcast contract: the coordinator hands it deltas,
// it delivers them to every device of the room in FIFO order.
type ConnectionManager struct {
	// Connection pools organized by room code
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage

	// OnDisconnect is invoked after a connection is unregistered so the
	// coordinator can drop the device from its room. Set once during wiring,
	// before Start.
	OnDisconnect func(roomCode string, deviceID uuid.UUID)
}

// Connection represents one device's WebSocket connection.
type Connection struct {
	Device   *models.Device
	RoomCode string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time

	// sendMu orders queueing against closure: Send is only closed with
	// closed set under this mutex, so a broadcast racing a disconnect can
	// never hit a closed channel.
	sendMu sync.Mutex
	closed bool
}

// trySend queues data for the write pump. It reports false when the
// connection is already closed or its buffer is full.
func (c *Connection) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

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

// closeSend marks the connection closed and closes its send channel.
// Idempotent.
func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections.
type BroadcastMessage struct {
	RoomCode string
	Event    *events.RoomEvent
	DeviceID uuid.UUID // Optional: if set, only send to this device
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for tick traffic
	}
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Upgrade upgrades an HTTP request to a WebSocket connection for the given
// device and starts its pumps.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, device *models.Device) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		Device:      device,
		RoomCode:    device.RoomCode,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("device_id", device.ID.String()).
		Str("room", device.RoomCode).
		Str("role", string(device.Role)).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.RoomCode] == nil {
		cm.roomConnections[conn.RoomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.RoomCode][conn] = true

	log.Debug().
		Str("device_id", conn.Device.ID.String()).
		Str("room", conn.RoomCode).
		Int("total_connections", len(cm.roomConnections[conn.RoomCode])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if connections, exists := cm.roomConnections[conn.RoomCode]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			conn.closeSend()
			removed = true

			if len(connections) == 0 {
				delete(cm.roomConnections, conn.RoomCode)
			}
		}
	}
	cm.mu.Unlock()

	if removed {
		if cm.OnDisconnect != nil {
			cm.OnDisconnect(conn.RoomCode, conn.Device.ID)
		}
		log.Info().
			Str("device_id", conn.Device.ID.String()).
			Str("room", conn.RoomCode).
			Msg("connection unregistered")
	}
}

// Broadcast sends an event to all connections of a room. Satisfies the
// coordinator's Broadcaster contract; fire-and-forget.
func (cm *ConnectionManager) Broadcast(roomCode string, event *events.RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: roomCode, Event: event}:
	default:
		log.Warn().Str("room", roomCode).Msg("broadcast channel full, dropping message")
	}
}

// SendToDevice sends an event to a single device in a room.
func (cm *ConnectionManager) SendToDevice(roomCode string, deviceID uuid.UUID, event *events.RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: roomCode, Event: event, DeviceID: deviceID}:
	default:
		log.Warn().
			Str("room", roomCode).
			Str("device_id", deviceID.String()).
			Msg("broadcast channel full, dropping device message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.RoomCode]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot the targets so the lock is not held during delivery.
	var targets []*Connection
	for conn := range connections {
		if message.DeviceID != uuid.Nil && conn.Device.ID != message.DeviceID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if conn.trySend(eventData) {
			continue
		}
		// Connection is slow or already gone; drop it from the fan-out. The
		// device re-syncs from a snapshot when it reconnects.
		log.Warn().
			Str("device_id", conn.Device.ID.String()).
			Str("room", conn.RoomCode).
			Msg("connection unavailable, dropping from fan-out")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room", message.RoomCode).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns statistics about active connections.
func (cm *ConnectionManager) Stats() (totalConnections, activeRooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, connections := range cm.roomConnections {
		totalConnections += len(connections)
	}
	return totalConnections, len(cm.roomConnections)
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("device_id", c.Device.ID.String()).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("device_id", c.Device.ID.String()).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("device_id", c.Device.ID.String()).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		// Commands arrive over the REST surface; the persistent channel is
		// server-to-client, so inbound frames are only logged.
		log.Debug().
			Str("device_id", c.Device.ID.String()).
			RawJSON("message", message).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
