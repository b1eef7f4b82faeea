package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
)

// RoomJoiner is what the WebSocket handler needs from the coordinator.
type RoomJoiner interface {
	Join(code string, role models.DeviceRole, name string) (*models.Device, *models.RoomSnapshot, error)
	Leave(code string, deviceID uuid.UUID)
}

// WebSocketHandler handles WebSocket upgrade requests for room connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	joiner            RoomJoiner
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, joiner RoomJoiner) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		joiner:            joiner,
	}
}

// HandleRoomConnection handles WebSocket connections for a specific room.
// The client identifies the room, its role, and a display name via query
// parameters; on success it receives a welcome event carrying its device id
// and the full room snapshot to reconcile from.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomCode := r.URL.Query().Get("room_id")
	if roomCode == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	role := models.DeviceRole(r.URL.Query().Get("role"))
	if role == "" {
		role = models.DeviceRoleViewer
	}
	if !role.Valid() {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "anonymous"
	}

	device, snapshot, err := h.joiner.Join(roomCode, role, name)
	if err != nil {
		log.Warn().Err(err).Str("room", roomCode).Msg("join rejected")
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := h.connectionManager.Upgrade(w, r, device)
	if err != nil {
		log.Error().
			Err(err).
			Str("room", roomCode).
			Str("device_id", device.ID.String()).
			Msg("failed to upgrade WebSocket connection")
		h.joiner.Leave(roomCode, device.ID)
		return
	}

	if err := sendWelcome(conn, device, snapshot); err != nil {
		log.Error().Err(err).Str("device_id", device.ID.String()).Msg("failed to send welcome")
	}
}

// sendWelcome queues the welcome event as the first frame on the connection.
func sendWelcome(conn *Connection, device *models.Device, snapshot *models.RoomSnapshot) error {
	event, err := events.New(device.RoomCode, events.EventTypeWelcome, events.WelcomePayload{
		DeviceID: device.ID.String(),
		Room:     snapshot,
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal welcome event: %w", err)
	}

	if !conn.trySend(data) {
		return fmt.Errorf("connection unavailable for device %s", device.ID)
	}
	return nil
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := h.connectionManager.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"total_connections": total,
		"active_rooms":      rooms,
	})
}

// RegisterRoutes registers WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleRoomConnection)
	r.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
