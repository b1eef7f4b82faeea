package rooms

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/durfmt"
	"github.com/showcall/stagetimer/internal/models"
	"github.com/showcall/stagetimer/internal/room"
)

// Handler holds the dependencies for room-related HTTP requests. All
// mutation goes through the coordinator; the handler only translates wire
// shapes and maps errors onto status codes.
type Handler struct {
	coordinator *room.Coordinator
}

// NewHandler creates a room API handler.
func NewHandler(coordinator *room.Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// CreateRoom handles POST /rooms.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.coordinator.CreateRoom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// GetRoom handles GET /rooms/{roomId}: the full snapshot used by
// reconnecting clients to reconcile without replaying history.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["roomId"]
	snapshot, err := h.coordinator.Snapshot(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type addTimerRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Duration accepts either a human string ("5:30") or raw seconds; the
	// string form wins when both are present.
	Duration          string     `json:"duration,omitempty"`
	DurationSeconds   int        `json:"duration_seconds,omitempty"`
	WarningThresholds []int      `json:"warning_thresholds,omitempty"`
	NextTimerID       *uuid.UUID `json:"next_timer_id,omitempty"`
}

// AddTimer handles POST /rooms/{roomId}/timers.
func (h *Handler) AddTimer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["roomId"]

	var req addTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	durationSeconds := req.DurationSeconds
	if req.Duration != "" {
		parsed, err := durfmt.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		durationSeconds = parsed
	}

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.Apply(r.Context(), code, deviceID, room.Command{
		Type: room.CommandAddTimer,
		AddTimer: &room.AddTimerInput{
			Name:              req.Name,
			Kind:              models.TimerKind(req.Kind),
			DurationSeconds:   durationSeconds,
			WarningThresholds: req.WarningThresholds,
			NextTimerID:       req.NextTimerID,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type controlRequest struct {
	Action string `json:"action"`
	Data   *struct {
		DeltaSeconds int `json:"delta_seconds"`
	} `json:"data,omitempty"`
}

// ControlTimer handles POST /rooms/{roomId}/timers/{timerId}/control.
func (h *Handler) ControlTimer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["roomId"]

	timerID, err := uuid.Parse(vars["timerId"])
	if err != nil {
		http.Error(w, "invalid timer id", http.StatusBadRequest)
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cmd := room.Command{TimerID: &timerID}
	switch req.Action {
	case "start":
		cmd.Type = room.CommandStartTimer
	case "pause":
		cmd.Type = room.CommandPauseTimer
	case "stop":
		cmd.Type = room.CommandStopTimer
	case "reset":
		cmd.Type = room.CommandResetTimer
	case "adjustTime":
		if req.Data == nil {
			http.Error(w, "adjustTime requires data.delta_seconds", http.StatusBadRequest)
			return
		}
		cmd.Type = room.CommandAdjustTime
		cmd.AdjustSeconds = &req.Data.DeltaSeconds
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.Apply(r.Context(), code, deviceID, cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DeleteTimer handles DELETE /rooms/{roomId}/timers/{timerId}.
func (h *Handler) DeleteTimer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["roomId"]

	timerID, err := uuid.Parse(vars["timerId"])
	if err != nil {
		http.Error(w, "invalid timer id", http.StatusBadRequest)
		return
	}

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	if _, err := h.coordinator.Apply(r.Context(), code, deviceID, room.Command{
		Type:    room.CommandDeleteTimer,
		TimerID: &timerID,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /rooms/{roomId}/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["roomId"]

	var req room.MessageInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.Apply(r.Context(), code, deviceID, room.Command{
		Type:    room.CommandSendMessage,
		Message: &req,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// SetAgenda handles PUT /rooms/{roomId}/agenda.
func (h *Handler) SetAgenda(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["roomId"]

	var items []models.AgendaItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.Apply(r.Context(), code, deviceID, room.Command{
		Type:   room.CommandSetAgenda,
		Agenda: items,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearAgenda handles DELETE /rooms/{roomId}/agenda.
func (h *Handler) ClearAgenda(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["roomId"]

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	if _, err := h.coordinator.Apply(r.Context(), code, deviceID, room.Command{
		Type: room.CommandClearAgenda,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSettings handles PATCH /rooms/{roomId}/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["roomId"]

	var update models.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deviceID, ok := deviceIDFrom(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.Apply(r.Context(), code, deviceID, room.Command{
		Type:     room.CommandUpdateSettings,
		Settings: &update,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// deviceIDFrom reads the caller's device id from the X-Device-ID header.
// Identity validation is a precondition of the API; the id only has to
// resolve to a registered device so the coordinator can check its role.
func deviceIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-Device-ID")
	if raw == "" {
		http.Error(w, "X-Device-ID header is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid X-Device-ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps coordinator errors onto HTTP status codes. Errors are
// returned to the caller only; they never mutate state or produce a
// broadcast.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrRoomNotFound),
		errors.Is(err, models.ErrTimerNotFound),
		errors.Is(err, models.ErrDeviceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrInvalidCommand):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
