package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/showcall/stagetimer/internal/durfmt"
	"github.com/showcall/stagetimer/internal/models"
)

// RoomEvent is the envelope for every delta broadcast to a room's devices.
// Payloads always carry absolute values (never relative deltas), so applying
// a duplicate or out-of-order event is harmless.
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType identifies the kind of room event.
type EventType string

const (
	EventTypeWelcome            EventType = "welcome"
	EventTypeTimerUpdate        EventType = "timer_update"
	EventTypeTimerDeleted       EventType = "timer_deleted"
	EventTypeTimerWarning       EventType = "timer_warning"
	EventTypeDeviceConnected    EventType = "device_connected"
	EventTypeDeviceDisconnected EventType = "device_disconnected"
	EventTypeDisplayMessage     EventType = "display_message"
	EventTypeAgendaUpdated      EventType = "agenda_updated"
	EventTypeSettingsUpdated    EventType = "settings_updated"
)

// WelcomePayload is sent once to a device right after it joins, carrying its
// assigned id and the full room snapshot it reconciles from.
type WelcomePayload struct {
	DeviceID string               `json:"device_id"`
	Room     *models.RoomSnapshot `json:"room"`
}

// TimerUpdatePayload carries the complete timer, absolute seconds included,
// plus a render-ready display string so dumb displays need no formatting
// logic of their own.
type TimerUpdatePayload struct {
	Timer   *models.Timer `json:"timer"`
	Display string        `json:"display"`
}

// NewTimerUpdate builds a timer_update payload for the given timer.
func NewTimerUpdate(t *models.Timer) TimerUpdatePayload {
	return TimerUpdatePayload{
		Timer:   t,
		Display: durfmt.FormatSeconds(t.CurrentSeconds),
	}
}

// TimerDeletedPayload announces a timer removal.
type TimerDeletedPayload struct {
	TimerID string `json:"timer_id"`
}

// TimerWarningPayload fires once per run when a countdown crosses a
// warning threshold.
type TimerWarningPayload struct {
	TimerID   string `json:"timer_id"`
	Threshold int    `json:"threshold"`
}

// DeviceConnectedPayload announces a new device in the room.
type DeviceConnectedPayload struct {
	Device *models.Device `json:"device"`
}

// DeviceDisconnectedPayload announces a device leaving the room.
type DeviceDisconnectedPayload struct {
	DeviceID string `json:"device_id"`
}

// DisplayMessagePayload carries a flash message for the displays.
type DisplayMessagePayload struct {
	Message *models.Message `json:"message"`
}

// AgendaUpdatedPayload carries the full replacement agenda.
type AgendaUpdatedPayload struct {
	Agenda []models.AgendaItem `json:"agenda"`
}

// SettingsUpdatedPayload carries the full resulting settings.
type SettingsUpdatedPayload struct {
	Settings models.Settings `json:"settings"`
}

// New builds a room event from a payload struct.
func New(roomCode string, eventType EventType, payload interface{}) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// ParsePayload parses an event's data into the payload struct for its type.
func ParsePayload(event *RoomEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeWelcome:
		var payload WelcomePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerUpdate:
		var payload TimerUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerDeleted:
		var payload TimerDeletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerWarning:
		var payload TimerWarningPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeDeviceConnected:
		var payload DeviceConnectedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeDeviceDisconnected:
		var payload DeviceDisconnectedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeDisplayMessage:
		var payload DisplayMessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAgendaUpdated:
		var payload AgendaUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSettingsUpdated:
		var payload SettingsUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}
