package room

import (
	"github.com/google/uuid"

	"github.com/showcall/stagetimer/internal/models"
)

// CommandType identifies a room mutation command.
type CommandType string

const (
	CommandAddTimer       CommandType = "addTimer"
	CommandStartTimer     CommandType = "startTimer"
	CommandPauseTimer     CommandType = "pauseTimer"
	CommandStopTimer      CommandType = "stopTimer"
	CommandResetTimer     CommandType = "resetTimer"
	CommandAdjustTime     CommandType = "adjustTime"
	CommandDeleteTimer    CommandType = "deleteTimer"
	CommandSendMessage    CommandType = "sendMessage"
	CommandSetAgenda      CommandType = "setAgenda"
	CommandClearAgenda    CommandType = "clearAgenda"
	CommandUpdateSettings CommandType = "updateSettings"
)

// AddTimerInput holds the fields needed to create a timer.
type AddTimerInput struct {
	Name              string           `json:"name"`
	Kind              models.TimerKind `json:"kind"`
	DurationSeconds   int              `json:"duration_seconds"`
	WarningThresholds []int            `json:"warning_thresholds,omitempty"`
	NextTimerID       *uuid.UUID       `json:"next_timer_id,omitempty"`
}

// MessageInput holds the fields needed to send a display message.
type MessageInput struct {
	Text      string `json:"text"`
	Color     string `json:"color,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Uppercase bool   `json:"uppercase,omitempty"`
	Flashing  bool   `json:"flashing,omitempty"`
}

// Command is one mutation request against a room. Exactly the field matching
// Type is consulted; the rest are ignored.
type Command struct {
	Type          CommandType            `json:"type"`
	TimerID       *uuid.UUID             `json:"timer_id,omitempty"`
	AddTimer      *AddTimerInput         `json:"add_timer,omitempty"`
	AdjustSeconds *int                   `json:"adjust_seconds,omitempty"`
	Message       *MessageInput          `json:"message,omitempty"`
	Agenda        []models.AgendaItem    `json:"agenda,omitempty"`
	Settings      *models.SettingsUpdate `json:"settings,omitempty"`
}
