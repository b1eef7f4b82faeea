package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageDisplaySeconds is how long a non-flashing message stays visible on
// a client. Flashing messages persist until cleared or superseded.
const MessageDisplaySeconds = 15

// Message is a free-form flash message broadcast to a room's displays.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Color     string    `json:"color,omitempty"`
	Bold      bool      `json:"bold,omitempty"`
	Uppercase bool      `json:"uppercase,omitempty"`
	Flashing  bool      `json:"flashing,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(text, color string, bold, uppercase, flashing bool) *Message {
	return &Message{
		ID:        uuid.New(),
		Text:      text,
		Color:     color,
		Bold:      bold,
		Uppercase: uppercase,
		Flashing:  flashing,
		CreatedAt: time.Now(),
	}
}
