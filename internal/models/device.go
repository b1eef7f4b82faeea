package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceRole defines what a connected device may do in a room.
type DeviceRole string

const (
	DeviceRoleController DeviceRole = "CONTROLLER"
	DeviceRoleViewer     DeviceRole = "VIEWER"
)

// Valid reports whether the role is a known role.
func (r DeviceRole) Valid() bool {
	return r == DeviceRoleController || r == DeviceRoleViewer
}

// Device is one live connection to a room. Its identity is ephemeral: a
// device exists from handshake to disconnect and belongs to exactly one room.
type Device struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Role        DeviceRole `json:"role"`
	RoomCode    string     `json:"room_code"`
	ConnectedAt time.Time  `json:"connected_at"`
}

// NewDevice creates a device attached to the given room.
func NewDevice(name string, role DeviceRole, roomCode string) *Device {
	return &Device{
		ID:          uuid.New(),
		Name:        name,
		Role:        role,
		RoomCode:    roomCode,
		ConnectedAt: time.Now(),
	}
}
