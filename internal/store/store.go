package store

import (
	"context"

	"github.com/showcall/stagetimer/internal/models"
)

// Store persists room snapshots so live rooms survive a server restart.
// Which product backs it is a deployment choice; the coordinator only ever
// writes whole snapshots and reads them back at startup.
type Store interface {
	SaveRoom(ctx context.Context, snap *models.RoomSnapshot) error
	LoadRooms(ctx context.Context) ([]*models.RoomSnapshot, error)
	DeleteRoom(ctx context.Context, code string) error
	Close() error
}
