package store

import (
	"context"
	"sync"

	"github.com/showcall/stagetimer/internal/models"
)

// MemoryStore keeps snapshots in process memory. It is the default backend;
// rooms do not survive a restart, which is acceptable for single-node
// deployments where sessions are short-lived anyway.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*models.RoomSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*models.RoomSnapshot),
	}
}

func (s *MemoryStore) SaveRoom(ctx context.Context, snap *models.RoomSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[snap.Code] = snap
	return nil
}

func (s *MemoryStore) LoadRooms(ctx context.Context) ([]*models.RoomSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]*models.RoomSnapshot, 0, len(s.rooms))
	for _, snap := range s.rooms {
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *MemoryStore) DeleteRoom(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
