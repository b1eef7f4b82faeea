package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/showcall/stagetimer/internal/models"
)

// Room codes avoid ambiguous characters so they survive being read aloud or
// typed from the back of a conference hall.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	// maxCodeAttempts bounds code allocation; with a 31^6 code space this is
	// practically unreachable.
	maxCodeAttempts = 100
)

// ErrCodeSpaceExhausted is returned when no free room code could be found.
var ErrCodeSpaceExhausted = errors.New("room code space exhausted")

// Registry owns the process-wide mapping from room code to live room
// aggregate. It is constructed once at startup and injected into the
// coordinator.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
	clock clockwork.Clock
	grace time.Duration
}

// NewRegistry creates an empty registry. Rooms empty of devices longer than
// grace become eligible for teardown.
func NewRegistry(clock clockwork.Clock, grace time.Duration) *Registry {
	return &Registry{
		rooms: make(map[string]*models.Room),
		clock: clock,
		grace: grace,
	}
}

// Create allocates a fresh unique code and an empty room for it.
func (r *Registry) Create() (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := models.NewRoom(code)
		r.rooms[code] = room
		return room, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Get returns the live room for a code.
func (r *Registry) Get(code string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", code, models.ErrRoomNotFound)
	}
	return room, nil
}

// Restore inserts a room rebuilt from persisted state, keeping its code.
func (r *Registry) Restore(room *models.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[room.Code] = room
}

// Remove deletes a room from the registry.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, code)
}

// Expired returns the rooms that have been empty beyond the grace period.
func (r *Registry) Expired() []*models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	var expired []*models.Room
	for _, room := range r.rooms {
		if room.EmptyFor(r.grace, now) {
			expired = append(expired, room)
		}
	}
	return expired
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
