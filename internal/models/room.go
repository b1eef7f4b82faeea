package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageLogCap is how many messages a room retains. Older messages are
// rotated out; clients only ever need the recent window.
const MessageLogCap = 50

// Room is the authoritative aggregate for one coordinated session. All
// mutation goes through its methods, each of which holds the room lock for
// the full command, so every command is applied atomically and in receipt
// order.
type Room struct {
	Code          string
	Timers        []*Timer
	Messages      []*Message
	Agenda        []AgendaItem
	Settings      Settings
	ActiveTimerID *uuid.UUID
	Devices       map[uuid.UUID]*Device
	CreatedAt     time.Time

	// EmptySince is set when the last device leaves; the registry sweeper
	// uses it to decide teardown eligibility.
	EmptySince *time.Time

	mu sync.Mutex
}

// RoomSnapshot is the full serializable state of a room, handed to joining
// or reconnecting clients so they converge without replaying history.
type RoomSnapshot struct {
	Code          string       `json:"code"`
	Timers        []*Timer     `json:"timers"`
	Messages      []*Message   `json:"messages"`
	Agenda        []AgendaItem `json:"agenda"`
	Settings      Settings     `json:"settings"`
	ActiveTimerID *uuid.UUID   `json:"active_timer_id,omitempty"`
	Devices       []*Device    `json:"devices"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TickResult describes what one tick of the active timer changed.
type TickResult struct {
	Timer       *Timer
	Warnings    []int
	Finished    bool
	NextTimerID *uuid.UUID
	AutoAdvance bool
}

// NewRoom creates an empty room with default settings. The empty grace
// period starts immediately so a room that nobody ever joins is still
// reclaimed by the sweeper.
func NewRoom(code string) *Room {
	now := time.Now()
	return &Room{
		Code:       code,
		Settings:   DefaultSettings(),
		Devices:    make(map[uuid.UUID]*Device),
		CreatedAt:  now,
		EmptySince: &now,
	}
}

// findTimer returns the timer with the given id. Caller must hold r.mu.
func (r *Room) findTimer(id uuid.UUID) (*Timer, error) {
	for _, t := range r.Timers {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("timer %s: %w", id, ErrTimerNotFound)
}

// AddTimer appends a timer to the room's display order and returns a clone.
func (r *Room) AddTimer(t *Timer) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Timers = append(r.Timers, t)
	return t.Clone()
}

// GetTimer returns a clone of the timer with the given id.
func (r *Room) GetTimer(id uuid.UUID) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// StartTimer starts the given timer, forcing whichever timer was previously
// running to PAUSED so at most one timer runs at any instant. FINISHED is
// terminal: a finished timer must be reset before it can start again. It
// returns clones of every timer whose state changed, the started timer last.
func (r *Room) StartTimer(id uuid.UUID) ([]*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}
	if t.State == TimerStateRunning {
		return nil, fmt.Errorf("timer %s already running: %w", id, ErrInvalidCommand)
	}
	if t.State == TimerStateFinished {
		return nil, fmt.Errorf("timer %s finished, reset it before starting: %w", id, ErrInvalidCommand)
	}

	var changed []*Timer
	for _, other := range r.Timers {
		if other.ID != id && other.State == TimerStateRunning {
			other.Pause()
			changed = append(changed, other.Clone())
		}
	}

	t.Start()
	r.ActiveTimerID = &t.ID
	changed = append(changed, t.Clone())
	return changed, nil
}

// PauseTimer pauses a running timer.
func (r *Room) PauseTimer(id uuid.UUID) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}
	if t.State != TimerStateRunning {
		return nil, fmt.Errorf("timer %s not running: %w", id, ErrInvalidCommand)
	}

	t.Pause()
	return t.Clone(), nil
}

// StopTimer stops a timer from any state and clears the active pointer if it
// pointed at this timer.
func (r *Room) StopTimer(id uuid.UUID) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}

	t.Stop()
	if r.ActiveTimerID != nil && *r.ActiveTimerID == id {
		r.ActiveTimerID = nil
	}
	return t.Clone(), nil
}

// ResetTimer restores a timer's count to its initial value.
func (r *Room) ResetTimer(id uuid.UUID) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}

	t.Reset()
	return t.Clone(), nil
}

// AdjustTimer adds deltaSeconds to a timer's count, clamped at zero.
func (r *Room) AdjustTimer(id uuid.UUID, deltaSeconds int) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}

	t.Adjust(deltaSeconds)
	return t.Clone(), nil
}

// DeleteTimer removes a timer from the room. Any chain pointers referencing
// it are cleared so auto-advance never targets a deleted timer.
func (r *Room) DeleteTimer(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, t := range r.Timers {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("timer %s: %w", id, ErrTimerNotFound)
	}

	r.Timers = append(r.Timers[:idx], r.Timers[idx+1:]...)
	if r.ActiveTimerID != nil && *r.ActiveTimerID == id {
		r.ActiveTimerID = nil
	}
	for _, t := range r.Timers {
		if t.NextTimerID != nil && *t.NextTimerID == id {
			t.NextTimerID = nil
		}
	}
	return nil
}

// SetNextTimer chains a timer to auto-advance into another.
func (r *Room) SetNextTimer(id uuid.UUID, next *uuid.UUID) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.findTimer(id)
	if err != nil {
		return nil, err
	}
	if next != nil {
		if _, err := r.findTimer(*next); err != nil {
			return nil, err
		}
	}

	t.NextTimerID = next
	return t.Clone(), nil
}

// Tick advances the currently running timer by one second, if any. A nil
// result means no timer was running. When a countdown finishes the active
// pointer is cleared; the result carries what the coordinator needs to
// schedule auto-advance.
func (r *Room) Tick() *TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var running *Timer
	for _, t := range r.Timers {
		if t.State == TimerStateRunning {
			running = t
			break
		}
	}
	if running == nil {
		return nil
	}

	warnings, finished := running.Tick()
	result := &TickResult{
		Timer:       running.Clone(),
		Warnings:    warnings,
		Finished:    finished,
		AutoAdvance: r.Settings.AutoAdvance,
	}
	if finished {
		if r.ActiveTimerID != nil && *r.ActiveTimerID == running.ID {
			r.ActiveTimerID = nil
		}
		if running.NextTimerID != nil {
			next := *running.NextTimerID
			result.NextTimerID = &next
		}
	}
	return result
}

// AppendMessage appends to the capped message log and returns a copy.
func (r *Room) AppendMessage(m *Message) *Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Messages = append(r.Messages, m)
	if len(r.Messages) > MessageLogCap {
		r.Messages = r.Messages[len(r.Messages)-MessageLogCap:]
	}
	cp := *m
	return &cp
}

// SetAgenda replaces the room's agenda.
func (r *Room) SetAgenda(items []AgendaItem) []AgendaItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Agenda = append([]AgendaItem(nil), items...)
	return append([]AgendaItem(nil), r.Agenda...)
}

// ClearAgenda removes all agenda items.
func (r *Room) ClearAgenda() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Agenda = nil
}

// UpdateSettings merges the update into the room's settings and returns the
// resulting settings.
func (r *Room) UpdateSettings(u SettingsUpdate) Settings {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Settings.Apply(u)
	return r.Settings
}

// AddDevice registers a device with the room.
func (r *Room) AddDevice(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Devices[d.ID] = d
	r.EmptySince = nil
}

// RemoveDevice unregisters a device. When the last device leaves, the empty
// timestamp starts the teardown grace period.
func (r *Room) RemoveDevice(id uuid.UUID) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.Devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, ErrDeviceNotFound)
	}
	delete(r.Devices, id)
	if len(r.Devices) == 0 {
		now := time.Now()
		r.EmptySince = &now
	}
	cp := *d
	return &cp, nil
}

// GetDevice returns a copy of the registered device.
func (r *Room) GetDevice(id uuid.UUID) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.Devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, ErrDeviceNotFound)
	}
	cp := *d
	return &cp, nil
}

// EmptyFor reports whether the room has had zero devices for at least the
// given grace period.
func (r *Room) EmptyFor(grace time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.Devices) == 0 && r.EmptySince != nil && now.Sub(*r.EmptySince) >= grace
}

// Snapshot returns the full current state of the room as deep copies, safe
// to marshal outside the room lock.
func (r *Room) Snapshot() *RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &RoomSnapshot{
		Code:      r.Code,
		Timers:    make([]*Timer, 0, len(r.Timers)),
		Messages:  make([]*Message, 0, len(r.Messages)),
		Agenda:    append([]AgendaItem(nil), r.Agenda...),
		Settings:  r.Settings,
		Devices:   make([]*Device, 0, len(r.Devices)),
		CreatedAt: r.CreatedAt,
	}
	if r.ActiveTimerID != nil {
		id := *r.ActiveTimerID
		snap.ActiveTimerID = &id
	}
	for _, t := range r.Timers {
		snap.Timers = append(snap.Timers, t.Clone())
	}
	for _, m := range r.Messages {
		cp := *m
		snap.Messages = append(snap.Messages, &cp)
	}
	for _, d := range r.Devices {
		cp := *d
		snap.Devices = append(snap.Devices, &cp)
	}
	return snap
}

// RestoreRoom rebuilds a room aggregate from a persisted snapshot. Devices
// are not restored: they are live connections, not durable state. Running
// timers come back paused so a restarted server never silently loses time.
func RestoreRoom(snap *RoomSnapshot) *Room {
	r := NewRoom(snap.Code)
	r.CreatedAt = snap.CreatedAt
	r.Settings = snap.Settings
	r.Agenda = append([]AgendaItem(nil), snap.Agenda...)
	for _, t := range snap.Timers {
		cp := t.Clone()
		if cp.State == TimerStateRunning {
			cp.State = TimerStatePaused
		}
		r.Timers = append(r.Timers, cp)
	}
	for _, m := range snap.Messages {
		cp := *m
		r.Messages = append(r.Messages, &cp)
	}
	if snap.ActiveTimerID != nil {
		id := *snap.ActiveTimerID
		r.ActiveTimerID = &id
	}
	now := time.Now()
	r.EmptySince = &now
	return r
}
