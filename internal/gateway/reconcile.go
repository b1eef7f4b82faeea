package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
)

// RoomView is the client-side read model shared by the controller, viewer,
// and agenda roles. It is seeded from a snapshot and then kept current by
// applying delta events with upsert semantics: unknown ids are inserted,
// known ids overwritten. Every timer_update carries absolute seconds, so
// applying duplicates or missing intermediate ticks cannot corrupt the view.
//
// A client that detects a transport gap discards the view and re-seeds from
// a fresh snapshot instead of attempting partial patching.
type RoomView struct {
	Code          string
	DeviceID      string
	Timers        map[uuid.UUID]*models.Timer
	TimerOrder    []uuid.UUID
	Devices       map[uuid.UUID]*models.Device
	Agenda        []models.AgendaItem
	Settings      models.Settings
	ActiveTimerID *uuid.UUID

	// CurrentMessage is the most recent display message; visibility windows
	// are evaluated against it by VisibleMessage.
	CurrentMessage *models.Message

	// Warnings accumulates fired warning thresholds per timer for display.
	Warnings map[uuid.UUID][]int

	// lastApplied guards against out-of-order timer updates: an event older
	// than the last applied update for the same timer is skipped.
	lastApplied map[uuid.UUID]time.Time
}

// NewRoomView returns an empty view awaiting its first snapshot.
func NewRoomView() *RoomView {
	return &RoomView{
		Timers:      make(map[uuid.UUID]*models.Timer),
		Devices:     make(map[uuid.UUID]*models.Device),
		Warnings:    make(map[uuid.UUID][]int),
		lastApplied: make(map[uuid.UUID]time.Time),
	}
}

// ApplySnapshot replaces the entire view with the snapshot's state. Used on
// join and after any reconnect.
func (v *RoomView) ApplySnapshot(snap *models.RoomSnapshot) {
	v.Code = snap.Code
	v.Timers = make(map[uuid.UUID]*models.Timer, len(snap.Timers))
	v.TimerOrder = v.TimerOrder[:0]
	v.Devices = make(map[uuid.UUID]*models.Device, len(snap.Devices))
	v.Warnings = make(map[uuid.UUID][]int)
	v.lastApplied = make(map[uuid.UUID]time.Time)
	v.Agenda = append([]models.AgendaItem(nil), snap.Agenda...)
	v.Settings = snap.Settings
	v.ActiveTimerID = snap.ActiveTimerID

	for _, t := range snap.Timers {
		v.Timers[t.ID] = t
		v.TimerOrder = append(v.TimerOrder, t.ID)
	}
	for _, d := range snap.Devices {
		v.Devices[d.ID] = d
	}
	if len(snap.Messages) > 0 {
		v.CurrentMessage = snap.Messages[len(snap.Messages)-1]
	} else {
		v.CurrentMessage = nil
	}
}

// ApplyEvent folds one delta event into the view.
func (v *RoomView) ApplyEvent(event *events.RoomEvent) error {
	payload, err := events.ParsePayload(event)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case events.WelcomePayload:
		v.DeviceID = p.DeviceID
		v.ApplySnapshot(p.Room)

	case events.TimerUpdatePayload:
		v.upsertTimer(p.Timer, event.Timestamp)

	case events.TimerDeletedPayload:
		id, err := uuid.Parse(p.TimerID)
		if err != nil {
			return err
		}
		v.removeTimer(id)

	case events.TimerWarningPayload:
		id, err := uuid.Parse(p.TimerID)
		if err != nil {
			return err
		}
		v.Warnings[id] = append(v.Warnings[id], p.Threshold)

	case events.DeviceConnectedPayload:
		v.Devices[p.Device.ID] = p.Device

	case events.DeviceDisconnectedPayload:
		id, err := uuid.Parse(p.DeviceID)
		if err != nil {
			return err
		}
		delete(v.Devices, id)

	case events.DisplayMessagePayload:
		v.CurrentMessage = p.Message

	case events.AgendaUpdatedPayload:
		v.Agenda = p.Agenda

	case events.SettingsUpdatedPayload:
		v.Settings = p.Settings
	}

	return nil
}

func (v *RoomView) upsertTimer(t *models.Timer, eventTime time.Time) {
	if last, ok := v.lastApplied[t.ID]; ok && eventTime.Before(last) {
		// Stale update delivered late; the newer absolute value already won.
		return
	}
	v.lastApplied[t.ID] = eventTime

	if _, known := v.Timers[t.ID]; !known {
		v.TimerOrder = append(v.TimerOrder, t.ID)
	}
	v.Timers[t.ID] = t

	switch t.State {
	case models.TimerStateRunning:
		id := t.ID
		v.ActiveTimerID = &id
	case models.TimerStateFinished:
		if v.ActiveTimerID != nil && *v.ActiveTimerID == t.ID {
			v.ActiveTimerID = nil
		}
	}
}

func (v *RoomView) removeTimer(id uuid.UUID) {
	delete(v.Timers, id)
	delete(v.Warnings, id)
	delete(v.lastApplied, id)
	for i, ordered := range v.TimerOrder {
		if ordered == id {
			v.TimerOrder = append(v.TimerOrder[:i], v.TimerOrder[i+1:]...)
			break
		}
	}
	if v.ActiveTimerID != nil && *v.ActiveTimerID == id {
		v.ActiveTimerID = nil
	}
}

// OrderedTimers returns the timers in display (insertion) order.
func (v *RoomView) OrderedTimers() []*models.Timer {
	timers := make([]*models.Timer, 0, len(v.TimerOrder))
	for _, id := range v.TimerOrder {
		if t, ok := v.Timers[id]; ok {
			timers = append(timers, t)
		}
	}
	return timers
}

// VisibleMessage returns the message the display should currently show:
// a flashing message persists until superseded, anything else expires after
// its display window.
func (v *RoomView) VisibleMessage(now time.Time) *models.Message {
	if v.CurrentMessage == nil {
		return nil
	}
	if v.CurrentMessage.Flashing {
		return v.CurrentMessage
	}
	if now.Sub(v.CurrentMessage.CreatedAt) < models.MessageDisplaySeconds*time.Second {
		return v.CurrentMessage
	}
	return nil
}
