package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
	"github.com/showcall/stagetimer/internal/store"
)

// Broadcaster fans a room event out to every device currently connected to
// that room. Delivery is fire-and-forget: a slow or disconnected client
// misses events and re-syncs from a snapshot.
type Broadcaster interface {
	Broadcast(roomCode string, event *events.RoomEvent)
}

// Relay mirrors room events onto an external bus for out-of-process
// consumers. Optional; a nil relay disables mirroring.
type Relay interface {
	Publish(event *events.RoomEvent)
}

// Config holds coordinator tuning knobs.
type Config struct {
	// AutoAdvanceDelay is the pause between a countdown finishing and its
	// chained next timer starting.
	AutoAdvanceDelay time.Duration

	// SweepInterval is how often empty rooms are checked for teardown.
	SweepInterval time.Duration
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		AutoAdvanceDelay: 2 * time.Second,
		SweepInterval:    30 * time.Second,
	}
}

// Coordinator is the single mutation authority for all rooms. Every command
// is validated, applied atomically against the room aggregate, broadcast as
// a delta, and persisted. Command failures are local to the caller: no
// broadcast, no state change.
type Coordinator struct {
	registry    *Registry
	broadcaster Broadcaster
	store       store.Store
	relay       Relay
	clock       clockwork.Clock
	config      Config

	baseCtx context.Context

	tickCancels map[string]context.CancelFunc
	tickMu      sync.Mutex

	pendingAdvances map[string]*pendingAdvance
	advanceMu       sync.Mutex
}

// NewCoordinator creates a coordinator. The relay may be nil.
func NewCoordinator(registry *Registry, broadcaster Broadcaster, st store.Store, relay Relay, clock clockwork.Clock, config Config) *Coordinator {
	return &Coordinator{
		registry:        registry,
		broadcaster:     broadcaster,
		store:           st,
		relay:           relay,
		clock:           clock,
		config:          config,
		// Replaced by the Start context; rooms created before Start keep
		// ticking until their own teardown.
		baseCtx:         context.Background(),
		tickCancels:     make(map[string]context.CancelFunc),
		pendingAdvances: make(map[string]*pendingAdvance),
	}
}

// Start restores persisted rooms, then runs the teardown sweeper until the
// context is cancelled. Tick loops for live rooms run as long as the same
// context is alive.
func (c *Coordinator) Start(ctx context.Context) {
	c.baseCtx = ctx

	snaps, err := c.store.LoadRooms(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load persisted rooms")
	}
	for _, snap := range snaps {
		room := models.RestoreRoom(snap)
		c.registry.Restore(room)
		c.startTickLoop(room)
		log.Info().Str("room", room.Code).Int("timers", len(snap.Timers)).Msg("room restored from store")
	}

	go c.runSweeper(ctx)
}

// CreateRoom allocates a fresh room and returns its snapshot.
func (c *Coordinator) CreateRoom(ctx context.Context) (*models.RoomSnapshot, error) {
	room, err := c.registry.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	c.startTickLoop(room)
	c.persistRoom(ctx, room)

	log.Info().Str("room", room.Code).Msg("room created")
	return room.Snapshot(), nil
}

// Snapshot returns the full current state of a room.
func (c *Coordinator) Snapshot(code string) (*models.RoomSnapshot, error) {
	room, err := c.registry.Get(code)
	if err != nil {
		return nil, err
	}
	return room.Snapshot(), nil
}

// Join registers a new device with a room and returns the device plus the
// snapshot it reconciles from. The device_connected delta goes out to the
// other devices; the snapshot already includes the joiner.
func (c *Coordinator) Join(code string, role models.DeviceRole, name string) (*models.Device, *models.RoomSnapshot, error) {
	if !role.Valid() {
		return nil, nil, fmt.Errorf("unknown role %q: %w", role, models.ErrInvalidCommand)
	}

	room, err := c.registry.Get(code)
	if err != nil {
		return nil, nil, err
	}

	device := models.NewDevice(name, role, code)
	room.AddDevice(device)
	c.emit(code, events.EventTypeDeviceConnected, events.DeviceConnectedPayload{Device: device})

	log.Info().
		Str("room", code).
		Str("device_id", device.ID.String()).
		Str("role", string(role)).
		Msg("device joined room")

	return device, room.Snapshot(), nil
}

// Leave removes a device from its room. Removal is immediate and
// unconditional; commands the device already issued still apply normally.
func (c *Coordinator) Leave(code string, deviceID uuid.UUID) {
	room, err := c.registry.Get(code)
	if err != nil {
		return
	}

	device, err := room.RemoveDevice(deviceID)
	if err != nil {
		return
	}

	c.emit(code, events.EventTypeDeviceDisconnected, events.DeviceDisconnectedPayload{DeviceID: device.ID.String()})
	log.Info().Str("room", code).Str("device_id", deviceID.String()).Msg("device left room")
}

// Apply validates and executes one command against a room. On success the
// resulting deltas are broadcast and the room is persisted; on failure the
// error is returned to the caller only.
func (c *Coordinator) Apply(ctx context.Context, code string, deviceID uuid.UUID, cmd Command) (interface{}, error) {
	room, err := c.registry.Get(code)
	if err != nil {
		return nil, err
	}

	device, err := room.GetDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if device.Role != models.DeviceRoleController {
		return nil, fmt.Errorf("role %s may not issue commands: %w", device.Role, models.ErrForbidden)
	}

	result, err := c.dispatch(room, cmd)
	if err != nil {
		return nil, err
	}

	c.persistRoom(ctx, room)
	return result, nil
}

func (c *Coordinator) dispatch(room *models.Room, cmd Command) (interface{}, error) {
	switch cmd.Type {
	case CommandAddTimer:
		return c.applyAddTimer(room, cmd.AddTimer)

	case CommandStartTimer:
		id, err := requireTimerID(cmd)
		if err != nil {
			return nil, err
		}
		changed, err := room.StartTimer(id)
		if err != nil {
			return nil, err
		}
		// A manual start supersedes any pending auto-advance.
		c.cancelAutoAdvance(room.Code)
		for _, t := range changed {
			c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(t))
		}
		return changed[len(changed)-1], nil

	case CommandPauseTimer:
		id, err := requireTimerID(cmd)
		if err != nil {
			return nil, err
		}
		t, err := room.PauseTimer(id)
		if err != nil {
			return nil, err
		}
		c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(t))
		return t, nil

	case CommandStopTimer:
		id, err := requireTimerID(cmd)
		if err != nil {
			return nil, err
		}
		t, err := room.StopTimer(id)
		if err != nil {
			return nil, err
		}
		c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(t))
		return t, nil

	case CommandResetTimer:
		id, err := requireTimerID(cmd)
		if err != nil {
			return nil, err
		}
		t, err := room.ResetTimer(id)
		if err != nil {
			return nil, err
		}
		c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(t))
		return t, nil

	case CommandAdjustTime:
		id, err := requireTimerID(cmd)
		if err != nil {
			return nil, err
		}
		if cmd.AdjustSeconds == nil {
			return nil, fmt.Errorf("adjustTime requires adjust_seconds: %w", models.ErrInvalidCommand)
		}
		t, err := room.AdjustTimer(id, *cmd.AdjustSeconds)
		if err != nil {
			return nil, err
		}
		c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(t))
		return t, nil

	case CommandDeleteTimer:
		id, err := requireTimerID(cmd)
		if err != nil {
			return nil, err
		}
		if err := room.DeleteTimer(id); err != nil {
			return nil, err
		}
		c.emit(room.Code, events.EventTypeTimerDeleted, events.TimerDeletedPayload{TimerID: id.String()})
		return nil, nil

	case CommandSendMessage:
		if cmd.Message == nil || cmd.Message.Text == "" {
			return nil, fmt.Errorf("sendMessage requires text: %w", models.ErrInvalidCommand)
		}
		msg := models.NewMessage(cmd.Message.Text, cmd.Message.Color, cmd.Message.Bold, cmd.Message.Uppercase, cmd.Message.Flashing)
		appended := room.AppendMessage(msg)
		c.emit(room.Code, events.EventTypeDisplayMessage, events.DisplayMessagePayload{Message: appended})
		return appended, nil

	case CommandSetAgenda:
		for _, item := range cmd.Agenda {
			if item.Title == "" {
				return nil, fmt.Errorf("agenda item missing title: %w", models.ErrInvalidCommand)
			}
			if item.PlannedDurationSeconds < 0 {
				return nil, fmt.Errorf("agenda item %q has negative duration: %w", item.Title, models.ErrInvalidCommand)
			}
		}
		agenda := room.SetAgenda(cmd.Agenda)
		c.emit(room.Code, events.EventTypeAgendaUpdated, events.AgendaUpdatedPayload{Agenda: agenda})
		return agenda, nil

	case CommandClearAgenda:
		room.ClearAgenda()
		c.emit(room.Code, events.EventTypeAgendaUpdated, events.AgendaUpdatedPayload{Agenda: []models.AgendaItem{}})
		return []models.AgendaItem{}, nil

	case CommandUpdateSettings:
		if cmd.Settings == nil {
			return nil, fmt.Errorf("updateSettings requires settings: %w", models.ErrInvalidCommand)
		}
		settings := room.UpdateSettings(*cmd.Settings)
		c.emit(room.Code, events.EventTypeSettingsUpdated, events.SettingsUpdatedPayload{Settings: settings})
		return settings, nil

	default:
		return nil, fmt.Errorf("unknown command %q: %w", cmd.Type, models.ErrInvalidCommand)
	}
}

func (c *Coordinator) applyAddTimer(room *models.Room, input *AddTimerInput) (*models.Timer, error) {
	if input == nil {
		return nil, fmt.Errorf("addTimer requires timer fields: %w", models.ErrInvalidCommand)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("timer name is required: %w", models.ErrInvalidCommand)
	}
	if input.Kind != models.TimerKindCountdown && input.Kind != models.TimerKindStopwatch {
		return nil, fmt.Errorf("unknown timer kind %q: %w", input.Kind, models.ErrInvalidCommand)
	}
	if input.Kind == models.TimerKindCountdown && input.DurationSeconds <= 0 {
		return nil, fmt.Errorf("countdown duration must be positive: %w", models.ErrInvalidCommand)
	}
	for _, threshold := range input.WarningThresholds {
		if threshold < 0 {
			return nil, fmt.Errorf("warning threshold must be non-negative: %w", models.ErrInvalidCommand)
		}
	}

	timer := models.NewTimer(input.Name, input.Kind, input.DurationSeconds, input.WarningThresholds)
	created := room.AddTimer(timer)
	if input.NextTimerID != nil {
		updated, err := room.SetNextTimer(timer.ID, input.NextTimerID)
		if err != nil {
			// Roll the half-created timer back so a bad chain pointer never
			// leaves partial state behind.
			_ = room.DeleteTimer(timer.ID)
			return nil, err
		}
		created = updated
	}

	c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(created))
	return created, nil
}

func requireTimerID(cmd Command) (uuid.UUID, error) {
	if cmd.TimerID == nil {
		return uuid.Nil, fmt.Errorf("%s requires timer_id: %w", cmd.Type, models.ErrInvalidCommand)
	}
	return *cmd.TimerID, nil
}

// emit builds, broadcasts, and relays one delta event.
func (c *Coordinator) emit(roomCode string, eventType events.EventType, payload interface{}) {
	event, err := events.New(roomCode, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("room", roomCode).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	c.broadcaster.Broadcast(roomCode, event)
	if c.relay != nil {
		c.relay.Publish(event)
	}
}

// persistRoom writes the room snapshot to the store. Persistence failures
// never fail the command that triggered them; the in-memory room is the
// authority.
func (c *Coordinator) persistRoom(ctx context.Context, room *models.Room) {
	if err := c.store.SaveRoom(ctx, room.Snapshot()); err != nil {
		log.Error().Err(err).Str("room", room.Code).Msg("failed to persist room snapshot")
	}
}

// runSweeper tears down rooms that have been empty beyond the grace period.
func (c *Coordinator) runSweeper(ctx context.Context) {
	ticker := c.clock.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, room := range c.registry.Expired() {
				c.teardownRoom(ctx, room.Code)
			}
		}
	}
}

// teardownRoom removes a room and every scheduled task attached to it.
func (c *Coordinator) teardownRoom(ctx context.Context, code string) {
	c.stopTickLoop(code)
	c.cancelAutoAdvance(code)
	c.registry.Remove(code)
	if err := c.store.DeleteRoom(ctx, code); err != nil {
		log.Error().Err(err).Str("room", code).Msg("failed to delete persisted room")
	}
	log.Info().Str("room", code).Msg("room torn down after inactivity")
}
