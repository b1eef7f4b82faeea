package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
	"github.com/showcall/stagetimer/internal/room"
	"github.com/showcall/stagetimer/internal/store"
)

func timerUpdateEvent(t *testing.T, code string, timer *models.Timer, at time.Time) *events.RoomEvent {
	t.Helper()

	event, err := events.New(code, events.EventTypeTimerUpdate, events.NewTimerUpdate(timer))
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	event.Timestamp = at
	return event
}

func TestApplySnapshotSeedsView(t *testing.T) {
	r := models.NewRoom("ABC234")
	a := r.AddTimer(models.NewTimer("A", models.TimerKindCountdown, 300, nil))
	b := r.AddTimer(models.NewTimer("B", models.TimerKindStopwatch, 0, nil))
	r.AddDevice(models.NewDevice("op", models.DeviceRoleController, r.Code))
	r.AppendMessage(models.NewMessage("hello", "", false, false, false))

	view := NewRoomView()
	view.ApplySnapshot(r.Snapshot())

	if view.Code != "ABC234" {
		t.Fatalf("code = %q, want ABC234", view.Code)
	}
	ordered := view.OrderedTimers()
	if len(ordered) != 2 || ordered[0].ID != a.ID || ordered[1].ID != b.ID {
		t.Fatal("timers should keep display order")
	}
	if len(view.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(view.Devices))
	}
	if view.CurrentMessage == nil || view.CurrentMessage.Text != "hello" {
		t.Fatal("newest message should seed the view")
	}
}

func TestOutOfOrderTimerUpdatesConverge(t *testing.T) {
	base := time.Now()
	timer := models.NewTimer("A", models.TimerKindCountdown, 300, nil)
	timer.Start()

	at298 := timer.Clone()
	at298.CurrentSeconds = 298
	at297 := timer.Clone()
	at297.CurrentSeconds = 297

	view := NewRoomView()
	if err := view.ApplyEvent(timerUpdateEvent(t, "ABC234", at297, base.Add(3*time.Second))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// The older update arrives late; the newer absolute value must win.
	if err := view.ApplyEvent(timerUpdateEvent(t, "ABC234", at298, base.Add(2*time.Second))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := view.Timers[timer.ID].CurrentSeconds; got != 297 {
		t.Fatalf("current = %d, want 297 after stale update", got)
	}

	// Duplicates of the newest update are harmless.
	if err := view.ApplyEvent(timerUpdateEvent(t, "ABC234", at297, base.Add(3*time.Second))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := view.Timers[timer.ID].CurrentSeconds; got != 297 {
		t.Fatalf("current = %d, want 297 after duplicate", got)
	}
	if len(view.TimerOrder) != 1 {
		t.Fatalf("timer order = %d entries, want 1", len(view.TimerOrder))
	}
}

func TestRunningUpdateMovesActivePointer(t *testing.T) {
	view := NewRoomView()
	now := time.Now()

	a := models.NewTimer("A", models.TimerKindCountdown, 300, nil)
	a.Start()
	if err := view.ApplyEvent(timerUpdateEvent(t, "ABC234", a, now)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if view.ActiveTimerID == nil || *view.ActiveTimerID != a.ID {
		t.Fatal("running update should set the active pointer")
	}

	finished := a.Clone()
	finished.State = models.TimerStateFinished
	finished.CurrentSeconds = 0
	if err := view.ApplyEvent(timerUpdateEvent(t, "ABC234", finished, now.Add(time.Second))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if view.ActiveTimerID != nil {
		t.Fatal("finished update should clear the active pointer")
	}
}

func TestTimerDeletedRemovesFromView(t *testing.T) {
	view := NewRoomView()
	timer := models.NewTimer("A", models.TimerKindCountdown, 300, nil)
	timer.Start()
	if err := view.ApplyEvent(timerUpdateEvent(t, "ABC234", timer, time.Now())); err != nil {
		t.Fatalf("apply: %v", err)
	}

	event, err := events.New("ABC234", events.EventTypeTimerDeleted, events.TimerDeletedPayload{TimerID: timer.ID.String()})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := view.ApplyEvent(event); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(view.Timers) != 0 || len(view.TimerOrder) != 0 {
		t.Fatal("deleted timer should leave the view")
	}
	if view.ActiveTimerID != nil {
		t.Fatal("deleting the active timer should clear the pointer")
	}
}

func TestVisibleMessageWindow(t *testing.T) {
	view := NewRoomView()
	now := time.Now()

	if view.VisibleMessage(now) != nil {
		t.Fatal("empty view should show no message")
	}

	plain := models.NewMessage("five minutes left", "", false, false, false)
	plain.CreatedAt = now
	view.CurrentMessage = plain
	if view.VisibleMessage(now.Add(5*time.Second)) == nil {
		t.Fatal("message should be visible within its display window")
	}
	if view.VisibleMessage(now.Add(20*time.Second)) != nil {
		t.Fatal("message should expire after its display window")
	}

	flashing := models.NewMessage("WRAP UP", "red", true, true, true)
	flashing.CreatedAt = now
	view.CurrentMessage = flashing
	if view.VisibleMessage(now.Add(time.Hour)) == nil {
		t.Fatal("flashing message should persist until superseded")
	}
}

func TestDeviceEventsMaintainRoster(t *testing.T) {
	view := NewRoomView()
	device := models.NewDevice("display", models.DeviceRoleViewer, "ABC234")

	connected, err := events.New("ABC234", events.EventTypeDeviceConnected, events.DeviceConnectedPayload{Device: device})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := view.ApplyEvent(connected); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(view.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(view.Devices))
	}

	disconnected, err := events.New("ABC234", events.EventTypeDeviceDisconnected, events.DeviceDisconnectedPayload{DeviceID: device.ID.String()})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := view.ApplyEvent(disconnected); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(view.Devices) != 0 {
		t.Fatalf("devices = %d, want 0", len(view.Devices))
	}
}

func TestWelcomeEventSeedsView(t *testing.T) {
	r := models.NewRoom("ABC234")
	r.AddTimer(models.NewTimer("A", models.TimerKindCountdown, 300, nil))
	deviceID := uuid.New().String()

	event, err := events.New("ABC234", events.EventTypeWelcome, events.WelcomePayload{
		DeviceID: deviceID,
		Room:     r.Snapshot(),
	})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}

	view := NewRoomView()
	if err := view.ApplyEvent(event); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if view.DeviceID != deviceID {
		t.Fatalf("device id = %q, want %q", view.DeviceID, deviceID)
	}
	if len(view.Timers) != 1 {
		t.Fatalf("timers = %d, want 1", len(view.Timers))
	}
}

// recordingBroadcaster collects the full delta stream for replay.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []*events.RoomEvent
}

func (b *recordingBroadcaster) Broadcast(roomCode string, event *events.RoomEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) all() []*events.RoomEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*events.RoomEvent(nil), b.events...)
}

// A view seeded from the initial snapshot and fed every delta must converge
// on the same state as a view seeded from the final snapshot.
func TestSnapshotAndDeltaReplayConverge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	broadcaster := &recordingBroadcaster{}
	registry := room.NewRegistry(clock, 10*time.Minute)
	coordinator := room.NewCoordinator(registry, broadcaster, store.NewMemoryStore(), nil, clock, room.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coordinator.Start(ctx)

	snap, err := coordinator.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	code := snap.Code
	initial, err := coordinator.Snapshot(code)
	if err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}

	controller, _, err := coordinator.Join(code, models.DeviceRoleController, "operator")
	if err != nil {
		t.Fatalf("join controller: %v", err)
	}

	mustApply := func(cmd room.Command) interface{} {
		t.Helper()
		result, err := coordinator.Apply(ctx, code, controller.ID, cmd)
		if err != nil {
			t.Fatalf("apply %s: %v", cmd.Type, err)
		}
		return result
	}

	a := mustApply(room.Command{Type: room.CommandAddTimer, AddTimer: &room.AddTimerInput{
		Name: "Keynote", Kind: models.TimerKindCountdown, DurationSeconds: 300, WarningThresholds: []int{100},
	}}).(*models.Timer)
	mustApply(room.Command{Type: room.CommandAddTimer, AddTimer: &room.AddTimerInput{
		Name: "Q&A", Kind: models.TimerKindStopwatch,
	}})
	mustApply(room.Command{Type: room.CommandStartTimer, TimerID: &a.ID})
	mustApply(room.Command{Type: room.CommandAdjustTime, TimerID: &a.ID, AdjustSeconds: intPtr(-30)})
	mustApply(room.Command{Type: room.CommandSendMessage, Message: &room.MessageInput{Text: "mic check", Bold: true}})
	mustApply(room.Command{Type: room.CommandSetAgenda, Agenda: []models.AgendaItem{
		{Title: "Opening", PlannedDurationSeconds: 300},
		{Title: "Demo", PlannedDurationSeconds: 600, Speaker: "Sam"},
	}})
	theme := "dark"
	mustApply(room.Command{Type: room.CommandUpdateSettings, Settings: &models.SettingsUpdate{Theme: &theme}})

	viewer, _, err := coordinator.Join(code, models.DeviceRoleViewer, "display")
	if err != nil {
		t.Fatalf("join viewer: %v", err)
	}
	coordinator.Leave(code, viewer.ID)

	fromSnapshot := NewRoomView()
	final, err := coordinator.Snapshot(code)
	if err != nil {
		t.Fatalf("final snapshot: %v", err)
	}
	fromSnapshot.ApplySnapshot(final)

	fromReplay := NewRoomView()
	fromReplay.ApplySnapshot(initial)
	for _, event := range broadcaster.all() {
		if err := fromReplay.ApplyEvent(event); err != nil {
			t.Fatalf("replay %s: %v", event.Type, err)
		}
	}

	if diff := cmp.Diff(fromSnapshot.Timers, fromReplay.Timers); diff != "" {
		t.Fatalf("timers diverge (-snapshot +replay):\n%s", diff)
	}
	if diff := cmp.Diff(fromSnapshot.TimerOrder, fromReplay.TimerOrder); diff != "" {
		t.Fatalf("timer order diverges (-snapshot +replay):\n%s", diff)
	}
	if diff := cmp.Diff(fromSnapshot.Devices, fromReplay.Devices); diff != "" {
		t.Fatalf("devices diverge (-snapshot +replay):\n%s", diff)
	}
	if diff := cmp.Diff(fromSnapshot.Agenda, fromReplay.Agenda); diff != "" {
		t.Fatalf("agenda diverges (-snapshot +replay):\n%s", diff)
	}
	if diff := cmp.Diff(fromSnapshot.Settings, fromReplay.Settings); diff != "" {
		t.Fatalf("settings diverge (-snapshot +replay):\n%s", diff)
	}
	if diff := cmp.Diff(fromSnapshot.ActiveTimerID, fromReplay.ActiveTimerID); diff != "" {
		t.Fatalf("active timer diverges (-snapshot +replay):\n%s", diff)
	}
	if diff := cmp.Diff(fromSnapshot.CurrentMessage, fromReplay.CurrentMessage); diff != "" {
		t.Fatalf("current message diverges (-snapshot +replay):\n%s", diff)
	}
}

func intPtr(i int) *int { return &i }
