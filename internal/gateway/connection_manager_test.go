package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
)

func TestTrySendAfterClose(t *testing.T) {
	conn := &Connection{Send: make(chan []byte, 1)}

	if !conn.trySend([]byte("a")) {
		t.Fatal("send into an empty buffer should succeed")
	}
	if conn.trySend([]byte("b")) {
		t.Fatal("send into a full buffer should be dropped")
	}

	conn.closeSend()
	conn.closeSend() // idempotent

	if conn.trySend([]byte("c")) {
		t.Fatal("send after close should be dropped")
	}
}

func TestConcurrentSendAndClose(t *testing.T) {
	for i := 0; i < 100; i++ {
		conn := &Connection{Send: make(chan []byte, 4)}

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					conn.trySend([]byte("tick"))
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.closeSend()
		}()
		wg.Wait()
	}
}

func TestUnregisterConnectionIdempotent(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())

	var mu sync.Mutex
	var disconnects []uuid.UUID
	cm.OnDisconnect = func(roomCode string, deviceID uuid.UUID) {
		mu.Lock()
		disconnects = append(disconnects, deviceID)
		mu.Unlock()
	}

	device := models.NewDevice("Stage door", models.DeviceRoleViewer, "ABC234")
	conn := &Connection{
		Device:   device,
		RoomCode: device.RoomCode,
		Send:     make(chan []byte, 4),
		Manager:  cm,
	}
	cm.registerConnection(conn)

	cm.unregisterConnection(conn)
	cm.unregisterConnection(conn)

	mu.Lock()
	defer mu.Unlock()
	if len(disconnects) != 1 {
		t.Fatalf("OnDisconnect fired %d times, want 1", len(disconnects))
	}
	if total, rooms := cm.Stats(); total != 0 || rooms != 0 {
		t.Fatalf("stats after unregister = (%d, %d), want (0, 0)", total, rooms)
	}
}

func dialTestConnection(t *testing.T, cm *ConnectionManager, device *models.Device) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := cm.Upgrade(w, r, device); err != nil {
			t.Errorf("upgrade: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// A device dropping mid-broadcast must be silently removed from the fan-out,
// never crash the delivery loop.
func TestBroadcastRacingDisconnect(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)

	var mu sync.Mutex
	var disconnects []uuid.UUID
	cm.OnDisconnect = func(roomCode string, deviceID uuid.UUID) {
		mu.Lock()
		disconnects = append(disconnects, deviceID)
		mu.Unlock()
	}

	device := models.NewDevice("Front of house", models.DeviceRoleViewer, "ABC234")
	client := dialTestConnection(t, cm, device)

	timer := models.NewTimer("Keynote", models.TimerKindCountdown, 300, nil)
	event, err := events.New("ABC234", events.EventTypeTimerUpdate, events.NewTimerUpdate(timer))
	if err != nil {
		t.Fatalf("event: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			cm.Broadcast("ABC234", event)
		}
	}()
	client.Close()
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for {
		total, _ := cm.Stats()
		mu.Lock()
		fired := len(disconnects)
		mu.Unlock()
		if total == 0 && fired == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connection not torn down: %d connections, %d disconnect callbacks", total, fired)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcasts after teardown go nowhere and must stay harmless.
	cm.Broadcast("ABC234", event)
}
