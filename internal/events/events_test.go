package events

import (
	"testing"

	"github.com/showcall/stagetimer/internal/models"
)

func TestNewTimerUpdateCarriesDisplayString(t *testing.T) {
	timer := models.NewTimer("Talk", models.TimerKindCountdown, 330, nil)
	payload := NewTimerUpdate(timer)

	if payload.Display != "5:30" {
		t.Fatalf("display = %q, want 5:30", payload.Display)
	}

	event, err := New("ABC234", EventTypeTimerUpdate, payload)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parsed, err := ParsePayload(event)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, ok := parsed.(TimerUpdatePayload)
	if !ok {
		t.Fatalf("payload type = %T, want TimerUpdatePayload", parsed)
	}
	if got.Timer.ID != timer.ID || got.Display != "5:30" {
		t.Fatal("round trip should preserve timer id and display string")
	}
}

func TestParsePayloadUnknownType(t *testing.T) {
	event, err := New("ABC234", EventTypeTimerDeleted, TimerDeletedPayload{TimerID: "x"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	event.Type = "time_warp"

	if _, err := ParsePayload(event); err == nil {
		t.Fatal("unknown event type should error")
	}
}
