package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
)

// startTickLoop launches the per-room tick loop. The loop is the only source
// of autonomous mutation: one tick per second, applied to whichever timer is
// running.
func (c *Coordinator) startTickLoop(room *models.Room) {
	ctx, cancel := context.WithCancel(c.baseCtx)

	c.tickMu.Lock()
	if existing, ok := c.tickCancels[room.Code]; ok {
		existing()
	}
	c.tickCancels[room.Code] = cancel
	c.tickMu.Unlock()

	go c.tickLoop(ctx, room)
}

func (c *Coordinator) stopTickLoop(code string) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	if cancel, ok := c.tickCancels[code]; ok {
		cancel()
		delete(c.tickCancels, code)
	}
}

func (c *Coordinator) tickLoop(ctx context.Context, room *models.Room) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.applyTick(room)
		}
	}
}

// applyTick advances the room's running timer by one second and broadcasts
// the resulting deltas. Each timer_update carries the absolute current
// seconds, so a client that misses ticks still converges on the next one.
func (c *Coordinator) applyTick(room *models.Room) {
	result := room.Tick()
	if result == nil {
		return
	}

	c.emit(room.Code, events.EventTypeTimerUpdate, events.NewTimerUpdate(result.Timer))
	for _, threshold := range result.Warnings {
		c.emit(room.Code, events.EventTypeTimerWarning, events.TimerWarningPayload{
			TimerID:   result.Timer.ID.String(),
			Threshold: threshold,
		})
		log.Debug().
			Str("room", room.Code).
			Str("timer_id", result.Timer.ID.String()).
			Int("threshold", threshold).
			Msg("warning threshold crossed")
	}

	if result.Finished {
		log.Info().Str("room", room.Code).Str("timer_id", result.Timer.ID.String()).Msg("countdown finished")
		c.persistRoom(context.Background(), room)
		if result.AutoAdvance && result.NextTimerID != nil {
			c.scheduleAutoAdvance(room.Code, *result.NextTimerID)
		}
	}
}
