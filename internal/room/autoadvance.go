package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/events"
	"github.com/showcall/stagetimer/internal/models"
)

// pendingAdvance is one scheduled auto-advance start, keyed by room code so
// at most one advance is pending per room.
type pendingAdvance struct {
	timer  clockwork.Timer
	cancel context.CancelFunc
}

// scheduleAutoAdvance arms a cancellable one-shot timer that starts the
// chained next timer after the configured delay. If the room is torn down or
// the target timer deleted before the delay elapses, the start is dropped
// silently.
func (c *Coordinator) scheduleAutoAdvance(roomCode string, nextTimerID uuid.UUID) {
	ctx, cancel := context.WithCancel(c.baseCtx)
	timer := c.clock.NewTimer(c.config.AutoAdvanceDelay)
	c.replaceAdvanceTimer(roomCode, &pendingAdvance{timer: timer, cancel: cancel})

	go func() {
		select {
		case <-timer.Chan():
			c.removeAdvanceTimer(roomCode)
			c.fireAutoAdvance(roomCode, nextTimerID)
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			log.Debug().Str("room", roomCode).Msg("auto-advance cancelled")
		}
	}()

	log.Debug().
		Str("room", roomCode).
		Str("next_timer_id", nextTimerID.String()).
		Dur("delay", c.config.AutoAdvanceDelay).
		Msg("scheduled auto-advance")
}

func (c *Coordinator) fireAutoAdvance(roomCode string, nextTimerID uuid.UUID) {
	room, err := c.registry.Get(roomCode)
	if err != nil {
		// Room torn down while the advance was pending.
		return
	}

	changed, err := room.StartTimer(nextTimerID)
	if err != nil {
		if errors.Is(err, models.ErrTimerNotFound) {
			// Target deleted while the advance was pending; drop silently.
			log.Debug().Str("room", roomCode).Str("timer_id", nextTimerID.String()).Msg("auto-advance target gone")
			return
		}
		log.Warn().Err(err).Str("room", roomCode).Msg("auto-advance start failed")
		return
	}

	for _, t := range changed {
		c.emit(roomCode, events.EventTypeTimerUpdate, events.NewTimerUpdate(t))
	}
	c.persistRoom(context.Background(), room)
	log.Info().Str("room", roomCode).Str("timer_id", nextTimerID.String()).Msg("auto-advanced to chained timer")
}

// replaceAdvanceTimer atomically replaces the pending advance for a room,
// cancelling any existing one so a newer schedule always wins.
func (c *Coordinator) replaceAdvanceTimer(roomCode string, adv *pendingAdvance) {
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	if existing, ok := c.pendingAdvances[roomCode]; ok {
		existing.cancel()
		stopAndDrainTimer(existing.timer)
	}
	c.pendingAdvances[roomCode] = adv
}

func (c *Coordinator) removeAdvanceTimer(roomCode string) {
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()
	delete(c.pendingAdvances, roomCode)
}

// cancelAutoAdvance drops the pending advance for a room, if any.
func (c *Coordinator) cancelAutoAdvance(roomCode string) {
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	if adv, ok := c.pendingAdvances[roomCode]; ok {
		adv.cancel()
		stopAndDrainTimer(adv.timer)
		delete(c.pendingAdvances, roomCode)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
