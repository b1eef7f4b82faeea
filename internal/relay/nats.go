package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/events"
)

// NATSRelay mirrors every room delta onto a NATS subject so out-of-process
// consumers (recording, overflow displays, analytics) can follow a session
// without holding a WebSocket to the server. Publishing is fire-and-forget;
// relay failures never affect command handling.
type NATSRelay struct {
	nc            *nats.Conn
	subjectPrefix string
}

// Config holds NATS relay settings.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default relay configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "stagetimer.rooms",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NewNATSRelay connects to NATS with reconnect handling.
func NewNATSRelay(config Config) (*NATSRelay, error) {
	opts := []nats.Option{
		nats.Name("stagetimer-relay"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", config.URL).Msg("NATS relay connected")
	return &NATSRelay{nc: nc, subjectPrefix: config.SubjectPrefix}, nil
}

// Publish mirrors one event onto the room's subject.
func (r *NATSRelay) Publish(event *events.RoomEvent) {
	subject := fmt.Sprintf("%s.%s.events", r.subjectPrefix, event.RoomCode)

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event for relay")
		return
	}

	if err := r.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish event to NATS")
	}
}

// Close drains the connection.
func (r *NATSRelay) Close() {
	if err := r.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}
