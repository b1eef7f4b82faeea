package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/showcall/stagetimer/internal/api/rooms"
	"github.com/showcall/stagetimer/internal/gateway"
	"github.com/showcall/stagetimer/internal/relay"
	"github.com/showcall/stagetimer/internal/room"
	"github.com/showcall/stagetimer/internal/store"
)

// Services holds the wired application components.
type Services struct {
	Registry          *room.Registry
	Coordinator       *room.Coordinator
	ConnectionManager *gateway.ConnectionManager
	WSHandler         *gateway.WebSocketHandler
	RoomHandler       *rooms.Handler
	Store             store.Store
	Relay             *relay.NATSRelay
}

func setupServices(config *Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	st, err := setupStore(config)
	if err != nil {
		return nil, err
	}

	var coordinatorRelay room.Relay
	var natsRelay *relay.NATSRelay
	if config.NATS.URL != "" {
		relayConfig := relay.DefaultConfig()
		relayConfig.URL = config.NATS.URL
		relayConfig.SubjectPrefix = config.NATS.SubjectPrefix
		natsRelay, err = relay.NewNATSRelay(relayConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to set up NATS relay: %w", err)
		}
		coordinatorRelay = natsRelay
	}

	registry := room.NewRegistry(clock, config.grace())
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	coordinatorConfig := room.DefaultConfig()
	coordinatorConfig.AutoAdvanceDelay = config.autoAdvanceDelay()
	coordinatorConfig.SweepInterval = config.sweepInterval()

	coordinator := room.NewCoordinator(registry, connectionManager, st, coordinatorRelay, clock, coordinatorConfig)
	connectionManager.OnDisconnect = coordinator.Leave

	return &Services{
		Registry:          registry,
		Coordinator:       coordinator,
		ConnectionManager: connectionManager,
		WSHandler:         gateway.NewWebSocketHandler(connectionManager, coordinator),
		RoomHandler:       rooms.NewHandler(coordinator),
		Store:             st,
		Relay:             natsRelay,
	}, nil
}

func setupStore(config *Config) (store.Store, error) {
	switch config.Store.Backend {
	case "memory", "":
		log.Info().Msg("using in-memory room store")
		return store.NewMemoryStore(), nil

	case "postgres":
		dbConfig := databaseConfigFromEnv()
		st, err := store.NewPostgresStore(dbConfig.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to set up postgres store: %w", err)
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("using postgres room store")
		return st, nil

	case "valkey":
		// Snapshot TTL tracks the room grace period with headroom so the
		// sweeper normally wins the race against key expiry.
		st, err := store.NewValkeyStore(config.Store.ValkeyAddress, 2*config.grace())
		if err != nil {
			return nil, fmt.Errorf("failed to set up valkey store: %w", err)
		}
		log.Info().Str("address", config.Store.ValkeyAddress).Msg("using valkey room store")
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
}
