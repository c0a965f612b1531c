package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/pairtalk/go/internal/config"
	"github.com/mcdev12/pairtalk/go/internal/gems"
	"github.com/mcdev12/pairtalk/go/internal/identity"
	"github.com/mcdev12/pairtalk/go/internal/realtime/events"
	"github.com/mcdev12/pairtalk/go/internal/realtime/gateway"
	"github.com/mcdev12/pairtalk/go/internal/realtime/matchmaking"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Engine   *matchmaking.Engine
	Gateway  *gateway.Service
	Gems     *gems.Handler
	Resolver *identity.Resolver

	// readiness probes for the configured backends
	checks map[string]func(context.Context) error

	closers []func()
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Identity → gem ledger → event sink → engine → gateway
	s := &Services{checks: make(map[string]func(context.Context) error)}

	s.Resolver = identity.NewResolver(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	store, err := s.setupGemStore(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Gems = gems.NewHandler(store, s.Resolver)

	sink, err := s.setupEventSink(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Engine = matchmaking.NewEngine(engineConfig(cfg.Match), store, matchmaking.WithEventSink(sink))
	s.Gateway = gateway.NewService(gateway.DefaultConfig(), s.Engine, s.Resolver)

	return s, nil
}

func (s *Services) setupGemStore(ctx context.Context, cfg *config.Config) (gems.Store, error) {
	ledger := ledgerConfig(cfg.Gems)

	switch cfg.Gems.Backend {
	case config.BackendPostgres:
		pool, err := setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.checks["postgres"] = pool.Ping

		store, err := gems.NewPostgresStore(pool, ledger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendRedis:
		client, err := setupRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		return gems.NewRedisStore(client, ledger)

	default:
		log.Warn().Msg("using in-memory gem ledger, balances reset on restart")
		return gems.NewMemoryStore(ledger)
	}
}

func (s *Services) setupEventSink(ctx context.Context, cfg *config.Config) (events.Sink, error) {
	if cfg.NATS.URL == "" {
		log.Info().Msg("NATS_URL not set, match events are not published")
		return events.NopSink{}, nil
	}

	jsConfig := events.DefaultJetStreamConfig()
	jsConfig.URL = cfg.NATS.URL
	jsConfig.StreamName = cfg.NATS.StreamName
	jsConfig.SubjectPrefix = cfg.NATS.SubjectPrefix
	jsConfig.BufferSize = cfg.NATS.BufferSize

	publisher, err := events.NewPublisher(ctx, jsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	publisher.Start(ctx)
	s.closers = append(s.closers, func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	})
	return publisher, nil
}

// Ready runs every backend probe and returns the failures by name
func (s *Services) Ready(ctx context.Context) map[string]string {
	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

// Close releases backend connections in reverse order of creation
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
