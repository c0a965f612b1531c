package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the realtime gateway that carries client connections to the
// matchmaking engine
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, engine Engine, resolver IdentityResolver) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, engine, resolver)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
	}
}

// Start blocks until ctx is cancelled, then closes every connection
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting realtime gateway service")

	<-ctx.Done()

	log.Info().Msg("realtime gateway service shutting down")
	return s.Stop()
}

// Stop closes all client connections
func (s *Service) Stop() error {
	s.connectionManager.CloseAll()
	log.Info().Msg("realtime gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("realtime gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "realtime_gateway"
	stats["status"] = "running"
	return stats
}
