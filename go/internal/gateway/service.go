package gateway

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/tablematch/go/internal/table/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Notifier is what the table orchestrator pushes refreshes through.
type Notifier interface {
	Notify(audience events.Audience, refresh events.Refresh)
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	NATS             NATSConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		NATS:             DefaultNATSConfig(),
	}
}

// Service owns the connection registry, the socket handler and, when NATS is
// configured, the refresh relay.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	nc                *nats.Conn
	relay             *Relay
	notifier          Notifier
}

// NewService creates a new gateway service
func NewService(config Config, resolver IdentityResolver) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, resolver),
		notifier:          connectionManager,
	}

	if config.NATS.URL != "" {
		nc, err := connectNATS(config.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to create refresh relay: %w", err)
		}
		s.nc = nc
		s.relay = NewRelay(nc, config.NATS.Subject, connectionManager)
		s.notifier = NewNATSNotifier(nc, config.NATS.Subject)
		log.Info().
			Str("url", config.NATS.URL).
			Str("subject", config.NATS.Subject).
			Msg("refreshes relayed over NATS")
	}

	return s, nil
}

// Notifier returns the notifier the orchestrator should use.
func (s *Service) Notifier() Notifier {
	return s.notifier
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting gateway service")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.connectionManager.Start(ctx)
		return nil
	})
	if s.relay != nil {
		g.Go(func() error {
			return s.relay.Start(ctx)
		})
	}

	err := g.Wait()
	s.Stop()
	return err
}

// Stop closes the NATS connection.
func (s *Service) Stop() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
	log.Info().Msg("gateway service stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	log.Info().Msg("gateway routes registered")
}

// NATSStatus reports whether a relay is configured and, if so, whether its
// connection is currently up.
func (s *Service) NATSStatus() (configured, connected bool) {
	if s.nc == nil {
		return false, false
	}
	return true, s.nc.IsConnected()
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
