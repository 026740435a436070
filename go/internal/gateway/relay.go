package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/tablematch/go/internal/table/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds the settings of the refresh relay. An empty URL disables it.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the relay defaults with the relay disabled.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Subject:       "table.refresh",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

type relayMessage struct {
	Audience events.Audience `json:"audience"`
	Refresh  events.Refresh  `json:"refresh"`
}

func connectNATS(config NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("tablematch"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSNotifier publishes refreshes so every gateway process can deliver them to
// its own connections.
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
}

// NewNATSNotifier creates a notifier publishing on subject.
func NewNATSNotifier(nc *nats.Conn, subject string) *NATSNotifier {
	return &NATSNotifier{nc: nc, subject: subject}
}

// Notify publishes the refresh. Publishing only buffers on the client, so it does not block.
func (n *NATSNotifier) Notify(audience events.Audience, refresh events.Refresh) {
	data, err := encodeRelayMessage(audience, refresh)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode relayed refresh")
		return
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		log.Warn().Err(err).Str("subject", n.subject).Msg("failed to publish refresh, dropping")
	}
}

func encodeRelayMessage(audience events.Audience, refresh events.Refresh) ([]byte, error) {
	return json.Marshal(relayMessage{Audience: audience, Refresh: refresh})
}

// Relay subscribes to published refreshes and hands them to the local connection manager.
type Relay struct {
	nc                *nats.Conn
	subject           string
	connectionManager *ConnectionManager
}

// NewRelay creates a relay for subject.
func NewRelay(nc *nats.Conn, subject string, cm *ConnectionManager) *Relay {
	return &Relay{nc: nc, subject: subject, connectionManager: cm}
}

// Start relays refreshes until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	sub, err := r.nc.Subscribe(r.subject, func(msg *nats.Msg) {
		if err := r.deliver(msg.Data); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to relay refresh")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.subject, err)
	}
	log.Info().Str("subject", r.subject).Msg("refresh relay started")

	<-ctx.Done()

	if err := sub.Unsubscribe(); err != nil {
		log.Warn().Err(err).Msg("failed to unsubscribe refresh relay")
	}
	log.Info().Msg("refresh relay stopped")
	return nil
}

func (r *Relay) deliver(data []byte) error {
	var msg relayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("unmarshal relayed refresh: %w", err)
	}
	r.connectionManager.Notify(msg.Audience, msg.Refresh)
	return nil
}
