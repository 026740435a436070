package main

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablematch/go/internal/api"
	"github.com/mcdev12/tablematch/go/internal/config"
	"github.com/mcdev12/tablematch/go/internal/gateway"
	"github.com/mcdev12/tablematch/go/internal/session"
	"github.com/mcdev12/tablematch/go/internal/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Services struct {
	Table    *table.Orchestrator
	Gateway  *gateway.Service
	Sessions *session.Issuer
	API      *api.Handler
	Metrics  *prometheus.Registry
}

func setupServices(cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Clock → Sessions → Gateway (notifier) → Orchestrator → API

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	clock := clockwork.NewRealClock()

	sessions, err := session.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create session issuer: %w", err)
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.CheckOrigin = originChecker(cfg.Server.AllowedOrigins)
	gatewayConfig.NATS.URL = cfg.NATS.URL
	gatewayConfig.NATS.Subject = cfg.NATS.Subject

	gatewayService, err := gateway.NewService(gatewayConfig, sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	orchestrator := table.NewOrchestrator(
		table.Config{
			ReadyLeadTime: cfg.Table.ReadyLeadTime,
			GameLength:    cfg.Table.GameLength,
			InitialRating: cfg.Table.InitialRating,
			KFactor:       cfg.Table.KFactor,
		},
		gatewayService.Notifier(),
		table.WithClock(clock),
		table.WithMetrics(table.NewPrometheusMetrics(registry)),
	)

	return &Services{
		Table:    orchestrator,
		Gateway:  gatewayService,
		Sessions: sessions,
		API:      api.NewHandler(orchestrator, sessions),
		Metrics:  registry,
	}, nil
}

// originChecker accepts WebSocket upgrades from the configured origins; "*" allows any.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
