package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/tablematch/go/internal/gateway"
	"github.com/mcdev12/tablematch/go/internal/table"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy       bool      `json:"healthy"`
	CheckedAt     time.Time `json:"checked_at"`
	NATSEnabled   bool      `json:"nats_enabled"`
	NATSConnected bool      `json:"nats_connected"`
	Connections   int       `json:"connections"`
	GameActive    bool      `json:"game_active"`
	Queued        int       `json:"queued"`
	Errors        []string  `json:"errors"`
}

type HealthChecker struct {
	table   *table.Orchestrator
	gateway *gateway.Service
}

func NewHealthChecker(orchestrator *table.Orchestrator, gatewayService *gateway.Service) *HealthChecker {
	return &HealthChecker{table: orchestrator, gateway: gatewayService}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:   true,
		CheckedAt: time.Now().UTC(),
		Errors:    []string{},
	}

	status.NATSEnabled, status.NATSConnected = h.gateway.NATSStatus()
	if status.NATSEnabled && !status.NATSConnected {
		status.Healthy = false
		status.Errors = append(status.Errors, "NATS disconnected")
	}

	status.Connections = h.gateway.GetStats().TotalConnections
	status.GameActive = h.table.CurrentGame() != nil
	status.Queued = len(h.table.Queue())

	if err := ctx.Err(); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, err.Error())
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
