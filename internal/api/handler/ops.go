// Package handler provides the HTTP handlers of the callback server.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/traewellingwidget/traewellingwidget/internal/api/models"
	"github.com/traewellingwidget/traewellingwidget/internal/api/response"
	"github.com/traewellingwidget/traewellingwidget/internal/provider/resilience"
)

// Pinger checks a dependency.
type Pinger func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	store     Pinger
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. store and providers may be nil.
func NewOpsHandler(version, buildTime string, store Pinger, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		store:     store,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails while the store is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingStore(r.Context()); err != nil {
		response.ServiceUnavailable(w, r, "store unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - store and upstream API status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{{Name: "store", Status: models.HealthStatusOK}},
		Providers:  []models.ProviderStatus{},
	}

	if err := h.pingStore(r.Context()); err != nil {
		detail := err.Error()
		status.Subsystems[0].Status = models.HealthStatusFail
		status.Subsystems[0].Detail = &detail
		status.Status = models.HealthStatusFail
	}

	if h.providers != nil {
		for _, health := range h.providers.Snapshot() {
			status.Providers = append(status.Providers, providerStatus(health))
		}
		if h.providers.Overall() != resilience.StatusUp && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingStore(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.store(ctx)
}

func providerStatus(health resilience.Health) models.ProviderStatus {
	p := models.ProviderStatus{Provider: health.Name, Status: models.HealthStatusOK}
	switch health.Status {
	case resilience.StatusDown:
		p.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		p.Status = models.HealthStatusDegraded
	}
	if !health.LastSuccessAt.IsZero() {
		ts := models.Timestamp(health.LastSuccessAt)
		p.LastSuccessAt = &ts
	}
	if !health.LastFailureAt.IsZero() {
		ts := models.Timestamp(health.LastFailureAt)
		p.LastFailureAt = &ts
	}
	if health.LastError != "" {
		msg := health.LastError
		p.Message = &msg
	}
	return p
}
