package services

import (
	"context"
	"database/sql"
	"log/slog"
	"runtime"
	"time"
)

// SubscriberCounter exposes the hub's live subject count.
type SubscriberCounter interface {
	SubjectCount() int
}

// HealthStatus is the health endpoint payload
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Services  map[string]any `json:"services,omitempty"`
	Runtime   map[string]any `json:"runtime,omitempty"`
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	startTime time.Time
	db        *sql.DB
	hub       SubscriberCounter
	logger    *slog.Logger
}

// NewHealthService creates a health service with dependency injection
func NewHealthService(version string, db *sql.DB, hub SubscriberCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		startTime: time.Now(),
		db:        db,
		hub:       hub,
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status including dependency checks
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Services:  make(map[string]any),
		Runtime: map[string]any{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}

	if hs.db != nil {
		if err := hs.db.PingContext(ctx); err != nil {
			hs.logger.ErrorContext(ctx, "database ping failed",
				slog.String("error", err.Error()))
			status.Services["database"] = "down"
			status.Status = "degraded"
		} else {
			status.Services["database"] = "ok"
		}
	}

	if hs.hub != nil {
		status.Services["websocket"] = map[string]any{
			"status":          "ok",
			"active_subjects": hs.hub.SubjectCount(),
		}
	}

	return status
}
