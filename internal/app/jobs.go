/**
 * @description
 * Scheduled job implementations: the vault deadline-expiry sweep and the
 * platform metrics refresh. Deadline expiry is otherwise lazy (deposits start
 * failing once the deadline passes); the sweep makes the deactivation and the
 * expiry event deterministic without waiting for the next deposit attempt.
 */

package app

import (
	"context"
	"log/slog"
	"time"
)

// Jobs holds the scheduled job handlers.
type Jobs struct {
	service *Service
	logger  *slog.Logger
}

// NewJobs creates a new jobs instance.
func NewJobs(service *Service, logger *slog.Logger) *Jobs {
	return &Jobs{service: service, logger: logger}
}

// SweepExpiredVaults expires every vault whose funding deadline passed without
// reaching its target.
func (j *Jobs) SweepExpiredVaults() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	expired := j.service.ExpireDueVaults(ctx)
	if expired > 0 {
		metricExpiredVaultsSwept.Add(float64(expired))
		j.logger.Info("expired vaults swept", "count", expired)
	} else {
		j.logger.Debug("no vaults due for expiry")
	}
}

// RefreshMetrics recomputes platform aggregates and pushes them to Prometheus.
func (j *Jobs) RefreshMetrics() {
	j.service.RefreshPlatformMetrics()
	j.logger.Debug("platform metrics refreshed")
}
