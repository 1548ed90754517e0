package alerting

import (
	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/observability"
)

// Initialize wires the engine to the store and the notification dispatcher
// and starts history cleanup with the configured retention.
func Initialize(
	store *repository.Store,
	cal CalibrationSource,
	broadcaster Broadcaster,
	settings conf.AlertingSettings,
	metrics *observability.Metrics,
	log logger.Logger,
) *Engine {
	dispatcher := NewActionDispatcher(store.Channels, broadcaster, log)
	engine := NewEngine(store.Alerts, cal, dispatcher.Dispatch, log,
		WithCooldown(settings.Cooldown()),
		WithMetrics(metrics),
	)

	engine.StartHistoryCleanup(settings.HistoryRetentionDays)

	log.Module(componentName).Info("alerting engine initialized",
		logger.Duration("cooldown", engine.Cooldown()),
		logger.Int("history_retention_days", settings.HistoryRetentionDays))
	return engine
}
