package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/smartgarden/gardend/internal/calibration"
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/notification"
	"github.com/smartgarden/gardend/internal/observability"
)

// ActionFunc is called when a rule fires, after its history row is stored.
type ActionFunc func(ctx context.Context, rule *entities.AlertRule, event *AlertEvent) []notification.Result

// CalibrationSource supplies the soil-moisture calibration of a sensor.
type CalibrationSource interface {
	Resolve(ctx context.Context, sensorID uint) calibration.Calibration
}

// Engine evaluates readings against active threshold rules.
//
// Cooldown is derived from alert history on every evaluation; the engine
// keeps no per-rule state. Two evaluations racing on the same rule can both
// fire, which at worst sends one duplicate notification.
type Engine struct {
	repo        repository.AlertRuleRepository
	calibration CalibrationSource
	actionFunc  ActionFunc
	cooldown    time.Duration
	now         func() time.Time
	metrics     *observability.Metrics
	log         logger.Logger

	// History cleanup
	cleanupMu   sync.Mutex
	cleanupStop chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithCooldown sets the per-rule suppression window. Negative values are
// treated as zero.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) { e.cooldown = max(d, 0) }
}

// WithClock overrides the UTC clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a new alerting rules engine.
func NewEngine(repo repository.AlertRuleRepository, cal CalibrationSource, actionFunc ActionFunc, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		calibration: cal,
		actionFunc:  actionFunc,
		cooldown:    DefaultCooldown,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.Module(componentName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cooldown returns the configured suppression window.
func (e *Engine) Cooldown() time.Duration {
	return e.cooldown
}

// firing is a rule whose history row is stored and whose notifications are
// still pending.
type firing struct {
	rule  *entities.AlertRule
	event *AlertEvent
}

// Evaluate checks a batch of measurements from one sensor against the active
// rules and returns how many rules fired. Soil moisture is compared as a
// calibrated percentage.
//
// History rows for every firing rule are stored before any notification goes
// out, and the notifications for all fired rules then run concurrently, so a
// hanging channel delays the call by at most one dispatcher timeout and never
// holds back another rule's history. A store failure stops evaluation; rules
// already recorded stay counted and are still notified.
func (e *Engine) Evaluate(ctx context.Context, sensorID uint, measurements []Measurement) (int, error) {
	fired, err := e.record(ctx, sensorID, measurements)
	e.dispatchAll(ctx, fired)
	return len(fired), err
}

// record applies cooldown and stores history for each breached rule.
func (e *Engine) record(ctx context.Context, sensorID uint, measurements []Measurement) ([]firing, error) {
	var (
		cal      calibration.Calibration
		resolved bool
		fired    []firing
	)
	now := e.now()

	for _, m := range measurements {
		rules, err := e.repo.ActiveRules(ctx, sensorID, m.Metric)
		if err != nil {
			return fired, storeError(err, "active_rules").
				Context("sensor_id", sensorID).
				Context("metric", m.Metric).
				Build()
		}
		if len(rules) == 0 {
			continue
		}

		if m.Metric == entities.MetricSoilMoisture && !resolved {
			cal = e.calibration.Resolve(ctx, sensorID)
			resolved = true
		}
		compare := calibration.Convert(m.Metric, m.Value, cal)

		for i := range rules {
			rule := &rules[i]
			if !Breached(rule, compare) {
				continue
			}
			event := &AlertEvent{
				SensorID:     sensorID,
				Metric:       m.Metric,
				Value:        m.Value,
				CompareValue: compare,
				TriggeredAt:  now,
			}
			ok, err := e.recordRule(ctx, rule, event)
			if err != nil {
				return fired, err
			}
			if ok {
				fired = append(fired, firing{rule: rule, event: event})
			}
		}
	}
	return fired, nil
}

// recordRule applies the cooldown and stores a history row. It reports
// whether the rule fired.
func (e *Engine) recordRule(ctx context.Context, rule *entities.AlertRule, event *AlertEvent) (bool, error) {
	since := event.TriggeredAt.Add(-e.cooldown)
	recent, err := e.repo.RecentHistory(ctx, rule.ID, since)
	if err != nil {
		return false, storeError(err, "recent_history").
			Context("rule_id", rule.ID).
			Build()
	}
	if len(recent) > 0 {
		e.metrics.RecordAlertSuppressed(rule.Metric)
		e.log.Debug("alert suppressed by cooldown",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.Time("last_triggered_at", recent[0].TriggeredAt),
			logger.Duration("cooldown", e.cooldown))
		return false, nil
	}

	history := &entities.AlertHistory{
		RuleID:         rule.ID,
		TriggeredAt:    event.TriggeredAt,
		ValueAtTrigger: event.Value,
	}
	if err := e.repo.SaveHistory(ctx, history); err != nil {
		return false, storeError(err, "save_history").
			Context("rule_id", rule.ID).
			Build()
	}
	e.metrics.RecordAlertFired(rule.Metric)
	e.log.Info("alert rule fired",
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.Uint64("sensor_id", uint64(event.SensorID)),
		logger.String("metric", rule.Metric),
		logger.String("condition", rule.Condition),
		logger.Float64("threshold", rule.Threshold),
		logger.Float64("value", event.Value))
	return true, nil
}

// dispatchAll notifies every fired rule in parallel and waits for all of
// them. The caller's cancellation does not cut notifications short; each
// send is bounded by the dispatcher timeout instead.
func (e *Engine) dispatchAll(ctx context.Context, fired []firing) {
	if len(fired) == 0 || e.actionFunc == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if len(fired) == 1 {
		e.dispatch(ctx, fired[0].rule, fired[0].event)
		return
	}

	var wg sync.WaitGroup
	for _, f := range fired {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.dispatch(ctx, f.rule, f.event)
		}()
	}
	wg.Wait()
}

func (e *Engine) dispatch(ctx context.Context, rule *entities.AlertRule, event *AlertEvent) []notification.Result {
	if e.actionFunc == nil {
		return nil
	}
	results := e.actionFunc(ctx, rule, event)
	if failed := len(results) - notification.Delivered(results); failed > 0 {
		e.log.Warn("alert notification partially failed",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.Int("targets", len(results)),
			logger.Int("failed", failed))
	}
	return results
}

// TestFire sends a rule's notification directly, bypassing evaluation,
// cooldown and history. Used by the rule test endpoint.
func (e *Engine) TestFire(ctx context.Context, rule *entities.AlertRule) []notification.Result {
	event := &AlertEvent{
		SensorID:     rule.SensorID,
		Metric:       rule.Metric,
		Value:        rule.Threshold,
		CompareValue: rule.Threshold,
		TriggeredAt:  e.now(),
		Test:         true,
	}
	return e.dispatch(ctx, rule, event)
}

// retention returns the effective history retention. It never drops below
// the cooldown window, which would let a rule fire early.
func (e *Engine) retention(retentionDays int) time.Duration {
	return max(time.Duration(retentionDays)*24*time.Hour, e.cooldown)
}

// CleanupHistory deletes history older than the retention window once.
func (e *Engine) CleanupHistory(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := e.now().Add(-e.retention(retentionDays))
	deleted, err := e.repo.DeleteHistoryBefore(ctx, cutoff)
	if err != nil {
		return 0, storeError(err, "delete_history").
			Context("cutoff", cutoff).
			Build()
	}
	e.metrics.RecordHistoryCleanup(deleted)
	return deleted, nil
}

// StartHistoryCleanup starts a background goroutine that periodically deletes
// alert history entries older than retentionDays. A value of 0 disables cleanup.
func (e *Engine) StartHistoryCleanup(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	// Stop any existing cleanup goroutine before starting a new one.
	e.stopCleanup()
	e.cleanupMu.Lock()
	e.cleanupStop = make(chan struct{})
	stopCh := e.cleanupStop
	e.cleanupMu.Unlock()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), cleanupTimeout)
				deleted, err := e.CleanupHistory(cleanupCtx, retentionDays)
				cleanupCancel()
				if err != nil {
					e.log.Error("alert history cleanup failed", logger.Error(err))
				} else if deleted > 0 {
					e.log.Info("alert history cleanup completed",
						logger.Int64("deleted", deleted),
						logger.Int("retention_days", retentionDays))
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// stopCleanup signals the cleanup goroutine to exit. The nil-check-then-close
// runs under cleanupMu so Stop and StartHistoryCleanup cannot double-close.
func (e *Engine) stopCleanup() {
	e.cleanupMu.Lock()
	ch := e.cleanupStop
	e.cleanupStop = nil
	e.cleanupMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Stop shuts down background goroutines (history cleanup).
func (e *Engine) Stop() {
	e.stopCleanup()
}

func storeError(err error, op string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryStore).
		Context("operation", op)
}
