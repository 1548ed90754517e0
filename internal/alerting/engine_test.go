package alerting

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/calibration"
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/notification"
)

// mockAlertRuleRepo is a minimal in-memory AlertRuleRepository.
type mockAlertRuleRepo struct {
	mu        sync.Mutex
	rules     []entities.AlertRule
	history   []entities.AlertHistory
	saveErr   error
	deletedAt time.Time
}

func newMockRepo(rules ...entities.AlertRule) *mockAlertRuleRepo {
	return &mockAlertRuleRepo{rules: rules}
}

func (m *mockAlertRuleRepo) ActiveRules(_ context.Context, sensorID uint, metric string) ([]entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertRule
	for i := range m.rules {
		r := m.rules[i]
		if r.Active && r.SensorID == sensorID && r.Metric == metric {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAlertRuleRepo) SaveHistory(_ context.Context, h *entities.AlertHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	h.ID = uint(len(m.history) + 1)
	m.history = append(m.history, *h)
	return nil
}

func (m *mockAlertRuleRepo) RecentHistory(_ context.Context, ruleID uint, since time.Time) ([]entities.AlertHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertHistory
	for _, h := range m.history {
		if h.RuleID == ruleID && h.TriggeredAt.After(since) {
			out = append(out, h)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (m *mockAlertRuleRepo) DeleteHistoryBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedAt = before
	kept := m.history[:0]
	var deleted int64
	for _, h := range m.history {
		if h.TriggeredAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, h)
	}
	m.history = kept
	return deleted, nil
}

func (m *mockAlertRuleRepo) historyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Unused methods satisfy the interface.
func (m *mockAlertRuleRepo) ListRules(context.Context, repository.AlertRuleFilter) ([]entities.AlertRule, error) {
	return nil, nil
}
func (m *mockAlertRuleRepo) GetRule(context.Context, uint) (*entities.AlertRule, error) {
	return nil, repository.ErrAlertRuleNotFound
}
func (m *mockAlertRuleRepo) CreateRule(context.Context, *entities.AlertRule) error { return nil }
func (m *mockAlertRuleRepo) DeactivateRule(context.Context, uint) error          { return nil }
func (m *mockAlertRuleRepo) ListHistory(context.Context, repository.AlertHistoryFilter) ([]entities.AlertHistory, int64, error) {
	return nil, 0, nil
}

// fixedCalibration resolves every sensor to the same pair.
type fixedCalibration calibration.Calibration

func (f fixedCalibration) Resolve(context.Context, uint) calibration.Calibration {
	return calibration.Calibration(f)
}

// recorder is an ActionFunc that remembers what it was called with.
type recorder struct {
	mu     sync.Mutex
	events []AlertEvent
	rules  []uint
}

func (r *recorder) action(_ context.Context, rule *entities.AlertRule, event *AlertEvent) []notification.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	r.rules = append(r.rules, rule.ID)
	return []notification.Result{{Success: true}}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var t0 = time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)

func tempAbove30() entities.AlertRule {
	return entities.AlertRule{
		ID: 1, SensorID: 5, Metric: entities.MetricTemperature,
		Condition: entities.ConditionAbove, Threshold: 30, Email: "owner@example.com", Active: true,
	}
}

func newTestEngine(repo *mockAlertRuleRepo, rec *recorder, clk *clock, cooldown time.Duration) *Engine {
	return NewEngine(repo, fixedCalibration{RawDry: 800, RawWet: 400}, rec.action, logger.Silent(),
		WithClock(clk.Now), WithCooldown(cooldown))
}

func TestEngine_TemperatureAboveThreshold(t *testing.T) {
	t.Parallel()

	repo := newMockRepo(tempAbove30())
	rec := &recorder{}
	clk := &clock{now: t0}
	e := newTestEngine(repo, rec, clk, 60*time.Minute)

	fired, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricTemperature, Value: 32}})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	require.Equal(t, 1, repo.historyCount())
	assert.InDelta(t, 32.0, repo.history[0].ValueAtTrigger, 1e-9)
	assert.Equal(t, t0, repo.history[0].TriggeredAt)
	assert.Equal(t, 1, rec.count())

	// re-ingest within the cooldown window
	clk.Advance(10 * time.Minute)
	fired, err = e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricTemperature, Value: 33}})
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Equal(t, 1, repo.historyCount())
	assert.Equal(t, 1, rec.count())
}

func TestEngine_CooldownBoundary(t *testing.T) {
	t.Parallel()

	const window = 60 * time.Minute

	tests := []struct {
		name      string
		gap       time.Duration
		wantFired int
	}{
		{"one minute short of the window", window - time.Minute, 1},
		{"one nanosecond short of the window", window - time.Nanosecond, 1},
		{"exactly the window", window, 2},
		{"past the window", window + time.Minute, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newMockRepo(tempAbove30())
			rec := &recorder{}
			clk := &clock{now: t0}
			e := newTestEngine(repo, rec, clk, window)

			total := 0
			for range 2 {
				n, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricTemperature, Value: 35}})
				require.NoError(t, err)
				total += n
				clk.Advance(tt.gap)
			}
			assert.Equal(t, tt.wantFired, total)
			assert.Equal(t, tt.wantFired, repo.historyCount())
			assert.Equal(t, tt.wantFired, rec.count())
		})
	}
}

func TestEngine_StrictComparison(t *testing.T) {
	t.Parallel()

	below := entities.AlertRule{ID: 2, SensorID: 5, Metric: entities.MetricHumidity, Condition: entities.ConditionBelow, Threshold: 40, Active: true}
	repo := newMockRepo(tempAbove30(), below)
	rec := &recorder{}
	e := newTestEngine(repo, rec, &clock{now: t0}, time.Hour)

	fired, err := e.Evaluate(t.Context(), 5, []Measurement{
		{Metric: entities.MetricTemperature, Value: 30},
		{Metric: entities.MetricHumidity, Value: 40},
	})
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Zero(t, repo.historyCount())
}

func TestEngine_SoilMoistureUsesCalibratedPercent(t *testing.T) {
	t.Parallel()

	dry := entities.AlertRule{ID: 3, SensorID: 5, Metric: entities.MetricSoilMoisture, Condition: entities.ConditionBelow, Threshold: 30, Active: true}
	repo := newMockRepo(dry)
	rec := &recorder{}
	e := newTestEngine(repo, rec, &clock{now: t0}, time.Hour)

	// (800-760)/(800-400) = 10%
	fired, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricSoilMoisture, Value: 760}})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	require.Equal(t, 1, repo.historyCount())
	assert.InDelta(t, 760.0, repo.history[0].ValueAtTrigger, 1e-9, "history keeps the raw value")
	require.Equal(t, 1, rec.count())
	assert.InDelta(t, 10.0, rec.events[0].CompareValue, 1e-9)
}

func TestEngine_RawSoilValueAboveThresholdIsNotABreach(t *testing.T) {
	t.Parallel()

	// raw 500 exceeds 80 but is only 75% moisture
	wet := entities.AlertRule{ID: 4, SensorID: 5, Metric: entities.MetricSoilMoisture, Condition: entities.ConditionAbove, Threshold: 80, Active: true}
	repo := newMockRepo(wet)
	e := newTestEngine(repo, &recorder{}, &clock{now: t0}, time.Hour)

	fired, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricSoilMoisture, Value: 500}})
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestEngine_MultipleRulesFireIndependently(t *testing.T) {
	t.Parallel()

	second := tempAbove30()
	second.ID = 9
	second.Threshold = 25
	otherSensor := tempAbove30()
	otherSensor.ID = 10
	otherSensor.SensorID = 6
	inactive := tempAbove30()
	inactive.ID = 11
	inactive.Active = false

	repo := newMockRepo(tempAbove30(), second, otherSensor, inactive)
	rec := &recorder{}
	e := newTestEngine(repo, rec, &clock{now: t0}, time.Hour)

	fired, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricTemperature, Value: 31}})
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
	assert.ElementsMatch(t, []uint{1, 9}, rec.rules)
}

func TestEngine_HangingChannelDoesNotDelayOtherHistory(t *testing.T) {
	t.Parallel()

	rules := make([]entities.AlertRule, 0, 3)
	for i, threshold := range []float64{20, 25, 30} {
		r := tempAbove30()
		r.ID = uint(i + 1)
		r.Threshold = threshold
		rules = append(rules, r)
	}
	repo := newMockRepo(rules...)

	// every notification blocks until released, like a channel that never answers
	started := make(chan uint, len(rules))
	release := make(chan struct{})
	historyAtFirstSend := make(chan int, len(rules))
	hanging := func(_ context.Context, rule *entities.AlertRule, _ *AlertEvent) []notification.Result {
		historyAtFirstSend <- repo.historyCount()
		started <- rule.ID
		<-release
		return []notification.Result{{Success: false}}
	}
	e := NewEngine(repo, fixedCalibration{}, hanging, logger.Silent(),
		WithClock((&clock{now: t0}).Now), WithCooldown(time.Hour))

	type outcome struct {
		fired int
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		fired, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricTemperature, Value: 35}})
		done <- outcome{fired, err}
	}()

	// all three sends are in flight at once, so none waits on another
	var ids []uint
	for range rules {
		select {
		case id := <-started:
			ids = append(ids, id)
		case <-time.After(5 * time.Second):
			t.Fatal("notifications were not dispatched concurrently")
		}
	}
	assert.ElementsMatch(t, []uint{1, 2, 3}, ids)
	for range rules {
		assert.Equal(t, 3, <-historyAtFirstSend, "history is stored before any send starts")
	}

	select {
	case <-done:
		t.Fatal("Evaluate returned before notifications finished")
	default:
	}
	close(release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.fired)
	assert.Equal(t, 3, repo.historyCount())
}

func TestEngine_CancelledCallerStillNotifies(t *testing.T) {
	t.Parallel()

	repo := newMockRepo(tempAbove30())
	var sawCancel bool
	action := func(ctx context.Context, _ *entities.AlertRule, _ *AlertEvent) []notification.Result {
		sawCancel = ctx.Err() != nil
		return []notification.Result{{Success: true}}
	}
	e := NewEngine(repo, fixedCalibration{}, action, logger.Silent(), WithClock((&clock{now: t0}).Now))

	ctx, cancel := context.WithCancel(t.Context())
	cancelOnSave := &cancelAfterSave{mockAlertRuleRepo: repo, cancel: cancel}
	e.repo = cancelOnSave

	fired, err := e.Evaluate(ctx, 5, []Measurement{{Metric: entities.MetricTemperature, Value: 35}})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.False(t, sawCancel, "notifications outlive the ingest request")
}

// cancelAfterSave cancels the caller's context once history is stored.
type cancelAfterSave struct {
	*mockAlertRuleRepo
	cancel context.CancelFunc
}

func (c *cancelAfterSave) SaveHistory(ctx context.Context, h *entities.AlertHistory) error {
	err := c.mockAlertRuleRepo.SaveHistory(ctx, h)
	c.cancel()
	return err
}

func TestEngine_DuplicateMetricInBatchFiresOnce(t *testing.T) {
	t.Parallel()

	repo := newMockRepo(tempAbove30())
	rec := &recorder{}
	e := newTestEngine(repo, rec, &clock{now: t0}, time.Hour)

	fired, err := e.Evaluate(t.Context(), 5, []Measurement{
		{Metric: entities.MetricTemperature, Value: 31},
		{Metric: entities.MetricTemperature, Value: 34},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestEngine_HistoryFailureIsStoreError(t *testing.T) {
	t.Parallel()

	repo := newMockRepo(tempAbove30())
	repo.saveErr = errors.NewStd("disk full")
	rec := &recorder{}
	e := newTestEngine(repo, rec, &clock{now: t0}, time.Hour)

	fired, err := e.Evaluate(t.Context(), 5, []Measurement{{Metric: entities.MetricTemperature, Value: 40}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryStore))
	assert.Zero(t, fired)
	assert.Zero(t, rec.count(), "no notification without a history row")
}

func TestEngine_TestFireSkipsHistory(t *testing.T) {
	t.Parallel()

	repo := newMockRepo()
	rec := &recorder{}
	e := newTestEngine(repo, rec, &clock{now: t0}, time.Hour)

	rule := tempAbove30()
	results := e.TestFire(t.Context(), &rule)
	require.Len(t, results, 1)
	assert.Zero(t, repo.historyCount())
	require.Equal(t, 1, rec.count())
	assert.True(t, rec.events[0].Test)
}

func TestEngine_CleanupHistoryRetention(t *testing.T) {
	t.Parallel()

	t.Run("retention in days", func(t *testing.T) {
		t.Parallel()
		repo := newMockRepo()
		repo.history = []entities.AlertHistory{
			{RuleID: 1, TriggeredAt: t0.AddDate(0, 0, -10)},
			{RuleID: 1, TriggeredAt: t0.AddDate(0, 0, -1)},
		}
		e := newTestEngine(repo, &recorder{}, &clock{now: t0}, time.Hour)

		deleted, err := e.CleanupHistory(t.Context(), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
		assert.Equal(t, t0.AddDate(0, 0, -7), repo.deletedAt)
	})

	t.Run("never shorter than the cooldown", func(t *testing.T) {
		t.Parallel()
		repo := newMockRepo()
		e := newTestEngine(repo, &recorder{}, &clock{now: t0}, 72*time.Hour)

		_, err := e.CleanupHistory(t.Context(), 1)
		require.NoError(t, err)
		assert.Equal(t, t0.Add(-72*time.Hour), repo.deletedAt)
	})
}

func TestEngine_StartStopCleanup(t *testing.T) {
	t.Parallel()

	e := newTestEngine(newMockRepo(), &recorder{}, &clock{now: t0}, time.Hour)
	e.StartHistoryCleanup(0)
	assert.Nil(t, e.cleanupStop)

	e.StartHistoryCleanup(30)
	e.StartHistoryCleanup(30)
	assert.NotNil(t, e.cleanupStop)
	e.Stop()
	e.Stop()
	assert.Nil(t, e.cleanupStop)
}
