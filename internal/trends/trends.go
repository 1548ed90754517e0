// Package trends summarizes a metric over a lookback period and compares it
// with the period before.
package trends

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
)

// Trend directions.
const (
	TrendStable = "stable"
	TrendUp     = "up"
	TrendDown   = "down"
)

// stableBand is the absolute percentage change below which a trend is stable.
const stableBand = 3.0

const defaultPeriod = "7d"

var periods = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// ParsePeriod maps a period token to its window. Unknown tokens fall back to
// 7d; the returned token is the one actually used.
func ParsePeriod(token string) (string, time.Duration) {
	if d, ok := periods[token]; ok {
		return token, d
	}
	return defaultPeriod, periods[defaultPeriod]
}

// Point is one UTC day of a metric.
type Point struct {
	Day string  `json:"day"`
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Response is the trend payload.
type Response struct {
	Metric      string   `json:"metric"`
	Period      string   `json:"period"`
	CurrentAvg  float64  `json:"current_avg"`
	PreviousAvg *float64 `json:"previous_avg"`
	ChangePct   *float64 `json:"change_pct"`
	Trend       string   `json:"trend"`
	Points      []Point  `json:"points"`
}

// ReadingSource lists readings for a range query.
type ReadingSource interface {
	ListReadings(ctx context.Context, filter repository.ReadingFilter) ([]entities.Reading, error)
}

// Aggregator computes trends from stored readings.
type Aggregator struct {
	readings ReadingSource
	now      func() time.Time
}

// NewAggregator creates an Aggregator. A nil clock means time.Now in UTC.
func NewAggregator(readings ReadingSource, now func() time.Time) *Aggregator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Aggregator{readings: readings, now: now}
}

// Trend summarizes metric for sensorID. The current window is [now-P, now],
// the previous window is [now-2P, now-P).
func (a *Aggregator) Trend(ctx context.Context, sensorID uint, metric, period string) (*Response, error) {
	token, window := ParsePeriod(period)
	now := a.now().UTC()
	start := now.Add(-window)

	current, err := a.readings.ListReadings(ctx, repository.ReadingFilter{
		SensorID:  sensorID,
		Metric:    metric,
		From:      start,
		Until:     now,
		Ascending: true,
	})
	if err != nil {
		return nil, storeError(err, sensorID, metric)
	}

	previous, err := a.readings.ListReadings(ctx, repository.ReadingFilter{
		SensorID:  sensorID,
		Metric:    metric,
		From:      start.Add(-window),
		Before:    start,
		Ascending: true,
	})
	if err != nil {
		return nil, storeError(err, sensorID, metric)
	}

	return Summarize(metric, token, current, previous), nil
}

func storeError(err error, sensorID uint, metric string) error {
	return errors.New(err).
		Component("trends").
		Category(errors.CategoryStore).
		Context("sensor_id", sensorID).
		Context("metric", metric).
		Build()
}

// Summarize builds a Response from the readings of both windows.
func Summarize(metric, period string, current, previous []entities.Reading) *Response {
	resp := &Response{
		Metric: metric,
		Period: period,
		Trend:  TrendStable,
		Points: []Point{},
	}
	if len(current) == 0 {
		return resp
	}

	resp.Points = dailyPoints(current)
	resp.CurrentAvg = round(mean(current), 2)

	if len(previous) == 0 {
		return resp
	}
	prevAvg := round(mean(previous), 2)
	resp.PreviousAvg = &prevAvg

	change := 0.0
	if prevAvg != 0 {
		change = round((resp.CurrentAvg-prevAvg)/math.Abs(prevAvg)*100, 1)
	}
	resp.ChangePct = &change
	resp.Trend = Classify(change, resp.CurrentAvg, prevAvg)
	return resp
}

// Classify returns the trend direction for a change percentage. Only changes
// strictly inside the stable band are stable.
func Classify(changePct, current, previous float64) string {
	switch {
	case math.Abs(changePct) < stableBand:
		return TrendStable
	case current > previous:
		return TrendUp
	default:
		return TrendDown
	}
}

func dailyPoints(readings []entities.Reading) []Point {
	type acc struct {
		sum, min, max float64
		n             int
	}
	days := make(map[string]*acc)
	for i := range readings {
		r := &readings[i]
		key := r.RecordedAt.UTC().Format(time.DateOnly)
		a, ok := days[key]
		if !ok {
			days[key] = &acc{sum: r.Value, min: r.Value, max: r.Value, n: 1}
			continue
		}
		a.sum += r.Value
		a.min = min(a.min, r.Value)
		a.max = max(a.max, r.Value)
		a.n++
	}

	points := make([]Point, 0, len(days))
	for day, a := range days {
		points = append(points, Point{
			Day: day,
			Avg: round(a.sum/float64(a.n), 2),
			Min: round(a.min, 2),
			Max: round(a.max, 2),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points
}

func mean(readings []entities.Reading) float64 {
	var sum float64
	for i := range readings {
		sum += readings[i].Value
	}
	return sum / float64(len(readings))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
