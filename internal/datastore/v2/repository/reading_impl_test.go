package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/testutil"
)

func TestReadingRepository_InsertAndLatest(t *testing.T) {
	repo := NewReadingRepository(testutil.NewTestDB(t))
	ctx := t.Context()

	_, err := repo.LatestReading(ctx, 1, entities.MetricSoilMoisture)
	require.ErrorIs(t, err, ErrReadingNotFound)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	n, err := repo.InsertReadings(ctx, []entities.Reading{
		{SensorID: 1, Metric: entities.MetricSoilMoisture, Value: 700, RecordedAt: base},
		{SensorID: 1, Metric: entities.MetricSoilMoisture, Value: 650, RecordedAt: base.Add(time.Hour)},
		{SensorID: 1, Metric: entities.MetricTemperature, Value: 21.5, RecordedAt: base.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	latest, err := repo.LatestReading(ctx, 1, entities.MetricSoilMoisture)
	require.NoError(t, err)
	assert.InDelta(t, 650.0, latest.Value, 0)

	n, err = repo.InsertReadings(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadingRepository_ListReadings(t *testing.T) {
	repo := NewReadingRepository(testutil.NewTestDB(t))
	ctx := t.Context()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var rows []entities.Reading
	for day := range 5 {
		rows = append(rows,
			entities.Reading{SensorID: 1, Metric: entities.MetricTemperature, Value: float64(20 + day), RecordedAt: base.AddDate(0, 0, day)},
			entities.Reading{SensorID: 2, Metric: entities.MetricTemperature, Value: 99, RecordedAt: base.AddDate(0, 0, day)},
		)
	}
	_, err := repo.InsertReadings(ctx, rows)
	require.NoError(t, err)

	got, err := repo.ListReadings(ctx, ReadingFilter{SensorID: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.InDelta(t, 24.0, got[0].Value, 0, "most recent first")

	got, err = repo.ListReadings(ctx, ReadingFilter{
		SensorID:  1,
		From:      base.AddDate(0, 0, 1),
		Until:     base.AddDate(0, 0, 3),
		Ascending: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 3, "from and until are inclusive")
	assert.InDelta(t, 21.0, got[0].Value, 0)

	got, err = repo.ListReadings(ctx, ReadingFilter{SensorID: 1, From: base, Before: base.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.Len(t, got, 2, "before is exclusive")

	got, err = repo.ListReadings(ctx, ReadingFilter{SensorID: 1, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 22.0, got[0].Value, 0)
}
