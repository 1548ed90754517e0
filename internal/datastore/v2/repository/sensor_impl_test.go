package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/testutil"
)

func TestSensorRepository_RegisterAndUpdate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSensorRepository(db)
	ctx := t.Context()

	_, err := repo.FindByAddress(ctx, "aa:bb:cc")
	require.ErrorIs(t, err, ErrSensorNotFound)

	sensor := &entities.Sensor{Name: "aa:bb:cc", MACAddress: "aa:bb:cc", ADCBits: 10}
	require.NoError(t, repo.Create(ctx, sensor))

	board := &entities.BoardType{Slug: "esp32-devkit", Name: "ESP32 DevKit"}
	require.NoError(t, db.Create(board).Error)

	found, err := repo.FindBoardTypeBySlug(ctx, "esp32-devkit")
	require.NoError(t, err)
	_, err = repo.FindBoardTypeBySlug(ctx, "unknown")
	require.ErrorIs(t, err, ErrBoardTypeNotFound)

	bits := 12
	seen := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Update(ctx, sensor.ID, SensorUpdate{ADCBits: &bits, BoardTypeID: &found.ID, LastSeenAt: &seen}))
	require.NoError(t, repo.Update(ctx, sensor.ID, SensorUpdate{}))

	got, err := repo.Get(ctx, sensor.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.ADCBits)
	require.NotNil(t, got.BoardTypeID)
	assert.Equal(t, found.ID, *got.BoardTypeID)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, seen.Equal(*got.LastSeenAt))

	_, err = repo.Get(ctx, 9999)
	require.ErrorIs(t, err, ErrSensorNotFound)
}

func TestPlantRepository_Links(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPlantRepository(db)
	ctx := t.Context()

	soil := &entities.SoilType{Name: "loam", RawDry: 780, RawWet: 380, RawDry12Bit: 3100, RawWet12Bit: 700}
	require.NoError(t, db.Create(soil).Error)
	basil := &entities.Plant{Name: "basil", SoilTypeID: &soil.ID}
	mint := &entities.Plant{Name: "mint"}
	require.NoError(t, db.Create(basil).Error)
	require.NoError(t, db.Create(mint).Error)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&entities.SensorPlant{SensorID: 1, PlantID: mint.ID, CreatedAt: base.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&entities.SensorPlant{SensorID: 1, PlantID: basil.ID, CreatedAt: base}).Error)

	links, err := repo.PlantLinks(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{basil.ID, mint.ID}, links, "oldest link first")

	links, err = repo.PlantLinks(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, links)

	plant, err := repo.GetPlant(ctx, basil.ID)
	require.NoError(t, err)
	require.NotNil(t, plant.SoilTypeID)

	got, err := repo.GetSoilType(ctx, *plant.SoilTypeID)
	require.NoError(t, err)
	assert.Equal(t, 3100, got.RawDry12Bit)

	_, err = repo.GetPlant(ctx, 9999)
	require.ErrorIs(t, err, ErrPlantNotFound)
	_, err = repo.GetSoilType(ctx, 9999)
	require.ErrorIs(t, err, ErrSoilTypeNotFound)
}
