package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gradelens/internal/model"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	st.now = func() time.Time { return baseTime.Add(48 * time.Hour) }
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func prediction(id string, daysAfterBase int, g1 float64, grade *float64) model.PredictionRecord {
	return model.PredictionRecord{
		ID:             model.RecordID(id),
		CreatedAt:      baseTime.Add(time.Duration(daysAfterBase) * 24 * time.Hour),
		InputFeatures:  model.Features{model.FeatureG1: g1, model.FeatureG2: g1 + 1},
		PredictedGrade: grade,
	}
}

// --- Predictions ---

func TestSQLite_SaveAndListPredictions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	old := prediction("1", 0, 10, model.GradePtr(11.5))
	mid := prediction("2", 1, 14, model.GradePtr(15.25))
	recent := prediction("3", 2, 8, nil)
	for _, rec := range []*model.PredictionRecord{&old, &recent, &mid} {
		require.NoError(t, st.SavePrediction(ctx, rec))
	}

	got, err := st.ListPredictions(ctx, PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, model.RecordID("3"), got[0].ID)
	assert.Equal(t, model.RecordID("2"), got[1].ID)
	assert.Equal(t, model.RecordID("1"), got[2].ID)

	assert.True(t, got[0].CreatedAt.Equal(recent.CreatedAt))
	assert.Nil(t, got[0].PredictedGrade)

	g, ok := got[1].Grade()
	assert.True(t, ok)
	assert.Equal(t, 15.25, g)
	g1, ok := got[1].PriorGrade()
	assert.True(t, ok)
	assert.Equal(t, 14.0, g1)
}

func TestSQLite_SavePrediction_AssignsIDAndTime(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := model.PredictionRecord{PredictedGrade: model.GradePtr(12)}
	require.NoError(t, st.SavePrediction(ctx, &rec))

	assert.NotEmpty(t, rec.ID)
	assert.True(t, rec.CreatedAt.Equal(baseTime.Add(48*time.Hour)))
	assert.NotNil(t, rec.InputFeatures)

	got, err := st.ListPredictions(ctx, PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestSQLite_SavePrediction_Nil(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SavePrediction(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil prediction")
}

func TestSQLite_SavePrediction_OverwritesSameID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := prediction("42", 0, 10, model.GradePtr(10))
	require.NoError(t, st.SavePrediction(ctx, &first))
	second := prediction("42", 1, 12, model.GradePtr(13))
	require.NoError(t, st.SavePrediction(ctx, &second))

	n, err := st.CountPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.ListPredictions(ctx, PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	g, _ := got[0].Grade()
	assert.Equal(t, 13.0, g)
}

func TestSQLite_ListPredictions_LimitOffsetSince(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	recs := make([]model.PredictionRecord, 0, 30)
	for i := range 30 {
		recs = append(recs, prediction(fmt.Sprintf("p%02d", i), i, float64(i%20), model.GradePtr(float64(i%20))))
	}
	n, err := st.ImportPredictions(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)

	got, err := st.ListPredictions(ctx, PredictionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, DefaultListLimit)
	assert.True(t, got[0].CreatedAt.Equal(baseTime.Add(29*24*time.Hour)))

	got, err = st.ListPredictions(ctx, PredictionFilter{Limit: 5, Offset: 5})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, got[0].CreatedAt.Equal(baseTime.Add(24*24*time.Hour)))

	got, err = st.ListPredictions(ctx, PredictionFilter{Since: baseTime.Add(27 * 24 * time.Hour), Limit: 100})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSQLite_ListPredictions_EmptyIsNotNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.ListPredictions(context.Background(), PredictionFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSQLite_ImportPredictions_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	recs := []model.PredictionRecord{
		prediction("1", 0, 10, model.GradePtr(11)),
		prediction("2", 1, 15, model.GradePtr(16)),
		{PredictedGrade: model.GradePtr(9)},
	}
	_, err := st.ImportPredictions(ctx, recs)
	require.NoError(t, err)
	assert.NotEmpty(t, recs[2].ID)

	_, err = st.ImportPredictions(ctx, recs[:2])
	require.NoError(t, err)

	count, err := st.CountPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLite_ImportPredictions_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.ImportPredictions(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// --- Model info ---

func TestSQLite_ModelInfo_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	info, err := st.GetModelInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestSQLite_ModelInfo_SetAndReplace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetModelInfo(ctx, &model.ModelInfo{
		ModelType: "Linear Regression",
		Metrics:   model.ModelMetrics{R2Score: 0.8, MeanSquaredError: 4.2},
	}))
	require.NoError(t, st.SetModelInfo(ctx, &model.ModelInfo{
		ModelType: "Linear Regression",
		Metrics:   model.ModelMetrics{R2Score: 0.81},
		Dataset:   model.DatasetInfo{TrainSamples: 316, TestSamples: 79},
	}))

	info, err := st.GetModelInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 0.81, info.Metrics.R2Score)
	assert.Equal(t, 316, info.Dataset.TrainSamples)

	assert.Error(t, st.SetModelInfo(ctx, nil))
}

func TestSQLite_MigrateIsRepeatable(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}
