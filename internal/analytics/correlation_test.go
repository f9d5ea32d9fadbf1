package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gradelens/internal/model"
)

func pair(g1 any, grade float64) model.PredictionRecord {
	return model.PredictionRecord{
		InputFeatures:  model.Features{model.FeatureG1: g1},
		PredictedGrade: model.GradePtr(grade),
	}
}

func TestProjectCorrelation_ConcreteScenario(t *testing.T) {
	t.Parallel()

	c := ProjectCorrelation([]model.PredictionRecord{pair(10.0, 15)})
	require.Len(t, c.Points, 1)

	p := c.Points[0]
	assert.Equal(t, 10.0, p.Prior)
	assert.Equal(t, 15.0, p.Predicted)
	assert.InDelta(t, 50.0, p.X, 1e-9)
	assert.InDelta(t, 25.0, p.Y, 1e-9)
	assert.Equal(t, DomainCeiling, c.AxisMax)
	assert.Zero(t, c.OutOfDomain)
	assert.Zero(t, c.Defaulted)
}

func TestProjectCorrelation_CapsAtFiftyInOrder(t *testing.T) {
	t.Parallel()

	records := make([]model.PredictionRecord, 200)
	for i := range records {
		records[i] = model.PredictionRecord{
			ID:             model.RecordID(fmt.Sprint(i)),
			InputFeatures:  model.Features{model.FeatureG1: float64(i % 21)},
			PredictedGrade: model.GradePtr(float64(i % 20)),
		}
	}

	c := ProjectCorrelation(records)
	require.Len(t, c.Points, ScatterCap)
	for i, p := range c.Points {
		assert.Equal(t, float64(i%21), p.Prior)
		assert.Equal(t, float64(i%20), p.Predicted)
	}
}

func TestProjectCorrelation_MissingG1DefaultsToZero(t *testing.T) {
	t.Parallel()

	records := []model.PredictionRecord{
		{PredictedGrade: model.GradePtr(20)},
		pair("not a number", 10),
	}

	c := ProjectCorrelation(records)
	require.Len(t, c.Points, 2)
	assert.Equal(t, 0.0, c.Points[0].X)
	assert.Equal(t, 0.0, c.Points[0].Y)
	assert.Equal(t, 0.0, c.Points[1].Prior)
	assert.Equal(t, 50.0, c.Points[1].Y)
	assert.Equal(t, 2, c.Defaulted)
}

func TestProjectCorrelation_OutOfDomainUnclamped(t *testing.T) {
	t.Parallel()

	c := ProjectCorrelation([]model.PredictionRecord{pair(25.0, -2), pair(10.0, 10)})
	require.Len(t, c.Points, 2)

	assert.InDelta(t, 125.0, c.Points[0].X, 1e-9)
	assert.InDelta(t, 110.0, c.Points[0].Y, 1e-9)
	assert.Equal(t, 1, c.OutOfDomain)
	assert.False(t, c.Clamped)
}

func TestProjectCorrelation_Clamped(t *testing.T) {
	t.Parallel()

	c := ProjectCorrelation([]model.PredictionRecord{pair(25.0, -2), pair(-4.0, 30)}, WithClamp(true))
	require.Len(t, c.Points, 2)

	assert.Equal(t, 100.0, c.Points[0].X)
	assert.Equal(t, 100.0, c.Points[0].Y)
	assert.Equal(t, 0.0, c.Points[1].X)
	assert.Equal(t, 0.0, c.Points[1].Y)
	assert.Equal(t, 2, c.OutOfDomain)
	assert.True(t, c.Clamped)

	// Raw grades are preserved even when the position is clamped.
	assert.Equal(t, 25.0, c.Points[0].Prior)
}

func TestProjectCorrelation_AxisMax(t *testing.T) {
	t.Parallel()

	c := ProjectCorrelation([]model.PredictionRecord{pair(10.0, 10)}, WithAxisMax(40))
	assert.InDelta(t, 25.0, c.Points[0].X, 1e-9)
	assert.InDelta(t, 75.0, c.Points[0].Y, 1e-9)

	c = ProjectCorrelation([]model.PredictionRecord{pair(10.0, 10)}, WithAxisMax(0))
	assert.Equal(t, DomainCeiling, c.AxisMax)
	assert.InDelta(t, 50.0, c.Points[0].X, 1e-9)
}

func TestProjectCorrelation_Empty(t *testing.T) {
	t.Parallel()

	c := ProjectCorrelation(nil)
	assert.NotNil(t, c.Points)
	assert.Empty(t, c.Points)
}
