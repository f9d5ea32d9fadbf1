package analytics

import "github.com/sells-group/gradelens/internal/model"

const (
	// DomainCeiling is the top of the grading scale, used as the fixed
	// axis maximum for the scatter.
	DomainCeiling = 20.0

	// ScatterCap is the maximum number of points in the scatter.
	ScatterCap = 50
)

// ScatterPoint is one (G1, predicted grade) pair with its plot position in
// percent of the canvas. Y grows downward, so higher grades plot higher.
type ScatterPoint struct {
	Prior     float64 `json:"prior_grade" yaml:"prior_grade"`
	Predicted float64 `json:"predicted_grade" yaml:"predicted_grade"`
	X         float64 `json:"normalized_x" yaml:"normalized_x"`
	Y         float64 `json:"normalized_y" yaml:"normalized_y"`
}

// Correlation is the projected scatter.
type Correlation struct {
	Points  []ScatterPoint `json:"points" yaml:"points"`
	AxisMax float64        `json:"axis_max" yaml:"axis_max"`
	Clamped bool           `json:"clamped" yaml:"clamped"`

	// OutOfDomain counts points whose raw coordinates left [0, 100].
	OutOfDomain int `json:"out_of_domain" yaml:"out_of_domain"`
	// Defaulted counts points with a missing G1 or grade.
	Defaulted int `json:"defaulted" yaml:"defaulted"`
}

type correlationOpts struct {
	axisMax float64
	clamp   bool
}

// CorrelationOption configures ProjectCorrelation.
type CorrelationOption func(*correlationOpts)

// WithAxisMax overrides the axis maximum. Non-positive values are ignored.
func WithAxisMax(v float64) CorrelationOption {
	return func(o *correlationOpts) {
		if v > 0 {
			o.axisMax = v
		}
	}
}

// WithClamp clamps coordinates into [0, 100] instead of letting
// out-of-domain grades plot off the canvas.
func WithClamp(clamp bool) CorrelationOption {
	return func(o *correlationOpts) {
		o.clamp = clamp
	}
}

// ProjectCorrelation maps the first ScatterCap records, in input order, to
// scatter coordinates normalized against a fixed axis maximum.
func ProjectCorrelation(records []model.PredictionRecord, opts ...CorrelationOption) Correlation {
	o := correlationOpts{axisMax: DomainCeiling}
	for _, opt := range opts {
		opt(&o)
	}

	n := min(len(records), ScatterCap)
	c := Correlation{
		Points:  make([]ScatterPoint, 0, n),
		AxisMax: o.axisMax,
		Clamped: o.clamp,
	}

	for _, r := range records[:n] {
		prior, priorOK := r.PriorGrade()
		predicted, gradeOK := r.Grade()
		if !priorOK || !gradeOK {
			c.Defaulted++
		}

		x := prior / o.axisMax * 100
		y := 100 - predicted/o.axisMax*100
		if outside(x) || outside(y) {
			c.OutOfDomain++
			if o.clamp {
				x, y = clampPct(x), clampPct(y)
			}
		}

		c.Points = append(c.Points, ScatterPoint{
			Prior:     prior,
			Predicted: predicted,
			X:         x,
			Y:         y,
		})
	}

	return c
}

func outside(pct float64) bool {
	return pct < 0 || pct > 100
}

func clampPct(pct float64) float64 {
	return max(0, min(100, pct))
}
