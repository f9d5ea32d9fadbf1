package analytics

import (
	"errors"
	"time"

	"github.com/sells-group/gradelens/internal/model"
)

// Dashboard is a full recomputation of every analytics view over one
// snapshot of prediction history.
type Dashboard struct {
	Empty        bool             `json:"empty" yaml:"empty"`
	Summary      *Summary         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Distribution *Distribution    `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Trend        *Trend           `json:"trend,omitempty" yaml:"trend,omitempty"`
	Correlation  *Correlation     `json:"correlation,omitempty" yaml:"correlation,omitempty"`
	Bars         []Bar            `json:"bars,omitempty" yaml:"bars,omitempty"`
	Columns      []Column         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Dots         []Dot            `json:"dots,omitempty" yaml:"dots,omitempty"`
	Insights     []Insight        `json:"insights,omitempty" yaml:"insights,omitempty"`
	ModelInfo    *model.ModelInfo `json:"model_info,omitempty" yaml:"model_info,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at" yaml:"generated_at"`
}

// ChartView is a single rendered chart with its heading.
type ChartView struct {
	Kind        ChartKind `json:"kind" yaml:"kind"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Bars        []Bar     `json:"bars,omitempty" yaml:"bars,omitempty"`
	Columns     []Column  `json:"columns,omitempty" yaml:"columns,omitempty"`
	Dots        []Dot     `json:"dots,omitempty" yaml:"dots,omitempty"`
}

type buildOpts struct {
	now         func() time.Time
	trend       []TrendOption
	correlation []CorrelationOption
}

// Option configures Build.
type Option func(*buildOpts)

// WithClock sets the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(o *buildOpts) {
		o.now = now
	}
}

// WithTrend passes options through to ProjectTrend.
func WithTrend(opts ...TrendOption) Option {
	return func(o *buildOpts) {
		o.trend = append(o.trend, opts...)
	}
}

// WithCorrelation passes options through to ProjectCorrelation.
func WithCorrelation(opts ...CorrelationOption) Option {
	return func(o *buildOpts) {
		o.correlation = append(o.correlation, opts...)
	}
}

// Build computes the dashboard from scratch. Nothing is cached between
// calls and the input is never modified.
func Build(ordered RecencyOrdered, info *model.ModelInfo, opts ...Option) *Dashboard {
	o := buildOpts{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dashboard{
		ModelInfo:   info,
		GeneratedAt: o.now().UTC(),
	}

	records := ordered.Records()
	summary, err := Summarize(records)
	if errors.Is(err, ErrNoData) {
		d.Empty = true
		return d
	}
	d.Summary = summary

	dist := Bucketize(records)
	trend := ProjectTrend(ordered, o.trend...)
	corr := ProjectCorrelation(records, o.correlation...)

	d.Distribution = &dist
	d.Trend = &trend
	d.Correlation = &corr
	d.Bars = Bars(dist)
	d.Columns = Columns(trend)
	d.Dots = Dots(corr)
	d.Insights = Insights(summary, info)

	return d
}

// Chart returns the rendered chart of the given kind, or nil when the
// dashboard is empty.
func (d *Dashboard) Chart(kind ChartKind) *ChartView {
	if d.Empty {
		return nil
	}
	switch kind {
	case ChartDistribution:
		return &ChartView{
			Kind:        kind,
			Title:       "Grade Distribution",
			Description: "Distribution of predicted grades across different performance categories",
			Bars:        d.Bars,
		}
	case ChartTrend:
		return &ChartView{
			Kind:        kind,
			Title:       "Prediction Trend",
			Description: "Recent prediction results over time (last 10 predictions)",
			Columns:     d.Columns,
		}
	case ChartCorrelation:
		return &ChartView{
			Kind:        kind,
			Title:       "G1 vs G3 Correlation",
			Description: "Relationship between first period grades and predicted final grades",
			Dots:        d.Dots,
		}
	}
	return nil
}
