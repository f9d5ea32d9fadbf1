package analytics

import (
	"slices"
	"time"

	"github.com/sells-group/gradelens/internal/model"
)

// TrendWindow is the maximum number of points in the trend view.
const TrendWindow = 10

// trendDateLayout renders dates as a short month and day, e.g. "Mar 4".
const trendDateLayout = "Jan 2"

// RecencyOrdered is a record list known to be ordered most recent first.
type RecencyOrdered struct {
	records []model.PredictionRecord
}

// AsDelivered trusts that records already arrive most recent first, as the
// history service guarantees.
func AsDelivered(records []model.PredictionRecord) RecencyOrdered {
	return RecencyOrdered{records: records}
}

// SortByRecency returns a copy of records stable-sorted by CreatedAt,
// most recent first.
func SortByRecency(records []model.PredictionRecord) RecencyOrdered {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.PredictionRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return RecencyOrdered{records: sorted}
}

// Records returns the ordered records.
func (o RecencyOrdered) Records() []model.PredictionRecord {
	return o.records
}

// Len returns the number of records.
func (o RecencyOrdered) Len() int {
	return len(o.records)
}

// TrendPoint is one prediction in the trend window.
type TrendPoint struct {
	Index int     `json:"index" yaml:"index"`
	Grade float64 `json:"grade" yaml:"grade"`
	Date  string  `json:"date" yaml:"date"`
}

// Trend is the chronological window of the most recent predictions.
type Trend struct {
	Points   []TrendPoint `json:"points" yaml:"points"`
	MaxGrade float64      `json:"max_grade" yaml:"max_grade"`
}

type trendOpts struct {
	loc *time.Location
}

// TrendOption configures ProjectTrend.
type TrendOption func(*trendOpts)

// InLocation renders point dates in loc. Dates default to UTC, so a
// prediction made shortly before midnight in the viewer's zone can carry
// the next day's label unless the viewer's location is passed. A nil loc
// is ignored.
func InLocation(loc *time.Location) TrendOption {
	return func(o *trendOpts) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// ProjectTrend takes the most recent TrendWindow records and returns them
// oldest first, indexed from 1.
func ProjectTrend(ordered RecencyOrdered, opts ...TrendOption) Trend {
	o := trendOpts{loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	n := min(ordered.Len(), TrendWindow)
	if n == 0 {
		return Trend{Points: []TrendPoint{}}
	}

	window := ordered.records[:n]
	points := make([]TrendPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		g, _ := window[i].Grade()
		points = append(points, TrendPoint{
			Index: len(points) + 1,
			Grade: g,
			Date:  window[i].CreatedAt.In(o.loc).Format(trendDateLayout),
		})
	}

	t := Trend{Points: points, MaxGrade: points[0].Grade}
	for _, p := range points[1:] {
		if p.Grade > t.MaxGrade {
			t.MaxGrade = p.Grade
		}
	}
	return t
}
