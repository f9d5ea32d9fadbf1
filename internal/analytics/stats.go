// Package analytics turns prediction history into dashboard statistics,
// a grade distribution, a trend window, a correlation scatter, and the
// visual extents used to draw them.
package analytics

import (
	"math"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/model"
)

// ErrNoData is returned by Summarize for an empty record list.
var ErrNoData = eris.New("analytics: no predictions")

// Summary holds aggregate statistics over predicted grades at full
// precision. Use the Display helpers for presentation rounding.
type Summary struct {
	Count   int     `json:"count" yaml:"count"`
	Average float64 `json:"average" yaml:"average"`
	Max     float64 `json:"max" yaml:"max"`
	Min     float64 `json:"min" yaml:"min"`

	// Defaulted counts records whose grade was missing or malformed and
	// was counted as 0.
	Defaulted int `json:"defaulted" yaml:"defaulted"`
}

// Summarize computes count, average, max and min of the predicted grades.
// It returns ErrNoData when records is empty.
func Summarize(records []model.PredictionRecord) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	s := &Summary{
		Count: len(records),
		Max:   math.Inf(-1),
		Min:   math.Inf(1),
	}

	var total float64
	for _, r := range records {
		g, ok := r.Grade()
		if !ok {
			s.Defaulted++
		}
		total += g
		if g > s.Max {
			s.Max = g
		}
		if g < s.Min {
			s.Min = g
		}
	}
	s.Average = total / float64(s.Count)

	// Float summation can push the mean of equal values just past the
	// bounds; keep min <= average <= max.
	s.Average = math.Max(s.Min, math.Min(s.Max, s.Average))

	return s, nil
}

// AverageDisplay returns the average rounded to 2 places.
func (s *Summary) AverageDisplay() string {
	return strconv.FormatFloat(RoundTo(s.Average, 2), 'f', 2, 64)
}

// MaxDisplay returns the max rounded to 1 place.
func (s *Summary) MaxDisplay() string {
	return strconv.FormatFloat(RoundTo(s.Max, 1), 'f', 1, 64)
}

// MinDisplay returns the min rounded to 1 place.
func (s *Summary) MinDisplay() string {
	return strconv.FormatFloat(RoundTo(s.Min, 1), 'f', 1, 64)
}

// RoundTo rounds v to the given number of decimal places, half away from zero.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
