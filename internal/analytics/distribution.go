package analytics

import "github.com/sells-group/gradelens/internal/model"

// Band is a performance band of the grade distribution.
type Band string

const (
	BandExcellent    Band = "excellent"
	BandGood         Band = "good"
	BandAverage      Band = "average"
	BandBelowAverage Band = "below_average"
)

// Bucket is one band of the distribution with its bounds and count.
// Upper is exclusive; a nil Upper means the band has no exclusive bound.
type Bucket struct {
	Band  Band     `json:"band" yaml:"band"`
	Label string   `json:"label" yaml:"label"`
	Lower float64  `json:"lower_bound" yaml:"lower_bound"`
	Upper *float64 `json:"upper_bound_exclusive" yaml:"upper_bound_exclusive"`
	Count int      `json:"count" yaml:"count"`
}

// Contains reports whether grade falls in the bucket. The first bucket
// accepts everything at or above its lower bound and the last everything
// below its upper bound, so out-of-range grades still land somewhere.
func (b Bucket) Contains(grade float64) bool {
	switch {
	case b.Upper == nil:
		return grade >= b.Lower
	case b.Lower <= 0:
		return grade < *b.Upper
	default:
		return grade >= b.Lower && grade < *b.Upper
	}
}

// Distribution is the fixed, ordered set of grade buckets.
type Distribution struct {
	Buckets  []Bucket `json:"buckets" yaml:"buckets"`
	MaxCount int      `json:"max_count" yaml:"max_count"`
	Total    int      `json:"total" yaml:"total"`
}

func bound(v float64) *float64 { return &v }

// bandDefs lists the bands in display order.
func bandDefs() []Bucket {
	return []Bucket{
		{Band: BandExcellent, Label: "Excellent (16-20)", Lower: 16},
		{Band: BandGood, Label: "Good (12-15)", Lower: 12, Upper: bound(16)},
		{Band: BandAverage, Label: "Average (10-11)", Lower: 10, Upper: bound(12)},
		{Band: BandBelowAverage, Label: "Below Average (<10)", Lower: 0, Upper: bound(10)},
	}
}

// Bucketize counts predicted grades per band. Each band scans the full
// list independently; missing grades count as 0.
func Bucketize(records []model.PredictionRecord) Distribution {
	buckets := bandDefs()

	for i := range buckets {
		for _, r := range records {
			g, _ := r.Grade()
			if buckets[i].Contains(g) {
				buckets[i].Count++
			}
		}
	}

	d := Distribution{Buckets: buckets, Total: len(records)}
	for _, b := range buckets {
		if b.Count > d.MaxCount {
			d.MaxCount = b.Count
		}
	}
	return d
}

// Classify returns the band a single grade falls in.
func Classify(grade float64) Band {
	for _, b := range bandDefs() {
		if b.Contains(grade) {
			return b.Band
		}
	}
	return BandBelowAverage
}

// Label returns the headline used for a single prediction in this band.
func (b Band) Label() string {
	switch b {
	case BandExcellent:
		return "Excellent Performance"
	case BandGood:
		return "Good Performance"
	case BandAverage:
		return "Average Performance"
	default:
		return "Needs Improvement"
	}
}

// Color returns the chart and badge color of the band.
func (b Band) Color() string {
	switch b {
	case BandExcellent:
		return "#10b981"
	case BandGood:
		return "#a855f7"
	case BandAverage:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}
