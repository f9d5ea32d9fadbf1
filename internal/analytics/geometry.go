package analytics

import "math"

const (
	// PercentCeiling is the extent ceiling for bar widths.
	PercentCeiling = 100.0

	// TrendPixelCeiling is the tallest column height in the trend chart.
	TrendPixelCeiling = 200.0
)

// Extent maps value onto [0, ceiling] relative to the largest value in its
// series. A zero or NaN series max, or a non-finite result, maps to 0.
func Extent(value, seriesMax, ceiling float64) float64 {
	if seriesMax == 0 || math.IsNaN(seriesMax) {
		return 0
	}
	e := value / seriesMax * ceiling
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0
	}
	return e
}

// BarWidth returns a bar width in percent of the track.
func BarWidth(value, seriesMax float64) float64 {
	return Extent(value, seriesMax, PercentCeiling)
}

// ColumnHeight returns a trend column height in pixels.
func ColumnHeight(value, seriesMax float64) float64 {
	return Extent(value, seriesMax, TrendPixelCeiling)
}
