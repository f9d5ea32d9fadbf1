package analytics

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ChartKind selects one of the dashboard charts.
type ChartKind string

const (
	ChartDistribution ChartKind = "distribution"
	ChartTrend        ChartKind = "trend"
	ChartCorrelation  ChartKind = "correlation"
)

// ChartKinds lists the charts in tab order.
var ChartKinds = []ChartKind{ChartDistribution, ChartTrend, ChartCorrelation}

// ParseChartKind resolves a chart name, case-insensitively.
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ChartKinds {
		if k == known {
			return k, nil
		}
	}
	return "", eris.Errorf("analytics: unknown chart %q", s)
}

// Bar is one rendered distribution bar.
type Bar struct {
	Label    string  `json:"label" yaml:"label"`
	Count    int     `json:"count" yaml:"count"`
	WidthPct float64 `json:"width_pct" yaml:"width_pct"`
	Color    string  `json:"color" yaml:"color"`
}

// Column is one rendered trend column.
type Column struct {
	Index    int     `json:"index" yaml:"index"`
	Grade    float64 `json:"grade" yaml:"grade"`
	Label    string  `json:"label" yaml:"label"`
	Date     string  `json:"date" yaml:"date"`
	HeightPx float64 `json:"height_px" yaml:"height_px"`
}

// Dot is one rendered scatter point.
type Dot struct {
	LeftPct float64 `json:"left_pct" yaml:"left_pct"`
	TopPct  float64 `json:"top_pct" yaml:"top_pct"`
	Title   string  `json:"title" yaml:"title"`
}

// Bars renders the distribution, scaled to its largest bucket.
func Bars(d Distribution) []Bar {
	bars := make([]Bar, 0, len(d.Buckets))
	for _, b := range d.Buckets {
		bars = append(bars, Bar{
			Label:    b.Label,
			Count:    b.Count,
			WidthPct: BarWidth(float64(b.Count), float64(d.MaxCount)),
			Color:    b.Band.Color(),
		})
	}
	return bars
}

// Columns renders the trend, scaled to its highest grade.
func Columns(t Trend) []Column {
	cols := make([]Column, 0, len(t.Points))
	for _, p := range t.Points {
		cols = append(cols, Column{
			Index:    p.Index,
			Grade:    p.Grade,
			Label:    fmt.Sprintf("%.1f", p.Grade),
			Date:     p.Date,
			HeightPx: ColumnHeight(p.Grade, t.MaxGrade),
		})
	}
	return cols
}

// Dots renders the scatter. Positions are the normalized coordinates as-is.
func Dots(c Correlation) []Dot {
	dots := make([]Dot, 0, len(c.Points))
	for _, p := range c.Points {
		dots = append(dots, Dot{
			LeftPct: p.X,
			TopPct:  p.Y,
			Title:   fmt.Sprintf("G1: %g, G3: %.1f", p.Prior, p.Predicted),
		})
	}
	return dots
}
