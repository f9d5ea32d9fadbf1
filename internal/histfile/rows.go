package histfile

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/model"
)

// Reserved column names in tabular files. Every other column is an input
// feature.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColGrade     = "predicted_grade"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// recordFromRow maps one tabular row onto a record. line is 1-based and
// only used in errors.
func recordFromRow(header, cells []string, line int) (model.PredictionRecord, error) {
	rec := model.PredictionRecord{InputFeatures: model.Features{}}
	for i, name := range header {
		if i >= len(cells) {
			break
		}
		name = strings.TrimSpace(name)
		val := strings.TrimSpace(cells[i])

		switch strings.ToLower(name) {
		case ColID:
			rec.ID = model.RecordID(val)
		case ColCreatedAt:
			if val == "" {
				continue
			}
			t, err := parseTime(val)
			if err != nil {
				return rec, eris.Wrapf(err, "line %d: created_at", line)
			}
			rec.CreatedAt = t
		case ColGrade:
			if val == "" {
				continue
			}
			g, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return rec, eris.Wrapf(err, "line %d: predicted_grade %q", line, val)
			}
			rec.PredictedGrade = model.GradePtr(g)
		case "":
		default:
			if val == "" {
				continue
			}
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				rec.InputFeatures[name] = f
			} else {
				rec.InputFeatures[name] = val
			}
		}
	}
	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized time %q", s)
}

// featureColumns lists the feature names used by recs, G1 and G2 first and
// the rest sorted.
func featureColumns(recs []model.PredictionRecord) []string {
	seen := map[string]bool{}
	var rest []string
	for _, rec := range recs {
		for name := range rec.InputFeatures {
			if seen[name] {
				continue
			}
			seen[name] = true
			if name != model.FeatureG1 && name != model.FeatureG2 {
				rest = append(rest, name)
			}
		}
	}
	slices.Sort(rest)

	cols := make([]string, 0, len(rest)+2)
	for _, name := range []string{model.FeatureG1, model.FeatureG2} {
		if seen[name] {
			cols = append(cols, name)
		}
	}
	return append(cols, rest...)
}
