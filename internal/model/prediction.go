package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// FeatureG1 is the first-period grade feature read by the correlation view.
const FeatureG1 = "G1"

// FeatureG2 is the second-period grade feature shown in the history table.
const FeatureG2 = "G2"

// RecordID is the opaque identifier of a prediction. The history service
// emits integer ids; other sources may use strings.
type RecordID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode record id")
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: decode record id")
	}
	*id = RecordID(n.String())
	return nil
}

// Features holds the student features submitted with a prediction.
type Features map[string]any

// Number returns the named feature as a float. Missing, non-numeric and
// non-finite values report ok == false.
func (f Features) Number(name string) (float64, bool) {
	v, exists := f[name]
	if !exists || v == nil {
		return 0, false
	}

	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case int32:
		n = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// PredictionRecord is one stored prediction as delivered by the history
// service.
type PredictionRecord struct {
	ID             RecordID  `json:"id" yaml:"id"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	InputFeatures  Features  `json:"input_data" yaml:"input_data"`
	PredictedGrade *float64  `json:"predicted_grade" yaml:"predicted_grade"`
}

// Grade returns the predicted grade. A missing or non-finite grade reports
// ok == false with a zero value.
func (r PredictionRecord) Grade() (float64, bool) {
	if r.PredictedGrade == nil {
		return 0, false
	}
	g := *r.PredictedGrade
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0, false
	}
	return g, true
}

// PriorGrade returns the first-period grade (G1), defaulting to 0.
func (r PredictionRecord) PriorGrade() (float64, bool) {
	return r.InputFeatures.Number(FeatureG1)
}

// GradePtr returns a pointer to g, for building records by hand.
func GradePtr(g float64) *float64 {
	return &g
}
