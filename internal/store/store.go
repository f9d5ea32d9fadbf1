// Package store persists prediction history and model metadata in SQLite
// or PostgreSQL.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/model"
)

// DefaultListLimit is used when a filter does not set a limit.
const DefaultListLimit = 20

// PredictionFilter specifies criteria for listing predictions.
type PredictionFilter struct {
	Since  time.Time `json:"since,omitzero"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

func (f PredictionFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for prediction history.
type Store interface {
	// Predictions
	SavePrediction(ctx context.Context, rec *model.PredictionRecord) error
	ImportPredictions(ctx context.Context, recs []model.PredictionRecord) (int64, error)
	ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error)
	CountPredictions(ctx context.Context) (int, error)

	// Model metadata
	GetModelInfo(ctx context.Context) (*model.ModelInfo, error)
	SetModelInfo(ctx context.Context, info *model.ModelInfo) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepare fills in a missing id and creation time.
func prepare(rec *model.PredictionRecord, now time.Time) error {
	if rec == nil {
		return eris.New("store: nil prediction")
	}
	if strings.TrimSpace(string(rec.ID)) == "" {
		rec.ID = model.RecordID(uuid.New().String())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.InputFeatures == nil {
		rec.InputFeatures = model.Features{}
	}
	return nil
}
