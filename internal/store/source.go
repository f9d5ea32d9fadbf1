package store

import (
	"context"

	"github.com/sells-group/gradelens/internal/model"
)

// Source reads prediction history from a Store. It satisfies
// history.Source so a local database can stand in for the remote API.
type Source struct {
	st    Store
	limit int
}

// NewSource returns a Source listing at most limit predictions per fetch.
func NewSource(st Store, limit int) *Source {
	return &Source{st: st, limit: limit}
}

// Predictions returns the most recent predictions, newest first.
func (s *Source) Predictions(ctx context.Context) ([]model.PredictionRecord, error) {
	recs, err := s.st.ListPredictions(ctx, PredictionFilter{Limit: s.limit})
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.PredictionRecord{}
	}
	return recs, nil
}

// ModelInfo returns the stored model metadata, or nil if none was saved.
func (s *Source) ModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	return s.st.GetModelInfo(ctx)
}
