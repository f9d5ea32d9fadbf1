// Package history loads prediction history snapshots from a source and
// keeps only the result of the most recently issued fetch.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gradelens/internal/model"
)

// ErrSuperseded is returned by Refresh when a later refresh was issued
// before this one completed. Its result is discarded.
var ErrSuperseded = eris.New("history: refresh superseded by a newer request")

// Source provides prediction history and model metadata.
type Source interface {
	// Predictions returns recent predictions, most recent first.
	Predictions(ctx context.Context) ([]model.PredictionRecord, error)
	// ModelInfo returns the model metadata.
	ModelInfo(ctx context.Context) (*model.ModelInfo, error)
}

// Snapshot is one applied fetch result.
type Snapshot struct {
	Token     uint64                   `json:"token"`
	Records   []model.PredictionRecord `json:"records"`
	ModelInfo *model.ModelInfo         `json:"model_info,omitempty"`
	FetchedAt time.Time                `json:"fetched_at"`
}

// Loader fetches snapshots from a Source. Every Refresh takes a token from
// a monotonically increasing counter; a result is applied only while its
// token is still the latest issued.
type Loader struct {
	src Source
	now func() time.Time

	mu      sync.Mutex
	issued  uint64
	current Snapshot
}

// NewLoader creates a Loader over src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src, now: time.Now}
}

// Refresh fetches predictions and model info concurrently and installs the
// result as the current snapshot. A model info failure is logged and leaves
// ModelInfo nil.
func (l *Loader) Refresh(ctx context.Context) (Snapshot, error) {
	token := l.issue()
	log := zap.L().With(zap.Uint64("token", token))

	var (
		records []model.PredictionRecord
		info    *model.ModelInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := l.src.Predictions(gctx)
		if err != nil {
			return eris.Wrap(err, "history: fetch predictions")
		}
		records = recs
		return nil
	})
	g.Go(func() error {
		mi, err := l.src.ModelInfo(gctx)
		if err != nil {
			log.Warn("history: model info unavailable", zap.Error(err))
			return nil
		}
		info = mi
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Token:     token,
		Records:   records,
		ModelInfo: info,
		FetchedAt: l.now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.issued {
		log.Debug("history: discarding stale refresh", zap.Uint64("latest", l.issued))
		return Snapshot{}, ErrSuperseded
	}
	l.current = snap

	log.Info("history: snapshot refreshed", zap.Int("records", len(records)))
	return snap, nil
}

// Current returns the last applied snapshot. The zero Snapshot means no
// refresh has succeeded yet.
func (l *Loader) Current() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Watch refreshes every interval until ctx is done.
func (l *Loader) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				zap.L().Warn("history: periodic refresh failed", zap.Error(err))
			}
		}
	}
}

func (l *Loader) issue() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	return l.issued
}
