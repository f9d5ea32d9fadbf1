package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gradelens/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id              TEXT PRIMARY KEY,
	created_at      DATETIME NOT NULL,
	input_data      TEXT NOT NULL DEFAULT '{}',
	predicted_grade REAL
);

CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC);

CREATE TABLE IF NOT EXISTS model_info (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const sqliteUpsertPrediction = `INSERT INTO predictions (id, created_at, input_data, predicted_grade) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		created_at = excluded.created_at,
		input_data = excluded.input_data,
		predicted_grade = excluded.predicted_grade`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	if err := prepare(rec, s.now()); err != nil {
		return err
	}
	inputJSON, err := json.Marshal(rec.InputFeatures)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal input data")
	}

	_, err = s.db.ExecContext(ctx, sqliteUpsertPrediction,
		string(rec.ID), rec.CreatedAt, string(inputJSON), nullGrade(rec.PredictedGrade),
	)
	return eris.Wrapf(err, "sqlite: save prediction %s", rec.ID)
}

func (s *SQLiteStore) ImportPredictions(ctx context.Context, recs []model.PredictionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertPrediction)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now()
	var n int64
	for i := range recs {
		rec := &recs[i]
		if err := prepare(rec, now); err != nil {
			return 0, err
		}
		inputJSON, err := json.Marshal(rec.InputFeatures)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal input data for %s", rec.ID)
		}
		res, err := stmt.ExecContext(ctx, string(rec.ID), rec.CreatedAt, string(inputJSON), nullGrade(rec.PredictedGrade))
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import prediction %s", rec.ID)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error) {
	query := `SELECT id, created_at, input_data, predicted_grade FROM predictions WHERE 1=1`
	args := []any{}

	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close() //nolint:errcheck

	recs := []model.PredictionRecord{}
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate predictions")
}

func (s *SQLiteStore) CountPredictions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count predictions")
}

func (s *SQLiteStore) GetModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM model_info WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get model info")
	}

	var info model.ModelInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal model info")
	}
	return &info, nil
}

func (s *SQLiteStore) SetModelInfo(ctx context.Context, info *model.ModelInfo) error {
	if info == nil {
		return eris.New("sqlite: nil model info")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal model info")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_info (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), s.now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set model info")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanPrediction(row scannable) (*model.PredictionRecord, error) {
	var (
		rec       model.PredictionRecord
		id        string
		inputJSON string
		grade     sql.NullFloat64
	)
	if err := row.Scan(&id, &rec.CreatedAt, &inputJSON, &grade); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prediction")
	}
	rec.ID = model.RecordID(id)
	rec.CreatedAt = rec.CreatedAt.UTC()
	if err := json.Unmarshal([]byte(inputJSON), &rec.InputFeatures); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal input data for %s", id)
	}
	if grade.Valid {
		rec.PredictedGrade = model.GradePtr(grade.Float64)
	}
	return &rec, nil
}

func nullGrade(g *float64) any {
	if g == nil {
		return nil
	}
	return *g
}
