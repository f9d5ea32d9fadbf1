package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/db"
	"github.com/sells-group/gradelens/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var predictionColumns = []string{"id", "created_at", "input_data", "predicted_grade"}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"upsert_prediction": postgresUpsertPrediction,
	"count_predictions": `SELECT COUNT(*) FROM predictions`,
	"get_model_info":    `SELECT data FROM model_info WHERE id = 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migrate.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	input_data      JSONB NOT NULL DEFAULT '{}'::jsonb,
	predicted_grade DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC);

CREATE TABLE IF NOT EXISTS model_info (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const postgresUpsertPrediction = `INSERT INTO predictions (id, created_at, input_data, predicted_grade) VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		created_at = EXCLUDED.created_at,
		input_data = EXCLUDED.input_data,
		predicted_grade = EXCLUDED.predicted_grade`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *PostgresStore) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	if err := prepare(rec, s.clock()); err != nil {
		return err
	}
	inputJSON, err := json.Marshal(rec.InputFeatures)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal input data")
	}

	_, err = s.pool.Exec(ctx, postgresUpsertPrediction,
		string(rec.ID), rec.CreatedAt, inputJSON, rec.PredictedGrade,
	)
	return eris.Wrapf(err, "postgres: save prediction %s", rec.ID)
}

// ImportPredictions stages records with COPY and merges them on id, so
// re-importing an export updates rows instead of failing.
func (s *PostgresStore) ImportPredictions(ctx context.Context, recs []model.PredictionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	now := s.clock()
	rows := make([][]any, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		if err := prepare(rec, now); err != nil {
			return 0, err
		}
		inputJSON, err := json.Marshal(rec.InputFeatures)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal input data for %s", rec.ID)
		}
		rows = append(rows, []any{string(rec.ID), rec.CreatedAt, inputJSON, rec.PredictedGrade})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "predictions",
		Columns:      predictionColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import predictions")
	}
	return n, nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error) {
	query := `SELECT id, created_at, input_data, predicted_grade FROM predictions WHERE true`
	args := []any{}
	argIdx := 1

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	recs := []model.PredictionRecord{}
	for rows.Next() {
		var (
			rec       model.PredictionRecord
			id        string
			inputJSON []byte
		)
		if err := rows.Scan(&id, &rec.CreatedAt, &inputJSON, &rec.PredictedGrade); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		rec.ID = model.RecordID(id)
		rec.CreatedAt = rec.CreatedAt.UTC()
		if err := json.Unmarshal(inputJSON, &rec.InputFeatures); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal input data for %s", id)
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate predictions")
}

func (s *PostgresStore) CountPredictions(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count predictions")
}

func (s *PostgresStore) GetModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM model_info WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get model info")
	}

	var info model.ModelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal model info")
	}
	return &info, nil
}

func (s *PostgresStore) SetModelInfo(ctx context.Context, info *model.ModelInfo) error {
	if info == nil {
		return eris.New("postgres: nil model info")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal model info")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO model_info (id, data, updated_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		data, s.clock().UTC(),
	)
	return eris.Wrap(err, "postgres: set model info")
}
