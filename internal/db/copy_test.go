package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "predictions", []string{"id", "predicted_grade"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"predictions"}, []string{"id", "predicted_grade"}).WillReturnResult(3)

	rows := [][]any{{"a", 12.5}, {"b", 9.0}, {"c", nil}}
	n, err := CopyFrom(context.Background(), mock, "predictions", []string{"id", "predicted_grade"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"analytics", "predictions"}, []string{"id"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "analytics.predictions", []string{"id"}, [][]any{{"a"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"predictions"}, []string{"id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "predictions", []string{"id"}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO predictions")
	assert.NoError(t, mock.ExpectationsWereMet())
}
