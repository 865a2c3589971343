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

func TestCopyBatches_EmptyRows(t *testing.T) {
	n, err := CopyBatches(context.TODO(), nil, "tiger_data", "tract", []string{"geoid"}, nil, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyBatches_SplitsIntoBatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ident := pgx.Identifier{"tiger_data", "tract"}
	mock.ExpectCopyFrom(ident, []string{"geoid"}).WillReturnResult(2)
	mock.ExpectCopyFrom(ident, []string{"geoid"}).WillReturnResult(1)

	rows := [][]any{{"53033000100"}, {"53033000200"}, {"53033000300"}}
	n, err := CopyBatches(context.Background(), mock, "tiger_data", "tract", []string{"geoid"}, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyBatches_ErrorKeepsPartialCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ident := pgx.Identifier{"tiger_data", "tract"}
	mock.ExpectCopyFrom(ident, []string{"geoid"}).WillReturnResult(1)
	mock.ExpectCopyFrom(ident, []string{"geoid"}).WillReturnError(fmt.Errorf("permission denied"))

	rows := [][]any{{"a"}, {"b"}}
	n, err := CopyBatches(context.Background(), mock, "tiger_data", "tract", []string{"geoid"}, rows, 1)
	require.Error(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, err.Error(), "COPY INTO tiger_data.tract")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "", PoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty connection string")
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", PoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
