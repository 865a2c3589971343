package tract

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostGISLocator(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT geoid FROM tiger_data.tract").
		WithArgs(-122.33, 47.61, 2016).
		WillReturnRows(pgxmock.NewRows([]string{"geoid"}).AddRow("53033008100"))
	mock.ExpectQuery("SELECT geoid FROM tiger_data.tract").
		WithArgs(0.0, 0.0, 2016).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT geoid FROM tiger_data.tract").
		WithArgs(1.0, 1.0, 2016).
		WillReturnError(errors.New("relation does not exist"))

	loc := NewPostGISLocator(mock, 2016)
	ctx := context.Background()

	got, err := loc.Locate(ctx, 47.61, -122.33)
	require.NoError(t, err)
	assert.Equal(t, "53033008100", got)

	got, err = loc.Locate(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = loc.Locate(ctx, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tract: postgis lookup")

	require.NoError(t, mock.ExpectationsWereMet())
}
