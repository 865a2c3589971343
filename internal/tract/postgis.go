package tract

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/internal/db"
)

// PostGISLocator answers lookups with ST_Contains against tiger_data.tract,
// as loaded by the tiger pipeline.
type PostGISLocator struct {
	pool db.Pool
	year int
}

// NewPostGISLocator returns a Locator over the tracts of one TIGER year.
func NewPostGISLocator(pool db.Pool, year int) *PostGISLocator {
	return &PostGISLocator{pool: pool, year: year}
}

// Locate implements Locator.
func (l *PostGISLocator) Locate(ctx context.Context, lat, lng float64) (string, error) {
	var geoid string
	err := l.pool.QueryRow(ctx, `
		SELECT geoid FROM tiger_data.tract
		WHERE year = $3 AND ST_Contains(the_geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY geoid
		LIMIT 1`,
		lng, lat, l.year,
	).Scan(&geoid)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "tract: postgis lookup")
	}
	return geoid, nil
}
