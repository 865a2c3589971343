package tiger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/db"
)

// tractColumns are the tiger_data.tract columns written by COPY, in order.
var tractColumns = []string{
	"geoid", "statefp", "countyfp", "tractce", "name", "namelsad",
	"aland", "awater", "year", "the_geom",
}

const loaderMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE SCHEMA IF NOT EXISTS tiger_data;

CREATE TABLE IF NOT EXISTS tiger_data.tract (
	geoid    TEXT NOT NULL,
	statefp  TEXT NOT NULL,
	countyfp TEXT NOT NULL,
	tractce  TEXT NOT NULL,
	name     TEXT,
	namelsad TEXT,
	aland    BIGINT,
	awater   BIGINT,
	year     INTEGER NOT NULL,
	the_geom geometry(MultiPolygon, 4326) NOT NULL,
	PRIMARY KEY (geoid, year)
);

CREATE INDEX IF NOT EXISTS idx_tract_the_geom ON tiger_data.tract USING GIST (the_geom);

CREATE TABLE IF NOT EXISTS tiger_data.load_status (
	state_fips  TEXT NOT NULL,
	state_name  TEXT NOT NULL,
	year        INTEGER NOT NULL,
	row_count   INTEGER NOT NULL,
	loaded_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	duration_ms INTEGER,
	PRIMARY KEY (state_fips, year)
);
`

// LoadResult reports the outcome of loading one state.
type LoadResult struct {
	State    State         `json:"state"`
	Rows     int64         `json:"rows"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// StatusRow is a row of tiger_data.load_status.
type StatusRow struct {
	StateFIPS  string
	StateName  string
	Year       int
	RowCount   int
	LoadedAt   time.Time
	DurationMs int
}

// Loader writes tract polygons into PostGIS.
type Loader struct {
	pool      db.Pool
	batchSize int
}

// NewLoader returns a Loader writing through pool. batchSize <= 0 uses
// db.DefaultCopyBatch.
func NewLoader(pool db.Pool, batchSize int) *Loader {
	return &Loader{pool: pool, batchSize: batchSize}
}

// Migrate creates the tiger_data schema, tract table and load_status table.
func (l *Loader) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, loaderMigration); err != nil {
		return eris.Wrap(err, "tiger: migrate")
	}
	return nil
}

// LoadState replaces the tracts of one state and year. Unless force is set, a
// state already recorded in load_status is skipped.
func (l *Loader) LoadState(ctx context.Context, s State, year int, records []Record, force bool) (LoadResult, error) {
	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.String("state", s.Name),
		zap.Int("year", year),
	)
	res := LoadResult{State: s}

	if !force {
		loaded, err := l.isLoaded(ctx, s.FIPS, year)
		if err != nil {
			return res, err
		}
		if loaded {
			log.Debug("already loaded, skipping")
			res.Skipped = true
			return res, nil
		}
	}

	start := time.Now()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row, err := tractRow(r, year)
		if err != nil {
			log.Warn("skipping tract", zap.String("geoid", r.String("GEOID")), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}

	if _, err := l.pool.Exec(ctx,
		`DELETE FROM tiger_data.tract WHERE statefp = $1 AND year = $2`, s.FIPS, year,
	); err != nil {
		return res, eris.Wrapf(err, "tiger: clear tracts for %s", s.Name)
	}

	n, err := db.CopyBatches(ctx, l.pool, "tiger_data", "tract", tractColumns, rows, l.batchSize)
	if err != nil {
		return res, eris.Wrapf(err, "tiger: load tracts for %s", s.Name)
	}

	res.Rows = n
	res.Duration = time.Since(start)
	if err := l.recordLoad(ctx, s, year, int(n), int(res.Duration.Milliseconds())); err != nil {
		log.Warn("failed to record load status", zap.Error(err))
	}

	log.Info("tracts loaded", zap.Int64("rows", n), zap.Duration("duration", res.Duration))
	return res, nil
}

// Status returns tiger_data.load_status ordered by state.
func (l *Loader) Status(ctx context.Context) ([]StatusRow, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT state_fips, state_name, year, row_count, loaded_at, COALESCE(duration_ms, 0)
		FROM tiger_data.load_status
		ORDER BY state_fips, year`)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: query load status")
	}
	defer rows.Close()

	var status []StatusRow
	for rows.Next() {
		var sr StatusRow
		if err := rows.Scan(&sr.StateFIPS, &sr.StateName, &sr.Year, &sr.RowCount, &sr.LoadedAt, &sr.DurationMs); err != nil {
			return nil, eris.Wrap(err, "tiger: scan load status row")
		}
		status = append(status, sr)
	}
	return status, rows.Err()
}

func (l *Loader) isLoaded(ctx context.Context, stateFIPS string, year int) (bool, error) {
	var count int
	err := l.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM tiger_data.load_status WHERE state_fips = $1 AND year = $2",
		stateFIPS, year,
	).Scan(&count)
	if err != nil {
		return false, eris.Wrap(err, "tiger: check load status")
	}
	return count > 0, nil
}

func (l *Loader) recordLoad(ctx context.Context, s State, year, rowCount, durationMs int) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO tiger_data.load_status (state_fips, state_name, year, row_count, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (state_fips, year) DO UPDATE SET
			state_name = EXCLUDED.state_name,
			row_count = EXCLUDED.row_count,
			loaded_at = now(),
			duration_ms = EXCLUDED.duration_ms`,
		s.FIPS, s.Name, year, rowCount, durationMs,
	)
	if err != nil {
		return eris.Wrap(err, "tiger: record load status")
	}
	return nil
}

// tractRow converts a record to the tractColumns order.
func tractRow(r Record, year int) ([]any, error) {
	geoid := r.String("GEOID")
	if geoid == "" {
		return nil, eris.New("missing GEOID")
	}
	wkb, err := EncodeEWKB(r.Geometry)
	if err != nil {
		return nil, err
	}
	return []any{
		geoid,
		r.String("STATEFP"),
		r.String("COUNTYFP"),
		r.String("TRACTCE"),
		nilIfEmpty(r.String("NAME")),
		nilIfEmpty(r.String("NAMELSAD")),
		intOrNil(r.Attributes["ALAND"]),
		intOrNil(r.Attributes["AWATER"]),
		year,
		wkb,
	}, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intOrNil(v any) any {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return nil
}
