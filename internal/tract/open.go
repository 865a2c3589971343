package tract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/db"
)

// Open returns the Locator selected by cfg.Backend and a function that
// releases its resources.
func Open(ctx context.Context, cfg config.TractsConfig, year int) (Locator, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		tracts, err := Load(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if len(tracts) == 0 {
			return nil, nil, eris.Errorf("tract: %s has no tract polygons", cfg.Path)
		}
		return NewIndex(tracts), func() {}, nil

	case "postgis":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{})
		if err != nil {
			return nil, nil, eris.Wrap(err, "tract: connect postgis")
		}
		return NewPostGISLocator(pool, year), pool.Close, nil

	default:
		return nil, nil, eris.Errorf("tract: unknown backend %q", cfg.Backend)
	}
}
