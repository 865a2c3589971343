package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SMARTYSTREETS_AUTH_ID", "SMARTYSTREETS_AUTH_TOKEN",
		"PARTICIPANT_DEIDENTIFIER_SECRET", "DATABASE_URL", "REDIS_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	clearCredentialEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"smarty"}, cfg.Geocode.Providers)
	assert.Equal(t, 8, cfg.Geocode.BatchConcurrency)
	assert.Equal(t, "https://us-street.api.smarty.com/street-address", cfg.Smarty.StreetURL)
	assert.Equal(t, 1, cfg.Smarty.Candidates)
	assert.Equal(t, "invalid", cfg.Smarty.Match)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, 672, cfg.Cache.TTLHours)
	assert.Equal(t, 4*7*24*60*60, int(cfg.Cache.TTL().Seconds()))
	assert.Equal(t, 100000, cfg.Cache.MaxEntries)
	assert.Equal(t, "data/geojsons/Washington_2016.geojson", cfg.Tracts.Path)
	assert.Equal(t, "memory", cfg.Tracts.Backend)
	assert.Equal(t, 2016, cfg.Tiger.Year)
	assert.Equal(t, "http", cfg.Tiger.Source)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)
	clearCredentialEnv(t)

	yaml := `
log:
  level: debug
  format: console
cache:
  driver: redis
  redis_url: redis://localhost:6379/0
  ttl_hours: 48
geocode:
  providers: [smarty, census]
tiger:
  year: 2020
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 48, cfg.Cache.TTLHours)
	assert.Equal(t, []string{"smarty", "census"}, cfg.Geocode.Providers)
	assert.Equal(t, 2020, cfg.Tiger.Year)
	// Defaults still apply for unset values
	assert.Equal(t, 100000, cfg.Cache.MaxEntries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	clearCredentialEnv(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("DEIDENTIFY_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadLegacyCredentialEnv(t *testing.T) {
	chdirTemp(t)
	clearCredentialEnv(t)
	t.Setenv("SMARTYSTREETS_AUTH_ID", "legacy-id")
	t.Setenv("SMARTYSTREETS_AUTH_TOKEN", "legacy-token")
	t.Setenv("PARTICIPANT_DEIDENTIFIER_SECRET", "pepper")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-id", cfg.Smarty.AuthID)
	assert.Equal(t, "legacy-token", cfg.Smarty.AuthToken)
	assert.Equal(t, "pepper", cfg.PII.Secret)
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	chdirTemp(t)
	clearCredentialEnv(t)
	t.Setenv("SMARTYSTREETS_AUTH_ID", "legacy-id")
	t.Setenv("DEIDENTIFY_SMARTY_AUTH_ID", "new-id")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "new-id", cfg.Smarty.AuthID)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validTractConfig() *Config {
	return &Config{
		Geocode: GeocodeConfig{Providers: []string{"smarty"}},
		Smarty:  SmartyConfig{AuthID: "id", AuthToken: "token"},
		Cache:   CacheConfig{Driver: "sqlite"},
		Tracts:  TractsConfig{Path: "tracts.geojson", Backend: "memory"},
		Tiger:   TigerConfig{Year: 2016, Source: "http"},
		Server:  ServerConfig{Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "tract ok", mode: ModeTract, mutate: func(*Config) {}},
		{name: "missing smarty creds", mode: ModeTract, mutate: func(c *Config) { c.Smarty.AuthToken = "" }, wantErr: "smarty.auth_id"},
		{name: "census needs no key", mode: ModeTract, mutate: func(c *Config) {
			c.Geocode.Providers = []string{"census"}
			c.Smarty = SmartyConfig{}
		}},
		{name: "google needs key", mode: ModeTract, mutate: func(c *Config) { c.Geocode.Providers = []string{"google"} }, wantErr: "google.key"},
		{name: "unknown provider", mode: ModeTract, mutate: func(c *Config) { c.Geocode.Providers = []string{"bing"} }, wantErr: "unknown geocode provider"},
		{name: "postgres cache needs url", mode: ModeTract, mutate: func(c *Config) { c.Cache.Driver = "postgres" }, wantErr: "cache.database_url"},
		{name: "redis cache needs url", mode: ModeTract, mutate: func(c *Config) { c.Cache.Driver = "redis" }, wantErr: "cache.redis_url"},
		{name: "unknown cache", mode: ModeTract, mutate: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: "unknown cache driver"},
		{name: "postgis needs url", mode: ModeTract, mutate: func(c *Config) { c.Tracts.Backend = "postgis" }, wantErr: "tracts.database_url"},
		{name: "pii needs secret", mode: ModePII, mutate: func(*Config) {}, wantErr: "pii.secret"},
		{name: "pii ok", mode: ModePII, mutate: func(c *Config) { c.PII.Secret = "s" }},
		{name: "pii ignores geocoder", mode: ModePII, mutate: func(c *Config) {
			c.PII.Secret = "s"
			c.Smarty = SmartyConfig{}
		}},
		{name: "tiger bad source", mode: ModeTiger, mutate: func(c *Config) { c.Tiger.Source = "s3" }, wantErr: "tiger.source"},
		{name: "tiger bad year", mode: ModeTiger, mutate: func(c *Config) { c.Tiger.Year = 16 }, wantErr: "tiger.year"},
		{name: "serve bad port", mode: ModeServe, mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTractConfig()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
