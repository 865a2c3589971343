package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log            LogConfig     `yaml:"log" mapstructure:"log"`
	Geocode        GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Smarty         SmartyConfig  `yaml:"smarty" mapstructure:"smarty"`
	Census         CensusConfig  `yaml:"census" mapstructure:"census"`
	Google         GoogleConfig  `yaml:"google" mapstructure:"google"`
	Cache          CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Tracts         TractsConfig  `yaml:"tracts" mapstructure:"tracts"`
	Tiger          TigerConfig   `yaml:"tiger" mapstructure:"tiger"`
	PII            PIIConfig     `yaml:"pii" mapstructure:"pii"`
	Server         ServerConfig  `yaml:"server" mapstructure:"server"`
	InstitutesFile string        `yaml:"institutes_file" mapstructure:"institutes_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GeocodeConfig configures the provider cascade.
type GeocodeConfig struct {
	Providers        []string `yaml:"providers" mapstructure:"providers"`
	RateLimit        float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	BatchConcurrency int      `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SmartyConfig holds SmartyStreets credentials and endpoints.
type SmartyConfig struct {
	AuthID     string `yaml:"auth_id" mapstructure:"auth_id"`
	AuthToken  string `yaml:"auth_token" mapstructure:"auth_token"`
	StreetURL  string `yaml:"street_url" mapstructure:"street_url"`
	ExtractURL string `yaml:"extract_url" mapstructure:"extract_url"`
	Candidates int    `yaml:"candidates" mapstructure:"candidates"`
	Match      string `yaml:"match" mapstructure:"match"`
}

// CensusConfig configures the Census Bureau geocoder.
type CensusConfig struct {
	Benchmark  string `yaml:"benchmark" mapstructure:"benchmark"`
	OneLineURL string `yaml:"oneline_url" mapstructure:"oneline_url"`
	BatchURL   string `yaml:"batch_url" mapstructure:"batch_url"`
}

// GoogleConfig holds the Google Geocoding API key.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig selects and tunes the geocode cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours    int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	MaxEntries  int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// TractsConfig selects where tract boundaries come from.
type TractsConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Backend     string `yaml:"backend" mapstructure:"backend"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TigerConfig configures the TIGER/Line download pipeline.
type TigerConfig struct {
	Year        int    `yaml:"year" mapstructure:"year"`
	StatesFile  string `yaml:"states_file" mapstructure:"states_file"`
	FIPSFile    string `yaml:"fips_file" mapstructure:"fips_file"`
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	Source      string `yaml:"source" mapstructure:"source"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PIIConfig holds the participant hashing secret.
type PIIConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// ServerConfig configures the lookup service.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	JWTSecret   string   `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEIDENTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocode.providers", []string{"smarty"})
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.batch_concurrency", 8)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("smarty.street_url", "https://us-street.api.smarty.com/street-address")
	v.SetDefault("smarty.extract_url", "https://us-extract.api.smarty.com/")
	v.SetDefault("smarty.candidates", 1)
	v.SetDefault("smarty.match", "invalid")
	v.SetDefault("census.benchmark", "Public_AR_Current")
	v.SetDefault("census.oneline_url", "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress")
	v.SetDefault("census.batch_url", "https://geocoding.geo.census.gov/geocoder/locations/addressbatch")
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "geocode_cache.db")
	v.SetDefault("cache.ttl_hours", 24*7*4)
	v.SetDefault("cache.max_entries", 100000)
	v.SetDefault("tracts.path", "data/geojsons/Washington_2016.geojson")
	v.SetDefault("tracts.backend", "memory")
	v.SetDefault("tiger.year", 2016)
	v.SetDefault("tiger.states_file", "states.txt")
	v.SetDefault("tiger.fips_file", "fips.txt")
	v.SetDefault("tiger.data_dir", "data")
	v.SetDefault("tiger.source", "http")
	v.SetDefault("tiger.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Keys without a useful default still need registering so AutomaticEnv
	// sees them during Unmarshal.
	for _, key := range []string{
		"smarty.auth_id", "smarty.auth_token", "google.key", "pii.secret",
		"cache.database_url", "cache.redis_url", "tracts.database_url",
		"tiger.database_url", "server.jwt_secret", "institutes_file",
	} {
		v.SetDefault(key, "")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	applyLegacyEnv(&cfg)

	return &cfg, nil
}

// applyLegacyEnv fills credentials from the variable names used by existing
// deployments when the prefixed keys are unset.
func applyLegacyEnv(cfg *Config) {
	fallback := func(dst *string, name string) {
		if *dst == "" {
			*dst = os.Getenv(name)
		}
	}
	fallback(&cfg.Smarty.AuthID, "SMARTYSTREETS_AUTH_ID")
	fallback(&cfg.Smarty.AuthToken, "SMARTYSTREETS_AUTH_TOKEN")
	fallback(&cfg.PII.Secret, "PARTICIPANT_DEIDENTIFIER_SECRET")
	fallback(&cfg.Cache.DatabaseURL, "DATABASE_URL")
	fallback(&cfg.Cache.RedisURL, "REDIS_URL")
}

// Mode names a command family whose requirements Validate checks.
type Mode string

// Validation modes.
const (
	ModeTract Mode = "tract"
	ModePII   Mode = "pii"
	ModeTiger Mode = "tiger"
	ModeServe Mode = "serve"
)

// Validate checks that the settings a command needs are present.
func (c *Config) Validate(mode Mode) error {
	var missing []string

	needGeocode := mode == ModeTract || mode == ModeServe
	if needGeocode {
		if len(c.Geocode.Providers) == 0 {
			missing = append(missing, "geocode.providers")
		}
		for _, p := range c.Geocode.Providers {
			switch p {
			case "smarty":
				if c.Smarty.AuthID == "" || c.Smarty.AuthToken == "" {
					missing = append(missing, "smarty.auth_id/smarty.auth_token (or SMARTYSTREETS_AUTH_ID/SMARTYSTREETS_AUTH_TOKEN)")
				}
			case "google":
				if c.Google.Key == "" {
					missing = append(missing, "google.key")
				}
			case "census":
			default:
				return eris.Errorf("config: unknown geocode provider %q", p)
			}
		}
		switch c.Cache.Driver {
		case "sqlite", "none", "":
		case "postgres":
			if c.Cache.DatabaseURL == "" {
				missing = append(missing, "cache.database_url")
			}
		case "redis":
			if c.Cache.RedisURL == "" {
				missing = append(missing, "cache.redis_url")
			}
		default:
			return eris.Errorf("config: unknown cache driver %q", c.Cache.Driver)
		}
		switch c.Tracts.Backend {
		case "memory", "":
			if c.Tracts.Path == "" {
				missing = append(missing, "tracts.path")
			}
		case "postgis":
			if c.Tracts.DatabaseURL == "" {
				missing = append(missing, "tracts.database_url")
			}
		default:
			return eris.Errorf("config: unknown tracts backend %q", c.Tracts.Backend)
		}
	}

	switch mode {
	case ModePII:
		if c.PII.Secret == "" {
			missing = append(missing, "pii.secret (or PARTICIPANT_DEIDENTIFIER_SECRET)")
		}
	case ModeTiger:
		if c.Tiger.Year < 2000 {
			return eris.Errorf("config: invalid tiger.year %d", c.Tiger.Year)
		}
		if c.Tiger.Source != "http" && c.Tiger.Source != "ftp" {
			return eris.Errorf("config: unknown tiger.source %q", c.Tiger.Source)
		}
	case ModeServe:
		if c.Server.Port <= 0 {
			return eris.Errorf("config: invalid server.port %d", c.Server.Port)
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	// stdout carries records; logs go to stderr.
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
