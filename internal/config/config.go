package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Blob   BlobConfig   `yaml:"blob" mapstructure:"blob"`
	Report ReportConfig `yaml:"report" mapstructure:"report"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// BlobConfig configures the cache blob store.
type BlobConfig struct {
	Root    string `yaml:"root" mapstructure:"root"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
}

// ReportConfig tunes report aggregation.
type ReportConfig struct {
	OpenResponseCap int `yaml:"open_response_cap" mapstructure:"open_response_cap"`
}

// ExportConfig tunes export generation.
type ExportConfig struct {
	SignedURLTTLMinutes int `yaml:"signed_url_ttl_minutes" mapstructure:"signed_url_ttl_minutes"`
}

// SignedURLTTL returns the TTL as a duration.
func (c ExportConfig) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLMinutes) * time.Minute
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "survey.db")
	v.SetDefault("blob.root", ".cache")
	v.SetDefault("blob.base_url", "http://localhost:8080/files")
	v.SetDefault("report.open_response_cap", 20)
	v.SetDefault("export.signed_url_ttl_minutes", 15)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
}

// Validate checks the configuration needed for a given mode ("cli" or
// "serve"). Problems are collected so the user sees them all at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver (SURVEY_STORE_DATABASE_URL)")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Blob.Root == "" {
		problems = append(problems, "blob.root is required")
	}
	if c.Report.OpenResponseCap < 0 {
		problems = append(problems, "report.open_response_cap must be >= 0")
	}
	if c.Export.SignedURLTTLMinutes <= 0 {
		problems = append(problems, "export.signed_url_ttl_minutes must be > 0")
	}

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Blob.Secret == "" {
			problems = append(problems, "blob.secret is required to sign download URLs (SURVEY_BLOB_SECRET)")
		}
		if c.Server.RatePerSecond <= 0 || c.Server.RateBurst <= 0 {
			problems = append(problems, "server.rate_per_second and server.rate_burst must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
