package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/campus-locator/internal/pipeline"
)

// Config holds the full application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Model  ModelConfig  `yaml:"model" mapstructure:"model"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Bulk   BulkConfig   `yaml:"bulk" mapstructure:"bulk"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`

	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// SourceConfig locates the input files.
type SourceConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// ModelConfig holds the training and inference knobs.
type ModelConfig struct {
	WindowHours        int     `yaml:"window_hours" mapstructure:"window_hours"`
	DecayHalfLifeHours float64 `yaml:"decay_half_life_hours" mapstructure:"decay_half_life_hours"`
	NearbyWindowRadius int     `yaml:"nearby_window_radius" mapstructure:"nearby_window_radius"`
	Clusters           int     `yaml:"clusters" mapstructure:"clusters"`
	Seed               uint64  `yaml:"seed" mapstructure:"seed"`
	KMeansRestarts     int     `yaml:"kmeans_restarts" mapstructure:"kmeans_restarts"`
	KMeansMaxIter      int     `yaml:"kmeans_max_iter" mapstructure:"kmeans_max_iter"`
}

// ExportConfig configures artifact output.
type ExportConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BulkConfig bounds bulk prediction fan-out.
type BulkConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// CacheConfig configures the prediction memo.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the memo lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// MonitoringConfig holds run health thresholds.
type MonitoringConfig struct {
	LookbackHours        int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinResolvedRatio     float64 `yaml:"min_resolved_ratio" mapstructure:"min_resolved_ratio"`
	MinFinishedRuns      int     `yaml:"min_finished_runs" mapstructure:"min_finished_runs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TrainOptions maps the model section onto pipeline options.
func (c *Config) TrainOptions() pipeline.TrainOptions {
	return pipeline.TrainOptions{
		DataDir:            c.Source.DataDir,
		WindowHours:        c.Model.WindowHours,
		Clusters:           c.Model.Clusters,
		DecayHalfLifeHours: c.Model.DecayHalfLifeHours,
		NearbyWindowRadius: c.Model.NearbyWindowRadius,
		Seed:               c.Model.Seed,
		Restarts:           c.Model.KMeansRestarts,
		MaxIter:            c.Model.KMeansMaxIter,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.data_dir", "data")
	v.SetDefault("model.window_hours", 2)
	v.SetDefault("model.decay_half_life_hours", 2.0)
	v.SetDefault("model.nearby_window_radius", 2)
	v.SetDefault("model.clusters", 0)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.kmeans_restarts", 10)
	v.SetDefault("model.kmeans_max_iter", 300)
	v.SetDefault("export.dir", "output")
	v.SetDefault("export.xlsx", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "campus.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("bulk.concurrency", 4)
	v.SetDefault("cache.ttl_minutes", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_resolved_ratio", 0.5)
	v.SetDefault("monitoring.min_finished_runs", 3)

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

// Validate checks the settings a command mode depends on. Every problem is
// reported, not just the first.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	checkModel := func() {
		if c.Source.DataDir == "" {
			add("source.data_dir is required")
		}
		if c.Model.WindowHours < 1 {
			add("model.window_hours must be >= 1")
		}
		if c.Model.NearbyWindowRadius < 0 {
			add("model.nearby_window_radius must be >= 0")
		}
		if c.Model.Clusters < 0 {
			add("model.clusters must be >= 0")
		}
		if c.Bulk.Concurrency < 1 || c.Bulk.Concurrency > 64 {
			add("bulk.concurrency must be between 1 and 64")
		}
	}
	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
	}

	switch mode {
	case "train":
		checkModel()
	case "store":
		checkStore()
	case "serve":
		checkModel()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			add("server.rate_limit_rps must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid (%s)", strings.Join(problems, "; "))
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
