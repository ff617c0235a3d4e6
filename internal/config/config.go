package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// InputConfig configures how transaction files are read.
type InputConfig struct {
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	SheetIndex int    `yaml:"sheet_index" mapstructure:"sheet_index"`
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
}

// ReportConfig configures the report writer.
type ReportConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScorerConfig configures a scoring pass. Rule weights are fixed and not
// configurable.
type ScorerConfig struct {
	Threshold     float64 `yaml:"threshold" mapstructure:"threshold"`
	Anomaly       bool    `yaml:"anomaly" mapstructure:"anomaly"`
	Clamp         bool    `yaml:"clamp" mapstructure:"clamp"`
	MissingPolicy string  `yaml:"missing_policy" mapstructure:"missing_policy"`
	Workers       int     `yaml:"workers" mapstructure:"workers"`
}

// MetricsConfig configures the prometheus textfile written after a run.
type MetricsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// MonitoringConfig holds thresholds for alerts raised over recent runs.
type MonitoringConfig struct {
	LookbackHours       int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	MinRuns             int     `yaml:"min_runs" mapstructure:"min_runs"`
	FlagRateThreshold   float64 `yaml:"flag_rate_threshold" mapstructure:"flag_rate_threshold"`
	RejectRateThreshold float64 `yaml:"reject_rate_threshold" mapstructure:"reject_rate_threshold"`
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
	v.SetEnvPrefix("FRAUDLEAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fraudleak.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("input.sheet_index", 0)
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("report.output", "fraudleak_output.xlsx")
	v.SetDefault("report.format", "")
	v.SetDefault("scorer.threshold", 0.7)
	v.SetDefault("scorer.anomaly", false)
	v.SetDefault("scorer.clamp", false)
	v.SetDefault("scorer.missing_policy", "abort")
	v.SetDefault("scorer.workers", 1)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.min_runs", 1)
	v.SetDefault("monitoring.flag_rate_threshold", 0.25)
	v.SetDefault("monitoring.reject_rate_threshold", 0.05)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate checks the settings a command depends on.
func (c *Config) Validate(command string) error {
	var errs []string

	switch command {
	case "score":
		if c.Scorer.MissingPolicy != "abort" && c.Scorer.MissingPolicy != "skip" {
			errs = append(errs, "scorer.missing_policy must be abort or skip")
		}
		if c.Scorer.Threshold < 0 {
			errs = append(errs, "scorer.threshold must be >= 0")
		}
		if c.Scorer.Workers < 1 || c.Scorer.Workers > 64 {
			errs = append(errs, "scorer.workers must be between 1 and 64")
		}
		if len([]rune(c.Input.Delimiter)) != 1 {
			errs = append(errs, "input.delimiter must be a single character")
		}
	case "runs":
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Monitoring.LookbackHours < 1 {
			errs = append(errs, "monitoring.lookback_hours must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", command))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s: %s", command, strings.Join(errs, "; "))
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
