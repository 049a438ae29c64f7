// Package config loads service configuration from the environment and an
// optional YAML file. Environment variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/detect"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"server"`
	Graph   GraphConfig   `mapstructure:"graph"`
	Logging LoggingConfig `mapstructure:"log"`
	Analyze AnalyzeConfig `mapstructure:"analyze"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Detect  detect.Config `mapstructure:"detect"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	AllowedOriginsCSV string        `mapstructure:"allowed_origins"`
}

// GraphConfig describes connectivity to the Neo4j database.
type GraphConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	// ExportEnabled publishes every analysis into the graph.
	ExportEnabled bool `mapstructure:"export_enabled"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"` // text|json
	Colored       bool   `mapstructure:"color"`
	IncludeCaller bool   `mapstructure:"include_caller"`
	// File enables rotated file output in addition to stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AnalyzeConfig bounds the upload-and-analyze endpoint.
type AnalyzeConfig struct {
	MaxUploadMB int           `mapstructure:"max_upload_mb"`
	RatePerMin  int           `mapstructure:"rate_per_min"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// KafkaConfig enables the report publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MaxUploadBytes converts the upload limit to bytes.
func (c AnalyzeConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Enabled reports whether a Kafka publisher should be created.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 60 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultMaxUploadMB      = 50
	defaultRatePerMin       = 30
	defaultAnalyzeTimeout   = 45 * time.Second
	defaultKafkaTopic       = "aml.analysis"
)

// Load reads configuration from the environment, preceded by the YAML file
// named by CONFIG_FILE when set.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile reads configuration from path (skipped when empty) and the
// environment, applies defaults and validates the result.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitCSV(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.idle_timeout", defaultIdleTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.metrics_enabled", false)
	v.SetDefault("server.allowed_origins", "")

	v.SetDefault("graph.uri", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.username", "")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.max_connections", defaultGraphMaxSessions)
	v.SetDefault("graph.export_enabled", false)

	v.SetDefault("log.level", defaultLoggingLevel)
	v.SetDefault("log.format", defaultLoggingFormat)
	v.SetDefault("log.color", false)
	v.SetDefault("log.include_caller", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("analyze.max_upload_mb", defaultMaxUploadMB)
	v.SetDefault("analyze.rate_per_min", defaultRatePerMin)
	v.SetDefault("analyze.timeout", defaultAnalyzeTimeout)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", defaultKafkaTopic)

	d := detect.DefaultConfig()
	v.SetDefault("detect.min_ring_size", d.MinRingSize)
	v.SetDefault("detect.max_ring_size", d.MaxRingSize)
	v.SetDefault("detect.cycle_window", d.CycleWindow)
	v.SetDefault("detect.min_relative_amount", d.MinRelativeAmount)
	v.SetDefault("detect.amount_preservation", d.AmountPreservationTol)
	v.SetDefault("detect.max_dfs_expansions", d.MaxDFSExpansions)
	v.SetDefault("detect.fan_window", d.FanWindow)
	v.SetDefault("detect.fan_out_lag", d.FanOutLag)
	v.SetDefault("detect.min_tx_per_hub", d.MinTxPerHub)
	v.SetDefault("detect.min_unique_fan", d.MinUniqueFan)
	v.SetDefault("detect.high_volume_degree", d.HighVolumeDegree)
	v.SetDefault("detect.hub_lifespan", d.HubLifespan)
	v.SetDefault("detect.batch_min_outgoing", d.BatchMinOutgoing)
	v.SetDefault("detect.batch_max_span", d.BatchMaxSpan)
	v.SetDefault("detect.batch_amount_spread", d.BatchAmountSpread)
	v.SetDefault("detect.shell_max_tx", d.ShellMaxTransactions)
	v.SetDefault("detect.shell_min_chain", d.ShellMinChainLength)
	v.SetDefault("detect.shell_min_ratio", d.ShellMinAmountRatio)
	v.SetDefault("detect.shell_risk", d.ShellRiskScore)
}

// Validate rejects values the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.HTTP.Port))
	}
	for name, d := range map[string]time.Duration{
		"SERVER_READ_TIMEOUT":     c.HTTP.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":    c.HTTP.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": c.HTTP.ShutdownTimeout,
		"ANALYZE_TIMEOUT":         c.Analyze.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Analyze.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("ANALYZE_MAX_UPLOAD_MB must be positive"))
	}
	if c.Analyze.RatePerMin < 0 {
		errs = append(errs, errors.New("ANALYZE_RATE_PER_MIN must not be negative"))
	}
	if c.Graph.ExportEnabled && c.Graph.URI == "" {
		errs = append(errs, errors.New("GRAPH_EXPORT_ENABLED requires GRAPH_URI"))
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if err := c.Detect.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection thresholds: %w", err))
	}
	return errors.Join(errs...)
}

func splitCSV(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
