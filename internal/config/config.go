package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	Logging   LoggingConfig
	Detection DetectionConfig
	Metrics   MetricsConfig
	Graph     GraphConfig
	Export    ExportConfig
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool

	// File redirects logs from stderr to a size-rotated file when set.
	File        string
	MaxSizeMB   int
	MaxBackups  int
	CompressOld bool
}

// DetectionConfig tunes the anomaly engine. Degree and window size come from
// the batch feed, not from here.
type DetectionConfig struct {
	Ordering string // sequence|timestamp
	Sigmas   float64
}

// MetricsConfig controls the end-of-run metrics dump.
type MetricsConfig struct {
	TextfilePath string
}

// GraphConfig describes connectivity to the Neo4j instance used for exports.
// An empty URI disables the export.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ExportConfig governs the post-run graph export.
type ExportConfig struct {
	Workers int
}

const (
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultLogMaxSizeMB     = 100
	defaultLogMaxBackups    = 3
	defaultOrdering         = "sequence"
	defaultSigmas           = 3.0
	defaultGraphMaxSessions = 10
	defaultExportWorkers    = 4
)

// Load reads configuration from environment variables, applying defaults.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
			File:          os.Getenv("LOG_FILE"),
			MaxSizeMB:     parseIntWithDefault("LOG_MAX_SIZE_MB", defaultLogMaxSizeMB),
			MaxBackups:    parseIntWithDefault("LOG_MAX_BACKUPS", defaultLogMaxBackups),
			CompressOld:   parseBoolWithDefault("LOG_COMPRESS", false),
		},
		Detection: DetectionConfig{
			Ordering: strings.ToLower(valueOrDefault("DETECT_ORDERING", defaultOrdering)),
			Sigmas:   defaultSigmas,
		},
		Metrics: MetricsConfig{
			TextfilePath: os.Getenv("METRICS_TEXTFILE"),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Export: ExportConfig{
			Workers: parseIntWithDefault("EXPORT_WORKERS", defaultExportWorkers),
		},
	}

	if v := os.Getenv("DETECT_SIGMAS"); v != "" {
		sigmas, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DETECT_SIGMAS: %w", err)
		}
		cfg.Detection.Sigmas = sigmas
	}

	if cfg.Export.Workers <= 0 {
		cfg.Export.Workers = defaultExportWorkers
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the detection settings. Callers that override values after
// Load should validate again.
func (c Config) Validate() error {
	switch c.Detection.Ordering {
	case "sequence", "timestamp":
	default:
		return fmt.Errorf("invalid ordering %q: want sequence or timestamp", c.Detection.Ordering)
	}
	if !(c.Detection.Sigmas > 0) || math.IsInf(c.Detection.Sigmas, 0) {
		return fmt.Errorf("sigmas must be a positive number, got %v", c.Detection.Sigmas)
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}
