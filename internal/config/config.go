package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Arbiter/internal/engine"
	"github.com/MikeSquared-Agency/Arbiter/internal/scoring"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Engine   EngineConfig   `yaml:"engine"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type EngineConfig struct {
	MatchThreshold       float64 `yaml:"match_threshold"`
	ConfidenceThreshold  float64 `yaml:"confidence_threshold"`
	BatchSize            int     `yaml:"batch_size"`
	Workers              int     `yaml:"workers"`
	JournalCapacity      int     `yaml:"journal_capacity"`
	CacheResetIntervalMs int     `yaml:"cache_reset_interval_ms"`
}

type ScoringConfig struct {
	Weights scoring.WeightSet `yaml:"weights"`
	Curves  scoring.Curves    `yaml:"curves"`
}

type SweepConfig struct {
	Enabled    bool   `yaml:"enabled"`
	IntervalMs int    `yaml:"interval_ms"`
	Strategy   string `yaml:"strategy"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalMs) * time.Millisecond
}

func (c *Config) CacheResetInterval() time.Duration {
	return time.Duration(c.Engine.CacheResetIntervalMs) * time.Millisecond
}

// EngineOptions converts the engine and scoring sections into engine.Options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		MatchThreshold:      c.Engine.MatchThreshold,
		ConfidenceThreshold: c.Engine.ConfidenceThreshold,
		Weights:             c.Scoring.Weights,
		Curves:              c.Scoring.Curves,
		BatchSize:           c.Engine.BatchSize,
		Workers:             c.Engine.Workers,
		JournalCapacity:     c.Engine.JournalCapacity,
	}
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Engine: EngineConfig{
			MatchThreshold:       engine.DefaultMatchThreshold,
			ConfidenceThreshold:  engine.DefaultConfidenceThreshold,
			BatchSize:            engine.DefaultBatchSize,
			Workers:              engine.DefaultWorkers,
			JournalCapacity:      engine.DefaultJournalCapacity,
			CacheResetIntervalMs: 3600000,
		},
		Scoring: ScoringConfig{
			Weights: scoring.DefaultWeights(),
			Curves:  scoring.DefaultCurves(),
		},
		Sweep: SweepConfig{
			Enabled:    true,
			IntervalMs: 60000,
			Strategy:   engine.BestFit.String(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if _, err := engine.ParseStrategy(cfg.Sweep.Strategy); err != nil {
		return nil, fmt.Errorf("sweep strategy: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARBITER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("ARBITER_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("ARBITER_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("ARBITER_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("ARBITER_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("ARBITER_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.MatchThreshold = f
		}
	}
	if v := os.Getenv("ARBITER_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("ARBITER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Workers = n
		}
	}
	if v := os.Getenv("ARBITER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.BatchSize = n
		}
	}
	if v := os.Getenv("ARBITER_SWEEP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sweep.Enabled = b
		}
	}
	if v := os.Getenv("ARBITER_SWEEP_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sweep.IntervalMs = n
		}
	}
	if v := os.Getenv("ARBITER_SWEEP_STRATEGY"); v != "" {
		cfg.Sweep.Strategy = v
	}
	if v := os.Getenv("ARBITER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARBITER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
