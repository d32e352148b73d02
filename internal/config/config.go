// Package config provides configuration loading and validation for
// thermite, grounded on the teacher's internal/config/config.go
// Defaults()/Load()/Validate() triplet.
//
// Configuration file: optional, given with cmd/thermite's --config flag
// (for example /etc/thermite/config.yaml); file values win over these
// defaults. cmd/thermite applies the observability, operator and history
// sections. The load section is parsed and validated but not applied:
// run parameters come from the CLI flags alone.
//
// Validation: invalid config on startup is fatal (the process refuses to
// start); there is no hot-reload path — thermite's engine is a bounded
// run, not a long-lived daemon, so SIGHUP is not wired to config reload.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the Makefile via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure. All fields have defaults;
// see Defaults().
type Config struct {
	SchemaVersion string `yaml:"schema_version"`

	Load          LoadConfig          `yaml:"load"`
	Observability ObservabilityConfig `yaml:"observability"`
	Operator      OperatorConfig      `yaml:"operator"`
	History       HistoryConfig       `yaml:"history"`
}

// LoadConfig mirrors the CLI surface (spec.md §6). Its fields are
// validated, but cmd/thermite does not read them; the matching flags
// decide the run parameters.
type LoadConfig struct {
	TimeoutSeconds   int   `yaml:"timeout_seconds"`
	LoadPercent      int   `yaml:"load_percent"`
	PeriodMicros     int   `yaml:"period_micros"`
	Threads          int   `yaml:"threads"`
	Bind             []int `yaml:"bind"`
	FunctionID       int   `yaml:"function_id"`
	AllowUnavailable bool  `yaml:"allow_unavailable"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// OperatorConfig holds the runtime control-socket parameters
// (internal/operator).
type OperatorConfig struct {
	SocketPath         string        `yaml:"socket_path"`
	Enabled            bool          `yaml:"enabled"`
	SwitchRateCapacity int           `yaml:"switch_rate_capacity"`
	SwitchRateRefill   time.Duration `yaml:"switch_rate_refill"`
}

// HistoryConfig holds the optional bbolt-backed run ledger parameters
// (internal/history). Off by default.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionRuns int    `yaml:"retention_runs"`
}

// Defaults returns a Config populated with every default value.
func Defaults() Config {
	return Config{
		SchemaVersion: "1",
		Load: LoadConfig{
			TimeoutSeconds:   0,
			LoadPercent:      100,
			PeriodMicros:     0,
			Threads:          0,
			FunctionID:       0,
			AllowUnavailable: false,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Operator: OperatorConfig{
			Enabled:            true,
			SocketPath:         "/run/thermite/operator.sock",
			SwitchRateCapacity: 5,
			SwitchRateRefill:   10 * time.Second,
		},
		History: HistoryConfig{
			Enabled:       false,
			DBPath:        "/var/lib/thermite/thermite.db",
			RetentionRuns: 100,
		},
	}
}

// Load reads and validates a config file from path, merging it over
// Defaults(). A missing file is not an error at the CLI layer (the flag
// defaults to empty and the caller should treat ENOENT as "use defaults");
// Load itself always requires the file to exist, since it is only called
// when a path was explicitly given.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg for correctness, accumulating every violation found
// rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.Load.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Sprintf("load.timeout_seconds must be >= 0, got %d", cfg.Load.TimeoutSeconds))
	}
	if cfg.Load.LoadPercent < 0 || cfg.Load.LoadPercent > 100 {
		errs = append(errs, fmt.Sprintf("load.load_percent must be in [0, 100], got %d", cfg.Load.LoadPercent))
	}
	if cfg.Load.PeriodMicros < 0 {
		errs = append(errs, fmt.Sprintf("load.period_micros must be >= 0, got %d", cfg.Load.PeriodMicros))
	}
	if cfg.Load.Threads < 0 {
		errs = append(errs, fmt.Sprintf("load.threads must be >= 0 (0 = auto), got %d", cfg.Load.Threads))
	}
	if cfg.Load.FunctionID < 0 {
		errs = append(errs, fmt.Sprintf("load.function_id must be >= 0, got %d", cfg.Load.FunctionID))
	}
	if cfg.Observability.LogLevel != "" && !validLogLevel(cfg.Observability.LogLevel) {
		errs = append(errs, fmt.Sprintf("observability.log_level must be one of debug/info/warn/error, got %q", cfg.Observability.LogLevel))
	}
	if cfg.Observability.LogFormat != "" && cfg.Observability.LogFormat != "json" && cfg.Observability.LogFormat != "console" {
		errs = append(errs, fmt.Sprintf("observability.log_format must be json or console, got %q", cfg.Observability.LogFormat))
	}
	if cfg.Operator.Enabled && cfg.Operator.SocketPath == "" {
		errs = append(errs, "operator.socket_path must not be empty when operator.enabled is true")
	}
	if cfg.Operator.SwitchRateCapacity < 0 {
		errs = append(errs, fmt.Sprintf("operator.switch_rate_capacity must be >= 0, got %d", cfg.Operator.SwitchRateCapacity))
	}
	if cfg.History.Enabled && cfg.History.DBPath == "" {
		errs = append(errs, "history.db_path must not be empty when history.enabled is true")
	}
	if cfg.History.RetentionRuns < 0 {
		errs = append(errs, fmt.Sprintf("history.retention_runs must be >= 0, got %d", cfg.History.RetentionRuns))
	}

	if len(errs) > 0 {
		msg := "config validation errors:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
