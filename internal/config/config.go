// ABOUTME: Configuration loading and parsing for tendril-collect
// ABOUTME: Merges environment variables with an optional YAML file; validates before use

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for fields the environment and config file leave unset.
const (
	DefaultAPIBase        = "http://localhost:3000"
	DefaultWorkers        = 5
	DefaultScriptTimeout  = 30 * time.Second
	DefaultRequestTimeout = 45 * time.Second
	DefaultFlushEvery     = 10
	DefaultCheckpointPath = ".collected-assets.json"
	DefaultHistoryPath    = ".collect-history.db"
)

// Config holds the complete collector configuration. It is built once at
// startup and passed into constructors; nothing reads the environment
// after Load returns.
type Config struct {
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Collect      CollectConfig      `yaml:"collect"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ControlPlaneConfig holds the Tendril API endpoint and authentication.
type ControlPlaneConfig struct {
	APIBase     string `yaml:"api_base"`
	TokenSecret string `yaml:"token_secret"`
	Identity    string `yaml:"identity"`

	ScriptTimeout  time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ScriptTimeoutRaw  string `yaml:"script_timeout"`
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// CollectConfig holds batch tuning and file paths.
type CollectConfig struct {
	Workers        int      `yaml:"workers"`
	FlushEvery     int      `yaml:"flush_every"`
	CheckpointPath string   `yaml:"checkpoint_path"`
	HistoryPath    string   `yaml:"history_path"`
	Exclude        []string `yaml:"exclude"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load builds the configuration. If path is non-empty the YAML file is
// read first (with ${VAR} expansion), then environment variables
// override, then defaults fill the gaps. Returns a validated Config.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides file values with the legacy environment variables
// the collector has always honored.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TENDRIL_API"); v != "" {
		cfg.ControlPlane.APIBase = v
	}
	if v := os.Getenv("TENDRIL_TOKEN_SECRET"); v != "" {
		cfg.ControlPlane.TokenSecret = v
	}
	if v := os.Getenv("TENDRIL_COLLECT_EXCLUDE"); v != "" {
		cfg.Collect.Exclude = splitHostList(v)
	}
	if v := os.Getenv("TENDRIL_COLLECT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collect.Workers = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ControlPlane.APIBase == "" {
		cfg.ControlPlane.APIBase = DefaultAPIBase
	}
	if cfg.ControlPlane.Identity == "" {
		cfg.ControlPlane.Identity = "tendril-collect"
	}
	if cfg.ControlPlane.ScriptTimeout == 0 {
		cfg.ControlPlane.ScriptTimeout = DefaultScriptTimeout
	}
	if cfg.ControlPlane.RequestTimeout == 0 {
		cfg.ControlPlane.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Collect.Workers == 0 {
		cfg.Collect.Workers = DefaultWorkers
	}
	if cfg.Collect.FlushEvery == 0 {
		cfg.Collect.FlushEvery = DefaultFlushEvery
	}
	if cfg.Collect.CheckpointPath == "" {
		cfg.Collect.CheckpointPath = DefaultCheckpointPath
	}
	if cfg.Collect.HistoryPath == "" {
		cfg.Collect.HistoryPath = DefaultHistoryPath
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// splitHostList parses a comma-separated hostname list, trimming blanks.
func splitHostList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if h := strings.TrimSpace(part); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Validate checks that all configuration fields are usable.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.ControlPlane.APIBase, "http://") &&
		!strings.HasPrefix(c.ControlPlane.APIBase, "https://") {
		return fmt.Errorf("control_plane.api_base must be an http(s) URL, got %q", c.ControlPlane.APIBase)
	}

	if c.Collect.Workers < 1 {
		return fmt.Errorf("collect.workers must be at least 1, got %d", c.Collect.Workers)
	}
	if c.Collect.FlushEvery < 1 {
		return fmt.Errorf("collect.flush_every must be at least 1, got %d", c.Collect.FlushEvery)
	}

	// The HTTP deadline must outlast the script timeout sent to the agent,
	// otherwise a slow-but-alive agent is indistinguishable from an
	// unreachable one.
	if c.ControlPlane.RequestTimeout <= c.ControlPlane.ScriptTimeout {
		return fmt.Errorf("control_plane.request_timeout (%v) must exceed script_timeout (%v)",
			c.ControlPlane.RequestTimeout, c.ControlPlane.ScriptTimeout)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.ControlPlane.ScriptTimeoutRaw != "" {
		cfg.ControlPlane.ScriptTimeout, err = time.ParseDuration(cfg.ControlPlane.ScriptTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing script_timeout %q: %w", cfg.ControlPlane.ScriptTimeoutRaw, err)
		}
	}

	if cfg.ControlPlane.RequestTimeoutRaw != "" {
		cfg.ControlPlane.RequestTimeout, err = time.ParseDuration(cfg.ControlPlane.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.ControlPlane.RequestTimeoutRaw, err)
		}
	}

	return nil
}
