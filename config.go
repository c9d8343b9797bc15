package brainmappy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/schlegelp/brainmappy/internal/logger"
	meshuc "github.com/schlegelp/brainmappy/internal/usecase/mesh"
	seguc "github.com/schlegelp/brainmappy/internal/usecase/segmentation"
)

// Config holds file-based client configuration. All fields are optional;
// zero values fall back to the client defaults.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds service endpoint settings.
type APIConfig struct {
	BaseURL     string `yaml:"base_url"`
	Volume      string `yaml:"volume"`
	ChangeStack string `yaml:"change_stack"`
}

// FetchConfig holds batching and concurrency settings.
type FetchConfig struct {
	MeshName          string `yaml:"mesh_name"`
	MeshBatchSize     int    `yaml:"mesh_batch_size"`     // max 100
	LocationChunkSize int    `yaml:"location_chunk_size"` // max 200
	MaxRetries        int    `yaml:"max_retries"`
	Workers           int    `yaml:"workers"`
}

// LoggingConfig holds logging settings. An empty Env disables logging.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, dev, local
	Level string `yaml:"level"` // debug, info, warn, error
}

// envVarPattern matches ${VAR} placeholders in config files.
var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// LoadConfig reads, expands, defaults, and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars substitutes ${VAR} placeholders with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Fetch.MeshName == "" {
		c.Fetch.MeshName = DefaultMeshName
	}
	if c.Fetch.MeshBatchSize <= 0 {
		c.Fetch.MeshBatchSize = meshuc.MaxBatchSize
	}
	if c.Fetch.LocationChunkSize <= 0 {
		c.Fetch.LocationChunkSize = seguc.MaxChunkSize
	}
	if c.Fetch.MaxRetries <= 0 {
		c.Fetch.MaxRetries = seguc.DefaultMaxAttempts
	}
	if c.Fetch.Workers <= 0 {
		c.Fetch.Workers = 1
	}
}

// Validate rejects settings the service would refuse.
func (c *Config) Validate() error {
	if c.Fetch.MeshBatchSize > meshuc.MaxBatchSize {
		return fmt.Errorf("fetch.mesh_batch_size must be at most %d, got %d",
			meshuc.MaxBatchSize, c.Fetch.MeshBatchSize)
	}
	if c.Fetch.LocationChunkSize > seguc.MaxChunkSize {
		return fmt.Errorf("fetch.location_chunk_size must be at most %d, got %d",
			seguc.MaxChunkSize, c.Fetch.LocationChunkSize)
	}
	switch c.Logging.Env {
	case "", "prod", "dev", "local":
	default:
		return fmt.Errorf("logging.env must be prod, dev, or local, got %q", c.Logging.Env)
	}
	return nil
}

// Options converts the config into client options, building a logger when
// logging is enabled.
func (c Config) Options() ([]Option, error) {
	var opts []Option
	if c.API.BaseURL != "" {
		opts = append(opts, WithBaseURL(c.API.BaseURL))
	}
	if c.API.Volume != "" {
		opts = append(opts, WithVolume(c.API.Volume))
	}
	if c.API.ChangeStack != "" {
		opts = append(opts, WithChangeStack(c.API.ChangeStack))
	}
	if c.Fetch.MeshName != "" {
		opts = append(opts, WithMeshName(c.Fetch.MeshName))
	}
	opts = append(opts,
		WithMeshBatchSize(c.Fetch.MeshBatchSize),
		WithLocationChunkSize(c.Fetch.LocationChunkSize),
		WithMaxRetries(c.Fetch.MaxRetries),
		WithConcurrency(c.Fetch.Workers),
	)
	if c.Logging.Env != "" {
		l, err := logger.NewLogger(c.Logging.Env, c.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("configure logging: %w", err)
		}
		opts = append(opts, WithLogger(l))
	}
	return opts, nil
}
