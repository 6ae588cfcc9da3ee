package config

import (
	"fmt"
	"os"

	"fleet-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills the optional knobs most deployments never touch.
func (c *Config) applyDefaults() {
	if c.Store.OpTimeoutMs <= 0 {
		c.Store.OpTimeoutMs = 500
	}
	if c.Queue.PollTimeoutMs <= 0 {
		c.Queue.PollTimeoutMs = 2000
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 1024
	}
	if c.Queue.Key == "" {
		c.Queue.Key = "confirmations"
	}
	if c.Ingest.TickTTLSeconds <= 0 {
		c.Ingest.TickTTLSeconds = 30
	}
	if c.Ingest.HistoryDepth <= 0 {
		c.Ingest.HistoryDepth = 50
	}
	if c.Ingest.TargetBatchMs <= 0 {
		c.Ingest.TargetBatchMs = 5.0
	}
	if c.Registry.HeartbeatTimeoutSeconds <= 0 {
		c.Registry.HeartbeatTimeoutSeconds = 60
	}
	if c.Registry.SweepIntervalSeconds <= 0 {
		c.Registry.SweepIntervalSeconds = 30
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = 90
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Store configuration
	switch c.Store.Backend {
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty for redis store backend")
		}
	case "memory":
		// Nothing to check
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	// Validate Queue configuration
	if c.Queue.Backend != "redis" && c.Queue.Backend != "memory" {
		return fmt.Errorf("unsupported queue backend: %s", c.Queue.Backend)
	}
	if c.Queue.Backend == "redis" && c.Store.RedisAddr == "" {
		return fmt.Errorf("redis address cannot be empty for redis queue backend")
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Ingest configuration
	if c.Ingest.LiveSourceTag == "" {
		return fmt.Errorf("live source tag cannot be empty")
	}
	if len(c.Ingest.Instruments) == 0 {
		return fmt.Errorf("at least one supported instrument must be configured")
	}
	for _, inst := range c.Ingest.Instruments {
		if _, ok := c.Ingest.SpreadBaseline[inst]; !ok {
			return fmt.Errorf("instrument '%s' has no spread baseline", inst)
		}
	}

	// Validate Source profiles
	for i, src := range c.Sources {
		if src.SourceName == "" {
			return fmt.Errorf("source profile %d must have a name", i)
		}
		switch src.Type {
		case models.SourceTypeDemo, models.SourceTypeRetail, models.SourceTypeECN:
			// ok
		default:
			return fmt.Errorf("source profile '%s' has unsupported type: %s", src.SourceName, src.Type)
		}
		if src.SpreadMultiplier <= 0 {
			return fmt.Errorf("source profile '%s' must have a positive spread multiplier", src.SourceName)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
