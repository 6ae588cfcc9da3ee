package models

// MConfig Structure
type MConfig struct {
	Name     string           `yaml:"name"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	LogLevel string           `yaml:"log_level"`
	Store    MStoreConfig     `yaml:"store"`
	Queue    MQueueConfig     `yaml:"queue"`
	Storage  MStorageConfig   `yaml:"storage"`
	Ingest   MIngestConfig    `yaml:"ingest"`
	Registry MRegistryConfig  `yaml:"registry"`
	Sources  []MSourceProfile `yaml:"sources"`
}

type MStoreConfig struct {
	Backend     string `yaml:"backend"` // "redis" or "memory"
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPass   string `yaml:"redis_password"`
	OpTimeoutMs int    `yaml:"op_timeout_ms"`
}

type MQueueConfig struct {
	Backend       string `yaml:"backend"` // "redis" or "memory"
	Key           string `yaml:"key"`     // redis list key carrying confirmation events
	PollTimeoutMs int    `yaml:"poll_timeout_ms"`
	BufferSize    int    `yaml:"buffer_size"` // memory backend only
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MIngestConfig struct {
	LiveSourceTag  string             `yaml:"live_source_tag"`
	Instruments    []string           `yaml:"instruments"`
	SpreadBaseline map[string]float64 `yaml:"spread_baselines"` // instrument -> baseline spread (points)
	TickTTLSeconds int                `yaml:"tick_ttl_seconds"`
	HistoryDepth   int                `yaml:"history_depth"`
	TargetBatchMs  float64            `yaml:"target_batch_ms"`
}

type MRegistryConfig struct {
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`
	SweepIntervalSeconds    int `yaml:"sweep_interval_seconds"`
}
