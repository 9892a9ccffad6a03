package domain

import "time"

// Config holds the complete Cardwise configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Mode determines which backing services are expected
	Mode Mode `json:"mode"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Insights settings
	Insights InsightsConfig `json:"insights"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Mode represents the deployment mode.
type Mode string

const (
	// ModeStandalone runs on SQLite + in-memory cache + channel bus.
	ModeStandalone Mode = "standalone"

	// ModeDistributed runs on PostgreSQL + Redis + NATS.
	ModeDistributed Mode = "distributed"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// InsightsConfig holds spending analysis settings.
type InsightsConfig struct {
	// BaselineRate is the assumed average reward percentage a user
	// currently earns, used when estimating tip upside. Deliberately
	// configurable rather than a buried constant.
	BaselineRate float64 `json:"baselineRate"`

	// AnalysisTTL is how long cached analyses stay fresh, in seconds.
	AnalysisTTL int `json:"analysisTtl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// DefaultConfig returns a default configuration for standalone mode.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Mode: ModeStandalone,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./cardwise.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Insights: InsightsConfig{
			BaselineRate: 1.5,
			AnalysisTTL:  900, // 15 minutes
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "cardwise",
		},
	}
}

// DistributedConfig returns a configuration for distributed mode.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeDistributed
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "cardwise",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
