package config

import "time"

// ServerConfig is the root configuration for lattice-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Engine    EngineSection    `koanf:"engine"`
	Telemetry TelemetrySection `koanf:"telemetry"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures the listener.
type ServerSection struct {
	// Addr is the TCP listen address; the socket binds the wildcard
	// address on Addr's port.
	Addr string `koanf:"addr"`

	// AcceptRate caps accepted connections per second (0 = unlimited).
	AcceptRate int `koanf:"accept_rate"`
}

// EngineSection configures the event-loop core.
type EngineSection struct {
	// IdleTimeout closes connections with no traffic for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// Workers is the worker-pool size for asynchronous destruction.
	Workers int `koanf:"workers"`

	// LargeZSetLen is the sorted-set size at which destruction moves to
	// the worker pool.
	LargeZSetLen int `koanf:"large_zset_len"`

	// TTLSweepBudget caps TTL expirations processed per tick.
	TTLSweepBudget int `koanf:"ttl_sweep_budget"`

	// MaxResponseLen is the per-connection outgoing bound in bytes.
	MaxResponseLen int `koanf:"max_response_len"`
}

// TelemetrySection configures observability.
type TelemetrySection struct {
	Metrics MetricsConfig `koanf:"metrics"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
