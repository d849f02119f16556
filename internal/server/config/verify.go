package config

import (
	"fmt"
	"net"
	"strconv"
)

// Verify checks the configuration for values the server cannot run with.
func (c *ServerConfig) Verify() error {
	if err := checkAddr("server.addr", c.Server.Addr); err != nil {
		return err
	}
	if c.Server.AcceptRate < 0 {
		return fmt.Errorf("server.accept_rate must not be negative, got %d", c.Server.AcceptRate)
	}

	if c.Engine.IdleTimeout <= 0 {
		return fmt.Errorf("engine.idle_timeout must be positive, got %s", c.Engine.IdleTimeout)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Engine.LargeZSetLen <= 0 {
		return fmt.Errorf("engine.large_zset_len must be positive, got %d", c.Engine.LargeZSetLen)
	}
	if c.Engine.TTLSweepBudget <= 0 {
		return fmt.Errorf("engine.ttl_sweep_budget must be positive, got %d", c.Engine.TTLSweepBudget)
	}
	if c.Engine.MaxResponseLen <= 0 {
		return fmt.Errorf("engine.max_response_len must be positive, got %d", c.Engine.MaxResponseLen)
	}

	if c.Telemetry.Metrics.Enabled {
		if err := checkAddr("telemetry.metrics.addr", c.Telemetry.Metrics.Addr); err != nil {
			return err
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	return nil
}

func checkAddr(field, addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("%s: invalid port %q", field, portStr)
	}
	return nil
}
