// Package config holds the validated settings ripplekv's binaries run
// with. Values are populated from a *cli.Context built by
// github.com/urfave/cli/v2, which already layers command-line flags
// over RIPPLEKV_*-prefixed environment variables over defaults; this
// package only shapes the result into a typed, validated struct.
package config

import "fmt"

// Server defaults.
const (
	DefaultServerPort     = 9001
	DefaultMaxConnections = 1024
	DefaultIdleTimeoutSec = 60
	DefaultMaxBytes       = int64(1) << 30
	DefaultLogLevel       = "info"
)

// Client defaults.
const (
	DefaultServerAddress  = "localhost:9001"
	DefaultConnTimeoutSec = 5
	DefaultRetryAttempts  = 3
)

// ServerConfig holds ripplekv-server's runtime settings.
type ServerConfig struct {
	Port            int
	MaxConnections  int
	IdleTimeoutSecs int
	MaxBytes        int64
	LogLevel        string
}

// ClientConfig holds the settings shared by ripplekv's client-facing
// binaries (ripplekv-cli, ripplekv-bench). There is
// exactly one server address: clustering and multi-node routing are
// out of scope, so there is no node list or consistent-hash
// parameters to configure here.
type ClientConfig struct {
	Address         string
	ConnTimeoutSecs int
	RetryAttempts   int
}

// Validate checks that a ServerConfig can be used to start a listener.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max connections must be positive: %d", c.MaxConnections)
	}
	if c.IdleTimeoutSecs < 1 {
		return fmt.Errorf("idle timeout must be positive: %d", c.IdleTimeoutSecs)
	}
	if c.MaxBytes < 1 {
		return fmt.Errorf("max bytes must be positive: %d", c.MaxBytes)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// Validate checks that a ClientConfig describes a usable server
// address and sane timeouts.
func (c *ClientConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address must be set")
	}
	if c.ConnTimeoutSecs < 1 {
		return fmt.Errorf("connection timeout must be positive: %d", c.ConnTimeoutSecs)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be non-negative: %d", c.RetryAttempts)
	}
	return nil
}
