package hncfg

import (
	"errors"
	"fmt"
	"time"
)

var (
	// MinHealthCheckInterval is the minimum interval we allow between
	// health checks.
	MinHealthCheckInterval = time.Second

	// MinHealthCheckTimeout is the minimum timeout we allow for health
	// check calls.
	MinHealthCheckTimeout = time.Millisecond * 100

	// MinHealthCheckBackoff is the minimum back off we allow between
	// health check retries.
	MinHealthCheckBackoff = time.Millisecond * 10
)

// HealthCheckConfig contains the configuration for the health checks run
// while a session stays connected.
//
//nolint:lll
type HealthCheckConfig struct {
	Ping *CheckConfig `group:"ping" namespace:"ping"`

	RPC *CheckConfig `group:"rpc" namespace:"rpc"`
}

// DefaultHealthCheck returns the default health check options.
func DefaultHealthCheck() *HealthCheckConfig {
	return &HealthCheckConfig{
		Ping: &CheckConfig{
			Interval: time.Minute,
			Attempts: 3,
			Timeout:  30 * time.Second,
			Backoff:  10 * time.Second,
		},
		RPC: &CheckConfig{
			Interval: time.Minute,
			Attempts: 3,
			Timeout:  10 * time.Second,
			Backoff:  10 * time.Second,
		},
	}
}

// Validate checks the values configured for our health checks.
func (h *HealthCheckConfig) Validate() error {
	if err := h.Ping.validate("ping"); err != nil {
		return err
	}

	return h.RPC.validate("rpc")
}

// CheckConfig contains the configuration of a single health check.
//
//nolint:lll
type CheckConfig struct {
	Interval time.Duration `long:"interval" description:"How often to run a health check."`

	Attempts int `long:"attempts" description:"The number of calls we will make for the check before failing. Set this value to 0 to disable a check."`

	Timeout time.Duration `long:"timeout" description:"The amount of time we allow the health check to take before failing due to timeout."`

	Backoff time.Duration `long:"backoff" description:"The amount of time to back-off between failed health checks."`
}

// Enabled returns whether the check runs at all.
func (c *CheckConfig) Enabled() bool {
	return c.Attempts > 0
}

// validate checks the values in a health check config entry if it is
// enabled.
func (c *CheckConfig) validate(name string) error {
	if c.Attempts < 0 {
		return errors.New("healthcheck attempts must not be negative")
	}
	if !c.Enabled() {
		return nil
	}

	if c.Backoff < MinHealthCheckBackoff {
		return fmt.Errorf("%v backoff: %v below minimum: %v", name,
			c.Backoff, MinHealthCheckBackoff)
	}
	if c.Timeout < MinHealthCheckTimeout {
		return fmt.Errorf("%v timeout: %v below minimum: %v", name,
			c.Timeout, MinHealthCheckTimeout)
	}
	if c.Interval < MinHealthCheckInterval {
		return fmt.Errorf("%v interval: %v below minimum: %v", name,
			c.Interval, MinHealthCheckInterval)
	}

	return nil
}
