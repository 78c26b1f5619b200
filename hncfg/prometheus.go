package hncfg

import (
	"fmt"
	"net"
)

// DefaultPrometheusListen is the default address of the Prometheus
// exporter.
const DefaultPrometheusListen = "127.0.0.1:8989"

// Prometheus configures the Prometheus exporter of the message statistics.
//
//nolint:lll
type Prometheus struct {
	// Enable indicates whether to export metrics to Prometheus.
	Enable bool `long:"enable" description:"Enable Prometheus exporting of the per command message statistics."`

	// Listen is the address the exporter serves /metrics on.
	Listen string `long:"listen" description:"The interface the Prometheus exporter should listen on."`
}

// DefaultPrometheus is the default configuration of the Prometheus
// exporter.
func DefaultPrometheus() Prometheus {
	return Prometheus{
		Listen: DefaultPrometheusListen,
	}
}

// Enabled returns whether or not Prometheus monitoring is enabled.
func (p *Prometheus) Enabled() bool {
	return p.Enable
}

// Validate checks the exporter options.
func (p *Prometheus) Validate() error {
	if !p.Enable {
		return nil
	}

	if _, _, err := net.SplitHostPort(p.Listen); err != nil {
		return fmt.Errorf("invalid prometheus.listen %q: %w", p.Listen,
			err)
	}

	return nil
}
