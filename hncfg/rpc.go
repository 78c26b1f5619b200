package hncfg

import (
	"errors"
	"net"
	"os"
)

// RPC holds the options for the connection to the node's JSON-RPC server,
// which is queried to tell whether the node is still processing blocks or
// transactions.
//
//nolint:lll
type RPC struct {
	Host       string `long:"host" description:"The node's RPC server host:port. Leave empty to skip the blockchain activity check when syncing."`
	User       string `long:"user" description:"Username for RPC connections."`
	Pass       string `long:"pass" default-mask:"-" description:"Password for RPC connections."`
	DisableTLS bool   `long:"notls" description:"Connect to the RPC server over plain HTTP."`
	CertPath   string `long:"rpccert" description:"File containing the RPC server's TLS certificate."`
}

// Enabled returns whether an RPC server is configured.
func (r *RPC) Enabled() bool {
	return r.Host != ""
}

// Certificates reads the configured TLS certificate, if any.
func (r *RPC) Certificates() ([]byte, error) {
	if r.DisableTLS || r.CertPath == "" {
		return nil, nil
	}

	return os.ReadFile(r.CertPath)
}

// Validate checks the RPC options.
func (r *RPC) Validate() error {
	if !r.Enabled() {
		return nil
	}

	if _, _, err := net.SplitHostPort(r.Host); err != nil {
		return errors.New("rpc.host must be of the form host:port")
	}
	if r.User == "" {
		return errors.New("rpc.user must be set when rpc.host is set")
	}
	if r.DisableTLS && r.CertPath != "" {
		return errors.New("rpc.rpccert cannot be used with rpc.notls")
	}

	return nil
}
