package hncfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TuringBitChain/TBCNODE/hncfg"
	"github.com/stretchr/testify/require"
)

// TestValidateSync asserts that only positive timings pass validation.
func TestValidateSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*hncfg.Sync)
		valid  bool
	}{
		{
			name:   "defaults",
			modify: func(*hncfg.Sync) {},
			valid:  true,
		},
		{
			name: "deliver sleep and yield",
			modify: func(s *hncfg.Sync) {
				s.DeliverSleep = time.Second
				s.Yield = time.Millisecond
			},
			valid: true,
		},
		{
			name: "poll interval too small",
			modify: func(s *hncfg.Sync) {
				s.PollInterval = time.Microsecond
			},
		},
		{
			name: "zero wait timeout",
			modify: func(s *hncfg.Sync) {
				s.WaitTimeout = 0
			},
		},
		{
			name: "negative deliver sleep",
			modify: func(s *hncfg.Sync) {
				s.DeliverSleep = -time.Second
			},
		},
		{
			name: "zero keep alive",
			modify: func(s *hncfg.Sync) {
				s.KeepAliveInterval = 0
			},
		},
		{
			name: "zero dial timeout",
			modify: func(s *hncfg.Sync) {
				s.DialTimeout = 0
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg := hncfg.DefaultSync()
			test.modify(cfg)

			err := cfg.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

// TestValidateRPC asserts that an RPC server needs a host:port and a user,
// and that no config at all is valid.
func TestValidateRPC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   hncfg.RPC
		valid bool
	}{
		{
			name:  "disabled",
			valid: true,
		},
		{
			name: "valid",
			cfg: hncfg.RPC{
				Host: "127.0.0.1:18332",
				User: "user",
				Pass: "pass",
			},
			valid: true,
		},
		{
			name: "missing port",
			cfg: hncfg.RPC{
				Host: "127.0.0.1",
				User: "user",
			},
		},
		{
			name: "missing user",
			cfg: hncfg.RPC{
				Host: "127.0.0.1:18332",
			},
		},
		{
			name: "cert without tls",
			cfg: hncfg.RPC{
				Host:       "127.0.0.1:18332",
				User:       "user",
				DisableTLS: true,
				CertPath:   "rpc.cert",
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := test.cfg.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

// TestRPCCertificates asserts that the certificate is only read when TLS is
// in use.
func TestRPCCertificates(t *testing.T) {
	t.Parallel()

	certPath := filepath.Join(t.TempDir(), "rpc.cert")
	require.NoError(t, os.WriteFile(certPath, []byte("cert"), 0600))

	cfg := hncfg.RPC{Host: "127.0.0.1:18332", CertPath: certPath}
	certs, err := cfg.Certificates()
	require.NoError(t, err)
	require.Equal(t, []byte("cert"), certs)

	cfg.DisableTLS = true
	certs, err = cfg.Certificates()
	require.NoError(t, err)
	require.Nil(t, certs)

	cfg = hncfg.RPC{CertPath: filepath.Join(t.TempDir(), "missing")}
	_, err = cfg.Certificates()
	require.Error(t, err)
}

// TestValidatePrometheus asserts that the listen address is only checked
// when the exporter is enabled.
func TestValidatePrometheus(t *testing.T) {
	t.Parallel()

	cfg := hncfg.DefaultPrometheus()
	require.False(t, cfg.Enabled())
	require.NoError(t, cfg.Validate())

	cfg.Enable = true
	require.NoError(t, cfg.Validate())

	cfg.Listen = "nope"
	require.Error(t, cfg.Validate())

	cfg.Enable = false
	require.NoError(t, cfg.Validate())
}

// TestValidateHealthCheck asserts that disabled checks are not validated
// and that enabled ones respect the minimums.
func TestValidateHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*hncfg.HealthCheckConfig)
		valid  bool
	}{
		{
			name:   "defaults",
			modify: func(*hncfg.HealthCheckConfig) {},
			valid:  true,
		},
		{
			name: "disabled ignores values",
			modify: func(h *hncfg.HealthCheckConfig) {
				h.Ping = &hncfg.CheckConfig{}
			},
			valid: true,
		},
		{
			name: "negative attempts",
			modify: func(h *hncfg.HealthCheckConfig) {
				h.RPC.Attempts = -1
			},
		},
		{
			name: "interval too small",
			modify: func(h *hncfg.HealthCheckConfig) {
				h.Ping.Interval = time.Millisecond
			},
		},
		{
			name: "timeout too small",
			modify: func(h *hncfg.HealthCheckConfig) {
				h.RPC.Timeout = time.Millisecond
			},
		},
		{
			name: "backoff too small",
			modify: func(h *hncfg.HealthCheckConfig) {
				h.Ping.Backoff = 0
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg := hncfg.DefaultHealthCheck()
			test.modify(cfg)

			err := cfg.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
