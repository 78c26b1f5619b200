package halfnode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/TuringBitChain/TBCNODE/monitoring"
	"github.com/TuringBitChain/TBCNODE/netloop"
	"github.com/TuringBitChain/TBCNODE/noderpc"
	"github.com/TuringBitChain/TBCNODE/peer"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/healthcheck"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNodeDisconnected is returned by Main when the node hung up
	// before a shutdown was requested.
	ErrNodeDisconnected = errors.New("node disconnected")

	// ErrHealthCheckFailed is returned by Main when a health check ran
	// out of attempts.
	ErrHealthCheckFailed = errors.New("health check failed")

	// errStartAborted is returned by a startup that was abandoned.
	errStartAborted = errors.New("startup aborted")
)

// sendable maps the --send option values to the messages they send.
var sendable = map[string]func() hnwire.Message{
	string(hnwire.CmdGetAddr): func() hnwire.Message {
		return &hnwire.MsgGetAddr{}
	},
	string(hnwire.CmdMemPool): func() hnwire.Message {
		return &hnwire.MsgMemPool{}
	},
	string(hnwire.CmdSendHeaders): func() hnwire.Message {
		return &hnwire.MsgSendHeaders{}
	},
}

// Main is the true entry point of the half-node. It connects to the node,
// completes the handshake, syncs with a ping and then stays connected until
// shutdownChan is closed, the node hangs up, or, with OneShot, returns right
// away. The message statistics are exported to Prometheus when enabled.
func Main(cfg *Config, shutdownChan <-chan struct{}) error {
	if cfg.LogWriter != nil {
		defer func() {
			_ = cfg.LogWriter.Close()
		}()
	}

	hnodLog.Infof("Half-node %v speaking protocol %d on %v",
		hnwire.MySubVersion, hnwire.MyVersion, cfg.ActiveNet)

	scheduler := netloop.New(netloop.Config{
		PollInterval: cfg.Sync.PollInterval,
		Yield:        cfg.Sync.Yield,
	})
	defer scheduler.Stop()

	sess := &session{
		cfg:       cfg,
		scheduler: scheduler,
	}

	cbCfg := &peer.CallbacksConfig{
		Scheduler:    scheduler,
		PollInterval: cfg.Sync.PollInterval,
		DeliverSleep: cfg.Sync.DeliverSleep,
	}
	if cfg.RPC.Enabled() {
		certs, err := cfg.RPC.Certificates()
		if err != nil {
			return fmt.Errorf("unable to read rpc certificate: %w",
				err)
		}

		rpc, err := noderpc.New(&noderpc.Config{
			Host:         cfg.RPC.Host,
			User:         cfg.RPC.User,
			Pass:         cfg.RPC.Pass,
			DisableTLS:   cfg.RPC.DisableTLS,
			Certificates: certs,
		})
		if err != nil {
			return err
		}
		defer rpc.Shutdown()

		cbCfg.RPC = rpc
		sess.rpc = fn.Some[peer.ActivityReporter](rpc)
	}

	callbacks, err := peer.NewNodeCallbacks(cbCfg)
	if err != nil {
		return err
	}
	sess.callbacks = callbacks

	connCfg := &peer.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		Net:               cfg.ActiveNet,
		Services:          cfg.Services,
		Callbacks:         callbacks,
		Scheduler:         scheduler,
		KeepAliveInterval: cfg.Sync.KeepAliveInterval,
		DialTimeout:       cfg.Sync.DialTimeout,
	}
	if cfg.UserAgent != "" {
		connCfg.UserAgent = fn.Some(cfg.UserAgent)
	}
	if _, err := peer.NewConn(connCfg); err != nil {
		return err
	}
	scheduler.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Prometheus.Enabled() {
		g.Go(func() error {
			return monitoring.ExportPrometheusMetrics(
				ctx, cfg.Prometheus,
				monitoring.NewMessageCollector(callbacks),
			)
		})
	}
	g.Go(func() error {
		// The exporter lives as long as the session.
		defer cancel()

		return sess.run(ctx, shutdownChan)
	})

	err = g.Wait()

	scheduler.Stop()
	if loopErr := scheduler.Err(); loopErr != nil {
		err = errors.Join(err, loopErr)
	}
	if err != nil {
		hnodLog.Errorf("Session failed: %v", err)
		return err
	}

	hnodLog.Infof("Shutdown complete")

	return nil
}

// session is one connection to the node, from the handshake until it is
// over.
type session struct {
	cfg       *Config
	callbacks *peer.NodeCallbacks
	scheduler *netloop.Scheduler
	rpc       fn.Option[peer.ActivityReporter]
}

// run drives the session: handshake, initial sync, the requested messages,
// then, unless OneShot, health checks until the session ends.
func (s *session) run(ctx context.Context,
	shutdownChan <-chan struct{}) error {

	// A shutdown request ends the startup waits early.
	quit := make(chan struct{})
	defer close(quit)

	startErr := make(chan error, 1)
	go func() {
		startErr <- s.start(quit)
	}()

	select {
	case err := <-startErr:
		if err != nil {
			return err
		}

	case <-shutdownChan:
		hnodLog.Infof("Received shutdown request during startup")
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}

	if s.cfg.OneShot {
		return nil
	}

	healthErr := make(chan error, 1)
	monitor := healthcheck.NewMonitor(&healthcheck.Config{
		Checks: s.healthChecks(),
		Shutdown: func(format string, params ...interface{}) {
			err := fmt.Errorf("%w: %v", ErrHealthCheckFailed,
				fmt.Sprintf(format, params...))

			select {
			case healthErr <- err:
			default:
			}
		},
	})
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("unable to start health monitor: %w", err)
	}
	defer func() {
		if err := monitor.Stop(); err != nil {
			hnodLog.Warnf("Unable to stop health monitor: %v", err)
		}
	}()

	select {
	case <-shutdownChan:
		hnodLog.Infof("Received shutdown request")
		return nil

	case <-s.scheduler.Done():
		return ErrNodeDisconnected

	case err := <-healthErr:
		return err

	case <-ctx.Done():
		return ctx.Err()
	}
}

// start waits for the handshake, syncs with the node and sends the
// requested messages. It gives up once quit is closed.
func (s *session) start(quit <-chan struct{}) error {
	cfg := s.cfg
	timeout := cfg.Sync.WaitTimeout

	err := s.callbacks.WaitUntil("verack", func(v peer.StateView) bool {
		return v.Count(hnwire.CmdVerAck) > 0 || isClosed(quit)
	}, timeout)
	switch {
	case err != nil:
		return fmt.Errorf("handshake with %v failed: %w", cfg.Host, err)

	case isClosed(quit):
		return errStartAborted
	}
	hnodLog.Infof("Handshake with %v complete", cfg.Host)

	if err := s.callbacks.SyncWithPing(timeout); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	for _, name := range cfg.Send {
		if isClosed(quit) {
			return errStartAborted
		}

		newMsg, ok := sendable[name]
		if !ok {
			return fmt.Errorf("unsupported message %q", name)
		}

		hnodLog.Debugf("Sending %v", name)
		err := s.callbacks.SendAndPing(newMsg(), timeout)
		if err != nil {
			return fmt.Errorf("sync after %v failed: %w", name, err)
		}
	}

	hnodLog.Infof("Synced with %v, received: %v", cfg.Host,
		newLogClosure(func() string {
			return summarize(s.callbacks.Snapshot())
		}))

	return nil
}

// isClosed reports whether c is closed.
func isClosed(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// healthChecks returns the enabled checks of the connected session.
func (s *session) healthChecks() []*healthcheck.Observation {
	var (
		checks []*healthcheck.Observation
		cfg    = s.cfg.HealthChecks
	)

	if cfg.Ping.Enabled() {
		checks = append(checks, healthcheck.NewObservation(
			"node ping",
			func() error {
				return s.callbacks.SyncWithPing(cfg.Ping.Timeout)
			},
			cfg.Ping.Interval, cfg.Ping.Timeout, cfg.Ping.Backoff,
			cfg.Ping.Attempts,
		))
	}

	s.rpc.WhenSome(func(rpc peer.ActivityReporter) {
		if !cfg.RPC.Enabled() {
			return
		}

		checks = append(checks, healthcheck.NewObservation(
			"node rpc",
			func() error {
				ctx, cancel := context.WithTimeout(
					context.Background(), cfg.RPC.Timeout,
				)
				defer cancel()

				_, err := rpc.BlockchainActivity(ctx)

				return err
			},
			cfg.RPC.Interval, cfg.RPC.Timeout, cfg.RPC.Backoff,
			cfg.RPC.Attempts,
		))
	})

	return checks
}

// summarize renders the message counts as "cmd=count" pairs sorted by
// command.
func summarize(stats map[hnwire.Command]peer.MessageStats) string {
	pairs := make([]string, 0, len(stats))
	for cmd, s := range stats {
		pairs = append(pairs, fmt.Sprintf("%v=%d", cmd, s.Count))
	}
	sort.Strings(pairs)

	return strings.Join(pairs, " ")
}
