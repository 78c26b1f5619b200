package hncfg

import (
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is the default interval at which waits check
	// their condition and the scheduler polls idle connections.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultWaitTimeout is the default time a wait is given before it
	// fails.
	DefaultWaitTimeout = 60 * time.Second

	// DefaultKeepAliveInterval is the default interval of outbound silence
	// after which a keep-alive ping is sent.
	DefaultKeepAliveInterval = 30 * time.Minute

	// DefaultDialTimeout is the default time given to the TCP dial.
	DefaultDialTimeout = 10 * time.Second

	// minPollInterval is the smallest poll interval accepted.
	minPollInterval = time.Millisecond
)

// Sync holds the timing options of the network loop and of the waits used
// to synchronize with the node.
//
//nolint:lll
type Sync struct {
	PollInterval      time.Duration `long:"pollinterval" description:"Interval at which waits check their condition and idle connections are polled."`
	WaitTimeout       time.Duration `long:"waittimeout" description:"Time given to the handshake and to each ping sync before failing."`
	DeliverSleep      time.Duration `long:"deliversleep" description:"Time to sleep before delivering each received message. Used to simulate a slow peer."`
	Yield             time.Duration `long:"yield" description:"Time the network loop pauses between iterations to let new connections register."`
	KeepAliveInterval time.Duration `long:"keepalive" description:"Outbound silence after which a keep-alive ping is sent."`
	DialTimeout       time.Duration `long:"dialtimeout" description:"Time given to the TCP dial to the node."`
}

// DefaultSync returns the default sync options.
func DefaultSync() *Sync {
	return &Sync{
		PollInterval:      DefaultPollInterval,
		WaitTimeout:       DefaultWaitTimeout,
		KeepAliveInterval: DefaultKeepAliveInterval,
		DialTimeout:       DefaultDialTimeout,
	}
}

// Validate checks the sync options.
func (s *Sync) Validate() error {
	if s.PollInterval < minPollInterval {
		return fmt.Errorf("sync.pollinterval must be at least %v",
			minPollInterval)
	}
	if s.WaitTimeout <= 0 {
		return fmt.Errorf("sync.waittimeout must be positive")
	}
	if s.DeliverSleep < 0 || s.Yield < 0 {
		return fmt.Errorf("sync.deliversleep and sync.yield must not " +
			"be negative")
	}
	if s.KeepAliveInterval <= 0 {
		return fmt.Errorf("sync.keepalive must be positive")
	}
	if s.DialTimeout <= 0 {
		return fmt.Errorf("sync.dialtimeout must be positive")
	}

	return nil
}
