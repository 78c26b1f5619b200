package netloop

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultPollInterval is the time one iteration spends multiplexing
	// the open connections.
	DefaultPollInterval = 100 * time.Millisecond

	// minPumpBudget is the smallest slice of an iteration a single
	// connection is pumped for.
	minPumpBudget = time.Millisecond
)

// ErrSchedulerStopped is returned when registering with a scheduler whose
// loop already exited.
var ErrSchedulerStopped = errors.New("network loop stopped")

// Dispatcher is a connection driven by the scheduler. Pump is only ever
// called from the scheduler's goroutine, and only the scheduler performs
// socket I/O through it.
type Dispatcher interface {
	// DisconnectRequested reports whether the connection asked to be
	// closed at the start of the next iteration.
	DisconnectRequested() bool

	// Pump performs the pending socket I/O of the connection for at most
	// budget and dispatches what was received. A returned error is
	// recorded by the scheduler; the connection is expected to have
	// closed itself.
	Pump(budget time.Duration) error

	// Close closes the connection. It must be idempotent.
	Close()

	// Closed reports whether the connection is closed, after which the
	// scheduler drops it.
	Closed() bool
}

// Config holds the tunables of the network loop.
type Config struct {
	// PollInterval is the time one iteration spends pumping connections.
	// It is split evenly between them.
	PollInterval time.Duration

	// Yield is how long the loop pauses between releasing the intent
	// lock and taking the loop lock, giving a registering goroutine the
	// chance to get in. Zero only yields the processor.
	Yield time.Duration
}

// Scheduler multiplexes every registered connection on a single goroutine.
// It owns the delivery lock shared by the connections and their callbacks,
// and hands its registry over to registering goroutines through the intent
// and loop locks: a registration waits for at most one iteration.
type Scheduler struct {
	cfg Config

	// deliveryMtx guards connection buffers, connection state and the
	// message statistics of the callbacks.
	deliveryMtx sync.Mutex

	// intentMtx is taken by registering goroutines before loopMtx so the
	// loop, which briefly takes and releases it before every iteration,
	// yields to them.
	intentMtx sync.Mutex

	// loopMtx is held by the loop for a whole iteration and guards the
	// registry and exited.
	loopMtx  sync.Mutex
	registry []Dispatcher
	exited   bool

	stop atomic.Bool

	errMtx sync.Mutex
	errs   []error

	startOnce sync.Once
	done      chan struct{}
}

// New creates a scheduler. Its loop runs once Start is called.
func New(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Scheduler{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// DeliveryLock returns the lock that connections and callbacks registered
// with this scheduler must share.
func (s *Scheduler) DeliveryLock() sync.Locker {
	return &s.deliveryMtx
}

// Register adds a connection to the registry. It returns
// ErrSchedulerStopped if the loop already exited.
func (s *Scheduler) Register(d Dispatcher) error {
	s.intentMtx.Lock()
	defer s.intentMtx.Unlock()

	s.loopMtx.Lock()
	defer s.loopMtx.Unlock()

	if s.exited {
		return ErrSchedulerStopped
	}
	s.registry = append(s.registry, d)

	return nil
}

// Start launches the loop. It runs until the registry is empty or Stop is
// called.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		log.Debugf("Starting network loop with %d connection(s)",
			s.numRegistered())

		go s.run()
	})
}

// Stop sets the stop flag, waits for the loop to exit and closes the
// connections left in the registry.
func (s *Scheduler) Stop() {
	s.stop.Store(true)

	// A loop that never started is marked done right away.
	s.startOnce.Do(func() {
		s.loopMtx.Lock()
		s.exited = true
		s.loopMtx.Unlock()

		close(s.done)
	})
	<-s.done

	s.loopMtx.Lock()
	leftovers := s.registry
	s.registry = nil
	s.loopMtx.Unlock()

	for _, d := range leftovers {
		d.Close()
	}
}

// Wait blocks until the loop exited.
func (s *Scheduler) Wait() {
	<-s.done
}

// Done returns a channel that is closed once the loop exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the errors the loop observed while pumping connections,
// joined, or nil.
func (s *Scheduler) Err() error {
	s.errMtx.Lock()
	defer s.errMtx.Unlock()

	return errors.Join(s.errs...)
}

func (s *Scheduler) numRegistered() int {
	s.loopMtx.Lock()
	defer s.loopMtx.Unlock()

	return len(s.registry)
}

// run is the loop. It must be run as a goroutine.
func (s *Scheduler) run() {
	defer close(s.done)

	for {
		// Acquire and immediately release the intent lock: a goroutine
		// that holds it while waiting for the loop lock gets in before
		// the next iteration.
		s.intentMtx.Lock()
		s.intentMtx.Unlock() //nolint:staticcheck

		if s.cfg.Yield > 0 {
			time.Sleep(s.cfg.Yield)
		} else {
			runtime.Gosched()
		}

		s.loopMtx.Lock()
		if len(s.registry) == 0 || s.stop.Load() {
			s.exited = true
			s.loopMtx.Unlock()

			break
		}
		s.iterate()
		s.loopMtx.Unlock()
	}

	log.Debugf("Network loop closing")
}

// iterate runs one iteration over the registry. The caller must hold
// loopMtx.
func (s *Scheduler) iterate() {
	// Disconnect requests are honored before any I/O so they take effect
	// within one iteration.
	for _, d := range s.registry {
		if d.DisconnectRequested() {
			d.Close()
		}
	}

	budget := s.cfg.PollInterval / time.Duration(len(s.registry))
	if budget < minPumpBudget {
		budget = minPumpBudget
	}

	open := s.registry[:0]
	for _, d := range s.registry {
		if !d.Closed() {
			if err := d.Pump(budget); err != nil {
				log.Warnf("Network loop pump failed: %v", err)
				s.recordErr(err)
			}
		}

		if !d.Closed() {
			open = append(open, d)
		}
	}

	// Clear the tail so dropped connections can be collected.
	for i := len(open); i < len(s.registry); i++ {
		s.registry[i] = nil
	}
	s.registry = open
}

func (s *Scheduler) recordErr(err error) {
	s.errMtx.Lock()
	defer s.errMtx.Unlock()

	s.errs = append(s.errs, err)
}
