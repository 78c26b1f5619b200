package peer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultKeepAliveInterval is how long a connection may go without
	// sending before a ping is sent ahead of the next delivery.
	DefaultKeepAliveInterval = 30 * time.Minute

	// DefaultDialTimeout bounds the TCP connect to the node.
	DefaultDialTimeout = 10 * time.Second

	// readBufferSize is the most a single pump reads from the socket.
	readBufferSize = 8192

	// minReadWait is the read deadline used once a pump exhausted its
	// budget, so buffered data is still picked up.
	minReadWait = time.Millisecond

	// maxLogDump is the length message dumps are truncated to in logs.
	maxLogDump = 500
)

// ConnState is the state of a connection. It only ever moves forward.
type ConnState uint8

const (
	// StateConnecting is the state of a connection whose socket is not
	// connected yet. Only the version message may be queued.
	StateConnecting ConnState = iota

	// StateConnected is the state of an open connection.
	StateConnected

	// StateClosed is the final state of a connection.
	StateClosed
)

// String returns the name of the state.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DialFunc opens the TCP connection to the node.
type DialFunc func(network, address string,
	timeout time.Duration) (net.Conn, error)

// Config holds the parameters of a connection to a node.
type Config struct {
	// Host is the IPv4 address of the node.
	Host string

	// Port is the P2P port of the node. Zero means the default port of
	// Net.
	Port uint16

	// Net is the network whose magic frames carry.
	Net hnwire.Network

	// Services are the service bits advertised in our version message.
	Services uint64

	// UserAgent replaces our user agent in the version message.
	UserAgent fn.Option[string]

	// SkipVersion leaves the version message out, for tests that start
	// the handshake themselves.
	SkipVersion bool

	// Callbacks receives the connection's events and messages.
	Callbacks Callbacks

	// Scheduler is the network loop driving the connection.
	Scheduler Registrar

	// Clock provides the time for keep-alive decisions.
	Clock clock.Clock

	// KeepAliveInterval is how long the connection may go without
	// sending before a ping is sent. Zero means
	// DefaultKeepAliveInterval.
	KeepAliveInterval time.Duration

	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration

	// Dial opens the TCP connection, net.DialTimeout when nil.
	Dial DialFunc
}

// dialResult is what the dial goroutine hands back to the scheduler.
type dialResult struct {
	sock net.Conn
	err  error
}

// Conn is a connection to a node driven by a netloop.Scheduler. Its buffers
// and state are guarded by the scheduler's delivery lock, and only the
// scheduler goroutine touches its socket. Sending only takes sendMu, so it
// is safe from a hook while the delivery lock is held.
type Conn struct {
	cfg  Config
	addr string

	// lock is the delivery lock of the scheduler.
	lock sync.Locker

	// view is the lock-held form of the connection handed to hooks.
	view *lockedConn

	// disconnect is set by Disconnect and honored by the scheduler.
	disconnect atomic.Bool

	// sendMu guards sendBuf and lastSent. It is always taken after lock,
	// never before it. The state and the versions used to frame outbound
	// messages are written holding both locks, so holding either one is
	// enough to read them.
	sendMu   sync.Mutex
	sendBuf  bytes.Buffer
	lastSent time.Time

	// The fields below are guarded by lock.
	state          ConnState
	sock           net.Conn
	recvBuf        []byte
	verSend        uint32
	verRecv        uint32
	peerVersion    uint32
	peerServices   uint64
	maxInvElements uint64

	// dialStarted is only touched by the scheduler goroutine.
	dialStarted bool
	dialRes     chan dialResult

	readBuf []byte
}

// A compile time check to ensure Conn implements PeerConn.
var _ PeerConn = (*Conn)(nil)

// NewConn creates a connection to the node described by cfg. The version
// message is queued before the socket exists, then the connection attaches
// itself to its callbacks and registers with the scheduler, which dials and
// drives it from then on.
func NewConn(cfg *Config) (*Conn, error) {
	if cfg.Scheduler == nil {
		return nil, ErrNoScheduler
	}
	if cfg.Callbacks == nil {
		return nil, errors.New("no callbacks")
	}

	c := &Conn{
		cfg:         *cfg,
		lock:        cfg.Scheduler.DeliveryLock(),
		state:       StateConnecting,
		verSend:     hnwire.InitialVersion,
		verRecv:     hnwire.InitialVersion,
		peerVersion: hnwire.MyVersion,
		dialRes:     make(chan dialResult, 1),
		readBuf:     make([]byte, readBufferSize),
	}
	c.view = &lockedConn{c: c}
	c.maxInvElements = hnwire.EstimateMaxInvElements(
		hnwire.LegacyMaxProtocolPayloadLength,
	)

	if c.cfg.Net == "" {
		c.cfg.Net = hnwire.RegTest
	}
	if _, err := c.cfg.Net.Magic(); err != nil {
		return nil, err
	}
	if c.cfg.Port == 0 {
		c.cfg.Port = c.cfg.Net.DefaultPort()
	}
	if c.cfg.Clock == nil {
		c.cfg.Clock = clock.NewDefaultClock()
	}
	if c.cfg.KeepAliveInterval == 0 {
		c.cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.cfg.DialTimeout == 0 {
		c.cfg.DialTimeout = DefaultDialTimeout
	}
	if c.cfg.Dial == nil {
		c.cfg.Dial = net.DialTimeout
	}
	c.addr = net.JoinHostPort(
		c.cfg.Host, strconv.Itoa(int(c.cfg.Port)),
	)

	if !c.cfg.SkipVersion {
		if err := c.pushVersion(); err != nil {
			return nil, err
		}
	}

	log.Infof("Connecting to node: %v", c.addr)

	c.cfg.Callbacks.AddConnection(c)
	if err := c.cfg.Scheduler.Register(c); err != nil {
		return nil, fmt.Errorf("unable to register connection to %v: "+
			"%w", c.addr, err)
	}

	return c, nil
}

// pushVersion queues our version message ahead of the connect.
func (c *Conn) pushVersion() error {
	ip, err := netip.ParseAddr(c.cfg.Host)
	if err != nil || !ip.Unmap().Is4() {
		log.Debugf("Advertising 0.0.0.0 for non IPv4 host %v",
			c.cfg.Host)

		ip = netip.IPv4Unspecified()
	}

	msg := hnwire.NewMsgVersion(
		hnwire.NewNetAddressInVersion(ip, c.cfg.Port),
		hnwire.NewLocalAddr(),
	)
	msg.Services = c.cfg.Services
	c.cfg.UserAgent.WhenSome(func(ua string) {
		msg.UserAgent = fn.Some(ua)
	})

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(msg, true)
}

// String returns the address of the node.
func (c *Conn) String() string {
	return c.addr
}

// SendMessage frames msg and queues it for the scheduler to write. It does
// not take the delivery lock, so hooks may call it.
func (c *Conn) SendMessage(msg hnwire.Message) error {
	return c.send(msg, false)
}

// send appends the framed message to the send buffer. Only the version
// message is pushed before the connection is connected.
func (c *Conn) send(msg hnwire.Message, pushBuf bool) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	return c.sendLocked(msg, pushBuf)
}

// sendLocked is send for callers holding sendMu.
func (c *Conn) sendLocked(msg hnwire.Message, pushBuf bool) error {
	if c.state != StateConnected && !pushBuf {
		return fmt.Errorf("%w: %v to %v is %v", ErrNotConnected,
			msg.Command(), c.addr, c.state)
	}

	c.logMessage("Sending", msg)

	_, err := hnwire.WriteMessage(
		&c.sendBuf, msg, c.cfg.Net, c.verSend, c.peerVersion,
	)
	if err != nil {
		return err
	}
	c.lastSent = c.cfg.Clock.Now()

	return nil
}

// logMessage logs msg with its dump truncated.
func (c *Conn) logMessage(direction string, msg hnwire.Message) {
	log.Debugf("%v %v message for %v: %v", direction, msg.Command(),
		c.addr, newLogClosure(func() string {
			dump := spew.Sdump(msg)
			if len(dump) > maxLogDump {
				dump = dump[:maxLogDump] + "... (msg truncated)"
			}

			return dump
		}),
	)
}

// Disconnect asks the scheduler to close the connection within one
// iteration.
func (c *Conn) Disconnect() {
	c.disconnect.Store(true)
}

// DisconnectRequested reports whether Disconnect was called.
//
// NOTE: Part of the netloop.Dispatcher interface.
func (c *Conn) DisconnectRequested() bool {
	return c.disconnect.Load()
}

// Closed reports whether the connection is closed.
//
// NOTE: Part of the netloop.Dispatcher interface.
func (c *Conn) Closed() bool {
	return c.State() == StateClosed
}

// Close closes the connection, clears its buffers and notifies the
// callbacks. Only the first call has an effect.
//
// NOTE: Part of the netloop.Dispatcher interface.
func (c *Conn) Close() {
	c.lock.Lock()
	if c.state == StateClosed {
		c.lock.Unlock()
		return
	}

	log.Debugf("Closing connection to %v", c.addr)

	c.sendMu.Lock()
	c.state = StateClosed
	c.sendBuf.Reset()
	c.sendMu.Unlock()
	c.recvBuf = nil
	sock := c.sock
	c.sock = nil

	// A socket the dial goroutine handed over but nobody picked up.
	select {
	case res := <-c.dialRes:
		if res.sock != nil {
			_ = res.sock.Close()
		}
	default:
	}
	c.lock.Unlock()

	if sock != nil {
		_ = sock.Close()
	}

	c.cfg.Callbacks.OnClose(c)
}

// Pump performs the connection's socket I/O for at most budget and
// delivers every complete frame received. Socket failures close the
// connection quietly; framing and hook failures close it and are returned.
//
// NOTE: Part of the netloop.Dispatcher interface.
func (c *Conn) Pump(budget time.Duration) error {
	deadline := time.Now().Add(budget)

	switch c.State() {
	case StateConnecting:
		if !c.connect(budget) {
			return nil
		}

	case StateClosed:
		return nil
	}

	if !c.flush(deadline) {
		return nil
	}

	readErr := c.read(deadline)

	if err := c.dispatch(); err != nil {
		c.Close()
		return err
	}

	if readErr != nil {
		if !errors.Is(readErr, io.EOF) {
			log.Errorf("Read from %v failed: %v", c.addr, readErr)
		}
		c.Close()
	}

	return nil
}

// connect starts the dial on the first call and waits at most budget for
// its outcome. It returns true once the connection is connected.
func (c *Conn) connect(budget time.Duration) bool {
	if !c.dialStarted {
		c.dialStarted = true
		go c.dial()
	}

	var res dialResult
	select {
	case res = <-c.dialRes:
	case <-time.After(budget):
		return false
	}

	if res.err != nil {
		log.Errorf("Unable to connect to %v: %v", c.addr, res.err)
		c.Close()

		return false
	}

	c.lock.Lock()
	if c.state == StateClosed {
		c.lock.Unlock()
		_ = res.sock.Close()

		return false
	}
	c.sock = res.sock
	c.sendMu.Lock()
	c.state = StateConnected
	c.sendMu.Unlock()
	c.lock.Unlock()

	log.Debugf("Connected to %v", c.addr)

	c.cfg.Callbacks.OnOpen(c)

	return true
}

// dial creates the socket and hands it to the scheduler. It must be run as
// a goroutine.
func (c *Conn) dial() {
	sock, err := c.cfg.Dial("tcp", c.addr, c.cfg.DialTimeout)

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state == StateClosed {
		if sock != nil {
			_ = sock.Close()
		}

		return
	}
	c.dialRes <- dialResult{sock: sock, err: err}
}

// flush writes as much of the send buffer as the socket takes before the
// deadline. It returns false if the connection was closed.
func (c *Conn) flush(deadline time.Time) bool {
	c.lock.Lock()
	sock := c.sock
	c.lock.Unlock()

	c.sendMu.Lock()
	out := append([]byte(nil), c.sendBuf.Bytes()...)
	c.sendMu.Unlock()

	if sock == nil {
		return false
	}
	if len(out) == 0 {
		return true
	}

	_ = sock.SetWriteDeadline(deadline)
	n, err := sock.Write(out)

	c.sendMu.Lock()
	if c.state == StateConnected {
		c.sendBuf.Next(n)
	}
	c.sendMu.Unlock()

	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		log.Errorf("Write to %v failed: %v", c.addr, err)
		c.Close()

		return false
	}

	return true
}

// read appends what the socket delivers before the deadline to the
// receive buffer. A deadline expiry is not an error.
func (c *Conn) read(deadline time.Time) error {
	c.lock.Lock()
	sock := c.sock
	c.lock.Unlock()

	if sock == nil {
		return nil
	}

	if time.Until(deadline) < minReadWait {
		deadline = time.Now().Add(minReadWait)
	}
	_ = sock.SetReadDeadline(deadline)

	n, err := sock.Read(c.readBuf)
	if n > 0 {
		c.lock.Lock()
		if c.state == StateConnected {
			c.recvBuf = append(c.recvBuf, c.readBuf[:n]...)
		}
		c.lock.Unlock()
	}

	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return err
	}

	return nil
}

// dispatch parses and delivers every complete frame of the receive buffer.
func (c *Conn) dispatch() error {
	for {
		c.lock.Lock()
		if c.state != StateConnected {
			c.lock.Unlock()
			return nil
		}

		msg, n, err := hnwire.ReadMessage(
			c.recvBuf, c.cfg.Net, c.verRecv, c.peerVersion,
		)
		if n > 0 {
			c.recvBuf = c.recvBuf[n:]
		}
		c.lock.Unlock()

		switch {
		case err != nil:
			log.Errorf("Invalid data from %v: %v", c.addr, err)
			return fmt.Errorf("connection to %v: %w", c.addr, err)

		case msg == nil:
			return nil
		}

		if err := c.gotMessage(msg); err != nil {
			return fmt.Errorf("connection to %v: %w", c.addr, err)
		}
	}
}

// gotMessage records the peer's version, sends a keep-alive ping when the
// connection has been quiet for too long and delivers msg.
func (c *Conn) gotMessage(msg hnwire.Message) error {
	c.lock.Lock()
	c.sendMu.Lock()
	if v, ok := msg.(*hnwire.MsgVersion); ok && v.ProtocolVersion >= 0 {
		c.peerVersion = uint32(v.ProtocolVersion)
	}

	now := c.cfg.Clock.Now()
	if now.Sub(c.lastSent) > c.cfg.KeepAliveInterval {
		err := c.sendLocked(hnwire.NewMsgPing(0), false)
		if err != nil {
			log.Warnf("Unable to send keep-alive ping to %v: %v",
				c.addr, err)
		}
	}
	c.sendMu.Unlock()
	c.lock.Unlock()

	c.logMessage("Received", msg)

	return c.cfg.Callbacks.Deliver(c.view, msg)
}

// State returns the state of the connection.
func (c *Conn) State() ConnState {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.view.State()
}

// SendVersion is the protocol version outbound frames are built with.
func (c *Conn) SendVersion() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.view.SendVersion()
}

// SetSendVersion changes the protocol version of outbound frames.
func (c *Conn) SetSendVersion(ver uint32) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.view.SetSendVersion(ver)
}

// RecvVersion is the protocol version inbound frames are parsed with.
func (c *Conn) RecvVersion() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.view.RecvVersion()
}

// SetRecvVersion changes the protocol version of inbound frames.
func (c *Conn) SetRecvVersion(ver uint32) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.view.SetRecvVersion(ver)
}

// PeerServices returns the service bits the peer advertised.
func (c *Conn) PeerServices() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.view.PeerServices()
}

// SetPeerServices records the service bits the peer advertised.
func (c *Conn) SetPeerServices(services uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.view.SetPeerServices(services)
}

// MaxInvElements is the largest inventory the peer accepts in one message.
func (c *Conn) MaxInvElements() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.view.MaxInvElements()
}

// SetMaxInvElements changes the largest inventory the peer accepts.
func (c *Conn) SetMaxInvElements(n uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.view.SetMaxInvElements(n)
}

// lockedConn is the connection for callers that already hold the delivery
// lock.
type lockedConn struct {
	c *Conn
}

// A compile time check to ensure lockedConn implements PeerConn.
var _ PeerConn = (*lockedConn)(nil)

func (l *lockedConn) SendMessage(msg hnwire.Message) error {
	return l.c.send(msg, false)
}

func (l *lockedConn) SendVersion() uint32 { return l.c.verSend }

func (l *lockedConn) SetSendVersion(ver uint32) {
	l.c.sendMu.Lock()
	l.c.verSend = ver
	l.c.sendMu.Unlock()
}

func (l *lockedConn) RecvVersion() uint32 { return l.c.verRecv }

func (l *lockedConn) SetRecvVersion(ver uint32) { l.c.verRecv = ver }

func (l *lockedConn) PeerServices() uint64 { return l.c.peerServices }

func (l *lockedConn) SetPeerServices(services uint64) {
	l.c.peerServices = services
}

func (l *lockedConn) MaxInvElements() uint64 { return l.c.maxInvElements }

func (l *lockedConn) SetMaxInvElements(n uint64) { l.c.maxInvElements = n }

func (l *lockedConn) State() ConnState { return l.c.state }

func (l *lockedConn) Disconnect() { l.c.Disconnect() }
