package peer

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/TuringBitChain/TBCNODE/netloop"
	"github.com/TuringBitChain/TBCNODE/noderpc"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const (
	// testTimeout bounds every wait of the tests.
	testTimeout = 5 * time.Second

	// testPollInterval is the scheduler's and the waits' poll interval.
	testPollInterval = 10 * time.Millisecond
)

// fakeNode is the remote end of a connection under test. It is driven
// from the test goroutine.
type fakeNode struct {
	t    *testing.T
	ln   *net.TCPListener
	conn net.Conn
	buf  []byte
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ln.Close()
	})

	return &fakeNode{t: t, ln: ln.(*net.TCPListener)}
}

func (f *fakeNode) port() uint16 {
	addr := f.ln.Addr().(*net.TCPAddr)
	return uint16(addr.Port)
}

// accept waits for the connection under test.
func (f *fakeNode) accept() {
	f.t.Helper()

	require.NoError(f.t, f.ln.SetDeadline(time.Now().Add(testTimeout)))
	conn, err := f.ln.Accept()
	require.NoError(f.t, err)
	f.t.Cleanup(func() {
		_ = conn.Close()
	})
	f.conn = conn
}

// send frames msg the way a post handshake node does.
func (f *fakeNode) send(msg hnwire.Message) {
	f.t.Helper()

	var b bytes.Buffer
	_, err := hnwire.WriteMessage(
		&b, msg, hnwire.RegTest, hnwire.MyVersion, hnwire.MyVersion,
	)
	require.NoError(f.t, err)
	f.sendRaw(b.Bytes())
}

func (f *fakeNode) sendRaw(data []byte) {
	f.t.Helper()

	_, err := f.conn.Write(data)
	require.NoError(f.t, err)
}

// receive returns the next message sent by the connection under test.
func (f *fakeNode) receive() hnwire.Message {
	f.t.Helper()

	msg, err := f.tryReceive(time.Now().Add(testTimeout))
	require.NoError(f.t, err)

	return msg
}

func (f *fakeNode) tryReceive(deadline time.Time) (hnwire.Message, error) {
	readBuf := make([]byte, 4096)
	for {
		msg, n, err := hnwire.ReadMessage(
			f.buf, hnwire.RegTest, hnwire.MyVersion,
			hnwire.MyVersion,
		)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			f.buf = f.buf[n:]
			return msg, nil
		}

		if err := f.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err = f.conn.Read(readBuf)
		f.buf = append(f.buf, readBuf[:n]...)
		if err != nil {
			return nil, err
		}
	}
}

// expectClosed checks that the connection under test hung up.
func (f *fakeNode) expectClosed() {
	f.t.Helper()

	_, err := f.tryReceive(time.Now().Add(testTimeout))
	require.Error(f.t, err)
	require.False(f.t, errors.Is(err, os.ErrDeadlineExceeded))
}

// harness is a connection under test wired to a fake node.
type harness struct {
	node      *fakeNode
	scheduler *netloop.Scheduler
	callbacks *NodeCallbacks
	conn      *Conn
}

type harnessOption func(*Config, *CallbacksConfig)

func withClock(c clock.Clock) harnessOption {
	return func(cfg *Config, _ *CallbacksConfig) {
		cfg.Clock = c
	}
}

func withRPC(rpc ActivityReporter) harnessOption {
	return func(_ *Config, cfg *CallbacksConfig) {
		cfg.RPC = rpc
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	node := newFakeNode(t)
	scheduler := netloop.New(netloop.Config{
		PollInterval: testPollInterval,
	})

	connCfg := &Config{
		Host:      "127.0.0.1",
		Port:      node.port(),
		Net:       hnwire.RegTest,
		Services:  uint64(hnwire.SFNodeNetwork),
		Scheduler: scheduler,
	}
	cbCfg := &CallbacksConfig{
		Scheduler:    scheduler,
		PollInterval: testPollInterval,
	}
	for _, opt := range opts {
		opt(connCfg, cbCfg)
	}

	callbacks, err := NewNodeCallbacks(cbCfg)
	require.NoError(t, err)
	connCfg.Callbacks = callbacks

	conn, err := NewConn(connCfg)
	require.NoError(t, err)

	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	node.accept()

	return &harness{
		node:      node,
		scheduler: scheduler,
		callbacks: callbacks,
		conn:      conn,
	}
}

// handshake runs the node's side of the handshake with a 70015 version and
// returns our version message.
func (h *harness) handshake(t *testing.T) *hnwire.MsgVersion {
	t.Helper()

	ours, ok := h.node.receive().(*hnwire.MsgVersion)
	require.True(t, ok)

	theirs := hnwire.NewMsgVersion(
		hnwire.NewNetAddressInVersion(netip.IPv4Unspecified(), 0),
		hnwire.NewLocalAddr(),
	)
	theirs.Services = uint64(hnwire.SFNodeNetwork | hnwire.SFNodeBloom)
	h.node.send(theirs)

	require.IsType(t, &hnwire.MsgVerAck{}, h.node.receive())
	require.Equal(
		t, hnwire.NewMsgProtoconf(hnwire.MaxProtocolRecvPayloadLength),
		h.node.receive(),
	)

	h.node.send(&hnwire.MsgVerAck{})
	require.NoError(t, h.callbacks.WaitForVerack(testTimeout))

	return ours
}

// fakeRPC replays a list of activity totals, repeating the last one.
type fakeRPC struct {
	mu     sync.Mutex
	totals []int64
	calls  int
	err    error
}

func (f *fakeRPC) BlockchainActivity(
	context.Context) (noderpc.Activity, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	total := f.totals[0]
	if len(f.totals) > 1 {
		f.totals = f.totals[1:]
	}

	return noderpc.Activity{"blocks": total}, nil
}

func (f *fakeRPC) numCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// addrString returns host:port of the fake node.
func (f *fakeNode) addrString() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(f.port())))
}

// mustPort returns the port of a host:port string.
func mustPort(t *testing.T, hostPort string) int {
	t.Helper()

	_, port, err := net.SplitHostPort(hostPort)
	require.NoError(t, err)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)

	return n
}
