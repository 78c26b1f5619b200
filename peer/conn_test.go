package peer

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/TuringBitChain/TBCNODE/netloop"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestHandshake checks the handshake with a 70015 node: exactly one verack
// then one protoconf, and both versions settle on 70015.
func TestHandshake(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ours := h.handshake(t)

	require.Equal(t, int32(hnwire.MyVersion), ours.ProtocolVersion)
	require.Equal(t, uint64(hnwire.SFNodeNetwork), ours.Services)
	require.Equal(t, h.node.port(), ours.AddrTo.Port)
	require.Equal(t, fn.Some(hnwire.MySubVersion), ours.UserAgent)
	require.Equal(t, fn.Some(hnwire.NewLocalAddr()), ours.AddrFrom)

	require.Equal(t, hnwire.MyVersion, h.conn.SendVersion())
	require.Equal(t, hnwire.MyVersion, h.conn.RecvVersion())
	require.Equal(
		t, uint64(hnwire.SFNodeNetwork|hnwire.SFNodeBloom),
		h.conn.PeerServices(),
	)
	require.Equal(t, StateConnected, h.conn.State())
	require.Equal(t, h.node.addrString(), h.conn.String())
	require.True(t, h.callbacks.Connected())
	require.True(t, h.callbacks.VerackReceived())
	require.Equal(t, 1, h.callbacks.MessageCount(hnwire.CmdVerAck))

	// Nothing else was queued after the protoconf: the next message is
	// the answer to our ping.
	h.node.send(hnwire.NewMsgPing(7))
	require.Equal(t, hnwire.NewMsgPong(7), h.node.receive())
}

// TestBadChecksumClosesConnection checks that a frame with a wrong checksum
// closes the connection and is reported to the scheduler.
func TestBadChecksumClosesConnection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	var b bytes.Buffer
	_, err := hnwire.WriteMessage(
		&b, hnwire.NewMsgPing(1), hnwire.RegTest, hnwire.MyVersion,
		hnwire.MyVersion,
	)
	require.NoError(t, err)
	frame := b.Bytes()
	frame[hnwire.HeaderSize-1] ^= 0xff
	h.node.sendRaw(frame)

	require.NoError(t, h.callbacks.WaitForDisconnect(testTimeout))
	h.scheduler.Wait()

	require.ErrorIs(t, h.scheduler.Err(), hnwire.ErrBadChecksum)
	require.Equal(t, StateClosed, h.conn.State())
	require.True(t, h.conn.Closed())
	require.Zero(t, h.callbacks.MessageCount(hnwire.CmdPing))
	h.node.expectClosed()
}

// TestUnknownCommandClosesConnection checks that an unknown command is
// fatal to the connection.
func TestUnknownCommandClosesConnection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	h.node.send(hnwire.NewMsgGeneric("bogus", []byte{1, 2, 3}))

	require.NoError(t, h.callbacks.WaitForDisconnect(testTimeout))
	h.scheduler.Wait()

	var unknown *hnwire.UnknownCommandError
	require.ErrorAs(t, h.scheduler.Err(), &unknown)
	require.Equal(t, hnwire.Command("bogus"), unknown.Command)
}

// TestKeepAlivePing checks that a connection quiet for longer than the
// keep-alive interval pings before delivering the next message.
func TestKeepAlivePing(t *testing.T) {
	t.Parallel()

	start := time.Unix(1700000000, 0)
	testClock := clock.NewTestClock(start)

	h := newHarness(t, withClock(testClock))
	h.handshake(t)

	// Within the interval nothing extra is sent.
	testClock.SetTime(start.Add(DefaultKeepAliveInterval))
	h.node.send(hnwire.NewMsgPing(4))
	require.Equal(t, hnwire.NewMsgPong(4), h.node.receive())

	testClock.SetTime(start.Add(2*DefaultKeepAliveInterval + time.Second))
	h.node.send(hnwire.NewMsgPing(5))
	require.Equal(t, hnwire.NewMsgPing(0), h.node.receive())
	require.Equal(t, hnwire.NewMsgPong(5), h.node.receive())
}

// TestHookErrorClosesConnection checks that a failing hook closes the
// connection and surfaces as a *HookError.
func TestHookErrorClosesConnection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	errBoom := errors.New("boom")
	h.callbacks.SetHook(hnwire.CmdFeeFilter,
		func(PeerConn, hnwire.Message) error {
			return errBoom
		},
	)
	h.node.send(&hnwire.MsgFeeFilter{FeeRate: 1000})

	require.NoError(t, h.callbacks.WaitForDisconnect(testTimeout))
	h.scheduler.Wait()

	err := h.scheduler.Err()
	require.ErrorIs(t, err, errBoom)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	require.Equal(t, hnwire.CmdFeeFilter, hookErr.Command)

	// The message was recorded before the hook ran.
	require.Equal(t, 1, h.callbacks.MessageCount(hnwire.CmdFeeFilter))
}

// TestHookRepliesThroughCallbacks checks that a hook can send through the
// callbacks while the delivery lock is held, and that the scheduler still
// stops afterwards.
func TestHookRepliesThroughCallbacks(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	h.callbacks.SetHook(hnwire.CmdFeeFilter,
		func(conn PeerConn, _ hnwire.Message) error {
			if err := h.callbacks.SendMessage(
				hnwire.NewMsgPong(9),
			); err != nil {
				return err
			}

			return conn.SendMessage(hnwire.NewMsgPong(10))
		},
	)
	h.node.send(&hnwire.MsgFeeFilter{FeeRate: 1000})

	require.Equal(t, hnwire.NewMsgPong(9), h.node.receive())
	require.Equal(t, hnwire.NewMsgPong(10), h.node.receive())

	stopped := make(chan struct{})
	go func() {
		h.scheduler.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(testTimeout):
		t.Fatal("scheduler did not stop")
	}
	require.NoError(t, h.scheduler.Err())
}

// TestDisconnect checks that a disconnect request closes the connection
// within an iteration and that sending fails afterwards.
func TestDisconnect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	h.conn.Disconnect()
	require.True(t, h.conn.DisconnectRequested())
	require.NoError(t, h.callbacks.WaitForDisconnect(testTimeout))
	h.node.expectClosed()

	h.scheduler.Wait()
	require.NoError(t, h.scheduler.Err())

	require.ErrorIs(t, h.conn.SendMessage(&hnwire.MsgGetAddr{}),
		ErrNotConnected)
	require.ErrorIs(t, h.callbacks.SendMessage(&hnwire.MsgGetAddr{}),
		ErrNotConnected)
	require.True(t, h.callbacks.Connection().IsNone())
}

// TestSendBeforeConnect checks that only the version message is accepted
// before the connection is connected, and that stopping a scheduler that
// never ran closes its connections.
func TestSendBeforeConnect(t *testing.T) {
	t.Parallel()

	scheduler := netloop.New(netloop.Config{})
	callbacks, err := NewNodeCallbacks(&CallbacksConfig{
		Scheduler: scheduler,
	})
	require.NoError(t, err)

	dials := 0
	conn, err := NewConn(&Config{
		Host:      "127.0.0.1",
		Callbacks: callbacks,
		Scheduler: scheduler,
		Dial: func(string, string, time.Duration) (net.Conn, error) {
			dials++
			return nil, errors.New("unreachable")
		},
	})
	require.NoError(t, err)

	require.Equal(t, StateConnecting, conn.State())
	require.Equal(t, hnwire.RegTest.DefaultPort(),
		uint16(mustPort(t, conn.String())))
	require.Equal(t, hnwire.InitialVersion, conn.SendVersion())
	require.Equal(t, hnwire.InitialVersion, conn.RecvVersion())
	require.Equal(t, uint64(29126), conn.MaxInvElements())

	require.ErrorIs(t, conn.SendMessage(hnwire.NewMsgPing(1)),
		ErrNotConnected)
	require.ErrorIs(t, callbacks.SendMessage(hnwire.NewMsgPing(1)),
		ErrNotConnected)
	require.True(t, callbacks.Connection().IsSome())

	scheduler.Stop()
	require.Equal(t, StateClosed, conn.State())
	require.Zero(t, dials)
	require.True(t, callbacks.Connection().IsNone())

	// The stopped scheduler takes no more connections.
	_, err = NewConn(&Config{
		Host:      "127.0.0.1",
		Callbacks: callbacks,
		Scheduler: scheduler,
	})
	require.ErrorIs(t, err, netloop.ErrSchedulerStopped)
}

// TestDialFailure checks that a failed dial closes the connection without
// an error for the scheduler.
func TestDialFailure(t *testing.T) {
	t.Parallel()

	scheduler := netloop.New(netloop.Config{
		PollInterval: testPollInterval,
	})
	callbacks, err := NewNodeCallbacks(&CallbacksConfig{
		Scheduler:    scheduler,
		PollInterval: testPollInterval,
	})
	require.NoError(t, err)

	conn, err := NewConn(&Config{
		Host:      "127.0.0.1",
		Port:      1,
		Callbacks: callbacks,
		Scheduler: scheduler,
		Dial: func(string, string, time.Duration) (net.Conn, error) {
			return nil, errors.New("connection refused")
		},
	})
	require.NoError(t, err)

	scheduler.Start()
	scheduler.Wait()

	require.NoError(t, scheduler.Err())
	require.Equal(t, StateClosed, conn.State())
	require.False(t, callbacks.Connected())
}

// TestSyncWithPing checks that the sync waits for the matching pong and
// for the node to drain its activity, and that an RPC failure is an early
// disconnect.
func TestSyncWithPing(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{totals: []int64{2, 1, 0}}
	h := newHarness(t, withRPC(rpc))
	h.handshake(t)

	syncPing := func(nonce uint64) error {
		errChan := make(chan error, 1)
		go func() {
			errChan <- h.callbacks.SyncWithPing(testTimeout)
		}()

		require.Equal(t, hnwire.NewMsgPing(nonce), h.node.receive())

		// A stale pong does not end the wait.
		h.node.send(hnwire.NewMsgPong(nonce + 100))
		h.node.send(hnwire.NewMsgPong(nonce))

		select {
		case err := <-errChan:
			return err
		case <-time.After(2 * testTimeout):
			t.Fatalf("sync with ping %d did not return", nonce)
			return nil
		}
	}

	require.NoError(t, syncPing(1))
	require.Equal(t, 3, rpc.numCalls())
	require.Equal(t, uint64(2), h.callbacks.PingCounter())

	rpc.mu.Lock()
	rpc.err = errors.New("rpc down")
	rpc.mu.Unlock()

	err := syncPing(2)
	var early *EarlyDisconnectError
	require.ErrorAs(t, err, &early)
	require.Equal(t, uint64(2), h.callbacks.PingCounter())
}

// TestSyncWithPingDisconnected checks that syncing without a connection is
// an early disconnect.
func TestSyncWithPingDisconnected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	h.conn.Disconnect()
	require.NoError(t, h.callbacks.WaitForDisconnect(testTimeout))

	err := h.callbacks.SendAndPing(&hnwire.MsgMemPool{}, testTimeout)
	var early *EarlyDisconnectError
	require.ErrorAs(t, err, &early)
	require.ErrorIs(t, err, ErrNotConnected)
}

// TestInvRequestsData checks that announced items are requested, except
// for error vectors.
func TestInvRequestsData(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.handshake(t)

	txHash := hnwire.DoubleHash([]byte("tx"))
	errInv := hnwire.NewInvVect(hnwire.InvTypeError, hnwire.ZeroHash)
	txInv := hnwire.NewInvVect(hnwire.InvTypeTx, txHash)

	h.node.send(hnwire.NewMsgInv(errInv, txInv))
	require.Equal(t, hnwire.NewMsgGetData(txInv), h.node.receive())
	require.NoError(t, h.callbacks.WaitForInv(
		[]hnwire.InvVect{errInv}, testTimeout,
	))

	// An inv of error vectors only is not answered.
	h.node.send(hnwire.NewMsgInv(errInv))
	h.node.send(hnwire.NewMsgPing(9))
	require.Equal(t, hnwire.NewMsgPong(9), h.node.receive())
	require.Equal(t, 2, h.callbacks.MessageCount(hnwire.CmdInv))

	err := h.callbacks.WaitForInv(
		[]hnwire.InvVect{errInv, txInv}, testTimeout,
	)
	require.ErrorIs(t, err, ErrSingleInv)
}
