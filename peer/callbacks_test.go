package peer

import (
	"errors"
	"testing"
	"time"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/TuringBitChain/TBCNODE/netloop"
	"github.com/stretchr/testify/require"
)

// recordingConn is a PeerConn that records what hooks send.
type recordingConn struct {
	sendVer  uint32
	recvVer  uint32
	services uint64
	maxInv   uint64
	sent     []hnwire.Message

	disconnected bool
}

func newRecordingConn() *recordingConn {
	return &recordingConn{
		sendVer: hnwire.InitialVersion,
		recvVer: hnwire.InitialVersion,
	}
}

func (r *recordingConn) SendMessage(msg hnwire.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingConn) SendVersion() uint32             { return r.sendVer }
func (r *recordingConn) SetSendVersion(v uint32)         { r.sendVer = v }
func (r *recordingConn) RecvVersion() uint32             { return r.recvVer }
func (r *recordingConn) SetRecvVersion(v uint32)         { r.recvVer = v }
func (r *recordingConn) PeerServices() uint64            { return r.services }
func (r *recordingConn) SetPeerServices(services uint64) { r.services = services }
func (r *recordingConn) MaxInvElements() uint64          { return r.maxInv }
func (r *recordingConn) SetMaxInvElements(n uint64)      { r.maxInv = n }
func (r *recordingConn) State() ConnState                { return StateConnected }
func (r *recordingConn) Disconnect()                     { r.disconnected = true }

func newTestCallbacks(t *testing.T) *NodeCallbacks {
	t.Helper()

	callbacks, err := NewNodeCallbacks(&CallbacksConfig{
		Scheduler:    netloop.New(netloop.Config{}),
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	return callbacks
}

// TestVersionHook checks the default version hook against peers of
// different ages.
func TestVersionHook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		version  int32
		sent     []hnwire.Message
		sendVer  uint32
		recvVer  uint32
		services uint64
	}{
		{
			name:    "current peer",
			version: 70015,
			sent: []hnwire.Message{
				&hnwire.MsgVerAck{},
				hnwire.NewMsgProtoconf(
					hnwire.MaxProtocolRecvPayloadLength,
				),
			},
			sendVer: 70015,
			recvVer: hnwire.InitialVersion,
		},
		{
			name:    "newer peer",
			version: 80000,
			sent: []hnwire.Message{
				&hnwire.MsgVerAck{},
				hnwire.NewMsgProtoconf(
					hnwire.MaxProtocolRecvPayloadLength,
				),
			},
			sendVer: hnwire.MyVersion,
			recvVer: hnwire.InitialVersion,
		},
		{
			name:    "pre checksum peer",
			version: 106,
			sendVer: 106,
			recvVer: 106,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			callbacks := newTestCallbacks(t)
			conn := newRecordingConn()

			msg := &hnwire.MsgVersion{
				ProtocolVersion: test.version,
				Services:        uint64(hnwire.SFNodeBloom),
			}
			require.NoError(t, callbacks.Deliver(conn, msg))

			require.Equal(t, test.sent, conn.sent)
			require.Equal(t, test.sendVer, conn.sendVer)
			require.Equal(t, test.recvVer, conn.recvVer)
			require.Equal(t, uint64(hnwire.SFNodeBloom), conn.services)
			require.False(t, callbacks.VerackReceived())

			require.NoError(t, callbacks.Deliver(
				conn, &hnwire.MsgVerAck{},
			))
			require.Equal(t, test.sendVer, conn.recvVer)
			require.True(t, callbacks.VerackReceived())
		})
	}
}

// TestPingHook checks that pings are only answered above the legacy
// version.
func TestPingHook(t *testing.T) {
	t.Parallel()

	callbacks := newTestCallbacks(t)
	conn := newRecordingConn()

	conn.sendVer = hnwire.BIP0031Version
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPing(3)))
	require.Empty(t, conn.sent)

	conn.sendVer = hnwire.BIP0031Version + 1
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPing(3)))
	require.Equal(t, []hnwire.Message{hnwire.NewMsgPong(3)}, conn.sent)
}

// TestDeliverRecordsStats checks the statistics kept per command.
func TestDeliverRecordsStats(t *testing.T) {
	t.Parallel()

	callbacks := newTestCallbacks(t)
	conn := newRecordingConn()

	require.True(t, callbacks.LastMessage(hnwire.CmdPong).IsNone())
	require.True(t, callbacks.MessageIndex(hnwire.CmdPong).IsNone())
	require.True(t, callbacks.MessageTimestamp(hnwire.CmdPong).IsNone())

	before := time.Now()
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPong(1)))
	require.NoError(t, callbacks.Deliver(conn, &hnwire.MsgSendHeaders{}))
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPong(2)))

	require.Equal(t, 2, callbacks.MessageCount(hnwire.CmdPong))
	require.Equal(t, 1, callbacks.MessageCount(hnwire.CmdSendHeaders))
	require.Zero(t, callbacks.MessageCount(hnwire.CmdBlock))

	last, err := callbacks.LastMessage(hnwire.CmdPong).UnwrapOrErr(
		errors.New("no pong"),
	)
	require.NoError(t, err)
	require.Equal(t, hnwire.NewMsgPong(2), last)

	idx := callbacks.MessageIndex(hnwire.CmdPong).UnwrapOr(0)
	require.Equal(t, uint64(2), idx)
	idx = callbacks.MessageIndex(hnwire.CmdSendHeaders).UnwrapOr(0)
	require.Equal(t, uint64(1), idx)

	ts := callbacks.MessageTimestamp(hnwire.CmdPong).UnwrapOr(time.Time{})
	require.False(t, ts.Before(before.Truncate(time.Second)))

	snapshot := callbacks.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, 2, snapshot[hnwire.CmdPong].Count)

	// Clearing resets the counts only.
	callbacks.ClearMessages()
	require.Zero(t, callbacks.MessageCount(hnwire.CmdPong))
	require.True(t, callbacks.LastMessage(hnwire.CmdPong).IsSome())

	// The snapshot is a copy.
	require.Equal(t, 2, snapshot[hnwire.CmdPong].Count)
}

// TestOverrideHooks checks that overridden hooks are restored.
func TestOverrideHooks(t *testing.T) {
	t.Parallel()

	callbacks := newTestCallbacks(t)
	conn := newRecordingConn()
	conn.sendVer = hnwire.MyVersion

	var pings int
	restore := callbacks.OverrideHooks(map[hnwire.Command]Hook{
		hnwire.CmdPing: func(PeerConn, hnwire.Message) error {
			pings++
			return nil
		},
		hnwire.CmdInv: nil,
	})

	inv := hnwire.NewMsgInv(
		hnwire.NewInvVect(hnwire.InvTypeBlock, hnwire.ZeroHash),
	)
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPing(1)))
	require.NoError(t, callbacks.Deliver(conn, inv))
	require.Equal(t, 1, pings)
	require.Empty(t, conn.sent)

	restore()

	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPing(2)))
	require.NoError(t, callbacks.Deliver(conn, inv))
	require.Equal(t, 1, pings)
	require.Equal(t, []hnwire.Message{
		hnwire.NewMsgPong(2),
		hnwire.NewMsgGetData(inv.InvList...),
	}, conn.sent)

	// A nil hook set directly is a no-op as well.
	callbacks.SetHook(hnwire.CmdPing, nil)
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgPing(3)))
	require.Len(t, conn.sent, 2)
}

// TestHookError checks that hook errors are wrapped with their command.
func TestHookError(t *testing.T) {
	t.Parallel()

	callbacks := newTestCallbacks(t)
	conn := newRecordingConn()

	errBoom := errors.New("boom")
	callbacks.SetHook(hnwire.CmdTx, func(c PeerConn,
		_ hnwire.Message) error {

		c.Disconnect()
		return errBoom
	})

	err := callbacks.Deliver(conn, &hnwire.MsgTx{})
	require.ErrorIs(t, err, errBoom)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	require.Equal(t, hnwire.CmdTx, hookErr.Command)
	require.True(t, conn.disconnected)

	// A message of the wrong type for a default hook is an error too.
	err = callbacks.Deliver(conn, hnwire.NewMsgGeneric(hnwire.CmdInv, nil))
	require.ErrorAs(t, err, &hookErr)
}

// TestWaitHelpers checks the wait helpers against delivered messages and
// their timeouts.
func TestWaitHelpers(t *testing.T) {
	t.Parallel()

	const short = 20 * time.Millisecond

	callbacks := newTestCallbacks(t)
	conn := newRecordingConn()

	// Nothing was ever connected.
	require.NoError(t, callbacks.WaitForDisconnect(short))

	require.ErrorIs(t, callbacks.WaitForReject(short), ErrWaitTimeout)
	require.ErrorIs(t, callbacks.WaitForProtoconf(short), ErrWaitTimeout)
	require.ErrorIs(t, callbacks.WaitForGetHeaders(short), ErrWaitTimeout)
	require.ErrorIs(t, callbacks.WaitForGetData(short), ErrWaitTimeout)

	tx := hnwire.NewTransaction(1, nil, []hnwire.TxOut{{Value: 1}}, 0)
	header := hnwire.NewBlockHeader(
		1, hnwire.ZeroHash, tx.Hash(), 0, 0x207fffff, 0,
	)
	block := hnwire.NewBlock(header, []*hnwire.Transaction{tx})
	getData := hnwire.NewMsgGetData(
		hnwire.NewInvVect(hnwire.InvTypeTx, tx.Hash()),
	)

	require.NoError(t, callbacks.Deliver(conn, &hnwire.MsgReject{
		Message: hnwire.CmdTx.String(),
		Code:    hnwire.RejectInvalid,
		Reason:  "bad-txns",
		Hash:    tx.Hash(),
	}))
	require.NoError(t, callbacks.Deliver(conn, hnwire.NewMsgBlock(block)))
	require.NoError(t, callbacks.Deliver(conn, getData))
	require.NoError(t, callbacks.Deliver(conn, &hnwire.MsgGetHeaders{}))
	require.NoError(t, callbacks.Deliver(
		conn, hnwire.NewMsgProtoconf(hnwire.MaxProtocolRecvPayloadLength),
	))

	require.NoError(t, callbacks.WaitForReject(short))
	require.NoError(t, callbacks.WaitForProtoconf(short))
	require.NoError(t, callbacks.WaitForGetHeaders(short))
	require.NoError(t, callbacks.WaitForBlock(block.Hash(), short))
	require.NoError(t, callbacks.WaitForGetData(short, tx.Hash()))

	require.ErrorIs(t, callbacks.WaitForBlock(hnwire.ZeroHash, short),
		ErrWaitTimeout)
	require.ErrorIs(t, callbacks.WaitForGetData(short, hnwire.ZeroHash),
		ErrWaitTimeout)
	require.ErrorIs(t, callbacks.WaitForInv(nil, short), ErrSingleInv)

	// A custom predicate sees the same state.
	err := callbacks.WaitUntil("two kinds", func(v StateView) bool {
		return v.Count(hnwire.CmdBlock) == 1 &&
			v.Last(hnwire.CmdReject).IsSome() &&
			!v.Connected() && !v.VerackReceived()
	}, short)
	require.NoError(t, err)
}

// TestDeliverSleep checks that the deliver sleep can be changed at
// runtime.
func TestDeliverSleep(t *testing.T) {
	t.Parallel()

	callbacks := newTestCallbacks(t)
	require.Zero(t, callbacks.DeliverSleep())

	const sleep = 20 * time.Millisecond
	callbacks.SetDeliverSleep(sleep)
	require.Equal(t, sleep, callbacks.DeliverSleep())

	start := time.Now()
	require.NoError(t, callbacks.Deliver(
		newRecordingConn(), &hnwire.MsgMemPool{},
	))
	require.GreaterOrEqual(t, time.Since(start), sleep)
}

// TestNewWithoutScheduler checks that a scheduler is required.
func TestNewWithoutScheduler(t *testing.T) {
	t.Parallel()

	_, err := NewNodeCallbacks(&CallbacksConfig{})
	require.ErrorIs(t, err, ErrNoScheduler)

	_, err = NewConn(&Config{})
	require.ErrorIs(t, err, ErrNoScheduler)
}
