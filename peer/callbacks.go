package peer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultPollInterval is how often the wait helpers evaluate their
// condition.
const DefaultPollInterval = 50 * time.Millisecond

// Hook processes a delivered message. It runs with the delivery lock held,
// so it replies through conn or NodeCallbacks.SendMessage and must not call
// the other methods of Conn or NodeCallbacks.
type Hook func(conn PeerConn, msg hnwire.Message) error

// noopHook is the hook of every command without a default behavior.
func noopHook(PeerConn, hnwire.Message) error {
	return nil
}

// typedHook adapts a hook taking a concrete message type.
func typedHook[M hnwire.Message](f func(PeerConn, M) error) Hook {
	return func(conn PeerConn, msg hnwire.Message) error {
		m, ok := msg.(M)
		if !ok {
			return fmt.Errorf("unexpected %T for %v", msg,
				msg.Command())
		}

		return f(conn, m)
	}
}

// MessageStats is what the callbacks recorded about one command.
type MessageStats struct {
	// Count is the number of messages received since the last
	// ClearMessages.
	Count int

	// Last is the latest message received.
	Last hnwire.Message

	// Timestamp is the time the latest message was delivered.
	Timestamp time.Time

	// Index is the position of the latest message in the sequence of
	// every message delivered.
	Index uint64
}

// CallbacksConfig holds the parameters of NodeCallbacks.
type CallbacksConfig struct {
	// Scheduler provides the delivery lock shared with the connection.
	Scheduler Registrar

	// RPC is queried by SyncWithPing. When nil, SyncWithPing only waits
	// for the pong.
	RPC ActivityReporter

	// Clock provides timestamps and wait deadlines.
	Clock clock.Clock

	// PollInterval is how often the wait helpers evaluate their
	// condition.
	PollInterval time.Duration

	// DeliverSleep delays every delivery.
	DeliverSleep time.Duration
}

// NodeCallbacks is the dispatch layer between a connection and test code.
// It records every delivered message and hands it to the hook of its
// command. Test code waits on the recorded messages, overrides hooks and
// sends through the attached connection.
type NodeCallbacks struct {
	cfg CallbacksConfig

	// lock is the delivery lock shared with the connection.
	lock sync.Locker

	// conn is the attached connection. It is read without the lock so
	// that hooks can send.
	conn atomic.Pointer[Conn]

	// The fields below are guarded by lock.
	hooks          map[hnwire.Command]Hook
	stats          map[hnwire.Command]*MessageStats
	timeIndex      uint64
	connected      bool
	verackReceived bool
	deliverSleep   time.Duration
	pingCounter    uint64
}

// A compile time check to ensure NodeCallbacks implements Callbacks.
var _ Callbacks = (*NodeCallbacks)(nil)

// NewNodeCallbacks creates callbacks with the default hooks.
func NewNodeCallbacks(cfg *CallbacksConfig) (*NodeCallbacks, error) {
	if cfg.Scheduler == nil {
		return nil, ErrNoScheduler
	}

	n := &NodeCallbacks{
		cfg:          *cfg,
		lock:         cfg.Scheduler.DeliveryLock(),
		stats:        make(map[hnwire.Command]*MessageStats),
		deliverSleep: cfg.DeliverSleep,
		pingCounter:  1,
	}
	if n.cfg.Clock == nil {
		n.cfg.Clock = clock.NewDefaultClock()
	}
	if n.cfg.PollInterval <= 0 {
		n.cfg.PollInterval = DefaultPollInterval
	}
	n.hooks = n.defaultHooks()

	return n, nil
}

// defaultHooks returns a fresh hook table: every command maps to a no-op
// except the ones driving the handshake, pings and inventory requests.
func (n *NodeCallbacks) defaultHooks() map[hnwire.Command]Hook {
	hooks := make(map[hnwire.Command]Hook)
	for _, cmd := range hnwire.Commands() {
		hooks[cmd] = noopHook
	}

	hooks[hnwire.CmdInv] = typedHook(n.onInv)
	hooks[hnwire.CmdPing] = typedHook(n.onPing)
	hooks[hnwire.CmdVersion] = typedHook(n.onVersion)
	hooks[hnwire.CmdVerAck] = typedHook(n.onVerAck)

	return hooks
}

// onInv requests every announced item except the error ones.
func (n *NodeCallbacks) onInv(conn PeerConn, msg *hnwire.MsgInv) error {
	want := hnwire.NewMsgGetData()
	for _, iv := range msg.InvList {
		if iv.Type != hnwire.InvTypeError {
			want.InvList = append(want.InvList, iv)
		}
	}
	if len(want.InvList) == 0 {
		return nil
	}

	return conn.SendMessage(want)
}

// onPing answers pings once the peer speaks a version that expects pongs.
func (n *NodeCallbacks) onPing(conn PeerConn, msg *hnwire.MsgPing) error {
	if conn.SendVersion() <= hnwire.BIP0031Version {
		return nil
	}

	return conn.SendMessage(hnwire.NewMsgPong(msg.Nonce))
}

// onVersion acknowledges the peer's version, announces our receive limit
// and settles the send version on the lower of both versions.
func (n *NodeCallbacks) onVersion(conn PeerConn,
	msg *hnwire.MsgVersion) error {

	var peerVer uint32
	if msg.ProtocolVersion > 0 {
		peerVer = uint32(msg.ProtocolVersion)
	}

	if peerVer >= hnwire.ChecksumVersion {
		err := conn.SendMessage(&hnwire.MsgVerAck{})
		if err != nil {
			return err
		}

		err = conn.SendMessage(hnwire.NewMsgProtoconf(
			hnwire.MaxProtocolRecvPayloadLength,
		))
		if err != nil {
			return err
		}
	}

	conn.SetSendVersion(min(hnwire.MyVersion, peerVer))
	if peerVer < hnwire.ChecksumVersion {
		conn.SetRecvVersion(conn.SendVersion())
	}
	conn.SetPeerServices(msg.Services)

	return nil
}

// onVerAck completes the handshake.
func (n *NodeCallbacks) onVerAck(conn PeerConn, _ *hnwire.MsgVerAck) error {
	conn.SetRecvVersion(conn.SendVersion())
	n.verackReceived = true

	return nil
}

// AddConnection attaches conn, through which SendMessage sends.
//
// NOTE: Part of the Callbacks interface.
func (n *NodeCallbacks) AddConnection(conn *Conn) {
	n.conn.Store(conn)
}

// OnOpen marks the callbacks connected.
//
// NOTE: Part of the Callbacks interface.
func (n *NodeCallbacks) OnOpen(PeerConn) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.connected = true
}

// OnClose marks the callbacks disconnected and detaches the connection.
//
// NOTE: Part of the Callbacks interface.
func (n *NodeCallbacks) OnClose(PeerConn) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.connected = false
	n.conn.Store(nil)
}

// Deliver records msg and runs the hook of its command. A failing hook is
// logged with the message and its error returned as a *HookError.
//
// NOTE: Part of the Callbacks interface.
func (n *NodeCallbacks) Deliver(conn PeerConn, msg hnwire.Message) error {
	if sleep := n.DeliverSleep(); sleep > 0 {
		<-n.cfg.Clock.TickAfter(sleep)
	}

	n.lock.Lock()
	defer n.lock.Unlock()

	cmd := msg.Command()
	stats, ok := n.stats[cmd]
	if !ok {
		stats = &MessageStats{}
		n.stats[cmd] = stats
	}
	stats.Count++
	stats.Last = msg
	stats.Timestamp = n.cfg.Clock.Now()
	stats.Index = n.timeIndex
	n.timeIndex++

	hook, ok := n.hooks[cmd]
	if !ok {
		return nil
	}

	if err := hook(conn, msg); err != nil {
		log.Errorf("Error delivering %v: %v", newLogClosure(
			func() string {
				return spew.Sdump(msg)
			}), err,
		)

		return &HookError{Command: cmd, Err: err}
	}

	return nil
}

// SetHook replaces the hook of cmd. A nil hook restores the no-op.
func (n *NodeCallbacks) SetHook(cmd hnwire.Command, hook Hook) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if hook == nil {
		hook = noopHook
	}
	n.hooks[cmd] = hook
}

// OverrideHooks replaces the given hooks and returns a function restoring
// the previous ones.
func (n *NodeCallbacks) OverrideHooks(
	overrides map[hnwire.Command]Hook) func() {

	n.lock.Lock()
	defer n.lock.Unlock()

	saved := make(map[hnwire.Command]Hook, len(overrides))
	for cmd, hook := range overrides {
		saved[cmd] = n.hooks[cmd]
		if hook == nil {
			hook = noopHook
		}
		n.hooks[cmd] = hook
	}

	return func() {
		n.lock.Lock()
		defer n.lock.Unlock()

		for cmd, hook := range saved {
			if hook == nil {
				delete(n.hooks, cmd)
				continue
			}
			n.hooks[cmd] = hook
		}
	}
}

// SetDeliverSleep delays every following delivery by d.
func (n *NodeCallbacks) SetDeliverSleep(d time.Duration) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.deliverSleep = d
}

// DeliverSleep returns the delay applied to every delivery.
func (n *NodeCallbacks) DeliverSleep() time.Duration {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.deliverSleep
}

// ClearMessages resets the receive counts. The latest message of each
// command is kept.
func (n *NodeCallbacks) ClearMessages() {
	n.lock.Lock()
	defer n.lock.Unlock()

	for _, stats := range n.stats {
		stats.Count = 0
	}
}

// Snapshot returns a copy of the statistics of every command received so
// far.
func (n *NodeCallbacks) Snapshot() map[hnwire.Command]MessageStats {
	n.lock.Lock()
	defer n.lock.Unlock()

	snapshot := make(map[hnwire.Command]MessageStats, len(n.stats))
	for cmd, stats := range n.stats {
		snapshot[cmd] = *stats
	}

	return snapshot
}

// MessageCount returns the number of cmd messages received since the last
// ClearMessages.
func (n *NodeCallbacks) MessageCount(cmd hnwire.Command) int {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.view().Count(cmd)
}

// LastMessage returns the latest cmd message received.
func (n *NodeCallbacks) LastMessage(
	cmd hnwire.Command) fn.Option[hnwire.Message] {

	n.lock.Lock()
	defer n.lock.Unlock()

	return n.view().Last(cmd)
}

// MessageTimestamp returns the time the latest cmd message was delivered.
func (n *NodeCallbacks) MessageTimestamp(
	cmd hnwire.Command) fn.Option[time.Time] {

	n.lock.Lock()
	defer n.lock.Unlock()

	stats, ok := n.stats[cmd]
	if !ok {
		return fn.None[time.Time]()
	}

	return fn.Some(stats.Timestamp)
}

// MessageIndex returns the position of the latest cmd message in the
// sequence of every message delivered.
func (n *NodeCallbacks) MessageIndex(cmd hnwire.Command) fn.Option[uint64] {
	n.lock.Lock()
	defer n.lock.Unlock()

	stats, ok := n.stats[cmd]
	if !ok {
		return fn.None[uint64]()
	}

	return fn.Some(stats.Index)
}

// Connected reports whether the attached connection is open.
func (n *NodeCallbacks) Connected() bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.connected
}

// VerackReceived reports whether the handshake completed.
func (n *NodeCallbacks) VerackReceived() bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.verackReceived
}

// PingCounter returns the nonce of the next SyncWithPing.
func (n *NodeCallbacks) PingCounter() uint64 {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.pingCounter
}

// Connection returns the attached connection.
func (n *NodeCallbacks) Connection() fn.Option[*Conn] {
	conn := n.conn.Load()
	if conn == nil {
		return fn.None[*Conn]()
	}

	return fn.Some(conn)
}

// SendMessage sends msg through the attached connection. It does not take
// the delivery lock, so hooks may call it.
func (n *NodeCallbacks) SendMessage(msg hnwire.Message) error {
	conn := n.conn.Load()
	if conn == nil {
		log.Errorf("Cannot send %v: no connection to node",
			msg.Command())

		return fmt.Errorf("%w: no connection for %v", ErrNotConnected,
			msg.Command())
	}

	return conn.SendMessage(msg)
}
