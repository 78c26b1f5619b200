package peer

import (
	"context"
	"sync"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/TuringBitChain/TBCNODE/netloop"
	"github.com/TuringBitChain/TBCNODE/noderpc"
)

// PeerConn is the connection as seen by hooks. The implementation handed to
// hooks assumes the delivery lock is held, so a hook can reply without
// taking the lock again.
type PeerConn interface {
	// SendMessage frames msg and queues it for the scheduler to write. It
	// fails with ErrNotConnected unless the connection is connected.
	SendMessage(msg hnwire.Message) error

	// SendVersion is the protocol version outbound frames are built
	// with.
	SendVersion() uint32

	// SetSendVersion changes the protocol version of outbound frames.
	SetSendVersion(ver uint32)

	// RecvVersion is the protocol version inbound frames are parsed
	// with.
	RecvVersion() uint32

	// SetRecvVersion changes the protocol version of inbound frames.
	SetRecvVersion(ver uint32)

	// PeerServices returns the service bits the peer advertised.
	PeerServices() uint64

	// SetPeerServices records the service bits the peer advertised.
	SetPeerServices(services uint64)

	// MaxInvElements is the largest inventory the peer accepts in one
	// message.
	MaxInvElements() uint64

	// SetMaxInvElements changes the largest inventory the peer accepts.
	SetMaxInvElements(n uint64)

	// State returns the state of the connection.
	State() ConnState

	// Disconnect asks the scheduler to close the connection.
	Disconnect()
}

// Callbacks is the dispatch layer a connection delivers to.
type Callbacks interface {
	// AddConnection attaches the connection to the callbacks.
	AddConnection(conn *Conn)

	// OnOpen is called once the connection is connected.
	OnOpen(conn PeerConn)

	// OnClose is called once the connection is closed.
	OnClose(conn PeerConn)

	// Deliver dispatches a received message. A returned error closes
	// the connection.
	Deliver(conn PeerConn, msg hnwire.Message) error
}

// Registrar is the network loop connections register with.
type Registrar interface {
	// Register hands the connection to the loop.
	Register(d netloop.Dispatcher) error

	// DeliveryLock returns the lock shared by the connections and the
	// callbacks.
	DeliveryLock() sync.Locker
}

// ActivityReporter reports the asynchronous work still running on the node.
type ActivityReporter interface {
	// BlockchainActivity returns the node's in flight block and
	// transaction processing.
	BlockchainActivity(ctx context.Context) (noderpc.Activity, error)
}

// A compile time check to ensure the scheduler and the RPC client satisfy
// the interfaces above.
var (
	_ Registrar        = (*netloop.Scheduler)(nil)
	_ ActivityReporter = (*noderpc.Client)(nil)
)
