package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"
)

// StateView is a read-only view of the callbacks' state. It is only valid
// inside a Predicate, while the delivery lock is held.
type StateView struct {
	n *NodeCallbacks
}

// Predicate is a condition evaluated by WaitUntil.
type Predicate func(v StateView) bool

func (n *NodeCallbacks) view() StateView {
	return StateView{n: n}
}

// Count returns the number of cmd messages received since the last
// ClearMessages.
func (v StateView) Count(cmd hnwire.Command) int {
	stats, ok := v.n.stats[cmd]
	if !ok {
		return 0
	}

	return stats.Count
}

// Last returns the latest cmd message received.
func (v StateView) Last(cmd hnwire.Command) fn.Option[hnwire.Message] {
	stats, ok := v.n.stats[cmd]
	if !ok {
		return fn.None[hnwire.Message]()
	}

	return fn.Some(stats.Last)
}

// Connected reports whether the attached connection is open.
func (v StateView) Connected() bool {
	return v.n.connected
}

// VerackReceived reports whether the handshake completed.
func (v StateView) VerackReceived() bool {
	return v.n.verackReceived
}

// lastAs returns the latest cmd message if it is an M.
func lastAs[M hnwire.Message](v StateView, cmd hnwire.Command) (M, bool) {
	var zero M

	stats, ok := v.n.stats[cmd]
	if !ok {
		return zero, false
	}
	m, ok := stats.Last.(M)

	return m, ok
}

// WaitUntil blocks until pred holds or timeout elapses, in which case
// ErrWaitTimeout is returned. The delivery lock is held while pred runs
// and released in between.
func (n *NodeCallbacks) WaitUntil(name string, pred Predicate,
	timeout time.Duration) error {

	return n.poll(name, timeout, func() (bool, error) {
		n.lock.Lock()
		defer n.lock.Unlock()

		return pred(n.view()), nil
	})
}

// poll evaluates check every poll interval until it reports done, fails or
// timeout elapses.
func (n *NodeCallbacks) poll(name string, timeout time.Duration,
	check func() (bool, error)) error {

	done, err := check()
	if err != nil || done {
		return err
	}

	t := ticker.New(n.cfg.PollInterval)
	t.Resume()
	defer t.Stop()

	deadline := n.cfg.Clock.TickAfter(timeout)
	for {
		select {
		case <-t.Ticks():
		case <-deadline:
			done, err := check()
			if err != nil || done {
				return err
			}

			return fmt.Errorf("%w: %v after %v", ErrWaitTimeout,
				name, timeout)
		}

		done, err := check()
		if err != nil || done {
			return err
		}
	}
}

// WaitForDisconnect waits until the connection is closed.
func (n *NodeCallbacks) WaitForDisconnect(timeout time.Duration) error {
	return n.WaitUntil("disconnect", func(v StateView) bool {
		return !v.Connected()
	}, timeout)
}

// WaitForBlock waits until the latest block received has the given hash.
func (n *NodeCallbacks) WaitForBlock(hash hnwire.Hash256,
	timeout time.Duration) error {

	return n.WaitUntil("block "+hash.String(), func(v StateView) bool {
		block, ok := lastAs[*hnwire.MsgBlock](v, hnwire.CmdBlock)

		return ok && block.Block != nil && block.Block.Hash() == hash
	}, timeout)
}

// WaitForGetData waits for a getdata. When hashes are given, the latest
// getdata must request every one of them.
func (n *NodeCallbacks) WaitForGetData(timeout time.Duration,
	hashes ...hnwire.Hash256) error {

	return n.WaitUntil("getdata", func(v StateView) bool {
		getData, ok := lastAs[*hnwire.MsgGetData](v, hnwire.CmdGetData)
		if !ok {
			return false
		}

		requested := make(map[hnwire.Hash256]struct{})
		for _, iv := range getData.InvList {
			requested[iv.Hash] = struct{}{}
		}
		for _, hash := range hashes {
			if _, ok := requested[hash]; !ok {
				return false
			}
		}

		return true
	}, timeout)
}

// WaitForGetHeaders waits for a getheaders.
func (n *NodeCallbacks) WaitForGetHeaders(timeout time.Duration) error {
	return n.WaitUntil("getheaders", func(v StateView) bool {
		return v.Last(hnwire.CmdGetHeaders).IsSome()
	}, timeout)
}

// WaitForInv waits until the first vector of the latest inv equals the
// single vector in expected.
func (n *NodeCallbacks) WaitForInv(expected []hnwire.InvVect,
	timeout time.Duration) error {

	if len(expected) != 1 {
		return fmt.Errorf("%w: got %d", ErrSingleInv, len(expected))
	}

	return n.WaitUntil("inv", func(v StateView) bool {
		inv, ok := lastAs[*hnwire.MsgInv](v, hnwire.CmdInv)

		return ok && len(inv.InvList) > 0 &&
			inv.InvList[0] == expected[0]
	}, timeout)
}

// WaitForVerack waits for a verack.
func (n *NodeCallbacks) WaitForVerack(timeout time.Duration) error {
	return n.waitForCount(hnwire.CmdVerAck, timeout)
}

// WaitForReject waits for a reject.
func (n *NodeCallbacks) WaitForReject(timeout time.Duration) error {
	return n.waitForCount(hnwire.CmdReject, timeout)
}

// WaitForProtoconf waits for a protoconf.
func (n *NodeCallbacks) WaitForProtoconf(timeout time.Duration) error {
	return n.waitForCount(hnwire.CmdProtoconf, timeout)
}

func (n *NodeCallbacks) waitForCount(cmd hnwire.Command,
	timeout time.Duration) error {

	return n.WaitUntil(cmd.String(), func(v StateView) bool {
		return v.Count(cmd) > 0
	}, timeout)
}

// SendAndPing sends msg and syncs with a ping.
func (n *NodeCallbacks) SendAndPing(msg hnwire.Message,
	timeout time.Duration) error {

	if err := n.SendMessage(msg); err != nil {
		return &EarlyDisconnectError{Cause: err}
	}

	return n.SyncWithPing(timeout)
}

// SyncWithPing makes sure the node processed everything sent so far. It
// sends a ping carrying the ping counter, waits for the matching pong and
// then for the node to report no block or transaction processing in
// flight. Losing the connection or the RPC server on the way yields an
// *EarlyDisconnectError.
func (n *NodeCallbacks) SyncWithPing(timeout time.Duration) error {
	nonce := n.PingCounter()
	if err := n.SendMessage(hnwire.NewMsgPing(nonce)); err != nil {
		return &EarlyDisconnectError{Cause: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	name := fmt.Sprintf("pong %d", nonce)
	err := n.poll(name, timeout, func() (bool, error) {
		n.lock.Lock()
		v := n.view()
		connected := v.Connected()
		pong, ok := lastAs[*hnwire.MsgPong](v, hnwire.CmdPong)
		n.lock.Unlock()

		if !connected {
			return false, &EarlyDisconnectError{
				Cause: ErrNotConnected,
			}
		}
		if !ok || pong.Nonce != nonce {
			return false, nil
		}
		if n.cfg.RPC == nil {
			return true, nil
		}

		activity, err := n.cfg.RPC.BlockchainActivity(ctx)
		switch {
		// The deadline is reported as a wait timeout.
		case err != nil && ctx.Err() != nil:
			return false, nil

		case err != nil:
			return false, &EarlyDisconnectError{Cause: err}
		}

		return activity.Total() == 0, nil
	})
	if err != nil {
		return err
	}

	n.lock.Lock()
	n.pingCounter++
	n.lock.Unlock()

	return nil
}
