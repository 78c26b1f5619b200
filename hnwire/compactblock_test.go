package hnwire

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// solvedBlock returns a solved regtest block with n distinct transactions.
func solvedBlock(t *testing.T, n int) *Block {
	t.Helper()

	txns := make([]*Transaction, 0, n)
	for i := 0; i < n; i++ {
		txns = append(txns, coinbaseTx(uint32(i)))
	}

	header := NewBlockHeader(1, ZeroHash, ZeroHash, 1, regTestBits, 0)
	block, err := NewBlock(header, txns).WithMerkleRoot().Solve(
		context.Background(),
	)
	require.NoError(t, err)

	return block
}

// TestCompactBlockFromBlock checks the default compact form of a five
// transaction block and its round trip through the wire form.
func TestCompactBlockFromBlock(t *testing.T) {
	t.Parallel()

	block := solvedBlock(t, 5)
	const nonce = 0x1122334455667788

	cmpct, err := NewHeaderAndShortIDs(block, nonce, nil)
	require.NoError(t, err)
	require.Len(t, cmpct.ShortIDs, 4)
	require.Len(t, cmpct.PrefilledTxn, 1)
	require.Zero(t, cmpct.PrefilledTxn[0].Index)
	require.Equal(t, block.Transactions()[0], cmpct.PrefilledTxn[0].Tx)

	k0, k1 := cmpct.SipHashKeys()
	for i, tx := range block.Transactions()[1:] {
		id := CalculateShortID(k0, k1, tx.Hash())
		require.Equal(t, id, cmpct.ShortIDs[i])
		require.LessOrEqual(t, id, uint64(shortIDMask))
	}

	p2p, err := cmpct.ToP2P()
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, (&MsgCmpctBlock{HeaderAndShortIDs: *p2p}).Encode(
		&b, MyVersion,
	))

	var decoded MsgCmpctBlock
	require.NoError(t, decoded.Decode(&b, MyVersion))
	require.Equal(t, *p2p, decoded.HeaderAndShortIDs)

	back, err := NewHeaderAndShortIDsFromP2P(&decoded.HeaderAndShortIDs)
	require.NoError(t, err)
	require.Equal(t, cmpct, back)
}

// TestCompactBlockPrefillIndexes checks that absolute prefill indexes become
// differential on the wire.
func TestCompactBlockPrefillIndexes(t *testing.T) {
	t.Parallel()

	block := solvedBlock(t, 6)

	cmpct, err := NewHeaderAndShortIDs(block, 1, []int{0, 2, 5})
	require.NoError(t, err)
	require.Len(t, cmpct.ShortIDs, 3)

	p2p, err := cmpct.ToP2P()
	require.NoError(t, err)

	diffs := make([]uint64, 0, len(p2p.PrefilledTxn))
	for _, ptx := range p2p.PrefilledTxn {
		diffs = append(diffs, ptx.Index)
	}
	require.Equal(t, []uint64{0, 1, 2}, diffs)
	require.Equal(t, uint64(3), p2p.ShortIDsLength)
	require.Equal(t, uint64(3), p2p.PrefilledTxnLength)

	_, err = NewHeaderAndShortIDs(block, 1, []int{6})
	require.ErrorIs(t, err, ErrPrefillRange)

	_, err = NewHeaderAndShortIDs(block, 1, []int{-1})
	require.ErrorIs(t, err, ErrPrefillRange)

	unordered, err := NewHeaderAndShortIDs(block, 1, []int{2, 1})
	require.NoError(t, err)
	_, err = unordered.ToP2P()
	require.ErrorIs(t, err, ErrIndexOrder)
}

// TestDifferentialIndexes checks that the differential encoding is a
// bijection on strictly increasing index lists.
func TestDifferentialIndexes(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(r *rapid.T) {
		gaps := rapid.SliceOfN(
			rapid.Uint64Range(0, 1<<20), 0, 20,
		).Draw(r, "gaps")

		var abs []uint64
		for i, gap := range gaps {
			if i == 0 {
				abs = append(abs, gap)
				continue
			}
			abs = append(abs, abs[i-1]+gap+1)
		}

		diffs, err := AbsoluteToDifferential(abs)
		require.NoError(r, err)
		require.Len(r, diffs, len(abs))
		if len(gaps) > 0 {
			require.Equal(r, gaps, diffs)
		}

		back, err := DifferentialToAbsolute(diffs)
		require.NoError(r, err)
		require.Len(r, back, len(abs))
		for i := range abs {
			require.Equal(r, abs[i], back[i])
		}
	})
}

// TestDifferentialIndexErrors checks the lists that have no encoding.
func TestDifferentialIndexErrors(t *testing.T) {
	t.Parallel()

	_, err := AbsoluteToDifferential([]uint64{1, 1})
	require.ErrorIs(t, err, ErrIndexOrder)

	_, err = AbsoluteToDifferential([]uint64{5, 3})
	require.ErrorIs(t, err, ErrIndexOrder)

	_, err = DifferentialToAbsolute([]uint64{1 << 63, 1 << 63})
	require.ErrorIs(t, err, ErrIndexOverflow)

	req, err := NewBlockTransactionsRequest(ZeroHash, []uint64{1, 3, 4, 10})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 1, 0, 5}, req.Indexes)

	abs, err := req.ToAbsolute()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 3, 4, 10}, abs)

	empty, err := NewBlockTransactionsRequest(ZeroHash, nil)
	require.NoError(t, err)
	require.Nil(t, empty.Indexes)
}

// TestShortIDWireForm checks that short ids take six little endian bytes
// and that a nil prefilled transaction is refused.
func TestShortIDWireForm(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	require.NoError(t, writeShortID(&b, 0x0000060504030201))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, b.Bytes())

	id, err := readShortID(&b)
	require.NoError(t, err)
	require.Equal(t, uint64(0x060504030201), id)

	p2p := P2PHeaderAndShortIDs{
		PrefilledTxn: []PrefilledTx{{Index: 0}},
	}
	require.ErrorIs(t, p2p.Encode(&b, MyVersion), ErrNilTransaction)
}
