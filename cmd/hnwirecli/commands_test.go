package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/stretchr/testify/require"
)

// run runs the app with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(append([]string{"hnwirecli"}, args...))

	return strings.TrimSpace(out.String()), err
}

func testTx() *hnwire.Transaction {
	return hnwire.NewTransaction(
		1,
		[]hnwire.TxIn{{
			PreviousOutPoint: hnwire.OutPoint{Index: 0xffffffff},
			SignatureScript:  []byte{0x51},
			Sequence:         0xffffffff,
		}},
		[]hnwire.TxOut{{Value: 50 * hnwire.Coin, PkScript: []byte{0x51}}},
		0,
	)
}

// TestPingRoundTrip asserts that a framed ping decodes back to its nonce.
func TestPingRoundTrip(t *testing.T) {
	t.Parallel()

	frameHex, err := run(t, "ping", "--nonce", "42")
	require.NoError(t, err)

	data, err := hex.DecodeString(frameHex)
	require.NoError(t, err)
	msg, n, err := hnwire.ReadMessage(
		data, hnwire.RegTest, hnwire.MyVersion, hnwire.MyVersion,
	)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, hnwire.NewMsgPing(42), msg)

	out, err := run(t, "decode", frameHex)
	require.NoError(t, err)

	var info frameInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "ping", info.Command)
	require.Equal(t, 8, info.Length)
	require.Equal(t, len(data), info.Consumed)
	require.Contains(t, info.Message, "42")
}

// TestDecodeWrongNetwork asserts that a frame of another network is
// rejected.
func TestDecodeWrongNetwork(t *testing.T) {
	t.Parallel()

	frameHex, err := run(t, "--network", "mainnet", "ping")
	require.NoError(t, err)

	_, err = run(t, "decode", frameHex)
	require.ErrorIs(t, err, hnwire.ErrBadMagic)

	_, err = run(t, "--network", "mainnet", "decode", frameHex)
	require.NoError(t, err)
}

// TestDecodeIncomplete asserts that a truncated frame is reported.
func TestDecodeIncomplete(t *testing.T) {
	t.Parallel()

	frameHex, err := run(t, "ping")
	require.NoError(t, err)

	_, err = run(t, "decode", frameHex[:len(frameHex)-2])
	require.ErrorContains(t, err, "incomplete frame")

	_, err = run(t, "decode")
	require.ErrorIs(t, err, errMissingHex)
}

// TestFrameGeneric asserts that a raw payload is framed with its checksum.
func TestFrameGeneric(t *testing.T) {
	t.Parallel()

	frameHex, err := run(t, "frame", "--command", "xping", "0102")
	require.NoError(t, err)

	data, err := hex.DecodeString(frameHex)
	require.NoError(t, err)
	require.Len(t, data, hnwire.HeaderSize+2)

	sumHex, err := run(t, "checksum", "0102")
	require.NoError(t, err)
	sum := hnwire.Checksum([]byte{1, 2})
	require.Equal(t, hex.EncodeToString(sum[:]), sumHex)
	require.Equal(
		t, sumHex,
		hex.EncodeToString(data[hnwire.HeaderSize-4:hnwire.HeaderSize]),
	)

	// Decoding an unknown command fails.
	_, err = run(t, "decode", frameHex)
	var unknown *hnwire.UnknownCommandError
	require.ErrorAs(t, err, &unknown)

	_, err = run(t, "frame", "0102")
	require.Error(t, err)
}

// TestHash asserts the display hashes of a transaction and a block.
func TestHash(t *testing.T) {
	t.Parallel()

	tx := testTx()
	txHex, err := hnwire.ToHex(tx)
	require.NoError(t, err)

	out, err := run(t, "hash", "--tx", txHex)
	require.NoError(t, err)
	require.Equal(t, tx.DisplayHash(), out)

	block := hnwire.NewBlock(
		hnwire.NewBlockHeader(
			1, hnwire.ZeroHash, tx.Hash(), 1296688602, 0x207fffff,
			2,
		),
		[]*hnwire.Transaction{tx},
	)
	blockHex, err := hnwire.ToHex(block)
	require.NoError(t, err)

	out, err = run(t, "hash", blockHex)
	require.NoError(t, err)
	require.Equal(t, block.DisplayHash(), out)

	_, err = run(t, "hash", "zz")
	require.Error(t, err)
}

// TestListCommands asserts that every typed command is listed.
func TestListCommands(t *testing.T) {
	t.Parallel()

	out, err := run(t, "commands")
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	require.Len(t, names, len(hnwire.Commands()))
	require.Contains(t, names, "cmpctblock")
}
