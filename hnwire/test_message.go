package hnwire

import (
	"net/netip"

	"github.com/lightningnetwork/lnd/fn/v2"
	"pgregory.net/rapid"
)

// TestMessage is an interface that extends the base Message interface with a
// method to populate the message with random testing data.
type TestMessage interface {
	Message

	// RandTestMessage populates the message with random data suitable for
	// testing. It uses the rapid testing framework to generate random
	// values.
	RandTestMessage(t *rapid.T) Message
}

// Compile time checks to ensure every decodable message implements the
// TestMessage interface.
var (
	_ TestMessage = (*MsgVersion)(nil)
	_ TestMessage = (*MsgProtoconf)(nil)
	_ TestMessage = (*MsgVerAck)(nil)
	_ TestMessage = (*MsgAddr)(nil)
	_ TestMessage = (*MsgAlert)(nil)
	_ TestMessage = (*MsgInv)(nil)
	_ TestMessage = (*MsgGetData)(nil)
	_ TestMessage = (*MsgGetBlocks)(nil)
	_ TestMessage = (*MsgTx)(nil)
	_ TestMessage = (*MsgBlock)(nil)
	_ TestMessage = (*MsgGetAddr)(nil)
	_ TestMessage = (*MsgPing)(nil)
	_ TestMessage = (*MsgPong)(nil)
	_ TestMessage = (*MsgHeaders)(nil)
	_ TestMessage = (*MsgGetHeaders)(nil)
	_ TestMessage = (*MsgReject)(nil)
	_ TestMessage = (*MsgMemPool)(nil)
	_ TestMessage = (*MsgFeeFilter)(nil)
	_ TestMessage = (*MsgSendHeaders)(nil)
	_ TestMessage = (*MsgSendCmpct)(nil)
	_ TestMessage = (*MsgCmpctBlock)(nil)
	_ TestMessage = (*MsgGetBlockTxn)(nil)
	_ TestMessage = (*MsgBlockTxn)(nil)
)

// RandBytes draws a byte slice of up to maxLen bytes. An empty draw yields
// nil, matching what the decoder produces.
func RandBytes(t *rapid.T, label string, maxLen int) []byte {
	b := rapid.SliceOfN(rapid.Byte(), 0, maxLen).Draw(t, label)
	if len(b) == 0 {
		return nil
	}

	return b
}

// RandHash draws a random hash.
func RandHash(t *rapid.T, label string) Hash256 {
	var h Hash256
	b := rapid.SliceOfN(rapid.Byte(), HashSize, HashSize).Draw(t, label)
	copy(h[:], b)

	return h
}

// RandHashes draws up to maxLen random hashes, nil when empty.
func RandHashes(t *rapid.T, label string, maxLen int) []Hash256 {
	n := rapid.IntRange(0, maxLen).Draw(t, label+"Len")
	if n == 0 {
		return nil
	}

	hashes := make([]Hash256, n)
	for i := range hashes {
		hashes[i] = RandHash(t, label)
	}

	return hashes
}

// RandNetAddressInVersion draws a random IPv4 address.
func RandNetAddressInVersion(t *rapid.T) NetAddressInVersion {
	var (
		reserved [12]byte
		ip       [4]byte
	)
	copy(reserved[:], rapid.SliceOfN(rapid.Byte(), 12, 12).Draw(
		t, "reserved",
	))
	copy(ip[:], rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, "ip"))

	return NetAddressInVersion{
		Services: rapid.Uint64().Draw(t, "services"),
		Reserved: reserved,
		IP:       netip.AddrFrom4(ip),
		Port:     rapid.Uint16().Draw(t, "port"),
	}
}

// RandTransaction draws a small random transaction.
func RandTransaction(t *rapid.T) *Transaction {
	var txIn []TxIn
	for i := rapid.IntRange(0, 3).Draw(t, "numTxIn"); i > 0; i-- {
		txIn = append(txIn, TxIn{
			PreviousOutPoint: OutPoint{
				Hash:  RandHash(t, "prevHash"),
				Index: rapid.Uint32().Draw(t, "prevIndex"),
			},
			SignatureScript: RandBytes(t, "sigScript", 80),
			Sequence:        rapid.Uint32().Draw(t, "sequence"),
		})
	}

	var txOut []TxOut
	for i := rapid.IntRange(0, 3).Draw(t, "numTxOut"); i > 0; i-- {
		txOut = append(txOut, TxOut{
			Value:    rapid.Int64Range(0, MaxMoney).Draw(t, "value"),
			PkScript: RandBytes(t, "pkScript", 40),
		})
	}

	return NewTransaction(
		rapid.Int32().Draw(t, "txVersion"), txIn, txOut,
		rapid.Uint32().Draw(t, "lockTime"),
	)
}

// RandTransactions draws up to maxLen transactions, nil when empty.
func RandTransactions(t *rapid.T, maxLen int) []*Transaction {
	var txns []*Transaction
	for i := rapid.IntRange(0, maxLen).Draw(t, "numTxns"); i > 0; i-- {
		txns = append(txns, RandTransaction(t))
	}

	return txns
}

// RandBlockHeader draws a random block header.
func RandBlockHeader(t *rapid.T) BlockHeader {
	return NewBlockHeader(
		rapid.Int32().Draw(t, "blockVersion"),
		RandHash(t, "prevBlock"),
		RandHash(t, "merkleRoot"),
		rapid.Uint32().Draw(t, "timestamp"),
		rapid.Uint32().Draw(t, "bits"),
		rapid.Uint32().Draw(t, "nonce"),
	)
}

// RandInvList draws up to maxLen inventory vectors, nil when empty.
func RandInvList(t *rapid.T, maxLen int) []InvVect {
	var invs []InvVect
	for i := rapid.IntRange(0, maxLen).Draw(t, "numInv"); i > 0; i-- {
		invs = append(invs, InvVect{
			Type: rapid.SampledFrom([]InvType{
				InvTypeError, InvTypeTx, InvTypeBlock,
				InvTypeCompactBlock,
			}).Draw(t, "invType"),
			Hash: RandHash(t, "invHash"),
		})
	}

	return invs
}

// RandBlockLocator draws a random block locator.
func RandBlockLocator(t *rapid.T) BlockLocator {
	return BlockLocator{
		Version: rapid.Int32().Draw(t, "locatorVersion"),
		Have:    RandHashes(t, "have", 5),
	}
}

// RandTestMessage populates the message with random data suitable for
// testing. The protocol version is drawn from the boundaries of the
// version-gated fields, and the optional fields follow it.
//
// This is part of the TestMessage interface.
func (m *MsgVersion) RandTestMessage(t *rapid.T) Message {
	version := rapid.SampledFrom([]int32{
		0, 105, int32(AddrFromVersion), 208, int32(ChecksumVersion),
		int32(BIP0031Version), 70000, int32(RelayVersion),
		int32(MyVersion),
	}).Draw(t, "protocolVersion")

	msg := &MsgVersion{
		ProtocolVersion: version,
		Services:        rapid.Uint64().Draw(t, "services"),
		Timestamp:       rapid.Int64().Draw(t, "timestamp"),
		AddrTo:          RandNetAddressInVersion(t),
	}
	if version < int32(AddrFromVersion) {
		return msg
	}

	msg.AddrFrom = fn.Some(RandNetAddressInVersion(t))
	msg.Nonce = fn.Some(rapid.Uint64().Draw(t, "nonce"))
	msg.UserAgent = fn.Some(string(RandBytes(t, "userAgent", 40)))
	if version < int32(ChecksumVersion) {
		return msg
	}

	msg.StartHeight = fn.Some(rapid.Int32().Draw(t, "startHeight"))
	if version < int32(RelayVersion) {
		return msg
	}

	if rapid.Bool().Draw(t, "hasRelay") {
		msg.Relay = fn.Some(rapid.Bool().Draw(t, "relay"))
	}

	return msg
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgProtoconf) RandTestMessage(t *rapid.T) Message {
	return &MsgProtoconf{
		Protoconf: Protoconf{
			NumberOfFields: rapid.Uint64().Draw(t, "numberOfFields"),
			MaxRecvPayloadLength: rapid.Uint32().Draw(
				t, "maxRecvPayloadLength",
			),
		},
	}
}

// RandTestMessage returns an empty verack.
//
// This is part of the TestMessage interface.
func (m *MsgVerAck) RandTestMessage(*rapid.T) Message {
	return &MsgVerAck{}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgAddr) RandTestMessage(t *rapid.T) Message {
	msg := &MsgAddr{}
	for i := rapid.IntRange(0, 4).Draw(t, "numAddr"); i > 0; i-- {
		msg.AddrList = append(msg.AddrList, NetAddress{
			Time:                rapid.Uint32().Draw(t, "time"),
			NetAddressInVersion: RandNetAddressInVersion(t),
		})
	}

	return msg
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgAlert) RandTestMessage(t *rapid.T) Message {
	return &MsgAlert{
		Alert: Alert{
			Payload:   RandBytes(t, "payload", 100),
			Signature: RandBytes(t, "signature", 72),
		},
	}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgInv) RandTestMessage(t *rapid.T) Message {
	return &MsgInv{InvList: RandInvList(t, 5)}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgGetData) RandTestMessage(t *rapid.T) Message {
	return &MsgGetData{InvList: RandInvList(t, 5)}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgGetBlocks) RandTestMessage(t *rapid.T) Message {
	return &MsgGetBlocks{
		Locator:  RandBlockLocator(t),
		HashStop: RandHash(t, "hashStop"),
	}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgTx) RandTestMessage(t *rapid.T) Message {
	return &MsgTx{Tx: RandTransaction(t)}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgBlock) RandTestMessage(t *rapid.T) Message {
	return &MsgBlock{
		Block: NewBlock(RandBlockHeader(t), RandTransactions(t, 3)),
	}
}

// RandTestMessage returns an empty getaddr.
//
// This is part of the TestMessage interface.
func (m *MsgGetAddr) RandTestMessage(*rapid.T) Message {
	return &MsgGetAddr{}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgPing) RandTestMessage(t *rapid.T) Message {
	return &MsgPing{Nonce: rapid.Uint64().Draw(t, "nonce")}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgPong) RandTestMessage(t *rapid.T) Message {
	return &MsgPong{Nonce: rapid.Uint64().Draw(t, "nonce")}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgHeaders) RandTestMessage(t *rapid.T) Message {
	msg := &MsgHeaders{}
	for i := rapid.IntRange(0, 4).Draw(t, "numHeaders"); i > 0; i-- {
		msg.Headers = append(msg.Headers, RandBlockHeader(t))
	}

	return msg
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgGetHeaders) RandTestMessage(t *rapid.T) Message {
	return &MsgGetHeaders{
		Locator:  RandBlockLocator(t),
		HashStop: RandHash(t, "hashStop"),
	}
}

// RandTestMessage populates the message with random data suitable for
// testing. The hash is only drawn when it is on the wire.
//
// This is part of the TestMessage interface.
func (m *MsgReject) RandTestMessage(t *rapid.T) Message {
	msg := &MsgReject{
		Message: rapid.SampledFrom([]string{
			string(CmdBlock), string(CmdTx), string(CmdVersion), "",
		}).Draw(t, "rejectedCommand"),
		Code: RejectCode(rapid.Uint8().Draw(t, "code")),
		Reason: string(RandBytes(
			t, "reason", 50,
		)),
	}
	if msg.hasHash() {
		msg.Hash = RandHash(t, "rejectedHash")
	}

	return msg
}

// RandTestMessage returns an empty mempool.
//
// This is part of the TestMessage interface.
func (m *MsgMemPool) RandTestMessage(*rapid.T) Message {
	return &MsgMemPool{}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgFeeFilter) RandTestMessage(t *rapid.T) Message {
	return &MsgFeeFilter{FeeRate: rapid.Uint64().Draw(t, "feeRate")}
}

// RandTestMessage returns an empty sendheaders.
//
// This is part of the TestMessage interface.
func (m *MsgSendHeaders) RandTestMessage(*rapid.T) Message {
	return &MsgSendHeaders{}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgSendCmpct) RandTestMessage(t *rapid.T) Message {
	return &MsgSendCmpct{
		Announce: rapid.Bool().Draw(t, "announce"),
		Version:  rapid.Uint64().Draw(t, "cmpctVersion"),
	}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgCmpctBlock) RandTestMessage(t *rapid.T) Message {
	p := P2PHeaderAndShortIDs{
		Header: RandBlockHeader(t),
		Nonce:  rapid.Uint64().Draw(t, "nonce"),
	}
	for i := rapid.IntRange(0, 5).Draw(t, "numShortIDs"); i > 0; i-- {
		p.ShortIDs = append(p.ShortIDs, rapid.Uint64Range(
			0, shortIDMask,
		).Draw(t, "shortID"))
	}
	for i := rapid.IntRange(0, 2).Draw(t, "numPrefilled"); i > 0; i-- {
		p.PrefilledTxn = append(p.PrefilledTxn, PrefilledTx{
			Index: rapid.Uint64Range(0, 1000).Draw(t, "index"),
			Tx:    RandTransaction(t),
		})
	}
	p.ShortIDsLength = uint64(len(p.ShortIDs))
	p.PrefilledTxnLength = uint64(len(p.PrefilledTxn))

	return &MsgCmpctBlock{HeaderAndShortIDs: p}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgGetBlockTxn) RandTestMessage(t *rapid.T) Message {
	var indexes []uint64
	for i := rapid.IntRange(0, 5).Draw(t, "numIndexes"); i > 0; i-- {
		indexes = append(indexes, rapid.Uint64().Draw(t, "index"))
	}

	return &MsgGetBlockTxn{
		Request: BlockTransactionsRequest{
			BlockHash: RandHash(t, "blockHash"),
			Indexes:   indexes,
		},
	}
}

// RandTestMessage populates the message with random data suitable for
// testing.
//
// This is part of the TestMessage interface.
func (m *MsgBlockTxn) RandTestMessage(t *rapid.T) Message {
	return &MsgBlockTxn{
		BlockTransactions: BlockTransactions{
			BlockHash:    RandHash(t, "blockHash"),
			Transactions: RandTransactions(t, 3),
		},
	}
}
