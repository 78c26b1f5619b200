package hnwire

import (
	"bytes"
	"errors"
	"io"
)

// ErrNilPayload is returned when encoding a message whose payload pointer is
// nil.
var ErrNilPayload = errors.New("message payload is nil")

// MsgInv announces transactions or blocks.
type MsgInv struct {
	InvList []InvVect
}

// NewMsgInv returns an inv announcing the given vectors.
func NewMsgInv(invs ...InvVect) *MsgInv {
	return &MsgInv{InvList: invs}
}

// A compile time check to ensure MsgInv implements the Message interface.
var _ Message = (*MsgInv)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgInv) Command() Command { return CmdInv }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgInv) Encode(buf *bytes.Buffer, pver uint32) error {
	return WriteVector(buf, m.InvList, encodeWith[InvVect](pver))
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgInv) Decode(r io.Reader, pver uint32) error {
	var err error
	m.InvList, err = ReadVector(r, decodeWith[InvVect](pver))
	return err
}

// MsgGetData requests transactions or blocks.
type MsgGetData struct {
	InvList []InvVect
}

// NewMsgGetData returns a getdata requesting the given vectors.
func NewMsgGetData(invs ...InvVect) *MsgGetData {
	return &MsgGetData{InvList: invs}
}

// A compile time check to ensure MsgGetData implements the Message
// interface.
var _ Message = (*MsgGetData)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgGetData) Command() Command { return CmdGetData }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgGetData) Encode(buf *bytes.Buffer, pver uint32) error {
	return WriteVector(buf, m.InvList, encodeWith[InvVect](pver))
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgGetData) Decode(r io.Reader, pver uint32) error {
	var err error
	m.InvList, err = ReadVector(r, decodeWith[InvVect](pver))
	return err
}

// MsgGetBlocks asks for an inv of the blocks after the locator.
type MsgGetBlocks struct {
	Locator  BlockLocator
	HashStop Hash256
}

// A compile time check to ensure MsgGetBlocks implements the Message
// interface.
var _ Message = (*MsgGetBlocks)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgGetBlocks) Command() Command { return CmdGetBlocks }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgGetBlocks) Encode(buf *bytes.Buffer, pver uint32) error {
	return encodeLocatorRequest(buf, m.Locator, m.HashStop, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgGetBlocks) Decode(r io.Reader, pver uint32) error {
	return decodeLocatorRequest(r, &m.Locator, &m.HashStop, pver)
}

// MsgGetHeaders asks for the headers after the locator.
type MsgGetHeaders struct {
	Locator  BlockLocator
	HashStop Hash256
}

// A compile time check to ensure MsgGetHeaders implements the Message
// interface.
var _ Message = (*MsgGetHeaders)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgGetHeaders) Command() Command { return CmdGetHeaders }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgGetHeaders) Encode(buf *bytes.Buffer, pver uint32) error {
	return encodeLocatorRequest(buf, m.Locator, m.HashStop, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgGetHeaders) Decode(r io.Reader, pver uint32) error {
	return decodeLocatorRequest(r, &m.Locator, &m.HashStop, pver)
}

func encodeLocatorRequest(buf *bytes.Buffer, locator BlockLocator,
	hashStop Hash256, pver uint32) error {

	if err := locator.Encode(buf, pver); err != nil {
		return err
	}

	return WriteHash(buf, hashStop)
}

func decodeLocatorRequest(r io.Reader, locator *BlockLocator,
	hashStop *Hash256, pver uint32) error {

	if err := locator.Decode(r, pver); err != nil {
		return err
	}

	var err error
	*hashStop, err = ReadHash(r)
	return err
}

// MsgHeaders delivers block headers. On the wire every header is followed by
// a zero transaction count, as if it was an empty block.
type MsgHeaders struct {
	Headers []BlockHeader
}

// A compile time check to ensure MsgHeaders implements the Message
// interface.
var _ Message = (*MsgHeaders)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgHeaders) Command() Command { return CmdHeaders }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgHeaders) Encode(buf *bytes.Buffer, pver uint32) error {
	return WriteVector(buf, m.Headers,
		func(buf *bytes.Buffer, h BlockHeader) error {
			if err := h.Encode(buf, pver); err != nil {
				return err
			}

			return WriteVarInt(buf, 0)
		},
	)
}

// Decode deserializes the message. Transactions that follow a header are
// read and dropped.
//
// This is part of the Message interface.
func (m *MsgHeaders) Decode(r io.Reader, pver uint32) error {
	var err error
	m.Headers, err = ReadVector(r, func(r io.Reader) (BlockHeader, error) {
		var b Block
		if err := b.Decode(r, pver); err != nil {
			return BlockHeader{}, err
		}

		return b.Header(), nil
	})

	return err
}

// MsgTx relays a transaction.
type MsgTx struct {
	Tx *Transaction
}

// NewMsgTx returns a message relaying tx.
func NewMsgTx(tx *Transaction) *MsgTx {
	return &MsgTx{Tx: tx}
}

// A compile time check to ensure MsgTx implements the Message interface.
var _ Message = (*MsgTx)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgTx) Command() Command { return CmdTx }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgTx) Encode(buf *bytes.Buffer, pver uint32) error {
	if m.Tx == nil {
		return ErrNilPayload
	}

	return m.Tx.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgTx) Decode(r io.Reader, pver uint32) error {
	var err error
	m.Tx, err = ReadTransaction(r, pver)
	return err
}

// MsgBlock relays a block.
type MsgBlock struct {
	Block *Block
}

// NewMsgBlock returns a message relaying block.
func NewMsgBlock(block *Block) *MsgBlock {
	return &MsgBlock{Block: block}
}

// A compile time check to ensure MsgBlock implements the Message interface.
var _ Message = (*MsgBlock)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgBlock) Command() Command { return CmdBlock }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgBlock) Encode(buf *bytes.Buffer, pver uint32) error {
	if m.Block == nil {
		return ErrNilPayload
	}

	return m.Block.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgBlock) Decode(r io.Reader, pver uint32) error {
	m.Block = &Block{}
	return m.Block.Decode(r, pver)
}

// MsgCmpctBlock relays a compact block.
type MsgCmpctBlock struct {
	HeaderAndShortIDs P2PHeaderAndShortIDs
}

// A compile time check to ensure MsgCmpctBlock implements the Message
// interface.
var _ Message = (*MsgCmpctBlock)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgCmpctBlock) Command() Command { return CmdCmpctBlock }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgCmpctBlock) Encode(buf *bytes.Buffer, pver uint32) error {
	return m.HeaderAndShortIDs.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgCmpctBlock) Decode(r io.Reader, pver uint32) error {
	return m.HeaderAndShortIDs.Decode(r, pver)
}

// MsgGetBlockTxn requests transactions missing from a compact block.
type MsgGetBlockTxn struct {
	Request BlockTransactionsRequest
}

// A compile time check to ensure MsgGetBlockTxn implements the Message
// interface.
var _ Message = (*MsgGetBlockTxn)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgGetBlockTxn) Command() Command { return CmdGetBlockTxn }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgGetBlockTxn) Encode(buf *bytes.Buffer, pver uint32) error {
	return m.Request.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgGetBlockTxn) Decode(r io.Reader, pver uint32) error {
	return m.Request.Decode(r, pver)
}

// MsgBlockTxn answers a getblocktxn.
type MsgBlockTxn struct {
	BlockTransactions BlockTransactions
}

// A compile time check to ensure MsgBlockTxn implements the Message
// interface.
var _ Message = (*MsgBlockTxn)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgBlockTxn) Command() Command { return CmdBlockTxn }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgBlockTxn) Encode(buf *bytes.Buffer, pver uint32) error {
	return m.BlockTransactions.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgBlockTxn) Decode(r io.Reader, pver uint32) error {
	return m.BlockTransactions.Decode(r, pver)
}
