package hnwire

import (
	"bytes"
	"fmt"
	"io"
)

// emptyPayload implements Encode and Decode for messages without a payload.
type emptyPayload struct{}

// Encode writes nothing.
func (emptyPayload) Encode(*bytes.Buffer, uint32) error { return nil }

// Decode reads nothing.
func (*emptyPayload) Decode(io.Reader, uint32) error { return nil }

// MsgVerAck acknowledges a version message.
type MsgVerAck struct{ emptyPayload }

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (*MsgVerAck) Command() Command { return CmdVerAck }

// MsgGetAddr asks the peer for known addresses.
type MsgGetAddr struct{ emptyPayload }

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (*MsgGetAddr) Command() Command { return CmdGetAddr }

// MsgMemPool asks the peer to announce its mempool.
type MsgMemPool struct{ emptyPayload }

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (*MsgMemPool) Command() Command { return CmdMemPool }

// MsgSendHeaders asks the peer to announce blocks with headers.
type MsgSendHeaders struct{ emptyPayload }

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (*MsgSendHeaders) Command() Command { return CmdSendHeaders }

// Compile time checks to ensure the payload-less messages implement the
// Message interface.
var (
	_ Message = (*MsgVerAck)(nil)
	_ Message = (*MsgGetAddr)(nil)
	_ Message = (*MsgMemPool)(nil)
	_ Message = (*MsgSendHeaders)(nil)
)

// MsgProtoconf announces our protocol parameters.
type MsgProtoconf struct {
	Protoconf Protoconf
}

// NewMsgProtoconf returns a protoconf announcing the given receive limit.
func NewMsgProtoconf(maxRecvPayloadLength uint32) *MsgProtoconf {
	return &MsgProtoconf{Protoconf: NewProtoconf(maxRecvPayloadLength)}
}

// A compile time check to ensure MsgProtoconf implements the Message
// interface.
var _ Message = (*MsgProtoconf)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgProtoconf) Command() Command { return CmdProtoconf }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgProtoconf) Encode(buf *bytes.Buffer, pver uint32) error {
	return m.Protoconf.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgProtoconf) Decode(r io.Reader, pver uint32) error {
	return m.Protoconf.Decode(r, pver)
}

// MsgFeeFilter asks the peer not to relay transactions paying less than
// FeeRate per kilobyte.
type MsgFeeFilter struct {
	FeeRate uint64
}

// A compile time check to ensure MsgFeeFilter implements the Message
// interface.
var _ Message = (*MsgFeeFilter)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgFeeFilter) Command() Command { return CmdFeeFilter }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgFeeFilter) Encode(buf *bytes.Buffer, _ uint32) error {
	return WriteUint64(buf, m.FeeRate)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgFeeFilter) Decode(r io.Reader, _ uint32) error {
	var err error
	m.FeeRate, err = ReadUint64(r)
	return err
}

// MsgSendCmpct negotiates compact block relay.
type MsgSendCmpct struct {
	Announce bool
	Version  uint64
}

// NewMsgSendCmpct returns a sendcmpct for compact block version 1.
func NewMsgSendCmpct(announce bool) *MsgSendCmpct {
	return &MsgSendCmpct{Announce: announce, Version: 1}
}

// A compile time check to ensure MsgSendCmpct implements the Message
// interface.
var _ Message = (*MsgSendCmpct)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgSendCmpct) Command() Command { return CmdSendCmpct }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgSendCmpct) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteBool(buf, m.Announce); err != nil {
		return err
	}

	return WriteUint64(buf, m.Version)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgSendCmpct) Decode(r io.Reader, _ uint32) error {
	var err error
	if m.Announce, err = ReadBool(r); err != nil {
		return err
	}

	m.Version, err = ReadUint64(r)
	return err
}

// RejectCode is the reason code of a reject message.
type RejectCode uint8

// Reject codes sent by nodes.
const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

// MsgReject tells the peer that one of its messages was rejected.
type MsgReject struct {
	// Message is the command of the rejected message.
	Message string
	Code    RejectCode
	Reason  string

	// Hash identifies the rejected block or transaction. It is only on
	// the wire when hasHash reports true.
	Hash Hash256
}

// A compile time check to ensure MsgReject implements the Message
// interface.
var _ Message = (*MsgReject)(nil)

// hasHash reports whether the reject carries the hash of the rejected
// object.
func (m *MsgReject) hasHash() bool {
	if m.Code == RejectMalformed {
		return false
	}

	return m.Message == string(CmdBlock) || m.Message == string(CmdTx)
}

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgReject) Command() Command { return CmdReject }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgReject) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteVarString(buf, m.Message); err != nil {
		return err
	}
	if err := WriteUint8(buf, uint8(m.Code)); err != nil {
		return err
	}
	if err := WriteVarString(buf, m.Reason); err != nil {
		return err
	}
	if !m.hasHash() {
		return nil
	}

	return WriteHash(buf, m.Hash)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgReject) Decode(r io.Reader, _ uint32) error {
	var err error
	if m.Message, err = ReadVarString(r); err != nil {
		return err
	}

	code, err := ReadUint8(r)
	if err != nil {
		return err
	}
	m.Code = RejectCode(code)

	if m.Reason, err = ReadVarString(r); err != nil {
		return err
	}

	m.Hash = ZeroHash
	if !m.hasHash() {
		return nil
	}

	m.Hash, err = ReadHash(r)
	return err
}

// String returns a short human readable description.
func (m *MsgReject) String() string {
	return fmt.Sprintf("msg_reject: %s %d %s [%v]", m.Message, m.Code,
		m.Reason, m.Hash)
}

// MsgAlert relays a legacy network alert.
type MsgAlert struct {
	Alert Alert
}

// A compile time check to ensure MsgAlert implements the Message interface.
var _ Message = (*MsgAlert)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgAlert) Command() Command { return CmdAlert }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgAlert) Encode(buf *bytes.Buffer, pver uint32) error {
	return m.Alert.Encode(buf, pver)
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgAlert) Decode(r io.Reader, pver uint32) error {
	return m.Alert.Decode(r, pver)
}

// MsgAddr relays known addresses.
type MsgAddr struct {
	AddrList []NetAddress
}

// A compile time check to ensure MsgAddr implements the Message interface.
var _ Message = (*MsgAddr)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgAddr) Command() Command { return CmdAddr }

// Encode serializes the message.
//
// This is part of the Message interface.
func (m *MsgAddr) Encode(buf *bytes.Buffer, pver uint32) error {
	return WriteVector(buf, m.AddrList, encodeWith[NetAddress](pver))
}

// Decode deserializes the message.
//
// This is part of the Message interface.
func (m *MsgAddr) Decode(r io.Reader, pver uint32) error {
	var err error
	m.AddrList, err = ReadVector(r, decodeWith[NetAddress](pver))
	return err
}

// MsgGeneric sends an arbitrary command with an arbitrary payload. It is
// never produced by the decoder.
type MsgGeneric struct {
	Cmd  Command
	Data []byte
}

// NewMsgGeneric returns a message sending data under the given command.
func NewMsgGeneric(cmd Command, data []byte) *MsgGeneric {
	return &MsgGeneric{Cmd: cmd, Data: data}
}

// A compile time check to ensure MsgGeneric implements the Message
// interface.
var _ Message = (*MsgGeneric)(nil)

// Command returns the command the message is sent under.
//
// This is part of the Message interface.
func (m *MsgGeneric) Command() Command { return m.Cmd }

// Encode writes the raw payload.
//
// This is part of the Message interface.
func (m *MsgGeneric) Encode(buf *bytes.Buffer, _ uint32) error {
	return WriteBytes(buf, m.Data)
}

// Decode reads everything left in r as the payload.
//
// This is part of the Message interface.
func (m *MsgGeneric) Decode(r io.Reader, _ uint32) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = nil
	}
	m.Data = data

	return nil
}
