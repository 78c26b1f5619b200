package hnwire

import (
	"bytes"
	"io"
)

// MsgPing checks that a connection is alive. Peers at or below
// BIP0031Version send it without a nonce and never answer with a pong, so
// both Encode and Decode depend on the protocol version.
type MsgPing struct {
	// Nonce is only on the wire above BIP0031Version.
	Nonce uint64
}

// NewMsgPing returns a ping carrying the given nonce.
func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}

// A compile time check to ensure MsgPing implements the Message interface.
var _ Message = (*MsgPing)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgPing) Command() Command {
	return CmdPing
}

// Encode serializes the ping for the given protocol version.
//
// This is part of the Message interface.
func (m *MsgPing) Encode(buf *bytes.Buffer, pver uint32) error {
	if pver <= BIP0031Version {
		return nil
	}

	return WriteUint64(buf, m.Nonce)
}

// Decode deserializes the ping for the given protocol version.
//
// This is part of the Message interface.
func (m *MsgPing) Decode(r io.Reader, pver uint32) error {
	if pver <= BIP0031Version {
		m.Nonce = 0
		return nil
	}

	var err error
	m.Nonce, err = ReadUint64(r)
	return err
}

// MsgPong defines a message which is the direct response to a received
// ping. The pong echoes the nonce of the ping it answers.
type MsgPong struct {
	// Nonce is the nonce of the ping this pong is replying to.
	Nonce uint64
}

// NewMsgPong returns a pong binded to the specified nonce.
func NewMsgPong(nonce uint64) *MsgPong {
	return &MsgPong{Nonce: nonce}
}

// A compile time check to ensure MsgPong implements the Message interface.
var _ Message = (*MsgPong)(nil)

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgPong) Command() Command {
	return CmdPong
}

// Encode serializes the pong.
//
// This is part of the Message interface.
func (m *MsgPong) Encode(buf *bytes.Buffer, _ uint32) error {
	return WriteUint64(buf, m.Nonce)
}

// Decode deserializes the pong.
//
// This is part of the Message interface.
func (m *MsgPong) Decode(r io.Reader, _ uint32) error {
	var err error
	m.Nonce, err = ReadUint64(r)
	return err
}
