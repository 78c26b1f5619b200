// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// code derived from https://github .com/btcsuite/btcd/blob/master/wire/message.go

package hnwire

import (
	"fmt"
)

// CommandSize is the fixed size of the command field of a frame header.
const CommandSize = 12

// Command is the ASCII tag identifying a message on the wire.
type Command string

// The commands understood by the half-node.
const (
	CmdVersion     Command = "version"
	CmdProtoconf   Command = "protoconf"
	CmdVerAck      Command = "verack"
	CmdAddr        Command = "addr"
	CmdAlert       Command = "alert"
	CmdInv         Command = "inv"
	CmdGetData     Command = "getdata"
	CmdGetBlocks   Command = "getblocks"
	CmdTx          Command = "tx"
	CmdBlock       Command = "block"
	CmdGetAddr     Command = "getaddr"
	CmdPing        Command = "ping"
	CmdPong        Command = "pong"
	CmdHeaders     Command = "headers"
	CmdGetHeaders  Command = "getheaders"
	CmdReject      Command = "reject"
	CmdMemPool     Command = "mempool"
	CmdFeeFilter   Command = "feefilter"
	CmdSendHeaders Command = "sendheaders"
	CmdSendCmpct   Command = "sendcmpct"
	CmdCmpctBlock  Command = "cmpctblock"
	CmdGetBlockTxn Command = "getblocktxn"
	CmdBlockTxn    Command = "blocktxn"
)

// Commands returns every command the decoder understands.
func Commands() []Command {
	return []Command{
		CmdVersion, CmdProtoconf, CmdVerAck, CmdAddr, CmdAlert, CmdInv,
		CmdGetData, CmdGetBlocks, CmdTx, CmdBlock, CmdGetAddr, CmdPing,
		CmdPong, CmdHeaders, CmdGetHeaders, CmdReject, CmdMemPool,
		CmdFeeFilter, CmdSendHeaders, CmdSendCmpct, CmdCmpctBlock,
		CmdGetBlockTxn, CmdBlockTxn,
	}
}

// String returns the command tag.
func (c Command) String() string {
	return string(c)
}

// Message is an interface that defines a protocol message. The interface is
// general in order to allow implementing types full control over the
// representation of their data.
type Message interface {
	Serializable
	Command() Command
}

// UnknownCommandError is returned when a frame carries a command the
// decoder does not know.
type UnknownCommandError struct {
	Command Command
}

// Error returns a human readable string describing the error.
//
// NOTE: implements the error interface.
func (u *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", string(u.Command))
}

// makeEmptyMessage creates a new empty message of the proper concrete type
// based on the passed command.
func makeEmptyMessage(cmd Command) (Message, error) {
	var msg Message

	switch cmd {
	case CmdVersion:
		msg = &MsgVersion{}
	case CmdProtoconf:
		msg = &MsgProtoconf{}
	case CmdVerAck:
		msg = &MsgVerAck{}
	case CmdAddr:
		msg = &MsgAddr{}
	case CmdAlert:
		msg = &MsgAlert{}
	case CmdInv:
		msg = &MsgInv{}
	case CmdGetData:
		msg = &MsgGetData{}
	case CmdGetBlocks:
		msg = &MsgGetBlocks{}
	case CmdTx:
		msg = &MsgTx{}
	case CmdBlock:
		msg = &MsgBlock{}
	case CmdGetAddr:
		msg = &MsgGetAddr{}
	case CmdPing:
		msg = &MsgPing{}
	case CmdPong:
		msg = &MsgPong{}
	case CmdHeaders:
		msg = &MsgHeaders{}
	case CmdGetHeaders:
		msg = &MsgGetHeaders{}
	case CmdReject:
		msg = &MsgReject{}
	case CmdMemPool:
		msg = &MsgMemPool{}
	case CmdFeeFilter:
		msg = &MsgFeeFilter{}
	case CmdSendHeaders:
		msg = &MsgSendHeaders{}
	case CmdSendCmpct:
		msg = &MsgSendCmpct{}
	case CmdCmpctBlock:
		msg = &MsgCmpctBlock{}
	case CmdGetBlockTxn:
		msg = &MsgGetBlockTxn{}
	case CmdBlockTxn:
		msg = &MsgBlockTxn{}
	default:
		return nil, &UnknownCommandError{Command: cmd}
	}

	return msg, nil
}

// MakeEmptyMessage exposes makeEmptyMessage for tools that decode payloads
// without a frame.
func MakeEmptyMessage(cmd Command) (Message, error) {
	return makeEmptyMessage(cmd)
}
