package hnwire

import (
	"bytes"
	"fmt"
	"io"
)

// InvType is the type of object an inventory vector refers to.
type InvType int32

const (
	// InvTypeError marks an inventory vector that must be ignored.
	InvTypeError InvType = 0

	// InvTypeTx refers to a transaction.
	InvTypeTx InvType = 1

	// InvTypeBlock refers to a block.
	InvTypeBlock InvType = 2

	// InvTypeCompactBlock refers to a block to be served as a compact
	// block.
	InvTypeCompactBlock InvType = 4
)

// String returns a human readable name for the inventory type.
func (t InvType) String() string {
	switch t {
	case InvTypeError:
		return "Error"
	case InvTypeTx:
		return "TX"
	case InvTypeBlock:
		return "Block"
	case InvTypeCompactBlock:
		return "CompactBlock"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// InvVect identifies a transaction or block by type and hash.
type InvVect struct {
	Type InvType
	Hash Hash256
}

// NewInvVect returns an inventory vector for the given object.
func NewInvVect(t InvType, hash Hash256) InvVect {
	return InvVect{Type: t, Hash: hash}
}

// String returns the inventory vector as "type:hash".
func (iv InvVect) String() string {
	return fmt.Sprintf("%v:%v", iv.Type, iv.Hash)
}

// Encode serializes the inventory vector.
//
// This is part of the Serializable interface.
func (iv InvVect) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteInt32(buf, int32(iv.Type)); err != nil {
		return err
	}

	return WriteHash(buf, iv.Hash)
}

// Decode deserializes the inventory vector.
//
// This is part of the Serializable interface.
func (iv *InvVect) Decode(r io.Reader, _ uint32) error {
	t, err := ReadInt32(r)
	if err != nil {
		return err
	}
	iv.Type = InvType(t)

	iv.Hash, err = ReadHash(r)
	return err
}

// EstimateMaxInvElements returns how many inventory vectors fit into an
// inv message whose payload may not exceed maxPayloadLength bytes. The
// estimate reserves 8 bytes for the count.
func EstimateMaxInvElements(maxPayloadLength uint64) uint64 {
	const invVectSize = 4 + HashSize

	if maxPayloadLength < 8 {
		return 0
	}

	return (maxPayloadLength - 8) / invVectSize
}

// Protoconf announces the protocol parameters of a node.
type Protoconf struct {
	// NumberOfFields is the number of fields that follow.
	NumberOfFields uint64

	// MaxRecvPayloadLength is the largest payload the sender accepts.
	MaxRecvPayloadLength uint32
}

// NewProtoconf returns a protoconf carrying a single field.
func NewProtoconf(maxRecvPayloadLength uint32) Protoconf {
	return Protoconf{
		NumberOfFields:       1,
		MaxRecvPayloadLength: maxRecvPayloadLength,
	}
}

// Encode serializes the protoconf.
//
// This is part of the Serializable interface.
func (p Protoconf) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteVarInt(buf, p.NumberOfFields); err != nil {
		return err
	}

	return WriteUint32(buf, p.MaxRecvPayloadLength)
}

// Decode deserializes the protoconf.
//
// This is part of the Serializable interface.
func (p *Protoconf) Decode(r io.Reader, _ uint32) error {
	var err error
	if p.NumberOfFields, err = ReadVarInt(r); err != nil {
		return err
	}

	p.MaxRecvPayloadLength, err = ReadUint32(r)
	return err
}

// BlockLocator describes a position in the block chain by a list of block
// hashes, densest near the tip.
type BlockLocator struct {
	Version int32
	Have    []Hash256
}

// NewBlockLocator returns a locator using our protocol version.
func NewBlockLocator(have ...Hash256) BlockLocator {
	return BlockLocator{
		Version: int32(MyVersion),
		Have:    have,
	}
}

// Encode serializes the locator.
//
// This is part of the Serializable interface.
func (l BlockLocator) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteInt32(buf, l.Version); err != nil {
		return err
	}

	return WriteHashVector(buf, l.Have)
}

// Decode deserializes the locator.
//
// This is part of the Serializable interface.
func (l *BlockLocator) Decode(r io.Reader, _ uint32) error {
	var err error
	if l.Version, err = ReadInt32(r); err != nil {
		return err
	}

	l.Have, err = ReadHashVector(r)
	return err
}
