package hnwire

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	// BIP0031Version is the last protocol version whose ping message
	// carries no nonce and expects no pong in reply.
	BIP0031Version uint32 = 60000

	// MyVersion is the protocol version advertised by the half-node.
	MyVersion uint32 = 70015

	// MySubVersion is the user agent advertised by the half-node.
	MySubVersion = "/go-halfnode-tester:0.0.3/"

	// MyRelay is the relay flag sent in our version message.
	MyRelay = true

	// ChecksumVersion is the first protocol version whose frames carry a
	// payload checksum.
	ChecksumVersion uint32 = 209

	// AddrFromVersion is the first protocol version whose version message
	// carries addrFrom, nonce and the user agent.
	AddrFromVersion uint32 = 106

	// RelayVersion is the first protocol version whose version message
	// carries the relay flag.
	RelayVersion uint32 = 70001

	// InitialVersion is the protocol version used for framing before the
	// handshake has negotiated anything.
	InitialVersion uint32 = ChecksumVersion

	// MaxInvSize is the maximum number of inventory vectors allowed in a
	// single inv or getdata message.
	MaxInvSize = 50000

	// MaxProtocolRecvPayloadLength is the receive payload limit we
	// announce in our protoconf message.
	MaxProtocolRecvPayloadLength = 2 * 1024 * 1024

	// LegacyMaxProtocolPayloadLength is the payload limit assumed for a
	// peer that never announced one.
	LegacyMaxProtocolPayloadLength = 1 * 1024 * 1024

	// Coin is the number of base units in one coin.
	Coin int64 = 100000000

	// MaxMoney is the largest output value a valid transaction may carry.
	MaxMoney = 21000000 * Coin
)

// ServiceFlag identifies the services supported by a peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork indicates the peer serves the full block chain.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeGetUTXO indicates the peer supports the getutxos command.
	SFNodeGetUTXO

	// SFNodeBloom indicates the peer supports bloom filtering.
	SFNodeBloom

	// SFNodeWitness indicates the peer supports witness data.
	SFNodeWitness

	// SFNodeXThin indicates the peer supports xthin blocks.
	SFNodeXThin

	// SFNodeBitcoinCash indicates the peer follows the cash rule set.
	SFNodeBitcoinCash
)

// Serializable is an interface which defines a value that is able to write
// itself to, and read itself from, the wire.
type Serializable interface {
	// Decode reads the bytes stream and converts it to the object.
	Decode(io.Reader, uint32) error

	// Encode converts object to the bytes stream and write it into the
	// write buffer.
	Encode(*bytes.Buffer, uint32) error
}

// WriteBytes appends the given bytes to the provided buffer.
func WriteBytes(buf *bytes.Buffer, b []byte) error {
	_, err := buf.Write(b)
	return err
}

// WriteUint8 appends the uint8 to the provided buffer.
func WriteUint8(buf *bytes.Buffer, n uint8) error {
	return buf.WriteByte(n)
}

// WriteBool appends the bool to the provided buffer as a single byte.
func WriteBool(buf *bytes.Buffer, b bool) error {
	if b {
		return WriteUint8(buf, 1)
	}

	return WriteUint8(buf, 0)
}

// WriteUint16 appends the uint16 to the provided buffer using little endian
// byte order.
func WriteUint16(buf *bytes.Buffer, n uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], n)
	_, err := buf.Write(b[:])
	return err
}

// WriteUint16BE appends the uint16 to the provided buffer using big endian
// byte order. Only network ports are written this way.
func WriteUint16BE(buf *bytes.Buffer, n uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], n)
	_, err := buf.Write(b[:])
	return err
}

// WriteUint32 appends the uint32 to the provided buffer using little endian
// byte order.
func WriteUint32(buf *bytes.Buffer, n uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	_, err := buf.Write(b[:])
	return err
}

// WriteInt32 appends the int32 to the provided buffer using little endian
// byte order.
func WriteInt32(buf *bytes.Buffer, n int32) error {
	return WriteUint32(buf, uint32(n))
}

// WriteUint64 appends the uint64 to the provided buffer using little endian
// byte order.
func WriteUint64(buf *bytes.Buffer, n uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	_, err := buf.Write(b[:])
	return err
}

// WriteInt64 appends the int64 to the provided buffer using little endian
// byte order.
func WriteInt64(buf *bytes.Buffer, n int64) error {
	return WriteUint64(buf, uint64(n))
}

// ReadUint8 reads a single byte from r.
func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadBool reads a single byte from r, any non-zero value being true.
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, err
	}

	return b != 0, nil
}

// ReadUint16 reads a little endian uint16 from r.
func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadUint16BE reads a big endian uint16 from r.
func ReadUint16BE(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b[:]), nil
}

// ReadUint32 reads a little endian uint32 from r.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadInt32 reads a little endian int32 from r.
func ReadInt32(r io.Reader) (int32, error) {
	n, err := ReadUint32(r)
	return int32(n), err
}

// ReadUint64 reads a little endian uint64 from r.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadInt64 reads a little endian int64 from r.
func ReadInt64(r io.Reader) (int64, error) {
	n, err := ReadUint64(r)
	return int64(n), err
}

// serialize encodes v into a fresh byte slice. Encoding into a bytes.Buffer
// does not fail for the value types of this package, so an error only
// surfaces for invalid values such as an overlong command.
func serialize(v Serializable, pver uint32) ([]byte, error) {
	var b bytes.Buffer
	if err := v.Encode(&b, pver); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
