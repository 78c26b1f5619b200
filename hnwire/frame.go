package hnwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// MagicSize is the size of the network magic that opens a frame.
	MagicSize = 4

	// ChecksumSize is the size of the payload checksum.
	ChecksumSize = 4

	// legacyHeaderSize is the frame header size below ChecksumVersion.
	legacyHeaderSize = MagicSize + CommandSize + 4

	// HeaderSize is the frame header size from ChecksumVersion on.
	HeaderSize = legacyHeaderSize + ChecksumSize
)

var (
	// ErrBadMagic is returned when a frame does not start with the
	// magic of the connection's network.
	ErrBadMagic = errors.New("frame has wrong network magic")

	// ErrBadChecksum is returned when the checksum of a frame does not
	// match its payload.
	ErrBadChecksum = errors.New("frame checksum mismatch")

	// ErrMalformedPayload is returned when the payload of a frame can't
	// be decoded as the message its command names.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrCommandTooLong is returned when a command does not fit the 12
	// byte command field.
	ErrCommandTooLong = errors.New("command longer than 12 bytes")
)

// Network identifies a network variant by name.
type Network string

// The supported networks.
const (
	MainNet  Network = "mainnet"
	TestNet3 Network = "testnet3"
	STN      Network = "stn"
	RegTest  Network = "regtest"
)

// Magic returns the 4 bytes that open every frame on the network.
func (n Network) Magic() ([MagicSize]byte, error) {
	switch n {
	case MainNet:
		return [MagicSize]byte{0xe3, 0xe1, 0xf3, 0xe8}, nil
	case TestNet3:
		return [MagicSize]byte{0xf4, 0xe5, 0xf3, 0xf4}, nil
	case STN:
		return [MagicSize]byte{0xfb, 0xce, 0xc4, 0xf9}, nil
	case RegTest:
		return [MagicSize]byte{0xda, 0xb5, 0xbf, 0xfa}, nil
	default:
		return [MagicSize]byte{}, fmt.Errorf("unknown network %q",
			string(n))
	}
}

// DefaultPort returns the default P2P port of the network.
func (n Network) DefaultPort() uint16 {
	switch n {
	case MainNet:
		return 8333
	case TestNet3:
		return 18333
	case STN:
		return 9333
	case RegTest:
		return 18444
	default:
		return 0
	}
}

// ParseNetwork returns the network with the given name.
func ParseNetwork(name string) (Network, error) {
	n := Network(strings.ToLower(name))
	if _, err := n.Magic(); err != nil {
		return "", err
	}

	return n, nil
}

// Checksum returns the first 4 bytes of the double SHA256 of payload.
func Checksum(payload []byte) [ChecksumSize]byte {
	var sum [ChecksumSize]byte
	h := DoubleHash(payload)
	copy(sum[:], h[:ChecksumSize])

	return sum
}

// ErrorEncodeMessage is used when failed to encode the message payload.
func ErrorEncodeMessage(err error) error {
	return fmt.Errorf("failed to encode message to buffer, got %w", err)
}

// WriteMessage frames msg for the network and appends it to buf. The payload
// is encoded with payloadVer while frameVer decides whether the frame has a
// checksum. The number of bytes written is returned; on error nothing is
// left in buf.
func WriteMessage(buf *bytes.Buffer, msg Message, net Network, frameVer,
	payloadVer uint32) (int, error) {

	// Record the size of the bytes already written in buffer.
	oldByteSize := buf.Len()

	// cleanBrokenBytes is a helper closure that helps reset the buffer to
	// its original state. It truncates all the bytes written in current
	// scope.
	var cleanBrokenBytes = func(b *bytes.Buffer) int {
		b.Truncate(oldByteSize)
		return 0
	}

	magic, err := net.Magic()
	if err != nil {
		return 0, err
	}

	cmd := msg.Command()
	if len(cmd) > CommandSize {
		return 0, fmt.Errorf("%w: %q", ErrCommandTooLong, string(cmd))
	}

	var payload bytes.Buffer
	if err := msg.Encode(&payload, payloadVer); err != nil {
		return 0, ErrorEncodeMessage(err)
	}

	var command [CommandSize]byte
	copy(command[:], cmd)

	if err := WriteBytes(buf, magic[:]); err != nil {
		return cleanBrokenBytes(buf), err
	}
	if err := WriteBytes(buf, command[:]); err != nil {
		return cleanBrokenBytes(buf), err
	}
	err = WriteUint32(buf, uint32(payload.Len()))
	if err != nil {
		return cleanBrokenBytes(buf), err
	}
	if frameVer >= ChecksumVersion {
		sum := Checksum(payload.Bytes())
		if err := WriteBytes(buf, sum[:]); err != nil {
			return cleanBrokenBytes(buf), err
		}
	}
	if err := WriteBytes(buf, payload.Bytes()); err != nil {
		return cleanBrokenBytes(buf), err
	}

	return buf.Len() - oldByteSize, nil
}

// ReadMessage parses the first frame of data. It returns a nil message and
// zero consumed bytes while the frame is incomplete. When a frame is
// complete its length is returned even if the frame is rejected, so the
// caller can tell how far the stream advanced.
func ReadMessage(data []byte, net Network, frameVer,
	payloadVer uint32) (Message, int, error) {

	if len(data) < MagicSize {
		return nil, 0, nil
	}

	magic, err := net.Magic()
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(data[:MagicSize], magic[:]) {
		return nil, 0, fmt.Errorf("%w: got %x, want %x", ErrBadMagic,
			data[:MagicSize], magic)
	}

	headerSize := HeaderSize
	if frameVer < ChecksumVersion {
		headerSize = legacyHeaderSize
	}
	if len(data) < headerSize {
		return nil, 0, nil
	}

	rawCmd := data[MagicSize : MagicSize+CommandSize]
	if i := bytes.IndexByte(rawCmd, 0); i >= 0 {
		rawCmd = rawCmd[:i]
	}
	cmd := Command(rawCmd)
	length := binary.LittleEndian.Uint32(
		data[MagicSize+CommandSize : legacyHeaderSize],
	)

	if uint64(len(data)-headerSize) < uint64(length) {
		return nil, 0, nil
	}
	total := headerSize + int(length)
	payload := data[headerSize:total]

	if frameVer >= ChecksumVersion {
		want := data[legacyHeaderSize:HeaderSize]
		if sum := Checksum(payload); !bytes.Equal(sum[:], want) {
			return nil, total, fmt.Errorf("%w: got %x, want %x",
				ErrBadChecksum, want, sum)
		}
	}

	msg, err := makeEmptyMessage(cmd)
	if err != nil {
		return nil, total, err
	}
	if err := msg.Decode(bytes.NewReader(payload), payloadVer); err != nil {
		return nil, total, fmt.Errorf("%w: %v: %v", ErrMalformedPayload,
			cmd, err)
	}

	return msg, total, nil
}
