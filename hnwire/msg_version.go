package hnwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// legacyVersionQuirk is a protocol version some very old clients sent that
// must be read as 300.
const legacyVersionQuirk = 10300

// MsgVersion opens the handshake. The fields after AddrTo only exist from
// certain protocol versions on; they are absent after decoding an older
// version and are written in order up to the first absent one.
type MsgVersion struct {
	ProtocolVersion int32
	Services        uint64
	Timestamp       int64
	AddrTo          NetAddressInVersion

	// AddrFrom, Nonce and UserAgent are present from version 106.
	AddrFrom  fn.Option[NetAddressInVersion]
	Nonce     fn.Option[uint64]
	UserAgent fn.Option[string]

	// StartHeight is present from version 209.
	StartHeight fn.Option[int32]

	// Relay is present from version 70001 and may be omitted even then.
	Relay fn.Option[bool]
}

// NewMsgVersion returns a version message with every field set: our
// protocol version, node network services, the current time, a random
// nonce, our user agent, an unknown start height and relay enabled.
func NewMsgVersion(addrTo, addrFrom NetAddressInVersion) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(MyVersion),
		Services:        uint64(SFNodeNetwork),
		Timestamp:       time.Now().Unix(),
		AddrTo:          addrTo,
		AddrFrom:        fn.Some(addrFrom),
		Nonce:           fn.Some(rand.Uint64()),
		UserAgent:       fn.Some(MySubVersion),
		StartHeight:     fn.Some(int32(-1)),
		Relay:           fn.Some(MyRelay),
	}
}

// NewLocalAddr returns the 0.0.0.0:0 address we advertise as addrFrom.
func NewLocalAddr() NetAddressInVersion {
	return NewNetAddressInVersion(netip.IPv4Unspecified(), 0)
}

// A compile time check to ensure MsgVersion implements the Message
// interface.
var _ Message = (*MsgVersion)(nil)

// RelayOrDefault returns the relay flag, false when absent.
func (m *MsgVersion) RelayOrDefault() bool {
	return m.Relay.UnwrapOr(false)
}

// Command returns the protocol command string for the message.
//
// This is part of the Message interface.
func (m *MsgVersion) Command() Command {
	return CmdVersion
}

// Encode serializes the version message. Optional fields are written in
// order and writing stops at the first absent one.
//
// This is part of the Message interface.
func (m *MsgVersion) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := WriteInt32(buf, m.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteUint64(buf, m.Services); err != nil {
		return err
	}
	if err := WriteInt64(buf, m.Timestamp); err != nil {
		return err
	}
	if err := m.AddrTo.Encode(buf, pver); err != nil {
		return err
	}

	writers := []func() (bool, error){
		optionWriter(m.AddrFrom, func(a NetAddressInVersion) error {
			return a.Encode(buf, pver)
		}),
		optionWriter(m.Nonce, func(n uint64) error {
			return WriteUint64(buf, n)
		}),
		optionWriter(m.UserAgent, func(s string) error {
			return WriteVarString(buf, s)
		}),
		optionWriter(m.StartHeight, func(h int32) error {
			return WriteInt32(buf, h)
		}),
		optionWriter(m.Relay, func(r bool) error {
			return WriteBool(buf, r)
		}),
	}
	for _, write := range writers {
		written, err := write()
		if err != nil {
			return err
		}
		if !written {
			break
		}
	}

	return nil
}

// optionWriter returns a closure that writes the value of o with write, or
// reports that o is absent.
func optionWriter[A any](o fn.Option[A],
	write func(A) error) func() (bool, error) {

	return func() (bool, error) {
		if o.IsNone() {
			return false, nil
		}

		return true, write(o.UnsafeFromSome())
	}
}

// Decode deserializes the version message. The optional fields are read
// according to the protocol version found in the payload. A missing relay
// byte is not an error.
//
// This is part of the Message interface.
func (m *MsgVersion) Decode(r io.Reader, pver uint32) error {
	var err error
	if m.ProtocolVersion, err = ReadInt32(r); err != nil {
		return err
	}
	if m.ProtocolVersion == legacyVersionQuirk {
		m.ProtocolVersion = 300
	}
	if m.Services, err = ReadUint64(r); err != nil {
		return err
	}
	if m.Timestamp, err = ReadInt64(r); err != nil {
		return err
	}
	if err := m.AddrTo.Decode(r, pver); err != nil {
		return err
	}

	m.AddrFrom = fn.None[NetAddressInVersion]()
	m.Nonce = fn.None[uint64]()
	m.UserAgent = fn.None[string]()
	m.StartHeight = fn.None[int32]()
	m.Relay = fn.None[bool]()

	version := m.ProtocolVersion
	if version < int32(AddrFromVersion) {
		return nil
	}

	var from NetAddressInVersion
	if err := from.Decode(r, pver); err != nil {
		return err
	}
	m.AddrFrom = fn.Some(from)

	nonce, err := ReadUint64(r)
	if err != nil {
		return err
	}
	m.Nonce = fn.Some(nonce)

	ua, err := ReadVarString(r)
	if err != nil {
		return err
	}
	m.UserAgent = fn.Some(ua)

	if version < int32(ChecksumVersion) {
		return nil
	}

	height, err := ReadInt32(r)
	if err != nil {
		return err
	}
	m.StartHeight = fn.Some(height)

	if version < int32(RelayVersion) {
		return nil
	}

	relay, err := ReadBool(r)
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}
	m.Relay = fn.Some(relay)

	return nil
}

// String returns a short human readable description.
func (m *MsgVersion) String() string {
	return fmt.Sprintf("msg_version(nVersion=%d nServices=%d nTime=%d "+
		"addrTo=%v:%d nonce=%d strSubVer=%q nStartingHeight=%d "+
		"nRelay=%v)", m.ProtocolVersion, m.Services, m.Timestamp,
		m.AddrTo.IP, m.AddrTo.Port, m.Nonce.UnwrapOr(0),
		m.UserAgent.UnwrapOr(""), m.StartHeight.UnwrapOr(-1),
		m.RelayOrDefault())
}
