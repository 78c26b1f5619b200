package hnwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
)

// ErrNotIPv4 is returned when encoding a version address that has no IPv4
// form.
var ErrNotIPv4 = errors.New("version address is not IPv4")

// defaultReserved is the IPv4-mapped IPv6 prefix that precedes the IPv4
// address of a network address.
var defaultReserved = [12]byte{10: 0xff, 11: 0xff}

// NetAddressInVersion is the address form carried by the version message. It
// lacks the timestamp of the form relayed by addr messages.
type NetAddressInVersion struct {
	// Services is the service bitfield of the address.
	Services uint64

	// Reserved holds the IPv4-mapped IPv6 prefix.
	Reserved [12]byte

	// IP is the IPv4 address. IPv4-mapped IPv6 addresses are written in
	// their IPv4 form and the zero Addr as 0.0.0.0. Other addresses can't
	// be encoded.
	IP netip.Addr

	// Port is the TCP port, written in big endian byte order.
	Port uint16
}

// NewNetAddressInVersion returns an address advertising the node network
// service with the default reserved prefix.
func NewNetAddressInVersion(ip netip.Addr, port uint16) NetAddressInVersion {
	return NetAddressInVersion{
		Services: uint64(SFNodeNetwork),
		Reserved: defaultReserved,
		IP:       ip,
		Port:     port,
	}
}

// A compile time check to ensure NetAddressInVersion implements the
// Serializable interface.
var _ Serializable = (*NetAddressInVersion)(nil)

// Encode serializes the address.
//
// This is part of the Serializable interface.
func (a NetAddressInVersion) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteUint64(buf, a.Services); err != nil {
		return err
	}
	if err := WriteBytes(buf, a.Reserved[:]); err != nil {
		return err
	}

	var ip [4]byte
	switch addr := a.IP.Unmap(); {
	case !addr.IsValid():
		// Written as 0.0.0.0.

	case addr.Is4():
		ip = addr.As4()

	default:
		return fmt.Errorf("%w: %v", ErrNotIPv4, a.IP)
	}
	if err := WriteBytes(buf, ip[:]); err != nil {
		return err
	}

	return WriteUint16BE(buf, a.Port)
}

// Decode deserializes the address.
//
// This is part of the Serializable interface.
func (a *NetAddressInVersion) Decode(r io.Reader, _ uint32) error {
	var err error
	if a.Services, err = ReadUint64(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, a.Reserved[:]); err != nil {
		return err
	}

	var ip [4]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	a.IP = netip.AddrFrom4(ip)

	a.Port, err = ReadUint16BE(r)
	return err
}

// NetAddress is the address form relayed by addr messages.
type NetAddress struct {
	// Time is the last time the address was seen, in unix seconds.
	Time uint32

	NetAddressInVersion
}

// NewNetAddress returns an address last seen at the given unix time.
func NewNetAddress(time uint32, ip netip.Addr, port uint16) NetAddress {
	return NetAddress{
		Time:                time,
		NetAddressInVersion: NewNetAddressInVersion(ip, port),
	}
}

// Encode serializes the address.
//
// This is part of the Serializable interface.
func (a NetAddress) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := WriteUint32(buf, a.Time); err != nil {
		return err
	}

	return a.NetAddressInVersion.Encode(buf, pver)
}

// Decode deserializes the address.
//
// This is part of the Serializable interface.
func (a *NetAddress) Decode(r io.Reader, pver uint32) error {
	var err error
	if a.Time, err = ReadUint32(r); err != nil {
		return err
	}

	return a.NetAddressInVersion.Decode(r, pver)
}
