package hnwire

import (
	"bytes"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// fullVersion returns a version message with every optional field set.
func fullVersion() *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(MyVersion),
		Services:        uint64(SFNodeNetwork),
		Timestamp:       1700000000,
		AddrTo: NewNetAddressInVersion(
			netip.MustParseAddr("127.0.0.1"), 18444,
		),
		AddrFrom:    fn.Some(NewLocalAddr()),
		Nonce:       fn.Some(uint64(42)),
		UserAgent:   fn.Some(MySubVersion),
		StartHeight: fn.Some(int32(100)),
		Relay:       fn.Some(true),
	}
}

// TestVersionMatchesReference checks our version message against the btcd
// encoding in both directions.
func TestVersionMatchesReference(t *testing.T) {
	t.Parallel()

	ours := fullVersion()

	you := wire.NewNetAddressIPPort(
		net.ParseIP("127.0.0.1"), 18444, wire.SFNodeNetwork,
	)
	me := wire.NewNetAddressIPPort(
		net.ParseIP("0.0.0.0"), 0, wire.SFNodeNetwork,
	)
	ref := wire.NewMsgVersion(me, you, 42, 100)
	ref.ProtocolVersion = int32(MyVersion)
	ref.Services = wire.SFNodeNetwork
	ref.Timestamp = time.Unix(1700000000, 0)
	ref.UserAgent = MySubVersion

	var want bytes.Buffer
	require.NoError(t, ref.BtcEncode(&want, MyVersion, wire.BaseEncoding))

	var got bytes.Buffer
	require.NoError(t, ours.Encode(&got, MyVersion))
	require.Equal(t, want.Bytes(), got.Bytes())

	var decoded MsgVersion
	require.NoError(t, decoded.Decode(&want, MyVersion))
	require.Equal(t, ours, &decoded)
}

// TestVersionOptionalFields checks which fields survive decoding depending
// on the version found in the payload and how much of it was sent.
func TestVersionOptionalFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version int32

		// strip removes optional fields before encoding.
		strip func(*MsgVersion)

		// check inspects the decoded message.
		check func(*testing.T, *MsgVersion)
	}{
		{
			name:    "missing relay byte",
			version: int32(MyVersion),
			strip: func(m *MsgVersion) {
				m.Relay = fn.None[bool]()
			},
			check: func(t *testing.T, m *MsgVersion) {
				require.True(t, m.StartHeight.IsSome())
				require.True(t, m.Relay.IsNone())
				require.False(t, m.RelayOrDefault())
			},
		},
		{
			name:    "before relay version",
			version: int32(RelayVersion) - 1,
			check: func(t *testing.T, m *MsgVersion) {
				require.Equal(t, fn.Some(int32(100)), m.StartHeight)
				require.True(t, m.Relay.IsNone())
			},
		},
		{
			name:    "before start height",
			version: int32(ChecksumVersion) - 1,
			check: func(t *testing.T, m *MsgVersion) {
				require.Equal(t, fn.Some(MySubVersion), m.UserAgent)
				require.True(t, m.StartHeight.IsNone())
				require.True(t, m.Relay.IsNone())
			},
		},
		{
			name:    "before addr from",
			version: int32(AddrFromVersion) - 1,
			check: func(t *testing.T, m *MsgVersion) {
				require.True(t, m.AddrFrom.IsNone())
				require.True(t, m.Nonce.IsNone())
				require.True(t, m.UserAgent.IsNone())
				require.True(t, m.StartHeight.IsNone())
			},
		},
		{
			name:    "legacy version quirk",
			version: legacyVersionQuirk,
			check: func(t *testing.T, m *MsgVersion) {
				require.Equal(t, int32(300), m.ProtocolVersion)
				require.True(t, m.AddrFrom.IsSome())
				require.True(t, m.StartHeight.IsSome())
				require.True(t, m.Relay.IsNone())
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			msg := fullVersion()
			msg.ProtocolVersion = test.version
			if test.strip != nil {
				test.strip(msg)
			}

			var b bytes.Buffer
			require.NoError(t, msg.Encode(&b, MyVersion))

			var decoded MsgVersion
			require.NoError(t, decoded.Decode(&b, MyVersion))
			test.check(t, &decoded)
		})
	}
}

// TestVersionEncodeStopsAtFirstAbsent checks that nothing after an absent
// optional field is written.
func TestVersionEncodeStopsAtFirstAbsent(t *testing.T) {
	t.Parallel()

	msg := fullVersion()
	msg.Nonce = fn.None[uint64]()

	var b bytes.Buffer
	require.NoError(t, msg.Encode(&b, MyVersion))

	// Version, services, timestamp and both addresses.
	require.Equal(t, 4+8+8+26+26, b.Len())
}

// TestNetAddressInVersionIP checks which addresses the version address
// form can carry.
func TestNetAddressInVersionIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ip      netip.Addr
		decoded netip.Addr
		err     error
	}{
		{
			name:    "ipv4",
			ip:      netip.MustParseAddr("10.0.0.1"),
			decoded: netip.MustParseAddr("10.0.0.1"),
		},
		{
			name:    "ipv4 mapped",
			ip:      netip.MustParseAddr("::ffff:10.0.0.1"),
			decoded: netip.MustParseAddr("10.0.0.1"),
		},
		{
			name:    "zero addr",
			ip:      netip.Addr{},
			decoded: netip.IPv4Unspecified(),
		},
		{
			name: "ipv6",
			ip:   netip.MustParseAddr("2001:db8::1"),
			err:  ErrNotIPv4,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var b bytes.Buffer
			err := NewNetAddressInVersion(test.ip, 8333).Encode(
				&b, MyVersion,
			)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)

			var decoded NetAddressInVersion
			require.NoError(t, decoded.Decode(&b, MyVersion))
			require.Equal(t, test.decoded, decoded.IP)
			require.Equal(t, uint16(8333), decoded.Port)
		})
	}
}
