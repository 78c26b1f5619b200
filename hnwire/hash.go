package hnwire

import (
	"bytes"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashSize is the size of a Hash256 in bytes.
const HashSize = chainhash.HashSize

// Hash256 is a 256-bit unsigned integer stored in wire order, which is the
// little endian byte order of its numeric value. Its display form is the
// byte reversed hex string used by block explorers and RPC.
type Hash256 chainhash.Hash

// ZeroHash is the all zero hash.
var ZeroHash Hash256

// NewHash256FromStr parses a display (byte reversed) hex string.
func NewHash256FromStr(s string) (Hash256, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return ZeroHash, err
	}

	return Hash256(*h), nil
}

// NewHash256FromBig returns the hash whose numeric value is n. Values wider
// than 256 bits are truncated to their low 256 bits.
func NewHash256FromBig(n *big.Int) Hash256 {
	be := n.Bytes()
	if len(be) > HashSize {
		be = be[len(be)-HashSize:]
	}

	var h Hash256
	for i := range be {
		h[i] = be[len(be)-1-i]
	}

	return h
}

// DoubleHash returns sha256(sha256(b)).
func DoubleHash(b []byte) Hash256 {
	return Hash256(chainhash.DoubleHashH(b))
}

// SingleHash returns sha256(b).
func SingleHash(b []byte) Hash256 {
	return Hash256(chainhash.HashH(b))
}

// String returns the display form of the hash.
func (h Hash256) String() string {
	return chainhash.Hash(h).String()
}

// Big returns the numeric value of the hash.
func (h Hash256) Big() *big.Int {
	ch := chainhash.Hash(h)
	return blockchain.HashToBig(&ch)
}

// IsZero returns true if every byte of the hash is zero.
func (h Hash256) IsZero() bool {
	return h == ZeroHash
}

// Encode writes the hash in wire order.
//
// This is part of the Serializable interface.
func (h Hash256) Encode(buf *bytes.Buffer, _ uint32) error {
	return WriteHash(buf, h)
}

// Decode reads the hash in wire order.
//
// This is part of the Serializable interface.
func (h *Hash256) Decode(r io.Reader, _ uint32) error {
	_, err := io.ReadFull(r, h[:])
	return err
}

// WriteHash appends the hash to the provided buffer.
func WriteHash(buf *bytes.Buffer, h Hash256) error {
	return WriteBytes(buf, h[:])
}

// ReadHash reads a hash in wire order from r.
func ReadHash(r io.Reader) (Hash256, error) {
	var h Hash256
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return ZeroHash, err
	}

	return h, nil
}

// CompactToTarget expands the compact difficulty encoding of a block header
// into the target a block hash must not exceed.
func CompactToTarget(bits uint32) *big.Int {
	return blockchain.CompactToBig(bits)
}
