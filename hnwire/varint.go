// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hnwire

import (
	"bytes"
	"io"
	"math"
)

const (
	// varIntMarker16 prefixes a VarInt carrying a uint16.
	varIntMarker16 = 0xfd

	// varIntMarker32 prefixes a VarInt carrying a uint32.
	varIntMarker32 = 0xfe

	// varIntMarker64 prefixes a VarInt carrying a uint64.
	varIntMarker64 = 0xff

	// vectorPrealloc caps how many elements are allocated up front for a
	// decoded vector, so a forged count can't force a huge allocation.
	vectorPrealloc = 1024
)

// WriteVarInt serializes n to buf using the shortest compact size form.
func WriteVarInt(buf *bytes.Buffer, n uint64) error {
	switch {
	case n < varIntMarker16:
		return WriteUint8(buf, uint8(n))

	case n <= math.MaxUint16:
		if err := WriteUint8(buf, varIntMarker16); err != nil {
			return err
		}
		return WriteUint16(buf, uint16(n))

	case n <= math.MaxUint32:
		if err := WriteUint8(buf, varIntMarker32); err != nil {
			return err
		}
		return WriteUint32(buf, uint32(n))

	default:
		if err := WriteUint8(buf, varIntMarker64); err != nil {
			return err
		}
		return WriteUint64(buf, n)
	}
}

// ReadVarInt reads a compact size integer from r. Only the bytes selected by
// the marker are consumed. Non-minimal encodings are accepted.
func ReadVarInt(r io.Reader) (uint64, error) {
	marker, err := ReadUint8(r)
	if err != nil {
		return 0, err
	}

	switch marker {
	case varIntMarker16:
		n, err := ReadUint16(r)
		return uint64(n), err

	case varIntMarker32:
		n, err := ReadUint32(r)
		return uint64(n), err

	case varIntMarker64:
		return ReadUint64(r)

	default:
		return uint64(marker), nil
	}
}

// VarIntSerializeSize returns the number of bytes WriteVarInt uses for n.
func VarIntSerializeSize(n uint64) int {
	switch {
	case n < varIntMarker16:
		return 1
	case n <= math.MaxUint16:
		return 3
	case n <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// WriteVarBytes writes b prefixed with its length as a VarInt.
func WriteVarBytes(buf *bytes.Buffer, b []byte) error {
	if err := WriteVarInt(buf, uint64(len(b))); err != nil {
		return err
	}

	return WriteBytes(buf, b)
}

// ReadVarBytes reads a VarInt length prefixed byte string. A zero length
// string decodes to nil. The payload is copied as it arrives, so a forged
// length fails with io.ErrUnexpectedEOF instead of allocating up front.
func ReadVarBytes(r io.Reader) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > math.MaxInt64 {
		return nil, io.ErrUnexpectedEOF
	}

	var b bytes.Buffer
	copied, err := io.CopyN(&b, r, int64(n))
	switch {
	case err == io.EOF && uint64(copied) < n:
		return nil, io.ErrUnexpectedEOF
	case err != nil:
		return nil, err
	}

	return b.Bytes(), nil
}

// WriteVarString writes s as a VarInt length prefixed byte string.
func WriteVarString(buf *bytes.Buffer, s string) error {
	if err := WriteVarInt(buf, uint64(len(s))); err != nil {
		return err
	}

	_, err := buf.WriteString(s)
	return err
}

// ReadVarString reads a VarInt length prefixed byte string.
func ReadVarString(r io.Reader) (string, error) {
	b, err := ReadVarBytes(r)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ElementEncoder writes a single vector element.
type ElementEncoder[T any] func(*bytes.Buffer, T) error

// ElementDecoder reads a single vector element.
type ElementDecoder[T any] func(io.Reader) (T, error)

// WriteVector writes a VarInt element count followed by every element
// written with enc.
func WriteVector[T any](buf *bytes.Buffer, items []T,
	enc ElementEncoder[T]) error {

	if err := WriteVarInt(buf, uint64(len(items))); err != nil {
		return err
	}

	for _, item := range items {
		if err := enc(buf, item); err != nil {
			return err
		}
	}

	return nil
}

// ReadVector reads a VarInt element count followed by that many elements
// read with dec. An empty vector decodes to nil.
func ReadVector[T any](r io.Reader, dec ElementDecoder[T]) ([]T, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	items := make([]T, 0, min(count, vectorPrealloc))
	for i := uint64(0); i < count; i++ {
		item, err := dec(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// elementEncoder is implemented by every value type of this package.
type elementEncoder interface {
	Encode(*bytes.Buffer, uint32) error
}

// encodeWith adapts a value type's own Encode method to an ElementEncoder
// for the given protocol version.
func encodeWith[T elementEncoder](pver uint32) ElementEncoder[T] {
	return func(buf *bytes.Buffer, item T) error {
		return item.Encode(buf, pver)
	}
}

// decodeWith adapts a value type's own Decode method to an ElementDecoder
// for the given protocol version.
func decodeWith[T any, PT interface {
	*T
	Decode(io.Reader, uint32) error
}](pver uint32) ElementDecoder[T] {

	return func(r io.Reader) (T, error) {
		var item T
		err := PT(&item).Decode(r, pver)
		return item, err
	}
}

// WriteInt32Vector writes a vector of little endian int32 values.
func WriteInt32Vector(buf *bytes.Buffer, v []int32) error {
	return WriteVector(buf, v, WriteInt32)
}

// ReadInt32Vector reads a vector of little endian int32 values.
func ReadInt32Vector(r io.Reader) ([]int32, error) {
	return ReadVector(r, ReadInt32)
}

// WriteStringVector writes a vector of var strings.
func WriteStringVector(buf *bytes.Buffer, v []string) error {
	return WriteVector(buf, v, WriteVarString)
}

// ReadStringVector reads a vector of var strings.
func ReadStringVector(r io.Reader) ([]string, error) {
	return ReadVector(r, ReadVarString)
}

// WriteHashVector writes a vector of hashes.
func WriteHashVector(buf *bytes.Buffer, v []Hash256) error {
	return WriteVector(buf, v, WriteHash)
}

// ReadHashVector reads a vector of hashes.
func ReadHashVector(r io.Reader) ([]Hash256, error) {
	return ReadVector(r, ReadHash)
}
