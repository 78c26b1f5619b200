package hnwire

import (
	"bytes"
	"encoding/hex"
)

// ToHex returns the hex encoding of the wire form of v, using our protocol
// version.
func ToHex(v Serializable) (string, error) {
	b, err := serialize(v, MyVersion)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// FromHex decodes the hex encoded wire form s into v, using our protocol
// version. Trailing bytes are ignored.
func FromHex(v Serializable, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}

	return v.Decode(bytes.NewReader(b), MyVersion)
}
