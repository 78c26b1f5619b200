package hnwire

import (
	"bytes"
	"io"
)

// UnsignedAlert is the payload of a legacy network alert before signing.
type UnsignedAlert struct {
	Version    int32
	RelayUntil int64
	Expiration int64
	ID         int32
	Cancel     int32
	SetCancel  []int32
	MinVer     int32
	MaxVer     int32
	SetSubVer  []string
	Priority   int32
	Comment    string
	StatusBar  string
	Reserved   string
}

// Encode serializes the unsigned alert.
//
// This is part of the Serializable interface.
func (a UnsignedAlert) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteInt32(buf, a.Version); err != nil {
		return err
	}
	if err := WriteInt64(buf, a.RelayUntil); err != nil {
		return err
	}
	if err := WriteInt64(buf, a.Expiration); err != nil {
		return err
	}
	if err := WriteInt32(buf, a.ID); err != nil {
		return err
	}
	if err := WriteInt32(buf, a.Cancel); err != nil {
		return err
	}
	if err := WriteInt32Vector(buf, a.SetCancel); err != nil {
		return err
	}
	if err := WriteInt32(buf, a.MinVer); err != nil {
		return err
	}
	if err := WriteInt32(buf, a.MaxVer); err != nil {
		return err
	}
	if err := WriteStringVector(buf, a.SetSubVer); err != nil {
		return err
	}
	if err := WriteInt32(buf, a.Priority); err != nil {
		return err
	}
	if err := WriteVarString(buf, a.Comment); err != nil {
		return err
	}
	if err := WriteVarString(buf, a.StatusBar); err != nil {
		return err
	}

	return WriteVarString(buf, a.Reserved)
}

// Decode deserializes the unsigned alert.
//
// This is part of the Serializable interface.
func (a *UnsignedAlert) Decode(r io.Reader, _ uint32) error {
	var err error
	if a.Version, err = ReadInt32(r); err != nil {
		return err
	}
	if a.RelayUntil, err = ReadInt64(r); err != nil {
		return err
	}
	if a.Expiration, err = ReadInt64(r); err != nil {
		return err
	}
	if a.ID, err = ReadInt32(r); err != nil {
		return err
	}
	if a.Cancel, err = ReadInt32(r); err != nil {
		return err
	}
	if a.SetCancel, err = ReadInt32Vector(r); err != nil {
		return err
	}
	if a.MinVer, err = ReadInt32(r); err != nil {
		return err
	}
	if a.MaxVer, err = ReadInt32(r); err != nil {
		return err
	}
	if a.SetSubVer, err = ReadStringVector(r); err != nil {
		return err
	}
	if a.Priority, err = ReadInt32(r); err != nil {
		return err
	}
	if a.Comment, err = ReadVarString(r); err != nil {
		return err
	}
	if a.StatusBar, err = ReadVarString(r); err != nil {
		return err
	}

	a.Reserved, err = ReadVarString(r)
	return err
}

// Alert is a serialized UnsignedAlert together with its signature.
type Alert struct {
	Payload   []byte
	Signature []byte
}

// NewAlert serializes the unsigned alert and attaches the signature.
func NewAlert(unsigned UnsignedAlert, sig []byte) (Alert, error) {
	payload, err := serialize(&unsigned, 0)
	if err != nil {
		return Alert{}, err
	}

	return Alert{Payload: payload, Signature: sig}, nil
}

// Unsigned decodes the alert payload.
func (a Alert) Unsigned() (UnsignedAlert, error) {
	var u UnsignedAlert
	err := u.Decode(bytes.NewReader(a.Payload), 0)

	return u, err
}

// Encode serializes the alert.
//
// This is part of the Serializable interface.
func (a Alert) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteVarBytes(buf, a.Payload); err != nil {
		return err
	}

	return WriteVarBytes(buf, a.Signature)
}

// Decode deserializes the alert.
//
// This is part of the Serializable interface.
func (a *Alert) Decode(r io.Reader, _ uint32) error {
	var err error
	if a.Payload, err = ReadVarBytes(r); err != nil {
		return err
	}

	a.Signature, err = ReadVarBytes(r)
	return err
}
