package hnwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
)

var (
	// ErrOutputValueRange is returned when a transaction output carries
	// a value outside [0, MaxMoney].
	ErrOutputValueRange = errors.New("output value out of range")
)

// OutPoint references an output of a previous transaction.
type OutPoint struct {
	Hash  Hash256
	Index uint32
}

// String returns the outpoint as "hash:index".
func (o OutPoint) String() string {
	return fmt.Sprintf("%v:%d", o.Hash, o.Index)
}

// Encode serializes the outpoint.
//
// This is part of the Serializable interface.
func (o OutPoint) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteHash(buf, o.Hash); err != nil {
		return err
	}

	return WriteUint32(buf, o.Index)
}

// Decode deserializes the outpoint.
//
// This is part of the Serializable interface.
func (o *OutPoint) Decode(r io.Reader, _ uint32) error {
	var err error
	if o.Hash, err = ReadHash(r); err != nil {
		return err
	}

	o.Index, err = ReadUint32(r)
	return err
}

// TxIn is a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// Encode serializes the input.
//
// This is part of the Serializable interface.
func (in TxIn) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := in.PreviousOutPoint.Encode(buf, pver); err != nil {
		return err
	}
	if err := WriteVarBytes(buf, in.SignatureScript); err != nil {
		return err
	}

	return WriteUint32(buf, in.Sequence)
}

// Decode deserializes the input.
//
// This is part of the Serializable interface.
func (in *TxIn) Decode(r io.Reader, pver uint32) error {
	if err := in.PreviousOutPoint.Decode(r, pver); err != nil {
		return err
	}

	var err error
	if in.SignatureScript, err = ReadVarBytes(r); err != nil {
		return err
	}

	in.Sequence, err = ReadUint32(r)
	return err
}

// TxOut is a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// Encode serializes the output.
//
// This is part of the Serializable interface.
func (out TxOut) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteInt64(buf, out.Value); err != nil {
		return err
	}

	return WriteVarBytes(buf, out.PkScript)
}

// Decode deserializes the output.
//
// This is part of the Serializable interface.
func (out *TxOut) Decode(r io.Reader, _ uint32) error {
	var err error
	if out.Value, err = ReadInt64(r); err != nil {
		return err
	}

	out.PkScript, err = ReadVarBytes(r)
	return err
}

// Transaction is an immutable transaction. Its hash is computed when it is
// constructed or decoded, so it never goes stale. Inputs and outputs are
// copied on the way in and out.
type Transaction struct {
	version  int32
	txIn     []TxIn
	txOut    []TxOut
	lockTime uint32

	hash Hash256
}

// NewTransaction builds a transaction and computes its hash.
func NewTransaction(version int32, txIn []TxIn, txOut []TxOut,
	lockTime uint32) *Transaction {

	tx := &Transaction{
		version:  version,
		txIn:     cloneTxIn(txIn),
		txOut:    cloneTxOut(txOut),
		lockTime: lockTime,
	}
	tx.rehash()

	return tx
}

// A compile time check to ensure Transaction implements the Serializable
// interface.
var _ Serializable = (*Transaction)(nil)

// Version returns the transaction version.
func (t *Transaction) Version() int32 {
	return t.version
}

// TxIn returns the inputs of the transaction.
func (t *Transaction) TxIn() []TxIn {
	return cloneTxIn(t.txIn)
}

// TxOut returns the outputs of the transaction.
func (t *Transaction) TxOut() []TxOut {
	return cloneTxOut(t.txOut)
}

func cloneTxIn(txIn []TxIn) []TxIn {
	txIn = slices.Clone(txIn)
	for i := range txIn {
		txIn[i].SignatureScript = bytes.Clone(txIn[i].SignatureScript)
	}

	return txIn
}

func cloneTxOut(txOut []TxOut) []TxOut {
	txOut = slices.Clone(txOut)
	for i := range txOut {
		txOut[i].PkScript = bytes.Clone(txOut[i].PkScript)
	}

	return txOut
}

// LockTime returns the lock time of the transaction.
func (t *Transaction) LockTime() uint32 {
	return t.lockTime
}

// Hash returns the double SHA256 of the serialized transaction in wire
// order.
func (t *Transaction) Hash() Hash256 {
	return t.hash
}

// DisplayHash returns the transaction id as shown by RPC.
func (t *Transaction) DisplayHash() string {
	return t.hash.String()
}

// WithLockTime returns a copy of the transaction with a new lock time.
func (t *Transaction) WithLockTime(lockTime uint32) *Transaction {
	return NewTransaction(t.version, t.txIn, t.txOut, lockTime)
}

// WithTxOut returns a copy of the transaction with new outputs.
func (t *Transaction) WithTxOut(txOut []TxOut) *Transaction {
	return NewTransaction(t.version, t.txIn, txOut, t.lockTime)
}

// Validate checks that every output value lies in [0, MaxMoney].
func (t *Transaction) Validate() error {
	for i, out := range t.txOut {
		if out.Value < 0 || out.Value > MaxMoney {
			return fmt.Errorf("%w: output %d of %v has value %d",
				ErrOutputValueRange, i, t.hash, out.Value)
		}
	}

	return nil
}

// IsValid reports whether Validate succeeds.
func (t *Transaction) IsValid() bool {
	return t.Validate() == nil
}

// Serialize returns the wire encoding of the transaction.
func (t *Transaction) Serialize() []byte {
	var b bytes.Buffer
	_ = t.Encode(&b, 0)

	return b.Bytes()
}

// String returns a short human readable description.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction(version=%d, vin=%d, vout=%d, "+
		"locktime=%d, hash=%v)", t.version, len(t.txIn), len(t.txOut),
		t.lockTime, t.hash)
}

// Encode serializes the transaction.
//
// This is part of the Serializable interface.
func (t *Transaction) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := WriteInt32(buf, t.version); err != nil {
		return err
	}
	err := WriteVector(buf, t.txIn, encodeWith[TxIn](pver))
	if err != nil {
		return err
	}
	err = WriteVector(buf, t.txOut, encodeWith[TxOut](pver))
	if err != nil {
		return err
	}

	return WriteUint32(buf, t.lockTime)
}

// Decode deserializes the transaction and recomputes its hash.
//
// This is part of the Serializable interface.
func (t *Transaction) Decode(r io.Reader, pver uint32) error {
	var err error
	if t.version, err = ReadInt32(r); err != nil {
		return err
	}

	if t.txIn, err = ReadVector(r, decodeWith[TxIn](pver)); err != nil {
		return err
	}
	if t.txOut, err = ReadVector(r, decodeWith[TxOut](pver)); err != nil {
		return err
	}

	if t.lockTime, err = ReadUint32(r); err != nil {
		return err
	}
	t.rehash()

	return nil
}

// rehash recomputes the cached hash.
func (t *Transaction) rehash() {
	t.hash = DoubleHash(t.Serialize())
}

// ReadTransaction decodes a transaction from r.
func ReadTransaction(r io.Reader, pver uint32) (*Transaction, error) {
	tx := &Transaction{}
	if err := tx.Decode(r, pver); err != nil {
		return nil, err
	}

	return tx, nil
}
