package hnwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/aead/siphash"
)

const (
	// ShortIDLen is the number of bytes of a short id on the wire.
	ShortIDLen = 6

	// shortIDMask keeps the low 48 bits of a SipHash digest.
	shortIDMask = 1<<(8*ShortIDLen) - 1
)

var (
	// ErrIndexOrder is returned when absolute transaction indexes are not
	// strictly increasing, which has no differential encoding.
	ErrIndexOrder = errors.New("indexes are not strictly increasing")

	// ErrIndexOverflow is returned when a differential index does not fit
	// an absolute index.
	ErrIndexOverflow = errors.New("differential index overflows")

	// ErrPrefillRange is returned when a prefill index is outside the
	// block.
	ErrPrefillRange = errors.New("prefill index out of range")

	// ErrNilTransaction is returned when encoding a prefilled transaction
	// without a transaction.
	ErrNilTransaction = errors.New("prefilled transaction is nil")
)

// PrefilledTx is a transaction sent in full inside a compact block. Index is
// differential in the wire form and absolute in the working form.
type PrefilledTx struct {
	Index uint64
	Tx    *Transaction
}

// Encode serializes the prefilled transaction.
//
// This is part of the Serializable interface.
func (p PrefilledTx) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := WriteVarInt(buf, p.Index); err != nil {
		return err
	}
	if p.Tx == nil {
		return ErrNilTransaction
	}

	return p.Tx.Encode(buf, pver)
}

// Decode deserializes the prefilled transaction.
//
// This is part of the Serializable interface.
func (p *PrefilledTx) Decode(r io.Reader, pver uint32) error {
	var err error
	if p.Index, err = ReadVarInt(r); err != nil {
		return err
	}

	p.Tx, err = ReadTransaction(r, pver)
	return err
}

// P2PHeaderAndShortIDs is a compact block exactly as it travels on the wire:
// the short id count is explicit and prefilled indexes are differential.
type P2PHeaderAndShortIDs struct {
	Header BlockHeader
	Nonce  uint64

	// ShortIDsLength is the count written before the short ids. Encode
	// writes it as is, so a mismatching count can be sent on purpose.
	ShortIDsLength uint64
	ShortIDs       []uint64

	// PrefilledTxnLength is the prefilled count seen by Decode. Encode
	// always writes len(PrefilledTxn).
	PrefilledTxnLength uint64
	PrefilledTxn       []PrefilledTx
}

// Encode serializes the compact block.
//
// This is part of the Serializable interface.
func (p P2PHeaderAndShortIDs) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := p.Header.Encode(buf, pver); err != nil {
		return err
	}
	if err := WriteUint64(buf, p.Nonce); err != nil {
		return err
	}
	if err := WriteVarInt(buf, p.ShortIDsLength); err != nil {
		return err
	}
	for _, id := range p.ShortIDs {
		if err := writeShortID(buf, id); err != nil {
			return err
		}
	}

	return WriteVector(buf, p.PrefilledTxn, encodeWith[PrefilledTx](pver))
}

// Decode deserializes the compact block.
//
// This is part of the Serializable interface.
func (p *P2PHeaderAndShortIDs) Decode(r io.Reader, pver uint32) error {
	if err := p.Header.Decode(r, pver); err != nil {
		return err
	}

	var err error
	if p.Nonce, err = ReadUint64(r); err != nil {
		return err
	}
	if p.ShortIDsLength, err = ReadVarInt(r); err != nil {
		return err
	}

	p.ShortIDs = nil
	if p.ShortIDsLength > 0 {
		p.ShortIDs = make(
			[]uint64, 0, min(p.ShortIDsLength, vectorPrealloc),
		)
	}
	for i := uint64(0); i < p.ShortIDsLength; i++ {
		id, err := readShortID(r)
		if err != nil {
			return err
		}
		p.ShortIDs = append(p.ShortIDs, id)
	}

	p.PrefilledTxn, err = ReadVector(r, decodeWith[PrefilledTx](pver))
	if err != nil {
		return err
	}
	p.PrefilledTxnLength = uint64(len(p.PrefilledTxn))

	return nil
}

// writeShortID writes the low 6 bytes of id in little endian order.
func writeShortID(buf *bytes.Buffer, id uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)

	return WriteBytes(buf, b[:ShortIDLen])
}

// readShortID reads a 6 byte little endian short id.
func readShortID(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:ShortIDLen]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// HeaderAndShortIDs is the working form of a compact block: counts are
// implied and prefilled indexes are absolute.
type HeaderAndShortIDs struct {
	Header       BlockHeader
	Nonce        uint64
	ShortIDs     []uint64
	PrefilledTxn []PrefilledTx
}

// NewHeaderAndShortIDsFromP2P converts the wire form into the working form.
func NewHeaderAndShortIDsFromP2P(
	p *P2PHeaderAndShortIDs) (*HeaderAndShortIDs, error) {

	h := &HeaderAndShortIDs{
		Header:   p.Header,
		Nonce:    p.Nonce,
		ShortIDs: p.ShortIDs,
	}

	diffs := make([]uint64, 0, len(p.PrefilledTxn))
	for _, ptx := range p.PrefilledTxn {
		diffs = append(diffs, ptx.Index)
	}
	abs, err := DifferentialToAbsolute(diffs)
	if err != nil {
		return nil, err
	}

	for i, ptx := range p.PrefilledTxn {
		h.PrefilledTxn = append(h.PrefilledTxn, PrefilledTx{
			Index: abs[i],
			Tx:    ptx.Tx,
		})
	}

	return h, nil
}

// ToP2P converts the working form into the wire form.
func (h *HeaderAndShortIDs) ToP2P() (*P2PHeaderAndShortIDs, error) {
	abs := make([]uint64, 0, len(h.PrefilledTxn))
	for _, ptx := range h.PrefilledTxn {
		abs = append(abs, ptx.Index)
	}
	diffs, err := AbsoluteToDifferential(abs)
	if err != nil {
		return nil, err
	}

	p := &P2PHeaderAndShortIDs{
		Header:             h.Header,
		Nonce:              h.Nonce,
		ShortIDsLength:     uint64(len(h.ShortIDs)),
		ShortIDs:           h.ShortIDs,
		PrefilledTxnLength: uint64(len(h.PrefilledTxn)),
	}
	for i, ptx := range h.PrefilledTxn {
		p.PrefilledTxn = append(p.PrefilledTxn, PrefilledTx{
			Index: diffs[i],
			Tx:    ptx.Tx,
		})
	}

	return p, nil
}

// SipHashKeys derives the two SipHash keys of the compact block from the
// single SHA256 of the serialized header followed by the nonce.
func (h *HeaderAndShortIDs) SipHashKeys() (uint64, uint64) {
	return SipHashKeys(h.Header, h.Nonce)
}

// SipHashKeys derives the SipHash keys for a header and nonce.
func SipHashKeys(header BlockHeader, nonce uint64) (uint64, uint64) {
	var b bytes.Buffer
	_ = header.Encode(&b, 0)
	_ = WriteUint64(&b, nonce)

	digest := SingleHash(b.Bytes())
	k0 := binary.LittleEndian.Uint64(digest[0:8])
	k1 := binary.LittleEndian.Uint64(digest[8:16])

	return k0, k1
}

// CalculateShortID returns the 48 bit SipHash-2-4 digest of a transaction
// hash under the given keys.
func CalculateShortID(k0, k1 uint64, txHash Hash256) uint64 {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], k0)
	binary.LittleEndian.PutUint64(key[8:], k1)

	return siphash.Sum64(txHash[:], &key) & shortIDMask
}

// NewHeaderAndShortIDs builds the working form of a compact block. The
// transactions at the prefill indexes are sent in full, every other one by
// short id. A nil prefill list prefills the coinbase only.
func NewHeaderAndShortIDs(block *Block, nonce uint64,
	prefill []int) (*HeaderAndShortIDs, error) {

	if prefill == nil {
		prefill = []int{0}
	}

	txns := block.Transactions()
	prefilled := make(map[int]struct{}, len(prefill))
	h := &HeaderAndShortIDs{
		Header: block.Header(),
		Nonce:  nonce,
	}
	for _, i := range prefill {
		if i < 0 || i >= len(txns) {
			return nil, fmt.Errorf("%w: %d not in [0, %d)",
				ErrPrefillRange, i, len(txns))
		}

		prefilled[i] = struct{}{}
		h.PrefilledTxn = append(h.PrefilledTxn, PrefilledTx{
			Index: uint64(i),
			Tx:    txns[i],
		})
	}

	k0, k1 := h.SipHashKeys()
	for i, tx := range txns {
		if _, ok := prefilled[i]; ok {
			continue
		}
		h.ShortIDs = append(h.ShortIDs, CalculateShortID(k0, k1, tx.Hash()))
	}

	return h, nil
}

// AbsoluteToDifferential encodes strictly increasing absolute indexes as
// the distance from the previous index minus one.
func AbsoluteToDifferential(abs []uint64) ([]uint64, error) {
	diffs := make([]uint64, 0, len(abs))
	for i, x := range abs {
		if i == 0 {
			diffs = append(diffs, x)
			continue
		}
		if x <= abs[i-1] {
			return nil, fmt.Errorf("%w: %d follows %d", ErrIndexOrder,
				x, abs[i-1])
		}
		diffs = append(diffs, x-abs[i-1]-1)
	}

	return diffs, nil
}

// DifferentialToAbsolute reverses AbsoluteToDifferential.
func DifferentialToAbsolute(diffs []uint64) ([]uint64, error) {
	abs := make([]uint64, 0, len(diffs))
	for i, d := range diffs {
		if i == 0 {
			abs = append(abs, d)
			continue
		}

		last := abs[i-1]
		if last == math.MaxUint64 || d > math.MaxUint64-last-1 {
			return nil, fmt.Errorf("%w: %d after %d", ErrIndexOverflow,
				d, last)
		}
		abs = append(abs, last+d+1)
	}

	return abs, nil
}

// BlockTransactionsRequest asks for transactions of a block by index. The
// indexes are stored differentially, as on the wire.
type BlockTransactionsRequest struct {
	BlockHash Hash256
	Indexes   []uint64
}

// NewBlockTransactionsRequest builds a request from absolute indexes.
func NewBlockTransactionsRequest(blockHash Hash256,
	absolute []uint64) (BlockTransactionsRequest, error) {

	req := BlockTransactionsRequest{BlockHash: blockHash}
	err := req.FromAbsolute(absolute)

	return req, err
}

// FromAbsolute replaces the indexes with the differential encoding of the
// given strictly increasing absolute indexes.
func (b *BlockTransactionsRequest) FromAbsolute(absolute []uint64) error {
	diffs, err := AbsoluteToDifferential(absolute)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		diffs = nil
	}
	b.Indexes = diffs

	return nil
}

// ToAbsolute returns the absolute indexes of the request.
func (b BlockTransactionsRequest) ToAbsolute() ([]uint64, error) {
	return DifferentialToAbsolute(b.Indexes)
}

// Encode serializes the request.
//
// This is part of the Serializable interface.
func (b BlockTransactionsRequest) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteHash(buf, b.BlockHash); err != nil {
		return err
	}

	return WriteVector(buf, b.Indexes, WriteVarInt)
}

// Decode deserializes the request.
//
// This is part of the Serializable interface.
func (b *BlockTransactionsRequest) Decode(r io.Reader, _ uint32) error {
	var err error
	if b.BlockHash, err = ReadHash(r); err != nil {
		return err
	}

	b.Indexes, err = ReadVector(r, ReadVarInt)
	return err
}

// BlockTransactions answers a BlockTransactionsRequest.
type BlockTransactions struct {
	BlockHash    Hash256
	Transactions []*Transaction
}

// Encode serializes the response.
//
// This is part of the Serializable interface.
func (b BlockTransactions) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := WriteHash(buf, b.BlockHash); err != nil {
		return err
	}

	return WriteVector(
		buf, b.Transactions, encodeWith[*Transaction](pver),
	)
}

// Decode deserializes the response.
//
// This is part of the Serializable interface.
func (b *BlockTransactions) Decode(r io.Reader, pver uint32) error {
	var err error
	if b.BlockHash, err = ReadHash(r); err != nil {
		return err
	}

	b.Transactions, err = ReadVector(r, func(r io.Reader) (*Transaction,
		error) {

		return ReadTransaction(r, pver)
	})

	return err
}
