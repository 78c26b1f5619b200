package hnwire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
)

// BlockHeaderLen is the length of a serialized block header.
const BlockHeaderLen = 80

var (
	// ErrHighHash is returned when a block hash exceeds the target
	// encoded in its bits.
	ErrHighHash = errors.New("block hash is higher than target")

	// ErrBadMerkleRoot is returned when the merkle root of a header does
	// not commit to the block's transactions.
	ErrBadMerkleRoot = errors.New("merkle root mismatch")

	// ErrNonceExhausted is returned by Solve when every nonce was tried.
	ErrNonceExhausted = errors.New("nonce space exhausted")
)

// solveCheckInterval is the number of nonces tried between two context
// checks while solving a block.
const solveCheckInterval = 1 << 12

// BlockHeader is an immutable block header with a precomputed hash.
type BlockHeader struct {
	version    int32
	prevBlock  Hash256
	merkleRoot Hash256
	timestamp  uint32
	bits       uint32
	nonce      uint32

	hash Hash256
}

// NewBlockHeader builds a header and computes its hash.
func NewBlockHeader(version int32, prevBlock, merkleRoot Hash256,
	timestamp, bits, nonce uint32) BlockHeader {

	h := BlockHeader{
		version:    version,
		prevBlock:  prevBlock,
		merkleRoot: merkleRoot,
		timestamp:  timestamp,
		bits:       bits,
		nonce:      nonce,
	}
	h.rehash()

	return h
}

// Version returns the block version.
func (h BlockHeader) Version() int32 { return h.version }

// PrevBlock returns the hash of the previous block.
func (h BlockHeader) PrevBlock() Hash256 { return h.prevBlock }

// MerkleRoot returns the merkle root committed to by the header.
func (h BlockHeader) MerkleRoot() Hash256 { return h.merkleRoot }

// Timestamp returns the block time in unix seconds.
func (h BlockHeader) Timestamp() uint32 { return h.timestamp }

// Bits returns the compact difficulty target.
func (h BlockHeader) Bits() uint32 { return h.bits }

// Nonce returns the proof of work nonce.
func (h BlockHeader) Nonce() uint32 { return h.nonce }

// Hash returns the double SHA256 of the serialized header in wire order.
func (h BlockHeader) Hash() Hash256 { return h.hash }

// DisplayHash returns the block hash as shown by RPC.
func (h BlockHeader) DisplayHash() string { return h.hash.String() }

// WithNonce returns a copy of the header with a new nonce.
func (h BlockHeader) WithNonce(nonce uint32) BlockHeader {
	return NewBlockHeader(
		h.version, h.prevBlock, h.merkleRoot, h.timestamp, h.bits, nonce,
	)
}

// WithMerkleRoot returns a copy of the header with a new merkle root.
func (h BlockHeader) WithMerkleRoot(root Hash256) BlockHeader {
	return NewBlockHeader(
		h.version, h.prevBlock, root, h.timestamp, h.bits, h.nonce,
	)
}

// WithTimestamp returns a copy of the header with a new timestamp.
func (h BlockHeader) WithTimestamp(timestamp uint32) BlockHeader {
	return NewBlockHeader(
		h.version, h.prevBlock, h.merkleRoot, timestamp, h.bits, h.nonce,
	)
}

// CheckProofOfWork returns ErrHighHash if the header hash is above the
// target encoded in its bits.
func (h BlockHeader) CheckProofOfWork() error {
	target := CompactToTarget(h.bits)
	if h.hash.Big().Cmp(target) > 0 {
		return fmt.Errorf("%w: hash %v, target %064x", ErrHighHash,
			h.hash, target)
	}

	return nil
}

// String returns a short human readable description.
func (h BlockHeader) String() string {
	return fmt.Sprintf("BlockHeader(version=%d, prev=%v, merkle=%v, "+
		"time=%d, bits=%08x, nonce=%08x, hash=%v)", h.version,
		h.prevBlock, h.merkleRoot, h.timestamp, h.bits, h.nonce, h.hash)
}

// Encode serializes the 80 byte header.
//
// This is part of the Serializable interface.
func (h BlockHeader) Encode(buf *bytes.Buffer, _ uint32) error {
	if err := WriteInt32(buf, h.version); err != nil {
		return err
	}
	if err := WriteHash(buf, h.prevBlock); err != nil {
		return err
	}
	if err := WriteHash(buf, h.merkleRoot); err != nil {
		return err
	}
	if err := WriteUint32(buf, h.timestamp); err != nil {
		return err
	}
	if err := WriteUint32(buf, h.bits); err != nil {
		return err
	}

	return WriteUint32(buf, h.nonce)
}

// Decode deserializes the header and recomputes its hash.
//
// This is part of the Serializable interface.
func (h *BlockHeader) Decode(r io.Reader, _ uint32) error {
	var raw [BlockHeaderLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return err
	}

	br := bytes.NewReader(raw[:])
	h.version, _ = ReadInt32(br)
	h.prevBlock, _ = ReadHash(br)
	h.merkleRoot, _ = ReadHash(br)
	h.timestamp, _ = ReadUint32(br)
	h.bits, _ = ReadUint32(br)
	h.nonce, _ = ReadUint32(br)
	h.hash = DoubleHash(raw[:])

	return nil
}

// rehash recomputes the cached hash.
func (h *BlockHeader) rehash() {
	var b bytes.Buffer
	_ = h.Encode(&b, 0)
	h.hash = DoubleHash(b.Bytes())
}

// Block is a block header together with its transactions. The transaction
// list is copied on the way in and out.
type Block struct {
	header       BlockHeader
	transactions []*Transaction
}

// NewBlock returns a block made of the given header and transactions. The
// header is used as is, see WithMerkleRoot to commit to the transactions.
func NewBlock(header BlockHeader, txns []*Transaction) *Block {
	return &Block{
		header:       header,
		transactions: slices.Clone(txns),
	}
}

// A compile time check to ensure Block implements the Serializable
// interface.
var _ Serializable = (*Block)(nil)

// Header returns the block header.
func (b *Block) Header() BlockHeader {
	return b.header
}

// Transactions returns the transactions of the block.
func (b *Block) Transactions() []*Transaction {
	return slices.Clone(b.transactions)
}

// Hash returns the block hash.
func (b *Block) Hash() Hash256 {
	return b.header.Hash()
}

// DisplayHash returns the block hash as shown by RPC.
func (b *Block) DisplayHash() string {
	return b.header.DisplayHash()
}

// WithHeader returns a block with the same transactions and a new header.
func (b *Block) WithHeader(header BlockHeader) *Block {
	return NewBlock(header, b.transactions)
}

// WithMerkleRoot returns a block whose header commits to its transactions.
func (b *Block) WithMerkleRoot() *Block {
	return b.WithHeader(b.header.WithMerkleRoot(b.CalcMerkleRoot()))
}

// CalcMerkleRoot computes the merkle root over the block's transactions.
func (b *Block) CalcMerkleRoot() Hash256 {
	hashes := make([]Hash256, 0, len(b.transactions))
	for _, tx := range b.transactions {
		hashes = append(hashes, tx.Hash())
	}

	return CalcMerkleRoot(hashes)
}

// Validate checks the proof of work, every transaction and the merkle root.
func (b *Block) Validate() error {
	if err := b.header.CheckProofOfWork(); err != nil {
		return err
	}

	for _, tx := range b.transactions {
		if err := tx.Validate(); err != nil {
			return err
		}
	}

	if root := b.CalcMerkleRoot(); root != b.header.MerkleRoot() {
		return fmt.Errorf("%w: header has %v, computed %v",
			ErrBadMerkleRoot, b.header.MerkleRoot(), root)
	}

	return nil
}

// IsValid reports whether Validate succeeds.
func (b *Block) IsValid() bool {
	return b.Validate() == nil
}

// Solve increments the nonce, starting at the current one, until the block
// hash is at or below the target. It only gives up when ctx is done or the
// nonce space is exhausted.
func (b *Block) Solve(ctx context.Context) (*Block, error) {
	target := CompactToTarget(b.header.Bits())

	header := b.header
	for i := 0; ; i++ {
		if header.Hash().Big().Cmp(target) <= 0 {
			return b.WithHeader(header), nil
		}

		if i%solveCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if header.Nonce() == math.MaxUint32 {
			return nil, ErrNonceExhausted
		}
		header = header.WithNonce(header.Nonce() + 1)
	}
}

// String returns a short human readable description.
func (b *Block) String() string {
	return fmt.Sprintf("Block(%v, vtx=%d)", b.header, len(b.transactions))
}

// Encode serializes the header followed by the transaction vector.
//
// This is part of the Serializable interface.
func (b *Block) Encode(buf *bytes.Buffer, pver uint32) error {
	if err := b.header.Encode(buf, pver); err != nil {
		return err
	}

	return WriteVector(buf, b.transactions, encodeWith[*Transaction](pver))
}

// Decode deserializes the block.
//
// This is part of the Serializable interface.
func (b *Block) Decode(r io.Reader, pver uint32) error {
	if err := b.header.Decode(r, pver); err != nil {
		return err
	}

	var err error
	b.transactions, err = ReadVector(r, func(r io.Reader) (*Transaction,
		error) {

		return ReadTransaction(r, pver)
	})

	return err
}

// CalcMerkleRoot folds the leaf hashes pairwise with a double SHA256,
// duplicating the last hash of every odd sized level. An empty list yields
// the zero hash.
func CalcMerkleRoot(leaves []Hash256) Hash256 {
	if len(leaves) == 0 {
		return ZeroHash
	}

	level := append([]Hash256(nil), leaves...)
	var pair [2 * HashSize]byte
	for len(level) > 1 {
		next := make([]Hash256, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}

			copy(pair[:HashSize], level[i][:])
			copy(pair[HashSize:], right[:])
			next = append(next, DoubleHash(pair[:]))
		}
		level = next
	}

	return level[0]
}
