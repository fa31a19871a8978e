package types

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Hash is a 32-byte keccak256 digest.
type Hash [32]byte

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// Word encodes x as a 32-byte big-endian word. x must fit in 256 bits.
func Word(x *big.Int) []byte {
	out := make([]byte, 32)
	if x != nil {
		x.FillBytes(out)
	}
	return out
}

// Uint64Word encodes v as a 32-byte big-endian word.
func Uint64Word(v uint64) []byte {
	out := make([]byte, 32)
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}
