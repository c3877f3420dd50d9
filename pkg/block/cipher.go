// Package block implements the encrypted-block layer of the SAI container:
// the position-dependent block cipher, the block checksum, and a cached
// random-access store of decrypted blocks.
//
// A container is an array of 4096-byte blocks encrypted independently. The
// cipher has no document secret; the keystream for a block is derived only
// from a fixed vendor table and a per-block seed. Table blocks (every 512th
// position) seed with their own position and carry the checksums and chain
// pointers for the 511 blocks after them; data blocks seed with the checksum
// recorded in their table entry.
package block

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/drawkit/sai/pkg/common"
)

// TableEntry is one 8-byte slot of a decrypted table block: the checksum of
// the covered block and the position of its successor in a chain (0 if the
// chain ends there).
type TableEntry struct {
	Checksum  uint32
	NextBlock uint32
}

// Checksum computes the integrity checksum over a decrypted 4096-byte block.
// The low bit is always set, so a valid checksum is never zero.
func Checksum(payload []byte) uint32 {
	if len(payload) != common.BlockSize {
		panic("block: checksum payload must be one block")
	}
	var sum uint32
	for i := 0; i < common.BlockSize; i += 4 {
		sum = bits.RotateLeft32(sum, 1) ^ binary.LittleEndian.Uint32(payload[i:])
	}
	return sum | 1
}

// keyOf derives one keystream word from the previous word by summing the
// vendor table entries selected by its four bytes.
func keyOf(v uint32) uint32 {
	return keyTable[v&0xFF] +
		keyTable[(v>>8)&0xFF] +
		keyTable[(v>>16)&0xFF] +
		keyTable[(v>>24)&0xFF]
}

// DecryptTable decrypts a table block located at position pos and validates
// its embedded checksum (stored in its own entry slot, computed with that
// slot zeroed). Returns the plaintext payload and its parsed entries.
func DecryptTable(ciphertext []byte, pos uint32) ([]byte, []TableEntry, error) {
	if len(ciphertext) != common.BlockSize {
		return nil, nil, fmt.Errorf("table block %d: %w: short block (%d bytes)", pos, common.ErrCorrupt, len(ciphertext))
	}

	plain := make([]byte, common.BlockSize)
	prev := pos
	for i := 0; i < common.BlockSize; i += 4 {
		word := binary.LittleEndian.Uint32(ciphertext[i:])
		out := bits.RotateLeft32(prev^word^keyOf(prev), 16)
		binary.LittleEndian.PutUint32(plain[i:], out)
		prev = word
	}

	expected := binary.LittleEndian.Uint32(plain)
	binary.LittleEndian.PutUint32(plain, 0)
	actual := Checksum(plain)
	if actual != expected {
		return nil, nil, fmt.Errorf("table block %d: %w: checksum mismatch (expected %#x, got %#x)", pos, common.ErrCorrupt, expected, actual)
	}
	binary.LittleEndian.PutUint32(plain, actual)

	entries := make([]TableEntry, common.BlocksPerTable)
	for i := range entries {
		off := i * common.TableEntrySize
		entries[i] = TableEntry{
			Checksum:  binary.LittleEndian.Uint32(plain[off:]),
			NextBlock: binary.LittleEndian.Uint32(plain[off+4:]),
		}
	}
	return plain, entries, nil
}

// DecryptData decrypts a data block using the checksum recorded in its table
// entry as the keystream seed, then validates the plaintext against that
// same checksum.
func DecryptData(ciphertext []byte, pos, checksum uint32) ([]byte, error) {
	if len(ciphertext) != common.BlockSize {
		return nil, fmt.Errorf("data block %d: %w: short block (%d bytes)", pos, common.ErrCorrupt, len(ciphertext))
	}

	plain := make([]byte, common.BlockSize)
	prev := checksum
	for i := 0; i < common.BlockSize; i += 4 {
		word := binary.LittleEndian.Uint32(ciphertext[i:])
		binary.LittleEndian.PutUint32(plain[i:], word-(prev^keyOf(prev)))
		prev = word
	}

	if actual := Checksum(plain); actual != checksum {
		return nil, fmt.Errorf("data block %d: %w: checksum mismatch (expected %#x, got %#x)", pos, common.ErrCorrupt, checksum, actual)
	}
	return plain, nil
}

// EncryptTable is the inverse of DecryptTable. The payload's own checksum
// slot is filled in before encryption. Used to build fixtures; the library
// itself never writes containers.
func EncryptTable(payload []byte, pos uint32) []byte {
	if len(payload) != common.BlockSize {
		panic("block: encrypt payload must be one block")
	}
	plain := make([]byte, common.BlockSize)
	copy(plain, payload)
	binary.LittleEndian.PutUint32(plain, 0)
	binary.LittleEndian.PutUint32(plain, Checksum(plain))

	out := make([]byte, common.BlockSize)
	prev := pos
	for i := 0; i < common.BlockSize; i += 4 {
		word := binary.LittleEndian.Uint32(plain[i:])
		enc := bits.RotateLeft32(word, 16) ^ prev ^ keyOf(prev)
		binary.LittleEndian.PutUint32(out[i:], enc)
		prev = enc
	}
	return out
}

// EncryptData is the inverse of DecryptData and returns the ciphertext along
// with the plaintext checksum that belongs in the block's table entry.
func EncryptData(payload []byte) ([]byte, uint32) {
	if len(payload) != common.BlockSize {
		panic("block: encrypt payload must be one block")
	}
	cksum := Checksum(payload)

	out := make([]byte, common.BlockSize)
	prev := cksum
	for i := 0; i < common.BlockSize; i += 4 {
		word := binary.LittleEndian.Uint32(payload[i:])
		enc := word + (prev ^ keyOf(prev))
		binary.LittleEndian.PutUint32(out[i:], enc)
		prev = enc
	}
	return out, cksum
}
