// Package saitest builds small synthetic SAI containers for tests: it lays
// out a directory tree over fixed-size blocks, records chain pointers and
// checksums in table blocks, and encrypts everything with the reference
// inverse of the block cipher.
package saitest

import (
	"encoding/binary"

	"github.com/drawkit/sai/pkg/block"
	"github.com/drawkit/sai/pkg/common"
)

// File is a named stream placed in a Dir.
type File struct {
	Name string
	Data []byte
}

// Dir is a folder in the synthetic container tree. Entry order is the
// on-disk order: files first, then subfolders, each in declaration order.
type Dir struct {
	Files []File
	Dirs  []Subdir
}

// Subdir names a nested Dir.
type Subdir struct {
	Name string
	Dir  Dir
}

// Fixed timestamp stamped on every synthetic entry (FILETIME).
const testFiletime = uint64(132126000000000000)

type builder struct {
	payloads map[uint32][]byte // plaintext data blocks by position
	next     map[uint32]uint32 // chain successor by position
	free     uint32
}

func (b *builder) alloc() uint32 {
	for {
		pos := b.free
		b.free++
		if pos%common.BlocksPerTable != 0 {
			return pos
		}
	}
}

// writeChain splits data into blocks, allocating and linking them. first may
// be preallocated (used to pin the root directory at block 2).
func (b *builder) writeChain(first uint32, data []byte) {
	pos := first
	for off := 0; ; off += common.BlockSize {
		blk := make([]byte, common.BlockSize)
		copy(blk, data[off:])
		b.payloads[pos] = blk
		if off+common.BlockSize >= len(data) {
			b.next[pos] = 0
			return
		}
		succ := b.alloc()
		b.next[pos] = succ
		pos = succ
	}
}

func dirEntry(name string, kind common.EntryKind, nextBlock, size uint32) []byte {
	e := make([]byte, common.DirEntrySize)
	binary.LittleEndian.PutUint32(e[0:], 0x80000000) // flags: in use
	copy(e[4:36], name)
	e[38] = byte(kind)
	binary.LittleEndian.PutUint32(e[40:], nextBlock)
	binary.LittleEndian.PutUint32(e[44:], size)
	binary.LittleEndian.PutUint64(e[48:], testFiletime)
	return e
}

// layoutDir writes d's entry list starting at block first and returns
// nothing; child files and folders are allocated depth-first.
func (b *builder) layoutDir(first uint32, d Dir) {
	var entries []byte
	for _, f := range d.Files {
		fpos := b.alloc()
		b.writeChain(fpos, f.Data)
		entries = append(entries, dirEntry(f.Name, common.EntryKindFile, fpos, uint32(len(f.Data)))...)
	}
	for _, sub := range d.Dirs {
		dpos := b.alloc()
		b.layoutDir(dpos, sub.Dir)
		entries = append(entries, dirEntry(sub.Name, common.EntryKindFolder, dpos, common.DirEntrySize)...)
	}
	// A trailing zero entry terminates the list unless the last block is
	// exactly full; writeChain zero-pads, which produces the same bytes.
	b.writeChain(first, entries)
}

// Container assembles and encrypts a container holding the given root tree.
// The root's entries start at block 2, as real files do.
func Container(root Dir) []byte {
	b := &builder{
		payloads: make(map[uint32][]byte),
		next:     make(map[uint32]uint32),
		free:     common.RootBlock,
	}
	rootPos := b.alloc() // == common.RootBlock
	b.layoutDir(rootPos, root)

	var maxPos uint32
	for pos := range b.payloads {
		if pos > maxPos {
			maxPos = pos
		}
	}
	blockCount := maxPos + 1

	out := make([]byte, int(blockCount)*common.BlockSize)
	tables := make(map[uint32][]byte)

	for pos, payload := range b.payloads {
		cipher, cksum := block.EncryptData(payload)
		copy(out[int(pos)*common.BlockSize:], cipher)

		tablePos := pos &^ (common.BlocksPerTable - 1)
		tbl, ok := tables[tablePos]
		if !ok {
			tbl = make([]byte, common.BlockSize)
			tables[tablePos] = tbl
		}
		slot := int(pos%common.BlocksPerTable) * common.TableEntrySize
		binary.LittleEndian.PutUint32(tbl[slot:], cksum)
		binary.LittleEndian.PutUint32(tbl[slot+4:], b.next[pos])
	}
	for tablePos, tbl := range tables {
		copy(out[int(tablePos)*common.BlockSize:], block.EncryptTable(tbl, tablePos))
	}
	return out
}
