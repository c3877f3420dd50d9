// Package vfs reconstructs the directory tree embedded in a SAI container
// and resolves named streams to their block chains. Directory blocks hold
// packed 64-byte entries; chains are linked through the per-block next
// pointers kept in the table blocks.
package vfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/drawkit/sai/pkg/common"
)

// Entry is one directory record: a folder or a stream, with the position of
// its first block.
type Entry struct {
	Flags     uint32
	Name      string
	Kind      common.EntryKind
	NextBlock uint32
	Size      uint32
	Timestamp time.Time
}

// IsFolder returns true if the entry names a folder.
func (e Entry) IsFolder() bool { return e.Kind == common.EntryKindFolder }

func parseEntry(raw []byte) (Entry, error) {
	flags := binary.LittleEndian.Uint32(raw[0:])

	name := raw[4:36]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	kind := common.EntryKind(raw[38])
	if kind != common.EntryKindFolder && kind != common.EntryKindFile {
		return Entry{}, fmt.Errorf("entry %q: %w: unknown entry kind %#x", name, common.ErrCorrupt, raw[38])
	}

	return Entry{
		Flags:     flags,
		Name:      string(name),
		Kind:      kind,
		NextBlock: binary.LittleEndian.Uint32(raw[40:]),
		Size:      binary.LittleEndian.Uint32(raw[44:]),
		Timestamp: time.Unix(common.FiletimeToUnix(binary.LittleEndian.Uint64(raw[48:])), 0).UTC(),
	}, nil
}
