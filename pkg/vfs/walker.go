package vfs

import (
	"fmt"
	"path"

	log "github.com/rs/zerolog/log"

	"github.com/drawkit/sai/pkg/block"
	"github.com/drawkit/sai/pkg/common"
)

// Walker resolves directory structure on demand from a block store. It keeps
// no tree of its own; an Entry's NextBlock is all the state needed to list a
// folder or open a stream.
type Walker struct {
	store *block.Store
}

func NewWalker(store *block.Store) *Walker {
	return &Walker{store: store}
}

// Root returns the synthetic entry for the container's root folder. Its
// contents live at the format's fixed root block.
func (w *Walker) Root() Entry {
	return Entry{
		Name:      "/",
		Kind:      common.EntryKindFolder,
		NextBlock: common.RootBlock,
	}
}

// ListChildren parses folder's entry list in on-disk order, following
// continuation blocks until the list terminates. A revisited block position
// means the chain is cyclic and the container corrupt.
func (w *Walker) ListChildren(folder Entry) ([]Entry, error) {
	if !folder.IsFolder() {
		return nil, fmt.Errorf("folder %q: %w: entry is a %s, not a folder", folder.Name, common.ErrCorrupt, folder.Kind)
	}

	var entries []Entry
	visited := make(map[uint32]struct{})

	pos := folder.NextBlock
	for pos != 0 {
		if _, ok := visited[pos]; ok {
			return nil, fmt.Errorf("folder %q: %w: cyclic directory chain at block %d", folder.Name, common.ErrCorrupt, pos)
		}
		visited[pos] = struct{}{}

		payload, next, err := w.store.ReadData(pos)
		if err != nil {
			return nil, fmt.Errorf("folder %q: %w", folder.Name, err)
		}

		done := false
		for off := 0; off < common.BlockSize; off += common.DirEntrySize {
			raw := payload[off : off+common.DirEntrySize]
			if flagsOf(raw) == 0 {
				done = true
				break
			}
			entry, err := parseEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("folder %q: %w", folder.Name, err)
			}
			entries = append(entries, entry)
		}
		if done {
			break
		}
		pos = next
	}

	log.Debug().Str("folder", folder.Name).Int("entries", len(entries)).Msg("listed folder")
	return entries, nil
}

func flagsOf(raw []byte) uint32 {
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
}

// Walk visits every entry under root depth-first, in on-disk order, calling
// fn with the entry's absolute path. Returning an error from fn stops the
// walk.
func (w *Walker) Walk(fn func(p string, e Entry) error) error {
	return w.walkDir("/", w.Root(), fn)
}

func (w *Walker) walkDir(dir string, folder Entry, fn func(p string, e Entry) error) error {
	children, err := w.ListChildren(folder)
	if err != nil {
		return err
	}
	for _, child := range children {
		p := path.Join(dir, child.Name)
		if err := fn(p, child); err != nil {
			return err
		}
		if child.IsFolder() {
			if err := w.walkDir(p, child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// OpenStream returns a random-access view over a stream entry's bytes.
func (w *Walker) OpenStream(e Entry) (*Stream, error) {
	if e.IsFolder() {
		return nil, fmt.Errorf("stream %q: %w: entry is a folder", e.Name, common.ErrCorrupt)
	}
	return newStream(w.store, e), nil
}
