package vfs

import (
	"fmt"
	"io"
	"sync"

	"github.com/drawkit/sai/pkg/block"
	"github.com/drawkit/sai/pkg/common"
)

// Stream is a byte-addressable view over a stream entry's block chain. It
// implements io.ReaderAt, so concurrent readers can each hold their own
// offset; the only shared state is the lazily resolved chain, guarded by a
// mutex. Blocks are fetched (and decrypted) on demand through the store.
type Stream struct {
	store *block.Store
	name  string
	size  int64

	mu      sync.Mutex
	chain   []uint32
	next    uint32 // first unresolved position; 0 when the chain ended
	visited map[uint32]struct{}
}

func newStream(store *block.Store, e Entry) *Stream {
	return &Stream{
		store:   store,
		name:    e.Name,
		size:    int64(e.Size),
		next:    e.NextBlock,
		visited: make(map[uint32]struct{}),
	}
}

// Name returns the directory entry name the stream was opened from.
func (s *Stream) Name() string { return s.name }

// Size returns the stream's declared length in bytes.
func (s *Stream) Size() int64 { return s.size }

// Reader returns an independent sequential cursor over the whole stream.
func (s *Stream) Reader() *io.SectionReader {
	return io.NewSectionReader(s, 0, s.size)
}

// maxChainBlocks bounds traversal: a well-formed chain holds exactly the
// blocks the declared size requires. Anything longer is a cycle or garbage.
func (s *Stream) maxChainBlocks() int {
	return int((s.size + common.BlockSize - 1) / common.BlockSize)
}

// payloadAt resolves the chain up to chain index i and returns that block's
// decrypted payload.
func (s *Stream) payloadAt(i int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.chain) <= i {
		if s.next == 0 {
			return nil, fmt.Errorf("stream %q: %w: chain ended after %d blocks, size %d needs %d",
				s.name, common.ErrCorrupt, len(s.chain), s.size, s.maxChainBlocks())
		}
		if len(s.chain) >= s.maxChainBlocks() {
			return nil, fmt.Errorf("stream %q: %w: chain exceeds the %d blocks its size allows",
				s.name, common.ErrCorrupt, s.maxChainBlocks())
		}
		if _, ok := s.visited[s.next]; ok {
			return nil, fmt.Errorf("stream %q: %w: cyclic block chain at block %d", s.name, common.ErrCorrupt, s.next)
		}
		s.visited[s.next] = struct{}{}
		s.chain = append(s.chain, s.next)

		_, next, err := s.store.ReadData(s.next)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", s.name, err)
		}
		s.next = next
	}

	payload, _, err := s.store.ReadData(s.chain[i])
	if err != nil {
		return nil, fmt.Errorf("stream %q: %w", s.name, err)
	}
	return payload, nil
}

// ReadAt implements io.ReaderAt over the stream's logical bytes.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("stream %q: %w: negative offset %d", s.name, common.ErrOutOfRange, off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	var eof error
	if max := s.size - off; int64(len(p)) > max {
		p = p[:max]
		eof = io.EOF
	}

	n := 0
	for n < len(p) {
		payload, err := s.payloadAt(int((off + int64(n)) / common.BlockSize))
		if err != nil {
			return n, err
		}
		n += copy(p[n:], payload[(off+int64(n))%common.BlockSize:])
	}
	return n, eof
}
