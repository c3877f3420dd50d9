package block

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/beam-cloud/ristretto"
	log "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/drawkit/sai/pkg/common"
)

const (
	defaultCacheCounters = 1e5
	defaultCacheMaxCost  = 64 << 20 // 64MiB of decrypted blocks
)

// StoreOpts tunes the decrypted-block cache. Zero values select defaults.
type StoreOpts struct {
	CacheMaxCost int64
}

// Store pages a container's backing bytes into blocks, decrypts them lazily
// and caches the plaintext. Decryption is a pure function of (position,
// ciphertext), so cached entries never need invalidation; eviction only
// bounds memory. Safe for concurrent use: concurrent readers of the same
// position share a single decryption via singleflight.
type Store struct {
	src        io.ReaderAt
	blockCount uint32

	cache *ristretto.Cache[uint32, []byte]
	group singleflight.Group

	mu     sync.Mutex
	tables map[uint32][]TableEntry
}

// NewStore wraps a byte source of the given total length. The length must be
// an exact multiple of the block size and hold at least one table block and
// the root directory block.
func NewStore(src io.ReaderAt, size int64, opts StoreOpts) (*Store, error) {
	if size <= 0 || size%common.BlockSize != 0 {
		return nil, fmt.Errorf("%w: container length %d is not block aligned", common.ErrUnrecognized, size)
	}
	blockCount := size / common.BlockSize
	if blockCount <= int64(common.RootBlock) {
		return nil, fmt.Errorf("%w: container of %d blocks has no root directory", common.ErrUnrecognized, blockCount)
	}

	maxCost := opts.CacheMaxCost
	if maxCost <= 0 {
		maxCost = defaultCacheMaxCost
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, []byte]{
		NumCounters: defaultCacheCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Store{
		src:        src,
		blockCount: uint32(blockCount),
		cache:      cache,
		tables:     make(map[uint32][]TableEntry),
	}, nil
}

// BlockCount returns the number of blocks in the container.
func (s *Store) BlockCount() uint32 {
	return s.blockCount
}

// Close releases the cache. The Store must not be used afterwards.
func (s *Store) Close() {
	s.cache.Close()
}

func (s *Store) readRaw(pos uint32) ([]byte, error) {
	if pos >= s.blockCount {
		return nil, fmt.Errorf("block %d: %w: container has %d blocks", pos, common.ErrOutOfRange, s.blockCount)
	}
	buf := make([]byte, common.BlockSize)
	if _, err := s.src.ReadAt(buf, int64(pos)*common.BlockSize); err != nil {
		return nil, fmt.Errorf("block %d: %w: %v", pos, common.ErrCorrupt, err)
	}
	return buf, nil
}

// tableFor returns the decrypted entries of the table block covering pos.
func (s *Store) tableFor(pos uint32) ([]TableEntry, error) {
	tablePos := pos &^ (common.BlocksPerTable - 1)

	s.mu.Lock()
	entries, ok := s.tables[tablePos]
	s.mu.Unlock()
	if ok {
		return entries, nil
	}

	v, err, _ := s.group.Do("t"+strconv.FormatUint(uint64(tablePos), 10), func() (interface{}, error) {
		raw, err := s.readRaw(tablePos)
		if err != nil {
			return nil, err
		}
		_, entries, err := DecryptTable(raw, tablePos)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tables[tablePos] = entries
		s.mu.Unlock()
		log.Debug().Uint32("position", tablePos).Msg("decrypted table block")
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TableEntry), nil
}

// ReadData returns the decrypted payload of the data block at pos and the
// position of its successor in the chain (0 when the chain ends). The
// returned slice is shared with the cache and must not be modified.
func (s *Store) ReadData(pos uint32) ([]byte, uint32, error) {
	if pos >= s.blockCount {
		return nil, 0, fmt.Errorf("block %d: %w: container has %d blocks", pos, common.ErrOutOfRange, s.blockCount)
	}
	if pos%common.BlocksPerTable == 0 {
		return nil, 0, fmt.Errorf("block %d: %w: data chain points at a table block", pos, common.ErrCorrupt)
	}

	entries, err := s.tableFor(pos)
	if err != nil {
		return nil, 0, err
	}
	entry := entries[pos%common.BlocksPerTable]

	if payload, ok := s.cache.Get(pos); ok {
		return payload, entry.NextBlock, nil
	}

	v, err, _ := s.group.Do("d"+strconv.FormatUint(uint64(pos), 10), func() (interface{}, error) {
		raw, err := s.readRaw(pos)
		if err != nil {
			return nil, err
		}
		payload, err := DecryptData(raw, pos, entry.Checksum)
		if err != nil {
			return nil, err
		}
		s.cache.Set(pos, payload, common.BlockSize)
		log.Debug().Uint32("position", pos).Msg("decrypted data block")
		return payload, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return v.([]byte), entry.NextBlock, nil
}
