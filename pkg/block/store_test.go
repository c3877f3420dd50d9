package block_test

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawkit/sai/pkg/block"
	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/saitest"
)

func testContainer(t *testing.T) []byte {
	t.Helper()
	return saitest.Container(saitest.Dir{
		Files: []saitest.File{
			{Name: "hello", Data: bytes.Repeat([]byte("hello sai "), 1000)},
		},
	})
}

func newStore(t *testing.T, raw []byte) *block.Store {
	t.Helper()
	s, err := block.NewStore(bytes.NewReader(raw), int64(len(raw)), block.StoreOpts{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNewStoreRejectsMisalignedContainer(t *testing.T) {
	raw := testContainer(t)

	_, err := block.NewStore(bytes.NewReader(raw[:len(raw)-100]), int64(len(raw)-100), block.StoreOpts{})
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestNewStoreRejectsTinyContainer(t *testing.T) {
	raw := make([]byte, common.BlockSize)

	_, err := block.NewStore(bytes.NewReader(raw), common.BlockSize, block.StoreOpts{})
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestReadDataOutOfRange(t *testing.T) {
	s := newStore(t, testContainer(t))

	_, _, err := s.ReadData(s.BlockCount())
	assert.ErrorIs(t, err, common.ErrOutOfRange)
}

func TestReadDataAtTablePosition(t *testing.T) {
	s := newStore(t, testContainer(t))

	_, _, err := s.ReadData(0)
	assert.ErrorIs(t, err, common.ErrCorrupt)
}

func TestReadDataCorruptBlock(t *testing.T) {
	raw := testContainer(t)
	// Flip one byte inside the root directory block.
	raw[int(common.RootBlock)*common.BlockSize+123] ^= 0x01

	s := newStore(t, raw)
	_, _, err := s.ReadData(common.RootBlock)
	assert.ErrorIs(t, err, common.ErrCorrupt)
}

func TestReadDataCorruptTableBlock(t *testing.T) {
	raw := testContainer(t)
	raw[10] ^= 0x01

	s := newStore(t, raw)
	_, _, err := s.ReadData(common.RootBlock)
	assert.ErrorIs(t, err, common.ErrCorrupt)
}

func TestReadDataDeterministic(t *testing.T) {
	s := newStore(t, testContainer(t))

	first, _, err := s.ReadData(common.RootBlock)
	require.NoError(t, err)
	second, _, err := s.ReadData(common.RootBlock)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// gatedReaderAt counts reads per block position and can hold the first data
// read open until released, so every concurrent reader piles onto the same
// in-flight decryption.
type gatedReaderAt struct {
	inner   *bytes.Reader
	gate    chan struct{}
	gatePos int64
	once    sync.Once
	reads   atomic.Int64
}

func (g *gatedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off == g.gatePos {
		g.reads.Add(1)
		g.once.Do(func() { <-g.gate })
	}
	return g.inner.ReadAt(p, off)
}

func TestConcurrentReadsDecryptOnce(t *testing.T) {
	raw := testContainer(t)
	gated := &gatedReaderAt{
		inner:   bytes.NewReader(raw),
		gate:    make(chan struct{}),
		gatePos: int64(common.RootBlock) * common.BlockSize,
	}
	s, err := block.NewStore(gated, int64(len(raw)), block.StoreOpts{})
	require.NoError(t, err)
	defer s.Close()

	const readers = 16
	var wg sync.WaitGroup
	payloads := make([][]byte, readers)
	errs := make([]error, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payloads[i], _, errs[i] = s.ReadData(common.RootBlock)
		}(i)
	}

	// Give every goroutine time to join the in-flight decryption, then
	// let the single raw read finish.
	time.Sleep(50 * time.Millisecond)
	close(gated.gate)
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, payloads[0], payloads[i])
	}
	assert.EqualValues(t, 1, gated.reads.Load(), "one decryption for %d concurrent readers", readers)
}
