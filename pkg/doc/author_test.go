package doc_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/doc"
	"github.com/drawkit/sai/pkg/saitest"
)

func authorStream(bitflag uint32) []byte {
	w := saitest.NewStreamWriter()
	w.Uint32(bitflag)
	w.Uint32(42) // document id
	// 2020-01-01 00:00:00 UTC and one day later, as seconds since 1601.
	w.Uint64(11644473600 + 1577836800)
	w.Uint64(11644473600 + 1577836800 + 86400)
	w.Uint64(0xCAFEBABEDEADBEEF)
	return w.Bytes()
}

func TestDecodeAuthor(t *testing.T) {
	a, err := doc.DecodeAuthor(chunk.NewReader(bytes.NewReader(authorStream(0)), "author"))
	require.NoError(t, err)

	assert.EqualValues(t, 42, a.DocumentID)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), a.DateCreated)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), a.DateModified)
	assert.Equal(t, uint64(0xCAFEBABEDEADBEEF), a.MachineHash)
}

func TestDecodeAuthorBadBitflag(t *testing.T) {
	_, err := doc.DecodeAuthor(chunk.NewReader(bytes.NewReader(authorStream(0x01000000)), "author"))
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestDecodeAuthorTruncated(t *testing.T) {
	_, err := doc.DecodeAuthor(chunk.NewReader(bytes.NewReader(authorStream(0)[:20]), "author"))
	assert.ErrorIs(t, err, common.ErrCorrupt)
}
