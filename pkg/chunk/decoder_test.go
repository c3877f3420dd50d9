package chunk_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/saitest"
)

func TestRecordSequence(t *testing.T) {
	w := saitest.NewStreamWriter()
	w.Record("reso", []byte{1, 2, 3, 4})
	w.Record("wsrc", []byte{5})
	w.EndRecords()

	cr := chunk.NewReader(bytes.NewReader(w.Bytes()), "canvas")

	rec, err := cr.NextRecord()
	require.NoError(t, err)
	assert.Equal(t, "reso", rec.TagString())
	assert.EqualValues(t, 4, rec.Length)

	payload, err := cr.Payload(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, payload)

	rec, err = cr.NextRecord()
	require.NoError(t, err)
	assert.Equal(t, "wsrc", rec.TagString())
	require.NoError(t, cr.Skip(rec))

	_, err = cr.NextRecord()
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnknownRecordSkipped(t *testing.T) {
	w := saitest.NewStreamWriter()
	w.Record("zzzz", make([]byte, 37))
	w.Record("reso", []byte{9, 9, 9, 9})
	w.EndRecords()

	cr := chunk.NewReader(bytes.NewReader(w.Bytes()), "canvas")

	rec, err := cr.NextRecord()
	require.NoError(t, err)
	assert.Equal(t, "zzzz", rec.TagString())
	require.NoError(t, cr.Skip(rec))

	rec, err = cr.NextRecord()
	require.NoError(t, err)
	assert.Equal(t, "reso", rec.TagString())
}

func TestStreamEndWithoutTerminator(t *testing.T) {
	w := saitest.NewStreamWriter()
	w.Record("name", []byte("x"))

	cr := chunk.NewReader(bytes.NewReader(w.Bytes()), "layer")

	rec, err := cr.NextRecord()
	require.NoError(t, err)
	require.NoError(t, cr.Skip(rec))

	_, err = cr.NextRecord()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTruncatedRecordHeader(t *testing.T) {
	// A tag with no length word after it.
	cr := chunk.NewReader(bytes.NewReader([]byte{'o', 's', 'e', 'r'}), "canvas")

	_, err := cr.NextRecord()
	assert.ErrorIs(t, err, common.ErrCorrupt)

	// A tag cut off mid-way.
	cr = chunk.NewReader(bytes.NewReader([]byte{'o', 's'}), "canvas")

	_, err = cr.NextRecord()
	assert.ErrorIs(t, err, common.ErrCorrupt)
}

func TestTruncatedPayload(t *testing.T) {
	w := saitest.NewStreamWriter()
	w.Record("reso", []byte{1, 2, 3, 4})
	short := w.Bytes()[:len(w.Bytes())-2]

	cr := chunk.NewReader(bytes.NewReader(short), "canvas")
	rec, err := cr.NextRecord()
	require.NoError(t, err)

	_, err = cr.Payload(rec)
	assert.ErrorIs(t, err, common.ErrCorrupt)

	cr = chunk.NewReader(bytes.NewReader(short), "canvas")
	rec, err = cr.NextRecord()
	require.NoError(t, err)
	assert.ErrorIs(t, cr.Skip(rec), common.ErrCorrupt)
}

func TestPayloadForgedLength(t *testing.T) {
	// A record declaring far more payload than the stream holds must fail
	// after the stream's actual bytes, not allocate the declared length.
	stream := []byte{'o', 's', 'e', 'r', 0xFF, 0xFF, 0xFF, 0xFF, 1, 2, 3}
	cr := chunk.NewReader(bytes.NewReader(stream), "canvas")

	rec, err := cr.NextRecord()
	require.NoError(t, err)
	assert.EqualValues(t, 0xFFFFFFFF, rec.Length)

	_, err = cr.Payload(rec)
	assert.ErrorIs(t, err, common.ErrCorrupt)
}

func TestScalarReads(t *testing.T) {
	w := saitest.NewStreamWriter()
	w.Uint8(0xAB)
	w.Uint16(0xBEEF)
	w.Uint32(0xDEADBEEF)
	w.Uint64(0x0102030405060708)
	w.Int32(-7)

	cr := chunk.NewReader(bytes.NewReader(w.Bytes()), "scalars")

	u8, err := cr.Uint8()
	require.NoError(t, err)
	assert.EqualValues(t, 0xAB, u8)

	u16, err := cr.Uint16()
	require.NoError(t, err)
	assert.EqualValues(t, 0xBEEF, u16)

	u32, err := cr.Uint32()
	require.NoError(t, err)
	assert.EqualValues(t, 0xDEADBEEF, u32)

	u64, err := cr.Uint64()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0102030405060708, u64)

	i32, err := cr.Int32()
	require.NoError(t, err)
	assert.EqualValues(t, -7, i32)

	_, err = cr.Uint8()
	assert.ErrorIs(t, err, common.ErrCorrupt)
}
