// Package chunk decodes the tag/length/value record encoding used inside
// decrypted SAI streams. A record is a 4-byte tag (stored byte-reversed), a
// little-endian u32 length and length bytes of payload; an all-zero tag ends
// the sequence. Unknown tags are skipped by their declared length, so new
// record kinds never break decoding.
package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/drawkit/sai/pkg/common"
)

// Record is one decoded tag/length header. The payload is read (or skipped)
// by the caller through the same Reader, which keeps the cursor exactly
// header size + length ahead afterwards.
type Record struct {
	Tag    [4]byte
	Length uint32
}

// TagString returns the tag as ASCII, e.g. "reso" or "layr".
func (r Record) TagString() string { return string(r.Tag[:]) }

// Reader is a sequential little-endian cursor over one stream. It is not
// safe for concurrent use; concurrent decoders each take their own Reader.
type Reader struct {
	r    io.Reader
	name string
}

// NewReader wraps a stream cursor. name is used in error context only.
func NewReader(r io.Reader, name string) *Reader {
	return &Reader{r: r, name: name}
}

func (c *Reader) fill(buf []byte) error {
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("stream %q: %w: truncated record", c.name, common.ErrCorrupt)
		}
		return fmt.Errorf("stream %q: %w", c.name, err)
	}
	return nil
}

// NextRecord reads the next record header. It returns io.EOF once the
// terminating zero tag (or the stream's end) is reached.
func (c *Reader) NextRecord() (Record, error) {
	var tag [4]byte
	if _, err := io.ReadFull(c.r, tag[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, fmt.Errorf("stream %q: %w: truncated record header", c.name, common.ErrCorrupt)
		}
		return Record{}, fmt.Errorf("stream %q: %w", c.name, err)
	}
	if tag == [4]byte{} {
		return Record{}, io.EOF
	}
	tag[0], tag[1], tag[2], tag[3] = tag[3], tag[2], tag[1], tag[0]

	length, err := c.Uint32()
	if err != nil {
		return Record{}, err
	}
	return Record{Tag: tag, Length: length}, nil
}

// Payload reads a record's declared payload in full. The buffer grows as
// bytes arrive, so a forged length larger than the stream fails after the
// stream's actual bytes rather than allocating the declared size up front.
func (c *Reader) Payload(r Record) ([]byte, error) {
	var buf bytes.Buffer
	if n, err := io.CopyN(&buf, c.r, int64(r.Length)); err != nil || n != int64(r.Length) {
		return nil, fmt.Errorf("stream %q: %w: truncated record %q", c.name, common.ErrCorrupt, r.TagString())
	}
	return buf.Bytes(), nil
}

// Skip discards a record's declared payload.
func (c *Reader) Skip(r Record) error {
	if _, err := io.CopyN(io.Discard, c.r, int64(r.Length)); err != nil {
		return fmt.Errorf("stream %q: %w: truncated record %q", c.name, common.ErrCorrupt, r.TagString())
	}
	return nil
}

func (c *Reader) Uint8() (uint8, error) {
	var b [1]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Reader) Uint16() (uint16, error) {
	var b [2]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (c *Reader) Uint32() (uint32, error) {
	var b [4]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (c *Reader) Uint64() (uint64, error) {
	var b [8]byte
	if err := c.fill(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (c *Reader) Int32() (int32, error) {
	v, err := c.Uint32()
	return int32(v), err
}

// Raw exposes the underlying cursor, for sections that follow the record
// sequence (e.g. a layer's compressed raster data).
func (c *Reader) Raw() io.Reader { return c.r }

// Bytes reads exactly n bytes.
func (c *Reader) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := c.fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
