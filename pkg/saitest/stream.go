package saitest

import (
	"bytes"
	"encoding/binary"
)

// StreamWriter assembles the plaintext of a named stream: little-endian
// scalar fields plus tag/length records (tags are stored byte-reversed, the
// way the decoder expects them).
type StreamWriter struct {
	buf bytes.Buffer
}

func NewStreamWriter() *StreamWriter {
	return &StreamWriter{}
}

func (w *StreamWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *StreamWriter) Uint8(v uint8)   { w.buf.WriteByte(v) }
func (w *StreamWriter) Uint16(v uint16) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *StreamWriter) Uint32(v uint32) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *StreamWriter) Uint64(v uint64) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *StreamWriter) Int32(v int32)   { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *StreamWriter) Raw(b []byte)    { w.buf.Write(b) }

// Record appends one tag/length/value record. tag must be 4 ASCII bytes.
func (w *StreamWriter) Record(tag string, payload []byte) {
	if len(tag) != 4 {
		panic("saitest: tag must be 4 bytes")
	}
	for i := 3; i >= 0; i-- {
		w.buf.WriteByte(tag[i])
	}
	w.Uint32(uint32(len(payload)))
	w.buf.Write(payload)
}

// EndRecords appends the zero tag that terminates a record sequence.
func (w *StreamWriter) EndRecords() {
	w.Raw([]byte{0, 0, 0, 0})
}

// RepeatRun encodes count copies of value as RLE repeat runs. count may be
// any non-negative number; it is split into maximal runs.
func RepeatRun(value byte, count int) []byte {
	var out []byte
	for count > 0 {
		n := count
		if n > 128 {
			n = 128
		}
		if n < 2 {
			// A repeat run encodes at least 2 bytes; emit a literal.
			out = append(out, 0, value)
			count--
			continue
		}
		out = append(out, byte((n-2)^0xFF), value)
		count -= n
	}
	return out
}

// LiteralRun encodes data as RLE literal runs.
func LiteralRun(data []byte) []byte {
	var out []byte
	for len(data) > 0 {
		n := len(data)
		if n > 128 {
			n = 128
		}
		out = append(out, byte(n-1))
		out = append(out, data[:n]...)
		data = data[n:]
	}
	return out
}
