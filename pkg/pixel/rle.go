// Package pixel decompresses the run-length encoded raster data of SAI
// layers. Pixels are stored as 32x32 tiles; each active tile carries eight
// independently compressed channel planes (BGRA plus four undocumented
// planes that are skipped). Runs never cross a plane boundary, so every
// plane decodes to an exact, known byte count or the data is corrupt.
package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/drawkit/sai/pkg/common"
)

const (
	// TileSize is the edge length of a raster tile in pixels.
	TileSize = 32

	// BytesPerPixel is the decoded pixel width (premultiplied RGBA).
	BytesPerPixel = 4

	planeBytes = TileSize * TileSize
	tileBytes  = planeBytes * BytesPerPixel

	// maxLayerDim bounds a layer rectangle's edge. The editor caps canvases
	// at 10000x10000 pixels and layer bounds only pad that to tile
	// multiples, so anything larger is a forged header.
	maxLayerDim = 10240
)

// DecodeChannel decompresses one RLE plane from src into dst, writing count
// bytes spaced stride bytes apart starting at dst[offset]. Producing more or
// fewer than count bytes, or leaving src bytes unconsumed, is a corruption
// error. Run encoding: a length byte below 0x80 is followed by length+1
// literal bytes; above 0x80 it is followed by one byte repeated
// (length^0xFF)+2 times; exactly 0x80 encodes nothing.
func DecodeChannel(dst, src []byte, offset, stride, count int) error {
	written := 0
	pos := offset
	i := 0
	for written < count {
		if i >= len(src) {
			return fmt.Errorf("%w: RLE plane ran out of input after %d of %d bytes", common.ErrCorrupt, written, count)
		}
		length := int(src[i])
		i++
		switch {
		case length < 0x80:
			n := length + 1
			if written+n > count || i+n > len(src) {
				return fmt.Errorf("%w: RLE literal run overflows plane (%d of %d bytes written)", common.ErrCorrupt, written, count)
			}
			for _, b := range src[i : i+n] {
				dst[pos] = b
				pos += stride
			}
			i += n
			written += n
		case length > 0x80:
			n := (length ^ 0xFF) + 2
			if written+n > count || i >= len(src) {
				return fmt.Errorf("%w: RLE repeat run overflows plane (%d of %d bytes written)", common.ErrCorrupt, written, count)
			}
			b := src[i]
			i++
			for j := 0; j < n; j++ {
				dst[pos] = b
				pos += stride
			}
			written += n
		default:
			// 0x80: null run.
		}
	}
	if i != len(src) {
		return fmt.Errorf("%w: %d trailing bytes after RLE plane", common.ErrCorrupt, len(src)-i)
	}
	return nil
}

// DecodeRow decompresses one contiguous row of width pixels at bytesPerPixel
// bytes each, enforcing the exact output length.
func DecodeRow(src []byte, width, bytesPerPixel int) ([]byte, error) {
	dst := make([]byte, width*bytesPerPixel)
	if err := DecodeChannel(dst, src, 0, 1, len(dst)); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecodeLayerData reads a layer's raster section (tile map followed by the
// compressed planes of every active tile) and assembles a premultiplied RGBA
// buffer of width*height pixels. Bounds are tile aligned by construction;
// anything else is corrupt. r must be positioned at the tile map.
func DecodeLayerData(r io.Reader, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || width%TileSize != 0 || height%TileSize != 0 {
		return nil, fmt.Errorf("%w: layer bounds %dx%d are not tile aligned", common.ErrCorrupt, width, height)
	}
	if width > maxLayerDim || height > maxLayerDim {
		return nil, fmt.Errorf("%w: layer bounds %dx%d exceed the format limit", common.ErrCorrupt, width, height)
	}

	tilesX := width / TileSize
	tilesY := height / TileSize
	tileMap := make([]byte, tilesX*tilesY)
	if _, err := io.ReadFull(r, tileMap); err != nil {
		return nil, fmt.Errorf("%w: truncated tile map: %v", common.ErrCorrupt, err)
	}

	pixels := make([]byte, width*height*BytesPerPixel)
	tile := make([]byte, tileBytes)

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			if tileMap[ty*tilesX+tx] == 0 {
				continue
			}
			if err := decodeTile(r, tile); err != nil {
				return nil, fmt.Errorf("tile (%d,%d): %w", tx, ty, err)
			}
			blitTile(pixels, tile, width, tx, ty)
		}
	}
	return pixels, nil
}

// decodeTile reads the eight compressed planes of one tile, decompressing
// the BGRA planes strided into tile and skipping the rest.
func decodeTile(r io.Reader, tile []byte) error {
	var sizeBuf [2]byte
	for plane := 0; plane < 8; plane++ {
		if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
			return fmt.Errorf("%w: truncated plane header: %v", common.ErrCorrupt, err)
		}
		size := int(binary.LittleEndian.Uint16(sizeBuf[:]))
		src := make([]byte, size)
		if _, err := io.ReadFull(r, src); err != nil {
			return fmt.Errorf("%w: truncated plane data: %v", common.ErrCorrupt, err)
		}
		if plane < BytesPerPixel {
			if err := DecodeChannel(tile, src, plane, BytesPerPixel, planeBytes); err != nil {
				return err
			}
		}
	}
	return nil
}

// blitTile copies one decoded BGRA tile into the RGBA layer buffer.
func blitTile(pixels, tile []byte, width, tx, ty int) {
	for row := 0; row < TileSize; row++ {
		dstOff := ((ty*TileSize+row)*width + tx*TileSize) * BytesPerPixel
		srcOff := row * TileSize * BytesPerPixel
		for px := 0; px < TileSize; px++ {
			d := pixels[dstOff+px*4 : dstOff+px*4+4]
			s := tile[srcOff+px*4 : srcOff+px*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
		}
	}
}

// DecodeMaskData rejects the mask channel's compression variant, which is
// undocumented. Callers degrade by treating the layer as mask-less.
func DecodeMaskData(io.Reader, int, int) ([]byte, error) {
	return nil, fmt.Errorf("%w: mask channel compression", common.ErrUnsupported)
}

// IsUnsupported reports whether err is the unsupported-feature class rather
// than corruption, letting callers skip the unit instead of failing.
func IsUnsupported(err error) bool {
	return errors.Is(err, common.ErrUnsupported)
}
