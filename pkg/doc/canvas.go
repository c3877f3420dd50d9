// Package doc decodes the typed metadata streams of a SAI document: canvas,
// layers, the layer order table, author info and the embedded thumbnail.
// Each decoder is a reducer over the stream's chunk records; unknown records
// are skipped by their declared length.
package doc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
)

type SizeUnit uint16

const (
	SizeUnitPixels SizeUnit = iota
	SizeUnitInch
	SizeUnitCentimeters
	SizeUnitMillimeters
)

type ResolutionUnit uint16

const (
	ResolutionPixelsPerInch ResolutionUnit = iota
	ResolutionPixelsPerCm
)

// Canvas is the document-level metadata from the "canvas" stream. The
// resolution fields are only meaningful when HasResolution is set; the two
// layer-id fields are zero when the stream does not carry them.
type Canvas struct {
	Width  uint32
	Height uint32

	HasResolution  bool
	DotsPerInch    float32
	SizeUnit       SizeUnit
	ResolutionUnit ResolutionUnit

	// SelectionSource is the id of the layer marked as selection source.
	SelectionSource uint32
	// SelectedLayer is the id of the layer selected in the editor.
	SelectedLayer uint32
}

// canvasAlignment is the fixed leading word of every known canvas revision.
const canvasAlignment = 16

// DecodeCanvas parses the "canvas" stream: three fixed words, then records.
func DecodeCanvas(cr *chunk.Reader) (*Canvas, error) {
	alignment, err := cr.Uint32()
	if err != nil {
		return nil, err
	}
	if alignment != canvasAlignment {
		return nil, fmt.Errorf("canvas: %w: leading word %d", common.ErrUnrecognized, alignment)
	}

	c := &Canvas{}
	if c.Width, err = cr.Uint32(); err != nil {
		return nil, err
	}
	if c.Height, err = cr.Uint32(); err != nil {
		return nil, err
	}

	for {
		rec, err := cr.NextRecord()
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		if err != nil {
			return nil, err
		}
		payload, err := cr.Payload(rec)
		if err != nil {
			return nil, err
		}

		switch rec.TagString() {
		case "reso":
			if len(payload) < 8 {
				return nil, fmt.Errorf("canvas: %w: short reso record (%d bytes)", common.ErrCorrupt, len(payload))
			}
			// 16.16 fixed point.
			c.DotsPerInch = float32(binary.LittleEndian.Uint32(payload)) / 65536
			c.SizeUnit = SizeUnit(binary.LittleEndian.Uint16(payload[4:]))
			c.ResolutionUnit = ResolutionUnit(binary.LittleEndian.Uint16(payload[6:]))
			if c.SizeUnit > SizeUnitMillimeters || c.ResolutionUnit > ResolutionPixelsPerCm {
				return nil, fmt.Errorf("canvas: %w: resolution units %d/%d", common.ErrCorrupt, c.SizeUnit, c.ResolutionUnit)
			}
			c.HasResolution = true
		case "wsrc":
			if len(payload) < 4 {
				return nil, fmt.Errorf("canvas: %w: short wsrc record", common.ErrCorrupt)
			}
			c.SelectionSource = binary.LittleEndian.Uint32(payload)
		case "layr":
			if len(payload) < 4 {
				return nil, fmt.Errorf("canvas: %w: short layr record", common.ErrCorrupt)
			}
			c.SelectedLayer = binary.LittleEndian.Uint32(payload)
		default:
			// Unknown record; already consumed by Payload.
		}
	}
}
