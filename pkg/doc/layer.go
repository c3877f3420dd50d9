package doc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/pixel"
)

// LayerKind discriminates the drawable unit a layer stream describes.
type LayerKind uint16

const (
	KindRoot     LayerKind = 0x00
	KindRegular  LayerKind = 0x03
	KindUnknown4 LayerKind = 0x04
	KindLinework LayerKind = 0x05
	KindMask     LayerKind = 0x06
	KindUnknown7 LayerKind = 0x07
	KindSet      LayerKind = 0x08
)

func (k LayerKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindRegular:
		return "regular"
	case KindLinework:
		return "linework"
	case KindMask:
		return "mask"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

func parseLayerKind(v uint32) (LayerKind, error) {
	switch LayerKind(v) {
	case KindRoot, KindRegular, KindUnknown4, KindLinework, KindMask, KindUnknown7, KindSet:
		return LayerKind(v), nil
	default:
		return 0, fmt.Errorf("layer: %w: unknown layer kind %#x", common.ErrCorrupt, v)
	}
}

// BlendMode is a layer's compositing mode, stored as a reversed fourcc.
type BlendMode uint8

const (
	BlendPassThrough BlendMode = iota
	BlendNormal
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendLuminosity
	BlendShade
	BlendLumiShade
	BlendBinary
)

var blendNames = map[string]BlendMode{
	"pass": BlendPassThrough,
	"norm": BlendNormal,
	"mul ": BlendMultiply,
	"scrn": BlendScreen,
	"over": BlendOverlay,
	"add ": BlendLuminosity,
	"sub ": BlendShade,
	"adsb": BlendLumiShade,
	"cbin": BlendBinary,
}

func (m BlendMode) String() string {
	for name, mode := range blendNames {
		if mode == m {
			return strings.TrimSpace(name)
		}
	}
	return fmt.Sprintf("blend(%d)", uint8(m))
}

func parseBlendMode(fourcc [4]byte) (BlendMode, error) {
	// Stored reversed on disk, like record tags.
	name := string([]byte{fourcc[3], fourcc[2], fourcc[1], fourcc[0]})
	mode, ok := blendNames[name]
	if !ok {
		return 0, fmt.Errorf("layer: %w: unknown blend mode %q", common.ErrCorrupt, name)
	}
	return mode, nil
}

// Bounds is a layer's rectangle. It may extend past the canvas; 0:0 is the
// canvas' top-left corner. Width and height are multiples of the tile size.
type Bounds struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Texture is an overlay texture assigned to a layer.
type Texture struct {
	Name    string
	Scale   uint16 // 0-500
	Opacity uint8  // 0-100
}

// Effect is the fringe effect, present only when enabled.
type Effect struct {
	Opacity uint8 // 0-100
	Width   uint8 // 1-15
}

// Layer is one drawable unit: identity, compositing state and, when decoded
// with pixel data, the premultiplied RGBA raster for its bounds.
type Layer struct {
	Kind            LayerKind
	ID              uint32
	Bounds          Bounds
	Opacity         uint8
	Visible         bool
	PreserveOpacity bool
	Clipping        bool
	Blend           BlendMode

	Name        string
	ParentSet   uint32
	ParentLayer uint32
	FolderOpen  bool
	Texture     *Texture
	Effect      *Effect

	// Data holds width*height premultiplied RGBA pixels for regular layers
	// decoded with pixel data; nil otherwise.
	Data []byte
}

// DecodeLayer reduces a layer stream into a Layer: a fixed header, then
// records until the zero tag, then (for regular layers, when withData is
// set) the compressed raster section. Mask raster data is an explicit
// unsupported error so callers can keep the layer and drop the mask.
func DecodeLayer(cr *chunk.Reader, withData bool) (*Layer, error) {
	kindWord, err := cr.Uint32()
	if err != nil {
		return nil, err
	}
	kind, err := parseLayerKind(kindWord)
	if err != nil {
		return nil, err
	}

	l := &Layer{Kind: kind}
	if l.ID, err = cr.Uint32(); err != nil {
		return nil, err
	}
	if l.Bounds.X, err = cr.Int32(); err != nil {
		return nil, err
	}
	if l.Bounds.Y, err = cr.Int32(); err != nil {
		return nil, err
	}
	if l.Bounds.Width, err = cr.Uint32(); err != nil {
		return nil, err
	}
	if l.Bounds.Height, err = cr.Uint32(); err != nil {
		return nil, err
	}
	if _, err = cr.Uint32(); err != nil { // unused word
		return nil, err
	}
	if l.Opacity, err = cr.Uint8(); err != nil {
		return nil, err
	}
	flags, err := cr.Bytes(4) // visible, preserve opacity, clipping, unused
	if err != nil {
		return nil, err
	}
	l.Visible = flags[0] >= 1
	l.PreserveOpacity = flags[1] >= 1
	l.Clipping = flags[2] >= 1

	var fourcc [4]byte
	b, err := cr.Bytes(4)
	if err != nil {
		return nil, err
	}
	copy(fourcc[:], b)
	if l.Blend, err = parseBlendMode(fourcc); err != nil {
		return nil, err
	}

	if err := decodeLayerRecords(cr, l); err != nil {
		return nil, err
	}

	if withData {
		switch kind {
		case KindRegular:
			data, err := pixel.DecodeLayerData(cr.Raw(), int(l.Bounds.Width), int(l.Bounds.Height))
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", l.ID, err)
			}
			l.Data = data
		case KindMask:
			if _, err := pixel.DecodeMaskData(cr.Raw(), int(l.Bounds.Width), int(l.Bounds.Height)); err != nil {
				return nil, fmt.Errorf("layer %d: %w", l.ID, err)
			}
		}
	}
	return l, nil
}

func decodeLayerRecords(cr *chunk.Reader, l *Layer) error {
	for {
		rec, err := cr.NextRecord()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		payload, err := cr.Payload(rec)
		if err != nil {
			return err
		}

		switch rec.TagString() {
		case "name":
			l.Name = cString(payload)
		case "pfid":
			if len(payload) >= 4 {
				l.ParentSet = binary.LittleEndian.Uint32(payload)
			}
		case "plid":
			if len(payload) >= 4 {
				l.ParentLayer = binary.LittleEndian.Uint32(payload)
			}
		case "fopn":
			if len(payload) >= 1 {
				l.FolderOpen = payload[0] >= 1
			}
		case "texn":
			if l.Texture == nil {
				l.Texture = &Texture{Scale: 500, Opacity: 100}
			}
			l.Texture.Name = cString(payload)
		case "texp":
			// Always present, even without texn; only meaningful with one.
			if l.Texture != nil && len(payload) >= 3 {
				l.Texture.Scale = binary.LittleEndian.Uint16(payload)
				l.Texture.Opacity = payload[2]
			}
		case "peff":
			if len(payload) >= 3 && payload[0] >= 1 {
				l.Effect = &Effect{Opacity: payload[1], Width: payload[2]}
			}
		default:
			// Unknown record; skipped by declared length.
		}
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
