package doc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
)

// Thumbnail is the embedded preview bitmap, decoded to RGBA.
type Thumbnail struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

var thumbnailMagic = []byte("BM32")

// maxThumbnailDim bounds the preview bitmap's edge; the editor writes far
// smaller previews, so anything larger is a forged header.
const maxThumbnailDim = 4096

// DecodeThumbnail parses the "thumbnail" stream: dimensions, a BM32 magic,
// then raw BGRA pixels.
func DecodeThumbnail(cr *chunk.Reader) (*Thumbnail, error) {
	t := &Thumbnail{}
	var err error
	if t.Width, err = cr.Uint32(); err != nil {
		return nil, err
	}
	if t.Height, err = cr.Uint32(); err != nil {
		return nil, err
	}

	if t.Width == 0 || t.Height == 0 || t.Width > maxThumbnailDim || t.Height > maxThumbnailDim {
		return nil, fmt.Errorf("thumbnail: %w: dimensions %dx%d", common.ErrCorrupt, t.Width, t.Height)
	}

	magic, err := cr.Bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, thumbnailMagic) {
		return nil, fmt.Errorf("thumbnail: %w: magic %q", common.ErrUnrecognized, magic)
	}

	size := int64(t.Width) * int64(t.Height) * 4
	var pixels bytes.Buffer
	if n, err := io.CopyN(&pixels, cr.Raw(), size); err != nil || n != size {
		return nil, fmt.Errorf("thumbnail: %w: truncated pixel data", common.ErrCorrupt)
	}
	t.Pixels = pixels.Bytes()
	for i := 0; i < len(t.Pixels); i += 4 {
		t.Pixels[i], t.Pixels[i+2] = t.Pixels[i+2], t.Pixels[i]
	}
	return t, nil
}
