package saitest

import "encoding/binary"

// LayerSpec describes a synthetic layer stream.
type LayerSpec struct {
	Kind    uint32
	ID      uint32
	X, Y    int32
	Width   uint32
	Height  uint32
	Opacity uint8
	Visible bool
	Blend   string // forward fourcc, e.g. "norm"
	Name    string

	// Records appends extra tag/length records after the standard ones.
	Records func(w *StreamWriter)

	// FillBGRA, when set, appends a raster section whose every tile is a
	// single repeat run of this premultiplied BGRA color per plane.
	FillBGRA *[4]byte
}

// LayerStream assembles the plaintext bytes of a layer stream.
func LayerStream(spec LayerSpec) []byte {
	w := NewStreamWriter()
	w.Uint32(spec.Kind)
	w.Uint32(spec.ID)
	w.Int32(spec.X)
	w.Int32(spec.Y)
	w.Uint32(spec.Width)
	w.Uint32(spec.Height)
	w.Uint32(0) // unused word
	w.Uint8(spec.Opacity)
	if spec.Visible {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
	w.Uint8(0) // preserve opacity
	w.Uint8(0) // clipping
	w.Uint8(0) // unused byte
	for i := 3; i >= 0; i-- {
		w.Uint8(spec.Blend[i])
	}

	if spec.Name != "" {
		name := make([]byte, 256)
		copy(name, spec.Name)
		w.Record("name", name)
	}
	if spec.Records != nil {
		spec.Records(w)
	}
	w.EndRecords()

	if spec.FillBGRA != nil {
		appendRaster(w, spec)
	}
	return w.Bytes()
}

const tileSize = 32

func appendRaster(w *StreamWriter, spec LayerSpec) {
	tilesX := int(spec.Width) / tileSize
	tilesY := int(spec.Height) / tileSize

	tileMap := make([]byte, tilesX*tilesY)
	for i := range tileMap {
		tileMap[i] = 1
	}
	w.Raw(tileMap)

	var planes [8][]byte
	for p := 0; p < 4; p++ {
		planes[p] = RepeatRun(spec.FillBGRA[p], tileSize*tileSize)
	}

	var size [2]byte
	for t := 0; t < tilesX*tilesY; t++ {
		for p := 0; p < 8; p++ {
			binary.LittleEndian.PutUint16(size[:], uint16(len(planes[p])))
			w.Raw(size[:])
			w.Raw(planes[p])
		}
	}
}
