package sai_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/doc"
	"github.com/drawkit/sai/pkg/sai"
	"github.com/drawkit/sai/pkg/saitest"
	"github.com/drawkit/sai/pkg/vfs"
)

func canvasStream(width, height uint32) []byte {
	w := saitest.NewStreamWriter()
	w.Uint32(16)
	w.Uint32(width)
	w.Uint32(height)
	reso := saitest.NewStreamWriter()
	reso.Uint32(300 << 16)
	reso.Uint16(0) // pixels
	reso.Uint16(0) // pixels per inch
	w.Record("reso", reso.Bytes())
	w.Record("layr", []byte{2, 0, 0, 0})
	w.EndRecords()
	return w.Bytes()
}

func layerTableStream(ids ...uint32) []byte {
	w := saitest.NewStreamWriter()
	w.Uint32(uint32(len(ids)))
	for _, id := range ids {
		w.Uint32(id)
		w.Uint16(3) // regular
		w.Uint16(0)
	}
	return w.Bytes()
}

func authorStream() []byte {
	w := saitest.NewStreamWriter()
	w.Uint32(0)
	w.Uint32(7)
	w.Uint64(11644473600 + 1577836800)
	w.Uint64(11644473600 + 1577836800)
	w.Uint64(0x1122334455667788)
	return w.Bytes()
}

func thumbnailStream() []byte {
	w := saitest.NewStreamWriter()
	w.Uint32(1)
	w.Uint32(1)
	w.Raw([]byte("BM32"))
	w.Raw([]byte{40, 30, 20, 255})
	return w.Bytes()
}

func paintLayer(id uint32, fill [4]byte) []byte {
	return saitest.LayerStream(saitest.LayerSpec{
		Kind: 3, ID: id, Width: 96, Height: 96,
		Opacity: 100, Visible: true, Blend: "norm", Name: "paint",
		FillBGRA: &fill,
	})
}

// testDocument assembles a complete, well-formed container: canvas, layer
// table, author and thumbnail streams at the root, one filled layer below
// /layers.
func testDocument() []byte {
	return saitest.Container(saitest.Dir{
		Files: []saitest.File{
			{Name: ".73851dcd1203b24d", Data: authorStream()},
			{Name: "canvas", Data: canvasStream(128, 128)},
			{Name: "laytbl", Data: layerTableStream(2)},
			{Name: "thumbnail", Data: thumbnailStream()},
		},
		Dirs: []saitest.Subdir{
			{Name: "layers", Dir: saitest.Dir{
				Files: []saitest.File{
					{Name: "00000002", Data: paintLayer(2, [4]byte{10, 20, 30, 255})},
				},
			}},
		},
	})
}

func openDocument(t *testing.T, raw []byte) *sai.Document {
	t.Helper()
	d, err := sai.FromBytes(raw, sai.OpenOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenDocument(t *testing.T) {
	d := openDocument(t, testDocument())

	c := d.Canvas()
	assert.EqualValues(t, 128, c.Width)
	assert.EqualValues(t, 128, c.Height)
	assert.True(t, c.HasResolution)
	assert.EqualValues(t, 300, c.DotsPerInch)
	assert.EqualValues(t, 2, c.SelectedLayer)

	layers := d.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "/layers/00000002", layers[0].Path())
}

func TestLayerMetadataAndPixels(t *testing.T) {
	d := openDocument(t, testDocument())
	h := d.Layers()[0]

	layer, err := d.LayerMetadata(h)
	require.NoError(t, err)
	assert.Equal(t, doc.KindRegular, layer.Kind)
	assert.EqualValues(t, 2, layer.ID)
	assert.Equal(t, "paint", layer.Name)
	assert.Equal(t, doc.BlendNormal, layer.Blend)
	assert.True(t, layer.Visible)
	assert.Nil(t, layer.Data, "metadata decode carries no pixels")

	buf, err := d.LayerPixels(h)
	require.NoError(t, err)
	assert.Equal(t, doc.Bounds{Width: 96, Height: 96}, buf.Bounds)
	require.Len(t, buf.Pix, 96*96*4)
	for i := 0; i < len(buf.Pix); i += 4 {
		require.Equal(t, []byte{30, 20, 10, 255}, buf.Pix[i:i+4], "pixel %d", i/4)
	}
}

func TestLayerTable(t *testing.T) {
	d := openDocument(t, testDocument())

	tbl, err := d.LayerTable()
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, doc.LayerRef{ID: 2, Kind: doc.KindRegular}, tbl.Refs()[0])
}

func TestSubLayers(t *testing.T) {
	raw := saitest.Container(saitest.Dir{
		Files: []saitest.File{
			{Name: "canvas", Data: canvasStream(128, 128)},
			{Name: "subtbl", Data: layerTableStream(9)},
		},
		Dirs: []saitest.Subdir{
			{Name: "layers", Dir: saitest.Dir{
				Files: []saitest.File{
					{Name: "00000002", Data: paintLayer(2, [4]byte{1, 2, 3, 255})},
				},
			}},
			{Name: "sublayers", Dir: saitest.Dir{
				Files: []saitest.File{
					{Name: "00000009", Data: paintLayer(9, [4]byte{4, 5, 6, 255})},
				},
			}},
		},
	})
	d := openDocument(t, raw)

	subs := d.SubLayers()
	require.Len(t, subs, 1)
	assert.Equal(t, "/sublayers/00000009", subs[0].Path())

	// Sublayer handles decode through the same accessors as layers.
	layer, err := d.LayerMetadata(subs[0])
	require.NoError(t, err)
	assert.EqualValues(t, 9, layer.ID)

	tbl, err := d.SubLayerTable()
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.EqualValues(t, 9, tbl.Refs()[0].ID)
}

func TestSubLayersAbsent(t *testing.T) {
	d := openDocument(t, testDocument())

	assert.Empty(t, d.SubLayers())
	_, err := d.SubLayerTable()
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestThumbnail(t *testing.T) {
	d := openDocument(t, testDocument())

	th, err := d.Thumbnail()
	require.NoError(t, err)
	assert.EqualValues(t, 1, th.Width)
	assert.Equal(t, []byte{20, 30, 40, 255}, th.Pixels)
}

func TestAuthor(t *testing.T) {
	d := openDocument(t, testDocument())

	a, err := d.Author()
	require.NoError(t, err)
	assert.EqualValues(t, 7, a.DocumentID)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), a.DateCreated)
	assert.EqualValues(t, 0x1122334455667788, a.MachineHash)
}

func TestWalkPathOrder(t *testing.T) {
	d := openDocument(t, testDocument())

	var paths []string
	require.NoError(t, d.Walk(func(p string, e vfs.Entry) error {
		paths = append(paths, p)
		return nil
	}))
	assert.Equal(t, []string{
		"/.73851dcd1203b24d",
		"/canvas",
		"/layers",
		"/layers/00000002",
		"/laytbl",
		"/thumbnail",
	}, paths)
}

func TestStream(t *testing.T) {
	d := openDocument(t, testDocument())

	r, err := d.Stream("/canvas")
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, canvasStream(128, 128), b)

	_, err = d.Stream("/missing")
	assert.ErrorIs(t, err, common.ErrUnrecognized)
	_, err = d.Stream("/layers")
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestCorruptLayerDoesNotAffectSiblings(t *testing.T) {
	bad := make([]byte, 64) // kind word 0 is valid root, make it garbage
	bad[0] = 0xFF
	raw := saitest.Container(saitest.Dir{
		Files: []saitest.File{
			{Name: "canvas", Data: canvasStream(128, 128)},
		},
		Dirs: []saitest.Subdir{
			{Name: "layers", Dir: saitest.Dir{
				Files: []saitest.File{
					{Name: "00000002", Data: paintLayer(2, [4]byte{1, 2, 3, 255})},
					{Name: "00000003", Data: bad},
				},
			}},
		},
	})
	d := openDocument(t, raw)

	layers := d.Layers()
	require.Len(t, layers, 2)

	good, err := d.LayerMetadata(layers[0])
	require.NoError(t, err)
	assert.EqualValues(t, 2, good.ID)

	_, err = d.LayerMetadata(layers[1])
	assert.ErrorIs(t, err, common.ErrCorrupt)

	// The good sibling still decodes afterwards.
	_, err = d.LayerPixels(layers[0])
	assert.NoError(t, err)
}

func TestLayerPixelsWithoutRaster(t *testing.T) {
	set := saitest.LayerStream(saitest.LayerSpec{
		Kind: 8, ID: 5, Opacity: 100, Visible: true, Blend: "pass", Name: "group",
	})
	raw := saitest.Container(saitest.Dir{
		Files: []saitest.File{{Name: "canvas", Data: canvasStream(64, 64)}},
		Dirs: []saitest.Subdir{
			{Name: "layers", Dir: saitest.Dir{
				Files: []saitest.File{{Name: "00000005", Data: set}},
			}},
		},
	})
	d := openDocument(t, raw)

	_, err := d.LayerPixels(d.Layers()[0])
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestOpenMissingCanvas(t *testing.T) {
	raw := saitest.Container(saitest.Dir{
		Dirs: []saitest.Subdir{{Name: "layers", Dir: saitest.Dir{}}},
	})

	_, err := sai.FromBytes(raw, sai.OpenOptions{})
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestOpenMissingLayersFolder(t *testing.T) {
	raw := saitest.Container(saitest.Dir{
		Files: []saitest.File{{Name: "canvas", Data: canvasStream(64, 64)}},
	})

	_, err := sai.FromBytes(raw, sai.OpenOptions{})
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestOpenTruncatedContainer(t *testing.T) {
	raw := testDocument()

	_, err := sai.FromBytes(raw[:len(raw)-100], sai.OpenOptions{})
	assert.ErrorIs(t, err, common.ErrUnrecognized)

	_, err = sai.FromBytes(raw[:common.BlockSize], sai.OpenOptions{})
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}

func TestMissingOptionalStreams(t *testing.T) {
	raw := saitest.Container(saitest.Dir{
		Files: []saitest.File{{Name: "canvas", Data: canvasStream(64, 64)}},
		Dirs:  []saitest.Subdir{{Name: "layers", Dir: saitest.Dir{}}},
	})
	d := openDocument(t, raw)

	_, err := d.LayerTable()
	assert.ErrorIs(t, err, common.ErrUnrecognized)
	_, err = d.Thumbnail()
	assert.ErrorIs(t, err, common.ErrUnrecognized)
	_, err = d.Author()
	assert.ErrorIs(t, err, common.ErrUnrecognized)
}
