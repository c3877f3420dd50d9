// Package sai is the entry point for reading SAI documents: open a
// container, enumerate its layers, and decode canvas, layer metadata and
// layer pixels on demand.
package sai

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"github.com/drawkit/sai/pkg/block"
	"github.com/drawkit/sai/pkg/chunk"
	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/doc"
	"github.com/drawkit/sai/pkg/vfs"
)

// Well-known root entries. A container missing any of these is not a
// document revision this library recognizes.
const (
	canvasStream     = "canvas"
	layersFolder     = "layers"
	layerTableStream = "laytbl"
	sublayersFolder  = "sublayers"
	subTableStream   = "subtbl"
	thumbnailStream  = "thumbnail"
)

type treeNode struct {
	Path  string
	Entry vfs.Entry
}

// LayerHandle identifies one layer stream inside an open Document. Handles
// borrow the Document and must not be used after Close.
type LayerHandle struct {
	path  string
	entry vfs.Entry
}

// Path returns the handle's virtual filesystem path, e.g. "/layers/00000002".
func (h LayerHandle) Path() string { return h.path }

// PixelBuffer is a decoded layer raster: premultiplied RGBA rows for the
// layer's bounds.
type PixelBuffer struct {
	Bounds doc.Bounds
	Pix    []byte
}

// Document is an open container. All read methods are safe for concurrent
// use; the underlying byte source must stay available until Close.
type Document struct {
	store     *block.Store
	walker    *vfs.Walker
	index     *btree.BTree
	canvas    *doc.Canvas
	layers    []LayerHandle
	sublayers []LayerHandle
	closer    io.Closer
}

// OpenOptions tunes an open. The zero value is ready to use.
type OpenOptions struct {
	Store block.StoreOpts
}

// Open reads a container from a random-access byte source of the given
// length. Document-level metadata is decoded eagerly; layer pixel data is
// deferred until requested.
func Open(src io.ReaderAt, size int64, opts OpenOptions) (*Document, error) {
	store, err := block.NewStore(src, size, opts.Store)
	if err != nil {
		return nil, err
	}

	d := &Document{
		store:  store,
		walker: vfs.NewWalker(store),
		index: btree.New(func(a, b interface{}) bool {
			return a.(*treeNode).Path < b.(*treeNode).Path
		}),
	}
	if err := d.load(); err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

// FromBytes opens a container held in memory.
func FromBytes(b []byte, opts OpenOptions) (*Document, error) {
	return Open(bytes.NewReader(b), int64(len(b)), opts)
}

// OpenFile opens a container from disk. The file is closed with the
// Document.
func OpenFile(path string, opts OpenOptions) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	d, err := Open(f, fi.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.closer = f
	return d, nil
}

func (d *Document) load() error {
	if err := d.walker.Walk(func(p string, e vfs.Entry) error {
		d.index.Set(&treeNode{Path: p, Entry: e})
		return nil
	}); err != nil {
		return err
	}

	canvasEntry, ok := d.lookup("/" + canvasStream)
	if !ok || canvasEntry.IsFolder() {
		return fmt.Errorf("%w: no canvas stream at the container root", common.ErrUnrecognized)
	}
	layersEntry, ok := d.lookup("/" + layersFolder)
	if !ok || !layersEntry.IsFolder() {
		return fmt.Errorf("%w: no layers folder at the container root", common.ErrUnrecognized)
	}

	cr, err := d.openChunks(canvasEntry)
	if err != nil {
		return err
	}
	canvas, err := doc.DecodeCanvas(cr)
	if err != nil {
		return err
	}
	d.canvas = canvas

	if d.layers, err = d.layerHandles(layersFolder, layersEntry); err != nil {
		return err
	}

	// Linework extras live under an optional sibling folder.
	if subEntry, ok := d.lookup("/" + sublayersFolder); ok && subEntry.IsFolder() {
		if d.sublayers, err = d.layerHandles(sublayersFolder, subEntry); err != nil {
			return err
		}
	}

	log.Debug().
		Uint32("width", canvas.Width).
		Uint32("height", canvas.Height).
		Int("layers", len(d.layers)).
		Msg("opened document")
	return nil
}

// layerHandles enumerates the stream entries of a layer folder in on-disk
// order.
func (d *Document) layerHandles(folder string, e vfs.Entry) ([]LayerHandle, error) {
	children, err := d.walker.ListChildren(e)
	if err != nil {
		return nil, err
	}
	var handles []LayerHandle
	for _, child := range children {
		if child.IsFolder() {
			continue
		}
		handles = append(handles, LayerHandle{
			path:  "/" + folder + "/" + child.Name,
			entry: child,
		})
	}
	return handles, nil
}

func (d *Document) lookup(path string) (vfs.Entry, bool) {
	item := d.index.Get(&treeNode{Path: path})
	if item == nil {
		return vfs.Entry{}, false
	}
	return item.(*treeNode).Entry, true
}

func (d *Document) openChunks(e vfs.Entry) (*chunk.Reader, error) {
	stream, err := d.walker.OpenStream(e)
	if err != nil {
		return nil, err
	}
	return chunk.NewReader(stream.Reader(), e.Name), nil
}

func (d *Document) openNamed(name string) (*chunk.Reader, error) {
	e, ok := d.lookup("/" + name)
	if !ok || e.IsFolder() {
		return nil, fmt.Errorf("stream %q: %w: no such stream", name, common.ErrUnrecognized)
	}
	return d.openChunks(e)
}

// Stream opens the raw decrypted bytes of the stream at path, e.g.
// "/layers/00000002".
func (d *Document) Stream(path string) (*io.SectionReader, error) {
	e, ok := d.lookup(path)
	if !ok || e.IsFolder() {
		return nil, fmt.Errorf("stream %q: %w: no such stream", path, common.ErrUnrecognized)
	}
	stream, err := d.walker.OpenStream(e)
	if err != nil {
		return nil, err
	}
	return stream.Reader(), nil
}

// Canvas returns the document-level metadata decoded at open time.
func (d *Document) Canvas() *doc.Canvas {
	return d.canvas
}

// Layers enumerates the document's layers in on-disk order. The slice is a
// copy; repeated calls observe the same order.
func (d *Document) Layers() []LayerHandle {
	out := make([]LayerHandle, len(d.layers))
	copy(out, d.layers)
	return out
}

// LayerMetadata decodes a layer's header and records, without pixel data.
// One corrupt layer does not affect its siblings.
func (d *Document) LayerMetadata(h LayerHandle) (*doc.Layer, error) {
	cr, err := d.openChunks(h.entry)
	if err != nil {
		return nil, err
	}
	return doc.DecodeLayer(cr, false)
}

// LayerPixels decodes a layer including its raster section. Mask layers
// surface ErrUnsupported; callers may keep the layer and skip its mask.
func (d *Document) LayerPixels(h LayerHandle) (*PixelBuffer, error) {
	cr, err := d.openChunks(h.entry)
	if err != nil {
		return nil, err
	}
	layer, err := doc.DecodeLayer(cr, true)
	if err != nil {
		return nil, err
	}
	if layer.Data == nil {
		return nil, fmt.Errorf("layer %d: %w: %s layers carry no raster data", layer.ID, common.ErrUnsupported, layer.Kind)
	}
	return &PixelBuffer{Bounds: layer.Bounds, Pix: layer.Data}, nil
}

// SubLayers enumerates the document's sublayers (linework extras) in on-disk
// order. The slice is empty when the container carries none; handles decode
// through LayerMetadata and LayerPixels like regular layers.
func (d *Document) SubLayers() []LayerHandle {
	out := make([]LayerHandle, len(d.sublayers))
	copy(out, d.sublayers)
	return out
}

// LayerTable decodes the paint-order table.
func (d *Document) LayerTable() (*doc.LayerTable, error) {
	cr, err := d.openNamed(layerTableStream)
	if err != nil {
		return nil, err
	}
	return doc.DecodeLayerTable(cr)
}

// SubLayerTable decodes the sublayer paint-order table.
func (d *Document) SubLayerTable() (*doc.LayerTable, error) {
	cr, err := d.openNamed(subTableStream)
	if err != nil {
		return nil, err
	}
	return doc.DecodeLayerTable(cr)
}

// Thumbnail decodes the embedded preview bitmap.
func (d *Document) Thumbnail() (*doc.Thumbnail, error) {
	cr, err := d.openNamed(thumbnailStream)
	if err != nil {
		return nil, err
	}
	return doc.DecodeThumbnail(cr)
}

// Author decodes the machine-hash stream (the dot-named root entry).
func (d *Document) Author() (*doc.Author, error) {
	var entry vfs.Entry
	found := false
	d.index.Ascend(d.index.Min(), func(item interface{}) bool {
		n := item.(*treeNode)
		if !n.Entry.IsFolder() && strings.HasPrefix(n.Entry.Name, ".") && strings.Count(n.Path, "/") == 1 {
			entry = n.Entry
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, fmt.Errorf("author: %w: no machine-hash stream at the container root", common.ErrUnrecognized)
	}
	cr, err := d.openChunks(entry)
	if err != nil {
		return nil, err
	}
	return doc.DecodeAuthor(cr)
}

// Walk visits every directory entry in path order.
func (d *Document) Walk(fn func(path string, e vfs.Entry) error) error {
	var err error
	d.index.Ascend(d.index.Min(), func(item interface{}) bool {
		n := item.(*treeNode)
		err = fn(n.Path, n.Entry)
		return err == nil
	})
	return err
}

// Close releases the block cache and, for documents opened from a file, the
// file handle. Handles and streams derived from the Document are invalid
// afterwards.
func (d *Document) Close() error {
	d.store.Close()
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
