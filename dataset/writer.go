package dataset

import (
	"os"
	"sort"
	"unsafe"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/outofforest/photon"
	"github.com/outofforest/scm/types"
)

// Create creates new dataset file.
func Create(path string, format types.Format) (*Writer, error) {
	if !format.Valid() {
		return nil, errors.Wrapf(ErrBadFormat, "format %+v", format)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		encoder.Close()
		return nil, errors.WithStack(err)
	}

	// Header is written on close, when directory is known.
	if _, err := file.Write(make([]byte, headerSize)); err != nil {
		encoder.Close()
		_ = file.Close()
		return nil, errors.WithStack(err)
	}

	return &Writer{
		file:    file,
		format:  format,
		encoder: encoder,
		nodes:   map[types.NodeID]struct{}{},
		offset:  headerSize,
	}, nil
}

// Writer writes pages to the dataset file.
type Writer struct {
	file    *os.File
	format  types.Format
	encoder *zstd.Encoder
	nodes   map[types.NodeID]struct{}
	entries []Entry
	offset  uint64
	payload []byte
}

// AddPage compresses samples and appends them to the file as the page of the node.
func (w *Writer) AddPage(node types.NodeID, samples []byte) error {
	if uint64(len(samples)) != w.format.PageSize() {
		return errors.Wrapf(ErrInvalidPageLength, "expected %d bytes, got %d", w.format.PageSize(), len(samples))
	}
	if _, exists := w.nodes[node]; exists {
		return errors.Wrapf(ErrDuplicatedPage, "node %d", node)
	}

	w.payload = w.encoder.EncodeAll(samples, w.payload[:0])
	header := PageHeader{
		Checksum: xxhash.Sum64(samples),
		Length:   uint32(len(w.payload)),
		Width:    w.format.Width,
		Height:   w.format.Height,
		Channels: uint16(w.format.Channels),
		Depth:    uint16(w.format.Depth),
	}
	if _, err := w.file.Write(photon.NewFromValue(&header).B); err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.file.Write(w.payload); err != nil {
		return errors.WithStack(err)
	}

	minV, maxV := Bounds(w.format, samples)
	w.entries = append(w.entries, Entry{
		Node:   node,
		Offset: w.offset,
		Min:    minV,
		Max:    maxV,
	})
	w.nodes[node] = struct{}{}
	w.offset += pageHeaderSize + uint64(len(w.payload))

	return nil
}

// Count returns the number of pages added so far.
func (w *Writer) Count() int {
	return len(w.entries)
}

// Close writes the directory and the header and closes the file.
func (w *Writer) Close() error {
	defer w.encoder.Close()

	sort.Slice(w.entries, func(i, j int) bool {
		return w.entries[i].Node < w.entries[j].Node
	})

	var directory []byte
	if len(w.entries) > 0 {
		directory = photon.SliceFromPointer[byte](unsafe.Pointer(&w.entries[0]), len(w.entries)*int(entrySize))
	}
	if _, err := w.file.Write(directory); err != nil {
		_ = w.file.Close()
		return errors.WithStack(err)
	}

	header := Header{
		Magic:     Magic,
		Directory: w.offset,
		Count:     uint32(len(w.entries)),
		Version:   Version,
		Width:     w.format.Width,
		Height:    w.format.Height,
		Channels:  w.format.Channels,
		Depth:     w.format.Depth,
		Digest:    blake3.Sum256(directory),
	}
	if _, err := w.file.WriteAt(photon.NewFromValue(&header).B, 0); err != nil {
		_ = w.file.Close()
		return errors.WithStack(err)
	}

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(w.file.Close())
}
