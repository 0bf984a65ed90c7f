package dataset

import (
	"os"
	"sort"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/outofforest/photon"
	"github.com/outofforest/scm/face"
	"github.com/outofforest/scm/types"
)

// Open reads the page directory of the dataset file and builds its index.
func Open(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	size := uint64(info.Size())
	if size < headerSize {
		return nil, errors.Wrapf(ErrBadMagic, "file %s is too short", path)
	}

	var header Header
	if err := pread(file, photon.NewFromValue(&header).B, 0); err != nil {
		return nil, errors.Wrapf(err, "reading header of %s failed", path)
	}
	if header.Magic != Magic {
		return nil, errors.Wrapf(ErrBadMagic, "file %s", path)
	}
	if header.Version != Version {
		return nil, errors.Wrapf(ErrBadVersion, "file %s has version %d", path, header.Version)
	}
	format := header.Format()
	if !format.Valid() {
		return nil, errors.Wrapf(ErrBadFormat, "file %s has format %+v", path, format)
	}

	count := uint64(header.Count)
	if header.Directory < headerSize || header.Directory > size || (size-header.Directory)/entrySize < count {
		return nil, errors.Wrapf(ErrBadDirectory, "file %s: directory at %d with %d entries exceeds file size %d",
			path, header.Directory, count, size)
	}

	entries := make([]Entry, count)
	var directory []byte
	if count > 0 {
		directory = photon.SliceFromPointer[byte](unsafe.Pointer(&entries[0]), int(count*entrySize))
		if err := pread(file, directory, header.Directory); err != nil {
			return nil, errors.Wrapf(err, "reading directory of %s failed", path)
		}
	}
	if blake3.Sum256(directory) != header.Digest {
		return nil, errors.Wrapf(ErrDigestMismatch, "file %s", path)
	}

	for i, e := range entries {
		if i > 0 && entries[i-1].Node >= e.Node {
			return nil, errors.Wrapf(ErrBadDirectory, "file %s: nodes are not sorted at entry %d", path, i)
		}
		if face.Level(e.Node) > types.MaxDepth {
			return nil, errors.Wrapf(ErrBadDirectory, "file %s: node %d is too deep", path, e.Node)
		}
		if e.Offset < headerSize || e.Offset > header.Directory-pageHeaderSize {
			return nil, errors.Wrapf(ErrBadDirectory, "file %s: page %d has invalid offset %d", path, e.Node,
				e.Offset)
		}
	}

	extents, err := pageExtents(entries, header.Directory)
	if err != nil {
		return nil, errors.Wrapf(err, "file %s", path)
	}

	return &Index{
		path:    path,
		format:  format,
		entries: entries,
		extents: extents,
	}, nil
}

// pageExtents computes the number of payload bytes available to every page. A page ends where the next page or
// the directory starts.
func pageExtents(entries []Entry, directory uint64) ([]uint64, error) {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return entries[order[i]].Offset < entries[order[j]].Offset
	})

	extents := make([]uint64, len(entries))
	for i, index := range order {
		end := directory
		if i+1 < len(order) {
			end = entries[order[i+1]].Offset
		}
		e := entries[index]
		if end-e.Offset < pageHeaderSize {
			return nil, errors.Wrapf(ErrBadDirectory, "page %d at %d overlaps next one at %d", e.Node, e.Offset,
				end)
		}
		extents[index] = end - e.Offset - pageHeaderSize
	}
	return extents, nil
}

// Index is the immutable page index of a dataset. It is safe for concurrent use.
type Index struct {
	path    string
	format  types.Format
	entries []Entry
	extents []uint64
}

// Path returns the path of the dataset file.
func (i *Index) Path() string {
	return i.path
}

// Format returns format of the pages.
func (i *Index) Format() types.Format {
	return i.format
}

// Count returns the number of pages in the dataset.
func (i *Index) Count() int {
	return len(i.entries)
}

// Offset returns byte offset of the page or 0 if page is absent.
func (i *Index) Offset(node types.NodeID) uint64 {
	if index, exists := i.find(node); exists {
		return i.entries[index].Offset
	}
	return 0
}

// Extent returns the maximum payload length of the page or 0 if page is absent.
func (i *Index) Extent(node types.NodeID) uint64 {
	if index, exists := i.find(node); exists {
		return i.extents[index]
	}
	return 0
}

// Bounds returns minimum and maximum normalized sample value of the page.
func (i *Index) Bounds(node types.NodeID) (float32, float32, bool) {
	if index, exists := i.find(node); exists {
		e := i.entries[index]
		return e.Min, e.Max, true
	}
	return 0, 0, false
}

// Contains returns true if dataset contains the page.
func (i *Index) Contains(node types.NodeID) bool {
	_, exists := i.find(node)
	return exists
}

// HasChildren returns true if dataset contains any child of the node.
func (i *Index) HasChildren(node types.NodeID) bool {
	if face.Level(node) >= types.MaxDepth {
		return false
	}
	for _, child := range face.Children(node) {
		if i.Contains(child) {
			return true
		}
	}
	return false
}

// Entries iterates over directory entries in node order.
func (i *Index) Entries() func(func(Entry) bool) {
	return func(yield func(Entry) bool) {
		for _, e := range i.entries {
			if !yield(e) {
				return
			}
		}
	}
}

func (i *Index) find(node types.NodeID) (int, bool) {
	index := sort.Search(len(i.entries), func(j int) bool {
		return i.entries[j].Node >= node
	})
	return index, index < len(i.entries) && i.entries[index].Node == node
}
