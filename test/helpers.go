package test

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"unsafe"

	"github.com/cespare/xxhash"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/outofforest/photon"
	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/face"
	"github.com/outofforest/scm/types"
)

// Format is the small page format used in tests.
var Format = types.Format{
	Width:    8,
	Height:   8,
	Channels: 1,
	Depth:    8,
}

// Samples generates deterministic samples of the node's page.
func Samples(format types.Format, node types.NodeID) []byte {
	samples := make([]byte, format.PageSize())
	seed := xxhash.Sum64(photon.NewFromValue(&node).B)
	for i := range samples {
		samples[i] = byte(seed >> (8 * (i % 8)))
		if i%8 == 7 {
			seed = seed*6364136223846793005 + 1442695040888963407
		}
	}
	return samples
}

// Pyramid returns all the nodes of the six faces down to depth, inclusive.
func Pyramid(depth uint64) []types.NodeID {
	nodes := make([]types.NodeID, 0, face.LevelStart(depth+1))
	for id := range face.LevelStart(depth + 1) {
		nodes = append(nodes, id)
	}
	return nodes
}

// CreateDataset writes dataset containing pages of the nodes and returns its path.
func CreateDataset(t testing.TB, format types.Format, nodes []types.NodeID) string {
	path := filepath.Join(t.TempDir(), "dataset.scm")
	w, err := dataset.Create(path, format)
	require.NoError(t, err)
	for _, n := range nodes {
		require.NoError(t, w.AddPage(n, Samples(format, n)))
	}
	require.NoError(t, w.Close())
	return path
}

// CorruptPage damages compressed samples of the page stored at offset.
func CorruptPage(t testing.TB, path string, offset uint64) {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var header dataset.PageHeader
	headerSize := uint64(unsafe.Sizeof(header))
	copy(photon.NewFromValue(&header).B, data[offset:offset+headerSize])
	data[offset+headerSize+uint64(header.Length)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// SetPageLength overwrites payload length stored in the header of the page at offset.
func SetPageLength(t testing.TB, path string, offset uint64, length uint32) {
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var header dataset.PageHeader
	b := photon.NewFromValue(&header).B
	copy(b, data[offset:])
	header.Length = length
	copy(data[offset:], b)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// RewriteDirectory lets modify directory entries and stores them with valid digest.
func RewriteDirectory(t testing.TB, path string, modify func(entries []dataset.Entry)) {
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var header dataset.Header
	headerBytes := photon.NewFromValue(&header).B
	copy(headerBytes, data)

	entries := make([]dataset.Entry, header.Count)
	entrySize := uint64(unsafe.Sizeof(dataset.Entry{}))
	directory := data[header.Directory : header.Directory+uint64(header.Count)*entrySize]
	for i := range entries {
		copy(photon.NewFromValue(&entries[i]).B, directory[uint64(i)*entrySize:])
	}
	modify(entries)
	for i := range entries {
		copy(directory[uint64(i)*entrySize:], photon.NewFromValue(&entries[i]).B)
	}

	header.Digest = blake3.Sum256(directory)
	copy(data, headerBytes)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// CollectEntries collects nodes of the directory entries.
func CollectEntries(index *dataset.Index) []types.NodeID {
	nodes := []types.NodeID{}
	for e := range index.Entries() {
		nodes = append(nodes, e.Node)
	}
	return nodes
}

// Sorted returns sorted copy of values.
func Sorted[T cmp.Ordered](values []T) []T {
	values = slices.Clone(values)
	slices.Sort(values)
	return values
}
