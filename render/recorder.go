package render

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"

	"github.com/outofforest/scm/types"
)

var _ Renderer = &Recorder{}

// Upload is the recorded layer upload.
type Upload struct {
	Array    types.TextureArray
	Layer    types.Layer
	Checksum uint64
}

type textureArray struct {
	format types.Format
	layers [][]byte
}

// NewRecorder creates renderer recording all the calls.
func NewRecorder() *Recorder {
	return &Recorder{
		arrays: map[types.TextureArray]*textureArray{},
	}
}

// Recorder keeps texture arrays in memory and records uploads and draws. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	lastArray types.TextureArray
	arrays    map[types.TextureArray]*textureArray
	bound     types.TextureArray
	uploads   []Upload
	draws     []Draw
}

// CreateTextureArray allocates texture array.
func (r *Recorder) CreateTextureArray(format types.Format, layers uint64) (types.TextureArray, error) {
	if !format.Valid() || layers == 0 {
		return 0, errors.Errorf("invalid texture array: %d layers of %+v", layers, format)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastArray++
	a := &textureArray{
		format: format,
		layers: make([][]byte, layers),
	}
	for i := range a.layers {
		a.layers[i] = make([]byte, format.PageSize())
	}
	r.arrays[r.lastArray] = a
	return r.lastArray, nil
}

// DeleteTextureArray releases texture array.
func (r *Recorder) DeleteTextureArray(array types.TextureArray) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.arrays[array]; !exists {
		panic("texture array does not exist")
	}
	delete(r.arrays, array)
}

// BindTextureArray binds texture array.
func (r *Recorder) BindTextureArray(array types.TextureArray) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.array(array)
	r.bound = array
}

// UploadLayer copies pixels into the layer.
func (r *Recorder) UploadLayer(array types.TextureArray, layer types.Layer, pixels []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.array(array)
	if uint64(layer) >= uint64(len(a.layers)) {
		panic("layer out of range")
	}
	if len(pixels) != len(a.layers[layer]) {
		panic("invalid size of pixels")
	}
	copy(a.layers[layer], pixels)
	r.uploads = append(r.uploads, Upload{
		Array:    array,
		Layer:    layer,
		Checksum: xxhash.Sum64(pixels),
	})
}

// DrawTerminalPage records the draw.
func (r *Recorder) DrawTerminalPage(draw Draw) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bound == 0 {
		panic("no texture array is bound")
	}
	draw.Layers = slices.Clone(draw.Layers)
	draw.ParentLayers = slices.Clone(draw.ParentLayers)
	r.draws = append(r.draws, draw)
}

// Pixels returns copy of pixels stored in the layer.
func (r *Recorder) Pixels(array types.TextureArray, layer types.Layer) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.array(array).layers[layer])
}

// Bound returns the bound texture array.
func (r *Recorder) Bound() types.TextureArray {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bound
}

// Arrays returns the number of existing texture arrays.
func (r *Recorder) Arrays() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.arrays)
}

// Uploads returns recorded uploads.
func (r *Recorder) Uploads() []Upload {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.uploads)
}

// Draws returns draws recorded since the last call and forgets them.
func (r *Recorder) Draws() []Draw {
	r.mu.Lock()
	defer r.mu.Unlock()

	draws := r.draws
	r.draws = nil
	return draws
}

func (r *Recorder) array(array types.TextureArray) *textureArray {
	a, exists := r.arrays[array]
	if !exists {
		panic("texture array does not exist")
	}
	return a
}
