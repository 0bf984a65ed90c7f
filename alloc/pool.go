package alloc

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/photon"
)

// Handle identifies buffer in the pool.
type Handle uint32

// Config stores configuration of the buffer pool.
type Config struct {
	NumOfBuffers uint64
	BufferSize   uint64
	UseHugePages bool
}

// NewPool creates pool of transfer buffers backed by one memory mapping.
func NewPool(config Config) (*Pool, func(), error) {
	if config.NumOfBuffers == 0 || config.BufferSize == 0 {
		return nil, nil, errors.Errorf("invalid pool: %d buffers of %d bytes", config.NumOfBuffers,
			config.BufferSize)
	}

	// Every buffer starts at page boundary.
	pageSize := uint64(os.Getpagesize())
	stride := (config.BufferSize + pageSize - 1) / pageSize * pageSize

	origin, deallocFunc, err := Allocate(stride*config.NumOfBuffers, pageSize, config.UseHugePages)
	if err != nil {
		return nil, nil, err
	}

	free := newRing[Handle](config.NumOfBuffers)
	for i := range config.NumOfBuffers {
		free.Put(Handle(i))
	}

	return &Pool{
		origin:     origin,
		bufferSize: config.BufferSize,
		stride:     stride,
		free:       free,
		taken:      make([]bool, config.NumOfBuffers),
	}, deallocFunc, nil
}

// Pool hands out fixed-size buffers by handle. It must be used by one goroutine, buffer contents may be accessed
// by the goroutine holding the handle.
type Pool struct {
	origin     unsafe.Pointer
	bufferSize uint64
	stride     uint64
	free       *ring[Handle]
	taken      []bool
}

// Get takes a free buffer from the pool.
func (p *Pool) Get() (Handle, bool) {
	h, ok := p.free.Get()
	if ok {
		p.taken[h] = true
	}
	return h, ok
}

// Put returns buffer to the pool.
func (p *Pool) Put(h Handle) {
	if !p.taken[h] {
		panic("buffer returned twice")
	}
	p.taken[h] = false
	p.free.Put(h)
}

// Bytes returns the buffer memory.
func (p *Pool) Bytes(h Handle) []byte {
	if uint64(h) >= uint64(len(p.taken)) {
		panic("invalid buffer handle")
	}
	return photon.SliceFromPointer[byte](unsafe.Add(p.origin, uint64(h)*p.stride), int(p.bufferSize))
}

// Capacity returns the number of buffers.
func (p *Pool) Capacity() uint64 {
	return uint64(len(p.taken))
}

// Free returns the number of buffers available.
func (p *Pool) Free() uint64 {
	return p.free.Count()
}
