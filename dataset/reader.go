package dataset

import (
	"os"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/outofforest/photon"
	"github.com/outofforest/scm/types"
)

// NewDecoder creates page decoder shared by readers.
func NewDecoder(concurrency uint64) (*Decoder, error) {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(int(max(concurrency, 1))))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Decoder{zstd: d}, nil
}

// Decoder decompresses page samples. It is safe for concurrent use.
type Decoder struct {
	zstd *zstd.Decoder
}

// Close releases decoder resources.
func (d *Decoder) Close() {
	d.zstd.Close()
}

// NewReader creates page reader. Reader must be used by one goroutine at a time.
func (d *Decoder) NewReader() *Reader {
	return &Reader{decoder: d}
}

// Reader reads pages from dataset files.
type Reader struct {
	decoder *Decoder
	payload []byte
}

// ReadPage opens the file, reads the page stored at offset and decodes its samples into dst. Payload longer than
// extent is rejected. The file is closed before returning so readers never share file descriptors.
func (r *Reader) ReadPage(path string, offset, extent uint64, format types.Format, dst []byte) error {
	if uint64(len(dst)) != format.PageSize() {
		return errors.Wrapf(ErrInvalidPageLength, "buffer has %d bytes, page needs %d", len(dst), format.PageSize())
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	var header PageHeader
	if err := pread(file, photon.NewFromValue(&header).B, offset); err != nil {
		return errors.Wrapf(err, "reading page header at %d failed", offset)
	}
	if !header.Matches(format) {
		return errors.Wrapf(ErrPageMismatch, "page at %d is %dx%dx%d/%d, expected %+v", offset, header.Width,
			header.Height, header.Channels, header.Depth, format)
	}

	if length := uint64(header.Length); length > extent || length > maxPayloadSize(format.PageSize()) {
		return errors.Wrapf(ErrInvalidPageLength, "page at %d has %d payload bytes, extent is %d", offset, length,
			extent)
	}

	if uint64(cap(r.payload)) < uint64(header.Length) {
		r.payload = make([]byte, header.Length)
	}
	payload := r.payload[:header.Length]
	if err := pread(file, payload, offset+pageHeaderSize); err != nil {
		return errors.Wrapf(err, "reading page payload at %d failed", offset)
	}

	decoded, err := r.decoder.zstd.DecodeAll(payload, dst[:0])
	if err != nil {
		return errors.WithStack(err)
	}
	if len(decoded) != len(dst) {
		return errors.Wrapf(ErrInvalidPageLength, "page at %d decoded to %d bytes, expected %d", offset,
			len(decoded), len(dst))
	}
	if &decoded[0] != &dst[0] {
		copy(dst, decoded)
	}

	if xxhash.Sum64(dst) != header.Checksum {
		return errors.Wrapf(ErrChecksumMismatch, "page at %d", offset)
	}
	return nil
}
