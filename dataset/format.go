package dataset

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/outofforest/scm/types"
)

// Version is the version of the container format.
const Version = 1

// Magic identifies dataset files.
var Magic = [8]byte{'S', 'C', 'M', 'P', 'Y', 'R', 'M', 'D'}

const (
	headerSize     = uint64(unsafe.Sizeof(Header{}))
	entrySize      = uint64(unsafe.Sizeof(Entry{}))
	pageHeaderSize = uint64(unsafe.Sizeof(PageHeader{}))
)

// Errors returned when dataset is invalid.
var (
	ErrBadMagic          = errors.New("file is not a dataset")
	ErrBadVersion        = errors.New("unsupported dataset version")
	ErrBadFormat         = errors.New("invalid page format")
	ErrBadDirectory      = errors.New("invalid page directory")
	ErrDigestMismatch    = errors.New("page directory digest mismatch")
	ErrPageMismatch      = errors.New("page does not match the expected format")
	ErrChecksumMismatch  = errors.New("page checksum mismatch")
	ErrDuplicatedPage    = errors.New("page already exists")
	ErrInvalidPageLength = errors.New("invalid page length")
)

// Header is stored at the beginning of the dataset file.
type Header struct {
	Magic     [8]byte
	Directory uint64
	Count     uint32
	Version   uint32
	Width     uint32
	Height    uint32
	Channels  uint32
	Depth     uint32
	Digest    [32]byte
}

// Format returns format of the pages.
func (h Header) Format() types.Format {
	return types.Format{
		Width:    h.Width,
		Height:   h.Height,
		Channels: h.Channels,
		Depth:    h.Depth,
	}
}

// Entry is the directory entry describing one page.
type Entry struct {
	Node   types.NodeID
	Offset uint64
	Min    float32
	Max    float32
}

// PageHeader precedes the compressed samples of the page.
type PageHeader struct {
	Checksum uint64
	Length   uint32
	Width    uint32
	Height   uint32
	Channels uint16
	Depth    uint16
}

// Matches returns true if page header describes page of the format.
func (ph PageHeader) Matches(format types.Format) bool {
	return ph.Width == format.Width && ph.Height == format.Height && uint32(ph.Channels) == format.Channels &&
		uint32(ph.Depth) == format.Depth
}

// maxPayloadSize returns the size of the largest zstd frame produced for page of pageSize bytes. Incompressible
// samples are stored in raw blocks of 128KiB, each with 3-byte header, inside the frame header and checksum.
func maxPayloadSize(pageSize uint64) uint64 {
	const (
		blockSize       = 128 * 1024
		blockHeaderSize = 3
		frameOverhead   = 32
	)
	return pageSize + (pageSize/blockSize+1)*blockHeaderSize + frameOverhead
}

// Bounds returns minimum and maximum normalized sample value.
func Bounds(format types.Format, samples []byte) (float32, float32) {
	minV, maxV := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	update := func(v float32) {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	switch format.Depth {
	case 8:
		for _, s := range samples {
			update(float32(s) / math.MaxUint8)
		}
	case 16:
		for i := 0; i+1 < len(samples); i += 2 {
			update(float32(binary.LittleEndian.Uint16(samples[i:])) / math.MaxUint16)
		}
	case 32:
		for i := 0; i+3 < len(samples); i += 4 {
			update(math.Float32frombits(binary.LittleEndian.Uint32(samples[i:])))
		}
	}

	if minV > maxV {
		return 0, 0
	}
	return minV, maxV
}

func pread(file *os.File, b []byte, offset uint64) error {
	fd := int(file.Fd())
	for len(b) > 0 {
		n, err := unix.Pread(fd, b, int64(offset))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return errors.WithStack(err)
		}
		if n == 0 {
			return errors.WithStack(io.ErrUnexpectedEOF)
		}
		b = b[n:]
		offset += uint64(n)
	}
	return nil
}
