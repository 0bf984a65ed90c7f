package alloc

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Allocate maps anonymous memory backing transfer buffers. Returned pointer is aligned to alignment, so buffers
// placed at multiples of alignment never share a page. Returned function unmaps the memory, it must be called
// after loader workers stop writing to the buffers.
func Allocate(size, alignment uint64, useHugePages bool) (unsafe.Pointer, func(), error) {
	if size == 0 || alignment == 0 {
		return nil, nil, errors.Errorf("invalid allocation: size %d, alignment %d", size, alignment)
	}

	// Pages are populated upfront so the first decode into a buffer doesn't fault.
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_POPULATE
	pageSizes := []uintptr{uintptr(os.Getpagesize())}
	if useHugePages {
		flags |= unix.MAP_HUGETLB
		// Huge page size depends on kernel configuration.
		pageSizes = []uintptr{2 << 20, 1 << 30}
	}

	length := uintptr(size + alignment)
	origin, err := unix.MmapPtr(-1, 0, nil, length, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "mapping %d bytes of transfer buffers failed", length)
	}

	start := alignUp(uintptr(origin), uintptr(alignment))
	return unsafe.Add(origin, start-uintptr(origin)), func() {
		// munmap accepts only the length rounded to the page size of the mapping.
		for _, pageSize := range pageSizes {
			if err := unix.MunmapPtr(origin, alignUp(length, pageSize)); err == nil {
				return
			}
		}
	}, nil
}

func alignUp(v, alignment uintptr) uintptr {
	return (v + alignment - 1) / alignment * alignment
}
