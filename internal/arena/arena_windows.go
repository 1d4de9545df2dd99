//go:build windows

package arena

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map commits n bytes of fresh read/write pages with VirtualAlloc. The pages
// start zero-filled.
func Map(n int) ([]byte, func() error, error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: VirtualAlloc %d bytes: %w", ErrOutOfMemory, n, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	release := func() error {
		return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}
	return data, once(release), nil
}
