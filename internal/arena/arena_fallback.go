//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package arena

// Map falls back to the Go heap where no anonymous mapping is available.
func Map(n int) ([]byte, func() error, error) {
	return Heap(n)
}
