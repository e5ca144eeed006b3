//go:build !unix

package mm

// mmapBacking falls back to a plain heap allocation on platforms without
// an mmap syscall (golang.org/x/sys/unix is unix-only). The arena's fixed
// base address is then just wherever the Go allocator places the slice,
// which is sufficient for the buddy algorithm's relative-offset math.
func mmapBacking(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// munmapBacking is a no-op here; the slice is left for the garbage
// collector once the Arena drops its reference.
func munmapBacking(buf []byte) error {
	return nil
}
