//go:build unix

package mm

import "golang.org/x/sys/unix"

// mmapBacking reserves size bytes of anonymous, zero-filled memory at a
// fixed (for the process lifetime) address, giving the arena the "fixed
// base address" spec.md's data model calls for. Generalizes
// internal/queue/runner.go's mmapQueues, which mmaps descriptor and I/O
// buffer regions for a ublk queue the same way.
func mmapBacking(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

// munmapBacking releases memory obtained from mmapBacking.
func munmapBacking(buf []byte) error {
	return unix.Munmap(buf)
}
