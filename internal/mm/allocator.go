package mm

import "github.com/f4os-go/corertos/internal/constants"

// Allocator pairs the kernel and user arenas behind the spec's
// malloc/kmalloc/free/kfree surface.
type Allocator struct {
	Kernel *Arena
	User   *Arena
}

// NewAllocator builds both arenas from the given sizes and order bounds.
func NewAllocator(kernelSize, userSize int, minOrder, maxOrder uint8) (*Allocator, error) {
	kernel, err := NewArena("kernel", kernelSize, minOrder, maxOrder)
	if err != nil {
		return nil, err
	}
	user, err := NewArena("user", userSize, minOrder, maxOrder)
	if err != nil {
		kernel.Close()
		return nil, err
	}
	return &Allocator{Kernel: kernel, User: user}, nil
}

// Close releases both arenas' backing memory.
func (a *Allocator) Close() error {
	uerr := a.User.Close()
	kerr := a.Kernel.Close()
	if uerr != nil {
		return uerr
	}
	return kerr
}

// Malloc allocates size bytes from the user arena. Oversized requests
// return nil without touching the allocator, per spec.md section 6.
func (a *Allocator) Malloc(size int) []byte {
	if size < 0 || size > constants.MMMaxUserSize {
		return nil
	}
	return a.User.Alloc(size)
}

// Kmalloc allocates size bytes from the kernel arena.
func (a *Allocator) Kmalloc(size int) []byte {
	if size < 0 || size > constants.MMMaxKernelSize {
		return nil
	}
	return a.Kernel.Alloc(size)
}

// Free returns a block to the user arena.
func (a *Allocator) Free(payload []byte) {
	a.User.Free(payload)
}

// Kfree returns a block to the kernel arena.
func (a *Allocator) Kfree(payload []byte) {
	a.Kernel.Free(payload)
}
