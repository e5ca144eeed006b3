package mm

import "encoding/binary"

// header is the on-wire layout of the 8-byte header prepended to every
// node, free or allocated, marshaled manually into the arena's backing
// bytes the way internal/uapi/marshal.go hand-marshals kernel-ABI structs
// rather than relying on encoding/binary struct reflection per field.
//
// A free node's single-link "next" offset is deliberately not part of
// this struct: original_source/mm/buddy_mm_malloc.c's struct heapnode
// stores next directly after the header, overlapping the payload area
// that is unused while the block is free. See readNextPtr/writeNextPtr.
type header struct {
	magic uint32
	order uint8
	flags uint8
}

const (
	flagFree = uint8(1) << 0

	offMagic = 0
	offOrder = 4
	offFlags = 5

	nilOffset = int32(-1)
)

func readHeader(buf []byte) header {
	return header{
		magic: binary.LittleEndian.Uint32(buf[offMagic:]),
		order: buf[offOrder],
		flags: buf[offFlags],
	}
}

func writeHeader(buf []byte, h header) {
	binary.LittleEndian.PutUint32(buf[offMagic:], h.magic)
	buf[offOrder] = h.order
	buf[offFlags] = h.flags
}

func (h header) isFree() bool { return h.flags&flagFree != 0 }
