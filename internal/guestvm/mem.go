// mem.go - guest memory accessor (component A)
//
// The guest address space is a page-table-backed abstraction in a real
// port; here it is reduced to the four-operation contract the
// interpreter and socket marshallers actually consume. FlatMemory is
// the concrete implementation this module ships so the rest of the
// code can be built and tested without a host integration.

package guestvm

import "fmt"

// GuestMemory is the byte read/write half of the four-operation
// contract external callers (the interpreter, the socket marshallers)
// consume to read and write guest virtual addresses; the typed get/put
// forms are the memRead*/memWrite* helpers below. A fault must not panic; it returns an error that
// callers translate to -EFAULT at the syscall boundary.
type GuestMemory interface {
	ReadBytes(addr uint32, dst []byte) error
	WriteBytes(addr uint32, src []byte) error
}

// ErrFault reports an out-of-range or otherwise invalid guest access.
type ErrFault struct {
	Addr uint32
	Len  int
}

func (e *ErrFault) Error() string {
	return fmt.Sprintf("guest memory fault at 0x%08x (len %d)", e.Addr, e.Len)
}

// FlatMemory is a bounds-checked flat byte-slice address space. It is
// the minimum backing store needed to drive the interpreter and the
// socket layer in tests; a real port replaces this with a paged or
// mmap'd guest address space behind the same GuestMemory interface.
type FlatMemory struct {
	bytes []byte
}

// NewFlatMemory allocates a flat guest address space of the given size.
func NewFlatMemory(size uint32) *FlatMemory {
	return &FlatMemory{bytes: make([]byte, size)}
}

func (m *FlatMemory) ReadBytes(addr uint32, dst []byte) error {
	if !m.inBounds(addr, len(dst)) {
		return &ErrFault{Addr: addr, Len: len(dst)}
	}
	copy(dst, m.bytes[addr:])
	return nil
}

func (m *FlatMemory) WriteBytes(addr uint32, src []byte) error {
	if !m.inBounds(addr, len(src)) {
		return &ErrFault{Addr: addr, Len: len(src)}
	}
	copy(m.bytes[addr:], src)
	return nil
}

func (m *FlatMemory) inBounds(addr uint32, n int) bool {
	if n == 0 {
		return addr <= uint32(len(m.bytes))
	}
	end := uint64(addr) + uint64(n)
	return end <= uint64(len(m.bytes))
}

// Load copies a program image into the address space at addr, growing
// nothing — the caller-sized FlatMemory must already be big enough.
func (m *FlatMemory) Load(addr uint32, image []byte) error {
	return m.WriteBytes(addr, image)
}

// --- typed convenience helpers layered on the byte contract ---
// these stand in for the source's MEM_GET/user_get/user_put macros.

func memRead8(m GuestMemory, addr uint32) (byte, error) {
	var b [1]byte
	if err := m.ReadBytes(addr, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func memWrite8(m GuestMemory, addr uint32, v byte) error {
	return m.WriteBytes(addr, []byte{v})
}

func memRead16(m GuestMemory, addr uint32) (uint16, error) {
	var b [2]byte
	if err := m.ReadBytes(addr, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func memWrite16(m GuestMemory, addr uint32, v uint16) error {
	return m.WriteBytes(addr, []byte{byte(v), byte(v >> 8)})
}

func memRead32(m GuestMemory, addr uint32) (uint32, error) {
	var b [4]byte
	if err := m.ReadBytes(addr, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func memWrite32(m GuestMemory, addr uint32, v uint32) error {
	return m.WriteBytes(addr, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}
