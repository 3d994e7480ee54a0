// Package physmem simulates the machine's physical memory. RAM is a single
// byte region mapped at format.PhysBase in the kernel's address space, the
// way the kernel sees all of physical memory after paging is enabled.
//
// Addresses handed out by the allocators are kernel virtual addresses (Addr).
// Callers turn them into byte slices with Bytes; every access is bounds
// checked so a stray address fails loudly instead of scribbling over Go memory.
package physmem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/internal/format"
)

// Addr is a kernel virtual address. The zero value is the null pointer.
type Addr uint32

// Null is the address allocators return on failure.
const Null Addr = 0

var (
	// ErrOutOfRange indicates an address range not backed by RAM.
	ErrOutOfRange = errors.New("physmem: address range outside RAM")
	// ErrTooLarge indicates a RAM size the 32-bit kernel address space cannot map.
	ErrTooLarge = errors.New("physmem: RAM larger than mappable physical memory")
	// ErrClosed indicates use of memory after Close.
	ErrClosed = errors.New("physmem: memory closed")
)

// Memory is the simulated RAM.
//
// Memory does no locking of its own: concurrent writers must coordinate
// through the allocators that own the pages they touch.
type Memory struct {
	data    []byte
	pages   int
	release func() error
}

// New maps pages pages of zeroed RAM.
func New(pages int) (*Memory, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("physmem: invalid page count %d", pages)
	}
	if pages >= format.MaxPhysMem/format.PageSize {
		return nil, ErrTooLarge
	}
	data, release, err := mapRAM(pages * format.PageSize)
	if err != nil {
		return nil, fmt.Errorf("physmem: map %d pages: %w", pages, err)
	}
	return &Memory{data: data, pages: pages, release: release}, nil
}

// Close unmaps the RAM. Further access panics.
func (m *Memory) Close() error {
	if m.data == nil {
		return nil
	}
	m.data = nil
	return m.release()
}

// Pages returns the amount of RAM in pages (init_ram_pages).
func (m *Memory) Pages() int { return m.pages }

// Size returns the amount of RAM in bytes.
func (m *Memory) Size() int { return m.pages * format.PageSize }

// Base returns the kernel virtual address of physical address 0.
func (m *Memory) Base() Addr { return Addr(format.PhysBase) }

// End returns the kernel virtual address one past the last byte of RAM.
func (m *Memory) End() Addr { return Ptov(uint32(m.Size())) }

// Ptov returns the kernel virtual address that maps physical address pa.
func Ptov(pa uint32) Addr {
	return Addr(pa + format.PhysBase)
}

// Vtop returns the physical address mapped at kernel virtual address va.
func Vtop(va Addr) uint32 {
	return uint32(va) - format.PhysBase
}

// Contains reports whether [va, va+n) lies entirely in RAM.
func (m *Memory) Contains(va Addr, n int) bool {
	_, err := m.span(va, n)
	return err == nil
}

func (m *Memory) span(va Addr, n int) (int, error) {
	if m.data == nil {
		return 0, ErrClosed
	}
	if va < m.Base() {
		return 0, fmt.Errorf("%w: %#x below PHYS_BASE", ErrOutOfRange, uint32(va))
	}
	off := int(Vtop(va))
	if _, err := buf.CheckSpan(len(m.data), off, n, 1); err != nil {
		return 0, fmt.Errorf("%w: %#x+%d: %v", ErrOutOfRange, uint32(va), n, err)
	}
	return off, nil
}

// Bytes returns the n bytes of RAM starting at va. The slice aliases RAM.
// It panics when the range is not backed by RAM: the caller has already
// validated the address, so a failure here is a kernel bug.
func (m *Memory) Bytes(va Addr, n int) []byte {
	off, err := m.span(va, n)
	if err != nil {
		panic(err)
	}
	return m.data[off : off+n : off+n]
}

// Page returns the page containing va.
func (m *Memory) Page(va Addr) []byte {
	return m.Bytes(Addr(format.PageRoundDown(uint32(va))), format.PageSize)
}

// Fill sets n bytes at va to b.
func (m *Memory) Fill(va Addr, n int, b byte) {
	dst := m.Bytes(va, n)
	if b == 0 {
		clear(dst)
		return
	}
	for i := range dst {
		dst[i] = b
	}
}

// Zero clears n bytes at va.
func (m *Memory) Zero(va Addr, n int) {
	m.Fill(va, n, 0)
}

// Copy copies n bytes from src to dst. The ranges may overlap.
func (m *Memory) Copy(dst, src Addr, n int) {
	copy(m.Bytes(dst, n), m.Bytes(src, n))
}

// U32 reads the little-endian word at va.
func (m *Memory) U32(va Addr) uint32 {
	return buf.U32LE(m.Bytes(va, 4))
}

// PutU32 writes a little-endian word at va.
func (m *Memory) PutU32(va Addr, v uint32) {
	buf.PutU32LE(m.Bytes(va, 4), v)
}
