package malloc

import (
	"github.com/joshuapare/kernkit/internal/physmem"
)

// Free-list link offsets inside a free block.
const (
	linkNext = 0
	linkPrev = 4
)

func (m *Allocator) next(b physmem.Addr) physmem.Addr {
	return physmem.Addr(m.mem.U32(b + linkNext))
}

func (m *Allocator) prev(b physmem.Addr) physmem.Addr {
	return physmem.Addr(m.mem.U32(b + linkPrev))
}

func (m *Allocator) setNext(b, to physmem.Addr) { m.mem.PutU32(b+linkNext, uint32(to)) }
func (m *Allocator) setPrev(b, to physmem.Addr) { m.mem.PutU32(b+linkPrev, uint32(to)) }

// pushFront links b at the head of d's free list.
func (m *Allocator) pushFront(d *descriptor, b physmem.Addr) {
	m.setPrev(b, physmem.Null)
	m.setNext(b, d.head)
	if d.head != physmem.Null {
		m.setPrev(d.head, b)
	} else {
		d.tail = b
	}
	d.head = b
	d.free++
}

// pushBack links b at the tail of d's free list.
func (m *Allocator) pushBack(d *descriptor, b physmem.Addr) {
	m.setNext(b, physmem.Null)
	m.setPrev(b, d.tail)
	if d.tail != physmem.Null {
		m.setNext(d.tail, b)
	} else {
		d.head = b
	}
	d.tail = b
	d.free++
}

// popFront unlinks and returns the head of d's free list, or Null.
func (m *Allocator) popFront(d *descriptor) physmem.Addr {
	b := d.head
	if b != physmem.Null {
		m.remove(d, b)
	}
	return b
}

// remove unlinks b from d's free list.
func (m *Allocator) remove(d *descriptor, b physmem.Addr) {
	next, prev := m.next(b), m.prev(b)
	if prev != physmem.Null {
		m.setNext(prev, next)
	} else {
		d.head = next
	}
	if next != physmem.Null {
		m.setPrev(next, prev)
	} else {
		d.tail = prev
	}
	d.free--
}
