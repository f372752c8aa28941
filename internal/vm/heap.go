package vm

import (
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
)

// header packs an object's bookkeeping into one word:
//
//	bits 31..30  mark
//	bits 29..22  tag
//	bits 21..0   field count
type header uint32

const (
	countBits = 22
	tagBits   = 8
	countMask = 1<<countBits - 1
	tagMask   = 1<<tagBits - 1
	markShift = countBits + tagBits
)

const (
	markWhite uint32 = 0
	markBlack uint32 = 1
	markFreed uint32 = 2
)

func makeHeader(mark uint32, tag Kind, count int) header {
	return header(mark<<markShift | uint32(tag)<<countBits | uint32(count)&countMask)
}

func (h header) mark() uint32 { return uint32(h) >> markShift }
func (h header) tag() Kind    { return Kind(uint32(h) >> countBits & tagMask) }
func (h header) count() int   { return int(uint32(h) & countMask) }

// Object is a heap cell: a header plus a fixed number of value slots.
type Object struct {
	hdr    header
	next   *Object
	Fields []Value
}

// Tag returns the object's runtime kind.
func (o *Object) Tag() Kind { return o.hdr.tag() }

// SetTag retags a freshly allocated object.
func (o *Object) SetTag(k Kind) {
	o.hdr = makeHeader(o.hdr.mark(), k, o.hdr.count())
}

// Len returns the number of slots.
func (o *Object) Len() int { return o.hdr.count() }

// HeapStats summarises allocator activity.
type HeapStats struct {
	Live        int
	Allocated   uint64
	Freed       uint64
	Collections int
}

// Heap owns every object allocated by one VM. Objects are threaded on a
// singly linked list so that DestroyAll and the sweep phase can reach them.
type Heap struct {
	objects *Object
	stats   HeapStats
}

func NewHeap() *Heap {
	return &Heap{}
}

// Allocate returns a zeroed object with n undefined slots and tag undefined.
func (h *Heap) Allocate(n int) *Object {
	if n < 0 || n > config.MaxObjectSlots {
		panic(diagnostics.Newf(diagnostics.FaultCapacity, "allocate", diagnostics.ErrObjectTooLarge,
			"%d slots, limit %d", n, config.MaxObjectSlots))
	}
	o := &Object{
		hdr:    makeHeader(markWhite, KindUndefined, n),
		next:   h.objects,
		Fields: make([]Value, n),
	}
	h.objects = o
	h.stats.Live++
	h.stats.Allocated++
	return o
}

// DestroyAll releases every object. Values referring to them must not be
// used afterwards.
func (h *Heap) DestroyAll() {
	for o := h.objects; o != nil; {
		next := o.next
		release(o)
		o = next
	}
	h.stats.Freed += uint64(h.stats.Live)
	h.objects = nil
	h.stats.Live = 0
}

func (h *Heap) Live() int { return h.stats.Live }

func (h *Heap) Stats() HeapStats { return h.stats }

// Collect marks everything reachable from the values roots yields and
// frees the rest. It returns the number of objects freed.
func (h *Heap) Collect(roots func(mark func(Value))) int {
	var work []*Object
	grey := func(v Value) {
		o := v.obj
		if o == nil || o.hdr.mark() != markWhite {
			return
		}
		o.hdr = makeHeader(markBlack, o.hdr.tag(), o.hdr.count())
		work = append(work, o)
	}
	roots(grey)
	for len(work) > 0 {
		o := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range o.Fields {
			grey(f)
		}
	}

	freed := 0
	link := &h.objects
	for o := *link; o != nil; o = *link {
		if o.hdr.mark() == markBlack {
			o.hdr = makeHeader(markWhite, o.hdr.tag(), o.hdr.count())
			link = &o.next
			continue
		}
		*link = o.next
		release(o)
		freed++
	}
	h.stats.Live -= freed
	h.stats.Freed += uint64(freed)
	h.stats.Collections++
	return freed
}

// release poisons a dead object so a dangling reference reads as undefined.
func release(o *Object) {
	o.hdr = makeHeader(markFreed, KindUndefined, 0)
	o.Fields = nil
	o.next = nil
}
