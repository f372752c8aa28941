package vm

import (
	"github.com/google/uuid"
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
)

// Handle is an embedder's reference to a heap value. It stays valid until the
// frame it was added to is popped; the value it names is a GC root until then.
type Handle struct {
	owner uuid.UUID
	frame int
	slot  int
	gen   uint64
}

// Owner returns the identity of the VM that issued h.
func (h Handle) Owner() uuid.UUID { return h.owner }

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h.gen == 0 }

type handleFrame struct {
	gen   uint64
	n     int
	slots [config.HandlesPerFrame]Value
}

// HandleStack is a stack of fixed-size handle frames.
type HandleStack struct {
	owner   uuid.UUID
	frames  []handleFrame
	nextGen uint64
}

func NewHandleStack(owner uuid.UUID) *HandleStack {
	return &HandleStack{owner: owner, nextGen: 1}
}

// Depth returns the number of open frames.
func (s *HandleStack) Depth() int { return len(s.frames) }

func (s *HandleStack) PushFrame() error {
	if len(s.frames) >= config.MaxHandleFrames {
		return diagnostics.Newf(diagnostics.FaultCapacity, "push frame", diagnostics.ErrHandleStackFull,
			"limit %d frames", config.MaxHandleFrames)
	}
	s.frames = append(s.frames, handleFrame{gen: s.nextGen})
	s.nextGen++
	return nil
}

// PopFrame drops the innermost frame, invalidating its handles.
func (s *HandleStack) PopFrame() error {
	if len(s.frames) == 0 {
		return diagnostics.New(diagnostics.FaultUsage, "pop frame", diagnostics.ErrNoHandleFrame)
	}
	s.frames[len(s.frames)-1] = handleFrame{}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// Add roots v in the innermost frame.
func (s *HandleStack) Add(v Value) (Handle, error) {
	if !v.kind.Public() {
		return Handle{}, diagnostics.Newf(diagnostics.FaultInternal, "add handle", diagnostics.ErrInternalKind,
			"%s value", v.kind)
	}
	if len(s.frames) == 0 {
		return Handle{}, diagnostics.New(diagnostics.FaultUsage, "add handle", diagnostics.ErrNoHandleFrame)
	}
	idx := len(s.frames) - 1
	f := &s.frames[idx]
	if f.n >= config.HandlesPerFrame {
		return Handle{}, diagnostics.Newf(diagnostics.FaultCapacity, "add handle", diagnostics.ErrHandleFrameFull,
			"limit %d handles", config.HandlesPerFrame)
	}
	f.slots[f.n] = v
	h := Handle{owner: s.owner, frame: idx, slot: f.n, gen: f.gen}
	f.n++
	return h, nil
}

// Get resolves h, failing if it came from another VM or its frame is gone.
func (s *HandleStack) Get(h Handle) (Value, error) {
	if h.owner != s.owner {
		return Value{}, diagnostics.New(diagnostics.FaultUsage, "get handle", diagnostics.ErrForeignHandle)
	}
	if h.frame >= len(s.frames) || s.frames[h.frame].gen != h.gen || h.slot >= s.frames[h.frame].n {
		return Value{}, diagnostics.New(diagnostics.FaultUsage, "get handle", diagnostics.ErrStaleHandle)
	}
	return s.frames[h.frame].slots[h.slot], nil
}

func (s *HandleStack) each(fn func(Value)) {
	for i := range s.frames {
		f := &s.frames[i]
		for j := 0; j < f.n; j++ {
			fn(f.slots[j])
		}
	}
}
