package sensor

import (
	"sync"
	"sync/atomic"

	"depthview-go/internal/types"
)

// Feed turns raw sample buffers into frame handles. Only the most recently
// pushed frame can be acquired; older handles report ErrFrameExpired.
type Feed struct {
	seq atomic.Uint64
}

// Push wraps raw as the newest frame. meta.Seq is overwritten with the feed
// sequence. The feed takes ownership of raw.
func (f *Feed) Push(meta types.FrameMeta, raw []byte) Handle {
	meta.Seq = f.seq.Add(1)
	return &handle{
		feed:  f,
		frame: &frame{meta: meta, raw: raw},
	}
}

// Latest returns the sequence number of the newest pushed frame.
func (f *Feed) Latest() uint64 {
	return f.seq.Load()
}

type handle struct {
	feed     *Feed
	acquired atomic.Bool
	frame    *frame
}

func (h *handle) Acquire() (Frame, error) {
	if h.feed.Latest() != h.frame.meta.Seq {
		return nil, ErrFrameExpired
	}
	if !h.acquired.CompareAndSwap(false, true) {
		return nil, ErrFrameExpired
	}
	return h.frame, nil
}

type frame struct {
	mu       sync.Mutex
	meta     types.FrameMeta
	raw      []byte
	released bool
}

func (f *frame) Meta() types.FrameMeta {
	return f.meta
}

func (f *frame) Access(fn func(raw []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return ErrFrameReleased
	}
	fn(f.raw)
	return nil
}

func (f *frame) Release() {
	f.mu.Lock()
	f.released = true
	f.raw = nil
	f.mu.Unlock()
}
