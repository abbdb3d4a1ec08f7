package pipeline

import (
	"sync"
	"sync/atomic"

	"depthview-go/internal/sensor"
)

// Mailbox is a single-slot buffer between the sensor notification stream and
// the frame worker. A newer notification replaces an unconsumed one.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	slot   sensor.Handle
	closed bool
	drops  atomic.Uint64
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Offer stores h, replacing any unconsumed handle. It never blocks.
func (m *Mailbox) Offer(h sensor.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.slot != nil {
		m.drops.Add(1)
	}
	m.slot = h
	m.cond.Signal()
}

// Next blocks until a handle is available. It returns false once the
// mailbox is closed and empty.
func (m *Mailbox) Next() (sensor.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.slot == nil && !m.closed {
		m.cond.Wait()
	}
	if m.slot == nil {
		return nil, false
	}
	h := m.slot
	m.slot = nil
	return h, true
}

// Close stops further offers. A handle already waiting is still delivered.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}
