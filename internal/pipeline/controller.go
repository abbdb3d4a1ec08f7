// Package pipeline drives sensor frames through validation, depth mapping
// and publication.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"depthview-go/internal/processing"
	"depthview-go/internal/sensor"
	"depthview-go/internal/types"
)

// Surface is the indexed-colour render target the controller publishes to.
type Surface interface {
	Size() (width, height int)
	Publish(index []byte, width, height int) error
	Resize(width, height int) error
}

// Observer is told the outcome of every frame.
type Observer interface {
	ObserveFrame(outcome Outcome, elapsed time.Duration)
}

type State int32

const (
	StateIdle State = iota
	StateAcquiring
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Outcome int

const (
	OutcomePublished Outcome = iota
	OutcomeAcquireFailed
	OutcomeRejected
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeAcquireFailed:
		return "acquire_failed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeBusy:
		return "busy"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// OverlapPolicy decides what HandleFrame does while another frame is in flight.
type OverlapPolicy int

const (
	// OverlapBlock waits for the in-flight frame to finish.
	OverlapBlock OverlapPolicy = iota
	// OverlapDrop discards the new notification.
	OverlapDrop
)

type Options struct {
	Policy   types.DepthPolicy
	Overlap  OverlapPolicy
	Observer Observer
}

type Stats struct {
	Received       uint64 `json:"received"`
	Published      uint64 `json:"published"`
	Rejected       uint64 `json:"rejected"`
	AcquireFailed  uint64 `json:"acquire_failed"`
	Busy           uint64 `json:"busy"`
	MailboxDropped uint64 `json:"mailbox_dropped"`
}

type Controller struct {
	// mu is held for the whole of a frame and for Reconfigure. geometry is
	// written under mu but read without it.
	mu       sync.Mutex
	geometry atomic.Pointer[types.FrameGeometry]
	index    *processing.IndexBuffer
	surface  Surface
	policy   types.DepthPolicy
	overlap  OverlapPolicy
	observer Observer
	mailbox  *Mailbox

	state         atomic.Int32
	received      atomic.Uint64
	published     atomic.Uint64
	rejected      atomic.Uint64
	acquireFailed atomic.Uint64
	busy          atomic.Uint64
}

func NewController(g types.FrameGeometry, surface Surface, opts Options) (*Controller, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, fmt.Errorf("nil surface")
	}
	policy, err := types.ParseDepthPolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	c := &Controller{
		index:    processing.NewIndexBuffer(g),
		surface:  surface,
		policy:   policy,
		overlap:  opts.Overlap,
		observer: opts.Observer,
		mailbox:  NewMailbox(),
	}
	c.geometry.Store(&g)
	return c, nil
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) Geometry() types.FrameGeometry {
	return *c.geometry.Load()
}

func (c *Controller) Policy() types.DepthPolicy {
	return c.policy
}

// Reconfigure switches to a new stream geometry between frames. The surface
// is resized to match and the carried index image starts over empty.
func (c *Controller) Reconfigure(g types.FrameGeometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if *c.geometry.Load() == g {
		return nil
	}
	if err := c.surface.Resize(g.Width, g.Height); err != nil {
		return fmt.Errorf("resize surface: %w", err)
	}
	if !c.index.Resize(g) {
		c.index.Reset()
	}
	c.geometry.Store(&g)
	return nil
}

func (c *Controller) Stats() Stats {
	return Stats{
		Received:       c.received.Load(),
		Published:      c.published.Load(),
		Rejected:       c.rejected.Load(),
		AcquireFailed:  c.acquireFailed.Load(),
		Busy:           c.busy.Load(),
		MailboxDropped: c.mailbox.Drops(),
	}
}

// HandleFrame runs one sensor notification to completion.
func (c *Controller) HandleFrame(h sensor.Handle) Outcome {
	c.received.Add(1)
	if c.overlap == OverlapDrop {
		if !c.mu.TryLock() {
			c.busy.Add(1)
			c.observe(OutcomeBusy, 0)
			return OutcomeBusy
		}
	} else {
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	start := time.Now()
	outcome := c.process(h)
	c.state.Store(int32(StateIdle))

	switch outcome {
	case OutcomePublished:
		c.published.Add(1)
	case OutcomeRejected:
		c.rejected.Add(1)
	case OutcomeAcquireFailed:
		c.acquireFailed.Add(1)
	}
	c.observe(outcome, time.Since(start))
	return outcome
}

func (c *Controller) process(h sensor.Handle) Outcome {
	c.state.Store(int32(StateAcquiring))
	if h == nil {
		return OutcomeAcquireFailed
	}
	frame, err := h.Acquire()
	if err != nil || frame == nil {
		return OutcomeAcquireFailed
	}

	c.state.Store(int32(StateProcessing))
	g := *c.geometry.Load()
	window := c.policy.Window(frame.Meta())
	width, height := c.surface.Size()
	mapped, err := c.mapFrame(frame, g, window, width, height)
	if err != nil {
		return OutcomeAcquireFailed
	}
	if !mapped {
		return OutcomeRejected
	}
	if err := c.surface.Publish(c.index.Pixels(), g.Width, g.Height); err != nil {
		return OutcomeRejected
	}
	return OutcomePublished
}

// mapFrame holds the sensor buffer only for the duration of the mapping.
func (c *Controller) mapFrame(frame sensor.Frame, g types.FrameGeometry, window types.ReliabilityWindow, width, height int) (bool, error) {
	defer frame.Release()
	mapped := false
	err := frame.Access(func(raw []byte) {
		if !processing.Validate(len(raw), g, width, height) {
			return
		}
		processing.MapDepth(raw, window, g, c.index.Pixels())
		mapped = true
	})
	return mapped, err
}

func (c *Controller) observe(outcome Outcome, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveFrame(outcome, elapsed)
	}
}

// Run consumes notifications until ctx is done or the channel closes. At
// most one notification waits while a frame is processed; older waiting
// notifications are dropped. Run is called once per controller.
func (c *Controller) Run(ctx context.Context, notifications <-chan sensor.Handle) error {
	go func() {
		defer c.mailbox.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case h, ok := <-notifications:
				if !ok {
					return
				}
				c.mailbox.Offer(h)
			}
		}
	}()

	for {
		h, ok := c.mailbox.Next()
		if !ok {
			break
		}
		c.HandleFrame(h)
	}
	return ctx.Err()
}
