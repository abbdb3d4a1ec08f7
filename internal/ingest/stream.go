package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"depthview-go/internal/sensor"
	"depthview-go/internal/types"
)

// RawRecorder receives every payload read from the wire.
type RawRecorder interface {
	Record(payload []byte) error
}

type Stats struct {
	Messages       uint64 `json:"messages"`
	Images         uint64 `json:"images"`
	DecodeFailures uint64 `json:"decode_failures"`
	Dropped        uint64 `json:"dropped"`
	DecodeNanos    uint64 `json:"decode_nanos"`
}

// stream turns decoded messages into sensor notifications. It is shared by
// the ZMQ and replay sources.
type stream struct {
	logger hclog.Logger
	// logEvery rate limits hot-path warnings to the first and every Nth.
	logEvery *rate.Sometimes
	recorder RawRecorder

	feed     sensor.Feed
	frames   chan sensor.Handle
	avail    chan bool
	geometry chan types.FrameGeometry

	startOnce sync.Once
	started   chan types.FrameGeometry

	mu     sync.Mutex
	opened types.FrameGeometry

	available   atomic.Bool
	lastMessage atomic.Int64

	messages       atomic.Uint64
	images         atomic.Uint64
	decodeFailures atomic.Uint64
	dropped        atomic.Uint64
	decodeNanos    atomic.Uint64
}

func newStream(logger hclog.Logger, logEvery int, recorder RawRecorder) *stream {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &stream{
		logger:   logger,
		logEvery: newSometimes(logEvery),
		recorder: recorder,
		frames:   make(chan sensor.Handle, 1),
		avail:    make(chan bool, 4),
		geometry: make(chan types.FrameGeometry, 1),
		started:  make(chan types.FrameGeometry, 1),
	}
}

func (s *stream) handle(ctx context.Context, payload []byte) {
	s.messages.Add(1)
	s.lastMessage.Store(time.Now().UnixNano())
	if s.recorder != nil {
		if err := s.recorder.Record(payload); err != nil {
			s.logEvery.Do(func() { s.logger.Warn("raw record failed", "error", err) })
		}
	}

	start := time.Now()
	msg, err := DecodeMessage(payload)
	s.decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		s.decodeFailures.Add(1)
		s.logEvery.Do(func() {
			s.logger.Warn("decode skipped message", "error", err, "failures", s.decodeFailures.Load())
		})
		return
	}

	if msg.Type != MessageStatus {
		s.setAvailable(ctx, true)
	}

	switch msg.Type {
	case MessageStart:
		s.logger.Info("stream start", "series_id", msg.SeriesID,
			"width", msg.Geometry.Width, "height", msg.Geometry.Height,
			"bytes_per_sample", msg.Geometry.BytesPerSample)
		s.markStarted(msg.Geometry)
		s.changeGeometry(msg.Geometry)
	case MessageEnd:
		s.logger.Info("stream end", "series_id", msg.SeriesID)
	case MessageStatus:
		s.setAvailable(ctx, msg.Available)
	case MessageImage:
		s.images.Add(1)
		s.notify(s.feed.Push(msg.Image.Meta, msg.Image.Data))
	}
}

func (s *stream) markStarted(g types.FrameGeometry) {
	s.startOnce.Do(func() {
		s.started <- g
	})
}

// changeGeometry publishes g when a start message moves an open stream to a
// new geometry. Only the latest unconsumed change is kept.
func (s *stream) changeGeometry(g types.FrameGeometry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened == (types.FrameGeometry{}) || s.opened == g {
		return
	}
	s.logger.Info("stream geometry changed",
		"from_width", s.opened.Width, "from_height", s.opened.Height,
		"width", g.Width, "height", g.Height)
	s.opened = g
	select {
	case <-s.geometry:
	default:
	}
	s.geometry <- g
}

// notify hands h to the consumer without waiting; a notification the
// consumer has not picked up yet is replaced.
func (s *stream) notify(h sensor.Handle) {
	select {
	case s.frames <- h:
		return
	default:
	}
	select {
	case <-s.frames:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.frames <- h:
	default:
		s.dropped.Add(1)
	}
}

func (s *stream) setAvailable(ctx context.Context, available bool) {
	if s.available.Swap(available) == available {
		return
	}
	select {
	case s.avail <- available:
	case <-ctx.Done():
	}
}

// watch marks the sensor unavailable after idle without messages.
func (s *stream) watch(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := s.lastMessage.Load()
			if last != 0 && time.Since(time.Unix(0, last)) > idle {
				s.setAvailable(ctx, false)
			}
		}
	}
}

// waitStart returns the geometry announced by the first start message, or
// fallback after timeout.
func (s *stream) waitStart(ctx context.Context, timeout time.Duration, fallback types.FrameGeometry) (types.FrameGeometry, error) {
	g, err := s.awaitStart(ctx, timeout, fallback)
	if err != nil {
		return types.FrameGeometry{}, err
	}
	s.mu.Lock()
	s.opened = g
	s.mu.Unlock()
	return g, nil
}

func (s *stream) awaitStart(ctx context.Context, timeout time.Duration, fallback types.FrameGeometry) (types.FrameGeometry, error) {
	if timeout <= 0 {
		return fallback, fallback.Validate()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case g := <-s.started:
		return g, nil
	case <-timer.C:
		s.logger.Warn("no start message, using configured geometry", "timeout", timeout,
			"width", fallback.Width, "height", fallback.Height)
		return fallback, fallback.Validate()
	case <-ctx.Done():
		return types.FrameGeometry{}, ctx.Err()
	}
}

func (s *stream) stats() Stats {
	return Stats{
		Messages:       s.messages.Load(),
		Images:         s.images.Load(),
		DecodeFailures: s.decodeFailures.Load(),
		Dropped:        s.dropped.Load(),
		DecodeNanos:    s.decodeNanos.Load(),
	}
}

func newSometimes(n int) *rate.Sometimes {
	if n < 1 {
		n = 1
	}
	return &rate.Sometimes{First: 1, Every: n}
}
