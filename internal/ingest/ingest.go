package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pebbe/zmq4"

	"depthview-go/internal/sensor"
	"depthview-go/internal/types"
)

const recvTimeout = 250 * time.Millisecond

type Options struct {
	Endpoint string
	// Geometry is used when no start message arrives within StartTimeout.
	Geometry     types.FrameGeometry
	StartTimeout time.Duration
	IdleTimeout  time.Duration
	LogEvery     int
	Recorder     RawRecorder
	Logger       hclog.Logger
}

// Source reads depth frames from a ZMQ PULL socket.
type Source struct {
	opts   Options
	stream *stream

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ sensor.Source = (*Source)(nil)

func NewSource(opts Options) *Source {
	return &Source{
		opts:   opts,
		stream: newStream(opts.Logger, opts.LogEvery, opts.Recorder),
	}
}

func (s *Source) Open(ctx context.Context) (types.FrameGeometry, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return types.FrameGeometry{}, errors.New("source already open")
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		s.mu.Unlock()
		return types.FrameGeometry{}, err
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		s.mu.Unlock()
		return types.FrameGeometry{}, err
	}
	if err := socket.Connect(s.opts.Endpoint); err != nil {
		_ = socket.Close()
		s.mu.Unlock()
		return types.FrameGeometry{}, fmt.Errorf("connect %s: %w", s.opts.Endpoint, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.receive(runCtx, socket)
	go s.stream.watch(runCtx, s.opts.IdleTimeout)

	g, err := s.stream.waitStart(ctx, s.opts.StartTimeout, s.opts.Geometry)
	if err != nil {
		_ = s.Close()
		return types.FrameGeometry{}, err
	}
	return g, nil
}

func (s *Source) receive(ctx context.Context, socket *zmq4.Socket) {
	defer close(s.done)
	defer close(s.stream.frames)
	defer socket.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			s.stream.logEvery.Do(func() { s.stream.logger.Warn("recv error", "error", err) })
			continue
		}
		s.stream.handle(ctx, msg)
	}
}

func (s *Source) Frames() <-chan sensor.Handle {
	return s.stream.frames
}

func (s *Source) Availability() <-chan bool {
	return s.stream.avail
}

// GeometryChanges reports new geometries announced after Open.
func (s *Source) GeometryChanges() <-chan types.FrameGeometry {
	return s.stream.geometry
}

func (s *Source) Stats() Stats {
	return s.stream.stats()
}

func (s *Source) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
