package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"depthview-go/internal/output"
	"depthview-go/internal/sensor"
	"depthview-go/internal/types"
)

type ReplayOptions struct {
	Path string
	// Rate is the replay rate in messages per second.
	Rate         float64
	Loop         bool
	Geometry     types.FrameGeometry
	StartTimeout time.Duration
	LogEvery     int
	Logger       hclog.Logger
}

// ReplaySource feeds a recorded raw log through the same decoding path as
// the live source.
type ReplaySource struct {
	opts   ReplayOptions
	stream *stream

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ sensor.Source = (*ReplaySource)(nil)

func NewReplaySource(opts ReplayOptions) *ReplaySource {
	return &ReplaySource{
		opts:   opts,
		stream: newStream(opts.Logger, opts.LogEvery, nil),
	}
}

func (s *ReplaySource) Open(ctx context.Context) (types.FrameGeometry, error) {
	if s.opts.Rate <= 0 {
		return types.FrameGeometry{}, fmt.Errorf("invalid replay rate %v", s.opts.Rate)
	}
	payloads, err := readPayloads(s.opts.Path)
	if err != nil {
		return types.FrameGeometry{}, err
	}
	if len(payloads) == 0 {
		return types.FrameGeometry{}, fmt.Errorf("raw log %s has no records", s.opts.Path)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return types.FrameGeometry{}, errors.New("source already open")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.replay(runCtx, payloads)

	g, err := s.stream.waitStart(ctx, s.opts.StartTimeout, s.opts.Geometry)
	if err != nil {
		_ = s.Close()
		return types.FrameGeometry{}, err
	}
	return g, nil
}

func readPayloads(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw log: %w", err)
	}
	defer f.Close()
	reader, err := output.NewRawLogReader(f)
	if err != nil {
		return nil, err
	}
	var payloads [][]byte
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return payloads, nil
		}
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, rec.Payload)
	}
}

func (s *ReplaySource) replay(ctx context.Context, payloads [][]byte) {
	defer close(s.done)
	defer close(s.stream.frames)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opts.Rate))
	defer ticker.Stop()
	for {
		for _, payload := range payloads {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			s.stream.handle(ctx, payload)
		}
		if !s.opts.Loop {
			s.stream.setAvailable(ctx, false)
			return
		}
	}
}

func (s *ReplaySource) Frames() <-chan sensor.Handle {
	return s.stream.frames
}

func (s *ReplaySource) Availability() <-chan bool {
	return s.stream.avail
}

// GeometryChanges reports new geometries announced after Open.
func (s *ReplaySource) GeometryChanges() <-chan types.FrameGeometry {
	return s.stream.geometry
}

func (s *ReplaySource) Stats() Stats {
	return s.stream.stats()
}

func (s *ReplaySource) Close() error {
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
