package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"depthview-go/internal/sensor"
	"depthview-go/internal/types"
)

const (
	centreDepth = 950.0
	rimDepth    = 1150.0
	noiseSigma  = 4.0
)

type Options struct {
	Geometry types.FrameGeometry
	// Rate is the frame rate in frames per second.
	Rate        float64
	MinReliable uint16
	MaxReliable uint16
	Seed        int64
	Logger      hclog.Logger
}

// Source produces a synthetic depth bowl: samples rise from centreDepth at
// the centre towards rimDepth at the corners, a slowly moving ring drops
// out to zero and the far corners overflow past the reliable range.
type Source struct {
	opts   Options
	logger hclog.Logger

	feed   sensor.Feed
	frames chan sensor.Handle
	avail  chan bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ sensor.Source = (*Source)(nil)

func New(opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.MinReliable == 0 && opts.MaxReliable == 0 {
		opts.MinReliable, opts.MaxReliable = 500, 4500
	}
	return &Source{
		opts:   opts,
		logger: logger,
		frames: make(chan sensor.Handle, 1),
		avail:  make(chan bool, 1),
	}
}

func (s *Source) Open(ctx context.Context) (types.FrameGeometry, error) {
	g := s.opts.Geometry
	if err := g.Validate(); err != nil {
		return types.FrameGeometry{}, err
	}
	if g.BytesPerSample < 2 {
		return types.FrameGeometry{}, fmt.Errorf("simulator needs at least 2 bytes per sample, got %d", g.BytesPerSample)
	}
	if s.opts.Rate <= 0 {
		return types.FrameGeometry{}, fmt.Errorf("invalid simulator rate %v", s.opts.Rate)
	}
	if err := ctx.Err(); err != nil {
		return types.FrameGeometry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return types.FrameGeometry{}, errors.New("source already open")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	series := uuid.NewString()
	s.logger.Info("simulator start", "series_id", series, "width", g.Width, "height", g.Height, "rate", s.opts.Rate)
	s.avail <- true
	go s.run(runCtx, g)
	return g, nil
}

func (s *Source) run(ctx context.Context, g types.FrameGeometry) {
	defer close(s.done)
	defer close(s.frames)

	rng := rand.New(rand.NewSource(s.opts.Seed))
	base := bowl(g.Width, g.Height)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opts.Rate))
	defer ticker.Stop()

	frameNo := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		raw := render(base, g, frameNo, rng)
		meta := types.FrameMeta{
			MinReliable: s.opts.MinReliable,
			MaxReliable: s.opts.MaxReliable,
			MaxDepth:    math.MaxUint16,
		}
		h := s.feed.Push(meta, raw)
		select {
		case s.frames <- h:
		default:
			select {
			case <-s.frames:
			default:
			}
			s.frames <- h
		}
		frameNo++
	}
}

// bowl returns the noiseless depth of every pixel.
func bowl(w, h int) []float64 {
	out := make([]float64, w*h)
	cx, cy := float64(w-1)/2, float64(h-1)/2
	maxR := math.Hypot(cx, cy)
	if maxR == 0 {
		maxR = 1
	}
	for i := range out {
		dx := float64(i%w) - cx
		dy := float64(i/w) - cy
		r := math.Hypot(dx, dy) / maxR
		out[i] = centreDepth + (rimDepth-centreDepth)*r*r
	}
	return out
}

// render adds noise and the moving dropout ring to base. Samples wider than
// two bytes keep their upper bytes zero.
func render(base []float64, g types.FrameGeometry, frameNo int, rng *rand.Rand) []byte {
	raw := make([]byte, g.FrameBytes())
	cx, cy := float64(g.Width-1)/2, float64(g.Height-1)/2
	maxR := math.Hypot(cx, cy)
	if maxR == 0 {
		maxR = 1
	}
	ring := 0.2 + 0.6*float64(frameNo%60)/60
	for i, depth := range base {
		r := math.Hypot(float64(i%g.Width)-cx, float64(i/g.Width)-cy) / maxR
		v := depth + rng.NormFloat64()*noiseSigma
		if math.Abs(r-ring) < 0.02 {
			v = 0
		}
		v = math.Max(0, math.Min(v, math.MaxUint16))
		binary.LittleEndian.PutUint16(raw[i*g.BytesPerSample:], uint16(v))
	}
	return raw
}

func (s *Source) Frames() <-chan sensor.Handle {
	return s.frames
}

func (s *Source) Availability() <-chan bool {
	return s.avail
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
