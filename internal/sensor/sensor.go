// Package sensor defines the contract between depth sources and the frame
// pipeline.
//
// A Source delivers one Handle per sensor frame. A Handle may be acquired at
// most once, and only while the sensor still holds the frame. The samples of
// an acquired Frame are only reachable inside Access; the slice passed to the
// callback must not be retained after it returns, because the source may reuse
// or free the memory once the frame is released.
package sensor

import (
	"context"
	"errors"

	"depthview-go/internal/types"
)

var (
	ErrFrameExpired  = errors.New("sensor frame expired")
	ErrFrameReleased = errors.New("sensor frame released")
	ErrSourceClosed  = errors.New("sensor source closed")
)

type Source interface {
	// Open starts the stream and returns its fixed geometry.
	Open(ctx context.Context) (types.FrameGeometry, error)
	// Frames carries one notification per sensor frame. It is closed when
	// the source stops.
	Frames() <-chan Handle
	// Availability reports sensor availability changes.
	Availability() <-chan bool
	Close() error
}

type Handle interface {
	Acquire() (Frame, error)
}

type Frame interface {
	Meta() types.FrameMeta
	Access(fn func(raw []byte)) error
	Release()
}
