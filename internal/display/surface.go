// Package display implements the indexed-colour surface that finished depth
// frames are published to.
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/bmp"
)

var ErrSizeMismatch = errors.New("surface size mismatch")

// Snapshot is a copy of the surface taken at one publication.
type Snapshot struct {
	Seq    uint64
	Width  int
	Height int
	Pixels []byte
}

// Surface is a paletted image sized to the depth stream. The palette is set
// once at creation; the size changes only through Resize.
type Surface struct {
	mu          sync.RWMutex
	img         *image.Paletted
	seq         uint64
	subscribers []func(seq uint64)
}

func NewSurface(width, height int, p color.Palette) (*Surface, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	if len(p) == 0 || len(p) > 256 {
		return nil, fmt.Errorf("invalid palette size %d", len(p))
	}
	pal := make(color.Palette, len(p))
	copy(pal, p)
	return &Surface{
		img: image.NewPaletted(image.Rect(0, 0, width, height), pal),
	}, nil
}

func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Publish replaces the whole image with index.
func (s *Surface) Publish(index []byte, width, height int) error {
	s.mu.Lock()
	b := s.img.Bounds()
	if width != b.Dx() || height != b.Dy() || len(index) != width*height {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %dx%d (%d bytes), surface %dx%d", ErrSizeMismatch, width, height, len(index), b.Dx(), b.Dy())
	}
	copy(s.img.Pix, index)
	s.seq++
	seq := s.seq
	subscribers := s.subscribers
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(seq)
	}
	return nil
}

// Subscribe registers fn to run after every publication. fn must not block.
func (s *Surface) Subscribe(fn func(seq uint64)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers[:len(s.subscribers):len(s.subscribers)], fn)
	s.mu.Unlock()
}

// Resize reallocates the image and clears it.
func (s *Surface) Resize(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = image.NewPaletted(image.Rect(0, 0, width, height), s.img.Palette)
	return nil
}

func (s *Surface) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Snapshot copies the current image. It reports false before the first
// publication.
func (s *Surface) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.seq == 0 {
		return Snapshot{}, false
	}
	b := s.img.Bounds()
	pix := make([]byte, len(s.img.Pix))
	copy(pix, s.img.Pix)
	return Snapshot{Seq: s.seq, Width: b.Dx(), Height: b.Dy(), Pixels: pix}, true
}

// Image returns a copy of the current image.
func (s *Surface) Image() *image.Paletted {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := image.NewPaletted(s.img.Bounds(), s.img.Palette)
	copy(out.Pix, s.img.Pix)
	return out
}

// EncodeBMP writes the image as an 8-bit paletted BMP.
func (s *Surface) EncodeBMP(w io.Writer) error {
	return bmp.Encode(w, s.Image())
}

func (s *Surface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Image())
}
