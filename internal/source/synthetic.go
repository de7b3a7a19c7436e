package source

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"
)

// Synthetic renders a moving gaussian spot over a gradient with sensor-like
// noise. It never fails and needs no hardware.
type Synthetic struct {
	mu     sync.Mutex
	width  int
	height int
	frame  int
	rng    *rand.Rand
	base   []float64
}

func NewSynthetic(width, height int) *Synthetic {
	s := &Synthetic{
		width:  width,
		height: height,
		rng:    rand.New(rand.NewSource(1)),
		base:   make([]float64, width*height),
	}
	for i := range s.base {
		x := float64(i % width)
		y := float64(i / width)
		s.base[i] = 40 + 60*(x/float64(width)) + 40*(y/float64(height))
	}
	return s
}

func (s *Synthetic) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	phase := float64(s.frame) / 60
	centerX := float64(s.width) * (0.5 + 0.35*math.Cos(phase))
	centerY := float64(s.height) * (0.5 + 0.35*math.Sin(phase))
	spread := float64(s.width*s.height) / 40

	for i, base := range s.base {
		x := i % s.width
		y := i / s.width
		dx := float64(x) - centerX
		dy := float64(y) - centerY
		spot := 180 * math.Exp(-(dx*dx+dy*dy)/spread)
		v := base + spot + s.rng.NormFloat64()*4
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		img.SetRGBA(x, y, color.RGBA{R: uint8(v), G: uint8(v * 0.8), B: uint8(255 - v/2), A: 255})
	}
	s.frame++
	return img, nil
}

func (s *Synthetic) Close() error {
	return nil
}
