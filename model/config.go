package model

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Config stores configuration of the walker.
type Config struct {
	// Threshold is the projected page size in pixels above which page is refined.
	Threshold float32

	// FadeFrames is the number of frames taken by the page to fade in after loading.
	FadeFrames uint64

	// Radius0 and Radius1 are radii of the sphere for the lowest and the highest normalized height sample.
	Radius0, Radius1 float32

	// Zoom magnifies the neighborhood of ZoomDirection. 1 means no magnification.
	Zoom          float32
	ZoomDirection mgl32.Vec3
}

// DefaultConfig is the default configuration of the walker.
var DefaultConfig = Config{
	Threshold:     512,
	FadeFrames:    8,
	Radius0:       1,
	Radius1:       1,
	Zoom:          1,
	ZoomDirection: mgl32.Vec3{0, 0, -1},
}

func (c Config) validate() error {
	switch {
	case c.Threshold <= 0:
		return errors.Errorf("threshold must be positive, got %f", c.Threshold)
	case c.Radius0 <= 0 || c.Radius1 < c.Radius0:
		return errors.Errorf("invalid radius range [%f, %f]", c.Radius0, c.Radius1)
	case c.Zoom <= 0:
		return errors.Errorf("zoom must be positive, got %f", c.Zoom)
	case c.Zoom != 1 && c.ZoomDirection.Len() == 0:
		return errors.New("zoom direction is required")
	}
	return nil
}
