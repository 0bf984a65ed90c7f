package main

import (
	"context"
	"encoding/binary"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/face"
	"github.com/outofforest/scm/types"
)

// sampler stores values of the channels seen in the direction, normalized to [0, 1].
type sampler func(dir mgl32.Vec3, values []float32)

// build writes dataset containing all the pages down to depth.
func build(ctx context.Context, path string, format types.Format, depth uint64, sample sampler) (retErr error) {
	if depth > types.MaxDepth {
		return errors.Errorf("depth %d exceeds maximum %d", depth, types.MaxDepth)
	}

	w, err := dataset.Create(path, format)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = w.Close()
			_ = os.Remove(path)
		}
	}()

	log := logger.Get(ctx)
	page := make([]byte, format.PageSize())
	values := make([]float32, format.Channels)
	for level := range depth + 1 {
		for id := face.LevelStart(level); id < face.LevelStart(level+1); id++ {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			fillPage(page, format, id, sample, values)
			if err := w.AddPage(id, page); err != nil {
				return err
			}
		}
		log.Info("Level written", zap.Uint64("level", level), zap.Uint64("pages", face.LevelSize(level)))
	}

	return w.Close()
}

// fillPage samples pixel centers of the node's page.
func fillPage(page []byte, format types.Format, id types.NodeID, sample sampler, values []float32) {
	f := face.Face(id)
	x0, y0, x1, y1 := face.Extent(id)
	sampleSize := format.SampleSize()

	var offset uint64
	for row := range format.Height {
		y := y0 + (float32(row)+0.5)/float32(format.Height)*(y1-y0)
		for col := range format.Width {
			x := x0 + (float32(col)+0.5)/float32(format.Width)*(x1-x0)
			sample(face.Direction(f, x, y), values)
			for _, v := range values {
				encode(page[offset:offset+sampleSize], format.Depth, v)
				offset += sampleSize
			}
		}
	}
}

func encode(b []byte, depth uint32, v float32) {
	v = math32.Max(0, math32.Min(1, v))
	switch depth {
	case 8:
		b[0] = uint8(v*math.MaxUint8 + 0.5)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(v*math.MaxUint16+0.5))
	default:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	}
}

// lonLat returns longitude in [-π, π] and latitude in [-π/2, π/2] of the direction. Y axis points north,
// longitude 0 is at -Z.
func lonLat(dir mgl32.Vec3) (float32, float32) {
	return math32.Atan2(dir[0], -dir[2]), math32.Asin(math32.Max(-1, math32.Min(1, dir[1])))
}
