package main

import (
	"image"
	_ "image/jpeg" // Registers JPEG decoder.
	_ "image/png"  // Registers PNG decoder.
	"os"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp" // Registers BMP decoder.
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Registers TIFF decoder.
	_ "golang.org/x/image/webp" // Registers WebP decoder.
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/scm/types"
)

func newPackCommand() *cobra.Command {
	var (
		in     string
		out    string
		depth  uint64
		format types.Format
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Converts equirectangular image into dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(in)
			if err != nil {
				return err
			}
			logger.Get(cmd.Context()).Info("Image loaded", zap.String("path", in),
				zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))

			return build(cmd.Context(), out, format, depth, newEquirect(img).sample)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Path of the equirectangular image")
	cmd.Flags().StringVar(&out, "out", "image.scm", "Path of the dataset file")
	cmd.Flags().Uint64Var(&depth, "depth", 3, "Depth of the pyramid")
	addFormatFlags(cmd, &format)
	lo.Must0(cmd.MarkFlagRequired("in"))
	return cmd
}

func loadImage(path string) (*image.RGBA64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s failed", path)
	}

	bounds := src.Bounds()
	img := image.NewRGBA64(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(img, img.Bounds(), src, bounds.Min, draw.Src)
	return img, nil
}

func newEquirect(img *image.RGBA64) equirect {
	return equirect{
		img:    img,
		width:  img.Bounds().Dx(),
		height: img.Bounds().Dy(),
	}
}

// equirect samples equirectangular image. Longitude grows to the right, latitude up.
type equirect struct {
	img           *image.RGBA64
	width, height int
}

func (e equirect) sample(dir mgl32.Vec3, values []float32) {
	lon, lat := lonLat(dir)
	u := (lon/math32.Pi+1)/2*float32(e.width) - 0.5
	v := (0.5-lat/math32.Pi)*float32(e.height) - 0.5

	u0, v0 := math32.Floor(u), math32.Floor(v)
	fu, fv := u-u0, v-v0

	var c [4]float32
	for _, p := range [4]struct {
		du, dv int
		w      float32
	}{
		{0, 0, (1 - fu) * (1 - fv)},
		{1, 0, fu * (1 - fv)},
		{0, 1, (1 - fu) * fv},
		{1, 1, fu * fv},
	} {
		x := (int(u0) + p.du + e.width) % e.width
		y := min(max(int(v0)+p.dv, 0), e.height-1)
		px := e.img.RGBA64At(x, y)
		c[0] += p.w * float32(px.R) / 0xffff
		c[1] += p.w * float32(px.G) / 0xffff
		c[2] += p.w * float32(px.B) / 0xffff
		c[3] += p.w * float32(px.A) / 0xffff
	}

	switch len(values) {
	case 1:
		values[0] = luminance(c)
	case 2:
		values[0] = luminance(c)
		values[1] = c[3]
	default:
		copy(values, c[:])
	}
}

func luminance(c [4]float32) float32 {
	return 0.299*c[0] + 0.587*c[1] + 0.114*c[2]
}
