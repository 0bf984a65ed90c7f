package main

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	"github.com/outofforest/scm/types"
)

func newSynthCommand() *cobra.Command {
	var (
		out    string
		depth  uint64
		format types.Format
		bands  float32
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generates synthetic dataset with graticule pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd.Context(), out, format, depth, func(dir mgl32.Vec3, values []float32) {
				lon, lat := lonLat(dir)
				for i := range values {
					switch i {
					case 0:
						values[i] = 0.5 + 0.5*math32.Sin(bands*lon)*math32.Cos(bands*lat)
					case 1:
						values[i] = lat/math32.Pi + 0.5
					case 2:
						values[i] = lon/(2*math32.Pi) + 0.5
					default:
						values[i] = 1
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "synth.scm", "Path of the dataset file")
	cmd.Flags().Uint64Var(&depth, "depth", 3, "Depth of the pyramid")
	cmd.Flags().Float32Var(&bands, "bands", 8, "Number of pattern bands per radian")
	addFormatFlags(cmd, &format)
	return cmd
}

func addFormatFlags(cmd *cobra.Command, format *types.Format) {
	cmd.Flags().Uint32Var(&format.Width, "width", 256, "Width of the page")
	cmd.Flags().Uint32Var(&format.Height, "height", 256, "Height of the page")
	cmd.Flags().Uint32Var(&format.Channels, "channels", 3, "Number of channels")
	cmd.Flags().Uint32Var(&format.Depth, "bits", 8, "Bits per sample: 8, 16 or 32")
}
