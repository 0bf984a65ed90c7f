package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/face"
)

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <dataset>",
		Short: "Prints format and page statistics of the dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := dataset.Open(args[0])
			if err != nil {
				return err
			}

			format := index.Format()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:     %s\n", index.Path())
			fmt.Fprintf(out, "format:   %dx%d, %d channels, %d bits\n", format.Width, format.Height,
				format.Channels, format.Depth)
			fmt.Fprintf(out, "pages:    %d\n", index.Count())

			var levels []uint64
			minV, maxV := float32(1), float32(0)
			for e := range index.Entries() {
				level := face.Level(e.Node)
				for uint64(len(levels)) <= level {
					levels = append(levels, 0)
				}
				levels[level]++
				minV = min(minV, e.Min)
				maxV = max(maxV, e.Max)
			}
			if index.Count() > 0 {
				fmt.Fprintf(out, "bounds:   [%.4f, %.4f]\n", minV, maxV)
			}
			for level, n := range levels {
				fmt.Fprintf(out, "level %2d: %d of %d pages\n", level, n, face.LevelSize(uint64(level)))
			}
			return nil
		},
	}
}
