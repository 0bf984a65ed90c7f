package main

import (
	"context"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/scm"
	"github.com/outofforest/scm/cache"
	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/model"
	"github.com/outofforest/scm/render"
	"github.com/outofforest/scm/types"
)

type benchConfig struct {
	ConfigPath string
	Color      []string
	Height     []string
	Frames     uint64
	Sync       bool
	Distance   float32
	Fov        float32
}

func newBenchCommand() *cobra.Command {
	var config benchConfig

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Orbits camera around the sphere and reports cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := bench(cmd.Context(), config)
			return err
		},
	}

	cmd.Flags().StringVar(&config.ConfigPath, "config", "", "Path of YAML configuration")
	cmd.Flags().StringSliceVar(&config.Color, "color", nil, "Color datasets")
	cmd.Flags().StringSliceVar(&config.Height, "height", nil, "Height datasets")
	cmd.Flags().Uint64Var(&config.Frames, "frames", 600, "Number of frames")
	cmd.Flags().BoolVar(&config.Sync, "sync", false, "Wait for all requested pages after every frame")
	cmd.Flags().Float32Var(&config.Distance, "distance", 3, "Distance of the camera from the center of the sphere")
	cmd.Flags().Float32Var(&config.Fov, "fov", 60, "Vertical field of view in degrees")
	return cmd
}

type benchResult struct {
	Frames uint64
	Model  model.Stats
	Cache  cache.Stats
}

func bench(ctx context.Context, config benchConfig) (benchResult, error) {
	systemConfig := scm.DefaultConfig()
	if config.ConfigPath != "" {
		var err error
		systemConfig, err = scm.LoadConfig(config.ConfigPath)
		if err != nil {
			return benchResult{}, err
		}
	}
	systemConfig.Datasets.Color = append(systemConfig.Datasets.Color, config.Color...)
	systemConfig.Datasets.Height = append(systemConfig.Datasets.Height, config.Height...)
	if len(systemConfig.Datasets.Color) == 0 {
		return benchResult{}, errors.New("no color dataset")
	}

	// Page format follows the first dataset.
	index, err := dataset.Open(systemConfig.Datasets.Color[0])
	if err != nil {
		return benchResult{}, err
	}
	systemConfig.Cache.Format = index.Format()

	recorder := render.NewRecorder()
	s, deallocFunc, err := scm.New(ctx, systemConfig, recorder)
	if err != nil {
		return benchResult{}, err
	}
	defer deallocFunc()

	log := logger.Get(ctx)
	var result benchResult
	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("system", parallel.Continue, s.Run)
		spawn("frames", parallel.Continue, func(ctx context.Context) error {
			defer s.Close()

			start := time.Now()
			for frame := range types.Frame(config.Frames) {
				if err := ctx.Err(); err != nil {
					return errors.WithStack(err)
				}

				angle := 2 * math32.Pi * float32(frame) / float32(max(config.Frames, 1))
				eye := mgl32.Vec3{
					config.Distance * math32.Sin(angle),
					config.Distance / 3,
					config.Distance * math32.Cos(angle),
				}
				views := []model.View{
					model.NewView(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, config.Fov, 1920, 1080, 0.01,
						10*config.Distance),
				}

				stats := s.Frame(views, frame)
				recorder.Draws()
				result.Model.Drawn += stats.Drawn
				result.Model.Culled += stats.Culled
				result.Model.Skipped += stats.Skipped
				result.Model.Refined += stats.Refined
				result.Frames++

				if config.Sync {
					if err := s.Sync(ctx, frame); err != nil {
						return err
					}
				}
			}

			result.Cache = s.Cache().Stats()

			log.Info("Benchmark finished",
				zap.Uint64("frames", result.Frames),
				zap.Duration("duration", time.Since(start)),
				zap.Uint64("drawn", result.Model.Drawn),
				zap.Uint64("culled", result.Model.Culled),
				zap.Uint64("refined", result.Model.Refined),
				zap.Uint64("requests", result.Cache.Requests),
				zap.Uint64("uploads", result.Cache.Uploads),
				zap.Uint64("evictions", result.Cache.Evictions),
				zap.Uint64("deferrals", result.Cache.Deferrals),
				zap.Uint64("failed", result.Cache.Failed))
			return nil
		})
		return nil
	})
	return result, err
}
