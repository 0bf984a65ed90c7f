package scm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/scm"
	"github.com/outofforest/scm/lru"
	"github.com/outofforest/scm/model"
	"github.com/outofforest/scm/render"
	"github.com/outofforest/scm/test"
	"github.com/outofforest/scm/types"
)

func newContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)
	return ctx
}

func runSystem(t *testing.T, config scm.Config, renderer render.Renderer) (*scm.System, context.Context) {
	ctx := newContext(t)

	s, deallocFunc, err := scm.New(ctx, config, renderer)
	require.NoError(t, err)
	t.Cleanup(deallocFunc)

	group := parallel.NewGroup(ctx)
	group.Spawn("system", parallel.Continue, s.Run)
	t.Cleanup(func() {
		s.Close()
		group.Exit(nil)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
	})

	return s, ctx
}

func testConfig() scm.Config {
	config := scm.DefaultConfig()
	config.Cache.Capacity = 64
	config.Cache.NeededDepth = 64
	config.Cache.LoadedDepth = 64
	config.Cache.Buffers = 64
	config.Cache.Format = test.Format
	config.Model.Threshold = 1e-3
	return config
}

func TestDefaultConfig(t *testing.T) {
	requireT := require.New(t)

	recorder := render.NewRecorder()
	s, deallocFunc, err := scm.New(newContext(t), scm.DefaultConfig(), recorder)
	requireT.NoError(err)
	defer deallocFunc()

	requireT.EqualValues(512, s.Cache().Capacity())
	requireT.Zero(s.Cache().Datasets())
}

func TestLoadConfig(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "scm.yaml")
	requireT.NoError(os.WriteFile(path, []byte(`
cache:
  capacity: 128
  workers: 2
  eviction: splay
  fill: 128
  format:
    width: 256
    height: 256
    channels: 1
    depth: 16
model:
  threshold: 256
  zoom: 2
  zoomDirection: [0, 1, 0]
datasets:
  color: [earth.scm]
  height: [relief.scm]
`), 0o600))

	config, err := scm.LoadConfig(path)
	requireT.NoError(err)

	expected := scm.DefaultConfig()
	expected.Cache.Capacity = 128
	expected.Cache.Workers = 2
	expected.Cache.Eviction = lru.PolicySplay
	expected.Cache.Fill = 128
	expected.Cache.Format = types.Format{Width: 256, Height: 256, Channels: 1, Depth: 16}
	expected.Model.Threshold = 256
	expected.Model.Zoom = 2
	expected.Model.ZoomDirection = [3]float32{0, 1, 0}
	expected.Datasets.Color = []string{"earth.scm"}
	expected.Datasets.Height = []string{"relief.scm"}
	requireT.Equal(expected, config)
}

func TestLoadConfigInvalid(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	_, err := scm.LoadConfig(filepath.Join(dir, "missing.yaml"))
	requireT.ErrorIs(err, os.ErrNotExist)

	path := filepath.Join(dir, "unknown.yaml")
	requireT.NoError(os.WriteFile(path, []byte("cache:\n  size: 10\n"), 0o600))
	_, err = scm.LoadConfig(path)
	requireT.Error(err)

	path = filepath.Join(dir, "direction.yaml")
	requireT.NoError(os.WriteFile(path, []byte("model:\n  zoomDirection: [1, 2]\n"), 0o600))
	_, err = scm.LoadConfig(path)
	requireT.Error(err)
}

func TestMissingDataset(t *testing.T) {
	config := testConfig()
	config.Datasets.Color = []string{filepath.Join(t.TempDir(), "missing.scm")}

	_, _, err := scm.New(newContext(t), config, render.NewRecorder())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestInvalidModelConfig(t *testing.T) {
	config := testConfig()
	config.Model.Threshold = 0

	recorder := render.NewRecorder()
	_, _, err := scm.New(newContext(t), config, recorder)
	require.Error(t, err)
	require.Zero(t, recorder.Arrays())
}

func TestFrames(t *testing.T) {
	requireT := require.New(t)

	config := testConfig()
	config.Cache.Fill = 0x40
	config.Model.Radius1 = 1.1
	config.Datasets.Color = []string{test.CreateDataset(t, test.Format, test.Pyramid(1))}
	config.Datasets.Height = []string{test.CreateDataset(t, test.Format, test.Pyramid(0))}

	recorder := render.NewRecorder()
	s, ctx := runSystem(t, config, recorder)
	views := []model.View{
		model.NewView(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, 90, 800, 800, 0.1, 100),
	}

	stats := s.Frame(views, 1)
	requireT.Equal(model.Stats{Drawn: 24, Refined: 6}, stats)
	for _, d := range recorder.Draws() {
		requireT.Equal([]types.Layer{types.FillLayer, types.FillLayer}, d.Layers)
	}
	requireT.Equal(test.Format.PageSize(), uint64(len(recorder.Pixels(s.Cache().TextureArray(), types.FillLayer))))
	requireT.Equal(byte(0x40), recorder.Pixels(s.Cache().TextureArray(), types.FillLayer)[0])

	requireT.NoError(s.Sync(ctx, 1))

	s.Frame(views, 2)
	for _, d := range recorder.Draws() {
		// Height dataset stores only the roots.
		requireT.NotEqual(types.FillLayer, d.Layers[0])
		requireT.Equal(types.FillLayer, d.Layers[1])
		requireT.Len(d.ParentLayers, 2)
		requireT.NotEqual(types.FillLayer, d.ParentLayers[0])
		requireT.NotEqual(types.FillLayer, d.ParentLayers[1])
		requireT.Equal(test.Samples(test.Format, d.Node), recorder.Pixels(s.Cache().TextureArray(), d.Layers[0]))
	}

	s.Flush()
	requireT.Zero(s.Cache().Stats().Resident)
	s.Frame(views, 3)
	for _, d := range recorder.Draws() {
		requireT.Equal(types.FillLayer, d.Layers[0])
	}
}
