package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/face"
	"github.com/outofforest/scm/lru"
	"github.com/outofforest/scm/render"
	"github.com/outofforest/scm/test"
	"github.com/outofforest/scm/types"
)

func config(capacity uint64) Config {
	return Config{
		Capacity:    capacity,
		Workers:     2,
		NeededDepth: 8,
		Format:      test.Format,
	}
}

func newCache(t *testing.T, config Config) (*Cache, context.Context, *render.Recorder) {
	recorder := render.NewRecorder()
	c, ctx, err := RunInTest(t, config, recorder)
	require.NoError(t, err)
	return c, ctx, recorder
}

func addDataset(t *testing.T, c *Cache, nodes []types.NodeID) types.DatasetIndex {
	d, err := c.AddFile(test.CreateDataset(t, test.Format, nodes))
	require.NoError(t, err)
	return d
}

// verify checks that page is never both resident and pending and no layer is assigned twice.
func verify(requireT *require.Assertions, c *Cache) {
	layers := map[types.Layer]types.Page{}
	for e := range c.loadedSet.Entries() {
		requireT.False(c.waiting.Contains(e.Page))
		requireT.NotEqual(types.FillLayer, e.Layer)
		requireT.LessOrEqual(uint64(e.Layer), c.Capacity())
		_, exists := layers[e.Layer]
		requireT.False(exists)
		layers[e.Layer] = e.Page
	}
	requireT.LessOrEqual(c.needed.Count(), c.waiting.Count())
}

func TestConfigValidation(t *testing.T) {
	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))

	invalid := []func(c *Config){
		func(c *Config) { c.Capacity = 0 },
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.NeededDepth = 0 },
		func(c *Config) { c.Buffers = c.NeededDepth + 1 },
		func(c *Config) { c.Buffers = 4; c.LoadedDepth = 3 },
		func(c *Config) { c.Format.Depth = 12 },
		func(c *Config) { c.Fill = []byte{1} },
		func(c *Config) { c.Eviction = "random" },
	}
	for _, modify := range invalid {
		cfg := config(4)
		modify(&cfg)
		_, _, err := New(ctx, cfg, render.NewRecorder())
		require.Error(t, err)
	}
}

func TestFillLayer(t *testing.T) {
	requireT := require.New(t)

	fill := make([]byte, test.Format.PageSize())
	for i := range fill {
		fill[i] = 0x80
	}
	cfg := config(4)
	cfg.Fill = fill

	c, _, recorder := newCache(t, cfg)
	requireT.Equal(types.FillLayer, c.FillLayer())
	requireT.EqualValues(4, c.Capacity())
	requireT.Equal(fill, recorder.Pixels(c.TextureArray(), c.FillLayer()))
	requireT.Equal(1, recorder.Arrays())
}

// Dataset with only the six roots.
func TestRootsOnly(t *testing.T) {
	requireT := require.New(t)

	c, _, recorder := newCache(t, config(8))
	roots := test.Pyramid(0)
	path := test.CreateDataset(t, test.Format, roots)
	index, err := dataset.Open(path)
	requireT.NoError(err)
	requireT.Equal(6, index.Count())

	d, err := c.AddFile(path)
	requireT.NoError(err)
	requireT.Equal(types.DatasetIndex(0), d)

	for _, n := range roots {
		layer, frame := c.GetPage(d, n, 1)
		requireT.Equal(types.FillLayer, layer)
		requireT.Equal(types.Frame(1), frame)
	}
	requireT.Eventually(func() bool {
		return c.loaded.Count() == uint64(len(roots))
	}, 5*time.Second, time.Millisecond)

	// Loaded pages are not visible before update.
	for _, n := range roots {
		layer, _ := c.GetPage(d, n, 2)
		requireT.Equal(types.FillLayer, layer)
		requireT.True(c.Pending(d, n))
	}

	requireT.EqualValues(len(roots), c.Update(3))
	verify(requireT, c)

	for _, n := range roots {
		layer, frame := c.GetPage(d, n, 4)
		requireT.NotEqual(types.FillLayer, layer)
		requireT.Equal(types.Frame(3), frame)
		requireT.Equal(test.Samples(test.Format, n), recorder.Pixels(c.TextureArray(), layer))
	}

	// Children are absent, so they are never requested.
	layer, _ := c.GetPage(d, face.Child(0, types.QuadrantNE), 5)
	requireT.Equal(types.FillLayer, layer)
	requireT.False(c.Pending(d, face.Child(0, types.QuadrantNE)))

	stats := c.Stats()
	requireT.EqualValues(len(roots), stats.Resident)
	requireT.EqualValues(len(roots), stats.Requests)
	requireT.EqualValues(len(roots), stats.Uploads)
	requireT.Zero(stats.Pending)
	requireT.Zero(stats.Evictions)
}

// Five pages loaded in five frames into cache of capacity four.
func TestMostRecentPagesStay(t *testing.T) {
	requireT := require.New(t)

	c, ctx, _ := newCache(t, config(4))
	nodes := test.Pyramid(1)[6:11]
	d := addDataset(t, c, nodes)

	for i, n := range nodes {
		frame := types.Frame(i + 1)
		c.GetPage(d, n, frame)
		requireT.NoError(c.Sync(ctx, frame))
		verify(requireT, c)
	}

	requireT.False(c.Resident(d, nodes[0]))
	for _, n := range nodes[1:] {
		requireT.True(c.Resident(d, n))
	}

	stats := c.Stats()
	requireT.EqualValues(4, stats.Resident)
	requireT.EqualValues(5, stats.Uploads)
	requireT.EqualValues(1, stats.Evictions)
}

func TestTouchedPagesStay(t *testing.T) {
	requireT := require.New(t)

	c, ctx, _ := newCache(t, config(4))
	nodes := test.Pyramid(1)
	d := addDataset(t, c, nodes)

	hot := nodes[:2]
	frame := types.Frame(1)
	for _, n := range hot {
		c.GetPage(d, n, frame)
	}
	requireT.NoError(c.Sync(ctx, frame))

	for _, n := range nodes[2:] {
		frame++
		for _, h := range hot {
			layer, _ := c.GetPage(d, h, frame)
			requireT.NotEqual(types.FillLayer, layer)
		}
		c.GetPage(d, n, frame)
		requireT.NoError(c.Sync(ctx, frame))
		verify(requireT, c)
	}
	requireT.EqualValues(len(nodes)-4, c.Stats().Evictions)
}

func TestMissingFile(t *testing.T) {
	requireT := require.New(t)

	c, _, _ := newCache(t, config(4))
	d, err := c.AddFile(filepath.Join(t.TempDir(), "missing.scm"))
	requireT.Error(err)
	requireT.Equal(types.InvalidDataset, d)
	requireT.Zero(c.Datasets())

	requireT.Panics(func() { c.GetPage(d, 0, 1) })
	requireT.Panics(func() { c.GetPage(0, 0, 1) })
	requireT.Panics(func() { c.Offset(1, 0) })
}

func TestFormatMismatch(t *testing.T) {
	requireT := require.New(t)

	c, _, _ := newCache(t, config(4))
	format := test.Format
	format.Channels = 2
	d, err := c.AddFile(test.CreateDataset(t, format, test.Pyramid(0)))
	requireT.ErrorIs(err, dataset.ErrBadFormat)
	requireT.Equal(types.InvalidDataset, d)
}

// Sync with outstanding requests.
func TestSync(t *testing.T) {
	requireT := require.New(t)

	c, ctx, _ := newCache(t, config(32))
	nodes := test.Pyramid(1)[:8]
	d := addDataset(t, c, nodes)

	for _, n := range nodes {
		c.GetPage(d, n, 1)
	}
	requireT.EqualValues(len(nodes), c.Stats().Pending)

	requireT.NoError(c.Sync(ctx, 2))
	requireT.Zero(c.needed.Count())
	requireT.Zero(c.loaded.Count())
	requireT.EqualValues(len(nodes), c.pool.Free())

	stats := c.Stats()
	requireT.EqualValues(len(nodes), stats.Requests)
	requireT.EqualValues(len(nodes), stats.Uploads)
	requireT.EqualValues(len(nodes), stats.Resident)
	requireT.Zero(stats.Pending)

	// Nothing is pending, so sync returns immediately.
	requireT.NoError(c.Sync(ctx, 3))
}

func TestSyncAfterClose(t *testing.T) {
	requireT := require.New(t)

	c, _, _ := newCache(t, config(4))
	d := addDataset(t, c, test.Pyramid(0))

	// Tasks requested before close are still completed.
	c.GetPage(d, 0, 1)
	c.Close()
	requireT.NoError(c.Sync(context.Background(), 1))
	requireT.True(c.Resident(d, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.GetPage(d, 1, 2)
	requireT.False(c.Pending(d, 1))
	requireT.NoError(c.Sync(ctx, 2))
}

func TestSyncCancelled(t *testing.T) {
	requireT := require.New(t)

	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
	c, deallocFunc, err := New(ctx, config(4), render.NewRecorder())
	requireT.NoError(err)
	t.Cleanup(deallocFunc)

	d := addDataset(t, c, test.Pyramid(0))

	// Workers are not running, so page is never loaded.
	c.GetPage(d, 0, 1)
	requireT.True(c.Pending(d, 0))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	requireT.ErrorIs(c.Sync(ctx, 1), context.DeadlineExceeded)
	requireT.True(c.Pending(d, 0))
}

func TestRequestedOnce(t *testing.T) {
	requireT := require.New(t)

	c, ctx, _ := newCache(t, config(4))
	d := addDataset(t, c, test.Pyramid(0))

	for frame := range types.Frame(5) {
		layer, _ := c.GetPage(d, 3, frame)
		requireT.Equal(types.FillLayer, layer)
	}
	requireT.EqualValues(1, c.Stats().Requests)
	requireT.LessOrEqual(c.needed.Count(), uint64(1))

	requireT.NoError(c.Sync(ctx, 5))
	layer, frame := c.GetPage(d, 3, 6)
	requireT.NotEqual(types.FillLayer, layer)
	requireT.Equal(types.Frame(5), frame)
	requireT.EqualValues(1, c.Stats().Requests)
}

func TestDecodeFailure(t *testing.T) {
	requireT := require.New(t)

	c, ctx, recorder := newCache(t, config(4))
	path := test.CreateDataset(t, test.Format, test.Pyramid(0))
	index, err := dataset.Open(path)
	requireT.NoError(err)
	test.CorruptPage(t, path, index.Offset(2))

	d, err := c.AddFile(path)
	requireT.NoError(err)

	c.GetPage(d, 2, 1)
	c.GetPage(d, 4, 1)
	requireT.NoError(c.Sync(ctx, 1))

	requireT.False(c.Resident(d, 2))
	requireT.True(c.Resident(d, 4))
	requireT.Len(recorder.Uploads(), 2)

	for frame := types.Frame(2); frame < 10; frame++ {
		layer, _ := c.GetPage(d, 2, frame)
		requireT.Equal(types.FillLayer, layer)
		requireT.False(c.Pending(d, 2))
	}

	stats := c.Stats()
	requireT.EqualValues(1, stats.Failed)
	requireT.EqualValues(2, stats.Requests)
	requireT.EqualValues(1, stats.Uploads)
	requireT.EqualValues(c.config.Buffers, c.pool.Free())
}

func TestBackpressure(t *testing.T) {
	requireT := require.New(t)

	cfg := config(8)
	cfg.NeededDepth = 2
	c, ctx, _ := newCache(t, cfg)
	d := addDataset(t, c, test.Pyramid(0))

	for n := range types.NodeID(3) {
		layer, _ := c.GetPage(d, n, 1)
		requireT.Equal(types.FillLayer, layer)
	}

	// Buffers are returned only by update, so third page waits.
	stats := c.Stats()
	requireT.EqualValues(2, stats.Requests)
	requireT.EqualValues(1, stats.Deferrals)
	requireT.False(c.Pending(d, 2))

	requireT.NoError(c.Sync(ctx, 1))
	c.GetPage(d, 2, 2)
	requireT.True(c.Pending(d, 2))
	requireT.NoError(c.Sync(ctx, 2))

	for n := range types.NodeID(3) {
		requireT.True(c.Resident(d, n))
	}
}

func TestDrainCap(t *testing.T) {
	requireT := require.New(t)

	cfg := config(8)
	cfg.DrainCap = 2
	c, _, _ := newCache(t, cfg)
	d := addDataset(t, c, test.Pyramid(0))

	for n := range types.NodeID(5) {
		c.GetPage(d, n, 1)
	}
	requireT.Eventually(func() bool {
		return c.loaded.Count() == 5
	}, 5*time.Second, time.Millisecond)

	requireT.EqualValues(2, c.Update(2))
	requireT.EqualValues(2, c.Update(3))
	requireT.EqualValues(1, c.Update(4))
	requireT.Zero(c.Update(5))
	requireT.EqualValues(5, c.Stats().Resident)
}

func TestFlush(t *testing.T) {
	requireT := require.New(t)

	c, ctx, recorder := newCache(t, config(4))
	nodes := test.Pyramid(1)[:8]
	d := addDataset(t, c, nodes)

	for _, n := range nodes[:4] {
		c.GetPage(d, n, 1)
	}
	requireT.NoError(c.Sync(ctx, 1))
	requireT.EqualValues(4, c.Stats().Resident)

	c.Flush()
	requireT.Zero(c.Stats().Resident)
	for _, n := range nodes[:4] {
		requireT.False(c.Resident(d, n))
	}

	for _, n := range nodes[4:] {
		c.GetPage(d, n, 2)
	}
	requireT.NoError(c.Sync(ctx, 2))
	verify(requireT, c)
	requireT.EqualValues(4, c.Stats().Resident)
	requireT.Zero(c.Stats().Evictions)

	for _, n := range nodes[4:] {
		layer, _ := c.GetPage(d, n, 3)
		requireT.Equal(test.Samples(test.Format, n), recorder.Pixels(c.TextureArray(), layer))
	}
}

func TestAtMostOneResidency(t *testing.T) {
	for _, policy := range []lru.Policy{lru.PolicyList, lru.PolicySplay} {
		t.Run(string(policy), func(t *testing.T) {
			requireT := require.New(t)

			cfg := config(16)
			cfg.Eviction = policy
			c, ctx, recorder := newCache(t, cfg)
			nodes := test.Pyramid(2)
			color := addDataset(t, c, nodes)
			height := addDataset(t, c, nodes[:30])

			for frame := types.Frame(1); frame < 200; frame++ {
				for i := range types.NodeID(6) {
					n := nodes[(uint64(frame)*7+uint64(i)*13)%uint64(len(nodes))]
					c.GetPage(color, n, frame)
					if n < 30 {
						c.GetPage(height, n, frame)
					}
				}
				c.Update(frame)
				verify(requireT, c)
			}
			requireT.NoError(c.Sync(ctx, 200))
			verify(requireT, c)

			for e := range c.loadedSet.Entries() {
				requireT.Equal(test.Samples(test.Format, e.Page.Node), recorder.Pixels(c.TextureArray(), e.Layer))
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	requireT := require.New(t)

	c, _, _ := newCache(t, config(4))
	d := addDataset(t, c, test.Pyramid(0))

	c.Close()
	c.Close()

	layer, _ := c.GetPage(d, 0, 1)
	requireT.Equal(types.FillLayer, layer)
	requireT.Zero(c.Stats().Requests)
}

func TestIndexQueries(t *testing.T) {
	requireT := require.New(t)

	c, _, _ := newCache(t, config(4))
	color := addDataset(t, c, []types.NodeID{0, 1, face.Child(0, types.QuadrantSW)})
	height := addDataset(t, c, []types.NodeID{2})

	requireT.True(c.Status(0))
	requireT.True(c.Status(2))
	requireT.False(c.Status(3))

	requireT.NotZero(c.Offset(color, 0))
	requireT.Zero(c.Offset(color, 2))
	requireT.True(c.HasChildren(color, 0))
	requireT.False(c.HasChildren(color, 1))
	requireT.False(c.HasChildren(height, 2))

	_, _, exists := c.Bounds(height, 2)
	requireT.True(exists)
	_, _, exists = c.Bounds(height, 0)
	requireT.False(exists)
}
