package cache

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mass"
	"github.com/outofforest/scm/alloc"
	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/lru"
	"github.com/outofforest/scm/pipeline"
	"github.com/outofforest/scm/queue"
	"github.com/outofforest/scm/render"
	"github.com/outofforest/scm/types"
)

// Stats reports the state of the cache.
type Stats struct {
	// Resident is the number of pages stored in layers.
	Resident uint64

	// Pending is the number of pages being loaded.
	Pending uint64

	// Failed is the number of pages which failed to decode.
	Failed uint64

	// Requests is the number of load tasks issued.
	Requests uint64

	// Deferrals is the number of requests postponed because of full queue or lack of buffers.
	Deferrals uint64

	Uploads   uint64
	Evictions uint64
}

// New creates page cache. Returned function releases resources and must be called after Run returns.
func New(ctx context.Context, config Config, renderer render.Renderer) (*Cache, func(), error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, nil, err
	}

	loadedSet, err := lru.New(config.Eviction, config.Capacity)
	if err != nil {
		return nil, nil, err
	}
	waiting, err := lru.New(config.Eviction, config.Buffers)
	if err != nil {
		return nil, nil, err
	}

	pool, poolDeallocFunc, err := alloc.NewPool(alloc.Config{
		NumOfBuffers: config.Buffers,
		BufferSize:   config.Format.PageSize(),
		UseHugePages: config.UseHugePages,
	})
	if err != nil {
		return nil, nil, err
	}

	decoder, err := dataset.NewDecoder(config.Workers)
	if err != nil {
		poolDeallocFunc()
		return nil, nil, err
	}

	array, err := renderer.CreateTextureArray(config.Format, config.Capacity+1)
	if err != nil {
		decoder.Close()
		poolDeallocFunc()
		return nil, nil, err
	}

	fill := config.Fill
	if fill == nil {
		fill = make([]byte, config.Format.PageSize())
	}
	renderer.UploadLayer(array, types.FillLayer, fill)

	c := &Cache{
		config:   config,
		log:      logger.Get(ctx),
		renderer: renderer,
		array:    array,
		// Exit tasks must always fit.
		needed:    queue.New[*pipeline.Task](config.NeededDepth + config.Workers),
		loaded:    queue.New[*pipeline.Task](config.LoadedDepth),
		pool:      pool,
		decoder:   decoder,
		massTask:  mass.New[pipeline.Task](config.Buffers),
		freeTasks: make([]*pipeline.Task, 0, config.Buffers),
		loadedSet: loadedSet,
		waiting:   waiting,
		failed:    map[types.Page]struct{}{},
		nextLayer: types.FillLayer + 1,
	}

	return c, func() {
		renderer.DeleteTextureArray(array)
		decoder.Close()
		poolDeallocFunc()
	}, nil
}

// Cache streams pages of datasets into layers of the texture array. Except Run, methods must be called by one
// goroutine, the one driving the renderer.
type Cache struct {
	config   Config
	log      *zap.Logger
	renderer render.Renderer
	array    types.TextureArray
	datasets []*dataset.Index

	needed, loaded *queue.Queue[*pipeline.Task]
	pool           *alloc.Pool
	decoder        *dataset.Decoder
	massTask       *mass.Mass[pipeline.Task]
	freeTasks      []*pipeline.Task

	loadedSet lru.Set
	waiting   lru.Set
	failed    map[types.Page]struct{}

	freeLayers []types.Layer
	nextLayer  types.Layer

	closed bool
	stats  Stats
}

// Run runs loader workers. It returns after Close is called and workers finish the tasks requested before.
func (c *Cache) Run(ctx context.Context) error {
	return pipeline.Run(ctx, pipeline.Config{
		Workers: c.config.Workers,
		Needed:  c.needed,
		Loaded:  c.loaded,
		Pool:    c.pool,
		Decoder: c.decoder,
	})
}

// Close tells workers to exit. No more pages are requested after it.
func (c *Cache) Close() {
	if c.closed {
		return
	}
	c.closed = true

	for range c.config.Workers {
		if !c.needed.TryInsert(pipeline.NewExitTask()) {
			panic("no space for exit task")
		}
	}
}

// AddFile opens dataset and returns its index. InvalidDataset is returned on failure.
func (c *Cache) AddFile(path string) (types.DatasetIndex, error) {
	index, err := dataset.Open(path)
	if err == nil && index.Format() != c.config.Format {
		err = errors.Wrapf(dataset.ErrBadFormat, "dataset %s has format %+v, cache expects %+v", path,
			index.Format(), c.config.Format)
	}
	if err != nil {
		c.log.Error("Opening dataset failed", zap.String("path", path), zap.Error(err))
		return types.InvalidDataset, err
	}

	c.datasets = append(c.datasets, index)
	d := types.DatasetIndex(len(c.datasets) - 1)
	c.log.Info("Dataset added", zap.String("path", path), zap.Int32("dataset", int32(d)),
		zap.Int("pages", index.Count()))
	return d, nil
}

// Datasets returns the number of added datasets.
func (c *Cache) Datasets() int {
	return len(c.datasets)
}

// GetPage returns layer and frame of its assignment if page is resident. Otherwise filler layer and the current
// frame are returned, and page is requested if possible. It never blocks.
func (c *Cache) GetPage(d types.DatasetIndex, node types.NodeID, frame types.Frame) (types.Layer, types.Frame) {
	index := c.dataset(d)
	page := types.Page{Dataset: d, Node: node}

	if e, exists := c.loadedSet.Search(page, frame); exists {
		return e.Layer, e.Frame
	}
	if c.closed || c.waiting.Contains(page) {
		return types.FillLayer, frame
	}
	if _, failed := c.failed[page]; failed {
		return types.FillLayer, frame
	}

	offset := index.Offset(node)
	if offset == 0 {
		return types.FillLayer, frame
	}

	buffer, ok := c.pool.Get()
	if !ok {
		c.stats.Deferrals++
		return types.FillLayer, frame
	}

	task := c.newTask()
	*task = pipeline.Task{
		Dataset: d,
		Node:    node,
		Path:    index.Path(),
		Offset:  offset,
		Extent:  index.Extent(node),
		Format:  c.config.Format,
		Buffer:  buffer,
	}
	if !c.needed.TryInsert(task) {
		c.release(task)
		c.stats.Deferrals++
		return types.FillLayer, frame
	}

	c.waiting.Insert(lru.Entry{Page: page, Frame: frame}, frame)
	c.stats.Requests++
	return types.FillLayer, frame
}

// Update consumes completed tasks, at most DrainCap of them. It returns the number of consumed tasks.
func (c *Cache) Update(frame types.Frame) uint64 {
	var n uint64
	for ; n < c.config.DrainCap; n++ {
		task, ok := c.loaded.TryRemove()
		if !ok {
			break
		}
		c.complete(task, frame)
	}
	return n
}

// Sync waits until every requested page is loaded and consumed.
func (c *Cache) Sync(ctx context.Context, frame types.Frame) error {
	for !c.waiting.Empty() {
		task, err := c.loaded.Remove(ctx)
		if err != nil {
			return err
		}
		c.complete(task, frame)
	}
	return nil
}

// Flush ejects all the resident pages.
func (c *Cache) Flush() {
	var n uint64
	for {
		e, exists := c.loadedSet.Eject()
		if !exists {
			break
		}
		c.freeLayers = append(c.freeLayers, e.Layer)
		n++
	}
	c.log.Debug("Cache flushed", zap.Uint64("pages", n))
}

// FillLayer returns the layer storing filler.
func (c *Cache) FillLayer() types.Layer {
	return types.FillLayer
}

// Capacity returns the number of page layers.
func (c *Cache) Capacity() uint64 {
	return c.config.Capacity
}

// TextureArray returns the texture array storing layers.
func (c *Cache) TextureArray() types.TextureArray {
	return c.array
}

// Status returns true if any dataset contains the page.
func (c *Cache) Status(node types.NodeID) bool {
	for _, index := range c.datasets {
		if index.Contains(node) {
			return true
		}
	}
	return false
}

// Offset returns offset of the page in the dataset, 0 if absent.
func (c *Cache) Offset(d types.DatasetIndex, node types.NodeID) uint64 {
	return c.dataset(d).Offset(node)
}

// Bounds returns normalized sample bounds of the page in the dataset.
func (c *Cache) Bounds(d types.DatasetIndex, node types.NodeID) (float32, float32, bool) {
	return c.dataset(d).Bounds(node)
}

// HasChildren returns true if dataset contains any child of the page.
func (c *Cache) HasChildren(d types.DatasetIndex, node types.NodeID) bool {
	return c.dataset(d).HasChildren(node)
}

// Resident returns true if page is stored in a layer.
func (c *Cache) Resident(d types.DatasetIndex, node types.NodeID) bool {
	return c.loadedSet.Contains(types.Page{Dataset: d, Node: node})
}

// Pending returns true if page is being loaded.
func (c *Cache) Pending(d types.DatasetIndex, node types.NodeID) bool {
	return c.waiting.Contains(types.Page{Dataset: d, Node: node})
}

// Stats returns statistics of the cache.
func (c *Cache) Stats() Stats {
	stats := c.stats
	stats.Resident = c.loadedSet.Count()
	stats.Pending = c.waiting.Count()
	stats.Failed = uint64(len(c.failed))
	return stats
}

func (c *Cache) dataset(d types.DatasetIndex) *dataset.Index {
	if d < 0 || int(d) >= len(c.datasets) {
		panic(errors.Errorf("invalid dataset index %d", d))
	}
	return c.datasets[d]
}

func (c *Cache) complete(task *pipeline.Task, frame types.Frame) {
	defer c.release(task)

	page := task.Page()
	if _, exists := c.waiting.Remove(page); !exists {
		panic(errors.Errorf("completed page %+v was not requested", page))
	}

	if !task.Decoded {
		c.failed[page] = struct{}{}
		c.log.Debug("Page failed to load", zap.Int32("dataset", int32(page.Dataset)),
			zap.Uint64("node", uint64(page.Node)))
		return
	}

	layer := c.acquireLayer()
	c.renderer.UploadLayer(c.array, layer, c.pool.Bytes(task.Buffer))
	c.loadedSet.Insert(lru.Entry{
		Page:  page,
		Layer: layer,
		Frame: frame,
	}, frame)
	c.stats.Uploads++
}

func (c *Cache) acquireLayer() types.Layer {
	if n := len(c.freeLayers); n > 0 {
		layer := c.freeLayers[n-1]
		c.freeLayers = c.freeLayers[:n-1]
		return layer
	}
	if uint64(c.nextLayer) <= c.config.Capacity {
		layer := c.nextLayer
		c.nextLayer++
		return layer
	}

	e, exists := c.loadedSet.Eject()
	if !exists {
		panic("no layer to evict")
	}
	c.stats.Evictions++
	return e.Layer
}

func (c *Cache) newTask() *pipeline.Task {
	if n := len(c.freeTasks); n > 0 {
		task := c.freeTasks[n-1]
		c.freeTasks = c.freeTasks[:n-1]
		return task
	}
	return pipeline.NewTask(c.massTask)
}

func (c *Cache) release(task *pipeline.Task) {
	c.pool.Put(task.Buffer)
	c.freeTasks = append(c.freeTasks, task)
}
