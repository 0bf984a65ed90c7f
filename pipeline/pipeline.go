package pipeline

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mass"
	"github.com/outofforest/parallel"
	"github.com/outofforest/scm/alloc"
	"github.com/outofforest/scm/dataset"
	"github.com/outofforest/scm/queue"
	"github.com/outofforest/scm/types"
)

// NewTask returns new load task.
func NewTask(massTask *mass.Mass[Task]) *Task {
	return massTask.New()
}

// NewExitTask returns the task telling worker to exit.
func NewExitTask() *Task {
	return &Task{Dataset: types.ExitDataset}
}

// Task is the request to load a page.
type Task struct {
	Dataset types.DatasetIndex
	Node    types.NodeID
	Path    string
	Offset  uint64
	Extent  uint64
	Format  types.Format
	Buffer  alloc.Handle
	Decoded bool
}

// Exit returns true if task tells worker to exit.
func (t *Task) Exit() bool {
	return t.Dataset < 0
}

// Page returns the page loaded by the task.
func (t *Task) Page() types.Page {
	return types.Page{Dataset: t.Dataset, Node: t.Node}
}

// Config stores configuration of loader workers.
type Config struct {
	Workers uint64
	Needed  *queue.Queue[*Task]
	Loaded  *queue.Queue[*Task]
	Pool    *alloc.Pool
	Decoder *dataset.Decoder
}

// Run runs loader workers. It returns when every worker consumed its exit task.
func Run(ctx context.Context, config Config) error {
	if config.Workers == 0 {
		return errors.New("at least one worker is required")
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range config.Workers {
			spawn(fmt.Sprintf("worker-%02d", i), parallel.Continue, func(ctx context.Context) error {
				return runWorker(ctx, config)
			})
		}
		return nil
	})
}

func runWorker(ctx context.Context, config Config) error {
	log := logger.Get(ctx)
	reader := config.Decoder.NewReader()

	for {
		task, err := config.Needed.Remove(ctx)
		if err != nil {
			return err
		}
		if task.Exit() {
			return nil
		}

		buffer := config.Pool.Bytes(task.Buffer)[:task.Format.PageSize()]
		err = reader.ReadPage(task.Path, task.Offset, task.Extent, task.Format, buffer)
		task.Decoded = err == nil
		if err != nil {
			log.Debug("Decoding page failed",
				zap.Int32("dataset", int32(task.Dataset)),
				zap.Uint64("node", uint64(task.Node)),
				zap.Uint64("offset", task.Offset),
				zap.Error(err))
		}

		if err := config.Loaded.Insert(ctx, task); err != nil {
			return err
		}
	}
}
