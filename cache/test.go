package cache

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/scm/render"
)

// RunInTest creates and runs cache for unit tests.
func RunInTest(t *testing.T, config Config, renderer render.Renderer) (*Cache, context.Context, error) {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)

	c, deallocFunc, err := New(ctx, config, renderer)
	if err != nil {
		return nil, nil, err
	}
	t.Cleanup(deallocFunc)

	group := parallel.NewGroup(ctx)
	group.Spawn("cache", parallel.Continue, c.Run)

	t.Cleanup(func() {
		c.Close()
		group.Exit(nil)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
	})

	return c, ctx, nil
}
