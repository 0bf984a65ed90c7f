package scm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/scm/cache"
	"github.com/outofforest/scm/model"
	"github.com/outofforest/scm/render"
	"github.com/outofforest/scm/types"
)

// New creates system streaming datasets to the renderer. Returned function releases resources and must be called
// after Run returns.
func New(ctx context.Context, config Config, renderer render.Renderer) (*System, func(), error) {
	c, deallocFunc, err := cache.New(ctx, config.Cache.config(), renderer)
	if err != nil {
		return nil, nil, err
	}

	w, err := model.New(config.Model.config(), c, renderer)
	if err != nil {
		deallocFunc()
		return nil, nil, err
	}

	s := &System{
		cache:  c,
		walker: w,
	}

	for _, path := range config.Datasets.Color {
		if _, err := s.AddColor(path); err != nil {
			deallocFunc()
			return nil, nil, err
		}
	}
	for _, path := range config.Datasets.Height {
		if _, err := s.AddHeight(path); err != nil {
			deallocFunc()
			return nil, nil, err
		}
	}

	return s, deallocFunc, nil
}

// System drives the cache and the walker frame by frame. Except Run, methods must be called by the goroutine
// driving the renderer.
type System struct {
	cache  *cache.Cache
	walker *model.Walker
	color  []types.DatasetIndex
	height []types.DatasetIndex
}

// Run runs loader workers.
func (s *System) Run(ctx context.Context) error {
	return s.cache.Run(ctx)
}

// Close stops loader workers.
func (s *System) Close() {
	s.cache.Close()
}

// AddColor adds dataset textured on the sphere.
func (s *System) AddColor(path string) (types.DatasetIndex, error) {
	d, err := s.cache.AddFile(path)
	if err != nil {
		return d, errors.Wrapf(err, "adding color dataset %s failed", path)
	}
	s.color = append(s.color, d)
	return d, nil
}

// AddHeight adds dataset defining the radius of the sphere.
func (s *System) AddHeight(path string) (types.DatasetIndex, error) {
	d, err := s.cache.AddFile(path)
	if err != nil {
		return d, errors.Wrapf(err, "adding height dataset %s failed", path)
	}
	s.height = append(s.height, d)
	return d, nil
}

// Frame consumes loaded pages and draws the frame.
func (s *System) Frame(views []model.View, frame types.Frame) model.Stats {
	s.cache.Update(frame)
	return s.walker.Frame(views, frame, s.color, s.height)
}

// Sync waits until all the requested pages are loaded.
func (s *System) Sync(ctx context.Context, frame types.Frame) error {
	return s.cache.Sync(ctx, frame)
}

// Flush evicts all the pages.
func (s *System) Flush() {
	s.cache.Flush()
}

// Cache returns the page cache.
func (s *System) Cache() *cache.Cache {
	return s.cache
}
