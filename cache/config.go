package cache

import (
	"github.com/pkg/errors"

	"github.com/outofforest/scm/lru"
	"github.com/outofforest/scm/types"
)

// Config stores configuration of the page cache.
type Config struct {
	// Capacity is the number of page layers, filler layer is allocated on top of it.
	Capacity uint64

	// Workers is the number of loader workers.
	Workers uint64

	// NeededDepth is the capacity of the queue of requested pages.
	NeededDepth uint64

	// LoadedDepth is the capacity of the queue of completed tasks. It can't be smaller than Buffers.
	LoadedDepth uint64

	// Buffers is the number of transfer buffers, so the maximum number of pages loaded at once.
	// It can't be greater than NeededDepth.
	Buffers uint64

	// DrainCap is the maximum number of completed tasks consumed by one Update.
	DrainCap uint64

	// Format is the format of pages. Every added dataset must use it.
	Format types.Format

	// Eviction selects the eviction policy.
	Eviction lru.Policy

	// Fill is the content of the filler layer. Zeros are used if nil.
	Fill []byte

	UseHugePages bool
}

func (c Config) withDefaults() Config {
	if c.Buffers == 0 {
		c.Buffers = c.NeededDepth
	}
	if c.LoadedDepth == 0 {
		c.LoadedDepth = c.Buffers
	}
	if c.DrainCap == 0 {
		c.DrainCap = c.LoadedDepth
	}
	if c.Eviction == "" {
		c.Eviction = lru.PolicyList
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Capacity == 0:
		return errors.New("capacity must be positive")
	case c.Capacity >= uint64(^types.Layer(0)):
		return errors.Errorf("capacity %d is too large", c.Capacity)
	case c.Workers == 0:
		return errors.New("at least one worker is required")
	case c.NeededDepth == 0:
		return errors.New("needed queue depth must be positive")
	case c.Buffers > c.NeededDepth:
		return errors.Errorf("number of buffers %d exceeds needed queue depth %d", c.Buffers, c.NeededDepth)
	case c.LoadedDepth < c.Buffers:
		return errors.Errorf("loaded queue depth %d is smaller than number of buffers %d", c.LoadedDepth, c.Buffers)
	case !c.Format.Valid():
		return errors.Errorf("invalid page format %+v", c.Format)
	case c.Fill != nil && uint64(len(c.Fill)) != c.Format.PageSize():
		return errors.Errorf("filler has %d bytes, page needs %d", len(c.Fill), c.Format.PageSize())
	}
	return nil
}
