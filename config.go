package scm

import (
	"bytes"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/scm/cache"
	"github.com/outofforest/scm/lru"
	"github.com/outofforest/scm/model"
	"github.com/outofforest/scm/types"
)

// Config stores configuration of the system.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Model    ModelConfig    `yaml:"model"`
	Datasets DatasetsConfig `yaml:"datasets"`
}

// CacheConfig stores configuration of the page cache.
type CacheConfig struct {
	Capacity     uint64       `yaml:"capacity"`
	Workers      uint64       `yaml:"workers"`
	NeededDepth  uint64       `yaml:"neededDepth"`
	LoadedDepth  uint64       `yaml:"loadedDepth"`
	Buffers      uint64       `yaml:"buffers"`
	DrainCap     uint64       `yaml:"drainCap"`
	Format       types.Format `yaml:"format"`
	Eviction     lru.Policy   `yaml:"eviction"`
	Fill         uint8        `yaml:"fill"`
	UseHugePages bool         `yaml:"useHugePages"`
}

// ModelConfig stores configuration of the walker.
type ModelConfig struct {
	Threshold     float32    `yaml:"threshold"`
	FadeFrames    uint64     `yaml:"fadeFrames"`
	Radius0       float32    `yaml:"radius0"`
	Radius1       float32    `yaml:"radius1"`
	Zoom          float32    `yaml:"zoom"`
	ZoomDirection [3]float32 `yaml:"zoomDirection"`
}

// DatasetsConfig lists datasets opened on start.
type DatasetsConfig struct {
	Color  []string `yaml:"color"`
	Height []string `yaml:"height"`
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Capacity:    512,
			Workers:     4,
			NeededDepth: 32,
			LoadedDepth: 32,
			Buffers:     32,
			DrainCap:    8,
			Format: types.Format{
				Width:    512,
				Height:   512,
				Channels: 3,
				Depth:    8,
			},
			Eviction: lru.PolicyList,
		},
		Model: ModelConfig{
			Threshold:     model.DefaultConfig.Threshold,
			FadeFrames:    model.DefaultConfig.FadeFrames,
			Radius0:       model.DefaultConfig.Radius0,
			Radius1:       model.DefaultConfig.Radius1,
			Zoom:          model.DefaultConfig.Zoom,
			ZoomDirection: model.DefaultConfig.ZoomDirection,
		},
	}
}

// LoadConfig loads configuration from YAML file. Missing values are taken from the default configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}

	config := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, errors.Wrapf(err, "decoding config %s failed", path)
	}
	return config, nil
}

func (c CacheConfig) config() cache.Config {
	config := cache.Config{
		Capacity:     c.Capacity,
		Workers:      c.Workers,
		NeededDepth:  c.NeededDepth,
		LoadedDepth:  c.LoadedDepth,
		Buffers:      c.Buffers,
		DrainCap:     c.DrainCap,
		Format:       c.Format,
		Eviction:     c.Eviction,
		UseHugePages: c.UseHugePages,
	}
	if c.Fill != 0 && c.Format.Valid() {
		config.Fill = bytes.Repeat([]byte{c.Fill}, int(c.Format.PageSize()))
	}
	return config
}

func (c ModelConfig) config() model.Config {
	return model.Config{
		Threshold:     c.Threshold,
		FadeFrames:    c.FadeFrames,
		Radius0:       c.Radius0,
		Radius1:       c.Radius1,
		Zoom:          c.Zoom,
		ZoomDirection: mgl32.Vec3(c.ZoomDirection),
	}
}
