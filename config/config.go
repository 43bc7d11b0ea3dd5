// Package config loads the YAML configuration shared by the octnav commands.
package config

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Orrigine/OverScoped/collision"
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
	"github.com/Orrigine/OverScoped/query"
	"github.com/Orrigine/OverScoped/scheduler"
)

// Config is the root of a configuration file.
type Config struct {
	Volume    VolumeConfig    `yaml:"volume"`
	Search    SearchConfig    `yaml:"search"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Geometry  GeometryConfig  `yaml:"geometry"`
}

// VolumeConfig mirrors octree.Volume.
type VolumeConfig struct {
	Bounds           geometry.AABB `yaml:"bounds"`
	MaxDepth         int           `yaml:"max_depth"`
	MinLeafSize      float32       `yaml:"min_leaf_size"`
	DefaultClearance float32       `yaml:"default_clearance"`
	CoarseOpenNodes  bool          `yaml:"coarse_open_nodes"`
}

// SearchConfig mirrors query.Options with the enums spelled as strings.
type SearchConfig struct {
	Algorithm             string  `yaml:"algorithm"`
	Heuristic             string  `yaml:"heuristic"`
	HeuristicScale        float32 `yaml:"heuristic_scale"`
	Cost                  string  `yaml:"cost"`
	FixedCost             float32 `yaml:"fixed_cost"`
	NodeSizeCompensation  bool    `yaml:"node_size_compensation"`
	MaxIterations         int     `yaml:"max_iterations"`
	CancelCheckInterval   int     `yaml:"cancel_check_interval"`
	Smoothing             bool    `yaml:"smoothing"`
	SmoothingSubdivisions int     `yaml:"smoothing_subdivisions"`
	DirectShortcut        bool    `yaml:"direct_shortcut"`
}

type SchedulerConfig struct {
	Workers           int           `yaml:"workers"`
	QueueSize         int           `yaml:"queue_size"`
	MaxParallelBuilds int           `yaml:"max_parallel_builds"`
	BuildParallelism  int           `yaml:"build_parallelism"`
	DefaultTimeout    time.Duration `yaml:"default_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// GeometryConfig seeds the reference collision world.
type GeometryConfig struct {
	Boxes     []geometry.Box      `yaml:"boxes"`
	Triangles []geometry.Triangle `yaml:"triangles"`
	Capsules  []geometry.Capsule  `yaml:"capsules"`
}

// Default returns a 64 unit cube at depth 5 with the default search and
// scheduler settings.
func Default() Config {
	search := query.DefaultOptions()
	return Config{
		Volume: VolumeConfig{
			Bounds:           geometry.AABB{Max: math32.Splat(64)},
			MaxDepth:         5,
			DefaultClearance: 1,
			CoarseOpenNodes:  true,
		},
		Search: SearchConfig{
			Algorithm:             search.Algorithm.String(),
			Heuristic:             search.Heuristic.String(),
			HeuristicScale:        search.HeuristicScale,
			Cost:                  search.Cost.String(),
			FixedCost:             search.FixedCost,
			MaxIterations:         search.MaxIterations,
			CancelCheckInterval:   search.CancelCheckInterval,
			Smoothing:             search.Smoothing,
			SmoothingSubdivisions: search.SmoothingSubdivisions,
		},
		Scheduler: SchedulerConfig{
			Workers:           runtime.NumCPU(),
			QueueSize:         1024,
			MaxParallelBuilds: 4,
			BuildParallelism:  runtime.NumCPU(),
		},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Addr: ":8080", CORSOrigins: []string{"*"}},
	}
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes data over Default and validates the result. Keys absent from
// data keep their default value; unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var err error
	if c.Volume.MaxDepth < 0 || c.Volume.MaxDepth > octree.MaxSupportedDepth {
		err = multierr.Append(err, errors.Errorf("volume.max_depth %d must be in [0, %d]", c.Volume.MaxDepth, octree.MaxSupportedDepth))
	} else if verr := c.ToVolume().Validate(); verr != nil {
		err = multierr.Append(err, errors.Wrap(verr, "volume"))
	}
	if c.Volume.DefaultClearance < 0 {
		err = multierr.Append(err, errors.Errorf("volume.default_clearance %g is negative", c.Volume.DefaultClearance))
	}
	if _, perr := query.ParseAlgorithm(c.Search.Algorithm); perr != nil {
		err = multierr.Append(err, errors.Wrap(perr, "search.algorithm"))
	}
	if _, perr := query.ParseHeuristic(c.Search.Heuristic); perr != nil {
		err = multierr.Append(err, errors.Wrap(perr, "search.heuristic"))
	}
	if _, perr := query.ParseCostMode(c.Search.Cost); perr != nil {
		err = multierr.Append(err, errors.Wrap(perr, "search.cost"))
	}
	if c.Search.MaxIterations < 0 {
		err = multierr.Append(err, errors.Errorf("search.max_iterations %d is negative", c.Search.MaxIterations))
	}
	if c.Search.SmoothingSubdivisions < 0 {
		err = multierr.Append(err, errors.Errorf("search.smoothing_subdivisions %d is negative", c.Search.SmoothingSubdivisions))
	}
	if c.Scheduler.Workers < 1 {
		err = multierr.Append(err, errors.Errorf("scheduler.workers %d must be positive", c.Scheduler.Workers))
	}
	if c.Scheduler.QueueSize < 1 {
		err = multierr.Append(err, errors.Errorf("scheduler.queue_size %d must be positive", c.Scheduler.QueueSize))
	}
	if c.Scheduler.MaxParallelBuilds < 1 {
		err = multierr.Append(err, errors.Errorf("scheduler.max_parallel_builds %d must be positive", c.Scheduler.MaxParallelBuilds))
	}
	if c.Scheduler.DefaultTimeout < 0 {
		err = multierr.Append(err, errors.Errorf("scheduler.default_timeout %v is negative", c.Scheduler.DefaultTimeout))
	}
	if _, lerr := zapcore.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, errors.Wrap(lerr, "log.level"))
	}
	for i, b := range c.Geometry.Boxes {
		if b.Size.X <= 0 || b.Size.Y <= 0 || b.Size.Z <= 0 {
			err = multierr.Append(err, errors.Errorf("geometry.boxes[%d] has non-positive size %v", i, b.Size))
		}
	}
	for i, cp := range c.Geometry.Capsules {
		if cp.Radius < 0 {
			err = multierr.Append(err, errors.Errorf("geometry.capsules[%d] has negative radius", i))
		}
	}
	return err
}

// ToVolume returns the octree volume.
func (c Config) ToVolume() octree.Volume {
	return octree.Volume{
		Bounds:           c.Volume.Bounds,
		MaxDepth:         uint8(c.Volume.MaxDepth),
		MinLeafSize:      c.Volume.MinLeafSize,
		DefaultClearance: c.Volume.DefaultClearance,
		CoarseOpenNodes:  c.Volume.CoarseOpenNodes,
	}
}

// ToSearchOptions returns the search options. Unknown names fall back to the
// defaults; Validate reports them.
func (c Config) ToSearchOptions() query.Options {
	opts := query.DefaultOptions()
	opts.Algorithm, _ = query.ParseAlgorithm(c.Search.Algorithm)
	opts.Heuristic, _ = query.ParseHeuristic(c.Search.Heuristic)
	opts.Cost, _ = query.ParseCostMode(c.Search.Cost)
	opts.HeuristicScale = c.Search.HeuristicScale
	opts.FixedCost = c.Search.FixedCost
	opts.NodeSizeCompensation = c.Search.NodeSizeCompensation
	opts.MaxIterations = c.Search.MaxIterations
	opts.CancelCheckInterval = c.Search.CancelCheckInterval
	opts.Smoothing = c.Search.Smoothing
	opts.SmoothingSubdivisions = c.Search.SmoothingSubdivisions
	opts.DirectShortcut = c.Search.DirectShortcut
	return opts
}

// ToSchedulerOptions returns the scheduler options logging to logger.
func (c Config) ToSchedulerOptions(logger *zap.SugaredLogger) scheduler.Options {
	return scheduler.Options{
		Workers:           c.Scheduler.Workers,
		QueueSize:         c.Scheduler.QueueSize,
		MaxParallelBuilds: c.Scheduler.MaxParallelBuilds,
		BuildParallelism:  c.Scheduler.BuildParallelism,
		DefaultTimeout:    c.Scheduler.DefaultTimeout,
		Search:            c.ToSearchOptions(),
		Logger:            logger,
	}
}

// World returns a collision world holding the configured geometry.
func (c Config) World() *collision.World {
	w := collision.NewWorld()
	for i := range c.Geometry.Boxes {
		w.Add(&c.Geometry.Boxes[i])
	}
	for i := range c.Geometry.Triangles {
		w.Add(&c.Geometry.Triangles[i])
	}
	for i := range c.Geometry.Capsules {
		w.Add(&c.Geometry.Capsules[i])
	}
	return w
}

// NewLogger builds a console logger in development mode and a JSON logger
// otherwise.
func (c LogConfig) NewLogger() (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger.Sugar(), nil
}
