package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Orrigine/OverScoped/collision"
	"github.com/Orrigine/OverScoped/config"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/scheduler"
)

const VERSION = "0.3.0"

func main() {
	root := &cobra.Command{
		Use:           "octnav",
		Short:         "sparse voxel octree navigation",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ServeCmd(), PlanCmd(), DumpCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every command builds from a config file.
type app struct {
	cfg    config.Config
	logger *zap.SugaredLogger
	world  *collision.World
	sched  *scheduler.Scheduler
	nav    *scheduler.Navigator
}

func setup(configFile string) (*app, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	world := cfg.World()
	sched := scheduler.New(cfg.ToSchedulerOptions(logger))
	return &app{
		cfg:    cfg,
		logger: logger,
		world:  world,
		sched:  sched,
		nav:    sched.NewNavigator("default", cfg.ToVolume(), world),
	}, nil
}

// build builds the volume, or fully rebuilds it when a snapshot exists.
func (a *app) build(ctx context.Context) error {
	tree, err := a.nav.BuildOrRebuild(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "build octree")
	}
	st := tree.Stats()
	a.logger.Infow("octree ready", "nodes", st.Nodes, "open", st.Open, "links", st.Links, "duration", st.Duration)
	return nil
}

func (a *app) close(ctx context.Context) error {
	err := a.sched.Close(ctx)
	_ = a.logger.Sync()
	return err
}

// parseVector reads "x,y,z".
func parseVector(s string) (math32.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math32.Vector3{}, errors.Errorf("point %q is not x,y,z", s)
	}
	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math32.Vector3{}, errors.Wrapf(err, "point %q", s)
		}
		v[i] = float32(f)
	}
	return math32.Vec3(v[0], v[1], v[2]), nil
}
