package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Orrigine/OverScoped/scheduler"
)

func PlanCmd() *cobra.Command {
	var configFile, from, to string
	var clearance float32
	var timeout time.Duration
	c := &cobra.Command{
		Use:   "plan",
		Short: "build the volume and print one path as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseVector(from)
			if err != nil {
				return err
			}
			goal, err := parseVector(to)
			if err != nil {
				return err
			}
			a, err := setup(configFile)
			if err != nil {
				return err
			}
			if clearance < 0 {
				clearance = a.cfg.Volume.DefaultClearance
			}
			res, err := plan(cmd.Context(), a, scheduler.PathRequest{Start: start, Goal: goal, Clearance: clearance, Timeout: timeout})
			err = multierr.Combine(err, a.close(context.Background()))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file")
	c.Flags().StringVar(&from, "from", "", "start point x,y,z")
	c.Flags().StringVar(&to, "to", "", "goal point x,y,z")
	c.Flags().Float32Var(&clearance, "clearance", -1, "agent clearance, defaults to volume.default_clearance")
	c.Flags().DurationVar(&timeout, "timeout", 0, "request deadline")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func plan(ctx context.Context, a *app, req scheduler.PathRequest) (scheduler.Result, error) {
	if err := a.build(ctx); err != nil {
		return scheduler.Result{}, err
	}
	token, err := a.sched.Submit(a.nav, req)
	if err != nil {
		return scheduler.Result{}, err
	}
	res, err := a.sched.Await(ctx, token)
	if err != nil {
		return res, err
	}
	if res.Err != nil {
		return res, errors.Wrapf(res.Err, "request %s %s", token, res.State)
	}
	return res, nil
}
