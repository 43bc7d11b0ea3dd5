package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Orrigine/OverScoped/server"
)

func ServeCmd() *cobra.Command {
	var configFile string
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "navigation http api",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			err = a.build(ctx)
			if err == nil {
				srv := server.New(a.sched, a.nav, a.world, a.cfg.Server.CORSOrigins, a.logger)
				err = srv.ListenAndServe(ctx, addr)
			}

			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return multierr.Combine(err, a.close(closeCtx))
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file")
	c.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return c
}
