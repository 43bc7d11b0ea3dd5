package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func DumpCmd() *cobra.Command {
	var configFile, out string
	var compress bool
	c := &cobra.Command{
		Use:   "dump",
		Short: "build the volume and write it as msgpack",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := setup(configFile)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Combine(err, a.close(context.Background()))
			}()
			if err := a.build(context.Background()); err != nil {
				return err
			}
			if err := a.nav.Snapshot().Save(out, compress); err != nil {
				return err
			}
			a.logger.Infow("octree dumped", "file", out, "gzip", compress)
			return nil
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file")
	c.Flags().StringVar(&out, "out", "octree.msgpack", "output file")
	c.Flags().BoolVar(&compress, "gzip", true, "gzip the output")
	return c
}
