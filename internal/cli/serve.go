package cli

import (
	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps/internal/fieldcache"
	"github.com/yyyoichi/warptps/internal/server"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				c.config.Server.Addr = addr
			}
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			cache := c.openFieldCache(ctx, noCache)
			defer cache.Close()

			srv := server.New(server.Config{
				Store:          store,
				Fields:         &fieldcache.Fields{Cache: cache, TTL: c.config.Cache.TTL.Duration},
				Logger:         c.Logger,
				Defaults:       c.config.Options(),
				MaxUploadBytes: c.config.Server.MaxUploadMB << 20,
				MaxFrames:      c.config.Server.MaxFrames,
				Version:        Version,
			})
			return srv.Run(ctx, c.config.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not cache presampled fields")
	return cmd
}
