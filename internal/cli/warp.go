package cli

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/fieldcache"
	"github.com/yyyoichi/warptps/internal/imageio"
)

type warpOptions struct {
	landmarks landmarkFlags
	percent   float64
	direct    bool
	noCache   bool
	format    string
}

func (c *CLI) warpCommand() *cobra.Command {
	var opts warpOptions
	cmd := &cobra.Command{
		Use:   "warp <input> <output>",
		Short: "Warp an image",
		Long: `Warp an image so that its source landmarks move toward their destinations.
The input may be a file or an http(s) URL.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWarp(cmd.Context(), args[0], args[1], opts)
		},
	}
	opts.landmarks.register(cmd)
	cmd.Flags().Float64VarP(&opts.percent, "percent", "p", 1, "warp strength, 0 keeps the image")
	cmd.Flags().BoolVar(&opts.direct, "direct", false, "evaluate the spline per pixel instead of through a presampled field")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not read or store presampled fields")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpeg, bmp or pnm (default from output name)")
	return cmd
}

func (c *CLI) runWarp(ctx context.Context, input, output string, opts warpOptions) error {
	logger := loggerFromContext(ctx)
	format := imageio.FormatOf(output)
	if opts.format != "" {
		var err error
		if format, err = imageio.ParseFormat(opts.format); err != nil {
			return err
		}
	}

	img, err := c.fetcher().Open(ctx, input)
	if err != nil {
		return fmt.Errorf("open %s: %w", input, err)
	}
	b := img.Bounds()
	t, err := c.transform(ctx, opts.landmarks, b.Dx(), b.Dy())
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	var out *image.NRGBA
	if opts.direct {
		out, err = t.WarpImage(ctx, img, opts.percent, false)
	} else {
		out, err = c.warpCached(ctx, t, img, opts)
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Warped %dx%d with %d landmarks", b.Dx(), b.Dy(), t.LandmarkCount()))

	if err := writeImage(output, out, format); err != nil {
		return err
	}
	c.print().success("Warped %s at %.0f%%", input, opts.percent*100)
	c.print().file(output)
	return nil
}

func (c *CLI) warpCached(ctx context.Context, t *warptps.Transform, img image.Image, opts warpOptions) (*image.NRGBA, error) {
	cache := c.openFieldCache(ctx, opts.noCache)
	defer cache.Close()
	fields := &fieldcache.Fields{Cache: cache, TTL: c.config.Cache.TTL.Duration}

	b := img.Bounds()
	f, hit, err := fields.Get(ctx, t, b.Dx(), b.Dy())
	if err != nil {
		if f == nil {
			return nil, err
		}
		loggerFromContext(ctx).Warn("field not cached", "err", err)
	}
	loggerFromContext(ctx).Debug("field", "size", b.Size(), "cached", hit)
	return warptps.WarpField(ctx, f, img, opts.percent)
}

func writeImage(path string, img image.Image, format imageio.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imageio.Encode(f, img, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
