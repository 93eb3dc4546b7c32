package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/imageio"
)

type morphOptions struct {
	landmarks landmarkFlags
	frames    int
	format    string
}

func (c *CLI) morphCommand() *cobra.Command {
	var opts morphOptions
	cmd := &cobra.Command{
		Use:   "morph <image1> <image2> <outdir>",
		Short: "Morph between two images",
		Long: `Morph between two images of the same size. Source landmarks lie on the first
image and destination landmarks on the second. Frames 0..n are written as
frame_000.png and so on; frame 0 is the first image and frame n the second.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMorph(cmd.Context(), args[0], args[1], args[2], opts)
		},
	}
	opts.landmarks.register(cmd)
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 10, "number of steps between the images")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "png", "frame format: png, jpeg, bmp or pnm")
	return cmd
}

func (c *CLI) runMorph(ctx context.Context, in1, in2, outDir string, opts morphOptions) error {
	format, err := imageio.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	fetch := c.fetcher()
	img1, err := fetch.Open(ctx, in1)
	if err != nil {
		return fmt.Errorf("open %s: %w", in1, err)
	}
	img2, err := fetch.Open(ctx, in2)
	if err != nil {
		return fmt.Errorf("open %s: %w", in2, err)
	}

	b := img1.Bounds()
	t, err := c.transform(ctx, opts.landmarks, b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	exp, k := t.Kernel()

	prog := newProgress(loggerFromContext(ctx))
	frames, err := warptps.Morph(ctx, img1, img2, t.Landmarks(), opts.frames,
		warptps.WithKernelExponent(exp),
		warptps.WithKernelScale(k),
		warptps.WithSolver(t.Solver()),
	)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Morphed %d frames", len(frames)))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for i, frame := range frames {
		path := filepath.Join(outDir, fmt.Sprintf("frame_%03d.%s", i, format))
		if err := writeImage(path, frame, format); err != nil {
			return err
		}
	}
	c.print().success("Wrote %d frames", len(frames))
	c.print().file(outDir)
	return nil
}
