package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps"
)

type pointsOptions struct {
	landmarks landmarkFlags
	percent   float64
	inverse   bool
	size      [2]int
}

func (c *CLI) pointsCommand() *cobra.Command {
	var opts pointsOptions
	cmd := &cobra.Command{
		Use:   "points [x,y ...]",
		Short: "Transform points",
		Long: `Transform points given as arguments, or read one "x,y" or "x y" pair per line
from standard input. Each mapped point is printed as "x,y".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) > 0 {
				in = strings.NewReader(strings.Join(args, "\n"))
			}
			return c.runPoints(cmd.Context(), in, cmd.OutOrStdout(), opts)
		},
	}
	opts.landmarks.register(cmd)
	cmd.Flags().Float64VarP(&opts.percent, "percent", "p", 1, "warp strength")
	cmd.Flags().BoolVar(&opts.inverse, "inverse", false, "map destination points back to the source")
	cmd.Flags().IntVar(&opts.size[0], "width", 0, "image width for --corners")
	cmd.Flags().IntVar(&opts.size[1], "height", 0, "image height for --corners")
	return cmd
}

func parsePoint(line string) (warptps.Point, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return warptps.Point{}, fmt.Errorf("point %q: want x,y", line)
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return warptps.Point{}, fmt.Errorf("point %q: %w", line, err)
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return warptps.Point{}, fmt.Errorf("point %q: %w", line, err)
	}
	return warptps.Pt(x, y), nil
}

func (c *CLI) runPoints(ctx context.Context, in io.Reader, out io.Writer, opts pointsOptions) error {
	t, err := c.transform(ctx, opts.landmarks, opts.size[0], opts.size[1])
	if err != nil {
		return err
	}
	if opts.inverse {
		t = t.Inverse()
	}

	var pts []warptps.Point
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := parsePoint(line)
		if err != nil {
			return err
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	mapped, err := t.TransformPoints(pts, opts.percent)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for _, p := range mapped {
		fmt.Fprintf(w, "%s,%s\n", strconv.FormatFloat(p.X(), 'g', -1, 64), strconv.FormatFloat(p.Y(), 'g', -1, 64))
	}
	return w.Flush()
}
