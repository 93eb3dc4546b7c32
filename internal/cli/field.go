package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/fieldcache"
)

type fieldOptions struct {
	landmarks landmarkFlags
	image     string
	width     int
	height    int
	percent   float64
	cells     int
	raw       string
}

func (c *CLI) fieldCommand() *cobra.Command {
	var opts fieldOptions
	cmd := &cobra.Command{
		Use:   "field <output.html>",
		Short: "Render the displacement field as a heatmap",
		Long: `Render how far each pixel moves as an HTML heatmap. The size is taken from
--image or from --width and --height. With --raw the presampled field is
also written in the binary format of the field cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runField(cmd.Context(), args[0], opts)
		},
	}
	opts.landmarks.register(cmd)
	cmd.Flags().StringVar(&opts.image, "image", "", "image whose size is used")
	cmd.Flags().IntVar(&opts.width, "width", 0, "field width")
	cmd.Flags().IntVar(&opts.height, "height", 0, "field height")
	cmd.Flags().Float64VarP(&opts.percent, "percent", "p", 1, "warp strength")
	cmd.Flags().IntVar(&opts.cells, "cells", 48, "maximum heatmap cells per axis")
	cmd.Flags().StringVar(&opts.raw, "raw", "", "also write the encoded field to this file")
	return cmd
}

func (c *CLI) runField(ctx context.Context, output string, opts fieldOptions) error {
	w, h := opts.width, opts.height
	if opts.image != "" {
		img, err := c.fetcher().Open(ctx, opts.image)
		if err != nil {
			return fmt.Errorf("open %s: %w", opts.image, err)
		}
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("field size %dx%d: set --image or --width and --height", w, h)
	}
	t, err := c.transform(ctx, opts.landmarks, w, h)
	if err != nil {
		return err
	}
	prog := newProgress(loggerFromContext(ctx))
	f, err := t.Field(w, h)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Presampled %dx%d field", w, h))

	if opts.raw != "" {
		data, err := fieldcache.EncodeField(f)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.raw, data, 0o644); err != nil {
			return err
		}
		c.print().file(opts.raw)
	}

	heatmap := fieldHeatMap(f, opts.percent, opts.cells)
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := heatmap.Render(out); err != nil {
		return err
	}
	c.print().success("Rendered displacement of %d landmarks", t.LandmarkCount())
	c.print().file(output)
	return nil
}

// fieldHeatMap averages the displacement length over blocks so that at
// most cells blocks span each axis. Row 0 is the bottom of the image.
func fieldHeatMap(f *warptps.Field, percent float64, cells int) *charts.HeatMap {
	step := max(1, (max(f.Width, f.Height)+cells-1)/max(cells, 1))
	nx, ny := (f.Width+step-1)/step, (f.Height+step-1)/step

	var xLabels, yLabels []string
	for i := range nx {
		xLabels = append(xLabels, strconv.Itoa(i*step))
	}
	for j := range ny {
		yLabels = append(yLabels, strconv.Itoa(j*step))
	}

	var (
		data []opts.HeatMapData
		peak float64
	)
	for j := range ny {
		for i := range nx {
			var sum float64
			var n int
			for y := j * step; y < min((j+1)*step, f.Height); y++ {
				for x := i * step; x < min((i+1)*step, f.Width); x++ {
					dx, dy := f.At(x, y)
					sum += math.Hypot(dx, dy) * math.Abs(percent)
					n++
				}
			}
			v := sum / float64(n)
			peak = max(peak, v)
			data = append(data, opts.HeatMapData{Value: [3]any{i, j, math.Round(v*100) / 100}})
		}
	}

	heatmap := charts.NewHeatMap()
	heatmap.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Displacement",
			Subtitle: fmt.Sprintf("%dx%d pixels, %dpx blocks, percent %.2f", f.Width, f.Height, step, percent),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "x",
			Type:      "category",
			Data:      xLabels,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "y",
			Type:      "category",
			Data:      yLabels,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(math.Max(peak, 1)),
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#74add1", "#fee090", "#f46d43", "#a50026"}},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	heatmap.AddSeries("pixels moved", data)
	return heatmap
}
