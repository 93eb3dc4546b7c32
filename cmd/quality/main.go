// Command quality measures how well warps survive a forward and inverse
// round trip over a list of real images.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/imageio"
	"golang.org/x/image/draw"
)

// rateLimitedClient spaces requests by at least interval.
type rateLimitedClient struct {
	client   *http.Client
	interval time.Duration
	lastCall time.Time
	mu       sync.Mutex
	logger   *log.Logger
}

func newRateLimitedClient(interval time.Duration, logger *log.Logger) *rateLimitedClient {
	return &rateLimitedClient{
		client:   http.DefaultClient,
		interval: interval,
		logger:   logger,
	}
}

func (r *rateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elapsed := time.Since(r.lastCall); elapsed < r.interval {
		time.Sleep(r.interval - elapsed)
	}
	r.logger.Debug("fetching", "url", req.URL.String())
	resp, err := r.client.Do(req)
	r.lastCall = time.Now()
	return resp, err
}

type params struct {
	Width, Height int
	Solver        warptps.Solver
	Landmarks     int
	Jitter        float64
}

type result struct {
	// Residual is the largest distance between a mapped source landmark
	// and its destination.
	Residual float64
	PSNR     float64
	Elapsed  time.Duration
}

func main() {
	var (
		urlFile   = flag.String("urls", "", "file with one image URL or path per line")
		numImages = flag.Int("n", 10, "number of images to test")
		count     = flag.Int("landmarks", 8, "interior landmarks per warp")
		jitter    = flag.Float64("jitter", 0.03, "landmark displacement as a fraction of the shorter side")
		minPSNR   = flag.Float64("min-psnr", 20, "round trip PSNR in dB counted as a pass")
		seed      = flag.Uint64("seed", 1, "landmark seed")
		cacheDir  = flag.String("cache", filepath.Join(os.TempDir(), "warptps_http_cache"), "HTTP cache directory")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.TimeOnly})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if *urlFile == "" {
		logger.Fatal("-urls is required")
	}
	data, err := os.ReadFile(*urlFile)
	if err != nil {
		logger.Fatal("failed to read url list", "err", err)
	}
	urls := parseURLs(string(data))
	if len(urls) == 0 {
		logger.Fatal("no image URLs found", "file", *urlFile)
	}
	if *numImages > 0 && *numImages < len(urls) {
		urls = urls[:*numImages]
	}

	ctx := context.Background()
	fetcher := imageio.NewFetcher(*cacheDir, newRateLimitedClient(250*time.Millisecond, logger))

	imageSizes := [][]int{
		{1920, 1080}, // FHD
		{1280, 720},  // HD
		{854, 480},   // 480p
		{640, 360},   // 360p
	}
	solvers := []warptps.Solver{warptps.SolverPartialPivot, warptps.SolverFullPivot, warptps.SolverPseudoinverse}

	logger.Info("starting quality evaluation", "images", len(urls), "cases", len(urls)*len(imageSizes)*len(solvers))
	rng := rand.New(rand.NewPCG(*seed, *seed))
	passed, total := 0, 0
	for i, u := range urls {
		logger.Info(fmt.Sprintf("[%d/%d] %s", i+1, len(urls), u))
		src, err := fetcher.Open(ctx, u)
		if err != nil {
			logger.Error("failed to open image", "err", err)
			continue
		}
		for _, size := range imageSizes {
			img := fit(src, size[0], size[1])
			ls := randomLandmarks(rng, size[0], size[1], *count, *jitter)
			for _, s := range solvers {
				p := params{Width: size[0], Height: size[1], Solver: s, Landmarks: len(ls), Jitter: *jitter}
				total++
				r, err := roundTrip(ctx, img, ls, p)
				if err != nil {
					logger.Error("[FAIL]", "size", fmt.Sprintf("%dx%d", p.Width, p.Height), "solver", p.Solver, "err", err)
					continue
				}
				ok := r.PSNR >= *minPSNR && r.Residual < 1e-6
				kv := []any{
					"size", fmt.Sprintf("%dx%d", p.Width, p.Height),
					"solver", p.Solver,
					"landmarks", p.Landmarks,
					"psnr", fmt.Sprintf("%.2fdB", r.PSNR),
					"residual", r.Residual,
					"time", r.Elapsed.Round(time.Millisecond),
				}
				if ok {
					passed++
					logger.Info("[OK]", kv...)
				} else {
					logger.Warn("[FAIL]", kv...)
				}
			}
		}
	}

	if total == 0 {
		logger.Fatal("no test cases ran")
	}
	logger.Info("results",
		"total", total,
		"passed", fmt.Sprintf("%d (%.2f%%)", passed, float64(passed)/float64(total)*100),
		"failed", fmt.Sprintf("%d (%.2f%%)", total-passed, float64(total-passed)/float64(total)*100))
}

func parseURLs(data string) []string {
	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls
}

// fit crops src to the aspect ratio of w x h around its center and scales
// it to that size.
func fit(src image.Image, w, h int) *image.NRGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rect := bounds
	srcRatio := float64(width) / float64(height)
	targetRatio := float64(w) / float64(h)
	if srcRatio > targetRatio {
		nw := int(float64(height) * targetRatio)
		x := bounds.Min.X + (width-nw)/2
		rect = image.Rect(x, bounds.Min.Y, x+nw, bounds.Max.Y)
	} else if srcRatio < targetRatio {
		nh := int(float64(width) / targetRatio)
		y := bounds.Min.Y + (height-nh)/2
		rect = image.Rect(bounds.Min.X, y, bounds.Max.X, y+nh)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, rect, draw.Src, nil)
	return dst
}

// randomLandmarks pins the corners and adds n interior landmarks moved by
// up to jitter times the shorter side.
func randomLandmarks(rng *rand.Rand, w, h, n int, jitter float64) []warptps.Landmark {
	ls := warptps.CornerLandmarks(w-1, h-1, w-1, h-1)
	amp := jitter * float64(min(w, h))
	for range n {
		x := float64(w) * (0.15 + 0.7*rng.Float64())
		y := float64(h) * (0.15 + 0.7*rng.Float64())
		dx := (rng.Float64()*2 - 1) * amp
		dy := (rng.Float64()*2 - 1) * amp
		ls = append(ls, warptps.Landmark{Source: warptps.Pt(x, y), Destination: warptps.Pt(x+dx, y+dy)})
	}
	return ls
}

// roundTrip warps img forward, warps the result back with the inverse
// transform and compares it to img.
func roundTrip(ctx context.Context, img *image.NRGBA, ls []warptps.Landmark, p params) (result, error) {
	start := time.Now()
	t, err := warptps.New(warptps.WithSolver(p.Solver), warptps.WithLandmarks(ls))
	if err != nil {
		return result{}, err
	}
	if err := t.Solve(); err != nil {
		return result{}, err
	}

	var r result
	for _, l := range ls {
		q, err := t.Map(l.Source, 1)
		if err != nil {
			return result{}, err
		}
		r.Residual = max(r.Residual, q.Sub(l.Destination).Len())
	}

	warped, err := t.WarpImage(ctx, img, 1, true)
	if err != nil {
		return result{}, err
	}
	back, err := t.Inverse().WarpImage(ctx, warped, 1, true)
	if err != nil {
		return result{}, err
	}
	r.PSNR = psnr(img, back)
	r.Elapsed = time.Since(start)
	return r, nil
}

// psnr compares the color channels of two images of the same size.
func psnr(a, b *image.NRGBA) float64 {
	var sum float64
	var n int
	for i := 0; i < len(a.Pix); i += 4 {
		for c := range 3 {
			d := float64(a.Pix[i+c]) - float64(b.Pix[i+c])
			sum += d * d
			n++
		}
	}
	if sum == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/(sum/float64(n)))
}
