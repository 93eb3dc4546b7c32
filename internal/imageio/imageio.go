// Package imageio decodes and encodes the image formats accepted by the
// warptps command and HTTP API, and fetches remote inputs through a disk
// HTTP cache.
package imageio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spakin/netpbm"
	"github.com/yyyoichi/httpcache-go"
	"golang.org/x/image/bmp"
)

var ErrUnknownFormat = errors.New("unknown image format")

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	BMP  Format = "bmp"
	PNM  Format = "pnm"
)

// ParseFormat accepts a format name or common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "bmp", "dib":
		return BMP, nil
	case "pnm", "ppm", "pgm", "pbm", "pam":
		return PNM, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatOf derives the format from a file name, falling back to PNG.
func FormatOf(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return PNG
	}
	return f
}

func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case BMP:
		return "image/bmp"
	case PNM:
		return "image/x-portable-anymap"
	}
	return "image/png"
}

// Decode reads any registered format: PNG, JPEG, BMP and the netpbm family.
func Decode(r io.Reader) (image.Image, string, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, name, nil
}

func Encode(w io.Writer, img image.Image, f Format) error {
	var err error
	switch f {
	case PNG:
		err = png.Encode(w, img)
	case JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case BMP:
		err = bmp.Encode(w, img)
	case PNM:
		err = netpbm.Encode(w, img, &netpbm.EncodeOptions{Format: netpbm.PPM, MaxValue: 255})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f, err)
	}
	return nil
}

// Doer sends HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher opens local paths and http(s) URLs. Remote responses are kept in
// a storage cache directory.
type Fetcher struct {
	client httpcache.Client
}

func NewFetcher(cacheDir string, doer Doer) *Fetcher {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Fetcher{client: httpcache.Client{
		Client:  doer,
		Cache:   httpcache.NewStorageCache(cacheDir),
		Handler: httpcache.NewDefaultHandler(),
	}}
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Open decodes the image at src, a file path or URL.
func (f *Fetcher) Open(ctx context.Context, src string) (image.Image, error) {
	if !IsURL(src) {
		file, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		img, _, err := Decode(file)
		return img, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}
	img, _, err := Decode(resp.Body)
	return img, err
}
