package fieldcache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	cbor "github.com/brianolson/cbor_go"
	"github.com/yyyoichi/warptps"
)

var ErrCorrupt = errors.New("fieldcache: corrupt field")

type fieldRecord struct {
	Width  int       `cbor:"w"`
	Height int       `cbor:"h"`
	DX     []float64 `cbor:"x"`
	DY     []float64 `cbor:"y"`
}

func EncodeField(f *warptps.Field) ([]byte, error) {
	return cbor.Dumps(fieldRecord{Width: f.Width, Height: f.Height, DX: f.DX, DY: f.DY})
}

func DecodeField(data []byte) (*warptps.Field, error) {
	var rec fieldRecord
	if err := cbor.Loads(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	n := rec.Width * rec.Height
	if rec.Width < 0 || rec.Height < 0 || len(rec.DX) != n || len(rec.DY) != n {
		return nil, fmt.Errorf("%w: %dx%d with %d/%d offsets", ErrCorrupt, rec.Width, rec.Height, len(rec.DX), len(rec.DY))
	}
	if n == 0 {
		rec.DX, rec.DY = []float64{}, []float64{}
	}
	return &warptps.Field{Width: rec.Width, Height: rec.Height, DX: rec.DX, DY: rec.DY}, nil
}

// Key identifies the field of a transform for one image size. Transforms
// with equal landmarks, kernel and solver share a key.
func Key(t *warptps.Transform, width, height int) string {
	exp, k := t.Kernel()
	ls := t.Landmarks()
	// floats are hashed by bit pattern so NaN and infinities stay distinct
	words := make([]uint64, 0, 6+len(ls)*6)
	words = append(words, uint64(len(ls)))
	for _, l := range ls {
		s, d := l.Source.Array(), l.Destination.Array()
		for _, x := range [6]float64{s[0], s[1], s[2], d[0], d[1], d[2]} {
			words = append(words, math.Float64bits(x))
		}
	}
	words = append(words,
		math.Float64bits(exp), math.Float64bits(k),
		uint64(t.Solver()), uint64(width), uint64(height))
	return hashKey("field", words...)
}

// Fields fetches presampled fields through a Cache.
type Fields struct {
	Cache Cache
	TTL   time.Duration
}

// Get returns the field of t for a width x height image, computing and
// storing it on a miss. Lookup failures fall back to computing the field;
// a failed store returns the computed field together with the error. The
// second result reports a cache hit.
func (fs *Fields) Get(ctx context.Context, t *warptps.Transform, width, height int) (*warptps.Field, bool, error) {
	key := Key(t, width, height)
	if data, ok, err := fs.Cache.Get(ctx, key); err == nil && ok {
		if f, err := DecodeField(data); err == nil && f.Fits(width, height) == nil {
			return f, true, nil
		}
	}
	f, err := t.Field(width, height)
	if err != nil {
		return nil, false, err
	}
	data, err := EncodeField(f)
	if err != nil {
		return nil, false, err
	}
	if err := fs.Cache.Set(ctx, key, data, fs.TTL); err != nil {
		return f, false, fmt.Errorf("failed to store field: %w", err)
	}
	return f, false, nil
}
