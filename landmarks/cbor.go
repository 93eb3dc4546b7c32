package landmarks

import (
	"fmt"

	cbor "github.com/brianolson/cbor_go"
	"github.com/yyyoichi/warptps"
)

const (
	formatVersion = 1
	// source xyz followed by destination xyz
	pointsPerLandmark = 6
)

type record struct {
	Version int       `cbor:"v"`
	Count   int       `cbor:"n"`
	Points  []float64 `cbor:"p"`
}

// Marshal encodes landmarks as a count-prefixed CBOR record.
func Marshal(ls []warptps.Landmark) ([]byte, error) {
	rec := record{
		Version: formatVersion,
		Count:   len(ls),
		Points:  make([]float64, 0, len(ls)*pointsPerLandmark),
	}
	for _, l := range ls {
		s, d := l.Source.Array(), l.Destination.Array()
		rec.Points = append(rec.Points, s[0], s[1], s[2], d[0], d[1], d[2])
	}
	return cbor.Dumps(rec)
}

// Unmarshal decodes a record written by Marshal.
func Unmarshal(data []byte) ([]warptps.Landmark, error) {
	var rec record
	if err := cbor.Loads(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if rec.Version != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, rec.Version)
	}
	if rec.Count < 0 || len(rec.Points) != rec.Count*pointsPerLandmark {
		return nil, fmt.Errorf("%w: %d values for %d landmarks", ErrFormat, len(rec.Points), rec.Count)
	}
	ls := make([]warptps.Landmark, rec.Count)
	for i := range ls {
		p := rec.Points[i*pointsPerLandmark:]
		ls[i] = warptps.Landmark{
			Source:      warptps.Pt3(p[0], p[1], p[2]),
			Destination: warptps.Pt3(p[3], p[4], p[5]),
		}
	}
	return ls, nil
}
