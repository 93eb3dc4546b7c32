package landmarks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/yyyoichi/warptps"
)

var (
	ErrFormat   = errors.New("landmarks: malformed data")
	ErrNotFound = errors.New("landmarks: set not found")
)

var csvHeader = []string{"LandmarkIndex", "SourceX", "SourceY", "DestX", "DestY"}

// WriteCSV writes one row per landmark after a header row.
func WriteCSV(w io.Writer, ls []warptps.Landmark) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, l := range ls {
		if err := cw.Write([]string{
			strconv.Itoa(i),
			formatFloat(l.Source.X()),
			formatFloat(l.Source.Y()),
			formatFloat(l.Destination.X()),
			formatFloat(l.Destination.Y()),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// ReadCSV reads landmarks written by WriteCSV. Rows are placed by their
// LandmarkIndex, which must cover 0..n-1 exactly once.
func ReadCSV(r io.Reader) ([]warptps.Landmark, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	for i, h := range csvHeader {
		if header[i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrFormat, i, header[i], h)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	ls := make([]warptps.Landmark, len(rows))
	seen := make([]bool, len(rows))
	for line, row := range rows {
		idx, err := strconv.Atoi(row[0])
		if err != nil || idx < 0 || idx >= len(rows) || seen[idx] {
			return nil, fmt.Errorf("%w: row %d has index %q", ErrFormat, line+2, row[0])
		}
		var v [4]float64
		for j := range v {
			v[j], err = strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %w", ErrFormat, line+2, csvHeader[j+1], err)
			}
		}
		seen[idx] = true
		ls[idx] = warptps.Landmark{
			Source:      warptps.Pt(v[0], v[1]),
			Destination: warptps.Pt(v[2], v[3]),
		}
	}
	return ls, nil
}
