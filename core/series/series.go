// Package series loads named power time series and resamples them to the
// simulation step.
package series

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnknownColumn is returned when a requested series is absent.
var ErrUnknownColumn = errors.New("series: unknown column")

// Set maps a series name to its values. All series of a set have the same
// length.
type Set map[string][]float64

// Column returns the named series.
func (s Set) Column(name string) ([]float64, error) {
	v, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownColumn, name)
	}
	return v, nil
}

// Len returns the common length of the series, 0 for an empty set.
func (s Set) Len() int {
	for _, v := range s {
		return len(v)
	}
	return 0
}

func (s Set) check() error {
	n := -1
	for name, v := range s {
		if n < 0 {
			n = len(v)
			continue
		}
		if len(v) != n {
			return fmt.Errorf("series: column %q has %d values, expected %d", name, len(v), n)
		}
	}
	return nil
}

// LoadCSV reads a CSV table with a header row. When columns are given only
// those are kept and each must be present.
func LoadCSV(r io.Reader, columns ...string) (Set, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("series: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	if len(columns) == 0 {
		for _, h := range header {
			columns = append(columns, strings.TrimSpace(h))
		}
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownColumn, c)
		}
	}

	out := make(Set, len(columns))
	for _, c := range columns {
		out[c] = []float64{}
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("series: %w", err)
		}
		for _, c := range columns {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[index[c]]), 64)
			if err != nil {
				return nil, fmt.Errorf("series: line %d column %q: %w", line, c, err)
			}
			out[c] = append(out[c], f)
		}
	}
	return out, nil
}

// LoadJSON reads an object whose members are arrays of numbers.
func LoadJSON(r io.Reader) (Set, error) {
	var out Set
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("series: decode: %w", err)
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	return out, nil
}

// Open loads path with the decoder matching its extension.
func Open(path string, columns ...string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("series: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f, columns...)
	case ".json":
		s, err := LoadJSON(f)
		if err != nil {
			return nil, err
		}
		for _, c := range columns {
			if _, err := s.Column(c); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
	return nil, fmt.Errorf("series: unsupported file type %q", filepath.Ext(path))
}

// Repeat holds every value for n steps.
func Repeat(values []float64, n int) []float64 {
	if n <= 1 {
		return append([]float64(nil), values...)
	}
	out := make([]float64, 0, len(values)*n)
	for _, v := range values {
		for range n {
			out = append(out, v)
		}
	}
	return out
}

// Spread distributes every value evenly over n steps so that sums are
// preserved.
func Spread(values []float64, n int) []float64 {
	out := Repeat(values, n)
	if n > 1 {
		for i := range out {
			out[i] /= float64(n)
		}
	}
	return out
}
