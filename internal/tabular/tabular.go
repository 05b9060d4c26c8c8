// Package tabular reads key/value style test data out of spreadsheets: a
// key cell is found anywhere in a sheet and the cell to its right is the
// value.
package tabular

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrSheetNotFound = errors.New("sheet not found")
)

// Cell is nil, string, float64, int, bool, time.Time, RichText or RichRuns.
type Cell any

// RichText is a cell whose value carries a plain text rendering.
type RichText struct {
	Text string
}

// Run is one formatted fragment of a rich text cell.
type Run struct {
	Text string
}

// RichRuns is a rich text cell split into formatted runs.
type RichRuns []Run

func (r RichRuns) String() string {
	var b strings.Builder
	for _, run := range r {
		b.WriteString(run.Text)
	}
	return b.String()
}

// Sheet is a named grid of cells. Rows may be ragged.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Source yields sheets by name.
type Source interface {
	Sheet(name string) (*Sheet, error)
}

// Memory is an in-memory Source keyed by sheet name.
type Memory map[string][][]Cell

func (m Memory) Sheet(name string) (*Sheet, error) {
	rows, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return &Sheet{Name: name, Rows: rows}, nil
}

// Normalize renders a cell as text. Nil is "".
func Normalize(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case RichText:
		return v.Text
	case *RichText:
		if v == nil {
			return ""
		}
		return v.Text
	case RichRuns:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Lookup scans sheet row by row for the first cell whose trimmed text equals
// key and returns the normalized cell to its right, "" when that cell is
// empty or missing.
func Lookup(src Source, sheet, key string) (string, error) {
	s, err := src.Sheet(sheet)
	if err != nil {
		return "", err
	}
	return s.Lookup(key)
}

func (s *Sheet) Lookup(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrKeyNotFound)
	}
	for _, row := range s.Rows {
		for i, c := range row {
			if c == nil || strings.TrimSpace(Normalize(c)) != key {
				continue
			}
			if i+1 >= len(row) {
				return "", nil
			}
			return Normalize(row[i+1]), nil
		}
	}
	return "", fmt.Errorf("%w: %q in sheet %q", ErrKeyNotFound, key, s.Name)
}

// LookupAll resolves several keys from one sheet.
func LookupAll(src Source, sheet string, keys ...string) (map[string]string, error) {
	s, err := src.Sheet(sheet)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	var errs []error
	for _, k := range keys {
		v, err := s.Lookup(k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[k] = v
	}
	return out, errors.Join(errs...)
}
