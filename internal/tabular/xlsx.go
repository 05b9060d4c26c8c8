package tabular

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Workbook is a Source backed by an .xlsx file. Sheets are read once and
// cached.
type Workbook struct {
	path string
	file *excelize.File

	mu    sync.Mutex
	cache map[string]*Sheet
}

func OpenXLSX(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{path: path, file: f, cache: map[string]*Sheet{}}, nil
}

// SheetNames lists the workbook's sheets in tab order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *Workbook) Sheet(name string) (*Sheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.cache[name]; ok {
		return s, nil
	}
	idx, err := w.file.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, name, w.path)
	}

	raw, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	rows := make([][]Cell, len(raw))
	for r, values := range raw {
		cells := make([]Cell, len(values))
		for c, v := range values {
			if v == "" {
				continue
			}
			cell, err := w.cell(name, c+1, r+1, v)
			if err != nil {
				return nil, err
			}
			cells[c] = cell
		}
		rows[r] = cells
	}
	s := &Sheet{Name: name, Rows: rows}
	w.cache[name] = s
	return s, nil
}

// cell types a raw value using the stored cell type.
func (w *Workbook) cell(sheet string, col, row int, raw string) (Cell, error) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := w.file.GetCellType(sheet, axis)
	if err != nil {
		return nil, fmt.Errorf("cell %s!%s: %w", sheet, axis, err)
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE" || raw == "true", nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return raw, nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		runs, err := w.file.GetCellRichText(sheet, axis)
		if err != nil || len(runs) == 0 {
			return raw, nil
		}
		out := make(RichRuns, 0, len(runs))
		for _, r := range runs {
			out = append(out, Run{Text: r.Text})
		}
		return out, nil
	default:
		return raw, nil
	}
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// LookupFile opens path, resolves one key and closes the workbook.
func LookupFile(path, sheet, key string) (string, error) {
	wb, err := OpenXLSX(path)
	if err != nil {
		return "", err
	}
	defer wb.Close()
	return Lookup(wb, sheet, key)
}
