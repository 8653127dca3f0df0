// Package xlsx reads and writes .xlsx workbooks for report export and
// spreadsheet-based data sources.
package xlsx

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet. The first row is the header row.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Workbook is an ordered set of sheets.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// ReadFile reads an .xlsx file from disk.
func ReadFile(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s (check that the path is correct)", path)
		}
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	wb, err := ReadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wb, nil
}

// ReadBytes parses an .xlsx document held in memory.
func ReadBytes(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not read Excel data: %w", err)
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("could not read sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// GetSheet returns the sheet called name.
func (wb *Workbook) GetSheet(name string) (*Sheet, error) {
	for i := range wb.Sheets {
		if wb.Sheets[i].Name == name {
			return &wb.Sheets[i], nil
		}
	}

	available := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		available[i] = s.Name
	}
	return nil, fmt.Errorf("sheet %q not found (available sheets: %v)", name, available)
}

// First returns the first sheet, or an error for an empty workbook.
func (wb *Workbook) First() (*Sheet, error) {
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return &wb.Sheets[0], nil
}

// Header returns the first row, or nil for an empty sheet.
func (s *Sheet) Header() []string {
	if len(s.Rows) == 0 {
		return nil
	}
	return s.Rows[0]
}

// Body returns every row after the header, skipping rows with no data.
// excelize trims trailing empty cells, so rows may be shorter than the header.
func (s *Sheet) Body() [][]string {
	if len(s.Rows) < 2 {
		return nil
	}
	var out [][]string
	for _, row := range s.Rows[1:] {
		for _, cell := range row {
			if cell != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
