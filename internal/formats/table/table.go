// Package table is the tabular value exchanged between data sources, report
// builders and result sinks, with its CSV, XLSX and JSON encodings.
package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/klytics/licensekit/internal/formats/xlsx"
)

// Format is a serialization of a Table.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// ParseFormat accepts csv, xlsx or json (case-insensitive, optional dot).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported table format %q (supported: csv, xlsx, json)", s)
	}
}

// Table is a named header plus rows of string cells.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// Append adds a row. It panics if the arity does not match the header,
// which is always a programming error in a report builder.
func (t *Table) Append(values ...string) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table %s: row has %d values, header has %d", t.Name, len(values), len(t.Columns)))
	}
	t.Rows = append(t.Rows, values)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Records returns each row as a column→value map. Short rows yield "" for
// the missing trailing cells.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// Encode serializes t in format f.
func Encode(t *Table, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, t); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatXLSX:
		rows := make([][]string, 0, len(t.Rows)+1)
		rows = append(rows, t.Columns)
		rows = append(rows, t.Rows...)
		return xlsx.WriteBytes(&xlsx.Workbook{Sheets: []xlsx.Sheet{{Name: sheetName(t.Name), Rows: rows}}})
	case FormatJSON:
		return json.MarshalIndent(t.Records(), "", "  ")
	default:
		return nil, fmt.Errorf("unsupported table format %q", f)
	}
}

// WriteCSV writes the header and rows of t to w.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("could not write CSV header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("could not write CSV rows: %w", err)
	}
	return nil
}

// Decode parses data in format f into a table called name.
func Decode(name string, data []byte, f Format) (*Table, error) {
	switch f {
	case FormatCSV:
		return decodeCSV(name, data)
	case FormatXLSX:
		return decodeXLSX(name, data)
	case FormatJSON:
		return decodeJSON(name, data)
	default:
		return nil, fmt.Errorf("unsupported table format %q", f)
	}
}

// ReadFile loads a table from a .csv, .xlsx or .json file; the table is
// named after the file without its extension.
func ReadFile(path string) (*Table, error) {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := Decode(name, data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func decodeCSV(name string, data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse CSV: %w", err)
	}
	t := &Table{Name: name}
	if len(records) == 0 {
		return t, nil
	}
	t.Columns = trimHeader(records[0])
	t.Rows = records[1:]
	return t, nil
}

func decodeXLSX(name string, data []byte) (*Table, error) {
	wb, err := xlsx.ReadBytes(data)
	if err != nil {
		return nil, err
	}
	sheet, err := wb.First()
	if err != nil {
		return nil, err
	}
	return &Table{Name: name, Columns: trimHeader(sheet.Header()), Rows: sheet.Body()}, nil
}

func decodeJSON(name string, data []byte) (*Table, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("could not parse JSON: expected an array of objects: %w", err)
	}

	t := &Table{Name: name}
	index := make(map[string]int)
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(t.Columns)
				t.Columns = append(t.Columns, k)
			}
		}
	}
	for _, rec := range records {
		row := make([]string, len(t.Columns))
		for k, v := range rec {
			row[index[k]] = jsonCell(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func jsonCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func trimHeader(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		out[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	return out
}

// sheetName clamps a table name to Excel's 31-character sheet name limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
