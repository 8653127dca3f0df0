package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WriteBytes renders wb as an .xlsx document. Header rows are bold and frozen.
func WriteBytes(wb *Workbook) ([]byte, error) {
	f, err := build(wb)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders wb to path.
func WriteFile(wb *Workbook, path string) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}

func build(wb *Workbook) (*excelize.File, error) {
	f := excelize.NewFile()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("could not create header style: %w", err)
	}

	for i, sheet := range wb.Sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not create sheet %q: %w", name, err)
		}

		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("invalid cell coordinates: %w", err)
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not write row %d of %q: %w", r+1, name, err)
			}
		}

		if header := sheet.Header(); len(header) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(header), 1)
			if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not style header of %q: %w", name, err)
			}
			if err := f.SetPanes(name, &excelize.Panes{
				Freeze:      true,
				YSplit:      1,
				TopLeftCell: "A2",
				ActivePane:  "bottomLeft",
			}); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not freeze header of %q: %w", name, err)
			}
		}
	}
	return f, nil
}
