package xlsx

import (
	"path/filepath"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	original := &Workbook{
		Sheets: []Sheet{
			{
				Name: "users",
				Rows: [][]string{
					{"USER_NAME", "ANALYST_PCT"},
					{"alice", "75"},
					{"bob", "0"},
				},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteFile(original, path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wb, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	sheet, err := wb.First()
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Name != "users" {
		t.Errorf("expected sheet name 'users', got %q", sheet.Name)
	}
	if len(sheet.Body()) != 2 {
		t.Fatalf("expected 2 body rows, got %d", len(sheet.Body()))
	}
	if sheet.Body()[0][0] != "alice" {
		t.Errorf("expected 'alice', got %q", sheet.Body()[0][0])
	}
}

func TestWriteBytesRoundTrip(t *testing.T) {
	data, err := WriteBytes(&Workbook{Sheets: []Sheet{{Rows: [][]string{{"a", "b"}, {"1", "2"}}}}})
	if err != nil {
		t.Fatal(err)
	}
	wb, err := ReadBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if wb.Sheets[0].Name != "Sheet1" {
		t.Errorf("unnamed sheet should default to Sheet1, got %q", wb.Sheets[0].Name)
	}
	if got := wb.Sheets[0].Header(); len(got) != 2 || got[1] != "b" {
		t.Errorf("unexpected header %v", got)
	}
}

func TestGetSheet(t *testing.T) {
	wb := &Workbook{Sheets: []Sheet{{Name: "One"}, {Name: "Two"}}}

	s, err := wb.GetSheet("Two")
	if err != nil {
		t.Fatalf("GetSheet failed: %v", err)
	}
	if s.Name != "Two" {
		t.Errorf("expected 'Two', got %q", s.Name)
	}
	if _, err := wb.GetSheet("Missing"); err == nil {
		t.Error("expected error for missing sheet")
	}
}

func TestBodySkipsEmptyRows(t *testing.T) {
	sheet := Sheet{Rows: [][]string{{"A", "B"}, {"C", "D"}, {"", ""}, {}}}
	if n := len(sheet.Body()); n != 1 {
		t.Errorf("expected 1 non-empty body row, got %d", n)
	}
}

func TestFirstOnEmptyWorkbook(t *testing.T) {
	if _, err := (&Workbook{}).First(); err == nil {
		t.Error("expected error for empty workbook")
	}
}

func TestReadFileNotFound(t *testing.T) {
	if _, err := ReadFile("/nonexistent/file.xlsx"); err == nil {
		t.Error("expected error for missing file")
	}
}
