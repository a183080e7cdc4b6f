package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteWorkbook(&buf,
		Sheet{
			Name:   "Daily",
			Header: []string{"Date", "Registrations", "New"},
			Rows: [][]interface{}{
				{"2024-01-01", 3, 2},
				{"2024-01-02", 0, 0},
			},
		},
		Sheet{
			Name:   "Breakdown",
			Header: []string{"Code", "Name", "Count"},
			Rows:   [][]interface{}{{"HIFU", "HIFU Face", 4}},
		},
	)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != "Daily" || got[1] != "Breakdown" {
		t.Fatalf("unexpected sheets %v", got)
	}

	rows, err := f.GetRows("Daily")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Registrations" || rows[1][0] != "2024-01-01" || rows[1][1] != "3" {
		t.Errorf("unexpected rows %v", rows)
	}

	v, err := f.GetCellValue("Breakdown", "B2")
	if err != nil || v != "HIFU Face" {
		t.Errorf("expected HIFU Face, got %q (%v)", v, err)
	}
}

func TestWriteWorkbook_NoSheets(t *testing.T) {
	if err := WriteWorkbook(&bytes.Buffer{}); err == nil {
		t.Fatal("expected error for empty workbook")
	}
}

func TestSheetName(t *testing.T) {
	if got := sheetName("a/b:c", 0); got != "a b c" {
		t.Errorf("unexpected name %q", got)
	}
	if got := sheetName("", 2); got != "Sheet3" {
		t.Errorf("unexpected name %q", got)
	}
	if got := sheetName(strings.Repeat("x", 40), 0); len(got) != maxSheetName {
		t.Errorf("expected truncation to %d, got %d", maxSheetName, len(got))
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("daily-closing", "2024-01-01", "2024-01-31"); got != "daily-closing_2024-01-01_2024-01-31.xlsx" {
		t.Errorf("unexpected filename %q", got)
	}
}
