package extractor

import (
	"bytes"
	"reflect"
	"testing"

	apperrors "pharmacy-invoice-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into a sheet starting at A1 and returns an
// opened Workbook backed by the serialized bytes.
func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) *Workbook {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("failed to create sheet: %v", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("bad coordinates: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("failed to set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}

	wb, err := OpenWorkbook(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenWorkbook() error = %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}

func TestExtract_BasicSheet(t *testing.T) {
	wb := buildWorkbook(t, "Invoice Detail", [][]interface{}{
		{"Patient Name", "SSN", "Billed Amount"},
		{"John,Doe", "123456789", "125.50"},
		{"Jane,Roe", "987654321", "42.00"},
	})

	sheet, err := wb.Extract(Settings{SheetName: "Invoice Detail"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	wantHeader := []string{"Patient Name", "SSN", "Billed Amount"}
	if !reflect.DeepEqual(sheet.Header, wantHeader) {
		t.Errorf("Header = %v, want %v", sheet.Header, wantHeader)
	}
	if len(sheet.Records) != 2 {
		t.Fatalf("Records = %d rows, want 2", len(sheet.Records))
	}
	if sheet.FirstDataRow != 2 {
		t.Errorf("FirstDataRow = %d, want 2", sheet.FirstDataRow)
	}
	if sheet.Records[0][0] != "John,Doe" {
		t.Errorf("first record = %v", sheet.Records[0])
	}
}

func TestExtract_BlankRowBoundsDataRegion(t *testing.T) {
	wb := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Drug", "Qty"},
		{"Aspirin", "30"},
		{"Lisinopril", "90"},
		{"", ""},
		{"Totals", "120"},
	})

	sheet, err := wb.Extract(Settings{SheetName: "Sheet1"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(sheet.Records) != 2 {
		t.Fatalf("Records = %d rows, want 2 (footer after blank row must be dropped)", len(sheet.Records))
	}
	if sheet.Records[1][0] != "Lisinopril" {
		t.Errorf("last record = %v", sheet.Records[1])
	}
}

func TestExtract_HeaderOffsetAndSkips(t *testing.T) {
	wb := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Monthly Invoice Report"},
		{},
		{"Drug", "Qty"},
		{"subtotal section"},
		{"Aspirin", "30"},
		{"Lisinopril", "90"},
		{"Totals", "120"},
	})

	sheet, err := wb.Extract(Settings{
		SheetName:           "Sheet1",
		HeaderRowIndex:      2,
		SkipRowsAfterHeader: 1,
		SkipEndingRows:      1,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !reflect.DeepEqual(sheet.Header, []string{"Drug", "Qty"}) {
		t.Errorf("Header = %v", sheet.Header)
	}
	if len(sheet.Records) != 2 {
		t.Fatalf("Records = %d rows, want 2", len(sheet.Records))
	}
	if sheet.FirstDataRow != 5 {
		t.Errorf("FirstDataRow = %d, want 5", sheet.FirstDataRow)
	}
	if sheet.Records[0][0] != "Aspirin" || sheet.Records[1][0] != "Lisinopril" {
		t.Errorf("Records = %v", sheet.Records)
	}
}

func TestExtract_SheetNotFound(t *testing.T) {
	wb := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"Drug"},
		{"Aspirin"},
	})

	_, err := wb.Extract(Settings{SheetName: "Invoice Detail"})
	if err == nil {
		t.Fatal("expected error for missing sheet")
	}
	if !apperrors.HasCode(err, apperrors.CodeSheetNotFound) {
		t.Errorf("error = %v, want sheet_not_found", err)
	}
}

func TestExtract_EmptySheet(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]interface{}
		settings Settings
	}{
		{
			name:     "header only",
			rows:     [][]interface{}{{"Drug", "Qty"}},
			settings: Settings{SheetName: "Sheet1"},
		},
		{
			name:     "no rows at all",
			rows:     nil,
			settings: Settings{SheetName: "Sheet1"},
		},
		{
			name: "skips consume every data row",
			rows: [][]interface{}{
				{"Drug", "Qty"},
				{"Aspirin", "30"},
			},
			settings: Settings{SheetName: "Sheet1", SkipEndingRows: 1},
		},
		{
			name: "first data row already blank",
			rows: [][]interface{}{
				{"Drug", "Qty"},
				{""},
				{"Aspirin", "30"},
			},
			settings: Settings{SheetName: "Sheet1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := buildWorkbook(t, "Sheet1", tt.rows)
			_, err := wb.Extract(tt.settings)
			if err == nil {
				t.Fatal("expected empty-sheet error")
			}
			if !apperrors.HasCode(err, apperrors.CodeEmptySheet) {
				t.Errorf("error = %v, want empty_sheet", err)
			}
		})
	}
}

func TestOpenWorkbook_NotAWorkbook(t *testing.T) {
	_, err := OpenWorkbook(bytes.NewReader([]byte("plain text, not xlsx")))
	if err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
	if !apperrors.HasCode(err, apperrors.CodeUnreadableFile) {
		t.Errorf("error = %v, want unreadable_file", err)
	}
}

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{
			name:   "trims and collapses whitespace",
			labels: []string{"  Patient   Name ", "SSN\t Number", "Billed Amount"},
			want:   []string{"Patient Name", "SSN Number", "Billed Amount"},
		},
		{
			name:   "drops trailing blanks",
			labels: []string{"Drug", "Qty", "  ", ""},
			want:   []string{"Drug", "Qty"},
		},
		{
			name:   "keeps interior blanks positional",
			labels: []string{"Drug", "", "Qty"},
			want:   []string{"Drug", "", "Qty"},
		},
		{
			name:   "all blank",
			labels: []string{" ", ""},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanHeader(tt.labels)
			if len(got) != len(tt.want) {
				t.Fatalf("CleanHeader() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("CleanHeader()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
