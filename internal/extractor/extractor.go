// Package extractor reads the data region out of an invoice workbook.
// Reader settings pick the sheet and header position; the data region
// runs from there to the first fully blank row.
package extractor

import (
	"io"
	"strings"

	apperrors "pharmacy-invoice-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// Settings controls where the header and data live inside a sheet.
// HeaderRowIndex is zero-based.
type Settings struct {
	SheetName           string
	HeaderRowIndex      int
	SkipRowsAfterHeader int
	SkipEndingRows      int
}

// Sheet is the extracted data region of one worksheet.
type Sheet struct {
	Header []string
	// Records holds raw cell strings, one slice per data row, in sheet
	// order. Rows may be shorter than the header when trailing cells
	// are empty.
	Records [][]string
	// FirstDataRow is the 1-based sheet row number of Records[0], used
	// to tag validation findings with real spreadsheet rows.
	FirstDataRow int
}

// Workbook wraps an open xlsx file.
type Workbook struct {
	file *excelize.File
}

// OpenWorkbook opens an xlsx workbook from a byte stream.
func OpenWorkbook(r io.Reader) (*Workbook, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeUnreadableFile, "workbook", err)
	}
	return &Workbook{file: file}, nil
}

// Close releases the underlying file resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetNames lists the worksheets in the workbook.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Extract pulls the header and data region described by the settings.
func (w *Workbook) Extract(settings Settings) (*Sheet, error) {
	if !w.hasSheet(settings.SheetName) {
		return nil, apperrors.StructureError(apperrors.CodeSheetNotFound, settings.SheetName, nil)
	}

	rows, err := w.file.GetRows(settings.SheetName)
	if err != nil {
		return nil, apperrors.StructureError(apperrors.CodeSheetNotFound, settings.SheetName, err)
	}

	if settings.HeaderRowIndex >= len(rows) {
		return nil, apperrors.StructureError(apperrors.CodeEmptySheet, settings.SheetName, nil)
	}

	header := CleanHeader(rows[settings.HeaderRowIndex])
	if len(header) == 0 {
		return nil, apperrors.StructureError(apperrors.CodeEmptySheet, settings.SheetName, nil)
	}

	dataStart := settings.HeaderRowIndex + 1 + settings.SkipRowsAfterHeader
	if dataStart > len(rows) {
		return nil, apperrors.StructureError(apperrors.CodeEmptySheet, settings.SheetName, nil)
	}

	records := dataRegion(rows[dataStart:])
	if settings.SkipEndingRows > 0 {
		if settings.SkipEndingRows >= len(records) {
			records = nil
		} else {
			records = records[:len(records)-settings.SkipEndingRows]
		}
	}

	if len(records) == 0 {
		return nil, apperrors.StructureError(apperrors.CodeEmptySheet, settings.SheetName, nil)
	}

	return &Sheet{
		Header:       header,
		Records:      records,
		FirstDataRow: dataStart + 1,
	}, nil
}

func (w *Workbook) hasSheet(name string) bool {
	for _, sheet := range w.file.GetSheetList() {
		if sheet == name {
			return true
		}
	}
	return false
}

// dataRegion returns the rows up to but not including the first fully
// blank row. Anything past a blank row is footer noise.
func dataRegion(rows [][]string) [][]string {
	for i, row := range rows {
		if isBlankRow(row) {
			return rows[:i]
		}
	}
	return rows
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// CleanHeader trims each label and collapses internal whitespace runs to
// a single space. Trailing blank labels are dropped.
func CleanHeader(labels []string) []string {
	cleaned := make([]string, len(labels))
	for i, label := range labels {
		cleaned[i] = strings.Join(strings.Fields(label), " ")
	}

	end := len(cleaned)
	for end > 0 && cleaned[end-1] == "" {
		end--
	}
	return cleaned[:end]
}
