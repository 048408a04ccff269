// Package normalizer turns raw spreadsheet records into typed rows. Every
// field of a row is checked against its schema and all failures are
// collected before the row is accepted or rejected, so one pass over the
// file reports every problem it contains.
package normalizer

import (
	"strings"

	"pharmacy-invoice-service/internal/models"
	"pharmacy-invoice-service/internal/schema"
	apperrors "pharmacy-invoice-service/pkg/errors"
)

// RowError is one field-level problem found in a spreadsheet row.
type RowError struct {
	Row     int
	Field   string
	Code    apperrors.ErrorCode
	Message string
}

// RowResult is the outcome of normalizing one row.
type RowResult struct {
	Row    int
	Values models.NormalizedRow
	Errors []RowError
}

// Accepted reports whether the row passed with no field errors.
func (r RowResult) Accepted() bool {
	return len(r.Errors) == 0
}

// Normalizer validates records against a field set.
type Normalizer struct {
	fields  []schema.FieldSchema
	columns map[string]int
}

// New builds a normalizer for the given field set and header. Column
// labels are matched exactly first, then case-insensitively.
func New(set *schema.FieldSet, header []string) *Normalizer {
	columns := make(map[string]int, len(header))
	for i, label := range header {
		if _, taken := columns[label]; !taken {
			columns[label] = i
		}
		lower := strings.ToLower(label)
		if _, taken := columns[lower]; !taken {
			columns[lower] = i
		}
	}

	return &Normalizer{
		fields:  set.Fields,
		columns: columns,
	}
}

// columnIndex resolves a schema column label to a header position.
func (n *Normalizer) columnIndex(column string) (int, bool) {
	if idx, ok := n.columns[column]; ok {
		return idx, true
	}
	idx, ok := n.columns[strings.ToLower(column)]
	return idx, ok
}

// Normalize validates one record. Field errors accumulate; the row is
// accepted only when every field passes. A required field whose column
// is absent from the header rejects the row; an absent optional column
// stores a nil value.
func (n *Normalizer) Normalize(record []string, rowNum int) RowResult {
	result := RowResult{
		Row:    rowNum,
		Values: make(models.NormalizedRow, len(n.fields)),
	}

	for _, field := range n.fields {
		idx, found := n.columnIndex(field.Column)
		if !found {
			if field.Required {
				result.Errors = append(result.Errors, RowError{
					Row:     rowNum,
					Field:   field.Name,
					Code:    apperrors.CodeMissingColumn,
					Message: "required column " + field.Column + " not present",
				})
			} else {
				result.Values[field.Name] = nil
			}
			continue
		}

		raw := ""
		if idx < len(record) {
			raw = record[idx]
		}

		value, err := schema.Validate(field, raw)
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     rowNum,
				Field:   field.Name,
				Code:    err.Code,
				Message: err.Message,
			})
			continue
		}
		result.Values[field.Name] = value
	}

	return result
}

// NormalizeAll runs every record through Normalize. Row numbers start at
// startRow and follow the records in order.
func (n *Normalizer) NormalizeAll(records [][]string, startRow int) (accepted []RowResult, rejected []RowResult) {
	for i, record := range records {
		result := n.Normalize(record, startRow+i)
		if result.Accepted() {
			accepted = append(accepted, result)
		} else {
			rejected = append(rejected, result)
		}
	}
	return accepted, rejected
}
