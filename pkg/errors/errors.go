package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStructure     ErrorCategory = "structure"
	CategoryField         ErrorCategory = "field"
	CategoryMapping       ErrorCategory = "mapping"
	CategoryPersistence   ErrorCategory = "persistence"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Configuration errors
	CodeSettingsNotFound ErrorCode = "settings_not_found"
	CodeUnknownFacility  ErrorCode = "unknown_facility"
	CodeUnknownSource    ErrorCode = "unknown_source"
	CodeBadLocator       ErrorCode = "bad_locator"
	CodeInvalidConfig    ErrorCode = "invalid_config"

	// Structure errors
	CodeSheetNotFound ErrorCode = "sheet_not_found"
	CodeEmptySheet    ErrorCode = "empty_sheet"
	CodeMissingColumn ErrorCode = "missing_column"

	// Field errors
	CodeMissingValue   ErrorCode = "missing_value"
	CodeInvalidNumber  ErrorCode = "invalid_number"
	CodeInvalidDecimal ErrorCode = "invalid_decimal"
	CodeInvalidChar    ErrorCode = "invalid_char"
	CodeInvalidDate    ErrorCode = "invalid_date"
	CodeRuleViolation  ErrorCode = "rule_violation"

	// Mapping errors
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeTransformFailed   ErrorCode = "transform_failed"
	CodeIncompleteLine    ErrorCode = "incomplete_line"

	// Persistence errors
	CodeTransactionFailed ErrorCode = "transaction_failed"
	CodeBatchLogFailed    ErrorCode = "batch_log_failed"
	CodeLookupFailed      ErrorCode = "lookup_failed"

	// Storage errors
	CodeObjectNotFound ErrorCode = "object_not_found"
	CodeFetchFailed    ErrorCode = "fetch_failed"
	CodeUnreadableFile ErrorCode = "unreadable_file"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// InvoiceError is the base error type for all application errors
type InvoiceError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *InvoiceError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *InvoiceError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *InvoiceError) GetExitCode() int {
	switch e.Category {
	case CategoryStorage:
		return 2
	case CategoryStructure, CategoryField:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryMapping, CategoryInternal:
		return 5
	case CategoryPersistence:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *InvoiceError) WithContext(key string, value interface{}) *InvoiceError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *InvoiceError) WithSuggestion(suggestion string) *InvoiceError {
	e.Suggestion = suggestion
	return e
}

// New creates a new InvoiceError
func New(category ErrorCategory, code ErrorCode, message string) *InvoiceError {
	return &InvoiceError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with InvoiceError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *InvoiceError {
	if err == nil {
		return nil
	}

	return &InvoiceError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// ConfigurationError creates an error for unresolvable reader settings,
// facilities, sources, or locators. These are fatal before parsing begins.
func ConfigurationError(code ErrorCode, subject string, err error) *InvoiceError {
	var message string
	var suggestion string

	switch code {
	case CodeSettingsNotFound:
		message = fmt.Sprintf("no invoice reader settings for %s", subject)
		suggestion = "register reader settings for this pharmacy and source channel"
	case CodeUnknownFacility:
		message = fmt.Sprintf("facility %q is not registered", subject)
		suggestion = "check the facility name embedded in the file path"
	case CodeUnknownSource:
		message = fmt.Sprintf("invoice source %q is not registered", subject)
		suggestion = "check the source channel embedded in the file path"
	case CodeBadLocator:
		message = fmt.Sprintf("invoice locator %q does not match year/month/facility/source/file", subject)
		suggestion = "verify the uploaded file was placed under the expected folder structure"
	default:
		message = fmt.Sprintf("configuration error: %s", subject)
		suggestion = "check the service configuration and try again"
	}

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("subject", subject)
}

// StructureError creates an error for a sheet or column that is missing
// or unusable. These reject the whole file before row validation.
func StructureError(code ErrorCode, detail string, err error) *InvoiceError {
	var message string
	var suggestion string

	switch code {
	case CodeSheetNotFound:
		message = fmt.Sprintf("required sheet %q not found in workbook", detail)
		suggestion = "check the configured sheet name against the uploaded file"
	case CodeEmptySheet:
		message = fmt.Sprintf("sheet %q contains no data rows", detail)
		suggestion = "verify the file was exported with invoice rows"
	case CodeMissingColumn:
		message = fmt.Sprintf("required column %q not found in header", detail)
		suggestion = "verify the header row matches the configured column names"
	default:
		message = fmt.Sprintf("structural error: %s", detail)
		suggestion = "check the file layout against the reader settings"
	}

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryStructure, code, message)
	} else {
		result = New(CategoryStructure, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("detail", detail)
}

// FieldError creates an error for one cell failing type coercion or a
// named validation rule. These are recorded per row and never abort the scan.
func FieldError(code ErrorCode, field string, value interface{}, err error) *InvoiceError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingValue:
		message = fmt.Sprintf("required field %q is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidNumber:
		message = fmt.Sprintf("field %q is not a valid whole number: %v", field, value)
		suggestion = "ensure the cell contains digits only"
	case CodeInvalidDecimal:
		message = fmt.Sprintf("field %q is not a valid amount: %v", field, value)
		suggestion = "ensure the cell contains a decimal amount such as 12.34"
	case CodeInvalidChar:
		message = fmt.Sprintf("field %q must be a single character: %v", field, value)
		suggestion = "use a one-letter code for this field"
	case CodeInvalidDate:
		message = fmt.Sprintf("field %q is not a recognizable date: %v", field, value)
		suggestion = "use a date such as 12/14/2020 or 2020-12-14"
	case CodeRuleViolation:
		message = fmt.Sprintf("field %q failed validation: %v", field, value)
		suggestion = "check the field value against its configured rules"
	default:
		message = fmt.Sprintf("field %q has an invalid value: %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryField, code, message)
	} else {
		result = New(CategoryField, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// MappingError creates an error raised while transforming a normalized row
// into a canonical invoice line. Fatal for the batch.
func MappingError(code ErrorCode, formatKey string, err error) *InvoiceError {
	var message string
	var suggestion string

	switch code {
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("no invoice mapper registered for format %q", formatKey)
		suggestion = "register a format descriptor for this pharmacy and source channel"
	case CodeTransformFailed:
		message = fmt.Sprintf("row transform failed for format %q", formatKey)
		suggestion = "check the derived-field transforms against the source data"
	case CodeIncompleteLine:
		message = fmt.Sprintf("mapped invoice line for format %q is missing required fields", formatKey)
		suggestion = "check the format descriptor covers every required canonical field"
	default:
		message = fmt.Sprintf("mapping error for format %q", formatKey)
		suggestion = "review the format descriptor and the source data"
	}

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryMapping, code, message)
	} else {
		result = New(CategoryMapping, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("format_key", formatKey)
}

// PersistenceError creates an error for repository and transaction failures.
// Fatal for the batch; all writes are rolled back.
func PersistenceError(code ErrorCode, operation string, err error) *InvoiceError {
	var message string
	var suggestion string

	switch code {
	case CodeTransactionFailed:
		message = fmt.Sprintf("database transaction failed during %s", operation)
		suggestion = "no rows were committed; re-run the batch once the database is healthy"
	case CodeBatchLogFailed:
		message = fmt.Sprintf("batch log update failed during %s", operation)
		suggestion = "check the invoice batch log table and database connectivity"
	case CodeLookupFailed:
		message = fmt.Sprintf("reference data lookup failed during %s", operation)
		suggestion = "check database connectivity and the reference tables"
	default:
		message = fmt.Sprintf("persistence error during %s", operation)
		suggestion = "check the database and try again"
	}

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryPersistence, code, message)
	} else {
		result = New(CategoryPersistence, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// StorageError creates an error for byte-stream retrieval failures.
func StorageError(code ErrorCode, key string, err error) *InvoiceError {
	var message string
	var suggestion string

	switch code {
	case CodeObjectNotFound:
		message = fmt.Sprintf("invoice file not found: %s", key)
		suggestion = "check the object key and the bucket contents"
	case CodeFetchFailed:
		message = fmt.Sprintf("failed to fetch invoice file: %s", key)
		suggestion = "check storage connectivity and credentials"
	case CodeUnreadableFile:
		message = fmt.Sprintf("invoice file could not be opened as a workbook: %s", key)
		suggestion = "verify the file is a valid xlsx workbook"
	default:
		message = fmt.Sprintf("storage error: %s", key)
		suggestion = "check the storage backend and try again"
	}

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryStorage, code, message)
	} else {
		result = New(CategoryStorage, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("key", key)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *InvoiceError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *InvoiceError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*InvoiceError       `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*InvoiceError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if errs == nil {
		summary.Errors = []*InvoiceError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	count, exists := es.ByCategory[category]
	return exists && count > 0
}

// Utility functions

// IsInvoiceError checks if an error is an InvoiceError
func IsInvoiceError(err error) bool {
	_, ok := err.(*InvoiceError)
	return ok
}

// AsInvoiceError extracts an InvoiceError from an error chain
func AsInvoiceError(err error) (*InvoiceError, bool) {
	var invoiceErr *InvoiceError
	if errors.As(err, &invoiceErr) {
		return invoiceErr, true
	}
	return nil, false
}

// HasCode reports whether the error chain carries the given code
func HasCode(err error, code ErrorCode) bool {
	if invoiceErr, ok := AsInvoiceError(err); ok {
		return invoiceErr.Code == code
	}
	return false
}
