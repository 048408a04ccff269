package cmd

import (
	"fmt"
	"os"
	"strings"

	apperrors "pharmacy-invoice-service/pkg/errors"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler turns pipeline errors into user-facing messages and
// process exit codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly rendering of err and returns the
// exit code the process should finish with.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if invoiceErr, ok := apperrors.AsInvoiceError(err); ok {
		return h.handleInvoiceError(invoiceErr)
	}

	return h.handleGenericError(err)
}

// handleInvoiceError renders an InvoiceError with its context and
// suggestion, plus category-level guidance.
func (h *CLIErrorHandler) handleInvoiceError(err *apperrors.InvoiceError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles errors raised outside the pipeline.
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check the locator or --local-root path\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and AWS credentials\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more detail\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryStorage:
		return `Storage error help:
• Check that the file exists in the upload bucket at the given locator
• Verify --bucket, --bucket-prefix, and --region
• When using --local-root, check the file exists under that directory
• Confirm your AWS credentials grant read access to the bucket`

	case apperrors.CategoryStructure:
		return `File structure error help:
• Verify the workbook is a valid .xlsx file and not corrupted
• Check the sheet name matches the pharmacy's configured layout
• Make sure the header row is where the layout expects it
• Ask the pharmacy to re-export the file if the layout changed`

	case apperrors.CategoryField:
		return `Field error help:
• Review the validation log for the exact rows and columns at fault
• Check date, amount, and SSN formats in the flagged cells
• Fix the spreadsheet and upload it again; no rows were loaded`

	case apperrors.CategoryConfiguration:
		return `Configuration error help:
• Check the locator follows {year}/{month}/{facility}/{source}/{file}
• Verify the facility and source are registered in the database
• Check reader settings exist for this pharmacy and source
• Use 'invoicer --help' to review flags and environment variables`

	case apperrors.CategoryMapping:
		return `Mapping error help:
• The file validated but a row could not be turned into an invoice line
• Check for rows missing a patient name or charge amount
• Verify the format registered for this pharmacy matches the file`

	case apperrors.CategoryPersistence:
		return `Database error help:
• Check database connectivity and the --db-* flags
• Verify the schema is migrated and the user has write access
• The load is transactional; re-running the file is safe`

	default:
		return `For more help:
• Use 'invoicer --help' for general help
• Use 'invoicer process --help' for command-specific help
• Run with --verbose for underlying error detail`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}
