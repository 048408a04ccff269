package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "pharmacy-invoice-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order against the portion of the cell before
// any space, which drops trailing time-of-day noise from exports.
var dateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"1-2-2006",
	"2006/1/2",
}

var (
	ssnPlainPattern  = regexp.MustCompile(`^\d{9}$`)
	ssnDashedPattern = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	ssnMaskedPattern = regexp.MustCompile(`^_{3}-_{2}-_{4}$`)
)

// Validate coerces a raw cell value to the field's type and applies the
// field's rules in order. An empty cell yields (nil, nil) for optional
// fields and a missing-value error for required ones. The returned value
// is string, int64, decimal.Decimal, or time.Time.
func Validate(field FieldSchema, raw string) (interface{}, *apperrors.InvoiceError) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		if field.Required {
			return nil, apperrors.FieldError(apperrors.CodeMissingValue, field.Name, raw, nil)
		}
		return nil, nil
	}

	coerced, err := coerce(field, trimmed)
	if err != nil {
		return nil, err
	}

	for _, rule := range field.Rules {
		if ruleErr := ruleChecks[rule](trimmed); ruleErr != nil {
			return nil, apperrors.FieldError(apperrors.CodeRuleViolation, field.Name, trimmed, ruleErr)
		}
	}

	return coerced, nil
}

func coerce(field FieldSchema, trimmed string) (interface{}, *apperrors.InvoiceError) {
	switch field.Type {
	case TypeInt:
		return coerceInt(field, trimmed)
	case TypeDecimal:
		return coerceDecimal(field, trimmed)
	case TypeChar:
		return coerceChar(field, trimmed)
	case TypeDate:
		return coerceDate(field, trimmed)
	default:
		return trimmed, nil
	}
}

func coerceInt(field FieldSchema, value string) (interface{}, *apperrors.InvoiceError) {
	cleaned := strings.ReplaceAll(value, ",", "")
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil, apperrors.FieldError(apperrors.CodeInvalidNumber, field.Name, value, err)
	}
	return n, nil
}

func coerceDecimal(field FieldSchema, value string) (interface{}, *apperrors.InvoiceError) {
	// Exports wrap negative amounts in parentheses and prefix currency
	// symbols; both are stripped without changing the sign.
	cleaned := strings.NewReplacer("$", "", "(", "", ")", "", ",", "").Replace(value)
	cleaned = strings.TrimSpace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, apperrors.FieldError(apperrors.CodeInvalidDecimal, field.Name, value, err)
	}
	return d, nil
}

func coerceChar(field FieldSchema, value string) (interface{}, *apperrors.InvoiceError) {
	if len([]rune(value)) != 1 {
		return nil, apperrors.FieldError(apperrors.CodeInvalidChar, field.Name, value, nil)
	}
	return value, nil
}

func coerceDate(field FieldSchema, value string) (interface{}, *apperrors.InvoiceError) {
	datePart := value
	if idx := strings.IndexByte(value, ' '); idx > 0 {
		datePart = value[:idx]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, datePart); err == nil {
			return t, nil
		}
	}

	return nil, apperrors.FieldError(apperrors.CodeInvalidDate, field.Name, value, nil)
}

// ruleChecks maps rule names to their checks. Each check receives the
// trimmed raw cell value.
var ruleChecks = map[Rule]func(string) error{
	RuleIsNotEmpty:    checkNotEmpty,
	RuleSsn:           checkSsn,
	RuleMorF:          checkMorF,
	RuleBorG:          checkBorG,
	RuleMaxLength50:   maxLength(50),
	RuleMaxLength150:  maxLength(150),
	RuleMaxLength500:  maxLength(500),
	RuleMaxLength1000: maxLength(1000),
	RuleName:          checkName,
}

func checkNotEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value is empty")
	}
	return nil
}

func checkSsn(value string) error {
	if value == "" {
		return nil
	}
	if ssnPlainPattern.MatchString(value) ||
		ssnDashedPattern.MatchString(value) ||
		ssnMaskedPattern.MatchString(value) {
		return nil
	}
	return fmt.Errorf("not a recognizable social security number")
}

func checkMorF(value string) error {
	if strings.EqualFold(value, "M") || strings.EqualFold(value, "F") {
		return nil
	}
	return fmt.Errorf("must be M or F")
}

func checkBorG(value string) error {
	if strings.EqualFold(value, "B") || strings.EqualFold(value, "G") {
		return nil
	}
	return fmt.Errorf("must be B or G")
}

func maxLength(limit int) func(string) error {
	return func(value string) error {
		if len(value) >= limit {
			return fmt.Errorf("length %d exceeds limit of %d characters", len(value), limit-1)
		}
		return nil
	}
}

func checkName(value string) error {
	parts := strings.Split(value, ",")
	if len(parts) > 2 {
		return fmt.Errorf("name has more than two comma-separated parts")
	}
	for _, part := range parts {
		if len(strings.TrimSpace(part)) >= 25 {
			return fmt.Errorf("name part %q exceeds 24 characters", strings.TrimSpace(part))
		}
	}
	return nil
}
