package normalizer

import (
	"testing"
	"time"

	"pharmacy-invoice-service/internal/schema"
	apperrors "pharmacy-invoice-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func testFieldSet(t *testing.T) *schema.FieldSet {
	t.Helper()
	set := &schema.FieldSet{Fields: []schema.FieldSchema{
		{Name: "patient", Column: "Patient Name", Type: schema.TypeString, Required: true, Rules: []schema.Rule{schema.RuleName}},
		{Name: "ssn_no", Column: "SSN", Type: schema.TypeString, Rules: []schema.Rule{schema.RuleSsn}},
		{Name: "dispdt", Column: "Dispense Date", Type: schema.TypeDate, Required: true},
		{Name: "qty", Column: "Qty", Type: schema.TypeInt},
		{Name: "billamt", Column: "Billed Amount", Type: schema.TypeDecimal, Required: true},
		{Name: "comment", Column: "Comment", Type: schema.TypeString},
	}}
	if err := set.Validate(); err != nil {
		t.Fatalf("bad fixture field set: %v", err)
	}
	return set
}

func TestNormalize_AcceptedRow(t *testing.T) {
	header := []string{"Patient Name", "SSN", "Dispense Date", "Qty", "Billed Amount", "Comment"}
	n := New(testFieldSet(t), header)

	result := n.Normalize([]string{"John,Doe", "123-45-6789", "12/14/2020", "30", "$125.50", ""}, 2)

	if !result.Accepted() {
		t.Fatalf("row rejected: %+v", result.Errors)
	}
	if got := result.Values.String("patient"); got != "John,Doe" {
		t.Errorf("patient = %q", got)
	}
	if got := result.Values.String("ssn_no"); got != "123-45-6789" {
		t.Errorf("ssn_no = %q", got)
	}
	if got, ok := result.Values.Date("dispdt"); !ok || !got.Equal(time.Date(2020, 12, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dispdt = %v, %v", got, ok)
	}
	if got, ok := result.Values.Int("qty"); !ok || got != 30 {
		t.Errorf("qty = %d, %v", got, ok)
	}
	if got, ok := result.Values.Decimal("billamt"); !ok || !got.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("billamt = %v, %v", got, ok)
	}
	if !result.Values.Empty("comment") {
		t.Error("empty optional comment should be stored as nil")
	}
}

func TestNormalize_CollectsAllFieldErrors(t *testing.T) {
	header := []string{"Patient Name", "SSN", "Dispense Date", "Qty", "Billed Amount"}
	n := New(testFieldSet(t), header)

	result := n.Normalize([]string{"", "12-34", "not a date", "thirty", "n/a"}, 7)

	if result.Accepted() {
		t.Fatal("expected rejection")
	}
	if len(result.Errors) != 5 {
		t.Fatalf("got %d errors, want 5: %+v", len(result.Errors), result.Errors)
	}

	byField := make(map[string]RowError)
	for _, rowErr := range result.Errors {
		if rowErr.Row != 7 {
			t.Errorf("error row = %d, want 7", rowErr.Row)
		}
		byField[rowErr.Field] = rowErr
	}

	if byField["patient"].Code != apperrors.CodeMissingValue {
		t.Errorf("patient code = %s", byField["patient"].Code)
	}
	if byField["ssn_no"].Code != apperrors.CodeRuleViolation {
		t.Errorf("ssn_no code = %s", byField["ssn_no"].Code)
	}
	if byField["dispdt"].Code != apperrors.CodeInvalidDate {
		t.Errorf("dispdt code = %s", byField["dispdt"].Code)
	}
	if byField["qty"].Code != apperrors.CodeInvalidNumber {
		t.Errorf("qty code = %s", byField["qty"].Code)
	}
	if byField["billamt"].Code != apperrors.CodeInvalidDecimal {
		t.Errorf("billamt code = %s", byField["billamt"].Code)
	}
}

func TestNormalize_SingleErrorPerBadField(t *testing.T) {
	header := []string{"Patient Name", "SSN", "Dispense Date", "Qty", "Billed Amount"}
	n := New(testFieldSet(t), header)

	result := n.Normalize([]string{"John,Doe", "bogus", "12/14/2020", "30", "10.00"}, 3)

	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors, want 1: %+v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].Field != "ssn_no" {
		t.Errorf("error field = %q, want ssn_no", result.Errors[0].Field)
	}
}

func TestNormalize_MissingColumns(t *testing.T) {
	t.Run("missing required column rejects row", func(t *testing.T) {
		header := []string{"Patient Name", "SSN", "Qty", "Billed Amount"}
		n := New(testFieldSet(t), header)

		result := n.Normalize([]string{"John,Doe", "123456789", "30", "10.00"}, 2)
		if result.Accepted() {
			t.Fatal("expected rejection for missing Dispense Date column")
		}
		if result.Errors[0].Code != apperrors.CodeMissingColumn {
			t.Errorf("code = %s, want %s", result.Errors[0].Code, apperrors.CodeMissingColumn)
		}
	})

	t.Run("missing optional column stores nil", func(t *testing.T) {
		header := []string{"Patient Name", "SSN", "Dispense Date", "Billed Amount"}
		n := New(testFieldSet(t), header)

		result := n.Normalize([]string{"John,Doe", "123456789", "12/14/2020", "10.00"}, 2)
		if !result.Accepted() {
			t.Fatalf("row rejected: %+v", result.Errors)
		}
		if !result.Values.Empty("qty") {
			t.Error("qty should be nil when its column is absent")
		}
	})
}

func TestNormalize_CaseInsensitiveHeaderFallback(t *testing.T) {
	header := []string{"PATIENT NAME", "ssn", "Dispense Date", "QTY", "billed amount"}
	n := New(testFieldSet(t), header)

	result := n.Normalize([]string{"Jane,Roe", "987654321", "1/5/2021", "12", "42.00"}, 2)
	if !result.Accepted() {
		t.Fatalf("row rejected: %+v", result.Errors)
	}
	if got := result.Values.String("patient"); got != "Jane,Roe" {
		t.Errorf("patient = %q", got)
	}
}

func TestNormalize_ShortRecord(t *testing.T) {
	header := []string{"Patient Name", "SSN", "Dispense Date", "Qty", "Billed Amount"}
	n := New(testFieldSet(t), header)

	// Trailing cells dropped by the reader behave as empty values.
	result := n.Normalize([]string{"John,Doe", "123456789", "12/14/2020"}, 4)
	if result.Accepted() {
		t.Fatal("expected rejection: required billamt cell absent")
	}

	var fields []string
	for _, rowErr := range result.Errors {
		fields = append(fields, rowErr.Field)
	}
	if len(fields) != 1 || fields[0] != "billamt" {
		t.Errorf("error fields = %v, want [billamt]", fields)
	}
}

func TestNormalizeAll(t *testing.T) {
	header := []string{"Patient Name", "SSN", "Dispense Date", "Qty", "Billed Amount"}
	n := New(testFieldSet(t), header)

	records := [][]string{
		{"John,Doe", "123456789", "12/14/2020", "30", "125.50"},
		{"Jane,Roe", "bogus", "12/15/2020", "10", "42.00"},
		{"Mary,Major", "", "12/16/2020", "", "18.25"},
	}

	accepted, rejected := n.NormalizeAll(records, 2)

	if len(accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(accepted))
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(rejected))
	}
	if rejected[0].Row != 3 {
		t.Errorf("rejected row = %d, want 3", rejected[0].Row)
	}
	if accepted[1].Row != 4 {
		t.Errorf("second accepted row = %d, want 4", accepted[1].Row)
	}
}
