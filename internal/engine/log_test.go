package engine

import (
	"strings"
	"testing"

	"pharmacy-invoice-service/internal/normalizer"
)

func TestValidationLog(t *testing.T) {
	vlog := NewValidationLog("2021/march/oakview/email/invoice.xlsx")

	if vlog.ID.String() == "" {
		t.Error("expected a run id")
	}
	if vlog.HasRowErrors() {
		t.Error("new log should have no row errors")
	}

	vlog.Infof("rows scanned: %d", 10)
	vlog.AddRowError(normalizer.RowError{Row: 4, Field: "ssn_no", Message: "not a recognizable social security number"})

	if !vlog.HasRowErrors() {
		t.Error("HasRowErrors() = false after AddRowError")
	}
	if len(vlog.Entries()) != 2 {
		t.Fatalf("Entries() = %d, want 2", len(vlog.Entries()))
	}

	rendered := vlog.Render()
	for _, want := range []string{
		"file: 2021/march/oakview/email/invoice.xlsx",
		"rows scanned: 10",
		"row 4 [ssn_no]: not a recognizable social security number",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("Render() missing %q:\n%s", want, rendered)
		}
	}
}
