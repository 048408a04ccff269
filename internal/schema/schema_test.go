package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFieldSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   FieldSchema
		wantErr bool
	}{
		{
			name:  "valid field",
			field: FieldSchema{Name: "ssn_no", Column: "SSN", Type: TypeString, Rules: []Rule{RuleSsn}},
		},
		{
			name:    "missing name",
			field:   FieldSchema{Column: "SSN", Type: TypeString},
			wantErr: true,
		},
		{
			name:    "missing column",
			field:   FieldSchema{Name: "ssn_no", Type: TypeString},
			wantErr: true,
		},
		{
			name:    "unknown type",
			field:   FieldSchema{Name: "ssn_no", Column: "SSN", Type: "float"},
			wantErr: true,
		},
		{
			name:    "unknown rule",
			field:   FieldSchema{Name: "ssn_no", Column: "SSN", Type: TypeString, Rules: []Rule{"Luhn"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFieldSetValidate(t *testing.T) {
	t.Run("duplicate names rejected", func(t *testing.T) {
		set := FieldSet{Fields: []FieldSchema{
			{Name: "drug", Column: "Drug", Type: TypeString},
			{Name: "drug", Column: "Drug Name", Type: TypeString},
		}}
		if err := set.Validate(); err == nil {
			t.Error("expected error for duplicate field names")
		}
	})

	t.Run("empty set rejected", func(t *testing.T) {
		if err := (FieldSet{}).Validate(); err == nil {
			t.Error("expected error for empty field set")
		}
	})
}

func TestParseFieldSet(t *testing.T) {
	yamlDoc := `
fields:
  - name: patient
    column: Patient Name
    type: string
    required: true
    rules: [IsNotEmpty, Name]
  - name: ssn_no
    column: SSN
    type: string
    rules: [Ssn]
  - name: qty
    column: Qty
    type: int
  - name: billamt
    column: Billed Amount
    type: decimal
    required: true
  - name: dispdt
    column: Dispense Date
    type: date
    required: true
`

	set, err := ParseFieldSet([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("ParseFieldSet() error = %v", err)
	}

	if len(set.Fields) != 5 {
		t.Fatalf("got %d fields, want 5", len(set.Fields))
	}

	patient := set.Fields[0]
	if patient.Name != "patient" || !patient.Required || len(patient.Rules) != 2 {
		t.Errorf("unexpected patient field: %+v", patient)
	}
	if set.Fields[2].Type != TypeInt {
		t.Errorf("qty type = %s, want %s", set.Fields[2].Type, TypeInt)
	}

	t.Run("bad yaml", func(t *testing.T) {
		if _, err := ParseFieldSet([]byte("fields: {not a list}")); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})

	t.Run("invalid definition", func(t *testing.T) {
		if _, err := ParseFieldSet([]byte("fields:\n  - name: x\n    column: X\n    type: float\n")); err == nil {
			t.Error("expected error for unknown field type")
		}
	})
}

func TestLoadFieldSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fields.yaml")

	content := "fields:\n  - name: drug\n    column: Drug\n    type: string\n    required: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	set, err := LoadFieldSet(path)
	if err != nil {
		t.Fatalf("LoadFieldSet() error = %v", err)
	}
	if len(set.Fields) != 1 || set.Fields[0].Name != "drug" {
		t.Errorf("unexpected field set: %+v", set)
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFieldSet(filepath.Join(dir, "absent.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
