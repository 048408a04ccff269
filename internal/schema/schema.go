// Package schema defines the per-field validation contract for pharmacy
// invoice spreadsheets: which column a field comes from, what type it
// coerces to, and which named rules it must satisfy.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldType enumerates the coercion targets for a spreadsheet cell.
type FieldType string

const (
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeChar    FieldType = "char"
	TypeDate    FieldType = "date"
	TypeString  FieldType = "string"
)

// Rule names a validation check applied after coercion. Rules run in
// declaration order and stop at the first failure.
type Rule string

const (
	RuleIsNotEmpty    Rule = "IsNotEmpty"
	RuleSsn           Rule = "Ssn"
	RuleMorF          Rule = "MorF"
	RuleBorG          Rule = "BorG"
	RuleMaxLength50   Rule = "MaxLength50"
	RuleMaxLength150  Rule = "MaxLength150"
	RuleMaxLength500  Rule = "MaxLength500"
	RuleMaxLength1000 Rule = "MaxLength1000"
	RuleName          Rule = "Name"
)

// FieldSchema describes one canonical field of an invoice row.
type FieldSchema struct {
	Name     string    `yaml:"name"`
	Column   string    `yaml:"column"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
	Rules    []Rule    `yaml:"rules"`
}

// Validate checks that the schema definition itself is well formed.
func (f FieldSchema) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field schema missing name")
	}
	if f.Column == "" {
		return fmt.Errorf("field %q: missing source column", f.Name)
	}

	switch f.Type {
	case TypeInt, TypeDecimal, TypeChar, TypeDate, TypeString:
	default:
		return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	}

	for _, rule := range f.Rules {
		if _, ok := ruleChecks[rule]; !ok {
			return fmt.Errorf("field %q: unknown rule %q", f.Name, rule)
		}
	}

	return nil
}

// FieldSet is the ordered schema for one spreadsheet format.
type FieldSet struct {
	Fields []FieldSchema `yaml:"fields"`
}

// Validate checks every field definition and rejects duplicate names.
func (s FieldSet) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("field set has no fields")
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, field := range s.Fields {
		if err := field.Validate(); err != nil {
			return err
		}
		if seen[field.Name] {
			return fmt.Errorf("duplicate field name %q", field.Name)
		}
		seen[field.Name] = true
	}

	return nil
}

// ParseFieldSet decodes a YAML field set definition.
func ParseFieldSet(data []byte) (*FieldSet, error) {
	var set FieldSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse field set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// LoadFieldSet reads and parses a YAML field set file.
func LoadFieldSet(path string) (*FieldSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field set file %s: %w", path, err)
	}
	return ParseFieldSet(data)
}
