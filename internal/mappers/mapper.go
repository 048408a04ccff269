// Package mappers converts normalized spreadsheet rows into canonical
// invoice lines. Each supported pharmacy format is a declarative table
// of bindings interpreted by one generic mapping engine; adding a format
// means adding a table, not code.
package mappers

import (
	"fmt"
	"time"

	"pharmacy-invoice-service/internal/models"
	"pharmacy-invoice-service/internal/schema"
	apperrors "pharmacy-invoice-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// Target names a canonical invoice line field a binding writes to.
type Target int

const (
	TargetFirstName Target = iota
	TargetLastName
	TargetSSN
	TargetDOB
	TargetGender
	TargetDispenseDt
	TargetProductCategory
	TargetDrugName
	TargetDoctor
	TargetRxNumber
	TargetNDC
	TargetQuantity
	TargetDaysSupplied
	TargetChargeAmount
	TargetCopayAmount
	TargetCopayFlag
	TargetNote
)

var targetNames = map[Target]string{
	TargetFirstName:       "first_nm",
	TargetLastName:        "last_nm",
	TargetSSN:             "ssn",
	TargetDOB:             "dob",
	TargetGender:          "gender",
	TargetDispenseDt:      "dispense_dt",
	TargetProductCategory: "product_category",
	TargetDrugName:        "drug_nm",
	TargetDoctor:          "doctor",
	TargetRxNumber:        "rx_nbr",
	TargetNDC:             "ndc",
	TargetQuantity:        "quantity",
	TargetDaysSupplied:    "days_supplied",
	TargetChargeAmount:    "charge_amt",
	TargetCopayAmount:     "copay_amt",
	TargetCopayFlag:       "copay_flg",
	TargetNote:            "note",
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("target(%d)", int(t))
}

// Binding routes one normalized field into one canonical target,
// optionally through a transform.
type Binding struct {
	Target    Target
	Source    string
	Transform TransformFunc
}

// Descriptor is the complete definition of one spreadsheet format: the
// field set its rows validate against and the bindings that produce
// invoice lines.
type Descriptor struct {
	Key      string
	FieldSet *schema.FieldSet
	Bindings []Binding
}

// Validate checks the descriptor is internally consistent: the field
// set is well formed, every binding reads a declared field, and the
// mandatory targets are covered.
func (d *Descriptor) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("format descriptor missing key")
	}
	if d.FieldSet == nil {
		return fmt.Errorf("format %q: missing field set", d.Key)
	}
	if err := d.FieldSet.Validate(); err != nil {
		return fmt.Errorf("format %q: %w", d.Key, err)
	}

	declared := make(map[string]bool, len(d.FieldSet.Fields))
	for _, field := range d.FieldSet.Fields {
		declared[field.Name] = true
	}

	covered := make(map[Target]bool, len(d.Bindings))
	for _, binding := range d.Bindings {
		if _, known := targetNames[binding.Target]; !known {
			return fmt.Errorf("format %q: unknown target %d", d.Key, int(binding.Target))
		}
		if !declared[binding.Source] {
			return fmt.Errorf("format %q: binding for %s reads undeclared field %q", d.Key, binding.Target, binding.Source)
		}
		covered[binding.Target] = true
	}

	for _, required := range []Target{TargetFirstName, TargetChargeAmount} {
		if !covered[required] {
			return fmt.Errorf("format %q: no binding for required target %s", d.Key, required)
		}
	}

	return nil
}

// CoversFields confirms the descriptor declares every raw field a
// deployment's reader settings expect. A configured field the format
// doesn't know about means the database and the registry disagree about
// the layout, which must fail before any row is read.
func (d *Descriptor) CoversFields(names []string) error {
	declared := make(map[string]bool, len(d.FieldSet.Fields))
	for _, field := range d.FieldSet.Fields {
		declared[field.Name] = true
	}

	for _, name := range names {
		if !declared[name] {
			return fmt.Errorf("format %q does not declare configured field %q", d.Key, name)
		}
	}
	return nil
}

// Context carries the batch-scoped identifiers stamped onto every
// mapped line.
type Context struct {
	BatchID      int64
	PharmacyID   int64
	FacilityID   int64
	PayerGroupID int64
	InvoiceDt    time.Time
	Test         bool
}

// Map produces one canonical invoice line from a normalized row. Rows
// reaching this point already passed field validation, so any failure
// here is fatal for the batch.
func (d *Descriptor) Map(row models.NormalizedRow, mctx Context) (*models.InvoiceLine, error) {
	line := &models.InvoiceLine{
		BatchID:      mctx.BatchID,
		PharmacyID:   mctx.PharmacyID,
		FacilityID:   mctx.FacilityID,
		PayerGroupID: mctx.PayerGroupID,
		InvoiceDt:    mctx.InvoiceDt,
		CopayFlag:    "N",
		Duplicate:    mctx.Test,
	}

	for _, binding := range d.Bindings {
		value := row[binding.Source]

		if binding.Transform != nil {
			transformed, err := binding.Transform(value)
			if err != nil {
				return nil, apperrors.MappingError(apperrors.CodeTransformFailed, d.Key, err).
					WithContext("target", binding.Target.String()).
					WithContext("source", binding.Source)
			}
			value = transformed
		}

		if err := assign(line, binding.Target, value); err != nil {
			return nil, apperrors.MappingError(apperrors.CodeTransformFailed, d.Key, err).
				WithContext("target", binding.Target.String()).
				WithContext("source", binding.Source)
		}
	}

	if line.FirstName == "" {
		return nil, apperrors.MappingError(apperrors.CodeIncompleteLine, d.Key, nil).
			WithContext("target", TargetFirstName.String())
	}

	return line, nil
}

func assign(line *models.InvoiceLine, target Target, value interface{}) error {
	switch target {
	case TargetFirstName:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.FirstName = s
	case TargetLastName:
		if value == nil {
			line.LastName = nil
			return nil
		}
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.LastName = &s
	case TargetSSN:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.SSN = s
	case TargetDOB:
		t, err := timePtr(target, value)
		if err != nil {
			return err
		}
		line.DOB = t
	case TargetGender:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.Gender = s
	case TargetDispenseDt:
		t, err := timePtr(target, value)
		if err != nil {
			return err
		}
		line.DispenseDt = t
	case TargetProductCategory:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.ProductCategory = s
	case TargetDrugName:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.DrugName = s
	case TargetDoctor:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.Doctor = s
	case TargetRxNumber:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.RxNumber = s
	case TargetNDC:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.NDC = s
	case TargetQuantity:
		d, err := decimalPtr(target, value)
		if err != nil {
			return err
		}
		line.Quantity = d
	case TargetDaysSupplied:
		n, err := intPtr(target, value)
		if err != nil {
			return err
		}
		line.DaysSupplied = n
	case TargetChargeAmount:
		d, err := decimalPtr(target, value)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("%s: amount is required", target)
		}
		line.ChargeAmount = *d
	case TargetCopayAmount:
		d, err := decimalPtr(target, value)
		if err != nil {
			return err
		}
		line.CopayAmount = d
	case TargetCopayFlag:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.CopayFlag = s
	case TargetNote:
		s, err := requireString(target, value)
		if err != nil {
			return err
		}
		line.Note = s
	default:
		return fmt.Errorf("unknown target %d", int(target))
	}
	return nil
}

// requireString accepts text values; nil becomes the empty string so
// optional columns land as blank canonical fields.
func requireString(target Target, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected text, got %T", target, value)
	}
	return s, nil
}

func timePtr(target Target, value interface{}) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("%s: expected date, got %T", target, value)
	}
	return &t, nil
}

// decimalPtr accepts decimals and whole numbers; quantity columns come
// through as either depending on the format's field type.
func decimalPtr(target Target, value interface{}) (*decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		return &v, nil
	case int64:
		d := decimal.NewFromInt(v)
		return &d, nil
	default:
		return nil, fmt.Errorf("%s: expected amount, got %T", target, value)
	}
}

func intPtr(target Target, value interface{}) (*int64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int64:
		return &v, nil
	case decimal.Decimal:
		if !v.IsInteger() {
			return nil, fmt.Errorf("%s: expected whole number, got %s", target, v)
		}
		n := v.IntPart()
		return &n, nil
	default:
		return nil, fmt.Errorf("%s: expected whole number, got %T", target, value)
	}
}
