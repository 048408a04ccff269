// Package models defines the canonical data structures shared across the
// invoice pipeline: reference entities resolved from the database, the
// locator that identifies an uploaded file, normalized row values, and the
// canonical invoice line that gets persisted.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Facility is a care facility that receives pharmacy invoices.
type Facility struct {
	ID       int64
	Name     string
	PathName string
}

// Pharmacy is a dispensing pharmacy that issues invoices.
type Pharmacy struct {
	ID   int64
	Name string
}

// InvoiceSource is the channel an invoice file arrived through,
// such as "email" or "portal".
type InvoiceSource struct {
	ID   int64
	Name string
}

// PayerGroup classifies who pays for a facility's invoice lines.
type PayerGroup struct {
	ID   int64
	Name string
}

// FacilityPharmacyMap links a facility to the pharmacy that serves it,
// carrying the payer group used for that pairing.
type FacilityPharmacyMap struct {
	FacilityID   int64
	PharmacyID   int64
	PayerGroupID int64
}

// ReaderSettings describes how to read one pharmacy's spreadsheet layout
// for a given source channel.
type ReaderSettings struct {
	ID                  int64
	PharmacyID          int64
	PharmacyName        string
	SourceID            int64
	SourceName          string
	SheetName           string
	HeaderRowIndex      int
	SkipRowsAfterHeader int
	SkipEndingRows      int
	Fields              []string
}

// BatchLog records one processing attempt for one invoice file.
type BatchLog struct {
	ID         int64
	PharmacyID int64
	FacilityID int64
	SourceID   int64
	InvoiceDt  time.Time
	Status     BatchStatus
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BatchStatus is the terminal or in-flight status stored in the batch log.
type BatchStatus string

const (
	BatchStarted   BatchStatus = "started"
	BatchCommitted BatchStatus = "committed"
	BatchFailed    BatchStatus = "failed"
	BatchRejected  BatchStatus = "rejected"
)

// Locator identifies an uploaded invoice file by its storage path:
// {year}/{month}/{facility}/{source}/{filename}.
type Locator struct {
	Key      string
	Year     int
	Month    time.Month
	Facility string
	Source   string
	Filename string
}

// InvoiceDate returns the first day of the locator's billing month.
func (l Locator) InvoiceDate() time.Time {
	return time.Date(l.Year, l.Month, 1, 0, 0, 0, 0, time.UTC)
}

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ParseLocator splits a storage key into its locator parts. The month
// segment accepts an English month name or a 1-12 number.
func ParseLocator(key string) (Locator, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 5 {
		return Locator{}, fmt.Errorf("locator %q: want 5 path segments, got %d", key, len(parts))
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 2000 || year > 2100 {
		return Locator{}, fmt.Errorf("locator %q: bad year segment %q", key, parts[0])
	}

	month, ok := monthsByName[strings.ToLower(parts[1])]
	if !ok {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > 12 {
			return Locator{}, fmt.Errorf("locator %q: bad month segment %q", key, parts[1])
		}
		month = time.Month(n)
	}

	for i, segment := range parts[2:] {
		if strings.TrimSpace(segment) == "" {
			return Locator{}, fmt.Errorf("locator %q: empty segment at position %d", key, i+2)
		}
	}

	return Locator{
		Key:      key,
		Year:     year,
		Month:    month,
		Facility: parts[2],
		Source:   parts[3],
		Filename: parts[4],
	}, nil
}

// BatchKey identifies the idempotency scope of one load: all invoice lines
// for the same pharmacy, facility, billing month, and test flag are
// replaced together.
type BatchKey struct {
	PharmacyID int64
	FacilityID int64
	InvoiceDt  time.Time
	Test       bool
}

// InvoiceLine is the canonical persisted record for one dispensed item.
// Pointer fields are nullable columns.
type InvoiceLine struct {
	BatchID         int64
	PharmacyID      int64
	FacilityID      int64
	PayerGroupID    int64
	InvoiceDt       time.Time
	FirstName       string
	LastName        *string
	SSN             string
	DOB             *time.Time
	Gender          string
	DispenseDt      *time.Time
	ProductCategory string
	DrugName        string
	Doctor          string
	RxNumber        string
	NDC             string
	Quantity        *decimal.Decimal
	DaysSupplied    *int64
	ChargeAmount    decimal.Decimal
	CopayAmount     *decimal.Decimal
	CopayFlag       string
	Note            string
	Duplicate       bool
}

// NormalizedRow holds the typed values of one accepted spreadsheet row,
// keyed by canonical field name. Values are string, int64,
// decimal.Decimal, time.Time, or nil for an empty optional field.
type NormalizedRow map[string]interface{}

// String returns the named field as a string. Nil values and absent
// fields come back empty.
func (r NormalizedRow) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Int returns the named field as an int64 with an ok flag.
func (r NormalizedRow) Int(field string) (int64, bool) {
	v, ok := r[field].(int64)
	return v, ok
}

// Decimal returns the named field as a decimal with an ok flag.
func (r NormalizedRow) Decimal(field string) (decimal.Decimal, bool) {
	v, ok := r[field].(decimal.Decimal)
	return v, ok
}

// Date returns the named field as a time with an ok flag.
func (r NormalizedRow) Date(field string) (time.Time, bool) {
	v, ok := r[field].(time.Time)
	return v, ok
}

// Empty reports whether the field is absent or nil.
func (r NormalizedRow) Empty(field string) bool {
	v, ok := r[field]
	return !ok || v == nil
}
