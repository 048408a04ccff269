package repository

import (
	"strings"
	"testing"
	"time"

	"pharmacy-invoice-service/internal/models"

	"github.com/shopspring/decimal"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Host = " " }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "missing database", mutate: func(c *Config) { c.Database = "" }, wantErr: true},
		{name: "missing user", mutate: func(c *Config) { c.User = "" }, wantErr: true},
		{name: "zero conns", mutate: func(c *Config) { c.MaxConns = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	config := &Config{
		Host:     "db.internal",
		Port:     5433,
		Database: "pharmacy",
		User:     "invoicer",
		Password: "hunter2",
		SSLMode:  "require",
	}

	dsn := config.DSN()
	for _, want := range []string{
		"host=db.internal", "port=5433", "dbname=pharmacy",
		"user=invoicer", "password=hunter2", "sslmode=require",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}

	t.Run("password omitted when empty", func(t *testing.T) {
		config := DefaultConfig()
		if strings.Contains(config.DSN(), "password=") {
			t.Error("DSN should not carry an empty password")
		}
	})
}

func TestCopyRows(t *testing.T) {
	lastName := "Doe"
	dob := time.Date(1948, time.July, 2, 0, 0, 0, 0, time.UTC)
	dispensed := time.Date(2021, time.March, 9, 0, 0, 0, 0, time.UTC)
	qty := decimal.RequireFromString("30")
	copay := decimal.RequireFromString("5.00")
	days := int64(30)

	full := &models.InvoiceLine{
		BatchID:         77,
		PharmacyID:      3,
		FacilityID:      12,
		PayerGroupID:    5,
		InvoiceDt:       time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
		FirstName:       "John",
		LastName:        &lastName,
		SSN:             "123456789",
		DOB:             &dob,
		Gender:          "M",
		DispenseDt:      &dispensed,
		ProductCategory: "RX",
		DrugName:        "Lisinopril",
		Doctor:          "Dr Smith",
		RxNumber:        "RX100",
		NDC:             "00591-0405-01",
		Quantity:        &qty,
		DaysSupplied:    &days,
		ChargeAmount:    decimal.RequireFromString("125.50"),
		CopayAmount:     &copay,
		CopayFlag:       "N",
		Note:            "refill",
		Duplicate:       false,
	}

	sparse := &models.InvoiceLine{
		BatchID:      77,
		PharmacyID:   3,
		FacilityID:   12,
		PayerGroupID: 5,
		InvoiceDt:    time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC),
		FirstName:    "Cher",
		ChargeAmount: decimal.RequireFromString("9.99"),
		CopayFlag:    "N",
		Duplicate:    true,
	}

	rows := copyRows([]*models.InvoiceLine{full, sparse})

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(invoiceColumns) {
			t.Errorf("row %d has %d values, want %d", i, len(row), len(invoiceColumns))
		}
	}

	if rows[0][5] != "John" || rows[0][6] != "Doe" {
		t.Errorf("name columns = %v, %v", rows[0][5], rows[0][6])
	}
	if rows[0][18] != "125.5" {
		t.Errorf("charge_amt = %v, want 125.5", rows[0][18])
	}
	if rows[0][16] != "30" || rows[0][19] != "5" {
		t.Errorf("quantity/copay = %v, %v", rows[0][16], rows[0][19])
	}

	// Sparse line: nil pointers must become SQL nulls, not typed zero values.
	for _, idx := range []int{6, 8, 10, 16, 17, 19} {
		if rows[1][idx] != nil {
			t.Errorf("sparse row column %s = %v, want nil", invoiceColumns[idx], rows[1][idx])
		}
	}
	if rows[1][22] != true {
		t.Errorf("duplicate_flg = %v, want true", rows[1][22])
	}
}
