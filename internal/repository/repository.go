// Package repository defines how the pipeline reads reference data and
// persists invoice batches. The interface keeps the orchestrator
// testable; the Postgres implementation lives alongside it.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmacy-invoice-service/internal/models"
)

// Repository is the persistence contract for the invoice pipeline.
type Repository interface {
	// FacilityByPathName resolves the facility segment of a locator.
	FacilityByPathName(ctx context.Context, name string) (*models.Facility, error)

	// SourceByName resolves the source-channel segment of a locator.
	SourceByName(ctx context.Context, name string) (*models.InvoiceSource, error)

	// PharmacyForFacility returns the pharmacy serving a facility and
	// the facility-pharmacy pairing that carries the payer group.
	PharmacyForFacility(ctx context.Context, facilityID int64) (*models.Pharmacy, *models.FacilityPharmacyMap, error)

	// ReaderSettings returns the spreadsheet layout for one pharmacy
	// and source channel.
	ReaderSettings(ctx context.Context, pharmacyID, sourceID int64) (*models.ReaderSettings, error)

	// AllReaderSettings lists every configured layout, used by the
	// startup check that each one has a registered format.
	AllReaderSettings(ctx context.Context) ([]models.ReaderSettings, error)

	// StartBatchLog opens a batch log entry and returns its id.
	StartBatchLog(ctx context.Context, log *models.BatchLog) (int64, error)

	// CloseBatchLog stamps the terminal status and finish time.
	CloseBatchLog(ctx context.Context, id int64, status models.BatchStatus) error

	// ReplaceInvoiceLines deletes every line under the batch key and
	// inserts the given lines in one transaction. It returns the number
	// of rows inserted.
	ReplaceInvoiceLines(ctx context.Context, key models.BatchKey, lines []*models.InvoiceLine) (int64, error)
}

// Config holds the database connection settings.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"-"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns       int32         `json:"max_conns"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// DefaultConfig returns connection settings suitable for local work.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5432,
		Database:       "pharmacy",
		User:           "invoicer",
		SSLMode:        "prefer",
		MaxConns:       4,
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("database port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("database name is required")
	}
	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("database user is required")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max conns must be at least 1")
	}
	return nil
}

// DSN renders the pgx connection string.
func (c *Config) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("user=%s", c.User),
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
	}
	return strings.Join(parts, " ")
}
