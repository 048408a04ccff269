package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy-invoice-service/internal/models"
	apperrors "pharmacy-invoice-service/pkg/errors"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// invoiceColumns is the column order used for the bulk insert.
var invoiceColumns = []string{
	"batch_id", "pharmacy_id", "facility_id", "payer_group_id", "invoice_dt",
	"first_nm", "last_nm", "ssn", "dob", "gender", "dispense_dt",
	"product_category", "drug_nm", "doctor", "rx_nbr", "ndc",
	"quantity", "days_supplied", "charge_amt", "copay_amt", "copay_flg",
	"note", "duplicate_flg",
}

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPostgresRepository connects a pool using the given configuration.
func NewPostgresRepository(ctx context.Context, config *Config) (*PostgresRepository, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "database", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN())
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "database", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "connect", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger.GetGlobalLogger().WithComponent("repository"),
	}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Ping verifies database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return apperrors.PersistenceError(apperrors.CodeLookupFailed, "ping", err)
	}
	return nil
}

func (r *PostgresRepository) FacilityByPathName(ctx context.Context, name string) (*models.Facility, error) {
	const query = `
		SELECT facility_id, facility_nm, path_nm
		FROM facilities
		WHERE LOWER(path_nm) = LOWER($1)`

	var facility models.Facility
	err := r.pool.QueryRow(ctx, query, name).Scan(&facility.ID, &facility.Name, &facility.PathName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ConfigurationError(apperrors.CodeUnknownFacility, name, nil)
	}
	if err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "facility lookup", err)
	}
	return &facility, nil
}

func (r *PostgresRepository) SourceByName(ctx context.Context, name string) (*models.InvoiceSource, error) {
	const query = `
		SELECT source_id, source_nm
		FROM invoice_sources
		WHERE LOWER(source_nm) = LOWER($1)`

	var source models.InvoiceSource
	err := r.pool.QueryRow(ctx, query, name).Scan(&source.ID, &source.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ConfigurationError(apperrors.CodeUnknownSource, name, nil)
	}
	if err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "source lookup", err)
	}
	return &source, nil
}

func (r *PostgresRepository) PharmacyForFacility(ctx context.Context, facilityID int64) (*models.Pharmacy, *models.FacilityPharmacyMap, error) {
	const query = `
		SELECT p.pharmacy_id, p.pharmacy_nm, m.payer_group_id
		FROM facility_pharmacy_map m
		JOIN pharmacies p ON p.pharmacy_id = m.pharmacy_id
		WHERE m.facility_id = $1`

	var pharmacy models.Pharmacy
	var payerGroupID int64
	err := r.pool.QueryRow(ctx, query, facilityID).Scan(&pharmacy.ID, &pharmacy.Name, &payerGroupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "facility pharmacy mapping", nil).
			WithContext("facility_id", facilityID)
	}
	if err != nil {
		return nil, nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "facility pharmacy mapping", err)
	}

	mapping := &models.FacilityPharmacyMap{
		FacilityID:   facilityID,
		PharmacyID:   pharmacy.ID,
		PayerGroupID: payerGroupID,
	}
	return &pharmacy, mapping, nil
}

func (r *PostgresRepository) ReaderSettings(ctx context.Context, pharmacyID, sourceID int64) (*models.ReaderSettings, error) {
	const query = `
		SELECT s.setting_id, s.pharmacy_id, p.pharmacy_nm, s.source_id, src.source_nm,
		       s.sheet_nm, s.header_row_idx, s.skip_rows_after_header, s.skip_ending_rows,
		       s.raw_invoice_fields
		FROM pharmacy_invoice_reader_settings s
		JOIN pharmacies p ON p.pharmacy_id = s.pharmacy_id
		JOIN invoice_sources src ON src.source_id = s.source_id
		WHERE s.pharmacy_id = $1 AND s.source_id = $2`

	var settings models.ReaderSettings
	err := r.pool.QueryRow(ctx, query, pharmacyID, sourceID).Scan(
		&settings.ID, &settings.PharmacyID, &settings.PharmacyName,
		&settings.SourceID, &settings.SourceName,
		&settings.SheetName, &settings.HeaderRowIndex,
		&settings.SkipRowsAfterHeader, &settings.SkipEndingRows,
		&settings.Fields,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ConfigurationError(apperrors.CodeSettingsNotFound, settingsKey(pharmacyID, sourceID), nil)
	}
	if err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "reader settings lookup", err)
	}
	return &settings, nil
}

func (r *PostgresRepository) AllReaderSettings(ctx context.Context) ([]models.ReaderSettings, error) {
	const query = `
		SELECT s.setting_id, s.pharmacy_id, p.pharmacy_nm, s.source_id, src.source_nm,
		       s.sheet_nm, s.header_row_idx, s.skip_rows_after_header, s.skip_ending_rows,
		       s.raw_invoice_fields
		FROM pharmacy_invoice_reader_settings s
		JOIN pharmacies p ON p.pharmacy_id = s.pharmacy_id
		JOIN invoice_sources src ON src.source_id = s.source_id
		ORDER BY p.pharmacy_nm, src.source_nm`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "reader settings listing", err)
	}
	defer rows.Close()

	var all []models.ReaderSettings
	for rows.Next() {
		var settings models.ReaderSettings
		if err := rows.Scan(
			&settings.ID, &settings.PharmacyID, &settings.PharmacyName,
			&settings.SourceID, &settings.SourceName,
			&settings.SheetName, &settings.HeaderRowIndex,
			&settings.SkipRowsAfterHeader, &settings.SkipEndingRows,
			&settings.Fields,
		); err != nil {
			return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "reader settings listing", err)
		}
		all = append(all, settings)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.PersistenceError(apperrors.CodeLookupFailed, "reader settings listing", err)
	}
	return all, nil
}

func (r *PostgresRepository) StartBatchLog(ctx context.Context, log *models.BatchLog) (int64, error) {
	const query = `
		INSERT INTO invoice_batch_logs
			(pharmacy_id, facility_id, source_id, invoice_dt, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING batch_id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		log.PharmacyID, log.FacilityID, log.SourceID,
		log.InvoiceDt, string(models.BatchStarted), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, apperrors.PersistenceError(apperrors.CodeBatchLogFailed, "open batch log", err)
	}
	return id, nil
}

func (r *PostgresRepository) CloseBatchLog(ctx context.Context, id int64, status models.BatchStatus) error {
	const query = `
		UPDATE invoice_batch_logs
		SET status = $2, finished_at = $3
		WHERE batch_id = $1`

	tag, err := r.pool.Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return apperrors.PersistenceError(apperrors.CodeBatchLogFailed, "close batch log", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.PersistenceError(apperrors.CodeBatchLogFailed, "close batch log", nil).
			WithContext("batch_id", id)
	}
	return nil
}

// ReplaceInvoiceLines runs the idempotent load: within one transaction
// every line under the batch key is deleted, then the new lines go in
// through the copy protocol. Re-running a file converges on the same
// final state.
func (r *PostgresRepository) ReplaceInvoiceLines(ctx context.Context, key models.BatchKey, lines []*models.InvoiceLine) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, apperrors.PersistenceError(apperrors.CodeTransactionFailed, "begin", err)
	}
	defer tx.Rollback(ctx)

	const deleteQuery = `
		DELETE FROM pharmacy_invoices
		WHERE pharmacy_id = $1 AND facility_id = $2 AND invoice_dt = $3 AND duplicate_flg = $4`

	tag, err := tx.Exec(ctx, deleteQuery, key.PharmacyID, key.FacilityID, key.InvoiceDt, key.Test)
	if err != nil {
		return 0, apperrors.PersistenceError(apperrors.CodeTransactionFailed, "delete prior lines", err)
	}

	inserted, err := tx.CopyFrom(ctx,
		pgx.Identifier{"pharmacy_invoices"},
		invoiceColumns,
		pgx.CopyFromRows(copyRows(lines)),
	)
	if err != nil {
		return 0, apperrors.PersistenceError(apperrors.CodeTransactionFailed, "insert lines", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperrors.PersistenceError(apperrors.CodeTransactionFailed, "commit", err)
	}

	r.logger.WithFields(logger.Fields{
		"pharmacy_id": key.PharmacyID,
		"facility_id": key.FacilityID,
		"invoice_dt":  key.InvoiceDt.Format("2006-01-02"),
		"deleted":     tag.RowsAffected(),
		"inserted":    inserted,
	}).Info("Replaced invoice lines")

	return inserted, nil
}

// copyRows flattens invoice lines into the copy protocol's row shape,
// following invoiceColumns order.
func copyRows(lines []*models.InvoiceLine) [][]interface{} {
	rows := make([][]interface{}, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, []interface{}{
			line.BatchID,
			line.PharmacyID,
			line.FacilityID,
			line.PayerGroupID,
			line.InvoiceDt,
			line.FirstName,
			nullableString(line.LastName),
			line.SSN,
			nullableTime(line.DOB),
			line.Gender,
			nullableTime(line.DispenseDt),
			line.ProductCategory,
			line.DrugName,
			line.Doctor,
			line.RxNumber,
			line.NDC,
			nullableDecimal(line.Quantity),
			nullableInt(line.DaysSupplied),
			line.ChargeAmount.String(),
			nullableDecimal(line.CopayAmount),
			line.CopayFlag,
			line.Note,
			line.Duplicate,
		})
	}
	return rows
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt(n *int64) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func settingsKey(pharmacyID, sourceID int64) string {
	return fmt.Sprintf("pharmacy %d / source %d", pharmacyID, sourceID)
}
