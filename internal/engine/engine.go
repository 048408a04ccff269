// Package engine orchestrates one invoice file through its lifecycle:
// resolve what the file is, validate every row, then load the accepted
// rows in a single idempotent transaction. A file moves Received ->
// Validating -> Valid/Invalid -> Processing -> Committed/Failed; the
// terminal states never transition again.
package engine

import (
	"bytes"
	"context"

	"pharmacy-invoice-service/internal/extractor"
	"pharmacy-invoice-service/internal/mappers"
	"pharmacy-invoice-service/internal/models"
	"pharmacy-invoice-service/internal/normalizer"
	"pharmacy-invoice-service/internal/repository"
	"pharmacy-invoice-service/internal/storage"
	apperrors "pharmacy-invoice-service/pkg/errors"
	"pharmacy-invoice-service/pkg/logger"
)

// BatchState tracks where a file is in its lifecycle.
type BatchState string

const (
	StateReceived   BatchState = "received"
	StateValidating BatchState = "validating"
	StateValid      BatchState = "valid"
	StateInvalid    BatchState = "invalid"
	StateProcessing BatchState = "processing"
	StateCommitted  BatchState = "committed"
	StateFailed     BatchState = "failed"
)

// Batch is one invoice file moving through the pipeline, carrying
// everything resolved and validated about it.
type Batch struct {
	State      BatchState
	Locator    models.Locator
	Facility   *models.Facility
	Pharmacy   *models.Pharmacy
	Source     *models.InvoiceSource
	Mapping    *models.FacilityPharmacyMap
	Settings   *models.ReaderSettings
	Descriptor *mappers.Descriptor
	Rows       []normalizer.RowResult
	TotalRows  int
}

// Engine wires the pipeline collaborators together.
type Engine struct {
	repo     repository.Repository
	fetcher  storage.Fetcher
	registry *mappers.Registry
	logger   logger.Logger
}

// New builds an engine.
func New(repo repository.Repository, fetcher storage.Fetcher, registry *mappers.Registry) *Engine {
	return &Engine{
		repo:     repo,
		fetcher:  fetcher,
		registry: registry,
		logger:   logger.GetGlobalLogger().WithComponent("engine"),
	}
}

// VerifyFormats confirms every configured reader setting resolves to a
// registered format descriptor. Run at startup.
func (e *Engine) VerifyFormats(ctx context.Context) error {
	settings, err := e.repo.AllReaderSettings(ctx)
	if err != nil {
		return err
	}

	pairs := make([]mappers.FormatPair, 0, len(settings))
	for _, s := range settings {
		pairs = append(pairs, mappers.FormatPair{Pharmacy: s.PharmacyName, Channel: s.SourceName})
	}
	if err := e.registry.Verify(pairs); err != nil {
		return err
	}

	for _, s := range settings {
		descriptor, err := e.registry.Resolve(s.PharmacyName, s.SourceName)
		if err != nil {
			return err
		}
		if err := descriptor.CoversFields(s.Fields); err != nil {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, descriptor.Key, err)
		}
	}
	return nil
}

// Validate runs a file through resolution, extraction, and row
// validation. Problems with the file's content are recorded in the log
// and reported as valid=false with the batch in StateInvalid; the
// returned error is reserved for collaborator failures, where the batch
// is nil.
func (e *Engine) Validate(ctx context.Context, key string, testMode bool) (bool, *ValidationLog, *Batch, error) {
	vlog := NewValidationLog(key)
	log := e.logger.WithField("file", key)

	locator, err := models.ParseLocator(key)
	if err != nil {
		return false, vlog, nil, apperrors.ConfigurationError(apperrors.CodeBadLocator, key, err)
	}

	facility, err := e.repo.FacilityByPathName(ctx, locator.Facility)
	if err != nil {
		return false, vlog, nil, err
	}
	source, err := e.repo.SourceByName(ctx, locator.Source)
	if err != nil {
		return false, vlog, nil, err
	}
	pharmacy, mapping, err := e.repo.PharmacyForFacility(ctx, facility.ID)
	if err != nil {
		return false, vlog, nil, err
	}
	settings, err := e.repo.ReaderSettings(ctx, pharmacy.ID, source.ID)
	if err != nil {
		return false, vlog, nil, err
	}
	descriptor, err := e.registry.Resolve(settings.PharmacyName, settings.SourceName)
	if err != nil {
		return false, vlog, nil, err
	}
	if err := descriptor.CoversFields(settings.Fields); err != nil {
		return false, vlog, nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, descriptor.Key, err)
	}

	data, err := e.fetcher.Fetch(ctx, key)
	if err != nil {
		return false, vlog, nil, err
	}

	log = log.WithFields(logger.Fields{
		"pharmacy": pharmacy.Name,
		"facility": facility.Name,
		"format":   descriptor.Key,
	})
	log.Info("Validating invoice file")

	batch := &Batch{
		State:      StateValidating,
		Locator:    locator,
		Facility:   facility,
		Pharmacy:   pharmacy,
		Source:     source,
		Mapping:    mapping,
		Settings:   settings,
		Descriptor: descriptor,
	}

	workbook, err := extractor.OpenWorkbook(bytes.NewReader(data))
	if err != nil {
		vlog.Infof("file is not a readable workbook: %v", err)
		batch.State = StateInvalid
		return false, vlog, batch, nil
	}
	defer workbook.Close()

	sheet, err := workbook.Extract(extractor.Settings{
		SheetName:           settings.SheetName,
		HeaderRowIndex:      settings.HeaderRowIndex,
		SkipRowsAfterHeader: settings.SkipRowsAfterHeader,
		SkipEndingRows:      settings.SkipEndingRows,
	})
	if err != nil {
		if appErr, ok := apperrors.AsInvoiceError(err); ok && appErr.Category == apperrors.CategoryStructure {
			vlog.Infof("%s", appErr.Message)
			batch.State = StateInvalid
			return false, vlog, batch, nil
		}
		return false, vlog, nil, err
	}

	norm := normalizer.New(descriptor.FieldSet, sheet.Header)
	accepted, rejected := norm.NormalizeAll(sheet.Records, sheet.FirstDataRow)

	batch.TotalRows = len(sheet.Records)
	vlog.Infof("rows scanned: %d, accepted: %d, rejected: %d",
		batch.TotalRows, len(accepted), len(rejected))

	for _, result := range rejected {
		for _, rowErr := range result.Errors {
			vlog.AddRowError(rowErr)
		}
	}

	if len(rejected) > 0 {
		batch.State = StateInvalid
		log.WithField("rejected_rows", len(rejected)).Warn("Invoice file rejected")
		return false, vlog, batch, nil
	}

	batch.State = StateValid
	batch.Rows = accepted
	log.WithField("rows", len(accepted)).Info("Invoice file valid")
	return true, vlog, batch, nil
}

// Process loads a validated batch. The whole file commits or nothing
// does; either way the batch reaches a terminal state and the batch log
// records the outcome. There is no retry here - re-running the file is
// safe because the load replaces by batch key.
func (e *Engine) Process(ctx context.Context, batch *Batch, vlog *ValidationLog, testMode bool) (bool, error) {
	if batch == nil || batch.State != StateValid {
		return false, apperrors.InternalError("process", nil).
			WithContext("state", string(batchState(batch)))
	}
	batch.State = StateProcessing

	log := e.logger.WithFields(logger.Fields{
		"file":     batch.Locator.Key,
		"pharmacy": batch.Pharmacy.Name,
		"facility": batch.Facility.Name,
	})

	batchID, err := e.repo.StartBatchLog(ctx, &models.BatchLog{
		PharmacyID: batch.Pharmacy.ID,
		FacilityID: batch.Facility.ID,
		SourceID:   batch.Source.ID,
		InvoiceDt:  batch.Locator.InvoiceDate(),
	})
	if err != nil {
		batch.State = StateFailed
		return false, err
	}

	mctx := mappers.Context{
		BatchID:      batchID,
		PharmacyID:   batch.Pharmacy.ID,
		FacilityID:   batch.Facility.ID,
		PayerGroupID: batch.Mapping.PayerGroupID,
		InvoiceDt:    batch.Locator.InvoiceDate(),
		Test:         testMode,
	}

	lines := make([]*models.InvoiceLine, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		line, err := batch.Descriptor.Map(row.Values, mctx)
		if err != nil {
			batch.State = StateFailed
			vlog.Infof("row %d could not be mapped: %v", row.Row, err)
			e.closeBatchLog(ctx, batchID, models.BatchFailed, log)
			return false, err
		}
		lines = append(lines, line)
	}

	key := models.BatchKey{
		PharmacyID: batch.Pharmacy.ID,
		FacilityID: batch.Facility.ID,
		InvoiceDt:  batch.Locator.InvoiceDate(),
		Test:       testMode,
	}

	inserted, err := e.repo.ReplaceInvoiceLines(ctx, key, lines)
	if err != nil {
		batch.State = StateFailed
		vlog.Infof("load failed, no rows committed: %v", err)
		e.closeBatchLog(ctx, batchID, models.BatchFailed, log)
		return false, err
	}

	if err := e.repo.CloseBatchLog(ctx, batchID, models.BatchCommitted); err != nil {
		// Lines are already committed; report the bookkeeping failure
		// without undoing the load.
		batch.State = StateCommitted
		vlog.Infof("committed %d lines, batch log close failed: %v", inserted, err)
		return true, err
	}

	batch.State = StateCommitted
	vlog.Infof("committed %d invoice lines", inserted)
	log.WithField("lines", inserted).Info("Invoice batch committed")
	return true, nil
}

// Run validates and, when valid, processes a file in one call. The
// returned batch carries the terminal state for notification.
func (e *Engine) Run(ctx context.Context, key string, testMode bool) (*Batch, *ValidationLog, error) {
	valid, vlog, batch, err := e.Validate(ctx, key, testMode)
	if err != nil {
		return batch, vlog, err
	}
	if !valid {
		return batch, vlog, nil
	}

	_, err = e.Process(ctx, batch, vlog, testMode)
	return batch, vlog, err
}

func (e *Engine) closeBatchLog(ctx context.Context, id int64, status models.BatchStatus, log logger.Logger) {
	if err := e.repo.CloseBatchLog(ctx, id, status); err != nil {
		log.WithError(err).Error("Failed to close batch log")
	}
}

func batchState(batch *Batch) BatchState {
	if batch == nil {
		return ""
	}
	return batch.State
}
