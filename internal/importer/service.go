// Package importer owns the lifecycle of one import attempt: preview,
// optional re-mapping, confirm with chunk-aware persistence, cancel, and
// expiry.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/csvimport"
	"github.com/ledgersift/ledgersift/internal/dedupe"
	"github.com/ledgersift/ledgersift/internal/engine"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
	"github.com/ledgersift/ledgersift/internal/statement"
)

// sampleLimit bounds the duplicates, errors, and preview samples returned
// verbatim; full counts are always exact.
const sampleLimit = 10

// Service drives the import pipeline end to end.
type Service struct {
	store      service.Storage
	registry   *Registry
	classifier *engine.Classifier
	detector   *dedupe.Detector
	csv        *csvimport.Parser
	stmt       *statement.Parser
}

// NewService creates an import service.
func NewService(store service.Storage, registry *Registry) *Service {
	return &Service{
		store:      store,
		registry:   registry,
		classifier: engine.NewClassifier(),
		detector:   dedupe.NewDetector(store),
		csv:        csvimport.NewParser(),
		stmt:       statement.NewParser(),
	}
}

// UploadOptions identifies the owner and file of a new upload.
type UploadOptions struct {
	UserID    string
	CompanyID string
	FileName  string
	BankHint  string
	Mapping   *csvimport.ColumnMapping
}

// Preview is returned after parsing an upload, before anything is persisted.
type Preview struct {
	ExpiresAt          time.Time
	UploadID           string
	DetectedBank       string
	DetectedBankName   string
	Headers            []string
	SampleTransactions []model.Candidate
	Errors             []csvimport.RowError
	TotalRows          int
	ParsedCount        int
	Success            bool
	RequiresMapping    bool
}

// ConfirmOptions controls the confirm transition.
type ConfirmOptions struct {
	// OnProgress, when set, is called after each row attempt.
	OnProgress     func(done, total int)
	SkipDuplicates bool
	Classify       bool
}

// RowFailure records one row whose persistence failed during confirm.
type RowFailure struct {
	Reason string
	Row    int
}

// DateRange is the inclusive date span of an import's persisted rows.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// ConfirmResult summarizes a confirmed import. Duplicates and Errors carry
// at most the first ten samples; the counts are exact.
type ConfirmResult struct {
	ImportID                 string
	UnclassifiedTransactions []model.Transaction
	Duplicates               []model.Candidate
	Errors                   []RowFailure
	DateRange                DateRange
	Imported                 int
	Classified               int
	Unclassified             int
	DuplicateCount           int
	ErrorCount               int
}

// PreviewCSV parses uploaded CSV content, registers a pending import, and
// returns a bounded preview.
func (s *Service) PreviewCSV(ctx context.Context, data []byte, opts UploadOptions) (*Preview, error) {
	if err := validateUpload(opts); err != nil {
		return nil, err
	}

	result, err := s.csv.Parse(ctx, data, csvimport.Options{
		BankHint: opts.BankHint,
		Mapping:  opts.Mapping,
	})
	if err != nil {
		return nil, common.NewUserError("could not parse CSV file", err)
	}

	pending := &model.PendingImport{
		ID:              uuid.NewString(),
		UserID:          opts.UserID,
		CompanyID:       opts.CompanyID,
		FileName:        opts.FileName,
		Bank:            result.DetectedBank,
		BankName:        result.DetectedBankName,
		Source:          model.SourceCSVImport,
		Headers:         result.Headers,
		Candidates:      result.Transactions,
		RawData:         data,
		RequiresMapping: result.RequiresMapping,
	}
	s.registry.Put(pending)

	return s.preview(pending, result), nil
}

// RemapCSV re-derives a pending import's candidates with an explicit column
// mapping. The pending entry stays in the uploaded state.
func (s *Service) RemapCSV(ctx context.Context, userID, uploadID string, mapping *csvimport.ColumnMapping) (*Preview, error) {
	if mapping == nil {
		return nil, fmt.Errorf("%w: mapping", common.ErrInvalidConfig)
	}

	var preview *Preview
	err := s.registry.WithLock(uploadID, func() error {
		pending, err := s.ownedEntry(userID, uploadID)
		if err != nil {
			return err
		}

		result, err := s.csv.Parse(ctx, pending.RawData, csvimport.Options{Mapping: mapping})
		if err != nil {
			return common.NewUserError("could not re-parse CSV file", err)
		}

		pending.Bank = result.DetectedBank
		pending.BankName = result.DetectedBankName
		pending.Headers = result.Headers
		pending.Candidates = result.Transactions
		pending.RequiresMapping = result.RequiresMapping

		preview = s.preview(pending, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// PreviewStatement parses extracted statement text and registers a pending
// import for it.
func (s *Service) PreviewStatement(ctx context.Context, text string, opts UploadOptions) (*Preview, *statement.Result, error) {
	if err := validateUpload(opts); err != nil {
		return nil, nil, err
	}

	result, err := s.stmt.ParseText(ctx, text)
	if err != nil {
		return nil, nil, common.NewUserError("could not parse statement text", err)
	}

	pending := &model.PendingImport{
		ID:         uuid.NewString(),
		UserID:     opts.UserID,
		CompanyID:  opts.CompanyID,
		FileName:   opts.FileName,
		Source:     model.SourceStatementImport,
		Candidates: result.Transactions,
	}
	s.registry.Put(pending)

	preview := &Preview{
		UploadID:           pending.ID,
		Success:            result.Success,
		TotalRows:          result.Summary.TotalLines,
		ParsedCount:        result.Summary.ParsedCount,
		SampleTransactions: sampleCandidates(result.Transactions),
		ExpiresAt:          pending.ExpiresAt,
	}
	return preview, result, nil
}

// PreviewCandidates registers pre-parsed candidates (e.g. from the OFX
// parser) as a pending import.
func (s *Service) PreviewCandidates(_ context.Context, candidates []model.Candidate, source model.TransactionSource, opts UploadOptions) (*Preview, error) {
	if err := validateUpload(opts); err != nil {
		return nil, err
	}

	pending := &model.PendingImport{
		ID:         uuid.NewString(),
		UserID:     opts.UserID,
		CompanyID:  opts.CompanyID,
		FileName:   opts.FileName,
		Source:     source,
		Candidates: candidates,
	}
	s.registry.Put(pending)

	return &Preview{
		UploadID:           pending.ID,
		Success:            true,
		TotalRows:          len(candidates),
		ParsedCount:        len(candidates),
		SampleTransactions: sampleCandidates(candidates),
		ExpiresAt:          pending.ExpiresAt,
	}, nil
}

// Confirm promotes a pending import's valid candidates to persisted
// transactions. The audit record is created first so every row references a
// stable import id; per-row failures and duplicates are counted without
// aborting the loop; the pending entry is removed only after the audit
// record is finalized.
func (s *Service) Confirm(ctx context.Context, userID, uploadID string, opts ConfirmOptions) (*ConfirmResult, error) {
	var result *ConfirmResult
	err := s.registry.WithLock(uploadID, func() error {
		pending, err := s.ownedEntry(userID, uploadID)
		if err != nil {
			return err
		}

		valid := validCandidates(pending.Candidates)
		if len(valid) == 0 {
			if pending.RequiresMapping {
				return common.ErrMappingNeeded
			}
			return common.ErrNoCandidates
		}

		record := &model.ImportRecord{
			ID:        uuid.NewString(),
			UserID:    pending.UserID,
			CompanyID: pending.CompanyID,
			FileName:  pending.FileName,
			Bank:      pending.Bank,
			BankName:  pending.BankName,
			Source:    pending.Source,
		}
		if err := common.WithRetry(ctx, func() error {
			return s.store.CreateImportRecord(ctx, record)
		}, common.RetryOptions{MaxAttempts: 3}); err != nil {
			return fmt.Errorf("failed to create import record: %w", err)
		}

		result = s.runConfirmLoop(ctx, pending, record, valid, opts)

		record.TransactionCount = result.Imported
		record.DuplicateCount = result.DuplicateCount
		record.ErrorCount = result.ErrorCount
		record.DateRangeStart = result.DateRange.Start
		record.DateRangeEnd = result.DateRange.End
		if err := common.WithRetry(ctx, func() error {
			return s.store.FinalizeImportRecord(ctx, record)
		}, common.RetryOptions{MaxAttempts: 3}); err != nil {
			// Rows are already persisted; surface the failure but keep the
			// pending entry so the finalize is retryable.
			return fmt.Errorf("failed to finalize import record: %w", err)
		}

		s.registry.Delete(uploadID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Import confirmed",
		"import_id", result.ImportID,
		"imported", result.Imported,
		"duplicates", result.DuplicateCount,
		"errors", result.ErrorCount)

	return result, nil
}

func (s *Service) runConfirmLoop(ctx context.Context, pending *model.PendingImport, record *model.ImportRecord, valid []model.Candidate, opts ConfirmOptions) *ConfirmResult {
	result := &ConfirmResult{ImportID: record.ID}

	classifications := s.classifications(ctx, pending.UserID, valid, opts)

	for i, candidate := range valid {
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(valid))
		}
		if opts.SkipDuplicates && s.detector.Check(ctx, pending.UserID, candidate) {
			result.DuplicateCount++
			if len(result.Duplicates) < sampleLimit {
				result.Duplicates = append(result.Duplicates, candidate)
			}
			continue
		}

		txn := candidate.ToTransaction(uuid.NewString(), pending.UserID, pending.CompanyID, pending.Source)
		txn.ImportID = &record.ID
		applyClassification(&txn, classifications[i])

		if err := s.store.CreateTransaction(ctx, &txn); err != nil {
			result.ErrorCount++
			if len(result.Errors) < sampleLimit {
				result.Errors = append(result.Errors, RowFailure{
					Row:    candidate.SourceRow,
					Reason: err.Error(),
				})
			}
			slog.Warn("Failed to persist imported transaction",
				"row", candidate.SourceRow,
				"error", err)
			continue
		}

		result.Imported++
		result.DateRange = extendRange(result.DateRange, txn.Date)

		if txn.Category != "" {
			result.Classified++
			if txn.RuleID != nil {
				// Best effort; the import does not depend on the counter.
				if err := s.store.IncrementRuleUseCount(ctx, *txn.RuleID); err != nil {
					slog.Debug("Failed to bump rule use count", "rule_id", *txn.RuleID, "error", err)
				}
			}
		} else {
			result.Unclassified++
			result.UnclassifiedTransactions = append(result.UnclassifiedTransactions, txn)
		}
	}

	return result
}

// classifications runs the rule engine over the batch. A rule fetch failure
// degrades to classification with no user rules rather than blocking the
// import.
func (s *Service) classifications(ctx context.Context, userID string, valid []model.Candidate, opts ConfirmOptions) []model.Classification {
	if !opts.Classify {
		out := make([]model.Classification, len(valid))
		for i := range out {
			out[i] = model.Unclassified()
		}
		return out
	}

	rules, err := s.store.GetActiveRules(ctx, userID)
	if err != nil {
		slog.Warn("Rule fetch failed, classifying with defaults only", "error", err)
		rules = nil
	}
	return s.classifier.Classify(valid, rules)
}

// Cancel removes a pending import without persisting anything. Cancelling an
// already-finalized or expired upload reports not-found.
func (s *Service) Cancel(_ context.Context, userID, uploadID string) error {
	return s.registry.WithLock(uploadID, func() error {
		if _, err := s.ownedEntry(userID, uploadID); err != nil {
			return err
		}
		s.registry.Delete(uploadID)
		return nil
	})
}

// ownedEntry fetches a pending entry and verifies the caller owns it. An
// ownership mismatch is access-denied, not not-found, so callers can tell
// the difference without the registry leaking other users' upload ids.
func (s *Service) ownedEntry(userID, uploadID string) (*model.PendingImport, error) {
	pending, ok := s.registry.Get(uploadID)
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", uploadID, common.ErrNotFound)
	}
	if pending.UserID != userID {
		return nil, fmt.Errorf("upload %s: %w", uploadID, common.ErrAccessDenied)
	}
	return pending, nil
}

func (s *Service) preview(pending *model.PendingImport, result *csvimport.ParseResult) *Preview {
	return &Preview{
		UploadID:           pending.ID,
		Success:            result.Success,
		DetectedBank:       result.DetectedBank,
		DetectedBankName:   result.DetectedBankName,
		Headers:            result.Headers,
		TotalRows:          result.TotalRows,
		ParsedCount:        result.ParsedCount,
		SampleTransactions: sampleCandidates(result.Transactions),
		RequiresMapping:    result.RequiresMapping,
		Errors:             result.Errors,
		ExpiresAt:          pending.ExpiresAt,
	}
}

func validateUpload(opts UploadOptions) error {
	if opts.UserID == "" {
		return fmt.Errorf("%w: user id", common.ErrMissingConfig)
	}
	if opts.FileName == "" {
		return fmt.Errorf("%w: file name", common.ErrMissingConfig)
	}
	return nil
}

func validCandidates(candidates []model.Candidate) []model.Candidate {
	valid := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Valid() {
			valid = append(valid, c)
		}
	}
	return valid
}

func applyClassification(txn *model.Transaction, c model.Classification) {
	txn.Category = c.Category
	txn.Subcategory = c.Subcategory
	txn.Vendor = c.Vendor
	txn.ClassificationSource = c.Source
	txn.Confidence = c.Confidence
	txn.RuleID = c.RuleID
}

func sampleCandidates(candidates []model.Candidate) []model.Candidate {
	if len(candidates) <= sampleLimit {
		return candidates
	}
	return candidates[:sampleLimit]
}

func extendRange(r DateRange, date time.Time) DateRange {
	if r.Start == nil || date.Before(*r.Start) {
		d := date
		r.Start = &d
	}
	if r.End == nil || date.After(*r.End) {
		d := date
		r.End = &d
	}
	return r
}
