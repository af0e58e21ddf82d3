package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

const importColumns = `id, user_id, company_id, file_name, bank, bank_name, source,
	transaction_count, duplicate_count, error_count,
	date_range_start, date_range_end, created_at, updated_at`

// CreateImportRecord persists a new audit record with its initial zero
// counts, before any transaction referencing it is written.
func (s *SQLiteStorage) CreateImportRecord(ctx context.Context, record *model.ImportRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateImportRecord(record); err != nil {
		return err
	}

	query := `
		INSERT INTO import_records (
			id, user_id, company_id, file_name, bank, bank_name, source,
			transaction_count, duplicate_count, error_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.CompanyID, record.FileName,
		record.Bank, record.BankName, string(record.Source),
		record.TransactionCount, record.DuplicateCount, record.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create import record: %w", err)
	}

	return nil
}

// FinalizeImportRecord fills in the final counts and date range in one
// write after all rows have been attempted.
func (s *SQLiteStorage) FinalizeImportRecord(ctx context.Context, record *model.ImportRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateImportRecord(record); err != nil {
		return err
	}

	query := `
		UPDATE import_records
		SET transaction_count = ?, duplicate_count = ?, error_count = ?,
			date_range_start = ?, date_range_end = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		record.TransactionCount, record.DuplicateCount, record.ErrorCount,
		record.DateRangeStart, record.DateRangeEnd, record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize import record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("import record %s: %w", record.ID, common.ErrNotFound)
	}

	return nil
}

// GetImportRecord retrieves one audit record.
func (s *SQLiteStorage) GetImportRecord(ctx context.Context, id string) (*model.ImportRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM import_records WHERE id = ?", importColumns)

	record, err := scanImportRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("import record %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get import record: %w", err)
	}
	return record, nil
}

// ListImportRecords returns a user's audit records, newest first.
func (s *SQLiteStorage) ListImportRecords(ctx context.Context, userID string) ([]model.ImportRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM import_records
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, importColumns)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ImportRecord
	for rows.Next() {
		record, err := scanImportRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import records: %w", err)
	}

	return records, nil
}

// DeleteImportRecord removes an audit record and every transaction it
// created. Returns the number of transactions deleted.
func (s *SQLiteStorage) DeleteImportRecord(ctx context.Context, id string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(id, "id"); err != nil {
		return 0, err
	}

	deleted, err := s.DeleteTransactionsByImportID(ctx, id)
	if err != nil {
		return deleted, err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM import_records WHERE id = ?", id)
	if err != nil {
		return deleted, fmt.Errorf("failed to delete import record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return deleted, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return deleted, fmt.Errorf("import record %s: %w", id, common.ErrNotFound)
	}

	slog.Info("Deleted import record",
		"import_id", id,
		"transactions_deleted", deleted)

	return deleted, nil
}

func scanImportRecord(row rowScanner) (*model.ImportRecord, error) {
	var record model.ImportRecord
	var companyID, bank, bankName sql.NullString
	var start, end sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&companyID,
		&record.FileName,
		&bank,
		&bankName,
		&record.Source,
		&record.TransactionCount,
		&record.DuplicateCount,
		&record.ErrorCount,
		&start,
		&end,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.CompanyID = companyID.String
	record.Bank = bank.String
	record.BankName = bankName.String
	if start.Valid {
		record.DateRangeStart = &start.Time
	}
	if end.Valid {
		record.DateRangeEnd = &end.Time
	}

	return &record, nil
}
