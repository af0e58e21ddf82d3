package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ledgersift/ledgersift/internal/chunk"
	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
)

const transactionColumns = `id, user_id, company_id, hash, date, amount, description, payee,
	type, section_code, source, needs_review, import_id,
	category, subcategory, vendor, classification_source, confidence, rule_id, created_at`

// CreateTransaction persists a single transaction row.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}

	query := `
		INSERT INTO transactions (
			id, user_id, company_id, hash, date, amount, description, payee,
			type, section_code, source, needs_review, import_id,
			category, subcategory, vendor, classification_source, confidence, rule_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		txn.ID,
		txn.UserID,
		txn.CompanyID,
		txn.Hash,
		txn.Date,
		txn.Amount.StringFixed(2),
		txn.Description,
		txn.Payee,
		string(txn.Type),
		txn.SectionCode,
		string(txn.Source),
		txn.NeedsReview,
		txn.ImportID,
		txn.Category,
		txn.Subcategory,
		txn.Vendor,
		string(txn.ClassificationSource),
		txn.Confidence,
		txn.RuleID,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			// Only uniqueness violations are duplicates; foreign key and
			// NOT NULL failures are ordinary create errors.
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
				return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrDuplicateEntry)
			}
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetTransactionsByDate returns a user's transactions posted on exactly the
// given calendar date. Callers use this for duplicate detection.
func (s *SQLiteStorage) GetTransactionsByDate(ctx context.Context, userID string, date time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE user_id = ? AND date(date) = date(?)
		ORDER BY created_at ASC
		LIMIT %d
	`, transactionColumns, chunk.DefaultBatchSize)

	rows, err := s.db.QueryContext(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by date: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionsByImportID returns every transaction created by one import.
func (s *SQLiteStorage) GetTransactionsByImportID(ctx context.Context, importID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(importID, "importID"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE import_id = ?
		ORDER BY created_at ASC
	`, transactionColumns)

	rows, err := s.db.QueryContext(ctx, query, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by import: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactions returns transactions matching the filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	query := fmt.Sprintf("SELECT %s FROM transactions", transactionColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, created_at ASC"

	limit := filter.Limit
	if limit <= 0 || limit > chunk.DefaultBatchSize {
		limit = chunk.DefaultBatchSize
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// UpdateTransactionCategories applies a category patch to the given
// transaction ids, chunked to respect the store's per-call item cap.
// Returns the number of rows updated.
func (s *SQLiteStorage) UpdateTransactionCategories(ctx context.Context, ids []string, patch service.CategoryPatch) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := validateString(patch.Category, "patch.Category"); err != nil {
		return 0, err
	}

	res := chunk.UpdateChunked(ctx, ids, chunk.DefaultBatchSize, func(ctx context.Context, group []string) error {
		query := fmt.Sprintf(`
			UPDATE transactions
			SET category = ?, subcategory = ?, vendor = ?, classification_source = ?
			WHERE id IN (%s)
		`, placeholders(len(group)))

		args := make([]any, 0, len(group)+4)
		args = append(args, patch.Category, patch.Subcategory, patch.Vendor, string(model.SourceUserRule))
		for _, id := range group {
			args = append(args, id)
		}

		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})

	if len(res.Errors) > 0 {
		return res.Success, fmt.Errorf("failed to update %d of %d transactions: %w",
			res.Failed, len(ids), res.Errors[0].Err)
	}
	return res.Success, nil
}

// DeleteTransactionsByImportID removes every transaction created by one
// import, chunked. Returns the number of rows deleted.
func (s *SQLiteStorage) DeleteTransactionsByImportID(ctx context.Context, importID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(importID, "importID"); err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM transactions WHERE import_id = ?", importID)
	if err != nil {
		return 0, fmt.Errorf("failed to query transaction ids: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read transaction ids: %w", err)
	}

	res := chunk.UpdateChunked(ctx, ids, chunk.DefaultBatchSize, func(ctx context.Context, group []string) error {
		query := fmt.Sprintf("DELETE FROM transactions WHERE id IN (%s)", placeholders(len(group)))
		args := make([]any, len(group))
		for i, id := range group {
			args[i] = id
		}
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})

	if len(res.Errors) > 0 {
		return res.Success, fmt.Errorf("failed to delete %d of %d transactions: %w",
			res.Failed, len(ids), res.Errors[0].Err)
	}
	return res.Success, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction

	for rows.Next() {
		var txn model.Transaction
		var amount string
		var companyID, payee, sectionCode sql.NullString
		var category, subcategory, vendor, classificationSource sql.NullString
		var importID sql.NullString
		var ruleID sql.NullInt64

		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&companyID,
			&txn.Hash,
			&txn.Date,
			&amount,
			&txn.Description,
			&payee,
			&txn.Type,
			&sectionCode,
			&txn.Source,
			&txn.NeedsReview,
			&importID,
			&category,
			&subcategory,
			&vendor,
			&classificationSource,
			&txn.Confidence,
			&ruleID,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q for transaction %s: %w", amount, txn.ID, err)
		}
		txn.Amount = parsed

		txn.CompanyID = companyID.String
		txn.Payee = payee.String
		txn.SectionCode = sectionCode.String
		txn.Category = category.String
		txn.Subcategory = subcategory.String
		txn.Vendor = vendor.String
		txn.ClassificationSource = model.ClassificationSource(classificationSource.String)
		if importID.Valid {
			txn.ImportID = &importID.String
		}
		if ruleID.Valid {
			txn.RuleID = &ruleID.Int64
		}

		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return transactions, nil
}
