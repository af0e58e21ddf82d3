package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgersift/ledgersift/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidImport      = errors.New("invalid import record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction before persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Description == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	return nil
}

// validateRule validates a rule before persistence.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidRule)
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// validateImportRecord validates an import record before persistence.
func validateImportRecord(record *model.ImportRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidImport)
	}
	if record.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidImport)
	}
	if record.FileName == "" {
		return fmt.Errorf("%w: missing file name", ErrInvalidImport)
	}
	return nil
}
