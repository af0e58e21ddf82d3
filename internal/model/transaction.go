// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType describes the direction of money movement.
type TransactionType string

// Transaction type constants.
const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// TransactionSource records how a transaction entered the system.
type TransactionSource string

// Transaction source constants.
const (
	SourceManual          TransactionSource = "manual"
	SourceCSVImport       TransactionSource = "csv_import"
	SourceStatementImport TransactionSource = "statement_import"
	SourceOFXImport       TransactionSource = "ofx_import"
)

// Transaction represents a single persisted financial transaction.
type Transaction struct {
	Date        time.Time
	CreatedAt   time.Time
	RuleID      *int64
	ImportID    *string
	ID          string
	UserID      string
	CompanyID   string
	Description string
	Payee       string
	Hash        string
	Category    string
	Subcategory string
	Vendor      string
	ClassificationSource ClassificationSource
	Type        TransactionType
	Source      TransactionSource
	SectionCode string
	Amount      decimal.Decimal
	Confidence  float64
	NeedsReview bool
}

// GenerateHash creates a stable hash for duplicate detection across imports.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description,
		t.UserID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
