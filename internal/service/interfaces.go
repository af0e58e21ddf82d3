// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgersift/ledgersift/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	UserID    string
	Category  string
	Limit     int
	Offset    int
}

// CategoryPatch is the update applied to a set of transactions when they are
// recategorized in bulk.
type CategoryPatch struct {
	Category    string
	Subcategory string
	Vendor      string
}

// Storage defines the contract for the persistence layer. Every multi-item
// read or write is implicitly bounded by the store's maximum items-per-call
// limit; implementations chunk accordingly.
type Storage interface {
	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionsByDate(ctx context.Context, userID string, date time.Time) ([]model.Transaction, error)
	GetTransactionsByImportID(ctx context.Context, importID string) ([]model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateTransactionCategories(ctx context.Context, ids []string, patch CategoryPatch) (int, error)
	DeleteTransactionsByImportID(ctx context.Context, importID string) (int, error)

	// Classification rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error)
	GetAllRules(ctx context.Context, userID string) ([]model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	IncrementRuleUseCount(ctx context.Context, id int64) error

	// Import record operations
	CreateImportRecord(ctx context.Context, record *model.ImportRecord) error
	FinalizeImportRecord(ctx context.Context, record *model.ImportRecord) error
	GetImportRecord(ctx context.Context, id string) (*model.ImportRecord, error)
	ListImportRecords(ctx context.Context, userID string) ([]model.ImportRecord, error)
	DeleteImportRecord(ctx context.Context, id string) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
