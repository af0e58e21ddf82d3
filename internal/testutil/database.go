// Package testutil provides test helpers for storage-backed tests: an
// in-memory database with migrations applied and seed helpers for the
// common fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
	"github.com/ledgersift/ledgersift/internal/storage"
)

// TestDB wraps an in-memory store with seed helpers bound to the test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database that is closed when the
// test finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return &TestDB{Storage: store, t: t}
}

// SeedRule persists a classification rule or fails the test. The rule's ID
// is filled in by the store.
func (db *TestDB) SeedRule(rule *model.Rule) *model.Rule {
	db.t.Helper()
	if err := db.Storage.CreateRule(context.Background(), rule); err != nil {
		db.t.Fatalf("failed to seed rule: %v", err)
	}
	return rule
}

// SeedTransaction persists a transaction or fails the test.
func (db *TestDB) SeedTransaction(txn *model.Transaction) *model.Transaction {
	db.t.Helper()
	if err := db.Storage.CreateTransaction(context.Background(), txn); err != nil {
		db.t.Fatalf("failed to seed transaction: %v", err)
	}
	return txn
}

// Transaction builds a valid expense transaction with the given overrides
// applied.
func Transaction(id, userID string, overrides ...func(*model.Transaction)) *model.Transaction {
	txn := &model.Transaction{
		ID:          id,
		UserID:      userID,
		CompanyID:   "test-company",
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-42.00"),
		Description: "TEST MERCHANT",
		Type:        model.TypeExpense,
		Source:      model.SourceManual,
	}
	for _, apply := range overrides {
		apply(txn)
	}
	return txn
}

// Rule builds a valid contains-match rule with the given overrides applied.
func Rule(userID, pattern string, overrides ...func(*model.Rule)) *model.Rule {
	rule := &model.Rule{
		UserID:    userID,
		Category:  "Test Category",
		MatchType: model.MatchContains,
		Patterns:  []string{pattern},
		Priority:  1,
		IsActive:  true,
	}
	for _, apply := range overrides {
		apply(rule)
	}
	return rule
}
