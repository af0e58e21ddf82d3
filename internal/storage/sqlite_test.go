package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
	"github.com/ledgersift/ledgersift/internal/testutil"
)

func TestCreateAndGetTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.Transaction("txn-1", "user-1", func(txn *model.Transaction) {
		txn.Amount = decimal.RequireFromString("-45.23")
		txn.Description = "SHELL OIL 12345"
		txn.Category = "Auto"
		txn.ClassificationSource = model.SourceDefaultVendor
		txn.Confidence = 0.70
	})
	require.NoError(t, db.Storage.CreateTransaction(ctx, txn))

	// Hash is filled in on create.
	assert.NotEmpty(t, txn.Hash)

	got, err := db.Storage.GetTransactionsByDate(ctx, "user-1", txn.Date)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "txn-1", got[0].ID)
	assert.Equal(t, "SHELL OIL 12345", got[0].Description)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("-45.23")))
	assert.Equal(t, "Auto", got[0].Category)
	assert.Equal(t, model.SourceDefaultVendor, got[0].ClassificationSource)
	assert.InDelta(t, 0.70, got[0].Confidence, 0.0001)
}

func TestCreateTransactionValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.Transaction)
		name   string
	}{
		{name: "missing id", mutate: func(txn *model.Transaction) { txn.ID = "" }},
		{name: "missing user", mutate: func(txn *model.Transaction) { txn.UserID = "" }},
		{name: "missing date", mutate: func(txn *model.Transaction) { txn.Date = time.Time{} }},
		{name: "missing description", mutate: func(txn *model.Transaction) { txn.Description = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := testutil.Transaction("txn-1", "user-1", tt.mutate)
			require.Error(t, db.Storage.CreateTransaction(ctx, txn))
		})
	}
}

func TestCreateTransactionDuplicateID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedTransaction(testutil.Transaction("txn-1", "user-1"))

	err := db.Storage.CreateTransaction(ctx, testutil.Transaction("txn-1", "user-1"))
	require.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestCreateTransactionForeignKeyNotDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	missing := "imp-missing"
	err := db.Storage.CreateTransaction(ctx, testutil.Transaction("txn-fk", "user-1", func(txn *model.Transaction) {
		txn.ImportID = &missing
	}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestGetTransactionsByDateScopesUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	db.SeedTransaction(testutil.Transaction("txn-1", "user-1"))
	db.SeedTransaction(testutil.Transaction("txn-2", "user-2"))
	db.SeedTransaction(testutil.Transaction("txn-3", "user-1", func(txn *model.Transaction) {
		txn.Date = date.AddDate(0, 0, 1)
	}))

	got, err := db.Storage.GetTransactionsByDate(ctx, "user-1", date)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "txn-1", got[0].ID)
}

func TestGetTransactionsFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		db.SeedTransaction(testutil.Transaction(fmt.Sprintf("txn-%d", i), "user-1", func(txn *model.Transaction) {
			txn.Date = time.Date(2024, 1, 10+i, 0, 0, 0, 0, time.UTC)
			if i < 2 {
				txn.Category = "Groceries"
			}
		}))
	}

	byCategory, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{
		UserID:   "user-1",
		Category: "Groceries",
	})
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	start := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	byDate, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{
		UserID:    "user-1",
		StartDate: &start,
	})
	require.NoError(t, err)
	assert.Len(t, byDate, 3)

	limited, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{
		UserID: "user-1",
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateTransactionCategoriesChunked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// More ids than one batch so the update must span chunks.
	ids := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		id := fmt.Sprintf("txn-%04d", i)
		db.SeedTransaction(testutil.Transaction(id, "user-1"))
		ids = append(ids, id)
	}

	updated, err := db.Storage.UpdateTransactionCategories(ctx, ids, service.CategoryPatch{
		Category: "Travel",
		Vendor:   "Various",
	})
	require.NoError(t, err)
	assert.Equal(t, 600, updated)

	var total int
	for offset := 0; ; offset += 250 {
		page, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{
			UserID:   "user-1",
			Category: "Travel",
			Limit:    250,
			Offset:   offset,
		})
		require.NoError(t, err)
		total += len(page)
		if len(page) < 250 {
			break
		}
	}
	assert.Equal(t, 600, total)
}

func TestRuleCRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := db.SeedRule(testutil.Rule("user-1", "shell", func(rule *model.Rule) {
		rule.Category = "Auto"
		rule.Vendor = "Shell"
		rule.Priority = 10
	}))
	require.NotZero(t, rule.ID)

	got, err := db.Storage.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"shell"}, got.Patterns)
	assert.Equal(t, "Auto", got.Category)
	assert.Equal(t, model.MatchContains, got.MatchType)

	got.Category = "Transport"
	got.IsActive = false
	require.NoError(t, db.Storage.UpdateRule(ctx, got))

	updated, err := db.Storage.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Transport", updated.Category)
	assert.False(t, updated.IsActive)

	require.NoError(t, db.Storage.DeleteRule(ctx, rule.ID))
	_, err = db.Storage.GetRule(ctx, rule.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRuleNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	_, err := db.Storage.GetRule(ctx, 999)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, db.Storage.DeleteRule(ctx, 999), common.ErrNotFound)

	missing := testutil.Rule("user-1", "anything")
	missing.ID = 999
	require.ErrorIs(t, db.Storage.UpdateRule(ctx, missing), common.ErrNotFound)
}

func TestGetActiveRulesOrdering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedRule(testutil.Rule("user-1", "low", func(rule *model.Rule) { rule.Priority = 1 }))
	db.SeedRule(testutil.Rule("user-1", "high", func(rule *model.Rule) { rule.Priority = 10 }))
	db.SeedRule(testutil.Rule("user-1", "inactive", func(rule *model.Rule) {
		rule.Priority = 99
		rule.IsActive = false
	}))
	db.SeedRule(testutil.Rule("user-2", "other-user"))

	active, err := db.Storage.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, []string{"high"}, active[0].Patterns)
	assert.Equal(t, []string{"low"}, active[1].Patterns)

	all, err := db.Storage.GetAllRules(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIncrementRuleUseCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := db.SeedRule(testutil.Rule("user-1", "shell"))

	require.NoError(t, db.Storage.IncrementRuleUseCount(ctx, rule.ID))
	require.NoError(t, db.Storage.IncrementRuleUseCount(ctx, rule.ID))

	got, err := db.Storage.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount)
}

func TestImportRecordLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	record := &model.ImportRecord{
		ID:       "imp-1",
		UserID:   "user-1",
		FileName: "export.csv",
		Bank:     "chase",
		BankName: "Chase",
		Source:   model.SourceCSVImport,
	}
	require.NoError(t, db.Storage.CreateImportRecord(ctx, record))

	created, err := db.Storage.GetImportRecord(ctx, "imp-1")
	require.NoError(t, err)
	assert.Zero(t, created.TransactionCount)
	assert.Nil(t, created.DateRangeStart)

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
	record.TransactionCount = 3
	record.DuplicateCount = 1
	record.ErrorCount = 1
	record.DateRangeStart = &start
	record.DateRangeEnd = &end
	require.NoError(t, db.Storage.FinalizeImportRecord(ctx, record))

	finalized, err := db.Storage.GetImportRecord(ctx, "imp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, finalized.TransactionCount)
	assert.Equal(t, 1, finalized.DuplicateCount)
	assert.Equal(t, 1, finalized.ErrorCount)
	require.NotNil(t, finalized.DateRangeStart)
	assert.Equal(t, "2024-01-15", finalized.DateRangeStart.Format("2006-01-02"))

	records, err := db.Storage.ListImportRecords(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDeleteImportRecordCascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	record := &model.ImportRecord{
		ID:       "imp-1",
		UserID:   "user-1",
		FileName: "export.csv",
		Source:   model.SourceCSVImport,
	}
	require.NoError(t, db.Storage.CreateImportRecord(ctx, record))

	importID := record.ID
	for i := 0; i < 3; i++ {
		db.SeedTransaction(testutil.Transaction(fmt.Sprintf("txn-%d", i), "user-1", func(txn *model.Transaction) {
			txn.ImportID = &importID
			txn.Source = model.SourceCSVImport
		}))
	}
	db.SeedTransaction(testutil.Transaction("txn-keep", "user-1"))

	removed, err := db.Storage.DeleteImportRecord(ctx, "imp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = db.Storage.GetImportRecord(ctx, "imp-1")
	require.ErrorIs(t, err, common.ErrNotFound)

	remaining, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "txn-keep", remaining[0].ID)
}

func TestDeleteTransactionsByImportID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	record := &model.ImportRecord{
		ID:       "imp-1",
		UserID:   "user-1",
		FileName: "export.csv",
		Source:   model.SourceCSVImport,
	}
	require.NoError(t, db.Storage.CreateImportRecord(ctx, record))

	importID := record.ID
	for i := 0; i < 4; i++ {
		db.SeedTransaction(testutil.Transaction(fmt.Sprintf("txn-%d", i), "user-1", func(txn *model.Transaction) {
			txn.ImportID = &importID
		}))
	}

	removed, err := db.Storage.DeleteTransactionsByImportID(ctx, importID)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	got, err := db.Storage.GetTransactionsByImportID(ctx, importID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMigrateIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// SetupTestDB already migrated once.
	require.NoError(t, db.Storage.Migrate(context.Background()))
}
