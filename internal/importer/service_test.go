package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/csvimport"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
)

const chaseCSV = `Transaction Date,Post Date,Description,Category,Type,Amount
01/15/2024,01/16/2024,SHELL OIL 12345,Gas,Sale,-45.23
01/16/2024,01/17/2024,PAYROLL ACME CORP,Income,Deposit,2500.00
01/17/2024,01/18/2024,NETFLIX.COM,Entertainment,Sale,-15.99
`

// fakeStorage is an in-memory service.Storage for orchestrator tests.
type fakeStorage struct {
	mu            sync.Mutex
	transactions  []model.Transaction
	rules         []model.Rule
	records       map[string]*model.ImportRecord
	useCounts     map[int64]int
	createErrAt   map[int]error
	rulesErr      error
	byDateErr     error
	finalizeCalls int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		records:     make(map[string]*model.ImportRecord),
		useCounts:   make(map[int64]int),
		createErrAt: make(map[int]error),
	}
}

func (f *fakeStorage) CreateTransaction(_ context.Context, txn *model.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.createErrAt[len(f.transactions)]; ok {
		delete(f.createErrAt, len(f.transactions))
		return err
	}
	f.transactions = append(f.transactions, *txn)
	return nil
}

func (f *fakeStorage) GetTransactionsByDate(_ context.Context, userID string, date time.Time) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byDateErr != nil {
		return nil, f.byDateErr
	}
	var out []model.Transaction
	for _, txn := range f.transactions {
		if txn.UserID == userID && txn.Date.Equal(date) {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetTransactionsByImportID(_ context.Context, importID string) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Transaction
	for _, txn := range f.transactions {
		if txn.ImportID != nil && *txn.ImportID == importID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetTransactions(_ context.Context, _ service.TransactionFilter) ([]model.Transaction, error) {
	return f.transactions, nil
}

func (f *fakeStorage) UpdateTransactionCategories(_ context.Context, ids []string, _ service.CategoryPatch) (int, error) {
	return len(ids), nil
}

func (f *fakeStorage) DeleteTransactionsByImportID(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (f *fakeStorage) CreateRule(_ context.Context, rule *model.Rule) error {
	f.rules = append(f.rules, *rule)
	return nil
}

func (f *fakeStorage) GetRule(_ context.Context, _ int64) (*model.Rule, error) {
	return nil, common.ErrNotFound
}

func (f *fakeStorage) GetActiveRules(_ context.Context, _ string) ([]model.Rule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return f.rules, nil
}

func (f *fakeStorage) GetAllRules(_ context.Context, _ string) ([]model.Rule, error) {
	return f.rules, nil
}

func (f *fakeStorage) UpdateRule(_ context.Context, _ *model.Rule) error { return nil }
func (f *fakeStorage) DeleteRule(_ context.Context, _ int64) error { return nil }

func (f *fakeStorage) IncrementRuleUseCount(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.useCounts[id]++
	return nil
}

func (f *fakeStorage) CreateImportRecord(_ context.Context, record *model.ImportRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *record
	f.records[record.ID] = &copied
	return nil
}

func (f *fakeStorage) FinalizeImportRecord(_ context.Context, record *model.ImportRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls++
	copied := *record
	f.records[record.ID] = &copied
	return nil
}

func (f *fakeStorage) GetImportRecord(_ context.Context, id string) (*model.ImportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return record, nil
}

func (f *fakeStorage) ListImportRecords(_ context.Context, _ string) ([]model.ImportRecord, error) {
	return nil, nil
}

func (f *fakeStorage) DeleteImportRecord(_ context.Context, _ string) (int, error) { return 0, nil }
func (f *fakeStorage) Migrate(_ context.Context) error { return nil }
func (f *fakeStorage) Close() error { return nil }

func newTestService(store *fakeStorage) (*Service, *time.Time) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	registry := NewRegistry(clock, DefaultTTL)
	return NewService(store, registry), &now
}

func uploadOpts() UploadOptions {
	return UploadOptions{
		UserID:    "user-1",
		CompanyID: "company-1",
		FileName:  "export.csv",
	}
}

func TestPreviewCSVRegistersPending(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())

	preview, err := svc.PreviewCSV(context.Background(), []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	assert.True(t, preview.Success)
	assert.Equal(t, "chase", preview.DetectedBank)
	assert.Equal(t, 3, preview.ParsedCount)
	assert.Len(t, preview.SampleTransactions, 3)
	assert.NotEmpty(t, preview.UploadID)
	assert.Equal(t, 1, svc.registry.Len())
}

func TestPreviewCSVRequiresUser(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())

	opts := uploadOpts()
	opts.UserID = ""
	_, err := svc.PreviewCSV(context.Background(), []byte(chaseCSV), opts)
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestPreviewSampleBounded(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())

	csv := "Transaction Date,Post Date,Description,Category,Type,Amount\n"
	for i := 0; i < 25; i++ {
		csv += fmt.Sprintf("01/%02d/2024,01/%02d/2024,ROW %d,Misc,Sale,-1.00\n", i%28+1, i%28+1, i)
	}

	preview, err := svc.PreviewCSV(context.Background(), []byte(csv), uploadOpts())
	require.NoError(t, err)

	assert.Equal(t, 25, preview.ParsedCount)
	assert.Len(t, preview.SampleTransactions, sampleLimit)
}

func TestConfirmPersistsAndRecords(t *testing.T) {
	store := newFakeStorage()
	svc, _ := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{Classify: true})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.DuplicateCount)
	assert.Zero(t, result.ErrorCount)
	assert.Equal(t, result.Classified+result.Unclassified, result.Imported)
	assert.Len(t, store.transactions, 3)

	// shell and netflix hit default vendors
	assert.GreaterOrEqual(t, result.Classified, 2)

	record, err := store.GetImportRecord(ctx, result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 3, record.TransactionCount)
	require.NotNil(t, record.DateRangeStart)
	require.NotNil(t, record.DateRangeEnd)
	assert.Equal(t, "2024-01-15", record.DateRangeStart.Format("2006-01-02"))
	assert.Equal(t, "2024-01-17", record.DateRangeEnd.Format("2006-01-02"))
	assert.Equal(t, 1, store.finalizeCalls)

	for _, txn := range store.transactions {
		require.NotNil(t, txn.ImportID)
		assert.Equal(t, result.ImportID, *txn.ImportID)
		assert.Equal(t, model.SourceCSVImport, txn.Source)
		assert.NotEmpty(t, txn.ID)
	}
}

func TestConfirmUserRulePrecedenceAndUseCount(t *testing.T) {
	store := newFakeStorage()
	store.rules = []model.Rule{{
		ID:        7,
		UserID:    "user-1",
		Category:  "Auto",
		Vendor:    "Shell",
		MatchType: model.MatchContains,
		Patterns:  []string{"shell"},
		Priority:  10,
		IsActive:  true,
	}}
	svc, _ := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{Classify: true})
	require.NoError(t, err)

	var shell *model.Transaction
	for i := range store.transactions {
		if store.transactions[i].Description == "SHELL OIL 12345" {
			shell = &store.transactions[i]
		}
	}
	require.NotNil(t, shell)
	assert.Equal(t, "Auto", shell.Category)
	assert.Equal(t, model.SourceUserRule, shell.ClassificationSource)
	require.NotNil(t, shell.RuleID)
	assert.Equal(t, int64(7), *shell.RuleID)
	assert.Equal(t, 1, store.useCounts[7])
}

func TestConfirmRuleFetchFailureDegrades(t *testing.T) {
	store := newFakeStorage()
	store.rulesErr = errors.New("db locked")
	svc, _ := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{Classify: true})
	require.NoError(t, err)

	// Default vendors still apply even when user rules are unavailable.
	assert.Equal(t, 3, result.Imported)
	assert.GreaterOrEqual(t, result.Classified, 2)
}

func TestConfirmSkipsDuplicates(t *testing.T) {
	store := newFakeStorage()
	store.transactions = []model.Transaction{{
		ID:          "existing",
		UserID:      "user-1",
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-45.23"),
		Description: "SHELL OIL 12345",
	}}
	svc, _ := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.DuplicateCount)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "SHELL OIL 12345", result.Duplicates[0].Description)
	assert.Len(t, store.transactions, 3) // 1 pre-existing + 2 imported
}

func TestConfirmDuplicateLookupFailureImportsRow(t *testing.T) {
	store := newFakeStorage()
	store.byDateErr = errors.New("db unavailable")
	svc, _ := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.DuplicateCount)
}

func TestConfirmRowFailuresDoNotAbort(t *testing.T) {
	store := newFakeStorage()
	store.createErrAt[1] = errors.New("disk full")
	svc, _ := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "disk full")

	record, err := store.GetImportRecord(ctx, result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 2, record.TransactionCount)
	assert.Equal(t, 1, record.ErrorCount)
}

func TestConfirmOwnership(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "other-user", preview.UploadID, ConfirmOptions{})
	require.ErrorIs(t, err, common.ErrAccessDenied)

	// The pending entry survives a denied confirm.
	_, err = svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.NoError(t, err)
}

func TestConfirmUnknownUpload(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())

	_, err := svc.Confirm(context.Background(), "user-1", "missing", ConfirmOptions{})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestLifecycleTerminal(t *testing.T) {
	store := newFakeStorage()
	svc, _ := newTestService(store)
	ctx := context.Background()

	// confirm then cancel
	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.NoError(t, err)
	err = svc.Cancel(ctx, "user-1", preview.UploadID)
	require.ErrorIs(t, err, common.ErrNotFound)

	// cancel then confirm
	preview, err = svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, "user-1", preview.UploadID))
	_, err = svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCancelOwnership(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	err = svc.Cancel(ctx, "other-user", preview.UploadID)
	require.ErrorIs(t, err, common.ErrAccessDenied)
	assert.Equal(t, 1, svc.registry.Len())
}

func TestConfirmExpiredUpload(t *testing.T) {
	store := newFakeStorage()
	svc, now := newTestService(store)
	ctx := context.Background()

	preview, err := svc.PreviewCSV(ctx, []byte(chaseCSV), uploadOpts())
	require.NoError(t, err)

	*now = now.Add(DefaultTTL + time.Minute)

	_, err = svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, store.transactions)
}

func TestRemapCSV(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())
	ctx := context.Background()

	csv := "When,What,How Much\n01/15/2024,COFFEE SHOP,-4.50\n"
	preview, err := svc.PreviewCSV(ctx, []byte(csv), uploadOpts())
	require.NoError(t, err)
	assert.True(t, preview.RequiresMapping)

	mapping := &csvimport.ColumnMapping{
		DateColumn:   "When",
		DescColumn:   "What",
		AmountColumn: "How Much",
	}
	remapped, err := svc.RemapCSV(ctx, "user-1", preview.UploadID, mapping)
	require.NoError(t, err)
	assert.False(t, remapped.RequiresMapping)
	assert.Equal(t, 1, remapped.ParsedCount)
	assert.Equal(t, preview.UploadID, remapped.UploadID)

	result, err := svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestRemapRequiresMapping(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())

	_, err := svc.RemapCSV(context.Background(), "user-1", "any", nil)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestConfirmMappingStillNeeded(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())
	ctx := context.Background()

	csv := "When,What,How Much\n01/15/2024,COFFEE SHOP,-4.50\n"
	preview, err := svc.PreviewCSV(ctx, []byte(csv), uploadOpts())
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "user-1", preview.UploadID, ConfirmOptions{})
	require.ErrorIs(t, err, common.ErrMappingNeeded)
}

func TestPreviewStatement(t *testing.T) {
	svc, _ := newTestService(newFakeStorage())

	text := `Statement Period: 01/01/2024 to 01/31/2024

DEPOSITS AND ADDITIONS
01/05 PAYROLL ACME CORP 2,500.00

ELECTRONIC WITHDRAWALS
01/10 NETFLIX.COM 15.99
`
	preview, result, err := svc.PreviewStatement(context.Background(), text, uploadOpts())
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, preview.ParsedCount)
	assert.NotEmpty(t, preview.UploadID)
}
