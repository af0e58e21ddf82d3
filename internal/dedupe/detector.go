// Package dedupe decides whether a transaction candidate is a probable
// duplicate of an already-persisted transaction on the same date.
package dedupe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgersift/ledgersift/internal/model"
)

// amountTolerance is exclusive: a difference of exactly one cent is NOT a
// duplicate.
var amountTolerance = decimal.NewFromFloat(0.01)

// Store is the read surface the detector needs.
type Store interface {
	GetTransactionsByDate(ctx context.Context, userID string, date time.Time) ([]model.Transaction, error)
}

// Detector checks candidates against persisted transactions.
type Detector struct {
	store Store
}

// NewDetector creates a duplicate detector backed by the given store.
func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// IsDuplicate reports whether the candidate matches any existing same-date
// transaction: amounts within one cent and descriptions equal, or one
// containing the other, after case-folding and trimming. The containment
// test is intentionally permissive; skipping beats double-importing.
func IsDuplicate(candidate model.Candidate, existing []model.Transaction) bool {
	candDesc := foldDescription(candidate.Description)

	for _, txn := range existing {
		if txn.Amount.Sub(candidate.Amount).Abs().GreaterThanOrEqual(amountTolerance) {
			continue
		}
		existDesc := foldDescription(txn.Description)
		if candDesc == existDesc ||
			strings.Contains(candDesc, existDesc) ||
			strings.Contains(existDesc, candDesc) {
			return true
		}
	}
	return false
}

// Check fetches the candidate's same-date transactions and runs the
// duplicate predicate. A store failure is logged and treated as "not a
// duplicate": refusing to import on a transient read error is worse than an
// occasional duplicate.
func (d *Detector) Check(ctx context.Context, userID string, candidate model.Candidate) bool {
	existing, err := d.store.GetTransactionsByDate(ctx, userID, candidate.Date)
	if err != nil {
		slog.Warn("Duplicate check failed, assuming not a duplicate",
			"date", candidate.Date.Format("2006-01-02"),
			"error", err)
		return false
	}
	return IsDuplicate(candidate, existing)
}

func foldDescription(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
