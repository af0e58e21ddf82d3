package model

import "time"

// ImportRecord is the persistent audit row for one confirmed import. It is
// created with zero counts before any transaction write so every transaction
// can reference a stable import id, then finalized once after the last row
// attempt.
type ImportRecord struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DateRangeStart   *time.Time
	DateRangeEnd     *time.Time
	ID               string
	UserID           string
	CompanyID        string
	FileName         string
	Bank             string
	BankName         string
	Source           TransactionSource
	TransactionCount int
	DuplicateCount   int
	ErrorCount       int
}
