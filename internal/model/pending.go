package model

import "time"

// PendingImport tracks one upload between parse and confirm/cancel/expiry.
// Pending imports live only in process memory; a restart discards them by
// design, since nothing has been persisted yet.
type PendingImport struct {
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ID           string
	UserID       string
	CompanyID    string
	FileName     string
	Bank         string
	BankName     string
	Source       TransactionSource
	Headers      []string
	Candidates   []Candidate
	// RawData keeps the original file content so a re-preview with a new
	// column mapping can re-derive candidates without a second upload.
	RawData         []byte
	RequiresMapping bool
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (p *PendingImport) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
