package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a parsed-but-not-yet-persisted transaction produced by the
// CSV, statement, or OFX parsers. It is promoted to a Transaction at confirm
// time or discarded if duplicate or invalid.
type Candidate struct {
	Date         time.Time
	Description  string
	Payee        string
	SectionCode  string
	Type         TransactionType
	Amount       decimal.Decimal
	SourceRow    int
	NeedsMapping bool
	NeedsReview  bool
}

// Valid reports whether the candidate carries the fields required for
// persistence. Rows still waiting on a column mapping are not valid.
func (c *Candidate) Valid() bool {
	return !c.NeedsMapping && !c.Date.IsZero()
}

// ToTransaction promotes the candidate to a persistable transaction.
// Classification fields are filled in separately by the import orchestrator.
func (c *Candidate) ToTransaction(id, userID, companyID string, source TransactionSource) Transaction {
	return Transaction{
		ID:          id,
		UserID:      userID,
		CompanyID:   companyID,
		Date:        c.Date,
		Amount:      c.Amount,
		Description: c.Description,
		Payee:       c.Payee,
		Type:        c.Type,
		SectionCode: c.SectionCode,
		Source:      source,
		NeedsReview: c.NeedsReview,
	}
}
