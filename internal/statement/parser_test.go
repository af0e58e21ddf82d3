package statement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/model"
)

const sampleStatement = `First National Bank
Account Number: XXXXXX4321
Statement Period 01/01/2024 to 01/31/2024

Beginning Balance                    $1,500.00
Ending Balance                       $2,104.50

Deposits and Other Credits
01/05  PAYROLL ACME CORP DIRECT DEP       2,500.00
01/18  MOBILE DEPOSIT                       150.00

Checks Paid
01/09  1042                                 400.00
01/21  Check #1043                          125.50

Electronic Payments
01/12  ACH PAYMENT CITY UTILITIES           180.00
01/15  DEBIT CARD PURCHASE SHELL OIL         45.00
garbage line that is not a transaction
01/29  this line has no amount at all

Other Transactions
01/31  MONTHLY MAINTENANCE FEE               15.00
`

func TestParseTextSections(t *testing.T) {
	ctx := context.Background()
	result, err := NewParser().ParseText(ctx, sampleStatement)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, result.Transactions, 7)

	bySection := map[string][]model.Candidate{}
	for _, c := range result.Transactions {
		bySection[c.SectionCode] = append(bySection[c.SectionCode], c)
	}

	require.Len(t, bySection[SectionDeposits], 2)
	require.Len(t, bySection[SectionChecks], 2)
	require.Len(t, bySection[SectionElectronic], 2)
	require.Len(t, bySection[SectionOther], 1)

	// Deposits carry positive amounts, statement year is filled in.
	payroll := bySection[SectionDeposits][0]
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), payroll.Date)
	assert.True(t, payroll.Amount.Equal(decimal.NewFromFloat(2500.00)), "got %s", payroll.Amount)
	assert.Equal(t, model.TypeIncome, payroll.Type)

	// Checks are negative expenses with a synthesized description.
	check := bySection[SectionChecks][0]
	assert.Equal(t, "CHECK 1042", check.Description)
	assert.True(t, check.Amount.Equal(decimal.NewFromFloat(-400.00)))
	assert.Equal(t, model.TypeExpense, check.Type)

	shell := bySection[SectionElectronic][1]
	assert.True(t, shell.Amount.Equal(decimal.NewFromFloat(-45.00)))
}

func TestParseTextAccountInfo(t *testing.T) {
	ctx := context.Background()
	result, err := NewParser().ParseText(ctx, sampleStatement)
	require.NoError(t, err)

	info := result.AccountInfo
	assert.Equal(t, "4321", info.AccountLastFour)
	assert.True(t, info.BeginningBalance.Equal(decimal.NewFromFloat(1500.00)), "got %s", info.BeginningBalance)
	assert.True(t, info.EndingBalance.Equal(decimal.NewFromFloat(2104.50)))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), info.PeriodStart)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), info.PeriodEnd)
}

func TestParseTextSummaryAndDrops(t *testing.T) {
	ctx := context.Background()
	result, err := NewParser().ParseText(ctx, sampleStatement)
	require.NoError(t, err)

	s := result.Summary
	assert.Equal(t, 7, s.ParsedCount)
	assert.Equal(t, 1, s.DroppedCount, "dated line without amount is dropped, not fabricated")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Line, "no amount at all")

	deposits := s.Sections[SectionDeposits]
	assert.Equal(t, 2, deposits.Count)
	assert.True(t, deposits.Total.Equal(decimal.NewFromFloat(2650.00)), "got %s", deposits.Total)

	electronic := s.Sections[SectionElectronic]
	assert.True(t, electronic.Total.Equal(decimal.NewFromFloat(-225.00)))
}

func TestParseTextSignContradictionFlagsReview(t *testing.T) {
	ctx := context.Background()
	text := `Statement Period 02/01/2024 to 02/29/2024

Deposits and Other Credits
02/10  RETURNED DEPOSIT ITEM               -75.00
02/11  NORMAL DEPOSIT                      100.00
`
	result, err := NewParser().ParseText(ctx, text)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	flagged := result.Transactions[0]
	assert.True(t, flagged.NeedsReview, "sign against section expectation must be flagged")
	assert.Equal(t, model.TypeExpense, flagged.Type)
	assert.True(t, flagged.Amount.Equal(decimal.NewFromFloat(-75.00)))

	assert.False(t, result.Transactions[1].NeedsReview)
	assert.Equal(t, model.TypeIncome, result.Transactions[1].Type)
}

func TestParseTextEmpty(t *testing.T) {
	_, err := NewParser().ParseText(context.Background(), "   \n  ")
	assert.Error(t, err)
}

func TestParseStatementDateYearFill(t *testing.T) {
	got, err := parseStatementDate("12/03", 2023)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 3, 0, 0, 0, 0, time.UTC), got)

	full, err := parseStatementDate("12/03/2022", 0)
	require.NoError(t, err)
	assert.Equal(t, 2022, full.Year())
}
