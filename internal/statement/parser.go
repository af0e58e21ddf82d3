// Package statement segments extracted bank statement text into sections and
// parses each line into a canonical transaction candidate.
package statement

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgersift/ledgersift/internal/model"
)

// Section codes assigned to candidates from the enclosing statement section.
const (
	SectionDeposits   = "deposits"
	SectionChecks     = "checks"
	SectionElectronic = "electronic"
	SectionOther      = "other"
)

// sectionDef describes one recognizable statement section: the heading
// keywords that open it and the transaction type its lines imply.
type sectionDef struct {
	code     string
	expected model.TransactionType
	headings []string
}

// Section headings are matched in order; more specific headings first.
var sectionDefs = []sectionDef{
	{
		code:     SectionDeposits,
		expected: model.TypeIncome,
		headings: []string{"deposits and other credits", "deposits and additions", "deposits", "credits"},
	},
	{
		code:     SectionChecks,
		expected: model.TypeExpense,
		headings: []string{"checks paid", "checks presented", "checks"},
	},
	{
		code:     SectionElectronic,
		expected: model.TypeExpense,
		headings: []string{"electronic payments", "electronic withdrawals", "payments and other debits", "withdrawals and other debits", "withdrawals"},
	},
	{
		code:     SectionOther,
		expected: model.TypeExpense,
		headings: []string{"other transactions", "other withdrawals", "fees", "service charges"},
	},
}

var (
	// "01/15" or "01/15/2024" followed by description and a trailing amount.
	linePattern = regexp.MustCompile(`^(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\s+(.+?)\s+(-?\$?\(?[\d,]+\.\d{2}\)?-?)$`)

	// Checks are often listed as date, check number, amount with no text.
	checkLinePattern = regexp.MustCompile(`^(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\s+(?:check\s*#?\s*)?(\d{3,6})\*?\s+\$?([\d,]+\.\d{2})$`)

	beginningBalancePattern = regexp.MustCompile(`(?i)(?:beginning|opening)\s+balance\s+.*?\$?(-?[\d,]+\.\d{2})`)
	endingBalancePattern    = regexp.MustCompile(`(?i)(?:ending|closing)\s+balance\s+.*?\$?(-?[\d,]+\.\d{2})`)
	accountNumberPattern    = regexp.MustCompile(`(?i)account\s+number[:\s]+[\dXx*-]*(\d{4})\b`)
	periodPattern           = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4})\s+(?:to|through|-)\s+(\d{1,2}/\d{1,2}/\d{2,4})`)
)

var statementDateFormats = []string{"01/02/2006", "1/2/2006", "01/02/06"}

// AccountInfo carries the balances and period parsed from the statement
// header, for reconciliation by the caller.
type AccountInfo struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	AccountLastFour  string
	BeginningBalance decimal.Decimal
	EndingBalance    decimal.Decimal
}

// SectionSummary tallies one section's parsed lines.
type SectionSummary struct {
	Total decimal.Decimal
	Count int
}

// Summary reports per-section counts and totals plus dropped-line accounting.
type Summary struct {
	Sections     map[string]SectionSummary
	TotalLines   int
	ParsedCount  int
	DroppedCount int
}

// LineError records a line that could not be parsed into the three required
// fields.
type LineError struct {
	Line   string
	Reason string
}

// Result is the outcome of parsing one statement's text. Its shape mirrors
// the CSV parse result, with statement-specific account info and summary.
type Result struct {
	AccountInfo  AccountInfo
	Summary      Summary
	Transactions []model.Candidate
	Errors       []LineError
	Success      bool
}

// Parser extracts transaction candidates from statement text.
type Parser struct{}

// NewParser creates a new statement parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseText segments the statement text into sections and parses each line.
// Lines that cannot be parsed are dropped and counted, never fabricated.
// Lines whose amount sign contradicts their section are kept but flagged for
// review.
func (p *Parser) ParseText(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("statement text is empty")
	}

	result := &Result{
		Success: true,
		Summary: Summary{Sections: make(map[string]SectionSummary)},
	}

	p.parseHeader(text, &result.AccountInfo)

	year := result.AccountInfo.PeriodStart.Year()
	if year == 0 {
		year = time.Now().Year()
	}

	var current *sectionDef
	row := 0
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if def := matchSectionHeading(line); def != nil {
			current = def
			continue
		}
		if current == nil {
			continue
		}
		if !startsWithDate(line) {
			// Narrative text, column headers, subtotals.
			continue
		}

		result.Summary.TotalLines++
		row++

		candidate, err := p.parseLine(line, current, year, row)
		if err != nil {
			result.Summary.DroppedCount++
			result.Errors = append(result.Errors, LineError{Line: line, Reason: err.Error()})
			continue
		}

		result.Transactions = append(result.Transactions, candidate)
		result.Summary.ParsedCount++

		s := result.Summary.Sections[current.code]
		s.Count++
		s.Total = s.Total.Add(candidate.Amount)
		result.Summary.Sections[current.code] = s
	}

	slog.Info("Parsed statement text",
		"transactions", len(result.Transactions),
		"dropped", result.Summary.DroppedCount,
		"sections", len(result.Summary.Sections))

	return result, nil
}

func (p *Parser) parseHeader(text string, info *AccountInfo) {
	if m := beginningBalancePattern.FindStringSubmatch(text); len(m) > 1 {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			info.BeginningBalance = d
		}
	}
	if m := endingBalancePattern.FindStringSubmatch(text); len(m) > 1 {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			info.EndingBalance = d
		}
	}
	if m := accountNumberPattern.FindStringSubmatch(text); len(m) > 1 {
		info.AccountLastFour = m[1]
	}
	if m := periodPattern.FindStringSubmatch(text); len(m) > 2 {
		if t, err := parseStatementDate(m[1], 0); err == nil {
			info.PeriodStart = t
		}
		if t, err := parseStatementDate(m[2], 0); err == nil {
			info.PeriodEnd = t
		}
	}
}

func (p *Parser) parseLine(line string, def *sectionDef, year, row int) (model.Candidate, error) {
	var dateStr, desc, amountStr string

	if def.code == SectionChecks {
		if m := checkLinePattern.FindStringSubmatch(strings.ToLower(line)); len(m) > 3 {
			dateStr, desc, amountStr = m[1], "CHECK "+m[2], m[3]
		}
	}
	if dateStr == "" {
		m := linePattern.FindStringSubmatch(line)
		if len(m) < 4 {
			return model.Candidate{}, fmt.Errorf("line does not match date/description/amount shape")
		}
		dateStr, desc, amountStr = m[1], m[2], m[3]
	}

	date, err := parseStatementDate(dateStr, year)
	if err != nil {
		return model.Candidate{}, err
	}

	amount, explicitNegative, err := parseStatementAmount(amountStr)
	if err != nil {
		return model.Candidate{}, err
	}

	candidate := model.Candidate{
		Date:        date,
		Description: strings.Join(strings.Fields(desc), " "),
		SectionCode: def.code,
		Type:        def.expected,
		SourceRow:   row,
	}

	// Statement amounts are listed unsigned; the section supplies the sign.
	// An explicit sign that contradicts the section is kept but flagged
	// rather than silently trusted.
	switch def.expected {
	case model.TypeIncome:
		candidate.Amount = amount.Abs()
		if explicitNegative {
			candidate.Amount = amount.Abs().Neg()
			candidate.Type = model.TypeExpense
			candidate.NeedsReview = true
		}
	default:
		candidate.Amount = amount.Abs().Neg()
	}

	return candidate, nil
}

func matchSectionHeading(line string) *sectionDef {
	lower := strings.ToLower(line)
	// Transaction lines start with a date and are never headings.
	if startsWithDate(line) {
		return nil
	}
	for i := range sectionDefs {
		for _, h := range sectionDefs[i].headings {
			if strings.Contains(lower, h) {
				return &sectionDefs[i]
			}
		}
	}
	return nil
}

var lineStartDate = regexp.MustCompile(`^\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)

func startsWithDate(line string) bool {
	return lineStartDate.MatchString(strings.TrimSpace(line))
}

// parseStatementDate parses MM/DD or MM/DD/YYYY, filling in the statement
// year when the line omits it.
func parseStatementDate(raw string, year int) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range statementDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse("01/02", raw); err == nil {
		if year == 0 {
			year = time.Now().Year()
		}
		return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func parseStatementAmount(raw string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(raw)
	negative := strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") ||
		(strings.Contains(s, "(") && strings.Contains(s, ")"))

	s = strings.NewReplacer("$", "", ",", "", "(", "", ")", "", "-", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), negative, nil
}
