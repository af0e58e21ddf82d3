// Package csvimport detects known bank CSV layouts and normalizes rows into
// canonical transaction candidates.
package csvimport

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgersift/ledgersift/internal/model"
)

// ColumnMapping is a user-supplied column resolution used when no known
// layout matches the file's headers.
type ColumnMapping struct {
	DateColumn   string
	DescColumn   string
	PayeeColumn  string
	AmountColumn string
	DebitColumn  string
	CreditColumn string
	DateFormat   string
	Sign         SignConvention
}

// Options controls a parse attempt.
type Options struct {
	Mapping  *ColumnMapping
	BankHint string
}

// RowError records a row excluded from the batch and why.
type RowError struct {
	Reason string
	Row    int
}

// ParseResult is the outcome of normalizing one CSV file.
type ParseResult struct {
	DetectedBank     string
	DetectedBankName string
	Headers          []string
	Transactions     []model.Candidate
	Errors           []RowError
	TotalRows        int
	ParsedCount      int
	Success          bool
	RequiresMapping  bool
}

// Parser normalizes delimited bank exports.
type Parser struct{}

// NewParser creates a new CSV parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads raw delimited text, resolves a column layout (known bank,
// explicit mapping, or neither), and normalizes each row into a candidate.
// Rows missing a parseable date or amount are excluded and counted; they
// never abort the batch.
func (p *Parser) Parse(ctx context.Context, data []byte, opts Options) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = normalizeHeader(h)
	}

	result := &ParseResult{
		Success: true,
		Headers: headers,
	}

	cols, ok := p.resolveColumns(headers, opts, result)
	if !ok {
		// No layout and no mapping: hand the headers back so the caller can
		// supply an explicit mapping and re-invoke.
		return p.parseUnmapped(reader, result)
	}

	rowIndex := 0
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		rowIndex++
		if readErr != nil {
			result.Errors = append(result.Errors, RowError{Row: rowIndex, Reason: readErr.Error()})
			result.TotalRows++
			continue
		}
		result.TotalRows++

		candidate, rowErr := cols.normalizeRow(record, rowIndex)
		if rowErr != nil {
			result.Errors = append(result.Errors, RowError{Row: rowIndex, Reason: rowErr.Error()})
			continue
		}
		result.Transactions = append(result.Transactions, candidate)
		result.ParsedCount++
	}

	slog.Info("Parsed CSV file",
		"bank", result.DetectedBank,
		"total_rows", result.TotalRows,
		"parsed", result.ParsedCount,
		"errors", len(result.Errors))

	return result, nil
}

// resolvedColumns holds the per-file column indexes and conventions after
// layout detection or explicit mapping.
type resolvedColumns struct {
	dateFormats []string
	dateIdx     int
	descIdx     int
	payeeIdx    int
	amountIdx   int
	debitIdx    int
	creditIdx   int
	sign        SignConvention
}

func (p *Parser) resolveColumns(headers []string, opts Options, result *ParseResult) (*resolvedColumns, bool) {
	index := func(name string) int {
		name = normalizeHeader(name)
		if name == "" {
			return -1
		}
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		return -1
	}

	if opts.Mapping != nil {
		m := opts.Mapping
		cols := &resolvedColumns{
			dateIdx:     index(m.DateColumn),
			descIdx:     index(m.DescColumn),
			payeeIdx:    index(m.PayeeColumn),
			amountIdx:   index(m.AmountColumn),
			debitIdx:    index(m.DebitColumn),
			creditIdx:   index(m.CreditColumn),
			sign:        m.Sign,
			dateFormats: usDateFormats,
		}
		if m.DateFormat != "" {
			cols.dateFormats = append([]string{m.DateFormat}, usDateFormats...)
		}
		if cols.sign == "" {
			if cols.debitIdx >= 0 || cols.creditIdx >= 0 {
				cols.sign = SignDebitCredit
			} else {
				cols.sign = SignSigned
			}
		}
		if cols.dateIdx < 0 || (cols.amountIdx < 0 && cols.debitIdx < 0 && cols.creditIdx < 0) {
			return nil, false
		}
		result.DetectedBank = "custom"
		result.DetectedBankName = "Custom mapping"
		return cols, true
	}

	layout, found := DetectLayout(headers, opts.BankHint)
	if !found {
		return nil, false
	}

	result.DetectedBank = layout.Bank
	result.DetectedBankName = layout.Name

	return &resolvedColumns{
		dateIdx:     index(layout.DateColumn),
		descIdx:     index(layout.DescColumn),
		payeeIdx:    index(layout.PayeeColumn),
		amountIdx:   index(layout.AmountColumn),
		debitIdx:    index(layout.DebitColumn),
		creditIdx:   index(layout.CreditColumn),
		sign:        layout.Sign,
		dateFormats: layout.DateFormats,
	}, true
}

// parseUnmapped marks every row as needing a mapping so a caller can supply
// one and re-invoke.
func (p *Parser) parseUnmapped(reader *csv.Reader, result *ParseResult) (*ParseResult, error) {
	result.RequiresMapping = true

	rowIndex := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		result.TotalRows++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowIndex, Reason: err.Error()})
			continue
		}
		result.Transactions = append(result.Transactions, model.Candidate{
			Description:  strings.TrimSpace(strings.Join(record, " ")),
			SourceRow:    rowIndex,
			NeedsMapping: true,
		})
	}

	slog.Info("CSV layout not recognized, mapping required",
		"headers", result.Headers,
		"rows", result.TotalRows)

	return result, nil
}

func (c *resolvedColumns) field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func (c *resolvedColumns) normalizeRow(record []string, rowIndex int) (model.Candidate, error) {
	date, err := ParseDate(c.field(record, c.dateIdx), c.dateFormats)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("missing or invalid date: %w", err)
	}

	amount, err := c.resolveAmount(record)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("missing or invalid amount: %w", err)
	}

	candidate := model.Candidate{
		Date:        date,
		Amount:      amount,
		Description: collapseWhitespace(c.field(record, c.descIdx)),
		Payee:       collapseWhitespace(c.field(record, c.payeeIdx)),
		SourceRow:   rowIndex,
	}

	switch {
	case amount.IsNegative():
		candidate.Type = model.TypeExpense
	case amount.IsPositive():
		candidate.Type = model.TypeIncome
	default:
		candidate.Type = model.TypeExpense
		candidate.NeedsReview = true
	}

	return candidate, nil
}

func (c *resolvedColumns) resolveAmount(record []string) (decimal.Decimal, error) {
	switch c.sign {
	case SignDebitCredit:
		if debit := c.field(record, c.debitIdx); debit != "" {
			d, err := ParseAmount(debit)
			if err != nil {
				return decimal.Zero, err
			}
			return d.Abs().Neg(), nil
		}
		if credit := c.field(record, c.creditIdx); credit != "" {
			d, err := ParseAmount(credit)
			if err != nil {
				return decimal.Zero, err
			}
			return d.Abs(), nil
		}
		return decimal.Zero, fmt.Errorf("no debit or credit value")
	case SignFlipped:
		d, err := ParseAmount(c.field(record, c.amountIdx))
		if err != nil {
			return decimal.Zero, err
		}
		return d.Neg(), nil
	default:
		return ParseAmount(c.field(record, c.amountIdx))
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
