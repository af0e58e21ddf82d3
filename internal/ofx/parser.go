// Package ofx parses OFX/QFX exports into transaction candidates.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/ledgersift/ledgersift/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// Result is the outcome of parsing one OFX file.
type Result struct {
	Candidates     []model.Candidate
	AccountIDs     []string
	BankStatements int
	CCStatements   int
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, func(match string) string {
		return strings.ToUpper(match)
	})

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns transaction candidates.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	processedContent := p.preprocessOFX(string(content))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processedContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	result := &Result{}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			result.BankStatements++
			result.AccountIDs = append(result.AccountIDs, string(stmt.BankAcctFrom.AcctID))
			result.Candidates = append(result.Candidates, p.convertStatement(stmt.BankTranList, len(result.Candidates))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			result.CCStatements++
			result.AccountIDs = append(result.AccountIDs, string(stmt.CCAcctFrom.AcctID))
			result.Candidates = append(result.Candidates, p.convertStatement(stmt.BankTranList, len(result.Candidates))...)
		}
	}

	slog.Info("Parsed OFX file",
		"candidates", len(result.Candidates),
		"bank_statements", result.BankStatements,
		"cc_statements", result.CCStatements)

	return result, nil
}

func (p *Parser) convertStatement(list *ofxgo.TransactionList, offset int) []model.Candidate {
	if list == nil {
		return nil
	}

	candidates := make([]model.Candidate, 0, len(list.Transactions))
	for i, ofxTx := range list.Transactions {
		candidates = append(candidates, p.convertTransaction(ofxTx, offset+i+1))
	}
	return candidates
}

// convertTransaction converts one OFX transaction to a candidate. OFX uses
// negative amounts for debits, which matches the signed convention of the
// CSV parsers, so the sign is kept as is.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, row int) model.Candidate {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		amount = decimal.Zero
	}

	description := strings.TrimSpace(string(ofxTx.Name))
	if description == "" {
		description = strings.TrimSpace(string(ofxTx.Memo))
	}
	if ofxTx.CheckNum != "" {
		description = fmt.Sprintf("CHECK %s", strings.TrimSpace(string(ofxTx.CheckNum)))
	}

	candidate := model.Candidate{
		Date:        ofxTx.DtPosted.Time,
		Description: description,
		Payee:       p.extractPayee(ofxTx),
		Amount:      amount,
		Type:        transactionType(ofxTx, amount),
		SourceRow:   row,
		// A zero amount is either a malformed record or a placeholder
		// entry; keep it but flag it for review.
		NeedsReview: amount.IsZero(),
	}
	return candidate
}

func transactionType(ofxTx ofxgo.Transaction, amount decimal.Decimal) model.TransactionType {
	if ofxTx.TrnType == ofxgo.TrnTypeXfer {
		return model.TypeTransfer
	}
	if amount.IsNegative() {
		return model.TypeExpense
	}
	return model.TypeIncome
}

// extractPayee tries to get a clean counterparty name from the OFX record.
func (p *Parser) extractPayee(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner merchant name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return cleanPayee(string(tx.Payee.Name))
	}

	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	return cleanPayee(name)
}

var payeePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

func cleanPayee(name string) string {
	name = strings.TrimSpace(name)

	for _, prefix := range payeePrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date fragments some banks prepend
	if len(name) > 6 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return strings.TrimSpace(name)
}

// isGenericDescription reports whether the NAME field carries no merchant
// information.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PAYMENT",
		"PURCHASE",
		"WITHDRAWAL",
		"DEPOSIT",
		"POS",
		"ACH",
		"TRANSFER",
	}

	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, g := range generic {
		if upper == g {
			return true
		}
	}
	return false
}
