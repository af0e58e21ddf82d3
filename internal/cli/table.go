package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ledgersift/ledgersift/internal/model"
)

// RenderCandidateTable renders parsed transactions as a preview table.
func RenderCandidateTable(candidates []model.Candidate) string {
	if len(candidates) == 0 {
		return SubtleStyle.Render("(no transactions)")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TableHeaderStyle.Width(12).Render("Date"),
		TableHeaderStyle.Width(42).Render("Description"),
		TableHeaderStyle.Width(12).Align(lipgloss.Right).Render("Amount"),
		TableHeaderStyle.Width(10).Render(" Type"),
	)

	rows := make([]string, 0, len(candidates)+1)
	rows = append(rows, header)
	for _, c := range candidates {
		amount := c.Amount.StringFixed(2)
		amountStyle := SuccessStyle
		if c.Amount.IsNegative() {
			amountStyle = ErrorStyle
		}

		flags := ""
		if c.NeedsReview {
			flags = " " + WarningStyle.Render(WarningIcon)
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(12).Render(c.Date.Format("2006-01-02")),
			TableCellStyle.Width(42).Render(truncate(c.Description, 40)),
			amountStyle.Width(12).Align(lipgloss.Right).Render(amount),
			TableCellStyle.Width(10).Render(" "+string(c.Type)+flags),
		))
	}

	return strings.Join(rows, "\n")
}

// RenderTransactionTable renders persisted transactions, including their
// assigned categories.
func RenderTransactionTable(transactions []model.Transaction) string {
	if len(transactions) == 0 {
		return SubtleStyle.Render("(no transactions)")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TableHeaderStyle.Width(12).Render("Date"),
		TableHeaderStyle.Width(36).Render("Description"),
		TableHeaderStyle.Width(12).Align(lipgloss.Right).Render("Amount"),
		TableHeaderStyle.Width(20).Render(" Category"),
	)

	rows := make([]string, 0, len(transactions)+1)
	rows = append(rows, header)
	for _, txn := range transactions {
		category := txn.Category
		if category == "" {
			category = SubtleStyle.Render("(unclassified)")
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(12).Render(txn.Date.Format("2006-01-02")),
			TableCellStyle.Width(36).Render(truncate(txn.Description, 34)),
			TableCellStyle.Width(12).Align(lipgloss.Right).Render(txn.Amount.StringFixed(2)),
			TableCellStyle.Width(20).Render(" "+category),
		))
	}

	return strings.Join(rows, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return fmt.Sprintf("%s...", s[:n-3])
}
