package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/csvimport"
	"github.com/ledgersift/ledgersift/internal/importer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from a file",
		Long: `Import financial transactions from a bank export.

Each import is previewed before anything is saved. After confirmation the
transactions are classified against your rules, checked against existing
records for duplicates, and persisted with a shared import id.`,
	}

	cmd.AddCommand(importCSVCmd())
	cmd.AddCommand(importStatementCmd())
	cmd.AddCommand(importOFXCmd())

	return cmd
}

func importCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a CSV bank export",
		Long: `Import transactions from a CSV bank export.

The bank layout is detected from the header row. When no known layout
matches, pass the column names explicitly with --date-column,
--description-column and --amount-column (or --debit-column and
--credit-column for two-column exports).`,
		Args: cobra.ExactArgs(1),
		RunE: runImportCSV,
	}

	cmd.Flags().String("bank", "", "bank layout to assume instead of detecting (chase, amex, ...)")
	cmd.Flags().String("date-column", "", "column holding the transaction date")
	cmd.Flags().String("description-column", "", "column holding the description")
	cmd.Flags().String("amount-column", "", "column holding the signed amount")
	cmd.Flags().String("debit-column", "", "column holding debit amounts")
	cmd.Flags().String("credit-column", "", "column holding credit amounts")
	cmd.Flags().String("date-format", "", "Go reference layout for dates (default: common US formats)")
	cmd.Flags().Bool("flip-sign", false, "negate amounts (for exports where charges are positive)")
	addConfirmFlags(cmd)

	return cmd
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied import file
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	store, err := openMigratedStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := newImportService(ctx, store)

	bank, _ := cmd.Flags().GetString("bank")
	preview, err := svc.PreviewCSV(ctx, data, importer.UploadOptions{
		UserID:    currentUser(),
		CompanyID: currentCompany(),
		FileName:  filepath.Base(path),
		BankHint:  bank,
		Mapping:   mappingFromFlags(cmd),
	})
	if err != nil {
		return err
	}

	if preview.RequiresMapping {
		fmt.Println(cli.FormatWarning("Unrecognized CSV layout"))
		fmt.Printf("Columns found: %s\n", strings.Join(preview.Headers, ", "))
		fmt.Println("Re-run with --date-column, --description-column and --amount-column.")
		return nil
	}

	printCSVPreview(preview)

	return confirmImport(ctx, cmd, svc, preview)
}

// mappingFromFlags builds an explicit column mapping when any mapping flag
// was given.
func mappingFromFlags(cmd *cobra.Command) *csvimport.ColumnMapping {
	date, _ := cmd.Flags().GetString("date-column")
	desc, _ := cmd.Flags().GetString("description-column")
	amount, _ := cmd.Flags().GetString("amount-column")
	debit, _ := cmd.Flags().GetString("debit-column")
	credit, _ := cmd.Flags().GetString("credit-column")
	format, _ := cmd.Flags().GetString("date-format")
	flip, _ := cmd.Flags().GetBool("flip-sign")

	if date == "" && desc == "" && amount == "" && debit == "" && credit == "" {
		return nil
	}

	mapping := &csvimport.ColumnMapping{
		DateColumn:   date,
		DescColumn:   desc,
		AmountColumn: amount,
		DebitColumn:  debit,
		CreditColumn: credit,
		DateFormat:   format,
		Sign:         csvimport.SignSigned,
	}
	if debit != "" || credit != "" {
		mapping.Sign = csvimport.SignDebitCredit
	}
	if flip {
		mapping.Sign = csvimport.SignFlipped
	}
	return mapping
}

func printCSVPreview(preview *importer.Preview) {
	fmt.Println(cli.FormatTitle("Import preview"))
	if preview.DetectedBankName != "" {
		fmt.Printf("Detected layout: %s\n", preview.DetectedBankName)
	}
	fmt.Printf("Rows: %d, parsed: %d, rejected: %d\n\n",
		preview.TotalRows, preview.ParsedCount, len(preview.Errors))

	fmt.Println(cli.RenderCandidateTable(preview.SampleTransactions))
	if preview.ParsedCount > len(preview.SampleTransactions) {
		fmt.Printf("\n... and %d more\n", preview.ParsedCount-len(preview.SampleTransactions))
	}

	for _, rowErr := range preview.Errors {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("row %d rejected: %s", rowErr.Row, rowErr.Reason)))
	}
	fmt.Println()
}

func addConfirmFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("skip-duplicates", true, "skip transactions already in the database")
	cmd.Flags().Bool("no-classify", false, "import without running classification rules")
	cmd.Flags().Bool("dry-run", false, "preview only, do not save anything")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

// confirmImport asks the user, runs the confirm transition with a progress
// bar, and prints the result.
func confirmImport(ctx context.Context, cmd *cobra.Command, svc *importer.Service, preview *importer.Preview) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		fmt.Println(cli.FormatInfo("Dry run, nothing was saved"))
		return svc.Cancel(ctx, currentUser(), preview.UploadID)
	}

	assumeYes, _ := cmd.Flags().GetBool("yes")
	if !assumeYes {
		question := fmt.Sprintf("Import %d transactions?", preview.ParsedCount)
		ok, err := cli.Confirm(ctx, os.Stdin, os.Stdout, question)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(cli.FormatInfo("Import canceled"))
			return svc.Cancel(ctx, currentUser(), preview.UploadID)
		}
	}

	skipDuplicates, _ := cmd.Flags().GetBool("skip-duplicates")
	noClassify, _ := cmd.Flags().GetBool("no-classify")

	bar := cli.NewImportProgress(os.Stdout, preview.ParsedCount)
	result, err := svc.Confirm(ctx, currentUser(), preview.UploadID, importer.ConfirmOptions{
		SkipDuplicates: skipDuplicates,
		Classify:       !noClassify,
		OnProgress: func(_, _ int) {
			if err := bar.Add(1); err != nil {
				slog.Debug("Failed to update progress bar", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	printConfirmResult(result)
	return nil
}

func printConfirmResult(result *importer.ConfirmResult) {
	lines := []string{
		fmt.Sprintf("Imported:     %d", result.Imported),
		fmt.Sprintf("Classified:   %d", result.Classified),
		fmt.Sprintf("Unclassified: %d", result.Unclassified),
		fmt.Sprintf("Duplicates:   %d", result.DuplicateCount),
		fmt.Sprintf("Errors:       %d", result.ErrorCount),
	}
	if result.DateRange.Start != nil && result.DateRange.End != nil {
		lines = append(lines, fmt.Sprintf("Date range:   %s to %s",
			result.DateRange.Start.Format("2006-01-02"),
			result.DateRange.End.Format("2006-01-02")))
	}
	lines = append(lines, fmt.Sprintf("Import id:    %s", result.ImportID))

	fmt.Println(cli.RenderBox("Import complete", strings.Join(lines, "\n")))

	for _, dup := range result.Duplicates {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("duplicate skipped: %s %s %s",
			dup.Date.Format("2006-01-02"), dup.Amount.StringFixed(2), dup.Description)))
	}
	for _, failure := range result.Errors {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("row %d failed: %s", failure.Row, failure.Reason)))
	}
	if len(result.UnclassifiedTransactions) > 0 {
		fmt.Println()
		fmt.Println(cli.FormatInfo("Unclassified transactions (add rules to cover these):"))
		fmt.Println(cli.RenderTransactionTable(result.UnclassifiedTransactions))
	}
}
