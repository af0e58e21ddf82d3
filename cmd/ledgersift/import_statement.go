package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/importer"
	"github.com/ledgersift/ledgersift/internal/statement"
)

func importStatementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement <file.pdf>",
		Short: "Import a PDF bank statement",
		Long: `Import transactions from a PDF bank statement.

The statement text is extracted and segmented into its sections (deposits,
checks, electronic withdrawals). Lines that cannot be parsed are dropped
and reported; transactions whose sign contradicts their section are
imported but flagged for review.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportStatement,
	}

	addConfirmFlags(cmd)

	return cmd
}

func runImportStatement(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	text, err := statement.ExtractTextCombined(path)
	if err != nil {
		return fmt.Errorf("failed to extract text from %s: %w", path, err)
	}

	store, err := openMigratedStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := newImportService(ctx, store)

	preview, result, err := svc.PreviewStatement(ctx, text, importer.UploadOptions{
		UserID:    currentUser(),
		CompanyID: currentCompany(),
		FileName:  filepath.Base(path),
	})
	if err != nil {
		return err
	}

	printStatementPreview(preview, result)

	return confirmImport(ctx, cmd, svc, preview)
}

func printStatementPreview(preview *importer.Preview, result *statement.Result) {
	fmt.Println(cli.FormatTitle("Statement preview"))

	info := result.AccountInfo
	if info.AccountLastFour != "" {
		fmt.Printf("Account: ...%s\n", info.AccountLastFour)
	}
	if !info.PeriodStart.IsZero() {
		fmt.Printf("Period: %s to %s\n",
			info.PeriodStart.Format("2006-01-02"),
			info.PeriodEnd.Format("2006-01-02"))
	}

	for code, section := range result.Summary.Sections {
		fmt.Printf("%-12s %3d transactions  %12s\n", code, section.Count, section.Total.StringFixed(2))
	}
	if result.Summary.DroppedCount > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d lines could not be parsed", result.Summary.DroppedCount)))
	}
	fmt.Println()

	fmt.Println(cli.RenderCandidateTable(preview.SampleTransactions))
	if preview.ParsedCount > len(preview.SampleTransactions) {
		fmt.Printf("\n... and %d more\n", preview.ParsedCount-len(preview.SampleTransactions))
	}
	fmt.Println()
}
