package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/importer"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ofx <file>",
		Short: "Import an OFX/QFX export",
		Long: `Import transactions from an OFX or QFX file.

Bank and credit card statements inside the file are both imported. Common
formatting defects in SGML-style exports are repaired before parsing.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportOFX,
	}

	addConfirmFlags(cmd)

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	file, err := os.Open(path) // #nosec G304 -- user-supplied import file
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	parsed, err := ofx.NewParser().ParseFile(ctx, file)
	if err != nil {
		return err
	}

	store, err := openMigratedStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := newImportService(ctx, store)

	preview, err := svc.PreviewCandidates(ctx, parsed.Candidates, model.SourceOFXImport, importer.UploadOptions{
		UserID:    currentUser(),
		CompanyID: currentCompany(),
		FileName:  filepath.Base(path),
	})
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("OFX preview"))
	if len(parsed.AccountIDs) > 0 {
		fmt.Printf("Accounts: %s\n", strings.Join(parsed.AccountIDs, ", "))
	}
	fmt.Printf("Statements: %d bank, %d credit card\n\n", parsed.BankStatements, parsed.CCStatements)

	fmt.Println(cli.RenderCandidateTable(preview.SampleTransactions))
	if preview.ParsedCount > len(preview.SampleTransactions) {
		fmt.Printf("\n... and %d more\n", preview.ParsedCount-len(preview.SampleTransactions))
	}
	fmt.Println()

	return confirmImport(ctx, cmd, svc, preview)
}
