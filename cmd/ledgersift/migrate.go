package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Migrations are applied transactionally and are safe to re-run.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "show the current schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if status {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d (latest: %d)\n", version, storage.ExpectedSchemaVersion)
		if version < storage.ExpectedSchemaVersion {
			fmt.Println(cli.FormatWarning("Migrations pending, run: ledgersift migrate"))
		} else {
			fmt.Println(cli.FormatSuccess("Schema is up to date"))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Database migrations completed"))
	return nil
}
