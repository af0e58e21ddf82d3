package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/storage"
)

func importsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Inspect and manage past imports",
		Long: `List past imports, show the transactions one import created, or roll an
import back by deleting it together with its transactions.`,
	}

	cmd.AddCommand(importsListCmd())
	cmd.AddCommand(importsShowCmd())
	cmd.AddCommand(importsDeleteCmd())

	return cmd
}

func importsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List past imports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
				records, err := store.ListImportRecords(ctx, currentUser())
				if err != nil {
					return err
				}

				if len(records) == 0 {
					fmt.Println(cli.FormatInfo("No imports yet"))
					return nil
				}

				fmt.Println(cli.FormatTitle("Imports"))
				for _, record := range records {
					dateRange := ""
					if record.DateRangeStart != nil && record.DateRangeEnd != nil {
						dateRange = fmt.Sprintf("%s to %s",
							record.DateRangeStart.Format("2006-01-02"),
							record.DateRangeEnd.Format("2006-01-02"))
					}
					fmt.Printf("%s  %-10s  %-25s  %4d rows  %2d dup  %2d err  %s\n",
						record.ID, record.Source, record.FileName,
						record.TransactionCount, record.DuplicateCount, record.ErrorCount,
						dateRange)
				}
				return nil
			})
		},
	}
}

func importsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <import-id>",
		Short: "Show the transactions created by one import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
				record, err := store.GetImportRecord(ctx, args[0])
				if err != nil {
					return err
				}

				title := record.FileName
				if record.BankName != "" {
					title += " (" + record.BankName + ")"
				}
				fmt.Println(cli.FormatTitle(title))

				transactions, err := store.GetTransactionsByImportID(ctx, record.ID)
				if err != nil {
					return err
				}
				fmt.Println(cli.RenderTransactionTable(transactions))
				return nil
			})
		},
	}
}

func importsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <import-id>",
		Short: "Delete an import and every transaction it created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assumeYes, _ := cmd.Flags().GetBool("yes")

			return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
				record, err := store.GetImportRecord(ctx, args[0])
				if err != nil {
					return err
				}

				if !assumeYes {
					question := fmt.Sprintf("Delete import %s and its %d transactions?",
						record.ID, record.TransactionCount)
					ok, err := cli.Confirm(ctx, os.Stdin, os.Stdout, question)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Println(cli.FormatInfo("Nothing deleted"))
						return nil
					}
				}

				deleted, err := store.DeleteImportRecord(ctx, record.ID)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted import %s (%d transactions removed)",
					record.ID, deleted)))
				return nil
			})
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	return cmd
}
