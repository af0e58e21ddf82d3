package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/chunk"
	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
	"github.com/ledgersift/ledgersift/internal/storage"
)

func recategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Move matching transactions to a different category",
		Long: `Recategorize already-imported transactions in bulk.

Select transactions with the filter flags, then assign them the new
category. Large selections are updated in batches.`,
		Example: `  ledgersift recategorize --from-category "Shopping" --category "Office Supplies"
  ledgersift recategorize --start 2024-01-01 --end 2024-01-31 --category Travel`,
		RunE: runRecategorize,
	}

	cmd.Flags().String("from-category", "", "only transactions currently in this category")
	cmd.Flags().String("start", "", "only transactions on or after this date (2006-01-02)")
	cmd.Flags().String("end", "", "only transactions on or before this date (2006-01-02)")
	cmd.Flags().String("category", "", "category to assign")
	cmd.Flags().String("subcategory", "", "subcategory to assign")
	cmd.Flags().String("vendor", "", "vendor to assign")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runRecategorize(cmd *cobra.Command, _ []string) error {
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}

	category, _ := cmd.Flags().GetString("category")
	subcategory, _ := cmd.Flags().GetString("subcategory")
	vendor, _ := cmd.Flags().GetString("vendor")
	assumeYes, _ := cmd.Flags().GetBool("yes")

	return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
		// The store caps each read, so page until a short page.
		var transactions []model.Transaction
		filter.Limit = chunk.DefaultBatchSize
		for {
			filter.Offset = len(transactions)
			page, err := store.GetTransactions(ctx, filter)
			if err != nil {
				return err
			}
			transactions = append(transactions, page...)
			if len(page) < chunk.DefaultBatchSize {
				break
			}
		}
		if len(transactions) == 0 {
			fmt.Println(cli.FormatInfo("No transactions match the filter"))
			return nil
		}

		fmt.Println(cli.RenderTransactionTable(transactions))

		if !assumeYes {
			question := fmt.Sprintf("Move %d transactions to %q?", len(transactions), category)
			ok, err := cli.Confirm(ctx, os.Stdin, os.Stdout, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println(cli.FormatInfo("Nothing changed"))
				return nil
			}
		}

		ids := make([]string, 0, len(transactions))
		for _, txn := range transactions {
			ids = append(ids, txn.ID)
		}

		updated, err := store.UpdateTransactionCategories(ctx, ids, service.CategoryPatch{
			Category:    category,
			Subcategory: subcategory,
			Vendor:      vendor,
		})
		if err != nil {
			return fmt.Errorf("updated %d of %d transactions: %w", updated, len(ids), err)
		}

		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated %d transactions", updated)))
		return nil
	})
}

func filterFromFlags(cmd *cobra.Command) (service.TransactionFilter, error) {
	filter := service.TransactionFilter{UserID: currentUser()}

	if from, _ := cmd.Flags().GetString("from-category"); from != "" {
		filter.Category = from
	}
	if start, _ := cmd.Flags().GetString("start"); start != "" {
		parsed, err := time.Parse("2006-01-02", start)
		if err != nil {
			return filter, fmt.Errorf("invalid --start date %q: %w", start, err)
		}
		filter.StartDate = &parsed
	}
	if end, _ := cmd.Flags().GetString("end"); end != "" {
		parsed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return filter, fmt.Errorf("invalid --end date %q: %w", end, err)
		}
		filter.EndDate = &parsed
	}

	return filter, nil
}
