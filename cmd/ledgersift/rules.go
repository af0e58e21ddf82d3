package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/cli"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/storage"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
		Long: `Manage the rules used to classify imported transactions.

Rules are evaluated in descending priority order and the first match wins.
A rule matches when any of its patterns matches the transaction's
description or payee.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesEnableCmd())
	cmd.AddCommand(rulesDisableCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classification rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
				var rules []model.Rule
				var err error
				if all {
					rules, err = store.GetAllRules(ctx, currentUser())
				} else {
					rules, err = store.GetActiveRules(ctx, currentUser())
				}
				if err != nil {
					return err
				}

				if len(rules) == 0 {
					fmt.Println(cli.FormatInfo("No rules defined yet. Add one with: ledgersift rules add"))
					return nil
				}

				fmt.Println(cli.FormatTitle("Classification rules"))
				for _, rule := range rules {
					status := cli.SuccessStyle.Render("active")
					if !rule.IsActive {
						status = cli.SubtleStyle.Render("disabled")
					}
					target := rule.Category
					if rule.Subcategory != "" {
						target += " / " + rule.Subcategory
					}
					fmt.Printf("%4d  p%-3d  %-8s  %-10s  %-30s  → %s (used %d times)\n",
						rule.ID, rule.Priority, status, rule.MatchType,
						strings.Join(rule.Patterns, ", "), target, rule.UseCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("all", false, "include disabled rules")

	return cmd
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a classification rule",
		Example: `  ledgersift rules add --pattern shell --pattern chevron --category Auto --vendor Shell
  ledgersift rules add --pattern '^AMZN' --match regex --category Shopping --priority 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patterns, _ := cmd.Flags().GetStringSlice("pattern")
			matchType, _ := cmd.Flags().GetString("match")
			category, _ := cmd.Flags().GetString("category")
			subcategory, _ := cmd.Flags().GetString("subcategory")
			vendor, _ := cmd.Flags().GetString("vendor")
			priority, _ := cmd.Flags().GetInt("priority")

			rule := &model.Rule{
				UserID:      currentUser(),
				Patterns:    patterns,
				MatchType:   model.MatchType(matchType),
				Category:    category,
				Subcategory: subcategory,
				Vendor:      vendor,
				Priority:    priority,
				IsActive:    true,
			}

			return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
				if err := store.CreateRule(ctx, rule); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %d", rule.ID)))
				return nil
			})
		},
	}

	cmd.Flags().StringSlice("pattern", nil, "pattern to match (repeatable)")
	cmd.Flags().String("match", string(model.MatchContains), "match kind (contains, exact, starts_with, regex)")
	cmd.Flags().String("category", "", "category to assign")
	cmd.Flags().String("subcategory", "", "subcategory to assign")
	cmd.Flags().String("vendor", "", "vendor to assign")
	cmd.Flags().Int("priority", 0, "rule priority (higher wins)")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a classification rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStorage) error {
				if err := store.DeleteRule(ctx, id); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
				return nil
			})
		},
	}
}

func rulesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id>",
		Short: "Enable a classification rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRuleActive(cmd.Context(), args[0], true)
		},
	}
}

func rulesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Disable a classification rule without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRuleActive(cmd.Context(), args[0], false)
		},
	}
}

func setRuleActive(ctx context.Context, arg string, active bool) error {
	id, err := parseRuleID(arg)
	if err != nil {
		return err
	}
	return withStore(ctx, func(ctx context.Context, store *storage.SQLiteStorage) error {
		rule, err := store.GetRule(ctx, id)
		if err != nil {
			return err
		}
		rule.IsActive = active
		if err := store.UpdateRule(ctx, rule); err != nil {
			return err
		}
		state := "enabled"
		if !active {
			state = "disabled"
		}
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rule %d %s", id, state)))
		return nil
	})
}

func parseRuleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q", arg)
	}
	return id, nil
}

// withStore opens the migrated database, runs fn, and closes it.
func withStore(ctx context.Context, fn func(context.Context, *storage.SQLiteStorage) error) error {
	store, err := openMigratedStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(ctx, store)
}
