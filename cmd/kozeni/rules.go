package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesEnableCmd(true))
	cmd.AddCommand(rulesEnableCmd(false))
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesReorderCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List classification rules by priority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			allRules, err := store.GetRules(ctx)
			if err != nil {
				return err
			}
			if len(allRules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rules defined.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tKEYWORD\tMATCH\tDIRECTION\tCATEGORY\tSOURCE\tENABLED")
			for _, rule := range allRules {
				categoryName := fmt.Sprintf("#%d", rule.CategoryID)
				if cat, err := store.GetCategoryByID(ctx, rule.CategoryID); err == nil && cat != nil {
					categoryName = cat.Name
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
					rule.ID, rule.Priority, rule.Keyword, rule.Match,
					rule.Direction, categoryName, rule.Source, rule.Enabled)
			}
			return w.Flush()
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <keyword> <category>",
		Short: "Add a classification rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			directionName, _ := cmd.Flags().GetString("direction")
			direction, err := model.ParseDirection(directionName)
			if err != nil {
				return err
			}
			matchName, _ := cmd.Flags().GetString("match")
			match, err := model.ParseMatchType(matchName)
			if err != nil {
				return err
			}
			priority, _ := cmd.Flags().GetInt("priority")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.FindCategory(ctx, args[1], direction)
			if err != nil {
				return err
			}
			if category == nil {
				return fmt.Errorf("no %s category named %q; create it with `kozeni categories add`", direction, args[1])
			}

			engine := rules.NewEngine(store)
			rule, err := engine.AddRule(ctx, &model.Rule{
				Keyword:    args[0],
				Match:      match,
				Direction:  direction,
				CategoryID: category.ID,
				Priority:   priority,
				Enabled:    true,
			})
			if errors.Is(err, rules.ErrRuleConflict) {
				return fmt.Errorf("rule %d already maps %q; delete it first to replace it", rule.ID, rule.Keyword)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d: %q -> %s\n", rule.ID, rule.Keyword, category.Name)
			return nil
		},
	}

	cmd.Flags().String("direction", "expense", "direction the rule applies to (expense, income)")
	cmd.Flags().String("match", "contains", "match type (contains, prefix, suffix, exact)")
	cmd.Flags().Int("priority", 10, "rule priority, higher is evaluated first")
	return cmd
}

func rulesEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a rule"
	if !enable {
		use, short = "disable <id>", "Disable a rule"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			allRules, err := store.GetRules(ctx)
			if err != nil {
				return err
			}
			for i := range allRules {
				if allRules[i].ID != id {
					continue
				}
				allRules[i].Enabled = enable
				if err := store.UpdateRule(ctx, &allRules[i]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %d %s.\n", id, map[bool]string{true: "enabled", false: "disabled"}[enable])
				return nil
			}
			return fmt.Errorf("rule %d not found", id)
		},
	}
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteRule(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d deleted.\n", id)
			return nil
		},
	}
}

func rulesReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id> [id...]",
		Short: "Reassign rule priorities to match the given order",
		Long: `Reassign priorities so rules evaluate in the order given, first listed
first. Priorities are dense and descending.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid rule id %q", arg)
				}
				ids[i] = id
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := rules.NewEngine(store).Reorder(ctx, ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d rules.\n", len(ids))
			return nil
		},
	}
}
