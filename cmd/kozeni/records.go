package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/rules"
	"github.com/kozeni/kozeni/internal/service"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and correct imported records",
	}

	cmd.AddCommand(recordsListCmd())
	cmd.AddCommand(recordsSetCategoryCmd())
	return cmd
}

func recordsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List imported records, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter, err := recordFilterFromFlags(cmd)
			if err != nil {
				return err
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.GetRecords(ctx, filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No records found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tDIRECTION\tAMOUNT\tCATEGORY\tMEMO\tID")
			for i := range records {
				r := &records[i]
				categoryName := "-"
				if r.CategoryID != 0 {
					categoryName = fmt.Sprintf("#%d", r.CategoryID)
					if cat, err := store.GetCategoryByID(ctx, r.CategoryID); err == nil && cat != nil {
						categoryName = cat.Name
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					r.Date.Format("2006-01-02"), r.Direction, r.Amount, categoryName, r.Memo, r.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int("limit", 50, "maximum records to show")
	cmd.Flags().String("direction", "", "only show this direction (expense, income, transfer)")
	cmd.Flags().String("source", "", "only show records from this layout")
	return cmd
}

func recordsSetCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-category <id> <category>",
		Short: "Assign a record's category and learn a rule from it",
		Long: `Assign a category to a record by name. The correction is fed back to the
rule engine, so future imports with the same memo classify automatically.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			record, err := store.GetRecordByID(ctx, args[0])
			if err != nil {
				return err
			}
			if record.Direction == model.DirectionTransfer {
				return fmt.Errorf("record %s is a transfer and carries no spending category", record.ID)
			}

			category, err := store.FindCategory(ctx, args[1], record.Direction)
			if err != nil {
				return err
			}
			if category == nil {
				return fmt.Errorf("no %s category named %q; create it with `kozeni categories add`", record.Direction, args[1])
			}

			if err := store.UpdateRecordCategory(ctx, record.ID, category.ID); err != nil {
				return err
			}
			record.CategoryID = category.ID

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Record %s -> %s\n", record.ID, category.Name)

			rule, err := rules.NewEngine(store).Learn(ctx, record)
			if err != nil {
				return err
			}
			if rule != nil {
				fmt.Fprintf(out, "Learned rule %d: %q -> %s\n", rule.ID, rule.Keyword, category.Name)
			}
			return nil
		},
	}
}

func recordFilterFromFlags(cmd *cobra.Command) (filter service.RecordFilter, err error) {
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Source, _ = cmd.Flags().GetString("source")

	if directionName, _ := cmd.Flags().GetString("direction"); directionName != "" {
		filter.Direction, err = model.ParseDirection(directionName)
		if err != nil {
			return filter, err
		}
	}
	return filter, nil
}
