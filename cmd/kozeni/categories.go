package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozeni/kozeni/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category catalog",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGROUP\tTYPE")
			for _, cat := range categories {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cat.ID, cat.Name, cat.Group, cat.Type)
			}
			return w.Flush()
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			typeName, _ := cmd.Flags().GetString("type")
			var categoryType model.CategoryType
			switch typeName {
			case "expense":
				categoryType = model.CategoryTypeExpense
			case "income":
				categoryType = model.CategoryTypeIncome
			default:
				return fmt.Errorf("invalid category type %q (expense, income)", typeName)
			}
			group, _ := cmd.Flags().GetString("group")

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.CreateCategory(ctx, args[0], group, categoryType)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Category %d: %s (%s)\n", category.ID, category.Name, category.Type)
			return nil
		},
	}

	cmd.Flags().String("type", "expense", "category type (expense, income)")
	cmd.Flags().String("group", "", "display group")
	return cmd
}
