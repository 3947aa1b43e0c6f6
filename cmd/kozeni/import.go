package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kozeni/kozeni/internal/importer"
	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/rules"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import records from an export file",
		Long: `Import financial records from a bank statement, card statement, wallet
export, or kozeni's own export format.

The layout is detected automatically; records are deduplicated against the
database and categorized with your classification rules where possible.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringP("format", "f", "", "force a layout instead of detecting (ledger_export, bank_statement, card_statement, wallet_export, generic_bank, generic_card)")
	cmd.Flags().StringToInt("map", nil, "manual column overrides, e.g. --map date=0,memo=1,amount=2")
	cmd.Flags().String("min-confidence", "", "reject detections below this level (low, medium, high)")
	cmd.Flags().Bool("dry-run", false, "run the pipeline without saving anything")

	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := readImportFile(args[0])
	if err != nil {
		return err
	}

	opts := importer.Options{
		DryRun: viper.GetBool("import.dry_run"),
	}

	if formatName, _ := cmd.Flags().GetString("format"); formatName != "" {
		opts.FormatOverride, err = model.ParseFormat(formatName)
		if err != nil {
			return err
		}
	}
	if overrides, _ := cmd.Flags().GetStringToInt("map"); len(overrides) > 0 {
		opts.ColumnOverrides = overrides
	}
	if level, _ := cmd.Flags().GetString("min-confidence"); level != "" {
		opts.MinConfidence, err = model.ParseConfidence(level)
		if err != nil {
			return err
		}
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	im := importer.New(store, rules.NewEngine(store))
	summary, err := im.Import(ctx, text, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Detected format: %s (%s confidence: %s)\n",
		summary.Format, summary.Confidence, summary.Reason)
	if opts.DryRun {
		fmt.Fprintln(out, "Dry run: nothing was saved.")
	}
	fmt.Fprintf(out, "Added:      %d\n", summary.Added)
	fmt.Fprintf(out, "Duplicates: %d\n", summary.Duplicates)
	fmt.Fprintf(out, "Invalid:    %d\n", summary.Invalid)

	if len(summary.UnclassifiedMemos) > 0 {
		fmt.Fprintln(out, "Unclassified memos (run `kozeni classify` or add rules):")
		for _, memo := range summary.UnclassifiedMemos {
			fmt.Fprintf(out, "  - %s\n", memo)
		}
	}
	return nil
}
