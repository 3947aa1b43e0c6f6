package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kozeni/kozeni/internal/common"
	"github.com/kozeni/kozeni/internal/engine"
	"github.com/kozeni/kozeni/internal/llm"
	"github.com/kozeni/kozeni/internal/service"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify unresolved records with the remote service",
		Long: `Send records the rule engine could not classify to the remote
classification service in sequential batches, and apply results that meet
the confidence threshold.

Requires classifier.api_key (or KOZENI_CLASSIFIER_API_KEY) to be set.`,
		RunE: runClassify,
	}

	cmd.Flags().Int("batch-size", 0, "records per batch (default 20)")
	cmd.Flags().Float64("min-confidence", 0, "minimum confidence to apply a result (default 0.6)")
	cmd.Flags().Int("max-retries", 1, "attempts per run for transient failures")
	cmd.Flags().Bool("dry-run", false, "show what would be applied without saving")

	_ = viper.BindPFlag("classifier.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("classifier.min_confidence", cmd.Flags().Lookup("min-confidence"))
	_ = viper.BindPFlag("classifier.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	apiKey := viper.GetString("classifier.api_key")
	if apiKey == "" {
		return common.NewUserError(
			"no classifier API key configured; set classifier.api_key or KOZENI_CLASSIFIER_API_KEY",
			llm.ErrMissingAPIKey)
	}

	client, err := llm.NewClient(llm.Config{
		APIKey:  apiKey,
		Model:   viper.GetString("classifier.model"),
		BaseURL: viper.GetString("classifier.base_url"),
		Timeout: viper.GetDuration("classifier.timeout"),
	})
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier := engine.New(store, client, engine.Options{
		BatchSize:     viper.GetInt("classifier.batch_size"),
		MinConfidence: viper.GetFloat64("classifier.min_confidence"),
		DryRun:        viper.GetBool("classifier.dry_run"),
		ShowProgress:  true,
	})

	// The pipeline never retries internally; transient failures are retried
	// here, run by run, with partial progress kept between attempts.
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	var summary *engine.Summary
	runErr := common.WithRetry(ctx, func() error {
		var err error
		summary, err = classifier.Run(ctx)
		if err != nil {
			return classifyAttemptErr(err)
		}
		return nil
	}, service.RetryOptions{
		MaxAttempts:  maxRetries,
		InitialDelay: time.Second,
	})

	if summary != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed: %d\n", summary.Processed)
		fmt.Fprintf(out, "Confirmed: %d\n", summary.Confirmed)
		fmt.Fprintf(out, "Skipped:   %d\n", summary.Skipped)
		fmt.Fprintf(out, "Errored:   %d\n", summary.Errored)
	}
	return runErr
}

// classifyAttemptErr maps a failed run onto the retry contract: rate limits
// wait out the limiter, timeouts retry on plain backoff, and everything else
// (auth, config, parse, refusal) stops immediately.
func classifyAttemptErr(err error) error {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return fmt.Errorf("%w: %v", common.ErrRateLimit, err)
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}
