// Package engine coordinates the remote classification fallback over
// records the rule engine left unresolved.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/kozeni/kozeni/internal/llm"
	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/service"
)

const (
	defaultBatchSize     = 20
	defaultMinConfidence = 0.6
)

// workedExamples steer the remote model toward the catalog's conventions.
var workedExamples = []llm.Example{
	{Memo: "セブンイレブン 渋谷店", Category: "食費"},
	{Memo: "JR東日本 モバイルSuica", Category: "交通費"},
	{Memo: "給与 1月分", Category: "給与"},
}

// Options configures a classification run.
type Options struct {
	ProgressWriter io.Writer
	BatchSize      int
	MinConfidence  float64
	DryRun         bool
	ShowProgress   bool
}

// CategoryUpdate is one applied (or, under dry-run, would-be) assignment.
type CategoryUpdate struct {
	RecordID   string
	Reason     string
	Confidence float64
	CategoryID int
}

// Summary reports the outcome of a classification run. On a mid-run failure
// it covers the batches that completed before the error.
type Summary struct {
	Updates   []CategoryUpdate
	Processed int
	Confirmed int
	Skipped   int
	Errored   int
}

// Classifier drives batched remote classification of unresolved records.
type Classifier struct {
	storage service.Storage
	client  llm.Client
	opts    Options
}

// New creates a classifier. Zero option values fall back to defaults.
func New(storage service.Storage, client llm.Client, opts Options) *Classifier {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = defaultMinConfidence
	}
	if opts.ProgressWriter == nil {
		opts.ProgressWriter = os.Stderr
	}
	return &Classifier{storage: storage, client: client, opts: opts}
}

// Run classifies all currently unresolved records. Batches execute strictly
// one at a time; a failed batch call stops the run and returns the summary
// accumulated so far together with the error. No retries are attempted here.
func (c *Classifier) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	records, err := c.storage.GetUnclassifiedRecords(ctx, 0)
	if err != nil {
		return summary, fmt.Errorf("failed to load unclassified records: %w", err)
	}
	if len(records) == 0 {
		return summary, nil
	}

	categories, err := c.storage.GetCategories(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load categories: %w", err)
	}
	catalog := make(map[int]model.Category, len(categories))
	entries := make([]llm.CatalogEntry, len(categories))
	for i, cat := range categories {
		catalog[cat.ID] = cat
		entries[i] = llm.CatalogEntry{ID: cat.ID, Name: cat.Name, Group: cat.Group}
	}

	var bar *progressbar.ProgressBar
	if c.opts.ShowProgress {
		bar = c.newProgressBar(len(records))
	}

	slog.Info("starting remote classification",
		"records", len(records), "batch_size", c.opts.BatchSize, "dry_run", c.opts.DryRun)

	for start := 0; start < len(records); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(records))
		batch := records[start:end]

		if err := c.classifyBatch(ctx, batch, entries, catalog, summary); err != nil {
			return summary, fmt.Errorf("batch starting at record %d: %w", start, err)
		}

		summary.Processed += len(batch)
		if bar != nil {
			_ = bar.Add(len(batch))
		}
	}

	slog.Info("remote classification finished",
		"processed", summary.Processed, "confirmed", summary.Confirmed,
		"skipped", summary.Skipped, "errored", summary.Errored)
	return summary, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []model.Record, entries []llm.CatalogEntry, catalog map[int]model.Category, summary *Summary) error {
	byID := make(map[string]*model.Record, len(batch))
	items := make([]llm.RequestItem, len(batch))
	for i := range batch {
		r := &batch[i]
		byID[r.ID] = r
		items[i] = llm.RequestItem{
			LocalID:   r.ID,
			Date:      r.Date.Format("2006-01-02"),
			Direction: string(r.Direction),
			Memo:      r.Memo,
			SubMemo:   r.SubMemo,
			Amount:    r.Amount,
		}
	}

	resp, err := c.client.ClassifyBatch(ctx, llm.BatchRequest{
		Items:      items,
		Categories: entries,
		Examples:   workedExamples,
	})
	if err != nil {
		return err
	}

	answered := make(map[string]bool, len(resp.Results))
	for _, result := range resp.Results {
		record, ok := byID[result.LocalID]
		if !ok || answered[result.LocalID] {
			summary.Errored++
			slog.Warn("response item does not match a batch record", "local_id", result.LocalID)
			continue
		}
		answered[result.LocalID] = true

		category, ok := catalog[result.CategoryID]
		if !ok {
			summary.Errored++
			slog.Warn("response references unknown category",
				"record", record.ID, "category_id", result.CategoryID)
			continue
		}
		if !category.AppliesTo(record.Direction) {
			summary.Errored++
			slog.Warn("response category does not apply to record direction",
				"record", record.ID, "category", category.Name, "direction", record.Direction)
			continue
		}
		if result.Confidence < c.opts.MinConfidence {
			summary.Skipped++
			slog.Debug("skipping low-confidence result",
				"record", record.ID, "confidence", result.Confidence)
			continue
		}

		if !c.opts.DryRun {
			if err := c.storage.UpdateRecordCategory(ctx, record.ID, category.ID); err != nil {
				return fmt.Errorf("failed to apply category to record %s: %w", record.ID, err)
			}
		}
		summary.Confirmed++
		summary.Updates = append(summary.Updates, CategoryUpdate{
			RecordID:   record.ID,
			CategoryID: category.ID,
			Confidence: result.Confidence,
			Reason:     result.Reason,
		})
	}

	// Records the service never answered stay unresolved.
	for _, item := range items {
		if !answered[item.LocalID] {
			summary.Skipped++
		}
	}
	return nil
}

func (c *Classifier) newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.opts.ProgressWriter),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Classifying records..."),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(c.opts.ProgressWriter)
		}),
	)
}
