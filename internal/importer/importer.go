package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozeni/kozeni/internal/detect"
	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/rules"
	"github.com/kozeni/kozeni/internal/service"
	"github.com/kozeni/kozeni/internal/tabular"
)

// maxSampleMemos bounds how many unclassified memos a summary carries for
// user review.
const maxSampleMemos = 5

// Options configures a single import run.
type Options struct {
	// FormatOverride skips detection and forces a layout.
	FormatOverride model.Format
	// ColumnOverrides overlays explicit column indices on the inferred map.
	ColumnOverrides map[string]int
	// MinConfidence rejects detections below this level.
	MinConfidence model.Confidence
	// DryRun runs the full pipeline without persisting anything.
	DryRun bool
}

// Summary is the outcome of one import run.
type Summary struct {
	Format            model.Format
	Reason            string
	AddedIDs          []string
	UnclassifiedMemos []string
	Confidence        model.Confidence
	Added             int
	Duplicates        int
	Invalid           int
}

// Importer drives the import pipeline against the persistence layer and the
// rule engine.
type Importer struct {
	storage service.Storage
	rules   *rules.Engine
}

// New creates an importer.
func New(storage service.Storage, engine *rules.Engine) *Importer {
	return &Importer{storage: storage, rules: engine}
}

// Import runs the pipeline over raw text. The caller must strip a leading
// byte-order mark and normalize CRLF to LF first. Records that duplicate
// stored data or earlier rows in the same file are skipped, not merged.
func (im *Importer) Import(ctx context.Context, text string, opts Options) (*Summary, error) {
	rows := tabular.Parse(text)
	if len(rows) == 0 {
		return nil, fmt.Errorf("input contains no rows")
	}

	detection, err := resolveFormat(rows, opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Format:     detection.Format,
		Confidence: detection.Confidence,
		Reason:     detection.Reason,
	}

	cmap := detect.BuildColumnMap(rows[0], detection.Format)
	if len(opts.ColumnOverrides) > 0 {
		cmap, err = cmap.WithOverrides(opts.ColumnOverrides)
		if err != nil {
			return nil, err
		}
	}

	records, invalid := ExtractRecords(rows, detection.Format, cmap)
	summary.Invalid = invalid

	if err := im.categorize(ctx, records, summary); err != nil {
		return nil, err
	}

	kept, duplicates, err := im.dedupe(ctx, records)
	if err != nil {
		return nil, err
	}
	summary.Duplicates = duplicates

	if !opts.DryRun && len(kept) > 0 {
		if err := im.storage.SaveRecords(ctx, kept); err != nil {
			return nil, fmt.Errorf("failed to save records: %w", err)
		}
	}

	summary.Added = len(kept)
	for _, r := range kept {
		summary.AddedIDs = append(summary.AddedIDs, r.ID)
	}

	slog.Info("import finished",
		"format", summary.Format,
		"confidence", summary.Confidence,
		"added", summary.Added,
		"duplicates", summary.Duplicates,
		"invalid", summary.Invalid,
		"dry_run", opts.DryRun)
	return summary, nil
}

// resolveFormat applies the override or runs detection, then enforces the
// caller's confidence floor.
func resolveFormat(rows [][]string, opts Options) (model.DetectionResult, error) {
	if opts.FormatOverride != "" {
		return model.DetectionResult{
			Format:     opts.FormatOverride,
			Confidence: model.ConfidenceHigh,
			Reason:     "manual format override",
		}, nil
	}

	detection := detect.Detect(rows)
	if detection.Format == model.FormatUnknown {
		return detection, fmt.Errorf("could not detect a known layout: %s", detection.Reason)
	}
	if opts.MinConfidence > model.ConfidenceUnknown && detection.Confidence < opts.MinConfidence {
		return detection, fmt.Errorf("detected %s at %s confidence, below the required %s",
			detection.Format, detection.Confidence, opts.MinConfidence)
	}
	return detection, nil
}

// categorize resolves each record's category. Rules are consulted before the
// file's own category label so user-defined mappings always win over the
// exporter's labels. Records that stay unresolved contribute sample memos.
func (im *Importer) categorize(ctx context.Context, records []model.Record, summary *Summary) error {
	sampled := make(map[string]bool, maxSampleMemos)

	for i := range records {
		r := &records[i]
		if r.Direction == model.DirectionTransfer {
			continue
		}

		cat, err := im.rules.SuggestCategory(ctx, r.Memo, r.Direction)
		if err != nil {
			return fmt.Errorf("rule lookup for %q: %w", r.Memo, err)
		}
		if cat == nil && r.CategoryLabel != "" {
			cat, err = im.storage.FindCategory(ctx, r.CategoryLabel, r.Direction)
			if err != nil {
				return fmt.Errorf("category lookup for %q: %w", r.CategoryLabel, err)
			}
		}
		if cat != nil {
			r.CategoryID = cat.ID
			continue
		}

		if len(summary.UnclassifiedMemos) < maxSampleMemos && r.Memo != "" && !sampled[r.Memo] {
			sampled[r.Memo] = true
			summary.UnclassifiedMemos = append(summary.UnclassifiedMemos, r.Memo)
		}
	}
	return nil
}

// dedupe drops records whose fingerprint matches stored data or an earlier
// record in the same batch. The later occurrence is always the one skipped.
// Unresolved records are compared by import fingerprint; records that picked
// up a category during this run are additionally checked against the
// canonical stored set by their post-categorization key.
func (im *Importer) dedupe(ctx context.Context, records []model.Record) ([]model.Record, int, error) {
	if len(records) == 0 {
		return nil, 0, nil
	}

	fingerprints := make([]string, len(records))
	var canonicals []string
	for i := range records {
		fingerprints[i] = records[i].ImportFingerprint()
		if records[i].CategoryID != 0 {
			canonicals = append(canonicals, records[i].CanonicalFingerprint())
		}
	}

	existing, err := im.storage.GetImportFingerprints(ctx, fingerprints)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check fingerprints: %w", err)
	}
	existingCanonical := map[string]bool{}
	if len(canonicals) > 0 {
		existingCanonical, err = im.storage.GetCanonicalFingerprints(ctx, canonicals)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to check canonical fingerprints: %w", err)
		}
	}

	kept := make([]model.Record, 0, len(records))
	seen := make(map[string]bool, len(records))
	duplicates := 0

	for i := range records {
		fp := fingerprints[i]
		cfp := ""
		if records[i].CategoryID != 0 {
			cfp = records[i].CanonicalFingerprint()
		}
		if existing[fp] || seen[fp] || (cfp != "" && (existingCanonical[cfp] || seen[cfp])) {
			duplicates++
			continue
		}
		seen[fp] = true
		if cfp != "" {
			seen[cfp] = true
		}
		kept = append(kept, records[i])
	}
	return kept, duplicates, nil
}
