package model

import (
	"crypto/sha256"
	"fmt"

	"github.com/kozeni/kozeni/internal/normalize"
)

// ImportFingerprint creates a stable key for duplicate detection at import
// time, before the category label has been resolved to a catalog id. Two
// records with equal fingerprints are the same transaction; the later one is
// skipped during import.
func (r *Record) ImportFingerprint() string {
	data := fmt.Sprintf("%s:%s:%d:%s:%s:%s",
		r.Date.Format("2006-01-02"),
		r.Direction,
		r.Amount,
		normalize.Normalize(r.Memo),
		r.Source,
		r.SourceID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// CanonicalFingerprint creates the duplicate-detection key for a fully
// resolved record. It folds in the resolved category id (or the normalized
// original label while unresolved) and, for transfers, both account ids.
func (r *Record) CanonicalFingerprint() string {
	category := normalize.Normalize(r.CategoryLabel)
	if r.CategoryID != 0 {
		category = fmt.Sprintf("#%d", r.CategoryID)
	}

	data := fmt.Sprintf("%s:%s:%d:%s:%s:%s:%s",
		r.Date.Format("2006-01-02"),
		r.Direction,
		r.Amount,
		normalize.Normalize(r.Memo),
		category,
		r.Source,
		r.SourceID)
	if r.Direction == DirectionTransfer {
		data += fmt.Sprintf(":%s:%s", r.FromAccountID, r.ToAccountID)
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
