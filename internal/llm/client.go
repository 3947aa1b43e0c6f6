// Package llm provides the remote classification fallback: batching of
// unclassified records, request construction, and strict validation of the
// service's structured responses.
package llm

import (
	"context"
	"time"
)

// Client is the remote classification service contract.
type Client interface {
	// ClassifyBatch sends one batch synchronously and returns the parsed
	// results. No retries are performed; retry policy is a caller concern.
	ClassifyBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
}

// Config holds remote service connection settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// BatchRequest describes one batch of records to classify.
type BatchRequest struct {
	Items      []RequestItem
	Categories []CatalogEntry
	Examples   []Example
}

// RequestItem is one record in a batch, keyed by a batch-local identifier.
type RequestItem struct {
	LocalID   string
	Date      string
	Direction string
	Memo      string
	SubMemo   string
	Amount    int64
}

// CatalogEntry is a category the service may assign.
type CatalogEntry struct {
	Name  string
	Group string
	ID    int
}

// Example is a worked description→category hint included to steer the model.
type Example struct {
	Memo     string
	Category string
}

// ResultItem is the service's verdict for one request item.
type ResultItem struct {
	LocalID    string  `json:"local_id"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
	CategoryID int     `json:"category_id"`
}

// BatchResponse carries the validated results of one batch call.
type BatchResponse struct {
	Results []ResultItem `json:"results"`
}
