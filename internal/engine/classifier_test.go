package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozeni/kozeni/internal/llm"
	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/storage"
)

// mockClient implements llm.Client with a scriptable response.
type mockClient struct {
	fn    func(req llm.BatchRequest) (*llm.BatchResponse, error)
	calls int
}

func (m *mockClient) ClassifyBatch(_ context.Context, req llm.BatchRequest) (*llm.BatchResponse, error) {
	m.calls++
	return m.fn(req)
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func saveRecords(t *testing.T, s *storage.SQLiteStorage, memos ...string) []model.Record {
	t.Helper()

	records := make([]model.Record, len(memos))
	for i, memo := range memos {
		records[i] = model.Record{
			ID:        memo,
			Date:      time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC),
			Memo:      memo,
			Source:    "bank_statement",
			Direction: model.DirectionExpense,
			Amount:    int64(100 * (i + 1)),
		}
	}
	require.NoError(t, s.SaveRecords(context.Background(), records))
	return records
}

func foodCategoryID(t *testing.T, s *storage.SQLiteStorage) int {
	t.Helper()
	cat, err := s.FindCategory(context.Background(), "食費", model.DirectionExpense)
	require.NoError(t, err)
	require.NotNil(t, cat)
	return cat.ID
}

func TestRunAppliesHighConfidenceResults(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	saveRecords(t, s, "コンビニA")
	catID := foodCategoryID(t, s)

	client := &mockClient{fn: func(req llm.BatchRequest) (*llm.BatchResponse, error) {
		require.Len(t, req.Items, 1)
		assert.NotEmpty(t, req.Categories)
		return &llm.BatchResponse{Results: []llm.ResultItem{
			{LocalID: req.Items[0].LocalID, CategoryID: catID, Confidence: 0.9, Reason: "store name"},
		}}, nil
	}}

	summary, err := New(s, client, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Errored)
	require.Len(t, summary.Updates, 1)

	got, err := s.GetRecordByID(ctx, "コンビニA")
	require.NoError(t, err)
	assert.Equal(t, catID, got.CategoryID)
}

func TestRunSkipsBelowThreshold(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	saveRecords(t, s, "コンビニA")
	catID := foodCategoryID(t, s)

	client := &mockClient{fn: func(req llm.BatchRequest) (*llm.BatchResponse, error) {
		return &llm.BatchResponse{Results: []llm.ResultItem{
			{LocalID: req.Items[0].LocalID, CategoryID: catID, Confidence: 0.3},
		}}, nil
	}}

	summary, err := New(s, client, Options{MinConfidence: 0.6}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Confirmed)

	got, err := s.GetRecordByID(ctx, "コンビニA")
	require.NoError(t, err)
	assert.Zero(t, got.CategoryID, "no category update below threshold")
}

func TestRunErroredResults(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	incomeCat, err := s.FindCategory(ctx, "給与", model.DirectionIncome)
	require.NoError(t, err)
	require.NotNil(t, incomeCat)

	tests := []struct {
		name   string
		result func(localID string) llm.ResultItem
	}{
		{
			name: "unknown category id",
			result: func(localID string) llm.ResultItem {
				return llm.ResultItem{LocalID: localID, CategoryID: 99999, Confidence: 0.9}
			},
		},
		{
			name: "unknown local id",
			result: func(_ string) llm.ResultItem {
				return llm.ResultItem{LocalID: "not-a-record", CategoryID: 1, Confidence: 0.9}
			},
		},
		{
			name: "category direction mismatch",
			result: func(localID string) llm.ResultItem {
				return llm.ResultItem{LocalID: localID, CategoryID: incomeCat.ID, Confidence: 0.9}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStorage(t)
			saveRecords(t, st, "コンビニA")

			client := &mockClient{fn: func(req llm.BatchRequest) (*llm.BatchResponse, error) {
				return &llm.BatchResponse{Results: []llm.ResultItem{tt.result(req.Items[0].LocalID)}}, nil
			}}

			summary, err := New(st, client, Options{}).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Errored)
			assert.Zero(t, summary.Confirmed)

			got, err := st.GetRecordByID(context.Background(), "コンビニA")
			require.NoError(t, err)
			assert.Zero(t, got.CategoryID)
		})
	}
}

func TestRunCountsUnansweredAsSkipped(t *testing.T) {
	s := newTestStorage(t)
	saveRecords(t, s, "コンビニA", "スーパーB")
	catID := foodCategoryID(t, s)

	client := &mockClient{fn: func(req llm.BatchRequest) (*llm.BatchResponse, error) {
		// Answer only the first item.
		return &llm.BatchResponse{Results: []llm.ResultItem{
			{LocalID: req.Items[0].LocalID, CategoryID: catID, Confidence: 0.9},
		}}, nil
	}}

	summary, err := New(s, client, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunStopsOnBatchFailureAndKeepsPartialProgress(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	records := saveRecords(t, s, "コンビニA", "スーパーB")
	catID := foodCategoryID(t, s)

	boom := errors.New("boom")
	client := &mockClient{}
	client.fn = func(req llm.BatchRequest) (*llm.BatchResponse, error) {
		if client.calls > 1 {
			return nil, boom
		}
		return &llm.BatchResponse{Results: []llm.ResultItem{
			{LocalID: req.Items[0].LocalID, CategoryID: catID, Confidence: 0.9},
		}}, nil
	}

	summary, err := New(s, client, Options{BatchSize: 1}).Run(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, client.calls, "batches run sequentially until the failure")
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Confirmed)

	// The first batch's update survives the second batch's failure.
	got, err := s.GetRecordByID(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, catID, got.CategoryID)
}

func TestRunDryRun(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	saveRecords(t, s, "コンビニA")
	catID := foodCategoryID(t, s)

	client := &mockClient{fn: func(req llm.BatchRequest) (*llm.BatchResponse, error) {
		return &llm.BatchResponse{Results: []llm.ResultItem{
			{LocalID: req.Items[0].LocalID, CategoryID: catID, Confidence: 0.9},
		}}, nil
	}}

	summary, err := New(s, client, Options{DryRun: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)
	require.Len(t, summary.Updates, 1)

	got, err := s.GetRecordByID(ctx, "コンビニA")
	require.NoError(t, err)
	assert.Zero(t, got.CategoryID, "dry run must not write")
}

func TestRunWithNothingToClassify(t *testing.T) {
	s := newTestStorage(t)

	client := &mockClient{fn: func(_ llm.BatchRequest) (*llm.BatchResponse, error) {
		return nil, errors.New("should not be called")
	}}

	summary, err := New(s, client, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, client.calls)
}
