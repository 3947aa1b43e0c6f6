package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

const systemPrompt = "You are a classifier for Japanese household ledger records. " +
	"Assign each record to exactly one category from the provided catalog. " +
	"Respond only with the JSON object in the exact format requested."

// remoteClient implements Client against a responses-style HTTP API.
type remoteClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates a remote classification client.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &remoteClient{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// responseEnvelope is the service's outer response structure.
type responseEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Refusal string `json:"refusal"`
		} `json:"content"`
	} `json:"output"`
}

// ClassifyBatch sends one batch to the remote service and validates the
// response. Validation failures map to the typed errors in errors.go so the
// engine can report them precisely.
func (c *remoteClient) ClassifyBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("batch must contain at least one item")
	}

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	requestBody := map[string]any{
		"model": c.model,
		"input": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/responses", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, truncate(string(body)))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, truncate(string(body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{Stage: "envelope", Excerpt: truncate(string(body)), Err: err}
	}

	if envelope.Error != nil {
		return nil, &ParseError{
			Stage:   "envelope",
			Excerpt: truncate(string(body)),
			Err:     fmt.Errorf("service error %s: %s", envelope.Error.Type, envelope.Error.Message),
		}
	}

	if len(envelope.Output) == 0 {
		return nil, ErrEmptyResponse
	}

	var outputText string
	for _, output := range envelope.Output {
		for _, content := range output.Content {
			if content.Type == "refusal" || content.Refusal != "" {
				reason := content.Refusal
				if reason == "" {
					reason = content.Text
				}
				return nil, &RefusalError{Reason: reason}
			}
			if content.Type == "output_text" && outputText == "" {
				outputText = content.Text
			}
		}
	}
	if outputText == "" {
		return nil, ErrEmptyResponse
	}

	var result BatchResponse
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(outputText)), &result); err != nil {
		return nil, &ParseError{Stage: "payload", Excerpt: truncate(outputText), Err: err}
	}
	return &result, nil
}

// buildPrompt renders the batch as a structured classification task.
func buildPrompt(req BatchRequest) (string, error) {
	type promptItem struct {
		ID        string `json:"id"`
		Date      string `json:"date"`
		Direction string `json:"direction"`
		Memo      string `json:"memo"`
		SubMemo   string `json:"sub_memo,omitempty"`
		Amount    int64  `json:"amount"`
	}
	type promptCategory struct {
		Name  string `json:"name"`
		Group string `json:"group,omitempty"`
		ID    int    `json:"id"`
	}

	items := make([]promptItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = promptItem{
			ID:        item.LocalID,
			Date:      item.Date,
			Direction: item.Direction,
			Memo:      item.Memo,
			SubMemo:   item.SubMemo,
			Amount:    item.Amount,
		}
	}
	categories := make([]promptCategory, len(req.Categories))
	for i, cat := range req.Categories {
		categories[i] = promptCategory{ID: cat.ID, Name: cat.Name, Group: cat.Group}
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Classify each record into one category from the catalog.\n\n")
	b.WriteString("Categories:\n")
	b.Write(categoriesJSON)
	b.WriteString("\n\nRecords:\n")
	b.Write(itemsJSON)

	if len(req.Examples) > 0 {
		b.WriteString("\n\nExamples of correct classifications:\n")
		for _, ex := range req.Examples {
			fmt.Fprintf(&b, "- %q -> %q\n", ex.Memo, ex.Category)
		}
	}

	b.WriteString("\n\nRespond with JSON only, in this exact shape:\n")
	b.WriteString(`{"results":[{"local_id":"...","category_id":1,"confidence":0.95,"reason":"..."}]}`)
	b.WriteString("\nInclude every record exactly once. Confidence is 0.0-1.0.")
	return b.String(), nil
}

// cleanMarkdownWrapper strips a ```json code fence if the model added one.
func cleanMarkdownWrapper(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isTimeout distinguishes a deadline from other transport failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
