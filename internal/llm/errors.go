package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers are expected to branch on.
var (
	ErrMissingAPIKey = errors.New("classifier API key is not configured")
	ErrTimeout       = errors.New("classification request timed out")
	ErrUnauthorized  = errors.New("classification service rejected the API key")
	ErrRateLimited   = errors.New("classification service rate limit exceeded")
	ErrEmptyResponse = errors.New("classification service returned no output")
)

// HTTPError is a non-2xx response that isn't one of the dedicated statuses.
type HTTPError struct {
	Body       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("classification service returned status %d: %s", e.StatusCode, e.Body)
}

// excerptLimit bounds how much raw body a ParseError carries for diagnostics.
const excerptLimit = 200

// ParseError indicates the response could not be decoded. Stage
// distinguishes an undecodable outer envelope from an undecodable inner
// result payload.
type ParseError struct {
	Err     error
	Stage   string // "envelope" or "payload"
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v (body: %s)", e.Stage, e.Err, e.Excerpt)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RefusalError indicates the service declined to classify the batch.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("classification service refused the request: %s", e.Reason)
}

// truncate bounds a raw body excerpt for error messages.
func truncate(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit] + "..."
}
