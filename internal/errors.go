package internal

import "fmt"

// APIError represents a non-2xx response from one of the backends
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api error: %s returned %d: %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("api error: %s returned %d", e.Endpoint, e.Status)
}

// AuthError represents a rejected credential (401/403). The stored token
// has been cleared by the time this error is returned.
type AuthError struct {
	Endpoint string
	Status   int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s returned %d, logged out", e.Endpoint, e.Status)
}

// IngestError represents a failed document ingestion
type IngestError struct {
	Name string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest error [%s]: %v", e.Name, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// CacheError represents errors reading or writing local cache state
type CacheError struct {
	Path string
	Op   string // "open", "read", "write"
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// ProbeError represents a single failed latency probe attempt
type ProbeError struct {
	Attempt string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe error [%s]: %v", e.Attempt, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
