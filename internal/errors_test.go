package internal

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	withBody := &APIError{Endpoint: "/api/x", Status: 500, Body: "boom"}
	if got := withBody.Error(); !strings.Contains(got, "/api/x") || !strings.Contains(got, "boom") {
		t.Errorf("Error() = %q", got)
	}
	withoutBody := &APIError{Endpoint: "/api/x", Status: 404}
	if got := withoutBody.Error(); !strings.Contains(got, "404") {
		t.Errorf("Error() = %q", got)
	}
}

func TestAuthError_Error(t *testing.T) {
	err := &AuthError{Endpoint: "/api/whoami", Status: 401}
	if got := err.Error(); !strings.Contains(got, "logged out") {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrappingErrors_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner")

	tests := []struct {
		name string
		err  error
	}{
		{"ingest", &IngestError{Name: "f.pdf", Err: inner}},
		{"cache", &CacheError{Path: "/tmp/x", Op: "read", Err: inner}},
		{"probe", &ProbeError{Attempt: "from-to-iso", Err: inner}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, inner) {
				t.Errorf("%v does not unwrap to the inner error", tt.err)
			}
			if tt.err.Error() == "" {
				t.Error("empty error string")
			}
		})
	}
}
