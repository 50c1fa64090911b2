package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *TokenStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tokens := NewTokenStore(filepath.Join(t.TempDir(), "token"))
	return NewClient(server.URL, tokens), tokens
}

func TestClient_BearerHeader(t *testing.T) {
	var gotAuth string
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]Conversation{})
	}))

	// No token, no header
	if _, err := client.History(context.Background()); err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}

	if err := tokens.Set("tok123"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if _, err := client.History(context.Background()); err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization = %q, want Bearer tok123", gotAuth)
	}
}

func TestClient_UnauthorizedForcesLogout(t *testing.T) {
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))

	if err := tokens.Set("stale"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	_, err := client.History(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if got := tokens.Get(); got != "" {
		t.Errorf("token after 401 = %q, want cleared", got)
	}
}

func TestClient_ForbiddenForcesLogout(t *testing.T) {
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	if err := tokens.Set("usertoken"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	_, err := client.Stats(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if got := tokens.Get(); got != "" {
		t.Errorf("token after 403 = %q, want cleared", got)
	}
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaput", http.StatusInternalServerError)
	}))

	_, err := client.History(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", apiErr.Status)
	}
	if apiErr.Body != "kaput" {
		t.Errorf("Body = %q, want kaput", apiErr.Body)
	}
}

func TestClient_Login(t *testing.T) {
	token := MakeTestToken(map[string]interface{}{
		"sub":   "alice@example.com",
		"roles": []string{"ROLE_ADMIN"},
	})
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("path = %s, want /api/auth/login", r.URL.Path)
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["email"] != "alice@example.com" {
			t.Errorf("email = %q", payload["email"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))

	role, err := client.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if role != RoleAdmin {
		t.Errorf("role = %q, want ADMIN", role)
	}
	if got := tokens.Get(); got != token {
		t.Errorf("stored token = %q, want the login token", got)
	}
}

func TestClient_FailedReloginKeepsToken(t *testing.T) {
	var gotAuth string
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))

	if err := tokens.Set("current"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if _, err := client.Login(context.Background(), "alice@example.com", "typo"); err == nil {
		t.Fatal("Login() with bad credentials succeeded, want error")
	}
	if gotAuth != "" {
		t.Errorf("Authorization on login = %q, want empty", gotAuth)
	}
	if got := tokens.Get(); got != "current" {
		t.Errorf("token after failed re-login = %q, want the current one kept", got)
	}
}

func TestClient_LoginWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))

	if _, err := client.Login(context.Background(), "a@b.c", "pw"); err == nil {
		t.Error("Login() with empty token succeeded, want error")
	}
}

func TestClient_MessagesFiltersAndSorts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"role": "bot", "content": "second", "timestamp": "2024-01-01T10:00:02Z"},
			{"role": "user", "content": "   ", "timestamp": "2024-01-01T10:00:00Z"},
			{"role": "user", "content": "first", "timestamp": "2024-01-01T10:00:01Z"},
		})
	}))

	msgs, err := client.Messages(context.Background(), 1)
	if err != nil {
		t.Fatalf("Messages() failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (blank dropped)", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("order = %q, %q; want first, second", msgs[0].Content, msgs[1].Content)
	}
	if msgs[1].Role != "assistant" {
		t.Errorf("role = %q, want assistant", msgs[1].Role)
	}
}

func TestClient_EmptyBodyTolerated(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if _, err := client.WhoAmI(context.Background()); err != nil {
		t.Errorf("WhoAmI() with empty body failed: %v", err)
	}
}
