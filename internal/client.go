package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client talks to the orchestrator backend: auth, conversations, messages,
// chat and the admin surface
type Client struct {
	base   string
	http   *http.Client
	tokens *TokenStore
}

// NewClient creates an orchestrator client
func NewClient(base string, tokens *TokenStore) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 60 * time.Second},
		tokens: tokens,
	}
}

// do performs one JSON request. A 401/403 on an authenticated call clears
// the stored token and returns an AuthError: a stale credential is the only
// plausible cause, so the client forces a logout the way the UI forces a
// redirect to the login view.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authed := false
	if token := c.tokens.Get(); token != "" && !anonymousPath(path) {
		req.Header.Set("Authorization", "Bearer "+token)
		authed = true
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if authed {
			if err := c.tokens.Clear(); err != nil {
				LogWarn("failed to clear token after %d: %v", resp.StatusCode, err)
			}
		}
		return &AuthError{Endpoint: path, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Endpoint: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// anonymousPath reports whether a path is served without the stored
// credential. A 401 from login or password reset means a wrong password,
// not a stale token, so those calls never trigger the forced logout in do.
func anonymousPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/") || strings.HasPrefix(path, "/api/password/")
}

// Health pings the orchestrator
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/actuator/health", nil, nil, nil)
}

/* =========================
   Auth
========================== */

// RegisterPayload is the signup request body
type RegisterPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Login authenticates and stores the returned token
func (c *Client) Login(ctx context.Context, email, password string) (Role, error) {
	var resp authResponse
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, payload, &resp); err != nil {
		return RoleNone, err
	}
	if resp.Token == "" {
		return RoleNone, &APIError{Endpoint: "/api/auth/login", Status: http.StatusOK, Body: "no token in response"}
	}
	if err := c.tokens.Set(resp.Token); err != nil {
		return RoleNone, err
	}
	return ExtractRole(resp.Token), nil
}

// Register creates an account; when the orchestrator returns a token the
// client is logged in immediately
func (c *Client) Register(ctx context.Context, payload RegisterPayload) (Role, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, payload, &resp); err != nil {
		return RoleNone, err
	}
	if resp.Token == "" {
		return RoleNone, nil
	}
	if err := c.tokens.Set(resp.Token); err != nil {
		return RoleNone, err
	}
	return ExtractRole(resp.Token), nil
}

// Logout discards the stored credential
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// ForgotPassword requests a reset email
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/password/forgot", nil, payload, nil)
}

// ResetPassword redeems a reset token
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	payload := map[string]string{"token": token, "newPassword": newPassword}
	return c.do(ctx, http.MethodPost, "/api/password/reset", nil, payload, nil)
}

// WhoAmIResponse is the orchestrator's view of the current credential
type WhoAmIResponse struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// WhoAmI asks the orchestrator who the stored credential belongs to
func (c *Client) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	var resp WhoAmIResponse
	if err := c.do(ctx, http.MethodGet, "/api/whoami", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

/* =========================
   Conversations & messages
========================== */

// History lists the user's conversations
func (c *Client) History(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/history", nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// CreateConversation creates an empty conversation and returns it
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	payload := map[string]string{"title": title}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations/create", nil, payload, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes one conversation
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/conversations/%d", id), nil, nil, nil)
}

// DeleteAllConversations removes every conversation of the current user
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations", nil, nil, nil)
}

// RenameConversation sets a conversation title
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) error {
	payload := map[string]string{"title": title}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/conversations/%d/rename", id), nil, payload, nil)
}

// Messages fetches the messages of a conversation, dropping empty rows and
// sorting by timestamp the way the original view does
func (c *Client) Messages(ctx context.Context, id int64) ([]Message, error) {
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", id), nil, nil, &msgs); err != nil {
		return nil, err
	}

	filtered := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		filtered = append(filtered, m)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp < filtered[j].Timestamp
	})
	return filtered, nil
}

// SaveMessage appends a message to a conversation
func (c *Client) SaveMessage(ctx context.Context, convID int64, role, content string) error {
	payload := map[string]string{"role": role, "content": content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", convID), nil, payload, nil)
}

/* =========================
   Chat channels
========================== */

// HandleChat sends a message to the structured stats handler
func (c *Client) HandleChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.chat(ctx, "/api/chat/handle", req)
}

// AskAI sends a message to the general AI handler
func (c *Client) AskAI(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.chat(ctx, "/api/chat/ask", req)
}

// WebAnswer sends a message to the web-search handler; a non-empty Docs
// list makes it a hybrid answer blending ingested document context
func (c *Client) WebAnswer(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.chat(ctx, "/api/chat/web", req)
}

func (c *Client) chat(ctx context.Context, path string, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

/* =========================
   Admin
========================== */

// Stats fetches the dashboard overview counters
func (c *Client) Stats(ctx context.Context) (*AdminStats, error) {
	var stats AdminStats
	if err := c.do(ctx, http.MethodGet, "/api/admin/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Users lists all accounts
func (c *Client) Users(ctx context.Context) ([]AdminUser, error) {
	var users []AdminUser
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetRole changes a user's role
func (c *Client) SetRole(ctx context.Context, id int64, role Role) error {
	query := url.Values{"role": {string(role)}}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/role", id), query, nil, nil)
}

// SetUserActive toggles a user account
func (c *Client) SetUserActive(ctx context.Context, id int64, active bool) error {
	query := url.Values{"active": {fmt.Sprintf("%t", active)}}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/active", id), query, nil, nil)
}

// DeleteUser removes an account
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", id), nil, nil, nil)
}

// SignupsPerDay returns account creations per day in [from, to]
func (c *Client) SignupsPerDay(ctx context.Context, from, to string) ([]DayCount, error) {
	var rows []DayCount
	query := url.Values{"from": {from}, "to": {to}}
	if err := c.do(ctx, http.MethodGet, "/api/admin/signups-per-day", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MsgsPerDay returns message volume per day in [from, to]
func (c *Client) MsgsPerDay(ctx context.Context, from, to string) ([]DayCount, error) {
	var rows []DayCount
	query := url.Values{"from": {from}, "to": {to}}
	if err := c.do(ctx, http.MethodGet, "/api/admin/analytics/messages-per-day", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AvgConvDuration returns the average conversation duration in minutes
func (c *Client) AvgConvDuration(ctx context.Context, from, to string) (*StatValue, error) {
	var stat StatValue
	query := url.Values{"from": {from}, "to": {to}}
	if err := c.do(ctx, http.MethodGet, "/api/admin/analytics/avg-conv-duration", query, nil, &stat); err != nil {
		return nil, err
	}
	return &stat, nil
}

// Heatmap returns the day-of-week x hour activity grid
func (c *Client) Heatmap(ctx context.Context, from, to string) ([]HeatCell, error) {
	var cells []HeatCell
	query := url.Values{"from": {from}, "to": {to}}
	if err := c.do(ctx, http.MethodGet, "/api/admin/analytics/heatmap", query, nil, &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

// TopKeywords returns the most frequent keywords in [from, to]
func (c *Client) TopKeywords(ctx context.Context, from, to string, limit int) ([]KeywordCount, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []KeywordCount
	query := url.Values{
		"from":  {from},
		"to":    {to},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/analytics/top-keywords", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
