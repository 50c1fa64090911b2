package internal

import (
	"os"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Role of the logged-in user
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	// RoleNone means the credential is absent or carries no known role claim
	RoleNone Role = ""
)

// TokenStore persists the access token in a single file under the data dir.
// The file is the source of truth: reads always go to disk so a credential
// change is never served stale. Dependents subscribe to changes instead of
// re-reading ad hoc.
type TokenStore struct {
	path string

	mu   sync.Mutex
	subs []func()
}

// NewTokenStore creates a store backed by the given file path
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Get returns the stored token, or "" when absent or unreadable
func (s *TokenStore) Get() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Set stores the token and notifies subscribers
func (s *TokenStore) Set(token string) error {
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return &CacheError{Path: s.path, Op: "write", Err: err}
	}
	s.notify()
	return nil
}

// Clear removes the credential and notifies subscribers. A missing file is
// not an error: logout is idempotent.
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return &CacheError{Path: s.path, Op: "write", Err: err}
	}
	s.notify()
	return nil
}

// OnChange registers a callback fired after every Set/Clear
func (s *TokenStore) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *TokenStore) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Identity derives session attributes from the stored credential. Every
// accessor re-reads the token, so a login or logout is visible immediately.
type Identity struct {
	tokens *TokenStore
}

// NewIdentity creates an identity resolver over the token store
func NewIdentity(tokens *TokenStore) *Identity {
	return &Identity{tokens: tokens}
}

// IsLoggedIn reports whether a credential is stored
func (i *Identity) IsLoggedIn() bool {
	return i.tokens.Get() != ""
}

// Role returns the role claimed by the current credential
func (i *Identity) Role() Role {
	return ExtractRole(i.tokens.Get())
}

// IsAdmin reports whether the current credential claims ADMIN
func (i *Identity) IsAdmin() bool {
	return i.Role() == RoleAdmin
}

// Email returns the subject email of the current credential, or ""
func (i *Identity) Email() string {
	return ExtractEmail(i.tokens.Get())
}

// Namespace returns the per-user partition key used for document
// ingestion/search: the lower-cased email, or "guest" when logged out
func (i *Identity) Namespace() string {
	email := i.Email()
	if email == "" {
		return "guest"
	}
	return strings.ToLower(email)
}

// parseClaims decodes the token payload without verifying the signature.
// The client only displays claims; verification is the orchestrator's job.
// A malformed token yields nil, never an error.
func parseClaims(token string) jwt.MapClaims {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		LogDebug("failed to decode token claims: %v", err)
		return nil
	}
	return claims
}

// roleStrategy extracts candidate role names from one claim shape. The
// orchestrator has emitted roles under several claims over time; each shape
// is its own strategy so they stay independently testable.
type roleStrategy struct {
	name    string
	extract func(claims jwt.MapClaims) []string
}

var roleStrategies = []roleStrategy{
	{
		name: "roles",
		extract: func(claims jwt.MapClaims) []string {
			return claimStrings(claims["roles"])
		},
	},
	{
		name: "authorities",
		extract: func(claims jwt.MapClaims) []string {
			switch v := claims["authorities"].(type) {
			case []interface{}:
				var out []string
				for _, item := range v {
					if obj, ok := item.(map[string]interface{}); ok {
						if s, ok := obj["authority"].(string); ok && s != "" {
							out = append(out, s)
							continue
						}
						if s, ok := obj["role"].(string); ok && s != "" {
							out = append(out, s)
						}
						continue
					}
					if s, ok := item.(string); ok && s != "" {
						out = append(out, s)
					}
				}
				return out
			default:
				return claimStrings(v)
			}
		},
	},
	{
		name: "scope",
		extract: func(claims jwt.MapClaims) []string {
			return claimStrings(claims["scope"])
		},
	},
	{
		name: "role",
		extract: func(claims jwt.MapClaims) []string {
			if s, ok := claims["role"].(string); ok {
				return []string{s}
			}
			return nil
		},
	},
}

// claimStrings flattens a claim into a string list: arrays as-is, strings
// split on commas/whitespace
func claimStrings(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	default:
		return nil
	}
}

// ExtractRole resolves the role claimed by a token. Strategies are tried in
// order; the first one yielding any candidate wins. Unknown or malformed
// tokens resolve to RoleNone.
func ExtractRole(token string) Role {
	claims := parseClaims(token)
	if claims == nil {
		return RoleNone
	}

	var claimed []string
	for _, strat := range roleStrategies {
		claimed = strat.extract(claims)
		if len(claimed) > 0 {
			LogDebug("role extracted via %s claim", strat.name)
			break
		}
	}

	for i, c := range claimed {
		claimed[i] = strings.ToUpper(c)
	}
	if containsString(claimed, "ROLE_ADMIN") || containsString(claimed, "ADMIN") {
		return RoleAdmin
	}
	if containsString(claimed, "ROLE_USER") || containsString(claimed, "USER") {
		return RoleUser
	}
	return RoleNone
}

// ExtractEmail resolves the subject email from a token (sub or email claim)
func ExtractEmail(token string) string {
	claims := parseClaims(token)
	if claims == nil {
		return ""
	}
	if s, ok := claims["email"].(string); ok && s != "" {
		return s
	}
	if s, ok := claims["sub"].(string); ok && strings.Contains(s, "@") {
		return s
	}
	return ""
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
