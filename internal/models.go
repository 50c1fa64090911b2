package internal

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Conversation represents a conversation as returned by the orchestrator.
// ID 0 means the conversation is pending: it only exists in this client
// until the first message exchange assigns a server id.
type Conversation struct {
	ID       int64     `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title,omitempty"`
	Date     string    `json:"date,omitempty" yaml:"date,omitempty"`
	Messages []Message `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// UnmarshalJSON tolerates the historical field variants for the creation
// date (date, createdAt, created_at).
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        int64     `json:"id"`
		Title     string    `json:"title"`
		Date      string    `json:"date"`
		CreatedAt string    `json:"createdAt"`
		Created   string    `json:"created_at"`
		Messages  []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ID = aux.ID
	c.Title = aux.Title
	c.Date = firstNonEmpty(aux.Date, aux.CreatedAt, aux.Created)
	c.Messages = aux.Messages
	return nil
}

// Attachment describes a file attached to a user message
type Attachment struct {
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"mimeType" yaml:"mime_type,omitempty"`
}

// Citation describes a web source referenced by an assistant reply
type Citation struct {
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	URL     string `json:"url" yaml:"url"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Message is a single chat message. Attachments and UsedDocs are client-side
// enrichments merged from the meta cache; the orchestrator does not echo
// them on reload.
type Message struct {
	Role        string       `json:"role" yaml:"role"`
	Content     string       `json:"content" yaml:"content"`
	Timestamp   string       `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	UsedDocs    []string     `json:"usedDocs,omitempty" yaml:"used_docs,omitempty"`
	Citations   []Citation   `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// UnmarshalJSON tolerates the field-name variants the orchestrator has used
// over time: content/text/message, timestamp/ts/date (string or epoch) and
// usedDocs/used_docs/docs. Role "bot" is normalized to "assistant".
func (m *Message) UnmarshalJSON(data []byte) error {
	var aux struct {
		Role        string          `json:"role"`
		Actor       string          `json:"actor"`
		Content     string          `json:"content"`
		Text        string          `json:"text"`
		Msg         string          `json:"message"`
		Timestamp   json.RawMessage `json:"timestamp"`
		TS          json.RawMessage `json:"ts"`
		Date        json.RawMessage `json:"date"`
		Attachments []Attachment    `json:"attachments"`
		UsedDocs    []string        `json:"usedDocs"`
		UsedDocsAlt []string        `json:"used_docs"`
		Docs        []string        `json:"docs"`
		Citations   []Citation      `json:"citations"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Role = NormalizeRole(firstNonEmpty(aux.Role, aux.Actor))
	m.Content = firstNonEmpty(aux.Content, aux.Text, aux.Msg)
	m.Timestamp = decodeTimestamp(aux.Timestamp, aux.TS, aux.Date)
	m.Attachments = aux.Attachments
	m.Citations = aux.Citations
	switch {
	case aux.UsedDocs != nil:
		m.UsedDocs = aux.UsedDocs
	case aux.UsedDocsAlt != nil:
		m.UsedDocs = aux.UsedDocsAlt
	default:
		m.UsedDocs = aux.Docs
	}
	return nil
}

// NormalizeRole maps the orchestrator's historical role names onto the
// user/assistant pair
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "bot", "assistant", "ai":
		return "assistant"
	case "user", "human":
		return "user"
	default:
		return strings.ToLower(strings.TrimSpace(role))
	}
}

// decodeTimestamp resolves the first usable timestamp candidate into an
// RFC3339 string. Numeric candidates are epoch values, millisecond or
// second magnitude.
func decodeTimestamp(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
			return time.UnixMilli(epochToMillis(n)).UTC().Format(time.RFC3339)
		}
	}
	return ""
}

// ChatRequest is the payload for the chat endpoints
type ChatRequest struct {
	Message        string   `json:"message"`
	Docs           []string `json:"docs,omitempty"`
	ConversationID int64    `json:"conversationId,omitempty"`
}

// ChatResponse is the reply from the chat endpoints. ConversationID is the
// real server id, assigned on the first exchange of a pending conversation.
type ChatResponse struct {
	Reply          string     `json:"reply"`
	ConversationID int64      `json:"conversationId"`
	UsedDocs       []string   `json:"usedDocs,omitempty"`
	Citations      []Citation `json:"citations,omitempty"`
}

// MessageMeta holds the client-only enrichments for one message
type MessageMeta struct {
	Attachments []Attachment `json:"attachments,omitempty"`
	UsedDocs    []string     `json:"usedDocs,omitempty"`
}

// Merge overlays the fields present in incoming onto m
func (m MessageMeta) Merge(incoming MessageMeta) MessageMeta {
	out := m
	if incoming.Attachments != nil {
		out.Attachments = incoming.Attachments
	}
	if incoming.UsedDocs != nil {
		out.UsedDocs = incoming.UsedDocs
	}
	return out
}

// MetaKey derives the cache key for a message
func MetaKey(role, content string) string {
	return NormalizeRole(role) + "|" + strings.TrimSpace(content)
}

// AdminUser is a row of the admin user table
type AdminUser struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Active        bool   `json:"active"`
	Conversations int64  `json:"conversations,omitempty"`
}

// AdminStats is the overview block of the admin dashboard
type AdminStats struct {
	Users         int64 `json:"users"`
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
}

// UnmarshalJSON tolerates both the short and the total-prefixed key names
func (s *AdminStats) UnmarshalJSON(data []byte) error {
	var aux map[string]json.Number
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	pick := func(keys ...string) int64 {
		for _, k := range keys {
			if v, ok := aux[k]; ok {
				if n, err := v.Int64(); err == nil {
					return n
				}
			}
		}
		return 0
	}
	s.Users = pick("users", "totalUsers", "userCount")
	s.Conversations = pick("conversations", "totalConversations", "conversationCount")
	s.Messages = pick("messages", "totalMessages", "messageCount")
	return nil
}

// DayCount is a per-day counter (signups, messages)
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// UnmarshalJSON tolerates {date,count}, {date,value} and {d,msgs}
func (d *DayCount) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date  string      `json:"date"`
		D     string      `json:"d"`
		Count json.Number `json:"count"`
		Value json.Number `json:"value"`
		Msgs  json.Number `json:"msgs"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Date = firstNonEmpty(aux.Date, aux.D)
	for _, n := range []json.Number{aux.Count, aux.Value, aux.Msgs} {
		if n == "" {
			continue
		}
		if v, err := n.Int64(); err == nil {
			d.Count = v
			break
		}
	}
	return nil
}

// StatValue is a single named statistic
type StatValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// HeatCell is one cell of the day-of-week x hour activity heatmap
type HeatCell struct {
	Dow   int   `json:"dow"`
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// KeywordCount is a keyword frequency row
type KeywordCount struct {
	Word  string `json:"word"`
	Count int64  `json:"count"`
}

// LatencyRow is a normalized latency bucket. TS is epoch milliseconds;
// percentile and average values are seconds.
type LatencyRow struct {
	TS      int64   `json:"ts"`
	P50     float64 `json:"p50"`
	P90     float64 `json:"p90"`
	Avg     float64 `json:"avg"`
	Samples int64   `json:"samples"`
}

// Time returns the bucket timestamp
func (r LatencyRow) Time() time.Time {
	return time.UnixMilli(r.TS).UTC()
}

// TrendDirection of a latency summary
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// RiskLevel of a forecast point
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MetricsSummary is the decoded /metrics/summary payload
type MetricsSummary struct {
	From        string
	To          string
	P90Min      float64
	P90Median   float64
	P90Avg      float64
	P90Max      float64
	Trend       TrendDirection
	Slope       float64
	Anomalies   int
	Points      int
	SLOP90      float64
	SummaryText string
	UsedLLM     bool
}

// ForecastPoint is one bucket of the latency risk forecast
type ForecastPoint struct {
	TS            string    `json:"ts"`
	P90Pred       float64   `json:"p90_pred"`
	Low           float64   `json:"low"`
	High          float64   `json:"high"`
	ProbExceedSLO float64   `json:"prob_exceed_slo"`
	Risk          RiskLevel `json:"risk_level"`
}

// Forecast is the decoded /metrics/forecast-risk payload
type Forecast struct {
	SLOP90         float64         `json:"slo_p90"`
	BucketMin      int             `json:"bucket_min"`
	Alert          bool            `json:"alert"`
	OverallMaxProb float64         `json:"overall_max_prob"`
	Points         []ForecastPoint `json:"points"`
}

// DocInfo describes one ingested document
type DocInfo struct {
	Name  string `json:"name"`
	Pages int    `json:"pages"`
	Scope string `json:"scope,omitempty"`
}

// DocList is the /docs listing payload
type DocList struct {
	OK     bool      `json:"ok"`
	Scopes []string  `json:"scopes"`
	Count  int       `json:"count"`
	Docs   []DocInfo `json:"docs"`
}

// SearchHit is one ranked document excerpt from /search
type SearchHit struct {
	Scope   string  `json:"scope"`
	Doc     string  `json:"doc"`
	Page    int     `json:"page"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

// firstNonEmpty returns the first non-empty string
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// formatConversationID renders an id for display, "new" for pending
func formatConversationID(id int64) string {
	if id <= 0 {
		return "new"
	}
	return strconv.FormatInt(id, 10)
}
