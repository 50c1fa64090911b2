package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AnalyticsClient talks to the analytics/AI backend: latency metrics,
// summaries, risk forecasts and the action-envelope endpoint
type AnalyticsClient struct {
	base string
	http *http.Client
}

// NewAnalyticsClient creates an analytics client
func NewAnalyticsClient(base string) *AnalyticsClient {
	return &AnalyticsClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *AnalyticsClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Endpoint: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// Health pings the analytics service. Unlike the latency probe this
// propagates transport errors, so an unreachable backend reports as such.
func (c *AnalyticsClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to /health failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Endpoint: "/health", Status: resp.StatusCode}
	}
	return nil
}

// Summary fetches /metrics/summary for [from, to] against the given SLO
func (c *AnalyticsClient) Summary(ctx context.Context, from, to time.Time, sloP90 float64) (*MetricsSummary, error) {
	query := url.Values{
		"from":    {from.UTC().Format(time.RFC3339)},
		"to":      {to.UTC().Format(time.RFC3339)},
		"slo_p90": {fmt.Sprintf("%g", sloP90)},
	}

	var raw struct {
		OK   bool `json:"ok"`
		Data struct {
			Period struct {
				From string `json:"from"`
				To   string `json:"to"`
			} `json:"period"`
			P90 struct {
				Min    float64 `json:"min"`
				Median float64 `json:"median"`
				Avg    float64 `json:"avg"`
				Max    float64 `json:"max"`
			} `json:"p90"`
			Trend struct {
				Direction       string  `json:"direction"`
				SlopeSecPerHour float64 `json:"slope_sec_per_hour"`
			} `json:"trend"`
			Anomalies int     `json:"anomalies_vs_baseline_p95"`
			Points    int     `json:"points"`
			SLOP90    float64 `json:"slo_p90"`
		} `json:"data"`
		SummaryText string `json:"summary_text"`
		UsedLLM     bool   `json:"used_llm"`
	}
	if err := c.get(ctx, "/metrics/summary", query, &raw); err != nil {
		return nil, err
	}

	return &MetricsSummary{
		From:        raw.Data.Period.From,
		To:          raw.Data.Period.To,
		P90Min:      raw.Data.P90.Min,
		P90Median:   raw.Data.P90.Median,
		P90Avg:      raw.Data.P90.Avg,
		P90Max:      raw.Data.P90.Max,
		Trend:       normalizeTrend(raw.Data.Trend.Direction),
		Slope:       raw.Data.Trend.SlopeSecPerHour,
		Anomalies:   raw.Data.Anomalies,
		Points:      raw.Data.Points,
		SLOP90:      raw.Data.SLOP90,
		SummaryText: raw.SummaryText,
		UsedLLM:     raw.UsedLLM,
	}, nil
}

// normalizeTrend maps the backend's historical trend labels (it used to
// answer in French) onto the canonical direction enum
func normalizeTrend(direction string) TrendDirection {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "rising", "hausse", "up":
		return TrendRising
	case "falling", "baisse", "down":
		return TrendFalling
	default:
		return TrendStable
	}
}

// ForecastRisk fetches /metrics/forecast-risk
func (c *AnalyticsClient) ForecastRisk(ctx context.Context, horizonMin, bucketMin int, alpha, sloP90 float64) (*Forecast, error) {
	query := url.Values{
		"horizon_min": {fmt.Sprintf("%d", horizonMin)},
		"bucket_min":  {fmt.Sprintf("%d", bucketMin)},
		"alpha":       {fmt.Sprintf("%g", alpha)},
		"slo_p90":     {fmt.Sprintf("%g", sloP90)},
	}
	var forecast Forecast
	if err := c.get(ctx, "/metrics/forecast-risk", query, &forecast); err != nil {
		return nil, err
	}
	return &forecast, nil
}

// Execute calls the action-envelope endpoint: {action, parameters} in,
// {data} out. The decoded data payload is unmarshalled into out.
func (c *AnalyticsClient) Execute(ctx context.Context, action string, parameters map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"action":     action,
		"parameters": parameters,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s action: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/mcp/execute", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s action request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s action request failed: %w", action, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Endpoint: "/mcp/execute", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var envelope struct {
		OK    bool            `json:"ok"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s action response: %w", action, err)
	}
	if envelope.Error != "" {
		return &APIError{Endpoint: "/mcp/execute", Status: http.StatusOK, Body: envelope.Error}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s action data: %w", action, err)
	}
	return nil
}
