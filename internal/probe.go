package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// The latency endpoint's query contract has shifted shape several times
// (key names, timestamp encodings, window parameters) without versioning.
// FetchLatencyWindow probes an ordered list of request shapes and keeps the
// first one that yields rows, so a backend change degrades to a slower
// first call instead of an empty dashboard. The chain is a workaround for
// an unversioned contract, not a design to emulate; it is isolated behind
// this one method so a canonical contract can replace it.

const latencyPath = "/metrics/latency"

// probeAttempt is one request shape to try against the latency endpoint
type probeAttempt struct {
	name   string
	params func(from, to time.Time) url.Values
}

var probeAttempts = []probeAttempt{
	{"from-to-iso", func(from, to time.Time) url.Values {
		return url.Values{
			"from": {from.UTC().Format(time.RFC3339)},
			"to":   {to.UTC().Format(time.RFC3339)},
		}
	}},
	{"start-end-iso", func(from, to time.Time) url.Values {
		return url.Values{
			"start": {from.UTC().Format(time.RFC3339)},
			"end":   {to.UTC().Format(time.RFC3339)},
		}
	}},
	{"since-until-iso", func(from, to time.Time) url.Values {
		return url.Values{
			"since": {from.UTC().Format(time.RFC3339)},
			"until": {to.UTC().Format(time.RFC3339)},
		}
	}},
	{"from-to-local", func(from, to time.Time) url.Values {
		const layout = "2006-01-02 15:04:05"
		return url.Values{
			"from": {from.Local().Format(layout)},
			"to":   {to.Local().Format(layout)},
		}
	}},
	{"from-to-millis", func(from, to time.Time) url.Values {
		return url.Values{
			"from": {strconv.FormatInt(from.UnixMilli(), 10)},
			"to":   {strconv.FormatInt(to.UnixMilli(), 10)},
		}
	}},
	{"from-to-seconds", func(from, to time.Time) url.Values {
		return url.Values{
			"from": {strconv.FormatInt(from.Unix(), 10)},
			"to":   {strconv.FormatInt(to.Unix(), 10)},
		}
	}},
	{"start-end-seconds", func(from, to time.Time) url.Values {
		return url.Values{
			"start": {strconv.FormatInt(from.Unix(), 10)},
			"end":   {strconv.FormatInt(to.Unix(), 10)},
		}
	}},
	{"window-hours", func(from, to time.Time) url.Values {
		hours := int(math.Ceil(to.Sub(from).Hours()))
		if hours < 1 {
			hours = 1
		}
		return url.Values{"hours": {strconv.Itoa(hours)}}
	}},
	{"window-minutes", func(from, to time.Time) url.Values {
		minutes := int(math.Ceil(to.Sub(from).Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		return url.Values{"last": {strconv.Itoa(minutes)}}
	}},
}

// FetchLatencyWindow returns normalized latency rows for [from, to]. Every
// attempt shape is tried in order until one yields at least one valid row;
// when all of them come back empty the result is an empty list, not an
// error.
func (c *AnalyticsClient) FetchLatencyWindow(ctx context.Context, from, to time.Time) ([]LatencyRow, error) {
	for _, attempt := range probeAttempts {
		rows, err := c.fetchLatencyAttempt(ctx, attempt, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			LogDebug("latency probe %s failed: %v", attempt.name, err)
			continue
		}
		if len(rows) > 0 {
			LogDebug("latency probe %s returned %d rows", attempt.name, len(rows))
			return rows, nil
		}
	}
	return []LatencyRow{}, nil
}

func (c *AnalyticsClient) fetchLatencyAttempt(ctx context.Context, attempt probeAttempt, from, to time.Time) ([]LatencyRow, error) {
	endpoint := c.base + latencyPath + "?" + attempt.params(from, to).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ProbeError{Attempt: attempt.name, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProbeError{Attempt: attempt.name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ProbeError{
			Attempt: attempt.name,
			Err:     &APIError{Endpoint: latencyPath, Status: resp.StatusCode},
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ProbeError{Attempt: attempt.name, Err: err}
	}

	raw, err := UnwrapRows(body)
	if err != nil {
		return nil, &ProbeError{Attempt: attempt.name, Err: err}
	}

	rows := make([]LatencyRow, 0, len(raw))
	for _, r := range raw {
		if row, ok := NormalizeLatencyRow(r); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// UnwrapRows extracts the row list from a latency payload. The payload may
// be a bare array or wrapped under rows, data, data.rows or result.
func UnwrapRows(payload []byte) ([]map[string]interface{}, error) {
	var bare []map[string]interface{}
	if err := json.Unmarshal(payload, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Rows   []map[string]interface{} `json:"rows"`
		Data   json.RawMessage          `json:"data"`
		Result []map[string]interface{} `json:"result"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized latency payload: %w", err)
	}
	if wrapped.Rows != nil {
		return wrapped.Rows, nil
	}
	if wrapped.Result != nil {
		return wrapped.Result, nil
	}
	if len(wrapped.Data) > 0 {
		var dataRows []map[string]interface{}
		if err := json.Unmarshal(wrapped.Data, &dataRows); err == nil {
			return dataRows, nil
		}
		var inner struct {
			Rows []map[string]interface{} `json:"rows"`
		}
		if err := json.Unmarshal(wrapped.Data, &inner); err == nil && inner.Rows != nil {
			return inner.Rows, nil
		}
	}
	return nil, nil
}

// timestamp field candidates, most common first
var tsFields = []string{
	"ts", "tsMillis", "ts_ms", "ts_sec", "timestamp", "time", "t",
	"date", "datetime", "bucket", "bucket_ts", "epoch",
}

// NormalizeLatencyRow resolves one heterogeneous latency row into the
// canonical form: epoch-millisecond timestamp, second-valued p50/p90/avg.
// Rows without a resolvable timestamp are dropped (ok = false).
func NormalizeLatencyRow(row map[string]interface{}) (LatencyRow, bool) {
	ts, ok := resolveTimestamp(row)
	if !ok {
		return LatencyRow{}, false
	}

	out := LatencyRow{TS: ts}
	out.P50 = resolveSeconds(row, "p50")
	out.P90 = resolveSeconds(row, "p90")
	if out.P90 == 0 {
		// p95 substitutes when the backend stopped emitting p90
		out.P90 = resolveSeconds(row, "p95")
	}
	out.Avg = resolveSeconds(row, "avg")
	if out.Avg == 0 {
		out.Avg = resolveSeconds(row, "mean")
	}
	out.Samples = resolveCount(row)
	return out, true
}

func resolveTimestamp(row map[string]interface{}) (int64, bool) {
	for _, field := range tsFields {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			if val <= 0 {
				continue
			}
			return epochToMillis(val), true
		case string:
			if ms, ok := parseTimeString(val); ok {
				return ms, true
			}
		}
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		return epochToMillis(n), true
	}
	for _, layout := range timeLayouts {
		var t time.Time
		var err error
		if strings.Contains(layout, "Z") {
			t, err = time.Parse(layout, s)
		} else {
			// layouts without a zone are local times
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// epochToMillis interprets an epoch value by magnitude: values at
// millisecond scale pass through, anything smaller is seconds
func epochToMillis(v float64) int64 {
	if v >= 1e12 {
		return int64(v)
	}
	return int64(v * 1000)
}

// resolveSeconds reads a metric that may be expressed in seconds (bare
// field) or milliseconds (_ms suffix)
func resolveSeconds(row map[string]interface{}, field string) float64 {
	if v, ok := numberField(row, field); ok {
		return v
	}
	if v, ok := numberField(row, field+"_ms"); ok {
		return v / 1000.0
	}
	if v, ok := numberField(row, field+"Ms"); ok {
		return v / 1000.0
	}
	return 0
}

func resolveCount(row map[string]interface{}) int64 {
	for _, field := range []string{"samples", "count", "n"} {
		if v, ok := numberField(row, field); ok {
			return int64(v)
		}
	}
	return 0
}

func numberField(row map[string]interface{}, field string) (float64, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
