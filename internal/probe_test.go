package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestUnwrapRows(t *testing.T) {
	rows := `[{"ts": 1700000000000, "p90": 0.5}]`
	want := []map[string]interface{}{{"ts": float64(1700000000000), "p90": 0.5}}

	tests := []struct {
		name    string
		payload string
	}{
		{"bare array", rows},
		{"rows wrapper", `{"rows": ` + rows + `}`},
		{"result wrapper", `{"result": ` + rows + `}`},
		{"data array", `{"ok": true, "data": ` + rows + `}`},
		{"data.rows", `{"data": {"rows": ` + rows + `}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnwrapRows([]byte(tt.payload))
			if err != nil {
				t.Fatalf("UnwrapRows() failed: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("UnwrapRows() = %v, want %v", got, want)
			}
		})
	}
}

func TestUnwrapRows_Empty(t *testing.T) {
	got, err := UnwrapRows([]byte(`{"ok": true}`))
	if err != nil {
		t.Fatalf("UnwrapRows() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("UnwrapRows() = %v, want empty", got)
	}
}

func TestNormalizeLatencyRow(t *testing.T) {
	tests := []struct {
		name   string
		row    map[string]interface{}
		want   LatencyRow
		wantOK bool
	}{
		{
			name:   "canonical seconds",
			row:    map[string]interface{}{"ts": float64(1700000000000), "p50": 0.2, "p90": 0.5, "avg": 0.3, "samples": float64(12)},
			want:   LatencyRow{TS: 1700000000000, P50: 0.2, P90: 0.5, Avg: 0.3, Samples: 12},
			wantOK: true,
		},
		{
			name:   "millisecond suffixed fields",
			row:    map[string]interface{}{"tsMillis": float64(1700000000000), "p50_ms": float64(200), "p90_ms": float64(500), "avg_ms": float64(300), "count": float64(12)},
			want:   LatencyRow{TS: 1700000000000, P50: 0.2, P90: 0.5, Avg: 0.3, Samples: 12},
			wantOK: true,
		},
		{
			name:   "epoch seconds scaled up",
			row:    map[string]interface{}{"ts": float64(1700000000), "p90": 0.5},
			want:   LatencyRow{TS: 1700000000000, P90: 0.5},
			wantOK: true,
		},
		{
			name:   "p95 substitutes for missing p90",
			row:    map[string]interface{}{"ts": float64(1700000000000), "p95": 0.7},
			want:   LatencyRow{TS: 1700000000000, P90: 0.7},
			wantOK: true,
		},
		{
			name:   "mean substitutes for missing avg",
			row:    map[string]interface{}{"ts": float64(1700000000000), "mean": 0.4},
			want:   LatencyRow{TS: 1700000000000, Avg: 0.4},
			wantOK: true,
		},
		{
			name:   "numeric string values",
			row:    map[string]interface{}{"ts": "1700000000000", "p90": "0.5", "samples": "3"},
			want:   LatencyRow{TS: 1700000000000, P90: 0.5, Samples: 3},
			wantOK: true,
		},
		{
			name:   "rfc3339 timestamp",
			row:    map[string]interface{}{"timestamp": "2023-11-14T22:13:20Z", "p90": 0.5},
			want:   LatencyRow{TS: 1700000000000, P90: 0.5},
			wantOK: true,
		},
		{
			name:   "no timestamp dropped",
			row:    map[string]interface{}{"p90": 0.5},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeLatencyRow(tt.row)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeLatencyRow() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeLatencyRow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeLatencyRow_EquivalentEncodings(t *testing.T) {
	// The same measurement in two historical encodings must normalize
	// identically
	a, okA := NormalizeLatencyRow(map[string]interface{}{
		"ts": float64(1700000000000), "p90": 0.5,
	})
	b, okB := NormalizeLatencyRow(map[string]interface{}{
		"tsMillis": float64(1700000000000), "p90_ms": float64(500),
	})
	if !okA || !okB {
		t.Fatal("normalization rejected a valid row")
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("encodings diverge: %+v vs %+v", a, b)
	}
}

func TestParseTimeString_ZonelessIsLocal(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local).UnixMilli()
	got, ok := parseTimeString("2024-01-01 10:00:00")
	if !ok {
		t.Fatal("parseTimeString rejected a valid local time")
	}
	if got != want {
		t.Errorf("parseTimeString() = %d, want %d", got, want)
	}
}

func TestEpochToMillis(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int64
	}{
		{"milliseconds pass through", 1700000000000, 1700000000000},
		{"seconds scaled", 1700000000, 1700000000000},
		{"threshold boundary", 1e12, 1e12},
		{"just below threshold", 999999999999, 999999999999000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := epochToMillis(tt.in); got != tt.want {
				t.Errorf("epochToMillis(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFetchLatencyWindow_ProbesUntilRowsAppear(t *testing.T) {
	// The backend only understands the hours-window shape; every other
	// attempt comes back empty
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.URL.Query().Get("hours") == "" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"ts": 1700000000000, "p50": 0.2, "p90": 0.5, "avg": 0.3, "samples": 10},
		})
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL)
	to := time.Now()
	rows, err := client.FetchLatencyWindow(context.Background(), to.Add(-time.Hour), to)
	if err != nil {
		t.Fatalf("FetchLatencyWindow() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].TS != 1700000000000 || rows[0].P90 != 0.5 {
		t.Errorf("row = %+v", rows[0])
	}
	if attempts < 2 {
		t.Errorf("expected multiple probe attempts, got %d", attempts)
	}
}

func TestFetchLatencyWindow_FirstShapeWins(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"ts": 1700000000000, "p90": 0.5},
		})
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL)
	to := time.Now()
	rows, err := client.FetchLatencyWindow(context.Background(), to.Add(-time.Hour), to)
	if err != nil {
		t.Fatalf("FetchLatencyWindow() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if attempts != 1 {
		t.Errorf("made %d attempts, want 1", attempts)
	}
}

func TestFetchLatencyWindow_AllEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL)
	to := time.Now()
	rows, err := client.FetchLatencyWindow(context.Background(), to.Add(-time.Hour), to)
	if err != nil {
		t.Fatalf("FetchLatencyWindow() failed: %v", err)
	}
	if rows == nil {
		t.Fatal("rows is nil, want empty non-nil list")
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestFetchLatencyWindow_ErrorsDoNotAbortChain(t *testing.T) {
	// Failing shapes are skipped; a later shape still succeeds
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"ts": 1700000000000, "p90": 0.5},
		})
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL)
	to := time.Now()
	rows, err := client.FetchLatencyWindow(context.Background(), to.Add(-time.Hour), to)
	if err != nil {
		t.Fatalf("FetchLatencyWindow() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1", len(rows))
	}
}
