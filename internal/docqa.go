package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DocqaClient talks to the document ingestion/search backend. Every call
// is scoped by a namespace (the user's partition key) and optionally by a
// conversation id.
type DocqaClient struct {
	base string
	http *http.Client
}

// NewDocqaClient creates a doc-QA client
func NewDocqaClient(base string) *DocqaClient {
	return &DocqaClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 120 * time.Second},
	}
}

// Ingest uploads one file for indexing and returns the ingested document
// name and page count
func (c *DocqaClient) Ingest(ctx context.Context, ns string, convID int64, path string) (*DocInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("ns", ns); err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	if convID > 0 {
		if err := form.WriteField("conv", strconv.FormatInt(convID, 10)); err != nil {
			return nil, &IngestError{Name: filepath.Base(path), Err: err}
		}
	}
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	if err := form.Close(); err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/ingest", &buf)
	if err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &IngestError{
			Name: filepath.Base(path),
			Err:  &APIError{Endpoint: "/ingest", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))},
		}
	}

	var out struct {
		OK    bool   `json:"ok"`
		Doc   string `json:"doc"`
		Pages int    `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &IngestError{Name: filepath.Base(path), Err: err}
	}
	name := out.Doc
	if name == "" {
		name = filepath.Base(path)
	}
	return &DocInfo{Name: name, Pages: out.Pages}, nil
}

// ListDocs returns the documents visible in a namespace
func (c *DocqaClient) ListDocs(ctx context.Context, ns string, convID int64) (*DocList, error) {
	query := url.Values{"ns": {ns}}
	if convID > 0 {
		query.Set("conv", strconv.FormatInt(convID, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/docs?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build docs request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docs request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Endpoint: "/docs", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var list DocList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode docs response: %w", err)
	}
	return &list, nil
}

// Search runs a plain-text search over the namespace and returns ranked
// excerpts
func (c *DocqaClient) Search(ctx context.Context, ns, query string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = 5
	}
	payload, err := json.Marshal(map[string]interface{}{"ns": ns, "q": query, "k": topK})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Endpoint: "/search", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var hits []SearchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return hits, nil
}

// Health pings the backend
func (c *DocqaClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Endpoint: "/health", Status: resp.StatusCode}
	}
	return nil
}

// EnvCheck reports the backend's configuration flags
func (c *DocqaClient) EnvCheck(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/envcheck", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build envcheck request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("envcheck request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Endpoint: "/envcheck", Status: resp.StatusCode}
	}

	out := make(map[string]interface{})
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode envcheck response: %w", err)
	}
	return out, nil
}
