package export

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(testConversation(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var got struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Messages []struct {
			Role        string   `json:"role"`
			Content     string   `json:"content"`
			Attachments []string `json:"attachments"`
			UsedDocs    []string `json:"used_docs"`
			Sources     []string `json:"sources"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.ID != 42 || got.Title != "Questions sur le rapport" || len(got.Messages) != 2 {
		t.Fatalf("document = %+v", got)
	}
	if len(got.Messages[0].Attachments) != 1 || got.Messages[0].Attachments[0] != "rapport.pdf" {
		t.Errorf("attachments = %+v", got.Messages[0].Attachments)
	}
	if len(got.Messages[1].UsedDocs) != 1 || got.Messages[1].UsedDocs[0] != "rapport.pdf" {
		t.Errorf("used docs = %+v", got.Messages[1].UsedDocs)
	}
	if len(got.Messages[1].Sources) != 1 || got.Messages[1].Sources[0] != "https://example.com/rapport" {
		t.Errorf("sources = %+v", got.Messages[1].Sources)
	}
}
