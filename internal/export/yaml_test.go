package export

import (
	"bytes"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(testConversation(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var got struct {
		ID       int64  `yaml:"id"`
		Title    string `yaml:"title"`
		Messages []struct {
			Role        string   `yaml:"role"`
			Attachments []string `yaml:"attachments"`
			UsedDocs    []string `yaml:"used_docs"`
			Sources     []string `yaml:"sources"`
		} `yaml:"messages"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if got.ID != 42 || got.Title != "Questions sur le rapport" || len(got.Messages) != 2 {
		t.Fatalf("document = %+v", got)
	}
	if len(got.Messages[0].Attachments) != 1 || got.Messages[0].Attachments[0] != "rapport.pdf" {
		t.Errorf("attachments = %+v", got.Messages[0].Attachments)
	}
	if len(got.Messages[1].UsedDocs) != 1 || got.Messages[1].Sources[0] != "https://example.com/rapport" {
		t.Errorf("provenance = %+v", got.Messages[1])
	}
}
