package export

import (
	"io"

	"chatctl/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes a conversation as one YAML document with per-message
// attachment and source provenance
type YAMLExporter struct{}

// Export exports a conversation to YAML format
func (e *YAMLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(buildDocument(conv))
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
