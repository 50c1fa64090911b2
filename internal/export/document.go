package export

import "chatctl/internal"

// conversationDocument is the shape the JSON and YAML exporters write.
// Attachment names, used-doc provenance and web sources are spelled out per
// message so the export carries the merged meta, not just the wire struct.
type conversationDocument struct {
	ID       int64             `json:"id" yaml:"id"`
	Title    string            `json:"title,omitempty" yaml:"title,omitempty"`
	Date     string            `json:"date,omitempty" yaml:"date,omitempty"`
	Messages []messageDocument `json:"messages" yaml:"messages"`
}

type messageDocument struct {
	Role        string   `json:"role" yaml:"role"`
	Content     string   `json:"content" yaml:"content"`
	Timestamp   string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Attachments []string `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	UsedDocs    []string `json:"used_docs,omitempty" yaml:"used_docs,omitempty"`
	Sources     []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func buildDocument(conv *internal.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:       conv.ID,
		Title:    conv.Title,
		Date:     conv.Date,
		Messages: make([]messageDocument, 0, len(conv.Messages)),
	}
	for _, msg := range conv.Messages {
		md := messageDocument{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			UsedDocs:  msg.UsedDocs,
		}
		for _, att := range msg.Attachments {
			md.Attachments = append(md.Attachments, att.Name)
		}
		for _, cit := range msg.Citations {
			md.Sources = append(md.Sources, cit.URL)
		}
		doc.Messages = append(doc.Messages, md)
	}
	return doc
}
