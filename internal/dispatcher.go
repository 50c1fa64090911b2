package internal

import (
	"context"
	"strings"
)

// statsKeywords are the meta-query phrases answered by the structured
// stats handler instead of the general AI. Matching is case-insensitive
// substring containment; the set has no meaningful order.
var statsKeywords = []string{
	"combien de conversations",
	"nombre de conversations",
	"combien de messages",
	"dernier message",
	"date de la dernière conversation",
	"quelle est la version",
	"nombre de mots",
	"durée moyenne",
	"plus longue conversation",
}

// IsStatsQuery reports whether text asks one of the known meta questions
func IsStatsQuery(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range statsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FallbackReply is the synthetic assistant message shown when the chat
// call fails or returns an empty reply
const FallbackReply = "❌ Je n’ai pas pu trouver de réponse à cette question."

// DraftAttachment is a file selected for the next send. It exists only
// between selection and send: ingested then discarded.
type DraftAttachment struct {
	Path     string
	Name     string
	MimeType string
}

// Outgoing is one user action handed to the dispatcher
type Outgoing struct {
	Text           string
	ConversationID int64
	Attachments    []DraftAttachment
	// WebSearch marks the explicit web-search action instead of a plain send
	WebSearch bool
}

// Dispatcher routes outgoing messages to the right chat channel: the
// structured stats handler for known meta questions, the web-answer
// channel on explicit request, the general AI otherwise.
type Dispatcher struct {
	api      *Client
	docqa    *DocqaClient
	identity *Identity
}

// NewDispatcher creates a dispatcher over the two backends
func NewDispatcher(api *Client, docqa *DocqaClient, identity *Identity) *Dispatcher {
	return &Dispatcher{api: api, docqa: docqa, identity: identity}
}

// Dispatch ingests the draft attachments, routes the message and returns
// the reply. A transport failure never propagates: the reply degrades to
// the fixed fallback text so the conversation view stays usable.
// visible is the currently rendered message list, used to gather document
// provenance for hybrid web answers.
func (d *Dispatcher) Dispatch(ctx context.Context, out Outgoing, visible []Message) (*ChatResponse, []string) {
	ingested := d.ingestDrafts(ctx, out)

	req := ChatRequest{
		Message:        strings.TrimSpace(out.Text),
		ConversationID: out.ConversationID,
		Docs:           ingested,
	}

	var resp *ChatResponse
	var err error
	switch {
	case out.WebSearch:
		req.Docs = GatherWebDocs(ingested, visible)
		resp, err = d.api.WebAnswer(ctx, req)
	case IsStatsQuery(out.Text):
		resp, err = d.api.HandleChat(ctx, req)
	default:
		resp, err = d.api.AskAI(ctx, req)
	}

	if err != nil {
		LogWarn("chat call failed: %v", err)
		return &ChatResponse{Reply: FallbackReply, ConversationID: out.ConversationID}, ingested
	}
	if strings.TrimSpace(resp.Reply) == "" {
		resp.Reply = FallbackReply
	}
	if resp.ConversationID == 0 {
		resp.ConversationID = out.ConversationID
	}
	return resp, ingested
}

// ingestDrafts uploads the draft files one at a time, in order, and
// returns the names that were actually ingested. Strictly sequential so
// the used-documents list has a deterministic order; one failed file is
// dropped without aborting the rest or blocking the send.
func (d *Dispatcher) ingestDrafts(ctx context.Context, out Outgoing) []string {
	if len(out.Attachments) == 0 {
		return nil
	}

	ns := d.identity.Namespace()
	var names []string
	for _, draft := range out.Attachments {
		info, err := d.docqa.Ingest(ctx, ns, out.ConversationID, draft.Path)
		if err != nil {
			LogWarn("ingestion failed for %s: %v", draft.Name, err)
			continue
		}
		LogDebug("ingested %s (%d pages)", info.Name, info.Pages)
		names = append(names, info.Name)
	}
	return names
}

// GatherWebDocs builds the document list for a hybrid web answer: freshly
// ingested names first, then every name already used earlier in the
// visible conversation, deduplicated preserving first occurrence
func GatherWebDocs(ingested []string, visible []Message) []string {
	combined := make([]string, 0, len(ingested))
	combined = append(combined, ingested...)
	for _, msg := range visible {
		combined = append(combined, msg.UsedDocs...)
	}
	return DedupeStrings(combined)
}

// DedupeStrings removes duplicates preserving first-occurrence order
func DedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
