package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// newTestBinder wires a binder, its meta cache and a dispatcher against a
// fake orchestrator
func newTestBinder(t *testing.T, handler http.Handler) (*Binder, *MetaCache) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	tokens := NewTokenStore(filepath.Join(dir, "token"))
	api := NewClient(server.URL, tokens)
	docqa := NewDocqaClient(server.URL)
	meta, err := OpenMetaCache(filepath.Join(dir, "meta.db"))
	if err != nil {
		t.Fatalf("OpenMetaCache() failed: %v", err)
	}
	t.Cleanup(func() { _ = meta.Close() })

	dispatcher := NewDispatcher(api, docqa, NewIdentity(tokens))
	return NewBinder(api, meta, dispatcher), meta
}

func TestBinder_BindWelcome(t *testing.T) {
	binder, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for the welcome state")
	}))

	for _, id := range []int64{0, -1} {
		if err := binder.Bind(context.Background(), id); err != nil {
			t.Fatalf("Bind(%d) failed: %v", id, err)
		}
		if got := binder.State(); got != StateNoConversation {
			t.Errorf("State() = %v, want no-conversation", got)
		}
		if got := binder.Messages(); len(got) != 0 {
			t.Errorf("Messages() = %d entries, want 0", len(got))
		}
	}
}

func TestBinder_BindLoadsAndMergesMeta(t *testing.T) {
	binder, meta := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Message{
			{Role: "user", Content: "bonjour", Timestamp: "2024-01-01T10:00:00Z"},
			{Role: "assistant", Content: "salut", Timestamp: "2024-01-01T10:00:01Z"},
		})
	}))

	meta.SetMeta(42, MetaKey("assistant", "salut"), MessageMeta{UsedDocs: []string{"doc.pdf"}})

	if err := binder.Bind(context.Background(), 42); err != nil {
		t.Fatalf("Bind() failed: %v", err)
	}
	if got := binder.State(); got != StateBound {
		t.Errorf("State() = %v, want bound", got)
	}
	msgs := binder.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Messages() = %d entries, want 2", len(msgs))
	}
	if !reflect.DeepEqual(msgs[1].UsedDocs, []string{"doc.pdf"}) {
		t.Errorf("merged UsedDocs = %v, want [doc.pdf]", msgs[1].UsedDocs)
	}
}

func TestBinder_BindFetchFailureYieldsEmptyView(t *testing.T) {
	binder, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if err := binder.Bind(context.Background(), 42); err != nil {
		t.Fatalf("Bind() failed: %v", err)
	}
	if got := binder.State(); got != StateBound {
		t.Errorf("State() = %v, want bound", got)
	}
	if got := binder.Messages(); len(got) != 0 {
		t.Errorf("Messages() = %d entries, want 0", len(got))
	}
}

func TestBinder_BindAuthErrorPropagates(t *testing.T) {
	binder, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))

	err := binder.Bind(context.Background(), 42)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Bind() error = %v, want AuthError", err)
	}
}

func TestBinder_SendEmptyMessage(t *testing.T) {
	binder, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty message")
	}))

	if _, err := binder.Send(context.Background(), Outgoing{Text: "   "}); err == nil {
		t.Error("Send() with blank text succeeded, want error")
	}
}

func TestBinder_FirstSendAdoptsServerID(t *testing.T) {
	var messagesFetches int
	binder, meta := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			messagesFetches++
			_ = json.NewEncoder(w).Encode([]Message{})
		default:
			_ = json.NewEncoder(w).Encode(ChatResponse{Reply: "bonjour !", ConversationID: 42})
		}
	}))

	// Metadata recorded before the first exchange lands in the pending bucket
	meta.SetMeta(PendingConversationID, MetaKey("user", "salut"), MessageMeta{
		Attachments: []Attachment{{Name: "draft.pdf"}},
	})

	if err := binder.Bind(context.Background(), 0); err != nil {
		t.Fatalf("Bind(0) failed: %v", err)
	}

	resp, err := binder.Send(context.Background(), Outgoing{Text: "salut"})
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if resp.ConversationID != 42 {
		t.Fatalf("response id = %d, want 42", resp.ConversationID)
	}
	if got := binder.ConversationID(); got != 42 {
		t.Errorf("ConversationID() = %d, want 42", got)
	}
	if got := binder.State(); got != StateBound {
		t.Errorf("State() = %v, want bound", got)
	}

	msgs := binder.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Messages() = %d entries, want user + assistant", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "salut" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "bonjour !" {
		t.Errorf("second message = %+v", msgs[1])
	}

	// Pending meta migrated to the adopted id
	if got := meta.AllMeta(PendingConversationID); len(got) != 0 {
		t.Errorf("pending bucket = %d entries after adoption, want 0", len(got))
	}
	adopted := meta.AllMeta(42)[MetaKey("user", "salut")]
	if len(adopted.Attachments) != 1 || adopted.Attachments[0].Name != "draft.pdf" {
		t.Errorf("migrated meta = %+v, want draft.pdf attachment", adopted)
	}

	// The route update after the first send must not re-fetch and clobber
	// the just-sent messages
	if err := binder.Bind(context.Background(), 42); err != nil {
		t.Fatalf("Bind(42) failed: %v", err)
	}
	if messagesFetches != 0 {
		t.Errorf("messages fetched %d times after first send, want 0", messagesFetches)
	}
	if got := binder.Messages(); len(got) != 2 {
		t.Errorf("Messages() after rebind = %d entries, want 2", len(got))
	}

	// The skip is consumed: the next bind fetches again
	if err := binder.Bind(context.Background(), 42); err != nil {
		t.Fatalf("second Bind(42) failed: %v", err)
	}
	if messagesFetches != 1 {
		t.Errorf("messages fetched %d times, want 1", messagesFetches)
	}
}

func TestBinder_SendIntoBoundConversationKeepsID(t *testing.T) {
	binder, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			_ = json.NewEncoder(w).Encode([]Message{{Role: "user", Content: "déjà là"}})
		default:
			var req ChatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(ChatResponse{Reply: "suite", ConversationID: req.ConversationID})
		}
	}))

	if err := binder.Bind(context.Background(), 9); err != nil {
		t.Fatalf("Bind() failed: %v", err)
	}
	if _, err := binder.Send(context.Background(), Outgoing{Text: "continue"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if got := binder.ConversationID(); got != 9 {
		t.Errorf("ConversationID() = %d, want 9", got)
	}
	if got := len(binder.Messages()); got != 3 {
		t.Errorf("Messages() = %d entries, want 3", got)
	}
}

func TestBinder_SendRecordsUsedDocsMeta(t *testing.T) {
	binder, meta := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Reply:          "d'après vos documents...",
			ConversationID: 11,
			UsedDocs:       []string{"rapport.pdf"},
		})
	}))

	if _, err := binder.Send(context.Background(), Outgoing{Text: "résume"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	msgs := binder.Messages()
	if !reflect.DeepEqual(msgs[1].UsedDocs, []string{"rapport.pdf"}) {
		t.Errorf("assistant UsedDocs = %v, want [rapport.pdf]", msgs[1].UsedDocs)
	}

	stored := meta.AllMeta(11)[MetaKey("assistant", "d'après vos documents...")]
	if !reflect.DeepEqual(stored.UsedDocs, []string{"rapport.pdf"}) {
		t.Errorf("stored meta = %+v, want rapport.pdf provenance", stored)
	}
}

func TestBinder_SendFailureDegradesToFallback(t *testing.T) {
	binder, _ := newTestBinder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	resp, err := binder.Send(context.Background(), Outgoing{Text: "hello"})
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if resp.Reply != FallbackReply {
		t.Errorf("Reply = %q, want fallback", resp.Reply)
	}
	// The conversation stays pending: nothing to adopt
	if got := binder.ConversationID(); got != 0 {
		t.Errorf("ConversationID() = %d, want 0", got)
	}
	if got := binder.State(); got != StatePending {
		t.Errorf("State() = %v, want pending", got)
	}
}
