package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// BindState is the binder's position in the conversation lifecycle
type BindState int

const (
	// StateNoConversation means no route id: the welcome view
	StateNoConversation BindState = iota
	// StatePending means a send is in flight for a conversation that has
	// no server id yet
	StatePending
	// StateBound means the view is attached to a server-confirmed id
	StateBound
)

func (s BindState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBound:
		return "bound"
	default:
		return "no-conversation"
	}
}

// Binder maps a conversation id (or its absence) to a loaded message view
// and drives the pending-to-real id transition on first send.
type Binder struct {
	api        *Client
	meta       *MetaCache
	dispatcher *Dispatcher

	mu             sync.Mutex
	state          BindState
	conversationID int64
	messages       []Message
	// generation tags each load; a result arriving after a newer Bind is
	// discarded instead of clobbering the newer view
	generation uint64
	// skipNextLoad guards the route update after a first send: the
	// triggered reload must not re-fetch and clobber just-sent messages
	skipNextLoad bool
}

// NewBinder creates a binder
func NewBinder(api *Client, meta *MetaCache, dispatcher *Dispatcher) *Binder {
	return &Binder{api: api, meta: meta, dispatcher: dispatcher}
}

// State returns the current lifecycle state
func (b *Binder) State() BindState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConversationID returns the bound id, 0 while pending or unbound
func (b *Binder) ConversationID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversationID
}

// Messages returns the current view
func (b *Binder) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Bind attaches the view to a conversation id. id <= 0 enters the
// welcome state. A fetch failure for an existing id yields an empty but
// viewable conversation, never a fatal error; only a rejected credential
// (AuthError) propagates, since the caller must re-login.
func (b *Binder) Bind(ctx context.Context, id int64) error {
	b.mu.Lock()
	if id <= 0 {
		b.state = StateNoConversation
		b.conversationID = 0
		b.messages = nil
		b.generation++
		b.mu.Unlock()
		return nil
	}
	if b.skipNextLoad && id == b.conversationID {
		b.skipNextLoad = false
		b.mu.Unlock()
		LogDebug("skipping reload of conversation %d after first send", id)
		return nil
	}
	b.generation++
	gen := b.generation
	b.mu.Unlock()

	msgs, err := b.api.Messages(ctx, id)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return authErr
		}
		LogWarn("failed to load conversation %s: %v", formatConversationID(id), err)
		msgs = nil
	}
	b.meta.MergeOnto(id, msgs)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.generation {
		LogDebug("discarding stale load for conversation %d", id)
		return nil
	}
	b.state = StateBound
	b.conversationID = id
	b.messages = msgs
	return nil
}

// Send appends the user message locally, dispatches it and appends the
// reply. On the first successful exchange of an unbound conversation the
// server id is adopted: cached meta migrates from the pending bucket and
// the next Bind for that id is skipped.
func (b *Binder) Send(ctx context.Context, out Outgoing) (*ChatResponse, error) {
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil, errors.New("empty message")
	}

	b.mu.Lock()
	out.ConversationID = b.conversationID
	if b.conversationID == 0 {
		b.state = StatePending
	}

	userMsg := Message{
		Role:      "user",
		Content:   text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(out.Attachments) > 0 {
		for _, draft := range out.Attachments {
			userMsg.Attachments = append(userMsg.Attachments, Attachment{
				Name:     draft.Name,
				MimeType: draft.MimeType,
			})
		}
	}
	ordinal := countMessagesLocked(b.messages, userMsg.Role, text)
	b.messages = append(b.messages, userMsg)
	visible := make([]Message, len(b.messages))
	copy(visible, b.messages)
	convID := b.conversationID
	b.mu.Unlock()

	if len(userMsg.Attachments) > 0 {
		b.meta.SetMeta(convID, OrdinalMetaKey(userMsg.Role, text, ordinal), MessageMeta{
			Attachments: userMsg.Attachments,
		})
	}

	resp, ingested := b.dispatcher.Dispatch(ctx, out, visible)

	b.mu.Lock()
	newID := resp.ConversationID
	adopted := false
	if newID > 0 && b.conversationID == 0 {
		b.conversationID = newID
		adopted = true
		b.skipNextLoad = true
	}
	if b.conversationID > 0 {
		b.state = StateBound
	}

	botMsg := Message{
		Role:      "assistant",
		Content:   resp.Reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Citations: resp.Citations,
	}
	usedDocs := resp.UsedDocs
	if usedDocs == nil {
		usedDocs = ingested
	}
	botMsg.UsedDocs = usedDocs
	botOrdinal := countMessagesLocked(b.messages, botMsg.Role, resp.Reply)
	b.messages = append(b.messages, botMsg)
	boundID := b.conversationID
	b.mu.Unlock()

	if adopted {
		b.meta.MigratePendingTo(newID)
		LogDebug("conversation bound to id %d", newID)
	}
	if len(usedDocs) > 0 {
		b.meta.SetMeta(boundID, OrdinalMetaKey(botMsg.Role, resp.Reply, botOrdinal), MessageMeta{
			UsedDocs: usedDocs,
		})
	}

	return resp, nil
}

// countMessagesLocked returns how many visible messages already share the
// role+content key, so meta keys stay unique within a conversation
func countMessagesLocked(messages []Message, role, content string) int {
	key := MetaKey(role, content)
	n := 0
	for _, m := range messages {
		if MetaKey(m.Role, m.Content) == key {
			n++
		}
	}
	return n
}
