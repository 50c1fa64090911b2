package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// PendingConversationID is the sentinel bucket for a conversation that has
// no server id yet. At most one pending bucket exists per client.
const PendingConversationID int64 = 0

// MetaCache is the per-conversation side-store for message metadata
// (attachment chips, used-document provenance). The orchestrator does not
// round-trip these, so without this cache a reload would silently drop
// them. Buckets are keyed by conversation id and persisted as one JSON
// value per conversation in a local SQLite table; writes are best-effort.
type MetaCache struct {
	db *sql.DB

	mu      sync.Mutex
	buckets map[int64]map[string]MessageMeta
	loaded  map[int64]bool
}

// OpenMetaCache opens (creating if needed) the meta cache database
func OpenMetaCache(path string) (*MetaCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CacheError{Path: path, Op: "open", Err: err}
	}

	const schema = `CREATE TABLE IF NOT EXISTS conversation_meta (
		conversation_id INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &CacheError{Path: path, Op: "open", Err: err}
	}

	return &MetaCache{
		db:      db,
		buckets: make(map[int64]map[string]MessageMeta),
		loaded:  make(map[int64]bool),
	}, nil
}

// Close releases the underlying database
func (c *MetaCache) Close() error {
	return c.db.Close()
}

// SetMeta shallow-merges partial metadata under key in the bucket for
// convID (ids <= 0 map to the pending bucket) and persists the bucket
func (c *MetaCache) SetMeta(convID int64, key string, partial MessageMeta) {
	convID = normalizeBucketID(convID)

	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.bucketLocked(convID)
	bucket[key] = bucket[key].Merge(partial)
	c.persistLocked(convID)
}

// AllMeta returns the full bucket for convID, loading it from storage on
// first access. The returned map is a copy; mutating it has no effect.
func (c *MetaCache) AllMeta(convID int64) map[string]MessageMeta {
	convID = normalizeBucketID(convID)

	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.bucketLocked(convID)
	out := make(map[string]MessageMeta, len(bucket))
	for k, v := range bucket {
		out[k] = v
	}
	return out
}

// MigratePendingTo moves every entry of the pending bucket into the bucket
// for newID, persists the target and resets the pending bucket. Pending
// values win per present field on key collision. A non-positive id is a
// no-op: there is nothing valid to migrate onto.
func (c *MetaCache) MigratePendingTo(newID int64) {
	if newID <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.bucketLocked(PendingConversationID)
	if len(pending) == 0 {
		return
	}

	migrated := len(pending)
	target := c.bucketLocked(newID)
	for key, meta := range pending {
		target[key] = target[key].Merge(meta)
	}
	c.buckets[PendingConversationID] = make(map[string]MessageMeta)

	c.persistLocked(newID)
	c.persistLocked(PendingConversationID)
	LogDebug("migrated %d meta entries from pending to conversation %d", migrated, newID)
}

// ClearForConversation removes the in-memory and durable bucket for convID
func (c *MetaCache) ClearForConversation(convID int64) {
	convID = normalizeBucketID(convID)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.buckets, convID)
	c.loaded[convID] = true
	c.buckets[convID] = make(map[string]MessageMeta)
	if _, err := c.db.Exec(`DELETE FROM conversation_meta WHERE conversation_id = ?`, convID); err != nil {
		LogWarn("failed to clear meta bucket %d: %v", convID, err)
	}
}

// MergeOnto overlays cached metadata for convID onto fetched messages.
// Keys collide when two messages share role and content; an ordinal suffix
// disambiguates from the second occurrence on.
func (c *MetaCache) MergeOnto(convID int64, messages []Message) {
	metas := c.AllMeta(convID)
	if len(metas) == 0 {
		return
	}

	seen := make(map[string]int)
	for i := range messages {
		base := MetaKey(messages[i].Role, messages[i].Content)
		n := seen[base]
		seen[base] = n + 1

		key := base
		if n > 0 {
			key = ordinalKey(base, n)
		}
		if meta, ok := metas[key]; ok {
			applyMeta(&messages[i], meta)
		}
	}
}

// OrdinalMetaKey returns the collision-safe key for the n-th message with
// the same role and content (n starts at 0)
func OrdinalMetaKey(role, content string, n int) string {
	key := MetaKey(role, content)
	if n <= 0 {
		return key
	}
	return ordinalKey(key, n)
}

func ordinalKey(key string, n int) string {
	return fmt.Sprintf("%s#%d", key, n)
}

func applyMeta(msg *Message, meta MessageMeta) {
	if meta.Attachments != nil {
		msg.Attachments = meta.Attachments
	}
	if meta.UsedDocs != nil {
		msg.UsedDocs = meta.UsedDocs
	}
}

func normalizeBucketID(convID int64) int64 {
	if convID < 0 {
		return PendingConversationID
	}
	return convID
}

// bucketLocked returns the live bucket for convID, loading it once per
// process. Callers must hold c.mu.
func (c *MetaCache) bucketLocked(convID int64) map[string]MessageMeta {
	if !c.loaded[convID] {
		c.buckets[convID] = c.loadBucket(convID)
		c.loaded[convID] = true
	}
	if c.buckets[convID] == nil {
		c.buckets[convID] = make(map[string]MessageMeta)
	}
	return c.buckets[convID]
}

func (c *MetaCache) loadBucket(convID int64) map[string]MessageMeta {
	var data string
	err := c.db.QueryRow(
		`SELECT data FROM conversation_meta WHERE conversation_id = ?`, convID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return make(map[string]MessageMeta)
	}
	if err != nil {
		LogWarn("failed to load meta bucket %d: %v", convID, err)
		return make(map[string]MessageMeta)
	}

	bucket := make(map[string]MessageMeta)
	if err := json.Unmarshal([]byte(data), &bucket); err != nil {
		LogWarn("failed to parse meta bucket %d: %v", convID, err)
		return make(map[string]MessageMeta)
	}
	return bucket
}

// persistLocked writes one bucket back to storage. Failures are logged and
// swallowed: losing a chip on the next reload beats failing the send.
func (c *MetaCache) persistLocked(convID int64) {
	data, err := json.Marshal(c.buckets[convID])
	if err != nil {
		LogWarn("failed to encode meta bucket %d: %v", convID, err)
		return
	}
	_, err = c.db.Exec(
		`INSERT INTO conversation_meta (conversation_id, data) VALUES (?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET data = excluded.data`,
		convID, string(data),
	)
	if err != nil {
		LogWarn("failed to persist meta bucket %d: %v", convID, err)
	}
}
