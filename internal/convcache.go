package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ConvCache keeps a local copy of fetched conversations so history, show
// and export keep working offline. A yaml index lists the conversations;
// each conversation body lives in its own JSON file.
type ConvCache struct {
	dir string
}

// ConvIndexEntry is one conversation in the index
type ConvIndexEntry struct {
	ID           int64  `yaml:"id"`
	Title        string `yaml:"title,omitempty"`
	Date         string `yaml:"date,omitempty"`
	MessageCount int    `yaml:"message_count"`
}

// ConvIndex is the yaml index of cached conversations
type ConvIndex struct {
	Namespace     string           `yaml:"namespace,omitempty"`
	UpdatedAt     time.Time        `yaml:"updated_at"`
	Conversations []ConvIndexEntry `yaml:"conversations"`
}

// NewConvCache creates a cache rooted at dir
func NewConvCache(dir string) *ConvCache {
	return &ConvCache{dir: dir}
}

// EnsureDir creates the cache directory
func (c *ConvCache) EnsureDir() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return &CacheError{Path: c.dir, Op: "open", Err: err}
	}
	return nil
}

func (c *ConvCache) indexPath() string {
	return filepath.Join(c.dir, "conversations.yaml")
}

func (c *ConvCache) conversationPath(id int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("conversation_%d.json", id))
}

// LoadIndex reads the index; a missing index is an empty one
func (c *ConvCache) LoadIndex() (*ConvIndex, error) {
	data, err := os.ReadFile(c.indexPath())
	if os.IsNotExist(err) {
		return &ConvIndex{}, nil
	}
	if err != nil {
		return nil, &CacheError{Path: c.indexPath(), Op: "read", Err: err}
	}
	var index ConvIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, &CacheError{Path: c.indexPath(), Op: "read", Err: err}
	}
	return &index, nil
}

func (c *ConvCache) saveIndex(index *ConvIndex) error {
	index.UpdatedAt = time.Now().UTC()
	sort.Slice(index.Conversations, func(i, j int) bool {
		return index.Conversations[i].ID > index.Conversations[j].ID
	})
	data, err := yaml.Marshal(index)
	if err != nil {
		return &CacheError{Path: c.indexPath(), Op: "write", Err: err}
	}
	if err := os.WriteFile(c.indexPath(), data, 0644); err != nil {
		return &CacheError{Path: c.indexPath(), Op: "write", Err: err}
	}
	return nil
}

// Save stores one conversation body and refreshes its index entry
func (c *ConvCache) Save(conv *Conversation, namespace string) error {
	if conv == nil || conv.ID <= 0 {
		return fmt.Errorf("cannot cache a pending conversation")
	}
	if err := c.EnsureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return &CacheError{Path: c.conversationPath(conv.ID), Op: "write", Err: err}
	}
	if err := os.WriteFile(c.conversationPath(conv.ID), data, 0644); err != nil {
		return &CacheError{Path: c.conversationPath(conv.ID), Op: "write", Err: err}
	}

	index, err := c.LoadIndex()
	if err != nil {
		index = &ConvIndex{}
	}
	index.Namespace = namespace
	entry := ConvIndexEntry{
		ID:           conv.ID,
		Title:        conv.Title,
		Date:         conv.Date,
		MessageCount: len(conv.Messages),
	}
	replaced := false
	for i := range index.Conversations {
		if index.Conversations[i].ID == conv.ID {
			index.Conversations[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index.Conversations = append(index.Conversations, entry)
	}
	return c.saveIndex(index)
}

// Load reads one cached conversation body
func (c *ConvCache) Load(id int64) (*Conversation, error) {
	data, err := os.ReadFile(c.conversationPath(id))
	if err != nil {
		return nil, &CacheError{Path: c.conversationPath(id), Op: "read", Err: err}
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, &CacheError{Path: c.conversationPath(id), Op: "read", Err: err}
	}
	return &conv, nil
}

// LoadAll reads every cached conversation listed in the index, skipping
// bodies that fail to load
func (c *ConvCache) LoadAll() ([]*Conversation, error) {
	index, err := c.LoadIndex()
	if err != nil {
		return nil, err
	}
	out := make([]*Conversation, 0, len(index.Conversations))
	for _, entry := range index.Conversations {
		conv, err := c.Load(entry.ID)
		if err != nil {
			LogWarn("skipping cached conversation %d: %v", entry.ID, err)
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

// Remove drops one conversation from the cache and its index
func (c *ConvCache) Remove(id int64) error {
	if err := os.Remove(c.conversationPath(id)); err != nil && !os.IsNotExist(err) {
		return &CacheError{Path: c.conversationPath(id), Op: "write", Err: err}
	}
	index, err := c.LoadIndex()
	if err != nil {
		return err
	}
	kept := index.Conversations[:0]
	for _, entry := range index.Conversations {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	index.Conversations = kept
	return c.saveIndex(index)
}

// Clear removes the whole cache directory
func (c *ConvCache) Clear() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return &CacheError{Path: c.dir, Op: "write", Err: err}
	}
	return nil
}
