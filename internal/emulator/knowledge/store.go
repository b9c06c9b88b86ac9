// Package knowledge provides the Emulator's key/value knowledge base and
// interaction history, persisted as a single JSON snapshot file.
//
// Persistence is deliberately best-effort: in-memory state always updates,
// and a failed disk write is reported to the caller without rolling memory
// back. The file and memory may therefore diverge until the next successful
// write.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rabit232/emulator/common/retry"
)

// maxInteractions caps the interaction log; the oldest entries are evicted
// first once the cap is exceeded.
const maxInteractions = 100

// Entry is one stored knowledge value with its write metadata.
type Entry struct {
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// Interaction is one prompt/response exchange with the emotion it classified
// into.
type Interaction struct {
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Emotion   string `json:"emotion"`
	Timestamp string `json:"timestamp"`
}

// document is the on-disk snapshot shape.
type document struct {
	Knowledge    map[string]Entry `json:"knowledge"`
	Interactions []Interaction    `json:"interactions"`
	LastUpdated  string           `json:"last_updated"`
}

// writeRetry bounds the best-effort persistence retries. Failures past the
// last attempt surface as the mutating call's error.
var writeRetry = retry.Config{
	MaxAttempts:  2,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     200 * time.Millisecond,
}

// Store is the knowledge base. It is safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	path         string
	knowledge    map[string]Entry
	interactions []Interaction
}

// Open loads the snapshot at path. A missing file starts an empty store; an
// unreadable or corrupt file is logged and likewise starts empty. Loading
// never fails the caller.
func Open(path string) *Store {
	s := &Store{
		path:      path,
		knowledge: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("knowledge: snapshot unreadable, starting empty", "path", path, "err", err)
		}
		return s
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("knowledge: snapshot corrupt, starting empty", "path", path, "err", err)
		return s
	}

	if doc.Knowledge != nil {
		s.knowledge = doc.Knowledge
	}
	s.interactions = doc.Interactions
	slog.Info("knowledge: snapshot loaded",
		"path", path, "entries", len(s.knowledge), "interactions", len(s.interactions))
	return s
}

// Put stores value under key with overwrite semantics and rewrites the
// snapshot. The in-memory entry is kept even when the write fails; the error
// tells the caller persistence is lagging.
func (s *Store) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.knowledge[key] = Entry{
		Value:     value,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      valueType(value),
	}
	return s.persistLocked()
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.knowledge[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// RecordInteraction appends one exchange to the interaction log, evicting the
// oldest entries past the cap, and rewrites the snapshot.
func (s *Store) RecordInteraction(prompt, response, emotionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interactions = append(s.interactions, Interaction{
		Prompt:    prompt,
		Response:  response,
		Emotion:   emotionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if len(s.interactions) > maxInteractions {
		excess := len(s.interactions) - maxInteractions
		s.interactions = append(s.interactions[:0], s.interactions[excess:]...)
	}
	return s.persistLocked()
}

// Interactions returns a copy of the interaction log, oldest first.
func (s *Store) Interactions() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Interaction, len(s.interactions))
	copy(out, s.interactions)
	return out
}

// KnowledgeCount returns the number of stored knowledge entries.
func (s *Store) KnowledgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.knowledge)
}

// InteractionCount returns the number of logged interactions.
func (s *Store) InteractionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interactions)
}

// persistLocked rewrites the whole snapshot. Must be called with mu held.
func (s *Store) persistLocked() error {
	doc := document{
		Knowledge:    s.knowledge,
		Interactions: s.interactions,
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge: marshal snapshot: %w", err)
	}

	err = retry.Do(context.Background(), writeRetry, func() error {
		return os.WriteFile(s.path, data, 0o600)
	})
	if err != nil {
		slog.Warn("knowledge: snapshot write failed", "path", s.path, "err", err)
		return fmt.Errorf("knowledge: write snapshot: %w", err)
	}
	return nil
}

// valueType tags the stored value's shape, mirroring how the snapshot reads
// back after a JSON round-trip.
func valueType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	default:
		return "object"
	}
}
