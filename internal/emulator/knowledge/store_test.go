package knowledge_test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rabit232/emulator/internal/emulator/knowledge"
)

// newTestStore opens a knowledge store backed by a file in a per-test temp
// directory.
func newTestStore(t *testing.T) (*knowledge.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.json")
	return knowledge.Open(path), path
}

// TestPutGet verifies the basic write-then-read path.
func TestPutGet(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Put("favorite_topic", "recursion"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := s.Get("favorite_topic")
	if !ok {
		t.Fatal("Get: key missing")
	}
	if got != "recursion" {
		t.Errorf("Get = %v, want %q", got, "recursion")
	}

	if _, ok := s.Get("absent"); ok {
		t.Error("Get(absent) reported a value")
	}
}

// TestPutOverwrites verifies last-write-wins semantics.
func TestPutOverwrites(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Put("k", "first"); err != nil {
		t.Fatalf("Put(1): %v", err)
	}
	if err := s.Put("k", "second"); err != nil {
		t.Fatalf("Put(2): %v", err)
	}

	got, _ := s.Get("k")
	if got != "second" {
		t.Errorf("Get = %v, want %q", got, "second")
	}
	if s.KnowledgeCount() != 1 {
		t.Errorf("KnowledgeCount = %d, want 1", s.KnowledgeCount())
	}
}

// TestRoundTrip verifies that a value survives a simulated process restart:
// write, reopen from the persisted file, read back equal.
func TestRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	want := []any{1.0, 2.0, 3.0}
	if err := s.Put("k", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened := knowledge.Open(path)
	got, ok := reopened.Get("k")
	if !ok {
		t.Fatal("Get after reopen: key missing")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get after reopen = %v, want %v", got, want)
	}
}

// TestInteractionCap verifies that after 105 recorded interactions exactly
// the most recent 100 remain, oldest first.
func TestInteractionCap(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 105; i++ {
		prompt := fmt.Sprintf("prompt-%d", i)
		if err := s.RecordInteraction(prompt, "reply", "contentment"); err != nil {
			t.Fatalf("RecordInteraction(%d): %v", i, err)
		}
	}

	got := s.Interactions()
	if len(got) != 100 {
		t.Fatalf("interactions = %d, want 100", len(got))
	}
	if got[0].Prompt != "prompt-5" {
		t.Errorf("oldest surviving prompt = %q, want %q", got[0].Prompt, "prompt-5")
	}
	if got[99].Prompt != "prompt-104" {
		t.Errorf("newest prompt = %q, want %q", got[99].Prompt, "prompt-104")
	}
}

// TestInteractionsPersist verifies the interaction log round-trips through
// the snapshot file.
func TestInteractionsPersist(t *testing.T) {
	s, path := newTestStore(t)

	if err := s.RecordInteraction("hello", "hi there", "joy"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	reopened := knowledge.Open(path)
	got := reopened.Interactions()
	if len(got) != 1 {
		t.Fatalf("interactions after reopen = %d, want 1", len(got))
	}
	if got[0].Prompt != "hello" || got[0].Emotion != "joy" {
		t.Errorf("interaction after reopen = %+v", got[0])
	}
}

// TestCorruptSnapshotStartsEmpty verifies the recovery contract: a corrupt
// file resets to an empty in-memory store instead of failing.
func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s := knowledge.Open(path)
	if s.KnowledgeCount() != 0 || s.InteractionCount() != 0 {
		t.Errorf("corrupt snapshot produced non-empty store: %d entries, %d interactions",
			s.KnowledgeCount(), s.InteractionCount())
	}

	// The store must still be writable afterwards.
	if err := s.Put("k", "v"); err != nil {
		t.Fatalf("Put after corrupt load: %v", err)
	}
}

// TestWriteFailureKeepsMemory verifies the at-least-once-in-memory contract:
// when the snapshot write fails, the mutating call reports the error but the
// in-memory value is kept.
func TestWriteFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	// Point the snapshot at a directory so every write fails.
	s := knowledge.Open(filepath.Join(dir))

	if err := s.Put("k", "v"); err == nil {
		t.Fatal("Put: expected write error")
	}
	if got, ok := s.Get("k"); !ok || got != "v" {
		t.Errorf("Get after failed write = %v, %v; want value retained", got, ok)
	}
}
