package memory_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/rabit232/emulator/internal/emulator/memory"
)

// TestWindowBounded verifies only the most recent lines survive.
func TestWindowBounded(t *testing.T) {
	tr := memory.NewTracker(4)

	for i := 0; i < 10; i++ {
		tr.AddUser("!room:example.org", fmt.Sprintf("message %d", i))
	}

	got := tr.Context("!room:example.org")
	want := []string{"User: message 6", "User: message 7", "User: message 8", "User: message 9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Context = %v, want %v", got, want)
	}
}

// TestRoomsIsolated verifies per-room windows do not bleed into each other.
func TestRoomsIsolated(t *testing.T) {
	tr := memory.NewTracker(0)

	tr.AddUser("!a:example.org", "hello from a")
	tr.AddBot("!b:example.org", "hello from b")

	if got := tr.Context("!a:example.org"); len(got) != 1 || got[0] != "User: hello from a" {
		t.Errorf("room a context = %v", got)
	}
	if got := tr.Context("!b:example.org"); len(got) != 1 || got[0] != "Emulator: hello from b" {
		t.Errorf("room b context = %v", got)
	}
	if got := tr.Rooms(); got != 2 {
		t.Errorf("Rooms = %d, want 2", got)
	}
}

// TestReset verifies !reset semantics: the room's window clears, others keep
// theirs.
func TestReset(t *testing.T) {
	tr := memory.NewTracker(0)

	tr.AddUser("!a:example.org", "hi")
	tr.AddUser("!b:example.org", "hi")
	tr.Reset("!a:example.org")

	if got := tr.Context("!a:example.org"); len(got) != 0 {
		t.Errorf("context after reset = %v, want empty", got)
	}
	if got := tr.Context("!b:example.org"); len(got) != 1 {
		t.Errorf("other room context = %v, want 1 line", got)
	}
}

// TestContextText verifies the joined prompt form.
func TestContextText(t *testing.T) {
	tr := memory.NewTracker(0)
	tr.AddUser("!a:example.org", "what is go")
	tr.AddBot("!a:example.org", "a language")

	want := "User: what is go\nEmulator: a language"
	if got := tr.ContextText("!a:example.org"); got != want {
		t.Errorf("ContextText = %q, want %q", got, want)
	}
}
