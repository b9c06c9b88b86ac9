// Package memory keeps a short per-room conversation window so responses can
// be grounded in the last few exchanges. The window is in-memory only and
// resets when the process restarts or a room issues !reset.
package memory

import (
	"strings"
	"sync"
)

// DefaultMaxLines is the context window used when the configuration does not
// override it.
const DefaultMaxLines = 10

// Tracker records the most recent conversation lines per room.
type Tracker struct {
	mu       sync.Mutex
	maxLines int
	rooms    map[string][]string
}

// NewTracker returns a Tracker keeping at most maxLines lines per room.
// Non-positive values fall back to DefaultMaxLines.
func NewTracker(maxLines int) *Tracker {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Tracker{
		maxLines: maxLines,
		rooms:    make(map[string][]string),
	}
}

// AddUser appends a user line to the room's window.
func (t *Tracker) AddUser(roomID, text string) {
	t.add(roomID, "User: "+text)
}

// AddBot appends one of the bot's own lines to the room's window.
func (t *Tracker) AddBot(roomID, text string) {
	t.add(roomID, "Emulator: "+text)
}

func (t *Tracker) add(roomID, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := append(t.rooms[roomID], line)
	if len(lines) > t.maxLines {
		lines = lines[len(lines)-t.maxLines:]
	}
	t.rooms[roomID] = lines
}

// Context returns a copy of the room's window, oldest first.
func (t *Tracker) Context(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.rooms[roomID]
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// ContextText returns the room's window joined with newlines, for prompt
// assembly.
func (t *Tracker) ContextText(roomID string) string {
	return strings.Join(t.Context(roomID), "\n")
}

// Reset clears the room's window.
func (t *Tracker) Reset(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, roomID)
}

// Rooms returns the number of rooms with a non-empty window.
func (t *Tracker) Rooms() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
