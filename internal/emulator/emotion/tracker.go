package emotion

import (
	"sync"
	"time"
)

const (
	// BaselineIntensity is the intensity the baseline emotion is (re)seeded at.
	BaselineIntensity = 0.5

	// pruneFloor is the intensity below which a decayed entry is removed.
	pruneFloor = 0.1

	// historyCap bounds the history log. The reference design grows without
	// bound; we keep the most recent historyCap records instead.
	historyCap = 256

	// historyTail is how many trailing history records a Snapshot carries.
	historyTail = 5

	// contextSnippetMax truncates stored context snippets.
	contextSnippetMax = 80
)

// ActiveEmotion is one entry of the tracker's active set.
type ActiveEmotion struct {
	Emotion   ID
	Intensity float64
}

// HistoryRecord is one append-only log entry of a recorded emotion.
type HistoryRecord struct {
	Timestamp time.Time
	Emotion   ID
	Intensity float64
	Context   string
}

// Snapshot is the read-only comprehensive-state view of the tracker.
type Snapshot struct {
	// Dominant is the id of the strongest active emotion after decay.
	Dominant ID
	// Active lists the post-decay active set in insertion order.
	Active []ActiveEmotion
	// History holds the most recent records, oldest first, at most historyTail.
	History []HistoryRecord
}

// Tracker holds the current active emotions with their intensities and a
// bounded history log, and answers dominant-emotion queries after applying
// linear decay.
//
// The active set keeps at most one entry per emotion id and preserves
// insertion order; ties on intensity resolve to the earliest-inserted entry.
// All methods are safe for concurrent use; the Matrix layer may deliver
// messages from several rooms at once.
type Tracker struct {
	mu       sync.Mutex
	registry *Registry
	entries  []ActiveEmotion
	history  []HistoryRecord
}

// NewTracker returns a Tracker seeded with the baseline emotion at
// BaselineIntensity.
func NewTracker(registry *Registry) *Tracker {
	t := &Tracker{registry: registry}
	t.seedBaseline(time.Now())
	return t
}

// Record clamps intensity to the emotion's declared bounds, upserts the
// active entry for that emotion (replacing any prior intensity, not
// averaging), and appends a history record at the current wall-clock time.
// An unknown id is recorded as the baseline emotion.
func (t *Tracker) Record(id ID, intensity float64, context string) {
	t.recordAt(id, intensity, context, time.Now())
}

// recordAt is the time-injectable core of Record (for testing).
func (t *Tracker) recordAt(id ID, intensity float64, context string, now time.Time) {
	def := t.registry.LookupOrBaseline(id)
	clamped := def.Clamp(intensity)

	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.indexOf(def.ID); i >= 0 {
		// Upsert in place: position in the set is unchanged so tie-break
		// order stays stable across re-recordings.
		t.entries[i].Intensity = clamped
	} else {
		t.entries = append(t.entries, ActiveEmotion{Emotion: def.ID, Intensity: clamped})
	}
	t.appendHistory(HistoryRecord{
		Timestamp: now,
		Emotion:   def.ID,
		Intensity: clamped,
		Context:   snippet(context),
	})
}

// DecayAndPrune applies linear decay to every active entry as of now and
// removes entries that have faded out. The active set is never empty when
// this returns: if everything decayed away, the baseline is reseeded.
//
// For each entry the most recent history record for that emotion within
// twice its decay window anchors the decay:
//
//	factor = max(0, 1 - elapsed/decayWindow)
//
// Entries with no anchoring record, or whose decayed intensity falls below
// the prune floor, are dropped.
func (t *Tracker) DecayAndPrune(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decayLocked(now)
}

// Dominant decays the active set at the current wall-clock time, then
// returns the id of the entry with the strictly greatest intensity.
// On equal intensities the earliest-inserted entry wins.
func (t *Tracker) Dominant() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dominantLocked(time.Now())
}

// Snapshot decays the active set, then returns the dominant emotion, a copy
// of the active set in insertion order, and the trailing history records.
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshotAt(time.Now())
}

// snapshotAt is the time-injectable core of Snapshot (for testing).
func (t *Tracker) snapshotAt(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	dominant := t.dominantLocked(now)

	active := make([]ActiveEmotion, len(t.entries))
	copy(active, t.entries)

	tail := t.history
	if len(tail) > historyTail {
		tail = tail[len(tail)-historyTail:]
	}
	history := make([]HistoryRecord, len(tail))
	copy(history, tail)

	return Snapshot{Dominant: dominant, Active: active, History: history}
}

// ActiveCount returns the size of the active set without applying decay.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// dominantLocked decays at now and picks the strongest entry. Must be called
// with mu held; the post-decay set is guaranteed non-empty.
func (t *Tracker) dominantLocked(now time.Time) ID {
	t.decayLocked(now)

	best := t.entries[0]
	for _, e := range t.entries[1:] {
		if e.Intensity > best.Intensity {
			best = e
		}
	}
	return best.Emotion
}

// decayLocked implements decay-and-prune. Must be called with mu held.
func (t *Tracker) decayLocked(now time.Time) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		def := t.registry.LookupOrBaseline(e.Emotion)
		window := def.DecayWindow()

		latest, ok := t.latestRecordWithin(e.Emotion, now, 2*window)
		if !ok {
			continue
		}

		elapsed := now.Sub(latest.Timestamp)
		if elapsed < 0 {
			elapsed = 0
		}
		factor := 1 - elapsed.Seconds()/window.Seconds()
		if factor < 0 {
			factor = 0
		}
		// Decay is anchored on the recorded intensity, not the previously
		// decayed value: repeated calls with increasing now yield the same
		// non-increasing sequence a single call at each instant would.
		next := latest.Intensity * factor
		if next < pruneFloor {
			continue
		}
		e.Intensity = next
		kept = append(kept, e)
	}
	t.entries = kept

	if len(t.entries) == 0 {
		t.seedBaseline(now)
	}
}

// latestRecordWithin returns the most recent history record for id no older
// than maxAge relative to now. Scans backwards; the first id match decides,
// since every earlier record is older still.
func (t *Tracker) latestRecordWithin(id ID, now time.Time, maxAge time.Duration) (HistoryRecord, bool) {
	for i := len(t.history) - 1; i >= 0; i-- {
		rec := t.history[i]
		if rec.Emotion != id {
			continue
		}
		if now.Sub(rec.Timestamp) > maxAge {
			return HistoryRecord{}, false
		}
		return rec, true
	}
	return HistoryRecord{}, false
}

// seedBaseline installs the baseline entry and anchors it in history so the
// reseeded emotion decays from the reseed time like any other. Must be called
// with mu held (or before the tracker is shared).
func (t *Tracker) seedBaseline(now time.Time) {
	t.entries = append(t.entries[:0], ActiveEmotion{Emotion: BaselineID, Intensity: BaselineIntensity})
	t.appendHistory(HistoryRecord{
		Timestamp: now,
		Emotion:   BaselineID,
		Intensity: BaselineIntensity,
		Context:   "baseline",
	})
}

// appendHistory appends rec and truncates the log to historyCap records.
// Must be called with mu held.
func (t *Tracker) appendHistory(rec HistoryRecord) {
	t.history = append(t.history, rec)
	if len(t.history) > historyCap {
		excess := len(t.history) - historyCap
		t.history = append(t.history[:0], t.history[excess:]...)
	}
}

// snippet truncates context strings stored in history records.
func snippet(s string) string {
	if len(s) <= contextSnippetMax {
		return s
	}
	return s[:contextSnippetMax]
}

// modifiers maps emotion ids to the short adjective used to flavour canned
// responses. Ids outside the table fall back to "fascinating".
var modifiers = map[ID]string{
	Excitement:   "thrilling",
	Curiosity:    "intriguing",
	Concern:      "important",
	Joy:          "delightful",
	Wonder:       "remarkable",
	Satisfaction: "gratifying",
	Contentment:  "pleasant",
	Serenity:     "calming",
	Insight:      "illuminating",
}

// Modifier returns the response adjective for id, defaulting to "fascinating".
func Modifier(id ID) string {
	if m, ok := modifiers[id]; ok {
		return m
	}
	return "fascinating"
}

// indexOf returns the position of id in the active set, or -1. The set holds
// at most one entry per id and stays small (≤ registry size), so a linear
// scan is fine. Must be called with mu held.
func (t *Tracker) indexOf(id ID) int {
	for i, e := range t.entries {
		if e.Emotion == id {
			return i
		}
	}
	return -1
}
