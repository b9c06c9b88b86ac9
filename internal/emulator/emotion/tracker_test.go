package emotion

import (
	"math"
	"testing"
	"time"
)

// newTestTracker builds a registry-backed tracker for tests.
func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewTracker(reg)
}

// TestDecayMonotonic verifies that repeated decay passes with increasing now
// produce a non-increasing intensity sequence for an unreinforced emotion.
func TestDecayMonotonic(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	tr.recordAt(Joy, 1.0, "great news", base)

	prev := 1.0
	for _, elapsed := range []time.Duration{
		10 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
	} {
		snap := tr.snapshotAt(base.Add(elapsed))
		got, ok := intensityOf(snap, Joy)
		if !ok {
			t.Fatalf("joy pruned too early at elapsed=%v", elapsed)
		}
		if got > prev {
			t.Errorf("intensity increased at elapsed=%v: %v > %v", elapsed, got, prev)
		}
		prev = got
	}
}

// TestDecayRemovalThreshold verifies that an entry is removed exactly once
// elapsed reaches w × (1 − 0.1/i), within floating tolerance.
func TestDecayRemovalThreshold(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	const intensity = 1.0
	tr.recordAt(Joy, intensity, "anchor", base)

	def, err := tr.registry.Lookup(Joy)
	if err != nil {
		t.Fatalf("Lookup(Joy): %v", err)
	}
	w := def.DecayWindow().Seconds()
	threshold := w * (1 - pruneFloor/intensity) // 540s for w=600s, i=1.0

	justBefore := base.Add(time.Duration((threshold - 1) * float64(time.Second)))
	snap := tr.snapshotAt(justBefore)
	if got, ok := intensityOf(snap, Joy); !ok {
		t.Fatalf("joy removed before threshold")
	} else if math.Abs(got-pruneFloor) > 0.01 {
		t.Errorf("intensity just before threshold = %v, want ≈ %v", got, pruneFloor)
	}

	justAfter := base.Add(time.Duration((threshold + 1) * float64(time.Second)))
	if _, ok := intensityOf(tr.snapshotAt(justAfter), Joy); ok {
		t.Errorf("joy still active past removal threshold")
	}
}

// TestReseedAfterFullDecay verifies the non-empty invariant: when every entry
// decays away, the baseline is reseeded at BaselineIntensity.
func TestReseedAfterFullDecay(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	tr.recordAt(Excitement, 1.0, "launch day", base)

	// Three hours later even the widest anchor window (2 × 1800s) is stale.
	snap := tr.snapshotAt(base.Add(3 * time.Hour))
	if len(snap.Active) != 1 {
		t.Fatalf("active set after full decay = %v, want single baseline entry", snap.Active)
	}
	if snap.Active[0].Emotion != BaselineID {
		t.Errorf("reseeded emotion = %q, want %q", snap.Active[0].Emotion, BaselineID)
	}
	if snap.Active[0].Intensity != BaselineIntensity {
		t.Errorf("reseeded intensity = %v, want %v", snap.Active[0].Intensity, BaselineIntensity)
	}
	if snap.Dominant != BaselineID {
		t.Errorf("dominant after reseed = %q, want %q", snap.Dominant, BaselineID)
	}
}

// TestDominantTieBreak verifies that equal intensities resolve to the entry
// inserted first. Joy and enthusiasm share a decay window, so both decay
// identically and the tie survives the decay pass.
func TestDominantTieBreak(t *testing.T) {
	base := time.Now()

	tr := newTestTracker(t)
	tr.recordAt(Joy, 0.8, "a", base)
	tr.recordAt(Enthusiasm, 0.8, "b", base)
	if got := tr.snapshotAt(base).Dominant; got != Joy {
		t.Errorf("dominant = %q, want %q (inserted first)", got, Joy)
	}

	tr = newTestTracker(t)
	tr.recordAt(Enthusiasm, 0.8, "a", base)
	tr.recordAt(Joy, 0.8, "b", base)
	if got := tr.snapshotAt(base).Dominant; got != Enthusiasm {
		t.Errorf("dominant = %q, want %q (inserted first)", got, Enthusiasm)
	}
}

// TestRecordClampsToBounds verifies that out-of-range intensities are clamped
// to the emotion's declared bounds, never stored raw.
func TestRecordClampsToBounds(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	tr.recordAt(Joy, 5.0, "over the top", base)
	snap := tr.snapshotAt(base)
	if got, _ := intensityOf(snap, Joy); got != 1.0 {
		t.Errorf("joy intensity = %v, want clamped 1.0", got)
	}

	tr.recordAt(Contentment, 0.01, "barely", base)
	snap = tr.snapshotAt(base)
	if got, _ := intensityOf(snap, Contentment); got != 0.2 {
		t.Errorf("contentment intensity = %v, want clamped to lower bound 0.2", got)
	}
}

// TestRecordUpsertsInPlace verifies that re-recording an emotion replaces its
// intensity without duplicating the entry or moving it in insertion order.
func TestRecordUpsertsInPlace(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	tr.recordAt(Joy, 0.5, "first", base)
	tr.recordAt(Focus, 0.6, "second", base)
	tr.recordAt(Joy, 0.9, "again", base)

	snap := tr.snapshotAt(base)
	var joyCount int
	for _, e := range snap.Active {
		if e.Emotion == Joy {
			joyCount++
		}
	}
	if joyCount != 1 {
		t.Fatalf("joy entries = %d, want 1", joyCount)
	}
	if got, _ := intensityOf(snap, Joy); got != 0.9 {
		t.Errorf("joy intensity = %v, want replaced 0.9", got)
	}
	// Baseline was seeded first, so joy must still sit at position 1.
	if snap.Active[1].Emotion != Joy {
		t.Errorf("active order = %v, want joy at index 1", snap.Active)
	}
}

// TestRecordUnknownFallsBackToBaseline verifies that an id outside the
// registry is recorded as the baseline emotion rather than rejected.
func TestRecordUnknownFallsBackToBaseline(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	tr.recordAt(ID("rage"), 0.9, "not in the set", base)

	snap := tr.snapshotAt(base)
	if len(snap.Active) != 1 || snap.Active[0].Emotion != BaselineID {
		t.Fatalf("active set = %v, want only the baseline", snap.Active)
	}
	// 0.9 clamps to contentment's upper bound.
	if snap.Active[0].Intensity != 0.8 {
		t.Errorf("intensity = %v, want 0.8", snap.Active[0].Intensity)
	}
}

// TestSnapshotHistoryTail verifies that a snapshot carries at most the five
// most recent history records, oldest first.
func TestSnapshotHistoryTail(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	ids := []ID{Joy, Focus, Wonder, Insight, Empathy, Patience, Wisdom}
	for i, id := range ids {
		tr.recordAt(id, 0.7, string(id), base.Add(time.Duration(i)*time.Second))
	}

	snap := tr.snapshotAt(base.Add(time.Duration(len(ids)) * time.Second))
	if len(snap.History) != historyTail {
		t.Fatalf("history tail = %d records, want %d", len(snap.History), historyTail)
	}
	if got := snap.History[len(snap.History)-1].Emotion; got != Wisdom {
		t.Errorf("newest history record = %q, want %q", got, Wisdom)
	}
	for i := 1; i < len(snap.History); i++ {
		if snap.History[i].Timestamp.Before(snap.History[i-1].Timestamp) {
			t.Errorf("history records out of order at index %d", i)
		}
	}
}

// TestHistoryBounded verifies that the history log stays capped.
func TestHistoryBounded(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()

	for i := 0; i < historyCap*2; i++ {
		tr.recordAt(Joy, 0.7, "spam", base.Add(time.Duration(i)*time.Millisecond))
	}

	tr.mu.Lock()
	got := len(tr.history)
	tr.mu.Unlock()
	if got > historyCap {
		t.Errorf("history length = %d, want ≤ %d", got, historyCap)
	}
}

// TestModifier verifies the adjective table and its fixed fallback.
func TestModifier(t *testing.T) {
	if got := Modifier(Excitement); got != "thrilling" {
		t.Errorf("Modifier(excitement) = %q, want %q", got, "thrilling")
	}
	if got := Modifier(Curiosity); got != "intriguing" {
		t.Errorf("Modifier(curiosity) = %q, want %q", got, "intriguing")
	}
	if got := Modifier(ID("rage")); got != "fascinating" {
		t.Errorf("Modifier(unknown) = %q, want fallback %q", got, "fascinating")
	}
}

// intensityOf finds the intensity for id in a snapshot's active set.
func intensityOf(snap Snapshot, id ID) (float64, bool) {
	for _, e := range snap.Active {
		if e.Emotion == id {
			return e.Intensity, true
		}
	}
	return 0, false
}
