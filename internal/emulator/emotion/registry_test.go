package emotion_test

import (
	"errors"
	"testing"

	"github.com/rabit232/emulator/internal/emulator/emotion"
)

// TestRegistryLoads verifies that the embedded definition table parses and
// every definition satisfies the registry invariants.
func TestRegistryLoads(t *testing.T) {
	reg, err := emotion.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got := reg.Count(); got != 21 {
		t.Errorf("Count = %d, want 21", got)
	}

	for _, id := range reg.IDs() {
		def, err := reg.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", id, err)
		}
		if def.MinIntensity < 0 || def.MaxIntensity > 1 || def.MinIntensity > def.MaxIntensity {
			t.Errorf("%q: bad bounds [%v, %v]", id, def.MinIntensity, def.MaxIntensity)
		}
		if def.DecayWindowSeconds <= 0 {
			t.Errorf("%q: non-positive decay window", id)
		}
		if len(def.Triggers) == 0 {
			t.Errorf("%q: no triggers", id)
		}
	}
}

// TestLookupUnknown verifies the sentinel error and the baseline fallback.
func TestLookupUnknown(t *testing.T) {
	reg, err := emotion.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := reg.Lookup(emotion.ID("rage")); !errors.Is(err, emotion.ErrUnknownEmotion) {
		t.Errorf("Lookup(unknown) error = %v, want ErrUnknownEmotion", err)
	}

	def := reg.LookupOrBaseline(emotion.ID("rage"))
	if def.ID != emotion.BaselineID {
		t.Errorf("LookupOrBaseline(unknown) = %q, want %q", def.ID, emotion.BaselineID)
	}
}

// TestDefinitionClamp verifies bound clamping on a definition.
func TestDefinitionClamp(t *testing.T) {
	reg, err := emotion.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	def, err := reg.Lookup(emotion.Contentment)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if got := def.Clamp(5.0); got != def.MaxIntensity {
		t.Errorf("Clamp(5.0) = %v, want %v", got, def.MaxIntensity)
	}
	if got := def.Clamp(-1); got != def.MinIntensity {
		t.Errorf("Clamp(-1) = %v, want %v", got, def.MinIntensity)
	}
	if got := def.Clamp(0.5); got != 0.5 {
		t.Errorf("Clamp(0.5) = %v, want 0.5", got)
	}
}
