// Package emotion implements the Emulator's emotional model: a closed
// registry of emotion definitions, a keyword trigger classifier, and a
// decaying emotional-state tracker.
package emotion

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ID identifies an emotion from the closed registry set.
type ID string

// The closed set of emotion identifiers. Definitions for every ID live in
// emotions.yaml; adding an ID here without a YAML entry is a startup error.
const (
	Joy           ID = "joy"
	Curiosity     ID = "curiosity"
	Excitement    ID = "excitement"
	Wonder        ID = "wonder"
	Fascination   ID = "fascination"
	Enthusiasm    ID = "enthusiasm"
	Delight       ID = "delight"
	Satisfaction  ID = "satisfaction"
	Contentment   ID = "contentment"
	Serenity      ID = "serenity"
	Confidence    ID = "confidence"
	Determination ID = "determination"
	Focus         ID = "focus"
	Clarity       ID = "clarity"
	Insight       ID = "insight"
	Empathy       ID = "empathy"
	Compassion    ID = "compassion"
	Understanding ID = "understanding"
	Patience      ID = "patience"
	Wisdom        ID = "wisdom"
	Concern       ID = "concern"
)

// BaselineID is the emotion guaranteed present when nothing else is active.
const BaselineID = Contentment

// ErrUnknownEmotion is returned by Lookup for an ID outside the registry.
// Callers must substitute the baseline definition rather than surface this
// error to the end user.
var ErrUnknownEmotion = errors.New("emotion: unknown emotion id")

//go:embed emotions.yaml
var emotionsYAML []byte

// Definition is the immutable metadata for one emotion. The label sequences
// (Triggers, Expressions, …) are presentation material only; no behaviour
// branches on them beyond truncated-slice selection in status output.
type Definition struct {
	ID                 ID       `yaml:"id"`
	MinIntensity       float64  `yaml:"min_intensity"`
	MaxIntensity       float64  `yaml:"max_intensity"`
	DecayWindowSeconds int      `yaml:"decay_window_seconds"`
	Triggers           []string `yaml:"triggers"`
	Expressions        []string `yaml:"expressions"`
	Behaviors          []string `yaml:"behaviors"`
	RelatedEmotions    []string `yaml:"related_emotions"`
	PhysicalSigns      []string `yaml:"physical_manifestations"`
	CognitiveEffects   []string `yaml:"cognitive_effects"`
	SocialContext      []string `yaml:"social_context"`
}

// DecayWindow returns the decay window as a duration.
func (d *Definition) DecayWindow() time.Duration {
	return time.Duration(d.DecayWindowSeconds) * time.Second
}

// Clamp forces intensity into the definition's declared bounds.
func (d *Definition) Clamp(intensity float64) float64 {
	if intensity < d.MinIntensity {
		return d.MinIntensity
	}
	if intensity > d.MaxIntensity {
		return d.MaxIntensity
	}
	return intensity
}

// Registry is the read-only emotion definition table. It is built once at
// startup and shared by reference with the Tracker and Classifier; there is
// deliberately no package-level singleton and no mutation API.
type Registry struct {
	defs  map[ID]*Definition
	order []ID
}

// NewRegistry parses the embedded definition table and validates every entry.
func NewRegistry() (*Registry, error) {
	var doc struct {
		Emotions []*Definition `yaml:"emotions"`
	}
	if err := yaml.Unmarshal(emotionsYAML, &doc); err != nil {
		return nil, fmt.Errorf("emotion: parse embedded definitions: %w", err)
	}

	r := &Registry{defs: make(map[ID]*Definition, len(doc.Emotions))}
	for _, def := range doc.Emotions {
		if def.ID == "" {
			return nil, errors.New("emotion: definition with empty id")
		}
		if _, dup := r.defs[def.ID]; dup {
			return nil, fmt.Errorf("emotion: duplicate definition for %q", def.ID)
		}
		if def.MinIntensity < 0 || def.MaxIntensity > 1 || def.MinIntensity > def.MaxIntensity {
			return nil, fmt.Errorf("emotion: %q has invalid intensity bounds [%v, %v]",
				def.ID, def.MinIntensity, def.MaxIntensity)
		}
		if def.DecayWindowSeconds <= 0 {
			return nil, fmt.Errorf("emotion: %q has non-positive decay window", def.ID)
		}
		r.defs[def.ID] = def
		r.order = append(r.order, def.ID)
	}

	if _, ok := r.defs[BaselineID]; !ok {
		return nil, fmt.Errorf("emotion: baseline %q missing from definitions", BaselineID)
	}
	return r, nil
}

// Lookup returns the definition for id or ErrUnknownEmotion.
func (r *Registry) Lookup(id ID) (*Definition, error) {
	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEmotion, id)
	}
	return def, nil
}

// LookupOrBaseline returns the definition for id, substituting the baseline
// definition when id is outside the registry. This is the recovery path the
// rest of the system uses; unknown ids never reach the end user.
func (r *Registry) LookupOrBaseline(id ID) *Definition {
	if def, ok := r.defs[id]; ok {
		return def
	}
	return r.defs[BaselineID]
}

// Baseline returns the baseline (contentment) definition.
func (r *Registry) Baseline() *Definition {
	return r.defs[BaselineID]
}

// Count returns the number of registered emotions.
func (r *Registry) Count() int {
	return len(r.defs)
}

// IDs returns the emotion ids in definition order.
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}
