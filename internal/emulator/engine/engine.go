// Package engine is the Emulator's response pipeline: classify the prompt,
// record the emotion, pick a canned response flavoured by the dominant
// emotion, and log the exchange to the knowledge store.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rabit232/emulator/internal/emulator/emotion"
	"github.com/rabit232/emulator/internal/emulator/knowledge"
	"github.com/rabit232/emulator/internal/emulator/persona"
)

// Config carries the engine's collaborators.
type Config struct {
	// Personality names the response personality. Unknown names fall back
	// to the default.
	Personality string
	// Registry is the emotion definition table. Required.
	Registry *emotion.Registry
	// Knowledge is the persistent knowledge store. Required.
	Knowledge *knowledge.Store
	// Rand, when set, replaces the default random source. Tests use this
	// for reproducible template selection.
	Rand *rand.Rand
}

// Analysis is the result of analysing a text without recording it.
type Analysis struct {
	Emotion    emotion.ID
	Intensity  float64
	Keyword    string
	Confidence float64
}

// Stats summarises the running session.
type Stats struct {
	SessionID        string
	StartedAt        time.Time
	Requests         int64
	Dominant         emotion.ID
	ActiveEmotions   int
	KnowledgeEntries int
	Interactions     int
}

// Engine drives prompt handling. All methods are safe for concurrent use.
type Engine struct {
	classifier *emotion.Classifier
	tracker    *emotion.Tracker
	composer   *persona.Composer
	knowledge  *knowledge.Store

	sessionID string
	startedAt time.Time
	requests  atomic.Int64
}

// New wires an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("engine: registry is required")
	}
	if cfg.Knowledge == nil {
		return nil, fmt.Errorf("engine: knowledge store is required")
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	now := time.Now().UTC()
	e := &Engine{
		classifier: emotion.NewClassifier(cfg.Registry),
		tracker:    emotion.NewTracker(cfg.Registry),
		composer:   persona.NewComposer(cfg.Personality, rng),
		knowledge:  cfg.Knowledge,
		sessionID:  fmt.Sprintf("emulator_%s_%s", now.Format("20060102T150405"), uuid.NewString()[:8]),
		startedAt:  now,
	}
	slog.Info("engine: session started",
		"session_id", e.sessionID, "personality", e.composer.Personality())
	return e, nil
}

// SessionID returns the identifier of this engine run.
func (e *Engine) SessionID() string { return e.sessionID }

// Personality returns the active personality name.
func (e *Engine) Personality() string { return e.composer.Personality() }

// PersonalityTraits returns the active personality's traits.
func (e *Engine) PersonalityTraits() persona.Traits { return e.composer.Traits() }

// GetDecision produces the response for a prompt. It classifies the prompt,
// records the classified emotion, composes a response flavoured by the
// dominant emotion's modifier, and logs the exchange. It never fails the
// caller: any internal problem degrades to the fixed fallback response.
func (e *Engine) GetDecision(prompt string) string {
	e.requests.Add(1)

	cls := e.classifier.Classify(prompt)
	e.tracker.Record(cls.Emotion, cls.Intensity, prompt)

	dominant := e.tracker.Dominant()
	response := e.composer.Compose(prompt, emotion.Modifier(dominant))
	if response == "" {
		response = persona.Fallback
	}

	if err := e.knowledge.RecordInteraction(prompt, response, string(cls.Emotion)); err != nil {
		// The response is already composed; a lagging snapshot is not the
		// user's problem.
		slog.Warn("engine: interaction log write failed", "err", err)
	}

	slog.Debug("engine: decision",
		"session_id", e.sessionID,
		"classified", cls.Emotion,
		"dominant", dominant,
		"keyword", cls.Keyword)
	return response
}

// AnalyzeEmotion classifies text and reports a synthetic confidence in
// [0.7, 0.95) without recording anything in the tracker.
func (e *Engine) AnalyzeEmotion(text string) Analysis {
	cls := e.classifier.Classify(text)

	// The composer guards the shared random source; drawing through it keeps
	// concurrent GetDecision and AnalyzeEmotion calls off the same rand.Rand.
	confidence := 0.7 + e.composer.Float64()*0.25

	return Analysis{
		Emotion:    cls.Emotion,
		Intensity:  cls.Intensity,
		Keyword:    cls.Keyword,
		Confidence: confidence,
	}
}

// EmotionSnapshot returns the tracker's comprehensive post-decay state.
func (e *Engine) EmotionSnapshot() emotion.Snapshot {
	return e.tracker.Snapshot()
}

// StoreKnowledge persists a key/value pair in the knowledge store.
func (e *Engine) StoreKnowledge(key string, value any) error {
	return e.knowledge.Put(key, value)
}

// RetrieveKnowledge looks up a stored value.
func (e *Engine) RetrieveKnowledge(key string) (any, bool) {
	return e.knowledge.Get(key)
}

// GenerateCode returns a code skeleton for the task in the given language.
func (e *Engine) GenerateCode(language, task string) string {
	return persona.GenerateCode(language, task)
}

// Capabilities lists what the engine can do, for the ?status surface.
func (e *Engine) Capabilities() []string {
	return []string{
		"emotional state tracking with linear decay",
		"keyword-based emotion classification",
		"personality-driven canned responses",
		"persistent knowledge storage",
		"multi-language code templates",
		"per-room conversation context",
	}
}

// SessionStats summarises the current session for the ?status surface.
func (e *Engine) SessionStats() Stats {
	snap := e.tracker.Snapshot()
	return Stats{
		SessionID:        e.sessionID,
		StartedAt:        e.startedAt,
		Requests:         e.requests.Load(),
		Dominant:         snap.Dominant,
		ActiveEmotions:   len(snap.Active),
		KnowledgeEntries: e.knowledge.KnowledgeCount(),
		Interactions:     e.knowledge.InteractionCount(),
	}
}
