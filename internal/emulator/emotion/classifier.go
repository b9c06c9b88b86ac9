package emotion

import "strings"

// Classification is the result of running text through the Classifier.
type Classification struct {
	// Emotion is the winning emotion id. Always a registered id.
	Emotion ID
	// Intensity is the intensity the caller should record for the match.
	Intensity float64
	// Keyword is the trigger substring that matched, or "" when the result
	// came from one of the fallbacks.
	Keyword string
}

// Fallback intensities for texts that match no trigger rule.
const (
	// questionIntensity is recorded when an unmatched text contains a
	// question mark and is classified as curiosity.
	questionIntensity = 0.6
	// baselineIntensity is recorded for texts that match nothing at all.
	baselineIntensity = 0.4
)

// rule is one entry of the ordered trigger table: a keyword set, the emotion
// a match classifies into, and the intensity recorded on a match.
type rule struct {
	keywords  []string
	emotion   ID
	intensity float64
}

// defaultRules is evaluated top to bottom; the first rule with any keyword
// present as a substring of the lower-cased text wins. Order is load-bearing:
// earlier rules shadow later ones on overlapping keywords, so "I'm excited and
// curious" classifies as excitement, not curiosity.
var defaultRules = []rule{
	{[]string{"excited", "amazing", "wonderful", "thrilled", "awesome"}, Excitement, 0.85},
	{[]string{"confused", "unclear", "help", "worried", "broken"}, Concern, 0.7},
	{[]string{"happy", "glad", "delighted", "fantastic", "love this"}, Joy, 0.8},
	{[]string{"interesting", "fascinating", "curious", "intrigued"}, Curiosity, 0.75},
	{[]string{"thanks", "thank you", "perfect", "that worked", "solved"}, Satisfaction, 0.7},
	{[]string{"calm", "peaceful", "relaxed", "no rush"}, Serenity, 0.6},
	{[]string{"determined", "let's fix", "won't give up"}, Determination, 0.75},
}

// Classifier maps free text to an emotion id using first-match keyword rules.
// It performs no learning and no tokenisation beyond lower-casing; matching is
// plain substring containment.
type Classifier struct {
	registry *Registry
	rules    []rule
}

// NewClassifier returns a Classifier over the default trigger table.
func NewClassifier(registry *Registry) *Classifier {
	return &Classifier{registry: registry, rules: defaultRules}
}

// Classify returns the first-matching emotion for text.
//
// When no rule matches, a text containing a question mark classifies as
// curiosity, and anything else as the baseline (contentment). These fallbacks
// are deliberate heuristics and must stay stable: downstream response
// selection keys off them.
func (c *Classifier) Classify(text string) Classification {
	lowered := strings.ToLower(text)

	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return Classification{Emotion: r.emotion, Intensity: r.intensity, Keyword: kw}
			}
		}
	}

	if strings.Contains(text, "?") {
		return Classification{Emotion: Curiosity, Intensity: questionIntensity}
	}
	return Classification{Emotion: BaselineID, Intensity: baselineIntensity}
}
