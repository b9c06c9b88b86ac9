package commands

// guardrail.go holds the escalating replies for unauthorized system command
// attempts. The attempt counts live in the SQLite store so the escalation
// survives restarts; this file only maps a count onto the reply text.

const (
	firstWarning = "I can't do this silly thing! Only authorized users can " +
		"execute system commands."

	secondWarning = "Action terminated xd exe! You've tried again. Would you " +
		"like to enable terminator mode? (Just kidding!)"

	finalWarning = "TERMINATOR MODE ACTIVATED! Just kidding! I'm still the " +
		"same sophisticated Emulator with emotional intelligence. Perhaps we " +
		"could discuss something more interesting?"
)

// warningFor returns the reply for the sender's Nth denied attempt. The
// third warning repeats for every attempt after it.
func warningFor(attempts int) string {
	switch {
	case attempts <= 1:
		return firstWarning
	case attempts == 2:
		return secondWarning
	default:
		return finalWarning
	}
}
