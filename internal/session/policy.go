package session

import "fmt"

// Phase is the state of a session.
type Phase int

const (
	Greeting Phase = iota
	AwaitingInput
	Completing
	Responding
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Greeting:
		return "greeting"
	case AwaitingInput:
		return "awaiting_input"
	case Completing:
		return "completing"
	case Responding:
		return "responding"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome is how a turn ended.
type Outcome int

const (
	// OutcomeSkipped: nothing was added to the history (empty input, listen
	// failure, or nothing to regenerate).
	OutcomeSkipped Outcome = iota

	// OutcomeReplied: the assistant answered, possibly with an apology.
	OutcomeReplied

	// OutcomeEnded: the session is over.
	OutcomeEnded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeEnded:
		return "ended"
	default:
		return "skipped"
	}
}

// MarshalText lets outcomes appear by name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// FailurePolicy decides what a failed completion leaves in the history.
type FailurePolicy string

const (
	// Substitute records the apology as the assistant's reply.
	Substitute FailurePolicy = "substitute"

	// Omit speaks the apology but removes the user message, leaving the
	// history as it was before the turn.
	Omit FailurePolicy = "omit"

	// RetryOnce tries the completion a second time, then substitutes.
	RetryOnce FailurePolicy = "retry-once"
)

// ParseFailurePolicy validates a configured policy name. Empty means Substitute.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case "":
		return Substitute, nil
	case Substitute, Omit, RetryOnce:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want substitute, omit or retry-once)", s)
	}
}
