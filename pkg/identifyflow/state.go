package identifyflow

import "plantcareapi/pkg/schemas"

// State is one of Idle, Compressing, Loading, Results, NoResults or Error.
type State interface {
	isState()
}

type Idle struct{}

type Compressing struct{}

type Loading struct{}

type Results struct {
	Suggestions []schemas.IdentifySuggestion
	// every suggestion is below LOW_CONFIDENCE
	LowConfidence bool
}

type NoResults struct{}

type Error struct {
	Message  string
	CanRetry bool
	// seconds left before Retry is accepted again
	RetryAfter int
}

func (Idle) isState()        {}
func (Compressing) isState() {}
func (Loading) isState()     {}
func (Results) isState()     {}
func (NoResults) isState()   {}
func (Error) isState()       {}

// Name is a short label for logs and the terminal client.
func Name(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Compressing:
		return "compressing"
	case Loading:
		return "loading"
	case Results:
		return "results"
	case NoResults:
		return "no-results"
	case Error:
		return "error"
	}
	return "unknown"
}

type ConfidenceLevel int

const (
	ConfidenceLow ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceHigh
)

func Level(confidence int) ConfidenceLevel {
	switch {
	case confidence >= 70:
		return ConfidenceHigh
	case confidence >= LOW_CONFIDENCE:
		return ConfidenceMedium
	}
	return ConfidenceLow
}
