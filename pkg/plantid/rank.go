package plantid

import (
	"math"

	"plantcareapi/pkg/config"
	"plantcareapi/pkg/schemas"
)

const UnknownName = "Unbekannt"

// Rank keeps the first IDENTIFY_MAX_SUGGESTIONS suggestions in classifier
// order, converts probabilities to whole percent and drops anything below
// IDENTIFY_MIN_CONFIDENCE. The result is never nil.
func Rank(suggestions []Suggestion) []schemas.IdentifySuggestion {

	if len(suggestions) > config.IDENTIFY_MAX_SUGGESTIONS {
		suggestions = suggestions[:config.IDENTIFY_MAX_SUGGESTIONS]
	}

	ranked := make([]schemas.IdentifySuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		confidence := int(math.Round(s.Probability * 100))
		if confidence < config.IDENTIFY_MIN_CONFIDENCE {
			continue
		}

		name := s.Name
		if len(s.Details.CommonNames) > 0 && s.Details.CommonNames[0] != "" {
			name = s.Details.CommonNames[0]
		}
		if name == "" {
			name = UnknownName
		}

		ranked = append(ranked, schemas.IdentifySuggestion{
			Name:       name,
			Species:    s.Name,
			Confidence: confidence,
		})
	}

	return ranked

}
