package schemas

// IdentifySuggestion is one ranked result of the identification endpoint.
type IdentifySuggestion struct {
	Name       string `json:"name"`
	Species    string `json:"species"`
	Confidence int    `json:"confidence"`
}
