package domain

// GeminiModelOption describes one selectable Gemini model preset.
type GeminiModelOption struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ContextLabel   string `json:"contextLabel,omitempty"`
	SupportsBudget bool   `json:"supportsBudget"`
	Default        bool   `json:"default"`
}
