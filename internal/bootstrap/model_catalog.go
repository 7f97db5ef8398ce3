package bootstrap

import "pecha-studio/internal/domain"

var geminiModelCatalog = []domain.GeminiModelOption{
	{
		ID:             "gemini-2.5-pro",
		Name:           "Gemini 2.5 Pro",
		Description:    "Strongest reading of unclear or cursive script.",
		ContextLabel:   "1M context",
		SupportsBudget: true,
		Default:        true,
	},
	{
		ID:             "gemini-2.5-flash",
		Name:           "Gemini 2.5 Flash",
		Description:    "Fast transcription for clean prints.",
		ContextLabel:   "1M context",
		SupportsBudget: true,
	},
	{
		ID:             "gemini-2.5-flash-lite",
		Name:           "Gemini 2.5 Flash-Lite",
		Description:    "Cheapest option for quick drafts.",
		ContextLabel:   "1M context",
		SupportsBudget: true,
	},
	{
		ID:           "gemini-2.0-flash",
		Name:         "Gemini 2.0 Flash",
		Description:  "Previous generation, no thinking budget control.",
		ContextLabel: "1M context",
	},
}

// GetGeminiModels returns the built-in Gemini model presets.
func (a *App) GetGeminiModels() []domain.GeminiModelOption {
	models := make([]domain.GeminiModelOption, len(geminiModelCatalog))
	copy(models, geminiModelCatalog)
	return models
}

// catalogModelIDs lists the catalog IDs for diagnostics.
func catalogModelIDs() []string {
	ids := make([]string, 0, len(geminiModelCatalog))
	for _, model := range geminiModelCatalog {
		ids = append(ids, model.ID)
	}
	return ids
}
