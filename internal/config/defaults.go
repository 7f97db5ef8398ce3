package config

import (
	"os"

	"pecha-studio/internal/domain"
)

// DefaultModel is the model used until the user picks another one.
const DefaultModel = "gemini-2.5-pro"

const (
	defaultMaxConcurrent     = 3
	defaultRequestsPerMinute = 12
	defaultTargetLanguage    = "English"
)

// DefaultSettings returns baseline configuration for first launch. An API
// key already exported in the environment becomes the starting value so a
// fresh install can transcribe immediately.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		APIKey:            os.Getenv("GEMINI_API_KEY"),
		Model:             DefaultModel,
		MaxConcurrent:     defaultMaxConcurrent,
		RequestsPerMinute: defaultRequestsPerMinute,
		TargetLanguage:    defaultTargetLanguage,
	}
}
