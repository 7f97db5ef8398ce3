package bootstrap

import (
	"context"

	"pecha-studio/internal/domain"
	"pecha-studio/internal/gemini"
)

// settingsAnalyzer builds a Gemini client per call so settings edits apply
// to the next request immediately.
type settingsAnalyzer struct {
	app *App
}

func (s *settingsAnalyzer) client() (*gemini.Client, domain.Settings) {
	settings := s.app.currentSettings()
	return gemini.New(settings.APIKey, settings.Model), settings
}

// Transcribe reads Tibetan text off one page image.
func (s *settingsAnalyzer) Transcribe(ctx context.Context, image []byte, mime string) (string, error) {
	client, _ := s.client()
	return client.Transcribe(ctx, image, mime)
}

// Format merges per-page transcripts into one continuous text.
func (s *settingsAnalyzer) Format(ctx context.Context, pages []domain.PageImage) (string, error) {
	client, _ := s.client()
	return client.Format(ctx, pages)
}

// Translate renders the canonical text in the configured target language.
func (s *settingsAnalyzer) Translate(ctx context.Context, text string, thinkingBudget *int32) (string, error) {
	client, settings := s.client()
	return client.Translate(ctx, text, settings.TargetLanguage, thinkingBudget)
}

// Explain produces commentary on a selected passage.
func (s *settingsAnalyzer) Explain(ctx context.Context, passage, canonical, translation string) (string, error) {
	client, _ := s.client()
	return client.Explain(ctx, passage, canonical, translation)
}

// Alternates produces alternate renderings of a selected passage.
func (s *settingsAnalyzer) Alternates(ctx context.Context, passage, canonical, translation string) (string, error) {
	client, _ := s.client()
	return client.Alternates(ctx, passage, canonical, translation)
}
