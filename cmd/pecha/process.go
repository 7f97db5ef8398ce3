package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pecha-studio/internal/config"
	"pecha-studio/internal/domain"
	"pecha-studio/internal/gemini"
	"pecha-studio/internal/imageprep"
	"pecha-studio/internal/pipeline"
	"pecha-studio/internal/run"
)

var processCmd = &cobra.Command{
	Use:   "process <page-image>...",
	Short: "Transcribe page scans into canonical text and a translation",
	Long: `Process reads a pecha in page order: every image is transcribed
concurrently, the transcripts are merged into one canonical Tibetan text,
and the text is translated. Pass --text to skip transcription and translate
existing Tibetan text instead.`,
	Args: cobra.ArbitraryArgs,
	RunE: runProcess,
}

var (
	inputText     string
	apiKey        string
	model         string
	language      string
	quality       int
	maxConcurrent int
	rateLimit     int
	outputPath    string
)

func init() {
	defaults := config.DefaultSettings()

	processCmd.Flags().StringVar(&inputText, "text", "", "translate this Tibetan text instead of page images")
	processCmd.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key (default: settings file or GEMINI_API_KEY)")
	processCmd.Flags().StringVarP(&model, "model", "m", "", "Gemini model id (default: "+defaults.Model+")")
	processCmd.Flags().StringVarP(&language, "language", "l", "", "target language (default: "+defaults.TargetLanguage+")")
	processCmd.Flags().IntVar(&quality, "quality", -1, "translation quality 0-100; runs a second translation pass with a thinking budget")
	processCmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "j", 0, "max concurrent page transcriptions (default from settings)")
	processCmd.Flags().IntVar(&rateLimit, "rate-limit", -1, "API requests per minute, 0 disables throttling (default from settings)")
	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write canonical text and translation to this file")

	rootCmd.AddCommand(processCmd)
}

// cliAnalyzer serves the pipeline from one long-lived Gemini client.
type cliAnalyzer struct {
	client   *gemini.Client
	language string
}

func (a *cliAnalyzer) Transcribe(ctx context.Context, image []byte, mime string) (string, error) {
	return a.client.Transcribe(ctx, image, mime)
}

func (a *cliAnalyzer) Format(ctx context.Context, pages []domain.PageImage) (string, error) {
	return a.client.Format(ctx, pages)
}

func (a *cliAnalyzer) Translate(ctx context.Context, text string, thinkingBudget *int32) (string, error) {
	return a.client.Translate(ctx, text, a.language, thinkingBudget)
}

func runProcess(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(inputText)
	if len(args) == 0 && text == "" {
		return fmt.Errorf("pass page images or --text")
	}
	if len(args) > 0 && text != "" {
		return fmt.Errorf("page images and --text are mutually exclusive")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	// Cancellation flows through the context; workers check it between pages.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := run.NewTracker()
	analyzer := &cliAnalyzer{
		client:   gemini.New(settings.APIKey, settings.Model),
		language: settings.TargetLanguage,
	}
	orchestrator := pipeline.New(tracker, analyzer, func() domain.Settings { return settings }, logEvent, slog.Default())

	if len(args) > 0 {
		if err := stagePages(tracker, args); err != nil {
			return err
		}
		if err := orchestrator.StartFromImages(ctx, nil); err != nil {
			return err
		}
	} else {
		if err := orchestrator.StartFromText(ctx, text); err != nil {
			return err
		}
	}

	state, err := waitForOutcome(ctx, tracker)
	if err != nil {
		return err
	}

	if quality >= 0 {
		if err := orchestrator.Retranslate(ctx, state.CanonicalText, &quality); err != nil {
			return err
		}
		state, err = waitForOutcome(ctx, tracker)
		if err != nil {
			return err
		}
	}

	return writeResult(state)
}

// loadSettings merges the settings file with command-line overrides.
func loadSettings() (domain.Settings, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".pecha-studio", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if trimmed := strings.TrimSpace(apiKey); trimmed != "" {
		settings.APIKey = trimmed
	}
	if trimmed := strings.TrimSpace(model); trimmed != "" {
		settings.Model = trimmed
	}
	if trimmed := strings.TrimSpace(language); trimmed != "" {
		settings.TargetLanguage = trimmed
	}
	if maxConcurrent > 0 {
		settings.MaxConcurrent = maxConcurrent
	}
	if rateLimit >= 0 {
		settings.RequestsPerMinute = rateLimit
	}
	settings = config.Normalize(settings)

	if settings.APIKey == "" {
		return domain.Settings{}, fmt.Errorf("no Gemini API key: pass --api-key or set GEMINI_API_KEY")
	}
	return settings, nil
}

// stagePages prepares the given image files in argument order.
func stagePages(tracker *run.Tracker, paths []string) error {
	for _, path := range paths {
		page, err := imageprep.Prepare(path)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", filepath.Base(path), err)
		}
		tracker.StagePage(page)
	}
	slog.Info("staged pages", "count", len(paths))
	return nil
}

// waitForOutcome polls the tracker until the run settles or the context ends.
func waitForOutcome(ctx context.Context, tracker *run.Tracker) (domain.PipelineRun, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		state := tracker.Snapshot()
		switch state.Stage {
		case domain.StageSuccess:
			return state, nil
		case domain.StageError:
			return state, fmt.Errorf("%s", state.ErrorMessage)
		}

		select {
		case <-ctx.Done():
			return tracker.Snapshot(), ctx.Err()
		case <-ticker.C:
		}
	}
}

// logEvent maps pipeline events onto the structured log.
func logEvent(event run.Event) {
	switch event.Type {
	case run.EventTypeStatus:
		slog.Info("stage", "stage", string(event.Stage))
	case run.EventTypePage:
		if event.PageStatus == domain.PageStatusFailed {
			slog.Warn("page failed", "page", event.PageID, "error", event.Message)
		} else {
			slog.Debug("page done", "page", event.PageID)
		}
	case run.EventTypeError:
		slog.Error(event.Message)
	case run.EventTypeResult:
		slog.Info(event.Message)
	default:
		slog.Debug(event.Message)
	}
}

// writeResult prints or saves the canonical text and its translation.
func writeResult(state domain.PipelineRun) error {
	var out strings.Builder
	out.WriteString(state.CanonicalText)
	out.WriteString("\n\n---\n\n")
	out.WriteString(state.Translation)
	out.WriteString("\n")

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(out.String()), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		slog.Info("wrote result", "path", outputPath)
		return nil
	}

	fmt.Print(out.String())
	return nil
}
