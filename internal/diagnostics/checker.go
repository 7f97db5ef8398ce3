package diagnostics

import (
	"fmt"
	"os"
	"strings"
	"time"

	"pecha-studio/internal/domain"
)

// Checker validates the settings and filesystem state the pipeline needs
// before a run can start.
type Checker struct {
	configDir   string
	knownModels []string
	mkdirAll    func(string, os.FileMode) error
	createTemp  func(string, string) (*os.File, error)
	remove      func(string) error
}

// NewChecker builds a checker using real OS dependencies. knownModels is
// the catalog of model IDs the app ships with.
func NewChecker(configDir string, knownModels []string) *Checker {
	return &Checker{
		configDir:   configDir,
		knownModels: knownModels,
		mkdirAll:    os.MkdirAll,
		createTemp:  os.CreateTemp,
		remove:      os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkAPIKey(settings.APIKey),
		c.checkModel(settings.Model),
		c.checkConfigDir(),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkAPIKey verifies a Gemini API key is configured.
func (c *Checker) checkAPIKey(apiKey string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api_key",
		Name: "Gemini API key",
	}

	if strings.TrimSpace(apiKey) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "API key is not set."
		item.Hint = "Paste a Google AI Studio key in settings or export GEMINI_API_KEY before launching."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "API key is configured."
	return item
}

// checkModel verifies the selected model against the built-in catalog. An
// unknown ID is a warning, not a failure: newer models may work before the
// catalog learns about them.
func (c *Checker) checkModel(model string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Model selection",
	}

	if strings.TrimSpace(model) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No model is selected."
		item.Hint = "Pick a model in settings."
		item.FixAvailable = true
		return item
	}

	for _, known := range c.knownModels {
		if known == model {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model %s is available.", model)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusWarn
	item.Message = fmt.Sprintf("Model %s is not in the built-in catalog.", model)
	item.Hint = "Keep it if your account has access, or reset to the default model."
	item.FixAvailable = true
	return item
}

// checkConfigDir validates that the config directory exists and is
// writable; settings and imported pages land there.
func (c *Checker) checkConfigDir() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "config_dir",
		Name: "Config directory",
	}

	if strings.TrimSpace(c.configDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Config directory is not set."
		item.Hint = "Start the app with a resolvable home directory."
		return item
	}

	if err := c.mkdirAll(c.configDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create config directory: %s", c.configDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.FixAvailable = true
		return item
	}

	tmpFile, err := c.createTemp(c.configDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Config directory is not writable: %s", c.configDir)
		item.Hint = "Adjust permissions so settings and imports can be saved."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", c.configDir)
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	configDir string,
	knownModels []string,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		configDir:   configDir,
		knownModels: knownModels,
		mkdirAll:    mkdirAll,
		createTemp:  createTemp,
		remove:      remove,
	}
}
