package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"pecha-studio/internal/config"
	"pecha-studio/internal/domain"
)

// FixDiagnostic applies the built-in remediation for one diagnostic item and
// reruns the checks.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	switch id {
	case "model":
		settings.Model = config.DefaultModel
		if err := a.Store.Save(settings); err != nil {
			return a.refreshDiagnosticsFromSettings(settings), fmt.Errorf("save settings after fix: %w", err)
		}
	case "config_dir":
		if err := os.MkdirAll(a.configDir, 0o755); err != nil {
			return a.refreshDiagnosticsFromSettings(settings), fmt.Errorf("create config directory: %w", err)
		}
	case "api_key":
		return a.refreshDiagnosticsFromSettings(settings), fmt.Errorf("an API key cannot be set automatically; add one in settings")
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	return a.refreshDiagnosticsFromSettings(settings), nil
}
