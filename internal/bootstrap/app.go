package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"pecha-studio/internal/config"
	"pecha-studio/internal/diagnostics"
	"pecha-studio/internal/domain"
	"pecha-studio/internal/pipeline"
	"pecha-studio/internal/run"
	"pecha-studio/internal/selection"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var pageDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Page images",
		Pattern:     "*.png;*.jpg;*.jpeg;*.webp",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the run tracker, the Gemini pipeline, selection
// handling, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Tracker     *run.Tracker
	Pipeline    pipelineDriver
	Selections  *selection.Coordinator
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	configDir   string

	mu         sync.Mutex
	events     *run.Bus
	runtimeCtx context.Context
}

// pipelineDriver isolates the transcription pipeline behind an interface.
type pipelineDriver interface {
	StartFromImages(ctx context.Context, ids []string) error
	StartFromText(ctx context.Context, text string) error
	Retranslate(ctx context.Context, text string, quality *int) error
	EnterEdit() (domain.PipelineRun, error)
	CommitEdit(ctx context.Context, text string, quality *int) error
	Reset()
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	configDir := filepath.Join(homeDir, ".pecha-studio")

	store := config.NewJSONStore(filepath.Join(configDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker(configDir, catalogModelIDs())
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Tracker:     run.NewTracker(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		configDir:   configDir,
		events:      run.NewBus(1000),
	}

	analyzer := &settingsAnalyzer{app: app}
	app.Pipeline = pipeline.New(app.Tracker, analyzer, app.currentSettings, app.publishEvent, slog.Default())
	app.Selections = selection.NewCoordinator(analyzer, app.publishSelection)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Pecha Studio",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns environment checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	return a.refreshDiagnosticsFromSettings(settings), nil
}

// refreshDiagnosticsFromSettings caches settings and the report they produce.
func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// PickPageImages opens a native file dialog for selecting page scans.
func (a *App) PickPageImages() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select pecha page images",
		Filters: pageDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed != "" {
			selected = append(selected, trimmed)
		}
	}
	return selected, nil
}

// currentSettings re-reads the store so an API key saved in the settings
// panel applies to the next request without a restart.
func (a *App) currentSettings() domain.Settings {
	settings, err := a.Store.Load()
	if err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.Settings
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return settings
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event run.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "pipeline:event", published)
	}
}

// publishSelection marks the bus and pushes the full selection state.
func (a *App) publishSelection() {
	published := a.events.Publish(run.Event{Type: run.EventTypeSelection})

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "pipeline:event", published)
		wailsruntime.EventsEmit(ctx, "selection:event", a.Selections.Snapshot())
	}
}

// backgroundContext prefers the runtime context so requests stop when the
// window closes.
func (a *App) backgroundContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx != nil {
		return a.runtimeCtx
	}
	return context.Background()
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
