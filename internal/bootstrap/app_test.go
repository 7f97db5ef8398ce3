package bootstrap

import (
	"context"
	"errors"
	"testing"

	"pecha-studio/internal/config"
	"pecha-studio/internal/diagnostics"
	"pecha-studio/internal/domain"
	"pecha-studio/internal/run"
	"pecha-studio/internal/selection"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
	loadErr  error
	saveErr  error
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	if s.loadErr != nil {
		return domain.Settings{}, s.loadErr
	}
	return s.settings, nil
}

// Save records the settings it was asked to persist.
func (s *fakeStore) Save(settings domain.Settings) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, settings)
	s.settings = settings
	return nil
}

// fakeDriver records pipeline binding calls per test.
type fakeDriver struct {
	imageIDs    [][]string
	texts       []string
	qualities   []*int
	resetCalls  int
	startErr    error
	editErr     error
	editState   domain.PipelineRun
	commitTexts []string
}

func (d *fakeDriver) StartFromImages(ctx context.Context, ids []string) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.imageIDs = append(d.imageIDs, ids)
	return nil
}

func (d *fakeDriver) StartFromText(ctx context.Context, text string) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.texts = append(d.texts, text)
	return nil
}

func (d *fakeDriver) Retranslate(ctx context.Context, text string, quality *int) error {
	d.texts = append(d.texts, text)
	d.qualities = append(d.qualities, quality)
	return nil
}

func (d *fakeDriver) EnterEdit() (domain.PipelineRun, error) {
	return d.editState, d.editErr
}

func (d *fakeDriver) CommitEdit(ctx context.Context, text string, quality *int) error {
	d.commitTexts = append(d.commitTexts, text)
	d.qualities = append(d.qualities, quality)
	return nil
}

func (d *fakeDriver) Reset() {
	d.resetCalls++
}

// newTestApp assembles an App around fakes, skipping the Wails runtime.
func newTestApp(t *testing.T, store config.Store, driver pipelineDriver) *App {
	t.Helper()

	app := &App{
		Store:     store,
		Tracker:   run.NewTracker(),
		assets:    nil,
		checker:   diagnostics.NewChecker(t.TempDir(), catalogModelIDs()),
		configDir: t.TempDir(),
		events:    run.NewBus(100),
	}
	app.Pipeline = driver
	app.Selections = selection.NewCoordinator(nil, app.publishSelection)
	return app
}

// TestSaveSettingsNormalizesAndRefreshesDiagnostics checks persistence flow.
func TestSaveSettingsNormalizesAndRefreshesDiagnostics(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(t, store, &fakeDriver{})

	saved, err := app.SaveSettings(domain.Settings{APIKey: "  key-123  ", Model: ""})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if saved.APIKey != "key-123" {
		t.Fatalf("apiKey = %q, want %q", saved.APIKey, "key-123")
	}
	if saved.Model != config.DefaultModel {
		t.Fatalf("model = %q, want %q", saved.Model, config.DefaultModel)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d times, want 1", len(store.saved))
	}

	report := app.GetDiagnostics()
	if report.GeneratedAt.IsZero() {
		t.Fatal("expected diagnostics to be refreshed")
	}
	if report.HasFailures {
		t.Fatalf("unexpected failures: %+v", report.Items)
	}
}

// TestGetSettingsCachesLoadedValues checks the settings cache.
func TestGetSettingsCachesLoadedValues(t *testing.T) {
	store := &fakeStore{settings: domain.Settings{APIKey: "cached-key", Model: "gemini-2.5-flash"}}
	app := newTestApp(t, store, &fakeDriver{})

	settings, err := app.GetSettings()
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.APIKey != "cached-key" {
		t.Fatalf("apiKey = %q, want %q", settings.APIKey, "cached-key")
	}
	if app.Settings.APIKey != "cached-key" {
		t.Fatalf("cached apiKey = %q, want %q", app.Settings.APIKey, "cached-key")
	}
}

// TestCurrentSettingsFallsBackToCache checks behavior on store errors.
func TestCurrentSettingsFallsBackToCache(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("disk gone")}
	app := newTestApp(t, store, &fakeDriver{})
	app.Settings = domain.Settings{APIKey: "resident-key"}

	settings := app.currentSettings()
	if settings.APIKey != "resident-key" {
		t.Fatalf("apiKey = %q, want %q", settings.APIKey, "resident-key")
	}
}

// TestPublishEventStoresHistory checks bus-backed event polling.
func TestPublishEventStoresHistory(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})

	app.publishEvent(run.Event{Type: run.EventTypeLog, Message: "staged 2 pages"})
	app.publishEvent(run.Event{Type: run.EventTypeStatus, Stage: domain.StageTranscribing})

	events := app.PipelineEvents(0)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Seq >= events[1].Seq {
		t.Fatalf("sequences not increasing: %d, %d", events[0].Seq, events[1].Seq)
	}

	events = app.PipelineEvents(events[0].Seq)
	if len(events) != 1 || events[0].Type != run.EventTypeStatus {
		t.Fatalf("tail events = %+v, want one status event", events)
	}
}

// TestRunStateReflectsTracker checks the snapshot binding.
func TestRunStateReflectsTracker(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})

	app.Tracker.BeginTextRun("བཀྲ་ཤིས་བདེ་ལེགས།")

	state := app.RunState()
	if state.Stage != domain.StageTranslating {
		t.Fatalf("stage = %s, want %s", state.Stage, domain.StageTranslating)
	}
	if state.CanonicalText != "བཀྲ་ཤིས་བདེ་ལེགས།" {
		t.Fatalf("canonical = %q", state.CanonicalText)
	}
}

// TestStartFromImagesClearsSelection checks that a new run drops stale spans.
func TestStartFromImagesClearsSelection(t *testing.T) {
	driver := &fakeDriver{}
	app := newTestApp(t, &fakeStore{}, driver)
	app.Selections.Set(&domain.SelectionSpan{Start: 6, Length: 5})

	if _, err := app.StartFromImages([]string{"p1", "p2"}); err != nil {
		t.Fatalf("start from images: %v", err)
	}

	if len(driver.imageIDs) != 1 || len(driver.imageIDs[0]) != 2 {
		t.Fatalf("driver calls = %+v, want one call with two ids", driver.imageIDs)
	}
	if app.SelectionState().Span != nil {
		t.Fatal("expected selection to be cleared")
	}
}

// TestStartFromImagesKeepsSelectionOnError checks failed starts change nothing.
func TestStartFromImagesKeepsSelectionOnError(t *testing.T) {
	driver := &fakeDriver{startErr: run.ErrNoImages}
	app := newTestApp(t, &fakeStore{}, driver)
	app.Selections.Set(&domain.SelectionSpan{Start: 0, Length: 3})

	if _, err := app.StartFromImages(nil); !errors.Is(err, run.ErrNoImages) {
		t.Fatalf("err = %v, want %v", err, run.ErrNoImages)
	}
	if app.SelectionState().Span == nil {
		t.Fatal("expected selection to survive a failed start")
	}
}

// TestRetranslateMapsQualityToPointer checks the slider sentinel.
func TestRetranslateMapsQualityToPointer(t *testing.T) {
	driver := &fakeDriver{}
	app := newTestApp(t, &fakeStore{}, driver)
	app.Tracker.BeginTextRun("ཆོས།")

	if _, err := app.Retranslate(50); err != nil {
		t.Fatalf("retranslate: %v", err)
	}
	if _, err := app.Retranslate(-1); err != nil {
		t.Fatalf("retranslate unset: %v", err)
	}

	if len(driver.qualities) != 2 {
		t.Fatalf("quality calls = %d, want 2", len(driver.qualities))
	}
	if driver.qualities[0] == nil || *driver.qualities[0] != 50 {
		t.Fatalf("quality[0] = %v, want 50", driver.qualities[0])
	}
	if driver.qualities[1] != nil {
		t.Fatalf("quality[1] = %v, want nil", *driver.qualities[1])
	}
	if driver.texts[0] != "ཆོས།" {
		t.Fatalf("text = %q, want canonical text", driver.texts[0])
	}
}

// TestCommitEditPassesTextAndClearsSelection checks the edit commit binding.
func TestCommitEditPassesTextAndClearsSelection(t *testing.T) {
	driver := &fakeDriver{}
	app := newTestApp(t, &fakeStore{}, driver)
	app.Selections.Set(&domain.SelectionSpan{Start: 1, Length: 2})

	if _, err := app.CommitEdit("fixed text", 80); err != nil {
		t.Fatalf("commit edit: %v", err)
	}

	if len(driver.commitTexts) != 1 || driver.commitTexts[0] != "fixed text" {
		t.Fatalf("commit texts = %+v", driver.commitTexts)
	}
	if driver.qualities[0] == nil || *driver.qualities[0] != 80 {
		t.Fatalf("quality = %v, want 80", driver.qualities[0])
	}
	if app.SelectionState().Span != nil {
		t.Fatal("expected selection to be cleared")
	}
}

// TestEnterEditClearsSelectionOnSuccess checks the edit entry binding.
func TestEnterEditClearsSelectionOnSuccess(t *testing.T) {
	driver := &fakeDriver{editState: domain.PipelineRun{Stage: domain.StageSuccess, Editing: true}}
	app := newTestApp(t, &fakeStore{}, driver)
	app.Selections.Set(&domain.SelectionSpan{Start: 2, Length: 4})

	state, err := app.EnterEdit()
	if err != nil {
		t.Fatalf("enter edit: %v", err)
	}
	if !state.Editing {
		t.Fatal("expected editing flag")
	}
	if app.SelectionState().Span != nil {
		t.Fatal("expected selection to be cleared")
	}

	driver.editErr = errors.New("nothing to edit")
	app.Selections.Set(&domain.SelectionSpan{Start: 2, Length: 4})
	if _, err := app.EnterEdit(); err == nil {
		t.Fatal("expected error")
	}
	if app.SelectionState().Span == nil {
		t.Fatal("expected selection to survive a failed edit entry")
	}
}

// TestResetRunClearsSelection checks the reset binding.
func TestResetRunClearsSelection(t *testing.T) {
	driver := &fakeDriver{}
	app := newTestApp(t, &fakeStore{}, driver)
	app.Selections.Set(&domain.SelectionSpan{Start: 6, Length: 5})

	state := app.ResetRun()

	if driver.resetCalls != 1 {
		t.Fatalf("reset calls = %d, want 1", driver.resetCalls)
	}
	if state.Stage != domain.StageIdle {
		t.Fatalf("stage = %s, want %s", state.Stage, domain.StageIdle)
	}
	if app.SelectionState().Span != nil {
		t.Fatal("expected selection to be cleared")
	}
}

// TestGetDocumentRendersCanonicalText checks the block tree binding.
func TestGetDocumentRendersCanonicalText(t *testing.T) {
	app := newTestApp(t, &fakeStore{}, &fakeDriver{})
	app.Tracker.BeginTextRun("# ཁ\n\nབོད་ཡིག")

	doc := app.GetDocument()
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(doc.Blocks))
	}
	if doc.Text != "# ཁ\n\nབོད་ཡིག" {
		t.Fatalf("text = %q", doc.Text)
	}
}
