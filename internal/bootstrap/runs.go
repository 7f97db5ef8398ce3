package bootstrap

import (
	"pecha-studio/internal/document"
	"pecha-studio/internal/domain"
	"pecha-studio/internal/run"
)

// StartFromImages kicks off transcription of the staged pages and returns
// the run snapshot the UI should render.
func (a *App) StartFromImages(ids []string) (domain.PipelineRun, error) {
	if err := a.Pipeline.StartFromImages(a.backgroundContext(), ids); err != nil {
		return a.Tracker.Snapshot(), err
	}

	a.Selections.Clear()
	return a.Tracker.Snapshot(), nil
}

// StartFromText skips transcription and translates pasted Tibetan text.
func (a *App) StartFromText(text string) (domain.PipelineRun, error) {
	if err := a.Pipeline.StartFromText(a.backgroundContext(), text); err != nil {
		return a.Tracker.Snapshot(), err
	}

	a.Selections.Clear()
	return a.Tracker.Snapshot(), nil
}

// Retranslate reruns translation of the current canonical text. A negative
// quality leaves the model's thinking budget unset.
func (a *App) Retranslate(quality int) (domain.PipelineRun, error) {
	state := a.Tracker.Snapshot()
	if err := a.Pipeline.Retranslate(a.backgroundContext(), state.CanonicalText, qualityPointer(quality)); err != nil {
		return a.Tracker.Snapshot(), err
	}
	return a.Tracker.Snapshot(), nil
}

// EnterEdit flags the canonical text as being edited in the UI.
func (a *App) EnterEdit() (domain.PipelineRun, error) {
	state, err := a.Pipeline.EnterEdit()
	if err != nil {
		return state, err
	}

	a.Selections.Clear()
	return state, nil
}

// CommitEdit replaces the canonical text with the edited version and
// retranslates it.
func (a *App) CommitEdit(text string, quality int) (domain.PipelineRun, error) {
	if err := a.Pipeline.CommitEdit(a.backgroundContext(), text, qualityPointer(quality)); err != nil {
		return a.Tracker.Snapshot(), err
	}

	a.Selections.Clear()
	return a.Tracker.Snapshot(), nil
}

// ResetRun abandons the current run and clears any selection.
func (a *App) ResetRun() domain.PipelineRun {
	a.Pipeline.Reset()
	a.Selections.Clear()
	return a.Tracker.Snapshot()
}

// RunState returns the current run snapshot.
func (a *App) RunState() domain.PipelineRun {
	return a.Tracker.Snapshot()
}

// PipelineEvents returns all events with sequence greater than sinceSeq.
func (a *App) PipelineEvents(sinceSeq int64) []run.Event {
	return a.events.Since(sinceSeq)
}

// GetDocument renders the canonical text as a block tree for display.
func (a *App) GetDocument() *document.Document {
	return document.Assign(a.Tracker.Snapshot().CanonicalText)
}

// qualityPointer maps the UI quality slider onto the optional budget level.
func qualityPointer(quality int) *int {
	if quality < 0 {
		return nil
	}
	return &quality
}
