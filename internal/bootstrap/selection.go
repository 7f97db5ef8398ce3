package bootstrap

import (
	"pecha-studio/internal/document"
	"pecha-studio/internal/domain"
	"pecha-studio/internal/selection"
)

// ReportSelection correlates a raw display selection back to the canonical
// text and stores the resulting span. Unusable selections clear the span.
func (a *App) ReportSelection(raw domain.RawSelection) *domain.SelectionSpan {
	doc := document.Assign(a.Tracker.Snapshot().CanonicalText)
	span := selection.Correlate(raw, doc)
	a.Selections.Set(span)
	return span
}

// ClearSelection drops the selection, its highlight, and both action states.
func (a *App) ClearSelection() {
	a.Selections.Clear()
}

// ExplainSelection asks the model to explain the selected passage. The call
// blocks until the reply lands; progress streams through selection events.
func (a *App) ExplainSelection() error {
	state := a.Tracker.Snapshot()
	return a.Selections.Explain(a.backgroundContext(), state.CanonicalText, state.Translation)
}

// AlternateTranslations asks the model for other renderings of the selected
// passage.
func (a *App) AlternateTranslations() error {
	state := a.Tracker.Snapshot()
	return a.Selections.Alternates(a.backgroundContext(), state.CanonicalText, state.Translation)
}

// SelectionState returns the current selection, highlight, and action states.
func (a *App) SelectionState() domain.SelectionState {
	return a.Selections.Snapshot()
}
