package run

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pecha-studio/internal/domain"
)

// ErrNoImages is returned when an image run is started without staged pages.
var ErrNoImages = errors.New("no page images staged")

// ErrNoCanonicalText is returned when edit mode is entered before any
// canonical text exists.
var ErrNoCanonicalText = errors.New("no canonical text to edit")

// ErrStaleVersion is returned when a continuation carries a version older
// than the current run. Callers discard the result and stop.
var ErrStaleVersion = errors.New("stale run version")

// ErrStageTransition wraps illegal stage transitions. These indicate a
// pipeline bug, not a user condition.
var ErrStageTransition = errors.New("invalid stage transition")

// Tracker is the single versioned state record for the pipeline. All user
// entry points bump the version; all asynchronous continuations pass the
// version they captured and are rejected with ErrStaleVersion once a newer
// action has superseded them. The page list staged by the user lives here
// too, so page status updates share the same guard.
type Tracker struct {
	mu    sync.RWMutex
	state domain.PipelineRun
	pages []domain.PageImage
}

// NewTracker creates a tracker in idle state at version zero.
func NewTracker() *Tracker {
	return &Tracker{
		state: domain.PipelineRun{Stage: domain.StageIdle},
	}
}

// Snapshot returns a copy of the current run record.
func (t *Tracker) Snapshot() domain.PipelineRun {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Version returns the current run version.
func (t *Tracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Version
}

// Pages returns a copy of the staged page list.
func (t *Tracker) Pages() []domain.PageImage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.PageImage, len(t.pages))
	copy(out, t.pages)
	return out
}

// StagePage adds a page to the staged list. A page with the same ID is
// refreshed in place rather than duplicated: the ID derives from the image
// content, so re-adding the same scan must not create a second entry.
func (t *Tracker) StagePage(page domain.PageImage) domain.PageImage {
	t.mu.Lock()
	defer t.mu.Unlock()

	if page.Status == "" {
		page.Status = domain.PageStatusPending
	}

	for i := range t.pages {
		if t.pages[i].ID == page.ID {
			t.pages[i].SourceRef = page.SourceRef
			t.pages[i].Bytes = page.Bytes
			t.pages[i].MIME = page.MIME
			return t.pages[i]
		}
	}

	t.pages = append(t.pages, page)
	return page
}

// RemovePage drops a staged page by ID and reports whether it existed.
func (t *Tracker) RemovePage(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.pages {
		if t.pages[i].ID == id {
			t.pages = append(t.pages[:i], t.pages[i+1:]...)
			return true
		}
	}
	return false
}

// BeginImageRun starts a new transcription run over the staged pages with
// the given IDs (all staged pages when ids is empty). It bumps the version,
// resets the run record, marks the captured pages as transcribing, and
// returns the new run together with the captured page set in staged order.
func (t *Tracker) BeginImageRun(ids []string) (domain.PipelineRun, []domain.PageImage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	captured := make([]domain.PageImage, 0, len(t.pages))
	for i := range t.pages {
		if len(ids) > 0 && !wanted[t.pages[i].ID] {
			continue
		}
		t.pages[i].Status = domain.PageStatusTranscribing
		t.pages[i].Transcript = ""
		t.pages[i].ErrorMessage = ""
		captured = append(captured, t.pages[i])
	}
	if len(captured) == 0 {
		return t.state, nil, ErrNoImages
	}

	t.state = domain.PipelineRun{
		ID:      uuid.NewString(),
		Version: t.state.Version + 1,
		Stage:   domain.StageTranscribing,
	}
	return t.state, captured, nil
}

// BeginTextRun starts a translation-only run over user-supplied text.
func (t *Tracker) BeginTextRun(text string) domain.PipelineRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = domain.PipelineRun{
		ID:            uuid.NewString(),
		Version:       t.state.Version + 1,
		Stage:         domain.StageTranslating,
		CanonicalText: text,
	}
	return t.state
}

// BeginRetranslate starts a fresh translation of the given text, which
// becomes the canonical text. Any pending edit session ends here.
func (t *Tracker) BeginRetranslate(text string) domain.PipelineRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = domain.PipelineRun{
		ID:            uuid.NewString(),
		Version:       t.state.Version + 1,
		Stage:         domain.StageTranslating,
		CanonicalText: text,
	}
	return t.state
}

// BeginEdit opens an edit session on the canonical text. The version bump
// invalidates any in-flight translation; the cleared translation and the
// success stage describe a settled document awaiting the edited text.
func (t *Tracker) BeginEdit() (domain.PipelineRun, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.TrimSpace(t.state.CanonicalText) == "" {
		return t.state, ErrNoCanonicalText
	}

	t.state.Version++
	t.state.Stage = domain.StageSuccess
	t.state.Translation = ""
	t.state.ErrorMessage = ""
	t.state.Editing = true
	return t.state, nil
}

// Reset clears the run record and the staged pages. The version keeps
// counting up so continuations from before the reset stay stale forever.
func (t *Tracker) Reset() domain.PipelineRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = domain.PipelineRun{
		Version: t.state.Version + 1,
		Stage:   domain.StageIdle,
	}
	t.pages = nil
	return t.state
}

// MarkPage records one page outcome under the version guard. A page that
// was removed while its transcription ran is ignored.
func (t *Tracker) MarkPage(version uint64, id string, status domain.PageStatus, transcript, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if version != t.state.Version {
		return ErrStaleVersion
	}

	for i := range t.pages {
		if t.pages[i].ID == id {
			t.pages[i].Status = status
			t.pages[i].Transcript = transcript
			t.pages[i].ErrorMessage = errMsg
			break
		}
	}
	return nil
}

// CompleteTranscription advances the run from transcribing to formatting.
func (t *Tracker) CompleteTranscription(version uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if version != t.state.Version {
		return ErrStaleVersion
	}
	return t.advance(domain.StageFormatting)
}

// CompleteFormatting records the canonical text and advances to translating.
func (t *Tracker) CompleteFormatting(version uint64, canonicalText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if version != t.state.Version {
		return ErrStaleVersion
	}
	if err := t.advance(domain.StageTranslating); err != nil {
		return err
	}
	t.state.CanonicalText = canonicalText
	return nil
}

// CompleteTranslation records the translation and advances to success.
func (t *Tracker) CompleteTranslation(version uint64, translation string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if version != t.state.Version {
		return ErrStaleVersion
	}
	if err := t.advance(domain.StageSuccess); err != nil {
		return err
	}
	t.state.Translation = translation
	return nil
}

// FailRun moves the run to the error stage with the message verbatim.
func (t *Tracker) FailRun(version uint64, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if version != t.state.Version {
		return ErrStaleVersion
	}
	if err := t.advance(domain.StageError); err != nil {
		return err
	}
	t.state.ErrorMessage = message
	return nil
}

// advance validates and applies one stage transition. Callers hold the lock.
func (t *Tracker) advance(to domain.Stage) error {
	if !validTransition(t.state.Stage, to) {
		return fmt.Errorf("%w: %s -> %s", ErrStageTransition, t.state.Stage, to)
	}
	t.state.Stage = to
	return nil
}

// validTransition enforces the stage graph for continuations. Entry points
// replace the run record wholesale and do not pass through here.
func validTransition(from, to domain.Stage) bool {
	if to == domain.StageIdle {
		return true
	}

	switch from {
	case domain.StageTranscribing:
		return to == domain.StageFormatting || to == domain.StageError
	case domain.StageFormatting:
		return to == domain.StageTranslating || to == domain.StageError
	case domain.StageTranslating:
		return to == domain.StageSuccess || to == domain.StageError
	default:
		return false
	}
}
