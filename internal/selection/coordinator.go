package selection

import (
	"context"
	"errors"
	"strings"
	"sync"

	"pecha-studio/internal/domain"
)

var (
	// ErrNoSelection is returned when an action runs without a span.
	ErrNoSelection = errors.New("no selection to act on")
	// ErrNotTranslated is returned when an action runs before both the
	// canonical text and its translation exist.
	ErrNotTranslated = errors.New("text is not translated yet")
)

// Explainer produces passage commentary and alternate renderings.
type Explainer interface {
	Explain(ctx context.Context, passage, canonical, translation string) (string, error)
	Alternates(ctx context.Context, passage, canonical, translation string) (string, error)
}

type actionKind int

const (
	actionExplain actionKind = iota
	actionAlternates
)

// Coordinator owns the live selection and the actions hanging off it.
// Explain and alternates are mutually exclusive; starting either clears
// the other, and changing the selection discards any in-flight reply.
type Coordinator struct {
	mu        sync.Mutex
	gen       uint64
	state     domain.SelectionState
	explainer Explainer
	notify    func()
}

// NewCoordinator builds a coordinator. notify, when non-nil, fires after
// every visible state change.
func NewCoordinator(explainer Explainer, notify func()) *Coordinator {
	if notify == nil {
		notify = func() {}
	}
	return &Coordinator{explainer: explainer, notify: notify}
}

// Set replaces the current selection and resets both actions. A nil span
// clears the selection.
func (c *Coordinator) Set(span *domain.SelectionSpan) {
	c.mu.Lock()
	c.gen++
	c.state = domain.SelectionState{Span: span}
	c.mu.Unlock()
	c.notify()
}

// Clear drops the selection, its highlight, and both action states.
func (c *Coordinator) Clear() {
	c.Set(nil)
}

// Explain runs the explanation action for the current selection. It blocks
// until the reply lands or is discarded as stale.
func (c *Coordinator) Explain(ctx context.Context, canonical, translation string) error {
	return c.runAction(ctx, canonical, translation, actionExplain)
}

// Alternates runs the alternate-translations action for the current
// selection.
func (c *Coordinator) Alternates(ctx context.Context, canonical, translation string) error {
	return c.runAction(ctx, canonical, translation, actionAlternates)
}

// Snapshot returns a copy of the selection state.
func (c *Coordinator) Snapshot() domain.SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.state
	if c.state.Span != nil {
		span := *c.state.Span
		out.Span = &span
	}
	if c.state.Highlight != nil {
		highlight := *c.state.Highlight
		out.Highlight = &highlight
	}
	return out
}

func (c *Coordinator) runAction(ctx context.Context, canonical, translation string, kind actionKind) error {
	c.mu.Lock()
	span := c.state.Span
	if span == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	if strings.TrimSpace(canonical) == "" || strings.TrimSpace(translation) == "" {
		c.mu.Unlock()
		return ErrNotTranslated
	}

	c.gen++
	gen := c.gen
	loading := domain.ActionState{Loading: true}
	if kind == actionExplain {
		c.state.Explanation = loading
		c.state.Alternates = domain.ActionState{}
	} else {
		c.state.Alternates = loading
		c.state.Explanation = domain.ActionState{}
	}
	// The highlight is optimistic; a failed action takes it back.
	c.state.Highlight = &domain.HighlightSpan{Start: span.Start, Length: span.Length}
	passage := passageText(canonical, span)
	c.mu.Unlock()
	c.notify()

	var result string
	var err error
	if kind == actionExplain {
		result, err = c.explainer.Explain(ctx, passage, canonical, translation)
	} else {
		result, err = c.explainer.Alternates(ctx, passage, canonical, translation)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	target := &c.state.Explanation
	if kind == actionAlternates {
		target = &c.state.Alternates
	}
	if err != nil {
		*target = domain.ActionState{Error: err.Error()}
		c.state.Highlight = nil
	} else {
		*target = domain.ActionState{Result: result}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// passageText slices the selected runes out of the canonical text,
// clamping to its bounds.
func passageText(canonical string, span *domain.SelectionSpan) string {
	runes := []rune(canonical)
	start := span.Start
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := start + span.Length
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}
