// Package pipeline drives staged pages through transcription, merge
// formatting, and translation, recording every step on the run tracker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pecha-studio/internal/domain"
	"pecha-studio/internal/run"
)

// ErrEmptyInput is returned when a text run starts with blank input.
var ErrEmptyInput = errors.New("input text is empty")

const defaultMaxConcurrent = 3

// Analyzer is the model surface the pipeline drives.
type Analyzer interface {
	Transcribe(ctx context.Context, image []byte, mime string) (string, error)
	Format(ctx context.Context, pages []domain.PageImage) (string, error)
	Translate(ctx context.Context, text string, thinkingBudget *int32) (string, error)
}

// Orchestrator runs the transcription pipeline. Entry points return
// quickly; the model work continues on background goroutines whose
// updates the tracker accepts only while their run version is current.
type Orchestrator struct {
	tracker  *run.Tracker
	analyzer Analyzer
	settings func() domain.Settings
	emit     func(run.Event)
	log      *slog.Logger
}

// New builds an orchestrator. settings is read at the start of each run so
// changed preferences apply to the next run, not a running one. emit and
// log may be nil.
func New(tracker *run.Tracker, analyzer Analyzer, settings func() domain.Settings, emit func(run.Event), log *slog.Logger) *Orchestrator {
	if settings == nil {
		settings = func() domain.Settings { return domain.Settings{} }
	}
	if emit == nil {
		emit = func(run.Event) {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		tracker:  tracker,
		analyzer: analyzer,
		settings: settings,
		emit:     emit,
		log:      log,
	}
}

// StartFromImages begins a full run over the staged pages with the given
// IDs, or over all staged pages when ids is empty.
func (o *Orchestrator) StartFromImages(ctx context.Context, ids []string) error {
	started, pages, err := o.tracker.BeginImageRun(ids)
	if err != nil {
		return err
	}

	o.emitStatus(started, domain.StageTranscribing)
	o.emitLog(started, fmt.Sprintf("transcribing %d pages", len(pages)))
	go o.runImagePipeline(ctx, started, pages)
	return nil
}

// StartFromText begins a translation-only run over pasted canonical text.
func (o *Orchestrator) StartFromText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	started := o.tracker.BeginTextRun(text)
	o.emitStatus(started, domain.StageTranslating)
	go o.translate(ctx, started, text, nil)
	return nil
}

// Retranslate reruns translation over the given canonical text. A non-nil
// quality level buys the model a matching thinking budget.
func (o *Orchestrator) Retranslate(ctx context.Context, text string, quality *int) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	var budget *int32
	if quality != nil {
		b := ThinkingBudgetForQuality(*quality)
		budget = &b
	}

	started := o.tracker.BeginRetranslate(text)
	o.emitStatus(started, domain.StageTranslating)
	go o.translate(ctx, started, text, budget)
	return nil
}

// EnterEdit opens an edit session on the canonical text, invalidating any
// in-flight run.
func (o *Orchestrator) EnterEdit() (domain.PipelineRun, error) {
	edited, err := o.tracker.BeginEdit()
	if err != nil {
		return edited, err
	}

	o.emitStatus(edited, edited.Stage)
	return edited, nil
}

// CommitEdit submits edited canonical text for retranslation.
func (o *Orchestrator) CommitEdit(ctx context.Context, text string, quality *int) error {
	return o.Retranslate(ctx, text, quality)
}

// Reset returns the tracker to idle and drops the staged pages.
func (o *Orchestrator) Reset() {
	cleared := o.tracker.Reset()
	o.emitStatus(cleared, domain.StageIdle)
}

// runImagePipeline transcribes the captured pages concurrently, then
// formats and translates the survivors. Page failures are recorded and
// tolerated; the run fails only when no page survives or a later stage
// errors.
func (o *Orchestrator) runImagePipeline(ctx context.Context, started domain.PipelineRun, pages []domain.PageImage) {
	cfg := o.settings()

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}

	type pageResult struct {
		index int
		page  domain.PageImage
	}
	var (
		mu      sync.Mutex
		results []pageResult
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i := range pages {
		index, page := i, pages[i]
		// Workers never return an error: one bad page must not cancel
		// its siblings.
		group.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(groupCtx); err != nil {
					page.Status = domain.PageStatusFailed
					page.ErrorMessage = err.Error()
					o.markPage(started, page)
					return nil
				}
			}

			transcript, err := o.analyzer.Transcribe(groupCtx, page.Bytes, page.MIME)
			if err != nil {
				page.Status = domain.PageStatusFailed
				page.ErrorMessage = err.Error()
				o.markPage(started, page)
				return nil
			}

			page.Status = domain.PageStatusSucceeded
			page.Transcript = transcript
			page.ErrorMessage = ""
			o.markPage(started, page)

			mu.Lock()
			results = append(results, pageResult{index: index, page: page})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if len(results) == 0 {
		o.failRun(started, &StageError{Stage: domain.StageTranscribing, Message: "all transcriptions failed"})
		return
	}
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	transcribed := make([]domain.PageImage, len(results))
	for i, r := range results {
		transcribed[i] = r.page
	}

	if err := o.tracker.CompleteTranscription(started.Version); err != nil {
		o.logDropped(started, "transcription complete", err)
		return
	}
	o.emitStatus(started, domain.StageFormatting)
	o.emitLog(started, fmt.Sprintf("merging %d transcriptions", len(transcribed)))

	canonical, err := o.analyzer.Format(ctx, transcribed)
	if err != nil {
		o.failRun(started, &StageError{Stage: domain.StageFormatting, Message: err.Error(), Err: err})
		return
	}
	canonical = strings.TrimSpace(canonical)

	if err := o.tracker.CompleteFormatting(started.Version, canonical); err != nil {
		o.logDropped(started, "formatting complete", err)
		return
	}
	o.emitStatus(started, domain.StageTranslating)

	o.translate(ctx, started, canonical, nil)
}

// translate runs the final stage for the given canonical text.
func (o *Orchestrator) translate(ctx context.Context, started domain.PipelineRun, text string, budget *int32) {
	translation, err := o.analyzer.Translate(ctx, text, budget)
	if err != nil {
		o.failRun(started, &StageError{Stage: domain.StageTranslating, Message: err.Error(), Err: err})
		return
	}
	translation = strings.TrimSpace(translation)

	if err := o.tracker.CompleteTranslation(started.Version, translation); err != nil {
		o.logDropped(started, "translation complete", err)
		return
	}
	o.emitStatus(started, domain.StageSuccess)
	o.emit(run.Event{
		RunID:   started.ID,
		Version: started.Version,
		Type:    run.EventTypeResult,
		Message: fmt.Sprintf("translated %d characters", utf8.RuneCountInString(text)),
	})
}

// markPage records one page outcome and announces it, unless the run has
// been superseded.
func (o *Orchestrator) markPage(started domain.PipelineRun, page domain.PageImage) {
	err := o.tracker.MarkPage(started.Version, page.ID, page.Status, page.Transcript, page.ErrorMessage)
	if err != nil {
		o.logDropped(started, "page update", err)
		return
	}

	o.emit(run.Event{
		RunID:      started.ID,
		Version:    started.Version,
		Type:       run.EventTypePage,
		PageID:     page.ID,
		PageStatus: page.Status,
		Message:    page.ErrorMessage,
	})
}

// failRun marks the run failed with the bare message and announces the
// stage-prefixed form.
func (o *Orchestrator) failRun(started domain.PipelineRun, stageErr *StageError) {
	if err := o.tracker.FailRun(started.Version, stageErr.Message); err != nil {
		o.logDropped(started, "fail run", err)
		return
	}

	o.log.Warn("pipeline run failed",
		"run", started.ID,
		"stage", string(stageErr.Stage),
		"error", stageErr.Message)
	o.emit(run.Event{
		RunID:   started.ID,
		Version: started.Version,
		Type:    run.EventTypeError,
		Stage:   stageErr.Stage,
		Message: stageErr.Error(),
	})
}

// logDropped reports a rejected continuation. Staleness is routine;
// anything else is a transition bug worth surfacing in the logs.
func (o *Orchestrator) logDropped(started domain.PipelineRun, step string, err error) {
	if errors.Is(err, run.ErrStaleVersion) {
		o.log.Debug("dropping stale continuation", "run", started.ID, "step", step, "version", started.Version)
		return
	}
	o.log.Error("continuation rejected", "run", started.ID, "step", step, "error", err)
}

func (o *Orchestrator) emitStatus(state domain.PipelineRun, stage domain.Stage) {
	o.emit(run.Event{
		RunID:   state.ID,
		Version: state.Version,
		Type:    run.EventTypeStatus,
		Stage:   stage,
	})
}

func (o *Orchestrator) emitLog(state domain.PipelineRun, message string) {
	o.emit(run.Event{
		RunID:   state.ID,
		Version: state.Version,
		Type:    run.EventTypeLog,
		Message: message,
	})
}
