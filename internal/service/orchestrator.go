package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
	"github.com/MimeLyc/batch-sub-translator/internal/translator"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// Action names reported in snapshots and busy errors.
const (
	ActionRun        = "run"
	ActionRetryItem  = "retry-item"
	ActionRetryBatch = "retry-batch"
)

// Orchestrator owns one loaded subtitle document and drives translation
// runs and retries over it. At most one action runs at a time; all item
// mutations happen under mu as whole-batch updates.
type Orchestrator struct {
	gateway translator.Gateway
	opts    Options
	gate    gate
	flight  singleflight.Group

	mu       sync.Mutex
	doc      *subtitle.Document
	source   language.Tag
	items    []subtitle.Item
	ledger   *batch.Ledger
	progress Progress
	// settled holds the ids of work queue items whose result was applied
	// during the current run.
	settled map[int]struct{}
	outcome Outcome
	runErr  error
	runID   string
	last    *RunRequest
	action  string
	cancel  context.CancelFunc
	done    chan struct{}
	updated time.Time
}

func NewOrchestrator(gateway translator.Gateway, opts Options) *Orchestrator {
	if opts.Planner.StandardSize <= 0 {
		opts.Planner = batch.DefaultPlanner()
	}
	if opts.ContextWindow < 0 {
		opts.ContextWindow = 0
	}
	return &Orchestrator{
		gateway: gateway,
		opts:    opts,
		ledger:  batch.NewLedger(),
		updated: time.Now(),
	}
}

// Load replaces the session document. Items are numbered by position and
// start pending.
func (o *Orchestrator) Load(doc *subtitle.Document) error {
	if doc == nil {
		return NewError(ErrValidation, "document is nil")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.action != "" {
		return o.busyLocked()
	}

	o.doc = doc.Clone()
	o.items = subtitle.NewItems(o.doc.Cues)
	o.source = subtitle.DetectLanguage(o.doc.Cues)
	o.ledger.Clear()
	o.settled = nil
	o.progress = Progress{}
	o.outcome = OutcomeNone
	o.runErr = nil
	o.runID = ""
	o.last = nil
	o.touchLocked()

	log.Info("loaded %s document with %d cues (source language %s)", o.doc.Format, len(o.items), o.source)
	return nil
}

// Reset moves every item back to pending and empties the ledger, typically
// before translating into another language.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.readyLocked(); err != nil {
		return err
	}

	for i := range o.items {
		o.items[i].Status = subtitle.StatusPending
		o.items[i].TranslatedText = ""
		o.items[i].Error = ""
	}
	o.ledger.Clear()
	o.settled = nil
	o.progress = Progress{}
	o.outcome = OutcomeNone
	o.runErr = nil
	o.touchLocked()

	log.Info("reset %d items to pending", len(o.items))
	return nil
}

// UpdateTranslation stores a manual translation for one item.
func (o *Orchestrator) UpdateTranslation(id int, text string) error {
	if strings.TrimSpace(text) == "" {
		return NewError(ErrValidation, "translation is empty").WithContext("id", id)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.readyLocked(); err != nil {
		return err
	}
	pos := o.indexLocked(id)
	if pos < 0 {
		return NewError(ErrValidation, "unknown item").WithContext("id", id)
	}

	it := &o.items[pos]
	it.TranslatedText = text
	it.Status = subtitle.StatusTranslated
	it.Error = ""
	o.ledger.Reconcile(o.items, o.opts.Planner.StandardSize)
	o.touchLocked()
	return nil
}

// Export renders the document with translations overlaid.
func (o *Orchestrator) Export(mode subtitle.ExportMode) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.doc == nil {
		return "", NewError(ErrNotFound, "no subtitle loaded")
	}
	out, err := subtitle.Export(o.doc, o.items, mode)
	if err != nil {
		return "", WrapError(err, ErrCodec, "export failed")
	}
	return out, nil
}

// Pause stops new submissions. Calls already sent to the gateway finish and
// are applied. It is a no-op while idle.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	active := o.action != ""
	o.mu.Unlock()
	if !active {
		return
	}
	o.gate.Pause()
	log.Info("translation paused")
}

func (o *Orchestrator) Resume() {
	if !o.gate.Paused() {
		return
	}
	o.gate.Resume()
	log.Info("translation resumed")
}

// Cancel aborts the active action at its next check point. Results of
// gateway calls still in flight are discarded.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	action := o.action
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	log.Info("cancelling %s", action)
	cancel()
}

// Wait blocks until the active action, if any, has finished.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether a document is loaded.
func (o *Orchestrator) Loaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.doc != nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// Items returns a copy of the authoritative item list.
func (o *Orchestrator) Items() []subtitle.Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	return subtitle.CloneItems(o.items)
}

// FailedBatches returns the ledger joined with live item state.
func (o *Orchestrator) FailedBatches() []batch.View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ledger.Views(o.items)
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		RunID:         o.runID,
		State:         o.stateLocked(),
		Action:        o.action,
		Outcome:       o.outcome,
		Progress:      o.progress,
		Items:         subtitle.CloneItems(o.items),
		FailedBatches: o.ledger.Views(o.items),
		UpdatedAt:     o.updated,
	}
	if snap.Items == nil {
		snap.Items = []subtitle.Item{}
	}
	if o.runErr != nil {
		snap.RunError = o.runErr.Error()
	}
	if o.doc != nil {
		snap.Format = o.doc.Format
		if o.source != language.Und {
			snap.SourceLanguage = o.source.String()
		}
	}
	if o.last != nil {
		snap.TargetLanguage = o.last.TargetLanguage.String()
	}
	return snap
}

// begin claims the single action slot. The returned release must be called
// when the action ends.
func (o *Orchestrator) begin(parent context.Context, action string) (context.Context, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.action != "" {
		return nil, nil, o.busyLocked()
	}
	if o.doc == nil {
		return nil, nil, NewError(ErrNotFound, "no subtitle loaded")
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	o.action = action
	o.cancel = cancel
	o.done = done
	o.touchLocked()

	release := func() {
		cancel()
		o.mu.Lock()
		o.action = ""
		o.cancel = nil
		o.done = nil
		o.touchLocked()
		o.mu.Unlock()
		o.gate.Resume()
		close(done)
	}
	return ctx, release, nil
}

func (o *Orchestrator) readyLocked() error {
	if o.action != "" {
		return o.busyLocked()
	}
	if o.doc == nil {
		return NewError(ErrNotFound, "no subtitle loaded")
	}
	return nil
}

func (o *Orchestrator) busyLocked() error {
	return NewError(ErrBusy, "another action is running").WithContext("action", o.action)
}

func (o *Orchestrator) stateLocked() State {
	switch {
	case o.action == "":
		return StateIdle
	case o.gate.Paused():
		return StatePaused
	default:
		return StateRunning
	}
}

// indexLocked maps an item id to its position. Ids equal positions+1 for
// loaded documents.
func (o *Orchestrator) indexLocked(id int) int {
	if i := id - 1; i >= 0 && i < len(o.items) && o.items[i].ID == id {
		return i
	}
	return -1
}

func (o *Orchestrator) touchLocked() {
	o.updated = time.Now()
}
