package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
	"github.com/MimeLyc/batch-sub-translator/internal/translator"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// callSettings are the per-call gateway parameters derived from a
// RunRequest.
type callSettings struct {
	language string
	prompt   string
	model    string
}

func (r RunRequest) validate() error {
	if r.TargetLanguage == language.Und {
		return NewError(ErrValidation, "target language is required")
	}
	return nil
}

func (r RunRequest) settings() callSettings {
	name := display.English.Languages().Name(r.TargetLanguage)
	if name == "" {
		name = r.TargetLanguage.String()
	}
	return callSettings{
		language: name,
		prompt:   translator.RenderPrompt(r.Prompt, name),
		model:    r.Model,
	}
}

// StartRun begins a run in the background. Busy and validation errors are
// returned immediately; the outcome is observed through Snapshot.
func (o *Orchestrator) StartRun(ctx context.Context, req RunRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	ctx, release, err := o.begin(ctx, ActionRun)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		_, _ = o.run(ctx, req)
	}()
	return nil
}

// Run translates every pending, errored or interrupted item and blocks
// until the run ends. A cancelled run returns OutcomeCancelled with a nil
// error; only run-level failures return an error.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (Outcome, error) {
	if err := req.validate(); err != nil {
		return OutcomeNone, err
	}
	ctx, release, err := o.begin(ctx, ActionRun)
	if err != nil {
		return OutcomeNone, err
	}
	defer release()
	return o.run(ctx, req)
}

func (o *Orchestrator) run(ctx context.Context, req RunRequest) (Outcome, error) {
	runID := uuid.NewString()

	o.mu.Lock()
	last := req
	o.last = &last
	o.runID = runID
	o.outcome = OutcomeNone
	o.runErr = nil
	queue := workQueue(o.items)
	batches, size := o.opts.Planner.Plan(queue)
	o.settled = make(map[int]struct{}, len(queue))
	o.progress = newProgress(0, len(queue))
	o.touchLocked()
	o.mu.Unlock()

	log.Info("run %s: %d items queued in %d batches of %d, target %s", runID, len(queue), len(batches), size, req.TargetLanguage)

	s := req.settings()
	err := SafeExecute(func() error {
		for _, b := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.gate.Wait(ctx); err != nil {
				return err
			}
			if err := o.runBatch(ctx, b, s); err != nil {
				return err
			}
		}
		return nil
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledger.Reconcile(o.items, o.opts.Planner.StandardSize)
	o.progress = newProgress(len(o.settled), len(queue))
	o.touchLocked()

	switch {
	case err == nil:
		o.outcome = OutcomeCompleted
		log.Info("run %s completed: %d/%d items settled, %d failed batches", runID, o.progress.Done, o.progress.Total, o.ledger.Len())
		return o.outcome, nil
	case IsCancelled(err):
		o.outcome = OutcomeCancelled
		log.Info("run %s cancelled at %d%%", runID, o.progress.Percent)
		return o.outcome, nil
	default:
		o.outcome = OutcomeFailed
		o.runErr = WrapError(err, ErrRun, "translation process error").WithContext("run", runID)
		log.Error("run %s failed: %v", runID, err)
		return o.outcome, o.runErr
	}
}

// workQueue selects the items a run works on. Items left translating by an
// interrupted action are picked up again.
func workQueue(items []subtitle.Item) []subtitle.Item {
	var queue []subtitle.Item
	for _, it := range items {
		if it.Status != subtitle.StatusTranslated {
			queue = append(queue, it)
		}
	}
	return queue
}

// runBatch submits one planned batch and handles its failure: oversized
// batches are retried once as standard-size sub-batches, others go to the
// ledger as they are.
func (o *Orchestrator) runBatch(ctx context.Context, b batch.Batch, s callSettings) error {
	log.Debug("submitting batch %s (%d items from #%d)", b.Key, len(b.Items), b.FirstID())
	res, err := o.submit(ctx, b, s, batch.BatchLead)
	if err != nil {
		return err
	}
	if !res.failed() {
		return nil
	}

	subs := o.opts.Planner.Subdivide(b)
	if subs == nil {
		o.record(b.Key, b.IDs())
		return nil
	}

	log.Warn("batch %s failed (%d of %d items), retrying as %d sub-batches", b.Key, res.errors, res.total, len(subs))
	var retried, stillFailed []batch.Batch
	for _, sub := range subs {
		members := o.errorMembers(sub.IDs())
		if len(members) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.gate.Wait(ctx); err != nil {
			return err
		}
		retried = append(retried, sub)
		subRes, err := o.submit(ctx, batch.Batch{Key: sub.Key, Items: members}, s, batch.BatchLead)
		if err != nil {
			return err
		}
		if subRes.failed() {
			stillFailed = append(stillFailed, sub)
		}
	}

	if res.total > 0 && res.errors == res.total && len(stillFailed) > 0 && len(stillFailed) == len(retried) {
		o.record(b.Key, b.IDs())
		return nil
	}
	for _, sub := range stillFailed {
		o.record(sub.Key, sub.IDs())
	}
	return nil
}

type submitResult struct {
	total  int
	errors int
}

func (r submitResult) failed() bool {
	return r.errors > 0
}

// submit sends b to the gateway and applies the results in one step. On
// cancellation or a fatal gateway error nothing is applied; an interrupted
// run leaves the items translating, anything else gets its previous state
// back.
func (o *Orchestrator) submit(ctx context.Context, b batch.Batch, s callSettings, lead string) (submitResult, error) {
	o.mu.Lock()
	prev := make([]subtitle.Item, 0, len(b.Items))
	for _, it := range b.Items {
		pos := o.indexLocked(it.ID)
		if pos < 0 {
			o.mu.Unlock()
			return submitResult{}, NewError(ErrBatch, "batch member not found").WithContext("id", it.ID)
		}
		prev = append(prev, o.items[pos])
		o.items[pos].Status = subtitle.StatusTranslating
	}
	preamble := batch.BuildContext(o.items, b.FirstID(), o.opts.ContextWindow).Render(lead)
	keepOnCancel := o.action == ActionRun
	o.touchLocked()
	o.mu.Unlock()

	results, err := o.dispatch(ctx, b, s, preamble)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if !(keepOnCancel && IsCancelled(err)) {
			o.restoreLocked(prev)
		}
		if IsCancelled(err) {
			return submitResult{}, ErrCancelled
		}
		return submitResult{}, err
	}

	res := submitResult{total: len(b.Items)}
	for i, it := range b.Items {
		item := &o.items[o.indexLocked(it.ID)]
		r := results[i]
		if r.Failed() {
			item.Status = subtitle.StatusError
			item.Error = r.Error
			res.errors++
		} else {
			item.TranslatedText = r.Text
			item.Status = subtitle.StatusTranslated
			item.Error = ""
		}
		if o.settled != nil {
			o.settled[it.ID] = struct{}{}
		}
	}
	if o.settled != nil {
		o.progress = newProgress(len(o.settled), o.progress.Total)
	}
	o.touchLocked()
	return res, nil
}

// dispatch calls the gateway once per chunk, concurrently, and reassembles
// the results in input order. A non-fatal gateway error turns its chunk
// into error markers.
func (o *Orchestrator) dispatch(ctx context.Context, b batch.Batch, s callSettings, preamble string) ([]translator.Result, error) {
	results := make([]translator.Result, len(b.Items))
	chunks := batch.Chunks(len(b.Items), o.opts.ChunkLimit)

	g, gctx := errgroup.WithContext(ctx)
	for i, span := range chunks {
		g.Go(func() error {
			return SafeExecute(func() error {
				if len(chunks) > 1 {
					if err := o.gate.Wait(gctx); err != nil {
						return err
					}
				}
				contextText := preamble
				if i > 0 && contextText != "" {
					contextText += " (continued)"
				}
				out, err := o.translateChunk(gctx, b, span, s, contextText)
				if err != nil {
					return err
				}
				copy(results[span[0]:span[1]], out)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) translateChunk(ctx context.Context, b batch.Batch, span [2]int, s callSettings, contextText string) ([]translator.Result, error) {
	items := b.Items[span[0]:span[1]]
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}

	out, err := o.gateway.Translate(ctx, translator.Request{
		Texts:          texts,
		TargetLanguage: s.language,
		Prompt:         s.prompt,
		Context:        contextText,
		Model:          s.model,
	})
	if err != nil {
		if errors.Is(err, translator.ErrFatal) || ctx.Err() != nil {
			return nil, err
		}
		log.Warn("batch %s items #%d-#%d failed: %v", b.Key, items[0].ID, items[len(items)-1].ID, err)
		out = translator.ErrorResults(len(items), err.Error())
	}
	return fitResults(out, items), nil
}

// fitResults aligns a gateway response with its inputs. Missing positions
// and empty translations become error markers; extra results are dropped.
func fitResults(out []translator.Result, items []subtitle.Item) []translator.Result {
	fitted := make([]translator.Result, len(items))
	for i, it := range items {
		switch {
		case i >= len(out):
			fitted[i] = translator.Result{Error: fmt.Sprintf("no result returned for item %d", it.ID)}
		case !out[i].Failed() && strings.TrimSpace(out[i].Text) == "":
			fitted[i] = translator.Result{Error: fmt.Sprintf("empty translation for item %d", it.ID)}
		default:
			fitted[i] = out[i]
		}
	}
	return fitted
}

func (o *Orchestrator) restoreLocked(prev []subtitle.Item) {
	for _, it := range prev {
		if pos := o.indexLocked(it.ID); pos >= 0 {
			o.items[pos] = it
		}
	}
}

// errorMembers returns live copies of the given items currently in error.
func (o *Orchestrator) errorMembers(ids []int) []subtitle.Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []subtitle.Item
	for _, id := range ids {
		if pos := o.indexLocked(id); pos >= 0 && o.items[pos].Status == subtitle.StatusError {
			out = append(out, o.items[pos])
		}
	}
	return out
}

// record upserts a ledger entry holding a live snapshot of ids.
func (o *Orchestrator) record(key batch.Key, ids []int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := make([]subtitle.Item, 0, len(ids))
	for _, id := range ids {
		if pos := o.indexLocked(id); pos >= 0 {
			snap = append(snap, o.items[pos])
		}
	}
	o.ledger.Upsert(key, snap)
	o.touchLocked()
	log.Warn("batch %s recorded as failed (%d items)", key, len(snap))
}
