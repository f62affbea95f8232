package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
	"github.com/MimeLyc/batch-sub-translator/internal/translator"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// RetryItem re-translates a single errored item with its own context
// window. Items in any other state are left alone. Concurrent calls for the
// same id share one attempt.
func (o *Orchestrator) RetryItem(ctx context.Context, id int) error {
	_, err, _ := o.flight.Do("item:"+strconv.Itoa(id), func() (any, error) {
		return nil, o.retryItem(ctx, id)
	})
	return err
}

func (o *Orchestrator) retryItem(parent context.Context, id int) error {
	o.mu.Lock()
	pos := o.indexLocked(id)
	if o.doc != nil && pos < 0 {
		o.mu.Unlock()
		return NewError(ErrValidation, "unknown item").WithContext("id", id)
	}
	if pos >= 0 && o.items[pos].Status != subtitle.StatusError {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	s, err := o.lastSettings()
	if err != nil {
		return err
	}
	ctx, release, err := o.begin(parent, ActionRetryItem)
	if err != nil {
		return err
	}
	defer release()

	o.mu.Lock()
	item := o.items[pos]
	o.mu.Unlock()
	if item.Status != subtitle.StatusError {
		return nil
	}

	log.Info("retrying item #%d", id)
	b := batch.Batch{Key: batch.KeyFor(id, o.opts.Planner.StandardSize), Items: []subtitle.Item{item}}
	res, err := o.submit(ctx, b, s, batch.ItemLead)

	o.mu.Lock()
	o.ledger.Reconcile(o.items, o.opts.Planner.StandardSize)
	o.touchLocked()
	o.mu.Unlock()

	if err != nil {
		return retryError(err, "item retry failed")
	}
	if res.failed() {
		log.Warn("item #%d still failing", id)
	}
	return nil
}

// RetryBatch re-submits the members of a ledger entry that are currently in
// error. An absent key is a no-op.
func (o *Orchestrator) RetryBatch(ctx context.Context, key batch.Key) error {
	_, err, _ := o.flight.Do("batch:"+key.String(), func() (any, error) {
		return nil, o.retryBatch(ctx, key)
	})
	return err
}

func (o *Orchestrator) retryBatch(parent context.Context, key batch.Key) error {
	o.mu.Lock()
	_, known := o.ledger.Get(key)
	o.mu.Unlock()
	if !known {
		return nil
	}

	s, err := o.lastSettings()
	if err != nil {
		return err
	}
	ctx, release, err := o.begin(parent, ActionRetryBatch)
	if err != nil {
		return err
	}
	defer release()

	o.mu.Lock()
	members := o.ledger.ErrorMembers(key, o.items)
	if len(members) == 0 {
		o.ledger.Reconcile(o.items, o.opts.Planner.StandardSize)
		o.touchLocked()
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	log.Info("retrying batch %s (%d errored items)", key, len(members))
	res, err := o.submit(ctx, batch.Batch{Key: key, Items: members}, s, batch.BatchLead)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil && res.failed() {
		if entry, ok := o.ledger.Get(key); ok {
			snap := make([]subtitle.Item, 0, len(entry.Items))
			for _, id := range entry.IDs() {
				if pos := o.indexLocked(id); pos >= 0 {
					snap = append(snap, o.items[pos])
				}
			}
			o.ledger.Upsert(key, snap)
		}
		log.Warn("batch %s still has %d failing items", key, res.errors)
	}
	o.ledger.Reconcile(o.items, o.opts.Planner.StandardSize)
	o.touchLocked()

	if err != nil {
		return retryError(err, "batch retry failed")
	}
	return nil
}

// RetryAll retries every ledger entry with live errors, one after another.
// It stops at the first cancellation or run-level gateway error.
func (o *Orchestrator) RetryAll(ctx context.Context) error {
	for _, v := range o.FailedBatches() {
		if !v.HasErrors {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		if err := o.RetryBatch(ctx, v.Key); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) lastSettings() (callSettings, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.doc == nil {
		return callSettings{}, NewError(ErrNotFound, "no subtitle loaded")
	}
	if o.last == nil {
		return callSettings{}, NewError(ErrValidation, "no translation settings yet, start a run first")
	}
	return o.last.settings(), nil
}

func retryError(err error, msg string) error {
	if IsCancelled(err) {
		return ErrCancelled
	}
	if errors.Is(err, translator.ErrFatal) {
		return WrapError(err, ErrGateway, msg)
	}
	return WrapError(err, ErrBatch, msg)
}
