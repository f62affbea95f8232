package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// Executor runs one action. Returning an error wrapping context.Canceled
// marks the action cancelled rather than failed.
type Executor func(ctx context.Context, action *Action) error

// Queue runs orchestrator actions in submission order. Actions with the
// same dedupe key collapse while one is still pending or running.
type Queue struct {
	workerCount int
	maxActions  int

	mu         sync.RWMutex
	actions    map[string]*Action
	dedupe     map[string]string
	seq        uint64
	started    bool
	pendingIDs chan string
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		workerCount: workerCount,
		maxActions:  200,
		actions:     make(map[string]*Action),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 256),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (q *Queue) Enqueue(req EnqueueRequest) (*Action, bool) {
	now := time.Now()

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.actions[id]; exists {
			snapshot := cloneAction(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	q.seq++
	action := &Action{
		ID:        uuid.NewString(),
		seq:       q.seq,
		Kind:      req.Kind,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.actions[action.ID] = action
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = action.ID
	}
	started := q.started
	snapshot := cloneAction(action)
	q.mu.Unlock()

	log.Debug("queued %s action %s", action.Kind, action.ID)
	if started {
		q.enqueuePendingID(action.ID)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*Action, bool) {
	q.mu.RLock()
	action, ok := q.actions[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneAction(action), true
}

// List returns all known actions, oldest first.
func (q *Queue) List() []*Action {
	q.mu.RLock()
	ret := make([]*Action, 0, len(q.actions))
	for _, action := range q.actions {
		ret = append(ret, cloneAction(action))
	}
	q.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].seq < ret[j].seq
	})
	return ret
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]*Action, 0)
	for _, action := range q.actions {
		if action.Status == StatusPending {
			pending = append(pending, action)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].seq < pending[j].seq
	})
	q.mu.Unlock()

	for _, action := range pending {
		q.enqueuePendingID(action.ID)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop cancels the running action and waits for workers to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.pendingIDs:
			action, ok := q.markRunning(id)
			if !ok {
				continue
			}
			q.finish(id, exec(q.ctx, action))
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.ctx.Done():
			}
		}()
	}
}

func (q *Queue) markRunning(id string) (*Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	action, ok := q.actions[id]
	if !ok || action.Status != StatusPending {
		return nil, false
	}
	action.Status = StatusRunning
	action.UpdatedAt = time.Now()
	return cloneAction(action), true
}

func (q *Queue) finish(id string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	action, ok := q.actions[id]
	if !ok {
		return
	}

	switch {
	case err == nil:
		action.Status = StatusSuccess
		action.Error = ""
	case errors.Is(err, context.Canceled):
		action.Status = StatusCancelled
	default:
		action.Status = StatusFailed
		action.Error = err.Error()
		log.Warn("%s action %s failed: %v", action.Kind, action.ID, err)
	}
	action.UpdatedAt = time.Now()
	q.releaseDedupeLocked(action)
	q.pruneTerminalLocked()
}

func (q *Queue) releaseDedupeLocked(action *Action) {
	if action == nil || action.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[action.DedupeKey]; ok && id == action.ID {
		delete(q.dedupe, action.DedupeKey)
	}
}

func (q *Queue) pruneTerminalLocked() {
	if q.maxActions <= 0 || len(q.actions) <= q.maxActions {
		return
	}

	terminal := make([]*Action, 0, len(q.actions))
	for _, action := range q.actions {
		if action.Status.Terminal() {
			terminal = append(terminal, action)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].seq < terminal[j].seq
	})

	toRemove := min(len(q.actions)-q.maxActions, len(terminal))
	for _, action := range terminal[:toRemove] {
		q.releaseDedupeLocked(action)
		delete(q.actions, action.ID)
	}
}

func cloneAction(action *Action) *Action {
	if action == nil {
		return nil
	}
	tmp := *action
	return &tmp
}
