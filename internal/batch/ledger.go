package batch

import (
	"sort"

	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

// Entry is one failed batch. Items is the snapshot from the batch's last
// execution attempt and is only for display; live status comes from the
// item list.
type Entry struct {
	Key   Key             `json:"key"`
	Items []subtitle.Item `json:"items"`
}

func (e Entry) IDs() []int {
	ids := make([]int, len(e.Items))
	for i, it := range e.Items {
		ids[i] = it.ID
	}
	return ids
}

func (e Entry) has(id int) bool {
	for _, it := range e.Items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (e Entry) overlaps(o Entry) bool {
	for _, it := range o.Items {
		if e.has(it.ID) {
			return true
		}
	}
	return false
}

func (e Entry) clone() Entry {
	e.Items = subtitle.CloneItems(e.Items)
	return e
}

// View is an entry joined with live item state.
type View struct {
	Key       Key             `json:"key"`
	Items     []subtitle.Item `json:"items"`
	ErrorIDs  []int           `json:"error_ids"`
	HasErrors bool            `json:"has_errors"`
}

// Ledger indexes batches currently in error. At most one entry exists per
// key and no two entries share a member.
type Ledger struct {
	entries []Entry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Upsert records a failed batch, replacing the entry with the same key and
// any entry that shares a member with it.
func (l *Ledger) Upsert(key Key, items []subtitle.Item) {
	next := Entry{Key: key, Items: subtitle.CloneItems(items)}

	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.Key == key || e.overlaps(next) {
			continue
		}
		kept = append(kept, e)
	}
	l.entries = append(kept, next)
	l.sort()
}

// Remove drops the entry for key. Absent keys are a no-op.
func (l *Ledger) Remove(key Key) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

func (l *Ledger) Clear() {
	l.entries = nil
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Get(key Key) (Entry, bool) {
	for _, e := range l.entries {
		if e.Key == key {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Entries returns a copy ordered by first member id.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Reconcile rebuilds the ledger from item status:
//   - entries with no member in error are dropped;
//   - errored items not covered by any entry are grouped by their derived
//     index at batchSize, merging into an existing entry of that key.
//
// Calling it again without item changes yields the same ledger.
func (l *Ledger) Reconcile(all []subtitle.Item, batchSize int) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if len(liveErrors(all, e)) > 0 {
			kept = append(kept, e)
		}
	}
	l.entries = kept

	covered := make(map[int]bool)
	for _, e := range l.entries {
		for _, it := range e.Items {
			covered[it.ID] = true
		}
	}

	for _, it := range all {
		if it.Status != subtitle.StatusError || covered[it.ID] {
			continue
		}
		key := KeyFor(it.ID, batchSize)
		if i := l.indexOf(key); i >= 0 {
			l.entries[i].Items = append(l.entries[i].Items, it)
			sortItems(l.entries[i].Items)
		} else {
			l.entries = append(l.entries, Entry{Key: key, Items: []subtitle.Item{it}})
		}
		covered[it.ID] = true
	}
	l.sort()
}

// Views joins entries with the live item list.
func (l *Ledger) Views(all []subtitle.Item) []View {
	views := make([]View, 0, len(l.entries))
	for _, e := range l.entries {
		errs := liveErrors(all, e)
		views = append(views, View{
			Key:       e.Key,
			Items:     subtitle.CloneItems(e.Items),
			ErrorIDs:  errs,
			HasErrors: len(errs) > 0,
		})
	}
	return views
}

// HasErrors reports whether any member of the entry for key is in error
// right now.
func (l *Ledger) HasErrors(key Key, all []subtitle.Item) bool {
	e, ok := l.Get(key)
	return ok && len(liveErrors(all, e)) > 0
}

// ErrorMembers returns the live items of the entry for key that are in
// error, in id order.
func (l *Ledger) ErrorMembers(key Key, all []subtitle.Item) []subtitle.Item {
	e, ok := l.Get(key)
	if !ok {
		return nil
	}
	var out []subtitle.Item
	for _, id := range liveErrors(all, e) {
		out = append(out, all[positionOf(all, id)])
	}
	return out
}

func (l *Ledger) indexOf(key Key) int {
	for i, e := range l.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

func (l *Ledger) sort() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		return firstID(l.entries[i]) < firstID(l.entries[j])
	})
}

func firstID(e Entry) int {
	if len(e.Items) == 0 {
		return 0
	}
	return e.Items[0].ID
}

func liveErrors(all []subtitle.Item, e Entry) []int {
	var ids []int
	for _, snap := range e.Items {
		pos := positionOf(all, snap.ID)
		if pos >= 0 && all[pos].Status == subtitle.StatusError {
			ids = append(ids, snap.ID)
		}
	}
	return ids
}

func sortItems(items []subtitle.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
