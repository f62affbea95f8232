package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

func fail(items []subtitle.Item, ids ...int) {
	for _, id := range ids {
		items[id-1].Status = subtitle.StatusError
		items[id-1].Error = "boom"
	}
}

func TestLedgerUpsertDeduplicates(t *testing.T) {
	items := makeItems(20)
	l := NewLedger()

	l.Upsert(Key{10, 0}, items[:10])
	l.Upsert(Key{10, 0}, items[:10])
	l.Upsert(Key{10, 1}, items[10:20])
	require.Equal(t, 2, l.Len())

	// a large entry covering both replaces them
	l.Upsert(Key{20, 0}, items[:20])
	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Key{20, 0}, entries[0].Key)
}

func TestLedgerRemoveIdempotent(t *testing.T) {
	items := makeItems(10)
	l := NewLedger()
	l.Upsert(Key{10, 0}, items)

	l.Remove(Key{10, 0})
	l.Remove(Key{10, 0})
	l.Remove(Key{10, 7})
	assert.Equal(t, 0, l.Len())
}

func TestLedgerSnapshotIsCopied(t *testing.T) {
	items := makeItems(10)
	l := NewLedger()
	l.Upsert(Key{10, 0}, items)

	items[0].Text = "changed"
	e, ok := l.Get(Key{10, 0})
	require.True(t, ok)
	assert.Equal(t, "line 1", e.Items[0].Text)
}

func TestLedgerReconcileDropsCleanEntries(t *testing.T) {
	items := makeItems(10)
	translate(items, 1, 2, 4, 5, 6, 8, 9, 10)
	fail(items, 3, 7)

	l := NewLedger()
	l.Upsert(Key{10, 0}, items)

	translate(items, 3)
	l.Reconcile(items, 10)
	require.Equal(t, 1, l.Len())
	assert.True(t, l.HasErrors(Key{10, 0}, items))
	assert.Equal(t, []int{7}, idsOf(l.ErrorMembers(Key{10, 0}, items)))

	translate(items, 7)
	l.Reconcile(items, 10)
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.HasErrors(Key{10, 0}, items))
}

func TestLedgerReconcileIdempotent(t *testing.T) {
	items := makeItems(40)
	fail(items, 2, 15, 16, 39)

	l := NewLedger()
	l.Upsert(Key{30, 0}, items[:30])
	l.Reconcile(items, 10)
	first := l.Entries()

	l.Reconcile(items, 10)
	assert.Equal(t, first, l.Entries())

	require.Len(t, first, 2)
	assert.Equal(t, Key{30, 0}, first[0].Key)
	assert.Equal(t, Key{10, 3}, first[1].Key)
	assert.Equal(t, []int{39}, first[1].IDs())
}

func TestLedgerReconcileGroupsOrphans(t *testing.T) {
	items := makeItems(25)
	fail(items, 3, 9, 12, 25)

	l := NewLedger()
	l.Reconcile(items, 10)

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Key{10, 0}, entries[0].Key)
	assert.Equal(t, []int{3, 9}, entries[0].IDs())
	assert.Equal(t, Key{10, 1}, entries[1].Key)
	assert.Equal(t, Key{10, 2}, entries[2].Key)
}

func TestLedgerReconcileMergesIntoSameKey(t *testing.T) {
	items := makeItems(20)
	fail(items, 6, 7, 2)

	l := NewLedger()
	// a batch that started at item 6 has derived index 0 at size 10
	l.Upsert(KeyFor(6, 10), items[5:15])
	l.Reconcile(items, 10)

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Key{10, 0}, entries[0].Key)
	assert.Contains(t, entries[0].IDs(), 2)
	assert.Contains(t, entries[0].IDs(), 6)
}

func TestLedgerViews(t *testing.T) {
	items := makeItems(10)
	fail(items, 4)

	l := NewLedger()
	l.Upsert(Key{10, 0}, items)
	views := l.Views(items)
	require.Len(t, views, 1)
	assert.True(t, views[0].HasErrors)
	assert.Equal(t, []int{4}, views[0].ErrorIDs)

	translate(items, 4)
	views = l.Views(items)
	assert.False(t, views[0].HasErrors)
}

func idsOf(items []subtitle.Item) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
