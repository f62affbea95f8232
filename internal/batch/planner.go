package batch

import (
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

const (
	DefaultStandardSize   = 10
	DefaultLargeSize      = 30
	DefaultLargeThreshold = 100
)

// Batch is a contiguous slice of the work queue submitted together.
type Batch struct {
	Key   Key
	Items []subtitle.Item
}

func (b Batch) IDs() []int {
	ids := make([]int, len(b.Items))
	for i, it := range b.Items {
		ids[i] = it.ID
	}
	return ids
}

func (b Batch) Texts() []string {
	texts := make([]string, len(b.Items))
	for i, it := range b.Items {
		texts[i] = it.Text
	}
	return texts
}

func (b Batch) FirstID() int {
	if len(b.Items) == 0 {
		return 0
	}
	return b.Items[0].ID
}

// Planner partitions a work queue into batches.
type Planner struct {
	StandardSize   int
	LargeSize      int
	LargeThreshold int
}

func NewPlanner(standard, large, threshold int) Planner {
	p := Planner{StandardSize: standard, LargeSize: large, LargeThreshold: threshold}
	if p.StandardSize <= 0 {
		p.StandardSize = DefaultStandardSize
	}
	if p.LargeSize < p.StandardSize {
		p.LargeSize = p.StandardSize
	}
	if p.LargeThreshold < 0 {
		p.LargeThreshold = DefaultLargeThreshold
	}
	return p
}

func DefaultPlanner() Planner {
	return NewPlanner(DefaultStandardSize, DefaultLargeSize, DefaultLargeThreshold)
}

// SizeFor picks the batch size for a whole run over queueLen items.
func (p Planner) SizeFor(queueLen int) int {
	if queueLen > p.LargeThreshold {
		return p.LargeSize
	}
	return p.StandardSize
}

// Plan slices queue into batches of SizeFor(len(queue)). The returned size
// is fixed for the run.
func (p Planner) Plan(queue []subtitle.Item) ([]Batch, int) {
	size := p.SizeFor(len(queue))
	return Slice(queue, size), size
}

// Subdivide re-slices a failed batch into standard-size sub-batches. It
// returns nil when the batch is already no larger than the standard size.
func (p Planner) Subdivide(b Batch) []Batch {
	if len(b.Items) <= p.StandardSize {
		return nil
	}
	return Slice(b.Items, p.StandardSize)
}

// Slice cuts items into contiguous batches of at most size items.
func Slice(items []subtitle.Item, size int) []Batch {
	if len(items) == 0 || size <= 0 {
		return nil
	}
	batches := make([]Batch, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk := subtitle.CloneItems(items[start:end])
		batches = append(batches, Batch{
			Key:   KeyFor(chunk[0].ID, size),
			Items: chunk,
		})
	}
	return batches
}

// Chunks splits n positions into [start,end) ranges of at most limit.
func Chunks(n, limit int) [][2]int {
	if n <= 0 {
		return nil
	}
	if limit <= 0 || limit >= n {
		return [][2]int{{0, n}}
	}
	var out [][2]int
	for start := 0; start < n; start += limit {
		out = append(out, [2]int{start, min(start+limit, n)})
	}
	return out
}
