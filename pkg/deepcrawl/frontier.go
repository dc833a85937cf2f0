package deepcrawl

import "container/heap"

// frontierItem is one pending URL, carrying the metadata the final
// result needs (depth) and the priority Best-First pops by (score).
type frontierItem struct {
	url   string
	depth int
	score float64
}

// frontier is the pluggable pop-order abstraction BFS/DFS/Best-First
// share: BFS/DFS are a slice-backed queue/stack (grounded on
// internal/crawler.URLQueue's slice+mutex shape, generalized to also
// pop from the tail for DFS), Best-First is a container/heap priority
// queue (stdlib — no third-party priority queue appears in the pack).
type frontier interface {
	push(item frontierItem)
	pop() (frontierItem, bool)
	len() int
}

type bfsFrontier struct{ items []frontierItem }

func (f *bfsFrontier) push(item frontierItem) { f.items = append(f.items, item) }
func (f *bfsFrontier) len() int               { return len(f.items) }
func (f *bfsFrontier) pop() (frontierItem, bool) {
	if len(f.items) == 0 {
		return frontierItem{}, false
	}
	item := f.items[0]
	f.items = f.items[1:]
	return item, true
}

type dfsFrontier struct{ items []frontierItem }

func (f *dfsFrontier) push(item frontierItem) { f.items = append(f.items, item) }
func (f *dfsFrontier) len() int               { return len(f.items) }
func (f *dfsFrontier) pop() (frontierItem, bool) {
	if len(f.items) == 0 {
		return frontierItem{}, false
	}
	last := len(f.items) - 1
	item := f.items[last]
	f.items = f.items[:last]
	return item, true
}

// priorityFrontier orders by score descending via container/heap.
type priorityFrontier struct{ h scoreHeap }

func newPriorityFrontier() *priorityFrontier {
	pf := &priorityFrontier{}
	heap.Init(&pf.h)
	return pf
}

func (f *priorityFrontier) push(item frontierItem) { heap.Push(&f.h, item) }
func (f *priorityFrontier) len() int               { return f.h.Len() }
func (f *priorityFrontier) pop() (frontierItem, bool) {
	if f.h.Len() == 0 {
		return frontierItem{}, false
	}
	return heap.Pop(&f.h).(frontierItem), true
}

type scoreHeap []frontierItem

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return h[i].score > h[j].score } // max-heap
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)         { *h = append(*h, x.(frontierItem)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Strategy selects which frontier order a Crawler uses.
type Strategy string

const (
	StrategyBFS       Strategy = "bfs"
	StrategyDFS       Strategy = "dfs"
	StrategyBestFirst Strategy = "best_first"
)

func newFrontier(s Strategy) frontier {
	switch s {
	case StrategyDFS:
		return &dfsFrontier{}
	case StrategyBestFirst:
		return newPriorityFrontier()
	default:
		return &bfsFrontier{}
	}
}
