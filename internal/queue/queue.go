// Package queue provides value-based binary heaps for nearest-neighbor search.
package queue

// Item is one candidate in a queue.
type Item struct {
	ID       int64   // ID is the row position or label carried by the candidate.
	Distance float32 // Distance is the priority of the item in the queue.
}

// PriorityQueue is a binary heap of Items.
// Value-based storage, no pointer indirection.
type PriorityQueue struct {
	isMaxHeap bool // true = max heap, false = min heap
	items     []Item
}

// NewMin initializes a new priority queue with minimum priority.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: false,
		items:     make([]Item, 0, capacity),
	}
}

// NewMax initializes a new priority queue with maximum priority.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: true,
		items:     make([]Item, 0, capacity),
	}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PopItem removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) PopItem() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

func (pq *PriorityQueue) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Distance == b.Distance {
		// Ties: larger ids surface first in a max heap, so the smaller id survives eviction.
		if pq.isMaxHeap {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	}
	if pq.isMaxHeap {
		return a.Distance > b.Distance
	}
	return a.Distance < b.Distance
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}

// TopK retains the k best items seen so far.
// With higherIsBetter unset lower distances win (L2); otherwise higher scores win (inner product).
type TopK struct {
	k              int
	higherIsBetter bool
	pq             *PriorityQueue // worst retained item on top
}

// NewTopK creates a bounded collector for k items.
func NewTopK(k int, higherIsBetter bool) *TopK {
	t := &TopK{k: k, higherIsBetter: higherIsBetter}
	if higherIsBetter {
		t.pq = NewMin(k)
	} else {
		t.pq = NewMax(k)
	}
	return t
}

// Len returns the number of retained items.
func (t *TopK) Len() int { return t.pq.Len() }

// Full reports whether k items are retained.
func (t *TopK) Full() bool { return t.pq.Len() >= t.k }

// Worst returns the weakest retained item.
func (t *TopK) Worst() (Item, bool) { return t.pq.TopItem() }

// Push offers a candidate and reports whether it was retained.
func (t *TopK) Push(id int64, score float32) bool {
	if t.k <= 0 {
		return false
	}
	if t.pq.Len() < t.k {
		t.pq.PushItem(Item{ID: id, Distance: score})
		return true
	}

	worst, _ := t.pq.TopItem()
	better := score < worst.Distance
	if t.higherIsBetter {
		better = score > worst.Distance
	}
	if !better {
		return false
	}

	t.pq.PopItem()
	t.pq.PushItem(Item{ID: id, Distance: score})
	return true
}

// Drain empties the collector and returns its items best first.
func (t *TopK) Drain() []Item {
	out := make([]Item, t.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = t.pq.PopItem()
	}
	return out
}
