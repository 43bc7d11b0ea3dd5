package query

import "sync"

// heapNode is an entry of the open set.
type heapNode struct {
	nodeID int32
	fScore float32
	gScore float32
	seq    uint64
	index  int
}

// nodeHeap orders by lower f, then by larger g, then by push order.
type nodeHeap []*heapNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.fScore != b.fScore {
		return a.fScore < b.fScore
	}
	if a.gScore != b.gScore {
		return a.gScore > b.gScore
	}
	return a.seq < b.seq
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push pushes a new node to the heap
func (h *nodeHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*heapNode)
	item.index = n
	*h = append(*h, item)
}

// Pop pops a node from the heap
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Clear returns every entry to the pool.
func (h *nodeHeap) Clear() {
	for _, node := range *h {
		heapNodePool.Put(node)
	}
	*h = (*h)[:0]
}

var heapNodePool = sync.Pool{
	New: func() interface{} {
		return &heapNode{index: -1}
	},
}

func newHeapNode(nodeID int32, f, g float32, seq uint64) *heapNode {
	node := heapNodePool.Get().(*heapNode)
	node.nodeID = nodeID
	node.fScore = f
	node.gScore = g
	node.seq = seq
	node.index = -1
	return node
}
