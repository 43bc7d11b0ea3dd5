package octree

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
)

// reuseFunc returns a previously computed entry for an Open node when that
// entry is known to be unchanged.
type reuseFunc func(n *Node) ([]Address, bool)

// buildLinks fills the link table for every Open node, using at most
// workers goroutines. It returns the number of entries computed from the
// tree (as opposed to reused).
func (t *Octree) buildLinks(ctx context.Context, workers int, reuse reuseFunc) (int, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	open := t.OpenIndices()
	entries := make([][]Address, len(open))
	regenerated := make([]bool, len(open))

	chunk := (len(open) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(open); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(open))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				n := &t.nodes[open[i]]
				if reuse != nil {
					if prev, ok := reuse(n); ok {
						entries[i] = prev
						continue
					}
				}
				entries[i] = t.linksFor(open[i])
				regenerated[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	t.links = LinkTable{entries: make(map[Address][]Address, len(open))}
	t.adjacency = make([][]int32, len(t.nodes))
	count := 0
	for i, idx := range open {
		addr := t.nodes[idx].Address
		t.links.entries[addr] = entries[i]
		adj := make([]int32, len(entries[i]))
		for j, nb := range entries[i] {
			nbIdx, ok := t.index[nb]
			if !ok {
				panic("octree: link to missing node " + nb.String())
			}
			adj[j] = nbIdx
		}
		t.adjacency[idx] = adj
		if regenerated[i] {
			count++
		}
	}
	return count, nil
}

// linksFor resolves the 26 same-depth neighbour cells of the Open node idx.
func (t *Octree) linksFor(idx int32) []Address {
	n := t.nodes[idx]
	depth := n.Address.Depth
	res := int32(t.volume.Resolution(depth))
	cell := n.Address.Cell()
	eps := t.volume.epsilon()

	seen := make(map[int32]struct{}, 26)
	var found []int32
	add := func(j int32) {
		if _, dup := seen[j]; dup {
			return
		}
		seen[j] = struct{}{}
		found = append(found, j)
	}

	for _, off := range math32.NeighborOffsets26 {
		c := cell.Add(off)
		if !c.InRange(res) {
			continue
		}
		j := t.Resolve(AddressOf(depth, c))
		m := &t.nodes[j]
		if m.IsLeaf() {
			if m.State == Open {
				add(j)
			}
			continue
		}
		t.collectTouching(j, n.Bounds, eps, add)
	}

	sort.Slice(found, func(a, b int) bool { return found[a] < found[b] })
	out := make([]Address, len(found))
	for i, j := range found {
		out[i] = t.nodes[j].Address
	}
	return out
}

// collectTouching calls add for every Open leaf below idx whose box touches box.
func (t *Octree) collectTouching(idx int32, box geometry.AABB, eps float32, add func(int32)) {
	stack := []int32{idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[cur]
		if n.IsLeaf() {
			if n.State == Open {
				add(cur)
			}
			continue
		}
		for i := int32(0); i < 8; i++ {
			child := n.FirstChild + i
			if t.nodes[child].Bounds.Touches(box, eps) {
				stack = append(stack, child)
			}
		}
	}
}
