package octree

import (
	"sort"

	"github.com/Orrigine/OverScoped/math32"
)

const leafCacheSize = 4096

// Octree is an immutable snapshot of a built volume: the node arena, the
// address index and the link table. It is safe for concurrent readers.
type Octree struct {
	volume     Volume
	nodes      []Node
	index      map[Address]int32
	links      LinkTable
	adjacency  [][]int32
	generation uint64
	stats      Stats

	// leafCache maps max depth cells to leaf indices; it is the only
	// mutable part of a snapshot and carries its own lock.
	leafCache *math32.Cache[MortonCode, int32]
}

func newOctree(vol Volume, capacity int) *Octree {
	return &Octree{
		volume:    vol,
		nodes:     make([]Node, 0, capacity),
		index:     make(map[Address]int32, capacity),
		leafCache: math32.NewCache[MortonCode, int32](leafCacheSize),
	}
}

// Volume returns the volume the tree was built for.
func (t *Octree) Volume() Volume {
	return t.volume
}

// Generation increases by one with every build or rebuild of a volume.
func (t *Octree) Generation() uint64 {
	return t.generation
}

// Stats returns the build statistics of this snapshot.
func (t *Octree) Stats() Stats {
	return t.stats
}

// Len returns the number of nodes in the arena.
func (t *Octree) Len() int {
	return len(t.nodes)
}

// Root returns the root node.
func (t *Octree) Root() Node {
	return t.nodes[0]
}

// NodeAt returns the arena slot idx.
func (t *Octree) NodeAt(idx int32) Node {
	return t.nodes[idx]
}

// Lookup returns the node with exactly this address.
func (t *Octree) Lookup(a Address) (Node, bool) {
	idx, ok := t.index[a]
	if !ok {
		return Node{}, false
	}
	return t.nodes[idx], true
}

// IndexOf returns the arena index of the node with exactly this address.
func (t *Octree) IndexOf(a Address) (int32, bool) {
	idx, ok := t.index[a]
	return idx, ok
}

// Children returns the children of idx, or nil for a leaf.
func (t *Octree) Children(idx int32) []Node {
	n := t.nodes[idx]
	if n.IsLeaf() {
		return nil
	}
	return t.nodes[n.FirstChild : n.FirstChild+8]
}

// Resolve walks from the root along a's child indices and returns the index
// of the deepest existing node on that path: a itself, or the leaf that
// covers it.
func (t *Octree) Resolve(a Address) int32 {
	idx := int32(0)
	for level := uint8(1); level <= a.Depth; level++ {
		n := &t.nodes[idx]
		if n.IsLeaf() {
			return idx
		}
		idx = n.FirstChild + int32(a.ChildIndex(level))
	}
	return idx
}

// LeafIndexAt returns the index of the leaf containing p.
func (t *Octree) LeafIndexAt(p math32.Vector3) (int32, bool) {
	cell, ok := t.volume.CellAt(p, t.volume.MaxDepth)
	if !ok {
		return noIndex, false
	}
	if idx, ok := t.leafCache.Get(cell.Code); ok {
		return idx, true
	}
	idx := t.Resolve(cell)
	t.leafCache.Put(cell.Code, idx)
	return idx, true
}

// LeafAt returns the leaf containing p.
func (t *Octree) LeafAt(p math32.Vector3) (Node, bool) {
	idx, ok := t.LeafIndexAt(p)
	if !ok {
		return Node{}, false
	}
	return t.nodes[idx], true
}

// Links returns the link table of the snapshot.
func (t *Octree) Links() LinkTable {
	return t.links
}

// NeighborIndices returns the arena indices linked from the Open node idx.
func (t *Octree) NeighborIndices(idx int32) []int32 {
	return t.adjacency[idx]
}

// LeafCacheStats reports how often point lookups hit the cache.
func (t *Octree) LeafCacheStats() math32.CacheStats {
	return t.leafCache.Stats()
}

// Classification returns the occupancy of every node keyed by address. Two
// builds of the same inputs return equal maps.
func (t *Octree) Classification() map[Address]Occupancy {
	out := make(map[Address]Occupancy, len(t.nodes))
	for _, n := range t.nodes {
		out[n.Address] = n.State
	}
	return out
}

// OpenIndices returns the arena indices of every Open node in arena order.
func (t *Octree) OpenIndices() []int32 {
	out := make([]int32, 0, t.stats.Open)
	for i := range t.nodes {
		if t.nodes[i].State == Open {
			out = append(out, int32(i))
		}
	}
	return out
}

// LinkTable maps every Open node to its traversable neighbours.
type LinkTable struct {
	entries map[Address][]Address
}

// Neighbors returns the neighbours of a, or nil when a is not Open.
func (lt LinkTable) Neighbors(a Address) []Address {
	return lt.entries[a]
}

// Has reports whether a has an entry.
func (lt LinkTable) Has(a Address) bool {
	_, ok := lt.entries[a]
	return ok
}

// Len returns the number of entries.
func (lt LinkTable) Len() int {
	return len(lt.entries)
}

// EdgeCount returns the number of directed links.
func (lt LinkTable) EdgeCount() int {
	n := 0
	for _, e := range lt.entries {
		n += len(e)
	}
	return n
}

// Each calls fn for every entry in address order until fn returns false.
func (lt LinkTable) Each(fn func(Address, []Address) bool) {
	keys := make([]Address, 0, len(lt.entries))
	for a := range lt.entries {
		keys = append(keys, a)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, a := range keys {
		if !fn(a, lt.entries[a]) {
			return
		}
	}
}
