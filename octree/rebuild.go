package octree

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Orrigine/OverScoped/geometry"
)

// Rebuild re-voxelizes the parts of prev overlapping region and returns a new
// snapshot; prev is left untouched. Subtrees outside region are copied, and
// only link entries of Open nodes touching a re-voxelized box are recomputed.
// A region covering the whole volume falls back to Build.
func (b *Builder) Rebuild(ctx context.Context, prev *Octree, region geometry.AABB, cq CollisionQuery) (*Octree, error) {
	if prev == nil {
		return nil, errors.Wrap(ErrInvalidVolume, "partial rebuild needs a previous snapshot")
	}
	if region.ContainsAABB(prev.volume.Bounds) {
		b.logger.Debugw("partial rebuild falling back to full build", "region", region)
		tree, err := b.Build(ctx, prev.volume, cq)
		if err != nil {
			return nil, err
		}
		tree.generation = prev.generation + 1
		tree.stats.Generation = tree.generation
		return tree, nil
	}
	if !region.Intersects(prev.volume.Bounds) {
		b.logger.Debugw("rebuild region outside volume, keeping snapshot", "region", region)
		return prev, nil
	}
	start := time.Now()

	c := b.classifier(prev.volume, cq)
	c.prev = prev
	r := &rebuilder{classifier: c, region: region}
	root, err := r.reclassify(ctx, 0)
	if err != nil {
		b.logger.Warnw("octree rebuild failed", "region", region, "error", err)
		return nil, err
	}

	tree := flatten(prev.volume, &root, prev)
	eps := prev.volume.epsilon()
	dirty, _ := Region(r.dirty...)
	reuse := func(n *Node) ([]Address, bool) {
		if len(r.dirty) > 0 && n.Bounds.Touches(dirty, eps) {
			for _, box := range r.dirty {
				if n.Bounds.Touches(box, eps) {
					return nil, false
				}
			}
		}
		entry := prev.links.entries[n.Address]
		return entry, prev.links.Has(n.Address)
	}
	regenerated, err := tree.buildLinks(ctx, b.parallelism, reuse)
	if err != nil {
		return nil, err
	}
	tree.generation = prev.generation + 1
	tree.finishStats(time.Since(start), regenerated)

	b.logger.Infow("octree rebuilt",
		"region", region,
		"dirty_boxes", len(r.dirty),
		"regenerated_links", regenerated,
		"nodes", tree.stats.Nodes,
		"total", tree.stats.Duration,
	)
	return tree, nil
}

type rebuilder struct {
	*classifier
	region geometry.AABB
	// dirty holds the boxes of every subtree whose content may have changed.
	dirty []geometry.AABB
}

func (r *rebuilder) reclassify(ctx context.Context, idx int32) (buildNode, error) {
	p := r.prev.nodes[idx]
	if !p.Bounds.Intersects(r.region) {
		return buildNode{ref: idx}, nil
	}
	if p.IsLeaf() {
		r.dirty = append(r.dirty, p.Bounds)
		return r.classify(ctx, p.Address, false)
	}

	var children [8]buildNode
	for i := int32(0); i < 8; i++ {
		child, err := r.reclassify(ctx, p.FirstChild+i)
		if err != nil {
			return buildNode{}, err
		}
		children[i] = child
	}
	out := r.collapse(&children)
	if out.children == nil {
		r.dirty = append(r.dirty, p.Bounds)
	}
	return out, nil
}
