// Package bvh implements a two-way bounding volume hierarchy over triangle
// meshes. The hierarchy is built with a binned surface area heuristic,
// flattened into a pointer-free node list and queried with closest-hit and
// any-hit ray tests that intersect up to four triangles at a time.
package bvh

import (
	"time"

	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
)

// An immutable BVH. Once built it can be queried concurrently by any number
// of goroutines.
type BVH struct {
	nodes   []Node
	packets []Triangle4

	// Primitives are kept around for opacity lookups and validation. They
	// must not be modified while the BVH is in use.
	prims []Primitive

	bounds      types.AABB
	alphaCutoff float32

	opts  Options
	stats Stats
}

// Construct a BVH for a list of primitives. The triangles of each primitive
// are reported back by queries using the primitive's index in prims as the
// PrimID and the triangle's local index as the TriID.
//
// Build blocks until all build tasks complete. An empty primitive list yields
// a valid BVH that never reports any hits.
func Build(prims []Primitive, opts Options) (*BVH, error) {
	opts = opts.normalize()
	logger := log.New("bvh builder")

	start := time.Now()
	vertices, triangles, err := Extract(prims)
	if err != nil {
		return nil, err
	}

	bvh := &BVH{
		prims:       prims,
		bounds:      types.EmptyAABB(),
		alphaCutoff: opts.AlphaCutoff,
		opts:        opts,
	}

	if len(triangles) != 0 {
		b := newBuilder(vertices, triangles, opts)
		root, err := b.run()
		if err != nil {
			logger.Errorf("aborting BVH build: %v", err)
			return nil, err
		}
		bvh.nodes, bvh.packets = linearize(b.arena, root, b.slots.Load())

		for index := range b.infos {
			bvh.bounds = bvh.bounds.Union(b.infos[index].bbox)
		}
	}

	bvh.stats = bvh.collectStats()
	bvh.stats.BuildTime = time.Since(start)

	logger.Debugf(
		"BVH tree build time: %d ms, maxDepth: %d, slots: %d, leafs: %d, packets: %d, triangles: %d",
		bvh.stats.BuildTime.Nanoseconds()/1e6,
		bvh.stats.MaxDepth, bvh.stats.Slots, bvh.stats.Leafs, bvh.stats.Packets, bvh.stats.Triangles,
	)
	return bvh, nil
}

// Get the flattened node list. The returned slice must not be modified.
func (bvh *BVH) Nodes() []Node {
	return bvh.nodes
}

// Get the packet list. The returned slice must not be modified.
func (bvh *BVH) Packets() []Triangle4 {
	return bvh.packets
}

// Get the bounds of all finite scene triangles.
func (bvh *BVH) Bounds() types.AABB {
	return bvh.bounds
}

// Get build statistics.
func (bvh *BVH) Stats() Stats {
	return bvh.stats
}
