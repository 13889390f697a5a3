package bvh

import (
	"sync/atomic"

	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
	"golang.org/x/sync/errgroup"
)

// Per-triangle data used while partitioning.
type triangleInfo struct {
	index    uint32
	centroid types.Vec3
	bbox     types.AABB
}

// A SAH bin accumulates the triangles whose centroids fall inside it.
type bin struct {
	count int
	bbox  types.AABB
}

type splitCandidate struct {
	axis int
	bin  int
	cost float32

	// Bin mapping used to classify centroids along axis.
	binCount int
	origin   float32
	scale    float32

	childBounds [2]types.AABB
}

type buildStats struct {
	leafs    atomic.Int32
	interior atomic.Int32
	maxDepth atomic.Int32
}

type builder struct {
	logger log.Logger
	opts   Options

	vertices  []types.Vec3
	triangles []BuildTriangle

	// Partitioned in place; scratch provides the temporary storage for
	// stable partitioning. Tasks only touch the [start, end) window they own
	// in both slices.
	infos   []triangleInfo
	scratch []triangleInfo

	arena *buildArena

	// The number of linear node slots required for the tree built so far.
	slots atomic.Uint32

	// Pool for building large subtrees; nil for single-threaded builds.
	group *errgroup.Group

	stats buildStats
}

func newBuilder(vertices []types.Vec3, triangles []BuildTriangle, opts Options) *builder {
	b := &builder{
		logger:    log.New("bvh builder"),
		opts:      opts,
		vertices:  vertices,
		triangles: triangles,
		infos:     make([]triangleInfo, len(triangles)),
		scratch:   make([]triangleInfo, len(triangles)),
		arena:     newBuildArena(len(triangles)),
	}

	if opts.Workers > 1 {
		b.group = new(errgroup.Group)
		// The calling goroutine builds too.
		b.group.SetLimit(opts.Workers - 1)
	}

	for index := range triangles {
		b.infos[index] = newTriangleInfo(uint32(index), &triangles[index], vertices)
	}

	return b
}

// Calculate the bounds and centroid of a triangle. Triangles with non-finite
// vertices get an empty box so they never widen the bounds of the nodes
// that contain them; they can never be hit anyway.
func newTriangleInfo(index uint32, tri *BuildTriangle, vertices []types.Vec3) triangleInfo {
	info := triangleInfo{index: index, bbox: types.EmptyAABB()}

	p0, p1, p2 := tri.vertices(vertices)
	if !p0.IsFinite() || !p1.IsFinite() || !p2.IsFinite() {
		return info
	}

	info.bbox = info.bbox.Extend(p0).Extend(p1).Extend(p2)
	info.centroid = info.bbox.Center()
	return info
}

// Build the tree and return the arena index of the root node. Blocks until
// all spawned tasks complete.
func (b *builder) run() (uint32, error) {
	root, err := b.build(0, len(b.infos), 0)
	if b.group != nil {
		if waitErr := b.group.Wait(); err == nil {
			err = waitErr
		}
	}
	return root, err
}

// Partition infos[start:end) and return the arena index of the generated node.
func (b *builder) build(start, end, depth int) (uint32, error) {
	b.trackDepth(depth)

	n := end - start
	bounds := types.EmptyAABB()
	centroidBounds := types.EmptyAABB()
	for index := start; index < end; index++ {
		bounds = bounds.Union(b.infos[index].bbox)
		centroidBounds = centroidBounds.Extend(b.infos[index].centroid)
	}

	// Do we have enough items for partitioning? If not create a leaf
	centroidExtent := centroidBounds.Extent()
	if n <= packetWidth || depth > b.opts.MaxDepth ||
		(centroidExtent[0] <= 0 && centroidExtent[1] <= 0 && centroidExtent[2] <= 0) {
		return b.createLeaf(start, end)
	}

	// Small ranges become leafs regardless of the split cost
	packed := packetsFor(n)
	if packed <= b.opts.LeafPacketLimit {
		return b.createLeaf(start, end)
	}

	// If we can't find a split that improves the leaf cost create a leaf
	split, found := b.findSplit(start, end, bounds, centroidBounds)
	leafCost := b.opts.IntersectionCost * float32(packed)
	if !found || !(split.cost < leafCost) {
		return b.createLeaf(start, end)
	}

	mid := b.partition(start, end, &split)
	if mid == start || mid == end {
		return b.createLeaf(start, end)
	}

	nodeIndex, err := b.arena.allocNode()
	if err != nil {
		return 0, err
	}
	b.slots.Add(1)
	b.stats.interior.Add(1)
	b.arena.nodes[nodeIndex].childBounds = split.childBounds

	if n >= b.opts.ParallelThreshold && b.group != nil {
		if err = b.spawn(nodeIndex, 0, start, mid, depth+1); err != nil {
			return 0, err
		}
		if err = b.spawn(nodeIndex, 1, mid, end, depth+1); err != nil {
			return 0, err
		}
		return nodeIndex, nil
	}

	left, err := b.build(start, mid, depth+1)
	if err != nil {
		return 0, err
	}
	right, err := b.build(mid, end, depth+1)
	if err != nil {
		return 0, err
	}
	b.arena.nodes[nodeIndex].children = [2]uint32{left, right}
	return nodeIndex, nil
}

// Build a child subtree on the pool and store its index in the parent once it
// completes. If the pool is saturated the subtree is built inline.
func (b *builder) spawn(parent uint32, child int, start, end, depth int) error {
	task := func() error {
		index, err := b.build(start, end, depth)
		if err != nil {
			return err
		}
		b.arena.nodes[parent].children[child] = index
		return nil
	}

	if b.group.TryGo(task) {
		return nil
	}
	return task()
}

// Pack infos[start:end) into Triangle4 records and create a leaf for them.
func (b *builder) createLeaf(start, end int) (uint32, error) {
	count := uint32(packetsFor(end - start))

	nodeIndex, err := b.arena.allocNode()
	if err != nil {
		return 0, err
	}
	packetStart, err := b.arena.allocPackets(count)
	if err != nil {
		return 0, err
	}

	for packet := uint32(0); packet < count; packet++ {
		first := start + int(packet)*packetWidth
		last := first + packetWidth
		if last > end {
			last = end
		}
		b.arena.packets[packetStart+packet] = packTriangle4(b.vertices, b.triangles, b.infos[first:last])
	}

	node := &b.arena.nodes[nodeIndex]
	node.packetStart = packetStart
	node.packetCount = count

	b.slots.Add(count)
	b.stats.leafs.Add(1)
	return nodeIndex, nil
}

// Evaluate the SAH cost of all bin boundaries along each axis with a non-zero
// centroid extent and return the cheapest one. Axes are scanned in x, y, z
// order and boundaries from left to right; a candidate only replaces the
// current best if it is strictly cheaper.
func (b *builder) findSplit(start, end int, bounds, centroidBounds types.AABB) (splitCandidate, bool) {
	n := end - start
	binCount := b.opts.MinBins + int(b.opts.BinsPerTriangle*float32(n))
	if binCount > b.opts.MaxBins {
		binCount = b.opts.MaxBins
	}

	var invArea float32
	if area := bounds.Area(); area > 0 {
		invArea = 1.0 / area
	}

	bins := make([]bin, binCount)
	rightArea := make([]float32, binCount)
	rightCount := make([]int, binCount)

	best := splitCandidate{axis: -1}
	centroidExtent := centroidBounds.Extent()
	for axis := 0; axis < 3; axis++ {
		if !(centroidExtent[axis] > 0) {
			continue
		}

		candidate := splitCandidate{
			axis:     axis,
			binCount: binCount,
			origin:   centroidBounds.Min[axis],
			scale:    float32(binCount) / centroidExtent[axis],
		}

		for index := range bins {
			bins[index] = bin{bbox: types.EmptyAABB()}
		}
		for index := start; index < end; index++ {
			info := &b.infos[index]
			binIndex := candidate.binOf(info.centroid)
			bins[binIndex].count++
			bins[binIndex].bbox = bins[binIndex].bbox.Union(info.bbox)
		}

		// Sweep right to left accumulating the area and count of the
		// bins to the right of each boundary
		accBox := types.EmptyAABB()
		accCount := 0
		for index := binCount - 1; index > 0; index-- {
			accBox = accBox.Union(bins[index].bbox)
			accCount += bins[index].count
			rightArea[index] = accBox.Area()
			rightCount[index] = accCount
		}

		// Sweep left to right and evaluate the SAH at each boundary
		accBox = types.EmptyAABB()
		accCount = 0
		for index := 1; index < binCount; index++ {
			accBox = accBox.Union(bins[index-1].bbox)
			accCount += bins[index-1].count
			if accCount == 0 || rightCount[index] == 0 {
				continue
			}

			cost := b.opts.TraversalCost + b.opts.IntersectionCost*
				(float32(packetsFor(accCount))*accBox.Area()+float32(packetsFor(rightCount[index]))*rightArea[index])*invArea
			if best.axis == -1 || cost < best.cost {
				best = candidate
				best.bin = index
				best.cost = cost
				best.childBounds[0] = accBox
			}
		}

		// Fill in the right child bounds for the selected boundary
		if best.axis == axis {
			rightBox := types.EmptyAABB()
			for index := best.bin; index < binCount; index++ {
				rightBox = rightBox.Union(bins[index].bbox)
			}
			best.childBounds[1] = rightBox
		}
	}

	return best, best.axis != -1
}

// Map a centroid to its bin along the candidate axis.
func (c *splitCandidate) binOf(centroid types.Vec3) int {
	index := int((centroid[c.axis] - c.origin) * c.scale)
	if index < 0 {
		return 0
	}
	if index >= c.binCount {
		return c.binCount - 1
	}
	return index
}

// Stable-partition infos[start:end) so that triangles whose centroid maps to a
// bin left of the split boundary come first. Returns the index of the first
// triangle of the right partition.
func (b *builder) partition(start, end int, split *splitCandidate) int {
	left := start
	right := start
	for index := start; index < end; index++ {
		info := b.infos[index]
		if split.binOf(info.centroid) < split.bin {
			b.infos[left] = info
			left++
		} else {
			b.scratch[right] = info
			right++
		}
	}
	copy(b.infos[left:end], b.scratch[start:right])
	return left
}

func (b *builder) trackDepth(depth int) {
	for {
		cur := b.stats.maxDepth.Load()
		if int32(depth) <= cur || b.stats.maxDepth.CompareAndSwap(cur, int32(depth)) {
			return
		}
	}
}

// Number of Triangle4 records needed for count triangles.
func packetsFor(count int) int {
	return (count + packetWidth - 1) / packetWidth
}
