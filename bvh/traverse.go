package bvh

import (
	"math"

	"github.com/achilleasa/polaris-bvh/types"
)

// Initial traversal stack capacity. The stack only grows past this for
// degenerate trees that approach the maximum build depth.
const stackSize = 64

// A ray segment. Hits are only reported for distances inside the open
// (TMin, TMax) interval.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3
	TMin   float32
	TMax   float32
}

// Create a ray with an unbounded extent.
func NewRay(origin, dir types.Vec3) Ray {
	return Ray{
		Origin: origin,
		Dir:    dir,
		TMin:   0,
		TMax:   float32(math.Inf(1)),
	}
}

// A closest-hit query result. Dist is both an input and an output: only hits
// closer than Dist are reported and every reported hit shrinks it.
type Intersection struct {
	PrimID uint32
	TriID  uint32

	// Barycentric hit coordinates; the hit point is (1-U-V)*p0 + U*p1 + V*p2.
	U float32
	V float32

	Dist float32
}

// Create an intersection that accepts hits at any distance.
func NewIntersection() Intersection {
	return Intersection{Dist: float32(math.Inf(1))}
}

type stackEntry struct {
	dist float32
	node uint32
}

// Per-ray data shared by the box and triangle tests.
type rayData struct {
	org    [3]types.Float4
	dir    [3]types.Float4
	invDir [3]types.Float4

	// True for axes with a negative direction component (including -0).
	// The near and far planes of the box test are swapped for these axes.
	negative [3]bool
}

func newRayData(ray *Ray) rayData {
	var rd rayData
	for axis := 0; axis < 3; axis++ {
		d := ray.Dir[axis]
		rd.org[axis] = types.Splat4(ray.Origin[axis])
		rd.dir[axis] = types.Splat4(d)
		// Zero components yield +Inf or -Inf depending on the zero sign
		rd.invDir[axis] = types.Splat4(1.0 / d)
		rd.negative[axis] = math.Signbit(float64(d))
	}
	return rd
}

// Slab test against both children of an interior node. Returns the
// (nearL, nearR, farL, farR) distances and a mask with bit 0 set if the left
// child is hit and bit 1 set if the right child is hit.
func (rd *rayData) intersectChildren(node *Node, tMin, tMax float32) (types.Float4, types.Mask4) {
	nearFar := types.Float4{tMin, tMin, tMax, tMax}
	for axis := 0; axis < 3; axis++ {
		t := node.Bounds[axis].Sub(rd.org[axis]).Mul(rd.invDir[axis])
		if rd.negative[axis] {
			t = t.SwapHalves()
		}
		nearFar = nearFar.NearFar(t)
	}
	return nearFar, nearFar.LessEq(nearFar.SwapHalves()) & 0x3
}

// Find the closest triangle hit by ray at a distance below both ray.TMax and
// isect.Dist. If a hit is found, isect is updated and Intersect returns true.
func (bvh *BVH) Intersect(ray Ray, isect *Intersection) bool {
	tMax := ray.TMax
	if isect.Dist < tMax {
		tMax = isect.Dist
	}
	if len(bvh.nodes) == 0 || !(ray.TMin < tMax) {
		return false
	}

	rd := newRayData(&ray)
	stack := make([]stackEntry, 0, stackSize)
	hit := false

	nodeIndex := uint32(0)
	for {
		node := &bvh.nodes[nodeIndex]
		if !node.IsLeaf() {
			nearFar, mask := rd.intersectChildren(node, ray.TMin, tMax)
			switch mask {
			case 0x3:
				// Visit the nearest child first
				if nearFar[0] <= nearFar[1] {
					stack = append(stack, stackEntry{dist: nearFar[1], node: node.Offset})
					nodeIndex++
				} else {
					stack = append(stack, stackEntry{dist: nearFar[0], node: nodeIndex + 1})
					nodeIndex = node.Offset
				}
				continue
			case 0x1:
				nodeIndex++
				continue
			case 0x2:
				nodeIndex = node.Offset
				continue
			}
		} else {
			for packet := node.Offset; packet < node.Offset+node.TriangleCount; packet++ {
				if bvh.intersectPacket(&bvh.packets[packet], &rd, ray.TMin, tMax, isect) {
					tMax = isect.Dist
					hit = true
				}
			}
		}

		// Pop entries until we find one that is closer than the current hit
		for {
			if len(stack) == 0 {
				return hit
			}
			entry := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if entry.dist <= tMax {
				nodeIndex = entry.node
				break
			}
		}
	}
}

// Check whether ray hits any opaque triangle in the (TMin, TMax) interval.
func (bvh *BVH) Occluded(ray Ray) bool {
	if len(bvh.nodes) == 0 || !(ray.TMin < ray.TMax) {
		return false
	}

	rd := newRayData(&ray)
	stack := make([]uint32, 0, stackSize)

	nodeIndex := uint32(0)
	for {
		node := &bvh.nodes[nodeIndex]
		if !node.IsLeaf() {
			nearFar, mask := rd.intersectChildren(node, ray.TMin, ray.TMax)
			switch mask {
			case 0x3:
				if nearFar[0] <= nearFar[1] {
					stack = append(stack, node.Offset)
					nodeIndex++
				} else {
					stack = append(stack, nodeIndex+1)
					nodeIndex = node.Offset
				}
				continue
			case 0x1:
				nodeIndex++
				continue
			case 0x2:
				nodeIndex = node.Offset
				continue
			}
		} else {
			for packet := node.Offset; packet < node.Offset+node.TriangleCount; packet++ {
				if bvh.occludedPacket(&bvh.packets[packet], &rd, ray.TMin, ray.TMax) {
					return true
				}
			}
		}

		if len(stack) == 0 {
			return false
		}
		nodeIndex = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
	}
}

// Intersect a packet and record the closest accepted lane in isect.
func (bvh *BVH) intersectPacket(p *Triangle4, rd *rayData, tMin, tMax float32, isect *Intersection) bool {
	valid, t, u, v := p.intersect(rd, tMin, tMax)
	for valid.Any() {
		lane := closestLane(valid, t)
		if !bvh.acceptLane(p, lane, u[lane], v[lane]) {
			valid = valid.Clear(lane)
			continue
		}

		isect.PrimID = p.MeshID[lane]
		isect.TriID = p.TriID[lane]
		isect.U = u[lane]
		isect.V = v[lane]
		isect.Dist = t[lane]
		return true
	}
	return false
}

// Returns true if any lane of the packet is an accepted hit.
func (bvh *BVH) occludedPacket(p *Triangle4, rd *rayData, tMin, tMax float32) bool {
	valid, _, u, v := p.intersect(rd, tMin, tMax)
	for lane := 0; lane < packetWidth; lane++ {
		if valid.Lane(lane) && bvh.acceptLane(p, lane, u[lane], v[lane]) {
			return true
		}
	}
	return false
}

// Run the opacity test for alpha tested lanes.
func (bvh *BVH) acceptLane(p *Triangle4, lane int, u, v float32) bool {
	if !p.Alpha.Lane(lane) {
		return true
	}
	material := bvh.prims[p.MeshID[lane]].Material(int(p.TriID[lane]))
	return !(material.OpacitySample(u, v) < bvh.alphaCutoff)
}
