package bvh

import (
	"fmt"

	"github.com/achilleasa/polaris-bvh/types"
)

// Relative slack used when comparing bounds.
const boundsSlack = 1e-5

// Check the structural invariants of the BVH:
//   - child references only point forward and stay inside the node list
//   - leaf slots count down to 1 and address packets contiguously
//   - every node slot is reachable from the root
//   - the children of each interior node exactly cover their triangles
//   - every input triangle appears in exactly one packet lane
func (bvh *BVH) Validate() error {
	if len(bvh.nodes) == 0 {
		if bvh.triangleCount() != 0 {
			return fmt.Errorf("%w: empty node list for a scene with %d triangles", ErrInvalidStructure, bvh.triangleCount())
		}
		return nil
	}

	v := &validator{
		bvh:     bvh,
		visited: make([]bool, len(bvh.nodes)),
		seen:    make([][]bool, len(bvh.prims)),
		slack:   boundsSlack * maxAbsComponent(bvh.bounds),
	}
	for index, prim := range bvh.prims {
		v.seen[index] = make([]bool, len(prim.Mesh().TriangleIndices())/3)
	}

	if _, err := v.check(0, 0); err != nil {
		return err
	}

	for index, visited := range v.visited {
		if !visited {
			return fmt.Errorf("%w: node slot %d is unreachable", ErrInvalidStructure, index)
		}
	}
	for meshIndex, tris := range v.seen {
		for triIndex, seen := range tris {
			if !seen {
				return fmt.Errorf("%w: triangle %d of mesh %d is missing", ErrInvalidStructure, triIndex, meshIndex)
			}
		}
	}
	return nil
}

type validator struct {
	bvh     *BVH
	visited []bool
	seen    [][]bool
	slack   float32
}

// Validate the subtree at slot index and return the bounds of its triangles.
func (v *validator) check(index uint32, depth int) (types.AABB, error) {
	nodes := v.bvh.nodes
	if int(index) >= len(nodes) {
		return types.AABB{}, fmt.Errorf("%w: reference to slot %d; node list has %d slots", ErrInvalidStructure, index, len(nodes))
	}
	if depth > v.bvh.opts.MaxDepth+1 {
		return types.AABB{}, fmt.Errorf("%w: slot %d exceeds the maximum depth", ErrInvalidStructure, index)
	}

	node := &nodes[index]
	if node.IsLeaf() {
		return v.checkLeaf(index)
	}

	v.visited[index] = true
	if node.Offset <= index+1 {
		return types.AABB{}, fmt.Errorf("%w: interior slot %d references its right child at %d", ErrInvalidStructure, index, node.Offset)
	}

	childBounds := node.ChildBounds()
	out := types.EmptyAABB()
	for child, childIndex := range [2]uint32{index + 1, node.Offset} {
		bounds, err := v.check(childIndex, depth+1)
		if err != nil {
			return out, err
		}
		if !sameBounds(childBounds[child], bounds, v.slack) {
			return out, fmt.Errorf("%w: slot %d child %d bounds %v do not match its triangle bounds %v", ErrInvalidStructure, index, child, childBounds[child], bounds)
		}
		out = out.Union(bounds)
	}
	return out, nil
}

func (v *validator) checkLeaf(index uint32) (types.AABB, error) {
	nodes := v.bvh.nodes
	first := &nodes[index]
	count := first.TriangleCount
	out := types.EmptyAABB()

	if int(index+count) > len(nodes) || int(first.Offset+count) > len(v.bvh.packets) {
		return out, fmt.Errorf("%w: leaf at slot %d with %d packets overflows the node or packet list", ErrInvalidStructure, index, count)
	}

	for packet := uint32(0); packet < count; packet++ {
		slot := &nodes[index+packet]
		if slot.TriangleCount != count-packet || slot.Offset != first.Offset+packet {
			return out, fmt.Errorf("%w: leaf slot %d is not contiguous with leaf at slot %d", ErrInvalidStructure, index+packet, index)
		}
		v.visited[index+packet] = true

		p := &v.bvh.packets[slot.Offset]
		if p.Count == 0 || p.Count > packetWidth {
			return out, fmt.Errorf("%w: packet %d has %d lanes", ErrInvalidStructure, slot.Offset, p.Count)
		}
		for lane := 0; lane < int(p.Count); lane++ {
			bounds, err := v.markTriangle(p.MeshID[lane], p.TriID[lane])
			if err != nil {
				return out, err
			}
			out = out.Union(bounds)
		}
	}
	return out, nil
}

// Flag a triangle as seen and return its bounds. Triangles with non-finite
// vertices have empty bounds.
func (v *validator) markTriangle(meshID, triID uint32) (types.AABB, error) {
	if int(meshID) >= len(v.seen) || int(triID) >= len(v.seen[meshID]) {
		return types.AABB{}, fmt.Errorf("%w: unknown triangle %d of mesh %d", ErrInvalidStructure, triID, meshID)
	}
	if v.seen[meshID][triID] {
		return types.AABB{}, fmt.Errorf("%w: triangle %d of mesh %d is stored more than once", ErrInvalidStructure, triID, meshID)
	}
	v.seen[meshID][triID] = true

	mesh := v.bvh.prims[meshID].Mesh()
	positions := mesh.Positions()
	indices := mesh.TriangleIndices()[3*triID : 3*triID+3]
	bounds := types.EmptyAABB()
	for _, vertexIndex := range indices {
		if !positions[vertexIndex].IsFinite() {
			return types.EmptyAABB(), nil
		}
		bounds = bounds.Extend(positions[vertexIndex])
	}
	return bounds, nil
}

func (bvh *BVH) triangleCount() int {
	count := 0
	for _, prim := range bvh.prims {
		count += len(prim.Mesh().TriangleIndices()) / 3
	}
	return count
}

func sameBounds(a, b types.AABB, slack float32) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() == b.IsEmpty()
	}
	return a.Contains(b, slack) && b.Contains(a, slack)
}

func maxAbsComponent(b types.AABB) float32 {
	var out float32 = 1
	if b.IsEmpty() {
		return out
	}
	for axis := 0; axis < 3; axis++ {
		for _, c := range [2]float32{b.Min[axis], b.Max[axis]} {
			if c < 0 {
				c = -c
			}
			if c > out {
				out = c
			}
		}
	}
	return out
}
