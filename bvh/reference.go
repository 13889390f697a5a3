package bvh

import "github.com/achilleasa/polaris-bvh/types"

// Reference answers the same queries as a BVH by testing every triangle of
// the scene. It uses the same triangle test and opacity handling as the BVH
// and serves as a ground truth for validating traversal.
type Reference struct {
	packets []Triangle4
	bvh     BVH
}

// Create a brute-force intersector for a list of primitives.
func NewReference(prims []Primitive, opts Options) (*Reference, error) {
	vertices, triangles, err := Extract(prims)
	if err != nil {
		return nil, err
	}

	ref := &Reference{
		packets: make([]Triangle4, len(triangles)),
		bvh: BVH{
			prims:       prims,
			alphaCutoff: opts.normalize().AlphaCutoff,
		},
	}
	for index := range triangles {
		info := []triangleInfo{{index: uint32(index)}}
		ref.packets[index] = packTriangle4(vertices, triangles, info)
	}
	return ref, nil
}

// Find the closest hit by testing every triangle.
func (ref *Reference) Intersect(ray Ray, isect *Intersection) bool {
	tMax := ray.TMax
	if isect.Dist < tMax {
		tMax = isect.Dist
	}
	if !(ray.TMin < tMax) {
		return false
	}

	rd := newRayData(&ray)
	hit := false
	for index := range ref.packets {
		if ref.bvh.intersectPacket(&ref.packets[index], &rd, ray.TMin, tMax, isect) {
			tMax = isect.Dist
			hit = true
		}
	}
	return hit
}

// Check for any opaque hit by testing every triangle.
func (ref *Reference) Occluded(ray Ray) bool {
	if !(ray.TMin < ray.TMax) {
		return false
	}

	rd := newRayData(&ray)
	for index := range ref.packets {
		if ref.bvh.occludedPacket(&ref.packets[index], &rd, ray.TMin, ray.TMax) {
			return true
		}
	}
	return false
}

// Intersect a ray with a single triangle and return the hit distance and
// barycentric coordinates. Alpha is ignored.
func IntersectTriangle(ray Ray, p0, p1, p2 types.Vec3) (hit bool, t, u, v float32) {
	tri := []BuildTriangle{{Indices: [3]uint32{0, 1, 2}}}
	packet := packTriangle4([]types.Vec3{p0, p1, p2}, tri, []triangleInfo{{index: 0}})
	rd := newRayData(&ray)
	valid, tl, ul, vl := packet.intersect(&rd, ray.TMin, ray.TMax)
	if !valid.Lane(0) {
		return false, 0, 0, 0
	}
	return true, tl[0], ul[0], vl[0]
}
