package bvh

import "github.com/achilleasa/polaris-bvh/types"

// The number of triangles packed in a Triangle4.
const packetWidth = 4

// Triangle4 stores up to four triangles in structure-of-arrays layout so they
// can be intersected lane-parallel. Each [3]types.Float4 field holds the x, y
// and z components of a per-triangle vector. Unused lanes are zero-filled
// which makes their determinant zero so they never produce a hit.
type Triangle4 struct {
	V0 [3]types.Float4
	E1 [3]types.Float4
	E2 [3]types.Float4

	// Unnormalized geometric normal: E1 x E2.
	N [3]types.Float4

	MeshID [packetWidth]uint32
	TriID  [packetWidth]uint32

	// Lanes whose triangles need an opacity lookup before a hit is accepted.
	Alpha types.Mask4

	// Number of used lanes.
	Count uint8
}

// Pack up to four build triangles.
func packTriangle4(vertexList []types.Vec3, triangles []BuildTriangle, infos []triangleInfo) Triangle4 {
	var p Triangle4
	for lane, info := range infos {
		tri := &triangles[info.index]
		p0, p1, p2 := tri.vertices(vertexList)
		e1 := p1.Sub(p0)
		e2 := p2.Sub(p0)
		n := e1.Cross(e2)

		for axis := 0; axis < 3; axis++ {
			p.V0[axis][lane] = p0[axis]
			p.E1[axis][lane] = e1[axis]
			p.E2[axis][lane] = e2[axis]
			p.N[axis][lane] = n[axis]
		}

		p.MeshID[lane] = tri.MeshID
		p.TriID[lane] = tri.TriID
		if tri.HasAlpha {
			p.Alpha |= 1 << uint(lane)
		}
	}
	p.Count = uint8(len(infos))
	return p
}

// Intersect a ray with all packet lanes. The returned mask flags lanes with a
// hit distance inside the open (tMin, tMax) interval; t, u and v hold the hit
// distance and barycentric coordinates for those lanes.
//
// The edge functions are evaluated before dividing by the determinant and
// the determinant sign is transferred onto them so that the same comparisons
// work for front and back facing triangles.
func (p *Triangle4) intersect(ray *rayData, tMin, tMax float32) (valid types.Mask4, t, u, v types.Float4) {
	// s = origin - v0
	sx := ray.org[0].Sub(p.V0[0])
	sy := ray.org[1].Sub(p.V0[1])
	sz := ray.org[2].Sub(p.V0[2])

	// r = dir x s
	dx, dy, dz := ray.dir[0], ray.dir[1], ray.dir[2]
	rx := dy.Mul(sz).Sub(dz.Mul(sy))
	ry := dz.Mul(sx).Sub(dx.Mul(sz))
	rz := dx.Mul(sy).Sub(dy.Mul(sx))

	det := types.Dot4(p.N[0], p.N[1], p.N[2], dx, dy, dz)
	absDet := det.Abs()

	U := types.Dot4(p.E2[0], p.E2[1], p.E2[2], rx, ry, rz).XorSign(det)
	V := types.Dot4(p.E1[0], p.E1[1], p.E1[2], rx, ry, rz).XorSign(det)
	V = types.Splat4(0).Sub(V)
	W := absDet.Sub(U).Sub(V)
	T := types.Splat4(0).Sub(types.Dot4(sx, sy, sz, p.N[0], p.N[1], p.N[2])).XorSign(det)

	zero := types.Splat4(0)
	valid = types.FirstLanes(int(p.Count)) &
		det.NotEq(zero) &
		zero.LessEq(U) &
		zero.LessEq(V) &
		zero.LessEq(W) &
		absDet.Mul(types.Splat4(tMin)).Less(T) &
		T.Less(absDet.Mul(types.Splat4(tMax)))

	if !valid.Any() {
		return 0, t, u, v
	}

	for lane := 0; lane < packetWidth; lane++ {
		if !valid.Lane(lane) {
			continue
		}
		invDet := 1.0 / absDet[lane]
		t[lane] = T[lane] * invDet
		u[lane] = U[lane] * invDet
		v[lane] = V[lane] * invDet
	}
	return valid, t, u, v
}

// Get the valid lane with the smallest hit distance. Ties are resolved in
// favor of the lowest lane.
func closestLane(valid types.Mask4, t types.Float4) int {
	best := -1
	for lane := 0; lane < packetWidth; lane++ {
		if valid.Lane(lane) && (best == -1 || t[lane] < t[best]) {
			best = lane
		}
	}
	return best
}
