package bvh

import (
	"math"
	"testing"

	"github.com/achilleasa/polaris-bvh/types"
)

func TestTriangleBarycentrics(t *testing.T) {
	p0 := types.Vec3{1, 2, 3}
	p1 := types.Vec3{4, -1, 2}
	p2 := types.Vec3{0, 5, -2}

	type spec struct {
		u, v float32
		dir  types.Vec3
		dist float32
	}
	specs := []spec{
		{0.2, 0.3, types.Vec3{0, 0, 1}, 7},
		{0.6, 0.1, types.Vec3{1, 1, 1}.Normalize(), 2.5},
		{0.05, 0.9, types.Vec3{-0.3, 0.2, -1}.Normalize(), 11},
		// Back facing hit
		{0.25, 0.25, types.Vec3{0, 0, -1}, 3},
	}

	for index, s := range specs {
		point := p0.Mul(1 - s.u - s.v).Add(p1.Mul(s.u)).Add(p2.Mul(s.v))
		ray := NewRay(point.Sub(s.dir.Mul(s.dist)), s.dir)

		hit, dist, u, v := IntersectTriangle(ray, p0, p1, p2)
		if !hit {
			t.Fatalf("[spec %d] expected ray to hit the triangle", index)
		}
		if relErr(dist, s.dist) > 1e-4 || absErr(u, s.u) > 1e-4 || absErr(v, s.v) > 1e-4 {
			t.Fatalf("[spec %d] expected (u, v, dist) = (%f, %f, %f); got (%f, %f, %f)", index, s.u, s.v, s.dist, u, v, dist)
		}
	}
}

func TestTriangleMisses(t *testing.T) {
	p0 := types.Vec3{0, 0, 5}
	p1 := types.Vec3{1, 0, 5}
	p2 := types.Vec3{0, 1, 5}
	nan := float32(math.NaN())

	type spec struct {
		descr string
		ray   Ray
		p     [3]types.Vec3
	}
	specs := []spec{
		{"parallel ray", NewRay(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}), [3]types.Vec3{p0, p1, p2}},
		{"ray in triangle plane", NewRay(types.Vec3{-1, 0.2, 5}, types.Vec3{1, 0, 0}), [3]types.Vec3{p0, p1, p2}},
		{"outside edge", NewRay(types.Vec3{0.6, 0.6, 0}, types.Vec3{0, 0, 1}), [3]types.Vec3{p0, p1, p2}},
		{"behind origin", NewRay(types.Vec3{0.2, 0.2, 6}, types.Vec3{0, 0, 1}), [3]types.Vec3{p0, p1, p2}},
		{"beyond tmax", Ray{Origin: types.Vec3{0.2, 0.2, 0}, Dir: types.Vec3{0, 0, 1}, TMax: 4.9}, [3]types.Vec3{p0, p1, p2}},
		{"at tmin", Ray{Origin: types.Vec3{0.2, 0.2, 0}, Dir: types.Vec3{0, 0, 1}, TMin: 5, TMax: 10}, [3]types.Vec3{p0, p1, p2}},
		{"zero area", NewRay(types.Vec3{0, 0, 0}, types.Vec3{0, 0, 1}), [3]types.Vec3{p0, p0, p0}},
		{"non-finite vertex", NewRay(types.Vec3{0.2, 0.2, 0}, types.Vec3{0, 0, 1}), [3]types.Vec3{p0, {nan, 0, 5}, p2}},
		{"non-finite ray", NewRay(types.Vec3{0.2, 0.2, 0}, types.Vec3{nan, 0, 1}), [3]types.Vec3{p0, p1, p2}},
	}

	for index, s := range specs {
		if hit, _, _, _ := IntersectTriangle(s.ray, s.p[0], s.p[1], s.p[2]); hit {
			t.Fatalf("[spec %d] %s: expected a miss", index, s.descr)
		}
	}
}

func TestTriangleSharedEdge(t *testing.T) {
	// The ray passes exactly through the shared diagonal of the quad
	quad := makeQuad(5, 1, opaque())
	ray := NewRay(types.Vec3{0, 0, 0}, types.Vec3{0, 0, 1})

	hits := 0
	for tri := 0; tri < 2; tri++ {
		idx := quad.indices[3*tri : 3*tri+3]
		if hit, _, _, _ := IntersectTriangle(ray, quad.positions[idx[0]], quad.positions[idx[1]], quad.positions[idx[2]]); hit {
			hits++
		}
	}
	if hits == 0 {
		t.Fatal("expected at least one of the triangles sharing the edge to report a hit")
	}
}

func TestPackLanes(t *testing.T) {
	mesh := makeRandomTriangles(3, 5, 1)
	mesh.material = testMaterial{alpha: true}
	vertices, triangles, err := Extract([]Primitive{mesh})
	if err != nil {
		t.Fatal(err)
	}

	infos := []triangleInfo{{index: 2}, {index: 0}, {index: 1}}
	p := packTriangle4(vertices, triangles, infos)
	if p.Count != 3 {
		t.Fatalf("expected 3 used lanes; got %d", p.Count)
	}
	if p.Alpha != types.FirstLanes(3) {
		t.Fatalf("expected alpha mask %04b; got %04b", types.FirstLanes(3), p.Alpha)
	}
	if p.TriID != [4]uint32{2, 0, 1, 0} {
		t.Fatalf("unexpected lane triangle ids %v", p.TriID)
	}

	// The unused lane must never report a hit
	for axis := 0; axis < 3; axis++ {
		if p.N[axis][3] != 0 {
			t.Fatalf("expected unused lane normal to be zero; got %v", p.N[axis][3])
		}
	}
}
