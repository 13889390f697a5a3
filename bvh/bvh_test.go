package bvh

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/achilleasa/polaris-bvh/types"
)

func TestEmptyScene(t *testing.T) {
	specs := [][]Primitive{
		nil,
		{&testMesh{material: opaque()}},
	}

	for index, prims := range specs {
		bvh, err := Build(prims, DefaultOptions())
		if err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}
		if err = bvh.Validate(); err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}
		if len(bvh.Nodes()) != 0 || len(bvh.Packets()) != 0 {
			t.Fatalf("[spec %d] expected empty node and packet lists", index)
		}

		ray := NewRay(types.Vec3{0, 0, 0}, types.Vec3{0, 0, 1})
		isect := NewIntersection()
		if bvh.Intersect(ray, &isect) {
			t.Fatalf("[spec %d] expected Intersect to report no hits", index)
		}
		if bvh.Occluded(ray) {
			t.Fatalf("[spec %d] expected Occluded to report no hits", index)
		}
		if stats := bvh.Stats(); stats.Triangles != 0 || stats.Slots != 0 {
			t.Fatalf("[spec %d] expected empty stats; got %+v", index, stats)
		}
	}
}

func TestQuadHit(t *testing.T) {
	bvh := mustBuild([]Primitive{makeQuad(5, 1, opaque())}, DefaultOptions())

	ray := NewRay(types.Vec3{0, 0, 0}, types.Vec3{0, 0, 1})
	isect := NewIntersection()
	if !bvh.Intersect(ray, &isect) {
		t.Fatal("expected ray to hit the quad")
	}
	if absErr(isect.Dist, 5) > 1e-5 {
		t.Fatalf("expected hit distance 5; got %f", isect.Dist)
	}
	if isect.PrimID != 0 || isect.TriID > 1 {
		t.Fatalf("unexpected hit ids %d/%d", isect.PrimID, isect.TriID)
	}
	if !bvh.Occluded(ray) {
		t.Fatal("expected ray to be occluded")
	}

	type spec struct {
		ray    Ray
		dist   float32
		expHit bool
	}
	specs := []spec{
		{Ray{Origin: types.Vec3{0.5, 0.1, 0}, Dir: types.Vec3{0, 0, 1}, TMax: 4.5}, float32(math.Inf(1)), false},
		{Ray{Origin: types.Vec3{0.5, 0.1, 0}, Dir: types.Vec3{0, 0, 1}, TMax: 5.5}, float32(math.Inf(1)), true},
		// The incoming intersection distance clips the ray
		{NewRay(types.Vec3{0.5, 0.1, 0}, types.Vec3{0, 0, 1}), 4, false},
		{NewRay(types.Vec3{0.5, 0.1, 0}, types.Vec3{0, 0, 1}), 6, true},
		// Empty interval
		{Ray{Origin: types.Vec3{0.5, 0.1, 0}, Dir: types.Vec3{0, 0, 1}, TMin: 3, TMax: 3}, float32(math.Inf(1)), false},
		// Pointing away
		{NewRay(types.Vec3{0.5, 0.1, 0}, types.Vec3{0, 0, -1}), float32(math.Inf(1)), false},
		// Hits the back face from above
		{NewRay(types.Vec3{-0.5, 0.7, 9}, types.Vec3{0, 0, -1}), float32(math.Inf(1)), true},
	}

	for index, s := range specs {
		isect := Intersection{PrimID: 42, Dist: s.dist}
		if hit := bvh.Intersect(s.ray, &isect); hit != s.expHit {
			t.Fatalf("[spec %d] expected Intersect to return %t; got %t", index, s.expHit, hit)
		}
		if !s.expHit && (isect.PrimID != 42 || isect.Dist != s.dist) {
			t.Fatalf("[spec %d] expected intersection to remain unchanged; got %+v", index, isect)
		}
	}
}

func TestOccludedSegment(t *testing.T) {
	clutter := makeRandomTriangles(200, 5, 7)
	for index := range clutter.positions {
		clutter.positions[index] = clutter.positions[index].Add(types.Vec3{20, 0, 0})
	}

	from := types.Vec3{0, 0, 0}
	to := types.Vec3{0, 0, 10}
	ray := Ray{Origin: from, Dir: to.Sub(from), TMin: 1e-4, TMax: 1 - 1e-4}

	bvh := mustBuild([]Primitive{clutter}, DefaultOptions())
	if bvh.Occluded(ray) {
		t.Fatal("expected segment to be unoccluded")
	}

	blocker := makeQuad(5, 0.5, opaque())
	bvh = mustBuild([]Primitive{clutter, blocker}, DefaultOptions())
	if !bvh.Occluded(ray) {
		t.Fatal("expected segment to be occluded")
	}

	isect := NewIntersection()
	if !bvh.Intersect(ray, &isect) {
		t.Fatal("expected segment to hit the blocker")
	}
	if isect.PrimID != 1 || absErr(isect.Dist, 0.5) > 1e-5 {
		t.Fatalf("expected hit with prim 1 at distance 0.5; got prim %d at %f", isect.PrimID, isect.Dist)
	}
}

func TestAlphaMasking(t *testing.T) {
	type spec struct {
		opacity  float32
		expPrim  uint32
		expDist  float32
		occluded bool
	}
	specs := []spec{
		{0, 1, 6, false},
		{0.49, 1, 6, false},
		{0.5, 0, 3, true},
		{1, 0, 3, true},
	}

	for index, s := range specs {
		// Both quads pack into the same leaf so the transparent lanes are
		// rejected inside a single packet
		masked := makeQuad(3, 1, testMaterial{alpha: true, opacity: s.opacity})
		solid := makeQuad(6, 1, opaque())
		bvh := mustBuild([]Primitive{masked, solid}, DefaultOptions())
		if len(bvh.Packets()) != 1 {
			t.Fatalf("[spec %d] expected a single packet; got %d", index, len(bvh.Packets()))
		}

		ray := NewRay(types.Vec3{0.25, 0.5, 0}, types.Vec3{0, 0, 1})
		isect := NewIntersection()
		if !bvh.Intersect(ray, &isect) {
			t.Fatalf("[spec %d] expected a hit", index)
		}
		if isect.PrimID != s.expPrim || absErr(isect.Dist, s.expDist) > 1e-5 {
			t.Fatalf("[spec %d] expected hit with prim %d at %f; got prim %d at %f", index, s.expPrim, s.expDist, isect.PrimID, isect.Dist)
		}

		ray.TMax = 5
		if got := bvh.Occluded(ray); got != s.occluded {
			t.Fatalf("[spec %d] expected Occluded to return %t; got %t", index, s.occluded, got)
		}
		ray.TMax = 7
		if !bvh.Occluded(ray) {
			t.Fatalf("[spec %d] expected the solid quad to occlude the ray", index)
		}
	}
}

func TestAlphaCutoffOption(t *testing.T) {
	masked := makeQuad(3, 1, testMaterial{alpha: true, opacity: 0.3})
	opts := DefaultOptions()
	opts.AlphaCutoff = 0.25
	bvh := mustBuild([]Primitive{masked}, opts)

	if !bvh.Occluded(NewRay(types.Vec3{0.1, 0.1, 0}, types.Vec3{0, 0, 1})) {
		t.Fatal("expected opacity above the cutoff to occlude the ray")
	}
}

func TestBuildCoversAllTriangles(t *testing.T) {
	type spec struct {
		prims []Primitive
		opts  func(*Options)
	}
	specs := []spec{
		{[]Primitive{makeQuad(1, 1, opaque())}, nil},
		{[]Primitive{makeRandomTriangles(25, 10, 1)}, nil},
		{[]Primitive{makeRandomTriangles(1000, 10, 2), makeQuad(0, 10, opaque())}, nil},
		{[]Primitive{makeRandomTriangles(3000, 50, 3)}, func(opts *Options) { opts.LeafPacketLimit = 0 }},
		{[]Primitive{makeRandomTriangles(1000, 10, 4)}, func(opts *Options) { opts.MaxDepth = 2 }},
		{[]Primitive{makeRandomTriangles(5000, 10, 5)}, func(opts *Options) { opts.Workers = 4; opts.ParallelThreshold = 32 }},
	}

	for index, s := range specs {
		opts := DefaultOptions()
		if s.opts != nil {
			s.opts(&opts)
		}

		bvh, err := Build(s.prims, opts)
		if err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}
		if err = bvh.Validate(); err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}

		stats := bvh.Stats()
		if stats.Triangles != bvh.triangleCount() {
			t.Fatalf("[spec %d] expected %d triangles; got %d", index, bvh.triangleCount(), stats.Triangles)
		}
		if stats.Slots != stats.InteriorNodes+stats.Packets {
			t.Fatalf("[spec %d] expected slots to equal interior nodes + packets; got %+v", index, stats)
		}
		if stats.Leafs != stats.InteriorNodes+1 {
			t.Fatalf("[spec %d] expected a full binary tree; got %+v", index, stats)
		}
		if stats.MaxDepth > bvh.opts.MaxDepth+1 {
			t.Fatalf("[spec %d] expected max depth <= %d; got %d", index, bvh.opts.MaxDepth+1, stats.MaxDepth)
		}
	}
}

func TestLeafRules(t *testing.T) {
	// Coincident triangles can't be split
	mesh := &testMesh{material: opaque()}
	for index := 0; index < 100; index++ {
		mesh.addTriangle(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0})
	}
	bvh := mustBuild([]Primitive{mesh}, DefaultOptions())
	if err := bvh.Validate(); err != nil {
		t.Fatal(err)
	}
	stats := bvh.Stats()
	if stats.InteriorNodes != 0 || stats.Leafs != 1 || stats.Packets != 25 {
		t.Fatalf("expected a single leaf with 25 packets; got %+v", stats)
	}
	for index, node := range bvh.Nodes() {
		if node.TriangleCount != uint32(25-index) || node.Offset != uint32(index) {
			t.Fatalf("slot %d: expected count %d and offset %d; got %d and %d", index, 25-index, index, node.TriangleCount, node.Offset)
		}
	}

	// Ranges that fit in LeafPacketLimit packets are never split
	bvh = mustBuild([]Primitive{makeRandomTriangles(24, 10, 1)}, DefaultOptions())
	if stats = bvh.Stats(); stats.InteriorNodes != 0 || stats.Packets != 6 || stats.LaneFill != 4 {
		t.Fatalf("expected a single leaf with 6 full packets; got %+v", stats)
	}

	// Without the packet limit spread out triangles get split
	opts := DefaultOptions()
	opts.LeafPacketLimit = 0
	bvh = mustBuild([]Primitive{makeRandomTriangles(24, 100, 1)}, opts)
	if stats = bvh.Stats(); stats.InteriorNodes == 0 {
		t.Fatalf("expected spread out triangles to be split; got %+v", stats)
	}
	if err := bvh.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestBuildDeterminism(t *testing.T) {
	prims := []Primitive{makeRandomTriangles(5000, 20, 11), makeQuad(0, 25, testMaterial{alpha: true, opacity: 0.2})}

	serial := mustBuild(prims, serialOptions())
	again := mustBuild(prims, serialOptions())
	if !reflect.DeepEqual(serial.Nodes(), again.Nodes()) || !reflect.DeepEqual(serial.Packets(), again.Packets()) {
		t.Fatal("expected repeated serial builds to produce identical output")
	}

	for _, workers := range []int{2, 4, 8} {
		opts := DefaultOptions()
		opts.Workers = workers
		opts.ParallelThreshold = 64
		parallel := mustBuild(prims, opts)

		if !reflect.DeepEqual(serial.Nodes(), parallel.Nodes()) {
			t.Fatalf("[workers %d] expected parallel and serial node lists to match", workers)
		}
		if !reflect.DeepEqual(serial.Packets(), parallel.Packets()) {
			t.Fatalf("[workers %d] expected parallel and serial packet lists to match", workers)
		}
	}
}

func TestNonFiniteTriangles(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	mesh := makeRandomTriangles(100, 5, 3)
	mesh.addTriangle(types.Vec3{0, 0, 0}, types.Vec3{nan, 0, 0}, types.Vec3{0, 1, 0})
	mesh.addTriangle(types.Vec3{inf, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, -inf, 0})

	bvh := mustBuild([]Primitive{mesh}, DefaultOptions())
	if err := bvh.Validate(); err != nil {
		t.Fatal(err)
	}
	if stats := bvh.Stats(); stats.Triangles != 102 {
		t.Fatalf("expected 102 triangles; got %d", stats.Triangles)
	}

	bounds := bvh.Bounds()
	if !bounds.Min.IsFinite() || !bounds.Max.IsFinite() {
		t.Fatalf("expected scene bounds to be finite; got %v", bounds)
	}

	ref, err := NewReference([]Primitive{mesh}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	compareWithReference(t, bvh, ref, randomRays(1000, 8, 3))
}

func TestIntersectMatchesReference(t *testing.T) {
	prims := []Primitive{
		makeRandomTriangles(1000, 10, 42),
		makeQuad(-4, 3, testMaterial{alpha: true, opacity: 0.4}),
		makeQuad(4, 3, testMaterial{alpha: true, opacity: 0.6}),
	}

	bvh := mustBuild(prims, DefaultOptions())
	ref, err := NewReference(prims, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	hits := compareWithReference(t, bvh, ref, randomRays(10000, 12, 42))
	if hits == 0 {
		t.Fatal("expected some rays to hit the scene")
	}
}

func TestAxisAlignedRays(t *testing.T) {
	prims := []Primitive{makeRandomTriangles(500, 5, 9)}
	bvh := mustBuild(prims, DefaultOptions())
	ref, err := NewReference(prims, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	negZero := float32(math.Copysign(0, -1))
	rng := rand.New(rand.NewSource(9))
	var rays []Ray
	for index := 0; index < 3000; index++ {
		axis := index % 3
		dir := types.Vec3{0, 0, 0}
		if rng.Intn(2) == 0 {
			dir = types.Vec3{negZero, negZero, negZero}
		}
		if index%2 == 0 {
			dir[axis] = 1
		} else {
			dir[axis] = -1
		}

		origin := randomPoint(rng, 5)
		origin[axis] = -dir[axis] * 8
		rays = append(rays, NewRay(origin, dir))
	}

	if hits := compareWithReference(t, bvh, ref, rays); hits == 0 {
		t.Fatal("expected some axis aligned rays to hit the scene")
	}
}

func TestConcurrentQueries(t *testing.T) {
	prims := []Primitive{makeRandomTriangles(2000, 10, 5)}
	bvh := mustBuild(prims, DefaultOptions())
	rays := randomRays(2000, 12, 5)

	expected := make([]Intersection, len(rays))
	for index, ray := range rays {
		expected[index] = NewIntersection()
		bvh.Intersect(ray, &expected[index])
	}

	var wg sync.WaitGroup
	errCh := make(chan int, 8)
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index, ray := range rays {
				isect := NewIntersection()
				bvh.Intersect(ray, &isect)
				if isect != expected[index] {
					errCh <- index
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for index := range errCh {
		t.Fatalf("ray %d: concurrent query result differs from serial result", index)
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	prims := []Primitive{makeRandomTriangles(500, 10, 8)}

	type spec struct {
		descr   string
		corrupt func(bvh *BVH)
	}
	specs := []spec{
		{"backward child reference", func(bvh *BVH) { bvh.nodes[0].Offset = 0 }},
		{"out of range child reference", func(bvh *BVH) { bvh.nodes[0].Offset = uint32(len(bvh.nodes)) }},
		{"shrunk child bounds", func(bvh *BVH) { bvh.nodes[0].Bounds[0][2] -= 1 }},
		{"duplicate triangle", func(bvh *BVH) { bvh.packets[1].TriID[0] = bvh.packets[0].TriID[0] }},
		{"broken leaf countdown", func(bvh *BVH) {
			for index := range bvh.nodes {
				if bvh.nodes[index].TriangleCount > 1 {
					bvh.nodes[index+1].TriangleCount++
					return
				}
			}
		}},
	}

	for index, s := range specs {
		bvh := mustBuild(prims, DefaultOptions())
		if bvh.Stats().InteriorNodes == 0 {
			t.Fatalf("[spec %d] expected tree to contain interior nodes", index)
		}
		s.corrupt(bvh)
		if err := bvh.Validate(); !errors.Is(err, ErrInvalidStructure) {
			t.Fatalf("[spec %d] %s: expected ErrInvalidStructure; got %v", index, s.descr, err)
		}
	}
}

func TestStatsTable(t *testing.T) {
	bvh := mustBuild([]Primitive{makeRandomTriangles(100, 10, 1)}, DefaultOptions())
	stats := bvh.Stats()
	if stats.SAHCost <= 0 {
		t.Fatalf("expected a positive SAH cost; got %f", stats.SAHCost)
	}

	table := bvh.StatsTable()
	for _, exp := range []string{"Triangles", "Interior nodes", "SAH cost", "100"} {
		if !strings.Contains(table, exp) {
			t.Fatalf("expected stats table to contain %q; got\n%s", exp, table)
		}
	}
}

func randomRays(count int, extent float32, seed int64) []Ray {
	rng := rand.New(rand.NewSource(seed))
	rays := make([]Ray, count)
	for index := range rays {
		rays[index] = NewRay(randomPoint(rng, extent), randomDir(rng))
		if index%4 == 3 {
			rays[index].TMax = rng.Float32() * 2 * extent
		}
	}
	return rays
}

// Run rays through both intersectors and return the number of hits.
func compareWithReference(t *testing.T, bvh *BVH, ref *Reference, rays []Ray) int {
	t.Helper()

	hits := 0
	for index, ray := range rays {
		got := NewIntersection()
		exp := NewIntersection()
		gotHit := bvh.Intersect(ray, &got)
		expHit := ref.Intersect(ray, &exp)

		if gotHit != expHit {
			t.Fatalf("ray %d (%+v): expected Intersect to return %t; got %t", index, ray, expHit, gotHit)
		}
		if gotHit {
			hits++
			if got.PrimID != exp.PrimID || got.TriID != exp.TriID || got.Dist != exp.Dist {
				t.Fatalf("ray %d (%+v): expected hit %+v; got %+v", index, ray, exp, got)
			}
		}

		if gotOcc, expOcc := bvh.Occluded(ray), ref.Occluded(ray); gotOcc != expOcc {
			t.Fatalf("ray %d (%+v): expected Occluded to return %t; got %t", index, ray, expOcc, gotOcc)
		}
	}
	return hits
}
