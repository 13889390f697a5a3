package bvh

import (
	"math"
	"math/rand"

	"github.com/achilleasa/polaris-bvh/types"
)

type testMaterial struct {
	alpha   bool
	opacity float32
}

func (m testMaterial) HasAlpha() bool {
	return m.alpha
}

func (m testMaterial) OpacitySample(_, _ float32) float32 {
	return m.opacity
}

// A triangle mesh that uses the same material for all its triangles.
type testMesh struct {
	positions []types.Vec3
	indices   []uint32
	material  testMaterial
}

func (m *testMesh) Mesh() Mesh {
	return m
}

func (m *testMesh) Positions() []types.Vec3 {
	return m.positions
}

func (m *testMesh) TriangleIndices() []uint32 {
	return m.indices
}

func (m *testMesh) Material(_ int) Material {
	return m.material
}

func (m *testMesh) addTriangle(p0, p1, p2 types.Vec3) {
	base := uint32(len(m.positions))
	m.positions = append(m.positions, p0, p1, p2)
	m.indices = append(m.indices, base, base+1, base+2)
}

func opaque() testMaterial {
	return testMaterial{opacity: 1}
}

// An axis aligned quad [-size, size]^2 at depth z split into two triangles.
func makeQuad(z, size float32, material testMaterial) *testMesh {
	return &testMesh{
		positions: []types.Vec3{
			{-size, -size, z},
			{size, -size, z},
			{size, size, z},
			{-size, size, z},
		},
		indices:  []uint32{0, 1, 2, 0, 2, 3},
		material: material,
	}
}

// Scatter count triangles with unit-length edges inside [-extent, extent]^3.
func makeRandomTriangles(count int, extent float32, seed int64) *testMesh {
	rng := rand.New(rand.NewSource(seed))
	mesh := &testMesh{material: opaque()}
	for index := 0; index < count; index++ {
		center := randomPoint(rng, extent)
		mesh.addTriangle(
			center.Add(randomDir(rng).Mul(0.5)),
			center.Add(randomDir(rng).Mul(0.5)),
			center.Add(randomDir(rng).Mul(0.5)),
		)
	}
	return mesh
}

func randomPoint(rng *rand.Rand, extent float32) types.Vec3 {
	return types.Vec3{
		(rng.Float32()*2 - 1) * extent,
		(rng.Float32()*2 - 1) * extent,
		(rng.Float32()*2 - 1) * extent,
	}
}

func randomDir(rng *rand.Rand) types.Vec3 {
	for {
		d := types.Vec3{float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64())}
		if d.Len() > 1e-3 {
			return d.Normalize()
		}
	}
}

func serialOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 1
	return opts
}

func mustBuild(prims []Primitive, opts Options) *BVH {
	bvh, err := Build(prims, opts)
	if err != nil {
		panic(err)
	}
	return bvh
}

func relErr(got, exp float32) float64 {
	diff := math.Abs(float64(got - exp))
	if exp == 0 {
		return diff
	}
	return diff / math.Abs(float64(exp))
}

func absErr(got, exp float32) float64 {
	return math.Abs(float64(got - exp))
}
