package scene

import (
	"math/rand"

	"github.com/achilleasa/polaris-bvh/types"
)

// Generate a mesh with count randomly oriented triangles whose centers are
// uniformly distributed inside the [-extent, extent]^3 cube. Each triangle
// vertex is placed at distance size from the triangle center. The same seed
// always generates the same mesh.
func RandomTriangles(count int, extent, size float32, seed int64, material *Material) *Mesh {
	rng := rand.New(rand.NewSource(seed))
	mesh := NewMesh("random")
	mesh.Vertices = make([]types.Vec3, 0, 3*count)
	mesh.UVs = make([]types.Vec2, 0, 3*count)

	for index := 0; index < count; index++ {
		center := RandomPoint(rng, extent)
		base := uint32(len(mesh.Vertices))
		for corner := 0; corner < 3; corner++ {
			mesh.Vertices = append(mesh.Vertices, center.Add(RandomDirection(rng).Mul(size)))
		}
		mesh.UVs = append(mesh.UVs, types.XY(0, 0), types.XY(1, 0), types.XY(0, 1))
		mesh.AddTriangle(base, base+1, base+2, material)
	}
	return mesh
}

// Generate an axis-aligned quad spanning [-halfSize, halfSize] on the x and
// y axes at depth z. The quad is split into two triangles along its
// diagonal and its texture coordinates cover the [0, 1] range.
func Quad(z, halfSize float32, material *Material) *Mesh {
	mesh := NewMesh("quad")
	mesh.Vertices = []types.Vec3{
		{-halfSize, -halfSize, z},
		{halfSize, -halfSize, z},
		{halfSize, halfSize, z},
		{-halfSize, halfSize, z},
	}
	mesh.UVs = []types.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	mesh.AddTriangle(0, 1, 2, material)
	mesh.AddTriangle(0, 2, 3, material)
	return mesh
}

// Get a uniformly distributed point inside the [-extent, extent]^3 cube.
func RandomPoint(rng *rand.Rand, extent float32) types.Vec3 {
	return types.XYZ(
		(rng.Float32()*2-1)*extent,
		(rng.Float32()*2-1)*extent,
		(rng.Float32()*2-1)*extent,
	)
}

// Get a uniformly distributed unit direction.
func RandomDirection(rng *rand.Rand) types.Vec3 {
	for {
		dir := types.XYZ(float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64()))
		if l := dir.Len(); l > 1e-3 {
			return dir.Mul(1 / l)
		}
	}
}
