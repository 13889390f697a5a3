package bvh

import "github.com/achilleasa/polaris-bvh/types"

// The Mesh interface exposes the triangle soup of a scene primitive. Triangle
// t is formed by the vertices at TriangleIndices()[3t : 3t+3].
type Mesh interface {
	Positions() []types.Vec3
	TriangleIndices() []uint32
}

// The Material interface exposes the alpha testing properties of a single
// triangle.
type Material interface {
	// Returns true if the triangle surface opacity must be sampled before a
	// hit can be accepted.
	HasAlpha() bool

	// Sample surface opacity in the [0, 1] range at the barycentric
	// coordinates (u, v) of the triangle. Hit points are expressed as
	// (1-u-v)*p0 + u*p1 + v*p2. Implementations must be safe for
	// concurrent use.
	OpacitySample(u, v float32) float32
}

// The Primitive interface is implemented by all scene elements that can be
// partitioned by the BVH builder.
type Primitive interface {
	Mesh() Mesh

	// Get the material bound to the triangle with the given local index.
	Material(triIndex int) Material
}
