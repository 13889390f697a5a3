package scene

import (
	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/achilleasa/polaris-bvh/types"
)

// The material used by triangles without an explicit material assignment.
var DefaultMaterial = Opaque("default")

// An indexed triangle mesh.
type Mesh struct {
	Name string

	Vertices []types.Vec3

	// Per-vertex texture coordinates. May be empty if none of the mesh
	// materials uses an opacity mask.
	UVs []types.Vec2

	// Three vertex indices per triangle.
	Indices []uint32

	// Per-triangle materials. A nil slice or entry selects DefaultMaterial.
	Materials []*Material
}

// Create an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

// Get the number of triangles in this mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Append a triangle and return its index.
func (m *Mesh) AddTriangle(v0, v1, v2 uint32, material *Material) int {
	m.Indices = append(m.Indices, v0, v1, v2)
	m.Materials = append(m.Materials, material)
	return m.TriangleCount() - 1
}

// Get the mesh bounds.
func (m *Mesh) BBox() types.AABB {
	bbox := types.EmptyAABB()
	for _, v := range m.Vertices {
		if v.IsFinite() {
			bbox = bbox.Extend(v)
		}
	}
	return bbox
}

// Mesh implements bvh.Primitive.
func (m *Mesh) Mesh() bvh.Mesh {
	return m
}

// Positions implements bvh.Mesh.
func (m *Mesh) Positions() []types.Vec3 {
	return m.Vertices
}

// TriangleIndices implements bvh.Mesh.
func (m *Mesh) TriangleIndices() []uint32 {
	return m.Indices
}

// Material implements bvh.Primitive. Materials with an opacity mask are bound
// to the texture coordinates of the triangle so the BVH can sample them using
// barycentric hit coordinates.
func (m *Mesh) Material(triIndex int) bvh.Material {
	material := m.triangleMaterial(triIndex)
	if material.OpacityTex == nil || len(m.UVs) != len(m.Vertices) {
		return material
	}

	indices := m.Indices[3*triIndex : 3*triIndex+3]
	return maskedSurface{
		material: material,
		uv:       [3]types.Vec2{m.UVs[indices[0]], m.UVs[indices[1]], m.UVs[indices[2]]},
	}
}

func (m *Mesh) triangleMaterial(triIndex int) *Material {
	if triIndex < len(m.Materials) && m.Materials[triIndex] != nil {
		return m.Materials[triIndex]
	}
	return DefaultMaterial
}

var _ bvh.Primitive = (*Mesh)(nil)
