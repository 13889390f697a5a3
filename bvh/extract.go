package bvh

import (
	"fmt"
	"math"

	"github.com/achilleasa/polaris-bvh/types"
)

// A triangle in the global build buffer. Indices point into the global
// vertex list while MeshID/TriID map the triangle back to the primitive and
// local triangle it was extracted from.
type BuildTriangle struct {
	Indices  [3]uint32
	MeshID   uint32
	TriID    uint32
	HasAlpha bool
}

// Flatten the geometry of a primitive list into a single vertex list and a
// single triangle list. Local triangle indices are offset by the number of
// vertices contributed by all preceding primitives.
func Extract(prims []Primitive) ([]types.Vec3, []BuildTriangle, error) {
	// Scan all meshes and calculate the size of vertex and triangle lists;
	// then pre-allocate them.
	totalVertices := 0
	totalTriangles := 0
	for meshIndex, prim := range prims {
		mesh := prim.Mesh()
		indices := mesh.TriangleIndices()
		if len(indices)%3 != 0 {
			return nil, nil, fmt.Errorf("%w: mesh %d: index count %d is not a multiple of 3", ErrInvalidMesh, meshIndex, len(indices))
		}
		totalVertices += len(mesh.Positions())
		totalTriangles += len(indices) / 3
	}

	if uint64(totalVertices) > math.MaxUint32 || uint64(totalTriangles) > math.MaxUint32 {
		return nil, nil, fmt.Errorf("%w: scene exceeds %d vertices or triangles", ErrInvalidMesh, uint32(math.MaxUint32))
	}

	vertices := make([]types.Vec3, 0, totalVertices)
	triangles := make([]BuildTriangle, 0, totalTriangles)
	for meshIndex, prim := range prims {
		mesh := prim.Mesh()
		positions := mesh.Positions()
		indices := mesh.TriangleIndices()
		vertexOffset := uint32(len(vertices))
		vertexCount := uint32(len(positions))

		for triIndex := 0; triIndex < len(indices)/3; triIndex++ {
			tri := BuildTriangle{
				MeshID:   uint32(meshIndex),
				TriID:    uint32(triIndex),
				HasAlpha: prim.Material(triIndex).HasAlpha(),
			}
			for corner := 0; corner < 3; corner++ {
				index := indices[3*triIndex+corner]
				if index >= vertexCount {
					return nil, nil, fmt.Errorf("%w: mesh %d: triangle %d references vertex %d; mesh has %d vertices", ErrInvalidMesh, meshIndex, triIndex, index, vertexCount)
				}
				tri.Indices[corner] = vertexOffset + index
			}
			triangles = append(triangles, tri)
		}

		vertices = append(vertices, positions...)
	}

	return vertices, triangles, nil
}

// Get the three vertex positions of a build triangle.
func (tri *BuildTriangle) vertices(vertexList []types.Vec3) (p0, p1, p2 types.Vec3) {
	return vertexList[tri.Indices[0]], vertexList[tri.Indices[1]], vertexList[tri.Indices[2]]
}
