package scene

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/achilleasa/polaris-bvh/types"
	"github.com/olekukonko/tablewriter"
)

// A collection of triangle meshes and the materials they use.
type Scene struct {
	Meshes    []*Mesh
	Materials []*Material
}

// Get the scene meshes as a list of BVH primitives. The index of each mesh
// in the returned list matches its index in sc.Meshes.
func (sc *Scene) Primitives() []bvh.Primitive {
	prims := make([]bvh.Primitive, len(sc.Meshes))
	for index, mesh := range sc.Meshes {
		prims[index] = mesh
	}
	return prims
}

// Get the total number of triangles in the scene.
func (sc *Scene) TriangleCount() int {
	count := 0
	for _, mesh := range sc.Meshes {
		count += mesh.TriangleCount()
	}
	return count
}

// Get the bounds of all finite scene vertices.
func (sc *Scene) BBox() types.AABB {
	bbox := types.EmptyAABB()
	for _, mesh := range sc.Meshes {
		bbox = bbox.Union(mesh.BBox())
	}
	return bbox
}

// Build a tabular representation of scene statistics.
func (sc *Scene) Stats() string {
	var vertices []types.Vec3
	var uvs []types.Vec2
	var indices []uint32
	for _, mesh := range sc.Meshes {
		vertices = append(vertices, mesh.Vertices...)
		uvs = append(uvs, mesh.UVs...)
		indices = append(indices, mesh.Indices...)
	}

	var texData []byte
	masked := 0
	for _, mat := range sc.Materials {
		if mat.OpacityTex != nil {
			texData = append(texData, mat.OpacityTex.Data...)
		}
		if mat.HasAlpha() {
			masked++
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Size"})
	table.Append([]string{"Geometry", fmt.Sprintf("%d meshes", len(sc.Meshes)), fmtSize(vertices, uvs, indices)})
	table.Append([]string{"", "Vertices", fmtSize(vertices)})
	table.Append([]string{"", "UVs", fmtSize(uvs)})
	table.Append([]string{"", fmt.Sprintf("Triangles (%d)", sc.TriangleCount()), fmtSize(indices)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Materials", fmt.Sprintf("%d (%d alpha tested)", len(sc.Materials), masked), " "})
	table.Append([]string{"", "Opacity masks", fmtSize(texData)})
	table.SetFooter([]string{"Total", " ", strings.TrimLeft(fmtSize(vertices, uvs, indices, texData), " ")})

	table.Render()
	return buf.String()
}

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32
	for _, item := range items {
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(v.Type().Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
