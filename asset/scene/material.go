package scene

import (
	"github.com/achilleasa/polaris-bvh/asset/texture"
	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/achilleasa/polaris-bvh/types"
)

// A surface material. Only the properties that affect ray queries are kept:
// a constant opacity and an optional opacity mask that is multiplied with it.
type Material struct {
	Name string

	// Constant opacity in the [0, 1] range.
	Opacity float32

	// Optional coverage mask sampled using the triangle texture coordinates.
	OpacityTex *texture.Texture
}

// Create an opaque material.
func Opaque(name string) *Material {
	return &Material{Name: name, Opacity: 1}
}

// Create a material whose opacity is controlled by a coverage mask.
func AlphaMasked(name string, mask *texture.Texture) *Material {
	return &Material{Name: name, Opacity: 1, OpacityTex: mask}
}

// Returns true if hits against this material need an opacity test.
func (m *Material) HasAlpha() bool {
	return m.OpacityTex != nil || m.Opacity < 1
}

// Get the opacity of an untextured material. The barycentric coordinates are
// ignored as the opacity is constant across the surface.
func (m *Material) OpacitySample(_, _ float32) float32 {
	return m.Opacity
}

// Get the opacity at texture coordinate uv.
func (m *Material) OpacityAt(uv types.Vec2) float32 {
	if m.OpacityTex == nil {
		return m.Opacity
	}
	return m.Opacity * m.OpacityTex.Sample(uv[0], uv[1])
}

// A textured material bound to the texture coordinates of a single triangle.
type maskedSurface struct {
	material *Material
	uv       [3]types.Vec2
}

func (s maskedSurface) HasAlpha() bool {
	return true
}

// Interpolate the triangle texture coordinates and sample the opacity mask.
func (s maskedSurface) OpacitySample(u, v float32) float32 {
	uv := s.uv[0].Mul(1 - u - v).Add(s.uv[1].Mul(u)).Add(s.uv[2].Mul(v))
	return s.material.OpacityAt(uv)
}

var _ bvh.Material = (*Material)(nil)
var _ bvh.Material = maskedSurface{}
