package texture

import (
	"fmt"
	"image"
	"image/color"
	"math"

	// Register decoders for all supported image formats
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/achilleasa/polaris-bvh/asset"
)

// An 8-bit coverage mask used for alpha testing.
type Texture struct {
	Source Source

	Width  uint32
	Height uint32

	// Row-major coverage values; row 0 is the top row of the image.
	Data []byte
}

// Load an opacity mask from a resource. The image format is detected from
// the stream contents so remote resources are decoded without being saved
// to disk first.
func New(res *asset.Resource) (*Texture, error) {
	img, _, err := image.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("texture: could not decode %s: %s", res.Path(), err.Error())
	}

	tex := FromImage(img)
	if tex.Width == 0 || tex.Height == 0 {
		return nil, fmt.Errorf("texture: image %s contains no pixels", res.Path())
	}
	return tex, nil
}

// Extract a coverage mask from an image. Images with transparent pixels use
// their alpha channel; grayscale and opaque images use their luminance.
func FromImage(img image.Image) *Texture {
	bounds := img.Bounds()
	tex := &Texture{
		Source: detectSource(img),
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Data:   make([]byte, bounds.Dx()*bounds.Dy()),
	}

	offset := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.At(x, y)
			if tex.Source == SourceAlpha {
				_, _, _, a := c.RGBA()
				tex.Data[offset] = uint8(a >> 8)
			} else {
				tex.Data[offset] = color.GrayModel.Convert(c).(color.Gray).Y
			}
			offset++
		}
	}

	return tex
}

func detectSource(img image.Image) Source {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return SourceLuminance
	case *image.Alpha, *image.Alpha16:
		return SourceAlpha
	}

	if o, ok := img.(interface{ Opaque() bool }); ok {
		if o.Opaque() {
			return SourceLuminance
		}
		return SourceAlpha
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return SourceAlpha
			}
		}
	}
	return SourceLuminance
}

// Sample the mask at texture coordinates (s, t) using bilinear filtering.
// Coordinates wrap around in both directions and t = 0 maps to the bottom
// row of the image. Non-finite coordinates are treated as fully opaque.
func (tex *Texture) Sample(s, t float32) float32 {
	if len(tex.Data) == 0 || !isFinite(s) || !isFinite(t) {
		return 1
	}

	s -= float32(math.Floor(float64(s)))
	t -= float32(math.Floor(float64(t)))

	// Texel centers are located at half-integer coordinates
	x := s*float32(tex.Width) - 0.5
	y := (1-t)*float32(tex.Height) - 0.5
	x0 := float32(math.Floor(float64(x)))
	y0 := float32(math.Floor(float64(y)))
	fx := x - x0
	fy := y - y0

	w, h := int(tex.Width), int(tex.Height)
	ix0, ix1 := wrap(int(x0), w), wrap(int(x0)+1, w)
	iy0, iy1 := wrap(int(y0), h), wrap(int(y0)+1, h)

	top := lerp(tex.texel(ix0, iy0), tex.texel(ix1, iy0), fx)
	bottom := lerp(tex.texel(ix0, iy1), tex.texel(ix1, iy1), fx)
	return lerp(top, bottom, fy)
}

func (tex *Texture) texel(x, y int) float32 {
	return float32(tex.Data[y*int(tex.Width)+x]) / 255.0
}

func wrap(index, size int) int {
	index %= size
	if index < 0 {
		index += size
	}
	return index
}

func lerp(a, b, f float32) float32 {
	return a + (b-a)*f
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
