package texture

// The image channel that a coverage mask was extracted from.
type Source uint32

const (
	// Coverage is the image luminance. Used for grayscale and fully
	// opaque images.
	SourceLuminance Source = iota

	// Coverage is the image alpha channel.
	SourceAlpha
)

func (s Source) String() string {
	switch s {
	case SourceLuminance:
		return "luminance"
	case SourceAlpha:
		return "alpha"
	}
	return "unknown"
}
