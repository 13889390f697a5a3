package bvh

import "runtime"

// Builder and traversal tuning parameters.
type Options struct {
	// SAH cost coefficients for visiting an interior node and for
	// intersecting a Triangle4 packet.
	TraversalCost    float32
	IntersectionCost float32

	// The number of SAH bins for a range of n triangles is calculated as
	// min(MaxBins, MinBins + BinsPerTriangle * n).
	MinBins         int
	MaxBins         int
	BinsPerTriangle float32

	// Ranges that pack into at most this many Triangle4 records always
	// become leaves.
	LeafPacketLimit int

	// Ranges deeper than this are always turned into leaves.
	MaxDepth int

	// Ranges with at least this many triangles build their children as
	// separate tasks.
	ParallelThreshold int

	// The maximum number of concurrent build tasks. A value <= 0 selects
	// GOMAXPROCS; a value of 1 builds on the calling goroutine.
	Workers int

	// Alpha tested triangles whose sampled opacity is below this value
	// are treated as transparent.
	AlphaCutoff float32
}

// Get the default builder options.
func DefaultOptions() Options {
	return Options{
		TraversalCost:     1.0,
		IntersectionCost:  2.0,
		MinBins:           4,
		MaxBins:           32,
		BinsPerTriangle:   0.05,
		LeafPacketLimit:   6,
		MaxDepth:          128,
		ParallelThreshold: 4096,
		Workers:           0,
		AlphaCutoff:       0.5,
	}
}

// Replace out of range values with their defaults.
func (opts Options) normalize() Options {
	def := DefaultOptions()
	if opts.TraversalCost <= 0 {
		opts.TraversalCost = def.TraversalCost
	}
	if opts.IntersectionCost <= 0 {
		opts.IntersectionCost = def.IntersectionCost
	}
	if opts.MinBins < 2 {
		opts.MinBins = def.MinBins
	}
	if opts.MaxBins < opts.MinBins {
		opts.MaxBins = opts.MinBins
	}
	if opts.BinsPerTriangle < 0 {
		opts.BinsPerTriangle = def.BinsPerTriangle
	}
	if opts.LeafPacketLimit < 0 {
		opts.LeafPacketLimit = 0
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = def.ParallelThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return opts
}
