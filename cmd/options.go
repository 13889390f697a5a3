package cmd

import (
	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/urfave/cli"
)

// Flags for tuning the BVH builder. They are shared by all commands that
// build a BVH.
func BuilderFlags() []cli.Flag {
	def := bvh.DefaultOptions()
	return []cli.Flag{
		cli.IntFlag{
			Name:  "workers, w",
			Value: def.Workers,
			Usage: "max number of concurrent build tasks; 0 uses all available CPUs",
		},
		cli.IntFlag{
			Name:  "max-depth",
			Value: def.MaxDepth,
			Usage: "max tree depth",
		},
		cli.IntFlag{
			Name:  "leaf-packets",
			Value: def.LeafPacketLimit,
			Usage: "always create a leaf for ranges that fit in this many 4-triangle packets",
		},
		cli.IntFlag{
			Name:  "parallel-threshold",
			Value: def.ParallelThreshold,
			Usage: "min number of triangles for building subtrees as separate tasks",
		},
		cli.Float64Flag{
			Name:  "alpha-cutoff",
			Value: float64(def.AlphaCutoff),
			Usage: "opacity below which alpha tested surfaces are treated as transparent",
		},
	}
}

// Populate builder options from the command line flags.
func builderOptions(ctx *cli.Context) bvh.Options {
	opts := bvh.DefaultOptions()
	opts.Workers = ctx.Int("workers")
	opts.MaxDepth = ctx.Int("max-depth")
	opts.LeafPacketLimit = ctx.Int("leaf-packets")
	opts.ParallelThreshold = ctx.Int("parallel-threshold")
	opts.AlphaCutoff = float32(ctx.Float64("alpha-cutoff"))
	return opts
}
