package cmd

import (
	"errors"

	"github.com/achilleasa/polaris-bvh/asset/scene/reader"
	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/urfave/cli"
)

// Build a BVH for one or more scene files and display its statistics.
func BuildBVH(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument")
	}

	opts := builderOptions(ctx)
	for idx := 0; idx < ctx.NArg(); idx++ {
		sceneFile := ctx.Args().Get(idx)

		logger.Noticef("parsing scene: %s", sceneFile)
		sc, err := reader.ReadScene(sceneFile)
		if err != nil {
			return err
		}
		logger.Noticef("scene information:\n%s", sc.Stats())

		tree, err := bvh.Build(sc.Primitives(), opts)
		if err != nil {
			return err
		}
		logger.Noticef("BVH information:\n%s", tree.StatsTable())

		if !ctx.Bool("verify") {
			continue
		}

		if err = tree.Validate(); err != nil {
			return err
		}
		logger.Notice("BVH structure is valid")

		ref, err := bvh.NewReference(sc.Primitives(), opts)
		if err != nil {
			return err
		}
		if err = verifyQueries(tree, ref, randomRays(sc.BBox(), ctx.Int("rays"), ctx.Int64("seed"))); err != nil {
			return err
		}
	}

	return nil
}
