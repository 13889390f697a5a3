package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/polaris-bvh/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	rayFlags := func(defaultRays int) []cli.Flag {
		return []cli.Flag{
			cli.IntFlag{
				Name:  "rays, r",
				Value: defaultRays,
				Usage: "number of random rays to trace",
			},
			cli.Int64Flag{
				Name:  "seed",
				Value: 1,
				Usage: "seed for the random ray and scene generators",
			},
		}
	}

	app := cli.NewApp()
	app.Name = "polaris-bvh"
	app.Usage = "build and query bounding volume hierarchies for triangle scenes"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error); overridden by -v and -vv",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build a BVH for wavefront obj scenes and display its statistics",
			Description: `
Parse a scene definition from a wavefront obj file and build a BVH for its
triangles using the surface area heuristic.

If the --verify flag is specified, the structure of the generated BVH is
validated and random rays are traced through both the BVH and a brute-force
intersector to ensure that both report the same hits.`,
			ArgsUsage: "scene_file1.obj scene_file2.obj ...",
			Flags: append(append(cmd.BuilderFlags(), rayFlags(10000)...),
				cli.BoolFlag{
					Name:  "verify",
					Usage: "validate the BVH and cross-check ray queries against brute-force intersection",
				},
			),
			Action: cmd.BuildBVH,
		},
		{
			Name:  "bench",
			Usage: "measure BVH build time and ray query throughput",
			Description: `
Build a BVH for a wavefront obj scene or, if no scene is specified, a random
triangle soup and measure the closest-hit and any-hit query throughput for a
set of random rays.`,
			ArgsUsage: "[scene_file.obj]",
			Flags: append(append(cmd.BuilderFlags(), rayFlags(1000000)...),
				cli.IntFlag{
					Name:  "triangles, t",
					Value: 100000,
					Usage: "number of triangles for the random scene",
				},
				cli.Float64Flag{
					Name:  "extent",
					Value: 100,
					Usage: "half-size of the cube containing the random triangles",
				},
				cli.Float64Flag{
					Name:  "size",
					Value: 1,
					Usage: "distance of random triangle vertices from their center",
				},
				cli.BoolFlag{
					Name:  "verify",
					Usage: "cross-check ray queries against brute-force intersection",
				},
				cli.IntFlag{
					Name:  "verify-rays",
					Value: 1000,
					Usage: "number of rays to cross-check",
				},
			),
			Action: cmd.Bench,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}
