package cmd

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/achilleasa/polaris-bvh/asset/scene"
	"github.com/achilleasa/polaris-bvh/asset/scene/reader"
	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// Ray query throughput for a single query type.
type queryStats struct {
	Name    string
	Rays    int
	Hits    int
	Elapsed time.Duration
}

// Get the number of processed rays per second.
func (s queryStats) RaysPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Rays) / s.Elapsed.Seconds()
}

// Measure BVH build time and ray query throughput for a scene file or for a
// randomly generated triangle soup.
func Bench(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	sc, err := benchScene(ctx)
	if err != nil {
		return err
	}
	logger.Noticef("scene information:\n%s", sc.Stats())

	opts := builderOptions(ctx)
	tree, err := bvh.Build(sc.Primitives(), opts)
	if err != nil {
		return err
	}
	logger.Noticef("BVH information:\n%s", tree.StatsTable())

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rays := randomRays(sc.BBox(), ctx.Int("rays"), ctx.Int64("seed"))
	stats := []queryStats{
		runQueries("closest hit", rays, workers, func(ray bvh.Ray) bool {
			isect := bvh.NewIntersection()
			return tree.Intersect(ray, &isect)
		}),
		runQueries("any hit", rays, workers, tree.Occluded),
	}
	displayBenchStats(stats, workers)

	if ctx.Bool("verify") {
		ref, err := bvh.NewReference(sc.Primitives(), opts)
		if err != nil {
			return err
		}
		verifyCount := ctx.Int("verify-rays")
		if verifyCount > len(rays) {
			verifyCount = len(rays)
		}
		return verifyQueries(tree, ref, rays[:verifyCount])
	}
	return nil
}

// Load the scene passed as an argument or generate a random one.
func benchScene(ctx *cli.Context) (*scene.Scene, error) {
	if ctx.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one scene file argument; got %d", ctx.NArg())
	}
	if ctx.NArg() == 1 {
		return reader.ReadScene(ctx.Args().First())
	}

	count := ctx.Int("triangles")
	if count <= 0 {
		return nil, fmt.Errorf("triangle count must be positive; got %d", count)
	}

	logger.Noticef("generating scene with %d random triangles", count)
	mesh := scene.RandomTriangles(count, float32(ctx.Float64("extent")), float32(ctx.Float64("size")), ctx.Int64("seed"), nil)
	return &scene.Scene{Meshes: []*scene.Mesh{mesh}}, nil
}

// Process rays in parallel by splitting them into one contiguous chunk per worker.
func runQueries(name string, rays []bvh.Ray, workers int, query func(bvh.Ray) bool) queryStats {
	var hits atomic.Int64
	var group errgroup.Group

	chunkSize := (len(rays) + workers - 1) / workers
	start := time.Now()
	for first := 0; first < len(rays); first += chunkSize {
		last := first + chunkSize
		if last > len(rays) {
			last = len(rays)
		}

		chunk := rays[first:last]
		group.Go(func() error {
			var chunkHits int64
			for _, ray := range chunk {
				if query(ray) {
					chunkHits++
				}
			}
			hits.Add(chunkHits)
			return nil
		})
	}
	_ = group.Wait()

	return queryStats{
		Name:    name,
		Rays:    len(rays),
		Hits:    int(hits.Load()),
		Elapsed: time.Since(start),
	}
}

func displayBenchStats(stats []queryStats, workers int) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Query", "Rays", "Hits", "Time", "MRays/s"})
	for _, stat := range stats {
		table.Append([]string{
			stat.Name,
			fmt.Sprintf("%d", stat.Rays),
			fmt.Sprintf("%d (%02.1f %%)", stat.Hits, 100*float64(stat.Hits)/float64(max(stat.Rays, 1))),
			stat.Elapsed.String(),
			fmt.Sprintf("%.3f", stat.RaysPerSecond()/1e6),
		})
	}
	table.SetFooter([]string{"", "", "", "Workers", fmt.Sprintf("%d", workers)})

	table.Render()
	logger.Noticef("host: %s\nquery statistics\n%s", hostInfo(), buf.String())
}

// Describe the host CPU and memory. Missing information is skipped.
func hostInfo() string {
	var parts []string
	if infos, err := cpu.Info(); err == nil && len(infos) != 0 {
		parts = append(parts, strings.TrimSpace(infos[0].ModelName))
	}
	if count, err := cpu.Counts(true); err == nil {
		parts = append(parts, fmt.Sprintf("%d logical CPUs", count))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		parts = append(parts, fmt.Sprintf("%.1f GB RAM", float64(vm.Total)/(1<<30)))
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}
