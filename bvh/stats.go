package bvh

import (
	"bytes"
	"fmt"
	"time"
	"unsafe"

	"github.com/achilleasa/polaris-bvh/types"
	"github.com/olekukonko/tablewriter"
)

// BVH statistics.
type Stats struct {
	Triangles     int
	InteriorNodes int
	Leafs         int
	Packets       int

	// Total number of linear node slots (interior nodes + packets).
	Slots int

	MaxDepth int

	// Average number of used lanes per packet.
	LaneFill float32

	// Expected traversal cost of the tree according to the SAH.
	SAHCost float32

	BuildTime time.Duration
}

// Walk the flattened tree and collect statistics.
func (bvh *BVH) collectStats() Stats {
	stats := Stats{Slots: len(bvh.nodes), Packets: len(bvh.packets)}
	for index := range bvh.packets {
		stats.Triangles += int(bvh.packets[index].Count)
	}
	if stats.Packets != 0 {
		stats.LaneFill = float32(stats.Triangles) / float32(stats.Packets)
	}
	if len(bvh.nodes) == 0 {
		return stats
	}

	type walkEntry struct {
		node  uint32
		depth int
		area  float32
	}

	rootArea := bvh.bounds.Area()
	var invRootArea float32
	if rootArea > 0 {
		invRootArea = 1.0 / rootArea
	}

	stack := []walkEntry{{node: 0, area: rootArea}}
	for len(stack) != 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if entry.depth > stats.MaxDepth {
			stats.MaxDepth = entry.depth
		}

		node := &bvh.nodes[entry.node]
		if node.IsLeaf() {
			stats.Leafs++
			stats.SAHCost += bvh.opts.IntersectionCost * float32(node.TriangleCount) * entry.area * invRootArea
			continue
		}

		stats.InteriorNodes++
		stats.SAHCost += bvh.opts.TraversalCost * entry.area * invRootArea
		childBounds := node.ChildBounds()
		stack = append(stack,
			walkEntry{node: node.Offset, depth: entry.depth + 1, area: childBounds[1].Area()},
			walkEntry{node: entry.node + 1, depth: entry.depth + 1, area: childBounds[0].Area()},
		)
	}

	// A single-leaf tree costs exactly one leaf visit
	if invRootArea == 0 && stats.InteriorNodes == 0 {
		stats.SAHCost = bvh.opts.IntersectionCost * float32(stats.Packets)
	}

	return stats
}

// Build a tabular representation of the BVH statistics.
func (bvh *BVH) StatsTable() string {
	stats := bvh.stats
	extent := types.Vec3{}
	if !bvh.bounds.IsEmpty() {
		extent = bvh.bounds.Extent()
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Triangles", fmt.Sprintf("%d", stats.Triangles)})
	table.Append([]string{"Interior nodes", fmt.Sprintf("%d", stats.InteriorNodes)})
	table.Append([]string{"Leafs", fmt.Sprintf("%d", stats.Leafs)})
	table.Append([]string{"Packets", fmt.Sprintf("%d (%.2f lanes/packet)", stats.Packets, stats.LaneFill)})
	table.Append([]string{"Node slots", fmt.Sprintf("%d (%s)", stats.Slots, fmtSize(bvh.nodes, bvh.packets))})
	table.Append([]string{"Max depth", fmt.Sprintf("%d", stats.MaxDepth)})
	table.Append([]string{"SAH cost", fmt.Sprintf("%.3f", stats.SAHCost)})
	table.Append([]string{"Scene extent", fmt.Sprintf("%.3f x %.3f x %.3f", extent[0], extent[1], extent[2])})
	table.SetFooter([]string{"Build time", stats.BuildTime.String()})
	table.Render()
	return buf.String()
}

// Calculate the memory used by the node and packet lists and return back a
// formatted value with the appropriate byte/kb/mb unit.
func fmtSize(nodes []Node, packets []Triangle4) string {
	totalBytes := float32(uintptr(len(nodes))*unsafe.Sizeof(Node{}) + uintptr(len(packets))*unsafe.Sizeof(Triangle4{}))

	if totalBytes < 1e3 {
		return fmt.Sprintf("%d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%.1f mb", totalBytes/1e6)
}
