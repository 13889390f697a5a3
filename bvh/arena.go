package bvh

import (
	"fmt"
	"sync/atomic"

	"github.com/achilleasa/polaris-bvh/types"
)

// A temporary build tree node. Leafs own a contiguous range of packets in the
// arena packet slab; interior nodes store the bounds of both children and
// their indices in the arena node slab.
type buildNode struct {
	childBounds [2]types.AABB
	children    [2]uint32

	packetStart uint32

	// Number of packets for leafs; zero for interior nodes.
	packetCount uint32
}

// A lock-free bump allocator for build nodes and Triangle4 packets. Both slabs
// are sized up front from the triangle count: a binary tree whose leafs hold
// at least one triangle has at most 2n-1 nodes and every packet holds at least
// one triangle. Concurrent build tasks reserve entries with an atomic
// fetch-add and then only ever touch the entries they reserved.
type buildArena struct {
	nodes      []buildNode
	nextNode   atomic.Uint32
	packets    []Triangle4
	nextPacket atomic.Uint32
}

func newBuildArena(triangleCount int) *buildArena {
	nodeCount := 0
	if triangleCount > 0 {
		nodeCount = 2*triangleCount - 1
	}
	return &buildArena{
		nodes:   make([]buildNode, nodeCount),
		packets: make([]Triangle4, triangleCount),
	}
}

// Reserve a node and return its index.
func (a *buildArena) allocNode() (uint32, error) {
	index := a.nextNode.Add(1) - 1
	if int(index) >= len(a.nodes) {
		return 0, fmt.Errorf("%w: node slab holds %d entries", ErrArenaExhausted, len(a.nodes))
	}
	return index, nil
}

// Reserve count contiguous packets and return the index of the first one.
func (a *buildArena) allocPackets(count uint32) (uint32, error) {
	end := a.nextPacket.Add(count)
	if int(end) > len(a.packets) {
		return 0, fmt.Errorf("%w: packet slab holds %d entries", ErrArenaExhausted, len(a.packets))
	}
	return end - count, nil
}

// Get the number of packets handed out so far.
func (a *buildArena) packetCount() uint32 {
	return a.nextPacket.Load()
}
