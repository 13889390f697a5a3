package bvh

import "github.com/achilleasa/polaris-bvh/types"

// A node of the flattened BVH.
//
// Interior nodes (TriangleCount == 0) store the bounds of both children as one
// Float4 per axis with the layout [leftMin, rightMin, leftMax, rightMax]. The
// left child always occupies the next slot; Offset points to the right child.
//
// A leaf spans one slot per Triangle4 packet. The TriangleCount of each slot
// is the number of packets from that slot to the end of the leaf and Offset
// is the index of the slot's packet in the packet list. Packets of a leaf are
// therefore addressed contiguously starting from the first slot's Offset.
type Node struct {
	Bounds        [3]types.Float4
	TriangleCount uint32
	Offset        uint32
}

// Returns true if this is a leaf slot.
func (n *Node) IsLeaf() bool {
	return n.TriangleCount != 0
}

// Get the bounds of an interior node's children.
func (n *Node) ChildBounds() [2]types.AABB {
	var out [2]types.AABB
	for axis := 0; axis < 3; axis++ {
		out[0].Min[axis] = n.Bounds[axis][0]
		out[1].Min[axis] = n.Bounds[axis][1]
		out[0].Max[axis] = n.Bounds[axis][2]
		out[1].Max[axis] = n.Bounds[axis][3]
	}
	return out
}

type linearizer struct {
	arena *buildArena

	nodes   []Node
	packets []Triangle4

	nextNode   uint32
	nextPacket uint32
}

// Serialize the build tree rooted at root in depth-first pre-order. The node
// and packet lists are allocated once using the slot and packet totals
// accumulated during the build.
func linearize(arena *buildArena, root uint32, slotCount uint32) ([]Node, []Triangle4) {
	l := &linearizer{
		arena:   arena,
		nodes:   make([]Node, slotCount),
		packets: make([]Triangle4, arena.packetCount()),
	}
	l.emit(root)
	return l.nodes, l.packets
}

// Write the subtree rooted at arena node index and return its first slot.
func (l *linearizer) emit(index uint32) uint32 {
	src := &l.arena.nodes[index]
	offset := l.nextNode

	if src.packetCount != 0 {
		for packet := uint32(0); packet < src.packetCount; packet++ {
			l.nodes[offset+packet] = Node{
				TriangleCount: src.packetCount - packet,
				Offset:        l.nextPacket,
			}
			l.packets[l.nextPacket] = l.arena.packets[src.packetStart+packet]
			l.nextPacket++
		}
		l.nextNode += src.packetCount
		return offset
	}

	node := &l.nodes[offset]
	for axis := 0; axis < 3; axis++ {
		node.Bounds[axis] = types.Float4{
			src.childBounds[0].Min[axis],
			src.childBounds[1].Min[axis],
			src.childBounds[0].Max[axis],
			src.childBounds[1].Max[axis],
		}
	}
	l.nextNode++

	l.emit(src.children[0])
	l.nodes[offset].Offset = l.emit(src.children[1])
	return offset
}
