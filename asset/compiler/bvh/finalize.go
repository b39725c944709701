package bvh

import (
	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/types"
)

// Replace the combined bbox that the builder stores in each internal node
// with the bboxes of its two children so traversal can test both children
// without visiting them.
//
// Nodes are visited top-down, so a child still holds its own combined bbox
// when its parent copies it. Leaf bboxes are calculated on the fly by the
// encoding.
func finalize(nodes []scene.BvhNode, enc Encoding, objects []Object) {
	if len(nodes) == 0 || !nodes[0].IsInternal() {
		return
	}

	stack := make([]uint32, 1, 64)
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &nodes[index]
		var childBBox [2]types.AABB
		for side := 0; side < 2; side++ {
			childIndex := node.ChildIndex(side)
			child := &nodes[childIndex]
			if child.IsInternal() {
				childBBox[side] = child.BBox()
				stack = append(stack, childIndex)
				continue
			}
			childBBox[side] = enc.LeafBounds(child, objects)
		}

		node.SetChildBBoxes(childBBox[0], childBBox[1])
	}
}
