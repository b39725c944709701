package scene

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/achilleasa/accel/types"
	"github.com/olekukonko/tablewriter"
)

// InvalidAddr is stored in the left address field of leaf nodes.
const InvalidAddr uint32 = 0xFFFFFFFF

// Bvh nodes are 64 bytes long and are uploaded verbatim to the GPU. Each of
// the four 16-byte slots is comprised of a Vec3 and a multipurpose uint32 whose
// meaning depends on the node type:
//
//   - For internal nodes slots 0/1 hold the left child bbox and slots 2/3 the
//     right child bbox; LAddr/RAddr point to the L/R child nodes. While the tree
//     is being built, slots 0/1 temporarily hold the node's own combined bbox.
//   - For bottom BVH leafs LAddr is InvalidAddr, slots 0-2 hold the triangle
//     vertices, MeshID the mesh index and PrimID the triangle index.
//   - For top BVH leafs LAddr is InvalidAddr, slots 0-2 hold the rows of the
//     3x3 world transform and slot 3 the translation; MeshID holds the instance
//     index, RAddr the root of the instanced mesh BVH and PrimID the material index.
type BvhNode struct {
	LMin  types.Vec3
	LAddr uint32

	LMax   types.Vec3
	MeshID uint32

	RMin  types.Vec3
	RAddr uint32

	RMax   types.Vec3
	PrimID uint32
}

// NodeKind is the host-side view of the node tag packed into LAddr.
type NodeKind uint8

const (
	Internal NodeKind = iota
	Leaf
)

func (k NodeKind) String() string {
	if k == Leaf {
		return "leaf"
	}
	return "internal"
}

// Get node kind.
func (n *BvhNode) Kind() NodeKind {
	if n.LAddr == InvalidAddr {
		return Leaf
	}
	return Internal
}

// Returns true if this is an internal node.
func (n *BvhNode) IsInternal() bool {
	return n.LAddr != InvalidAddr
}

// Mark node as a leaf. The payload is filled in by the caller.
func (n *BvhNode) SetLeaf() {
	*n = BvhNode{LAddr: InvalidAddr}
}

// Set left and right child node indices.
func (n *BvhNode) SetChildNodes(left, right uint32) {
	n.LAddr = left
	n.RAddr = right
}

// Get left (side 0) or right (side 1) child index.
func (n *BvhNode) ChildIndex(side int) uint32 {
	if side == 0 {
		return n.LAddr
	}
	return n.RAddr
}

// Set the combined bbox of an internal node under construction.
func (n *BvhNode) SetBBox(bbox types.AABB) {
	n.LMin = bbox.Min.Vec3()
	n.LMax = bbox.Max.Vec3()
}

// Get the combined bbox stored by SetBBox.
func (n *BvhNode) BBox() types.AABB {
	return types.NewAABB(n.LMin, n.LMax)
}

// Set the bboxes of both children.
func (n *BvhNode) SetChildBBoxes(left, right types.AABB) {
	n.LMin, n.LMax = left.Min.Vec3(), left.Max.Vec3()
	n.RMin, n.RMax = right.Min.Vec3(), right.Max.Vec3()
}

// Get the bbox of the left (side 0) or right (side 1) child.
func (n *BvhNode) ChildBBox(side int) types.AABB {
	if side == 0 {
		return types.NewAABB(n.LMin, n.LMax)
	}
	return types.NewAABB(n.RMin, n.RMax)
}

// Set the triangle vertices of a bottom BVH leaf.
func (n *BvhNode) SetTriangle(v [3]types.Vec3, meshIndex, primIndex uint32) {
	n.LMin, n.LMax, n.RMin = v[0], v[1], v[2]
	n.MeshID = meshIndex
	n.PrimID = primIndex
}

// Get the triangle stored in a bottom BVH leaf.
func (n *BvhNode) Triangle() (v [3]types.Vec3, meshIndex, primIndex uint32) {
	return [3]types.Vec3{n.LMin, n.LMax, n.RMin}, n.MeshID, n.PrimID
}

// Set the payload of a top BVH leaf. The transform is packed as a row-major 3x4 matrix.
func (n *BvhNode) SetInstance(transform [12]float32, instanceIndex, meshBvhRoot, materialIndex uint32) {
	n.LMin = types.Vec3{transform[0], transform[1], transform[2]}
	n.LMax = types.Vec3{transform[4], transform[5], transform[6]}
	n.RMin = types.Vec3{transform[8], transform[9], transform[10]}
	n.RMax = types.Vec3{transform[3], transform[7], transform[11]}
	n.MeshID = instanceIndex
	n.RAddr = meshBvhRoot
	n.PrimID = materialIndex
}

// Get the payload of a top BVH leaf.
func (n *BvhNode) Instance() (transform [12]float32, instanceIndex, meshBvhRoot, materialIndex uint32) {
	transform = [12]float32{
		n.LMin[0], n.LMin[1], n.LMin[2], n.RMax[0],
		n.LMax[0], n.LMax[1], n.LMax[2], n.RMax[1],
		n.RMin[0], n.RMin[1], n.RMin[2], n.RMax[2],
	}
	return transform, n.MeshID, n.RAddr, n.PrimID
}

// Add offset to indices of child nodes.
func (n *BvhNode) OffsetChildNodes(offset uint32) {
	// Ignore leafs
	if !n.IsInternal() {
		return
	}

	n.LAddr += offset
	n.RAddr += offset
}

// The MeshInstance structure allows us to apply a transformation matrix to
// a scene mesh so that it can be positioned inside the scene.
type MeshInstance struct {
	MeshIndex uint32

	// The BVH tree root for the mesh geometry. This is shared by all
	// instances of the same mesh.
	BvhRoot uint32

	MaterialIndex uint32

	_ uint32

	// The inverse of the instance world transform; rays are moved into
	// mesh space before traversing the mesh BVH.
	Transform types.Mat4
}

type Scene struct {
	// The top-level BVH occupies the first TopLevelNodes entries; the
	// mesh BVHs follow.
	BvhNodeList   []BvhNode
	TopLevelNodes uint32

	// Root node index of each mesh BVH.
	MeshBvhRoots []uint32

	MeshInstanceList []MeshInstance

	// Scene bounds.
	Bounds types.AABB
}

// Build a tabular representation of scene statistics.
func (sc *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Count", "Size"})

	meshNodes := len(sc.BvhNodeList) - int(sc.TopLevelNodes)
	table.Append([]string{"Geometry", "---", "", fmtSize(sc.BvhNodeList)})
	table.Append([]string{"", "Top-level BVH nodes", fmt.Sprint(sc.TopLevelNodes), fmtBytes(float32(sc.TopLevelNodes) * nodeSize)})
	table.Append([]string{"", "Mesh BVH nodes", fmt.Sprint(meshNodes), fmtBytes(float32(meshNodes) * nodeSize)})
	table.Append([]string{"", "Mesh BVH roots", fmt.Sprint(len(sc.MeshBvhRoots)), fmtSize(sc.MeshBvhRoots)})
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Instances", "---", fmt.Sprint(len(sc.MeshInstanceList)), fmtSize(sc.MeshInstanceList)})
	table.SetFooter([]string{"Total", " ", " ", strings.TrimLeft(fmtSize(sc.BvhNodeList, sc.MeshBvhRoots, sc.MeshInstanceList), " ")})

	table.Render()
	return buf.String()
}

var nodeSize = float32(reflect.TypeOf(BvhNode{}).Size())

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	return fmtBytes(totalBytes)
}

func fmtBytes(totalBytes float32) string {
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
