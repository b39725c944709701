package bvh

import (
	"fmt"

	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/types"
)

// The Encoding interface selects how leaves are encoded into BVH nodes. All
// encodings share the scene.BvhNode layout; they differ in the payload that
// SetPrimitive writes.
type Encoding interface {
	// Max number of primitives per leaf. Nodes hold a single primitive so
	// the node array size (2N-1) relies on this being 1.
	MaxLeafPrimitives() int

	// Nodes with more primitives than this threshold are split using SAH;
	// smaller nodes are split at the centroid bbox midpoint.
	MinSAHPrimitives() int

	// The traversal term of the SAH cost.
	TraversalCost() float32

	// Check that obj can be encoded.
	Validate(obj Object) error

	// Write the payload for the primitive referenced by ref into a leaf node.
	SetPrimitive(node *scene.BvhNode, ref PrimitiveRef)

	// Calculate the bounds of a leaf node. The objects slice is the one
	// passed to Build.
	LeafBounds(node *scene.BvhNode, objects []Object) types.AABB
}

// Set up node as a leaf holding the primitive referenced by ref.
func EncodeLeaf(enc Encoding, node *scene.BvhNode, ref PrimitiveRef) {
	node.SetLeaf()
	enc.SetPrimitive(node, ref)
}

// Set up node as an internal node with the given combined bbox and children.
func EncodeInternal(node *scene.BvhNode, bbox types.AABB, left, right uint32) {
	*node = scene.BvhNode{}
	node.SetBBox(bbox)
	node.SetChildNodes(left, right)
}

// The TriangleSource interface is implemented by meshes whose sub-objects are triangles.
type TriangleSource interface {
	Object
	Triangle(index int) [3]types.Vec3
}

// TriangleEncoding builds bottom-level trees: each leaf holds the three
// vertices of one triangle together with its mesh and primitive index.
type TriangleEncoding struct{}

func (TriangleEncoding) MaxLeafPrimitives() int { return 1 }
func (TriangleEncoding) MinSAHPrimitives() int  { return 32 }
func (TriangleEncoding) TraversalCost() float32 { return 10 }

func (TriangleEncoding) Validate(obj Object) error {
	if _, ok := obj.(TriangleSource); !ok {
		return fmt.Errorf("%w: %T does not provide triangles", ErrUnsupportedObject, obj)
	}
	return nil
}

func (TriangleEncoding) SetPrimitive(node *scene.BvhNode, ref PrimitiveRef) {
	tri := ref.Object.(TriangleSource).Triangle(int(ref.SubIndex))
	node.SetTriangle(tri, ref.ObjectIndex, ref.SubIndex)
}

// Triangle leaves store no bounds; they are rebuilt from the vertices.
func (TriangleEncoding) LeafBounds(node *scene.BvhNode, _ []Object) types.AABB {
	v, _, _ := node.Triangle()
	return types.AABBFromPoints(v[0], v[1], v[2])
}

// The InstanceSource interface is implemented by placed instances of meshes
// that already have a bottom-level tree.
type InstanceSource interface {
	Object
	WorldTransform() types.Mat4
	MeshBvhRoot() uint32
	Material() uint32
}

// InstanceEncoding builds top-level trees: each leaf holds the packed 3x4
// world transform of an instance, the instance index, its material index and
// the node offset of the instanced bottom-level tree.
type InstanceEncoding struct{}

func (InstanceEncoding) MaxLeafPrimitives() int { return 1 }
func (InstanceEncoding) MinSAHPrimitives() int  { return 8 }
func (InstanceEncoding) TraversalCost() float32 { return 10 }

func (InstanceEncoding) Validate(obj Object) error {
	inst, ok := obj.(InstanceSource)
	if !ok {
		return fmt.Errorf("%w: %T is not an instance", ErrUnsupportedObject, obj)
	}
	if inst.NumSubObjects() != 1 {
		return fmt.Errorf("%w: instances must expose exactly one sub-object; got %d", ErrUnsupportedObject, inst.NumSubObjects())
	}
	return nil
}

func (InstanceEncoding) SetPrimitive(node *scene.BvhNode, ref PrimitiveRef) {
	inst := ref.Object.(InstanceSource)
	node.SetInstance(inst.WorldTransform().Mat3x4(), ref.ObjectIndex, inst.MeshBvhRoot(), inst.Material())
}

// Instance leaves only carry the transform; the world bounds are looked up
// from the instance itself.
func (InstanceEncoding) LeafBounds(node *scene.BvhNode, objects []Object) types.AABB {
	_, instIndex, _, _ := node.Instance()
	return objects[instIndex].SubObjectBounds(0)
}
