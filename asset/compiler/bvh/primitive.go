package bvh

import (
	"github.com/achilleasa/accel/types"
)

// The Object interface is implemented by all geometry sources that can be
// partitioned by the bvh builder. An object exposes one or more sub-objects
// (e.g. the triangles of a mesh) each with its own bounding box.
type Object interface {
	NumSubObjects() int
	SubObjectBounds(index int) types.AABB
}

// PrimitiveRef identifies a single partitioned sub-object.
type PrimitiveRef struct {
	Object      Object
	ObjectIndex uint32
	SubIndex    uint32
}

// primitiveSet holds the per-primitive data consumed by the builder. Arrays
// are indexed by the flattened sub-object index.
type primitiveSet struct {
	aabbMin  []types.Vec4
	aabbMax  []types.Vec4
	centroid []types.Vec4
	meta     []PrimitiveRef

	bounds         types.AABB
	centroidBounds types.AABB
}

func (ps *primitiveSet) len() int {
	return len(ps.meta)
}

// Bounding box of primitive i.
func (ps *primitiveSet) box(i uint32) types.AABB {
	return types.AABB{Min: ps.aabbMin[i], Max: ps.aabbMax[i]}
}

// Flatten the sub-objects of the supplied objects and collect their bounds,
// centroids and the scene bounds.
func preprocess(objects []Object, enc Encoding) (*primitiveSet, error) {
	// The 2N-1 node layout has room for exactly one primitive per leaf.
	if enc.MaxLeafPrimitives() != 1 {
		return nil, ErrLeafSize
	}

	total := 0
	for _, obj := range objects {
		if err := enc.Validate(obj); err != nil {
			return nil, err
		}
		total += obj.NumSubObjects()
	}
	if total == 0 {
		return nil, ErrNoPrimitives
	}
	// Leaves are addressed with 32-bit indices and InvalidAddr is reserved.
	if uint64(2*total-1) >= uint64(^uint32(0)) {
		return nil, ErrTooManyPrimitives
	}

	ps := &primitiveSet{
		aabbMin:        make([]types.Vec4, total),
		aabbMax:        make([]types.Vec4, total),
		centroid:       make([]types.Vec4, total),
		meta:           make([]PrimitiveRef, total),
		bounds:         types.EmptyAABB(),
		centroidBounds: types.EmptyAABB(),
	}

	next := 0
	for objIndex, obj := range objects {
		count := obj.NumSubObjects()
		for subIndex := 0; subIndex < count; subIndex++ {
			box := obj.SubObjectBounds(subIndex)
			center := box.Center()

			ps.aabbMin[next] = box.Min
			ps.aabbMax[next] = box.Max
			ps.centroid[next] = center
			ps.meta[next] = PrimitiveRef{
				Object:      obj,
				ObjectIndex: uint32(objIndex),
				SubIndex:    uint32(subIndex),
			}

			ps.bounds = ps.bounds.Union(box)
			ps.centroidBounds = ps.centroidBounds.GrowPoint(center)
			next++
		}
	}

	return ps, nil
}
