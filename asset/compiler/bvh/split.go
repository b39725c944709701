package bvh

import (
	"github.com/achilleasa/accel/types"
)

// The split strategy used for an internal node.
type splitKind uint8

const (
	sahSplit splitKind = iota
	midpointSplit
	medianSplit
)

// Process a split request. Small requests are encoded as leafs. Otherwise,
// the request refs are partitioned in place, an internal node is written to
// the request slot and the requests for both children are returned.
//
// Child slots follow an implicit layout: the left child is stored right after
// its parent and the right child after the 2*leftCount-1 slots reserved for
// the left subtree. Requests therefore never target overlapping slots.
func (ctx *buildContext) handleRequest(req *splitRequest) (isLeaf bool, left, right splitRequest) {
	ctx.trackDepth(req.depth)

	if req.count <= ctx.enc.MaxLeafPrimitives() {
		EncodeLeaf(ctx.enc, &ctx.nodes[req.index], ctx.prims.meta[ctx.refs[req.start]])
		ctx.stats.leafs.Add(1)
		return true, left, right
	}

	axis := req.centroidBounds.MaxExtentAxis()
	leftCount := 0
	kind := medianSplit

	if req.centroidBounds.Extents()[axis] > 0 {
		var splitValue float32
		var ok bool

		kind = midpointSplit
		if req.count > ctx.enc.MinSAHPrimitives() {
			kind = sahSplit
			splitValue, _, ok = ctx.findSAHSplit(req, axis)
		}
		if !ok {
			if kind == sahSplit {
				kind = midpointSplit
			}
			splitValue = req.centroidBounds.Center()[axis]
		}

		left, right, leftCount = ctx.partition(req, axis, splitValue)
	}

	// Fall back to a positional median split if all refs ended up on the same side.
	if leftCount == 0 || leftCount == req.count {
		kind = medianSplit
		leftCount = req.count / 2
		left = ctx.rangeRequest(req.start, leftCount)
		right = ctx.rangeRequest(req.start+leftCount, req.count-leftCount)
	}
	ctx.stats.countSplit(kind)

	left.depth, right.depth = req.depth+1, req.depth+1
	left.index = req.index + 1
	right.index = req.index + uint32(2*leftCount)

	EncodeInternal(&ctx.nodes[req.index], req.bounds, left.index, right.index)
	return false, left, right
}

// Partition the refs of req in place so that refs whose centroid lies below
// splitValue along axis come first. Bounds of both sides are accumulated in
// the same pass.
func (ctx *buildContext) partition(req *splitRequest, axis int, splitValue float32) (left, right splitRequest, leftCount int) {
	left = splitRequest{bounds: types.EmptyAABB(), centroidBounds: types.EmptyAABB()}
	right = left

	refs := ctx.refs
	centroid := ctx.prims.centroid
	i, j := req.start, req.start+req.count-1
	for i <= j {
		for i <= j && centroid[refs[i]][axis] < splitValue {
			left.grow(ctx.prims, refs[i])
			i++
		}
		for i <= j && centroid[refs[j]][axis] >= splitValue {
			right.grow(ctx.prims, refs[j])
			j--
		}
		if i < j {
			refs[i], refs[j] = refs[j], refs[i]
			left.grow(ctx.prims, refs[i])
			right.grow(ctx.prims, refs[j])
			i++
			j--
		}
	}

	leftCount = i - req.start
	left.start, left.count = req.start, leftCount
	right.start, right.count = i, req.count-leftCount
	return left, right, leftCount
}

// Build a request for the ref range [start, start+count) with bounds
// calculated from its refs.
func (ctx *buildContext) rangeRequest(start, count int) splitRequest {
	req := splitRequest{
		bounds:         types.EmptyAABB(),
		centroidBounds: types.EmptyAABB(),
		start:          start,
		count:          count,
	}
	for _, ref := range ctx.refs[start : start+count] {
		req.grow(ctx.prims, ref)
	}
	return req
}

// Extend request bounds with primitive ref.
func (r *splitRequest) grow(ps *primitiveSet, ref uint32) {
	r.bounds = r.bounds.Union(ps.box(ref))
	r.centroidBounds = r.centroidBounds.GrowPoint(ps.centroid[ref])
}
