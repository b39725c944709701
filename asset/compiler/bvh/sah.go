package bvh

import (
	"github.com/achilleasa/accel/types"
	"github.com/chewxy/math32"
)

// Number of SAH bins along the split axis.
const numBins = 128

type sahBin struct {
	bbox  types.AABB
	count int
}

// Find the SAH split plane for the refs of req along axis.
//
// Primitives are binned by centroid into numBins equal-width bins spanning
// the centroid bbox. Every interior bin boundary is scored using:
//
// cost = traversal cost + (left count * left area + right count * right area) / parent area
//
// Boundaries that leave one side empty are not evaluated. On ties the
// leftmost boundary wins. If no boundary could be evaluated ok is false and
// the caller should fall back to a median split.
func (ctx *buildContext) findSAHSplit(req *splitRequest, axis int) (split, cost float32, ok bool) {
	binMin := req.centroidBounds.Min[axis]
	extent := req.centroidBounds.Max[axis] - binMin
	if !(extent > 0) {
		return 0, 0, false
	}

	binWidth := extent / numBins
	invWidth := numBins / extent

	var bins [numBins]sahBin
	for i := range bins {
		bins[i].bbox = types.EmptyAABB()
	}

	refs := ctx.refs[req.start : req.start+req.count]
	for _, ref := range refs {
		binIndex := int(math32.Floor((ctx.prims.centroid[ref][axis] - binMin) * invWidth))
		binIndex = min(max(binIndex, 0), numBins-1)

		bins[binIndex].count++
		bins[binIndex].bbox = bins[binIndex].bbox.Union(ctx.prims.box(ref))
	}

	// rightBBox[i] and rightCount[i] accumulate bins [i, numBins).
	var rightBBox [numBins]types.AABB
	var rightCount [numBins]int
	acc := types.EmptyAABB()
	accCount := 0
	for i := numBins - 1; i >= 0; i-- {
		acc = acc.Union(bins[i].bbox)
		accCount += bins[i].count
		rightBBox[i] = acc
		rightCount[i] = accCount
	}

	invParentArea := float32(1)
	if area := req.bounds.SurfaceArea(); area > 0 {
		invParentArea = 1 / area
	}

	traversalCost := ctx.enc.TraversalCost()
	bestCost := float32(math32.MaxFloat32)
	bestBin := -1
	leftBBox := types.EmptyAABB()
	leftCount := 0
	for i := 0; i < numBins-1; i++ {
		leftBBox = leftBBox.Union(bins[i].bbox)
		leftCount += bins[i].count

		rCount := rightCount[i+1]
		if leftCount == 0 || rCount == 0 {
			continue
		}

		c := traversalCost + (float32(leftCount)*leftBBox.SurfaceArea()+float32(rCount)*rightBBox[i+1].SurfaceArea())*invParentArea
		if c < bestCost {
			bestCost = c
			bestBin = i
		}
	}

	if bestBin < 0 {
		return 0, 0, false
	}
	return binMin + float32(bestBin+1)*binWidth, bestCost, true
}

// Calculate the SAH cost of splitting a node with the given bbox into two
// children with the given bboxes and primitive counts.
func sahCost(traversalCost float32, parent, left types.AABB, leftCount int, right types.AABB, rightCount int) float32 {
	invParentArea := float32(1)
	if area := parent.SurfaceArea(); area > 0 {
		invParentArea = 1 / area
	}
	return traversalCost + (float32(leftCount)*left.SurfaceArea()+float32(rightCount)*right.SurfaceArea())*invParentArea
}
