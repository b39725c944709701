package bvh

import (
	"testing"

	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/types"
)

func newTestContext(t *testing.T, objects []Object, enc Encoding) *buildContext {
	t.Helper()

	prims, err := preprocess(objects, enc)
	if err != nil {
		t.Fatal(err)
	}
	refs := make([]uint32, prims.len())
	for i := range refs {
		refs[i] = uint32(i)
	}
	return newBuildContext(serialOpts(), enc, prims, refs, make([]scene.BvhNode, 2*prims.len()-1))
}

func TestSAHBeatsMedianSplit(t *testing.T) {
	mesh := randomMesh(5, 4096, 100)
	enc := TriangleEncoding{}
	ctx := newTestContext(t, []Object{mesh}, enc)

	root := ctx.rangeRequest(0, mesh.NumSubObjects())
	axis := root.centroidBounds.MaxExtentAxis()

	// Cost of a positional median split over the unsorted refs.
	half := root.count / 2
	medianLeft := ctx.rangeRequest(0, half)
	medianRight := ctx.rangeRequest(half, root.count-half)
	medianCost := sahCost(enc.TraversalCost(), root.bounds, medianLeft.bounds, medianLeft.count, medianRight.bounds, medianRight.count)

	split, _, ok := ctx.findSAHSplit(&root, axis)
	if !ok {
		t.Fatal("expected SAH to find a split")
	}
	left, right, leftCount := ctx.partition(&root, axis, split)
	if leftCount == 0 || leftCount == root.count {
		t.Fatalf("expected SAH split to produce two non-empty partitions; got %d/%d", leftCount, root.count)
	}

	cost := sahCost(enc.TraversalCost(), root.bounds, left.bounds, left.count, right.bounds, right.count)
	if cost > medianCost {
		t.Fatalf("expected SAH split cost %f to be <= median split cost %f", cost, medianCost)
	}
}

func TestSAHSeparatesClusters(t *testing.T) {
	// Two clusters far apart along X; the first 40 triangles in the left one.
	near := randomMesh(1, 40, 1)
	far := randomMesh(2, 60, 1)
	mesh := &testMesh{}
	mesh.tris = append(mesh.tris, near.tris...)
	for _, tri := range far.tris {
		for v := range tri {
			tri[v] = tri[v].Add(types.Vec3{100, 0, 0})
		}
		mesh.tris = append(mesh.tris, tri)
	}

	ctx := newTestContext(t, []Object{mesh}, TriangleEncoding{})
	root := ctx.rangeRequest(0, mesh.NumSubObjects())

	split, _, ok := ctx.findSAHSplit(&root, 0)
	if !ok {
		t.Fatal("expected SAH to find a split")
	}
	if split <= 0 || split > 100 {
		t.Fatalf("expected split value between the clusters; got %f", split)
	}

	left, right, leftCount := ctx.partition(&root, 0, split)
	if leftCount != 40 {
		t.Fatalf("expected 40 refs on the left side; got %d", leftCount)
	}
	for _, ref := range ctx.refs[left.start : left.start+left.count] {
		if ref >= 40 {
			t.Fatalf("expected only near-cluster refs on the left side; got %d", ref)
		}
	}
	if right.bounds.Min[0] < 100 {
		t.Fatalf("expected right side bounds to start at the far cluster; got %v", right.bounds)
	}
}

func TestSAHZeroExtent(t *testing.T) {
	mesh := &testMesh{tris: [][3]types.Vec3{
		{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	}}
	ctx := newTestContext(t, []Object{mesh}, TriangleEncoding{})
	root := ctx.rangeRequest(0, 2)

	if _, _, ok := ctx.findSAHSplit(&root, 0); ok {
		t.Fatal("expected SAH to defer to the median split for zero centroid extent")
	}
}

func TestPartitionTiesGoRight(t *testing.T) {
	// Centroids at x = 0, 1, 1, 2
	mesh := &testMesh{}
	for _, x := range []float32{1, 2, 0, 1} {
		mesh.tris = append(mesh.tris, [3]types.Vec3{{x - 0.5, 0, 0}, {x + 0.5, 0, 0}, {x, 1, 0}})
	}
	ctx := newTestContext(t, []Object{mesh}, TriangleEncoding{})
	root := ctx.rangeRequest(0, 4)

	left, right, leftCount := ctx.partition(&root, 0, 1)
	if leftCount != 1 || left.count != 1 || right.count != 3 {
		t.Fatalf("expected 1 ref on the left and 3 on the right; got %d/%d", left.count, right.count)
	}
	if ctx.refs[0] != 2 {
		t.Fatalf("expected ref 2 (x=0) on the left; got %d", ctx.refs[0])
	}
	if right.centroidBounds.Min[0] != 1 || right.centroidBounds.Max[0] != 2 {
		t.Fatalf("unexpected right centroid bounds: %v", right.centroidBounds)
	}
}

func TestSAHTieKeepsLeftmostBoundary(t *testing.T) {
	// Three identical triangles with centroids at x = 0, 10 and 20. Splitting
	// off the first or the last one costs exactly the same.
	mesh := &testMesh{}
	for _, x := range []float32{0, 10, 20} {
		mesh.tris = append(mesh.tris, [3]types.Vec3{{x - 0.5, 0, 0}, {x + 0.5, 0, 1}, {x, 1, 0}})
	}
	ctx := newTestContext(t, []Object{mesh}, TriangleEncoding{})
	root := ctx.rangeRequest(0, 3)

	split, _, ok := ctx.findSAHSplit(&root, 0)
	if !ok {
		t.Fatal("expected SAH to find a split")
	}
	expSplit := float32(20) / numBins
	if split != expSplit {
		t.Fatalf("expected split at the first bin boundary %f; got %f", expSplit, split)
	}

	_, _, leftCount := ctx.partition(&root, 0, split)
	if leftCount != 1 || ctx.refs[0] != 0 {
		t.Fatalf("expected only ref 0 on the left side; got %d refs", leftCount)
	}
}

func TestSAHBeatsMedianSplitAtEveryNode(t *testing.T) {
	enc := TriangleEncoding{}
	for seed := int64(1); seed <= 5; seed++ {
		mesh := randomMesh(seed, 20000, 100)
		ctx := newTestContext(t, []Object{mesh}, enc)

		evaluated := 0
		stack := []splitRequest{ctx.rangeRequest(0, mesh.NumSubObjects())}
		for len(stack) > 0 {
			req := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			half := req.count / 2
			medianLeft := ctx.rangeRequest(req.start, half)
			medianRight := ctx.rangeRequest(req.start+half, req.count-half)
			medianCost := sahCost(enc.TraversalCost(), req.bounds, medianLeft.bounds, medianLeft.count, medianRight.bounds, medianRight.count)

			sahBefore := ctx.stats.sahSplits.Load()
			isLeaf, left, right := ctx.handleRequest(&req)
			if isLeaf {
				continue
			}
			stack = append(stack, left, right)

			if ctx.stats.sahSplits.Load() == sahBefore {
				continue
			}
			evaluated++

			cost := sahCost(enc.TraversalCost(), req.bounds, left.bounds, left.count, right.bounds, right.count)
			if cost > medianCost {
				t.Fatalf("[seed %d] node %d: SAH split cost %f exceeds median split cost %f", seed, req.index, cost, medianCost)
			}
		}

		if evaluated == 0 {
			t.Fatalf("[seed %d] expected SAH to be evaluated at least once", seed)
		}
	}
}
