package bvh

import (
	"errors"
	"strings"
	"testing"

	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/types"
)

// Walk the tree from the root and return the primitive index of each leaf in
// depth-first order. The walk fails the test if a node is visited twice or
// a child index is out of range.
func walkLeafs(t *testing.T, nodes []scene.BvhNode) []uint32 {
	t.Helper()

	visited := make([]bool, len(nodes))
	leafPrims := make([]uint32, 0)
	stack := []uint32{0}
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if int(index) >= len(nodes) {
			t.Fatalf("child index %d out of range (%d nodes)", index, len(nodes))
		}
		if visited[index] {
			t.Fatalf("node %d reachable through more than one path", index)
		}
		visited[index] = true

		node := &nodes[index]
		if !node.IsInternal() {
			_, _, prim := node.Triangle()
			leafPrims = append(leafPrims, prim)
			continue
		}
		stack = append(stack, node.ChildIndex(1), node.ChildIndex(0))
	}

	for index, v := range visited {
		if !v {
			t.Fatalf("node %d is not reachable from the root", index)
		}
	}
	return leafPrims
}

// Recursively check that each internal node stores the exact bounds of its children.
func checkBounds(t *testing.T, nodes []scene.BvhNode, index uint32, enc Encoding, objects []Object) types.AABB {
	t.Helper()

	node := &nodes[index]
	if !node.IsInternal() {
		return enc.LeafBounds(node, objects)
	}

	left := checkBounds(t, nodes, node.ChildIndex(0), enc, objects)
	right := checkBounds(t, nodes, node.ChildIndex(1), enc, objects)
	if !node.ChildBBox(0).Equal(left) {
		t.Fatalf("node %d: expected left child bbox %v; got %v", index, left, node.ChildBBox(0))
	}
	if !node.ChildBBox(1).Equal(right) {
		t.Fatalf("node %d: expected right child bbox %v; got %v", index, right, node.ChildBBox(1))
	}
	return left.Union(right)
}

func TestSingleTriangle(t *testing.T) {
	tri := [3]types.Vec3{{0, 0, 0}, {1, 0, 0}, {0.5, 1, 0}}
	mesh := &testMesh{tris: [][3]types.Vec3{tri}}

	b := New(TriangleEncoding{}, serialOpts())
	if err := b.Build([]Object{mesh}); err != nil {
		t.Fatal(err)
	}

	if len(b.Nodes()) != 1 {
		t.Fatalf("expected 1 node; got %d", len(b.Nodes()))
	}

	root := b.Root()
	if root.Kind() != scene.Leaf || root.LAddr != scene.InvalidAddr {
		t.Fatalf("expected root to be a leaf with the invalid address sentinel; got %x", root.LAddr)
	}

	v, meshIndex, primIndex := root.Triangle()
	if v != tri || meshIndex != 0 || primIndex != 0 {
		t.Fatalf("unexpected leaf payload: %v %d %d", v, meshIndex, primIndex)
	}

	if !b.Bounds().Equal(types.AABBFromPoints(tri[0], tri[1], tri[2])) {
		t.Fatalf("unexpected bvh bounds: %v", b.Bounds())
	}
}

func TestNodeAndLeafCounts(t *testing.T) {
	for _, count := range []int{1, 2, 3, 5, 17, 33, 100, 1000, 5000} {
		mesh := randomMesh(int64(count), count, 50)
		objects := []Object{mesh}

		for _, opts := range []Options{serialOpts(), parallelOpts(4)} {
			b := New(TriangleEncoding{}, opts)
			if err := b.Build(objects); err != nil {
				t.Fatal(err)
			}

			expNodes := 2*count - 1
			if len(b.Nodes()) != expNodes {
				t.Fatalf("[%d prims] expected %d nodes; got %d", count, expNodes, len(b.Nodes()))
			}

			leafPrims := walkLeafs(t, b.Nodes())
			if len(leafPrims) != count {
				t.Fatalf("[%d prims] expected %d leafs; got %d", count, count, len(leafPrims))
			}
			if b.Stats().Leafs != count || b.Stats().Nodes != expNodes {
				t.Fatalf("[%d prims] unexpected stats: %+v", count, b.Stats())
			}

			seen := make([]bool, count)
			for _, prim := range leafPrims {
				if seen[prim] {
					t.Fatalf("[%d prims] primitive %d referenced by more than one leaf", count, prim)
				}
				seen[prim] = true
			}

			// Leafs are laid out in ref order.
			for index, prim := range leafPrims {
				if b.Refs()[index] != prim {
					t.Fatalf("[%d prims] expected leaf %d to hold ref %d; got %d", count, index, b.Refs()[index], prim)
				}
			}
		}
	}
}

func TestChildBoundsAreTight(t *testing.T) {
	mesh := randomMesh(7, 2000, 100)
	objects := []Object{mesh}

	b := New(TriangleEncoding{}, parallelOpts(4))
	if err := b.Build(objects); err != nil {
		t.Fatal(err)
	}

	rootBBox := checkBounds(t, b.Nodes(), 0, b.Encoding(), objects)
	if !rootBBox.Equal(b.Bounds()) {
		t.Fatalf("expected root bounds %v; got %v", b.Bounds(), rootBBox)
	}

	for i := 0; i < mesh.NumSubObjects(); i++ {
		if !b.Bounds().Contains(mesh.SubObjectBounds(i)) {
			t.Fatalf("expected bvh bounds to contain primitive %d", i)
		}
	}
}

func TestIdenticalCentroids(t *testing.T) {
	// Three triangles sharing the same centroid; every axis has zero
	// centroid extent so the builder must use median splits.
	mesh := &testMesh{tris: [][3]types.Vec3{
		{{-1, 0, 0}, {1, 0, 0}, {0, 0, 0}},
		{{0, -1, 0}, {0, 1, 0}, {0, 0, 0}},
		{{0, 0, -1}, {0, 0, 1}, {0, 0, 0}},
	}}

	b := New(TriangleEncoding{}, serialOpts())
	if err := b.Build([]Object{mesh}); err != nil {
		t.Fatal(err)
	}

	leafPrims := walkLeafs(t, b.Nodes())
	if len(leafPrims) != 3 {
		t.Fatalf("expected 3 leafs; got %d", len(leafPrims))
	}

	stats := b.Stats()
	if stats.MedianSplits != 2 || stats.SAHSplits != 0 || stats.MidpointSplits != 0 {
		t.Fatalf("expected 2 median splits only; got %+v", stats)
	}
}

func TestRebuildIsDeterministic(t *testing.T) {
	mesh := randomMesh(42, 3000, 30)
	objects := []Object{mesh}

	b := New(TriangleEncoding{}, serialOpts())
	if err := b.Build(objects); err != nil {
		t.Fatal(err)
	}
	first := append([]scene.BvhNode(nil), b.Nodes()...)

	b.Clear()
	if b.Root() != nil || len(b.Nodes()) != 0 {
		t.Fatal("expected Clear to release all nodes")
	}

	if err := b.Build(objects); err != nil {
		t.Fatal(err)
	}
	for index := range first {
		if first[index] != b.Nodes()[index] {
			t.Fatalf("expected node %d to be identical across rebuilds", index)
		}
	}

	// Parallel builds may hand subtrees to different workers but the
	// slot assignment does not depend on scheduling.
	for run := 0; run < 3; run++ {
		pb := New(TriangleEncoding{}, parallelOpts(8))
		if err := pb.Build(objects); err != nil {
			t.Fatal(err)
		}
		for index := range first {
			if first[index] != pb.Nodes()[index] {
				t.Fatalf("[run %d] expected parallel node %d to match the serial build", run, index)
			}
		}
	}
}

func TestSerialAndParallelLargeBuild(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large build in short mode")
	}

	mesh := randomMesh(1234, 100000, 500)
	objects := []Object{mesh}

	serial := New(TriangleEncoding{}, serialOpts())
	if err := serial.Build(objects); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Workers = 8
	parallel := New(TriangleEncoding{}, opts)
	if err := parallel.Build(objects); err != nil {
		t.Fatal(err)
	}

	if serial.Stats().Leafs != 100000 || parallel.Stats().Leafs != 100000 {
		t.Fatalf("expected 100000 leafs; got %d (serial) and %d (parallel)", serial.Stats().Leafs, parallel.Stats().Leafs)
	}
	if parallel.Stats().Workers != 8 {
		t.Fatalf("expected parallel build to use 8 workers; got %d", parallel.Stats().Workers)
	}
	if !serial.Bounds().Equal(parallel.Bounds()) || serial.Root().ChildBBox(0) != parallel.Root().ChildBBox(0) {
		t.Fatal("expected serial and parallel builds to produce the same root bounds")
	}
}

func TestBuildErrors(t *testing.T) {
	b := New(TriangleEncoding{}, serialOpts())

	if err := b.Build(nil); err != ErrNoPrimitives {
		t.Fatalf("expected ErrNoPrimitives; got %v", err)
	}
	if err := b.Build([]Object{&testMesh{}}); err != ErrNoPrimitives {
		t.Fatalf("expected ErrNoPrimitives; got %v", err)
	}

	inst := &testInstance{transform: types.Ident4(), meshBBox: types.NewAABB(types.Vec3{}, types.Vec3{1, 1, 1})}
	if err := b.Build([]Object{inst}); !errors.Is(err, ErrUnsupportedObject) {
		t.Fatalf("expected ErrUnsupportedObject; got %v", err)
	}
}

// A triangle encoding that claims to pack several primitives per leaf.
type multiPrimEncoding struct {
	TriangleEncoding
}

func (multiPrimEncoding) MaxLeafPrimitives() int { return 4 }

func TestBuildRejectsMultiPrimitiveLeafs(t *testing.T) {
	alloc := &trackingAllocator{}
	opts := serialOpts()
	opts.Allocator = alloc

	b := New(multiPrimEncoding{}, opts)
	if err := b.Build([]Object{randomMesh(4, 16, 10)}); !errors.Is(err, ErrLeafSize) {
		t.Fatalf("expected ErrLeafSize; got %v", err)
	}
	if b.Root() != nil {
		t.Fatal("expected BVH to remain empty after a rejected build")
	}
	if alloc.allocs != 0 {
		t.Fatalf("expected no node allocations; got %d", alloc.allocs)
	}
}

func TestStackOverflow(t *testing.T) {
	mesh := randomMesh(3, 500, 20)
	objects := []Object{mesh}

	serial := serialOpts()
	serial.StackCapacity = 1

	parallel := parallelOpts(4)
	parallel.ChunkThreshold = 16
	parallel.StackCapacity = 1

	for index, opts := range []Options{serial, parallel} {
		b := New(TriangleEncoding{}, opts)
		if err := b.Build(objects); err != ErrStackOverflow {
			t.Fatalf("[spec %d] expected ErrStackOverflow; got %v", index, err)
		}
		if b.Root() != nil || len(b.Nodes()) != 0 || !b.Bounds().IsEmpty() {
			t.Fatalf("[spec %d] expected bvh to be empty after a failed build", index)
		}
	}
}

func TestAllocatorLifecycle(t *testing.T) {
	alloc := &trackingAllocator{}
	opts := serialOpts()
	opts.Allocator = alloc

	mesh := randomMesh(9, 10, 5)
	b := New(TriangleEncoding{}, opts)
	for i := 0; i < 3; i++ {
		if err := b.Build([]Object{mesh}); err != nil {
			t.Fatal(err)
		}
	}
	if alloc.allocs != 3 || alloc.frees != 2 {
		t.Fatalf("expected 3 allocations and 2 releases; got %d and %d", alloc.allocs, alloc.frees)
	}

	b.Clear()
	if alloc.frees != 3 {
		t.Fatalf("expected Clear to release the node block; got %d releases", alloc.frees)
	}
}

func TestBuildReturnsNodeCopy(t *testing.T) {
	mesh := randomMesh(11, 64, 10)
	nodes, stats, err := Build([]Object{mesh}, TriangleEncoding{}, serialOpts())
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 127 || stats.Leafs != 64 {
		t.Fatalf("expected 127 nodes and 64 leafs; got %d and %d", len(nodes), stats.Leafs)
	}
	walkLeafs(t, nodes)
}

func TestInstanceBuild(t *testing.T) {
	meshBBox := types.NewAABB(types.Vec3{-1, -1, -1}, types.Vec3{1, 1, 1})
	objects := make([]Object, 0)
	for i := 0; i < 20; i++ {
		rot := types.QuatFromAxisAngle(types.Vec3{0, 1, 0}, float32(i)*0.3).Mat4()
		objects = append(objects, &testInstance{
			transform: types.Translate4(types.Vec3{float32(i) * 5, 0, float32(i % 3)}).Mul4(rot),
			meshBBox:  meshBBox,
			root:      uint32(100 + i),
			material:  uint32(i % 4),
		})
	}

	enc := InstanceEncoding{}
	b := New(enc, serialOpts())
	if err := b.Build(objects); err != nil {
		t.Fatal(err)
	}
	if len(b.Nodes()) != 2*len(objects)-1 {
		t.Fatalf("expected %d nodes; got %d", 2*len(objects)-1, len(b.Nodes()))
	}

	seen := make(map[uint32]bool)
	for i := range b.Nodes() {
		node := b.Node(uint32(i))
		if node.IsInternal() {
			continue
		}

		transform, instIndex, root, material := node.Instance()
		inst := objects[instIndex].(*testInstance)
		if transform != inst.transform.Mat3x4() {
			t.Fatalf("leaf %d: expected transform %v; got %v", i, inst.transform.Mat3x4(), transform)
		}
		if root != inst.root || material != inst.material {
			t.Fatalf("leaf %d: expected root %d and material %d; got %d and %d", i, inst.root, inst.material, root, material)
		}
		seen[instIndex] = true
	}
	if len(seen) != len(objects) {
		t.Fatalf("expected %d distinct instance leafs; got %d", len(objects), len(seen))
	}

	rootBBox := checkBounds(t, b.Nodes(), 0, enc, objects)
	if !rootBBox.Equal(b.Bounds()) {
		t.Fatalf("expected root bounds %v; got %v", b.Bounds(), rootBBox)
	}
}

func benchmarkBuild(b *testing.B, workers int) {
	objects := []Object{randomMesh(3, 200000, 500)}
	opts := DefaultOptions()
	opts.Workers = workers

	tree := New(TriangleEncoding{}, opts)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tree.Build(objects); err != nil {
			b.Fatal(err)
		}
	}
	tree.Clear()
}

func BenchmarkBuildSerial(b *testing.B)    { benchmarkBuild(b, 1) }
func BenchmarkBuildParallel4(b *testing.B) { benchmarkBuild(b, 4) }
func BenchmarkBuildParallel8(b *testing.B) { benchmarkBuild(b, 8) }

func TestStatsTable(t *testing.T) {
	_, stats, err := Build([]Object{randomMesh(6, 300, 20)}, TriangleEncoding{}, serialOpts())
	if err != nil {
		t.Fatal(err)
	}

	table := stats.Table()
	expRows := []string{
		"Primitives", "300",
		"Nodes", "599",
		"Leafs", "SAH splits", "Midpoint splits", "Median splits", "Build time",
	}
	for _, exp := range expRows {
		if !strings.Contains(table, exp) {
			t.Fatalf("expected stats table to contain %q; got:\n%s", exp, table)
		}
	}
}
