package bvh

import (
	"math/rand"

	"github.com/achilleasa/accel/types"
)

// A triangle soup implementing TriangleSource.
type testMesh struct {
	tris [][3]types.Vec3
}

func (m *testMesh) NumSubObjects() int { return len(m.tris) }

func (m *testMesh) SubObjectBounds(index int) types.AABB {
	t := m.tris[index]
	return types.AABBFromPoints(t[0], t[1], t[2])
}

func (m *testMesh) Triangle(index int) [3]types.Vec3 { return m.tris[index] }

// Generate count small triangles scattered inside a cube with the given side.
func randomMesh(seed int64, count int, side float32) *testMesh {
	rng := rand.New(rand.NewSource(seed))
	m := &testMesh{tris: make([][3]types.Vec3, count)}
	for i := range m.tris {
		origin := types.Vec3{rng.Float32() * side, rng.Float32() * side, rng.Float32() * side}
		for v := 0; v < 3; v++ {
			m.tris[i][v] = origin.Add(types.Vec3{rng.Float32(), rng.Float32(), rng.Float32()})
		}
	}
	return m
}

// A placed instance implementing InstanceSource.
type testInstance struct {
	transform types.Mat4
	meshBBox  types.AABB
	root      uint32
	material  uint32
}

func (i *testInstance) NumSubObjects() int { return 1 }

func (i *testInstance) SubObjectBounds(int) types.AABB { return i.meshBBox.Transform(i.transform) }

func (i *testInstance) WorldTransform() types.Mat4 { return i.transform }

func (i *testInstance) MeshBvhRoot() uint32 { return i.root }

func (i *testInstance) Material() uint32 { return i.material }

// An allocator that keeps track of outstanding blocks.
type trackingAllocator struct {
	HeapAllocator
	allocs, frees int
}

func (a *trackingAllocator) Allocate(size, alignment int) ([]byte, error) {
	a.allocs++
	return a.HeapAllocator.Allocate(size, alignment)
}

func (a *trackingAllocator) Deallocate(block []byte) {
	a.frees++
}

func serialOpts() Options {
	opts := DefaultOptions()
	opts.Workers = 1
	return opts
}

func parallelOpts(workers int) Options {
	opts := DefaultOptions()
	opts.Workers = workers
	opts.ChunkThreshold = 64
	return opts
}
