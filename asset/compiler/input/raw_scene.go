package input

import (
	"github.com/achilleasa/accel/types"
)

// A triangle primitive
type Primitive struct {
	Vertices      [3]types.Vec3
	MaterialIndex int
}

// Get the primitive AABB.
func (prim *Primitive) BBox() types.AABB {
	return types.AABBFromPoints(prim.Vertices[0], prim.Vertices[1], prim.Vertices[2])
}

// A mesh is constructed by a list of primitives. Meshes implement the
// bvh.TriangleSource interface.
type Mesh struct {
	Name       string
	Primitives []*Primitive

	bbox            types.AABB
	bboxNeedsUpdate bool
}

// Create a new mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:            name,
		Primitives:      make([]*Primitive, 0),
		bboxNeedsUpdate: true,
	}
}

// Append a triangle to the mesh.
func (m *Mesh) AddTriangle(v0, v1, v2 types.Vec3, materialIndex int) {
	m.Primitives = append(m.Primitives, &Primitive{
		Vertices:      [3]types.Vec3{v0, v1, v2},
		MaterialIndex: materialIndex,
	})
	m.bboxNeedsUpdate = true
}

// Get mesh bounding box.
func (m *Mesh) BBox() types.AABB {
	if m.bboxNeedsUpdate {
		m.bbox = types.EmptyAABB()
		for _, prim := range m.Primitives {
			m.bbox = m.bbox.Union(prim.BBox())
		}
		m.bboxNeedsUpdate = false
	}

	return m.bbox
}

func (m *Mesh) NumSubObjects() int {
	return len(m.Primitives)
}

func (m *Mesh) SubObjectBounds(index int) types.AABB {
	return m.Primitives[index].BBox()
}

func (m *Mesh) Triangle(index int) [3]types.Vec3 {
	return m.Primitives[index].Vertices
}

// A mesh instance applies a transformation to a particular Mesh. Instances
// implement the bvh.InstanceSource interface; the instanced mesh and the
// node offset of its BVH root must be attached with Bind before the
// instance can be partitioned.
type MeshInstance struct {
	MeshIndex     uint32
	Transform     types.Mat4
	MaterialIndex uint32

	bbox    types.AABB
	bvhRoot uint32
}

// Create a new mesh instance.
func NewMeshInstance(meshIndex uint32, transform types.Mat4) *MeshInstance {
	return &MeshInstance{
		MeshIndex: meshIndex,
		Transform: transform,
		bbox:      types.EmptyAABB(),
	}
}

// Attach the instanced mesh and the node offset of its BVH root. The
// instance world bbox is calculated by transforming the mesh bbox.
func (mi *MeshInstance) Bind(mesh *Mesh, bvhRoot uint32) {
	mi.bbox = mesh.BBox().Transform(mi.Transform)
	mi.bvhRoot = bvhRoot
}

// Get the instance world AABB.
func (mi *MeshInstance) BBox() types.AABB {
	return mi.bbox
}

func (mi *MeshInstance) NumSubObjects() int { return 1 }

func (mi *MeshInstance) SubObjectBounds(int) types.AABB { return mi.bbox }

func (mi *MeshInstance) WorldTransform() types.Mat4 { return mi.Transform }

func (mi *MeshInstance) MeshBvhRoot() uint32 { return mi.bvhRoot }

func (mi *MeshInstance) Material() uint32 { return mi.MaterialIndex }

// A named material referenced by scene primitives.
type Material struct {
	Name string

	// True if material is referenced by scene geometry.
	Used bool
}

// The scene contains all elements that are processed and optimized by the
// scene compiler.
type Scene struct {
	Meshes        []*Mesh
	MeshInstances []*MeshInstance
	Materials     []*Material
}

// Create a new scene.
func NewScene() *Scene {
	return &Scene{
		Meshes:        make([]*Mesh, 0),
		MeshInstances: make([]*MeshInstance, 0),
		Materials:     make([]*Material, 0),
	}
}

// Lookup a material by name and return its index or -1 if not found.
func (sc *Scene) MaterialIndex(name string) int {
	for index, mat := range sc.Materials {
		if mat.Name == name {
			return index
		}
	}
	return -1
}
