package compiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/accel/asset/compiler/bvh"
	"github.com/achilleasa/accel/asset/compiler/input"
	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoInstances       = errors.New("compiler: scene does not define any mesh instances")
	ErrEmptyMesh         = errors.New("compiler: mesh has no primitives")
	ErrInvalidMeshIndex  = errors.New("compiler: mesh instance references unknown mesh")
	ErrTooManyScenePrims = errors.New("compiler: scene node count exceeds addressable range")
)

type sceneCompiler struct {
	parsedScene    *input.Scene
	optimizedScene *scene.Scene
	opts           bvh.Options
	logger         log.Logger
}

// Compile a scene representation parsed by a scene reader into a GPU-friendly
// optimized scene format.
func Compile(parsedScene *input.Scene, opts bvh.Options) (*scene.Scene, error) {
	compiler := &sceneCompiler{
		parsedScene:    parsedScene,
		optimizedScene: &scene.Scene{},
		opts:           opts,
		logger:         log.New("scene compiler"),
	}

	start := time.Now()
	compiler.logger.Noticef("compiling scene")

	err := compiler.validate()
	if err != nil {
		return nil, err
	}

	err = compiler.partitionGeometry()
	if err != nil {
		return nil, err
	}

	compiler.logger.Noticef("compiled scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return compiler.optimizedScene, nil
}

// Ensure that every mesh instance points to a mesh with at least one primitive.
func (sc *sceneCompiler) validate() error {
	if len(sc.parsedScene.MeshInstances) == 0 {
		return ErrNoInstances
	}

	for index, mi := range sc.parsedScene.MeshInstances {
		if int(mi.MeshIndex) >= len(sc.parsedScene.Meshes) {
			return fmt.Errorf("%w: instance %d references mesh %d", ErrInvalidMeshIndex, index, mi.MeshIndex)
		}
	}

	for _, pm := range sc.parsedScene.Meshes {
		if len(pm.Primitives) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyMesh, pm.Name)
		}
	}
	return nil
}

// Generate a two-level BVH tree for the scene. The top level BVH tree partitions
// the mesh instances. An additional BVH tree is also generated for each
// defined scene mesh. Each mesh instance points to the root BVH node of a mesh.
//
// The top-level tree occupies the first 2*I-1 slots of the node list and is
// followed by the mesh trees in mesh order.
func (sc *sceneCompiler) partitionGeometry() error {
	start := time.Now()
	sc.logger.Notice("partitioning geometry")

	meshes := sc.parsedScene.Meshes
	instances := sc.parsedScene.MeshInstances

	// Reserve space for all trees so each mesh tree can be copied into its
	// final location as soon as it is built.
	topLevelNodes := uint64(2*len(instances) - 1)
	totalNodes := topLevelNodes
	meshBvhRoots := make([]uint32, len(meshes))
	for mIndex, pm := range meshes {
		meshBvhRoots[mIndex] = uint32(totalNodes)
		totalNodes += uint64(2*len(pm.Primitives) - 1)
		if totalNodes >= uint64(scene.InvalidAddr) {
			return ErrTooManyScenePrims
		}
	}
	nodeList := make([]scene.BvhNode, totalNodes)

	// Partition each mesh into its own BVH.
	var group errgroup.Group
	group.SetLimit(max(sc.opts.Workers, 1))
	for mIndex, pm := range meshes {
		group.Go(func() error {
			sc.logger.Infof(`building BVH tree for "%s" (%d primitives)`, pm.Name, len(pm.Primitives))
			bvhNodes, _, err := bvh.Build([]bvh.Object{pm}, bvh.TriangleEncoding{}, sc.opts)
			if err != nil {
				return fmt.Errorf("compiler: mesh %q: %w", pm.Name, err)
			}

			// Apply offset to bvh nodes and tag leafs with the mesh index
			offset := meshBvhRoots[mIndex]
			for index := range bvhNodes {
				node := &bvhNodes[index]
				if node.IsInternal() {
					node.OffsetChildNodes(offset)
				} else {
					node.MeshID = uint32(mIndex)
				}
			}
			copy(nodeList[offset:], bvhNodes)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// Partition mesh instances so that each instance ends up in its own BVH leaf.
	sc.logger.Infof("building scene BVH tree (%d meshes, %d mesh instances)", len(meshes), len(instances))
	volList := make([]bvh.Object, len(instances))
	for index, mi := range instances {
		mi.Bind(meshes[mi.MeshIndex], meshBvhRoots[mi.MeshIndex])
		volList[index] = mi
	}
	topNodes, topStats, err := bvh.Build(volList, bvh.InstanceEncoding{}, sc.opts)
	if err != nil {
		return fmt.Errorf("compiler: scene BVH: %w", err)
	}
	copy(nodeList, topNodes)
	sc.logger.Debugf("scene BVH stats:\n%s", topStats.Table())

	sc.logger.Infof("processing %d mesh instances", len(instances))

	// Process each mesh instance
	bounds := topNodes[0].ChildBBox(0).Union(topNodes[0].ChildBBox(1))
	if !topNodes[0].IsInternal() {
		bounds = instances[0].BBox()
	}
	sc.optimizedScene.MeshInstanceList = make([]scene.MeshInstance, len(instances))
	for index, pmi := range instances {
		mi := &sc.optimizedScene.MeshInstanceList[index]
		mi.MeshIndex = pmi.MeshIndex
		mi.BvhRoot = meshBvhRoots[pmi.MeshIndex]
		mi.MaterialIndex = pmi.MaterialIndex

		// We need to invert the transformation matrix when performing ray traversal
		mi.Transform = pmi.Transform.Inv()
	}

	sc.optimizedScene.BvhNodeList = nodeList
	sc.optimizedScene.TopLevelNodes = uint32(topLevelNodes)
	sc.optimizedScene.MeshBvhRoots = meshBvhRoots
	sc.optimizedScene.Bounds = bounds

	sc.logger.Noticef("partitioned geometry in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}
