package bvh

import (
	"time"

	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/log"
	"github.com/achilleasa/accel/types"
)

// BVH is a binary bounding volume hierarchy stored as a flat node array.
//
// For N primitives the array holds exactly 2N-1 nodes. The root lives at
// index 0; the left child of node i lives at i+1 and the right child at
// i+2L where L is the number of primitives in the left subtree.
type BVH struct {
	logger log.Logger
	opts   Options
	enc    Encoding

	// Node memory obtained from the allocator and the node view on top of it.
	block []byte
	nodes []scene.BvhNode

	// Ref permutation produced by the last build.
	refs []uint32

	bounds types.AABB
	stats  Stats
}

// Create a new BVH that encodes its leafs using enc.
func New(enc Encoding, opts Options) *BVH {
	return &BVH{
		logger: log.New("bvh builder"),
		opts:   opts.withDefaults(),
		enc:    enc,
		bounds: types.EmptyAABB(),
	}
}

// Build the hierarchy over all sub-objects of the supplied objects. Any
// previously built tree is released first. If the build fails the BVH is
// left empty.
func (b *BVH) Build(objects []Object) error {
	b.Clear()

	start := time.Now()
	prims, err := preprocess(objects, b.enc)
	if err != nil {
		b.logger.Errorf("could not prepare primitives: %s", err.Error())
		return err
	}

	numPrims := prims.len()
	nodes, block, err := allocNodes(b.opts.Allocator, 2*numPrims-1)
	if err != nil {
		b.logger.Errorf("could not allocate %d nodes: %s", 2*numPrims-1, err.Error())
		return err
	}

	refs := make([]uint32, numPrims)
	for i := range refs {
		refs[i] = uint32(i)
	}

	workers := b.opts.Workers
	if numPrims <= b.opts.ChunkThreshold {
		// Nothing would ever be shared with other workers.
		workers = 1
	}
	opts := b.opts
	opts.Workers = workers

	ctx := newBuildContext(opts, b.enc, prims, refs, nodes)
	err = ctx.run(splitRequest{
		bounds:         prims.bounds,
		centroidBounds: prims.centroidBounds,
		start:          0,
		count:          numPrims,
	})
	if err != nil {
		b.opts.Allocator.Deallocate(block)
		b.logger.Errorf("bvh build failed: %s", err.Error())
		return err
	}

	finalize(nodes, b.enc, objects)

	b.block, b.nodes, b.refs = block, nodes, refs
	b.bounds = prims.bounds
	b.stats = Stats{
		Primitives:     numPrims,
		Nodes:          len(nodes),
		Leafs:          int(ctx.stats.leafs.Load()),
		MaxDepth:       int(ctx.stats.maxDepth.Load()),
		SAHSplits:      int(ctx.stats.sahSplits.Load()),
		MidpointSplits: int(ctx.stats.midpointSplits.Load()),
		MedianSplits:   int(ctx.stats.medianSplits.Load()),
		Workers:        workers,
		BuildTime:      time.Since(start),
	}

	b.logger.Debugf(
		"BVH tree build time: %d ms, workers: %d, maxDepth: %d, nodes: %d, leafs: %d",
		b.stats.BuildTime.Nanoseconds()/1e6, workers,
		b.stats.MaxDepth, b.stats.Nodes, b.stats.Leafs,
	)
	return nil
}

// Release the node and ref arrays.
func (b *BVH) Clear() {
	if b.block != nil {
		b.opts.Allocator.Deallocate(b.block)
	}
	b.block, b.nodes, b.refs = nil, nil, nil
	b.bounds = types.EmptyAABB()
	b.stats = Stats{}
}

// Get the root node or nil if the BVH is empty.
func (b *BVH) Root() *scene.BvhNode {
	return b.Node(0)
}

// Get node at index or nil if the index is out of range.
func (b *BVH) Node(index uint32) *scene.BvhNode {
	if uint64(index) >= uint64(len(b.nodes)) {
		return nil
	}
	return &b.nodes[index]
}

// Get all nodes. The returned slice is owned by the BVH and is only valid
// until the next call to Build or Clear.
func (b *BVH) Nodes() []scene.BvhNode {
	return b.nodes
}

// Get the ref permutation of the last build; leafs appear in ref order when
// the tree is walked depth-first, left child first.
func (b *BVH) Refs() []uint32 {
	return b.refs
}

// Get the bounds of the whole hierarchy.
func (b *BVH) Bounds() types.AABB {
	return b.bounds
}

// Get the encoding used by this BVH.
func (b *BVH) Encoding() Encoding {
	return b.enc
}

// Get the stats of the last build.
func (b *BVH) Stats() Stats {
	return b.stats
}

// Build a BVH over objects and return a copy of its nodes together with the
// build stats.
func Build(objects []Object, enc Encoding, opts Options) ([]scene.BvhNode, Stats, error) {
	b := New(enc, opts)
	if err := b.Build(objects); err != nil {
		return nil, Stats{}, err
	}
	defer b.Clear()

	nodes := make([]scene.BvhNode, len(b.nodes))
	copy(nodes, b.nodes)
	return nodes, b.stats, nil
}
