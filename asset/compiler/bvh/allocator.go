package bvh

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/accel/asset/scene"
)

// Minimum alignment for node memory; enough for 16-byte vector loads.
const NodeAlignment = 16

// The Allocator interface is implemented by node memory providers.
// Implementations must be safe for concurrent use; the scene compiler builds
// several mesh trees at once using the same Options.
type Allocator interface {
	// Allocate a zeroed block of size bytes whose address is a multiple of alignment.
	Allocate(size, alignment int) ([]byte, error)

	// Release a block returned by Allocate.
	Deallocate(block []byte)
}

// HeapAllocator serves blocks from the Go heap. Blocks are over-allocated and
// trimmed so that the returned slice starts at an aligned address.
type HeapAllocator struct{}

// Allocate an aligned block.
func (HeapAllocator) Allocate(size, alignment int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid block size %d", ErrAllocation, size)
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d is not a power of two", ErrAllocation, alignment)
	}

	buf := make([]byte, size+alignment)
	offset := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) & uintptr(alignment-1)); rem != 0 {
		offset = alignment - rem
	}
	return buf[offset : offset+size : offset+size], nil
}

// Deallocate drops the block; the garbage collector reclaims it.
func (HeapAllocator) Deallocate([]byte) {}

// Allocate memory for count nodes and return a node slice backed by it.
func allocNodes(alloc Allocator, count int) ([]scene.BvhNode, []byte, error) {
	nodeSize := int(unsafe.Sizeof(scene.BvhNode{}))
	block, err := alloc.Allocate(count*nodeSize, NodeAlignment)
	if err != nil {
		return nil, nil, err
	}
	if len(block) < count*nodeSize || uintptr(unsafe.Pointer(&block[0]))%NodeAlignment != 0 {
		alloc.Deallocate(block)
		return nil, nil, fmt.Errorf("%w: allocator returned a misaligned or short block", ErrAllocation)
	}

	nodes := unsafe.Slice((*scene.BvhNode)(unsafe.Pointer(&block[0])), count)
	return nodes, block, nil
}
