package scene

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrTruncatedNodeBuffer is returned when a node buffer length is not a
// multiple of the node size.
var ErrTruncatedNodeBuffer = errors.New("scene: truncated bvh node buffer")

// Size of an encoded BvhNode in bytes.
const NodeBufferStride = 64

// Write the node list using the little-endian layout expected by the GPU
// traversal kernels.
func WriteNodeBuffer(w io.Writer, nodes []BvhNode) error {
	return binary.Write(w, binary.LittleEndian, nodes)
}

// Decode a node buffer produced by WriteNodeBuffer.
func ReadNodeBuffer(data []byte) ([]BvhNode, error) {
	if len(data)%NodeBufferStride != 0 {
		return nil, ErrTruncatedNodeBuffer
	}

	nodes := make([]BvhNode, len(data)/NodeBufferStride)
	if _, err := binary.Decode(data, binary.LittleEndian, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}
