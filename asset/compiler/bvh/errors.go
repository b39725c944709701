package bvh

import "errors"

var (
	ErrNoPrimitives      = errors.New("bvh: no primitives to partition")
	ErrStackOverflow     = errors.New("bvh: split request stack overflow")
	ErrAllocation        = errors.New("bvh: node allocation failed")
	ErrUnsupportedObject = errors.New("bvh: object not supported by encoding")
	ErrLeafSize          = errors.New("bvh: encoding must store exactly one primitive per leaf")
	ErrTooManyPrimitives = errors.New("bvh: primitive count exceeds node address range")
)
