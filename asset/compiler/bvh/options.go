package bvh

import (
	"runtime"
	"time"
)

const (
	// Right children of split requests covering more primitives than this
	// threshold are handed off to the shared stack.
	DefaultChunkThreshold = 4096

	// Capacity of every split request stack.
	DefaultStackCapacity = 1024

	// How often the launching goroutine checks for build completion.
	DefaultPollInterval = time.Millisecond
)

type Options struct {
	// Number of build workers. A value of 1 selects the serial build path.
	Workers int

	// Primitive count above which right children are shared with other workers.
	ChunkThreshold int

	// Capacity of each local split request stack. The shared stack holds up
	// to StackCapacity * Workers entries; when it fills up, requests stay on
	// the local stack of the worker that produced them.
	StackCapacity int

	// Completion polling interval for parallel builds.
	PollInterval time.Duration

	// Node memory allocator.
	Allocator Allocator
}

// Get the default build options. The worker count matches the number of CPUs.
func DefaultOptions() Options {
	return Options{
		Workers:        runtime.NumCPU(),
		ChunkThreshold: DefaultChunkThreshold,
		StackCapacity:  DefaultStackCapacity,
		PollInterval:   DefaultPollInterval,
		Allocator:      HeapAllocator{},
	}
}

// Replace unset fields with their defaults.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.ChunkThreshold <= 0 {
		o.ChunkThreshold = def.ChunkThreshold
	}
	if o.StackCapacity <= 0 {
		o.StackCapacity = def.StackCapacity
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.Allocator == nil {
		o.Allocator = def.Allocator
	}
	return o
}
