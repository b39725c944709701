package bvh

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/accel/asset/scene"
)

// The build context owns the state shared by the build workers for the
// duration of a single Build call.
type buildContext struct {
	opts  Options
	enc   Encoding
	prims *primitiveSet
	refs  []uint32
	nodes []scene.BvhNode

	// Shared split request stack. Access is protected by mu; cond is
	// signalled whenever a request is pushed or the build shuts down.
	mu     sync.Mutex
	cond   *sync.Cond
	global *requestStack

	shutdown      atomic.Bool
	refsProcessed atomic.Int64

	errMu sync.Mutex
	err   error

	wg    sync.WaitGroup
	stats buildCounters
}

type buildCounters struct {
	leafs          atomic.Int64
	sahSplits      atomic.Int64
	midpointSplits atomic.Int64
	medianSplits   atomic.Int64
	maxDepth       atomic.Int64
}

func (c *buildCounters) countSplit(kind splitKind) {
	switch kind {
	case sahSplit:
		c.sahSplits.Add(1)
	case midpointSplit:
		c.midpointSplits.Add(1)
	default:
		c.medianSplits.Add(1)
	}
}

func newBuildContext(opts Options, enc Encoding, prims *primitiveSet, refs []uint32, nodes []scene.BvhNode) *buildContext {
	ctx := &buildContext{
		opts:  opts,
		enc:   enc,
		prims: prims,
		refs:  refs,
		nodes: nodes,
	}
	ctx.cond = sync.NewCond(&ctx.mu)
	return ctx
}

func (ctx *buildContext) trackDepth(depth int) {
	d := int64(depth)
	for {
		cur := ctx.stats.maxDepth.Load()
		if d <= cur || ctx.stats.maxDepth.CompareAndSwap(cur, d) {
			return
		}
	}
}

// Build the tree starting from the root request.
func (ctx *buildContext) run(root splitRequest) error {
	if ctx.opts.Workers <= 1 {
		return ctx.buildSerial(root)
	}
	return ctx.buildParallel(root)
}

// Build the tree on the calling goroutine.
func (ctx *buildContext) buildSerial(root splitRequest) error {
	local := newRequestStack(ctx.opts.StackCapacity)
	local.push(root)
	return ctx.drain(local)
}

// Build the tree using a pool of workers. The calling goroutine waits until
// all refs have been placed in leafs or a worker reports a failure.
func (ctx *buildContext) buildParallel(root splitRequest) error {
	ctx.global = newRequestStack(ctx.opts.StackCapacity * ctx.opts.Workers)
	ctx.global.push(root)

	ctx.wg.Add(ctx.opts.Workers)
	for i := 0; i < ctx.opts.Workers; i++ {
		go ctx.worker()
	}

	total := int64(ctx.prims.len())
	for ctx.refsProcessed.Load() < total && ctx.failure() == nil {
		time.Sleep(ctx.opts.PollInterval)
	}

	ctx.stop()
	ctx.wg.Wait()
	return ctx.failure()
}

// The worker loop: grab a request from the shared stack and build its
// subtree using a local stack until there is nothing left to do.
func (ctx *buildContext) worker() {
	defer ctx.wg.Done()

	local := newRequestStack(ctx.opts.StackCapacity)
	for {
		ctx.mu.Lock()
		for ctx.global.len() == 0 && !ctx.shutdown.Load() {
			ctx.cond.Wait()
		}
		if ctx.shutdown.Load() {
			ctx.mu.Unlock()
			return
		}
		req, _ := ctx.global.pop()
		ctx.mu.Unlock()

		local.push(req)
		if err := ctx.drain(local); err != nil {
			ctx.fail(err)
			return
		}
	}
}

// Process requests from the local stack depth-first until it is empty.
func (ctx *buildContext) drain(local *requestStack) error {
	for !ctx.shutdown.Load() {
		req, ok := local.pop()
		if !ok {
			return nil
		}

		isLeaf, left, right := ctx.handleRequest(&req)
		if isLeaf {
			ctx.refsProcessed.Add(int64(req.count))
			continue
		}

		// Large right subtrees are offered to other workers; the left
		// subtree is always processed locally.
		if !(right.count > ctx.opts.ChunkThreshold && ctx.share(right)) && !local.push(right) {
			return ErrStackOverflow
		}
		if !local.push(left) {
			return ErrStackOverflow
		}
	}
	return nil
}

// Push a request to the shared stack and wake up a waiting worker. Returns
// false if the request could not be shared.
func (ctx *buildContext) share(req splitRequest) bool {
	if ctx.global == nil {
		return false
	}

	ctx.mu.Lock()
	pushed := ctx.global.push(req)
	ctx.mu.Unlock()

	if pushed {
		ctx.cond.Signal()
	}
	return pushed
}

// Record a build failure and stop all workers.
func (ctx *buildContext) fail(err error) {
	ctx.errMu.Lock()
	if ctx.err == nil {
		ctx.err = err
	}
	ctx.errMu.Unlock()
	ctx.stop()
}

func (ctx *buildContext) failure() error {
	ctx.errMu.Lock()
	defer ctx.errMu.Unlock()
	return ctx.err
}

func (ctx *buildContext) stop() {
	ctx.shutdown.Store(true)
	ctx.mu.Lock()
	ctx.cond.Broadcast()
	ctx.mu.Unlock()
}
