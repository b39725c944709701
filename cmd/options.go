package cmd

import (
	"github.com/achilleasa/accel/asset/compiler/bvh"
	"github.com/urfave/cli"
)

// Flags shared by all commands that build BVH trees.
var BuildFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "workers, w",
		Usage: "number of build workers; 0 uses one worker per CPU",
	},
	cli.IntFlag{
		Name:  "chunk-threshold",
		Value: bvh.DefaultChunkThreshold,
		Usage: "primitive count above which split requests are shared with other workers",
	},
	cli.IntFlag{
		Name:  "stack-capacity",
		Value: bvh.DefaultStackCapacity,
		Usage: "capacity of each split request stack",
	},
}

// Assemble build options from the command flags.
func buildOptions(ctx *cli.Context) bvh.Options {
	opts := bvh.DefaultOptions()
	if workers := ctx.Int("workers"); workers > 0 {
		opts.Workers = workers
	}
	if threshold := ctx.Int("chunk-threshold"); threshold > 0 {
		opts.ChunkThreshold = threshold
	}
	if capacity := ctx.Int("stack-capacity"); capacity > 0 {
		opts.StackCapacity = capacity
	}
	return opts
}
