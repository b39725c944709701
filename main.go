package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/accel/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "accel"
	app.Usage = "build SAH bounding volume hierarchies for ray tracing"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "set log level (debug, info, notice, warning, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "compile text scene representation into a binary compressed format",
			Description: `
Parse a scene definition from a wavefront obj file, build a two-level BVH tree
to optimize ray intersection tests and package the node buffers in a
GPU-friendly format.

The optimized scene data is written to a zip archive next to each input file.`,
			ArgsUsage: "scene_file1.obj scene_file2.obj ...",
			Flags:     cmd.BuildFlags,
			Action:    cmd.CompileScene,
		},
		{
			Name:      "info",
			Usage:     "print compiled scene information",
			ArgsUsage: "scene_file.zip",
			Action:    cmd.ShowSceneInfo,
		},
		{
			Name:      "dump",
			Usage:     "print the BVH nodes of a compiled scene",
			ArgsUsage: "scene_file.zip",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "limit, n",
					Value: 64,
					Usage: "max number of nodes to print; 0 prints all nodes",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "write the raw little-endian node buffer to this file instead",
				},
			},
			Action: cmd.DumpNodes,
		},
		{
			Name:  "bench",
			Usage: "benchmark BVH builds over synthetic geometry",
			Description: `
Generate random geometry and measure the build time of the BVH for each of the
requested worker counts.`,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "geometry, g",
					Value: "triangles",
					Usage: "geometry type (triangles or instances)",
				},
				cli.IntFlag{
					Name:  "count, c",
					Value: 1000000,
					Usage: "number of generated primitives",
				},
				cli.Float64Flag{
					Name:  "extent",
					Value: 1000,
					Usage: "side of the cube containing the generated primitives",
				},
				cli.IntSliceFlag{
					Name:  "worker-counts",
					Usage: "worker counts to benchmark; defaults to 1 and the number of CPUs",
				},
				cli.IntFlag{
					Name:  "rounds, r",
					Value: 3,
					Usage: "number of builds per worker count; the fastest one is reported",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "random generator seed",
				},
			}, cmd.BuildFlags...),
			Action: cmd.Bench,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}
