package cmd

import (
	"bytes"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/achilleasa/accel/asset/compiler/bvh"
	"github.com/achilleasa/accel/asset/compiler/input"
	"github.com/achilleasa/accel/types"
	"github.com/chewxy/math32"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

type benchResult struct {
	workers int
	stats   bvh.Stats
}

// Benchmark serial and parallel BVH builds over synthetic geometry.
func Bench(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	opts := buildOptions(ctx)
	rng := rand.New(rand.NewSource(ctx.Int64("seed")))
	rounds := max(ctx.Int("rounds"), 1)

	workerCounts := ctx.IntSlice("worker-counts")
	if len(workerCounts) == 0 {
		workerCounts = []int{1, runtime.NumCPU()}
	}

	var objects []bvh.Object
	var enc bvh.Encoding
	switch kind := ctx.String("geometry"); kind {
	case "triangles":
		objects = []bvh.Object{randomTriangles(rng, ctx.Int("count"), float32(ctx.Float64("extent")))}
		enc = bvh.TriangleEncoding{}
	case "instances":
		objects = randomInstances(rng, ctx.Int("count"), float32(ctx.Float64("extent")))
		enc = bvh.InstanceEncoding{}
	default:
		return fmt.Errorf("unsupported geometry type %q; expected triangles or instances", kind)
	}

	logger.Noticef("benchmarking %d build rounds per worker count", rounds)
	results := make([]benchResult, 0, len(workerCounts))
	for _, workers := range workerCounts {
		opts.Workers = workers

		var best bvh.Stats
		for round := 0; round < rounds; round++ {
			_, stats, err := bvh.Build(objects, enc, opts)
			if err != nil {
				return err
			}
			if round == 0 || stats.BuildTime < best.BuildTime {
				best = stats
			}
		}
		logger.Infof("workers: %d, best build time: %d ms", workers, best.BuildTime.Nanoseconds()/1e6)
		results = append(results, benchResult{workers: workers, stats: best})
	}

	fmt.Print(benchTable(results))
	return nil
}

func benchTable(results []benchResult) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Workers", "Effective workers", "Primitives", "Max depth", "SAH splits", "Build time", "Speedup"})

	var baseline time.Duration
	for index, res := range results {
		if index == 0 {
			baseline = res.stats.BuildTime
		}
		speedup := "-"
		if res.stats.BuildTime > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(baseline)/float64(res.stats.BuildTime))
		}
		table.Append([]string{
			fmt.Sprint(res.workers),
			fmt.Sprint(res.stats.Workers),
			fmt.Sprint(res.stats.Primitives),
			fmt.Sprint(res.stats.MaxDepth),
			fmt.Sprint(res.stats.SAHSplits),
			fmt.Sprintf("%d ms", res.stats.BuildTime.Nanoseconds()/1e6),
			speedup,
		})
	}

	table.Render()
	return buf.String()
}

// Generate a soup of small triangles scattered inside a cube.
func randomTriangles(rng *rand.Rand, count int, extent float32) *input.Mesh {
	mesh := input.NewMesh("bench")
	randVec := func(scale float32) types.Vec3 {
		return types.Vec3{rng.Float32() * scale, rng.Float32() * scale, rng.Float32() * scale}
	}
	for i := 0; i < count; i++ {
		origin := randVec(extent)
		mesh.AddTriangle(origin, origin.Add(randVec(1)), origin.Add(randVec(1)), 0)
	}
	return mesh
}

// Generate randomly placed and rotated instances of a unit tetrahedron.
func randomInstances(rng *rand.Rand, count int, extent float32) []bvh.Object {
	mesh := input.NewMesh("tetrahedron")
	v := [4]types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	mesh.AddTriangle(v[0], v[1], v[2], 0)
	mesh.AddTriangle(v[0], v[1], v[3], 0)
	mesh.AddTriangle(v[0], v[2], v[3], 0)
	mesh.AddTriangle(v[1], v[2], v[3], 0)

	objects := make([]bvh.Object, count)
	for i := range objects {
		axis := types.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
		if axis.Len() == 0 {
			axis = types.Vec3{0, 1, 0}
		}
		rot := types.QuatFromAxisAngle(axis, rng.Float32()*2*math32.Pi).Mat4()
		translation := types.Vec3{rng.Float32() * extent, rng.Float32() * extent, rng.Float32() * extent}

		inst := input.NewMeshInstance(0, types.Translate4(translation).Mul4(rot))
		inst.MaterialIndex = uint32(i % 8)
		inst.Bind(mesh, 0)
		objects[i] = inst
	}
	return objects
}
