package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/achilleasa/accel/asset/compiler/bvh"
	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/asset/scene/reader"
	"github.com/achilleasa/accel/asset/scene/writer"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Compile scene to binary format.
func CompileScene(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	opts := buildOptions(ctx)

	for idx := 0; idx < ctx.NArg(); idx++ {
		sceneFile := ctx.Args().Get(idx)
		if !strings.HasSuffix(sceneFile, ".obj") {
			logger.Warningf("skipping unsupported file %s", sceneFile)
			continue
		}

		logger.Noticef("parsing and compiling scene: %s", sceneFile)
		sc, err := reader.ReadScene(sceneFile, opts)
		if err != nil {
			return err
		}

		// Display compiled scene info
		logger.Noticef("scene information:\n%s", sc.Stats())

		zipFile := strings.TrimSuffix(sceneFile, ".obj") + ".zip"
		err = writer.WriteScene(sc, zipFile)
		if err != nil {
			return err
		}
	}

	return nil
}

func loadCompiledScene(ctx *cli.Context) (*scene.Scene, error) {
	if ctx.NArg() != 1 {
		return nil, errors.New("missing compiled scene zip file")
	}

	sceneFile := ctx.Args().First()
	if !strings.HasSuffix(sceneFile, ".zip") {
		return nil, errors.New("only compiled scene files with a .zip extension are supported")
	}

	return reader.ReadScene(sceneFile, bvh.DefaultOptions())
}

// Display compiled scene info.
func ShowSceneInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	sc, err := loadCompiledScene(ctx)
	if err != nil {
		return err
	}

	// Display compiled scene info
	logger.Noticef("scene information:\n%s", sc.Stats())

	return nil
}

// Print the BVH nodes of a compiled scene or export them as a raw node buffer.
func DumpNodes(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	sc, err := loadCompiledScene(ctx)
	if err != nil {
		return err
	}

	if out := ctx.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		err = scene.WriteNodeBuffer(f, sc.BvhNodeList)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		logger.Noticef("wrote %d nodes to %s", len(sc.BvhNodeList), out)
		return nil
	}

	limit := ctx.Int("limit")
	if limit <= 0 || limit > len(sc.BvhNodeList) {
		limit = len(sc.BvhNodeList)
	}
	fmt.Print(nodeTable(sc, limit))
	return nil
}

// Format the first limit nodes of the scene node list.
func nodeTable(sc *scene.Scene, limit int) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Index", "Tree", "Kind", "Left", "Right", "Payload"})

	for index := 0; index < limit; index++ {
		node := &sc.BvhNodeList[index]
		tree := "mesh"
		if uint32(index) < sc.TopLevelNodes {
			tree = "top"
		}

		row := []string{fmt.Sprint(index), tree, node.Kind().String(), "", "", ""}
		switch {
		case node.IsInternal():
			row[3] = fmt.Sprint(node.ChildIndex(0))
			row[4] = fmt.Sprint(node.ChildIndex(1))
		case tree == "top":
			_, instIndex, meshRoot, material := node.Instance()
			row[5] = fmt.Sprintf("instance %d, mesh root %d, material %d", instIndex, meshRoot, material)
		default:
			_, meshIndex, primIndex := node.Triangle()
			row[5] = fmt.Sprintf("mesh %d, triangle %d", meshIndex, primIndex)
		}
		table.Append(row)
	}

	table.SetFooter([]string{"", "", "", "", "Nodes", fmt.Sprintf("%d of %d", limit, len(sc.BvhNodeList))})
	table.Render()
	return buf.String()
}
