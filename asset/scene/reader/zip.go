package reader

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/achilleasa/accel/asset"
	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/log"
)

const (
	dataFile = "scene.bin"
	nodeFile = "bvh.bin"
)

type zipSceneReader struct {
	logger log.Logger
}

// Create a new zip scene reader
func newZipSceneReader() *zipSceneReader {
	return &zipSceneReader{
		logger: log.New("zip reader"),
	}
}

// Read scene definition from zip file. If the archive also carries a raw
// node buffer it must match the node list of the encoded scene.
func (p *zipSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	p.logger.Noticef(`parsing compiled scene from "%s"`, sceneRes.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := io.ReadAll(sceneRes)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var sc *scene.Scene
	var nodes []scene.BvhNode
	for _, f := range zr.File {
		switch f.Name {
		case dataFile:
			sc = &scene.Scene{}
			err = readZipEntry(f, func(r io.Reader) error {
				return gob.NewDecoder(r).Decode(sc)
			})
		case nodeFile:
			err = readZipEntry(f, func(r io.Reader) error {
				buf, err := io.ReadAll(r)
				if err != nil {
					return err
				}
				nodes, err = scene.ReadNodeBuffer(buf)
				return err
			})
		default:
			p.logger.Warningf("unknown file %s in scene zip file; skipping", f.Name)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("zipSceneReader: failed to load %s: %s", f.Name, err.Error())
		}
	}

	if sc == nil {
		return nil, fmt.Errorf("zipSceneReader: missing %s", dataFile)
	}
	if nodes != nil {
		if len(nodes) != len(sc.BvhNodeList) {
			return nil, fmt.Errorf("zipSceneReader: %s holds %d nodes; expected %d", nodeFile, len(nodes), len(sc.BvhNodeList))
		}
		for index := range nodes {
			if nodes[index] != sc.BvhNodeList[index] {
				return nil, fmt.Errorf("zipSceneReader: %s node %d does not match the scene node list", nodeFile, index)
			}
		}
	}

	p.logger.Noticef("loaded scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}

func readZipEntry(f *zip.File, decode func(io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return decode(rc)
}
