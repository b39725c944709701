package writer

import (
	"archive/zip"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/achilleasa/accel/asset/scene"
	"github.com/achilleasa/accel/log"
)

const (
	// Gob-encoded scene.
	dataFile = "scene.bin"

	// Raw node buffer that can be uploaded to the GPU as-is.
	nodeFile = "bvh.bin"
)

type zipSceneWriter struct {
	logger   log.Logger
	filename string
}

// Create a new zip scene writer.
func newZipSceneWriter(filename string) *zipSceneWriter {
	return &zipSceneWriter{
		logger:   log.New("zip writer"),
		filename: filename,
	}
}

// Write compiled scene to a zip file.
func (w *zipSceneWriter) Write(sc *scene.Scene) error {
	w.logger.Noticef(`writing compiled scene to "%s"`, w.filename)
	start := time.Now()

	f, err := os.Create(w.filename)
	if err != nil {
		return err
	}

	err = w.writeArchive(f, sc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(w.filename)
		return err
	}

	w.logger.Noticef("wrote scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}

func (w *zipSceneWriter) writeArchive(f *os.File, sc *scene.Scene) error {
	zw := zip.NewWriter(f)

	dw, err := zw.Create(dataFile)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(dw).Encode(sc); err != nil {
		return fmt.Errorf("zipSceneWriter: failed to encode %s: %s", dataFile, err.Error())
	}

	nw, err := zw.Create(nodeFile)
	if err != nil {
		return err
	}
	if err = scene.WriteNodeBuffer(nw, sc.BvhNodeList); err != nil {
		return fmt.Errorf("zipSceneWriter: failed to encode %s: %s", nodeFile, err.Error())
	}

	return zw.Close()
}
