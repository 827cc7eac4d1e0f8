// Package photon is a LayerProcessor that writes sliced layers to a
// ChiTuBox .cbddlp file (which is identical to an AnyCubic .photon file).
//
// This is based on: github.com/Andoryuuta/photon
// with the major difference that this code does not hold the full
// model in-memory but instead streams the images to the output file.
package photon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/gmlewis/threemf-slicer/preview"
	"github.com/gmlewis/threemf-slicer/slicer"
)

// PixelPitch is the printer screen pixel size in millimeters.
const PixelPitch = 0.04725

// Slice writes the layers to <baseFilename>.cbddlp, rendering each layer
// at the printer's pixel pitch.
func Slice(baseFilename string, layers []*slicer.Layer, box mesh.Box, thickness float64) error {
	dlpName := fmt.Sprintf("%v.cbddlp", baseFilename)

	w, err := os.Create(dlpName)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	d := newDLP(w, len(layers), box, 1/PixelPitch, thickness)
	if err := d.write(layers); err != nil {
		w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("Unable to close file: %w", err)
	}
	log.Printf("Wrote %v layers to %v", len(layers), dlpName)
	return nil
}

// dlp represents a LayerProcessor that writes its results
// to a ChiTuBox .cbddlp (aka AnyCubic .photon) file.
type dlp struct {
	w io.WriteSeeker

	numLayers int
	box       mesh.Box
	res       float64 // pixels per millimeter
	thickness float64 // millimeters

	layerHeaderOffset0 int64
	layerHeaders       []binCompatLayerHeader
}

// dlp implements the LayerProcessor interface.
var _ slicer.LayerProcessor = &dlp{}

func newDLP(w io.WriteSeeker, numLayers int, box mesh.Box, res, thickness float64) *dlp {
	return &dlp{w: w, numLayers: numLayers, box: box, res: res, thickness: thickness}
}

func (d *dlp) write(layers []*slicer.Layer) error {
	if len(layers) == 0 {
		return errors.New("no layers to write")
	}
	if err := slicer.Process(layers, d, slicer.MinToMax); err != nil {
		return err
	}

	// Go back and write all the image offset data.
	if _, err := d.w.Seek(d.layerHeaderOffset0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return binary.Write(d.w, binary.LittleEndian, d.layerHeaders)
}

func (d *dlp) ProcessLayer(layer *slicer.Layer) error {
	img := preview.Render(layer.Mesh, d.box, d.res)
	if layer.Index == 0 {
		return d.writeHeader(img)
	}

	return d.writeLayer(layer.Index, img)
}
