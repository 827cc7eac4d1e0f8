// Package binvox voxelizes sliced layers and writes binvox files.
package binvox

import (
	"fmt"
	"image"
	"log"
	"math"

	"github.com/gmlewis/stldice/v4/binvox"
	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/gmlewis/threemf-slicer/preview"
	"github.com/gmlewis/threemf-slicer/slicer"
)

// Slice writes the layers to <baseFilename>.binvox. Voxels are cubes with
// an edge equal to the layer thickness; one voxel row along Y per layer.
func Slice(baseFilename string, layers []*slicer.Layer, box mesh.Box, thickness float64) error {
	filename := fmt.Sprintf("%v.binvox", baseFilename)

	res := 1 / thickness
	nx, nz := preview.Size(box, res)
	ny := len(layers)
	size := box.Size()
	scale := math.Max(math.Max(size.X(), float64(ny)*thickness), size.Z())
	b := binvox.New(
		nx,
		ny,
		nz,
		box.Min.X(),
		box.Min.Y(),
		box.Min.Z(),
		scale,
		false,
	)

	c := newClient(func(x, y, z int) { b.Add(x, y, z) }, box, res)
	if err := slicer.Process(layers, c, slicer.MinToMax); err != nil {
		return fmt.Errorf("Process: %w", err)
	}
	log.Printf("Voxelized %v layers (%v voxels)", ny, c.voxels)

	log.Printf("Writing: %v", filename)
	if err := b.Write(filename, 0, 0, 0, b.NX, b.NY, b.NZ); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

// client is a LayerProcessor that turns layer previews into voxels.
type client struct {
	add    func(x, y, z int)
	box    mesh.Box
	res    float64
	voxels int
}

// client implements the LayerProcessor interface.
var _ slicer.LayerProcessor = &client{}

func newClient(add func(x, y, z int), box mesh.Box, res float64) *client {
	return &client{add: add, box: box, res: res}
}

func (c *client) ProcessLayer(layer *slicer.Layer) error {
	img := preview.Render(layer.Mesh, c.box, c.res)
	c.addSlice(img, layer.Index)
	return nil
}

// addSlice adds one voxel per filled pixel; u maps to X and v maps to Z.
func (c *client) addSlice(img image.Image, y int) {
	b := img.Bounds()
	for v := b.Min.Y; v < b.Max.Y; v++ {
		for u := b.Min.X; u < b.Max.X; u++ {
			if !preview.Filled(img, u, v) {
				continue
			}
			c.add(u-b.Min.X, y, v-b.Min.Y)
			c.voxels++
		}
	}
}
