package zipper

import (
	"archive/zip"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/gmlewis/threemf-slicer/preview"
	"github.com/gmlewis/threemf-slicer/slicer"
)

// SVXSlice writes the layers as a Shapeways SVX voxel file, one density
// slice per layer. Voxels are cubes with an edge equal to the layer
// thickness.
func SVXSlice(baseFilename string, layers []*slicer.Layer, box mesh.Box, thickness float64, author string) error {
	zp := &zipper{
		fmtStr: "density/slice%04d.png",
		format: PNG,
		box:    box,
		res:    1 / thickness,
		gray:   true,
	}
	zipName := fmt.Sprintf("%v.svx", baseFilename)
	return zp.writeFile(zipName, layers, func() error {
		return zp.writeManifest(len(layers), thickness, author)
	})
}

func (zp *zipper) writeManifest(numLayers int, thickness float64, author string) error {
	fh := &zip.FileHeader{
		Name:     "manifest.xml",
		Modified: time.Now(),
	}
	f, err := zp.w.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("Unable to create ZIP file %q: %w", fh.Name, err)
	}

	w, h := preview.Size(zp.box, zp.res)
	_, err = fmt.Fprintf(f, manifestFmt,
		w,
		numLayers,
		h,
		thickness/1000.0, // voxelSize in meters
		author,
		time.Now().Format(time.DateOnly))
	return err
}

// density converts a layer preview into an 8-bit density slice.
func density(img *image.NRGBA) *image.Gray {
	out := image.NewGray(img.Rect)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: img.NRGBAAt(x, y).A})
		}
	}
	return out
}

var manifestFmt = `<?xml version="1.0"?>

<grid version="1.0" gridSizeX="%v" gridSizeY="%v" gridSizeZ="%v"
   voxelSize="%v" subvoxelBits="8" slicesOrientation="Y" >

    <channels>
        <channel type="DENSITY" bits="8" slices="density/slice%%04d.png" />
    </channels>

    <materials>
        <material id="1" urn="urn:shapeways:materials/1" />
    </materials>

    <metadata>
        <entry key="author" value=%q />
        <entry key="creationDate" value=%q />
    </metadata>
</grid>`
