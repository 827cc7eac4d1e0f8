// Package zipper is a LayerProcessor that writes layer previews to ZIP files.
package zipper

import (
	"archive/zip"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/gmlewis/threemf-slicer/preview"
	"github.com/gmlewis/threemf-slicer/slicer"
)

// Format selects the image encoding of ZIP entries.
type Format int

const (
	PNG Format = iota
	WebP
)

func (f Format) String() string {
	if f == WebP {
		return "webp"
	}
	return "png"
}

// Slice writes one preview image per layer into <baseFilename>-<format>.zip.
// box is the bounding box of the sliced mesh and res is in pixels per
// millimeter.
func Slice(baseFilename string, layers []*slicer.Layer, box mesh.Box, res float64, format Format) error {
	zipName := fmt.Sprintf("%v-%v.zip", baseFilename, format)
	log.Printf("MBB=(%v,%v,%v)-(%v,%v,%v)", box.Min.X(), box.Min.Y(), box.Min.Z(), box.Max.X(), box.Max.Y(), box.Max.Z())

	zp := &zipper{
		fmtStr: "layer%04d." + format.String(),
		format: format,
		box:    box,
		res:    res,
	}
	return zp.writeFile(zipName, layers, nil)
}

// zipper represents a LayerProcessor that writes its results to a ZIP file.
type zipper struct {
	w      *zip.Writer
	fmtStr string
	format Format
	box    mesh.Box
	res    float64
	// gray writes density slices instead of color previews.
	gray bool
}

// zipper implements the LayerProcessor interface.
var _ slicer.LayerProcessor = &zipper{}

func (zp *zipper) writeFile(zipName string, layers []*slicer.Layer, extra func() error) error {
	zf, err := os.Create(zipName)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	if err := zp.write(zf, layers, extra); err != nil {
		zf.Close()
		return err
	}
	if err := zf.Close(); err != nil {
		return fmt.Errorf("Unable to close ZIP file: %w", err)
	}
	log.Printf("Wrote %v layers to %v", len(layers), zipName)
	return nil
}

func (zp *zipper) write(out io.Writer, layers []*slicer.Layer, extra func() error) error {
	zp.w = zip.NewWriter(out)
	if extra != nil {
		if err := extra(); err != nil {
			return err
		}
	}
	if err := slicer.Process(layers, zp, slicer.MinToMax); err != nil {
		return err
	}
	if err := zp.w.Close(); err != nil {
		return fmt.Errorf("Unable to close ZIP writer: %w", err)
	}
	return nil
}

func (zp *zipper) ProcessLayer(layer *slicer.Layer) error {
	filename := fmt.Sprintf(zp.fmtStr, layer.Index)
	fh := &zip.FileHeader{
		Name:     filename,
		Comment:  fmt.Sprintf("y=%0.3f", layer.Y),
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	f, err := zp.w.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("Unable to create ZIP file %q: %w", filename, err)
	}

	img := preview.Render(layer.Mesh, zp.box, zp.res)
	if zp.gray {
		return encode(f, density(img), zp.format)
	}
	return encode(f, img, zp.format)
}

func encode(w io.Writer, img image.Image, format Format) error {
	if format == WebP {
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("WebP encode: %w", err)
		}
		return nil
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("PNG encode: %w", err)
	}
	return nil
}
