// Package preview rasterizes sliced layers into top-down images.
//
// Image column u maps to X and row v maps to Z:
//
//	u = (x - box.Min.X) * res
//	v = (z - box.Min.Z) * res
//
// where res is in pixels per millimeter.
package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/vector"
)

// Fill is the color of faces that carry no per-vertex colors.
var Fill = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Size returns the image dimensions for box at res pixels per millimeter.
func Size(box mesh.Box, res float64) (w, h int) {
	size := box.Size()
	w = int(math.Ceil(size.X() * res))
	h = int(math.Ceil(size.Z() * res))
	return max(w, 1), max(h, 1)
}

// Render draws the upward-facing faces of layer as seen from above.
// Pixels not covered by any face are left transparent.
func Render(layer *mesh.Mesh, box mesh.Box, res float64) *image.NRGBA {
	w, h := Size(box, res)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	project := func(v mgl64.Vec3) (float64, float64) {
		return (v.X() - box.Min.X()) * res, (v.Z() - box.Min.Z()) * res
	}

	z := &vector.Rasterizer{}
	for i := range layer.Faces {
		f := &layer.Faces[i]
		if !(f.Normal.Y() > 0) {
			continue
		}

		tri := layer.Triangle(i)
		var pts [3][2]float64
		for j, v := range tri {
			pts[j][0], pts[j][1] = project(v)
		}

		r := image.Rect(
			int(math.Floor(min(pts[0][0], pts[1][0], pts[2][0]))),
			int(math.Floor(min(pts[0][1], pts[1][1], pts[2][1]))),
			int(math.Ceil(max(pts[0][0], pts[1][0], pts[2][0]))),
			int(math.Ceil(max(pts[0][1], pts[1][1], pts[2][1]))),
		).Intersect(img.Rect)
		if r.Empty() {
			continue
		}

		z.Reset(r.Dx(), r.Dy())
		ox, oy := float64(r.Min.X), float64(r.Min.Y)
		z.MoveTo(float32(pts[0][0]-ox), float32(pts[0][1]-oy))
		z.LineTo(float32(pts[1][0]-ox), float32(pts[1][1]-oy))
		z.LineTo(float32(pts[2][0]-ox), float32(pts[2][1]-oy))
		z.ClosePath()
		z.Draw(img, r, image.NewUniform(faceColor(f)), image.Point{})
	}

	return img
}

// faceColor averages the vertex colors of f.
func faceColor(f *mesh.Face) color.NRGBA {
	if len(f.Colors) == 0 {
		return Fill
	}
	var r, g, b, a int
	for _, c := range f.Colors {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
		a += int(c.A)
	}
	n := len(f.Colors)
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(a / n)}
}

// Filled reports whether the pixel at (x,y) counts as covered.
func Filled(img image.Image, x, y int) bool {
	_, _, _, a := img.At(x, y).RGBA()
	return a >= 0x8000
}
