package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max mgl64.Vec3
}

// Empty reports whether the box encloses nothing.
func (b Box) Empty() bool {
	return b.Max.X() < b.Min.X() || b.Max.Y() < b.Min.Y() || b.Max.Z() < b.Min.Z()
}

// Center returns the midpoint of the box.
func (b Box) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (b Box) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func emptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// BoundingBox returns the box around all vertices. A mesh without
// vertices yields an empty box (Min > Max).
func (m *Mesh) BoundingBox() Box {
	b := emptyBox()
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			b.Min[i] = math.Min(b.Min[i], v[i])
			b.Max[i] = math.Max(b.Max[i], v[i])
		}
	}
	return b
}

// BoundingSphere returns a sphere centered on the bounding box center
// whose radius reaches the farthest vertex.
func (m *Mesh) BoundingSphere() Sphere {
	if len(m.Vertices) == 0 {
		return Sphere{}
	}
	center := m.BoundingBox().Center()
	var r2 float64
	for _, v := range m.Vertices {
		d := v.Sub(center)
		r2 = math.Max(r2, d.Dot(d))
	}
	return Sphere{Center: center, Radius: math.Sqrt(r2)}
}

// boxFaces lists the 12 outward-facing triangles of a box whose corners
// are indexed by bit pattern (x | y<<1 | z<<2).
var boxFaces = [12][3]int{
	{0, 4, 6}, {0, 6, 2}, // -X
	{1, 3, 7}, {1, 7, 5}, // +X
	{0, 1, 5}, {0, 5, 4}, // -Y
	{2, 6, 7}, {2, 7, 3}, // +Y
	{0, 2, 3}, {0, 3, 1}, // -Z
	{4, 5, 7}, {4, 7, 6}, // +Z
}

// NewBox returns a closed box mesh spanning b.
func NewBox(b Box) *Mesh {
	m := &Mesh{Vertices: make([]mgl64.Vec3, 8)}
	for i := range m.Vertices {
		v := b.Min
		if i&1 != 0 {
			v[0] = b.Max[0]
		}
		if i&2 != 0 {
			v[1] = b.Max[1]
		}
		if i&4 != 0 {
			v[2] = b.Max[2]
		}
		m.Vertices[i] = v
	}
	for _, f := range boxFaces {
		m.AddFace(f[0], f[1], f[2])
	}
	return m
}
