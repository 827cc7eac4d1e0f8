// Package csg implements constructive solid geometry on polygon soups
// using binary space partitioning trees.
//
// Solids are immutable: every boolean operation works on copies of its
// inputs, so a single Solid may be shared by many goroutines.
package csg

import (
	"fmt"

	"github.com/gmlewis/threemf-slicer/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// Solid is a closed polygon soup.
type Solid struct {
	polygons []*Polygon
}

// FromPolygons builds a solid from the given polygons. Polygons with
// fewer than three vertices or zero area are dropped.
func FromPolygons(polys [][]mgl64.Vec3) *Solid {
	s := &Solid{polygons: make([]*Polygon, 0, len(polys))}
	for _, verts := range polys {
		if p := NewPolygon(verts); p != nil {
			s.polygons = append(s.polygons, p)
		}
	}
	return s
}

// NumPolygons returns the number of boundary polygons.
func (s *Solid) NumPolygons() int {
	return len(s.polygons)
}

// Polygons returns copies of the boundary polygons' vertices.
func (s *Solid) Polygons() [][]mgl64.Vec3 {
	out := make([][]mgl64.Vec3, len(s.polygons))
	for i, p := range s.polygons {
		out[i] = append([]mgl64.Vec3(nil), p.Vertices...)
	}
	return out
}

func (s *Solid) clonePolygons() []*Polygon {
	out := make([]*Polygon, len(s.polygons))
	for i, p := range s.polygons {
		out[i] = p.clone()
	}
	return out
}

// Intersect returns the volume inside both s and o.
func (s *Solid) Intersect(o *Solid) *Solid {
	a := newNode(s.clonePolygons())
	b := newNode(o.clonePolygons())
	a.invert()
	b.clipTo(a)
	b.invert()
	a.clipTo(b)
	b.clipTo(a)
	a.build(b.allPolygons())
	a.invert()
	return &Solid{polygons: a.allPolygons()}
}

// Union returns the volume inside either s or o.
func (s *Solid) Union(o *Solid) *Solid {
	a := newNode(s.clonePolygons())
	b := newNode(o.clonePolygons())
	a.clipTo(b)
	b.clipTo(a)
	b.invert()
	b.clipTo(a)
	b.invert()
	a.build(b.allPolygons())
	return &Solid{polygons: a.allPolygons()}
}

// Subtract returns the volume inside s but not inside o.
func (s *Solid) Subtract(o *Solid) *Solid {
	a := newNode(s.clonePolygons())
	b := newNode(o.clonePolygons())
	a.invert()
	a.clipTo(b)
	b.clipTo(a)
	b.invert()
	b.clipTo(a)
	b.invert()
	a.build(b.allPolygons())
	a.invert()
	return &Solid{polygons: a.allPolygons()}
}

// Kernel exposes the BSP solids through kernel.Kernel.
type Kernel struct{}

// Kernel implements the kernel.Kernel interface.
var _ kernel.Kernel = Kernel{}

// FromTriangles builds a solid from triangles.
func (Kernel) FromTriangles(tris [][3]mgl64.Vec3) kernel.Solid {
	polys := make([][]mgl64.Vec3, len(tris))
	for i := range tris {
		polys[i] = tris[i][:]
	}
	return FromPolygons(polys)
}

// Intersect intersects two solids created by this kernel.
func (Kernel) Intersect(a, b kernel.Solid) kernel.Solid {
	return mustSolid(a).Intersect(mustSolid(b))
}

// Polygons returns the boundary polygons of s.
func (Kernel) Polygons(s kernel.Solid) []kernel.Polygon {
	polys := mustSolid(s).Polygons()
	out := make([]kernel.Polygon, len(polys))
	for i, p := range polys {
		out[i] = p
	}
	return out
}

func mustSolid(s kernel.Solid) *Solid {
	cs, ok := s.(*Solid)
	if !ok {
		panic(fmt.Sprintf("csg: solid of type %T was not created by this kernel", s))
	}
	return cs
}
