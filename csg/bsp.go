package csg

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// epsilon is the thickness of a plane for point classification.
const epsilon = 1e-5

const (
	coplanar = 0
	front    = 1
	back     = 2
	spanning = front | back
)

// Plane is the set of points p with Normal·p == W.
type Plane struct {
	Normal mgl64.Vec3
	W      float64
}

func planeFromPoints(a, b, c mgl64.Vec3) (Plane, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Len()
	if l < 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Plane{}, false
	}
	n = n.Mul(1 / l)
	return Plane{Normal: n, W: n.Dot(a)}, true
}

func (p Plane) flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), W: -p.W}
}

// Polygon is a convex planar polygon.
type Polygon struct {
	Vertices []mgl64.Vec3
	Plane    Plane
}

// NewPolygon returns a polygon over verts, or nil if verts do not span
// a plane.
func NewPolygon(verts []mgl64.Vec3) *Polygon {
	if len(verts) < 3 {
		return nil
	}
	pl, ok := planeFromPoints(verts[0], verts[1], verts[2])
	if !ok {
		return nil
	}
	return &Polygon{Vertices: append([]mgl64.Vec3(nil), verts...), Plane: pl}
}

func (p *Polygon) clone() *Polygon {
	return &Polygon{Vertices: append([]mgl64.Vec3(nil), p.Vertices...), Plane: p.Plane}
}

func (p *Polygon) flip() {
	for i, j := 0, len(p.Vertices)-1; i < j; i, j = i+1, j-1 {
		p.Vertices[i], p.Vertices[j] = p.Vertices[j], p.Vertices[i]
	}
	p.Plane = p.Plane.flip()
}

// splitPolygon sorts poly into one of the four lists relative to pl,
// cutting it in two when it spans the plane.
func (pl Plane) splitPolygon(poly *Polygon, coplanarFront, coplanarBack, fronts, backs *[]*Polygon) {
	var polygonType int
	types := make([]int, len(poly.Vertices))
	for i, v := range poly.Vertices {
		t := pl.Normal.Dot(v) - pl.W
		typ := coplanar
		switch {
		case t < -epsilon:
			typ = back
		case t > epsilon:
			typ = front
		}
		polygonType |= typ
		types[i] = typ
	}

	switch polygonType {
	case coplanar:
		if pl.Normal.Dot(poly.Plane.Normal) > 0 {
			*coplanarFront = append(*coplanarFront, poly)
		} else {
			*coplanarBack = append(*coplanarBack, poly)
		}
	case front:
		*fronts = append(*fronts, poly)
	case back:
		*backs = append(*backs, poly)
	case spanning:
		n := len(poly.Vertices)
		f := make([]mgl64.Vec3, 0, n+1)
		b := make([]mgl64.Vec3, 0, n+1)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := poly.Vertices[i], poly.Vertices[j]
			if ti != back {
				f = append(f, vi)
			}
			if ti != front {
				b = append(b, vi)
			}
			if ti|tj == spanning {
				t := (pl.W - pl.Normal.Dot(vi)) / pl.Normal.Dot(vj.Sub(vi))
				v := vi.Add(vj.Sub(vi).Mul(t))
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*fronts = append(*fronts, &Polygon{Vertices: f, Plane: poly.Plane})
		}
		if len(b) >= 3 {
			*backs = append(*backs, &Polygon{Vertices: b, Plane: poly.Plane})
		}
	}
}

// node is a BSP tree node. Its polygons are coplanar with plane.
type node struct {
	plane    *Plane
	front    *node
	back     *node
	polygons []*Polygon
}

func newNode(polys []*Polygon) *node {
	n := &node{}
	n.build(polys)
	return n
}

// invert converts solid space to empty space and vice versa.
func (n *node) invert() {
	for _, p := range n.polygons {
		p.flip()
	}
	if n.plane != nil {
		flipped := n.plane.flip()
		n.plane = &flipped
	}
	if n.front != nil {
		n.front.invert()
	}
	if n.back != nil {
		n.back.invert()
	}
	n.front, n.back = n.back, n.front
}

// clipPolygons removes the parts of polys that are inside this tree.
func (n *node) clipPolygons(polys []*Polygon) []*Polygon {
	if n.plane == nil {
		return append([]*Polygon(nil), polys...)
	}
	var f, b []*Polygon
	for _, p := range polys {
		n.plane.splitPolygon(p, &f, &b, &f, &b)
	}
	if n.front != nil {
		f = n.front.clipPolygons(f)
	}
	if n.back != nil {
		b = n.back.clipPolygons(b)
	} else {
		b = nil
	}
	return append(f, b...)
}

// clipTo removes all polygons in this tree that are inside bsp.
func (n *node) clipTo(bsp *node) {
	n.polygons = bsp.clipPolygons(n.polygons)
	if n.front != nil {
		n.front.clipTo(bsp)
	}
	if n.back != nil {
		n.back.clipTo(bsp)
	}
}

func (n *node) allPolygons() []*Polygon {
	var out []*Polygon
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur.polygons...)
		if cur.back != nil {
			stack = append(stack, cur.back)
		}
		if cur.front != nil {
			stack = append(stack, cur.front)
		}
	}
	return out
}

// build inserts polys into the tree, splitting them where needed.
func (n *node) build(polys []*Polygon) {
	if len(polys) == 0 {
		return
	}
	if n.plane == nil {
		pl := polys[0].Plane
		n.plane = &pl
	}
	var f, b []*Polygon
	for _, p := range polys {
		n.plane.splitPolygon(p, &n.polygons, &n.polygons, &f, &b)
	}
	if len(f) > 0 {
		if n.front == nil {
			n.front = &node{}
		}
		n.front.build(f)
	}
	if len(b) > 0 {
		if n.back == nil {
			n.back = &node{}
		}
		n.back.build(b)
	}
}
