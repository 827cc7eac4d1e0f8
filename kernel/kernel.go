// Package kernel adapts triangle meshes to and from the solid
// representation of a boolean geometry kernel.
//
// The kernel itself is consumed through the narrow Kernel interface, so
// the parser and slicer never depend on a particular CSG library.
package kernel

import (
	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Solid is an opaque solid owned by a Kernel.
type Solid any

// Polygon is a planar, convex-ish polygon in counter-clockwise order
// when viewed from outside the solid.
type Polygon []mgl64.Vec3

// Kernel is the boolean solid kernel consumed by the slicer.
type Kernel interface {
	// FromTriangles builds a solid from closed-surface triangles.
	FromTriangles(tris [][3]mgl64.Vec3) Solid
	// Intersect returns the boolean intersection of a and b.
	// Neither input may be modified.
	Intersect(a, b Solid) Solid
	// Polygons returns the boundary polygons of s.
	Polygons(s Solid) []Polygon
}

// Transform returns the matrix that translates by offset and then
// rotates by the Euler XYZ angles (radians) in rotation.
func Transform(offset, rotation mgl64.Vec3) mgl64.Mat4 {
	r := mgl64.HomogRotate3DX(rotation.X()).
		Mul4(mgl64.HomogRotate3DY(rotation.Y())).
		Mul4(mgl64.HomogRotate3DZ(rotation.Z()))
	return r.Mul4(mgl64.Translate3D(offset.X(), offset.Y(), offset.Z()))
}

// ToSolid transforms every vertex of m by offset and rotation and hands
// the resulting triangles to k.
func ToSolid(k Kernel, m *mesh.Mesh, offset, rotation mgl64.Vec3) Solid {
	xf := Transform(offset, rotation)
	identity := offset == (mgl64.Vec3{}) && rotation == (mgl64.Vec3{})

	tris := make([][3]mgl64.Vec3, 0, len(m.Faces))
	for i := range m.Faces {
		tri := m.Triangle(i)
		if !identity {
			for j, v := range tri {
				tri[j] = mgl64.TransformCoordinate(v, xf)
			}
		}
		tris = append(tris, tri)
	}
	return k.FromTriangles(tris)
}

// FromSolid fan-triangulates the polygons of s into a new mesh.
// Vertices are appended as found; call MergeVertices to deduplicate.
func FromSolid(k Kernel, s Solid) *mesh.Mesh {
	m := &mesh.Mesh{}
	for _, p := range k.Polygons(s) {
		if n := len(p); n > 1 && p[0] == p[n-1] {
			p = p[:n-1]
		}
		if len(p) < 3 {
			continue
		}

		base := len(m.Vertices)
		m.Vertices = append(m.Vertices, p...)
		for j := 2; j < len(p); j++ {
			m.AddFace(base, base+j-1, base+j)
		}
	}
	return m
}
