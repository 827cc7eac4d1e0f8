// Package mesh holds the triangle mesh representation shared by the
// 3MF parser, the geometry kernel adapter and the slicer.
package mesh

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Face is a triangle referencing three vertices of its Mesh.
type Face struct {
	V [3]int

	// Normal is cross(v1-v2, v1-v3). It is not normalized.
	Normal mgl64.Vec3

	// Colors is nil for uncolored faces, otherwise one color per vertex.
	Colors []color.NRGBA

	// UVs is always populated; untextured faces carry (0,0) on every vertex.
	UVs [3]mgl64.Vec2

	// Texture indexes the owning record's texture table.
	Texture int
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []mgl64.Vec3
	Faces    []Face

	HasColors  bool
	HasTexture bool
}

// FaceNormal returns cross(a-b, a-c).
func FaceNormal(a, b, c mgl64.Vec3) mgl64.Vec3 {
	return a.Sub(b).Cross(a.Sub(c))
}

// AddFace appends a face over the given vertex indices and computes its normal.
func (m *Mesh) AddFace(v1, v2, v3 int) *Face {
	m.Faces = append(m.Faces, Face{
		V:      [3]int{v1, v2, v3},
		Normal: FaceNormal(m.Vertices[v1], m.Vertices[v2], m.Vertices[v3]),
	})
	return &m.Faces[len(m.Faces)-1]
}

// Triangle returns the three vertex positions of face i.
func (m *Mesh) Triangle(i int) [3]mgl64.Vec3 {
	f := m.Faces[i]
	return [3]mgl64.Vec3{m.Vertices[f.V[0]], m.Vertices[f.V[1]], m.Vertices[f.V[2]]}
}

// Validate reports the first face that references a vertex out of range.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, v := range f.V {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("face %v: vertex index %v out of range [0,%v)", i, v, len(m.Vertices))
			}
		}
	}
	return nil
}

// MergeVertices collapses vertices with identical coordinates and remaps
// the faces onto the survivors. Faces left with fewer than three distinct
// vertices are removed. It returns the number of vertices removed.
func (m *Mesh) MergeVertices() int {
	seen := make(map[mgl64.Vec3]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	unique := make([]mgl64.Vec3, 0, len(m.Vertices))
	for i, v := range m.Vertices {
		if j, ok := seen[v]; ok {
			remap[i] = j
			continue
		}
		seen[v] = len(unique)
		remap[i] = len(unique)
		unique = append(unique, v)
	}

	faces := m.Faces[:0]
	for _, f := range m.Faces {
		a, b, c := remap[f.V[0]], remap[f.V[1]], remap[f.V[2]]
		if a == b || b == c || a == c {
			continue
		}
		f.V = [3]int{a, b, c}
		faces = append(faces, f)
	}

	removed := len(m.Vertices) - len(unique)
	m.Vertices = unique
	m.Faces = faces
	return removed
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices:   append([]mgl64.Vec3(nil), m.Vertices...),
		Faces:      make([]Face, len(m.Faces)),
		HasColors:  m.HasColors,
		HasTexture: m.HasTexture,
	}
	for i, f := range m.Faces {
		if f.Colors != nil {
			f.Colors = append([]color.NRGBA(nil), f.Colors...)
		}
		out.Faces[i] = f
	}
	return out
}

// AverageY returns the mean Y coordinate of all vertices, or NaN for an
// empty mesh.
func (m *Mesh) AverageY() float64 {
	if len(m.Vertices) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range m.Vertices {
		sum += v.Y()
	}
	return sum / float64(len(m.Vertices))
}
