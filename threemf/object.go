package threemf

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// textureTable assigns record-local indices to textures in order of
// first reference.
type textureTable struct {
	ids      map[string]int
	textures []*Texture
}

func (t *textureTable) index(g *textureGroup) int {
	if i, ok := t.ids[g.textureID]; ok {
		return i
	}
	if t.ids == nil {
		t.ids = map[string]int{}
	}
	i := len(t.textures)
	t.ids[g.textureID] = i
	t.textures = append(t.textures, g.texture)
	return i
}

func (r *resources) buildObject(obj *xmlObject, strict bool) (*Record, error) {
	rec := &Record{ObjectID: obj.ID, Name: obj.Name, Mesh: &mesh.Mesh{}}
	if rec.Name == "" {
		rec.Name = "object " + obj.ID
	}

	d, err := objectDefaults(obj)
	if err != nil {
		return nil, err
	}

	var table textureTable
	if obj.Mesh != nil {
		m := rec.Mesh
		m.Vertices = make([]mgl64.Vec3, len(obj.Mesh.Vertices))
		for i, v := range obj.Mesh.Vertices {
			m.Vertices[i] = mgl64.Vec3{v.X, v.Y, v.Z}
		}

		m.Faces = make([]mesh.Face, 0, len(obj.Mesh.Triangles))
		for i := range obj.Mesh.Triangles {
			if err := r.addTriangle(m, &table, d, &obj.Mesh.Triangles[i], strict); err != nil {
				return nil, fmt.Errorf("object %v: triangle %v: %w", obj.ID, i, err)
			}
		}
	}

	rec.Textures = table.textures
	rec.Box = rec.Mesh.BoundingBox()
	rec.Sphere = rec.Mesh.BoundingSphere()
	return rec, nil
}

func (r *resources) addTriangle(m *mesh.Mesh, table *textureTable, d defaults, tri *xmlTriangle, strict bool) error {
	var v [3]int
	for i, s := range [3]string{tri.V1, tri.V2, tri.V3} {
		if s == "" {
			return fmt.Errorf("%w: face without v%v", ErrUnsupportedElement, i+1)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: v%v %q: %v", ErrMalformedPackage, i+1, s, err)
		}
		if n < 0 || n >= len(m.Vertices) {
			return fmt.Errorf("%w: v%v=%v out of range [0,%v)", ErrMalformedPackage, i+1, n, len(m.Vertices))
		}
		v[i] = n
	}

	b, err := resolveBinding(d, tri)
	if err != nil {
		return err
	}

	f := m.AddFace(v[0], v[1], v[2])
	if !b.ok {
		return nil
	}

	if tg, ok := r.textureGroups[b.pid]; ok {
		if !inRange(b.p, len(tg.uvs)) {
			return missing(strict, "texture2dgroup %v has %v coordinates, want indices %v", b.pid, len(tg.uvs), b.p)
		}
		if m.HasColors {
			return fmt.Errorf("%w: object mixes color groups and textures", ErrUnsupportedElement)
		}
		for i, p := range b.p {
			f.UVs[i] = tg.uvs[p]
		}
		f.Texture = table.index(tg)
		m.HasTexture = true
		return nil
	}

	if colors, ok := r.colorGroups[b.pid]; ok {
		if !inRange(b.p, len(colors)) {
			return missing(strict, "colorgroup %v has %v colors, want indices %v", b.pid, len(colors), b.p)
		}
		if m.HasTexture {
			return fmt.Errorf("%w: object mixes color groups and textures", ErrUnsupportedElement)
		}
		f.Colors = []color.NRGBA{colors[b.p[0]], colors[b.p[1]], colors[b.p[2]]}
		m.HasColors = true
		return nil
	}

	return missing(strict, "pid %q matches no color or texture group", b.pid)
}

// missing is the leniency path for unresolvable references: the face
// stays untextured unless strict is set.
func missing(strict bool, format string, args ...any) error {
	if !strict {
		return nil
	}
	return fmt.Errorf("%w: "+format, append([]any{ErrMissingResource}, args...)...)
}

func inRange(p [3]int, n int) bool {
	for _, i := range p {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}
