package threemf

import (
	"fmt"
	"image/color"
	"path"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

type textureGroup struct {
	textureID string
	texture   *Texture
	uvs       []mgl64.Vec2
}

// resources is the property graph of one model document. It is built
// once and only read while objects are resolved, so objects of the same
// document may be resolved concurrently.
type resources struct {
	colorGroups   map[string][]color.NRGBA
	textureGroups map[string]*textureGroup
}

func newResources(model *xmlModel, images map[string]*Texture, strict bool) (*resources, error) {
	r := &resources{
		colorGroups:   make(map[string][]color.NRGBA, len(model.Resources.ColorGroups)),
		textureGroups: make(map[string]*textureGroup, len(model.Resources.TextureGroups)),
	}

	textures := make(map[string]*Texture, len(model.Resources.Textures))
	for _, t := range model.Resources.Textures {
		name := path.Base(t.Path)
		tex, ok := images[name]
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: texture2d %v: no image %q in package", ErrMissingResource, t.ID, name)
			}
			tex = &Texture{Name: name}
		}
		textures[t.ID] = tex
	}

	for _, cg := range model.Resources.ColorGroups {
		colors := make([]color.NRGBA, len(cg.Colors))
		for i, c := range cg.Colors {
			nc, err := parseColor(c.Color)
			if err != nil {
				return nil, fmt.Errorf("%w: colorgroup %v color %v: %v", ErrMalformedPackage, cg.ID, i, err)
			}
			colors[i] = nc
		}
		r.colorGroups[cg.ID] = colors
	}

	for _, tg := range model.Resources.TextureGroups {
		tex, ok := textures[tg.TexID]
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: texture2dgroup %v: unknown texid %q", ErrMissingResource, tg.ID, tg.TexID)
			}
			tex = &Texture{}
		}
		uvs := make([]mgl64.Vec2, len(tg.Coords))
		for i, c := range tg.Coords {
			uvs[i] = mgl64.Vec2{c.U, c.V}
		}
		r.textureGroups[tg.ID] = &textureGroup{textureID: tg.TexID, texture: tex, uvs: uvs}
	}

	return r, nil
}

// parseColor parses "#RRGGBB" or "#RRGGBBAA". The alpha digits are
// ignored and the result is opaque.
func parseColor(s string) (color.NRGBA, error) {
	if len(s) > 7 {
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
