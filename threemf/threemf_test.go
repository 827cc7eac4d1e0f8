package threemf

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelHeader = `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xml:lang="en-US"
  xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
  xmlns:m="http://schemas.microsoft.com/3dmanufacturing/material/2015/02">
<resources>
`

const modelFooter = `</resources>
<build><item objectid="1"/></build>
</model>
`

const triangleVertices = `<vertices>
  <vertex x="0" y="0" z="0"/>
  <vertex x="1" y="0" z="0"/>
  <vertex x="0" y="1" z="0"/>
</vertices>`

// makePackage zips the given entries in order.
func makePackage(t *testing.T, entries ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i < len(entries); i += 2 {
		f, err := w.Create(entries[i])
		require.NoError(t, err)
		_, err = f.Write([]byte(entries[i+1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func model(resources string) string {
	return modelHeader + resources + modelFooter
}

func pngData(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.NRGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.String()
}

func parse(t *testing.T, data []byte, opts Options) ([]*Record, error) {
	t.Helper()
	return Parse(context.Background(), data, opts)
}

func TestSingleUntexturedTriangle(t *testing.T) {
	data := makePackage(t, "3D/3dmodel.model", model(`
<object id="1" type="model"><mesh>`+triangleVertices+`
<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
</mesh></object>`))

	recs, err := parse(t, data, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	m := recs[0].Mesh
	require.Len(t, m.Faces, 1)
	f := m.Faces[0]
	assert.Equal(t, [3]mgl64.Vec2{}, f.UVs)
	assert.Nil(t, f.Colors)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, f.Normal)
	assert.False(t, m.HasColors)
	assert.False(t, m.HasTexture)
	assert.Empty(t, recs[0].Textures)
	assert.Nil(t, recs[0].Texture())

	assert.Equal(t, mgl64.Vec3{0, 0, 0}, recs[0].Box.Min)
	assert.Equal(t, mgl64.Vec3{1, 1, 0}, recs[0].Box.Max)
	assert.Equal(t, mgl64.Vec3{0.5, 0.5, 0}, recs[0].Sphere.Center)
	assert.Equal(t, "object 1", recs[0].Name)
}

const colorGroup = `<m:colorgroup id="5">
  <m:color color="#FF0000"/>
  <m:color color="#00FF00FF"/>
  <m:color color="#0000FF80"/>
</m:colorgroup>
`

func TestPropertyDefaults(t *testing.T) {
	red := color.NRGBA{R: 0xff, A: 0xff}
	green := color.NRGBA{G: 0xff, A: 0xff}
	blue := color.NRGBA{B: 0xff, A: 0xff}

	tests := []struct {
		name     string
		object   string
		triangle string
		want     []color.NRGBA
	}{
		{
			name:     "only p1 is flat",
			object:   `id="1"`,
			triangle: `pid="5" p1="1"`,
			want:     []color.NRGBA{green, green, green},
		},
		{
			name:     "explicit repeat",
			object:   `id="1"`,
			triangle: `pid="5" p1="1" p2="1" p3="1"`,
			want:     []color.NRGBA{green, green, green},
		},
		{
			name:     "interpolated",
			object:   `id="1"`,
			triangle: `pid="5" p1="0" p2="1" p3="2"`,
			want:     []color.NRGBA{red, green, blue},
		},
		{
			name:     "p2 without p3 stays flat",
			object:   `id="1"`,
			triangle: `pid="5" p1="2" p2="0"`,
			want:     []color.NRGBA{blue, blue, blue},
		},
		{
			name:     "object defaults",
			object:   `id="1" pid="5" pindex="2"`,
			triangle: ``,
			want:     []color.NRGBA{blue, blue, blue},
		},
		{
			name:     "triangle p1 overrides pindex",
			object:   `id="1" pid="5" pindex="2"`,
			triangle: `p1="0"`,
			want:     []color.NRGBA{red, red, red},
		},
		{
			name:     "pid without any index is uncolored",
			object:   `id="1"`,
			triangle: `pid="5"`,
		},
		{
			name:     "unknown pid is uncolored",
			object:   `id="1"`,
			triangle: `pid="99" p1="0"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makePackage(t, "3D/3dmodel.model", model(colorGroup+`
<object `+tt.object+`><mesh>`+triangleVertices+`
<triangles><triangle v1="0" v2="1" v3="2" `+tt.triangle+`/></triangles>
</mesh></object>`))

			recs, err := parse(t, data, Options{})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			f := recs[0].Mesh.Faces[0]
			assert.Equal(t, tt.want, f.Colors)
			assert.Equal(t, tt.want != nil, recs[0].Mesh.HasColors)
			assert.Equal(t, [3]mgl64.Vec2{}, f.UVs)
		})
	}
}

func TestTextures(t *testing.T) {
	data := makePackage(t,
		"3D/Texture/logo.png", pngData(t),
		"3D/3dmodel.model", model(`
<m:texture2d id="10" path="/3D/Texture/logo.png" contenttype="image/png"/>
<m:texture2dgroup id="20" texid="10">
  <m:tex2coord u="0" v="0"/>
  <m:tex2coord u="1" v="0"/>
  <m:tex2coord u="0" v="1"/>
</m:texture2dgroup>
<m:texture2dgroup id="21" texid="10">
  <m:tex2coord u="0.5" v="0.5"/>
</m:texture2dgroup>
<object id="1" pid="20" pindex="0"><mesh>`+triangleVertices+`
<triangles>
  <triangle v1="0" v2="1" v3="2" p1="0" p2="1" p3="2"/>
  <triangle v1="0" v2="2" v3="1" pid="21" p1="0"/>
  <triangle v1="1" v2="2" v3="0"/>
</triangles>
</mesh></object>`))

	recs, err := parse(t, data, Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]

	require.Len(t, rec.Textures, 1, "both groups share one texture")
	tex := rec.Texture()
	require.NotNil(t, tex)
	assert.Equal(t, "logo.png", tex.Name)
	require.NotNil(t, tex.Image)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, tex.Image.NRGBAAt(1, 1))

	m := rec.Mesh
	assert.True(t, m.HasTexture)
	require.Len(t, m.Faces, 3)
	assert.Equal(t, [3]mgl64.Vec2{{0, 0}, {1, 0}, {0, 1}}, m.Faces[0].UVs)
	assert.Equal(t, [3]mgl64.Vec2{{0.5, 0.5}, {0.5, 0.5}, {0.5, 0.5}}, m.Faces[1].UVs)
	assert.Equal(t, [3]mgl64.Vec2{{0, 0}, {0, 0}, {0, 0}}, m.Faces[2].UVs, "object defaults apply")
	for _, f := range m.Faces {
		assert.Equal(t, 0, f.Texture)
	}
}

func TestDefaultTextureSuffixes(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))

	tests := []struct {
		name  string
		entry string
		data  string
		size  int
	}{
		{name: "jpg", entry: "3D/Texture/skin.jpg", data: jpg.String(), size: 4},
		{name: "jpeg upper case", entry: "3D/Texture/SKIN.JPEG", data: jpg.String(), size: 4},
		{name: "png", entry: "3D/Texture/skin.png", data: pngData(t), size: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makePackage(t,
				tt.entry, tt.data,
				"3D/3dmodel.model", model(`
<m:texture2d id="10" path="/`+tt.entry+`"/>
<m:texture2dgroup id="20" texid="10">
  <m:tex2coord u="0.25" v="0.75"/>
</m:texture2dgroup>
<object id="1" pid="20" pindex="0"><mesh>`+triangleVertices+`
<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
</mesh></object>`))

			recs, err := parse(t, data, Options{})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			tex := recs[0].Texture()
			require.NotNil(t, tex)
			assert.Equal(t, path.Base(tt.entry), tex.Name)
			require.NotNil(t, tex.Image)
			assert.Equal(t, image.Rect(0, 0, tt.size, tt.size), tex.Image.Bounds())
		})
	}
}

func TestTGATexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 0, color.NRGBA{B: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, tga.Encode(&buf, img))

	data := makePackage(t,
		"3D/Texture/skin.png", pngData(t),
		"3D/Texture/decal.tga", buf.String(),
		"3D/3dmodel.model", model(`
<m:texture2d id="10" path="/3D/Texture/decal.tga"/>
<m:texture2dgroup id="20" texid="10">
  <m:tex2coord u="0" v="0"/>
</m:texture2dgroup>
<object id="1" pid="20" pindex="0"><mesh>`+triangleVertices+`
<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
</mesh></object>`))

	recs, err := parse(t, data, Options{TextureSuffixes: []string{".png", ".tga"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	tex := recs[0].Texture()
	require.NotNil(t, tex)
	assert.Equal(t, "decal.tga", tex.Name)
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0xff}, tex.Image.NRGBAAt(1, 0))
}

func TestWebPTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 1, color.NRGBA{G: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, nativewebp.Encode(&buf, img, nil))

	data := makePackage(t,
		"3D/Texture/skin.webp", buf.String(),
		"3D/3dmodel.model", model(`
<m:texture2d id="10" path="/3D/Texture/skin.webp" contenttype="image/webp"/>
<m:texture2dgroup id="20" texid="10">
  <m:tex2coord u="0" v="0"/>
</m:texture2dgroup>
<object id="1" pid="20" pindex="0"><mesh>`+triangleVertices+`
<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
</mesh></object>`))

	recs, err := parse(t, data, Options{TextureSuffixes: []string{".webp"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	tex := recs[0].Texture()
	require.NotNil(t, tex)
	assert.Equal(t, "skin.webp", tex.Name)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, tex.Image.NRGBAAt(0, 1))
}

func TestErrors(t *testing.T) {
	triangle := func(attrs string) string {
		return model(colorGroup + `<object id="1"><mesh>` + triangleVertices +
			`<triangles><triangle ` + attrs + `/></triangles></mesh></object>`)
	}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
		opts Options
		want error
	}{
		{
			name: "not a zip",
			data: func(t *testing.T) []byte { return []byte("hello") },
			want: ErrMalformedPackage,
		},
		{
			name: "no model document",
			data: func(t *testing.T) []byte { return makePackage(t, "readme.txt", "hi") },
			want: ErrMalformedPackage,
		},
		{
			name: "bad xml",
			data: func(t *testing.T) []byte { return makePackage(t, "3D/3dmodel.model", "<model><resources>") },
			want: ErrMalformedPackage,
		},
		{
			name: "basematerials",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/3dmodel.model", model(`<basematerials id="1"><base name="red" displaycolor="#FF0000"/></basematerials>`))
			},
			want: ErrUnsupportedElement,
		},
		{
			name: "compositematerials",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/3dmodel.model", model(`<m:compositematerials id="1" matid="5" matindices="0 1"><m:composite values="0.5 0.5"/></m:compositematerials>`))
			},
			want: ErrUnsupportedElement,
		},
		{
			name: "multiproperties",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/3dmodel.model", model(`<m:multiproperties id="1" pids="5"/>`))
			},
			want: ErrUnsupportedElement,
		},
		{
			name: "two vertex face",
			data: func(t *testing.T) []byte { return makePackage(t, "3D/3dmodel.model", triangle(`v1="0" v2="1"`)) },
			want: ErrUnsupportedElement,
		},
		{
			name: "vertex out of range",
			data: func(t *testing.T) []byte { return makePackage(t, "3D/3dmodel.model", triangle(`v1="0" v2="1" v3="3"`)) },
			want: ErrMalformedPackage,
		},
		{
			name: "strict unknown pid",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/3dmodel.model", triangle(`v1="0" v2="1" v3="2" pid="99" p1="0"`))
			},
			opts: Options{Strict: true},
			want: ErrMissingResource,
		},
		{
			name: "strict index out of range",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/3dmodel.model", triangle(`v1="0" v2="1" v3="2" pid="5" p1="7"`))
			},
			opts: Options{Strict: true},
			want: ErrMissingResource,
		},
		{
			name: "strict missing texture image",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/3dmodel.model", model(`<m:texture2d id="10" path="/3D/Texture/gone.png"/>`))
			},
			opts: Options{Strict: true},
			want: ErrMissingResource,
		},
		{
			name: "bad texture image",
			data: func(t *testing.T) []byte {
				return makePackage(t, "3D/Texture/broken.png", "not a png", "3D/3dmodel.model", model(``))
			},
			want: ErrMalformedPackage,
		},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("test #%v: %v", i, tt.name), func(t *testing.T) {
			recs, err := parse(t, tt.data(t), tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, recs)
		})
	}
}

func TestLenientOutOfRangeIndex(t *testing.T) {
	data := makePackage(t, "3D/3dmodel.model", model(colorGroup+`<object id="1"><mesh>`+triangleVertices+
		`<triangles><triangle v1="0" v2="1" v3="2" pid="5" p1="7"/></triangles></mesh></object>`))
	recs, err := parse(t, data, Options{})
	require.NoError(t, err)
	assert.Nil(t, recs[0].Mesh.Faces[0].Colors)
}

func TestMixedPropertiesRejected(t *testing.T) {
	data := makePackage(t, "3D/3dmodel.model", model(colorGroup+`
<m:texture2d id="10" path="/3D/Texture/missing.png"/>
<m:texture2dgroup id="20" texid="10"><m:tex2coord u="0" v="0"/></m:texture2dgroup>
<object id="1"><mesh>`+triangleVertices+`
<triangles>
  <triangle v1="0" v2="1" v3="2" pid="5" p1="0"/>
  <triangle v1="0" v2="2" v3="1" pid="20" p1="0"/>
</triangles></mesh></object>`))
	_, err := parse(t, data, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedElement)
}

func TestObjectOrder(t *testing.T) {
	var objects string
	for i := 1; i <= 8; i++ {
		objects += fmt.Sprintf(`<object id="%v" name="part%v"><mesh>%v<triangles><triangle v1="0" v2="1" v3="2"/></triangles></mesh></object>`, i, i, triangleVertices)
	}
	objects += `<object id="9" name="assembly"><components><component objectid="1"/></components></object>`

	data := makePackage(t,
		"3D/a.model", model(objects),
		"3D/b.model", model(`<object id="1" name="other"><mesh>`+triangleVertices+`</mesh></object>`))

	recs, err := parse(t, data, Options{Workers: 3})
	require.NoError(t, err)
	require.Len(t, recs, 10)
	for i := 0; i < 8; i++ {
		assert.Equal(t, fmt.Sprintf("part%v", i+1), recs[i].Name)
		assert.Len(t, recs[i].Mesh.Faces, 1)
	}
	assert.Equal(t, "assembly", recs[8].Name)
	assert.Empty(t, recs[8].Mesh.Faces)
	assert.Equal(t, "other", recs[9].Name)
	assert.Len(t, recs[9].Mesh.Vertices, 3)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#FF8000", want: color.NRGBA{R: 0xff, G: 0x80, A: 0xff}},
		{in: "#ff800040", want: color.NRGBA{R: 0xff, G: 0x80, A: 0xff}},
		{in: "red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextCanceled(t *testing.T) {
	data := makePackage(t, "3D/3dmodel.model", model(``))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, data, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
