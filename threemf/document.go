package threemf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// unsupported lists materials extension elements that bind properties
// in ways this package cannot represent.
var unsupported = map[string]bool{
	"basematerials":      true,
	"compositematerials": true,
	"multiproperties":    true,
}

// Element names match by local name, so both <colorgroup> and
// <m:colorgroup> decode.
type xmlModel struct {
	Unit      string       `xml:"unit,attr"`
	Resources xmlResources `xml:"resources"`
}

type xmlResources struct {
	Objects       []xmlObject         `xml:"object"`
	ColorGroups   []xmlColorGroup     `xml:"colorgroup"`
	Textures      []xmlTexture2D      `xml:"texture2d"`
	TextureGroups []xmlTexture2DGroup `xml:"texture2dgroup"`
}

type xmlObject struct {
	ID     string   `xml:"id,attr"`
	Name   string   `xml:"name,attr"`
	PID    string   `xml:"pid,attr"`
	PIndex string   `xml:"pindex,attr"`
	Mesh   *xmlMesh `xml:"mesh"`
}

type xmlMesh struct {
	Vertices  []xmlVertex   `xml:"vertices>vertex"`
	Triangles []xmlTriangle `xml:"triangles>triangle"`
}

type xmlVertex struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

// Optional attributes are kept as strings so that absence can be told
// apart from zero.
type xmlTriangle struct {
	V1  string `xml:"v1,attr"`
	V2  string `xml:"v2,attr"`
	V3  string `xml:"v3,attr"`
	PID string `xml:"pid,attr"`
	P1  string `xml:"p1,attr"`
	P2  string `xml:"p2,attr"`
	P3  string `xml:"p3,attr"`
}

type xmlColorGroup struct {
	ID     string     `xml:"id,attr"`
	Colors []xmlColor `xml:"color"`
}

type xmlColor struct {
	Color string `xml:"color,attr"`
}

type xmlTexture2D struct {
	ID   string `xml:"id,attr"`
	Path string `xml:"path,attr"`
}

type xmlTexture2DGroup struct {
	ID     string         `xml:"id,attr"`
	TexID  string         `xml:"texid,attr"`
	Coords []xmlTex2Coord `xml:"tex2coord"`
}

type xmlTex2Coord struct {
	U float64 `xml:"u,attr"`
	V float64 `xml:"v,attr"`
}

// decodeModel rejects unsupported elements anywhere in the document and
// then decodes the supported subset.
func decodeModel(data []byte) (*xmlModel, error) {
	if err := checkSupported(data); err != nil {
		return nil, err
	}

	var model xmlModel
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	return &model, nil
}

func checkSupported(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPackage, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if unsupported[se.Name.Local] {
			line, _ := d.InputPos()
			return fmt.Errorf("%w: <%v> on line %v", ErrUnsupportedElement, se.Name.Local, line)
		}
	}
}
