package threemf

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/draw"
)

const modelSuffix = ".model"

type modelEntry struct {
	name string
	data []byte
}

// pkg holds the decoded contents of a package archive.
type pkg struct {
	models   []modelEntry
	textures map[string]*Texture // keyed by base filename
}

func openPackage(data []byte, suffixes []string) (*pkg, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}

	p := &pkg{textures: map[string]*Texture{}}
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		switch {
		case strings.HasSuffix(name, modelSuffix):
			buf, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			p.models = append(p.models, modelEntry{name: f.Name, data: buf})
		case hasSuffix(name, suffixes):
			buf, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			img, err := decodeTexture(name, buf)
			if err != nil {
				return nil, fmt.Errorf("%w: decode texture %v: %v", ErrMalformedPackage, f.Name, err)
			}
			base := path.Base(f.Name)
			p.textures[base] = &Texture{Name: base, Image: toNRGBA(img)}
		}
	}

	if len(p.models) == 0 {
		return nil, fmt.Errorf("%w: no %v document found", ErrMalformedPackage, modelSuffix)
	}
	return p, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %v: %v", ErrMalformedPackage, f.Name, err)
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %v: %v", ErrMalformedPackage, f.Name, err)
	}
	return buf, nil
}

// decodeTexture picks the decoder by file extension. TGA has no magic
// number, so it must never take part in image.Decode format sniffing.
func decodeTexture(name string, buf []byte) (image.Image, error) {
	r := bytes.NewReader(buf)
	switch path.Ext(name) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".webp":
		return nativewebp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
