// Package threemf decodes 3MF packages into triangle meshes with
// per-face color and texture attribution.
//
// A package is a zip archive holding one or more XML model documents
// (*.model) and optional texture images. Every <object> of every document
// becomes one Record, in archive and document order.
//
// Supported content is the core mesh plus the color group and 2D texture
// parts of the materials extension. Base materials, composite materials
// and multi-properties are rejected with ErrUnsupportedElement.
package threemf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/gmlewis/threemf-slicer/mesh"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrMalformedPackage reports an unreadable archive, a package without
	// model documents, or a document that is not well formed.
	ErrMalformedPackage = errors.New("malformed package")
	// ErrUnsupportedElement reports content outside the supported subset.
	ErrUnsupportedElement = errors.New("unsupported element")
	// ErrMissingResource reports an unresolvable property reference.
	// It is only returned in strict mode.
	ErrMissingResource = errors.New("missing resource")
)

// DefaultTextureSuffixes lists the image entries treated as textures.
var DefaultTextureSuffixes = []string{".jpg", ".jpeg", ".png"}

// Options controls parsing.
type Options struct {
	// Strict turns unresolvable property references into
	// ErrMissingResource instead of treating the triangle as untextured.
	Strict bool

	// TextureSuffixes overrides DefaultTextureSuffixes when non-empty.
	// ".tga" and ".webp" are also understood.
	TextureSuffixes []string

	// Workers bounds the number of objects resolved concurrently.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
}

func (o Options) suffixes() []string {
	if len(o.TextureSuffixes) > 0 {
		return o.TextureSuffixes
	}
	return DefaultTextureSuffixes
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Texture is a decoded texture image from the package.
type Texture struct {
	// Name is the base filename of the archive entry.
	Name  string
	Image *image.NRGBA
}

// Record is one parsed object.
type Record struct {
	ObjectID string
	Name     string
	Mesh     *mesh.Mesh

	// Textures is the table indexed by mesh.Face.Texture, in order of
	// first reference. Entries may have a nil Image if the package does
	// not contain the referenced file (lenient mode only).
	Textures []*Texture

	Box    mesh.Box
	Sphere mesh.Sphere
}

// Texture returns the only texture of r, or nil if r uses zero or
// several textures.
func (r *Record) Texture() *Texture {
	if len(r.Textures) != 1 {
		return nil
	}
	return r.Textures[0]
}

// ParseFile reads and parses the 3MF package at path.
func ParseFile(ctx context.Context, path string, opts Options) ([]*Record, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("threemf: read %v: %w", path, err)
	}

	start := time.Now()
	records, err := Parse(ctx, buf, opts)
	if err != nil {
		return nil, fmt.Errorf("threemf: %v: %w", path, err)
	}
	log.Printf("Parsed %v: %v objects in %v", path, len(records), time.Since(start))
	return records, nil
}

// Parse decodes a 3MF package held in memory.
func Parse(ctx context.Context, data []byte, opts Options) ([]*Record, error) {
	pkg, err := openPackage(data, opts.suffixes())
	if err != nil {
		return nil, err
	}

	var records []*Record
	for _, doc := range pkg.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := parseDocument(ctx, doc, pkg.textures, opts)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", doc.name, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func parseDocument(ctx context.Context, doc modelEntry, textures map[string]*Texture, opts Options) ([]*Record, error) {
	model, err := decodeModel(doc.data)
	if err != nil {
		return nil, err
	}

	res, err := newResources(model, textures, opts.Strict)
	if err != nil {
		return nil, err
	}

	objects := model.Resources.Objects
	records := make([]*Record, len(objects))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := range objects {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := res.buildObject(&objects[i], opts.Strict)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
