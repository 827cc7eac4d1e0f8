// Package slicer cuts a closed triangle mesh into horizontal layers by
// intersecting it with thin slabs, one slab per layer.
package slicer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"github.com/gmlewis/threemf-slicer/kernel"
	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidParameter reports an unusable slicing request.
var ErrInvalidParameter = errors.New("invalid parameter")

const (
	// DefaultEpsilon extends the sliced range past the top of the mesh so
	// that a layer sitting exactly on the top is still produced.
	DefaultEpsilon = 1e-4
	// DefaultMargin is how far the slab extends past the mesh on X and Z.
	DefaultMargin = 1.0
)

// Layer is one cross-section of the sliced mesh.
type Layer struct {
	Index int
	// Y is the height of the slab center.
	Y    float64
	Mesh *mesh.Mesh
}

// Slicer slices meshes with a geometry kernel. It holds no per-call
// state and is safe for concurrent use.
type Slicer struct {
	k       kernel.Kernel
	workers int
	epsilon float64
	margin  float64
	verbose bool
}

// Option configures a Slicer.
type Option func(*Slicer)

// WithWorkers bounds the number of layers computed concurrently.
func WithWorkers(n int) Option {
	return func(s *Slicer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithEpsilon sets the amount added to the top of the sliced range.
func WithEpsilon(e float64) Option {
	return func(s *Slicer) { s.epsilon = e }
}

// WithMargin sets how far slabs overhang the mesh on X and Z.
func WithMargin(m float64) Option {
	return func(s *Slicer) { s.margin = m }
}

// WithVerbose logs per-layer progress.
func WithVerbose(v bool) Option {
	return func(s *Slicer) { s.verbose = v }
}

// New returns a Slicer using kernel k.
func New(k kernel.Kernel, opts ...Option) *Slicer {
	s := &Slicer{
		k:       k,
		workers: runtime.GOMAXPROCS(0),
		epsilon: DefaultEpsilon,
		margin:  DefaultMargin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NumLayers returns the number of layers Slice produces for box b.
func (s *Slicer) NumLayers(b mesh.Box, thickness float64) int {
	return int(math.Ceil((b.Max.Y() + s.epsilon - b.Min.Y()) / thickness))
}

// Slice cuts m into layers of the given thickness, ordered by increasing
// height. Layers that miss the solid are returned with no faces. Either
// all layers are returned or none.
func (s *Slicer) Slice(ctx context.Context, m *mesh.Mesh, thickness float64) ([]*Layer, error) {
	if !(thickness > 0) || math.IsInf(thickness, 0) {
		return nil, fmt.Errorf("%w: layer thickness %v must be positive", ErrInvalidParameter, thickness)
	}
	if len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return nil, fmt.Errorf("%w: mesh has no faces", ErrInvalidParameter)
	}
	if s.epsilon < 0 || !(s.margin > 0) {
		return nil, fmt.Errorf("%w: epsilon %v must not be negative and margin %v must be positive", ErrInvalidParameter, s.epsilon, s.margin)
	}

	box := m.BoundingBox()
	n := s.NumLayers(box, thickness)

	start := time.Now()
	source := kernel.ToSolid(s.k, m, mgl64.Vec3{}, mgl64.Vec3{})
	if s.verbose {
		log.Printf("Converted mesh to solid (%v faces) in %v", len(m.Faces), time.Since(start))
	}

	layers := make([]*Layer, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			y := box.Min.Y() + float64(i)*thickness
			layers[i] = &Layer{Index: i, Y: y, Mesh: s.layer(source, box, y, thickness)}
			if s.verbose {
				log.Printf("Layer %v of %v computed (y=%0.3f, %v faces)", i+1, n, y, len(layers[i].Mesh.Faces))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layers, nil
}

// Slab returns the cutting box for the layer centered at height y.
func (s *Slicer) Slab(box mesh.Box, y, thickness float64) mesh.Box {
	return mesh.Box{
		Min: mgl64.Vec3{box.Min.X() - s.margin, y - thickness/2, box.Min.Z() - s.margin},
		Max: mgl64.Vec3{box.Max.X() + s.margin, y + thickness/2, box.Max.Z() + s.margin},
	}
}

func (s *Slicer) layer(source kernel.Solid, box mesh.Box, y, thickness float64) *mesh.Mesh {
	slab := kernel.ToSolid(s.k, mesh.NewBox(s.Slab(box, y, thickness)), mgl64.Vec3{}, mgl64.Vec3{})
	out := kernel.FromSolid(s.k, s.k.Intersect(source, slab))
	out.MergeVertices()
	return out
}
