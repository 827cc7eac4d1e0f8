// Package stl provides a streaming binary STL file writer for sliced
// layers.
package stl

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gmlewis/threemf-slicer/mesh"
	"github.com/gmlewis/threemf-slicer/slicer"
)

const (
	headerSize = 80
	bufSize    = 10000
)

// Client is a streaming binary STL file writer client.
type Client struct {
	wg sync.WaitGroup // ensures file is closed
	ch chan Tri

	mu  sync.RWMutex
	err error
}

// Client implements the LayerProcessor interface.
var _ slicer.LayerProcessor = &Client{}

// Tri represents an STL triangle.
type Tri struct {
	// Normal plus three vertex triplets: [3]float{x,y,z}
	N, V1, V2, V3 [3]float32
	_             uint16 // unused attribute byte count
}

// New creates a new streaming binary STL file writer.
func New(filename string) (*Client, error) {
	out, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return newClient(out)
}

func newClient(out writeSeekCloser) (*Client, error) {
	header := struct {
		_ [headerSize]uint8
		_ uint32 // count will be overwritten on channel close.
	}{}
	if err := binary.Write(out, binary.LittleEndian, &header); err != nil {
		out.Close()
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	c := &Client{
		ch: make(chan Tri, bufSize),
	}
	c.start(out)
	return c, nil
}

func (c *Client) start(out writeSeekCloser) {
	c.wg.Add(1)
	go func() {
		err := writer(out, c.ch)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.wg.Done()
	}()
}

// Write writes a triangle to the STL file.
func (c *Client) Write(t *Tri) error {
	c.ch <- *t
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// WriteMesh writes every face of m with a unit normal.
func (c *Client) WriteMesh(m *mesh.Mesh) error {
	for i := range m.Faces {
		tri := m.Triangle(i)
		t := &Tri{
			V1: vec32(tri[0]),
			V2: vec32(tri[1]),
			V3: vec32(tri[2]),
		}
		if n := m.Faces[i].Normal; n.Len() > 0 {
			t.N = vec32(n.Normalize())
		}
		if err := c.Write(t); err != nil {
			return err
		}
	}
	return nil
}

// ProcessLayer writes the faces of one layer.
func (c *Client) ProcessLayer(layer *slicer.Layer) error {
	return c.WriteMesh(layer.Mesh)
}

// Close finalizes the STL file.
func (c *Client) Close() error {
	close(c.ch)
	c.wg.Wait()
	return c.err
}

// Slice writes all layers into a single STL file.
func Slice(filename string, layers []*slicer.Layer) error {
	c, err := New(filename)
	if err != nil {
		return err
	}
	if err := slicer.Process(layers, c, slicer.MinToMax); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}

type writeSeekCloser interface {
	io.Writer
	io.Seeker
	io.Closer
}

func writer(out writeSeekCloser, ch <-chan Tri) error {
	var count uint32
	var werr error
	for t := range ch {
		if werr != nil {
			continue // drain
		}
		if err := binary.Write(out, binary.LittleEndian, &t); err != nil {
			werr = fmt.Errorf("write triangle %#v: %w", t, err)
			continue
		}
		count++
	}
	if werr != nil {
		out.Close()
		return werr
	}

	if _, err := out.Seek(headerSize, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	if err := binary.Write(out, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("write count %v: %w", count, err)
	}

	return out.Close()
}

func vec32(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
