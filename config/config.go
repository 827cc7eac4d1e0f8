// Package config holds slicing and output settings loaded from a TOML
// file and overridden by command-line flags.
package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"github.com/gmlewis/threemf-slicer/slicer"
	"github.com/gmlewis/threemf-slicer/threemf"
	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultThickness is the layer thickness in millimeters.
	DefaultThickness = 0.1
	// DefaultResolution is the preview resolution in pixels per millimeter.
	DefaultResolution = 10.0
	// DefaultAuthor is written into SVX manifests.
	DefaultAuthor = "threemf-slicer"
)

// Config holds all configurable slicing and output settings.
type Config struct {
	// Slicing
	Thickness float64 `toml:"thickness"`
	Epsilon   float64 `toml:"epsilon"`
	Margin    float64 `toml:"margin"`
	Workers   int     `toml:"workers"`

	// Parsing
	Strict          bool     `toml:"strict"`
	TextureSuffixes []string `toml:"texture_suffixes"`

	// Output
	Resolution float64 `toml:"resolution"`
	OutputDir  string  `toml:"output_dir"`
	Author     string  `toml:"author"`
	Outputs    Outputs `toml:"outputs"`
}

// Outputs selects which files are written for each sliced object.
type Outputs struct {
	Zip    bool `toml:"zip"`
	WebP   bool `toml:"webp"`
	STL    bool `toml:"stl"`
	Binvox bool `toml:"binvox"`
	SVX    bool `toml:"svx"`
	DLP    bool `toml:"dlp"`
}

// Any reports whether at least one output is selected.
func (o Outputs) Any() bool {
	return o.Zip || o.WebP || o.STL || o.Binvox || o.SVX || o.DLP
}

// Load reads a TOML config file and returns Config.
// Fields not set in the file keep their zero values. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Thickness float64
	Workers   int
	Strict    bool
	OutputDir string
	Outputs   Outputs
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Thickness > 0 {
		c.Thickness = flags.Thickness
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Strict {
		c.Strict = true
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	c.Outputs.Zip = c.Outputs.Zip || flags.Outputs.Zip
	c.Outputs.WebP = c.Outputs.WebP || flags.Outputs.WebP
	c.Outputs.STL = c.Outputs.STL || flags.Outputs.STL
	c.Outputs.Binvox = c.Outputs.Binvox || flags.Outputs.Binvox
	c.Outputs.SVX = c.Outputs.SVX || flags.Outputs.SVX
	c.Outputs.DLP = c.Outputs.DLP || flags.Outputs.DLP

	// Defaults
	if c.Thickness <= 0 {
		c.Thickness = DefaultThickness
	}
	if c.Epsilon <= 0 {
		c.Epsilon = slicer.DefaultEpsilon
	}
	if c.Margin <= 0 {
		c.Margin = slicer.DefaultMargin
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if len(c.TextureSuffixes) == 0 {
		c.TextureSuffixes = append([]string(nil), threemf.DefaultTextureSuffixes...)
	}
	if c.Resolution <= 0 {
		c.Resolution = DefaultResolution
	}
	if c.Author == "" {
		c.Author = DefaultAuthor
	}
}

// ParseOptions returns the package parser options.
func (c *Config) ParseOptions() threemf.Options {
	return threemf.Options{
		Strict:          c.Strict,
		TextureSuffixes: c.TextureSuffixes,
		Workers:         c.Workers,
	}
}

// SlicerOptions returns the slicer options.
func (c *Config) SlicerOptions(verbose bool) []slicer.Option {
	return []slicer.Option{
		slicer.WithWorkers(c.Workers),
		slicer.WithEpsilon(c.Epsilon),
		slicer.WithMargin(c.Margin),
		slicer.WithVerbose(verbose),
	}
}
