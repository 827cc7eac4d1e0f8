package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gmlewis/threemf-slicer/slicer"
	"github.com/gmlewis/threemf-slicer/threemf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slicer.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
thickness = 0.3
workers = 3
strict = true
texture_suffixes = [".png", ".tga"]
resolution = 20.0
output_dir = "out"

[outputs]
zip = true
binvox = true
dlp = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Config{
		Thickness:       0.3,
		Workers:         3,
		Strict:          true,
		TextureSuffixes: []string{".png", ".tga"},
		Resolution:      20,
		OutputDir:       "out",
		Outputs:         Outputs{Zip: true, Binvox: true, DLP: true},
	}
	assert.Equal(t, want, cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "thicknes = 0.3\n"},
		{name: "type mismatch", body: "workers = \"many\"\n"},
		{name: "syntax", body: "thickness = \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveDefaults(t *testing.T) {
	var cfg Config
	cfg.Resolve(Flags{})

	assert.Equal(t, DefaultThickness, cfg.Thickness)
	assert.Equal(t, slicer.DefaultEpsilon, cfg.Epsilon)
	assert.Equal(t, slicer.DefaultMargin, cfg.Margin)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, threemf.DefaultTextureSuffixes, cfg.TextureSuffixes)
	assert.Equal(t, DefaultResolution, cfg.Resolution)
	assert.Equal(t, DefaultAuthor, cfg.Author)
	assert.False(t, cfg.Outputs.Any())

	cfg.TextureSuffixes[0] = ".bmp"
	assert.Equal(t, ".jpg", threemf.DefaultTextureSuffixes[0])
}

func TestResolveFlags(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		flags Flags
		want  func(t *testing.T, cfg Config)
	}{
		{
			name:  "flags override file",
			cfg:   Config{Thickness: 0.5, Workers: 2, OutputDir: "a"},
			flags: Flags{Thickness: 0.25, Workers: 7, OutputDir: "b"},
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, 0.25, cfg.Thickness)
				assert.Equal(t, 7, cfg.Workers)
				assert.Equal(t, "b", cfg.OutputDir)
			},
		},
		{
			name:  "file kept when flags unset",
			cfg:   Config{Thickness: 0.5, Workers: 2, Strict: true, OutputDir: "a"},
			flags: Flags{},
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, 0.5, cfg.Thickness)
				assert.Equal(t, 2, cfg.Workers)
				assert.True(t, cfg.Strict)
				assert.Equal(t, "a", cfg.OutputDir)
			},
		},
		{
			name:  "outputs are combined",
			cfg:   Config{Outputs: Outputs{Zip: true}},
			flags: Flags{Strict: true, Outputs: Outputs{STL: true, SVX: true}},
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, Outputs{Zip: true, STL: true, SVX: true}, cfg.Outputs)
				assert.True(t, cfg.Outputs.Any())
				assert.True(t, cfg.Strict)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Resolve(tt.flags)
			tt.want(t, cfg)
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Config{Strict: true, Workers: 4}
	cfg.Resolve(Flags{})

	opts := cfg.ParseOptions()
	assert.True(t, opts.Strict)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, cfg.TextureSuffixes, opts.TextureSuffixes)

	assert.Len(t, cfg.SlicerOptions(false), 4)
}
