// threemf-slicer slices the objects of one or more 3MF packages into
// horizontal layers of the requested thickness.
//
// It then writes, for each object, any of: a ZIP of layer previews (PNG
// or WebP), a single STL of all layers, a binvox or SVX voxel file, or a
// ChiTuBox .cbddlp (AnyCubic .photon) printer file.
//
// By default, threemf-slicer parses and slices only. To generate output,
// at least one of -binvox, -dlp, -stl, -svx, -webp or -zip must be
// supplied.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gmlewis/threemf-slicer/binvox"
	"github.com/gmlewis/threemf-slicer/config"
	"github.com/gmlewis/threemf-slicer/csg"
	"github.com/gmlewis/threemf-slicer/photon"
	"github.com/gmlewis/threemf-slicer/preview"
	"github.com/gmlewis/threemf-slicer/slicer"
	"github.com/gmlewis/threemf-slicer/stl"
	"github.com/gmlewis/threemf-slicer/threemf"
	"github.com/gmlewis/threemf-slicer/zipper"
)

var (
	configFile = flag.String("config", "", "TOML config file")
	thickness  = flag.Float64("thickness", 0, fmt.Sprintf("Layer thickness in millimeters (default is %v)", config.DefaultThickness))
	workers    = flag.Int("workers", 0, "Number of concurrent workers (default is the number of CPUs)")
	strict     = flag.Bool("strict", false, "Fail on unresolvable color or texture references")
	outDir     = flag.String("out", "", "Output directory (default is next to each input file)")
	verbose    = flag.Bool("v", false, "Log per-layer progress and statistics")

	writeBinvox = flag.Bool("binvox", false, "Write a binvox file per object")
	writeDLP    = flag.Bool("dlp", false, "Write a ChiTuBox .cbddlp file (same as AnyCubic .photon) per object")
	writeSTL    = flag.Bool("stl", false, "Write an STL file of all layers per object")
	writeSVX    = flag.Bool("svx", false, "Write an svx voxel file per object")
	writeWebP   = flag.Bool("webp", false, "Write layer previews to a zip of WebP images per object")
	writeZip    = flag.Bool("zip", false, "Write layer previews to a zip of PNG images per object")
)

func main() {
	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		check("config.Load: %v", err)
	}
	cfg.Resolve(config.Flags{
		Thickness: *thickness,
		Workers:   *workers,
		Strict:    *strict,
		OutputDir: *outDir,
		Outputs: config.Outputs{
			Zip:    *writeZip,
			WebP:   *writeWebP,
			STL:    *writeSTL,
			Binvox: *writeBinvox,
			SVX:    *writeSVX,
			DLP:    *writeDLP,
		},
	})

	if !cfg.Outputs.Any() {
		log.Printf("-binvox, -dlp, -stl, -svx, -webp, or -zip must be supplied to generate output. Slicing only.")
	}
	log.Printf("Layer thickness: %v mm, preview resolution: %v px/mm, workers: %v", cfg.Thickness, cfg.Resolution, cfg.Workers)

	if cfg.OutputDir != "" {
		err := os.MkdirAll(cfg.OutputDir, 0755)
		check("MkdirAll: %v", err)
	}

	ctx := context.Background()
	s := slicer.New(csg.Kernel{}, cfg.SlicerOptions(*verbose)...)

	for _, arg := range flag.Args() {
		if !strings.EqualFold(filepath.Ext(arg), ".3mf") {
			log.Printf("Skipping non-3MF file %q", arg)
			continue
		}

		log.Printf("Processing 3MF package %q...", arg)
		records, err := threemf.ParseFile(ctx, arg, cfg.ParseOptions())
		check("%v: %v", arg, err)

		dir := filepath.Dir(arg)
		if cfg.OutputDir != "" {
			dir = cfg.OutputDir
		}
		pkgName := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))

		seen := map[string]bool{}
		for _, rec := range records {
			if len(rec.Mesh.Faces) == 0 {
				log.Printf("Skipping %v: no faces", rec.Name)
				continue
			}
			baseName := filepath.Join(dir, fmt.Sprintf("%v-%v", pkgName, outputName(rec, seen)))
			process(ctx, s, &cfg, rec, baseName)
		}
	}

	log.Println("Done.")
}

// outputName returns a file-safe name for rec that is unique within seen.
// Repeated object names get the object ID appended.
func outputName(rec *threemf.Record, seen map[string]bool) string {
	id := fileSafe(rec.ObjectID)
	name := fileSafe(rec.Name)
	if name == "" {
		name = "object-" + id
	}
	if seen[name] {
		name = fmt.Sprintf("%v-%v", name, id)
	}
	for base, n := name, 2; seen[name]; n++ {
		name = fmt.Sprintf("%v-%v", base, n)
	}
	seen[name] = true
	return name
}

func process(ctx context.Context, s *slicer.Slicer, cfg *config.Config, rec *threemf.Record, baseName string) {
	box := rec.Box
	log.Printf("Slicing %v (%v vertices, %v faces) into %v layers...", rec.Name, len(rec.Mesh.Vertices), len(rec.Mesh.Faces), s.NumLayers(box, cfg.Thickness))
	log.Printf("MBB=(%v,%v,%v)-(%v,%v,%v)", box.Min.X(), box.Min.Y(), box.Min.Z(), box.Max.X(), box.Max.Y(), box.Max.Z())

	layers, err := s.Slice(ctx, rec.Mesh, cfg.Thickness)
	check("Slice: %v", err)

	if *verbose {
		err = slicer.Process(layers, slicer.LayerProcessorFunc(func(l *slicer.Layer) error {
			img := preview.Render(l.Mesh, box, cfg.Resolution)
			log.Printf("Layer %v: y=%0.3f, faces=%v, islands=%v", l.Index, l.Y, len(l.Mesh.Faces), preview.Islands(img))
			return nil
		}), slicer.MinToMax)
		check("stats: %v", err)
	}

	if cfg.Outputs.Binvox {
		log.Printf("Writing %v layers to a binvox file...", len(layers))
		err = binvox.Slice(baseName, layers, box, cfg.Thickness)
		check("binvox.Slice: %v", err)
	}

	if cfg.Outputs.DLP {
		log.Printf("Writing %v layers to a cbddlp file...", len(layers))
		err = photon.Slice(baseName, layers, box, cfg.Thickness)
		check("photon.Slice: %v", err)
	}

	if cfg.Outputs.STL {
		filename := baseName + ".stl"
		log.Printf("Writing %v layers to %v...", len(layers), filename)
		err = stl.Slice(filename, layers)
		check("stl.Slice: %v", err)
	}

	if cfg.Outputs.SVX {
		log.Printf("Writing %v layers to an SVX file...", len(layers))
		err = zipper.SVXSlice(baseName, layers, box, cfg.Thickness, cfg.Author)
		check("zipper.SVXSlice: %v", err)
	}

	if cfg.Outputs.WebP {
		log.Printf("Writing %v layers to a ZIP of WebP images...", len(layers))
		err = zipper.Slice(baseName, layers, box, cfg.Resolution, zipper.WebP)
		check("zipper.Slice: %v", err)
	}

	if cfg.Outputs.Zip {
		log.Printf("Writing %v layers to a ZIP of PNG images...", len(layers))
		err = zipper.Slice(baseName, layers, box, cfg.Resolution, zipper.PNG)
		check("zipper.Slice: %v", err)
	}
}

var unsafeRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// fileSafe turns an object name into a filename fragment.
func fileSafe(name string) string {
	return strings.Trim(unsafeRE.ReplaceAllString(name, "-"), "-")
}

func check(fmtStr string, args ...interface{}) {
	err := args[len(args)-1]
	if err != nil {
		log.Fatalf(fmtStr, args...)
	}
}
