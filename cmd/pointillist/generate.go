package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pointillist/internal/api"
	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/preview"
	"github.com/banshee-data/pointillist/internal/quantize"
	"github.com/banshee-data/pointillist/internal/raster"
	"github.com/banshee-data/pointillist/internal/security"
)

// generateOptions are the generate flags after config defaults are applied.
type generateOptions struct {
	image  string
	output string

	rows, cols int
	quantize   quantize.Options
	seed       uint64
	gcode      gcode.Options

	dots    string
	dotSize int
	chart   string
	path    string
	save    bool
}

func (a *app) parseGenerate(args []string) (generateOptions, error) {
	rows, cols := a.cfg.GetImageSize()
	qopts := a.cfg.QuantizeOptions()
	gopts := a.cfg.GcodeOptions()
	seed, haveSeed := a.cfg.GetSeed()

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.IntVar(&rows, "rows", rows, "Rows the image is resampled to")
	fs.IntVar(&cols, "cols", cols, "Columns the image is resampled to")
	fs.IntVar(&qopts.RegionSize, "region", qopts.RegionSize, "Side of each square region, in samples")
	fs.Float64Var(&qopts.Sharpness, "sharpness", qopts.Sharpness, "Colour selectivity; larger is closer to nearest-colour")
	seedFlag := fs.String("seed", "", "Random seed (default: config value or random)")
	fs.Float64Var(&gopts.FeedRate, "feed", gopts.FeedRate, "Travel feed rate, mm/min")
	fs.Float64Var(&gopts.EngageHeight, "engage", gopts.EngageHeight, "Brush height while painting, mm")
	skipEmpty := fs.Bool("skip-empty", gopts.EmptyBlocks == gcode.SkipEmptyBlocks, "Leave out paints that do not appear")
	dots := fs.String("dots", "", "Write a dot preview PNG")
	dotSize := fs.Int("dot-size", preview.DefaultDot, "Dot pitch of the PNG preview, pixels")
	chart := fs.String("chart", "", "Write an interactive HTML scatter preview")
	pathPlot := fs.String("path", "", "Write a plot of the brush path (png, svg or pdf)")
	save := fs.Bool("save", false, "Record the job in the database")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pointillist generate [options] <image> [output.gcode]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return generateOptions{}, err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return generateOptions{}, fmt.Errorf("expected an image and an optional output path")
	}

	if *seedFlag != "" {
		n, err := strconv.ParseUint(*seedFlag, 10, 64)
		if err != nil {
			return generateOptions{}, fmt.Errorf("invalid seed %q", *seedFlag)
		}
		seed = n
		haveSeed = true
	}
	if !haveSeed {
		seed = rand.Uint64()
	}
	if *skipEmpty {
		gopts.EmptyBlocks = gcode.SkipEmptyBlocks
	} else {
		gopts.EmptyBlocks = gcode.EmitEmptyBlocks
	}

	opts := generateOptions{
		image:    fs.Arg(0),
		output:   fs.Arg(1),
		rows:     rows,
		cols:     cols,
		quantize: qopts,
		seed:     seed,
		gcode:    gopts,
		dots:     *dots,
		dotSize:  *dotSize,
		chart:    *chart,
		path:     *pathPlot,
		save:     *save,
	}
	if opts.output == "" {
		dir := a.cfg.GetOutputDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return opts, fmt.Errorf("failed to create output directory: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(opts.image), filepath.Ext(opts.image))
		out, err := security.ExportPath(dir, name, ".gcode")
		if err != nil {
			return opts, err
		}
		opts.output = out
	}
	return opts, nil
}

func (a *app) generate(args []string) error {
	opts, err := a.parseGenerate(args)
	if err != nil {
		return err
	}
	p, err := a.cfg.GetPalette()
	if err != nil {
		return err
	}

	grid, err := raster.Load(opts.image, opts.rows, opts.cols)
	if err != nil {
		return err
	}
	ids, err := quantize.Quantize(grid, p, opts.quantize, quantize.NewRand(opts.seed))
	if err != nil {
		return err
	}
	prog, err := gcode.Generate(ids, p, opts.gcode)
	if err != nil {
		return err
	}

	if err := writeFile(opts.output, func(w io.Writer) error {
		_, err := prog.WriteTo(w)
		return err
	}); err != nil {
		return err
	}
	stats := prog.Stats()
	fmt.Fprintf(a.out, "Wrote %s: %dx%d dots, %d lines, %d dispenses, %d pauses (seed %d)\n",
		opts.output, ids.Rows, ids.Cols, stats.Lines, stats.Dispenses, stats.Pauses, opts.seed)
	printUsageTable(a.out, quantize.Usage(ids, p))

	if opts.dots != "" {
		img := preview.DotImage(ids, p, opts.dotSize)
		if err := writeFile(opts.dots, func(w io.Writer) error { return preview.WritePNG(w, img) }); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote dot preview %s\n", opts.dots)
	}
	if opts.chart != "" {
		title := filepath.Base(opts.image)
		if err := writeFile(opts.chart, func(w io.Writer) error {
			return preview.RenderChart(w, ids, p, opts.gcode.Layout, title)
		}); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote chart %s\n", opts.chart)
	}
	if opts.path != "" {
		if err := preview.SavePathPlot(opts.path, prog, p, 8, 8); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote path plot %s\n", opts.path)
	}

	if opts.save {
		database, err := a.openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		job := api.JobRecord(security.SanitizeFilename(filepath.Base(opts.image)), ids, p, opts.quantize, opts.seed, opts.gcode, prog)
		job.CreatedAt = time.Now()
		if err := database.CreateJob(job); err != nil {
			return fmt.Errorf("failed to store job: %w", err)
		}
		log.Printf("Recorded job %s in %s", job.ID, database.Path())
		fmt.Fprintf(a.out, "Job %s\n", job.ID)
	}
	return nil
}

func printUsageTable(out io.Writer, usage []quantize.ColorUsage) {
	for _, u := range usage {
		fmt.Fprintf(out, "  %3s  %-12s %s  %6d\n", u.ID, u.Name, u.Hex, u.Cells)
	}
}

// writeFile creates path and hands it to fn, reporting the first error
// from fn or Close.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// paletteName is the display form of one paint.
func paletteName(p palette.Palette, id palette.ID) string {
	e, ok := p.Entry(id)
	if !ok {
		return id.String()
	}
	return fmt.Sprintf("%s %s (%s)", id, e.Name, e.Hex())
}
