package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/banshee-data/pointillist/internal/config"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/preview"
	"github.com/banshee-data/pointillist/internal/pump"
	"github.com/banshee-data/pointillist/internal/raster"
	"github.com/banshee-data/pointillist/internal/sender"
)

func (a *app) setup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	fs.SetOutput(a.out)
	unlock := fs.Bool("unlock", false, "Clear an alarm lock before writing settings")
	home := fs.Bool("home", true, "Run the homing cycle after writing settings")
	zero := fs.Bool("zero", false, "Make the homed position the work origin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if *unlock {
		if err := conn.ctrl.Unlock(ctx); err != nil {
			return err
		}
	}
	settings := a.cfg.GetControllerSettings()
	if err := conn.ctrl.Setup(ctx, settings); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d settings\n", len(settings))
	if *home {
		fmt.Fprintln(a.out, "Homing...")
		if err := conn.ctrl.Home(ctx); err != nil {
			return fmt.Errorf("homing failed: %w", err)
		}
	}
	if *zero {
		if err := conn.ctrl.ZeroAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Work origin set")
	}
	return nil
}

// pump moves the syringe once when given a direction and amount, or
// reads arrow keys until Enter or q otherwise.
func (a *app) pump(args []string) error {
	fs := flag.NewFlagSet("pump", flag.ContinueOnError)
	fs.SetOutput(a.out)
	units := fs.Float64("units", a.cfg.GetJogUnits(), "Amount moved per arrow key")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pointillist pump [options] [up|down <units>]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	stepper, err := a.stepper()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch fs.NArg() {
	case 0:
		op := &sender.TerminalOperator{In: a.in, Out: a.out, Fd: a.fd, JogUnits: *units}
		err := op.AwaitResume(ctx, stepper)
		if errors.Is(err, sender.ErrAborted) {
			return nil
		}
		return err
	case 2:
		dir, err := pump.ParseDirection(fs.Arg(0))
		if err != nil {
			return err
		}
		amount, err := strconv.ParseFloat(fs.Arg(1), 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", fs.Arg(1))
		}
		if err := stepper.Move(ctx, amount, dir); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Moved %s %g units (%d steps)\n", dir, amount, stepper.Steps(amount))
		return nil
	default:
		fs.Usage()
		return errors.New("expected no arguments or a direction and an amount")
	}
}

func (a *app) palette(args []string) error {
	if len(args) < 1 {
		printPaletteUsage(a.out)
		return errors.New("missing palette action")
	}
	switch args[0] {
	case "show":
		return a.paletteShow(args[1:])
	case "suggest":
		return a.paletteSuggest(args[1:])
	case "help":
		printPaletteUsage(a.out)
		return nil
	default:
		printPaletteUsage(a.out)
		return fmt.Errorf("unknown palette action %q", args[0])
	}
}

func printPaletteUsage(out io.Writer) {
	fmt.Fprintln(out, `Usage: pointillist palette <action> [options]

Actions:
  show               List the configured paints
  suggest <image>    Propose paints for an image

Options:
  --swatch <file>    Also write a PNG with one tile per paint
  --json             Print the palette section of a config file`)
}

func (a *app) paletteShow(args []string) error {
	fs := flag.NewFlagSet("palette show", flag.ContinueOnError)
	fs.SetOutput(a.out)
	swatch := fs.String("swatch", "", "Write a swatch PNG")
	asJSON := fs.Bool("json", false, "Print as config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.cfg.GetPalette()
	if err != nil {
		return err
	}
	return a.printPalette(p, *swatch, *asJSON)
}

func (a *app) paletteSuggest(args []string) error {
	fs := flag.NewFlagSet("palette suggest", flag.ContinueOnError)
	fs.SetOutput(a.out)
	k := fs.Int("k", 6, "Number of paints, including the background")
	method := fs.String("method", "dominantcolor", "Extraction method: dominantcolor or kmeans")
	swatch := fs.String("swatch", "", "Write a swatch PNG")
	asJSON := fs.Bool("json", false, "Print as config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected one image")
	}
	m, err := palette.ParseMethod(*method)
	if err != nil {
		return err
	}
	img, err := raster.LoadImage(fs.Arg(0))
	if err != nil {
		return err
	}
	p, err := palette.Extract(img, *k, m)
	if err != nil {
		return err
	}
	return a.printPalette(p, *swatch, *asJSON)
}

func (a *app) printPalette(p palette.Palette, swatch string, asJSON bool) error {
	if asJSON {
		bg := int(p.Background())
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(config.PaletteConfig{Entries: p.Config(), Background: &bg}); err != nil {
			return err
		}
	} else {
		for _, id := range p.IDs() {
			marker := ""
			if id == p.Background() {
				marker = "  (background)"
			}
			fmt.Fprintf(a.out, "  %s%s\n", paletteName(p, id), marker)
		}
	}
	if swatch != "" {
		img := palette.Swatch(p, 64)
		if err := writeFile(swatch, func(w io.Writer) error { return preview.WritePNG(w, img) }); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote swatch %s\n", swatch)
	}
	return nil
}
