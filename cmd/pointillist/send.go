package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/pointillist/internal/db"
	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/sender"
)

// progressEvery is how often send reports the line number.
const progressEvery = 100

func (a *app) send(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(a.out)
	jobID := fs.String("job", "", "Stored job to send, or to record the run against when a file is given")
	auto := fs.Bool("auto", false, "Resume at pauses without waiting for the operator")
	noSync := fs.Bool("no-sync", false, "Do not wait for motion to stop before dispensing")
	home := fs.Bool("home", false, "Run the homing cycle first")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pointillist send [options] [program.gcode]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 || (fs.NArg() == 0 && *jobID == "") {
		fs.Usage()
		return errors.New("expected a program file or --job")
	}

	var database *db.DB
	if *jobID != "" {
		var err error
		if database, err = a.openDB(); err != nil {
			return err
		}
		defer database.Close()
	}

	prog, err := a.loadProgram(fs.Arg(0), database, *jobID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.stream(ctx, prog, database, *jobID, streamOptions{auto: *auto, sync: !*noSync && a.cfg.GetSyncMotion(), home: *home})
}

// loadProgram reads path, or the stored program of jobID when path is
// empty.
func (a *app) loadProgram(path string, database *db.DB, jobID string) (*gcode.Program, error) {
	if path == "" {
		job, err := database.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		return gcode.ReadProgram(strings.NewReader(job.GCode))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer f.Close()
	return gcode.ReadProgram(f)
}

type streamOptions struct {
	auto bool
	sync bool
	home bool
}

// stream connects, runs prog and records the run when database is set.
func (a *app) stream(ctx context.Context, prog *gcode.Program, database *db.DB, jobID string, opts streamOptions) error {
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stepper, err := a.stepper()
	if err != nil {
		return err
	}

	var op sender.Operator = sender.AutoOperator{}
	if !opts.auto {
		op = &sender.TerminalOperator{In: a.in, Out: a.out, Fd: a.fd, JogUnits: a.cfg.GetJogUnits()}
	}

	if opts.home {
		fmt.Fprintln(a.out, "Homing...")
		if err := conn.ctrl.Home(ctx); err != nil {
			return fmt.Errorf("homing failed: %w", err)
		}
	}

	var run *db.Run
	if database != nil {
		if run, err = database.StartRun(jobID, time.Now()); err != nil {
			return err
		}
	}

	total := len(prog.Lines)
	s := sender.Streamer{
		Controller:    conn.ctrl,
		Dispenser:     stepper,
		Operator:      op,
		DispenseUnits: a.cfg.GetDispenseUnits(),
		Sync:          opts.sync,
		OnLine: func(n int, line string, kind gcode.Kind) {
			switch {
			case kind == gcode.KindComment:
				fmt.Fprintf(a.out, "[%d/%d] %s\n", n+1, total, line)
			case (n+1)%progressEvery == 0:
				fmt.Fprintf(a.out, "[%d/%d]\n", n+1, total)
			}
		},
	}
	start := time.Now()
	res, streamErr := sender.Stream(ctx, prog.Lines, s)

	if run != nil {
		counts := db.RunCounts{Sent: res.Sent, Dispensed: res.Dispensed, Pauses: res.Pauses}
		if err := database.FinishRun(run.ID, time.Now(), counts, streamErr); err != nil {
			log.Printf("failed to record run %s: %v", run.ID, err)
		}
	}
	fmt.Fprintf(a.out, "Sent %d lines, %d dispenses, %d pauses in %s\n",
		res.Sent, res.Dispensed, res.Pauses, time.Since(start).Round(time.Second))
	return streamErr
}
