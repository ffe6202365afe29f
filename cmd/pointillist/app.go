package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/banshee-data/pointillist/internal/config"
	"github.com/banshee-data/pointillist/internal/db"
	"github.com/banshee-data/pointillist/internal/grbl"
	"github.com/banshee-data/pointillist/internal/pump"
	"github.com/banshee-data/pointillist/internal/serialmux"
)

// app carries the global flags and the resolved configuration into each
// command.
type app struct {
	cfg    *config.PlotConfig
	dev    bool
	port   string
	dbPath string

	in  io.Reader
	out io.Writer
	// fd is switched to raw mode for keyboard control. -1 disables that.
	fd int

	factory serialmux.SerialPortFactory
}

// loadConfig reads path, or the defaults file if it exists in the working
// directory, or falls back to built-in defaults.
func loadConfig(path string) (*config.PlotConfig, error) {
	if path != "" {
		return config.LoadPlotConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadPlotConfig(config.DefaultConfigPath)
	}
	return config.EmptyPlotConfig(), nil
}

func (a *app) serialPort() string {
	if a.port != "" {
		return a.port
	}
	return a.cfg.GetSerialPort()
}

func (a *app) databasePath() string {
	if a.dbPath != "" {
		return a.dbPath
	}
	return a.cfg.GetDBPath()
}

func (a *app) openDB() (*db.DB, error) {
	database, err := db.NewDB(a.databasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// connection is an open controller port with its monitor running.
type connection struct {
	mux  serialmux.SerialMuxInterface
	ctrl *grbl.Controller

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// connect opens the controller port, starts the monitor and wakes the
// controller. In dev mode the port is replaced by a DisabledSerialMux.
func (a *app) connect(ctx context.Context) (*connection, error) {
	var m serialmux.SerialMuxInterface
	if a.dev {
		log.Printf("Debug mode: serial port disabled")
		m = serialmux.NewDisabledSerialMux()
	} else {
		sm, err := serialmux.Open(a.factory, a.serialPort(), a.cfg.Serial.Options)
		if err != nil {
			return nil, err
		}
		m = sm
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &connection{mux: m, ctrl: grbl.NewController(m), cancel: cancel}
	c.ctrl.Timeout = a.cfg.GetSerialTimeout()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
	}()

	if err := m.Initialize(); err != nil {
		c.Close()
		return nil, err
	}
	if !a.dev {
		c.ctrl.Clock.Sleep(grbl.ResetDelay)
	}
	log.Printf("Connected to controller on %s", a.describePort())
	return c, nil
}

func (a *app) describePort() string {
	if a.dev {
		return "debug port"
	}
	return a.serialPort()
}

// Close stops the monitor and closes the port.
func (c *connection) Close() {
	c.cancel()
	if err := c.mux.Close(); err != nil {
		log.Printf("failed to close serial port: %v", err)
	}
	c.wg.Wait()
}

// stepper returns the syringe pump. In dev mode the pins only log and the
// step delay is dropped.
func (a *app) stepper() (*pump.Stepper, error) {
	var pins [4]pump.Pin
	if a.dev {
		pins = pump.LogPins()
	} else {
		var err error
		pins, err = pump.OpenGPIO(a.cfg.GetPumpPins())
		if err != nil {
			return nil, err
		}
	}
	s := pump.NewStepper(pins)
	s.StepsPerUnit = a.cfg.GetStepsPerUnit()
	s.StepDelay = a.cfg.GetStepDelay()
	if a.dev {
		s.StepDelay = 0
	}
	return s, nil
}
