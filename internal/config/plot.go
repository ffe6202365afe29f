// Package config loads the plotter configuration file. Every field is
// optional: omitted values fall back to the defaults returned by the Get*
// methods, so a partial file is always safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/grbl"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/pump"
	"github.com/banshee-data/pointillist/internal/quantize"
	"github.com/banshee-data/pointillist/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/plot.defaults.json"

const maxFileSize = 1 * 1024 * 1024

// PlotConfig is the root of the configuration file.
type PlotConfig struct {
	Image   ImageConfig   `json:"image"`
	Program ProgramConfig `json:"program"`
	Palette PaletteConfig `json:"palette"`
	Serial  SerialConfig  `json:"serial"`
	Pump    PumpConfig    `json:"pump"`
	Server  ServerConfig  `json:"server"`
}

// ImageConfig controls sampling of the source image.
type ImageConfig struct {
	Rows       *int     `json:"rows,omitempty"`
	Cols       *int     `json:"cols,omitempty"`
	RegionSize *int     `json:"region_size,omitempty"`
	Sharpness  *float64 `json:"sharpness,omitempty"`
	// Seed fixes the random draw. Omit it for a fresh seed on every run.
	Seed *uint64 `json:"seed,omitempty"`
}

// ProgramConfig mirrors gcode.Options.
type ProgramConfig struct {
	FeedRate        *float64 `json:"feed_rate,omitempty"`
	EngageHeight    *float64 `json:"engage_height,omitempty"`
	RetractHeight   *float64 `json:"retract_height,omitempty"`
	SafeHeight      *float64 `json:"safe_height,omitempty"`
	PlungeFeed      *float64 `json:"plunge_feed,omitempty"`
	RaiseFeed       *float64 `json:"raise_feed,omitempty"`
	ParkX           *float64 `json:"park_x,omitempty"`
	ParkY           *float64 `json:"park_y,omitempty"`
	CellSpacing     *float64 `json:"cell_spacing,omitempty"`
	OriginX         *float64 `json:"origin_x,omitempty"`
	OriginY         *float64 `json:"origin_y,omitempty"`
	XDir            *int     `json:"x_dir,omitempty"`
	YDir            *int     `json:"y_dir,omitempty"`
	BlockOffset     *float64 `json:"block_offset,omitempty"`
	SkipEmptyBlocks *bool    `json:"skip_empty_blocks,omitempty"`
}

// PaletteConfig replaces the built-in paints when Entries is non-empty.
// Keys are the decimal paint identifiers.
type PaletteConfig struct {
	Entries    map[string]palette.EntryConfig `json:"entries,omitempty"`
	Background *int                           `json:"background,omitempty"`
}

// SerialConfig describes the controller connection.
type SerialConfig struct {
	Port     *string               `json:"port,omitempty"`
	Options  serialmux.PortOptions `json:"options"`
	Timeout  *string               `json:"timeout,omitempty"`
	Settings []string              `json:"settings,omitempty"`
	// SyncMotion waits for the machine to stop before each dispense and
	// pause.
	SyncMotion *bool `json:"sync_motion,omitempty"`
}

// PumpConfig describes the syringe stepper.
type PumpConfig struct {
	Pins          []string `json:"pins,omitempty"`
	StepsPerUnit  *float64 `json:"steps_per_unit,omitempty"`
	StepDelay     *string  `json:"step_delay,omitempty"`
	DispenseUnits *float64 `json:"dispense_units,omitempty"`
	JogUnits      *float64 `json:"jog_units,omitempty"`
}

// ServerConfig holds listen addresses and storage locations for serve.
type ServerConfig struct {
	Listen     *string `json:"listen,omitempty"`
	GRPCListen *string `json:"grpc_listen,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`
	OutputDir  *string `json:"output_dir,omitempty"`
	CanvasRows *int    `json:"canvas_rows,omitempty"`
	CanvasCols *int    `json:"canvas_cols,omitempty"`
}

// EmptyPlotConfig returns a config with every field unset.
func EmptyPlotConfig() *PlotConfig {
	return &PlotConfig{}
}

// LoadPlotConfig reads a JSON file. The file must have a .json extension
// and be under 1MB.
func LoadPlotConfig(path string) (*PlotConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPlotConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. It panics if the file is missing; it is meant for
// tests.
func MustLoadDefaultConfig() *PlotConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPlotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. It builds the derived option
// structs so that their own validation runs too.
func (c *PlotConfig) Validate() error {
	for name, v := range map[string]*int{
		"image.rows":         c.Image.Rows,
		"image.cols":         c.Image.Cols,
		"server.canvas_rows": c.Server.CanvasRows,
		"server.canvas_cols": c.Server.CanvasCols,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}
	if c.Image.RegionSize != nil && *c.Image.RegionSize < 1 {
		return fmt.Errorf("image.region_size must be at least 1, got %d", *c.Image.RegionSize)
	}
	if c.Image.Sharpness != nil {
		if s := *c.Image.Sharpness; !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("image.sharpness must be positive, got %v", s)
		}
	}
	if err := c.GcodeOptions().Validate(); err != nil {
		return err
	}
	if _, err := c.GetPalette(); err != nil {
		return err
	}
	if _, err := c.Serial.Options.Normalize(); err != nil {
		return fmt.Errorf("serial.options: %w", err)
	}
	for name, v := range map[string]*string{
		"serial.timeout":  c.Serial.Timeout,
		"pump.step_delay": c.Pump.StepDelay,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, d)
		}
	}
	if n := len(c.Pump.Pins); n != 0 && n != 4 {
		return fmt.Errorf("pump.pins needs exactly 4 names, got %d", n)
	}
	for name, v := range map[string]*float64{
		"pump.steps_per_unit": c.Pump.StepsPerUnit,
		"pump.dispense_units": c.Pump.DispenseUnits,
		"pump.jog_units":      c.Pump.JogUnits,
	} {
		if v != nil && (!(*v > 0) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be positive, got %v", name, *v)
		}
	}
	return nil
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func getBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

// GetImageSize returns the size the source image is resampled to before
// quantizing. The default is 415 rows by 330 columns.
func (c *PlotConfig) GetImageSize() (rows, cols int) {
	return getInt(c.Image.Rows, 415), getInt(c.Image.Cols, 330)
}

// QuantizeOptions returns the sampling options.
func (c *PlotConfig) QuantizeOptions() quantize.Options {
	def := quantize.DefaultOptions()
	return quantize.Options{
		RegionSize: getInt(c.Image.RegionSize, def.RegionSize),
		Sharpness:  getFloat(c.Image.Sharpness, def.Sharpness),
	}
}

// GetSeed returns the configured seed, if any.
func (c *PlotConfig) GetSeed() (uint64, bool) {
	if c.Image.Seed == nil {
		return 0, false
	}
	return *c.Image.Seed, true
}

// GcodeOptions returns the program generator options.
func (c *PlotConfig) GcodeOptions() gcode.Options {
	p := c.Program
	def := gcode.DefaultOptions()
	opts := gcode.Options{
		FeedRate:      getFloat(p.FeedRate, def.FeedRate),
		EngageHeight:  getFloat(p.EngageHeight, def.EngageHeight),
		RetractHeight: getFloat(p.RetractHeight, def.RetractHeight),
		SafeHeight:    getFloat(p.SafeHeight, def.SafeHeight),
		PlungeFeed:    getFloat(p.PlungeFeed, def.PlungeFeed),
		RaiseFeed:     getFloat(p.RaiseFeed, def.RaiseFeed),
		Park: gcode.Point{
			X: getFloat(p.ParkX, def.Park.X),
			Y: getFloat(p.ParkY, def.Park.Y),
		},
		Layout: gcode.Layout{
			CellSpacing: getFloat(p.CellSpacing, def.Layout.CellSpacing),
			OriginX:     getFloat(p.OriginX, def.Layout.OriginX),
			OriginY:     getFloat(p.OriginY, def.Layout.OriginY),
			XDir:        getInt(p.XDir, def.Layout.XDir),
			YDir:        getInt(p.YDir, def.Layout.YDir),
			BlockOffset: getFloat(p.BlockOffset, def.Layout.BlockOffset),
		},
	}
	if getBool(p.SkipEmptyBlocks, false) {
		opts.EmptyBlocks = gcode.SkipEmptyBlocks
	}
	return opts
}

// GetPalette returns the configured paints, or the built-in set.
func (c *PlotConfig) GetPalette() (palette.Palette, error) {
	if len(c.Palette.Entries) == 0 {
		return palette.Default(), nil
	}
	bg := getInt(c.Palette.Background, int(palette.NoBackground))
	p, err := palette.FromConfig(c.Palette.Entries, bg)
	if err != nil {
		return palette.Palette{}, fmt.Errorf("palette: %w", err)
	}
	return p, nil
}

// GetSerialPort returns the controller device path.
func (c *PlotConfig) GetSerialPort() string {
	return getString(c.Serial.Port, "/dev/ttyACM0")
}

// GetSerialTimeout bounds the wait for each acknowledgement.
func (c *PlotConfig) GetSerialTimeout() time.Duration {
	return getDuration(c.Serial.Timeout, 5*time.Second)
}

// GetControllerSettings returns the "$" settings written by setup.
func (c *PlotConfig) GetControllerSettings() []string {
	if len(c.Serial.Settings) == 0 {
		return grbl.DefaultSettings()
	}
	return append([]string(nil), c.Serial.Settings...)
}

// GetSyncMotion reports whether to wait for motion to finish before each
// dispense and pause.
func (c *PlotConfig) GetSyncMotion() bool {
	return getBool(c.Serial.SyncMotion, true)
}

// GetPumpPins returns the GPIO line names for the stepper.
func (c *PlotConfig) GetPumpPins() [4]string {
	if len(c.Pump.Pins) != 4 {
		return pump.DefaultPinNames
	}
	return [4]string(c.Pump.Pins)
}

// GetStepsPerUnit returns the stepper calibration.
func (c *PlotConfig) GetStepsPerUnit() float64 {
	return getFloat(c.Pump.StepsPerUnit, pump.DefaultStepsPerUnit)
}

// GetStepDelay returns the hold time per coil phase.
func (c *PlotConfig) GetStepDelay() time.Duration {
	return getDuration(c.Pump.StepDelay, pump.DefaultStepDelay)
}

// GetDispenseUnits returns the amount pushed per dot.
func (c *PlotConfig) GetDispenseUnits() float64 {
	return getFloat(c.Pump.DispenseUnits, 10)
}

// GetJogUnits returns the amount moved per arrow key at a pause.
func (c *PlotConfig) GetJogUnits() float64 {
	return getFloat(c.Pump.JogUnits, 1)
}

// GetListen returns the HTTP listen address.
func (c *PlotConfig) GetListen() string {
	return getString(c.Server.Listen, ":8080")
}

// GetGRPCListen returns the health service address. Empty disables it.
func (c *PlotConfig) GetGRPCListen() string {
	if c.Server.GRPCListen == nil {
		return ":50051"
	}
	return *c.Server.GRPCListen
}

// GetDBPath returns the job database file.
func (c *PlotConfig) GetDBPath() string {
	return getString(c.Server.DBPath, "pointillist.db")
}

// GetOutputDir returns where exported programs are written.
func (c *PlotConfig) GetOutputDir() string {
	return getString(c.Server.OutputDir, "output")
}

// GetCanvasSize returns the manual canvas dimensions.
func (c *PlotConfig) GetCanvasSize() (rows, cols int) {
	return getInt(c.Server.CanvasRows, 40), getInt(c.Server.CanvasCols, 40)
}
