package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/grbl"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/pump"
	"github.com/banshee-data/pointillist/internal/quantize"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyPlotConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	if rows, cols := cfg.GetImageSize(); rows != 415 || cols != 330 {
		t.Errorf("GetImageSize() = %d, %d, want 415, 330", rows, cols)
	}
	if diff := cmp.Diff(quantize.DefaultOptions(), cfg.QuantizeOptions()); diff != "" {
		t.Errorf("QuantizeOptions() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(gcode.DefaultOptions(), cfg.GcodeOptions()); diff != "" {
		t.Errorf("GcodeOptions() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := cfg.GetSeed(); ok {
		t.Error("GetSeed() reported a seed for an empty config")
	}
	p, err := cfg.GetPalette()
	if err != nil {
		t.Fatalf("GetPalette() = %v", err)
	}
	if p.Background() != palette.White || p.Len() != 11 {
		t.Errorf("GetPalette() background %v len %d, want default palette", p.Background(), p.Len())
	}
	if got := cfg.GetSerialPort(); got != "/dev/ttyACM0" {
		t.Errorf("GetSerialPort() = %q", got)
	}
	if got := cfg.GetSerialTimeout(); got != 5*time.Second {
		t.Errorf("GetSerialTimeout() = %v", got)
	}
	if diff := cmp.Diff(grbl.DefaultSettings(), cfg.GetControllerSettings()); diff != "" {
		t.Errorf("GetControllerSettings() mismatch (-want +got):\n%s", diff)
	}
	if !cfg.GetSyncMotion() {
		t.Error("GetSyncMotion() = false, want true")
	}
	if cfg.GetPumpPins() != pump.DefaultPinNames {
		t.Errorf("GetPumpPins() = %v", cfg.GetPumpPins())
	}
	if cfg.GetStepsPerUnit() != 512 || cfg.GetStepDelay() != 2*time.Millisecond {
		t.Errorf("stepper = %v per unit, %v delay", cfg.GetStepsPerUnit(), cfg.GetStepDelay())
	}
	if cfg.GetDispenseUnits() != 10 || cfg.GetJogUnits() != 1 {
		t.Errorf("dispense %v jog %v", cfg.GetDispenseUnits(), cfg.GetJogUnits())
	}
	if cfg.GetListen() != ":8080" || cfg.GetGRPCListen() != ":50051" {
		t.Errorf("listen %q grpc %q", cfg.GetListen(), cfg.GetGRPCListen())
	}
	if cfg.GetDBPath() != "pointillist.db" || cfg.GetOutputDir() != "output" {
		t.Errorf("db %q output %q", cfg.GetDBPath(), cfg.GetOutputDir())
	}
	if rows, cols := cfg.GetCanvasSize(); rows != 40 || cols != 40 {
		t.Errorf("GetCanvasSize() = %d, %d", rows, cols)
	}
}

func TestLoadPlotConfig(t *testing.T) {
	path := writeConfig(t, "plot.json", `{
  "image": {"rows": 100, "cols": 80, "region_size": 4, "sharpness": 2.5, "seed": 42},
  "program": {"feed_rate": 1200, "x_dir": -1, "block_offset": 10, "skip_empty_blocks": true},
  "palette": {
    "entries": {
      "0": {"name": "red", "color": "#ff0000"},
      "1": {"name": "white", "color": "#ffffff"}
    },
    "background": 1
  },
  "serial": {"port": "/dev/ttyUSB0", "options": {"baud_rate": 9600}, "timeout": "2s", "settings": ["$22=1"], "sync_motion": false},
  "pump": {"pins": ["A", "B", "C", "D"], "step_delay": "1ms", "dispense_units": 4},
  "server": {"listen": "127.0.0.1:9000", "grpc_listen": ""}
}`)

	cfg, err := LoadPlotConfig(path)
	if err != nil {
		t.Fatalf("LoadPlotConfig() = %v", err)
	}

	if rows, cols := cfg.GetImageSize(); rows != 100 || cols != 80 {
		t.Errorf("GetImageSize() = %d, %d", rows, cols)
	}
	if got := cfg.QuantizeOptions(); got.RegionSize != 4 || got.Sharpness != 2.5 {
		t.Errorf("QuantizeOptions() = %+v", got)
	}
	if seed, ok := cfg.GetSeed(); !ok || seed != 42 {
		t.Errorf("GetSeed() = %d, %v", seed, ok)
	}

	opts := cfg.GcodeOptions()
	if opts.FeedRate != 1200 || opts.Layout.XDir != -1 || opts.Layout.BlockOffset != 10 {
		t.Errorf("GcodeOptions() = %+v", opts)
	}
	if opts.EmptyBlocks != gcode.SkipEmptyBlocks {
		t.Errorf("EmptyBlocks = %v, want skip", opts.EmptyBlocks)
	}
	// Unset fields keep their defaults.
	if opts.SafeHeight != gcode.DefaultOptions().SafeHeight {
		t.Errorf("SafeHeight = %v", opts.SafeHeight)
	}

	p, err := cfg.GetPalette()
	if err != nil {
		t.Fatalf("GetPalette() = %v", err)
	}
	if p.Len() != 2 || p.Background() != 1 || p.Name(0) != "red" {
		t.Errorf("GetPalette() = %d entries, background %v", p.Len(), p.Background())
	}

	if cfg.GetSerialPort() != "/dev/ttyUSB0" || cfg.Serial.Options.BaudRate != 9600 {
		t.Errorf("serial = %q %+v", cfg.GetSerialPort(), cfg.Serial.Options)
	}
	if cfg.GetSerialTimeout() != 2*time.Second {
		t.Errorf("GetSerialTimeout() = %v", cfg.GetSerialTimeout())
	}
	if diff := cmp.Diff([]string{"$22=1"}, cfg.GetControllerSettings()); diff != "" {
		t.Errorf("GetControllerSettings() mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetSyncMotion() {
		t.Error("GetSyncMotion() = true, want false")
	}
	if cfg.GetPumpPins() != [4]string{"A", "B", "C", "D"} {
		t.Errorf("GetPumpPins() = %v", cfg.GetPumpPins())
	}
	if cfg.GetStepDelay() != time.Millisecond || cfg.GetDispenseUnits() != 4 {
		t.Errorf("pump delay %v dispense %v", cfg.GetStepDelay(), cfg.GetDispenseUnits())
	}
	if cfg.GetListen() != "127.0.0.1:9000" {
		t.Errorf("GetListen() = %q", cfg.GetListen())
	}
	if cfg.GetGRPCListen() != "" {
		t.Errorf("GetGRPCListen() = %q, want disabled", cfg.GetGRPCListen())
	}
}

func TestLoadPlotConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "plot.yaml", `{}`, ".json extension"},
		{"bad json", "plot.json", `{"image":`, "parse config JSON"},
		{"negative rows", "plot.json", `{"image":{"rows":-1}}`, "image.rows"},
		{"zero region", "plot.json", `{"image":{"region_size":0}}`, "region_size"},
		{"zero sharpness", "plot.json", `{"image":{"sharpness":0}}`, "sharpness"},
		{"bad direction", "plot.json", `{"program":{"y_dir":2}}`, "axis direction"},
		{"zero feed", "plot.json", `{"program":{"feed_rate":0}}`, "feed rate"},
		{"bad colour", "plot.json", `{"palette":{"entries":{"0":{"name":"x","color":"red"}}}}`, "palette"},
		{"missing background", "plot.json", `{"palette":{"entries":{"0":{"name":"x","color":"#000000"}},"background":5}}`, "palette"},
		{"bad parity", "plot.json", `{"serial":{"options":{"parity":"X"}}}`, "parity"},
		{"bad timeout", "plot.json", `{"serial":{"timeout":"soon"}}`, "serial.timeout"},
		{"negative delay", "plot.json", `{"pump":{"step_delay":"-1ms"}}`, "pump.step_delay"},
		{"three pins", "plot.json", `{"pump":{"pins":["a","b","c"]}}`, "pump.pins"},
		{"zero dispense", "plot.json", `{"pump":{"dispense_units":0}}`, "pump.dispense_units"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadPlotConfig(path)
			if err == nil {
				t.Fatal("LoadPlotConfig() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPlotConfigMissingFile(t *testing.T) {
	_, err := LoadPlotConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil || !strings.Contains(err.Error(), "stat") {
		t.Errorf("LoadPlotConfig() = %v, want stat error", err)
	}
}

func TestLoadPlotConfigTooLarge(t *testing.T) {
	body := `{"server":{"listen":"` + strings.Repeat("x", maxFileSize) + `"}}`
	path := writeConfig(t, "big.json", body)
	_, err := LoadPlotConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("LoadPlotConfig() = %v, want size error", err)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyPlotConfig()

	if diff := cmp.Diff(empty.GcodeOptions(), cfg.GcodeOptions()); diff != "" {
		t.Errorf("GcodeOptions() mismatch (-builtin +file):\n%s", diff)
	}
	if diff := cmp.Diff(empty.QuantizeOptions(), cfg.QuantizeOptions()); diff != "" {
		t.Errorf("QuantizeOptions() mismatch (-builtin +file):\n%s", diff)
	}
	if !cfg.Serial.Options.Equal(empty.Serial.Options) {
		t.Errorf("serial options %+v differ from defaults", cfg.Serial.Options)
	}
	if cfg.GetPumpPins() != empty.GetPumpPins() || cfg.GetStepDelay() != empty.GetStepDelay() {
		t.Error("pump settings differ from defaults")
	}
	if cfg.GetListen() != empty.GetListen() || cfg.GetDBPath() != empty.GetDBPath() {
		t.Error("server settings differ from defaults")
	}
}
