package palette

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestDefault(t *testing.T) {
	p := Default()
	if p.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", p.Len())
	}
	if p.Background() != White {
		t.Errorf("Background() = %d, want %d", p.Background(), White)
	}
	if got := p.Name(0); got != "red" {
		t.Errorf("Name(0) = %q, want red", got)
	}
	if got := p.Color(White); got != (colorful.Color{R: 1, G: 1, B: 1}) {
		t.Errorf("Color(White) = %v", got)
	}
	ids := p.IDs()
	for i, id := range ids {
		if int(id) != i {
			t.Fatalf("IDs()[%d] = %d, want ascending 0..10", i, id)
		}
	}
}

func TestDefaultIsIndependent(t *testing.T) {
	a := Default()
	entries := a.Entries()
	entries[0].Name = "changed"
	if Default().Name(0) != "red" || a.Name(0) != "red" {
		t.Fatal("mutating Entries() leaked into a palette")
	}
}

func TestNewValidation(t *testing.T) {
	red := colorful.Color{R: 1}
	tests := []struct {
		name       string
		entries    []Entry
		background ID
	}{
		{"empty", nil, 0},
		{"negative id", []Entry{{ID: -1, Color: red}}, NoBackground},
		{"duplicate", []Entry{{ID: 0, Color: red}, {ID: 0, Color: red}}, 0},
		{"out of range", []Entry{{ID: 0, Color: colorful.Color{R: 1.5}}}, 0},
		{"negative", []Entry{{ID: 0, Color: colorful.Color{G: -0.1}}}, 0},
		{"unknown background", []Entry{{ID: 0, Color: red}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries, tt.background)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("New() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNewSortsAndNames(t *testing.T) {
	p, err := New([]Entry{
		{ID: 5, Color: colorful.Color{B: 1}},
		{ID: 1, Name: "red", Color: colorful.Color{R: 1}},
	}, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ids := p.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 5 {
		t.Fatalf("IDs() = %v, want [1 5]", ids)
	}
	if got := p.Name(5); got != "#0000ff" {
		t.Errorf("unnamed entry Name = %q, want hex fallback", got)
	}
	if !p.Contains(5) || p.Contains(2) {
		t.Error("Contains() mismatch")
	}
}

func TestNoBackground(t *testing.T) {
	p, err := New([]Entry{{ID: 0, Name: "red", Color: colorful.Color{R: 1}}}, NoBackground)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Background() != NoBackground || p.Contains(NoBackground) {
		t.Errorf("Background() = %d, Contains(NoBackground) = %v", p.Background(), p.Contains(NoBackground))
	}
}

func TestNearest(t *testing.T) {
	p := Default()
	tests := []struct {
		c    colorful.Color
		want ID
	}{
		{colorful.Color{R: 0.95, G: 0.05, B: 0.02}, 0},
		{colorful.Color{R: 0.02, G: 0.02, B: 0.02}, 5},
		{colorful.Color{R: 0.98, G: 0.99, B: 0.97}, White},
		{colorful.Color{R: 0.0, G: 0.4, B: 0.01}, 9},
	}
	for _, tt := range tests {
		if got := p.Nearest(tt.c); got != tt.want {
			t.Errorf("Nearest(%v) = %d, want %d", tt.c, got, tt.want)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := map[string]EntryConfig{
		"0": {Name: "red", Color: "#ff0000"},
		"1": {Name: "blue", Color: "#0000ff"},
		"2": {Name: "white", Color: "#ffffff"},
	}
	p, err := FromConfig(cfg, 2)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if p.Background() != 2 || p.Name(1) != "blue" {
		t.Fatalf("unexpected palette %+v", p.Entries())
	}
	back := p.Config()
	if back["0"] != cfg["0"] || back["2"] != cfg["2"] {
		t.Errorf("Config() = %v, want %v", back, cfg)
	}

	if _, err := FromConfig(map[string]EntryConfig{"x": {Color: "#000000"}}, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("non-integer id error = %v", err)
	}
	if _, err := FromConfig(map[string]EntryConfig{"0": {Color: "red"}}, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad hex error = %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	for _, m := range []Method{MethodDominantColor, MethodKMeans} {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMethod(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMethod("octree"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func twoToneImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 250, G: 250, B: 250, A: 255}
			if x < 20 {
				c = color.RGBA{R: 200, G: 10, B: 10, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestExtract(t *testing.T) {
	for _, m := range []Method{MethodDominantColor, MethodKMeans} {
		t.Run(m.String(), func(t *testing.T) {
			p, err := Extract(twoToneImage(), 2, m)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if p.Len() < 1 || p.Len() > 2 {
				t.Fatalf("Len() = %d, want 1..2", p.Len())
			}
			bg := p.Color(p.Background())
			for _, e := range p.Entries() {
				if luminance(e.Color) > luminance(bg) {
					t.Errorf("background %v is not the lightest entry (%v)", bg, e.Color)
				}
			}
		})
	}
	if _, err := Extract(twoToneImage(), 0, MethodKMeans); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("k=0 error = %v", err)
	}
}

func TestSwatch(t *testing.T) {
	p := Default()
	img := Swatch(p, 8)
	if img.Bounds().Dx() != 8*11 || img.Bounds().Dy() != 8 {
		t.Fatalf("Swatch bounds = %v", img.Bounds())
	}
	if got := img.RGBAAt(3, 3); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("first tile = %v, want red", got)
	}
	if got := img.RGBAAt(8*10+1, 1); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("last tile = %v, want white", got)
	}
}
