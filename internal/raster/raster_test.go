package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lucasb-eyer/go-colorful"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestFromImageNormalizes(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	g, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	if g.Rows != 1 || g.Cols != 2 {
		t.Fatalf("dims = %dx%d, want 1x2", g.Rows, g.Cols)
	}
	want := [3]float64{1, 0, 0.2}
	got := g.At(0, 0)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("At(0,0) = %v, want %v", got, want)
			break
		}
	}
	if got := g.At(0, 1); got != [3]float64{1, 1, 1} {
		t.Errorf("transparent pixel = %v, want white", got)
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 13, 22))
	img.SetRGBA(12, 21, color.RGBA{B: 255, A: 255})
	g, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	if g.Rows != 2 || g.Cols != 3 {
		t.Fatalf("dims = %dx%d, want 2x3", g.Rows, g.Cols)
	}
	if got := g.Color(1, 2); got != (colorful.Color{B: 1}) {
		t.Errorf("Color(1,2) = %v, want blue", got)
	}
}

func TestDecodeResizes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			src.SetRGBA(x, y, color.RGBA{G: 255, A: 255})
		}
	}
	g, err := Decode(bytes.NewReader(encodePNG(t, src)), 15, 20)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if g.Rows != 15 || g.Cols != 20 {
		t.Fatalf("dims = %dx%d, want 15x20", g.Rows, g.Cols)
	}
	c := g.At(7, 9)
	if math.Abs(c[1]-1) > 1e-3 || c[0] > 1e-3 || c[2] > 1e-3 {
		t.Errorf("uniform green resized to %v", c)
	}
}

func TestDecodeNativeSize(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 7, 3))
	g, err := Decode(bytes.NewReader(encodePNG(t, src)), 0, 0)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if g.Rows != 3 || g.Cols != 7 {
		t.Errorf("dims = %dx%d, want native 3x7", g.Rows, g.Cols)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(strings.NewReader("not an image"), 0, 0); err == nil {
		t.Error("expected decode error")
	}
	if _, err := NewColorGrid(0, 4); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NewColorGrid(0,4) error = %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png"), 1, 1); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, encodePNG(t, image.NewRGBA(image.Rect(0, 0, 4, 4))), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := Load(path, 2, 2)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Rows != 2 || g.Cols != 2 {
		t.Errorf("dims = %dx%d", g.Rows, g.Cols)
	}
	if _, err := LoadImage(path); err != nil {
		t.Errorf("LoadImage() error = %v", err)
	}
}

func TestFill(t *testing.T) {
	c := colorful.Color{R: 0.1, G: 0.2, B: 0.3}
	g, err := Fill(3, 2, c)
	if err != nil {
		t.Fatal(err)
	}
	if g.Empty() {
		t.Fatal("filled grid reported empty")
	}
	if g.Color(2, 1) != c {
		t.Errorf("Color(2,1) = %v, want %v", g.Color(2, 1), c)
	}
	var nilGrid *ColorGrid
	if !nilGrid.Empty() {
		t.Error("nil grid should be empty")
	}
}

func TestRegion(t *testing.T) {
	g, err := NewColorGrid(3, 3)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := float64(r*3+c) / 10
			g.Set(r, c, colorful.Color{R: v, G: 1 - v, B: 0.5})
		}
	}

	ch := g.Region([3][]float64{}, 1, 1, 2)
	if diff := cmp.Diff([]float64{0.4, 0.5, 0.7, 0.8}, ch[0]); diff != "" {
		t.Errorf("Region red channel mismatch (-want +got):\n%s", diff)
	}
	if got := len(ch[2]); got != 4 {
		t.Errorf("blue channel has %d samples, want 4", got)
	}

	// Clipped at the bottom-right edge.
	ch = g.Region(ch, 2, 2, 5)
	if diff := cmp.Diff([]float64{0.8}, ch[0]); diff != "" {
		t.Errorf("clipped Region mismatch (-want +got):\n%s", diff)
	}
}

func TestRegionReusesBuffer(t *testing.T) {
	g, err := NewColorGrid(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	buf := g.Region([3][]float64{}, 0, 0, 4)
	allocs := testing.AllocsPerRun(100, func() {
		buf = g.Region(buf, 4, 4, 4)
	})
	if allocs != 0 {
		t.Errorf("Region allocated %.0f times per call with a warm buffer, want 0", allocs)
	}
	if got := len(buf[1]); got != 16 {
		t.Errorf("green channel has %d samples, want 16", got)
	}
}
