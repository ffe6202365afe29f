package gcode

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pointillist/internal/palette"
)

func TestTraceLinesRecoversDots(t *testing.T) {
	grid := mustGrid(t, [][]palette.ID{{0, 1}, {1, 0}})
	prog, err := Generate(grid, redBlue(palette.NoBackground), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	tr := TraceLines(prog.Lines)

	want := []TracedDot{
		{Block: 0, Paint: "red", Point: Point{2.5, -2.5}},
		{Block: 0, Paint: "red", Point: Point{7.5, -7.5}},
		{Block: 1, Paint: "blue", Point: Point{7.5, -2.5}},
		{Block: 1, Paint: "blue", Point: Point{2.5, -7.5}},
	}
	if diff := cmp.Diff(want, tr.Dots); diff != "" {
		t.Errorf("Dots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"red", "blue"}, tr.Paints); diff != "" {
		t.Errorf("Paints mismatch (-want +got):\n%s", diff)
	}
	if got := tr.Path[0]; got != (Point{X: -100, Y: 0}) {
		t.Errorf("first path point = %v, want park", got)
	}
}

func TestTraceLinesIgnoresOtherWords(t *testing.T) {
	tr := TraceLines([]string{"G90", "G1 Z3.00 F500", "$J=G91 X1", "G0 X1 Y2 ; go", ";DISPENSE"})
	if diff := cmp.Diff([]Point{{1, 2}}, tr.Path); diff != "" {
		t.Errorf("Path mismatch (-want +got):\n%s", diff)
	}
	if len(tr.Dots) != 1 || tr.Dots[0].Block != -1 || tr.Dots[0].Paint != "" {
		t.Errorf("Dots = %+v", tr.Dots)
	}
}

func TestPaints(t *testing.T) {
	got := Paints(palette.Default())
	if len(got) != 10 || got[0] != 0 || got[9] != 9 {
		t.Errorf("Paints(Default()) = %v", got)
	}
	if len(Paints(redBlue(palette.NoBackground))) != 2 {
		t.Error("every entry is a paint without a background")
	}
}
