package quantize

import (
	"fmt"
	"slices"

	"github.com/banshee-data/pointillist/internal/palette"
)

// IDGrid is a Rows×Cols matrix of palette identifiers stored row-major.
type IDGrid struct {
	Rows, Cols int
	IDs        []palette.ID
}

// NewIDGrid returns a grid with every cell set to fill.
func NewIDGrid(rows, cols int, fill palette.ID) (*IDGrid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: id grid must be at least 1x1, got %dx%d", ErrInvalidInput, rows, cols)
	}
	ids := make([]palette.ID, rows*cols)
	for i := range ids {
		ids[i] = fill
	}
	return &IDGrid{Rows: rows, Cols: cols, IDs: ids}, nil
}

// FromMatrix copies a rectangular [][]ID into a grid.
func FromMatrix(m [][]palette.ID) (*IDGrid, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrInvalidInput)
	}
	g := &IDGrid{Rows: len(m), Cols: len(m[0]), IDs: make([]palette.ID, 0, len(m)*len(m[0]))}
	for r, row := range m {
		if len(row) != g.Cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidInput, r, len(row), g.Cols)
		}
		g.IDs = append(g.IDs, row...)
	}
	return g, nil
}

// Matrix returns the grid as nested rows.
func (g *IDGrid) Matrix() [][]palette.ID {
	out := make([][]palette.ID, g.Rows)
	for r := range out {
		out[r] = slices.Clone(g.Row(r))
	}
	return out
}

// At returns the identifier at row r, column c.
func (g *IDGrid) At(r, c int) palette.ID { return g.IDs[r*g.Cols+c] }

// Set stores id at row r, column c.
func (g *IDGrid) Set(r, c int, id palette.ID) { g.IDs[r*g.Cols+c] = id }

// Row returns a view of row r.
func (g *IDGrid) Row(r int) []palette.ID { return g.IDs[r*g.Cols : (r+1)*g.Cols] }

// Clone returns a deep copy.
func (g *IDGrid) Clone() *IDGrid {
	return &IDGrid{Rows: g.Rows, Cols: g.Cols, IDs: slices.Clone(g.IDs)}
}

// Validate checks the grid shape and that every cell names a paint in p.
func (g *IDGrid) Validate(p palette.Palette) error {
	if g == nil || g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("%w: empty id grid", ErrInvalidInput)
	}
	if len(g.IDs) != g.Rows*g.Cols {
		return fmt.Errorf("%w: id grid has %d cells, want %d", ErrInvalidInput, len(g.IDs), g.Rows*g.Cols)
	}
	for i, id := range g.IDs {
		if !p.Contains(id) {
			return fmt.Errorf("%w: cell (%d,%d) has unknown palette id %d", ErrInvalidInput, i/g.Cols, i%g.Cols, id)
		}
	}
	return nil
}

// Count returns the number of cells per identifier.
func (g *IDGrid) Count() map[palette.ID]int {
	counts := make(map[palette.ID]int)
	for _, id := range g.IDs {
		counts[id]++
	}
	return counts
}

// ColorUsage is one row of a usage report.
type ColorUsage struct {
	ID    palette.ID `json:"id"`
	Name  string     `json:"name"`
	Hex   string     `json:"hex"`
	Cells int        `json:"cells"`
}

// Usage lists the paints that appear in g, in ascending ID order.
func Usage(g *IDGrid, p palette.Palette) []ColorUsage {
	counts := g.Count()
	var out []ColorUsage
	for _, e := range p.Entries() {
		if n := counts[e.ID]; n > 0 {
			out = append(out, ColorUsage{ID: e.ID, Name: e.Name, Hex: e.Hex(), Cells: n})
		}
	}
	return out
}
