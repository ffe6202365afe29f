// Package palette describes the set of physically available paints. A Palette
// maps small integer identifiers to reference colours in normalized RGB and
// designates one identifier as the unpainted canvas.
package palette

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidInput is returned when a palette definition is malformed.
var ErrInvalidInput = errors.New("invalid palette")

// ID identifies one paint in a Palette.
type ID int

func (id ID) String() string { return strconv.Itoa(int(id)) }

// NoBackground may be passed to New when every entry is a paint.
const NoBackground ID = -1

// Entry is a single paint.
type Entry struct {
	ID    ID             `json:"id"`
	Name  string         `json:"name"`
	Color colorful.Color `json:"-"`
}

// Hex returns the reference colour as #rrggbb.
func (e Entry) Hex() string { return e.Color.Clamped().Hex() }

// Palette is immutable once constructed. Entries are kept in ascending ID
// order.
type Palette struct {
	entries    []Entry
	index      map[ID]int
	background ID
}

// New validates entries and builds a Palette. The background identifier must
// be one of the entries or NoBackground; it is never painted.
func New(entries []Entry, background ID) (Palette, error) {
	if len(entries) == 0 {
		return Palette{}, fmt.Errorf("%w: no entries", ErrInvalidInput)
	}
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return int(a.ID) - int(b.ID) })

	index := make(map[ID]int, len(sorted))
	for i, e := range sorted {
		if e.ID < 0 {
			return Palette{}, fmt.Errorf("%w: negative id %d", ErrInvalidInput, e.ID)
		}
		if _, dup := index[e.ID]; dup {
			return Palette{}, fmt.Errorf("%w: duplicate id %d", ErrInvalidInput, e.ID)
		}
		for _, v := range []float64{e.Color.R, e.Color.G, e.Color.B} {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return Palette{}, fmt.Errorf("%w: colour of id %d out of range: %v", ErrInvalidInput, e.ID, e.Color)
			}
		}
		if e.Name == "" {
			sorted[i].Name = e.Color.Hex()
		}
		index[e.ID] = i
	}
	if _, ok := index[background]; !ok && background != NoBackground {
		return Palette{}, fmt.Errorf("%w: background id %d is not in the palette", ErrInvalidInput, background)
	}
	return Palette{entries: sorted, index: index, background: background}, nil
}

// Must is like New but panics on error. Intended for static tables and tests.
func Must(p Palette, err error) Palette {
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of paints, including the background.
func (p Palette) Len() int { return len(p.entries) }

// Background returns the identifier of the unpainted canvas colour, or
// NoBackground.
func (p Palette) Background() ID { return p.background }

// Contains reports whether id is a recognised identifier.
func (p Palette) Contains(id ID) bool {
	_, ok := p.index[id]
	return ok
}

// IDs returns all identifiers in ascending order.
func (p Palette) IDs() []ID {
	ids := make([]ID, len(p.entries))
	for i, e := range p.entries {
		ids[i] = e.ID
	}
	return ids
}

// Entries returns a copy of the entries in ascending ID order.
func (p Palette) Entries() []Entry { return slices.Clone(p.entries) }

// Entry looks up a single paint.
func (p Palette) Entry(id ID) (Entry, bool) {
	i, ok := p.index[id]
	if !ok {
		return Entry{}, false
	}
	return p.entries[i], true
}

// Color returns the reference colour for id, or black if id is unknown.
func (p Palette) Color(id ID) colorful.Color {
	e, _ := p.Entry(id)
	return e.Color
}

// Name returns the human-readable paint name for id.
func (p Palette) Name(id ID) string {
	if e, ok := p.Entry(id); ok {
		return e.Name
	}
	return "id " + id.String()
}

// RGB returns the reference colour of the entry at position i as a slice,
// in the order of IDs.
func (p Palette) RGB(i int) []float64 {
	c := p.entries[i].Color
	return []float64{c.R, c.G, c.B}
}

// Nearest returns the identifier whose reference colour is closest to c in
// RGB space. Ties resolve to the lower identifier.
func (p Palette) Nearest(c colorful.Color) ID {
	best := p.entries[0].ID
	bestD := math.Inf(1)
	for _, e := range p.entries {
		dr, dg, db := c.R-e.Color.R, c.G-e.Color.G, c.B-e.Color.B
		if d := dr*dr + dg*dg + db*db; d < bestD {
			best, bestD = e.ID, d
		}
	}
	return best
}
