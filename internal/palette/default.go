package palette

import (
	"fmt"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// White is the background paint of the default palette.
const White ID = 10

// Default returns the acrylic set the plotter is normally loaded with. A fresh
// value is built on every call so no caller can observe another's palette.
func Default() Palette {
	return Must(New([]Entry{
		{ID: 0, Name: "red", Color: colorful.Color{R: 1.0, G: 0.0, B: 0.0}},
		{ID: 1, Name: "yellow", Color: colorful.Color{R: 1.0, G: 1.0, B: 0.0}},
		{ID: 2, Name: "blue", Color: colorful.Color{R: 0.0, G: 0.0, B: 1.0}},
		{ID: 3, Name: "dioxazine purple", Color: colorful.Color{R: 0.294, G: 0.0, B: 0.51}},
		{ID: 4, Name: "light green", Color: colorful.Color{R: 0.565, G: 0.933, B: 0.565}},
		{ID: 5, Name: "black", Color: colorful.Color{R: 0.0, G: 0.0, B: 0.0}},
		{ID: 6, Name: "greenish grey", Color: colorful.Color{R: 0.20, G: 0.40, B: 0.20}},
		{ID: 7, Name: "burnt umber", Color: colorful.Color{R: 0.541, G: 0.2, B: 0.141}},
		{ID: 8, Name: "cadmium orange hue", Color: colorful.Color{R: 1.0, G: 0.38, B: 0.012}},
		{ID: 9, Name: "dark green", Color: colorful.Color{R: 0.0, G: 0.392, B: 0.0}},
		{ID: White, Name: "white", Color: colorful.Color{R: 1.0, G: 1.0, B: 1.0}},
	}, White))
}

// EntryConfig is the JSON form of a palette entry. Color is a #rrggbb string.
type EntryConfig struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// FromConfig builds a palette from a map keyed by decimal identifier.
func FromConfig(entries map[string]EntryConfig, background int) (Palette, error) {
	list := make([]Entry, 0, len(entries))
	for key, ec := range entries {
		id, err := strconv.Atoi(key)
		if err != nil {
			return Palette{}, fmt.Errorf("%w: id %q is not an integer", ErrInvalidInput, key)
		}
		c, err := colorful.Hex(ec.Color)
		if err != nil {
			return Palette{}, fmt.Errorf("%w: id %d: %v", ErrInvalidInput, id, err)
		}
		list = append(list, Entry{ID: ID(id), Name: ec.Name, Color: c})
	}
	return New(list, ID(background))
}

// Config converts p back to its JSON form.
func (p Palette) Config() map[string]EntryConfig {
	out := make(map[string]EntryConfig, len(p.entries))
	for _, e := range p.entries {
		out[e.ID.String()] = EntryConfig{Name: e.Name, Color: e.Hex()}
	}
	return out
}
