// Package canvas holds the hand-painted dot grid edited from the API. Every
// change is recorded so it can be undone in reverse order.
package canvas

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/quantize"
)

// DefaultHistory is the number of edits kept for Undo.
const DefaultHistory = 10000

// ErrOutOfBounds is returned when a cell lies outside the canvas.
var ErrOutOfBounds = errors.New("cell out of bounds")

// Edit records the value a cell held before it was painted. A Clear is
// recorded as a single edit carrying a snapshot of the whole grid.
type Edit struct {
	Row  int
	Col  int
	Prev palette.ID

	snapshot []palette.ID
}

// Canvas is safe for concurrent use.
type Canvas struct {
	mu         sync.Mutex
	grid       *quantize.IDGrid
	background palette.ID
	history    []Edit
	limit      int
}

// New returns a canvas filled with background.
func New(rows, cols int, background palette.ID) (*Canvas, error) {
	g, err := quantize.NewIDGrid(rows, cols, background)
	if err != nil {
		return nil, err
	}
	return &Canvas{grid: g, background: background, limit: DefaultHistory}, nil
}

// SetHistoryLimit bounds the undo history; the oldest edits are dropped
// first. n < 1 disables undo.
func (c *Canvas) SetHistoryLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = max(n, 0)
	c.trim()
}

func (c *Canvas) trim() {
	if over := len(c.history) - c.limit; over > 0 {
		c.history = append(c.history[:0], c.history[over:]...)
	}
}

func (c *Canvas) push(e Edit) {
	if c.limit == 0 {
		return
	}
	c.history = append(c.history, e)
	c.trim()
}

// Size returns the grid dimensions.
func (c *Canvas) Size() (rows, cols int) {
	return c.grid.Rows, c.grid.Cols
}

// Background returns the identifier a cleared cell holds.
func (c *Canvas) Background() palette.ID { return c.background }

// Paint sets cell (row, col) to id. Painting a cell with the value it already
// holds changes nothing and is not recorded. changed reports whether the
// grid was modified.
func (c *Canvas) Paint(row, col int, id palette.ID) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row < 0 || row >= c.grid.Rows || col < 0 || col >= c.grid.Cols {
		return false, fmt.Errorf("%w: (%d,%d) on a %dx%d canvas", ErrOutOfBounds, row, col, c.grid.Rows, c.grid.Cols)
	}
	prev := c.grid.At(row, col)
	if prev == id {
		return false, nil
	}
	c.grid.Set(row, col, id)
	c.push(Edit{Row: row, Col: col, Prev: prev})
	return true, nil
}

// Undo reverts the most recent edit. It returns false when there is nothing
// to undo.
func (c *Canvas) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return false
	}
	e := c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]
	if e.snapshot != nil {
		copy(c.grid.IDs, e.snapshot)
		return true
	}
	c.grid.Set(e.Row, e.Col, e.Prev)
	return true
}

// Clear resets every cell to the background. It can be undone as one step.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	painted := false
	for _, id := range c.grid.IDs {
		if id != c.background {
			painted = true
			break
		}
	}
	if !painted {
		return
	}
	c.push(Edit{snapshot: c.grid.Clone().IDs})
	for i := range c.grid.IDs {
		c.grid.IDs[i] = c.background
	}
}

// UndoDepth returns the number of edits that can be undone.
func (c *Canvas) UndoDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Grid returns a copy of the current cells.
func (c *Canvas) Grid() *quantize.IDGrid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grid.Clone()
}
