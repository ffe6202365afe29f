package gcode

import (
	"strconv"
	"strings"
)

// TracedDot is a dispense position recovered from a program.
type TracedDot struct {
	Block int
	Paint string
	Point
}

// Trace is what a program does on the XY plane.
type Trace struct {
	// Path lists every XY position the head visits, in order.
	Path []Point
	Dots []TracedDot
	// Paints names each block in order.
	Paints []string
}

// TraceLines replays the XY moves of lines. Only absolute G0/G1 moves are
// followed; the head starts at the origin.
func TraceLines(lines []string) Trace {
	var (
		t     Trace
		pos   Point
		block = -1
	)
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if name, ok := blockName(line); ok {
			block++
			t.Paints = append(t.Paints, name)
			continue
		}
		switch Classify(line) {
		case KindDispense:
			paint := ""
			if block >= 0 {
				paint = t.Paints[block]
			}
			t.Dots = append(t.Dots, TracedDot{Block: block, Paint: paint, Point: pos})
			continue
		case KindCommand:
		default:
			continue
		}
		fields := strings.Fields(strings.ToUpper(StripComment(line)))
		if len(fields) == 0 || (fields[0] != "G0" && fields[0] != "G1" && fields[0] != "G00" && fields[0] != "G01") {
			continue
		}
		moved := false
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f[1:], 64)
			if err != nil {
				continue
			}
			switch f[0] {
			case 'X':
				pos.X, moved = v, true
			case 'Y':
				pos.Y, moved = v, true
			}
		}
		if moved {
			t.Path = append(t.Path, pos)
		}
	}
	return t
}

func blockName(line string) (string, bool) {
	if !strings.HasPrefix(line, blockPrefix) || !strings.HasSuffix(line, blockSuffix) {
		return "", false
	}
	return line[len(blockPrefix) : len(line)-len(blockSuffix)], true
}
