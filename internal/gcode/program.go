package gcode

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Program is an ordered list of G-code lines.
type Program struct {
	Lines []string
}

// String joins the lines with newlines, including a trailing one.
func (p *Program) String() string {
	var b strings.Builder
	for _, l := range p.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo implements io.WriterTo.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.String())
	return int64(n), err
}

// ReadProgram reads one line per instruction. Carriage returns and trailing
// whitespace are dropped; blank lines are kept so line numbers stay stable.
func ReadProgram(r io.Reader) (*Program, error) {
	var p Program
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scan.Scan() {
		p.Lines = append(p.Lines, strings.TrimRight(scan.Text(), " \t\r"))
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return &p, nil
}

// Stats summarises a program.
type Stats struct {
	Lines     int `json:"lines"`
	Commands  int `json:"commands"`
	Dispenses int `json:"dispenses"`
	Pauses    int `json:"pauses"`
	Comments  int `json:"comments"`
	// Blocks counts paint block headers.
	Blocks int `json:"blocks"`
}

// Stats counts lines by kind.
func (p *Program) Stats() Stats {
	s := Stats{Lines: len(p.Lines)}
	for _, l := range p.Lines {
		switch Classify(l) {
		case KindCommand:
			s.Commands++
		case KindDispense:
			s.Dispenses++
		case KindPause:
			s.Pauses++
		case KindComment:
			s.Comments++
			if _, ok := blockName(l); ok {
				s.Blocks++
			}
		}
	}
	return s
}
