package gcode

import (
	"strconv"
	"strings"
)

const (
	// DispenseMarker is a comment line the streamer turns into one dispense
	// action. It is never sent to the motion controller.
	DispenseMarker = ";DISPENSE"
	// PauseLine stops the program until the operator resumes it.
	PauseLine = "M0 ; Pause to change color"
)

// Kind classifies a program line for the streamer.
type Kind int

const (
	KindBlank Kind = iota
	KindComment
	KindDispense
	KindPause
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindDispense:
		return "dispense"
	case KindPause:
		return "pause"
	case KindCommand:
		return "command"
	}
	return "unknown"
}

// Classify reports what kind of line s is. Pause detection matches the M0
// word exactly, so M05 or M03 are ordinary commands.
func Classify(s string) Kind {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return KindBlank
	case strings.HasPrefix(s, DispenseMarker):
		return KindDispense
	case s[0] == ';' || s[0] == '(':
		return KindComment
	}
	body := StripComment(s)
	if body == "" {
		return KindComment
	}
	word, _, _ := strings.Cut(strings.ToUpper(body), " ")
	if word == "M0" || word == "M00" {
		return KindPause
	}
	return KindCommand
}

// StripComment removes ';' line comments and '(...)' inline comments and
// surrounding whitespace.
func StripComment(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	for {
		open := strings.IndexByte(s, '(')
		if open < 0 {
			break
		}
		end := strings.IndexByte(s[open:], ')')
		if end < 0 {
			s = s[:open]
			break
		}
		s = s[:open] + s[open+end+1:]
	}
	return strings.Join(strings.Fields(s), " ")
}

// DispenseUnits parses an optional amount after the dispense marker, as in
// ";DISPENSE 2.5". ok is false when the line carries no amount.
func DispenseUnits(s string) (units float64, ok bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), DispenseMarker))
	if rest == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Fields(rest)[0], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
